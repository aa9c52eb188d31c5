package condition_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/hookwire/internal/hook"
	"github.com/dshills/hookwire/internal/hook/condition"
)

func at(hour, minute int) func() time.Time {
	return func() time.Time { return time.Date(2026, 3, 14, hour, minute, 0, 0, time.UTC) }
}

func baseContext() condition.Context {
	return condition.Context{
		Environment: "production",
		Auth: condition.AuthState{
			Authenticated: true,
			Subject:       "u1",
			Roles:         []string{"editor", "viewer"},
		},
		Config: condition.MapSource{
			"features": map[string]any{"beta": true, "limit": 5},
			"region":   "eu-west-1",
		},
		Now: at(14, 30),
	}
}

func eval(t *testing.T, descs ...condition.Descriptor) bool {
	t.Helper()
	e := condition.NewEvaluator(condition.WithBaseContext(baseContext()))
	return e.Evaluate(context.Background(), descs, "test.hook", "id", nil)
}

// =============================================================================
// BUILT-IN TYPES
// =============================================================================

func TestEvaluate_Environment(t *testing.T) {
	assert.True(t, eval(t, condition.Descriptor{Type: condition.TypeEnvironment, Value: "production"}))
	assert.False(t, eval(t, condition.Descriptor{Type: condition.TypeEnvironment, Value: "local"}))
	assert.True(t, eval(t, condition.Descriptor{Type: condition.TypeEnvironment, Operator: condition.OpNeq, Value: "local"}))
	assert.True(t, eval(t, condition.Descriptor{Type: condition.TypeEnvironment, Operator: condition.OpIn, Value: []string{"staging", "production"}}))
	assert.False(t, eval(t, condition.Descriptor{Type: condition.TypeEnvironment, Operator: condition.OpNotIn, Value: "staging,production"}))
	assert.True(t, eval(t, condition.Descriptor{Type: condition.TypeEnvironment, Operator: condition.OpStartsWith, Value: "prod"}))
	assert.True(t, eval(t, condition.Descriptor{Type: condition.TypeEnvironment, Operator: condition.OpEndsWith, Value: "tion"}))
	assert.True(t, eval(t, condition.Descriptor{Type: condition.TypeEnvironment, Operator: condition.OpContains, Value: "duct"}))
}

func TestEvaluate_Auth(t *testing.T) {
	assert.True(t, eval(t, condition.Descriptor{Type: condition.TypeAuth}))
	assert.True(t, eval(t, condition.Descriptor{Type: condition.TypeAuth, Value: true}))
	assert.True(t, eval(t, condition.Descriptor{Type: condition.TypeAuth, Value: "true"}))
	assert.False(t, eval(t, condition.Descriptor{Type: condition.TypeAuth, Value: false}))

	e := condition.NewEvaluator()
	guest := condition.WithContext(context.Background(), condition.Context{})
	assert.False(t, e.Evaluate(guest, []condition.Descriptor{{Type: condition.TypeAuth}}, "h", "id", nil))
}

func TestEvaluate_RoleMembership(t *testing.T) {
	role := func(op condition.Operator, v any) condition.Descriptor {
		return condition.Descriptor{Type: condition.TypeRole, Operator: op, Value: v}
	}

	assert.True(t, eval(t, role("", "editor")))
	assert.True(t, eval(t, role(condition.OpContains, "viewer")))
	assert.False(t, eval(t, role(condition.OpEq, "admin")))
	assert.True(t, eval(t, role(condition.OpNeq, "admin")))
	assert.True(t, eval(t, role(condition.OpIn, []any{"admin", "editor"})))
	assert.False(t, eval(t, role(condition.OpNotIn, []any{"admin", "editor"})))
	assert.True(t, eval(t, role(condition.OpNotIn, "admin,owner")))
}

func TestEvaluate_Config(t *testing.T) {
	cfg := func(key string, op condition.Operator, v any) condition.Descriptor {
		return condition.Descriptor{Type: condition.TypeConfig, Key: key, Operator: op, Value: v}
	}

	assert.True(t, eval(t, condition.Descriptor{Type: condition.TypeConfig, Value: "features.beta"}))
	assert.False(t, eval(t, condition.Descriptor{Type: condition.TypeConfig, Value: "features.missing"}))
	assert.True(t, eval(t, cfg("features.limit", condition.OpGte, 5)))
	assert.False(t, eval(t, cfg("features.limit", condition.OpGt, "5")))
	assert.True(t, eval(t, cfg("region", condition.OpStartsWith, "eu-")))
	assert.False(t, eval(t, cfg("missing", condition.OpEq, "x")))
	assert.True(t, eval(t, cfg("features.beta", "", nil)))
	assert.False(t, eval(t, cfg("features.missing", condition.OpEq, nil)))
}

func TestEvaluate_ConfigJSONSource(t *testing.T) {
	src := condition.NewJSONSource([]byte(`{"flags":{"checkout":{"enabled":true}},"tiers":["gold","silver"]}`))
	c := condition.Context{Config: src}
	e := condition.NewEvaluator(condition.WithBaseContext(c))

	ok := e.Evaluate(context.Background(), []condition.Descriptor{
		{Type: condition.TypeConfig, Key: "flags.checkout.enabled", Value: true},
		{Type: condition.TypeConfig, Key: "tiers", Operator: condition.OpContains, Value: "gold"},
		{Type: condition.TypeConfig, Key: "tiers.#", Operator: condition.OpEq, Value: 2},
	}, "h", "id", nil)
	assert.True(t, ok)
}

func TestEvaluate_Time(t *testing.T) {
	tm := func(op condition.Operator, v any) condition.Descriptor {
		return condition.Descriptor{Type: condition.TypeTime, Operator: op, Value: v}
	}

	assert.True(t, eval(t, tm(condition.OpGte, "09:00")))
	assert.True(t, eval(t, tm(condition.OpLt, "17:00")))
	assert.False(t, eval(t, tm(condition.OpLt, "14:30")))
	assert.True(t, eval(t, tm(condition.OpIn, []any{"09:00", "17:00"})))
	assert.False(t, eval(t, tm(condition.OpIn, []any{"22:00", "06:00"})))
	assert.True(t, eval(t, tm(condition.OpNotIn, []any{"22:00", "06:00"})))
	assert.True(t, eval(t, tm(condition.OpGt, "2026-01-01T00:00:00Z")))
	assert.True(t, eval(t, tm(condition.OpLt, time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC))))
	assert.True(t, eval(t, tm(condition.OpIn, []any{"2026-03-14T00:00:00Z", "2026-03-15T00:00:00Z"})))
}

func TestEvaluate_TimeWindowWrapsMidnight(t *testing.T) {
	c := baseContext()
	c.Now = at(23, 15)
	e := condition.NewEvaluator(condition.WithBaseContext(c))

	night := []condition.Descriptor{{Type: condition.TypeTime, Operator: condition.OpIn, Value: []any{"22:00", "06:00"}}}
	assert.True(t, e.Evaluate(context.Background(), night, "h", "id", nil))
}

func TestEvaluate_Custom(t *testing.T) {
	var gotName, gotID string
	var gotArgs []any
	pred := condition.Custom(func(name, id string, args []any) bool {
		gotName, gotID, gotArgs = name, id, args
		return len(args) == 2
	})

	e := condition.NewEvaluator()
	assert.True(t, e.Evaluate(context.Background(), []condition.Descriptor{pred}, "order.placed", "e1", []any{1, 2}))
	assert.Equal(t, "order.placed", gotName)
	assert.Equal(t, "e1", gotID)
	assert.Equal(t, []any{1, 2}, gotArgs)
	assert.False(t, e.Evaluate(context.Background(), []condition.Descriptor{pred}, "order.placed", "e1", nil))

	// A custom descriptor without a predicate fails.
	assert.False(t, e.Evaluate(context.Background(), []condition.Descriptor{{Type: condition.TypeCustom}}, "h", "id", nil))
}

func TestEvaluate_NamedPredicate(t *testing.T) {
	e := condition.NewEvaluator(condition.WithPredicate("weekday", func(string, string, []any) bool { return true }))
	e.RegisterPredicate("never", func(string, string, []any) bool { return false })

	assert.True(t, e.Evaluate(context.Background(), []condition.Descriptor{{Type: condition.TypeCustom, Value: "weekday"}}, "h", "id", nil))
	assert.False(t, e.Evaluate(context.Background(), []condition.Descriptor{{Type: condition.TypeCustom, Value: "never"}}, "h", "id", nil))
	assert.False(t, e.Evaluate(context.Background(), []condition.Descriptor{{Type: condition.TypeCustom, Value: "unknown"}}, "h", "id", nil))
}

func TestEvaluate_ANDsDescriptors(t *testing.T) {
	assert.True(t, eval(t,
		condition.Descriptor{Type: condition.TypeEnvironment, Value: "production"},
		condition.Descriptor{Type: condition.TypeRole, Value: "editor"},
	))
	assert.False(t, eval(t,
		condition.Descriptor{Type: condition.TypeEnvironment, Value: "production"},
		condition.Descriptor{Type: condition.TypeRole, Value: "admin"},
	))
	assert.True(t, eval(t))
}

func TestEvaluate_ContextOverridesBase(t *testing.T) {
	e := condition.NewEvaluator(condition.WithBaseContext(baseContext()))
	ctx := condition.WithContext(context.Background(), condition.Context{Environment: "local"})

	descs := []condition.Descriptor{{Type: condition.TypeEnvironment, Value: "local"}}
	assert.True(t, e.Evaluate(ctx, descs, "h", "id", nil))
	assert.False(t, e.Evaluate(context.Background(), descs, "h", "id", nil))
}

// =============================================================================
// POLICY
// =============================================================================

func TestEvaluate_UnknownTypeFailsOpen(t *testing.T) {
	var buf bytes.Buffer
	e := condition.NewEvaluator(condition.WithLogger(zerolog.New(&buf)))

	ok := e.Evaluate(context.Background(), []condition.Descriptor{{Type: "weather", Value: "sunny"}}, "h", "id", nil)
	assert.True(t, ok)
	assert.Contains(t, buf.String(), "condition could not be evaluated")
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestEvaluate_UnknownOperatorFailsOpen(t *testing.T) {
	assert.True(t, eval(t, condition.Descriptor{Type: condition.TypeEnvironment, Operator: "matches", Value: "x"}))
}

func TestEvaluate_FailClosedPolicy(t *testing.T) {
	e := condition.NewEvaluator(condition.WithPolicy(condition.FailClosed))
	assert.False(t, e.Evaluate(context.Background(), []condition.Descriptor{{Type: "weather"}}, "h", "id", nil))
}

func TestEvaluate_StrictNames(t *testing.T) {
	e := condition.NewEvaluator(condition.WithStrictNames("auth.**", "payment.capture"))
	unknown := []condition.Descriptor{{Type: "weather"}}

	assert.Equal(t, condition.FailClosed, e.Policy("auth.login"))
	assert.Equal(t, condition.FailClosed, e.Policy("payment.capture"))
	assert.Equal(t, condition.FailOpen, e.Policy("user.created"))

	assert.False(t, e.Evaluate(context.Background(), unknown, "auth.login.before", "id", nil))
	assert.False(t, e.Evaluate(context.Background(), unknown, "payment.capture", "id", nil))
	assert.True(t, e.Evaluate(context.Background(), unknown, "user.created", "id", nil))
}

func TestParsePolicy(t *testing.T) {
	p, err := condition.ParsePolicy("fail-closed")
	require.NoError(t, err)
	assert.Equal(t, condition.FailClosed, p)

	p, err = condition.ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, condition.FailOpen, p)

	_, err = condition.ParsePolicy("sometimes")
	assert.ErrorIs(t, err, condition.ErrInvalidValue)
}

// =============================================================================
// MIDDLEWARE INTEGRATION
// =============================================================================

func TestEvaluator_MiddlewareGatesEntries(t *testing.T) {
	e := condition.NewEvaluator(condition.WithBaseContext(baseContext()))
	reg := hook.NewRegistry()
	d := hook.NewDispatcher(reg)

	var ran []string
	handler := func(tag string) hook.Invocable {
		return hook.NamedFunc(tag, func(context.Context, ...any) (any, error) {
			ran = append(ran, tag)
			return nil, nil
		})
	}

	prodOnly, err := reg.Register("deploy", handler("prod"))
	require.NoError(t, err)
	_, err = reg.Register("deploy", handler("always"))
	require.NoError(t, err)

	mw := e.Middleware([]condition.Descriptor{{Type: condition.TypeEnvironment, Value: "production"}})
	reg.AddMiddleware("deploy", func(ctx context.Context, name, id string, args []any) bool {
		if id != prodOnly {
			return true
		}
		return mw(ctx, name, id, args)
	})

	res := d.Execute(context.Background(), "deploy")
	assert.Equal(t, 2, res.ExecutedCount)

	ran = nil
	local := condition.WithContext(context.Background(), condition.Context{Environment: "local"})
	res = d.Execute(local, "deploy")
	assert.Equal(t, 1, res.ExecutedCount)
	assert.Equal(t, []string{"always"}, ran)
}
