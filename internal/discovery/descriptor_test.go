package discovery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/hookwire/internal/hook"
	"github.com/dshills/hookwire/internal/hook/condition"
)

func TestSynthesizeName(t *testing.T) {
	tests := []struct {
		ident string
		want  string
	}{
		{"UserCreatedHook", "user.created"},
		{"user_created_handler", "user.created"},
		{"OrderShippedListener", "order.shipped"},
		{"HTTPRequestSentHook", "http.request.sent"},
		{"cache-cleared", "cache.cleared"},
		{"Hook", "hook"},
		{"V2UploadDone", "v2.upload.done"},
	}
	for _, tt := range tests {
		t.Run(tt.ident, func(t *testing.T) {
			assert.Equal(t, tt.want, SynthesizeName(tt.ident))
		})
	}
}

func TestParseAnnotations(t *testing.T) {
	doc := `
/**
 * Sends the welcome mail.
 *
 * @hook user.registered
 * @priority 3
 * @group mail
 * @description welcome mail
 * @middleware role roles=admin,editor
 * @condition environment production
 */`
	d, found, err := parseAnnotations(doc)

	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "user.registered", d.Name)
	assert.Equal(t, 3, d.Priority)
	assert.Equal(t, "mail", d.Group)
	assert.Equal(t, "welcome mail", d.Description)
	require.Len(t, d.Middleware, 1)
	assert.Equal(t, "role", d.Middleware[0].Name)
	assert.Equal(t, []any{"admin", "editor"}, d.Middleware[0].Params["roles"])
	require.Len(t, d.Conditions, 1)
	assert.Equal(t, condition.TypeEnvironment, d.Conditions[0].Type)
	assert.True(t, d.Enabled())
}

func TestParseAnnotations_NotFound(t *testing.T) {
	_, found, err := parseAnnotations("// just a comment\n// @unknown tag")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestParseAnnotations_Errors(t *testing.T) {
	_, _, err := parseAnnotations("@priority high")
	assert.ErrorIs(t, err, ErrInvalidDescriptor)

	_, _, err = parseAnnotations("@middleware")
	assert.ErrorIs(t, err, ErrInvalidDescriptor)

	d, _, err := parseAnnotations("@disabled")
	require.NoError(t, err)
	assert.True(t, d.Disabled)
}

func TestLeadingComment(t *testing.T) {
	src := "#!/usr/bin/env lua\n-- @hook a.b\n-- @priority 2\nfunction handle() end\n-- @group ignored\n"
	got := leadingComment(src)
	assert.Contains(t, got, "@hook a.b")
	assert.NotContains(t, got, "ignored")
}

func TestParseTag(t *testing.T) {
	d, err := parseTag("name=a.b; priority=-5; group=g; description=text; enabled=false; middleware=rate_limit rate=2 burst=3")
	require.NoError(t, err)
	assert.Equal(t, "a.b", d.Name)
	assert.Equal(t, -5, d.Priority)
	assert.Equal(t, "g", d.Group)
	assert.Equal(t, "text", d.Description)
	assert.True(t, d.Disabled)
	require.Len(t, d.Middleware, 1)
	assert.Equal(t, map[string]any{"rate": 2, "burst": 3}, d.Middleware[0].Params)

	_, err = parseTag("name")
	assert.ErrorIs(t, err, ErrInvalidDescriptor)
	_, err = parseTag("colour=red")
	assert.ErrorIs(t, err, ErrInvalidDescriptor)
}

func TestDescriptorFromMap(t *testing.T) {
	d, err := descriptorFromMap(map[string]any{
		"name":     "user.created",
		"priority": int64(4),
		"group":    "audit",
		"handler":  "Audit@log",
		"middleware": []any{
			"auth",
			map[string]any{"name": "role", "params": map[string]any{"roles": []any{"admin"}}},
		},
		"conditions": []any{
			map[string]any{"type": "config", "key": "features.audit", "value": true},
			"environment neq testing",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "user.created", d.Name)
	assert.Equal(t, 4, d.Priority)
	assert.Equal(t, "audit", d.Group)
	assert.Equal(t, "Audit@log", d.Handler)
	require.Len(t, d.Middleware, 2)
	assert.Equal(t, "auth", d.Middleware[0].Name)
	assert.Equal(t, "role", d.Middleware[1].Name)
	require.Len(t, d.Conditions, 2)
	assert.Equal(t, condition.OpNeq, d.Conditions[1].Operator)

	d, err = descriptorFromMap(map[string]any{"middleware": map[string]any{}, "conditions": map[string]any{}})
	require.NoError(t, err)
	assert.Equal(t, hook.DefaultPriority, d.Priority)
	assert.Equal(t, hook.DefaultGroup, d.Group)
	assert.Empty(t, d.Middleware)

	_, err = descriptorFromMap(map[string]any{"priority": "soon"})
	assert.ErrorIs(t, err, ErrInvalidDescriptor)
	_, err = descriptorFromMap(map[string]any{"enabled": "yes"})
	assert.ErrorIs(t, err, ErrInvalidDescriptor)
	_, err = descriptorFromMap(map[string]any{"conditions": []any{42}})
	assert.ErrorIs(t, err, ErrInvalidDescriptor)
}

func TestBuiltinMiddleware(t *testing.T) {
	ev := condition.NewEvaluator(condition.WithBaseContext(condition.Context{Environment: "production"}))
	factories := BuiltinMiddleware(ev)
	ctx := context.Background()

	env, err := factories["environment"](map[string]any{"except": "testing"})
	require.NoError(t, err)
	assert.True(t, env(ctx, "h", "id", nil))
	inTesting := condition.WithContext(ctx, condition.Context{Environment: "testing"})
	assert.False(t, env(inTesting, "h", "id", nil))

	only, err := factories["environment"](map[string]any{"only": []any{"staging"}})
	require.NoError(t, err)
	assert.False(t, only(ctx, "h", "id", nil))

	_, err = factories["environment"](nil)
	assert.ErrorIs(t, err, ErrInvalidDescriptor)

	auth, err := factories["auth"](nil)
	require.NoError(t, err)
	assert.False(t, auth(ctx, "h", "id", nil))
	signedIn := condition.WithContext(ctx, condition.Context{
		Auth: condition.AuthState{Authenticated: true, Roles: []string{"editor"}},
	})
	assert.True(t, auth(signedIn, "h", "id", nil))

	role, err := factories["role"](map[string]any{"roles": "admin,editor"})
	require.NoError(t, err)
	assert.True(t, role(signedIn, "h", "id", nil))
	assert.False(t, role(ctx, "h", "id", nil))

	_, err = factories["role"](map[string]any{})
	assert.ErrorIs(t, err, ErrInvalidDescriptor)
}

func TestRateLimitMiddleware(t *testing.T) {
	factories := BuiltinMiddleware(condition.NewEvaluator())

	_, err := factories["rate_limit"](map[string]any{"rate": 0})
	assert.ErrorIs(t, err, ErrInvalidDescriptor)

	m, err := factories["rate_limit"](map[string]any{"rate": 0.001, "burst": 2})
	require.NoError(t, err)

	ctx := context.Background()
	assert.True(t, m(ctx, "h", "a", nil))
	assert.True(t, m(ctx, "h", "a", nil))
	assert.False(t, m(ctx, "h", "a", nil), "burst exhausted")
	assert.True(t, m(ctx, "h", "b", nil), "each entry has its own bucket")
}

func TestScoped(t *testing.T) {
	deny := hook.Middleware(func(context.Context, string, string, []any) bool { return false })
	m := scoped("mine", deny)

	assert.False(t, m(context.Background(), "h", "mine", nil))
	assert.True(t, m(context.Background(), "h", "other", nil))
}
