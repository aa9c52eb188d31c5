package hook_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dshills/hookwire/internal/hook"
)

type greeter struct {
	prefix string
}

func (g *greeter) Greet(name string) string { return g.prefix + name }

func (g *greeter) Fail(context.Context) error { return errBoom }

func (g *greeter) Count(ctx context.Context, args ...any) (any, error) { return len(args), nil }

func TestParseCallback(t *testing.T) {
	tests := []struct {
		in       string
		typeName string
		method   string
		wantErr  bool
	}{
		{"Mailer@send", "Mailer", "send", false},
		{"Mailer::send", "Mailer", "send", false},
		{"  Mailer@send ", "Mailer", "send", false},
		{"Mailer", "", "", true},
		{"@send", "", "", true},
		{"Mailer@", "", "", true},
		{"a b@c", "", "", true},
		{"a@b@c", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			inv, err := hook.ParseCallback(tt.in)
			if tt.wantErr {
				if !errors.Is(err, hook.ErrInvalidCallback) {
					t.Errorf("expected ErrInvalidCallback, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if inv.Kind() != hook.KindRef {
				t.Errorf("expected ref, got %s", inv.Kind())
			}
			if inv.TypeName() != tt.typeName || inv.MethodName() != tt.method {
				t.Errorf("expected %s@%s, got %s@%s", tt.typeName, tt.method, inv.TypeName(), inv.MethodName())
			}
			if inv.Identity() != tt.typeName+"@"+tt.method {
				t.Errorf("unexpected identity %s", inv.Identity())
			}
		})
	}
}

func TestInvocableIdentity(t *testing.T) {
	g := &greeter{}

	if id := hook.Method(g, "Greet").Identity(); id != "*hook_test.greeter.Greet" {
		t.Errorf("unexpected method identity %s", id)
	}
	if hook.Func(noop).Identity() == hook.Func(recorder).Identity() {
		t.Error("expected different functions to have different identities")
	}
	if hook.NamedFunc("x", noop).Identity() != "x" {
		t.Error("expected NamedFunc identity to be the key")
	}
	if !hook.Func(nil).IsZero() || !hook.Method(nil, "x").IsZero() || !hook.Ref("", "x").IsZero() {
		t.Error("expected empty inputs to produce zero invocables")
	}
}

func TestEntryIDDeterministic(t *testing.T) {
	a := hook.EntryID("h", "x", "")
	b := hook.EntryID("h", "x", hook.DefaultGroup)
	if a != b {
		t.Error("expected empty group to equal default group")
	}
	if hook.EntryID("h", "x", "g") == a {
		t.Error("expected group to change the id")
	}
	if hook.EntryID("h2", "x", "") == a {
		t.Error("expected name to change the id")
	}
}

func TestBindShapes(t *testing.T) {
	ctx := context.Background()
	g := &greeter{prefix: ">"}

	tests := []struct {
		name string
		inv  hook.Invocable
		args []any
		want any
		err  error
	}{
		{"method", hook.Method(g, "Greet"), []any{"x"}, ">x", nil},
		{"method error", hook.Method(g, "Fail"), nil, nil, errBoom},
		{"variadic handler", hook.Method(g, "Count"), []any{1, 2, 3}, 3, nil},
		{"no return", hook.Func(func() {}), nil, nil, nil},
		{"numeric conversion", hook.Func(func(f float64) float64 { return f * 2 }), []any{2}, 4.0, nil},
		{"nil arg", hook.Func(func(p *greeter) bool { return p == nil }), []any{nil}, true, nil},
		{"too few args", hook.Func(func(a, b int) int { return a + b }), []any{1}, nil, hook.ErrInvalidCallback},
		{"wrong type", hook.Func(func(a int) int { return a }), []any{"x"}, nil, hook.ErrInvalidCallback},
		{"extra args ignored", hook.Func(func(a int) int { return a }), []any{1, 2}, 1, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, err := tt.inv.Bind(nil)
			if err != nil {
				t.Fatalf("Bind: %v", err)
			}
			got, err := fn(ctx, tt.args...)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Errorf("expected %v, got %v", tt.err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestBindRefWithoutResolver(t *testing.T) {
	_, err := hook.Ref("T", "m").Bind(nil)
	if !errors.Is(err, hook.ErrUnresolvable) {
		t.Errorf("expected ErrUnresolvable, got %v", err)
	}
}

func TestContainer(t *testing.T) {
	c := hook.NewContainer()
	made := 0
	c.Bind("Greeter", func() (any, error) {
		made++
		return &greeter{prefix: "hey "}, nil
	})
	c.Bind("Broken", func() (any, error) { return nil, errBoom })

	if !c.Has("Greeter") || c.Has("Nope") {
		t.Error("unexpected Has result")
	}
	if types := c.Types(); len(types) != 2 || types[0] != "Broken" {
		t.Errorf("unexpected types %v", types)
	}

	fn, err := c.Resolve("Greeter", "Greet")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if v, _ := fn(context.Background(), "al"); v != "hey al" {
		t.Errorf("unexpected value %v", v)
	}
	if made != 1 {
		t.Errorf("expected factory to run once, ran %d", made)
	}

	if _, err := c.Resolve("Broken", "Greet"); !errors.Is(err, errBoom) {
		t.Errorf("expected factory error, got %v", err)
	}
	if _, err := c.Resolve("Greeter", "Nope"); !errors.Is(err, hook.ErrInvalidCallback) {
		t.Errorf("expected ErrInvalidCallback, got %v", err)
	}
	if _, err := c.Resolve("Nope", "Greet"); !errors.Is(err, hook.ErrUnresolvable) {
		t.Errorf("expected ErrUnresolvable, got %v", err)
	}
}

func TestResolverChain(t *testing.T) {
	first := hook.NewContainer()
	second := hook.NewContainer()
	second.Instance("Greeter", &greeter{prefix: "2:"})

	chain := hook.ResolverChain{nil, first, second}
	fn, err := chain.Resolve("Greeter", "Greet")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if v, _ := fn(context.Background(), "x"); v != "2:x" {
		t.Errorf("unexpected value %v", v)
	}

	if _, err := chain.Resolve("Missing", "Greet"); !errors.Is(err, hook.ErrUnresolvable) {
		t.Errorf("expected ErrUnresolvable, got %v", err)
	}
}

func TestChainAllow(t *testing.T) {
	ctx := context.Background()

	var empty hook.Chain
	if ok, err := empty.Allow(ctx, "h", "id", nil); !ok || err != nil {
		t.Error("expected empty chain to allow")
	}

	calls := 0
	c := hook.Chain{
		func(context.Context, string, string, []any) bool { calls++; return true },
		func(context.Context, string, string, []any) bool { calls++; return false },
		func(context.Context, string, string, []any) bool { calls++; return true },
	}
	if ok, _ := c.Allow(ctx, "h", "id", nil); ok {
		t.Error("expected veto")
	}
	if calls != 2 {
		t.Errorf("expected short circuit after 2 calls, got %d", calls)
	}

	p := hook.Chain{func(context.Context, string, string, []any) bool { panic("x") }}
	ok, err := p.Allow(ctx, "h", "id", nil)
	if ok || !errors.Is(err, hook.ErrMiddlewarePanic) {
		t.Errorf("expected panic veto, got %v %v", ok, err)
	}
	var merr *hook.MiddlewareError
	if !errors.As(err, &merr) || merr.Index != 0 || merr.Value != "x" {
		t.Errorf("unexpected middleware error %+v", merr)
	}
}
