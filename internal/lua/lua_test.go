package lua

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/dshills/hookwire/internal/hook"
)

func TestStateSandbox(t *testing.T) {
	s := NewState()
	defer s.Close()

	if top := s.L.GetTop(); top != 0 {
		t.Fatalf("fresh state stack top = %d, want 0", top)
	}

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "io", "os", "debug"} {
		if err := s.DoString("assert(" + name + " == nil)"); err != nil {
			t.Errorf("expected %s to be unavailable: %v", name, err)
		}
	}
	if err := s.DoString(`x = string.upper("ok") .. math.floor(1.5) .. table.concat({"a","b"})`); err != nil {
		t.Fatalf("safe libraries unavailable: %v", err)
	}
	if got := s.Global("x"); got != "OK1ab" {
		t.Errorf("x = %v, want OK1ab", got)
	}
}

func TestStateCall(t *testing.T) {
	s := NewState()
	defer s.Close()

	err := s.DoString(`
		function add(a, b) return a + b end
		function multi() return 1, "two", true end
		function fail() return nil, "bad input" end
		function raise() error("exploded") end
		not_a_function = 3
	`)
	if err != nil {
		t.Fatalf("DoString() error = %v", err)
	}

	out, err := s.Call("add", 2, 3)
	if err != nil || len(out) != 1 || out[0] != int64(5) {
		t.Errorf("add(2, 3) = %v, %v", out, err)
	}

	out, err = s.Call("multi")
	if err != nil || len(out) != 3 || out[1] != "two" || out[2] != true {
		t.Errorf("multi() = %v, %v", out, err)
	}

	if _, err := s.Call("fail"); err == nil || !strings.Contains(err.Error(), "bad input") {
		t.Errorf("expected returned error message, got %v", err)
	}
	if _, err := s.Call("raise"); err == nil || !strings.Contains(err.Error(), "exploded") {
		t.Errorf("expected raised error, got %v", err)
	}
	if _, err := s.Call("not_a_function"); !errors.Is(err, ErrNotFunction) {
		t.Errorf("expected ErrNotFunction, got %v", err)
	}
	if _, err := s.Call("missing"); !errors.Is(err, ErrNotFunction) {
		t.Errorf("expected ErrNotFunction, got %v", err)
	}

	// The stack is left empty after errors.
	if top := s.L.GetTop(); top != 0 {
		t.Errorf("stack top = %d, want 0", top)
	}
}

func TestStateClosed(t *testing.T) {
	s := NewState()
	s.Close()
	s.Close()

	if err := s.DoString("x = 1"); !errors.Is(err, ErrStateClosed) {
		t.Errorf("DoString() after Close = %v, want ErrStateClosed", err)
	}
	if _, err := s.Call("x"); !errors.Is(err, ErrStateClosed) {
		t.Errorf("Call() after Close = %v, want ErrStateClosed", err)
	}
	if s.HasFunction("x") {
		t.Error("HasFunction() after Close should be false")
	}
}

type point struct {
	X     int    `json:"x"`
	Label string `json:"label,omitempty"`
	skip  bool
}

func TestBridgeRoundTrip(t *testing.T) {
	s := NewState()
	defer s.Close()
	b := s.bridge

	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"bool", true, true},
		{"int", 42, int64(42)},
		{"float", 1.5, 1.5},
		{"string", "hi", "hi"},
		{"slice", []any{1, "a"}, []any{int64(1), "a"}},
		{"string slice", []string{"a", "b"}, []any{"a", "b"}},
		{"map", map[string]any{"k": "v"}, map[string]any{"k": "v"}},
		{"struct", point{X: 1, Label: "p"}, map[string]any{"x": int64(1), "label": "p"}},
		{"pointer", &point{X: 2}, map[string]any{"x": int64(2), "label": ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := b.ToGo(b.ToLua(tt.in))
			if !equalValues(got, tt.want) {
				t.Errorf("round trip of %v = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

func equalValues(a, b any) bool {
	switch av := a.(type) {
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !equalValues(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			if !equalValues(v, bv[k]) {
				return false
			}
		}
		return true
	}
	return a == b
}

func TestHostResolve(t *testing.T) {
	h := NewHost()
	defer h.Close()

	_, err := h.LoadString("greeter", `
		function handle(user, punct)
			return "welcome " .. user.name .. (punct or "")
		end
		function pair() return 1, 2 end
	`)
	if err != nil {
		t.Fatalf("LoadString() error = %v", err)
	}

	fn, err := h.Resolve("greeter", "handle")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	v, err := fn(context.Background(), map[string]any{"name": "ada"}, "!")
	if err != nil || v != "welcome ada!" {
		t.Errorf("handle() = %v, %v", v, err)
	}

	fn, _ = h.Resolve("greeter", "pair")
	v, _ = fn(context.Background())
	if pair, ok := v.([]any); !ok || len(pair) != 2 {
		t.Errorf("pair() = %#v, want two values", v)
	}

	if _, err := h.Resolve("nobody", "handle"); !errors.Is(err, hook.ErrUnresolvable) {
		t.Errorf("expected ErrUnresolvable, got %v", err)
	}
	if _, err := h.Resolve("greeter", "missing"); !errors.Is(err, hook.ErrInvalidCallback) {
		t.Errorf("expected ErrInvalidCallback, got %v", err)
	}
}

func TestHostDispatch(t *testing.T) {
	h := NewHost()
	defer h.Close()

	if _, err := h.LoadString("upper", `function handle(s) return string.upper(s) end`); err != nil {
		t.Fatal(err)
	}
	if _, err := h.LoadString("broken", `function handle() error("nope") end`); err != nil {
		t.Fatal(err)
	}

	reg := hook.NewRegistry()
	d := hook.NewDispatcher(reg, hook.WithResolver(hook.ResolverChain{hook.NewContainer(), h}))

	okID, _ := reg.Register("title", hook.Ref("upper", "handle"), hook.WithPriority(1))
	badID, _ := reg.Register("title", hook.Ref("broken", "handle"), hook.WithPriority(2))

	res := d.Execute(context.Background(), "title", "hello")
	if v, _ := res.Value(okID); v != "HELLO" {
		t.Errorf("expected HELLO, got %v", v)
	}
	if res.Err(badID) == nil {
		t.Error("expected lua error to be recorded")
	}
	if res.ExecutedCount != 1 {
		t.Errorf("ExecutedCount = %d, want 1", res.ExecutedCount)
	}
}

func TestHostLoadFileAndReplace(t *testing.T) {
	var buf bytes.Buffer
	h := NewHost(WithLogger(zerolog.New(&buf)))
	defer h.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "audit.lua")
	if err := os.WriteFile(path, []byte(`print("loaded", 1) function handle() return "v1" end`), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := h.LoadFile("audit", path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if s.Path != path || !s.HasFunction("handle") {
		t.Errorf("unexpected script %+v", s)
	}
	if !strings.Contains(buf.String(), `"message":"loaded\t1"`) {
		t.Errorf("expected print to reach the logger, got %s", buf.String())
	}

	if _, err := h.LoadString("audit", `function handle() return "v2" end`); err != nil {
		t.Fatal(err)
	}
	if s.HasFunction("handle") {
		t.Error("expected replaced script state to be closed")
	}
	fn, _ := h.Resolve("audit", "handle")
	if v, _ := fn(context.Background()); v != "v2" {
		t.Errorf("expected replaced script to answer, got %v", v)
	}

	if _, err := h.LoadString("bad", `this is not lua`); err == nil {
		t.Error("expected syntax error")
	}
	if _, ok := h.Script("bad"); ok {
		t.Error("failed script must not be registered")
	}
	if _, err := h.LoadFile("gone", filepath.Join(dir, "missing.lua")); err == nil {
		t.Error("expected read error")
	}

	if names := h.Names(); len(names) != 1 || names[0] != "audit" {
		t.Errorf("Names() = %v", names)
	}
	if !h.Unload("audit") || h.Unload("audit") {
		t.Error("unexpected Unload result")
	}
}
