package lua

import (
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// State is a sandboxed Lua runtime.
//
// gopher-lua states are not goroutine-safe; every method serializes on the
// state's mutex.
type State struct {
	mu     sync.Mutex
	L      *lua.LState
	bridge *Bridge
	closed bool
}

// StateOption configures a State.
type StateOption func(*State)

// WithPrint routes Lua print calls to fn.
func WithPrint(fn func(msg string)) StateOption {
	return func(s *State) {
		s.L.SetGlobal("print", s.L.NewFunction(func(L *lua.LState) int {
			n := L.GetTop()
			msg := ""
			for i := 1; i <= n; i++ {
				if i > 1 {
					msg += "\t"
				}
				msg += L.ToStringMeta(L.Get(i)).String()
			}
			fn(msg)
			return 0
		}))
	}
}

// NewState creates a sandboxed state.
func NewState(opts ...StateOption) *State {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(L)
	// Each Open* call leaves its module table on the stack.
	L.SetTop(0)
	sandbox(L)

	s := &State{L: L, bridge: NewBridge(L)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DoFile executes a Lua file.
func (s *State) DoFile(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}
	return recovered(func() error { return s.L.DoFile(path) })
}

// DoString executes Lua source.
func (s *State) DoString(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}
	return recovered(func() error { return s.L.DoString(code) })
}

// HasFunction reports whether name is a global function.
func (s *State) HasFunction(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	return s.L.GetGlobal(name).Type() == lua.LTFunction
}

// Global returns a global converted to Go.
func (s *State) Global(name string) any {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	return s.bridge.ToGo(s.L.GetGlobal(name))
}

// Call invokes the global function fn with Go arguments and returns its
// results converted to Go. A trailing (nil, message) return is reported
// as an error.
func (s *State) Call(fn string, args ...any) ([]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStateClosed
	}

	fnVal := s.L.GetGlobal(fn)
	if fnVal.Type() != lua.LTFunction {
		return nil, fmt.Errorf("%w: %s (got %s)", ErrNotFunction, fn, fnVal.Type())
	}

	top := s.L.GetTop()
	s.L.Push(fnVal)
	for _, a := range args {
		s.L.Push(s.bridge.ToLua(a))
	}

	if err := recovered(func() error { return s.L.PCall(len(args), lua.MultRet, nil) }); err != nil {
		s.L.SetTop(top)
		return nil, err
	}

	n := s.L.GetTop() - top
	out := make([]any, n)
	for i := 0; i < n; i++ {
		out[i] = s.bridge.ToGo(s.L.Get(top + i + 1))
	}
	s.L.SetTop(top)

	if n == 2 && out[0] == nil {
		if msg, ok := out[1].(string); ok {
			return nil, fmt.Errorf("%s: %s", fn, msg)
		}
	}
	return out, nil
}

// Close releases the state. Later calls return ErrStateClosed.
func (s *State) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.L.Close()
	s.closed = true
}

func recovered(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}
