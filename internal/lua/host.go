package lua

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dshills/hookwire/internal/hook"
)

// Script is one loaded Lua file with its own state.
type Script struct {
	Name   string
	Path   string
	Source string

	state *State
}

// HasFunction reports whether the script defines the global function fn.
func (s *Script) HasFunction(fn string) bool {
	return s.state.HasFunction(fn)
}

// Global returns a global of the script converted to Go.
func (s *Script) Global(name string) any {
	return s.state.Global(name)
}

// Call invokes the global function fn.
func (s *Script) Call(fn string, args ...any) ([]any, error) {
	return s.state.Call(fn, args...)
}

// Host owns the loaded scripts and resolves Ref handlers against them.
type Host struct {
	mu      sync.RWMutex
	scripts map[string]*Script
	logger  zerolog.Logger
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithLogger sets the logger that also receives Lua print output.
func WithLogger(l zerolog.Logger) HostOption {
	return func(h *Host) {
		h.logger = l.With().Str("component", "lua").Logger()
	}
}

// NewHost creates an empty host.
func NewHost(opts ...HostOption) *Host {
	h := &Host{
		scripts: make(map[string]*Script),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// LoadFile reads and runs the script at path under name.
func (h *Host) LoadFile(name, path string) (*Script, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading lua script: %w", err)
	}
	return h.load(name, path, string(src))
}

// LoadString runs src as the script name.
func (h *Host) LoadString(name, src string) (*Script, error) {
	return h.load(name, "", src)
}

// load runs the chunk in a fresh state. A script already loaded under
// the same name is replaced and its state closed.
func (h *Host) load(name, path, src string) (*Script, error) {
	logger := h.logger.With().Str("script", name).Logger()
	state := NewState(WithPrint(func(msg string) {
		logger.Info().Msg(msg)
	}))

	if err := state.DoString(src); err != nil {
		state.Close()
		return nil, fmt.Errorf("loading lua script %s: %w", name, err)
	}

	s := &Script{Name: name, Path: path, Source: src, state: state}

	h.mu.Lock()
	old := h.scripts[name]
	h.scripts[name] = s
	h.mu.Unlock()

	if old != nil {
		old.state.Close()
	}
	logger.Debug().Str("path", path).Msg("lua script loaded")
	return s, nil
}

// Script returns a loaded script.
func (h *Host) Script(name string) (*Script, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.scripts[name]
	return s, ok
}

// Names returns the loaded script names in sorted order.
func (h *Host) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.scripts))
	for name := range h.scripts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Unload closes and forgets a script.
func (h *Host) Unload(name string) bool {
	h.mu.Lock()
	s, ok := h.scripts[name]
	delete(h.scripts, name)
	h.mu.Unlock()

	if ok {
		s.state.Close()
	}
	return ok
}

// Close unloads every script.
func (h *Host) Close() {
	h.mu.Lock()
	scripts := h.scripts
	h.scripts = make(map[string]*Script)
	h.mu.Unlock()

	for _, s := range scripts {
		s.state.Close()
	}
}

// Resolve implements hook.Resolver. typeName is a script name and method
// a global function of that script. The script is looked up on every
// call, so reloading a script takes effect for existing entries.
func (h *Host) Resolve(typeName, method string) (hook.HandlerFunc, error) {
	s, ok := h.Script(typeName)
	if !ok {
		return nil, fmt.Errorf("%w: no lua script %s", hook.ErrUnresolvable, typeName)
	}
	if !s.HasFunction(method) {
		return nil, fmt.Errorf("%w: lua script %s has no function %s", hook.ErrInvalidCallback, typeName, method)
	}

	return func(ctx context.Context, args ...any) (any, error) {
		out, err := s.Call(method, args...)
		if err != nil {
			return nil, err
		}
		switch len(out) {
		case 0:
			return nil, nil
		case 1:
			return out[0], nil
		}
		return out, nil
	}, nil
}
