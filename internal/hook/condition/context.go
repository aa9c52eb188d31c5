package condition

import (
	"context"
	"slices"
	"time"
)

// AuthState describes the caller on whose behalf a hook fires.
type AuthState struct {
	Authenticated bool
	Subject       string
	Roles         []string
}

// HasRole reports whether role is among the caller's roles.
func (a AuthState) HasRole(role string) bool {
	return slices.Contains(a.Roles, role)
}

// Context is the evaluation input for descriptors.
type Context struct {
	Environment string
	Auth        AuthState
	Config      Source
	Now         func() time.Time
}

func (c Context) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

type contextKey struct{}

// WithContext attaches c to ctx for evaluators further down the call.
func WithContext(ctx context.Context, c Context) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// FromContext returns the Context attached to ctx.
func FromContext(ctx context.Context) (Context, bool) {
	if ctx == nil {
		return Context{}, false
	}
	c, ok := ctx.Value(contextKey{}).(Context)
	return c, ok
}
