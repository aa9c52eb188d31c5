package discovery

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/time/rate"

	"github.com/dshills/hookwire/internal/hook"
	"github.com/dshills/hookwire/internal/hook/condition"
)

// MiddlewareFactory builds a middleware from declared parameters.
type MiddlewareFactory func(params map[string]any) (hook.Middleware, error)

// BuiltinMiddleware returns the factories available to every descriptor.
// Factories that inspect the caller read the condition context from the
// dispatch context, falling back to ev's base context.
func BuiltinMiddleware(ev *condition.Evaluator) map[string]MiddlewareFactory {
	return map[string]MiddlewareFactory{
		"environment": func(params map[string]any) (hook.Middleware, error) {
			only := toStrings(params["only"])
			except := toStrings(params["except"])
			if len(only) == 0 && len(except) == 0 {
				return nil, fmt.Errorf("%w: environment needs only or except", ErrInvalidDescriptor)
			}
			return func(ctx context.Context, _, _ string, _ []any) bool {
				env := ev.ContextFor(ctx).Environment
				if len(only) > 0 && !slices.Contains(only, env) {
					return false
				}
				return !slices.Contains(except, env)
			}, nil
		},

		"role": func(params map[string]any) (hook.Middleware, error) {
			roles := toStrings(params["roles"])
			if len(roles) == 0 {
				return nil, fmt.Errorf("%w: role needs roles", ErrInvalidDescriptor)
			}
			return func(ctx context.Context, _, _ string, _ []any) bool {
				auth := ev.ContextFor(ctx).Auth
				return slices.ContainsFunc(roles, auth.HasRole)
			}, nil
		},

		"auth": func(map[string]any) (hook.Middleware, error) {
			return func(ctx context.Context, _, _ string, _ []any) bool {
				return ev.ContextFor(ctx).Auth.Authenticated
			}, nil
		},

		"rate_limit": func(params map[string]any) (hook.Middleware, error) {
			perSecond, ok := toFloat(params["rate"])
			if !ok || perSecond <= 0 {
				return nil, fmt.Errorf("%w: rate_limit needs a positive rate", ErrInvalidDescriptor)
			}
			burst := 1
			if b, ok := toInt(params["burst"]); ok && b > 0 {
				burst = b
			}
			return rateLimit(rate.Limit(perSecond), burst), nil
		},
	}
}

// rateLimit vetoes an entry once it exceeds its token bucket. Each entry
// id gets its own limiter.
func rateLimit(limit rate.Limit, burst int) hook.Middleware {
	var mu sync.Mutex
	limiters := make(map[string]*rate.Limiter)

	return func(_ context.Context, _, entryID string, _ []any) bool {
		mu.Lock()
		l, ok := limiters[entryID]
		if !ok {
			l = rate.NewLimiter(limit, burst)
			limiters[entryID] = l
		}
		mu.Unlock()
		return l.Allow()
	}
}

// scoped restricts m to a single entry so that declarations on one
// definition do not gate other entries sharing the hook name.
func scoped(entryID string, m hook.Middleware) hook.Middleware {
	return func(ctx context.Context, name, id string, args []any) bool {
		if id != entryID {
			return true
		}
		return m(ctx, name, id, args)
	}
}
