package hook

import (
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// RegisterOption configures a single registration.
type RegisterOption func(*registration)

// registration collects per-call registration settings.
type registration struct {
	priority int
	group    string
	enabled  bool
	metadata map[string]any
}

func defaultRegistration() registration {
	return registration{
		priority: DefaultPriority,
		group:    DefaultGroup,
		enabled:  true,
	}
}

// WithPriority sets the entry priority. Lower values run earlier.
func WithPriority(p int) RegisterOption {
	return func(r *registration) {
		r.priority = p
	}
}

// WithGroup sets the entry group. An empty group means DefaultGroup.
func WithGroup(g string) RegisterOption {
	return func(r *registration) {
		if g != "" {
			r.group = g
		}
	}
}

// WithEnabled sets the initial enabled state.
func WithEnabled(enabled bool) RegisterOption {
	return func(r *registration) {
		r.enabled = enabled
	}
}

// WithMetadata attaches caller-defined metadata to the entry.
func WithMetadata(md map[string]any) RegisterOption {
	return func(r *registration) {
		if md == nil {
			return
		}
		if r.metadata == nil {
			r.metadata = make(map[string]any, len(md))
		}
		for k, v := range md {
			r.metadata[k] = v
		}
	}
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(l zerolog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = l.With().Str("component", "registry").Logger()
	}
}

// WithClock replaces the time source, mainly for tests.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatchLogger sets the dispatcher logger.
func WithDispatchLogger(l zerolog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = l.With().Str("component", "dispatcher").Logger()
	}
}

// WithResolver sets the resolver used for Ref handlers.
func WithResolver(r Resolver) DispatcherOption {
	return func(d *Dispatcher) {
		d.resolver = r
	}
}

// WithTracer sets the tracer used to record dispatch spans.
func WithTracer(t trace.Tracer) DispatcherOption {
	return func(d *Dispatcher) {
		if t != nil {
			d.tracer = t
		}
	}
}
