package hook

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/dshills/hookwire/internal/hook"

// Dispatcher executes the entries registered for a hook name.
//
// Entries run strictly one after another on the calling goroutine, in
// bucket order. There is no timeout: a handler that never returns blocks
// the dispatch.
type Dispatcher struct {
	registry *Registry
	resolver Resolver
	tracer   trace.Tracer
	logger   zerolog.Logger
}

// NewDispatcher creates a dispatcher over reg.
func NewDispatcher(reg *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry: reg,
		tracer:   otel.Tracer(tracerName),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Registry returns the registry the dispatcher reads from.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Execute runs every enabled entry registered under name. A name with no
// entries yields an empty Result. Execute always returns a Result; handler
// failures are recorded in it rather than returned.
func (d *Dispatcher) Execute(ctx context.Context, name string, args ...any) *Result {
	snap, _ := d.registry.snapshot(name)
	return d.run(ctx, "hook.execute", name, snap, args, nil)
}

// ExecuteMatching is like Execute but also runs entries registered under
// wildcard names that match name. Entries from all matching buckets are
// merged by priority and registration order.
func (d *Dispatcher) ExecuteMatching(ctx context.Context, name string, args ...any) *Result {
	snap, _ := d.registry.snapshotMatching(name)
	return d.run(ctx, "hook.execute", name, snap, args, nil)
}

// Filter threads value through the entries of name. Each handler receives
// the current value as its first argument followed by args, and its return
// value replaces the current value. A failing handler leaves it unchanged.
func (d *Dispatcher) Filter(ctx context.Context, name string, value any, args ...any) (any, *Result) {
	snap, _ := d.registry.snapshot(name)
	current := value
	res := d.run(ctx, "hook.filter", name, snap, args, &current)
	return current, res
}

// run dispatches a snapshot. When carry is non-nil the dispatch chains
// values through it.
func (d *Dispatcher) run(ctx context.Context, spanName, name string, snap snapshot, args []any, carry *any) *Result {
	ctx, span := d.tracer.Start(ctx, spanName, trace.WithAttributes(
		attribute.String("hook.name", name),
		attribute.Int("hook.entries", len(snap.entries)),
	))
	defer span.End()

	start := time.Now()
	res := newResult(name)

	for i := range snap.entries {
		e := &snap.entries[i]
		if !e.Enabled {
			res.addSkipped(e.ID)
			continue
		}

		ok, err := snap.chains[e.Name].Allow(ctx, name, e.ID, args)
		if err != nil {
			d.logger.Warn().Err(err).Str("hook", name).Str("id", e.ID).Msg("middleware failed, entry skipped")
		}
		if !ok {
			res.addSkipped(e.ID)
			continue
		}

		callArgs := args
		if carry != nil {
			callArgs = append([]any{*carry}, args...)
		}

		v, herr := d.invoke(ctx, name, e, callArgs)
		if herr == nil {
			res.addValue(e.ID, v)
			if carry != nil {
				*carry = v
			}
		} else {
			res.addError(e.ID, herr)
			d.logger.Warn().Err(herr).Str("hook", name).Str("id", e.ID).
				Bool("panicked", herr.Panicked).Msg("hook handler failed")
		}
	}

	res.ExecutionTime = time.Since(start)

	span.SetAttributes(
		attribute.Int("hook.executed", res.ExecutedCount),
		attribute.Int("hook.errors", len(res.errors)),
	)
	if res.HasErrors() {
		span.SetStatus(codes.Error, fmt.Sprintf("%d handler(s) failed", len(res.errors)))
	}

	d.logger.Debug().Str("hook", name).Int("entries", len(snap.entries)).
		Int("executed", res.ExecutedCount).Int("errors", len(res.errors)).
		Dur("elapsed", res.ExecutionTime).Msg("hook dispatched")
	return res
}

// invoke binds and calls one handler. Call statistics are recorded once
// the handler has run, whether it succeeded or not.
func (d *Dispatcher) invoke(ctx context.Context, name string, e *Entry, args []any) (v any, herr *HandlerError) {
	fn, err := e.Handler.Bind(d.resolver)
	if err != nil {
		return nil, &HandlerError{
			HookName: name,
			EntryID:  e.ID,
			Message:  err.Error(),
			Location: handlerLocation(e.Handler),
			Err:      err,
		}
	}

	defer func() {
		d.registry.recordCall(e.Name, e.ID)

		if r := recover(); r != nil {
			perr, ok := r.(error)
			if !ok {
				perr = fmt.Errorf("%v", r)
			}
			v = nil
			herr = &HandlerError{
				HookName: name,
				EntryID:  e.ID,
				Message:  fmt.Sprintf("panic: %v", r),
				Location: panicLocation(),
				Panicked: true,
				Stack:    string(debug.Stack()),
				Err:      perr,
			}
		}
	}()

	v, err = fn(ctx, args...)
	if err != nil {
		return nil, &HandlerError{
			HookName: name,
			EntryID:  e.ID,
			Message:  err.Error(),
			Location: handlerLocation(e.Handler),
			Err:      err,
		}
	}
	return v, nil
}

// handlerLocation returns where a handler is defined: file:line for
// functions and methods, the reference itself for resolved handlers.
func handlerLocation(h Invocable) string {
	switch h.kind {
	case KindFunc:
		if h.fn.IsValid() {
			return funcLocation(h.fn.Pointer())
		}
	case KindMethod:
		for rt := reflect.TypeOf(h.receiver); rt != nil; rt = rt.Elem() {
			if m, ok := rt.MethodByName(h.method); ok {
				if loc := funcLocation(m.Func.Pointer()); loc != "" && !strings.HasPrefix(loc, "<autogenerated>") {
					return loc
				}
			}
			if rt.Kind() != reflect.Pointer {
				break
			}
		}
	case KindRef:
		return h.key
	}
	return ""
}

func funcLocation(pc uintptr) string {
	f := runtime.FuncForPC(pc)
	if f == nil {
		return ""
	}
	file, line := f.FileLine(f.Entry())
	return fmt.Sprintf("%s:%d", file, line)
}

// panicLocation finds the frame that raised the current panic. It must be
// called from the deferred recover function.
func panicLocation() string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	sawPanic := false
	for {
		frame, more := frames.Next()
		if sawPanic && !strings.HasPrefix(frame.Function, "runtime.") &&
			!strings.HasPrefix(frame.Function, "reflect.") {
			return fmt.Sprintf("%s:%d", frame.File, frame.Line)
		}
		if frame.Function == "runtime.gopanic" {
			sawPanic = true
		}
		if !more {
			return ""
		}
	}
}
