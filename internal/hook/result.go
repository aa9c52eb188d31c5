package hook

import (
	"time"
)

// Result is the outcome of one dispatch. It is not modified after the
// dispatcher returns it; accessors hand out copies.
type Result struct {
	// HookName is the name that was dispatched.
	HookName string

	// ExecutedCount is the number of handlers that returned without error.
	ExecutedCount int

	// ExecutionTime is the wall-clock duration of the whole dispatch.
	ExecutionTime time.Duration

	results map[string]any
	errors  map[string]*HandlerError
	order   []string
	skipped []string
}

func newResult(name string) *Result {
	return &Result{
		HookName: name,
		results:  make(map[string]any),
		errors:   make(map[string]*HandlerError),
	}
}

func (r *Result) addValue(id string, v any) {
	r.results[id] = v
	r.order = append(r.order, id)
	r.ExecutedCount++
}

func (r *Result) addError(id string, err *HandlerError) {
	r.errors[id] = err
	r.order = append(r.order, id)
}

func (r *Result) addSkipped(id string) {
	r.skipped = append(r.skipped, id)
}

// Results returns handler return values keyed by entry id.
func (r *Result) Results() map[string]any {
	out := make(map[string]any, len(r.results))
	for k, v := range r.results {
		out[k] = v
	}
	return out
}

// Errors returns captured handler failures keyed by entry id.
func (r *Result) Errors() map[string]*HandlerError {
	out := make(map[string]*HandlerError, len(r.errors))
	for k, v := range r.errors {
		out[k] = v
	}
	return out
}

// Value returns the return value of entry id.
func (r *Result) Value(id string) (any, bool) {
	v, ok := r.results[id]
	return v, ok
}

// Err returns the failure of entry id, or nil.
func (r *Result) Err(id string) *HandlerError {
	return r.errors[id]
}

// Order returns the ids of every invoked entry, successful or failed, in
// the order they ran.
func (r *Result) Order() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Values returns the successful return values in execution order.
func (r *Result) Values() []any {
	out := make([]any, 0, len(r.results))
	for _, id := range r.order {
		if v, ok := r.results[id]; ok {
			out = append(out, v)
		}
	}
	return out
}

// HasErrors reports whether any handler failed.
func (r *Result) HasErrors() bool {
	return len(r.errors) > 0
}

// Skipped returns the ids that were disabled or vetoed by middleware.
func (r *Result) Skipped() []string {
	out := make([]string, len(r.skipped))
	copy(out, r.skipped)
	return out
}
