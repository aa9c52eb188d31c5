package hook

import (
	"errors"
	"fmt"
)

// Sentinel errors for the hook package.
var (
	// ErrEmptyName is returned when a hook name is empty.
	ErrEmptyName = errors.New("hook name cannot be empty")

	// ErrInvalidCallback is returned when a handler cannot be resolved or invoked.
	ErrInvalidCallback = errors.New("invalid callback")

	// ErrUnresolvable is returned when no resolver knows a referenced type.
	ErrUnresolvable = errors.New("callback reference cannot be resolved")

	// ErrHandlerPanic is matched by errors.Is for handlers that panicked.
	ErrHandlerPanic = errors.New("handler panicked")

	// ErrMiddlewarePanic is matched by errors.Is for middleware that panicked.
	ErrMiddlewarePanic = errors.New("middleware panicked")
)

// HandlerError records a failed handler invocation inside a Result.
type HandlerError struct {
	// HookName is the name that was dispatched.
	HookName string

	// EntryID is the id of the entry whose handler failed.
	EntryID string

	// Message is a human-readable description of the failure.
	Message string

	// Location is the file:line where the failure originated, when known.
	Location string

	// Panicked is true if the handler panicked rather than returning an error.
	Panicked bool

	// Stack is the goroutine stack captured on panic.
	Stack string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("hook %s entry %s: %s (at %s)", e.HookName, e.EntryID, e.Message, e.Location)
	}
	return fmt.Sprintf("hook %s entry %s: %s", e.HookName, e.EntryID, e.Message)
}

// Unwrap returns the underlying error.
func (e *HandlerError) Unwrap() error {
	return e.Err
}

// Is allows errors.Is to match a panicking HandlerError with ErrHandlerPanic.
func (e *HandlerError) Is(target error) bool {
	return e.Panicked && target == ErrHandlerPanic
}

// MiddlewareError wraps a panic raised by a middleware predicate.
type MiddlewareError struct {
	HookName string
	EntryID  string
	Index    int
	Value    any
}

// Error implements the error interface.
func (e *MiddlewareError) Error() string {
	return fmt.Sprintf("middleware %d for hook %s entry %s panicked: %v", e.Index, e.HookName, e.EntryID, e.Value)
}

// Is allows errors.Is to match MiddlewareError with ErrMiddlewarePanic.
func (e *MiddlewareError) Is(target error) bool {
	return target == ErrMiddlewarePanic
}
