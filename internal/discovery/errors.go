package discovery

import (
	"errors"
	"fmt"
)

var (
	// ErrNotHandler is returned for catalog values that do not implement Handler.
	ErrNotHandler = errors.New("candidate does not implement Handler")

	// ErrNoHandleFunction is returned for Lua scripts without a handle function.
	ErrNoHandleFunction = errors.New("lua script defines no handle function")

	// ErrNoHandler is returned for descriptor files without a handler reference.
	ErrNoHandler = errors.New("descriptor has no handler")

	// ErrUnknownMiddleware is returned for middleware references nobody provides.
	ErrUnknownMiddleware = errors.New("unknown middleware")

	// ErrInvalidDescriptor is returned for malformed metadata.
	ErrInvalidDescriptor = errors.New("invalid hook descriptor")
)

// CandidateError records why one candidate was not registered.
type CandidateError struct {
	// Source is the file path or catalog identifier of the candidate.
	Source string

	// Name is the hook name, when it was known before the failure.
	Name string

	Err error
}

// Error implements the error interface.
func (e *CandidateError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("discovery: %s (%s): %v", e.Source, e.Name, e.Err)
	}
	return fmt.Sprintf("discovery: %s: %v", e.Source, e.Err)
}

// Unwrap returns the underlying error.
func (e *CandidateError) Unwrap() error {
	return e.Err
}
