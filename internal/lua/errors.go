package lua

import "errors"

var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrNotFunction is returned when a global is missing or not a function.
	ErrNotFunction = errors.New("lua global is not a function")
)
