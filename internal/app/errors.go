package app

import "errors"

// Engine errors.
var (
	// ErrAlreadyStarted indicates Start was called twice.
	ErrAlreadyStarted = errors.New("engine already started")

	// ErrClosed indicates the engine was closed.
	ErrClosed = errors.New("engine closed")

	// ErrNoAuthenticator indicates a token was given without auth.jwt_secret.
	ErrNoAuthenticator = errors.New("no jwt secret configured")
)

// InitError reports the component that failed to initialize.
type InitError struct {
	Component string
	Err       error
}

func (e *InitError) Error() string {
	return "init " + e.Component + ": " + e.Err.Error()
}

func (e *InitError) Unwrap() error {
	return e.Err
}
