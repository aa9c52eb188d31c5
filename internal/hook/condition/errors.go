package condition

import "errors"

var (
	// ErrUnknownType is returned for a descriptor type the evaluator does not know.
	ErrUnknownType = errors.New("unknown condition type")

	// ErrUnknownOperator is returned for an unsupported operator.
	ErrUnknownOperator = errors.New("unknown condition operator")

	// ErrInvalidValue is returned when an expected value cannot be interpreted.
	ErrInvalidValue = errors.New("invalid condition value")

	// ErrInvalidToken is returned when a bearer token fails verification.
	ErrInvalidToken = errors.New("invalid token")
)
