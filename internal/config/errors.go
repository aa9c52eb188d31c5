package config

import (
	"errors"

	"github.com/dshills/hookwire/internal/config/loader"
)

// ErrInvalidConfig indicates a value that fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// ParseError represents an error while parsing a configuration source.
type ParseError = loader.ParseError
