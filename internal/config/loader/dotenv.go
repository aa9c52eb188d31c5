package loader

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
)

// DotEnvLoader reads a .env file and maps its prefixed variables like
// EnvLoader does. The process environment is left untouched.
type DotEnvLoader struct {
	prefix string
	path   string
}

// NewDotEnvLoader creates a loader for the .env file at path.
func NewDotEnvLoader(prefix, path string) *DotEnvLoader {
	return &DotEnvLoader{prefix: prefix, path: path}
}

// Load implements Loader. A missing file is not an error.
func (l *DotEnvLoader) Load() (map[string]any, error) {
	if l.path == "" {
		return nil, nil
	}
	vars, err := godotenv.Read(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, &ParseError{Path: l.path, Message: err.Error(), Err: err}
	}
	config, err := NewEnvLoaderFromMap(l.prefix, vars).Load()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.path, err)
	}
	return config, nil
}
