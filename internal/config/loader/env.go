package loader

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultPrefix is the prefix of hookwire environment variables.
const DefaultPrefix = "HOOKWIRE_"

// ValueKind controls how a mapped variable is parsed.
type ValueKind int

// Value kinds.
const (
	KindAuto ValueKind = iota
	KindString
	KindBool
	KindInt
	KindList
)

// EnvVar maps one environment variable to a config path.
type EnvVar struct {
	Path string
	Kind ValueKind
}

// EnvLoader loads configuration from environment variables.
//
// Mapped variables land on their configured path. Unmapped variables
// starting with prefix+"VALUES_" land under the values table, with "__"
// separating nested keys: HOOKWIRE_VALUES_FEATURES__AUDIT=true sets
// values.features.audit.
type EnvLoader struct {
	prefix  string
	mapping map[string]EnvVar
	environ func() []string
}

// NewEnvLoader creates an environment loader reading the process
// environment.
func NewEnvLoader(prefix string) *EnvLoader {
	return &EnvLoader{
		prefix:  prefix,
		mapping: defaultEnvMapping(prefix),
		environ: os.Environ,
	}
}

// NewEnvLoaderFromMap creates an environment loader reading vars instead
// of the process environment.
func NewEnvLoaderFromMap(prefix string, vars map[string]string) *EnvLoader {
	l := NewEnvLoader(prefix)
	l.environ = func() []string {
		out := make([]string, 0, len(vars))
		for k, v := range vars {
			out = append(out, k+"="+v)
		}
		return out
	}
	return l
}

func defaultEnvMapping(prefix string) map[string]EnvVar {
	return map[string]EnvVar{
		prefix + "ENV":                   {Path: "env", Kind: KindString},
		prefix + "LOG_LEVEL":             {Path: "log.level", Kind: KindString},
		prefix + "LOG_FORMAT":            {Path: "log.format", Kind: KindString},
		prefix + "LOG_OUTPUT":            {Path: "log.output", Kind: KindString},
		prefix + "DISCOVERY_PATHS":       {Path: "discovery.paths", Kind: KindList},
		prefix + "WATCH":                 {Path: "discovery.watch", Kind: KindBool},
		prefix + "WATCH_DELAY":           {Path: "discovery.watch_delay", Kind: KindString},
		prefix + "DISCOVERY_CONCURRENCY": {Path: "discovery.concurrency", Kind: KindInt},
		prefix + "POLICY":                {Path: "conditions.policy", Kind: KindString},
		prefix + "STRICT_HOOKS":          {Path: "conditions.strict_hooks", Kind: KindList},
		prefix + "JWT_SECRET":            {Path: "auth.jwt_secret", Kind: KindString},
		prefix + "JWT_ISSUER":            {Path: "auth.issuer", Kind: KindString},
		prefix + "JWT_ROLES_CLAIM":       {Path: "auth.roles_claim", Kind: KindString},
		prefix + "TOKEN":                 {Path: "auth.token", Kind: KindString},
	}
}

// AddMapping adds a custom environment variable mapping.
func (l *EnvLoader) AddMapping(envVar string, v EnvVar) {
	l.mapping[envVar] = v
}

// Load reads environment variables into a configuration map. Empty
// values are kept as set.
func (l *EnvLoader) Load() (map[string]any, error) {
	config := make(map[string]any)
	valuesPrefix := l.prefix + "VALUES_"

	for _, kv := range l.environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if v, mapped := l.mapping[name]; mapped {
			parsed, ok := parseKind(v.Kind, value)
			if !ok {
				return nil, &ParseError{Path: name, Message: "cannot parse " + strconv.Quote(value)}
			}
			SetByPath(config, v.Path, parsed)
			continue
		}
		if strings.HasPrefix(name, valuesPrefix) {
			SetByPath(config, l.valuesPath(name, valuesPrefix), ParseValue(value))
		}
	}
	return config, nil
}

// valuesPath converts HOOKWIRE_VALUES_FEATURES__AUDIT to values.features.audit.
func (l *EnvLoader) valuesPath(env, valuesPrefix string) string {
	name := strings.ToLower(strings.TrimPrefix(env, valuesPrefix))
	return "values." + strings.ReplaceAll(name, "__", ".")
}

func parseKind(kind ValueKind, s string) (any, bool) {
	switch kind {
	case KindString:
		return s, true
	case KindBool:
		b, ok := parseBool(s)
		return b, ok
	case KindInt:
		i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		return i, err == nil
	case KindList:
		return splitList(s), true
	}
	return ParseValue(s), true
}

// splitList splits on the OS path list separator, or on commas when the
// value holds none.
func splitList(s string) []any {
	sep := string(filepath.ListSeparator)
	if !strings.Contains(s, sep) {
		sep = ","
	}
	out := make([]any, 0)
	for _, p := range strings.Split(s, sep) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "on", "1":
		return true, true
	case "false", "no", "off", "0", "":
		return false, true
	}
	return false, false
}

// ParseValue parses an untyped string into a bool, int64, float64, JSON
// array or object, or leaves it a string.
func ParseValue(s string) any {
	if s == "" {
		return s
	}

	switch strings.ToLower(s) {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}

	if strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{") {
		var v any
		if err := json.Unmarshal([]byte(s), &v); err == nil {
			return v
		}
	}
	return s
}
