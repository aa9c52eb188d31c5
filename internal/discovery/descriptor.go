package discovery

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dshills/hookwire/internal/hook"
	"github.com/dshills/hookwire/internal/hook/condition"
)

// Handler is implemented by Go hook definitions.
type Handler interface {
	Handle(ctx context.Context, args ...any) (any, error)
}

// Describer supplies structured metadata for a Go definition.
type Describer interface {
	HookDescriptor() Descriptor
}

// Documented supplies a legacy annotation block for a Go definition.
type Documented interface {
	Doc() string
}

// Abstract is implemented by definitions that must not be registered
// themselves, such as shared bases embedded by concrete handlers.
type Abstract interface {
	Abstract() bool
}

// Meta marks the field carrying a `hook:"..."` struct tag:
//
//	type AuditHook struct {
//	    discovery.Meta `hook:"name=user.created;priority=5;group=audit"`
//	}
type Meta struct{}

// MiddlewareRef names a middleware factory and its parameters.
type MiddlewareRef struct {
	Name   string
	Params map[string]any
}

// Descriptor is the declarative metadata of one hook definition.
//
// The zero value is enabled. Use NewDescriptor to start from the registry
// defaults for priority and group.
type Descriptor struct {
	Name        string
	Priority    int
	Group       string
	Description string
	Disabled    bool
	Middleware  []MiddlewareRef
	Conditions  []condition.Descriptor

	// Handler is a "Type@method" reference, used by descriptor files.
	Handler string
}

// NewDescriptor returns a descriptor with default priority and group.
func NewDescriptor(name string) Descriptor {
	return Descriptor{
		Name:     name,
		Priority: hook.DefaultPriority,
		Group:    hook.DefaultGroup,
	}
}

// Enabled reports whether the descriptor should be registered.
func (d Descriptor) Enabled() bool {
	return !d.Disabled
}

// descriptorFromMap reads a descriptor from decoded TOML, YAML, JSON or a
// Lua table.
func descriptorFromMap(m map[string]any) (Descriptor, error) {
	d := NewDescriptor(stringField(m, "name"))
	if v, ok := m["priority"]; ok {
		p, ok := toInt(v)
		if !ok {
			return d, fmt.Errorf("%w: priority %v is not an integer", ErrInvalidDescriptor, v)
		}
		d.Priority = p
	}
	if g := stringField(m, "group"); g != "" {
		d.Group = g
	}
	d.Description = stringField(m, "description")
	d.Handler = stringField(m, "handler")

	if v, ok := m["enabled"]; ok {
		enabled, ok := v.(bool)
		if !ok {
			return d, fmt.Errorf("%w: enabled must be a boolean", ErrInvalidDescriptor)
		}
		d.Disabled = !enabled
	}
	if v, ok := m["disabled"].(bool); ok && v {
		d.Disabled = true
	}

	refs, err := middlewareRefs(m["middleware"])
	if err != nil {
		return d, err
	}
	d.Middleware = refs

	conds, err := conditionList(m["conditions"])
	if err != nil {
		return d, err
	}
	d.Conditions = conds
	return d, nil
}

// middlewareRefs accepts a list of names, "name k=v" strings and
// {name=..., params={...}} tables.
func middlewareRefs(v any) ([]MiddlewareRef, error) {
	if isEmpty(v) {
		return nil, nil
	}
	items, ok := v.([]any)
	if !ok {
		if s, ok := v.(string); ok {
			items = []any{s}
		} else {
			return nil, fmt.Errorf("%w: middleware must be a list", ErrInvalidDescriptor)
		}
	}

	refs := make([]MiddlewareRef, 0, len(items))
	for _, item := range items {
		switch it := item.(type) {
		case string:
			refs = append(refs, parseMiddlewareSpec(it))
		case map[string]any:
			name := stringField(it, "name")
			if name == "" {
				return nil, fmt.Errorf("%w: middleware entry without name", ErrInvalidDescriptor)
			}
			params, _ := it["params"].(map[string]any)
			refs = append(refs, MiddlewareRef{Name: name, Params: params})
		default:
			return nil, fmt.Errorf("%w: unsupported middleware entry %T", ErrInvalidDescriptor, item)
		}
	}
	return refs, nil
}

func conditionList(v any) ([]condition.Descriptor, error) {
	if isEmpty(v) {
		return nil, nil
	}
	var items []map[string]any
	switch l := v.(type) {
	case []map[string]any:
		items = l
	case []any:
		for _, item := range l {
			switch it := item.(type) {
			case map[string]any:
				items = append(items, it)
			case string:
				d, err := condition.ParseExpression(it)
				if err != nil {
					return nil, fmt.Errorf("%w: %v", ErrInvalidDescriptor, err)
				}
				items = append(items, map[string]any{
					"type": string(d.Type), "key": d.Key, "operator": string(d.Operator), "value": d.Value,
				})
			default:
				return nil, fmt.Errorf("%w: unsupported condition entry %T", ErrInvalidDescriptor, item)
			}
		}
	default:
		return nil, fmt.Errorf("%w: conditions must be a list", ErrInvalidDescriptor)
	}

	conds, err := condition.ParseDescriptors(items)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDescriptor, err)
	}
	return conds, nil
}

// parseMiddlewareSpec parses "name k=v k2=a,b".
func parseMiddlewareSpec(s string) MiddlewareRef {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return MiddlewareRef{}
	}
	ref := MiddlewareRef{Name: fields[0]}
	for _, f := range fields[1:] {
		k, v, ok := strings.Cut(f, "=")
		if !ok {
			continue
		}
		if ref.Params == nil {
			ref.Params = make(map[string]any)
		}
		ref.Params[k] = paramValue(v)
	}
	return ref
}

func paramValue(s string) any {
	if strings.Contains(s, ",") {
		parts := strings.Split(s, ",")
		out := make([]any, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

// isEmpty treats an empty Lua table, which decodes as a map, like an
// empty list.
func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	m, ok := v.(map[string]any)
	return ok && len(m) == 0
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func toStrings(v any) []string {
	switch l := v.(type) {
	case nil:
		return nil
	case string:
		var out []string
		for _, p := range strings.Split(l, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	case []string:
		return l
	case []any:
		out := make([]string, 0, len(l))
		for _, item := range l {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
