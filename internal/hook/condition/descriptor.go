package condition

import (
	"fmt"
	"strings"
)

// Type selects where the actual value of a descriptor comes from.
type Type string

// Descriptor types.
const (
	TypeEnvironment Type = "environment"
	TypeAuth        Type = "auth"
	TypeRole        Type = "role"
	TypeConfig      Type = "config"
	TypeTime        Type = "time"
	TypeCustom      Type = "custom"
)

// Operator compares an actual value with the expected one.
type Operator string

// Operators.
const (
	OpEq         Operator = "eq"
	OpNeq        Operator = "neq"
	OpGt         Operator = "gt"
	OpGte        Operator = "gte"
	OpLt         Operator = "lt"
	OpLte        Operator = "lte"
	OpIn         Operator = "in"
	OpNotIn      Operator = "not_in"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "starts_with"
	OpEndsWith   Operator = "ends_with"
)

// Predicate is the signature of custom conditions.
type Predicate func(name, entryID string, args []any) bool

// Descriptor is one declarative condition.
type Descriptor struct {
	Type     Type
	Key      string
	Value    any
	Operator Operator

	// Custom is evaluated for TypeCustom. When nil, Value names a predicate
	// registered on the Evaluator.
	Custom Predicate
}

// Custom builds a custom descriptor around p.
func Custom(p Predicate) Descriptor {
	return Descriptor{Type: TypeCustom, Custom: p}
}

// String returns a compact description used in logs.
func (d Descriptor) String() string {
	op := d.Operator
	if op == "" {
		op = OpEq
	}
	if d.Key != "" {
		return fmt.Sprintf("%s(%s) %s %v", d.Type, d.Key, op, d.Value)
	}
	return fmt.Sprintf("%s %s %v", d.Type, op, d.Value)
}

// ParseDescriptors builds descriptors from generic metadata such as a
// decoded TOML, YAML or JSON table. Each item needs a "type"; "operator"
// defaults to eq. Unknown types are kept and resolved by the evaluator
// policy at evaluation time.
func ParseDescriptors(items []map[string]any) ([]Descriptor, error) {
	out := make([]Descriptor, 0, len(items))
	for i, item := range items {
		d, err := parseDescriptor(item)
		if err != nil {
			return nil, fmt.Errorf("condition %d: %w", i, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func parseDescriptor(item map[string]any) (Descriptor, error) {
	t, _ := item["type"].(string)
	if t == "" {
		return Descriptor{}, fmt.Errorf("%w: missing type", ErrInvalidValue)
	}
	d := Descriptor{
		Type:     Type(strings.ToLower(strings.TrimSpace(t))),
		Value:    item["value"],
		Operator: OpEq,
	}
	if op, ok := item["operator"].(string); ok && op != "" {
		d.Operator = Operator(strings.ToLower(strings.TrimSpace(op)))
	}
	if key, ok := item["key"].(string); ok {
		d.Key = key
	}
	return d, nil
}

// ParseExpression parses the compact "type [operator] value" form used by
// comment annotations, for example "environment in production,staging" or
// "role admin". A config key is written as "config:feature.beta eq true".
// Values containing commas become lists.
func ParseExpression(expr string) (Descriptor, error) {
	fields := strings.Fields(expr)
	if len(fields) == 0 {
		return Descriptor{}, fmt.Errorf("%w: empty condition", ErrInvalidValue)
	}

	d := Descriptor{Operator: OpEq}
	head := fields[0]
	if t, key, ok := strings.Cut(head, ":"); ok {
		d.Type = Type(strings.ToLower(t))
		d.Key = key
	} else {
		d.Type = Type(strings.ToLower(head))
	}

	rest := fields[1:]
	if len(rest) >= 2 && isOperator(rest[0]) {
		d.Operator = Operator(strings.ToLower(rest[0]))
		rest = rest[1:]
	}
	if len(rest) > 0 {
		d.Value = literal(strings.Join(rest, " "))
	}
	return d, nil
}

func isOperator(s string) bool {
	switch Operator(strings.ToLower(s)) {
	case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte, OpIn, OpNotIn, OpContains, OpStartsWith, OpEndsWith:
		return true
	}
	return false
}

// literal turns annotation text into a typed value.
func literal(s string) any {
	if strings.Contains(s, ",") {
		parts := strings.Split(s, ",")
		list := make([]any, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				list = append(list, literal(p))
			}
		}
		return list
	}
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}
	if f, ok := toFloat(s); ok {
		return f
	}
	return s
}
