package condition

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// compare applies op to actual and expected.
func compare(op Operator, actual, expected any) (bool, error) {
	switch op {
	case OpEq, "":
		return equal(actual, expected), nil
	case OpNeq:
		return !equal(actual, expected), nil
	case OpGt, OpGte, OpLt, OpLte:
		c, err := order(actual, expected)
		if err != nil {
			return false, err
		}
		switch op {
		case OpGt:
			return c > 0, nil
		case OpGte:
			return c >= 0, nil
		case OpLt:
			return c < 0, nil
		default:
			return c <= 0, nil
		}
	case OpIn, OpNotIn:
		list, ok := toList(expected)
		if !ok {
			return false, fmt.Errorf("%w: %s needs a list, got %T", ErrInvalidValue, op, expected)
		}
		found := false
		for _, item := range list {
			if equal(actual, item) {
				found = true
				break
			}
		}
		return found == (op == OpIn), nil
	case OpContains:
		if s, ok := actual.(string); ok {
			return strings.Contains(s, toString(expected)), nil
		}
		if list, ok := toList(actual); ok {
			for _, item := range list {
				if equal(item, expected) {
					return true, nil
				}
			}
			return false, nil
		}
		return strings.Contains(toString(actual), toString(expected)), nil
	case OpStartsWith:
		return strings.HasPrefix(toString(actual), toString(expected)), nil
	case OpEndsWith:
		return strings.HasSuffix(toString(actual), toString(expected)), nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownOperator, op)
	}
}

// equal compares loosely: numbers by value, booleans against their string
// forms, everything else by string form.
func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return af == bf
		}
	}
	if ab, ok := a.(bool); ok {
		bb, ok := toBool(b)
		return ok && ab == bb
	}
	if bb, ok := b.(bool); ok {
		ab, ok := toBool(a)
		return ok && ab == bb
	}
	return toString(a) == toString(b)
}

// order returns -1, 0 or 1. Numbers compare numerically, times
// chronologically and anything else lexically.
func order(a, b any) (int, error) {
	if a == nil || b == nil {
		return 0, fmt.Errorf("%w: cannot order nil", ErrInvalidValue)
	}
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			switch {
			case af < bf:
				return -1, nil
			case af > bf:
				return 1, nil
			}
			return 0, nil
		}
	}
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Compare(bt), nil
		}
	}
	return strings.Compare(toString(a), toString(b)), nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func toBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		return parsed, err == nil
	}
	if f, ok := toFloat(v); ok {
		return f != 0, true
	}
	return false, false
}

func toString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	}
	return fmt.Sprint(v)
}

// toList accepts any slice or array, or a comma separated string.
func toList(v any) ([]any, bool) {
	switch l := v.(type) {
	case nil:
		return nil, false
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	case string:
		parts := strings.Split(l, ",")
		out := make([]any, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// truthy reports whether a config value enables a feature.
func truthy(v any) bool {
	if v == nil {
		return false
	}
	if b, ok := toBool(v); ok {
		return b
	}
	if s, ok := v.(string); ok {
		return s != ""
	}
	if l, ok := toList(v); ok {
		return len(l) > 0
	}
	return true
}
