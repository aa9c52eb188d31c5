package hook

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"strings"
)

// HandlerFunc is the normalized shape every handler is invoked through.
type HandlerFunc func(ctx context.Context, args ...any) (any, error)

// Kind identifies the variant held by an Invocable.
type Kind int

// Invocable kinds.
const (
	// KindNone is the zero Invocable.
	KindNone Kind = iota

	// KindFunc is a free function or closure.
	KindFunc

	// KindMethod is a method bound to a receiver value.
	KindMethod

	// KindRef is a type name and method resolved lazily through a Resolver.
	KindRef
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindFunc:
		return "func"
	case KindMethod:
		return "method"
	case KindRef:
		return "ref"
	default:
		return "none"
	}
}

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// Invocable is a value that can be turned into a HandlerFunc, possibly
// with the help of a Resolver. It is a tagged union over a free function,
// a bound method and a resolvable type+method pair.
type Invocable struct {
	kind     Kind
	key      string
	fn       reflect.Value
	receiver any
	typeName string
	method   string
}

// Func wraps a function. Its identity is the function's symbol name, so two
// closures created at the same source location share an identity; use
// NamedFunc to tell them apart.
//
// fn may be a HandlerFunc or any function whose parameters are an optional
// leading context.Context followed by positional or variadic arguments, and
// which returns nothing, a value, an error, or a value and an error.
func Func(fn any) Invocable {
	v := reflect.ValueOf(fn)
	if fn == nil || v.Kind() != reflect.Func || v.IsNil() {
		return Invocable{}
	}
	key := "func"
	if rf := runtime.FuncForPC(v.Pointer()); rf != nil {
		key = rf.Name()
	}
	return Invocable{kind: KindFunc, key: key, fn: v}
}

// NamedFunc wraps a function with an explicit identity.
func NamedFunc(key string, fn any) Invocable {
	inv := Func(fn)
	if inv.kind == KindNone {
		return inv
	}
	inv.key = key
	return inv
}

// Method references the named method on receiver.
func Method(receiver any, name string) Invocable {
	if receiver == nil || name == "" {
		return Invocable{}
	}
	return Invocable{
		kind:     KindMethod,
		key:      fmt.Sprintf("%T.%s", receiver, name),
		receiver: receiver,
		method:   name,
	}
}

// Ref references method on the type registered as typeName in a Resolver.
func Ref(typeName, method string) Invocable {
	if typeName == "" || method == "" {
		return Invocable{}
	}
	return Invocable{
		kind:     KindRef,
		key:      typeName + "@" + method,
		typeName: typeName,
		method:   method,
	}
}

// ParseCallback parses "Type@method" or "Type::method" into a Ref.
func ParseCallback(s string) (Invocable, error) {
	s = strings.TrimSpace(s)
	var typeName, method string
	switch {
	case strings.Contains(s, "::"):
		typeName, method, _ = strings.Cut(s, "::")
	case strings.Contains(s, "@"):
		typeName, method, _ = strings.Cut(s, "@")
	default:
		return Invocable{}, fmt.Errorf("%w: %q is not Type@method", ErrInvalidCallback, s)
	}
	if typeName == "" || method == "" || strings.ContainsAny(typeName+method, " \t@:") {
		return Invocable{}, fmt.Errorf("%w: %q is not Type@method", ErrInvalidCallback, s)
	}
	return Ref(typeName, method), nil
}

// Kind returns the variant held.
func (i Invocable) Kind() Kind { return i.kind }

// Identity returns the stable identity used when deriving entry ids.
func (i Invocable) Identity() string { return i.key }

// IsZero returns true if the Invocable holds nothing.
func (i Invocable) IsZero() bool { return i.kind == KindNone }

// TypeName returns the referenced type name for KindRef.
func (i Invocable) TypeName() string { return i.typeName }

// MethodName returns the method name for KindMethod and KindRef.
func (i Invocable) MethodName() string { return i.method }

// String returns a readable description.
func (i Invocable) String() string {
	return i.kind.String() + ":" + i.key
}

// Validate checks the shape of functions and bound methods. References are
// only checked for syntax since their target is resolved at call time.
func (i Invocable) Validate() error {
	switch i.kind {
	case KindFunc:
		_, err := adapt(i.fn)
		return err
	case KindMethod:
		m := reflect.ValueOf(i.receiver).MethodByName(i.method)
		if !m.IsValid() {
			return fmt.Errorf("%w: %T has no method %s", ErrInvalidCallback, i.receiver, i.method)
		}
		_, err := adapt(m)
		return err
	case KindRef:
		return nil
	default:
		return fmt.Errorf("%w: empty handler", ErrInvalidCallback)
	}
}

// Bind returns the callable form of the Invocable. Resolver is only
// consulted for KindRef and may be nil otherwise.
func (i Invocable) Bind(r Resolver) (HandlerFunc, error) {
	switch i.kind {
	case KindFunc:
		return adapt(i.fn)
	case KindMethod:
		m := reflect.ValueOf(i.receiver).MethodByName(i.method)
		if !m.IsValid() {
			return nil, fmt.Errorf("%w: %T has no method %s", ErrInvalidCallback, i.receiver, i.method)
		}
		return adapt(m)
	case KindRef:
		if r == nil {
			return nil, fmt.Errorf("%w: no resolver for %s", ErrUnresolvable, i.key)
		}
		return r.Resolve(i.typeName, i.method)
	default:
		return nil, fmt.Errorf("%w: empty handler", ErrInvalidCallback)
	}
}

// adapt converts an arbitrary function value into a HandlerFunc.
func adapt(v reflect.Value) (HandlerFunc, error) {
	if !v.IsValid() || v.Kind() != reflect.Func {
		return nil, fmt.Errorf("%w: not a function", ErrInvalidCallback)
	}
	if fn, ok := v.Interface().(HandlerFunc); ok {
		return fn, nil
	}
	if fn, ok := v.Interface().(func(context.Context, ...any) (any, error)); ok {
		return fn, nil
	}

	t := v.Type()
	switch t.NumOut() {
	case 0, 1:
	case 2:
		if t.Out(1) != errorType {
			return nil, fmt.Errorf("%w: second return value of %s must be error", ErrInvalidCallback, t)
		}
	default:
		return nil, fmt.Errorf("%w: %s returns too many values", ErrInvalidCallback, t)
	}

	takesCtx := t.NumIn() > 0 && t.In(0) == contextType
	offset := 0
	if takesCtx {
		offset = 1
	}

	return func(ctx context.Context, args ...any) (any, error) {
		in := make([]reflect.Value, 0, t.NumIn()+len(args))
		if takesCtx {
			in = append(in, reflect.ValueOf(&ctx).Elem())
		}

		fixed := t.NumIn() - offset
		if t.IsVariadic() {
			fixed--
		}
		if len(args) < fixed {
			return nil, fmt.Errorf("%w: %s expects %d arguments, got %d", ErrInvalidCallback, t, fixed, len(args))
		}
		for n := 0; n < fixed; n++ {
			av, err := convertArg(args[n], t.In(offset+n))
			if err != nil {
				return nil, err
			}
			in = append(in, av)
		}
		if t.IsVariadic() {
			elem := t.In(t.NumIn() - 1).Elem()
			for _, a := range args[fixed:] {
				av, err := convertArg(a, elem)
				if err != nil {
					return nil, err
				}
				in = append(in, av)
			}
		}

		out := v.Call(in)
		return splitResults(out)
	}, nil
}

// convertArg converts a dynamic argument to the parameter type t.
func convertArg(arg any, t reflect.Type) (reflect.Value, error) {
	if arg == nil {
		return reflect.Zero(t), nil
	}
	av := reflect.ValueOf(arg)
	if av.Type().AssignableTo(t) {
		return av, nil
	}
	if isNumeric(av.Kind()) && isNumeric(t.Kind()) {
		return av.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("%w: cannot use %T as %s", ErrInvalidCallback, arg, t)
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// splitResults maps the reflected return values onto (value, error).
func splitResults(out []reflect.Value) (any, error) {
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if out[0].Type() == errorType {
			if out[0].IsNil() {
				return nil, nil
			}
			return nil, out[0].Interface().(error)
		}
		return out[0].Interface(), nil
	default:
		var err error
		if !out[1].IsNil() {
			err = out[1].Interface().(error)
		}
		return out[0].Interface(), err
	}
}
