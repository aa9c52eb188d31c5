package hook

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Resolver turns a type name and method name into a callable handler.
// Implementations return an error wrapping ErrUnresolvable when they do
// not know typeName, so that a ResolverChain can try the next resolver.
type Resolver interface {
	Resolve(typeName, method string) (HandlerFunc, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(typeName, method string) (HandlerFunc, error)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(typeName, method string) (HandlerFunc, error) {
	return f(typeName, method)
}

// ResolverChain consults resolvers in order until one knows the type.
type ResolverChain []Resolver

// Resolve implements Resolver.
func (c ResolverChain) Resolve(typeName, method string) (HandlerFunc, error) {
	for _, r := range c {
		if r == nil {
			continue
		}
		fn, err := r.Resolve(typeName, method)
		if err == nil {
			return fn, nil
		}
		if !errors.Is(err, ErrUnresolvable) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %s@%s", ErrUnresolvable, typeName, method)
}

// Factory builds a fresh instance of a registered type.
type Factory func() (any, error)

// Container maps type names to factories or shared instances, and resolves
// Ref invocables by looking the method up on the produced value.
type Container struct {
	mu        sync.RWMutex
	factories map[string]Factory
	instances map[string]any
}

// NewContainer creates an empty container.
func NewContainer() *Container {
	return &Container{
		factories: make(map[string]Factory),
		instances: make(map[string]any),
	}
}

// Bind registers a factory for typeName. Each resolution calls it again.
func (c *Container) Bind(typeName string, f Factory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories[typeName] = f
	delete(c.instances, typeName)
}

// Instance registers a shared value for typeName.
func (c *Container) Instance(typeName string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.instances[typeName] = v
	delete(c.factories, typeName)
}

// Has returns true if typeName is registered.
func (c *Container) Has(typeName string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.instances[typeName]
	if !ok {
		_, ok = c.factories[typeName]
	}
	return ok
}

// Types returns the registered type names in sorted order.
func (c *Container) Types() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.instances)+len(c.factories))
	for name := range c.instances {
		names = append(names, name)
	}
	for name := range c.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Make returns an instance of typeName.
func (c *Container) Make(typeName string) (any, error) {
	c.mu.RLock()
	inst, shared := c.instances[typeName]
	factory, bound := c.factories[typeName]
	c.mu.RUnlock()

	switch {
	case shared:
		return inst, nil
	case bound:
		v, err := factory()
		if err != nil {
			return nil, fmt.Errorf("instantiating %s: %w", typeName, err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %s", ErrUnresolvable, typeName)
	}
}

// Resolve implements Resolver.
func (c *Container) Resolve(typeName, method string) (HandlerFunc, error) {
	v, err := c.Make(typeName)
	if err != nil {
		return nil, err
	}
	m := reflect.ValueOf(v).MethodByName(method)
	if !m.IsValid() {
		return nil, fmt.Errorf("%w: %s has no method %s", ErrInvalidCallback, typeName, method)
	}
	return adapt(m)
}
