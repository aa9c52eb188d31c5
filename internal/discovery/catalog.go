package discovery

import "sync"

// Catalog holds in-process Go hook definitions awaiting discovery.
type Catalog struct {
	mu    sync.RWMutex
	items []any
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{}
}

// Add appends definitions in order.
func (c *Catalog) Add(defs ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, defs...)
}

// Items returns the definitions in insertion order.
func (c *Catalog) Items() []any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]any, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of definitions.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
