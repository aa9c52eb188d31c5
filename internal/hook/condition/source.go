package condition

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Source resolves configuration values for config conditions.
type Source interface {
	Lookup(key string) (any, bool)
}

// MapSource looks keys up as dotted paths in nested maps.
type MapSource map[string]any

// Lookup implements Source.
func (m MapSource) Lookup(key string) (any, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	var cur any = map[string]any(m)
	for _, part := range strings.Split(key, ".") {
		node, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = node[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// JSONSource looks keys up in a JSON document using gjson path syntax.
type JSONSource struct {
	doc string
}

// NewJSONSource wraps a JSON document.
func NewJSONSource(doc []byte) JSONSource {
	return JSONSource{doc: string(doc)}
}

// Lookup implements Source.
func (s JSONSource) Lookup(key string) (any, bool) {
	r := gjson.Get(s.doc, key)
	if !r.Exists() {
		return nil, false
	}
	return r.Value(), true
}

// Sources consults each source in order.
type Sources []Source

// Lookup implements Source.
func (s Sources) Lookup(key string) (any, bool) {
	for _, src := range s {
		if src == nil {
			continue
		}
		if v, ok := src.Lookup(key); ok {
			return v, true
		}
	}
	return nil, false
}
