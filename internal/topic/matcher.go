package topic

import (
	"sort"
	"sync"
)

// Matcher finds the stored patterns that match a concrete name.
// It is safe for concurrent use.
type Matcher struct {
	mu   sync.RWMutex
	root *trieNode
	size int
}

type trieNode struct {
	children map[string]*trieNode
	patterns []Topic
}

func newTrieNode() *trieNode {
	return &trieNode{children: make(map[string]*trieNode)}
}

// NewMatcher creates an empty matcher.
func NewMatcher() *Matcher {
	return &Matcher{root: newTrieNode()}
}

// Add stores a pattern. Adding an existing pattern is a no-op.
func (m *Matcher) Add(pattern Topic) {
	if pattern == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	node := m.root
	for _, seg := range pattern.Segments() {
		child := node.children[seg]
		if child == nil {
			child = newTrieNode()
			node.children[seg] = child
		}
		node = child
	}

	for _, p := range node.patterns {
		if p == pattern {
			return
		}
	}
	node.patterns = append(node.patterns, pattern)
	m.size++
}

// Remove deletes a pattern. Removing an unknown pattern is a no-op.
func (m *Matcher) Remove(pattern Topic) {
	if pattern == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	node := m.root
	for _, seg := range pattern.Segments() {
		node = node.children[seg]
		if node == nil {
			return
		}
	}

	for i, p := range node.patterns {
		if p == pattern {
			node.patterns = append(node.patterns[:i], node.patterns[i+1:]...)
			m.size--
			return
		}
	}
}

// Match returns the stored patterns matching name, sorted and de-duplicated.
func (m *Matcher) Match(name Topic) []Topic {
	if name == "" {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[Topic]bool)
	m.matchRecursive(m.root, name.Segments(), 0, seen)

	matches := make([]Topic, 0, len(seen))
	for p := range seen {
		matches = append(matches, p)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i] < matches[j] })
	return matches
}

// Any returns true if at least one stored pattern matches name.
func (m *Matcher) Any(name Topic) bool {
	return len(m.Match(name)) > 0
}

func (m *Matcher) matchRecursive(node *trieNode, segments []string, depth int, seen map[Topic]bool) {
	if node == nil {
		return
	}

	if depth == len(segments) {
		for _, p := range node.patterns {
			seen[p] = true
		}
		// a trailing ** also matches zero remaining segments
		if child := node.children[WildcardMulti]; child != nil {
			m.matchRecursive(child, segments, depth, seen)
		}
		return
	}

	if child := node.children[segments[depth]]; child != nil {
		m.matchRecursive(child, segments, depth+1, seen)
	}
	if child := node.children[WildcardSingle]; child != nil {
		m.matchRecursive(child, segments, depth+1, seen)
	}
	if child := node.children[WildcardMulti]; child != nil {
		for i := depth; i <= len(segments); i++ {
			m.matchRecursive(child, segments, i, seen)
		}
	}
}

// Count returns the number of stored patterns.
func (m *Matcher) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

// Clear removes all patterns.
func (m *Matcher) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.root = newTrieNode()
	m.size = 0
}
