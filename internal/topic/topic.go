package topic

import "strings"

// Topic is a dotted hook name or pattern.
type Topic string

// Wildcards and separator.
const (
	// WildcardSingle matches exactly one segment.
	WildcardSingle = "*"

	// WildcardMulti matches zero or more segments.
	WildcardMulti = "**"

	// Separator separates segments.
	Separator = "."
)

// String returns the topic as a string.
func (t Topic) String() string {
	return string(t)
}

// Segments returns the topic split by the separator.
func (t Topic) Segments() []string {
	if t == "" {
		return nil
	}
	return strings.Split(string(t), Separator)
}

// IsWildcard returns true if any segment is a wildcard.
func (t Topic) IsWildcard() bool {
	for _, seg := range t.Segments() {
		if seg == WildcardSingle || seg == WildcardMulti {
			return true
		}
	}
	return false
}

// IsValid returns true if the topic is non-empty and has no empty segments.
func (t Topic) IsValid() bool {
	if t == "" {
		return false
	}
	for _, seg := range t.Segments() {
		if seg == "" {
			return false
		}
	}
	return true
}

// Matches returns true if t matches pattern.
func (t Topic) Matches(pattern Topic) bool {
	return matchSegments(t.Segments(), pattern.Segments())
}

// Match is shorthand for Topic(name).Matches(Topic(pattern)).
func Match(pattern, name string) bool {
	return Topic(name).Matches(Topic(pattern))
}

func matchSegments(name, pattern []string) bool {
	ni, pi := 0, 0

	for pi < len(pattern) {
		if pattern[pi] == WildcardMulti {
			for ni <= len(name) {
				if matchSegments(name[ni:], pattern[pi+1:]) {
					return true
				}
				ni++
			}
			return false
		}

		if ni >= len(name) {
			return false
		}

		if pattern[pi] != WildcardSingle && pattern[pi] != name[ni] {
			return false
		}
		ni++
		pi++
	}

	return ni == len(name)
}
