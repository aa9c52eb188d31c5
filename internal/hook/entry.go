package hook

import (
	"time"
)

// Defaults applied at registration.
const (
	// DefaultPriority is used when no priority is given. Lower runs earlier.
	DefaultPriority = 10

	// DefaultGroup is used when no group is given.
	DefaultGroup = "default"
)

// Entry is one registered handler for one hook name.
//
// Entries returned by the Registry are copies; changing them has no effect
// on the registry.
type Entry struct {
	ID           string
	Name         string
	Handler      Invocable
	Priority     int
	Group        string
	Enabled      bool
	CreatedAt    time.Time
	CallCount    uint64
	LastCalledAt *time.Time
	Metadata     map[string]any

	// seq is the registration sequence used to break priority ties.
	seq uint64
}

// Sequence returns the registration sequence number of the entry.
func (e Entry) Sequence() uint64 { return e.seq }

// clone returns a deep enough copy that callers cannot mutate registry state.
func (e *Entry) clone() Entry {
	c := *e
	if e.LastCalledAt != nil {
		t := *e.LastCalledAt
		c.LastCalledAt = &t
	}
	if e.Metadata != nil {
		c.Metadata = make(map[string]any, len(e.Metadata))
		for k, v := range e.Metadata {
			c.Metadata[k] = v
		}
	}
	return c
}

// before reports whether e sorts ahead of o within a bucket.
func (e *Entry) before(o *Entry) bool {
	if e.Priority != o.Priority {
		return e.Priority < o.Priority
	}
	return e.seq < o.seq
}
