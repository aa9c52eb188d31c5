package hook

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dshills/hookwire/internal/topic"
)

// Registry owns the mapping of hook name to ordered entries and the
// per-name middleware lists.
//
// Every bucket is kept sorted by priority (ascending) and then by
// registration sequence, so readers never observe an unsorted view.
// Mutations take the write lock; reads and dispatch snapshots take the
// read lock and return copies.
type Registry struct {
	mu         sync.RWMutex
	buckets    map[string][]*Entry
	middleware map[string][]Middleware
	patterns   *topic.Matcher
	seq        uint64

	logger zerolog.Logger
	now    func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		buckets:    make(map[string][]*Entry),
		middleware: make(map[string][]Middleware),
		patterns:   topic.NewMatcher(),
		logger:     zerolog.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds h under name and returns the entry id.
//
// The id is derived from name, the handler identity and the group, so
// registering the same logical handler again replaces the existing entry
// instead of adding a duplicate. A replaced entry keeps its creation time,
// call statistics and position among equal-priority entries.
func (r *Registry) Register(name string, h Invocable, opts ...RegisterOption) (string, error) {
	if name == "" {
		return "", ErrEmptyName
	}
	if err := h.Validate(); err != nil {
		return "", fmt.Errorf("registering %s: %w", name, err)
	}

	reg := defaultRegistration()
	for _, opt := range opts {
		opt(&reg)
	}
	id := EntryID(name, h.Identity(), reg.group)

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.buckets[name] {
		if e.ID != id {
			continue
		}
		e.Handler = h
		e.Priority = reg.priority
		e.Enabled = reg.enabled
		e.Metadata = reg.metadata
		r.sortBucket(name)
		r.logger.Debug().Str("hook", name).Str("id", id).Str("handler", h.String()).
			Int("priority", reg.priority).Msg("hook re-registered")
		return id, nil
	}

	r.seq++
	e := &Entry{
		ID:        id,
		Name:      name,
		Handler:   h,
		Priority:  reg.priority,
		Group:     reg.group,
		Enabled:   reg.enabled,
		CreatedAt: r.now(),
		Metadata:  reg.metadata,
		seq:       r.seq,
	}
	if _, exists := r.buckets[name]; !exists && topic.Topic(name).IsWildcard() {
		r.patterns.Add(topic.Topic(name))
	}
	r.buckets[name] = append(r.buckets[name], e)
	r.sortBucket(name)

	r.logger.Debug().Str("hook", name).Str("id", id).Str("handler", h.String()).
		Int("priority", reg.priority).Str("group", reg.group).Msg("hook registered")
	return id, nil
}

// Spec describes one registration in a batch. Callback is parsed with
// ParseCallback when Handler is zero.
type Spec struct {
	Handler  Invocable
	Callback string
	Options  []RegisterOption
}

// SpecFromString builds a Spec from a "Type@method" callback string.
func SpecFromString(callback string, opts ...RegisterOption) Spec {
	return Spec{Callback: callback, Options: opts}
}

// RegisterBatch registers every spec independently. Names are processed in
// sorted order. The ids of successful registrations are returned even when
// some fail; failures are joined into the returned error.
func (r *Registry) RegisterBatch(specs map[string]Spec) ([]string, error) {
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)

	ids := make([]string, 0, len(names))
	var errs []error
	for _, name := range names {
		spec := specs[name]
		h := spec.Handler
		if h.IsZero() && spec.Callback != "" {
			parsed, err := ParseCallback(spec.Callback)
			if err != nil {
				errs = append(errs, fmt.Errorf("registering %s: %w", name, err))
				continue
			}
			h = parsed
		}
		id, err := r.Register(name, h, spec.Options...)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ids = append(ids, id)
	}
	return ids, errors.Join(errs...)
}

// Remove drops the entry id from name, or the whole bucket when id is
// empty. It returns false if nothing matched.
func (r *Registry) Remove(name, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, ok := r.buckets[name]
	if !ok {
		return false
	}

	if id == "" {
		r.dropBucket(name)
		r.logger.Debug().Str("hook", name).Int("entries", len(bucket)).Msg("hook removed")
		return true
	}

	for i, e := range bucket {
		if e.ID != id {
			continue
		}
		bucket = append(bucket[:i], bucket[i+1:]...)
		if len(bucket) == 0 {
			r.dropBucket(name)
		} else {
			r.buckets[name] = bucket
		}
		r.logger.Debug().Str("hook", name).Str("id", id).Msg("hook entry removed")
		return true
	}
	return false
}

// RemoveByGroup removes every entry whose group is group and returns how
// many were removed. Buckets left empty are dropped.
func (r *Registry) RemoveByGroup(group string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for name, bucket := range r.buckets {
		kept := bucket[:0]
		for _, e := range bucket {
			if e.Group == group {
				removed++
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) == 0 {
			r.dropBucket(name)
		} else {
			r.buckets[name] = kept
		}
	}

	if removed > 0 {
		r.logger.Debug().Str("group", group).Int("removed", removed).Msg("hook group removed")
	}
	return removed
}

// Toggle sets the enabled flag of an entry. It returns false if the entry
// does not exist.
func (r *Registry) Toggle(name, id string, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.find(name, id)
	if e == nil {
		return false
	}
	e.Enabled = enabled
	r.logger.Debug().Str("hook", name).Str("id", id).Bool("enabled", enabled).Msg("hook toggled")
	return true
}

// Filter restricts the projection returned by Hooks. Empty fields match
// everything.
type Filter struct {
	Name  string
	Group string
}

// Hooks returns copies of the registered entries, keyed by hook name and
// in dispatch order, optionally filtered.
func (r *Registry) Hooks(f Filter) map[string][]Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string][]Entry)
	for name, bucket := range r.buckets {
		if f.Name != "" && f.Name != name {
			continue
		}
		var entries []Entry
		for _, e := range bucket {
			if f.Group != "" && f.Group != e.Group {
				continue
			}
			entries = append(entries, e.clone())
		}
		if len(entries) > 0 {
			out[name] = entries
		}
	}
	return out
}

// Entry returns a copy of one entry.
func (r *Registry) Entry(name, id string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e := r.find(name, id)
	if e == nil {
		return Entry{}, false
	}
	return e.clone(), true
}

// Names returns the registered hook names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.buckets))
	for name := range r.buckets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the total number of entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, bucket := range r.buckets {
		n += len(bucket)
	}
	return n
}

// GroupStats aggregates entries sharing a group.
type GroupStats struct {
	Count int
	Calls uint64
}

// Stats is an aggregate view over all buckets.
type Stats struct {
	TotalHooks    int
	EnabledHooks  int
	DisabledHooks int
	TotalCalls    uint64
	Names         int
	Groups        map[string]GroupStats
}

// Stats aggregates entry counts and call counts over all buckets.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Stats{
		Names:  len(r.buckets),
		Groups: make(map[string]GroupStats),
	}
	for _, bucket := range r.buckets {
		for _, e := range bucket {
			s.TotalHooks++
			if e.Enabled {
				s.EnabledHooks++
			} else {
				s.DisabledHooks++
			}
			s.TotalCalls += e.CallCount

			g := s.Groups[e.Group]
			g.Count++
			g.Calls += e.CallCount
			s.Groups[e.Group] = g
		}
	}
	return s
}

// AddMiddleware appends m to the middleware evaluated for name. Middleware
// runs in the order it was added.
func (r *Registry) AddMiddleware(name string, m Middleware) {
	if m == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.middleware[name] = append(r.middleware[name], m)
	r.logger.Debug().Str("hook", name).Int("count", len(r.middleware[name])).Msg("middleware added")
}

// Middleware returns a copy of the middleware list for name.
func (r *Registry) Middleware(name string) []Middleware {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.middleware[name]
	out := make([]Middleware, len(list))
	copy(out, list)
	return out
}

// Clear removes all entries and middleware.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buckets = make(map[string][]*Entry)
	r.middleware = make(map[string][]Middleware)
	r.patterns.Clear()
	r.logger.Debug().Msg("registry cleared")
}

// snapshot is the immutable view a dispatch iterates.
type snapshot struct {
	entries []Entry
	chains  map[string]Chain
}

// snapshot copies the bucket for name together with its middleware.
// ok is false when no bucket exists.
func (r *Registry) snapshot(name string) (snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bucket, ok := r.buckets[name]
	if !ok {
		return snapshot{}, false
	}

	s := snapshot{
		entries: make([]Entry, len(bucket)),
		chains:  map[string]Chain{name: r.chainLocked(name)},
	}
	for i, e := range bucket {
		s.entries[i] = e.clone()
	}
	return s, true
}

// snapshotMatching merges the exact bucket for name with every wildcard
// bucket whose pattern matches name.
func (r *Registry) snapshotMatching(name string) (snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := []string{}
	if _, ok := r.buckets[name]; ok {
		sources = append(sources, name)
	}
	for _, p := range r.patterns.Match(topic.Topic(name)) {
		if string(p) != name {
			sources = append(sources, string(p))
		}
	}
	if len(sources) == 0 {
		return snapshot{}, false
	}

	s := snapshot{chains: make(map[string]Chain, len(sources))}
	for _, src := range sources {
		for _, e := range r.buckets[src] {
			s.entries = append(s.entries, e.clone())
		}
		s.chains[src] = r.chainLocked(src)
	}
	sort.SliceStable(s.entries, func(i, j int) bool {
		return s.entries[i].before(&s.entries[j])
	})
	return s, true
}

// recordCall updates call statistics after a handler returned. It is a
// no-op when the entry was removed during the dispatch.
func (r *Registry) recordCall(name, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.find(name, id)
	if e == nil {
		return
	}
	now := r.now()
	e.CallCount++
	e.LastCalledAt = &now
}

// chainLocked copies the middleware of name. Caller must hold r.mu.
func (r *Registry) chainLocked(name string) Chain {
	list := r.middleware[name]
	c := make(Chain, len(list))
	copy(c, list)
	return c
}

// find returns the live entry. Caller must hold r.mu.
func (r *Registry) find(name, id string) *Entry {
	for _, e := range r.buckets[name] {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// dropBucket deletes a bucket. Caller must hold r.mu.
func (r *Registry) dropBucket(name string) {
	delete(r.buckets, name)
	if topic.Topic(name).IsWildcard() {
		r.patterns.Remove(topic.Topic(name))
	}
}

// sortBucket restores the ordering invariant. Caller must hold r.mu.
func (r *Registry) sortBucket(name string) {
	bucket := r.buckets[name]
	sort.SliceStable(bucket, func(i, j int) bool {
		return bucket[i].before(bucket[j])
	})
}
