package condition

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dshills/hookwire/internal/hook"
	"github.com/dshills/hookwire/internal/topic"
)

// Policy decides the outcome of descriptors that cannot be evaluated.
type Policy int

const (
	// FailOpen treats unknown types, unknown operators and bad values as
	// passing.
	FailOpen Policy = iota

	// FailClosed treats them as failing.
	FailClosed
)

// String returns the policy name.
func (p Policy) String() string {
	if p == FailClosed {
		return "fail-closed"
	}
	return "fail-open"
}

// ParsePolicy parses "fail-open" or "fail-closed" (also "open"/"closed").
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "open", "fail-open", "fail_open":
		return FailOpen, nil
	case "closed", "fail-closed", "fail_closed":
		return FailClosed, nil
	}
	return FailOpen, fmt.Errorf("%w: policy %q", ErrInvalidValue, s)
}

// Evaluator evaluates descriptor lists against a Context.
type Evaluator struct {
	base   Context
	policy Policy
	strict *topic.Matcher
	logger zerolog.Logger

	mu         sync.RWMutex
	predicates map[string]Predicate
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithPolicy sets the default policy.
func WithPolicy(p Policy) Option {
	return func(e *Evaluator) {
		e.policy = p
	}
}

// WithStrictNames makes hook names matching any of patterns fail closed.
// Patterns use topic wildcards.
func WithStrictNames(patterns ...string) Option {
	return func(e *Evaluator) {
		for _, p := range patterns {
			if p = strings.TrimSpace(p); p != "" {
				e.strict.Add(topic.Topic(p))
			}
		}
	}
}

// WithBaseContext sets the Context used when the call context carries none.
func WithBaseContext(c Context) Option {
	return func(e *Evaluator) {
		e.base = c
	}
}

// WithLogger sets the evaluator logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Evaluator) {
		e.logger = l.With().Str("component", "condition").Logger()
	}
}

// WithPredicate registers a named predicate for custom descriptors.
func WithPredicate(name string, p Predicate) Option {
	return func(e *Evaluator) {
		e.predicates[name] = p
	}
}

// NewEvaluator creates an evaluator.
func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{
		policy:     FailOpen,
		strict:     topic.NewMatcher(),
		logger:     zerolog.Nop(),
		predicates: make(map[string]Predicate),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RegisterPredicate adds or replaces a named predicate.
func (e *Evaluator) RegisterPredicate(name string, p Predicate) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.predicates[name] = p
}

// Policy returns the policy that applies to name.
func (e *Evaluator) Policy(name string) Policy {
	if e.strict.Any(topic.Topic(name)) {
		return FailClosed
	}
	return e.policy
}

// ContextFor returns the Context carried by ctx, or the base context.
func (e *Evaluator) ContextFor(ctx context.Context) Context {
	if c, ok := FromContext(ctx); ok {
		return c
	}
	return e.base
}

// Evaluate reports whether every descriptor passes for the given dispatch.
func (e *Evaluator) Evaluate(ctx context.Context, descs []Descriptor, name, entryID string, args []any) bool {
	c := e.ContextFor(ctx)
	for _, d := range descs {
		pass, err := e.evaluate(c, d, name, entryID, args)
		if err != nil {
			policy := e.Policy(name)
			e.logger.Warn().Err(err).Str("hook", name).Str("id", entryID).
				Str("condition", d.String()).Str("policy", policy.String()).
				Msg("condition could not be evaluated")
			if policy == FailClosed {
				return false
			}
			continue
		}
		if !pass {
			return false
		}
	}
	return true
}

// Middleware wraps descs as one hook middleware.
func (e *Evaluator) Middleware(descs []Descriptor) hook.Middleware {
	list := make([]Descriptor, len(descs))
	copy(list, descs)
	return func(ctx context.Context, name, entryID string, args []any) bool {
		return e.Evaluate(ctx, list, name, entryID, args)
	}
}

func (e *Evaluator) evaluate(c Context, d Descriptor, name, entryID string, args []any) (bool, error) {
	switch d.Type {
	case TypeEnvironment:
		return compare(d.Operator, c.Environment, d.Value)

	case TypeAuth:
		expected := d.Value
		if expected == nil {
			expected = true
		}
		return compare(d.Operator, c.Auth.Authenticated, expected)

	case TypeRole:
		return evaluateRole(c.Auth, d)

	case TypeConfig:
		if c.Config == nil {
			return false, nil
		}
		if d.Key == "" {
			key, ok := d.Value.(string)
			if !ok {
				return false, fmt.Errorf("%w: config condition needs a key", ErrInvalidValue)
			}
			v, _ := c.Config.Lookup(key)
			return truthy(v), nil
		}
		v, _ := c.Config.Lookup(d.Key)
		if d.Value == nil && (d.Operator == OpEq || d.Operator == "") {
			return truthy(v), nil
		}
		return compare(d.Operator, v, d.Value)

	case TypeTime:
		return evaluateTime(c.now(), d)

	case TypeCustom:
		p := d.Custom
		if p == nil {
			if ref, ok := d.Value.(string); ok {
				e.mu.RLock()
				p = e.predicates[ref]
				e.mu.RUnlock()
			}
		}
		if p == nil {
			return false, nil
		}
		return p(name, entryID, args), nil

	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownType, d.Type)
	}
}

// evaluateRole uses membership semantics: eq and contains require the
// role, neq requires its absence, in requires any listed role and not_in
// requires none of them.
func evaluateRole(a AuthState, d Descriptor) (bool, error) {
	switch d.Operator {
	case OpEq, OpContains, "":
		return a.HasRole(toString(d.Value)), nil
	case OpNeq:
		return !a.HasRole(toString(d.Value)), nil
	case OpIn, OpNotIn:
		list, ok := toList(d.Value)
		if !ok {
			return false, fmt.Errorf("%w: role %s needs a list", ErrInvalidValue, d.Operator)
		}
		has := false
		for _, r := range list {
			if a.HasRole(toString(r)) {
				has = true
				break
			}
		}
		return has == (d.Operator == OpIn), nil
	default:
		return false, fmt.Errorf("%w: %q for role", ErrUnknownOperator, d.Operator)
	}
}

// evaluateTime compares now against an absolute time or a time of day.
func evaluateTime(now time.Time, d Descriptor) (bool, error) {
	if d.Operator == OpIn || d.Operator == OpNotIn {
		list, ok := toList(d.Value)
		if !ok || len(list) != 2 {
			return false, fmt.Errorf("%w: time window needs two bounds", ErrInvalidValue)
		}
		inside, err := within(now, list[0], list[1])
		if err != nil {
			return false, err
		}
		return inside == (d.Operator == OpIn), nil
	}

	if minutes, ok := clockMinutes(d.Value); ok {
		return compare(d.Operator, now.Hour()*60+now.Minute(), minutes)
	}
	t, err := absolute(d.Value)
	if err != nil {
		return false, err
	}
	return compare(d.Operator, now, t)
}

// within reports whether now lies in [from, to]. Time-of-day windows may
// wrap midnight.
func within(now time.Time, from, to any) (bool, error) {
	fm, fok := clockMinutes(from)
	tm, tok := clockMinutes(to)
	if fok && tok {
		cur := now.Hour()*60 + now.Minute()
		if fm <= tm {
			return cur >= fm && cur <= tm, nil
		}
		return cur >= fm || cur <= tm, nil
	}

	ft, err := absolute(from)
	if err != nil {
		return false, err
	}
	tt, err := absolute(to)
	if err != nil {
		return false, err
	}
	return !now.Before(ft) && !now.After(tt), nil
}

// clockMinutes parses "HH:MM" into minutes after midnight.
func clockMinutes(v any) (int, bool) {
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(h) == 0 || len(h) > 2 || len(m) != 2 {
		return 0, false
	}
	hh, err := strconv.Atoi(h)
	if err != nil || hh < 0 || hh > 23 {
		return 0, false
	}
	mm, err := strconv.Atoi(m)
	if err != nil || mm < 0 || mm > 59 {
		return 0, false
	}
	return hh*60 + mm, true
}

func absolute(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(t))
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q is not RFC3339 or HH:MM", ErrInvalidValue, t)
		}
		return parsed, nil
	}
	return time.Time{}, fmt.Errorf("%w: cannot use %T as time", ErrInvalidValue, v)
}
