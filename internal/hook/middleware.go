package hook

import (
	"context"
)

// Middleware gates a single entry before its handler runs. Returning false
// vetoes the current entry only; other entries for the same name still run.
type Middleware func(ctx context.Context, name, entryID string, args []any) bool

// Chain is an ordered list of middleware. All must approve.
type Chain []Middleware

// Allow evaluates the chain in order and stops at the first veto. A
// panicking middleware counts as a veto and is reported as a
// *MiddlewareError.
func (c Chain) Allow(ctx context.Context, name, entryID string, args []any) (bool, error) {
	for i, m := range c {
		ok, err := c.call(ctx, i, m, name, entryID, args)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (c Chain) call(ctx context.Context, index int, m Middleware, name, entryID string, args []any) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = &MiddlewareError{
				HookName: name,
				EntryID:  entryID,
				Index:    index,
				Value:    r,
			}
		}
	}()
	return m(ctx, name, entryID, args), nil
}
