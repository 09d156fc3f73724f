package sqlitestore

import "context"

// Callback receives the outcome of a CallbackStore call. result is nil for
// operations without a value and for absent records.
type Callback func(err error, result any)

// CallbackStore exposes a SessionStore through completion callbacks for
// session layers written in continuation style. Every method also returns its
// outcome directly, so callers may use either. When a callback is given it is
// invoked exactly once; without one the error is only returned.
type CallbackStore struct {
	store SessionStore
	ctx   context.Context
}

// NewCallbackStore wraps store. ctx is passed to every underlying call; nil
// means context.Background().
func NewCallbackStore(ctx context.Context, store SessionStore) *CallbackStore {
	if ctx == nil {
		ctx = context.Background()
	}
	return &CallbackStore{store: store, ctx: ctx}
}

func complete(cbs []Callback, result any, err error) (any, error) {
	// only the first callback is honored, matching a single trailing argument
	if len(cbs) > 0 && cbs[0] != nil {
		cbs[0](err, result)
	}
	return result, err
}

// Get yields the active value for id, or nil when absent
func (c *CallbackStore) Get(id string, cb ...Callback) (any, error) {
	value, found, err := c.store.GetWithContext(c.ctx, id)
	if err != nil || !found {
		value = nil
	}
	return complete(cb, value, err)
}

func (c *CallbackStore) Set(id string, value any, cb ...Callback) error {
	_, err := complete(cb, nil, c.store.SetWithContext(c.ctx, id, value))
	return err
}

func (c *CallbackStore) Destroy(id string, cb ...Callback) error {
	_, err := complete(cb, nil, c.store.DestroyWithContext(c.ctx, id))
	return err
}

func (c *CallbackStore) Touch(id string, value any, cb ...Callback) error {
	_, err := complete(cb, nil, c.store.TouchWithContext(c.ctx, id, value))
	return err
}

// Length yields the active record count as an int
func (c *CallbackStore) Length(cb ...Callback) (int, error) {
	n, err := c.store.LengthWithContext(c.ctx)
	if err != nil {
		_, err = complete(cb, nil, err)
		return 0, err
	}
	_, err = complete(cb, n, nil)
	return n, err
}

// All yields a []any of active values ordered by id
func (c *CallbackStore) All(cb ...Callback) ([]any, error) {
	values, err := c.store.AllWithContext(c.ctx)
	if err != nil {
		_, err = complete(cb, nil, err)
		return nil, err
	}
	_, err = complete(cb, values, nil)
	return values, err
}

func (c *CallbackStore) Clear(cb ...Callback) error {
	_, err := complete(cb, nil, c.store.ClearWithContext(c.ctx))
	return err
}
