package core

import "context"

// Deferred is a lazily-produced resolver result, typically a batched load or
// a pagination fetch coalesced across a resolution wave. The cache must only
// ever hold materialized values, so the interceptor resolves these fully
// before any store write.
type Deferred interface {
	Resolve(ctx context.Context) (interface{}, error)
}

// Thunk adapts a plain function to Deferred
type Thunk func(ctx context.Context) (interface{}, error)

// Resolve invokes the thunk
func (t Thunk) Resolve(ctx context.Context) (interface{}, error) {
	return t(ctx)
}

// materialize resolves a value until it is no longer deferred. Collections
// are walked one level deep so a batch of per-row thunks ends up as plain
// values before storage.
func materialize(ctx context.Context, v interface{}) (interface{}, error) {
	for {
		d, ok := v.(Deferred)
		if !ok {
			break
		}
		rv, err := d.Resolve(ctx)
		if err != nil {
			return nil, err
		}
		v = rv
	}

	if items, ok := v.([]interface{}); ok {
		for i, item := range items {
			mi, err := materialize(ctx, item)
			if err != nil {
				return nil, err
			}
			items[i] = mi
		}
	}

	return v, nil
}
