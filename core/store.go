package core

import "context"

// Store is the key-value capability the interceptor caches through.
// This is implemented by the service layer (serv package) with in-memory
// and Redis backends; tests supply fakes.
//
// Store errors never fail a query: the interceptor treats a failed read as
// a miss and a failed write as a no-op.
type Store interface {
	// Get retrieves a cached value by key. The boolean result indicates
	// presence.
	Get(ctx context.Context, key string) (interface{}, bool, error)

	// GetTagged retrieves a cached value by key, scoped to entries carrying
	// all of the given tags. An entry stored without them reads as absent.
	GetTagged(ctx context.Context, tags []string, key string) (interface{}, bool, error)

	// Put stores a value under key, indexed under tags for bulk
	// invalidation. Tags may be empty when tagging is disabled.
	Put(ctx context.Context, key string, value interface{}, tags []string) error
}
