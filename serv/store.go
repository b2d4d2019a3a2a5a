package serv

import (
	"context"

	"github.com/corvid-labs/fieldcache/core"
	"go.uber.org/zap"
)

// CacheStore is the service-side store contract. Both MemoryStore and
// RedisStore implement it; the core interceptor consumes the embedded
// core.Store subset.
type CacheStore interface {
	core.Store

	// InvalidateTags drops every entry indexed under any of the given tags.
	// Called by mutation handlers after an entity changes.
	InvalidateTags(ctx context.Context, tags []string) error

	// Metrics returns the cache metrics
	Metrics() *CacheMetrics

	// Close releases resources
	Close() error
}

// CachingConfig holds the cache tunables
type CachingConfig struct {
	// TaggingEnabled turns on tag indexing and tag-scoped reads
	TaggingEnabled bool `mapstructure:"tagging_enabled"`

	// TTL is the hard entry lifetime in seconds. Zero means no expiry for
	// the memory backend; the Redis backend requires a positive TTL.
	TTL int `mapstructure:"ttl"`

	// FreshTTL is the soft lifetime in seconds; entries past it read as
	// stale but present. Zero means fresh until hard TTL.
	FreshTTL int `mapstructure:"fresh_ttl"`

	// MaxEntries bounds the memory backend's LRU
	MaxEntries int `mapstructure:"max_entries"`

	// RedisURL selects the Redis backend when set
	RedisURL string `mapstructure:"redis_url"`

	// ExcludeTypes lists entity types whose tags are never indexed
	ExcludeTypes []string `mapstructure:"exclude_types"`
}

// NewStore builds the configured store backend: Redis when a URL is set,
// otherwise the in-memory LRU.
func NewStore(conf CachingConfig, log *zap.Logger) (CacheStore, error) {
	if conf.RedisURL != "" {
		return NewRedisStore(conf.RedisURL, conf, log)
	}
	return NewMemoryStore(conf, conf.MaxEntries)
}
