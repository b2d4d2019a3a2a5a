package serv

import (
	"context"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Default memory store size (number of entries)
const defaultMemoryStoreSize = 10000

// memoryEntry wraps a cached field result with its tags and expiry info
type memoryEntry struct {
	value      interface{}
	tags       map[string]bool
	freshUntil int64
	staleUntil int64
	storedAt   time.Time
}

// MemoryStore provides in-memory LRU field-result caching with a tag index
// for bulk invalidation. Values are held as-is, so a hit returns the exact
// value that was stored.
type MemoryStore struct {
	cache       *lru.Cache[string, *memoryEntry]
	conf        CachingConfig
	metrics     *CacheMetrics
	excludeType map[string]bool

	// Tag index: tag -> set of entry keys
	tagIndex map[string]map[string]bool
	mu       sync.RWMutex

	// OpenTelemetry metric instruments
	otelHitCounter          metric.Int64Counter
	otelMissCounter         metric.Int64Counter
	otelInvalidationCounter metric.Int64Counter
}

// NewMemoryStore creates a new in-memory LRU store
func NewMemoryStore(conf CachingConfig, maxEntries int) (*MemoryStore, error) {
	if maxEntries <= 0 {
		maxEntries = defaultMemoryStoreSize
	}

	cache, err := lru.New[string, *memoryEntry](maxEntries)
	if err != nil {
		return nil, err
	}

	ms := &MemoryStore{
		cache:       cache,
		conf:        conf,
		metrics:     &CacheMetrics{},
		excludeType: make(map[string]bool),
		tagIndex:    make(map[string]map[string]bool),
	}

	// Build exclude type lookup
	for _, t := range conf.ExcludeTypes {
		ms.excludeType[t] = true
	}

	// Initialize OpenTelemetry metrics
	meter := otel.Meter("fieldcache.dev/store")

	ms.otelHitCounter, _ = meter.Int64Counter("fieldcache.store.hits",
		metric.WithDescription("Number of cache hits"))
	ms.otelMissCounter, _ = meter.Int64Counter("fieldcache.store.misses",
		metric.WithDescription("Number of cache misses"))
	ms.otelInvalidationCounter, _ = meter.Int64Counter("fieldcache.store.invalidations",
		metric.WithDescription("Number of cache invalidations"))

	return ms, nil
}

// Get retrieves a cached value by key
func (ms *MemoryStore) Get(ctx context.Context, key string) (interface{}, bool, error) {
	entry, ok := ms.cache.Get(key)
	if !ok {
		ms.recordMiss(ctx)
		return nil, false, nil
	}

	// Expired (past hard TTL)
	if entry.staleUntil > 0 && time.Now().Unix() >= entry.staleUntil {
		ms.cache.Remove(key)
		ms.recordMiss(ctx)
		return nil, false, nil
	}

	ms.recordHit(ctx)
	return entry.value, true, nil
}

// GetTagged retrieves a cached value only when the entry carries every
// requested tag. A tag mismatch reads as absent so results never leak
// across differently-tagged contexts.
func (ms *MemoryStore) GetTagged(ctx context.Context, tags []string, key string) (interface{}, bool, error) {
	entry, ok := ms.cache.Get(key)
	if !ok {
		ms.recordMiss(ctx)
		return nil, false, nil
	}

	if entry.staleUntil > 0 && time.Now().Unix() >= entry.staleUntil {
		ms.cache.Remove(key)
		ms.recordMiss(ctx)
		return nil, false, nil
	}

	for _, tag := range tags {
		if ms.excludeType[typeOfTag(tag)] {
			continue
		}
		if !entry.tags[tag] {
			ms.recordMiss(ctx)
			return nil, false, nil
		}
	}

	ms.recordHit(ctx)
	return entry.value, true, nil
}

// Put stores a value with its invalidation tags
func (ms *MemoryStore) Put(ctx context.Context, key string, value interface{}, tags []string) error {
	filtered := ms.filterExcludedTypes(tags)

	now := time.Now()
	entry := &memoryEntry{
		value:    value,
		tags:     make(map[string]bool, len(filtered)),
		storedAt: now,
	}

	if ms.conf.TTL > 0 {
		ttl := time.Duration(ms.conf.TTL) * time.Second
		freshTTL := time.Duration(ms.conf.FreshTTL) * time.Second
		if freshTTL == 0 {
			freshTTL = ttl
		}
		entry.freshUntil = now.Add(freshTTL).Unix()
		entry.staleUntil = now.Add(ttl).Unix()
	}

	for _, tag := range filtered {
		entry.tags[tag] = true
	}

	ms.cache.Add(key, entry)

	// Update tag index
	ms.mu.Lock()
	defer ms.mu.Unlock()

	for _, tag := range filtered {
		if ms.tagIndex[tag] == nil {
			ms.tagIndex[tag] = make(map[string]bool)
		}
		ms.tagIndex[tag][key] = true
	}

	return nil
}

// InvalidateTags drops every entry indexed under any of the given tags
func (ms *MemoryStore) InvalidateTags(ctx context.Context, tags []string) error {
	if len(tags) == 0 {
		return nil
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	keysToDelete := make(map[string]bool)
	for _, tag := range tags {
		for key := range ms.tagIndex[tag] {
			keysToDelete[key] = true
		}
		delete(ms.tagIndex, tag)
	}

	for key := range keysToDelete {
		ms.cache.Remove(key)
	}

	ms.recordInvalidation(ctx, int64(len(keysToDelete)))
	return nil
}

// filterExcludedTypes removes tags for excluded entity types
func (ms *MemoryStore) filterExcludedTypes(tags []string) []string {
	if len(ms.excludeType) == 0 {
		return tags
	}

	filtered := make([]string, 0, len(tags))
	for _, tag := range tags {
		if !ms.excludeType[typeOfTag(tag)] {
			filtered = append(filtered, tag)
		}
	}
	return filtered
}

// typeOfTag extracts the entity type segment from a "Type:id[:field]" tag
func typeOfTag(tag string) string {
	if i := strings.IndexByte(tag, ':'); i > 0 {
		return tag[:i]
	}
	return tag
}

// Metric recording helpers (record both internal metrics and OTel metrics)
func (ms *MemoryStore) recordHit(ctx context.Context) {
	ms.metrics.Hits.Add(1)
	if ms.otelHitCounter != nil {
		ms.otelHitCounter.Add(ctx, 1)
	}
}

func (ms *MemoryStore) recordMiss(ctx context.Context) {
	ms.metrics.Misses.Add(1)
	if ms.otelMissCounter != nil {
		ms.otelMissCounter.Add(ctx, 1)
	}
}

func (ms *MemoryStore) recordInvalidation(ctx context.Context, count int64) {
	ms.metrics.Invalidations.Add(count)
	if ms.otelInvalidationCounter != nil {
		ms.otelInvalidationCounter.Add(ctx, count)
	}
}

// Metrics returns the cache metrics
func (ms *MemoryStore) Metrics() *CacheMetrics {
	return ms.metrics
}

// Close purges the store
func (ms *MemoryStore) Close() error {
	ms.cache.Purge()
	return nil
}
