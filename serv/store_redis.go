package serv

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Hardcoded constants for store behavior
const (
	cachePrefix          = "fc:cache"             // Redis key prefix
	compressionThreshold = 1024                   // Only compress > 1KB
	redisTimeout         = 100 * time.Millisecond // Redis operation timeout
	redisRetryInterval   = 30 * time.Second       // Retry interval when Redis unavailable
)

// Redis key prefixes
const (
	valKeyPrefix = "val:"
	tagKeyPrefix = "tag:"
)

// CacheEntry is the stored envelope around a cached field result
type CacheEntry struct {
	Data         []byte   `json:"d"`
	Compressed   bool     `json:"c,omitempty"`
	OriginalSize int      `json:"o,omitempty"`
	Tags         []string `json:"t,omitempty"`
	FreshUntil   int64    `json:"f"`
	StaleUntil   int64    `json:"s"`
}

// RedisStore provides Redis-backed field-result caching with tag sets for
// bulk invalidation. Values are stored as JSON; Get returns the raw JSON
// payload, so values must be JSON-serializable and callers decode as needed.
type RedisStore struct {
	client      *redis.Client
	conf        CachingConfig
	log         *zap.Logger
	metrics     *CacheMetrics
	available   atomic.Bool
	lastCheck   atomic.Int64
	excludeType map[string]bool

	// OpenTelemetry metric instruments
	otelHitCounter          metric.Int64Counter
	otelMissCounter         metric.Int64Counter
	otelInvalidationCounter metric.Int64Counter
	otelErrorCounter        metric.Int64Counter
	otelBytesCachedGauge    metric.Int64UpDownCounter
	otelBytesSavedGauge     metric.Int64UpDownCounter
}

// NewRedisStore creates a new Redis store instance
func NewRedisStore(redisURL string, conf CachingConfig, log *zap.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if conf.TTL <= 0 {
		return nil, fmt.Errorf("redis store requires a positive ttl")
	}
	if log == nil {
		log = zap.NewNop()
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	rs := &RedisStore{
		client:      client,
		conf:        conf,
		log:         log,
		metrics:     &CacheMetrics{},
		excludeType: make(map[string]bool),
	}
	rs.available.Store(true)

	// Build exclude type lookup
	for _, t := range conf.ExcludeTypes {
		rs.excludeType[t] = true
	}

	// Initialize OpenTelemetry metrics
	meter := otel.Meter("fieldcache.dev/store")

	rs.otelHitCounter, _ = meter.Int64Counter("fieldcache.store.hits",
		metric.WithDescription("Number of cache hits"))
	rs.otelMissCounter, _ = meter.Int64Counter("fieldcache.store.misses",
		metric.WithDescription("Number of cache misses"))
	rs.otelInvalidationCounter, _ = meter.Int64Counter("fieldcache.store.invalidations",
		metric.WithDescription("Number of cache invalidations"))
	rs.otelErrorCounter, _ = meter.Int64Counter("fieldcache.store.errors",
		metric.WithDescription("Number of cache errors"))
	rs.otelBytesCachedGauge, _ = meter.Int64UpDownCounter("fieldcache.store.bytes_cached",
		metric.WithDescription("Total bytes stored in cache"))
	rs.otelBytesSavedGauge, _ = meter.Int64UpDownCounter("fieldcache.store.bytes_saved",
		metric.WithDescription("Bytes saved via compression"))

	return rs, nil
}

// Key building methods
func (rs *RedisStore) valKey(key string) string {
	return cachePrefix + ":" + valKeyPrefix + key
}

func (rs *RedisStore) tagKey(tag string) string {
	return cachePrefix + ":" + tagKeyPrefix + tag
}

// Get retrieves a cached value by key
func (rs *RedisStore) Get(ctx context.Context, key string) (interface{}, bool, error) {
	entry, found := rs.getEntry(ctx, key)
	if !found {
		return nil, false, nil
	}
	return json.RawMessage(entry.Data), true, nil
}

// GetTagged retrieves a cached value only when the entry was stored under
// every requested tag
func (rs *RedisStore) GetTagged(ctx context.Context, tags []string, key string) (interface{}, bool, error) {
	entry, found := rs.getEntry(ctx, key)
	if !found {
		return nil, false, nil
	}

	stored := make(map[string]bool, len(entry.Tags))
	for _, t := range entry.Tags {
		stored[t] = true
	}
	for _, tag := range tags {
		if rs.excludeType[typeOfTag(tag)] {
			continue
		}
		if !stored[tag] {
			rs.recordMiss(ctx)
			return nil, false, nil
		}
	}

	return json.RawMessage(entry.Data), true, nil
}

// getEntry fetches and unwraps a stored envelope. Any failure reads as a
// miss; the caching layer never depends on Redis being up.
func (rs *RedisStore) getEntry(ctx context.Context, key string) (*CacheEntry, bool) {
	if !rs.isAvailable() {
		rs.maybeRetryConnection()
		return nil, false
	}

	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	data, err := rs.client.Get(ctx, rs.valKey(key)).Bytes()
	if err == redis.Nil {
		rs.recordMiss(ctx)
		return nil, false
	}
	if err != nil {
		rs.handleError(err)
		rs.recordMiss(ctx)
		return nil, false
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		rs.recordMiss(ctx)
		return nil, false
	}

	// Expired (past hard TTL)
	if time.Now().Unix() >= entry.StaleUntil {
		rs.recordMiss(ctx)
		return nil, false
	}

	// Decompress if needed
	if entry.Compressed {
		raw, err := decompress(entry.Data)
		if err != nil {
			rs.recordError(ctx)
			return nil, false
		}
		entry.Data = raw
	}

	rs.recordHit(ctx)
	return &entry, true
}

// Put stores a value with its invalidation tags
func (rs *RedisStore) Put(ctx context.Context, key string, value interface{}, tags []string) error {
	if !rs.isAvailable() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("value not serializable: %w", err)
	}

	filtered := rs.filterExcludedTypes(tags)

	// Compress if beneficial
	compressed := false
	originalSize := len(data)

	if len(data) > compressionThreshold {
		compData, err := compress(data)
		if err == nil && len(compData) < len(data) {
			saved := int64(len(data) - len(compData))
			rs.metrics.BytesSaved.Add(saved)
			if rs.otelBytesSavedGauge != nil {
				rs.otelBytesSavedGauge.Add(ctx, saved)
			}
			data = compData
			compressed = true
		}
	}

	now := time.Now()
	ttl := time.Duration(rs.conf.TTL) * time.Second
	freshTTL := time.Duration(rs.conf.FreshTTL) * time.Second
	if freshTTL == 0 {
		freshTTL = ttl
	}

	entry := CacheEntry{
		Data:         data,
		Compressed:   compressed,
		OriginalSize: originalSize,
		Tags:         filtered,
		FreshUntil:   now.Add(freshTTL).Unix(),
		StaleUntil:   now.Add(ttl).Unix(),
	}

	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	pipe := rs.client.Pipeline()

	// Store value
	pipe.Set(ctx, rs.valKey(key), entryJSON, ttl)

	// Index under tags for bulk invalidation
	for _, tag := range filtered {
		tagKey := rs.tagKey(tag)
		pipe.SAdd(ctx, tagKey, key)
		pipe.Expire(ctx, tagKey, ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		rs.handleError(err)
		rs.recordError(ctx)
		return err
	}

	cached := int64(len(entryJSON))
	rs.metrics.BytesCached.Add(cached)
	if rs.otelBytesCachedGauge != nil {
		rs.otelBytesCachedGauge.Add(ctx, cached)
	}
	return nil
}

// InvalidateTags drops every entry indexed under any of the given tags
func (rs *RedisStore) InvalidateTags(ctx context.Context, tags []string) error {
	if !rs.isAvailable() || len(tags) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, redisTimeout*2) // Allow more time for invalidation
	defer cancel()

	keysToDelete := make(map[string]bool)
	for _, tag := range tags {
		keys, err := rs.client.SMembers(ctx, rs.tagKey(tag)).Result()
		if err != nil && err != redis.Nil {
			continue
		}
		for _, key := range keys {
			keysToDelete[key] = true
		}
	}

	if len(keysToDelete) == 0 {
		return nil
	}

	pipe := rs.client.Pipeline()
	for key := range keysToDelete {
		pipe.Del(ctx, rs.valKey(key))
	}
	for _, tag := range tags {
		pipe.Del(ctx, rs.tagKey(tag))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		rs.handleError(err)
		rs.recordError(ctx)
		return err
	}

	rs.recordInvalidation(ctx, int64(len(keysToDelete)))
	return nil
}

// filterExcludedTypes removes tags for excluded entity types
func (rs *RedisStore) filterExcludedTypes(tags []string) []string {
	if len(rs.excludeType) == 0 {
		return tags
	}

	filtered := make([]string, 0, len(tags))
	for _, tag := range tags {
		if !rs.excludeType[typeOfTag(tag)] {
			filtered = append(filtered, tag)
		}
	}
	return filtered
}

// Availability management
func (rs *RedisStore) isAvailable() bool {
	return rs.available.Load()
}

func (rs *RedisStore) handleError(err error) {
	if err != nil {
		rs.log.Debug("redis store error", zap.Error(err))
		rs.available.Store(false)
		rs.lastCheck.Store(time.Now().Unix())
	}
}

func (rs *RedisStore) maybeRetryConnection() {
	if rs.isAvailable() {
		return
	}

	lastCheck := rs.lastCheck.Load()
	if time.Now().Unix()-lastCheck < int64(redisRetryInterval.Seconds()) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	if err := rs.client.Ping(ctx).Err(); err == nil {
		rs.available.Store(true)
	}
	rs.lastCheck.Store(time.Now().Unix())
}

// Metric recording helpers (record both internal metrics and OTel metrics)
func (rs *RedisStore) recordHit(ctx context.Context) {
	rs.metrics.Hits.Add(1)
	if rs.otelHitCounter != nil {
		rs.otelHitCounter.Add(ctx, 1)
	}
}

func (rs *RedisStore) recordMiss(ctx context.Context) {
	rs.metrics.Misses.Add(1)
	if rs.otelMissCounter != nil {
		rs.otelMissCounter.Add(ctx, 1)
	}
}

func (rs *RedisStore) recordError(ctx context.Context) {
	rs.metrics.Errors.Add(1)
	if rs.otelErrorCounter != nil {
		rs.otelErrorCounter.Add(ctx, 1)
	}
}

func (rs *RedisStore) recordInvalidation(ctx context.Context, count int64) {
	rs.metrics.Invalidations.Add(count)
	if rs.otelInvalidationCounter != nil {
		rs.otelInvalidationCounter.Add(ctx, count)
	}
}

// Metrics returns the cache metrics
func (rs *RedisStore) Metrics() *CacheMetrics {
	return rs.metrics
}

// Close closes the Redis connection
func (rs *RedisStore) Close() error {
	return rs.client.Close()
}

// Compression helpers using gzip
func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
