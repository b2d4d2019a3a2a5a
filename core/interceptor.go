package core

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Config is the caching layer configuration
type Config struct {
	// TaggingEnabled turns on invalidation-tag computation and tag-scoped
	// storage. Off by default.
	TaggingEnabled bool
}

// Interceptor wraps field resolvers with the cache protocol: derive the
// invocation's key, consult the store, short-circuit on hit, resolve and
// populate on miss. The cache is an optimization, never a correctness
// dependency; any store failure degrades to resolving directly.
//
// Each invocation is self-contained, so the interceptor is safe under
// concurrent sibling resolution without locking of its own. Concurrent
// misses for one key are coalesced per process so the underlying resolver
// runs once.
type Interceptor struct {
	store    Store
	registry *Registry
	schema   *Schema
	conf     Config
	log      *zap.Logger

	group singleflight.Group
}

// NewInterceptor creates a cache interceptor. The schema may be nil when the
// pipeline builds entity references itself and collection tagging is not
// wanted.
func NewInterceptor(store Store, registry *Registry, schema *Schema, conf Config, log *zap.Logger) *Interceptor {
	if registry == nil {
		registry = NewRegistry()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Interceptor{
		store:    store,
		registry: registry,
		schema:   schema,
		conf:     conf,
		log:      log,
	}
}

// Resolve executes one field through the cache protocol. Non-cacheable
// fields pass straight through to the resolver.
func (ci *Interceptor) Resolve(ctx context.Context, fc *FieldContext, resolver Resolver) (interface{}, error) {
	if !fc.Cacheable || ci.store == nil {
		return ci.resolveDirect(ctx, fc, resolver)
	}

	cv, err := ci.registry.Create(fc)
	if err != nil {
		if errors.Is(err, ErrMissingIdentity) {
			// No safe key exists for this parent. Degrade to uncached
			// rather than share a colliding key across instances.
			ci.log.Warn("cacheable field has no entity identity, skipping cache",
				zap.String("type", fc.Parent.Type),
				zap.String("field", fc.Field),
				zap.Error(err))
			return ci.resolveDirect(ctx, fc, resolver)
		}
		// Custom strategy failure is this field's resolution error;
		// sibling fields are unaffected.
		return nil, err
	}

	key, err := cv.Key()
	if err != nil {
		return nil, err
	}

	var tags []string
	if ci.conf.TaggingEnabled {
		tags = EntityTags(fc.Parent, fc.Field)
	}

	if val, ok := ci.lookup(ctx, key, tags); ok {
		return val, nil
	}

	return ci.resolveAndStore(ctx, fc, resolver, key, tags)
}

// resolveDirect runs the resolver outside the cache protocol, still
// materializing deferred results so callers see final values.
func (ci *Interceptor) resolveDirect(ctx context.Context, fc *FieldContext, resolver Resolver) (interface{}, error) {
	res, err := resolver(ctx, fc)
	if err != nil {
		return nil, err
	}
	return materialize(ctx, res)
}

// lookup performs the single store read for this invocation. Read failures
// count as misses.
func (ci *Interceptor) lookup(ctx context.Context, key string, tags []string) (interface{}, bool) {
	var (
		val   interface{}
		found bool
		err   error
	)
	if len(tags) > 0 {
		val, found, err = ci.store.GetTagged(ctx, tags, key)
	} else {
		val, found, err = ci.store.Get(ctx, key)
	}
	if err != nil {
		ci.log.Debug("cache read failed, treating as miss",
			zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return val, found
}

// resolveAndStore handles a miss: run the resolver once per key across
// concurrent callers, materialize the result fully, then write it through.
func (ci *Interceptor) resolveAndStore(
	ctx context.Context,
	fc *FieldContext,
	resolver Resolver,
	key string,
	tags []string,
) (interface{}, error) {
	res, err, _ := ci.group.Do(key, func() (interface{}, error) {
		res, err := resolver(ctx, fc)
		if err != nil {
			return nil, err
		}

		// Only final materialized values are cached, never a pending
		// computation.
		res, err = materialize(ctx, res)
		if err != nil {
			return nil, err
		}

		wtags := tags
		if ci.conf.TaggingEnabled && ci.schema != nil && fc.Returns != "" {
			wtags = append(wtags, ci.schema.ResultTags(fc.Returns, res)...)
		}

		if werr := ci.store.Put(ctx, key, res, wtags); werr != nil {
			ci.log.Debug("cache write failed, skipping",
				zap.String("key", key), zap.Error(werr))
		}
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
