package core

import "sync"

// KeyComputer is the capability the interceptor needs from a per-invocation
// cache value. Implementations may compute keys however they like; the
// interceptor never assumes the default derivation ran.
type KeyComputer interface {
	// Key returns the cache key for this invocation.
	Key() (string, error)

	// IsPrivate reports whether the entry is fenced to one principal.
	IsPrivate() bool
}

// CacheValue is the default KeyComputer. It aggregates one invocation's
// entity reference, field name, argument set and privacy scope, and derives
// its key through a KeyBuilder. Immutable after construction; the key is
// computed at most once.
type CacheValue struct {
	ref     EntityRef
	field   string
	args    Args
	scope   Scope
	builder *KeyBuilder

	once sync.Once
	key  string
}

// NewCacheValue creates the default cache value for one field invocation
func NewCacheValue(ref EntityRef, field string, args Args, scope Scope, builder *KeyBuilder) *CacheValue {
	if builder == nil {
		builder = NewKeyBuilder()
	}
	return &CacheValue{
		ref:     ref,
		field:   field,
		args:    args,
		scope:   scope,
		builder: builder,
	}
}

// Key derives the cache key, memoized for the invocation's lifetime
func (cv *CacheValue) Key() (string, error) {
	cv.once.Do(func() {
		cv.key = cv.builder.Build(cv.ref, cv.field, cv.args, cv.scope)
	})
	return cv.key, nil
}

// IsPrivate reports whether the value's scope is principal-fenced
func (cv *CacheValue) IsPrivate() bool {
	return cv.scope.Private
}
