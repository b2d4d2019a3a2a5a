package core

import (
	"fmt"
	"sync"
)

// StrategyFactory produces the KeyComputer for one cacheable-field
// invocation. The default factory builds a CacheValue over the KeyBuilder;
// deployments may install a replacement to compute keys from their own
// business logic.
type StrategyFactory func(fc *FieldContext) (KeyComputer, error)

// Registry holds the key-computation strategy in effect. It is an explicit
// dependency of the interceptor rather than package-global state so tests
// and embedders control its lifecycle. Swapping the factory is meant for
// process-init or test-setup boundaries, not live request handling.
type Registry struct {
	mu      sync.RWMutex
	factory StrategyFactory
}

// NewRegistry creates a registry holding the default strategy
func NewRegistry() *Registry {
	builder := NewKeyBuilder()
	return &Registry{
		factory: func(fc *FieldContext) (KeyComputer, error) {
			return defaultStrategy(fc, builder)
		},
	}
}

// defaultStrategy builds the default CacheValue for an invocation. A typed
// parent without a resolved identity cannot be keyed safely; that is the
// reportable construction error the interceptor degrades on.
func defaultStrategy(fc *FieldContext, builder *KeyBuilder) (KeyComputer, error) {
	if fc.Parent.Type != "" && !fc.Parent.HasID() {
		return nil, fmt.Errorf("field %s.%s: %w", fc.Parent.Type, fc.Field, ErrMissingIdentity)
	}
	return NewCacheValue(fc.Parent, fc.Field, fc.Args, fc.Scope(), builder), nil
}

// SetFactory replaces the strategy factory. Last write wins.
func (r *Registry) SetFactory(f StrategyFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factory = f
}

// Create produces the KeyComputer for one invocation
func (r *Registry) Create(fc *FieldContext) (KeyComputer, error) {
	r.mu.RLock()
	f := r.factory
	r.mu.RUnlock()
	return f(fc)
}

// WithFactory installs f, runs fn, and restores the previous factory.
// Test helper for scoped strategy overrides.
func (r *Registry) WithFactory(f StrategyFactory, fn func()) {
	r.mu.Lock()
	prev := r.factory
	r.factory = f
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.factory = prev
		r.mu.Unlock()
	}()

	fn()
}
