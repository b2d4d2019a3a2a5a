package core

import "context"

// FieldContext is the per-field invocation context handed to the caching
// layer by the execution pipeline. It carries everything key derivation
// needs: the parent entity, the field, its resolved arguments, the schema
// annotations in effect and the requesting principal (empty when the request
// is unauthenticated).
type FieldContext struct {
	// Parent is the entity the field belongs to. Query-level fields use
	// RootRef().
	Parent EntityRef

	// Field is the schema field name being resolved.
	Field string

	// Args is the resolved argument set for this invocation.
	Args Args

	// Returns names the result type when the field yields objects of a
	// known entity type. Used for collection tagging; empty disables it.
	Returns string

	// Cacheable marks the field as routed through the caching layer.
	Cacheable bool

	// Private fences the entry to the requesting principal.
	Private bool

	// Principal is the authenticated identity of the request, or empty.
	Principal string
}

// Scope returns the privacy scope for this invocation.
func (fc *FieldContext) Scope() Scope {
	if fc.Private {
		return Private(fc.Principal)
	}
	return Public
}

// Resolver computes a field's value. Implementations may return a Deferred
// when the result is produced by batched or paginated loading; the
// interceptor materializes it before caching.
type Resolver func(ctx context.Context, fc *FieldContext) (interface{}, error)
