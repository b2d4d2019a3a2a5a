package core

import (
	"sort"
	"strings"
)

// Args is the resolved argument set passed to a field's resolver for one
// invocation. Supply order is irrelevant to cache identity; the full set is
// folded into the key so differing argument sets never collide.
type Args map[string]interface{}

// Scope is the privacy scope of a cache entry. A private entry is fenced to
// the principal it was computed under.
type Scope struct {
	Private   bool
	Principal string
}

// Public is the shared scope with no principal fencing.
var Public = Scope{}

// Private returns a scope fenced to the given principal. An empty principal
// is kept as its own distinct scope so unauthenticated requests can never
// read an authenticated user's entries.
func Private(principal string) Scope {
	return Scope{Private: true, Principal: principal}
}

// KeyBuilder derives deterministic cache keys for field results
type KeyBuilder struct{}

// NewKeyBuilder creates a new cache key builder
func NewKeyBuilder() *KeyBuilder {
	return &KeyBuilder{}
}

// Build derives the cache key for one field invocation.
//
// The key is "{type}:{id}:{field}" for entity-scoped fields. Query-level
// fields have no parent entity; their keys are rooted at the literal "query"
// segment instead, giving "query:{field}". This is a fixed rule: all
// root-level cached fields share the "query" namespace and are distinguished
// by field name and arguments alone.
//
// Arguments are appended as ":{name}:{value}" pairs in sorted name order so
// identical sets collide intentionally regardless of supply order. Private
// scopes prefix the whole key with "auth:{principal}:"; an absent principal
// is written as "auth:none:".
func (b *KeyBuilder) Build(ref EntityRef, field string, args Args, scope Scope) string {
	var sb strings.Builder

	if scope.Private {
		sb.WriteString("auth:")
		if scope.Principal != "" {
			sb.WriteString(scope.Principal)
		} else {
			sb.WriteString("none")
		}
		sb.WriteString(":")
	}

	if ref.HasID() {
		sb.WriteString(ref.Type)
		sb.WriteString(":")
		sb.WriteString(ref.ID)
	} else {
		sb.WriteString("query")
	}

	sb.WriteString(":")
	sb.WriteString(field)

	if len(args) > 0 {
		names := make([]string, 0, len(args))
		for name := range args {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			sb.WriteString(":")
			sb.WriteString(name)
			sb.WriteString(":")
			sb.WriteString(stringifyID(args[name]))
		}
	}

	return sb.String()
}
