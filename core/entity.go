package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrMissingIdentity is returned when an entity-scoped cache key is requested
// for a parent whose identifying attribute resolved to nothing. Building a key
// from an absent identity would collide with every other identity-less
// instance of the type, so the caller must degrade to uncached instead.
var ErrMissingIdentity = errors.New("entity has no identifying attribute value")

// EntityRef identifies the parent object a cached field belongs to.
// Root (query-level) fields have no parent and use the zero EntityRef.
type EntityRef struct {
	Type string
	ID   string

	hasID bool
}

// NewEntityRef creates an entity reference from a type name and the resolved
// value of the type's identifying attribute.
func NewEntityRef(typeName string, id interface{}) (EntityRef, error) {
	if id == nil {
		return EntityRef{Type: typeName}, fmt.Errorf("%s: %w", typeName, ErrMissingIdentity)
	}
	s := stringifyID(id)
	if s == "" {
		return EntityRef{Type: typeName}, fmt.Errorf("%s: %w", typeName, ErrMissingIdentity)
	}
	return EntityRef{Type: typeName, ID: s, hasID: true}, nil
}

// RootRef returns the entity reference used for query-level fields,
// which have no parent entity.
func RootRef() EntityRef {
	return EntityRef{}
}

// HasID reports whether the reference carries an identity value.
func (r EntityRef) HasID() bool {
	return r.hasID
}

// stringifyID converts various identity value types to string
func stringifyID(id interface{}) string {
	switch v := id.(type) {
	case string:
		return v
	case float64:
		// Check if it's a whole number
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case bool:
		return strconv.FormatBool(v)
	case json.Number:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
