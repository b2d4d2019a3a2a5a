package core

// TypeConfig declares the identifying attribute of an entity type. The
// attribute's resolved value must be stable and unique per logical instance;
// collisions are not detected, a non-unique choice means logically wrong
// cache sharing.
type TypeConfig struct {
	Name     string
	Identity string
}

// FieldConfig carries the per-field cache annotations declared in the schema
type FieldConfig struct {
	Cacheable bool
	Private   bool
}

// Schema is the caching layer's view of the query schema: which attribute
// identifies each entity type and which fields are cache-annotated. It is
// consumed, not defined, here; the pipeline registers what its schema
// declares.
type Schema struct {
	types  map[string]TypeConfig
	fields map[string]map[string]FieldConfig
}

// NewSchema creates an empty schema view
func NewSchema() *Schema {
	return &Schema{
		types:  make(map[string]TypeConfig),
		fields: make(map[string]map[string]FieldConfig),
	}
}

// AddType declares an entity type and its identifying attribute
func (s *Schema) AddType(tc TypeConfig) {
	s.types[tc.Name] = tc
}

// AddField declares the cache annotations for one field of a type.
// Query-level fields use an empty type name.
func (s *Schema) AddField(typeName, field string, fc FieldConfig) {
	if s.fields[typeName] == nil {
		s.fields[typeName] = make(map[string]FieldConfig)
	}
	s.fields[typeName][field] = fc
}

// FieldConfigOf returns the annotations for a field, zero when undeclared
func (s *Schema) FieldConfigOf(typeName, field string) FieldConfig {
	return s.fields[typeName][field]
}

// EntityRefOf builds the entity reference for a resolved parent object by
// extracting the type's identifying attribute. Returns ErrMissingIdentity
// when the type declares no identity or the attribute is absent from the
// object.
func (s *Schema) EntityRefOf(typeName string, obj map[string]interface{}) (EntityRef, error) {
	tc, ok := s.types[typeName]
	if !ok || tc.Identity == "" {
		return EntityRef{Type: typeName}, ErrMissingIdentity
	}
	return NewEntityRef(typeName, obj[tc.Identity])
}

// ResultTags computes entity tags for every identified object inside a
// resolved result, so cached relational and paginated collections are
// indexed under each row they contain. Objects without the type's identity
// attribute contribute nothing.
func (s *Schema) ResultTags(typeName string, result interface{}) []string {
	tc, ok := s.types[typeName]
	if !ok || tc.Identity == "" {
		return nil
	}

	var tags []string
	collectResultTags(tc, result, &tags)
	return tags
}

func collectResultTags(tc TypeConfig, result interface{}, tags *[]string) {
	switch v := result.(type) {
	case map[string]interface{}:
		if id, ok := v[tc.Identity]; ok && id != nil {
			*tags = append(*tags, tc.Name+":"+stringifyID(id))
		}
	case []interface{}:
		for _, item := range v {
			collectResultTags(tc, item, tags)
		}
	case []map[string]interface{}:
		for _, item := range v {
			collectResultTags(tc, item, tags)
		}
	}
}
