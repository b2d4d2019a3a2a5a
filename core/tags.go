package core

// EntityTags computes the invalidation tags for a cache write under an
// identified parent: one tag for the entity as a whole and one for the
// specific field, so a mutation can drop either every cached field of the
// entity or a single one without enumerating keys.
func EntityTags(ref EntityRef, field string) []string {
	if !ref.HasID() {
		return nil
	}
	entity := ref.Type + ":" + ref.ID
	return []string{entity, entity + ":" + field}
}
