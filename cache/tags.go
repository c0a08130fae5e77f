package cache

// Tag identifies a unit of cached data for invalidation purposes: a type
// from a registered closed set, plus an optional ID. A tag with an empty
// ID used as an invalidation target matches every cached tag of the same
// type; a tag with an ID matches only the exact (type, id) pair and the
// untyped form.
type Tag struct {
	Type string
	ID   string
}

// NewTag builds a tag for a whole entity type.
func NewTag(tagType string) Tag {
	return Tag{Type: tagType}
}

// NewTagID builds a tag for a single entity instance.
func NewTagID(tagType, id string) Tag {
	return Tag{Type: tagType, ID: id}
}

// Matches reports whether an invalidation target t hits a provided tag.
// An ID-less target invalidates all IDs of its type. An ID-carrying
// target also hits an ID-less provided tag of the same type, since that
// provided tag stands for the whole type.
func (t Tag) Matches(provided Tag) bool {
	if t.Type != provided.Type {
		return false
	}
	if t.ID == "" || provided.ID == "" {
		return true
	}
	return t.ID == provided.ID
}

// String renders the tag for logs and keys.
func (t Tag) String() string {
	if t.ID == "" {
		return t.Type
	}
	return t.Type + "/" + t.ID
}
