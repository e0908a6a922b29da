package document

// Key identifies a document by origin collection and id. Two documents are
// considered the same record when their keys are equal, regardless of
// which resolution pass materialized them.
type Key struct {
	Collection string
	ID         interface{}
}

// Ref is a stored reference placeholder whose target collection is fixed
// by the schema. It holds no materialized data.
type Ref struct {
	Collection string
	ID         interface{}
}

// Key returns the cache key for the referenced document.
func (r Ref) Key() Key {
	return Key{Collection: r.Collection, ID: r.ID}
}

// GenericRef is a stored reference placeholder whose target collection is
// not fixed by the schema and travels with the stored value.
type GenericRef struct {
	Collection string
	ID         interface{}
}

// Key returns the cache key for the referenced document.
func (r GenericRef) Key() Key {
	return Key{Collection: r.Collection, ID: r.ID}
}
