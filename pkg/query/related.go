package query

import (
	"go.mongodb.org/mongo-driver/bson"
)

// RelatedFilter builds a membership filter matching documents whose
// reference field points at one of the given ids. An empty id set compiles
// to an explicit empty membership test, which matches nothing, rather than
// an unconstrained query.
func RelatedFilter(field string, ids []interface{}) bson.M {
	if ids == nil {
		ids = []interface{}{}
	}
	return bson.M{field: bson.M{"$in": ids}}
}

// Identifiable is anything carrying a document id, used to build related
// filters from already-fetched documents.
type Identifiable interface {
	ID() interface{}
}

// IDsOf collects the ids of a document slice, preserving order.
func IDsOf[T Identifiable](docs []T) []interface{} {
	ids := make([]interface{}, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID())
	}
	return ids
}
