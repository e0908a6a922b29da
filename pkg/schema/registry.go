package schema

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/docref/docref/pkg/document"
)

// Registry holds the collection descriptors of one document model and
// answers the cross-referential lookups the compiler and the resolution
// engine need. It is constructed once at startup and passed by reference;
// its lifecycle is explicit, never ambient global state.
type Registry struct {
	collections map[string]*Collection
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{collections: map[string]*Collection{}}
}

// Add registers collection descriptors. Registering the same name twice
// is a configuration error.
func (r *Registry) Add(cols ...*Collection) error {
	for _, c := range cols {
		if _, dup := r.collections[c.Name()]; dup {
			return fmt.Errorf("schema: collection %q registered twice", c.Name())
		}
		r.collections[c.Name()] = c
	}
	return nil
}

// MustAdd registers collection descriptors and panics on error. Use at
// startup where a duplicate registration is a programming mistake.
func (r *Registry) MustAdd(cols ...*Collection) {
	if err := r.Add(cols...); err != nil {
		panic(err)
	}
}

// Collection returns a registered descriptor and whether it exists.
func (r *Registry) Collection(name string) (*Collection, bool) {
	c, ok := r.collections[name]
	return c, ok
}

// IsReference reports whether a field of a collection is a typed
// reference, and which collection it targets. Generic references report
// false: their target is not fixed by schema, so they cannot anchor a
// cross-collection join.
func (r *Registry) IsReference(collection, field string) (bool, string) {
	c, ok := r.collections[collection]
	if !ok {
		return false, ""
	}
	spec, ok := c.Spec(field)
	if !ok || spec.Kind != KindReference {
		return false, ""
	}
	return true, spec.Target
}

// IDField returns the identifying key field of a collection, "_id" when
// the collection is unknown.
func (r *Registry) IDField(collection string) string {
	if c, ok := r.collections[collection]; ok {
		return c.IDField()
	}
	return "_id"
}

// Materialize converts a raw stored record into a document object.
// Reference-typed values become unresolved placeholders; embedded
// sub-documents materialize recursively; list and map reference fields
// become lazy containers. Raw fields the schema does not declare are kept
// as plain values.
func (r *Registry) Materialize(collection string, raw bson.M) (*document.Document, error) {
	c, ok := r.collections[collection]
	if !ok {
		return nil, fmt.Errorf("schema: unknown collection %q", collection)
	}

	doc := document.New(collection, raw[c.IDField()])
	for _, name := range c.FieldNames() {
		value, present := raw[name]
		if !present {
			continue
		}
		spec, _ := c.Spec(name)
		converted, err := r.convert(spec, value)
		if err != nil {
			return nil, fmt.Errorf("schema: collection %q field %q: %w", collection, name, err)
		}
		doc.Put(name, converted)
	}
	for key, value := range raw {
		if key == c.IDField() {
			continue
		}
		if _, declared := c.Spec(key); declared {
			continue
		}
		doc.Put(key, value)
	}
	return doc, nil
}

func (r *Registry) convert(spec FieldSpec, value interface{}) (interface{}, error) {
	if value == nil {
		return nil, nil
	}
	switch spec.Kind {
	case KindScalar:
		return value, nil
	case KindReference:
		return toTypedRef(spec.Target, value), nil
	case KindGenericReference:
		return toGenericRef(value)
	case KindEmbedded:
		m, ok := toMap(value)
		if !ok {
			return nil, fmt.Errorf("embedded value is %T, want document", value)
		}
		return r.Materialize(spec.Embedded, m)
	case KindList:
		return r.convertList(spec.Elem, value)
	case KindMap:
		return r.convertMap(spec.Elem, value)
	default:
		return nil, fmt.Errorf("unhandled field kind %d", spec.Kind)
	}
}

func (r *Registry) convertList(elem *FieldSpec, value interface{}) (interface{}, error) {
	items, ok := toSlice(value)
	if !ok {
		return nil, fmt.Errorf("list value is %T, want array", value)
	}
	if elem == nil {
		return items, nil
	}
	switch elem.Kind {
	case KindReference, KindGenericReference:
		stored := make([]interface{}, 0, len(items))
		for _, item := range items {
			converted, err := r.convert(*elem, item)
			if err != nil {
				return nil, err
			}
			stored = append(stored, converted)
		}
		return document.NewRefList(stored), nil
	default:
		out := make([]interface{}, 0, len(items))
		for _, item := range items {
			converted, err := r.convert(*elem, item)
			if err != nil {
				return nil, err
			}
			out = append(out, converted)
		}
		return out, nil
	}
}

func (r *Registry) convertMap(elem *FieldSpec, value interface{}) (interface{}, error) {
	m, ok := toMap(value)
	if !ok {
		return nil, fmt.Errorf("map value is %T, want document", value)
	}
	if elem == nil {
		return map[string]interface{}(m), nil
	}
	switch elem.Kind {
	case KindReference, KindGenericReference:
		stored := make(map[string]interface{}, len(m))
		for k, item := range m {
			converted, err := r.convert(*elem, item)
			if err != nil {
				return nil, err
			}
			stored[k] = converted
		}
		return document.NewRefMap(stored), nil
	default:
		out := make(map[string]interface{}, len(m))
		for k, item := range m {
			converted, err := r.convert(*elem, item)
			if err != nil {
				return nil, err
			}
			out[k] = converted
		}
		return out, nil
	}
}

// toTypedRef builds a typed placeholder. The stored value is normally the
// bare id; DBRef-style {"$ref", "$id"} values are accepted for data
// written by older tooling, with the stored collection winning over the
// schema's target.
func toTypedRef(target string, value interface{}) document.Ref {
	if m, ok := toMap(value); ok {
		col, hasCol := m["$ref"].(string)
		id, hasID := m["$id"]
		if hasCol && hasID {
			return document.Ref{Collection: col, ID: id}
		}
	}
	return document.Ref{Collection: target, ID: value}
}

// toGenericRef parses the stored form of a generic reference:
// {"_ref": <collection>, "_id": <id>}.
func toGenericRef(value interface{}) (document.GenericRef, error) {
	m, ok := toMap(value)
	if !ok {
		return document.GenericRef{}, fmt.Errorf("generic reference value is %T, want document", value)
	}
	col, ok := m["_ref"].(string)
	if !ok {
		return document.GenericRef{}, fmt.Errorf("generic reference is missing _ref collection")
	}
	id, ok := m["_id"]
	if !ok {
		return document.GenericRef{}, fmt.Errorf("generic reference is missing _id")
	}
	return document.GenericRef{Collection: col, ID: id}, nil
}

func toMap(value interface{}) (bson.M, bool) {
	switch v := value.(type) {
	case bson.M:
		return v, true
	case map[string]interface{}:
		return bson.M(v), true
	case bson.D:
		m := make(bson.M, len(v))
		for _, e := range v {
			m[e.Key] = e.Value
		}
		return m, true
	default:
		return nil, false
	}
}

func toSlice(value interface{}) ([]interface{}, bool) {
	switch v := value.(type) {
	case bson.A:
		return []interface{}(v), true
	case []interface{}:
		return v, true
	default:
		return nil, false
	}
}
