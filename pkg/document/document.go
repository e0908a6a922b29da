// Package document defines the materialized document object model:
// documents, reference placeholders and lazily resolving reference
// containers.
package document

import "sort"

// Document is a materialized record: an ordered mapping from field name to
// value with a known origin collection and identifying key. Reference-typed
// fields hold a Ref/GenericRef placeholder, or a *Document once resolved.
// Embedded sub-documents are nested *Document values with no id.
type Document struct {
	collection string
	id         interface{}
	fields     map[string]interface{}
	order      []string
	modified   map[string]struct{}
}

// New creates an empty document with the given origin collection and id.
// Embedded sub-documents use a nil id.
func New(collection string, id interface{}) *Document {
	return &Document{
		collection: collection,
		id:         id,
		fields:     map[string]interface{}{},
		modified:   map[string]struct{}{},
	}
}

// Collection returns the document's origin collection.
func (d *Document) Collection() string {
	return d.collection
}

// ID returns the document's identifying key. Nil for embedded sub-documents.
func (d *Document) ID() interface{} {
	return d.id
}

// Key returns the document's cache key.
func (d *Document) Key() Key {
	return Key{Collection: d.collection, ID: d.id}
}

// Get returns the value of a field and whether it is present.
func (d *Document) Get(name string) (interface{}, bool) {
	v, ok := d.fields[name]
	return v, ok
}

// Set stores a field value and marks the field as modified since load.
func (d *Document) Set(name string, value interface{}) {
	d.put(name, value)
	d.modified[name] = struct{}{}
}

// Put stores a field value without touching the modified set. Used by
// materialization and reference resolution, which must not make a document
// look dirty.
func (d *Document) Put(name string, value interface{}) {
	d.put(name, value)
}

func (d *Document) put(name string, value interface{}) {
	if _, ok := d.fields[name]; !ok {
		d.order = append(d.order, name)
	}
	d.fields[name] = value
}

// Fields returns the field names in insertion order.
func (d *Document) Fields() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// Modified returns the sorted names of fields changed since load.
func (d *Document) Modified() []string {
	out := make([]string, 0, len(d.modified))
	for name := range d.modified {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ClearModified resets the modified-field set, typically after a save.
func (d *Document) ClearModified() {
	d.modified = map[string]struct{}{}
}
