// Package schema declares immutable collection descriptors and the
// registry components use for cross-referential lookups. Descriptors are
// assembled through an explicit builder at startup; there is no ambient
// global registry.
package schema

import (
	"fmt"

	"github.com/docref/docref/pkg/query"
)

// Kind classifies how a declared field is stored and traversed.
type Kind int

// Field kinds.
const (
	KindScalar Kind = iota
	KindReference
	KindGenericReference
	KindEmbedded
	KindList
	KindMap
)

// FieldSpec describes one declared field of a collection.
type FieldSpec struct {
	Name string
	Kind Kind

	// Target is the referenced collection for KindReference fields.
	Target string

	// Embedded names the descriptor for KindEmbedded fields.
	Embedded string

	// Elem describes the element of KindList and KindMap fields.
	Elem *FieldSpec
}

// Element spec constructors for list and map fields.

// Scalar describes a plain value element.
func Scalar() *FieldSpec {
	return &FieldSpec{Kind: KindScalar}
}

// ReferenceTo describes a typed reference element targeting a collection.
func ReferenceTo(target string) *FieldSpec {
	return &FieldSpec{Kind: KindReference, Target: target}
}

// AnyReference describes a generic reference element whose target
// collection travels with the stored value.
func AnyReference() *FieldSpec {
	return &FieldSpec{Kind: KindGenericReference}
}

// EmbeddedAs describes an embedded sub-document element.
func EmbeddedAs(descriptor string) *FieldSpec {
	return &FieldSpec{Kind: KindEmbedded, Embedded: descriptor}
}

// ListOf describes a nested list element.
func ListOf(elem *FieldSpec) *FieldSpec {
	return &FieldSpec{Kind: KindList, Elem: elem}
}

// Collection is an immutable descriptor of a collection's declared fields.
type Collection struct {
	name    string
	idField string
	fields  map[string]FieldSpec
	order   []string
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// IDField returns the identifying key field, "_id" unless overridden.
func (c *Collection) IDField() string { return c.idField }

// FieldNames returns the declared field names in declaration order.
func (c *Collection) FieldNames() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Spec returns the declaration of a field and whether it exists.
func (c *Collection) Spec(name string) (FieldSpec, bool) {
	f, ok := c.fields[name]
	return f, ok
}

// Field returns a comparison-capable expression factory for a declared
// field path. The root segment must be declared; sub-paths below it are
// not checked here since embedded and referenced shapes live in their own
// descriptors. Unknown root segments fail at query-build time.
func (c *Collection) Field(path string) (query.Field, error) {
	root := path
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			root = path[:i]
			break
		}
	}
	if root == c.idField {
		return query.NewField(path), nil
	}
	if _, ok := c.fields[root]; !ok {
		return query.Field{}, NewUnknownFieldError(c.name, root)
	}
	return query.NewField(path), nil
}

// MustField is Field for statically known names; it panics on a typo.
func (c *Collection) MustField(path string) query.Field {
	f, err := c.Field(path)
	if err != nil {
		panic(err)
	}
	return f
}

// Builder assembles a Collection descriptor. Zero value is not usable;
// create with NewBuilder.
type Builder struct {
	name    string
	idField string
	fields  map[string]FieldSpec
	order   []string
	err     error
}

// NewBuilder starts a descriptor for the named collection.
func NewBuilder(name string) *Builder {
	return &Builder{
		name:    name,
		idField: "_id",
		fields:  map[string]FieldSpec{},
	}
}

// ID overrides the identifying key field.
func (b *Builder) ID(field string) *Builder {
	b.idField = field
	return b
}

func (b *Builder) add(spec FieldSpec) *Builder {
	if b.err != nil {
		return b
	}
	if spec.Name == "" {
		b.err = fmt.Errorf("schema: collection %q declares a field with no name", b.name)
		return b
	}
	if _, dup := b.fields[spec.Name]; dup {
		b.err = fmt.Errorf("schema: collection %q declares field %q twice", b.name, spec.Name)
		return b
	}
	b.fields[spec.Name] = spec
	b.order = append(b.order, spec.Name)
	return b
}

// Scalar declares a plain value field.
func (b *Builder) Scalar(name string) *Builder {
	return b.add(FieldSpec{Name: name, Kind: KindScalar})
}

// Reference declares a typed reference field targeting a collection.
func (b *Builder) Reference(name, target string) *Builder {
	return b.add(FieldSpec{Name: name, Kind: KindReference, Target: target})
}

// GenericReference declares a reference field whose target collection is
// stored with the value.
func (b *Builder) GenericReference(name string) *Builder {
	return b.add(FieldSpec{Name: name, Kind: KindGenericReference})
}

// Embedded declares an embedded sub-document field.
func (b *Builder) Embedded(name, descriptor string) *Builder {
	return b.add(FieldSpec{Name: name, Kind: KindEmbedded, Embedded: descriptor})
}

// List declares an ordered sequence field with the given element spec.
func (b *Builder) List(name string, elem *FieldSpec) *Builder {
	return b.add(FieldSpec{Name: name, Kind: KindList, Elem: elem})
}

// Map declares a key-ordered mapping field with the given element spec.
func (b *Builder) Map(name string, elem *FieldSpec) *Builder {
	return b.add(FieldSpec{Name: name, Kind: KindMap, Elem: elem})
}

// Build finalizes the descriptor.
func (b *Builder) Build() (*Collection, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.name == "" {
		return nil, fmt.Errorf("schema: collection name is required")
	}
	fields := make(map[string]FieldSpec, len(b.fields))
	for k, v := range b.fields {
		fields[k] = v
	}
	return &Collection{
		name:    b.name,
		idField: b.idField,
		fields:  fields,
		order:   append([]string(nil), b.order...),
	}, nil
}

// UnknownFieldError reports a query against a field the schema does not
// declare. Raised at query-build time, not at execution.
type UnknownFieldError struct {
	Collection string
	Field      string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("collection %q does not declare field %q", e.Collection, e.Field)
}

// NewUnknownFieldError creates a new UnknownFieldError.
func NewUnknownFieldError(collection, field string) *UnknownFieldError {
	return &UnknownFieldError{Collection: collection, Field: field}
}
