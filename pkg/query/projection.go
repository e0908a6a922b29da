package query

import (
	"go.mongodb.org/mongo-driver/bson"
)

type projectionMode int

const (
	// modeAll means no accumulated spec: every field is returned.
	modeAll projectionMode = iota
	modeInclude
	modeExclude
)

// FieldProjection accumulates successive inclusion/exclusion/slice
// specifications into one canonical projection. Combine returns a new
// value, so intermediate materialization never affects later merges.
//
// Always-included fields are supplied once at construction and are
// unconditionally present in every include-mode output; they never appear
// in exclude-mode output.
type FieldProjection struct {
	mode       projectionMode
	fields     map[string]interface{}
	order      []string
	configured []string
}

// NewFieldProjection creates an empty projection spec with an optional set
// of always-included fields.
func NewFieldProjection(alwaysInclude ...string) *FieldProjection {
	return &FieldProjection{
		fields:     map[string]interface{}{},
		configured: append([]string(nil), alwaysInclude...),
	}
}

// Only builds an inclusion addition for Combine.
func Only(fields ...string) *FieldProjection {
	p := NewFieldProjection()
	p.mode = modeInclude
	for _, f := range fields {
		p.set(f, 1)
	}
	return p
}

// Exclude builds an exclusion addition for Combine.
func Exclude(fields ...string) *FieldProjection {
	p := NewFieldProjection()
	p.mode = modeExclude
	for _, f := range fields {
		p.set(f, 0)
	}
	return p
}

// Slice builds an inclusion addition that limits a stored array field to
// its first limit elements (negative limit counts from the end).
func Slice(field string, limit int) *FieldProjection {
	p := NewFieldProjection()
	p.mode = modeInclude
	p.set(field, bson.M{"$slice": limit})
	return p
}

// SliceWithSkip builds an inclusion addition that skips skip elements of a
// stored array field and returns up to limit elements.
func SliceWithSkip(field string, skip, limit int) *FieldProjection {
	p := NewFieldProjection()
	p.mode = modeInclude
	p.set(field, bson.M{"$slice": bson.A{skip, limit}})
	return p
}

func (p *FieldProjection) set(field string, value interface{}) {
	if _, ok := p.fields[field]; !ok {
		p.order = append(p.order, field)
	}
	p.fields[field] = value
}

func (p *FieldProjection) remove(field string) {
	if _, ok := p.fields[field]; !ok {
		return
	}
	delete(p.fields, field)
	for i, f := range p.order {
		if f == field {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

func (p *FieldProjection) clone() *FieldProjection {
	out := &FieldProjection{
		mode:       p.mode,
		fields:     make(map[string]interface{}, len(p.fields)),
		order:      append([]string(nil), p.order...),
		configured: p.configured,
	}
	for k, v := range p.fields {
		out.fields[k] = v
	}
	return out
}

func (p *FieldProjection) isAlways(field string) bool {
	for _, f := range p.configured {
		if f == field {
			return true
		}
	}
	return false
}

// dropAlways removes always-included fields from an exclude-mode field set
// so later mode transitions never treat them as excluded.
func (p *FieldProjection) dropAlways() {
	for _, f := range p.configured {
		p.remove(f)
	}
}

// Combine merges an addition into the current spec and returns the result
// as a new spec. Merge rules by mode pair:
//
//	include ⊕ include: union, addition's value spec wins on overlap
//	include ⊕ exclude: addition's fields removed, mode stays include
//	exclude ⊕ exclude: union of excluded fields
//	exclude ⊕ include: addition's fields minus excluded set, mode include
func (p *FieldProjection) Combine(addition *FieldProjection) *FieldProjection {
	out := p.clone()
	if addition == nil || addition.mode == modeAll {
		return out
	}

	switch {
	case out.mode == modeAll:
		out.mode = addition.mode
		for _, f := range addition.order {
			out.set(f, addition.fields[f])
		}
	case out.mode == modeInclude && addition.mode == modeInclude:
		for _, f := range addition.order {
			out.set(f, addition.fields[f])
		}
	case out.mode == modeInclude && addition.mode == modeExclude:
		for _, f := range addition.order {
			out.remove(f)
		}
	case out.mode == modeExclude && addition.mode == modeExclude:
		for _, f := range addition.order {
			out.set(f, 0)
		}
	case out.mode == modeExclude && addition.mode == modeInclude:
		excluded := out.fields
		out.mode = modeInclude
		out.fields = map[string]interface{}{}
		out.order = nil
		for _, f := range addition.order {
			if _, ok := excluded[f]; ok {
				continue
			}
			out.set(f, addition.fields[f])
		}
	}

	if out.mode == modeExclude {
		out.dropAlways()
	}
	return out
}

// IsEmpty reports whether the projection constrains the fetch at all.
func (p *FieldProjection) IsEmpty() bool {
	return len(p.fields) == 0
}

// Reset clears the accumulated spec. The always-included set is re-derived
// from the construction-time configuration, not from residual state.
func (p *FieldProjection) Reset() {
	p.mode = modeAll
	p.fields = map[string]interface{}{}
	p.order = nil
}

// Materialize produces the ordered store-native projection document.
// In include mode the always-included fields come first with value 1,
// unless the accumulated spec carries a slice for them.
func (p *FieldProjection) Materialize() bson.D {
	out := bson.D{}
	if p.IsEmpty() {
		return out
	}
	if p.mode == modeInclude {
		for _, f := range p.configured {
			if v, ok := p.fields[f]; ok {
				out = append(out, bson.E{Key: f, Value: v})
			} else {
				out = append(out, bson.E{Key: f, Value: 1})
			}
		}
		for _, f := range p.order {
			if p.isAlways(f) {
				continue
			}
			out = append(out, bson.E{Key: f, Value: p.fields[f]})
		}
		return out
	}
	for _, f := range p.order {
		out = append(out, bson.E{Key: f, Value: 0})
	}
	return out
}
