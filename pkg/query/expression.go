// Package query builds declarative filter expressions and field
// projections and compiles them into store-native queries.
package query

import "fmt"

// Operator is a comparison operator supported in filter expressions.
type Operator string

// Comparison operators.
const (
	OpEq  Operator = "eq"
	OpNe  Operator = "ne"
	OpGt  Operator = "gt"
	OpGte Operator = "gte"
	OpLt  Operator = "lt"
	OpLte Operator = "lte"
)

// Expression is a filter tree node: either a single field comparison or a
// compound AND/OR of two sub-expressions.
type Expression interface {
	isExpression()
}

// FieldExpression is a single field comparison. Immutable once built.
type FieldExpression struct {
	field string
	op    Operator
	value interface{}
}

func (*FieldExpression) isExpression() {}

// Field returns the compared field path.
func (e *FieldExpression) Field() string { return e.field }

// Op returns the comparison operator.
func (e *FieldExpression) Op() Operator { return e.op }

// Value returns the comparison value.
func (e *FieldExpression) Value() interface{} { return e.value }

// CompoundKind distinguishes AND from OR compounds.
type CompoundKind string

// Compound kinds.
const (
	AndKind CompoundKind = "and"
	OrKind  CompoundKind = "or"
)

// CompoundExpression combines two expressions under AND or OR.
type CompoundExpression struct {
	kind  CompoundKind
	left  Expression
	right Expression
}

func (*CompoundExpression) isExpression() {}

// Kind returns the compound's logical operator.
func (e *CompoundExpression) Kind() CompoundKind { return e.kind }

// Left returns the left sub-expression.
func (e *CompoundExpression) Left() Expression { return e.left }

// Right returns the right sub-expression.
func (e *CompoundExpression) Right() Expression { return e.right }

// And combines two expressions with AND logic.
func And(left, right Expression) *CompoundExpression {
	return &CompoundExpression{kind: AndKind, left: left, right: right}
}

// Or combines two expressions with OR logic.
func Or(left, right Expression) *CompoundExpression {
	return &CompoundExpression{kind: OrKind, left: left, right: right}
}

// Field is a comparison-capable expression factory for a declared field.
// Instances come from a schema collection at build time, so a typo in a
// field name fails when the query is declared, not when it runs.
type Field struct {
	path string
}

// NewField creates an expression factory for a field path. Dotted paths
// address sub-fields and, when the root segment is reference-typed,
// cross-collection fields.
func NewField(path string) Field {
	return Field{path: path}
}

// Path returns the field path.
func (f Field) Path() string { return f.path }

// Eq builds an equality comparison.
func (f Field) Eq(v interface{}) *FieldExpression {
	return &FieldExpression{field: f.path, op: OpEq, value: v}
}

// Ne builds a not-equal comparison.
func (f Field) Ne(v interface{}) *FieldExpression {
	return &FieldExpression{field: f.path, op: OpNe, value: v}
}

// Gt builds a greater-than comparison.
func (f Field) Gt(v interface{}) *FieldExpression {
	return &FieldExpression{field: f.path, op: OpGt, value: v}
}

// Gte builds a greater-or-equal comparison.
func (f Field) Gte(v interface{}) *FieldExpression {
	return &FieldExpression{field: f.path, op: OpGte, value: v}
}

// Lt builds a less-than comparison.
func (f Field) Lt(v interface{}) *FieldExpression {
	return &FieldExpression{field: f.path, op: OpLt, value: v}
}

// Lte builds a less-or-equal comparison.
func (f Field) Lte(v interface{}) *FieldExpression {
	return &FieldExpression{field: f.path, op: OpLte, value: v}
}

// UnsupportedOperatorError reports a comparison operator the compiler does
// not recognize. This is a configuration error raised at compile time,
// never silently dropped.
type UnsupportedOperatorError struct {
	Field string
	Op    Operator
}

func (e *UnsupportedOperatorError) Error() string {
	return fmt.Sprintf("unsupported operator %q on field %q", e.Op, e.Field)
}

// NewUnsupportedOperatorError creates a new UnsupportedOperatorError.
func NewUnsupportedOperatorError(field string, op Operator) *UnsupportedOperatorError {
	return &UnsupportedOperatorError{Field: field, Op: op}
}
