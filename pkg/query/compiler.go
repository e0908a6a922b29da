package query

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// SchemaInfo is the slice of document-model metadata the compiler needs.
// Implemented by schema.Registry.
type SchemaInfo interface {
	// IsReference reports whether a field of a collection is
	// reference-typed, and if so which collection it targets.
	IsReference(collection, field string) (bool, string)

	// IDField returns the identifying key field of a collection.
	IDField(collection string) string
}

// Compiled is the result of compiling an expression tree: either a flat
// filter specification, or a join pipeline when the tree crosses a
// reference boundary.
type Compiled struct {
	Filter   bson.M
	Pipeline []bson.D
}

// IsPipeline reports whether the result must run as an aggregation
// pipeline instead of a plain filtered find.
func (c Compiled) IsPipeline() bool {
	return c.Pipeline != nil
}

// lookupAlias returns the private output alias for a reference field's
// join stage. Two leaves on the same reference field share one alias and
// therefore one join stage.
func lookupAlias(refField string) string {
	return "__" + refField
}

// Compile compiles an expression tree against a collection's schema.
// Trees whose dotted field paths stay inside the collection compile to a
// flat filter; a dotted path whose root segment is a reference-typed
// attribute forces pipeline compilation with one $lookup/$unwind pair per
// distinct reference field and a final $match over the rewritten tree.
//
// An unrecognized comparison operator is a configuration error and fails
// immediately.
func Compile(expr Expression, sch SchemaInfo, collection string) (Compiled, error) {
	refFields, targets := collectRefFields(expr, sch, collection)
	if len(refFields) == 0 {
		filter, err := compileTree(expr)
		if err != nil {
			return Compiled{}, err
		}
		return Compiled{Filter: filter}, nil
	}

	pipeline := make([]bson.D, 0, 2*len(refFields)+1)
	for _, refField := range refFields {
		target := targets[refField]
		pipeline = append(pipeline, bson.D{{Key: "$lookup", Value: bson.M{
			"from":         target,
			"localField":   refField,
			"foreignField": sch.IDField(target),
			"as":           lookupAlias(refField),
		}}})
		pipeline = append(pipeline, bson.D{{Key: "$unwind", Value: bson.M{
			"path":                       "$" + lookupAlias(refField),
			"preserveNullAndEmptyArrays": true,
		}}})
	}

	match, err := compileTree(rewriteExpression(expr, targets))
	if err != nil {
		return Compiled{}, err
	}
	pipeline = append(pipeline, bson.D{{Key: "$match", Value: match}})

	return Compiled{Pipeline: pipeline}, nil
}

// collectRefFields walks the tree and returns the distinct reference
// fields crossed by dotted leaf paths, in first-occurrence order, plus
// their target collections. A dotted path whose root segment is not
// reference-typed is a plain field path and is skipped.
func collectRefFields(expr Expression, sch SchemaInfo, collection string) ([]string, map[string]string) {
	var order []string
	targets := map[string]string{}

	var walk func(e Expression)
	walk = func(e Expression) {
		switch t := e.(type) {
		case *FieldExpression:
			root, rest := splitPath(t.Field())
			if rest == "" {
				return
			}
			if _, seen := targets[root]; seen {
				return
			}
			if ok, target := sch.IsReference(collection, root); ok {
				targets[root] = target
				order = append(order, root)
			}
		case *CompoundExpression:
			walk(t.Left())
			walk(t.Right())
		}
	}
	walk(expr)
	return order, targets
}

// rewriteExpression returns an equivalent tree with every path that
// crosses a reference boundary rewritten to address the join stage's
// output alias. The input tree is never mutated.
func rewriteExpression(expr Expression, targets map[string]string) Expression {
	switch t := expr.(type) {
	case *FieldExpression:
		root, rest := splitPath(t.field)
		if rest == "" {
			return t
		}
		if _, ok := targets[root]; !ok {
			return t
		}
		return &FieldExpression{
			field: lookupAlias(root) + "." + rest,
			op:    t.op,
			value: t.value,
		}
	case *CompoundExpression:
		return &CompoundExpression{
			kind:  t.kind,
			left:  rewriteExpression(t.left, targets),
			right: rewriteExpression(t.right, targets),
		}
	default:
		return expr
	}
}

func splitPath(path string) (root, rest string) {
	if i := strings.Index(path, "."); i >= 0 {
		return path[:i], path[i+1:]
	}
	return path, ""
}

// compileTree compiles an expression tree to a filter document. Compounds
// of the same kind flatten into one clause list under a single operator,
// so compiled trees stay minimally nested regardless of build order.
func compileTree(expr Expression) (bson.M, error) {
	switch t := expr.(type) {
	case *FieldExpression:
		return compileLeaf(t)
	case *CompoundExpression:
		op := "$and"
		if t.kind == OrKind {
			op = "$or"
		}

		left, err := compileTree(t.left)
		if err != nil {
			return nil, err
		}
		right, err := compileTree(t.right)
		if err != nil {
			return nil, err
		}

		leftList, leftFlat := clauseList(left, op)
		rightList, rightFlat := clauseList(right, op)
		switch {
		case leftFlat && !rightFlat:
			return bson.M{op: append(leftList, right)}, nil
		case rightFlat && !leftFlat:
			return bson.M{op: append([]bson.M{left}, rightList...)}, nil
		case leftFlat && rightFlat:
			return bson.M{op: append(leftList, rightList...)}, nil
		default:
			return bson.M{op: []bson.M{left, right}}, nil
		}
	default:
		return nil, NewUnsupportedOperatorError("", "")
	}
}

// clauseList extracts an existing clause list when the compiled side
// already carries op as its top-level operator key.
func clauseList(doc bson.M, op string) ([]bson.M, bool) {
	v, ok := doc[op]
	if !ok {
		return nil, false
	}
	list, ok := v.([]bson.M)
	return list, ok
}

func compileLeaf(e *FieldExpression) (bson.M, error) {
	switch e.op {
	case OpEq:
		return bson.M{e.field: e.value}, nil
	case OpNe:
		return bson.M{e.field: bson.M{"$ne": e.value}}, nil
	case OpGt:
		return bson.M{e.field: bson.M{"$gt": e.value}}, nil
	case OpGte:
		return bson.M{e.field: bson.M{"$gte": e.value}}, nil
	case OpLt:
		return bson.M{e.field: bson.M{"$lt": e.value}}, nil
	case OpLte:
		return bson.M{e.field: bson.M{"$lte": e.value}}, nil
	default:
		return nil, NewUnsupportedOperatorError(e.field, e.op)
	}
}
