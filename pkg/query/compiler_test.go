package query

import (
	"errors"
	"reflect"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

// stubSchema maps collection -> reference field -> target collection.
type stubSchema struct {
	refs map[string]map[string]string
}

func (s stubSchema) IsReference(collection, field string) (bool, string) {
	target, ok := s.refs[collection][field]
	return ok, target
}

func (s stubSchema) IDField(string) string { return "_id" }

func flatSchema() stubSchema {
	return stubSchema{refs: map[string]map[string]string{}}
}

func TestCompileEqualityLeaf(t *testing.T) {
	compiled, err := Compile(NewField("status").Eq("active"), flatSchema(), "orders")
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if compiled.IsPipeline() {
		t.Fatal("flat expression should not compile to a pipeline")
	}
	want := bson.M{"status": "active"}
	if !reflect.DeepEqual(compiled.Filter, want) {
		t.Fatalf("expected %v, got %v", want, compiled.Filter)
	}
}

func TestCompileComparisonLeaves(t *testing.T) {
	cases := []struct {
		expr *FieldExpression
		want bson.M
	}{
		{NewField("price").Ne(10), bson.M{"price": bson.M{"$ne": 10}}},
		{NewField("price").Gt(10), bson.M{"price": bson.M{"$gt": 10}}},
		{NewField("price").Gte(10), bson.M{"price": bson.M{"$gte": 10}}},
		{NewField("price").Lt(10), bson.M{"price": bson.M{"$lt": 10}}},
		{NewField("price").Lte(10), bson.M{"price": bson.M{"$lte": 10}}},
	}
	for _, tc := range cases {
		compiled, err := Compile(tc.expr, flatSchema(), "orders")
		if err != nil {
			t.Fatalf("compile %v failed: %v", tc.expr.Op(), err)
		}
		if !reflect.DeepEqual(compiled.Filter, tc.want) {
			t.Fatalf("op %v: expected %v, got %v", tc.expr.Op(), tc.want, compiled.Filter)
		}
	}
}

func TestCompileMixedCompound(t *testing.T) {
	expr := And(
		NewField("price").Gt(10),
		Or(NewField("color").Eq("red"), NewField("color").Eq("blue")),
	)
	compiled, err := Compile(expr, flatSchema(), "products")
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	want := bson.M{"$and": []bson.M{
		{"price": bson.M{"$gt": 10}},
		{"$or": []bson.M{{"color": "red"}, {"color": "blue"}}},
	}}
	if !reflect.DeepEqual(compiled.Filter, want) {
		t.Fatalf("expected %v, got %v", want, compiled.Filter)
	}
}

func TestCompileFlattensSameKind(t *testing.T) {
	a := NewField("a").Eq(1)
	b := NewField("b").Eq(2)
	c := NewField("c").Eq(3)

	leftAssoc, err := Compile(And(And(a, b), c), flatSchema(), "x")
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	rightAssoc, err := Compile(And(a, And(b, c)), flatSchema(), "x")
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	want := bson.M{"$and": []bson.M{{"a": 1}, {"b": 2}, {"c": 3}}}
	if !reflect.DeepEqual(leftAssoc.Filter, want) {
		t.Fatalf("left-associated tree: expected %v, got %v", want, leftAssoc.Filter)
	}
	if !reflect.DeepEqual(rightAssoc.Filter, want) {
		t.Fatalf("right-associated tree: expected %v, got %v", want, rightAssoc.Filter)
	}
}

func TestCompileDoesNotFlattenAcrossKinds(t *testing.T) {
	expr := Or(
		And(NewField("a").Eq(1), NewField("b").Eq(2)),
		And(NewField("c").Eq(3), NewField("d").Eq(4)),
	)
	compiled, err := Compile(expr, flatSchema(), "x")
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	want := bson.M{"$or": []bson.M{
		{"$and": []bson.M{{"a": 1}, {"b": 2}}},
		{"$and": []bson.M{{"c": 3}, {"d": 4}}},
	}}
	if !reflect.DeepEqual(compiled.Filter, want) {
		t.Fatalf("expected %v, got %v", want, compiled.Filter)
	}
}

func TestCompileDottedNonReferencePath(t *testing.T) {
	compiled, err := Compile(NewField("address.city").Eq("Berlin"), flatSchema(), "users")
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if compiled.IsPipeline() {
		t.Fatal("dotted path into an embedded field should stay a flat filter")
	}
	want := bson.M{"address.city": "Berlin"}
	if !reflect.DeepEqual(compiled.Filter, want) {
		t.Fatalf("expected %v, got %v", want, compiled.Filter)
	}
}

func TestCompileReferencePathBuildsPipeline(t *testing.T) {
	sch := stubSchema{refs: map[string]map[string]string{
		"posts": {"author": "users"},
	}}
	compiled, err := Compile(NewField("author.name").Eq("ada"), sch, "posts")
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if !compiled.IsPipeline() {
		t.Fatal("reference-crossing path should compile to a pipeline")
	}
	want := []bson.D{
		{{Key: "$lookup", Value: bson.M{
			"from":         "users",
			"localField":   "author",
			"foreignField": "_id",
			"as":           "__author",
		}}},
		{{Key: "$unwind", Value: bson.M{
			"path":                       "$__author",
			"preserveNullAndEmptyArrays": true,
		}}},
		{{Key: "$match", Value: bson.M{"__author.name": "ada"}}},
	}
	if !reflect.DeepEqual(compiled.Pipeline, want) {
		t.Fatalf("expected %v, got %v", want, compiled.Pipeline)
	}
}

func TestCompileDeduplicatesJoinStages(t *testing.T) {
	sch := stubSchema{refs: map[string]map[string]string{
		"posts": {"author": "users"},
	}}
	expr := And(
		NewField("author.name").Eq("ada"),
		NewField("author.active").Eq(true),
	)
	compiled, err := Compile(expr, sch, "posts")
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	// One $lookup, one $unwind, one $match.
	if len(compiled.Pipeline) != 3 {
		t.Fatalf("expected 3 pipeline stages, got %d: %v", len(compiled.Pipeline), compiled.Pipeline)
	}
	match := compiled.Pipeline[2]
	want := bson.D{{Key: "$match", Value: bson.M{"$and": []bson.M{
		{"__author.name": "ada"},
		{"__author.active": true},
	}}}}
	if !reflect.DeepEqual(match, want) {
		t.Fatalf("expected match stage %v, got %v", want, match)
	}
}

func TestCompileMultipleReferenceFields(t *testing.T) {
	sch := stubSchema{refs: map[string]map[string]string{
		"posts": {"author": "users", "blog": "blogs"},
	}}
	expr := And(
		NewField("author.name").Eq("ada"),
		NewField("blog.title").Eq("notes"),
	)
	compiled, err := Compile(expr, sch, "posts")
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if len(compiled.Pipeline) != 5 {
		t.Fatalf("expected 5 pipeline stages, got %d", len(compiled.Pipeline))
	}
	// Join stages come in first-occurrence order of the reference fields.
	firstLookup := compiled.Pipeline[0][0].Value.(bson.M)
	secondLookup := compiled.Pipeline[2][0].Value.(bson.M)
	if firstLookup["as"] != "__author" || secondLookup["as"] != "__blog" {
		t.Fatalf("unexpected join order: %v then %v", firstLookup["as"], secondLookup["as"])
	}
}

func TestCompileMixedReferenceAndLocalFields(t *testing.T) {
	sch := stubSchema{refs: map[string]map[string]string{
		"posts": {"author": "users"},
	}}
	expr := And(
		NewField("author.name").Eq("ada"),
		NewField("published").Eq(true),
	)
	compiled, err := Compile(expr, sch, "posts")
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	match := compiled.Pipeline[len(compiled.Pipeline)-1]
	want := bson.D{{Key: "$match", Value: bson.M{"$and": []bson.M{
		{"__author.name": "ada"},
		{"published": true},
	}}}}
	if !reflect.DeepEqual(match, want) {
		t.Fatalf("expected match stage %v, got %v", want, match)
	}
}

func TestCompileUnsupportedOperator(t *testing.T) {
	expr := &FieldExpression{field: "price", op: Operator("regex"), value: "^a"}
	_, err := Compile(expr, flatSchema(), "orders")
	if err == nil {
		t.Fatal("expected an error for an unsupported operator")
	}
	var opErr *UnsupportedOperatorError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected UnsupportedOperatorError, got %T: %v", err, err)
	}
	if opErr.Field != "price" || opErr.Op != "regex" {
		t.Fatalf("unexpected error detail: %+v", opErr)
	}
}

func TestCompileUnsupportedOperatorInPipeline(t *testing.T) {
	sch := stubSchema{refs: map[string]map[string]string{
		"posts": {"author": "users"},
	}}
	expr := And(
		NewField("author.name").Eq("ada"),
		&FieldExpression{field: "rank", op: Operator("mod"), value: 3},
	)
	_, err := Compile(expr, sch, "posts")
	var opErr *UnsupportedOperatorError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected UnsupportedOperatorError, got %v", err)
	}
}

func TestCompileDoesNotMutateExpression(t *testing.T) {
	sch := stubSchema{refs: map[string]map[string]string{
		"posts": {"author": "users"},
	}}
	leaf := NewField("author.name").Eq("ada")
	if _, err := Compile(leaf, sch, "posts"); err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if leaf.Field() != "author.name" {
		t.Fatalf("compilation rewrote the input expression: %q", leaf.Field())
	}
}
