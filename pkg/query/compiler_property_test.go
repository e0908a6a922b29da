package query

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"go.mongodb.org/mongo-driver/bson"
)

// chainLeaves builds n distinct equality leaves.
func chainLeaves(n int) []Expression {
	leaves := make([]Expression, n)
	for i := 0; i < n; i++ {
		leaves[i] = NewField(fmt.Sprintf("f%d", i)).Eq(i)
	}
	return leaves
}

func foldLeft(kind CompoundKind, leaves []Expression) Expression {
	out := leaves[0]
	for _, leaf := range leaves[1:] {
		if kind == AndKind {
			out = And(out, leaf)
		} else {
			out = Or(out, leaf)
		}
	}
	return out
}

func foldRight(kind CompoundKind, leaves []Expression) Expression {
	out := leaves[len(leaves)-1]
	for i := len(leaves) - 2; i >= 0; i-- {
		if kind == AndKind {
			out = And(leaves[i], out)
		} else {
			out = Or(leaves[i], out)
		}
	}
	return out
}

// nestedSameKind reports whether a compiled filter nests a clause list of
// the same kind directly inside another.
func nestedSameKind(doc bson.M) bool {
	for _, op := range []string{"$and", "$or"} {
		v, ok := doc[op]
		if !ok {
			continue
		}
		clauses, ok := v.([]bson.M)
		if !ok {
			continue
		}
		for _, clause := range clauses {
			if _, again := clause[op]; again {
				return true
			}
			if nestedSameKind(clause) {
				return true
			}
		}
	}
	return false
}

func TestProperty_CompileFlattening(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("association order does not change compiled output", prop.ForAll(
		func(n int, useOr bool) bool {
			kind := AndKind
			if useOr {
				kind = OrKind
			}
			leaves := chainLeaves(n)
			left, err := Compile(foldLeft(kind, leaves), flatSchema(), "c")
			if err != nil {
				return false
			}
			right, err := Compile(foldRight(kind, leaves), flatSchema(), "c")
			if err != nil {
				return false
			}
			return reflect.DeepEqual(left.Filter, right.Filter)
		},
		gen.IntRange(2, 8),
		gen.Bool(),
	))

	properties.Property("same-kind compounds never nest", prop.ForAll(
		func(n int, useOr bool) bool {
			kind := AndKind
			if useOr {
				kind = OrKind
			}
			compiled, err := Compile(foldLeft(kind, chainLeaves(n)), flatSchema(), "c")
			if err != nil {
				return false
			}
			return !nestedSameKind(compiled.Filter)
		},
		gen.IntRange(2, 10),
		gen.Bool(),
	))

	properties.Property("clause count equals leaf count after flattening", prop.ForAll(
		func(n int) bool {
			compiled, err := Compile(foldLeft(AndKind, chainLeaves(n)), flatSchema(), "c")
			if err != nil {
				return false
			}
			clauses, ok := compiled.Filter["$and"].([]bson.M)
			return ok && len(clauses) == n
		},
		gen.IntRange(2, 10),
	))

	properties.TestingRun(t)
}
