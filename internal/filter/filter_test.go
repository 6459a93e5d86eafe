package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeafRenderSQL(t *testing.T) {
	tests := []struct {
		name string
		leaf *Leaf
		want string
	}{
		{"eq", NewLeaf("status", EQ, "active"), `"status" = 'active'`},
		{"neq", NewLeaf("status", NEQ, "active"), `"status" <> 'active'`},
		{"ge", NewLeaf("age", GE, 18), `"age" >= 18`},
		{"is_null", NewLeaf("deleted_at", IsNull, nil), `"deleted_at" IS NULL`},
		{"is_not_null", NewLeaf("deleted_at", IsNotNull, nil), `"deleted_at" IS NOT NULL`},
		{"in", NewLeaf("id", IN, []interface{}{1, 2, 3}), `"id" IN (1, 2, 3)`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.leaf.Render(SQL, "", nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLeafRenderCypher(t *testing.T) {
	got, err := NewLeaf("name", EQ, "Alice").Render(Cypher, "n", nil)
	require.NoError(t, err)
	assert.Equal(t, `n.name = "Alice"`, got)
}

func TestLeafRenderGSQLRestpp(t *testing.T) {
	fieldTypes := map[string]string{"age": "int"}
	got, err := NewLeaf("age", GE, 21).Render(GSQL, "", fieldTypes)
	require.NoError(t, err)
	assert.Equal(t, "age>=21", got)

	got2, err := NewLeaf("name", EQ, "bob").Render(GSQL, "", nil)
	require.NoError(t, err)
	assert.Equal(t, `name="bob"`, got2)

	got3, err := NewLeaf("deleted_at", IsNotNull, nil).Render(GSQL, "", nil)
	require.NoError(t, err)
	assert.Equal(t, `deleted_at!=""`, got3)
}

// Testable property (spec.md §8, scenario 5): the same leaf renders
// differently per flavor from one expression tree.
func TestFilterFlavorRoundTrip(t *testing.T) {
	leaf := NewLeaf("name", EQ, "Alice")

	sqlOut, err := leaf.Render(SQL, "", nil)
	require.NoError(t, err)
	assert.Equal(t, `"name" = 'Alice'`, sqlOut)

	aqlOut, err := leaf.Render(AQL, "doc", nil)
	require.NoError(t, err)
	assert.Equal(t, `doc["name"] == "Alice"`, aqlOut)

	cypherOut, err := leaf.Render(Cypher, "doc", nil)
	require.NoError(t, err)
	assert.Equal(t, `doc.name = "Alice"`, cypherOut)
}

func TestCompositeNotRequiresExactlyOneDep(t *testing.T) {
	c := &Composite{Operator: NOT, Deps: []Expression{NewLeaf("a", EQ, 1), NewLeaf("b", EQ, 2)}}
	_, err := c.Render(SQL, "", nil)
	assert.Error(t, err)
}

func TestCompositeAndOr(t *testing.T) {
	c := &Composite{
		Operator: AND,
		Deps: []Expression{
			NewLeaf("a", EQ, 1),
			NewLeaf("b", EQ, 2),
		},
	}
	got, err := c.Render(SQL, "", nil)
	require.NoError(t, err)
	assert.Equal(t, `("a" = 1) AND ("b" = 2)`, got)
}

func TestCompositeGuardFiltersRenderQualified(t *testing.T) {
	c := &Composite{
		Operator: AND,
		Deps: []Expression{
			NewLeaf("s.id", IsNotNull, nil),
			NewLeaf("t.id", IsNotNull, nil),
		},
	}
	got, err := c.Render(SQL, "r", nil)
	require.NoError(t, err)
	assert.Contains(t, got, `s."id" IS NOT NULL`)
	assert.Contains(t, got, `t."id" IS NOT NULL`)
	assert.Contains(t, got, ` AND `)
}

func TestCompositeImplication(t *testing.T) {
	c := &Composite{
		Operator: Implication,
		Deps: []Expression{
			NewLeaf("a", EQ, 1),
			NewLeaf("b", EQ, 2),
		},
	}
	// a -> b renders as (not a) or b, with flavor-appropriate tokens
	got, err := c.Render(SQL, "", nil)
	require.NoError(t, err)
	assert.Equal(t, `(NOT ("a" = 1) OR ("b" = 2))`, got)

	inproc, err := c.Render(InProcess, "", nil)
	require.NoError(t, err)
	assert.Contains(t, inproc, "||")
}

func TestBareNilValueDoesNotCollapseToEmpty(t *testing.T) {
	leaf := NewLeaf("f", EQ, nil)
	require.Len(t, leaf.Value, 1)
	assert.Nil(t, leaf.Value[0])

	unary := NewLeaf("f", IsNull, nil)
	assert.Len(t, unary.Value, 0)
}

func TestEvaluatorInProcess(t *testing.T) {
	expr := &Composite{
		Operator: AND,
		Deps: []Expression{
			NewLeaf("age", GE, 18),
			NewLeaf("status", EQ, "active"),
		},
	}
	ev, err := Compile(expr, nil)
	require.NoError(t, err)

	ok, err := ev.Evaluate(map[string]interface{}{"age": 21, "status": "active"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ev.Evaluate(map[string]interface{}{"age": 16, "status": "active"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluatorUnaryOp(t *testing.T) {
	leaf := &Leaf{Field: "name", UnaryOp: "startswith", Value: []interface{}{"Al"}}
	ev, err := Compile(leaf, nil)
	require.NoError(t, err)

	ok, err := ev.Evaluate(map[string]interface{}{"name": "Alice"})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestParseDictComposite(t *testing.T) {
	raw := map[string]interface{}{
		"and": []interface{}{
			map[string]interface{}{"field": "a", "cmp_operator": "=="},
			map[string]interface{}{"field": "b", "cmp_operator": "!="},
		},
	}
	expr, err := ParseDict(raw)
	require.NoError(t, err)
	composite, ok := expr.(*Composite)
	require.True(t, ok)
	assert.Equal(t, AND, composite.Operator)
	assert.Len(t, composite.Deps, 2)
}
