package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExpressionListFormComposite(t *testing.T) {
	raw := []interface{}{
		"and",
		[]interface{}{
			[]interface{}{"==", "active", "status"},
			[]interface{}{">=", 18, "age"},
		},
	}
	expr, err := ParseExpression(raw)
	require.NoError(t, err)
	composite, ok := expr.(*Composite)
	require.True(t, ok)
	assert.Equal(t, AND, composite.Operator)
	require.Len(t, composite.Deps, 2)

	rendered, err := composite.Render(SQL, "", nil)
	require.NoError(t, err)
	assert.Contains(t, rendered, `"status" = 'active'`)
	assert.Contains(t, rendered, `"age" >= 18`)
}

func TestParseExpressionListFormLeafFallback(t *testing.T) {
	expr, err := ParseExpression([]interface{}{"==", "active", "status"})
	require.NoError(t, err)
	leaf, ok := expr.(*Leaf)
	require.True(t, ok)
	assert.Equal(t, "status", leaf.Field)
	assert.Equal(t, EQ, leaf.CmpOp)
}

func TestParseExpressionRejectsBadNotFanIn(t *testing.T) {
	raw := []interface{}{
		"not",
		[]interface{}{
			[]interface{}{"==", "active", "status"},
			[]interface{}{">=", 18, "age"},
		},
	}
	_, err := ParseExpression(raw)
	assert.Error(t, err)
}

func TestParseDictRejectsBadIfThenFanIn(t *testing.T) {
	raw := map[string]interface{}{
		"if_then": []interface{}{
			map[string]interface{}{"field": "a", "cmp_operator": "=="},
		},
	}
	_, err := ParseDict(raw)
	assert.Error(t, err)
}

func TestParseDictAbsentValueStaysEmpty(t *testing.T) {
	// no "value" key: the list defaults empty
	expr, err := ParseDict(map[string]interface{}{"field": "f", "cmp_operator": "=="})
	require.NoError(t, err)
	leaf, ok := expr.(*Leaf)
	require.True(t, ok)
	assert.Empty(t, leaf.Value)

	// explicit null value: normalized to [nil], never collapsed
	expr, err = ParseDict(map[string]interface{}{"field": "f", "cmp_operator": "==", "value": nil})
	require.NoError(t, err)
	leaf, ok = expr.(*Leaf)
	require.True(t, ok)
	require.Len(t, leaf.Value, 1)
	assert.Nil(t, leaf.Value[0])
}

func TestLeafMarshalYAMLRoundTrip(t *testing.T) {
	leaf := NewLeaf("status", EQ, "active")
	raw, err := leaf.MarshalYAML()
	require.NoError(t, err)
	m, ok := raw.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "status", m["field"])
	assert.Equal(t, "active", m["value"])

	reparsed, err := ParseExpression(m)
	require.NoError(t, err)
	reLeaf, ok := reparsed.(*Leaf)
	require.True(t, ok)
	assert.Equal(t, leaf.Field, reLeaf.Field)
	assert.Equal(t, leaf.CmpOp, reLeaf.CmpOp)
}

func TestCompositeMarshalYAML(t *testing.T) {
	composite := &Composite{Operator: OR, Deps: []Expression{
		NewLeaf("a", EQ, 1),
		NewLeaf("b", EQ, 2),
	}}
	raw, err := composite.MarshalYAML()
	require.NoError(t, err)
	m, ok := raw.(map[string]interface{})
	require.True(t, ok)
	deps, ok := m[string(OR)].([]Expression)
	require.True(t, ok)
	assert.Len(t, deps, 2)
}
