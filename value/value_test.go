package value_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowhpc/row/value"
)

func decode(t *testing.T, s string) interface{} {
	t.Helper()
	var v interface{}
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestPointer(t *testing.T) {
	root := decode(t, `{"v": 3, "nested": {"a": [1,2,3]}, "name": "x"}`)

	v, ok := value.Pointer(root, "")
	require.True(t, ok)
	assert.Equal(t, root, v)

	v, ok = value.Pointer(root, "/v")
	require.True(t, ok)
	assert.Equal(t, float64(3), v)

	v, ok = value.Pointer(root, "/nested/a/1")
	require.True(t, ok)
	assert.Equal(t, float64(2), v)

	_, ok = value.Pointer(root, "/missing")
	assert.False(t, ok)

	_, ok = value.Pointer(root, "/nested/a/99")
	assert.False(t, ok)
}

func TestEvaluate_Numbers(t *testing.T) {
	for _, tc := range []struct {
		op       value.Comparison
		a, b     float64
		expected bool
	}{
		{value.LessThan, 3, 6, true},
		{value.LessThan, 6, 3, false},
		{value.GreaterThan, 6, 3, true},
		{value.EqualTo, 4, 4, true},
		{value.LessThanOrEqualTo, 4, 4, true},
		{value.GreaterThanOrEqual, 4, 4, true},
	} {
		ok, comparable := value.Evaluate(tc.op, tc.a, tc.b)
		require.True(t, comparable)
		assert.Equal(t, tc.expected, ok)
	}
}

func TestEvaluate_MixedTypesIncomparable(t *testing.T) {
	_, comparable := value.Evaluate(value.EqualTo, "a", float64(1))
	assert.False(t, comparable)
}

func TestEvaluate_StringsLexicographic(t *testing.T) {
	ok, comparable := value.Evaluate(value.LessThan, "a", "b")
	require.True(t, comparable)
	assert.True(t, ok)
}

func TestEvaluate_ArraysElementwise(t *testing.T) {
	a := decode(t, `[1,2,3]`)
	b := decode(t, `[1,2,4]`)
	ok, comparable := value.Evaluate(value.LessThan, a, b)
	require.True(t, comparable)
	assert.True(t, ok)

	c := decode(t, `[1,2]`)
	_, comparable = value.Evaluate(value.EqualTo, a, c)
	assert.False(t, comparable)
}

func TestLess_IncomparableIsNotLess(t *testing.T) {
	assert.False(t, value.Less("a", float64(1)))
}
