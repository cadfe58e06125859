package cond

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromMap_SortsKeys(t *testing.T) {
	c := FromMap(map[string]any{
		"name": "James",
		"id":   1000,
		"age >": 18,
	})

	require.Len(t, c, 3)
	assert.Equal(t, F("age >", 18), c[0])
	assert.Equal(t, F("id", 1000), c[1])
	assert.Equal(t, F("name", "James"), c[2])
}

func TestFromMap_Groups(t *testing.T) {
	c := FromMap(map[string]any{
		"OR": map[string]any{"a": 1, "b": 2},
		"not": []any{
			"created = modified",
			map[string]any{"x": 1, "y": 2},
		},
	})

	require.Len(t, c, 2)

	or, ok := c[0].(Group)
	require.True(t, ok)
	assert.Equal(t, OR, or.Op)
	assert.Len(t, or.Nodes, 2)

	not, ok := c[1].(Group)
	require.True(t, ok)
	assert.Equal(t, NOT, not.Op)
	require.Len(t, not.Nodes, 2)
	assert.Equal(t, Raw("created = modified"), not.Nodes[0])
	assert.IsType(t, Block{}, not.Nodes[1])
}

func TestFromMap_GroupKeyWithScalarIsField(t *testing.T) {
	c := FromMap(map[string]any{"or": "x"})
	require.Len(t, c, 1)
	assert.Equal(t, F("or", "x"), c[0])
}

func TestAppend_DoesNotMutate(t *testing.T) {
	base := Conditions{Raw("a = b")}
	extended := base.Append(F("c", 1))

	assert.Len(t, base, 1)
	assert.Len(t, extended, 2)
}

func TestFields(t *testing.T) {
	c := Conditions{F("id", 1), F("age >", 3), Raw("x = y"), Or(F("z", 1))}
	assert.Equal(t, map[string]any{"id": 1, "age": 3}, c.Fields())
}

func TestConstructors(t *testing.T) {
	assert.Equal(t, Group{Op: AND, Nodes: []Node{F("a", 1)}}, And(F("a", 1)))
	assert.Equal(t, OR, Or().Op)
	assert.Equal(t, NOT, Not().Op)
	assert.True(t, Conditions{}.IsEmpty())
}

func TestIsEmpty_LooksInsideGroups(t *testing.T) {
	tests := []struct {
		name  string
		c     Conditions
		empty bool
	}{
		{"nil", nil, true},
		{"empty AND map", FromMap(map[string]any{"AND": map[string]any{}}), true},
		{"empty OR list", FromMap(map[string]any{"OR": []any{}}), true},
		{"nested empty", Conditions{Not(And(), Block{}), Raw("  ")}, true},
		{"field", Conditions{F("id", 1)}, false},
		{"raw", Conditions{Raw("created = modified")}, false},
		{"field inside group", Conditions{And(Or(), Block{F("id", 1)})}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.empty, tt.c.IsEmpty())
		})
	}
}
