package canonical

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recordkit/internal/entity"
)

func TestMarshalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"null", nil, "null"},
		{"string", "hello", `"hello"`},
		{"bytes", []byte("raw"), `"raw"`},
		{"int", 42, "42"},
		{"int64", int64(-100), "-100"},
		{"bool", true, "true"},
		{"float", 1.5, "1.5"},
		{"integral float", float64(3), "3"},
		{"empty array", []any{}, "[]"},
		{"empty object", map[string]any{}, "{}"},
		{"typed slice", []string{"a", "b"}, `["a","b"]`},
		{"time", time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("X", 3600)), `"2024-01-02T02:04:05Z"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Marshal(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(out))
		})
	}
}

func TestMarshalSortedKeys(t *testing.T) {
	out, err := Marshal(map[string]any{
		"zebra": 1,
		"alpha": map[string]any{"b": 1, "a": 2},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":{"a":2,"b":1},"zebra":1}`, string(out))
}

func TestMarshalUTF16Ordering(t *testing.T) {
	// U+10000 encodes as a surrogate pair starting 0xD800 < 0xE000.
	out, err := Marshal(map[string]any{"\uE000": 1, "\U00010000": 2})
	require.NoError(t, err)
	assert.Equal(t, "{\"\U00010000\":2,\"\uE000\":1}", string(out))
}

func TestMarshalNoHTMLEscape(t *testing.T) {
	out, err := Marshal("<a & b>")
	require.NoError(t, err)
	assert.Equal(t, `"<a & b>"`, string(out))
}

func TestMarshalNFC(t *testing.T) {
	out, err := Marshal("e\u0301")
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(out))
}

func TestMarshalLineSeparators(t *testing.T) {
	out, err := Marshal("a\u2028b\u2029c")
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\u2029c\"", string(out))

	literal, err := Marshal(`x\u2028`)
	require.NoError(t, err)
	assert.Equal(t, `"x\\u2028"`, string(literal))
}

func TestMarshalRejectsNonFinite(t *testing.T) {
	_, err := Marshal(map[string]any{"x": math.NaN()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `value for key "x"`)

	_, err = Marshal(math.Inf(1))
	require.Error(t, err)
}

func TestMarshalRejectsUnsupported(t *testing.T) {
	_, err := Marshal(struct{}{})
	require.Error(t, err)
}

func TestMarshalEntities(t *testing.T) {
	author := entity.FromMap("Author", map[string]any{"id": int64(1), "name": "Ann"})
	article := entity.FromMap("Article", map[string]any{"title": "Go", "id": int64(7)})
	article.Set("author", author)
	article.Set("tags", []*entity.Entity{
		entity.FromMap("Tag", map[string]any{"name": "go"}),
	})

	out, err := Marshal([]*entity.Entity{article, nil})
	require.NoError(t, err)
	assert.Equal(t,
		`[{"author":{"id":1,"name":"Ann"},"id":7,"tags":[{"name":"go"}],"title":"Go"},null]`,
		string(out))
}

func TestMarshalListShapes(t *testing.T) {
	flat := map[any]any{int64(2): "Rust", int64(1): "Go"}
	out, err := Marshal(flat)
	require.NoError(t, err)
	assert.Equal(t, `{"1":"Go","2":"Rust"}`, string(out))

	grouped := map[any]map[any]any{int64(0): {int64(2): "Rust"}}
	out, err = Marshal(grouped)
	require.NoError(t, err)
	assert.Equal(t, `{"0":{"2":"Rust"}}`, string(out))
}

func TestMarshalIndent(t *testing.T) {
	out, err := MarshalIndent(map[string]any{"b": 1, "a": []any{true}}, "  ")
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": [\n    true\n  ],\n  \"b\": 1\n}", string(out))
}

func TestMarshalIdempotent(t *testing.T) {
	v := map[string]any{"k": []any{"x", int64(1), nil, map[string]any{"z": false, "y": "é"}}}
	first, err := Marshal(v)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Marshal(v)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
