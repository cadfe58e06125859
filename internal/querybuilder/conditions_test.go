package querybuilder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recordkit/internal/cond"
)

func compileUsers(t *testing.T, c cond.Conditions) (string, *Params) {
	t.Helper()
	ph := NewPlaceholders("u")
	sql, err := Compile(c, "User", cond.AND, ph)
	require.NoError(t, err)
	return sql, ph.Params()
}

func TestCompile_Comparisons(t *testing.T) {
	tests := []struct {
		name   string
		conds  cond.Conditions
		want   string
		values []any
	}{
		{
			name:   "default equals",
			conds:  cond.Conditions{cond.F("id", 1000)},
			want:   "User.id = :u0",
			values: []any{1000},
		},
		{
			name:   "operator suffixes",
			conds:  cond.Conditions{cond.F("age >", 18), cond.F("age <=", 65), cond.F("name !=", "x")},
			want:   "User.age > :u0 AND User.age <= :u1 AND User.name != :u2",
			values: []any{18, 65, "x"},
		},
		{
			name:   "operator without space",
			conds:  cond.Conditions{cond.F("age>=", 21)},
			want:   "User.age >= :u0",
			values: []any{21},
		},
		{
			name:   "like and not like",
			conds:  cond.Conditions{cond.F("name LIKE", "J%"), cond.F("name not like", "%x")},
			want:   "User.name LIKE :u0 AND User.name NOT LIKE :u1",
			values: []any{"J%", "%x"},
		},
		{
			name:   "field ending in an operator word",
			conds:  cond.Conditions{cond.F("domain", "example.com")},
			want:   "User.domain = :u0",
			values: []any{"example.com"},
		},
		{
			name:   "between",
			conds:  cond.Conditions{cond.F("age BETWEEN", []int{18, 30})},
			want:   "(User.age BETWEEN :u0 AND :u1)",
			values: []any{18, 30},
		},
		{
			name:   "not between",
			conds:  cond.Conditions{cond.F("age NOT BETWEEN", []any{1, 2})},
			want:   "(User.age NOT BETWEEN :u0 AND :u1)",
			values: []any{1, 2},
		},
		{
			name:   "explicit in",
			conds:  cond.Conditions{cond.F("id IN", []int{1, 2, 3})},
			want:   "User.id IN ( :u0, :u1, :u2 )",
			values: []any{1, 2, 3},
		},
		{
			name:   "not in",
			conds:  cond.Conditions{cond.F("id NOT IN", []string{"a"})},
			want:   "User.id NOT IN ( :u0 )",
			values: []any{"a"},
		},
		{
			name:   "in with a scalar",
			conds:  cond.Conditions{cond.F("id IN", 7)},
			want:   "User.id IN ( :u0 )",
			values: []any{7},
		},
		{
			name:  "in with a sub-select",
			conds: cond.Conditions{cond.F("id IN", "SELECT user_id FROM posts")},
			want:  "User.id IN (SELECT user_id FROM posts)",
		},
		{
			name:  "raw fragment",
			conds: cond.Conditions{cond.Raw("created = modified")},
			want:  "created = modified",
		},
		{
			name:   "qualified and function fields are left alone",
			conds:  cond.Conditions{cond.F("Author.id", 1), cond.F("COUNT(id) >", 2), cond.F("LOWER(name) LIKE", "a%")},
			want:   "Author.id = :u0 AND COUNT(id) > :u1 AND LOWER(name) LIKE :u2",
			values: []any{1, 2, "a%"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, params := compileUsers(t, tt.conds)
			assert.Equal(t, tt.want, sql)
			if tt.values == nil {
				assert.Equal(t, 0, params.Len())
			} else {
				assert.Equal(t, tt.values, params.Values())
			}
		})
	}
}

func TestCompile_NullAllocatesNoPlaceholder(t *testing.T) {
	sql, params := compileUsers(t, cond.Conditions{
		cond.F("deleted", nil),
		cond.F("parent_id !=", nil),
	})

	assert.Equal(t, "User.deleted IS NULL AND User.parent_id IS NOT NULL", sql)
	assert.Equal(t, 0, params.Len())
}

func TestCompile_EqualityListBecomesIn(t *testing.T) {
	input := []any{"James", "Rossi", "Ana"}

	sql, params := compileUsers(t, cond.Conditions{cond.F("name", input)})
	assert.Equal(t, "User.name IN ( :u0, :u1, :u2 )", sql)
	assert.Equal(t, input, params.Values())

	sql, params = compileUsers(t, cond.Conditions{cond.F("name !=", input)})
	assert.Equal(t, "User.name NOT IN ( :u0, :u1, :u2 )", sql)
	assert.Equal(t, input, params.Values())
}

func TestCompile_Groups(t *testing.T) {
	tests := []struct {
		name  string
		conds cond.Conditions
		want  string
	}{
		{
			name: "or group is parenthesized",
			conds: cond.Conditions{
				cond.F("status", "active"),
				cond.Or(cond.F("age >", 18), cond.F("vip", true)),
				cond.Raw("created = modified"),
			},
			want: "User.status = :u0 AND (User.age > :u1 OR User.vip = :u2) AND created = modified",
		},
		{
			name:  "single entry group is not parenthesized",
			conds: cond.Conditions{cond.Or(cond.F("a", 1))},
			want:  "User.a = :u0",
		},
		{
			name:  "not group",
			conds: cond.Conditions{cond.Not(cond.F("a", 1), cond.F("b", 2))},
			want:  "NOT (User.a = :u0 AND User.b = :u1)",
		},
		{
			name:  "not group with one entry",
			conds: cond.Conditions{cond.Not(cond.F("a", 1))},
			want:  "NOT (User.a = :u0)",
		},
		{
			name: "block inside or",
			conds: cond.Conditions{
				cond.Or(cond.Block{cond.F("a", 1), cond.F("b", 2)}, cond.F("c", 3)),
			},
			want: "((User.a = :u0 AND User.b = :u1) OR User.c = :u2)",
		},
		{
			name:  "raw inside group",
			conds: cond.Conditions{cond.Or(cond.Raw("x = y"), cond.F("z", nil))},
			want:  "(x = y OR User.z IS NULL)",
		},
		{
			name:  "empty group renders nothing",
			conds: cond.Conditions{cond.F("a", 1), cond.Or(), cond.Not()},
			want:  "User.a = :u0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, _ := compileUsers(t, tt.conds)
			assert.Equal(t, tt.want, sql)
		})
	}
}

func TestCompile_TopLevelOr(t *testing.T) {
	ph := NewPlaceholders("u")
	sql, err := Compile(cond.Conditions{cond.F("a", 1), cond.F("b", 2)}, "", cond.OR, ph)
	require.NoError(t, err)
	assert.Equal(t, "a = :u0 OR b = :u1", sql)
}

func TestCompile_BetweenRequiresTwoValues(t *testing.T) {
	values := []any{
		nil,
		5,
		"a,b",
		[]any{},
		[]any{1},
		[]any{1, 2, 3},
		[]string{"a"},
		[]float64{1.5, 2.5, 3.5},
	}

	for _, op := range []string{"BETWEEN", "NOT BETWEEN"} {
		for _, v := range values {
			_, err := Compile(cond.Conditions{cond.F("age "+op, v)}, "User", cond.AND, NewPlaceholders("u"))
			require.Error(t, err, "%s %v", op, v)
			assert.True(t, HasCode(err, ErrCodeInvalidConditionValue), "%s %v: %v", op, v, err)
		}
	}
}

func TestCompile_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		node cond.Node
	}{
		{"null with greater than", cond.F("age >", nil)},
		{"null with like", cond.F("name LIKE", nil)},
		{"null with in", cond.F("id IN", nil)},
		{"list with like", cond.F("name LIKE", []string{"a", "b"})},
		{"list with less than", cond.F("age <", []int{1, 2})},
		{"empty equality list", cond.F("id", []int{})},
		{"empty in list", cond.F("id IN", []any{})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(cond.Conditions{tt.node}, "User", cond.AND, NewPlaceholders("u"))
			require.Error(t, err)
			assert.True(t, HasCode(err, ErrCodeInvalidConditionValue), err.Error())
		})
	}
}

func TestCompile_InvalidOperator(t *testing.T) {
	for _, key := range []string{"age ~=", "age ==", "age <>", "name REGEXP", "name ILIKE"} {
		t.Run(key, func(t *testing.T) {
			_, err := Compile(cond.Conditions{cond.F(key, 1)}, "User", cond.AND, NewPlaceholders("u"))
			require.Error(t, err)
			assert.True(t, HasCode(err, ErrCodeInvalidOperator), err.Error())
			assert.True(t, IsQueryBuilderError(err))
		})
	}
}

func TestCompile_SpecialFieldsAreNotQualified(t *testing.T) {
	comp := &Compiler{
		Alias:        "Article",
		Special:      map[string]bool{"total": true},
		Placeholders: NewPlaceholders("a"),
	}
	sql, err := comp.Compile(cond.Conditions{cond.F("total >", 3), cond.F("views", 1)}, cond.AND)
	require.NoError(t, err)
	assert.Equal(t, "total > :a0 AND Article.views = :a1", sql)
}

func TestNaturalLess(t *testing.T) {
	assert.True(t, NaturalLess("u2", "u10"))
	assert.False(t, NaturalLess("u10", "u2"))
	assert.True(t, NaturalLess("a1", "b0"))
	assert.True(t, NaturalLess("ct9", "ct11"))
}
