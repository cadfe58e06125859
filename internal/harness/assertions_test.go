package harness

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recordkit/internal/datasource"
	"github.com/roach88/recordkit/internal/entity"
)

func traced(step int, kind, sql string, params map[string]any) TracedStatement {
	return TracedStatement{Statement: datasource.Statement{Kind: kind, SQL: sql, Params: params}, Step: step}
}

var sampleTrace = []TracedStatement{
	traced(1, "execute", "INSERT INTO `tags` (`name`) VALUES (:t0)", map[string]any{"t0": "go"}),
	traced(2, "query", "SELECT COUNT(*) AS count FROM `tags` AS `Tag` WHERE Tag.id = :t0", map[string]any{"t0": int64(1)}),
	traced(2, "execute", "UPDATE `tags` SET `name` = :t0 WHERE id = :t1", map[string]any{"t0": "web", "t1": int64(1)}),
	traced(3, "execute", "DELETE FROM `tags` WHERE id = :t0", map[string]any{"t0": int64(1)}),
}

func TestAssertStatementContains(t *testing.T) {
	tests := []struct {
		name string
		a    Assertion
		ok   bool
	}{
		{"substring", Assertion{SQL: "UPDATE `tags`"}, true},
		{"with params", Assertion{SQL: "UPDATE", Params: map[string]any{"t0": "web"}}, true},
		{"int widths compare equal", Assertion{SQL: "DELETE", Params: map[string]any{"t0": 1}}, true},
		{"wrong params", Assertion{SQL: "UPDATE", Params: map[string]any{"t0": "go"}}, false},
		{"kind filter", Assertion{SQL: "COUNT(*)", Kind: "execute"}, false},
		{"missing", Assertion{SQL: "INSERT INTO `posts`"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.a.Type = AssertStatementContains
			err := assertStatementContains(sampleTrace, tt.a)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			var ae *AssertionError
			require.True(t, errors.As(err, &ae))
			assert.Equal(t, AssertStatementContains, ae.Type)
		})
	}
}

func TestAssertStatementCount(t *testing.T) {
	tests := []struct {
		name  string
		a     Assertion
		count int
		ok    bool
	}{
		{"all statements", Assertion{}, 4, true},
		{"executes", Assertion{Kind: "execute"}, 3, true},
		{"by substring", Assertion{SQL: "`tags`"}, 4, true},
		{"zero", Assertion{SQL: "INSERT INTO `posts`"}, 0, true},
		{"mismatch", Assertion{Kind: "query"}, 2, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.a.Count = intPtr(tt.count)
			err := assertStatementCount(sampleTrace, tt.a)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestAssertStatementOrder(t *testing.T) {
	tests := []struct {
		name       string
		statements []string
		kind       string
		ok         bool
	}{
		{"in order", []string{"INSERT", "UPDATE", "DELETE"}, "", true},
		{"gaps allowed", []string{"INSERT", "DELETE"}, "", true},
		{"reversed", []string{"DELETE", "INSERT"}, "", false},
		{"missing", []string{"INSERT", "TRUNCATE"}, "", false},
		{"same substring twice", []string{"`tags`", "`tags`", "`tags`", "`tags`"}, "", true},
		{"too many repeats", []string{"UPDATE", "UPDATE"}, "", false},
		{"kind filter", []string{"INSERT", "COUNT(*)"}, "execute", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertStatementOrder(sampleTrace, Assertion{Statements: tt.statements, Kind: tt.kind})
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestAssertionError_ErrorFormat(t *testing.T) {
	err := &AssertionError{
		Type:       AssertStatementContains,
		Expected:   `statement containing "X"`,
		Actual:     "not found in trace",
		Statements: sampleTrace[:1],
	}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: statement_contains")
	assert.Contains(t, msg, `Expected: statement containing "X"`)
	assert.Contains(t, msg, "Actual: not found in trace")
	assert.Contains(t, msg, "[1] step 1 INSERT INTO `tags`")
}

func TestBuildSelect(t *testing.T) {
	query, params, err := buildSelect("tags", "*", nil)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM tags", query)
	assert.Empty(t, params)

	query, params, err = buildSelect("tags", "COUNT(*) AS count", map[string]any{"name": "go", "id": 1, "deleted": nil})
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) AS count FROM tags WHERE deleted IS NULL AND id = :w1 AND name = :w2", query)
	assert.Equal(t, map[string]any{"w1": 1, "w2": "go"}, params)

	_, _, err = buildSelect("tags; DROP TABLE tags", "*", nil)
	assert.ErrorContains(t, err, "invalid table name")

	_, _, err = buildSelect("tags", "*", map[string]any{"name = 1 OR 1": 1})
	assert.ErrorContains(t, err, "invalid column name")
}

func TestFormatWhere(t *testing.T) {
	assert.Equal(t, "(all rows)", formatWhere(nil))
	assert.Equal(t, "a=1, b=x", formatWhere(map[string]any{"b": "x", "a": 1}))
}

func TestSubsetMatch(t *testing.T) {
	tests := []struct {
		name     string
		expected any
		actual   any
		want     bool
	}{
		{"equal scalars", "go", "go", true},
		{"int widths", 1, int64(1), true},
		{"float and int", 1.0, int64(1), true},
		{"different scalars", 1, int64(2), false},
		{"time as string", "2024-01-01T00:00:00Z", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), true},
		{"map subset", map[string]any{"a": 1}, map[string]any{"a": int64(1), "b": "x"}, true},
		{"map missing key", map[string]any{"c": 1}, map[string]any{"a": 1}, false},
		{"nested", map[string]any{"a": map[string]any{"b": true}}, map[string]any{"a": map[string]any{"b": true, "c": 2}}, true},
		{"list element subset", []any{map[string]any{"a": 1}}, []any{map[string]any{"a": 1, "b": 2}}, true},
		{"list length differs", []any{1}, []any{1, 2}, false},
		{"entity", map[string]any{"name": "go"}, entity.FromMap("Tag", map[string]any{"id": 1, "name": "go"}), true},
		{"null", nil, nil, true},
		{"null vs value", nil, 0, false},
		{"unsupported actual", 1, struct{}{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, subsetMatch(tt.expected, tt.actual))
		})
	}
}

func TestCountOf(t *testing.T) {
	tests := []struct {
		name string
		v    any
		n    int64
		ok   bool
	}{
		{"count", int64(7), 7, true},
		{"nil", nil, 0, true},
		{"entity", entity.New("Tag"), 1, true},
		{"nil entity", (*entity.Entity)(nil), 0, true},
		{"entities", []*entity.Entity{entity.New("Tag"), entity.New("Tag")}, 2, true},
		{"list", []any{1, 2, 3}, 3, true},
		{"map", map[any]any{1: "a"}, 1, true},
		{"bool", true, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, ok := countOf(tt.v)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.n, n)
		})
	}
}

func TestCheckExpect(t *testing.T) {
	step := Step{Op: OpSave, Model: "Tag"}

	assert.Empty(t, checkExpect(step, StepResult{OK: true}, nil), "no expect and no error")
	assert.Len(t, checkExpect(step, StepResult{}, errors.New("boom")), 1)

	step.Expect = &Expect{Errors: map[string][]string{"name": {"This field is required"}}}
	assert.Empty(t, checkExpect(step, StepResult{Errors: map[string][]string{"name": {"This field is required"}}}, nil))
	assert.Len(t, checkExpect(step, StepResult{}, nil), 1)

	step.Expect = &Expect{Error: "NOT_FOUND"}
	assert.Empty(t, checkExpect(step, StepResult{Error: "NOT_FOUND"}, errors.New("not found")))
	failures := checkExpect(step, StepResult{Error: "EXECUTION"}, errors.New("failed"))
	require.Len(t, failures, 1)
	assert.Equal(t, "expected error NOT_FOUND, got EXECUTION", failures[0])

	step.Expect = &Expect{Count: intPtr(1)}
	failures = checkExpect(step, StepResult{Value: true}, nil)
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0], "no countable result")
}

func openStateDB(t *testing.T) *datasource.Connection {
	t.Helper()
	ctx := context.Background()
	conn, err := datasource.Open(ctx, "state", datasource.Config{DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	for _, stmt := range []string{
		tagsDDL,
		"INSERT INTO tags (name) VALUES ('go'), ('web')",
	} {
		_, err := conn.Execute(ctx, stmt, nil)
		require.NoError(t, err)
	}
	return conn
}

func TestAssertFinalState(t *testing.T) {
	ctx := context.Background()
	conn := openStateDB(t)

	tests := []struct {
		name    string
		a       Assertion
		wantErr string
	}{
		{"row found", Assertion{Table: "tags", Where: map[string]any{"id": 2}, Expect: map[string]any{"name": "web"}}, ""},
		{"extra columns ignored", Assertion{Table: "tags", Where: map[string]any{"name": "go"}, Expect: map[string]any{"id": 1}}, ""},
		{"no row", Assertion{Table: "tags", Where: map[string]any{"id": 9}, Expect: map[string]any{"name": "go"}}, "no rows found"},
		{"value mismatch", Assertion{Table: "tags", Where: map[string]any{"id": 1}, Expect: map[string]any{"name": "web"}}, "tags.name = web"},
		{"missing column", Assertion{Table: "tags", Where: map[string]any{"id": 1}, Expect: map[string]any{"slug": "go"}}, "no such column"},
		{"type mismatch", Assertion{Table: "tags", Where: map[string]any{"id": 1}, Expect: map[string]any{"id": "1"}}, "tags.id"},
		{"unknown table", Assertion{Table: "posts", Expect: map[string]any{"id": 1}}, "final_state query failed"},
		{"invalid table", Assertion{Table: "tags t", Expect: map[string]any{"id": 1}}, "invalid table name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertFinalState(ctx, conn, tt.a)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAssertRowCount(t *testing.T) {
	ctx := context.Background()
	conn := openStateDB(t)

	assert.NoError(t, assertRowCount(ctx, conn, Assertion{Table: "tags", Count: intPtr(2)}))
	assert.NoError(t, assertRowCount(ctx, conn, Assertion{Table: "tags", Where: map[string]any{"name": "go"}, Count: intPtr(1)}))
	assert.Error(t, assertRowCount(ctx, conn, Assertion{Table: "tags", Count: intPtr(3)}))
}

func TestEvaluateAssertions(t *testing.T) {
	ctx := context.Background()
	conn := openStateDB(t)
	result := &Result{Statements: sampleTrace}

	failures := EvaluateAssertions(ctx, result, []Assertion{
		{Type: AssertStatementContains, SQL: "INSERT"},
		{Type: AssertStatementCount, Count: intPtr(4)},
		{Type: AssertStatementOrder, Statements: []string{"INSERT", "DELETE"}},
		{Type: AssertRowCount, Table: "tags", Count: intPtr(2)},
		{Type: AssertFinalState, Table: "tags", Where: map[string]any{"id": 1}, Expect: map[string]any{"name": "go"}},
	}, conn)
	assert.Empty(t, failures)

	failures = EvaluateAssertions(ctx, result, []Assertion{
		{Type: AssertStatementContains, SQL: "TRUNCATE"},
		{Type: AssertRowCount, Table: "tags", Count: intPtr(0)},
		{Type: "bogus"},
	}, conn)
	require.Len(t, failures, 3)
	assert.Contains(t, failures[2], "unknown assertion type: bogus")
}
