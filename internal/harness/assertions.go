package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/roach88/recordkit/internal/canonical"
	"github.com/roach88/recordkit/internal/datasource"
	"github.com/roach88/recordkit/internal/entity"
)

// validIdentifier matches valid SQL identifiers (table/column names).
// Identifiers are interpolated into final_state queries.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type       string
	Expected   string
	Actual     string
	Statements []TracedStatement
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if len(e.Statements) > 0 {
		fmt.Fprintf(&buf, "\nStatements:\n")
		for i, st := range e.Statements {
			fmt.Fprintf(&buf, "  [%d] step %d %s\n", i+1, st.Step, st.SQL)
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns one message per
// failure. State assertions read through conn directly, so they do not
// appear in the trace.
func EvaluateAssertions(ctx context.Context, result *Result, assertions []Assertion, conn datasource.Datasource) []string {
	var failures []string
	for _, a := range assertions {
		var err error
		switch a.Type {
		case AssertStatementContains:
			err = assertStatementContains(result.Statements, a)
		case AssertStatementCount:
			err = assertStatementCount(result.Statements, a)
		case AssertStatementOrder:
			err = assertStatementOrder(result.Statements, a)
		case AssertFinalState:
			err = assertFinalState(ctx, conn, a)
		case AssertRowCount:
			err = assertRowCount(ctx, conn, a)
		default:
			err = fmt.Errorf("unknown assertion type: %s", a.Type)
		}
		if err != nil {
			failures = append(failures, err.Error())
		}
	}
	return failures
}

func statementMatches(st TracedStatement, a Assertion) bool {
	if a.Kind != "" && st.Kind != a.Kind {
		return false
	}
	if a.SQL != "" && !strings.Contains(st.SQL, a.SQL) {
		return false
	}
	if len(a.Params) > 0 && !subsetMatch(map[string]any(a.Params), st.Params) {
		return false
	}
	return true
}

func assertStatementContains(statements []TracedStatement, a Assertion) error {
	for _, st := range statements {
		if statementMatches(st, a) {
			return nil
		}
	}
	expected := fmt.Sprintf("statement containing %q", a.SQL)
	if len(a.Params) > 0 {
		expected += fmt.Sprintf(" with params %v", a.Params)
	}
	return &AssertionError{
		Type:       AssertStatementContains,
		Expected:   expected,
		Actual:     "not found in trace",
		Statements: statements,
	}
}

// assertStatementCount counts matching statements. Without sql every
// statement matches.
func assertStatementCount(statements []TracedStatement, a Assertion) error {
	count := 0
	for _, st := range statements {
		if statementMatches(st, a) {
			count++
		}
	}
	if count != *a.Count {
		return &AssertionError{
			Type:       AssertStatementCount,
			Expected:   fmt.Sprintf("%d statements matching %q", *a.Count, a.SQL),
			Actual:     fmt.Sprintf("%d", count),
			Statements: statements,
		}
	}
	return nil
}

// assertStatementOrder checks that each substring matches a statement after
// the one matched by its predecessor. Other statements may come between.
func assertStatementOrder(statements []TracedStatement, a Assertion) error {
	pos := 0
	for _, want := range a.Statements {
		found := false
		for pos < len(statements) {
			st := statements[pos]
			pos++
			if (a.Kind == "" || st.Kind == a.Kind) && strings.Contains(st.SQL, want) {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:       AssertStatementOrder,
				Expected:   fmt.Sprintf("statements in order: %q", a.Statements),
				Actual:     fmt.Sprintf("no statement containing %q after position %d", want, pos),
				Statements: statements,
			}
		}
	}
	return nil
}

// assertFinalState checks the first row matching where against expect.
func assertFinalState(ctx context.Context, conn datasource.Datasource, a Assertion) error {
	query, params, err := buildSelect(a.Table, "*", a.Where)
	if err != nil {
		return err
	}
	row, err := conn.Fetch(ctx, query, params)
	if err != nil {
		return fmt.Errorf("final_state query failed: %w", err)
	}
	if row == nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", a.Table, formatWhere(a.Where)),
			Actual:   "no rows found",
		}
	}
	actual := row.Map()
	for _, field := range sortedKeys(a.Expect) {
		got, ok := actual[field]
		if !ok {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s.%s = %v", a.Table, field, a.Expect[field]),
				Actual:   "no such column",
			}
		}
		if !subsetMatch(a.Expect[field], got) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s.%s = %v", a.Table, field, a.Expect[field]),
				Actual:   fmt.Sprintf("%v", got),
			}
		}
	}
	return nil
}

func assertRowCount(ctx context.Context, conn datasource.Datasource, a Assertion) error {
	query, params, err := buildSelect(a.Table, "COUNT(*) AS count", a.Where)
	if err != nil {
		return err
	}
	row, err := conn.Fetch(ctx, query, params)
	if err != nil {
		return fmt.Errorf("row_count query failed: %w", err)
	}
	var n int64
	if row != nil {
		v, _ := row.Get("count")
		n, _ = v.(int64)
	}
	if n != int64(*a.Count) {
		return &AssertionError{
			Type:     AssertRowCount,
			Expected: fmt.Sprintf("%d rows in %s where %s", *a.Count, a.Table, formatWhere(a.Where)),
			Actual:   fmt.Sprintf("%d", n),
		}
	}
	return nil
}

// buildSelect renders a SELECT with AND-ed equality conditions. A nil value
// compares with IS NULL.
func buildSelect(table, fields string, where map[string]any) (string, map[string]any, error) {
	if !validIdentifier.MatchString(table) {
		return "", nil, fmt.Errorf("invalid table name: %q", table)
	}
	var (
		clauses []string
		params  = make(map[string]any)
	)
	for i, col := range sortedKeys(where) {
		if !validIdentifier.MatchString(col) {
			return "", nil, fmt.Errorf("invalid column name: %q", col)
		}
		if where[col] == nil {
			clauses = append(clauses, col+" IS NULL")
			continue
		}
		name := fmt.Sprintf("w%d", i)
		clauses = append(clauses, fmt.Sprintf("%s = :%s", col, name))
		params[name] = where[col]
	}
	query := fmt.Sprintf("SELECT %s FROM %s", fields, table)
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	return query, params, nil
}

func formatWhere(where map[string]any) string {
	if len(where) == 0 {
		return "(all rows)"
	}
	parts := make([]string, 0, len(where))
	for _, k := range sortedKeys(where) {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, ", ")
}

// checkExpect compares a step's outcome with its expect block. A step
// without one only fails on an error.
func checkExpect(step Step, sr StepResult, err error) []string {
	exp := step.Expect
	if exp == nil {
		if err != nil {
			return []string{fmt.Sprintf("unexpected error: %v", err)}
		}
		return nil
	}

	var failures []string
	switch {
	case exp.Error != "" && err == nil:
		failures = append(failures, fmt.Sprintf("expected error %s, got none", exp.Error))
	case exp.Error != "" && sr.Error != exp.Error:
		failures = append(failures, fmt.Sprintf("expected error %s, got %s", exp.Error, sr.Error))
	case exp.Error == "" && err != nil:
		failures = append(failures, fmt.Sprintf("unexpected error: %v", err))
	}

	if exp.OK != nil && *exp.OK != sr.OK {
		failures = append(failures, fmt.Sprintf("expected ok=%t, got %t", *exp.OK, sr.OK))
	}

	if exp.Errors != nil && !errorsEqual(exp.Errors, sr.Errors) {
		failures = append(failures, fmt.Sprintf("expected validation errors %v, got %v", exp.Errors, sr.Errors))
	}

	if exp.Count != nil {
		if n, ok := countOf(sr.Value); !ok {
			failures = append(failures, fmt.Sprintf("expected count %d, but %s returns no countable result", *exp.Count, step.Op))
		} else if n != int64(*exp.Count) {
			failures = append(failures, fmt.Sprintf("expected count %d, got %d", *exp.Count, n))
		}
	}

	if exp.Result != nil && !subsetMatch(exp.Result, sr.Value) {
		got, _ := canonical.Marshal(sr.Value)
		failures = append(failures, fmt.Sprintf("result mismatch: expected %v, got %s", exp.Result, got))
	}
	return failures
}

func errorsEqual(expected, actual map[string][]string) bool {
	if len(expected) == 0 && len(actual) == 0 {
		return true
	}
	return reflect.DeepEqual(expected, actual)
}

// countOf returns the size of a step value: counts as-is, lists and maps by
// length, a single entity as 1 and a missing one as 0.
func countOf(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case *entity.Entity:
		if t == nil {
			return 0, true
		}
		return 1, true
	case nil:
		return 0, true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map:
		return int64(rv.Len()), true
	}
	return 0, false
}

// subsetMatch reports whether actual contains expected. Both sides are
// brought to their JSON form first, so entities, integer widths and times
// compare by value. Maps match when every expected key matches; lists match
// element by element.
func subsetMatch(expected, actual any) bool {
	e, err := normalize(expected)
	if err != nil {
		return false
	}
	a, err := normalize(actual)
	if err != nil {
		return false
	}
	return subset(e, a)
}

func subset(expected, actual any) bool {
	switch e := expected.(type) {
	case map[string]any:
		a, ok := actual.(map[string]any)
		if !ok {
			return false
		}
		for k, ev := range e {
			av, ok := a[k]
			if !ok || !subset(ev, av) {
				return false
			}
		}
		return true
	case []any:
		a, ok := actual.([]any)
		if !ok || len(a) != len(e) {
			return false
		}
		for i := range e {
			if !subset(e[i], a[i]) {
				return false
			}
		}
		return true
	default:
		return reflect.DeepEqual(expected, actual)
	}
}

// normalize round-trips v through canonical JSON. Numbers decode as
// json.Number so 1, int64(1) and 1.0 compare equal.
func normalize(v any) (any, error) {
	raw, err := canonical.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
