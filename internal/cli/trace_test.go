package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recordkit/internal/datasource"
	"github.com/roach88/recordkit/internal/harness"
)

var traceScenario = filepath.Join("testdata", "scenarios", "tag_lifecycle.yaml")

func runTraceCommand(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestTraceText(t *testing.T) {
	out, err := runTraceCommand(t, "text", traceScenario)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "Scenario: tag_lifecycle\n\n"))
	assert.Contains(t, out, "1 create")
	assert.Contains(t, out, "4 remove")
	assert.Contains(t, out, "INSERT INTO `tags` (`name`) VALUES (:t0)")
	assert.Contains(t, out, "(6 rows)")
	assert.Contains(t, out, "Summary: 4 step(s), 6 statement(s) (3 execute, 3 query)")
	assert.NotContains(t, out, "✗")
}

func TestTraceFilters(t *testing.T) {
	out, err := runTraceCommand(t, "text", traceScenario, "--step", "2", "--kind", "execute")
	require.NoError(t, err)
	assert.Contains(t, out, "UPDATE `tags` SET `name` = :t0 WHERE id = :t1")
	assert.NotContains(t, out, "SELECT")
	assert.Contains(t, out, "Summary: 4 step(s), 1 statement(s) (1 execute, 0 query)")
}

func TestTraceJSON(t *testing.T) {
	out, err := runTraceCommand(t, "json", traceScenario, "--kind", "query")
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Scenario   string           `json:"scenario"`
			Statements []map[string]any `json:"statements"`
			Stats      TraceStats       `json:"stats"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "tag_lifecycle", resp.Data.Scenario)
	assert.Equal(t, TraceStats{Steps: 4, Statements: 3, Executes: 0, Queries: 3, Pass: true}, resp.Data.Stats)
	require.Len(t, resp.Data.Statements, 3)
	assert.Equal(t, float64(2), resp.Data.Statements[0]["step"])
	assert.Equal(t, "query", resp.Data.Statements[0]["kind"])
}

func TestTraceBadInput(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown kind", []string{traceScenario, "--kind", "ddl"}},
		{"step out of range", []string{traceScenario, "--step", "9"}},
		{"missing file", []string{filepath.Join(t.TempDir(), "none.yaml")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runTraceCommand(t, "text", tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

func TestFilterStatements(t *testing.T) {
	all := []harness.TracedStatement{
		{Step: 1, Statement: datasource.Statement{Kind: "execute", SQL: "INSERT"}},
		{Step: 2, Statement: datasource.Statement{Kind: "query", SQL: "SELECT"}},
		{Step: 2, Statement: datasource.Statement{Kind: "execute", SQL: "UPDATE"}},
	}

	assert.Len(t, filterStatements(all, 0, ""), 3)
	assert.Len(t, filterStatements(all, 2, ""), 2)
	got := filterStatements(all, 0, "execute")
	require.Len(t, got, 2)
	assert.Equal(t, "UPDATE", got[1].SQL)
	assert.Empty(t, filterStatements(all, 1, "query"))
}
