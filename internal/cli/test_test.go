package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// copyScenario writes the tag lifecycle scenario into a temp directory with
// absolute model and migration paths, optionally under a new name.
func copyScenario(t *testing.T, name string) string {
	t.Helper()
	dir := t.TempDir()

	data, err := os.ReadFile(filepath.Join("testdata", "scenarios", "tag_lifecycle.yaml"))
	require.NoError(t, err)
	models, err := filepath.Abs(filepath.Join("testdata", "models", "blog.cue"))
	require.NoError(t, err)
	migrations, err := filepath.Abs(filepath.Join("testdata", "migrations"))
	require.NoError(t, err)

	content := strings.ReplaceAll(string(data), "../models/blog.cue", models)
	content = strings.ReplaceAll(content, "../migrations", migrations)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(content), 0644))
	return dir
}

func runTestCommand(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestTestCommandPassesWithGolden(t *testing.T) {
	out, err := runTestCommand(t, "text", filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	assert.Contains(t, out, "✓ tag_lifecycle\n")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommandJSON(t *testing.T) {
	out, err := runTestCommand(t, "json", filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Passed)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "tag_lifecycle", resp.Data.Scenarios[0].Name)
}

func TestTestCommandUpdateWritesGolden(t *testing.T) {
	dir := copyScenario(t, "tag_lifecycle")

	out, err := runTestCommand(t, "text", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ tag_lifecycle (golden updated)")

	written, err := os.ReadFile(filepath.Join(dir, "golden", "tag_lifecycle.golden"))
	require.NoError(t, err)
	want, err := os.ReadFile(filepath.Join("testdata", "scenarios", "golden", "tag_lifecycle.golden"))
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSpace(string(want)), strings.TrimSpace(string(written)))

	// the fresh golden file is now compared against
	out, err = runTestCommand(t, "text", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ tag_lifecycle\n")
}

func TestTestCommandGoldenMismatch(t *testing.T) {
	dir := copyScenario(t, "tag_lifecycle")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "golden"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "tag_lifecycle.golden"), []byte("{}\n"), 0644))

	out, err := runTestCommand(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ tag_lifecycle")
	assert.Contains(t, out, "statements do not match golden file")
	assert.Contains(t, out, "Test Summary: 0 passed, 1 failed, 1 total")
}

func TestTestCommandFailingExpectation(t *testing.T) {
	dir := copyScenario(t, "tag_lifecycle")
	path := filepath.Join(dir, "tag_lifecycle.yaml")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte(strings.Replace(string(data), "expect: {count: 1}", "expect: {count: 5}", 1)), 0644))

	out, err := runTestCommand(t, "json", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
}

func TestTestCommandFilter(t *testing.T) {
	out, err := runTestCommand(t, "text", filepath.Join("testdata", "scenarios"), "--filter", "article*")
	require.NoError(t, err)
	assert.Equal(t, "No scenarios found.\n", out)

	out, err = runTestCommand(t, "text", filepath.Join("testdata", "scenarios"), "--filter", "tag_*")
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed")

	_, err = runTestCommand(t, "text", filepath.Join("testdata", "scenarios"), "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandEmptyDirectory(t *testing.T) {
	out, err := runTestCommand(t, "json", t.TempDir())
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 0, resp.Data.Total)
}

func TestTestCommandMissingDirectory(t *testing.T) {
	_, err := runTestCommand(t, "text", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandBrokenScenario(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: [unclosed\n"), 0644))

	out, err := runTestCommand(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestFindScenarioFilesSkipsGolden(t *testing.T) {
	files, err := findScenarioFiles(filepath.Join("testdata", "scenarios"), "")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "tag_lifecycle.yaml", filepath.Base(files[0]))
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t,
		filepath.Join("scenarios", "golden", "cascade.golden"),
		goldenFilePath(filepath.Join("scenarios", "cascade.yaml")))
}
