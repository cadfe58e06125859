package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted run of model operations against a fresh database.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario checks.
	Description string `yaml:"description"`

	// Models lists CUE model files, relative to the scenario file.
	Models []string `yaml:"models"`

	// Schema holds DDL statements run before fixtures are loaded.
	Schema []string `yaml:"schema,omitempty"`

	// Migrations is a goose migrations directory, relative to the scenario
	// file. It runs before Schema.
	Migrations string `yaml:"migrations,omitempty"`

	// Fixtures are inserted through the models with validation and
	// callbacks off. Their statements are not part of the trace.
	Fixtures []Fixture `yaml:"fixtures,omitempty"`

	// Clock is the RFC 3339 instant the registry clock starts at.
	Clock string `yaml:"clock,omitempty"`

	Steps []Step `yaml:"steps"`

	// Assertions run after every step, against the trace and the database.
	Assertions []Assertion `yaml:"assertions,omitempty"`

	dir string
}

// Fixture is a batch of rows for one model.
type Fixture struct {
	Model string           `yaml:"model"`
	Rows  []map[string]any `yaml:"rows"`
}

// Step is one model operation.
type Step struct {
	Name  string `yaml:"name,omitempty"`
	Op    string `yaml:"op"`
	Model string `yaml:"model"`

	// Data is a record for save, or a record or list of records for
	// save_all.
	Data any `yaml:"data,omitempty"`

	// ID addresses get, exists, delete and save_field.
	ID any `yaml:"id,omitempty"`

	// Field and Value are written by save_field.
	Field string `yaml:"field,omitempty"`
	Value any    `yaml:"value,omitempty"`

	// Find configures find and get.
	Find *FindStep `yaml:"find,omitempty"`

	// Conditions filter delete_all and update_all.
	Conditions map[string]any `yaml:"conditions,omitempty"`

	// Set holds the fields update_all writes.
	Set map[string]any `yaml:"set,omitempty"`

	// SQL and Params drive query.
	SQL    string         `yaml:"sql,omitempty"`
	Params map[string]any `yaml:"params,omitempty"`

	Options StepOptions `yaml:"options,omitempty"`

	// Advance moves the clock forward before the step runs ("1h", "90s").
	Advance string `yaml:"advance,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// FindStep mirrors model.FindOptions.
type FindStep struct {
	Kind       string         `yaml:"kind,omitempty"`
	Conditions map[string]any `yaml:"conditions,omitempty"`
	Fields     []string       `yaml:"fields,omitempty"`
	Order      []string       `yaml:"order,omitempty"`
	Group      []string       `yaml:"group,omitempty"`
	Limit      int            `yaml:"limit,omitempty"`
	Page       int            `yaml:"page,omitempty"`
	Offset     int            `yaml:"offset,omitempty"`
	Recursive  *int           `yaml:"recursive,omitempty"`
	Associated []string       `yaml:"associated,omitempty"`
}

// StepOptions toggle save and delete behaviour. Unset values keep the
// operation's default.
type StepOptions struct {
	Validate    *bool    `yaml:"validate,omitempty"`
	Callbacks   *bool    `yaml:"callbacks,omitempty"`
	Cascade     *bool    `yaml:"cascade,omitempty"`
	Transaction *bool    `yaml:"transaction,omitempty"`
	FieldList   []string `yaml:"field_list,omitempty"`
}

// Expect describes the outcome of a step. Every field is optional.
type Expect struct {
	// OK is the boolean outcome of save and delete operations, or whether a
	// read returned without error.
	OK *bool `yaml:"ok,omitempty"`

	// Error is the code of the expected error, e.g. NOT_FOUND.
	Error string `yaml:"error,omitempty"`

	// Errors are the validation messages expected on the saved record.
	Errors map[string][]string `yaml:"errors,omitempty"`

	// Count checks count finds, list lengths, update_all and row results.
	Count *int `yaml:"count,omitempty"`

	// Result is matched as a subset of the step result.
	Result any `yaml:"result,omitempty"`
}

// Assertion checks the statement trace or the final database state.
type Assertion struct {
	Type string `yaml:"type"`

	// SQL is a substring a statement must contain (statement_contains,
	// statement_count).
	SQL string `yaml:"sql,omitempty"`

	// Kind restricts statement matching to "execute" or "query".
	Kind string `yaml:"kind,omitempty"`

	// Params are matched as a subset of the statement parameters.
	Params map[string]any `yaml:"params,omitempty"`

	// Statements are substrings that must match statements in this order.
	Statements []string `yaml:"statements,omitempty"`

	Table  string         `yaml:"table,omitempty"`
	Where  map[string]any `yaml:"where,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`
	Count  *int           `yaml:"count,omitempty"`
}

// Step operations.
const (
	OpSave      = "save"
	OpSaveAll   = "save_all"
	OpSaveField = "save_field"
	OpFind      = "find"
	OpGet       = "get"
	OpExists    = "exists"
	OpDelete    = "delete"
	OpDeleteAll = "delete_all"
	OpUpdateAll = "update_all"
	OpQuery     = "query"
)

// Assertion types.
const (
	AssertStatementContains = "statement_contains"
	AssertStatementCount    = "statement_count"
	AssertStatementOrder    = "statement_order"
	AssertFinalState        = "final_state"
	AssertRowCount          = "row_count"
)

var validOps = map[string]bool{
	OpSave: true, OpSaveAll: true, OpSaveField: true, OpFind: true, OpGet: true,
	OpExists: true, OpDelete: true, OpDeleteAll: true, OpUpdateAll: true, OpQuery: true,
}

var validAssertions = map[string]bool{
	AssertStatementContains: true, AssertStatementCount: true, AssertStatementOrder: true,
	AssertFinalState: true, AssertRowCount: true,
}

var validFindKinds = map[string]bool{"": true, "first": true, "all": true, "count": true, "list": true}

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so typos fail loudly. Relative paths resolve against the
// scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseScenario parses scenario YAML, resolving relative paths against dir.
func ParseScenario(data []byte, dir string) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	scenario.dir = dir

	for i, p := range scenario.Models {
		scenario.Models[i] = scenario.resolve(p)
	}
	if scenario.Migrations != "" {
		scenario.Migrations = scenario.resolve(scenario.Migrations)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func (s *Scenario) resolve(p string) string {
	if filepath.IsAbs(p) || s.dir == "" {
		return p
	}
	return filepath.Join(s.dir, p)
}

// validateScenario checks required fields and closed vocabularies.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Models) == 0 {
		return fmt.Errorf("models list is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	for _, p := range s.Models {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return fmt.Errorf("model file not found: %s", p)
		}
	}
	if s.Clock != "" {
		if _, err := time.Parse(time.RFC3339, s.Clock); err != nil {
			return fmt.Errorf("clock: %w", err)
		}
	}

	for i, f := range s.Fixtures {
		if f.Model == "" {
			return fmt.Errorf("fixtures[%d]: model is required", i)
		}
	}

	for i, step := range s.Steps {
		if !validOps[step.Op] {
			return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
		}
		if step.Model == "" {
			return fmt.Errorf("steps[%d]: model is required", i)
		}
		if step.Find != nil && !validFindKinds[step.Find.Kind] {
			return fmt.Errorf("steps[%d]: unknown find kind %q", i, step.Find.Kind)
		}
		if step.Advance != "" {
			if _, err := time.ParseDuration(step.Advance); err != nil {
				return fmt.Errorf("steps[%d]: advance: %w", i, err)
			}
		}
		switch step.Op {
		case OpSave, OpSaveAll:
			if step.Data == nil {
				return fmt.Errorf("steps[%d]: %s requires data", i, step.Op)
			}
		case OpSaveField:
			if step.ID == nil || step.Field == "" {
				return fmt.Errorf("steps[%d]: save_field requires id and field", i)
			}
		case OpGet, OpExists, OpDelete:
			if step.ID == nil {
				return fmt.Errorf("steps[%d]: %s requires id", i, step.Op)
			}
		case OpUpdateAll:
			if len(step.Set) == 0 {
				return fmt.Errorf("steps[%d]: update_all requires set", i)
			}
		case OpQuery:
			if step.SQL == "" {
				return fmt.Errorf("steps[%d]: query requires sql", i)
			}
		}
	}

	for i, a := range s.Assertions {
		if !validAssertions[a.Type] {
			return fmt.Errorf("assertions[%d]: unknown type %q", i, a.Type)
		}
		switch a.Type {
		case AssertStatementContains:
			if a.SQL == "" {
				return fmt.Errorf("assertions[%d]: statement_contains requires sql", i)
			}
		case AssertStatementCount:
			if a.Count == nil {
				return fmt.Errorf("assertions[%d]: statement_count requires count", i)
			}
		case AssertStatementOrder:
			if len(a.Statements) < 2 {
				return fmt.Errorf("assertions[%d]: statement_order requires at least two statements", i)
			}
		case AssertFinalState:
			if a.Table == "" || len(a.Expect) == 0 {
				return fmt.Errorf("assertions[%d]: final_state requires table and expect", i)
			}
		case AssertRowCount:
			if a.Table == "" || a.Count == nil {
				return fmt.Errorf("assertions[%d]: row_count requires table and count", i)
			}
		}
	}
	return nil
}
