package harness

import "github.com/roach88/recordkit/internal/datasource"

// StepResult is the outcome of one step.
type StepResult struct {
	Name  string
	Op    string
	Model string

	// OK is the boolean outcome of writes, or true when a read succeeded.
	OK bool

	// Error is the error code, or the message when the error has no code.
	Error string

	// Errors are the validation messages left on the saved record.
	Errors map[string][]string

	// Value is the step's return value: entities, counts, lists or rows.
	Value any

	// Statements is the number of statements the step issued.
	Statements int
}

// TracedStatement is a recorded statement tagged with the 1-based step that
// issued it.
type TracedStatement struct {
	datasource.Statement
	Step int
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool

	Steps      []StepResult
	Statements []TracedStatement

	// Errors holds one message per failed expectation or assertion.
	Errors []string
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:       true,
		Steps:      []StepResult{},
		Statements: []TracedStatement{},
		Errors:     []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
