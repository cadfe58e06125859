package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/recordkit/internal/canonical"
)

// Snapshot is the golden form of a run: step outcomes and the statements
// each step issued. Step values are left out; they are checked through
// expect blocks instead.
type Snapshot struct {
	Scenario   string
	Steps      []StepResult
	Statements []TracedStatement
}

// toCanonicalMap converts the snapshot into plain maps and lists for
// canonical JSON.
func (s *Snapshot) toCanonicalMap() map[string]any {
	steps := make([]any, len(s.Steps))
	for i, sr := range s.Steps {
		m := map[string]any{
			"op":    sr.Op,
			"model": sr.Model,
			"ok":    sr.OK,
		}
		if sr.Name != "" {
			m["name"] = sr.Name
		}
		if sr.Error != "" {
			m["error"] = sr.Error
		}
		if len(sr.Errors) > 0 {
			errs := make(map[string]any, len(sr.Errors))
			for field, msgs := range sr.Errors {
				list := make([]any, len(msgs))
				for j, msg := range msgs {
					list[j] = msg
				}
				errs[field] = list
			}
			m["errors"] = errs
		}
		steps[i] = m
	}

	statements := make([]any, len(s.Statements))
	for i, st := range s.Statements {
		params := make(map[string]any, len(st.Params))
		for k, v := range st.Params {
			params[k] = v
		}
		statements[i] = map[string]any{
			"step":   st.Step,
			"kind":   st.Kind,
			"sql":    st.SQL,
			"params": params,
		}
	}

	return map[string]any{
		"scenario":   s.Scenario,
		"steps":      steps,
		"statements": statements,
	}
}

// Marshal renders the snapshot as indented canonical JSON.
func (s *Snapshot) Marshal() ([]byte, error) {
	return canonical.MarshalIndent(s.toCanonicalMap(), "  ")
}

// RunWithGolden executes a scenario and compares its snapshot with
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, opts...)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return result, err
	}
	return result, nil
}

// AssertGolden compares an existing result with its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := Snapshot{
		Scenario:   scenarioName,
		Steps:      result.Steps,
		Statements: result.Statements,
	}
	data, err := snapshot.Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
