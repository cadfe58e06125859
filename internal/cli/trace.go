package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/recordkit/internal/harness"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Step int    // optional - only this step (1-based)
	Kind string // optional - "execute" or "query"
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Steps      int  `json:"steps"`
	Statements int  `json:"statements"`
	Executes   int  `json:"executes"`
	Queries    int  `json:"queries"`
	Pass       bool `json:"pass"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace <scenario-file>",
		Short: "Show the SQL a scenario issues",
		Long: `Run one scenario and print every statement it issued, tagged with
the step that issued it. Fixture loading is not traced.

Examples:
  recordkit trace scenarios/cascade.yaml
  recordkit trace scenarios/cascade.yaml --step 3
  recordkit trace scenarios/cascade.yaml --kind execute --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Step, "step", 0, "only show statements of this step (1-based)")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "only show statements of this kind (execute|query)")

	return cmd
}

func runTrace(opts *TraceOptions, scenarioFile string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if opts.Kind != "" && opts.Kind != "execute" && opts.Kind != "query" {
		msg := fmt.Sprintf("invalid kind %q: must be execute or query", opts.Kind)
		_ = formatter.Error(ErrCodeBadInput, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	scenario, err := harness.LoadScenario(scenarioFile)
	if err != nil {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	if opts.Step < 0 || opts.Step > len(scenario.Steps) {
		msg := fmt.Sprintf("step %d out of range: scenario has %d step(s)", opts.Step, len(scenario.Steps))
		_ = formatter.Error(ErrCodeBadInput, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	var runOpts []harness.Option
	if opts.Logger != nil {
		runOpts = append(runOpts, harness.WithLogger(opts.Logger))
	}
	result, err := harness.Run(scenario, runOpts...)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to run scenario", err)
	}

	statements := filterStatements(result.Statements, opts.Step, opts.Kind)
	stats := calculateTraceStats(result, statements)

	if formatter.Format == "json" {
		items := make([]any, len(statements))
		for i, st := range statements {
			m := statementMap(st.Statement)
			m["step"] = st.Step
			items[i] = m
		}
		return formatter.Records(map[string]any{
			"scenario":   scenario.Name,
			"statements": items,
			"stats": map[string]any{
				"steps":      stats.Steps,
				"statements": stats.Statements,
				"executes":   stats.Executes,
				"queries":    stats.Queries,
				"pass":       stats.Pass,
			},
		})
	}

	fmt.Fprintf(formatter.Writer, "Scenario: %s\n\n", scenario.Name)
	rows := make([]map[string]any, len(statements))
	for i, st := range statements {
		row := statementMap(st.Statement)
		row["step"] = fmt.Sprintf("%d %s", st.Step, stepName(result, st.Step))
		rows[i] = row
	}
	formatter.Table([]string{"step", "kind", "sql", "params"}, rows)

	fmt.Fprintln(formatter.Writer)
	fmt.Fprintf(formatter.Writer, "Summary: %d step(s), %d statement(s) (%d execute, %d query)\n",
		stats.Steps, stats.Statements, stats.Executes, stats.Queries)
	if !stats.Pass {
		for _, e := range result.Errors {
			fmt.Fprintf(formatter.Writer, "  ✗ %s\n", e)
		}
	}
	return nil
}

func filterStatements(all []harness.TracedStatement, step int, kind string) []harness.TracedStatement {
	out := make([]harness.TracedStatement, 0, len(all))
	for _, st := range all {
		if step > 0 && st.Step != step {
			continue
		}
		if kind != "" && st.Kind != kind {
			continue
		}
		out = append(out, st)
	}
	return out
}

func stepName(result *harness.Result, step int) string {
	if step < 1 || step > len(result.Steps) {
		return ""
	}
	s := result.Steps[step-1]
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("%s %s", s.Op, s.Model)
}

// calculateTraceStats computes summary statistics over shown statements.
func calculateTraceStats(result *harness.Result, statements []harness.TracedStatement) TraceStats {
	stats := TraceStats{
		Steps:      len(result.Steps),
		Statements: len(statements),
		Pass:       result.Pass,
	}
	for _, st := range statements {
		switch st.Kind {
		case "execute":
			stats.Executes++
		case "query":
			stats.Queries++
		}
	}
	return stats
}
