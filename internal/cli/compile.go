package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/recordkit/internal/compiler"
	"github.com/roach88/recordkit/internal/inflector"
	"github.com/roach88/recordkit/internal/model"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// ModelSummary describes one compiled model.
type ModelSummary struct {
	Name         string              `json:"name"`
	Table        string              `json:"table"`
	PrimaryKey   string              `json:"primary_key"`
	DisplayField string              `json:"display_field,omitempty"`
	Datasource   string              `json:"datasource,omitempty"`
	Order        []string            `json:"order,omitempty"`
	Associations map[string][]string `json:"associations,omitempty"` // kind -> aliases
	Validate     []string            `json:"validate,omitempty"`     // validated fields
	Extensions   []string            `json:"extensions,omitempty"`
}

// CompilationResult holds the compiled models.
type CompilationResult struct {
	Models []ModelSummary `json:"models"`
}

// CompilationStats holds summary statistics.
type CompilationStats struct {
	ModelCount       int
	AssociationCount int
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile [models-dir]",
		Short: "Compile CUE model declarations",
		Long: `Compile CUE model declarations and print a summary of each model.

Table and primary key defaults are resolved the same way they are at
runtime, so the summary shows what the models will actually query.
Defaults to the configured models_dir.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, modelsDirArg(rootOpts, args), cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

// modelsDirArg returns the positional directory or the configured one.
func modelsDirArg(opts *RootOptions, args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	if opts.Config != nil {
		return opts.Config.ModelsDir
	}
	return "models"
}

func runCompile(opts *CompileOptions, modelsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	// Use shared loader with collect-all mode
	loadResult, loadErrors := LoadModels(modelsDir, LoadModeCollectAll)

	// Handle load errors (directory not found, no files, etc.)
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputCompileError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputCompileError(formatter, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, modelsDir)
	for _, spec := range loadResult.Models {
		formatter.VerboseLog("Compiling model: %s", spec.Definition.Name)
	}

	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors)
	}

	result := summarize(loadResult.Models)
	stats := calculateStats(result)

	if opts.Output != "" {
		if err := writeResultToFile(result, opts.Output); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	return outputCompileSuccess(formatter, result, stats, opts.Output)
}

// summarize resolves naming defaults and sorts models by name.
func summarize(specs []compiler.Spec) *CompilationResult {
	result := &CompilationResult{Models: make([]ModelSummary, 0, len(specs))}
	for _, s := range specs {
		def := s.Definition
		sum := ModelSummary{
			Name:         def.Name,
			Table:        def.Table,
			PrimaryKey:   def.PrimaryKey,
			DisplayField: def.DisplayField,
			Datasource:   def.Datasource,
			Order:        def.Order,
			Extensions:   s.Extensions,
		}
		if sum.Table == "" {
			sum.Table = inflector.Tableize(def.Name)
		}
		if sum.PrimaryKey == "" {
			sum.PrimaryKey = "id"
		}

		kinds := []struct {
			kind  model.Kind
			assoc map[string]model.AssociationOptions
		}{
			{model.BelongsTo, def.BelongsTo},
			{model.HasOne, def.HasOne},
			{model.HasMany, def.HasMany},
			{model.HasAndBelongsToMany, def.HasAndBelongsToMany},
		}
		for _, k := range kinds {
			if len(k.assoc) == 0 {
				continue
			}
			if sum.Associations == nil {
				sum.Associations = make(map[string][]string)
			}
			sum.Associations[string(k.kind)] = sortedAliases(k.assoc)
		}

		for field := range def.Validate {
			sum.Validate = append(sum.Validate, field)
		}
		sort.Strings(sum.Validate)

		result.Models = append(result.Models, sum)
	}
	sort.Slice(result.Models, func(i, j int) bool {
		return result.Models[i].Name < result.Models[j].Name
	})
	return result
}

func sortedAliases(m map[string]model.AssociationOptions) []string {
	out := make([]string, 0, len(m))
	for alias := range m {
		out = append(out, alias)
	}
	sort.Strings(out)
	return out
}

// calculateStats computes summary statistics from compilation result.
func calculateStats(result *CompilationResult) CompilationStats {
	stats := CompilationStats{ModelCount: len(result.Models)}
	for _, m := range result.Models {
		for _, aliases := range m.Associations {
			stats.AssociationCount += len(aliases)
		}
	}
	return stats
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, stats CompilationStats, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Compiled %d model(s), %d association(s)\n\n",
		stats.ModelCount, stats.AssociationCount)

	rows := make([]map[string]any, 0, len(result.Models))
	for _, m := range result.Models {
		var assocs []string
		for _, kind := range []model.Kind{model.BelongsTo, model.HasOne, model.HasMany, model.HasAndBelongsToMany} {
			for _, alias := range m.Associations[string(kind)] {
				assocs = append(assocs, fmt.Sprintf("%s %s", kind, alias))
			}
		}
		rows = append(rows, map[string]any{
			"model":        m.Name,
			"table":        m.Table,
			"primary key":  m.PrimaryKey,
			"associations": strings.Join(assocs, ", "),
		})
	}
	formatter.Table([]string{"model", "table", "primary key", "associations"}, rows)

	if outputFile != "" {
		fmt.Fprintf(formatter.Writer, "Wrote model summary to %s\n", outputFile)
	}

	return nil
}

// outputCompileError outputs a single compilation error.
func outputCompileError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	// Compilation errors are command-level errors (exit code 2)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}

// outputCompileErrors outputs multiple compilation errors.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	if formatter.Format == "json" {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := parseCompileError(err)
			cliErrors[i] = CLIError{
				Code:    code,
				Message: message,
			}
		}

		response := CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors, // Include all errors in data
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		code, message := parseCompileError(err)
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				loadErr.Pos.Filename(),
				loadErr.Pos.Line(),
				loadErr.Pos.Column())
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", code, message)
	}

	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}

// parseCompileError extracts error code and message from an error.
func parseCompileError(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return MapFieldToErrorCode(compileErr.Field), compileErr.Message
	}
	return ErrCodeGeneric, err.Error()
}

// writeResultToFile writes the compilation result as indented JSON.
func writeResultToFile(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling models: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}
