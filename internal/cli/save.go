package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/recordkit/internal/entity"
	"github.com/roach88/recordkit/internal/model"
)

// ErrCodeValidationFailed reports a save rejected by validation or a
// callback.
const ErrCodeValidationFailed = "VALIDATION_FAILED"

// SaveOptions holds flags for the save command.
type SaveOptions struct {
	*RootOptions
	Data        string   // JSON object or array, or @file
	Fields      []string // field whitelist
	NoValidate  bool
	NoCallbacks bool
	DryRun      bool
}

// SaveResult is the JSON payload of a save.
type SaveResult struct {
	OK      bool                `json:"ok"`
	Records []map[string]any    `json:"records"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// NewSaveCommand creates the save command.
func NewSaveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SaveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "save <Model>",
		Short: "Save records through a model",
		Long: `Save one record (a JSON object) or several (a JSON array) through a
model. Nested association data is saved with the record: belongsTo
parents first, then hasOne and hasMany children, then join table links.
A record carrying its primary key is updated if it exists.

Exit codes:
  0 - Saved
  1 - Rejected by validation or a callback, or a database error
  2 - Command error (bad --data, models not loadable, etc.)

Examples:
  recordkit save Tag --data '{"name": "go"}'
  recordkit save Article --data '{"title": "Hi", "tags": {"_ids": [1, 2]}}'
  recordkit save Tag --data @tags.json --dry-run`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSave(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Data, "data", "d", "", "record data as JSON, or @path to read it from a file")
	cmd.Flags().StringSliceVar(&opts.Fields, "fields", nil, "only write these fields")
	cmd.Flags().BoolVar(&opts.NoValidate, "no-validate", false, "skip validation")
	cmd.Flags().BoolVar(&opts.NoCallbacks, "no-callbacks", false, "skip lifecycle callbacks")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "print the SQL instead of running it")
	_ = cmd.MarkFlagRequired("data")

	return cmd
}

func runSave(opts *SaveOptions, modelName string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	data, err := readData(opts.Data)
	if err != nil {
		_ = formatter.Error(ErrCodeBadInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid --data", err)
	}

	ctx, cancel := withTimeout(cmd.Context(), opts.RootOptions)
	defer cancel()

	sess, err := openSession(ctx, opts.RootOptions, opts.DryRun)
	if err != nil {
		_ = formatter.Error(ErrCodeDatasource, err.Error(), nil)
		return err
	}
	defer sess.Close()

	m, err := sess.registry.Model(modelName)
	if err != nil {
		return outputRecordError(formatter, err)
	}

	var entities []*entity.Entity
	switch d := data.(type) {
	case map[string]any:
		entities = []*entity.Entity{m.NewEntity(d)}
	case []any:
		for i, item := range d {
			row, ok := item.(map[string]any)
			if !ok {
				err := fmt.Errorf("item %d: expected a JSON object, got %T", i, item)
				_ = formatter.Error(ErrCodeBadInput, err.Error(), nil)
				return WrapExitError(ExitCommandError, "invalid --data", err)
			}
			entities = append(entities, m.NewEntity(row))
		}
	default:
		err := fmt.Errorf("expected a JSON object or array, got %T", data)
		_ = formatter.Error(ErrCodeBadInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid --data", err)
	}

	formatter.VerboseLog("Saving %d %s record(s)", len(entities), m.Name())
	var ok bool
	if len(entities) == 1 {
		ok, err = m.SaveAll(ctx, entities[0], opts.modelOptions()...)
	} else {
		ok, err = m.SaveAll(ctx, entities, opts.modelOptions()...)
	}

	if opts.DryRun {
		return outputStatements(formatter, sess.Statements())
	}
	if err != nil {
		return outputRecordError(formatter, err)
	}

	result := SaveResult{OK: ok, Records: make([]map[string]any, len(entities))}
	for i, e := range entities {
		result.Records[i] = e.ToMap()
		for field, msgs := range e.Errors() {
			if result.Errors == nil {
				result.Errors = make(map[string][]string)
			}
			key := field
			if len(entities) > 1 {
				key = fmt.Sprintf("%d.%s", i, field)
			}
			result.Errors[key] = msgs
		}
	}

	if !ok {
		return outputSaveRejected(formatter, result)
	}
	if formatter.Format == "json" {
		return formatter.Records(map[string]any{"ok": true, "records": result.Records})
	}
	fmt.Fprintf(formatter.Writer, "✓ Saved %d %s record(s)\n", len(entities), m.Name())
	renderEntities(formatter, entities)
	return nil
}

func (o *SaveOptions) modelOptions() []model.Option {
	var opts []model.Option
	if o.NoValidate {
		opts = append(opts, model.WithoutValidation())
	}
	if o.NoCallbacks {
		opts = append(opts, model.WithoutCallbacks())
	}
	if len(o.Fields) > 0 {
		opts = append(opts, model.WithFields(o.Fields...))
	}
	return opts
}

// readData decodes --data. A leading @ names a file.
func readData(arg string) (any, error) {
	raw := []byte(arg)
	if path, ok := strings.CutPrefix(arg, "@"); ok {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		raw = b
	}

	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var data any
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	return numbersToScalars(data), nil
}

// outputSaveRejected reports validation messages.
func outputSaveRejected(formatter *OutputFormatter, result SaveResult) error {
	if formatter.Format == "json" {
		_ = formatter.Error(ErrCodeValidationFailed, "record not saved", result.Errors)
		return NewExitError(ExitFailure, "record not saved")
	}

	fmt.Fprintln(formatter.Writer, "✗ Record not saved")
	fields := make([]string, 0, len(result.Errors))
	for f := range result.Errors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		for _, msg := range result.Errors[f] {
			fmt.Fprintf(formatter.Writer, "  %s: %s\n", f, msg)
		}
	}
	return NewExitError(ExitFailure, "record not saved")
}
