package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/recordkit/internal/cond"
	"github.com/roach88/recordkit/internal/model"
)

// DeleteOptions holds flags for the delete command.
type DeleteOptions struct {
	*RootOptions
	Where       []string
	NoCascade   bool
	NoCallbacks bool
	DryRun      bool
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeleteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "delete <Model> [id]",
		Short: "Delete records through a model",
		Long: `Delete one record by primary key, or every record matching --where.

Dependent hasOne and hasMany records and join table links are deleted
with the record unless --no-cascade is given. Without an id at least
one --where condition is required.`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(opts, args, cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Where, "where", "w", nil, "condition as field=value (repeatable)")
	cmd.Flags().BoolVar(&opts.NoCascade, "no-cascade", false, "do not delete dependent records")
	cmd.Flags().BoolVar(&opts.NoCallbacks, "no-callbacks", false, "skip lifecycle callbacks")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "print the SQL instead of running it")

	return cmd
}

func runDelete(opts *DeleteOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	conditions, err := parseWhere(opts.Where)
	if err == nil && len(args) == 1 && len(conditions) == 0 {
		err = errors.New("delete without an id requires --where")
	}
	if err == nil && len(args) == 2 && len(conditions) > 0 {
		err = errors.New("--where cannot be combined with an id")
	}
	if err != nil {
		_ = formatter.Error(ErrCodeBadInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid delete options", err)
	}

	ctx, cancel := withTimeout(cmd.Context(), opts.RootOptions)
	defer cancel()

	sess, err := openSession(ctx, opts.RootOptions, opts.DryRun)
	if err != nil {
		_ = formatter.Error(ErrCodeDatasource, err.Error(), nil)
		return err
	}
	defer sess.Close()

	m, err := sess.registry.Model(args[0])
	if err != nil {
		return outputRecordError(formatter, err)
	}

	var modelOpts []model.Option
	if opts.NoCascade {
		modelOpts = append(modelOpts, model.WithoutCascade())
	}
	if opts.NoCallbacks {
		modelOpts = append(modelOpts, model.WithoutCallbacks())
	}

	var ok bool
	if len(args) == 2 {
		ok, err = m.Delete(ctx, parseScalar(args[1]), modelOpts...)
	} else {
		ok, err = m.DeleteAll(ctx, cond.FromMap(conditions), modelOpts...)
	}

	if opts.DryRun {
		return outputStatements(formatter, sess.Statements())
	}
	if err != nil {
		return outputRecordError(formatter, err)
	}
	if !ok {
		_ = formatter.Error(ErrCodeNotDeleted, "nothing deleted", nil)
		return NewExitError(ExitFailure, "nothing deleted")
	}

	if formatter.Format == "json" {
		return formatter.Records(map[string]any{"deleted": true})
	}
	fmt.Fprintf(formatter.Writer, "✓ Deleted %s\n", strings.Join(args, " "))
	return nil
}

// ErrCodeNotDeleted reports a delete that found nothing or was aborted by
// a callback.
const ErrCodeNotDeleted = "NOT_DELETED"

// parseWhere turns field=value flags into a conditions map.
func parseWhere(where []string) (map[string]any, error) {
	out := make(map[string]any, len(where))
	for _, w := range where {
		key, value, ok := strings.Cut(w, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("--where %q: expected field=value", w)
		}
		out[key] = parseScalar(value)
	}
	return out, nil
}
