package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/recordkit/internal/datasource"
)

// MigrateOptions holds flags for the migrate command.
type MigrateOptions struct {
	*RootOptions
	Datasource string
	Status     bool // only report the current version
}

// MigrateResult is the JSON payload of migrate.
type MigrateResult struct {
	Datasource string `json:"datasource"`
	Version    int64  `json:"version"`
	Applied    bool   `json:"applied"`
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MigrateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "migrate [migrations-dir]",
		Short: "Apply goose SQL migrations",
		Long: `Apply pending goose SQL migrations to a configured datasource.

Migration files are named NNNNN_description.sql and carry
-- +goose Up and -- +goose Down sections. Defaults to the configured
migrations_dir and the "default" datasource.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) > 0 {
				dir = args[0]
			} else if rootOpts.Config != nil {
				dir = rootOpts.Config.MigrationsDir
			}
			return runMigrate(opts, dir, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Datasource, "datasource", datasource.DefaultName, "datasource to migrate")
	cmd.Flags().BoolVar(&opts.Status, "status", false, "print the current schema version and exit")

	return cmd
}

func runMigrate(opts *MigrateOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if !opts.Status {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			msg := fmt.Sprintf("migrations directory not found: %s", dir)
			_ = formatter.Error(ErrCodeNotFound, msg, nil)
			return NewExitError(ExitCommandError, msg)
		}
	}

	ctx, cancel := withTimeout(cmd.Context(), opts.RootOptions)
	defer cancel()

	conns := datasource.NewManager(opts.Logger)
	opts.Config.Configure(conns)
	defer conns.Close()

	ds, err := conns.Get(ctx, opts.Datasource)
	if err != nil {
		_ = formatter.Error(ErrCodeDatasource, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open datasource", err)
	}
	conn, ok := ds.(*datasource.Connection)
	if !ok {
		msg := fmt.Sprintf("datasource %q does not support migrations", opts.Datasource)
		_ = formatter.Error(ErrCodeDatasource, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	result := MigrateResult{Datasource: opts.Datasource}
	if !opts.Status {
		formatter.VerboseLog("Applying migrations from %s", dir)
		if err := conn.Migrate(ctx, os.DirFS(dir)); err != nil {
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitFailure, "migration failed", err)
		}
		result.Applied = true
	}

	result.Version, err = conn.MigrationVersion(ctx)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to read schema version", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	if result.Applied {
		fmt.Fprintf(formatter.Writer, "✓ Migrated %s to version %d\n", result.Datasource, result.Version)
		return nil
	}
	fmt.Fprintf(formatter.Writer, "%s is at version %d\n", result.Datasource, result.Version)
	return nil
}
