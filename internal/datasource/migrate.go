package datasource

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"sync"

	"github.com/pressly/goose/v3"
)

// goose keeps its dialect, base FS and logger in package globals.
var gooseMu sync.Mutex

// Migrate applies pending goose migrations found at the root of fsys.
func (c *Connection) Migrate(ctx context.Context, fsys fs.FS) error {
	dialect, err := gooseDialect(c.driver)
	if err != nil {
		return err
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(gooseLogger{c.logger})

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, c.db, "."); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	c.ClearSchemaCache()
	return nil
}

// MigrationVersion returns the current goose schema version.
func (c *Connection) MigrationVersion(ctx context.Context) (int64, error) {
	dialect, err := gooseDialect(c.driver)
	if err != nil {
		return 0, err
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := goose.SetDialect(dialect); err != nil {
		return 0, fmt.Errorf("failed to set dialect: %w", err)
	}
	return goose.GetDBVersionContext(ctx, c.db)
}

func gooseDialect(driver string) (string, error) {
	switch driver {
	case "sqlite3", "sqlite":
		return "sqlite3", nil
	case "mysql", "postgres", "pgx":
		return driver, nil
	}
	return "", fmt.Errorf("no migration dialect for driver %q", driver)
}

// gooseLogger forwards goose progress to slog.
type gooseLogger struct {
	l *slog.Logger
}

func (g gooseLogger) Printf(format string, v ...any) {
	g.l.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "migrate")
}

func (g gooseLogger) Fatalf(format string, v ...any) {
	g.l.Error(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "migrate")
}
