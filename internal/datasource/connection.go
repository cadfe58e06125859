package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Config describes how to open a connection.
type Config struct {
	Driver       string `koanf:"driver"`
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
}

// DefaultDriver is used when Config.Driver is empty.
const DefaultDriver = "sqlite3"

// Connection is a Datasource over database/sql.
//
// Connection is safe to share between goroutines, but its transaction is
// connection-wide: statements issued while a transaction is open run inside
// it regardless of caller.
type Connection struct {
	name   string
	driver string
	db     *sql.DB
	logger *slog.Logger

	mu     sync.Mutex
	tx     *sql.Tx
	lastID int64
	schema map[string]*Schema
}

// Option configures a Connection.
type Option func(*Connection)

// WithLogger sets the statement logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Connection) {
		if l != nil {
			c.logger = l
		}
	}
}

// Open opens and pings a connection.
//
// SQLite connections are limited to one open connection so that ":memory:"
// databases survive across statements, and foreign keys are enforced.
func Open(ctx context.Context, name string, cfg Config, opts ...Option) (*Connection, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DefaultDriver
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, &Error{Code: ErrCodeConnection, Connection: name, Err: err}
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &Error{Code: ErrCodeConnection, Connection: name, Err: err}
	}

	if isSQLite(driver) {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, &Error{Code: ErrCodeConnection, Connection: name, SQL: "PRAGMA foreign_keys = ON", Err: err}
		}
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	return New(name, driver, db, opts...), nil
}

// New wraps an already open *sql.DB. Tests use it with go-sqlmock.
func New(name, driver string, db *sql.DB, opts ...Option) *Connection {
	c := &Connection{
		name:   name,
		driver: driver,
		db:     db,
		logger: slog.Default(),
		schema: make(map[string]*Schema),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the connection name.
func (c *Connection) Name() string { return c.name }

// Driver returns the driver name.
func (c *Connection) Driver() string { return c.driver }

// DB returns the underlying pool.
func (c *Connection) DB() *sql.DB { return c.db }

// Close closes the pool, rolling back an open transaction first.
func (c *Connection) Close() error {
	c.mu.Lock()
	tx := c.tx
	c.tx = nil
	c.mu.Unlock()
	if tx != nil {
		_ = tx.Rollback()
	}
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (c *Connection) conn() querier {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tx != nil {
		return c.tx
	}
	return c.db
}

// Execute runs a statement that returns no rows.
func (c *Connection) Execute(ctx context.Context, query string, params map[string]any) (Result, error) {
	start := time.Now()
	res, err := c.conn().ExecContext(ctx, query, NamedArgs(params)...)
	c.logStatement(query, params, start, err)
	if err != nil {
		return Result{}, &Error{Code: ErrCodeExecution, Connection: c.name, SQL: query, Err: err}
	}

	var out Result
	if n, err := res.RowsAffected(); err == nil {
		out.RowsAffected = n
	}
	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "INSERT") {
		if id, err := res.LastInsertId(); err == nil {
			out.LastInsertID = id
			c.mu.Lock()
			c.lastID = id
			c.mu.Unlock()
		}
	}
	return out, nil
}

// FetchAll returns every row.
func (c *Connection) FetchAll(ctx context.Context, query string, params map[string]any) ([]Row, error) {
	start := time.Now()
	rows, err := c.conn().QueryContext(ctx, query, NamedArgs(params)...)
	c.logStatement(query, params, start, err)
	if err != nil {
		return nil, &Error{Code: ErrCodeExecution, Connection: c.name, SQL: query, Err: err}
	}
	defer rows.Close()

	out, err := scanRows(rows)
	if err != nil {
		return nil, &Error{Code: ErrCodeExecution, Connection: c.name, SQL: query, Err: err}
	}
	return out, nil
}

// Fetch returns the first row, or nil when there is none.
func (c *Connection) Fetch(ctx context.Context, query string, params map[string]any) (*Row, error) {
	rows, err := c.FetchAll(ctx, query, params)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

// FetchList returns the first column of every row.
func (c *Connection) FetchList(ctx context.Context, query string, params map[string]any) ([]any, error) {
	rows, err := c.FetchAll(ctx, query, params)
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(rows))
	for _, r := range rows {
		if len(r.Values) > 0 {
			out = append(out, r.Values[0])
		}
	}
	return out, nil
}

// LastInsertID returns the id generated by the last INSERT.
func (c *Connection) LastInsertID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastID
}

// Begin opens a transaction.
func (c *Connection) Begin(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tx != nil {
		return &Error{Code: ErrCodeTransaction, Connection: c.name, Err: fmt.Errorf("transaction already active")}
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return &Error{Code: ErrCodeTransaction, Connection: c.name, Err: err}
	}
	c.tx = tx
	c.logger.Debug("transaction started", "connection", c.name)
	return nil
}

// Commit commits the open transaction.
func (c *Connection) Commit() error {
	tx, err := c.takeTx()
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return &Error{Code: ErrCodeTransaction, Connection: c.name, Err: err}
	}
	c.logger.Debug("transaction committed", "connection", c.name)
	return nil
}

// Rollback aborts the open transaction.
func (c *Connection) Rollback() error {
	tx, err := c.takeTx()
	if err != nil {
		return err
	}
	if err := tx.Rollback(); err != nil {
		return &Error{Code: ErrCodeTransaction, Connection: c.name, Err: err}
	}
	c.logger.Debug("transaction rolled back", "connection", c.name)
	return nil
}

func (c *Connection) takeTx() (*sql.Tx, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tx == nil {
		return nil, &Error{Code: ErrCodeTransaction, Connection: c.name, Err: fmt.Errorf("no active transaction")}
	}
	tx := c.tx
	c.tx = nil
	return tx, nil
}

// InTransaction reports whether a transaction is open.
func (c *Connection) InTransaction() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tx != nil
}

func (c *Connection) logStatement(query string, params map[string]any, start time.Time, err error) {
	if err != nil {
		c.logger.Warn("statement failed",
			"connection", c.name,
			"sql", query,
			"error", err,
		)
		return
	}
	c.logger.Debug("statement executed",
		"connection", c.name,
		"sql", query,
		"params", params,
		"duration", time.Since(start),
	)
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i := range values {
			values[i] = normalize(values[i])
		}
		out = append(out, Row{Columns: append([]string(nil), cols...), Values: values})
	}
	return out, rows.Err()
}

func isSQLite(driver string) bool {
	return driver == "sqlite3" || driver == "sqlite"
}
