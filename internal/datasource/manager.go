package datasource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// DefaultName is the connection name models use unless told otherwise.
const DefaultName = "default"

// Manager is a registry of named connections. Configured connections are
// opened on first use.
type Manager struct {
	mu      sync.Mutex
	configs map[string]Config
	conns   map[string]Datasource
	logger  *slog.Logger
}

// NewManager returns an empty registry. A nil logger uses slog.Default().
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		configs: make(map[string]Config),
		conns:   make(map[string]Datasource),
		logger:  logger,
	}
}

// Configure records how to open the named connection.
func (m *Manager) Configure(name string, cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[name] = cfg
}

// Register adds an open datasource under its name, replacing any previous
// one.
func (m *Manager) Register(ds Datasource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conns[ds.Name()] = ds
}

// Get returns the named datasource, opening it from its configuration when
// needed.
func (m *Manager) Get(ctx context.Context, name string) (Datasource, error) {
	if name == "" {
		name = DefaultName
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if ds, ok := m.conns[name]; ok {
		return ds, nil
	}
	cfg, ok := m.configs[name]
	if !ok {
		return nil, &Error{Code: ErrCodeMissingConnection, Connection: name, Err: fmt.Errorf("no connection configured")}
	}

	conn, err := Open(ctx, name, cfg, WithLogger(m.logger))
	if err != nil {
		return nil, err
	}
	m.logger.Info("connection opened", "connection", name, "driver", conn.Driver())
	m.conns[name] = conn
	return conn, nil
}

// Names returns configured and registered connection names, sorted.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for n := range m.configs {
		seen[n] = true
		out = append(out, n)
	}
	for n := range m.conns {
		if !seen[n] {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// Drop closes and forgets the named connection. Its configuration is kept.
func (m *Manager) Drop(name string) error {
	m.mu.Lock()
	ds, ok := m.conns[name]
	delete(m.conns, name)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	if c, ok := ds.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// Close closes every open connection.
func (m *Manager) Close() error {
	m.mu.Lock()
	conns := m.conns
	m.conns = make(map[string]Datasource)
	m.mu.Unlock()

	var errs []error
	for name, ds := range conns {
		if c, ok := ds.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", name, err))
			}
		}
	}
	return errors.Join(errs...)
}
