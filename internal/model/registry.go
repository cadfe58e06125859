package model

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/recordkit/internal/cond"
	"github.com/roach88/recordkit/internal/datasource"
	"github.com/roach88/recordkit/internal/entity"
	"github.com/roach88/recordkit/internal/validation"
)

// IDGenerator produces UUID primary keys.
type IDGenerator interface {
	Generate() string
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string { return uuid.NewString() }

// Registry holds model definitions and builds models on first use.
// It is safe for concurrent use; the models it returns are not.
type Registry struct {
	mu     sync.Mutex
	defs   map[string]Definition
	models map[string]*Model

	conns      *datasource.Manager
	rules      *validation.Registry
	marshaller *entity.Marshaller
	logger     *slog.Logger
	clock      Clock
	ids        IDGenerator
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger used by every model.
func WithLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = l
	}
}

// WithClock sets the clock handed to Timestamp extensions created by the
// registry.
func WithClock(c Clock) RegistryOption {
	return func(r *Registry) {
		r.clock = c
	}
}

// WithIDGenerator sets the UUID primary key generator.
func WithIDGenerator(g IDGenerator) RegistryOption {
	return func(r *Registry) {
		r.ids = g
	}
}

// WithRules sets the validation rule registry.
func WithRules(rules *validation.Registry) RegistryOption {
	return func(r *Registry) {
		r.rules = rules
	}
}

// NewRegistry returns an empty registry resolving connections through
// conns. The rule registry gains an "isUnique" rule bound to this registry.
func NewRegistry(conns *datasource.Manager, opts ...RegistryOption) *Registry {
	r := &Registry{
		defs:       make(map[string]Definition),
		models:     make(map[string]*Model),
		conns:      conns,
		marshaller: entity.NewMarshaller(),
		logger:     slog.Default(),
		clock:      systemClock{},
		ids:        uuidGenerator{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.rules == nil {
		r.rules = validation.NewRegistry()
	}
	r.rules.Register("isUnique", r.isUnique)
	return r
}

// Connections returns the datasource manager.
func (r *Registry) Connections() *datasource.Manager { return r.conns }

// Rules returns the validation rule registry.
func (r *Registry) Rules() *validation.Registry { return r.rules }

// Clock returns the registry clock.
func (r *Registry) Clock() Clock { return r.clock }

// Define stores def, replacing any earlier definition and dropping a model
// already built from it.
func (r *Registry) Define(def Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[def.Name] = def
	delete(r.models, def.Name)
}

// Model returns the named model, building it from its definition on first
// use.
func (r *Registry) Model(name string) (*Model, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.modelLocked(name)
}

func (r *Registry) modelLocked(name string) (*Model, error) {
	if m, ok := r.models[name]; ok {
		return m, nil
	}
	def, ok := r.defs[name]
	if !ok {
		return nil, NewMissingModelError(name)
	}
	m, err := newModel(r, def, r.primaryKeyLocked)
	if err != nil {
		return nil, err
	}
	r.models[name] = m
	r.logger.Debug("model built", "model", name, "table", m.table)
	return m, nil
}

// Has reports whether name is defined.
func (r *Registry) Has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.defs[name]
	return ok
}

// Names returns defined model names, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.defs))
	for n := range r.defs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// primaryKey returns the primary key of a defined model without building
// it. Undefined models use "id".
func (r *Registry) primaryKey(name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.primaryKeyLocked(name)
}

func (r *Registry) primaryKeyLocked(name string) string {
	if m, ok := r.models[name]; ok {
		return m.primaryKey
	}
	if def, ok := r.defs[name]; ok && def.PrimaryKey != "" {
		return def.PrimaryKey
	}
	return "id"
}

// joinModel returns the model for a HABTM join table, defining a bare one
// when the With model is not defined.
func (r *Registry) joinModel(a *Association, datasourceName string) (*Model, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.defs[a.With]; !ok {
		r.defs[a.With] = Definition{Name: a.With, Table: a.JoinTable, Recursive: Depth(-1), Datasource: datasourceName}
	}
	return r.modelLocked(a.With)
}

// isUnique passes when no other row of the entity's model holds the value.
func (r *Registry) isUnique(value any, c validation.Context) (bool, error) {
	if c.Entity == nil {
		return false, nil
	}
	m, err := r.Model(c.Entity.Source())
	if err != nil {
		return false, err
	}
	ctx := c.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	conds := cond.Conditions{cond.F(c.Field, value)}
	if id := c.Entity.Get(m.primaryKey); id != nil {
		conds = conds.Append(cond.F(m.primaryKey+" !=", id))
	}
	n, err := m.Count(ctx, FindOptions{Conditions: conds, Recursive: Depth(-1), SkipCallbacks: true})
	if err != nil {
		return false, err
	}
	return n == 0, nil
}
