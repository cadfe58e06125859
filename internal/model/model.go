package model

import (
	"context"
	"log/slog"
	"sort"

	"github.com/roach88/recordkit/internal/datasource"
	"github.com/roach88/recordkit/internal/entity"
	"github.com/roach88/recordkit/internal/inflector"
	"github.com/roach88/recordkit/internal/validation"
)

// Model maps one table.
type Model struct {
	registry *Registry

	name         string
	table        string
	primaryKey   string
	displayField string
	order        []string
	recursive    int
	batchSize    int
	dsName       string
	schema       *datasource.Schema

	assocs     *associations
	validator  *validation.Validator
	callbacks  Callbacks
	extensions []Extension

	id     any
	logger *slog.Logger
}

func newModel(r *Registry, def Definition, targetPK func(string) string) (*Model, error) {
	m := &Model{
		registry:     r,
		name:         def.Name,
		table:        def.Table,
		primaryKey:   def.PrimaryKey,
		displayField: def.DisplayField,
		order:        append([]string(nil), def.Order...),
		recursive:    DefaultRecursive,
		batchSize:    def.BatchSize,
		dsName:       def.Datasource,
		schema:       def.Schema,
		assocs:       newAssociations(),
		validator:    validation.New(r.rules),
		callbacks:    def.Callbacks,
		logger:       r.logger.With("model", def.Name),
	}
	if m.table == "" {
		m.table = inflector.Tableize(def.Name)
	}
	if m.primaryKey == "" {
		m.primaryKey = "id"
	}
	if def.Recursive != nil {
		m.recursive = *def.Recursive
	}
	if m.batchSize <= 0 {
		m.batchSize = DefaultBatchSize
	}
	if m.dsName == "" {
		m.dsName = datasource.DefaultName
	}
	for _, ext := range def.Extensions {
		m.AddExtension(ext)
	}

	fields := make([]string, 0, len(def.Validate))
	for f := range def.Validate {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		m.validator.Add(f, def.Validate[f]...)
	}

	groups := []struct {
		kind Kind
		opts map[string]AssociationOptions
	}{
		{BelongsTo, def.BelongsTo},
		{HasOne, def.HasOne},
		{HasMany, def.HasMany},
		{HasAndBelongsToMany, def.HasAndBelongsToMany},
	}
	for _, g := range groups {
		aliases := make([]string, 0, len(g.opts))
		for alias := range g.opts {
			aliases = append(aliases, alias)
		}
		sort.Strings(aliases)
		for _, alias := range aliases {
			if _, err := m.declare(g.kind, alias, g.opts[alias], targetPK); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// Name returns the model alias.
func (m *Model) Name() string { return m.name }

// Table returns the table name.
func (m *Model) Table() string { return m.table }

// PrimaryKey returns the primary key column.
func (m *Model) PrimaryKey() string { return m.primaryKey }

// Order returns the default find order.
func (m *Model) Order() []string { return append([]string(nil), m.order...) }

// Recursive returns the default eager-loading depth.
func (m *Model) Recursive() int { return m.recursive }

// SetRecursive changes the default eager-loading depth.
func (m *Model) SetRecursive(depth int) { m.recursive = depth }

// SetBatchSize changes the key cap of secondary IN queries.
func (m *Model) SetBatchSize(n int) {
	if n > 0 {
		m.batchSize = n
	}
}

// Registry returns the registry that built the model.
func (m *Model) Registry() *Registry { return m.registry }

// Validator returns the model's validator.
func (m *Model) Validator() *validation.Validator { return m.validator }

// ID returns the primary key of the last saved or deleted record.
func (m *Model) ID() any { return m.id }

// Datasource returns the model's connection.
func (m *Model) Datasource(ctx context.Context) (datasource.Datasource, error) {
	return m.registry.conns.Get(ctx, m.dsName)
}

// Schema describes the model's table, from the definition or by
// introspection.
func (m *Model) Schema(ctx context.Context) (*datasource.Schema, error) {
	if m.schema != nil {
		return m.schema, nil
	}
	ds, err := m.Datasource(ctx)
	if err != nil {
		return nil, err
	}
	return ds.Schema(ctx, m.table)
}

// Column describes one column of the model's table.
func (m *Model) Column(ctx context.Context, name string) (datasource.Column, bool, error) {
	s, err := m.Schema(ctx)
	if err != nil {
		return datasource.Column{}, false, err
	}
	c, ok := s.Column(name)
	return c, ok, nil
}

// HasField reports whether the table has the column. Schema errors count
// as absent.
func (m *Model) HasField(ctx context.Context, name string) bool {
	_, ok, err := m.Column(ctx, name)
	return err == nil && ok
}

// DisplayField returns the configured display field, or "name" or "title"
// when the table has one.
func (m *Model) DisplayField(ctx context.Context) string {
	if m.displayField != "" {
		return m.displayField
	}
	for _, f := range []string{"name", "title"} {
		if m.HasField(ctx, f) {
			return f
		}
	}
	return ""
}

// Validate appends rules for field.
func (m *Model) Validate(field string, rules ...validation.Rule) *Model {
	m.validator.Add(field, rules...)
	return m
}

// NewEntity builds a new entity from request data. Association properties
// become nested entities. A non-empty fields list whitelists top-level
// fields.
func (m *Model) NewEntity(data map[string]any, fields ...string) *entity.Entity {
	opts := m.marshalOptions(2)
	opts.Fields = fields
	return m.registry.marshaller.One(data, opts)
}

// NewEntities builds one new entity per element of data.
func (m *Model) NewEntities(data []map[string]any, fields ...string) []*entity.Entity {
	opts := m.marshalOptions(2)
	opts.Fields = fields
	return m.registry.marshaller.Many(data, opts)
}

// PatchEntity merges request data into e, leaving unchanged fields clean.
func (m *Model) PatchEntity(e *entity.Entity, data map[string]any, fields ...string) *entity.Entity {
	opts := m.marshalOptions(2)
	opts.Fields = fields
	return m.registry.marshaller.Patch(e, data, opts)
}

func (m *Model) marshalOptions(depth int) entity.Options {
	opts := entity.Options{Source: m.name, PrimaryKey: m.primaryKey}
	if depth <= 0 {
		return opts
	}
	opts.Associated = make(map[string]entity.Options)
	for _, a := range m.assocs.all() {
		t, err := m.target(a)
		if err != nil {
			opts.Associated[a.Property] = entity.Options{Source: a.ClassName, PrimaryKey: m.registry.primaryKey(a.ClassName)}
			continue
		}
		opts.Associated[a.Property] = t.marshalOptions(depth - 1)
	}
	return opts
}
