package model

import (
	"context"
	"fmt"
	"reflect"

	"github.com/roach88/recordkit/internal/cond"
	"github.com/roach88/recordkit/internal/datasource"
	"github.com/roach88/recordkit/internal/entity"
	"github.com/roach88/recordkit/internal/querybuilder"
)

// MessageNonScalar is recorded on a column field holding a value that cannot
// be written to one column.
const MessageNonScalar = "Cannot save a non-scalar value"

// Save inserts or updates e. It returns false without an error when
// validation fails or a callback aborts; the messages are on e.
func (m *Model) Save(ctx context.Context, e *entity.Entity, opts ...Option) (bool, error) {
	if m.isNoOp(e) {
		return true, nil
	}
	o := applyOptions(defaultOptions(), opts)
	ds, err := m.Datasource(ctx)
	if err != nil {
		return false, err
	}
	return transactional(ctx, ds, o.transaction, func() (bool, error) {
		return m.save(ctx, e, o)
	})
}

// SaveField writes one field of the record with the given primary key.
// Validation is off unless WithValidation is passed.
func (m *Model) SaveField(ctx context.Context, id any, field string, value any, opts ...Option) (bool, error) {
	e := entity.Hydrate(m.name, []string{m.primaryKey}, []any{id})
	e.Set(field, value)
	base := defaultOptions()
	base.validate = false
	o := applyOptions(base, opts)
	ds, err := m.Datasource(ctx)
	if err != nil {
		return false, err
	}
	return transactional(ctx, ds, o.transaction, func() (bool, error) {
		return m.save(ctx, e, o)
	})
}

// SaveMany saves every entity in one transaction. The first failure rolls
// the whole batch back.
func (m *Model) SaveMany(ctx context.Context, entities []*entity.Entity, opts ...Option) (bool, error) {
	o := applyOptions(defaultOptions(), opts)
	ds, err := m.Datasource(ctx)
	if err != nil {
		return false, err
	}
	return transactional(ctx, ds, o.transaction, func() (bool, error) {
		for _, e := range entities {
			ok, err := m.save(ctx, e, o)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	})
}

// SaveAssociated saves e with its belongsTo parents first and its hasOne
// and hasMany children after, all in one transaction.
func (m *Model) SaveAssociated(ctx context.Context, e *entity.Entity, opts ...Option) (bool, error) {
	o := applyOptions(defaultOptions(), opts)
	ds, err := m.Datasource(ctx)
	if err != nil {
		return false, err
	}
	return transactional(ctx, ds, o.transaction, func() (bool, error) {
		return m.saveAssociated(ctx, e, o)
	})
}

// SaveAll saves a single record (*entity.Entity or map[string]any) through
// SaveAssociated, or a list of them in one transaction.
func (m *Model) SaveAll(ctx context.Context, data any, opts ...Option) (bool, error) {
	var list []*entity.Entity
	switch d := data.(type) {
	case *entity.Entity:
		return m.SaveAssociated(ctx, d, opts...)
	case map[string]any:
		return m.SaveAssociated(ctx, m.NewEntity(d), opts...)
	case []*entity.Entity:
		list = d
	case []map[string]any:
		list = m.NewEntities(d)
	default:
		return false, &Error{Code: ErrCodeInvalidData, Model: m.name, Message: fmt.Sprintf("cannot save %T", data)}
	}

	o := applyOptions(defaultOptions(), opts)
	ds, err := m.Datasource(ctx)
	if err != nil {
		return false, err
	}
	return transactional(ctx, ds, o.transaction, func() (bool, error) {
		for _, e := range list {
			ok, err := m.saveAssociated(ctx, e, o)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	})
}

func (m *Model) saveAssociated(ctx context.Context, e *entity.Entity, o options) (bool, error) {
	for _, a := range m.assocs.of(BelongsTo) {
		parent, ok := e.Get(a.Property).(*entity.Entity)
		if !ok || parent == nil || !(parent.IsNew() || parent.IsDirty()) {
			continue
		}
		t, err := m.target(a)
		if err != nil {
			return false, err
		}
		if ok, err := t.saveAssociated(ctx, parent, o); err != nil || !ok {
			return false, err
		}
		setIfChanged(e, a.ForeignKey, parent.Get(t.primaryKey))
	}

	if ok, err := m.save(ctx, e, o); err != nil || !ok {
		return false, err
	}
	id := e.Get(m.primaryKey)

	for _, a := range m.Associations(HasOne, HasMany) {
		children := entityList(e.Get(a.Property))
		if len(children) == 0 {
			continue
		}
		t, err := m.target(a)
		if err != nil {
			return false, err
		}
		for _, child := range children {
			setIfChanged(child, a.ForeignKey, id)
			if ok, err := t.saveAssociated(ctx, child, o); err != nil || !ok {
				return false, err
			}
		}
	}
	return true, nil
}

// save is the single-record pipeline. It runs inside the caller's
// transaction, if any.
func (m *Model) save(ctx context.Context, e *entity.Entity, o options) (bool, error) {
	if m.isNoOp(e) {
		return true, nil
	}
	links := m.linkPayload(e)
	ds, err := m.Datasource(ctx)
	if err != nil {
		return false, err
	}

	id := e.Get(m.primaryKey)
	exists, err := m.Exists(ctx, id)
	if err != nil {
		return false, err
	}
	e.SetNew(!exists)

	if o.validate {
		if o.callbacks && !m.before(func(c Callbacks) bool { return c.BeforeValidate(ctx, m, e) }) {
			return false, nil
		}
		ok, err := m.validator.Validate(ctx, e)
		if err != nil {
			return false, err
		}
		if !ok {
			m.logger.Debug("validation failed", "errors", e.Errors())
			return false, nil
		}
		if o.callbacks {
			m.after(func(c Callbacks) { c.AfterValidate(ctx, m, e) })
		}
	}
	if o.callbacks && !m.before(func(c Callbacks) bool { return c.BeforeSave(ctx, m, e) }) {
		return false, nil
	}

	data, ok, err := m.rowData(ctx, e, exists, o.fields)
	if err != nil || !ok {
		return false, err
	}

	if exists {
		if len(data) > 0 {
			b := querybuilder.New(m.table, m.name).Update(data).Where(cond.Conditions{cond.F(m.primaryKey, id)})
			if _, err := m.execute(ctx, b); err != nil {
				return false, err
			}
		}
	} else {
		if id == nil {
			if c, ok, err := m.Column(ctx, m.primaryKey); err == nil && ok && c.IsUUID() {
				id = m.registry.ids.Generate()
				e.Set(m.primaryKey, id)
				data = append(querybuilder.Data{{Name: m.primaryKey, Value: id}}, data...)
			}
		}
		if len(data) == 0 {
			return false, &Error{Code: ErrCodeInvalidData, Model: m.name, Message: "insert has no writable fields"}
		}
		res, err := m.execute(ctx, querybuilder.New(m.table, m.name).Insert(data))
		if err != nil {
			return false, err
		}
		if id == nil {
			id = res.LastInsertID
			e.Set(m.primaryKey, id)
		}
	}
	m.id = id

	if o.callbacks {
		m.after(func(c Callbacks) { c.AfterSave(ctx, m, e, !exists) })
	}
	for _, l := range links {
		if ok, err := m.saveLinks(ctx, l.assoc, id, l.targets, o); err != nil || !ok {
			return false, err
		}
		attach(e, l.assoc.Property, l.targets)
	}

	e.Clean()
	e.SetNew(false)
	m.logger.Info("saved", "id", id, "created", !exists, "driver", ds.Driver())
	return true, nil
}

// rowData returns the column values to write. New records write every
// present column; existing records write dirty columns except the primary
// key. Non-scalar column values invalidate the entity.
func (m *Model) rowData(ctx context.Context, e *entity.Entity, exists bool, whitelist []string) (querybuilder.Data, bool, error) {
	s, err := m.Schema(ctx)
	if err != nil {
		return nil, false, err
	}
	props := m.associationProperties()
	allowed := make(map[string]bool, len(whitelist))
	for _, f := range whitelist {
		allowed[f] = true
	}

	var data querybuilder.Data
	valid := true
	for _, f := range e.Fields() {
		if props[f] || !s.Has(f) {
			continue
		}
		if len(allowed) > 0 && !allowed[f] && f != m.primaryKey {
			continue
		}
		if exists && (f == m.primaryKey || !e.IsDirty(f)) {
			continue
		}
		v := e.Get(f)
		if !entity.IsScalar(v) {
			e.Invalidate(f, MessageNonScalar)
			valid = false
			continue
		}
		data = append(data, querybuilder.Column{Name: f, Value: v})
	}
	return data, valid, nil
}

// isNoOp reports whether saving e would write nothing: the primary key is
// its only field and no HABTM links changed.
func (m *Model) isNoOp(e *entity.Entity) bool {
	return m.onlyPrimaryKey(e) && len(m.linkPayload(e)) == 0
}

// onlyPrimaryKey reports whether the primary key is the entity's only
// non-association field.
func (m *Model) onlyPrimaryKey(e *entity.Entity) bool {
	if !e.Has(m.primaryKey) {
		return false
	}
	props := m.associationProperties()
	for _, f := range e.Fields() {
		if f != m.primaryKey && !props[f] {
			return false
		}
	}
	return true
}

func (m *Model) associationProperties() map[string]bool {
	out := make(map[string]bool)
	for _, a := range m.assocs.all() {
		out[a.Property] = true
	}
	return out
}

type linkSet struct {
	assoc   *Association
	targets []*entity.Entity
}

// linkPayload collects HABTM properties that changed since load.
func (m *Model) linkPayload(e *entity.Entity) []linkSet {
	var out []linkSet
	for _, a := range m.assocs.of(HasAndBelongsToMany) {
		v, ok := e.Lookup(a.Property)
		if !ok || !e.IsDirty(a.Property) {
			continue
		}
		out = append(out, linkSet{assoc: a, targets: m.linkTargets(a, v)})
	}
	return out
}

// linkTargets accepts entities, maps, or bare primary keys.
func (m *Model) linkTargets(a *Association, v any) []*entity.Entity {
	if list := entityList(v); list != nil {
		return list
	}
	pk := m.registry.primaryKey(a.ClassName)
	rv := reflect.ValueOf(v)
	if v == nil || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return []*entity.Entity{}
	}
	out := make([]*entity.Entity, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		switch item := rv.Index(i).Interface().(type) {
		case *entity.Entity:
			out = append(out, item)
		case map[string]any:
			out = append(out, entity.FromMap(a.ClassName, item))
		default:
			out = append(out, entity.Hydrate(a.ClassName, []string{pk}, []any{item}))
		}
	}
	return out
}

func entityList(v any) []*entity.Entity {
	switch t := v.(type) {
	case *entity.Entity:
		if t == nil {
			return nil
		}
		return []*entity.Entity{t}
	case []*entity.Entity:
		return t
	}
	return nil
}

func setIfChanged(e *entity.Entity, field string, value any) {
	if cur, ok := e.Lookup(field); ok && keyOf(cur) == keyOf(value) {
		return
	}
	e.Set(field, value)
}

func (m *Model) execute(ctx context.Context, b *querybuilder.Builder) (datasource.Result, error) {
	ds, err := m.Datasource(ctx)
	if err != nil {
		return datasource.Result{}, err
	}
	query, err := b.Write()
	if err != nil {
		return datasource.Result{}, err
	}
	return ds.Execute(ctx, query, b.Values().Map())
}
