package model

import (
	"context"

	"github.com/roach88/recordkit/internal/cond"
	"github.com/roach88/recordkit/internal/entity"
	"github.com/roach88/recordkit/internal/querybuilder"
)

// saveLinks reconciles the join table of a HABTM association for one
// owner. Replace mode rewrites the owner's links; Append mode only adds
// missing ones and never deletes.
func (m *Model) saveLinks(ctx context.Context, a *Association, ownerID any, targets []*entity.Entity, o options) (bool, error) {
	t, err := m.target(a)
	if err != nil {
		return false, err
	}
	jm, err := m.registry.joinModel(a, m.dsName)
	if err != nil {
		return false, err
	}
	ds, err := jm.Datasource(ctx)
	if err != nil {
		return false, err
	}

	var ids []any
	seen := make(map[string]bool)
	for _, child := range targets {
		id, ok, err := t.resolveLink(ctx, a, child, o)
		if err != nil || !ok {
			return false, err
		}
		if seen[keyOf(id)] {
			continue
		}
		seen[keyOf(id)] = true
		ids = append(ids, id)
	}

	switch a.Mode {
	case Append:
		if len(ids) == 0 {
			return true, nil
		}
		b := querybuilder.New(a.JoinTable, a.With).
			Select(a.AssociationForeignKey).
			Where(cond.Conditions{cond.F(a.ForeignKey, ownerID), cond.F(a.AssociationForeignKey, ids)})
		query, err := b.Write()
		if err != nil {
			return false, err
		}
		existing, err := ds.FetchList(ctx, query, b.Values().Map())
		if err != nil {
			return false, err
		}
		for _, v := range existing {
			delete(seen, keyOf(v))
		}
		var missing []any
		for _, id := range ids {
			if seen[keyOf(id)] {
				missing = append(missing, id)
			}
		}
		ids = missing
	default:
		b := querybuilder.New(a.JoinTable, a.With).Delete().Where(cond.Conditions{cond.F(a.ForeignKey, ownerID)})
		if _, err := jm.execute(ctx, b); err != nil {
			return false, err
		}
	}

	for _, id := range ids {
		b := querybuilder.New(a.JoinTable, a.With).Insert(querybuilder.Data{
			{Name: a.ForeignKey, Value: ownerID},
			{Name: a.AssociationForeignKey, Value: id},
		})
		if _, err := jm.execute(ctx, b); err != nil {
			return false, err
		}
	}
	m.logger.Debug("links saved", "association", a.Alias, "id", ownerID, "links", len(ids), "mode", string(a.Mode))
	return true, nil
}

// resolveLink returns the primary key of a HABTM target. A target with a
// primary key is used as is, after saving any other fields it carries. A
// target with only a display field is looked up by it and created when no
// row matches.
func (m *Model) resolveLink(ctx context.Context, a *Association, child *entity.Entity, o options) (any, bool, error) {
	// the owner's field whitelist does not apply to its targets
	o.fields = nil
	if id := child.Get(m.primaryKey); id != nil {
		if !m.onlyPrimaryKey(child) && child.IsDirty() {
			if ok, err := m.save(ctx, child, o); err != nil || !ok {
				return nil, false, err
			}
		}
		return id, true, nil
	}

	display := m.DisplayField(ctx)
	if display == "" || !child.Has(display) {
		return nil, false, &Error{
			Code:        ErrCodeInvalidData,
			Model:       m.name,
			Association: a.Alias,
			Message:     "linked record needs a primary key or a display field",
		}
	}

	found, err := m.First(ctx, FindOptions{
		Conditions:    cond.Conditions{cond.F(display, child.Get(display))},
		Fields:        []string{m.primaryKey},
		Order:         []string{},
		Recursive:     Depth(-1),
		SkipCallbacks: true,
	})
	if err != nil {
		return nil, false, err
	}
	if found != nil {
		id := found.Get(m.primaryKey)
		child.Set(m.primaryKey, id)
		child.Clean()
		child.SetNew(false)
		return id, true, nil
	}

	if ok, err := m.save(ctx, child, o); err != nil || !ok {
		return nil, false, err
	}
	return child.Get(m.primaryKey), true, nil
}
