package model

import (
	"errors"
	"fmt"
	"sort"

	"github.com/roach88/recordkit/internal/cond"
	"github.com/roach88/recordkit/internal/inflector"
)

// Kind is an association kind.
type Kind string

const (
	BelongsTo           Kind = "belongsTo"
	HasOne              Kind = "hasOne"
	HasMany             Kind = "hasMany"
	HasAndBelongsToMany Kind = "hasAndBelongsToMany"
)

// kinds lists association kinds in load order.
var kinds = []Kind{BelongsTo, HasOne, HasMany, HasAndBelongsToMany}

// joined reports whether the kind can be loaded through a LEFT JOIN.
func (k Kind) joined() bool {
	return k == BelongsTo || k == HasOne
}

// SaveMode controls how HABTM links are written.
type SaveMode string

const (
	// Replace deletes existing links before inserting the new set.
	Replace SaveMode = "replace"

	// Append only inserts links that do not exist yet.
	Append SaveMode = "append"
)

// AssociationOptions overrides association conventions. Zero values take
// the defaults documented on Association.
type AssociationOptions struct {
	ClassName             string
	ForeignKey            string
	AssociationForeignKey string
	JoinTable             string
	With                  string
	Property              string
	Conditions            cond.Conditions
	Fields                []string
	Order                 []string
	Limit                 int
	Offset                int
	Dependent             bool
	Mode                  SaveMode
}

// Association is a resolved association descriptor. It never holds a
// reference to the target model; Target looks it up by ClassName.
type Association struct {
	Kind  Kind
	Alias string

	// ClassName is the target model name. Defaults to Alias.
	ClassName string

	// ForeignKey defaults to underscore(ClassName)_id for belongsTo and to
	// underscore(owner)_id otherwise.
	ForeignKey string

	// AssociationForeignKey is the join table column pointing at the target
	// (HABTM only). Defaults to underscore(ClassName)_id.
	AssociationForeignKey string

	// JoinTable defaults to the tableized With model (HABTM only).
	JoinTable string

	// With names the join model, built from the two model names in
	// lexical order: Job + Candidate becomes CandidatesJob.
	With string

	// Property is the entity field holding loaded data: variable(alias) for
	// belongsTo and hasOne, plural(variable(alias)) otherwise.
	Property string

	// Conditions always start with the automatic join condition, followed
	// by user conditions.
	Conditions cond.Conditions

	Fields    []string
	Order     []string
	Limit     int
	Offset    int
	Dependent bool
	Mode      SaveMode

	owner string

	// autoLeft and ownerField rebuild the automatic condition when the
	// owner is queried under another alias.
	autoLeft   string
	ownerField string
}

// Owner returns the alias of the declaring model.
func (a *Association) Owner() string { return a.owner }

// JoinCondition returns the automatic join condition.
func (a *Association) JoinCondition() cond.Node {
	return a.Conditions[0]
}

// UserConditions returns the conditions declared by the user.
func (a *Association) UserConditions() cond.Conditions {
	return append(cond.Conditions(nil), a.Conditions[1:]...)
}

// on returns the join conditions with the owner side of the automatic
// condition written against ownerAlias.
func (a *Association) on(ownerAlias string) cond.Conditions {
	if ownerAlias == "" || ownerAlias == a.owner || a.ownerField == "" {
		return a.Conditions
	}
	out := append(cond.Conditions(nil), a.Conditions...)
	out[0] = cond.Raw(fmt.Sprintf("%s = %s.%s", a.autoLeft, ownerAlias, a.ownerField))
	return out
}

// newAssociation applies naming conventions. ownerPK and targetPK are the
// primary keys of the two models.
func newAssociation(kind Kind, owner, ownerPK, alias string, opts AssociationOptions, targetPK func(string) string) (*Association, error) {
	if alias == "" {
		return nil, &Error{Code: ErrCodeInvalidAssociation, Model: owner, Message: fmt.Sprintf("%s association requires an alias", kind)}
	}
	a := &Association{
		Kind:                  kind,
		Alias:                 alias,
		ClassName:             opts.ClassName,
		ForeignKey:            opts.ForeignKey,
		AssociationForeignKey: opts.AssociationForeignKey,
		JoinTable:             opts.JoinTable,
		With:                  opts.With,
		Property:              opts.Property,
		Fields:                append([]string(nil), opts.Fields...),
		Order:                 append([]string(nil), opts.Order...),
		Limit:                 opts.Limit,
		Offset:                opts.Offset,
		Dependent:             opts.Dependent,
		Mode:                  opts.Mode,
		owner:                 owner,
	}
	if a.ClassName == "" {
		a.ClassName = alias
	}
	if a.Property == "" {
		a.Property = inflector.Variable(alias)
		if !kind.joined() {
			a.Property = inflector.Plural(a.Property)
		}
	}

	var auto cond.Raw
	switch kind {
	case BelongsTo:
		if a.ForeignKey == "" {
			a.ForeignKey = inflector.Underscore(a.ClassName) + "_id"
		}
		a.autoLeft = alias + "." + targetPK(a.ClassName)
		a.ownerField = a.ForeignKey
	case HasOne, HasMany:
		if a.ForeignKey == "" {
			a.ForeignKey = inflector.Underscore(owner) + "_id"
		}
		a.autoLeft = alias + "." + a.ForeignKey
		a.ownerField = ownerPK
	case HasAndBelongsToMany:
		if a.ForeignKey == "" {
			a.ForeignKey = inflector.Underscore(owner) + "_id"
		}
		if a.AssociationForeignKey == "" {
			a.AssociationForeignKey = inflector.Underscore(a.ClassName) + "_id"
		}
		if a.With == "" {
			pair := []string{owner, a.ClassName}
			sort.Strings(pair)
			a.With = inflector.Plural(pair[0]) + pair[1]
		}
		if a.JoinTable == "" {
			a.JoinTable = inflector.Tableize(a.With)
		}
		if a.Mode == "" {
			a.Mode = Replace
		}
		auto = cond.Raw(fmt.Sprintf("%s.%s = %s.%s", a.With, a.AssociationForeignKey, alias, targetPK(a.ClassName)))
	default:
		return nil, &Error{Code: ErrCodeInvalidAssociation, Model: owner, Association: alias, Message: fmt.Sprintf("unknown association kind %q", kind)}
	}

	if a.ownerField != "" {
		auto = cond.Raw(fmt.Sprintf("%s = %s.%s", a.autoLeft, owner, a.ownerField))
	}
	a.Conditions = cond.Conditions{auto}.Append(opts.Conditions...)
	return a, nil
}

// associations is the per-model lookup table: declaration order per kind
// plus an alias index. An alias belongs to exactly one kind.
type associations struct {
	order   map[Kind][]string
	byAlias map[string]*Association
}

func newAssociations() *associations {
	return &associations{
		order:   make(map[Kind][]string),
		byAlias: make(map[string]*Association),
	}
}

// put stores a, replacing an earlier declaration of the same alias.
func (s *associations) put(a *Association) {
	if prev, ok := s.byAlias[a.Alias]; ok {
		s.order[prev.Kind] = remove(s.order[prev.Kind], a.Alias)
	}
	s.byAlias[a.Alias] = a
	s.order[a.Kind] = append(s.order[a.Kind], a.Alias)
}

func (s *associations) get(alias string) (*Association, bool) {
	a, ok := s.byAlias[alias]
	return a, ok
}

func (s *associations) of(kind Kind) []*Association {
	out := make([]*Association, 0, len(s.order[kind]))
	for _, alias := range s.order[kind] {
		out = append(out, s.byAlias[alias])
	}
	return out
}

func (s *associations) all() []*Association {
	var out []*Association
	for _, k := range kinds {
		out = append(out, s.of(k)...)
	}
	return out
}

func remove(list []string, v string) []string {
	out := list[:0:0]
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}

// BelongsTo declares that the model's rows hold a foreign key to alias.
func (m *Model) BelongsTo(alias string, opts AssociationOptions) (*Association, error) {
	return m.declare(BelongsTo, alias, opts, m.registry.primaryKey)
}

// HasOne declares a single alias row holding the model's key.
func (m *Model) HasOne(alias string, opts AssociationOptions) (*Association, error) {
	return m.declare(HasOne, alias, opts, m.registry.primaryKey)
}

// HasMany declares alias rows holding the model's key.
func (m *Model) HasMany(alias string, opts AssociationOptions) (*Association, error) {
	return m.declare(HasMany, alias, opts, m.registry.primaryKey)
}

// HasAndBelongsToMany declares a many-to-many link through a join table.
func (m *Model) HasAndBelongsToMany(alias string, opts AssociationOptions) (*Association, error) {
	return m.declare(HasAndBelongsToMany, alias, opts, m.registry.primaryKey)
}

func (m *Model) declare(kind Kind, alias string, opts AssociationOptions, targetPK func(string) string) (*Association, error) {
	a, err := newAssociation(kind, m.name, m.primaryKey, alias, opts, targetPK)
	if err != nil {
		return nil, err
	}
	m.assocs.put(a)
	return a, nil
}

// Association returns the association declared under alias.
func (m *Model) Association(alias string) (*Association, bool) {
	return m.assocs.get(alias)
}

// Associations returns associations of the given kinds in load order. No
// kinds returns all of them.
func (m *Model) Associations(kinds ...Kind) []*Association {
	if len(kinds) == 0 {
		return m.assocs.all()
	}
	var out []*Association
	for _, k := range kinds {
		out = append(out, m.assocs.of(k)...)
	}
	return out
}

// target resolves the model an association points at.
func (m *Model) target(a *Association) (*Model, error) {
	t, err := m.registry.Model(a.ClassName)
	if err != nil {
		var me *Error
		if errors.As(err, &me) && me.Code == ErrCodeMissingModel {
			me.Model = m.name
			me.Association = a.Alias
		}
		return nil, err
	}
	return t, nil
}

// JoinModel returns the join model of a HABTM association.
func (m *Model) JoinModel(alias string) (*Model, error) {
	a, ok := m.assocs.get(alias)
	if !ok || a.Kind != HasAndBelongsToMany {
		return nil, &Error{Code: ErrCodeInvalidAssociation, Model: m.name, Association: alias, Message: "not a hasAndBelongsToMany association"}
	}
	return m.registry.joinModel(a, m.dsName)
}
