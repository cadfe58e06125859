package querybuilder

import (
	"strings"

	"github.com/roach88/recordkit/internal/cond"
	"github.com/roach88/recordkit/internal/inflector"
)

// Builder is a stateful statement builder bound to one table.
//
// Building methods record state and return the builder for chaining. The
// statement type is whatever the last Select/Insert/Update/Delete call set.
// Errors in builder input surface from Write.
type Builder struct {
	table  string
	alias  string
	prefix string

	stmt       StatementType
	fields     []string
	special    map[string]bool
	data       Data
	conditions cond.Conditions
	joins      []Join
	group      []string
	having     cond.Conditions
	order      []string

	limit     int
	page      int
	offset    int
	pageSet   bool
	offsetSet bool

	params *Params
}

// New returns a builder for table, using alias to qualify fields in SELECT
// statements. The placeholder prefix is derived from the table name once.
func New(table, alias string) *Builder {
	return &Builder{
		table:   table,
		alias:   alias,
		prefix:  inflector.Initials(table),
		special: make(map[string]bool),
		params:  NewParams(),
	}
}

// Table returns the builder's table.
func (b *Builder) Table() string { return b.table }

// Alias returns the builder's alias.
func (b *Builder) Alias() string { return b.alias }

// Select makes the statement a SELECT over fields. No fields selects
// Alias.*. Fields declared "expr AS name" register name as special so it is
// not qualified in conditions, GROUP BY or ORDER BY.
func (b *Builder) Select(fields ...string) *Builder {
	b.stmt = StatementSelect
	b.fields = append([]string(nil), fields...)
	b.special = make(map[string]bool)
	for _, f := range fields {
		if name, ok := asName(f); ok {
			b.special[name] = true
		}
	}
	return b
}

// Insert makes the statement an INSERT of data.
func (b *Builder) Insert(data Data) *Builder {
	b.stmt = StatementInsert
	b.data = data
	return b
}

// Update makes the statement an UPDATE setting data.
func (b *Builder) Update(data Data) *Builder {
	b.stmt = StatementUpdate
	b.data = data
	return b
}

// Delete makes the statement a DELETE.
func (b *Builder) Delete() *Builder {
	b.stmt = StatementDelete
	return b
}

// Where appends conditions.
func (b *Builder) Where(c cond.Conditions) *Builder {
	b.conditions = b.conditions.Append(c...)
	return b
}

// Group sets GROUP BY fields.
func (b *Builder) Group(fields ...string) *Builder {
	b.group = append([]string(nil), fields...)
	return b
}

// Having appends HAVING conditions.
func (b *Builder) Having(c cond.Conditions) *Builder {
	b.having = b.having.Append(c...)
	return b
}

// Order appends ORDER BY entries ("name", "created DESC").
func (b *Builder) Order(fields ...string) *Builder {
	b.order = append(b.order, fields...)
	return b
}

// Limit sets the row limit. Zero removes it.
func (b *Builder) Limit(n int) *Builder {
	b.limit = n
	return b
}

// Page selects a 1-based page of Limit rows. It cannot be combined with
// Offset.
func (b *Builder) Page(p int) *Builder {
	b.page = p
	b.pageSet = true
	return b
}

// Offset skips n rows. It cannot be combined with Page.
func (b *Builder) Offset(n int) *Builder {
	b.offset = n
	b.offsetSet = true
	return b
}

// Join adds a join. An empty Type joins with LEFT.
func (b *Builder) Join(j Join) *Builder {
	b.joins = append(b.joins, j)
	return b
}

// LeftJoin adds a LEFT JOIN.
func (b *Builder) LeftJoin(table, alias string, on cond.Conditions) *Builder {
	return b.Join(Join{Type: JoinLeft, Table: table, Alias: alias, Conditions: on})
}

// InnerJoin adds an INNER JOIN.
func (b *Builder) InnerJoin(table, alias string, on cond.Conditions) *Builder {
	return b.Join(Join{Type: JoinInner, Table: table, Alias: alias, Conditions: on})
}

// RightJoin adds a RIGHT JOIN.
func (b *Builder) RightJoin(table, alias string, on cond.Conditions) *Builder {
	return b.Join(Join{Type: JoinRight, Table: table, Alias: alias, Conditions: on})
}

// FullJoin adds a FULL JOIN.
func (b *Builder) FullJoin(table, alias string, on cond.Conditions) *Builder {
	return b.Join(Join{Type: JoinFull, Table: table, Alias: alias, Conditions: on})
}

// Write renders the current statement. Placeholder numbering and the value
// map restart on every call, so repeated calls return identical output.
func (b *Builder) Write() (string, error) {
	ph := NewPlaceholders(b.prefix)
	b.params = ph.Params()

	plan, err := b.plan()
	if err != nil {
		return "", err
	}

	switch b.stmt {
	case StatementSelect:
		return SelectStatement(plan, ph)
	case StatementInsert:
		return InsertStatement(plan, ph)
	case StatementUpdate:
		return UpdateStatement(plan, ph)
	case StatementDelete:
		return DeleteStatement(plan, ph)
	default:
		return "", newError(ErrCodeNoStatement, "", "write called before select, insert, update or delete")
	}
}

// Values returns the placeholder values bound by the last Write.
func (b *Builder) Values() *Params {
	return b.params
}

func (b *Builder) plan() (*Plan, error) {
	if b.pageSet && b.offsetSet {
		return nil, newError(ErrCodePageOffsetConflict, "", "page and offset are mutually exclusive")
	}
	offset := 0
	switch {
	case b.pageSet:
		if b.limit <= 0 {
			return nil, newError(ErrCodeLimitRequired, "", "page requires a limit")
		}
		if b.page > 1 {
			offset = b.page*b.limit - b.limit
		}
	case b.offsetSet:
		if b.offset > 0 && b.limit <= 0 {
			return nil, newError(ErrCodeLimitRequired, "", "offset requires a limit")
		}
		offset = b.offset
	}

	return &Plan{
		Type:       b.stmt,
		Table:      b.table,
		Alias:      b.alias,
		Fields:     b.fields,
		Special:    b.special,
		Data:       b.data,
		Conditions: b.conditions,
		Joins:      b.joins,
		Group:      b.group,
		Having:     b.having,
		Order:      b.order,
		Limit:      b.limit,
		Offset:     offset,
	}, nil
}

// asName extracts "name" from "expr AS name", stripping backticks.
func asName(field string) (string, bool) {
	upper := strings.ToUpper(field)
	i := strings.LastIndex(upper, " AS ")
	if i < 0 {
		return "", false
	}
	name := strings.Trim(strings.TrimSpace(field[i+4:]), "`")
	return name, name != ""
}
