package querybuilder

import (
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/recordkit/internal/cond"
)

// StatementType is the kind of statement a Plan renders.
type StatementType string

const (
	StatementNone   StatementType = ""
	StatementSelect StatementType = "SELECT"
	StatementInsert StatementType = "INSERT"
	StatementUpdate StatementType = "UPDATE"
	StatementDelete StatementType = "DELETE"
)

// JoinType is the join keyword placed before JOIN.
type JoinType string

const (
	JoinInner JoinType = "INNER"
	JoinLeft  JoinType = "LEFT"
	JoinRight JoinType = "RIGHT"
	JoinFull  JoinType = "FULL"
)

// Join describes one JOIN clause.
type Join struct {
	Type       JoinType
	Table      string
	Alias      string
	Conditions cond.Conditions
}

// Column is one column/value pair of INSERT or UPDATE data.
type Column struct {
	Name  string
	Value any
}

// Data is ordered statement data.
type Data []Column

// DataFromMap converts a map to Data with column names sorted.
func DataFromMap(m map[string]any) Data {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	out := make(Data, len(names))
	for i, n := range names {
		out[i] = Column{Name: n, Value: m[n]}
	}
	return out
}

// Names returns the column names in order.
func (d Data) Names() []string {
	out := make([]string, len(d))
	for i, c := range d {
		out[i] = c.Name
	}
	return out
}

// Expr is an UPDATE value rendered verbatim instead of bound, e.g.
// Expr("view_count + 1").
type Expr string

// Plan is the transient description of one statement.
type Plan struct {
	Type       StatementType
	Table      string
	Alias      string
	Fields     []string
	Special    map[string]bool
	Data       Data
	Conditions cond.Conditions
	Joins      []Join
	Group      []string
	Having     cond.Conditions
	Order      []string
	Limit      int // 0 means no limit
	Offset     int
}

// Quote quotes an identifier with backticks.
func Quote(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// SelectStatement renders a SELECT.
func SelectStatement(p *Plan, ph *Placeholders) (string, error) {
	comp := &Compiler{Alias: p.Alias, Special: p.Special, Placeholders: ph}

	fields := make([]string, 0, len(p.Fields))
	for _, f := range p.Fields {
		fields = append(fields, comp.qualify(f))
	}
	if len(fields) == 0 {
		if p.Alias != "" {
			fields = append(fields, p.Alias+".*")
		} else {
			fields = append(fields, "*")
		}
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(fields, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(Quote(p.Table))
	if p.Alias != "" {
		sb.WriteString(" AS ")
		sb.WriteString(Quote(p.Alias))
	}

	for _, j := range p.Joins {
		frag, err := joinFragment(j, comp)
		if err != nil {
			return "", err
		}
		sb.WriteString(" ")
		sb.WriteString(frag)
	}

	if len(p.Conditions) > 0 {
		where, err := comp.Compile(p.Conditions, cond.AND)
		if err != nil {
			return "", err
		}
		if where != "" {
			sb.WriteString(" WHERE ")
			sb.WriteString(where)
		}
	}

	if len(p.Group) > 0 {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(qualifyList(comp, p.Group), ", "))
	}

	if len(p.Having) > 0 {
		having, err := comp.Compile(p.Having, cond.AND)
		if err != nil {
			return "", err
		}
		if having != "" {
			sb.WriteString(" HAVING ")
			sb.WriteString(having)
		}
	}

	if len(p.Order) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(qualifyList(comp, p.Order), ", "))
	}

	if p.Limit > 0 {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.Itoa(p.Limit))
		if p.Offset > 0 {
			sb.WriteString(" OFFSET ")
			sb.WriteString(strconv.Itoa(p.Offset))
		}
	}

	return sb.String(), nil
}

// InsertStatement renders an INSERT. Data is required.
func InsertStatement(p *Plan, ph *Placeholders) (string, error) {
	if len(p.Data) == 0 {
		return "", newError(ErrCodeEmptyData, "", "insert into %s requires data", p.Table)
	}
	cols := make([]string, len(p.Data))
	vals := make([]string, len(p.Data))
	for i, c := range p.Data {
		cols[i] = Quote(c.Name)
		vals[i] = ph.Bind(c.Value)
	}
	return "INSERT INTO " + Quote(p.Table) +
		" (" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(vals, ", ") + ")", nil
}

// UpdateStatement renders an UPDATE. Data is required; conditions are
// optional and compiled without qualification.
func UpdateStatement(p *Plan, ph *Placeholders) (string, error) {
	if len(p.Data) == 0 {
		return "", newError(ErrCodeEmptyData, "", "update of %s requires data", p.Table)
	}
	sets := make([]string, len(p.Data))
	for i, c := range p.Data {
		if e, ok := c.Value.(Expr); ok {
			sets[i] = Quote(c.Name) + " = " + string(e)
			continue
		}
		sets[i] = Quote(c.Name) + " = " + ph.Bind(c.Value)
	}
	sql := "UPDATE " + Quote(p.Table) + " SET " + strings.Join(sets, ", ")
	if len(p.Conditions) > 0 {
		where, err := Compile(p.Conditions, "", cond.AND, ph)
		if err != nil {
			return "", err
		}
		if where != "" {
			sql += " WHERE " + where
		}
	}
	return sql, nil
}

// DeleteStatement renders a DELETE. Conditions are required.
func DeleteStatement(p *Plan, ph *Placeholders) (string, error) {
	if len(p.Conditions) == 0 {
		return "", newError(ErrCodeMissingConditions, "", "delete from %s requires conditions", p.Table)
	}
	where, err := Compile(p.Conditions, "", cond.AND, ph)
	if err != nil {
		return "", err
	}
	if where == "" {
		return "", newError(ErrCodeMissingConditions, "", "delete from %s requires conditions", p.Table)
	}
	return "DELETE FROM " + Quote(p.Table) + " WHERE " + where, nil
}

func joinFragment(j Join, parent *Compiler) (string, error) {
	if j.Table == "" {
		return "", newError(ErrCodeInvalidJoin, "", "join requires a table")
	}
	if len(j.Conditions) == 0 {
		return "", newError(ErrCodeInvalidJoin, "", "join on %s requires conditions", j.Table)
	}
	alias := j.Alias
	if alias == "" {
		alias = j.Table
	}
	typ := j.Type
	if typ == "" {
		typ = JoinLeft
	}

	comp := &Compiler{Alias: alias, Special: parent.Special, Placeholders: parent.Placeholders}
	on, err := comp.Compile(j.Conditions, cond.AND)
	if err != nil {
		return "", err
	}

	frag := string(typ) + " JOIN " + Quote(j.Table)
	if alias != j.Table {
		frag += " AS " + Quote(alias)
	}
	return frag + " ON (" + on + ")", nil
}

// qualifyList qualifies GROUP BY / ORDER BY entries, keeping a trailing
// ASC/DESC direction intact.
func qualifyList(comp *Compiler, items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		field, dir := item, ""
		if i := strings.LastIndexByte(item, ' '); i > 0 {
			switch strings.ToUpper(item[i+1:]) {
			case "ASC", "DESC":
				field, dir = strings.TrimSpace(item[:i]), " "+strings.ToUpper(item[i+1:])
			}
		}
		out = append(out, comp.qualify(field)+dir)
	}
	return out
}
