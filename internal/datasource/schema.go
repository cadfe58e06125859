package datasource

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/recordkit/internal/querybuilder"
)

// Column describes one table column.
type Column struct {
	Name    string
	Type    string // lower-cased base type: "integer", "varchar", ...
	Length  int    // declared length, 0 when none
	Null    bool
	Default any
	Key     string // "primary" for primary key columns
}

// IsPrimary reports whether the column is part of the primary key.
func (c Column) IsPrimary() bool { return c.Key == "primary" }

// IsUUID reports whether the column holds UUID strings: a "uuid" type or a
// 36 character char/varchar.
func (c Column) IsUUID() bool {
	switch c.Type {
	case "uuid":
		return true
	case "char", "varchar", "character", "nchar", "nvarchar":
		return c.Length == 36
	}
	return false
}

// Schema is the ordered column list of a table.
type Schema struct {
	Table   string
	Columns []Column
}

// Has reports whether the table has a column.
func (s *Schema) Has(name string) bool {
	_, ok := s.Column(name)
	return ok
}

// Column returns a column by name.
func (s *Schema) Column(name string) (Column, bool) {
	if s == nil {
		return Column{}, false
	}
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Names returns column names in table order.
func (s *Schema) Names() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

// Schema describes a table. Results are cached per connection until
// ClearSchemaCache.
func (c *Connection) Schema(ctx context.Context, table string) (*Schema, error) {
	c.mu.Lock()
	cached, ok := c.schema[table]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}

	var (
		s   *Schema
		err error
	)
	if isSQLite(c.driver) {
		s, err = c.sqliteSchema(ctx, table)
	} else {
		s, err = c.informationSchema(ctx, table)
	}
	if err != nil {
		return nil, err
	}
	if len(s.Columns) == 0 {
		return nil, &Error{Code: ErrCodeSchema, Connection: c.name, Err: fmt.Errorf("table %q not found", table)}
	}

	c.mu.Lock()
	c.schema[table] = s
	c.mu.Unlock()
	return s, nil
}

// ClearSchemaCache forgets described tables, e.g. after migrations.
func (c *Connection) ClearSchemaCache() {
	c.mu.Lock()
	c.schema = make(map[string]*Schema)
	c.mu.Unlock()
}

func (c *Connection) sqliteSchema(ctx context.Context, table string) (*Schema, error) {
	rows, err := c.FetchAll(ctx, "PRAGMA table_info("+querybuilder.Quote(table)+")", nil)
	if err != nil {
		return nil, err
	}
	s := &Schema{Table: table}
	for _, r := range rows {
		m := r.Map()
		typ, length := ParseType(fmt.Sprint(m["type"]))
		col := Column{
			Name:    fmt.Sprint(m["name"]),
			Type:    typ,
			Length:  length,
			Null:    toInt(m["notnull"]) == 0,
			Default: m["dflt_value"],
		}
		if toInt(m["pk"]) > 0 {
			col.Key = "primary"
			col.Null = false
		}
		s.Columns = append(s.Columns, col)
	}
	return s, nil
}

func (c *Connection) informationSchema(ctx context.Context, table string) (*Schema, error) {
	rows, err := c.FetchAll(ctx,
		"SELECT column_name, data_type, character_maximum_length, is_nullable, column_default "+
			"FROM information_schema.columns WHERE table_name = :table ORDER BY ordinal_position",
		map[string]any{"table": table})
	if err != nil {
		return nil, err
	}
	s := &Schema{Table: table}
	for _, r := range rows {
		typ, _ := ParseType(fmt.Sprint(r.Values[1]))
		s.Columns = append(s.Columns, Column{
			Name:    fmt.Sprint(r.Values[0]),
			Type:    typ,
			Length:  toInt(r.Values[2]),
			Null:    strings.EqualFold(fmt.Sprint(r.Values[3]), "YES"),
			Default: r.Values[4],
		})
	}
	return s, nil
}

// ParseType splits a declared type such as "VARCHAR(36)" into its lower-cased
// base name and length.
func ParseType(declared string) (string, int) {
	declared = strings.ToLower(strings.TrimSpace(declared))
	open := strings.IndexByte(declared, '(')
	if open < 0 {
		return declared, 0
	}
	base := strings.TrimSpace(declared[:open])
	inner := declared[open+1:]
	if end := strings.IndexAny(inner, ",)"); end >= 0 {
		inner = inner[:end]
	}
	n, _ := strconv.Atoi(strings.TrimSpace(inner))
	return base, n
}

func toInt(v any) int {
	switch t := v.(type) {
	case int64:
		return int(t)
	case int:
		return t
	case int32:
		return int(t)
	case float64:
		return int(t)
	case string:
		n, _ := strconv.Atoi(t)
		return n
	}
	return 0
}
