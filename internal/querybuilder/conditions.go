package querybuilder

import (
	"reflect"
	"strings"

	"github.com/roach88/recordkit/internal/cond"
)

// operators in match order: longer suffixes first so "NOT LIKE" wins over
// "LIKE" and ">=" wins over "=".
var operators = []string{
	"NOT BETWEEN", "BETWEEN",
	"NOT LIKE", "LIKE",
	"NOT IN", "IN",
	"!=", ">=", "<=",
	"=", ">", "<",
}

// Compiler renders condition trees. The zero value compiles unqualified
// fields into a fresh "p"-prefixed placeholder space.
type Compiler struct {
	// Alias qualifies plain field names ("id" → "User.id"). Empty disables
	// qualification.
	Alias string

	// Special holds names declared with AS in the SELECT list. They are never
	// qualified.
	Special map[string]bool

	// Placeholders receives every bound value.
	Placeholders *Placeholders
}

// Compile renders conditions joined by op (AND when empty) and records the
// bound values in ph.
func Compile(c cond.Conditions, alias string, op cond.BoolOp, ph *Placeholders) (string, error) {
	comp := &Compiler{Alias: alias, Placeholders: ph}
	return comp.Compile(c, op)
}

// Compile renders conditions joined by op.
func (c *Compiler) Compile(nodes cond.Conditions, op cond.BoolOp) (string, error) {
	if c.Placeholders == nil {
		c.Placeholders = NewPlaceholders("p")
	}
	if op == "" || op == cond.NOT {
		op = cond.AND
	}
	frag, _, err := c.list(nodes, op)
	return frag, err
}

// list renders nodes joined by op and reports how many non-empty parts it
// produced so callers can decide on parentheses.
func (c *Compiler) list(nodes []cond.Node, op cond.BoolOp) (string, int, error) {
	parts := make([]string, 0, len(nodes))
	for _, n := range nodes {
		frag, err := c.node(n)
		if err != nil {
			return "", 0, err
		}
		if frag == "" {
			continue
		}
		parts = append(parts, frag)
	}
	return strings.Join(parts, " "+string(op)+" "), len(parts), nil
}

func (c *Compiler) node(n cond.Node) (string, error) {
	switch v := n.(type) {
	case cond.Field:
		return c.field(v)
	case cond.Raw:
		return strings.TrimSpace(string(v)), nil
	case cond.Group:
		return c.group(v)
	case cond.Block:
		frag, count, err := c.list(v, cond.AND)
		if err != nil {
			return "", err
		}
		return wrap(frag, count), nil
	default:
		return "", newError(ErrCodeInvalidConditionValue, "", "unsupported condition node %T", n)
	}
}

func (c *Compiler) group(g cond.Group) (string, error) {
	op := g.Op
	if op == cond.NOT {
		frag, count, err := c.list(g.Nodes, cond.AND)
		if err != nil || count == 0 {
			return "", err
		}
		return "NOT (" + frag + ")", nil
	}
	if op == "" {
		op = cond.AND
	}
	frag, count, err := c.list(g.Nodes, op)
	if err != nil {
		return "", err
	}
	return wrap(frag, count), nil
}

func wrap(frag string, count int) string {
	if count > 1 {
		return "(" + frag + ")"
	}
	return frag
}

func (c *Compiler) field(f cond.Field) (string, error) {
	name, op, err := splitOperator(f.Key)
	if err != nil {
		return "", err
	}
	name = c.qualify(name)

	values, isList := asList(f.Value)

	switch op {
	case "=", "!=":
		if f.Value == nil {
			if op == "=" {
				return name + " IS NULL", nil
			}
			return name + " IS NOT NULL", nil
		}
		if isList {
			in := "IN"
			if op == "!=" {
				in = "NOT IN"
			}
			return c.in(name, in, f.Key, values)
		}
		return name + " " + op + " " + c.Placeholders.Bind(f.Value), nil

	case "IN", "NOT IN":
		if f.Value == nil {
			return "", newError(ErrCodeInvalidConditionValue, f.Key, "%s does not accept null", op)
		}
		if s, ok := f.Value.(string); ok {
			return name + " " + op + " " + subSelect(s), nil
		}
		if !isList {
			values = []any{f.Value}
		}
		return c.in(name, op, f.Key, values)

	case "BETWEEN", "NOT BETWEEN":
		if !isList || len(values) != 2 {
			return "", newError(ErrCodeInvalidConditionValue, f.Key, "%s requires exactly two values", op)
		}
		lo := c.Placeholders.Bind(values[0])
		hi := c.Placeholders.Bind(values[1])
		return "(" + name + " " + op + " " + lo + " AND " + hi + ")", nil

	default:
		// >, <, >=, <=, LIKE, NOT LIKE
		if f.Value == nil {
			return "", newError(ErrCodeInvalidConditionValue, f.Key, "%s does not accept null", op)
		}
		if isList {
			return "", newError(ErrCodeInvalidConditionValue, f.Key, "%s does not accept a list", op)
		}
		return name + " " + op + " " + c.Placeholders.Bind(f.Value), nil
	}
}

func (c *Compiler) in(name, op, key string, values []any) (string, error) {
	if len(values) == 0 {
		return "", newError(ErrCodeInvalidConditionValue, key, "%s requires at least one value", op)
	}
	holders := make([]string, len(values))
	for i, v := range values {
		holders[i] = c.Placeholders.Bind(v)
	}
	return name + " " + op + " ( " + strings.Join(holders, ", ") + " )", nil
}

func subSelect(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "(") {
		return s
	}
	return "(" + s + ")"
}

// qualify prefixes a plain field with the compiler alias.
func (c *Compiler) qualify(field string) string {
	return qualifyField(c.Alias, field, c.Special)
}

func qualifyField(alias, field string, special map[string]bool) string {
	if alias == "" || field == "" || special[field] {
		return field
	}
	if strings.ContainsAny(field, " .(") {
		return field
	}
	return alias + "." + field
}

// splitOperator parses "field OP" into its parts. A key without a known
// operator suffix compares with "=". A trailing token that looks like an
// operator but is not supported is rejected.
func splitOperator(key string) (string, string, error) {
	k := strings.TrimSpace(key)
	upper := strings.ToUpper(k)
	for _, op := range operators {
		if !strings.HasSuffix(upper, op) {
			continue
		}
		rest := k[:len(k)-len(op)]
		if rest == "" {
			break
		}
		symbolic := !isWordOperator(op)
		if !symbolic && !strings.HasSuffix(rest, " ") {
			// "domain" ends in "IN"
			continue
		}
		if symbolic && strings.ContainsAny(rest[len(rest)-1:], "=<>!~") {
			// "a <> b", "x ~=" and friends
			break
		}
		return strings.TrimSpace(rest), op, nil
	}

	i := strings.LastIndexByte(k, ' ')
	if i < 0 {
		return k, "=", nil
	}
	if last := k[i+1:]; looksLikeOperator(last) {
		return "", "", newError(ErrCodeInvalidOperator, key, "unsupported operator %q", last)
	}
	return k, "=", nil
}

func isWordOperator(op string) bool {
	return op[0] >= 'A' && op[0] <= 'Z'
}

// looksLikeOperator reports whether a trailing token is an operator: either
// made of comparison symbols or an upper-case SQL keyword.
func looksLikeOperator(tok string) bool {
	if tok == "" {
		return false
	}
	symbols, letters := true, true
	for _, r := range tok {
		if !strings.ContainsRune("=<>!~^%|&", r) {
			symbols = false
		}
		if r < 'A' || r > 'Z' {
			letters = false
		}
	}
	return symbols || letters
}

// asList converts any slice or array value (except []byte) to []any.
func asList(v any) ([]any, bool) {
	switch t := v.(type) {
	case nil, []byte, string:
		return nil, false
	case []any:
		return t, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
