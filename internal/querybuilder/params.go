package querybuilder

import (
	"strconv"
	"unicode"
	"unicode/utf8"
)

// Params is the ordered placeholder → value map produced by one Write.
// Names are kept in allocation order.
type Params struct {
	names  []string
	values map[string]any
}

// NewParams returns an empty Params.
func NewParams() *Params {
	return &Params{values: make(map[string]any)}
}

// Set records a value under name. Re-setting a name keeps its position.
func (p *Params) Set(name string, value any) {
	if _, ok := p.values[name]; !ok {
		p.names = append(p.names, name)
	}
	p.values[name] = value
}

// Get returns the value bound to name.
func (p *Params) Get(name string) (any, bool) {
	v, ok := p.values[name]
	return v, ok
}

// Len returns the number of bound placeholders.
func (p *Params) Len() int {
	if p == nil {
		return 0
	}
	return len(p.names)
}

// Names returns placeholder names in allocation order.
func (p *Params) Names() []string {
	if p == nil {
		return nil
	}
	out := make([]string, len(p.names))
	copy(out, p.names)
	return out
}

// Values returns the bound values in allocation order.
func (p *Params) Values() []any {
	if p == nil {
		return nil
	}
	out := make([]any, len(p.names))
	for i, n := range p.names {
		out[i] = p.values[n]
	}
	return out
}

// Map returns a copy of the placeholder → value map.
func (p *Params) Map() map[string]any {
	out := make(map[string]any, p.Len())
	if p == nil {
		return out
	}
	for k, v := range p.values {
		out[k] = v
	}
	return out
}

// Placeholders allocates placeholder names for one statement.
type Placeholders struct {
	prefix string
	next   int
	params *Params
}

// NewPlaceholders returns an allocator producing prefix0, prefix1, ...
func NewPlaceholders(prefix string) *Placeholders {
	if prefix == "" {
		prefix = "p"
	}
	return &Placeholders{prefix: prefix, params: NewParams()}
}

// Bind allocates the next placeholder for value and returns it with its
// leading colon.
func (a *Placeholders) Bind(value any) string {
	name := a.prefix + strconv.Itoa(a.next)
	a.next++
	a.params.Set(name, value)
	return ":" + name
}

// Params returns the values bound so far.
func (a *Placeholders) Params() *Params {
	return a.params
}

// NaturalLess orders placeholder names by prefix, then numerically by suffix,
// so that u2 sorts before u10.
func NaturalLess(a, b string) bool {
	pa, na, oka := splitNumericSuffix(a)
	pb, nb, okb := splitNumericSuffix(b)
	if pa != pb || !oka || !okb {
		return a < b
	}
	return na < nb
}

func splitNumericSuffix(s string) (string, int, bool) {
	i := len(s)
	for i > 0 {
		r, size := utf8.DecodeLastRuneInString(s[:i])
		if !unicode.IsDigit(r) {
			break
		}
		i -= size
	}
	if i == len(s) {
		return s, 0, false
	}
	n, err := strconv.Atoi(s[i:])
	if err != nil {
		return s, 0, false
	}
	return s[:i], n, true
}
