package cond

import (
	"sort"
	"strings"
)

// Node is a single entry of a condition tree.
//
// This is a sealed interface - only types in this package implement it.
type Node interface {
	condNode()
}

// BoolOp joins the entries of a group.
type BoolOp string

const (
	AND BoolOp = "AND"
	OR  BoolOp = "OR"
	NOT BoolOp = "NOT"
)

// Conditions is an ordered list of nodes joined with AND at the top level.
type Conditions []Node

// Field is a comparison. Key holds the field name and an optional operator
// suffix ("age >", "name NOT LIKE"); the operator defaults to "=".
type Field struct {
	Key   string
	Value any
}

func (Field) condNode() {}

// Raw is a SQL fragment inserted verbatim. It is the escape hatch for
// expressions such as "created = modified" or structural join conditions.
type Raw string

func (Raw) condNode() {}

// Group is a keyed AND/OR/NOT group. NOT groups render as NOT (...), with
// their entries AND-joined.
type Group struct {
	Op    BoolOp
	Nodes []Node
}

func (Group) condNode() {}

// Block is an anonymous multi-condition sub-block. Its entries are
// AND-joined and the block is parenthesized when it holds more than one.
type Block []Node

func (Block) condNode() {}

// F builds a Field node.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// And groups nodes with AND.
func And(nodes ...Node) Group {
	return Group{Op: AND, Nodes: nodes}
}

// Or groups nodes with OR.
func Or(nodes ...Node) Group {
	return Group{Op: OR, Nodes: nodes}
}

// Not negates the AND of nodes.
func Not(nodes ...Node) Group {
	return Group{Op: NOT, Nodes: nodes}
}

// FromMap converts a map into Conditions with keys in sorted order.
// The keys "AND", "OR" and "NOT" (any case) holding a map or a []any become
// groups; every other key becomes a Field.
func FromMap(m map[string]any) Conditions {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(Conditions, 0, len(keys))
	for _, k := range keys {
		out = append(out, nodeFromEntry(k, m[k]))
	}
	return out
}

func nodeFromEntry(key string, value any) Node {
	switch op := BoolOp(strings.ToUpper(strings.TrimSpace(key))); op {
	case AND, OR, NOT:
		switch v := value.(type) {
		case map[string]any:
			return Group{Op: op, Nodes: FromMap(v)}
		case []any:
			return Group{Op: op, Nodes: fromList(v)}
		case Conditions:
			return Group{Op: op, Nodes: v}
		}
	}
	return Field{Key: key, Value: value}
}

// fromList converts list entries: strings become Raw fragments, maps become
// Blocks, and nodes are kept as they are.
func fromList(items []any) []Node {
	nodes := make([]Node, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			nodes = append(nodes, Raw(v))
		case map[string]any:
			nodes = append(nodes, Block(FromMap(v)))
		case Node:
			nodes = append(nodes, v)
		}
	}
	return nodes
}

// Append returns a new Conditions holding c followed by nodes.
// The receiver is never modified.
func (c Conditions) Append(nodes ...Node) Conditions {
	out := make(Conditions, 0, len(c)+len(nodes))
	out = append(out, c...)
	return append(out, nodes...)
}

// IsEmpty reports whether the conditions render to nothing: the list holds
// only blank Raw fragments and groups or blocks that are themselves empty.
func (c Conditions) IsEmpty() bool {
	for _, n := range c {
		if !isEmptyNode(n) {
			return false
		}
	}
	return true
}

func isEmptyNode(n Node) bool {
	switch v := n.(type) {
	case Raw:
		return strings.TrimSpace(string(v)) == ""
	case Group:
		return Conditions(v.Nodes).IsEmpty()
	case Block:
		return Conditions(v).IsEmpty()
	}
	return false
}

// Fields returns the top-level Field nodes keyed by their bare field name
// (operator suffix removed). Useful for reading simple equality filters back.
func (c Conditions) Fields() map[string]any {
	out := make(map[string]any)
	for _, n := range c {
		if f, ok := n.(Field); ok {
			name := strings.TrimSpace(f.Key)
			if i := strings.IndexByte(name, ' '); i > 0 {
				name = name[:i]
			}
			out[name] = f.Value
		}
	}
	return out
}
