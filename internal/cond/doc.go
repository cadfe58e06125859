// Package cond provides the condition tree consumed by the SQL condition
// compiler in package querybuilder.
//
// A filter is an ordered list of nodes. Go maps are unordered, so the tree is
// a slice rather than a nested map; FromMap converts a map with its keys
// sorted for callers that do not care about ordering.
//
// NODE KINDS:
//
//	Field{Key: "age >", Value: 18}      comparison, operator parsed from the key suffix
//	Raw("created = modified")           fragment inserted verbatim
//	Group{Op: OR, Nodes: ...}           AND / OR / NOT keyed group
//	Block{...}                          anonymous sub-block, AND-joined
//
// Node is a sealed interface: only types in this package implement it, which
// lets the compiler switch exhaustively over node kinds.
//
// Example:
//
//	cond.Conditions{
//	    cond.F("status", "active"),
//	    cond.Or(cond.F("age >", 18), cond.F("vip", true)),
//	    cond.Raw("created = modified"),
//	}
//
// compiles (alias User) to:
//
//	User.status = :u0 AND (User.age > :u1 OR User.vip = :u2) AND created = modified
package cond
