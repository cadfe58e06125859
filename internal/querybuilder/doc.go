// Package querybuilder compiles condition trees and statement plans into
// parameterized SQL.
//
// Two layers live here:
//
//   - The condition compiler (Compile) turns a cond.Conditions tree into a
//     WHERE/HAVING fragment. Every value becomes a named placeholder recorded
//     in Params; values are never interpolated into the SQL text.
//   - Builder is a stateful, fluent statement builder. Each Write call
//     renders the statement recorded by the last Select/Insert/Update/Delete
//     call from a fresh placeholder counter, so Write is idempotent.
//
// PLACEHOLDERS:
//
// Placeholder names are the word initials of the table name followed by an
// incrementing counter: table "users" yields :u0, :u1, ...; "contact_tasks"
// yields :ct0, :ct1, .... Names never collide within one statement.
//
// DIALECT:
//
// Identifiers are quoted with backticks (MySQL flavor, also accepted by
// SQLite). Placeholders use the :name form and are bound with sql.Named by
// package datasource.
//
// Example:
//
//	sql, err := querybuilder.New("users", "User").
//	    Select("id", "name").
//	    Where(cond.FromMap(map[string]any{"id": 1000, "name": []any{"James", "Rossi"}})).
//	    Write()
//	// SELECT User.id, User.name FROM `users` AS `User`
//	//   WHERE User.id = :u0 AND User.name IN ( :u1, :u2 )
package querybuilder
