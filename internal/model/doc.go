// Package model implements ActiveRecord-style models over package datasource.
//
// A Model maps one table. It declares associations, finds entities with
// eager loading, and saves or deletes them with validation, callbacks and
// transactions.
//
// ARCHITECTURE:
//
// Registry owns definitions and builds models lazily by name. Associations
// are descriptors (names, keys, conditions); target models are looked up in
// the registry only when a find or save needs them, so cyclic graphs such as
// Article belongsTo Author / Author hasMany Article never hold live object
// references to each other.
//
// Association kinds:
//
//	BelongsTo            owner row holds the foreign key       (LEFT JOIN)
//	HasOne               target row holds the foreign key      (LEFT JOIN)
//	HasMany              target rows hold the foreign key      (secondary query)
//	HasAndBelongsToMany  join table holds both keys            (secondary query)
//
// EAGER LOADING:
//
// Every level of a find has a remaining depth d. At d >= 0 belongsTo and
// hasOne associations are loaded, joined into the SELECT when the level is a
// query and batched otherwise. At d >= 1 hasMany and HABTM associations are
// loaded with batched IN queries that are never joined into the primary
// SELECT, so root rows are not duplicated. Every descent uses d-1. The
// Associated find option replaces depth with an explicit graph.
//
// PERSISTENCE:
//
// Save runs: existence check → beforeValidate → validation → afterValidate →
// beforeSave → column/association split → INSERT or UPDATE → afterSave →
// join table reconciliation. A validation failure is not an error: Save
// returns false and the messages are on the entity.
//
// One named connection is one transaction domain. A top-level save or delete
// opens a transaction only when the connection has none open; nested saves
// run inside the caller's transaction.
package model
