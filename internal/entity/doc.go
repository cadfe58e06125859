// Package entity provides the attribute bag that flows through finds and
// saves, and the Marshaller that builds entities from request-shaped data.
//
// An Entity keeps its fields in insertion order, tracks which fields changed
// since it was loaded (dirty tracking), knows whether it has been persisted,
// and carries per-field validation messages. Values are scalars, *Entity for
// belongsTo/hasOne associations, or []*Entity for hasMany/HABTM.
package entity
