// Package inflector converts between the naming conventions used to derive
// table names, foreign keys and entity property names from model aliases.
//
//	Underscore("ContactTask")  // "contact_task"
//	Camelize("contact_task")   // "ContactTask"
//	Variable("ContactTask")    // "contactTask"
//	Tableize("ContactTask")    // "contact_tasks"
//	Classify("contact_tasks")  // "ContactTask"
//
// Plural and singular forms come from github.com/jinzhu/inflection.
package inflector
