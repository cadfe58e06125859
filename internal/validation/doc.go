// Package validation runs per-field rule lists against entities.
//
// Rules are looked up by name in a Registry (built-ins plus anything the
// caller registers) or given inline as a Func. For each field the Validator:
//
//  1. rejects a missing field when a rule marks it Required,
//  2. runs notBlank rules before anything else,
//  3. skips the remaining rules for empty values unless a rule sets
//     RunOnEmpty,
//  4. stops at the first failing rule and records its message on the entity.
//
// A failed rule is not an error. Validate returns false and the messages live
// in the entity's error map. An unknown rule name is an *Error.
package validation
