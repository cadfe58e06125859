// Package canonical renders query results as canonical JSON.
//
// The CLI prints find results with it and the scenario harness stores it in
// golden traces, so output must be byte-stable across runs:
//   - object keys sorted by UTF-16 code units (RFC 8785)
//   - strings NFC normalized, no HTML escaping, U+2028/U+2029 literal
//   - entities rendered as objects of their properties
//   - time values as RFC 3339 in UTC, []byte as strings
//
// Unlike a content hash encoding, null and floats are allowed: rows carry
// NULL columns and REAL values. NaN and infinities are rejected.
package canonical
