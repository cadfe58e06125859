// Package testutil provides deterministic helpers for tests: a slog logger
// that writes through t.Log, a settable clock and a sequential UUID source.
package testutil
