// Package config loads recordkit settings.
//
// Sources are layered with koanf, lowest precedence first:
//
//	defaults < recordkit.yaml < RECORDKIT_* env vars < explicitly set flags
//
// Nested keys use "__" in environment variables:
// RECORDKIT_DATASOURCES__DEFAULT__DSN sets datasources.default.dsn.
// Relative directories resolve against the project root, which is the
// directory of the config file when one is used and the working directory
// otherwise.
package config
