// Package harness runs model scenarios against a throwaway database.
//
// A scenario names CUE model files, sets up a schema, loads fixtures, runs a
// list of model operations and then checks the SQL they issued and the rows
// they left behind.
//
// # Scenario Format
//
//	name: tag_lifecycle
//	description: "Tags are created, renamed and deleted"
//	models:
//	  - models/blog.cue
//	schema:
//	  - CREATE TABLE tags (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL)
//	fixtures:
//	  - model: Tag
//	    rows: [{id: 1, name: go}]
//	steps:
//	  - name: create
//	    op: save
//	    model: Tag
//	    data: {name: db}
//	    expect: {ok: true}
//	  - op: find
//	    model: Tag
//	    find: {kind: count}
//	    expect: {count: 2}
//	assertions:
//	  - type: statement_contains
//	    sql: INSERT INTO `tags`
//	  - type: final_state
//	    table: tags
//	    where: {id: 2}
//	    expect: {name: db}
//
// # Operations
//
// save, save_all, save_field, find, get, exists, delete, delete_all,
// update_all and query map onto the model methods of the same name. Step
// options toggle validation, callbacks, cascading and transactions.
//
// # Assertion Types
//
//   - statement_contains: some statement contains sql (and params)
//   - statement_count: exactly count statements match
//   - statement_order: statements matching each substring appear in order
//   - final_state: the first row matching where has the expected values
//   - row_count: the table holds count rows matching where
//
// # Deterministic Runs
//
// Every run uses a fresh in-memory SQLite database, a fixed clock
// (2024-01-01 UTC unless the scenario sets one) and sequential UUIDs, so
// traces are stable enough for golden comparison with RunWithGolden.
package harness
