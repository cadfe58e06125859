package model

import (
	"github.com/roach88/recordkit/internal/datasource"
	"github.com/roach88/recordkit/internal/validation"
)

// DefaultRecursive is the eager-loading depth used when a definition sets
// none: belongsTo and hasOne plus one level of hasMany and HABTM.
const DefaultRecursive = 1

// DefaultBatchSize caps the number of keys in one secondary IN query.
const DefaultBatchSize = 500

// Definition describes a model. Zero values take conventional defaults:
// Table is the tableized Name, PrimaryKey is "id", Recursive is
// DefaultRecursive.
type Definition struct {
	// Name is the model alias, e.g. "Article".
	Name string

	Table        string
	PrimaryKey   string
	DisplayField string

	// Order is the default ORDER BY of finds.
	Order []string

	// Recursive is the default eager-loading depth. Nil uses
	// DefaultRecursive; -1 disables eager loading.
	Recursive *int

	// Datasource names the connection in the datasource.Manager. Empty uses
	// datasource.DefaultName.
	Datasource string

	// Schema replaces introspection with a static column list.
	Schema *datasource.Schema

	// Validate maps field names to rules. Fields are validated in sorted
	// order.
	Validate map[string][]validation.Rule

	BelongsTo           map[string]AssociationOptions
	HasOne              map[string]AssociationOptions
	HasMany             map[string]AssociationOptions
	HasAndBelongsToMany map[string]AssociationOptions

	// Callbacks receives lifecycle hooks after every extension.
	Callbacks Callbacks

	// Extensions are attached in order.
	Extensions []Extension

	// BatchSize caps secondary IN queries. Zero uses DefaultBatchSize.
	BatchSize int
}

// Depth returns a pointer to n, for Definition.Recursive and
// FindOptions.Recursive.
func Depth(n int) *int {
	return &n
}
