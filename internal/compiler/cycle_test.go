package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recordkit/internal/model"
)

func dependent(targets ...string) map[string]model.AssociationOptions {
	out := make(map[string]model.AssociationOptions)
	for _, t := range targets {
		out[t] = model.AssociationOptions{Dependent: true}
	}
	return out
}

func TestAnalyzeCycles_Empty(t *testing.T) {
	assert.Empty(t, AnalyzeCycles(nil))
}

func TestAnalyzeCycles_DAG(t *testing.T) {
	specs := []Spec{
		{Definition: model.Definition{Name: "Author", HasMany: dependent("Article")}},
		{Definition: model.Definition{Name: "Article", HasMany: dependent("Comment")}},
		{Definition: model.Definition{Name: "Comment", BelongsTo: map[string]model.AssociationOptions{"Article": {}}}},
	}
	assert.Empty(t, AnalyzeCycles(specs))
}

func TestAnalyzeCycles_NonDependentEdgesIgnored(t *testing.T) {
	specs := []Spec{
		{Definition: model.Definition{Name: "A", HasMany: map[string]model.AssociationOptions{"B": {}}}},
		{Definition: model.Definition{Name: "B", HasMany: map[string]model.AssociationOptions{"A": {}}}},
	}
	assert.Empty(t, AnalyzeCycles(specs))
}

func TestAnalyzeCycles_SelfLoop(t *testing.T) {
	specs := []Spec{
		{Definition: model.Definition{
			Name:    "Category",
			HasMany: map[string]model.AssociationOptions{"Children": {ClassName: "Category", Dependent: true}},
		}},
	}

	warnings := AnalyzeCycles(specs)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"Category", "Category"}, warnings[0].Path)
	assert.Equal(t, "warning", warnings[0].Level)
	assert.Contains(t, warnings[0].Message, "Self-cascading")
}

func TestAnalyzeCycles_TwoNodeCycle(t *testing.T) {
	specs := []Spec{
		{Definition: model.Definition{Name: "User", HasOne: dependent("Profile")}},
		{Definition: model.Definition{Name: "Profile", HasMany: dependent("User")}},
	}

	warnings := AnalyzeCycles(specs)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"Profile", "User", "Profile"}, warnings[0].Path)
	assert.Equal(t, "Cascading delete cycle detected: Profile → User → Profile", warnings[0].Message)
}

func TestAnalyzeCycles_MultipleCyclesSorted(t *testing.T) {
	specs := []Spec{
		{Definition: model.Definition{Name: "X", HasMany: dependent("Y")}},
		{Definition: model.Definition{Name: "Y", HasMany: dependent("X")}},
		{Definition: model.Definition{Name: "A", HasMany: dependent("B")}},
		{Definition: model.Definition{Name: "B", HasMany: dependent("C")}},
		{Definition: model.Definition{Name: "C", HasMany: dependent("A")}},
	}

	warnings := AnalyzeCycles(specs)
	require.Len(t, warnings, 2)
	assert.Equal(t, []string{"A", "B", "C", "A"}, warnings[0].Path)
	assert.Equal(t, []string{"X", "Y", "X"}, warnings[1].Path)
}
