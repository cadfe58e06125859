package inflector

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnderscore(t *testing.T) {
	tests := map[string]string{
		"ContactTask":   "contact_task",
		"User":          "user",
		"HTMLParser":    "html_parser",
		"already_snake": "already_snake",
		"CandidatesJob": "candidates_job",
		"Address2Line":  "address2_line",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, Underscore(in))
		})
	}
}

func TestCamelizeAndVariable(t *testing.T) {
	assert.Equal(t, "ContactTask", Camelize("contact_task"))
	assert.Equal(t, "User", Camelize("user"))
	assert.Equal(t, "contactNote", Variable("ContactNote"))
	assert.Equal(t, "author", Variable("Author"))
	assert.Equal(t, "", Variable(""))
}

func TestTableizeAndClassify(t *testing.T) {
	assert.Equal(t, "contact_tasks", Tableize("ContactTask"))
	assert.Equal(t, "users", Tableize("User"))
	assert.Equal(t, "people", Tableize("Person"))
	assert.Equal(t, "ContactTask", Classify("contact_tasks"))
	assert.Equal(t, "Category", Classify("categories"))
}

func TestPluralSingular(t *testing.T) {
	assert.Equal(t, "Candidates", Plural("Candidate"))
	assert.Equal(t, "Jobs", Plural("Job"))
	assert.Equal(t, "tags", Plural("tag"))
	assert.Equal(t, "Tag", Singular("Tags"))
	assert.Equal(t, "", Plural(""))
}

func TestInitials(t *testing.T) {
	assert.Equal(t, "ct", Initials("contact_tasks"))
	assert.Equal(t, "u", Initials("users"))
	assert.Equal(t, "cj", Initials("candidates_jobs"))
	assert.Equal(t, "at", Initials("ArticlesTag"))
}

func TestHumanize(t *testing.T) {
	assert.Equal(t, "Contact Task", Humanize("contact_task"))
	assert.Equal(t, "Created", Humanize("created"))
}
