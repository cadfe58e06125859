package inflector

import (
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.Und, cases.NoLower)

// Plural returns the plural form of word, preserving its leading case.
func Plural(word string) string {
	if word == "" {
		return ""
	}
	return inflection.Plural(word)
}

// Singular returns the singular form of word, preserving its leading case.
func Singular(word string) string {
	if word == "" {
		return ""
	}
	return inflection.Singular(word)
}

// Underscore converts a CamelCased word to lower_snake_case.
// Acronyms are kept together: "HTMLParser" becomes "html_parser".
func Underscore(word string) string {
	runes := []rune(strings.TrimSpace(word))
	var b strings.Builder
	b.Grow(len(runes) + 4)

	for i, r := range runes {
		if r == '-' || r == ' ' {
			b.WriteRune('_')
			continue
		}
		if unicode.IsUpper(r) && i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prev != '_' && prev != '-' && prev != ' ' &&
				(unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower)) {
				b.WriteRune('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// Camelize converts lower_snake_case (or space separated words) to CamelCase.
func Camelize(word string) string {
	parts := strings.FieldsFunc(word, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(titleCaser.String(p))
	}
	return b.String()
}

// Variable converts a word to lowerCamelCase, the form used for entity
// property names ("ContactNote" becomes "contactNote").
func Variable(word string) string {
	camel := Camelize(Underscore(word))
	if camel == "" {
		return ""
	}
	runes := []rune(camel)
	runes[0] = unicode.ToLower(runes[0])
	return string(runes)
}

// Tableize returns the conventional table name for a model alias.
func Tableize(model string) string {
	return Plural(Underscore(model))
}

// Classify returns the conventional model alias for a table name.
func Classify(table string) string {
	return Camelize(Singular(table))
}

// Humanize converts lower_snake_case to space separated title words.
func Humanize(word string) string {
	return titleCaser.String(strings.ReplaceAll(Underscore(word), "_", " "))
}

// Initials returns the lower-cased first letter of every underscore
// separated word ("contact_tasks" becomes "ct").
func Initials(word string) string {
	var b strings.Builder
	for _, part := range strings.Split(Underscore(word), "_") {
		for _, r := range part {
			b.WriteRune(unicode.ToLower(r))
			break
		}
	}
	return b.String()
}
