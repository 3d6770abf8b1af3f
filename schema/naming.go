package schema

import (
	"github.com/go-openapi/inflect"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// DeriveForeignKey derives the conventional foreign-key column for an
// association name: singularized, snake-cased, with an "_id" suffix.
// For example, "company" and "companies" both derive "company_id".
func DeriveForeignKey(assoc string) string {
	return inflect.Underscore(inflect.Singularize(assoc)) + "_id"
}

// TableName derives the conventional table name for a model:
// pluralized and snake-cased. For example, "Company" becomes
// "companies".
func TableName(model string) string {
	return inflect.Underscore(inflect.Pluralize(model))
}

// Label humanizes a field or association name for display.
// For example, "first_name" becomes "First Name".
func Label(name string) string {
	return titleCaser.String(inflect.Humanize(name))
}
