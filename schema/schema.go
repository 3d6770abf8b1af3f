// Package schema holds the model metadata the resolution and planning
// components operate on: field names, association definitions, default
// display templates, and dynamically-added field sets.
//
// Metadata is treated as immutable for the lifetime of a request. Any
// caching or hot-reload discipline belongs to the registry owner.
package schema

import (
	"github.com/tesseradmin/tessera"
)

// Rel is the cardinality of an association.
type Rel int

// Association cardinalities.
const (
	Unk Rel = iota // Unknown.
	ToOne
	ToMany
)

// String returns the relation name.
func (r Rel) String() string {
	s := "Unknown"
	switch r {
	case ToOne:
		s = "ToOne"
	case ToMany:
		s = "ToMany"
	}
	return s
}

// Association describes a named relation from one model to another.
type Association struct {
	// Name is the association name as referenced by field paths.
	Name string

	// Target is the name of the model the association points to.
	Target string

	// Rel is the association cardinality.
	Rel Rel

	// ForeignKey is the foreign-key column on the owning side of a
	// to-one association. Derived from the association name when
	// empty.
	ForeignKey string
}

// ToOne reports whether the association yields at most one record.
func (a Association) ToOne() bool { return a.Rel == ToOne }

// ToMany reports whether the association yields a collection.
func (a Association) ToMany() bool { return a.Rel == ToMany }

// ForeignKeyColumn returns the foreign-key column of a to-one
// association, deriving it from the association name if the schema did
// not declare one.
func (a Association) ForeignKeyColumn() string {
	if a.ForeignKey != "" {
		return a.ForeignKey
	}
	return DeriveForeignKey(a.Name)
}

// Model is the metadata of a single model.
type Model struct {
	// Name is the model name, unique within a registry.
	Name string

	// Fields are the model's plain attribute names.
	Fields []string

	// Associations are the model's relations to other models.
	Associations []Association

	// DisplayTemplate is the default template used to label records
	// of this model, e.g. "{first_name} {last_name}".
	DisplayTemplate string

	// DynamicFields are the names of fields added at runtime (for
	// example user-defined custom fields). They are grouped under the
	// umbrella field named by DynamicFieldsUmbrella.
	DynamicFields []string

	// DynamicFieldsUmbrella is the field under which dynamic fields
	// are stored. Readability of the umbrella extends to its members
	// when a field is not individually listed.
	DynamicFieldsUmbrella string
}

// Association returns the association with the given name.
func (m *Model) Association(name string) (Association, bool) {
	for _, a := range m.Associations {
		if a.Name == name {
			return a, true
		}
	}
	return Association{}, false
}

// HasField reports whether the model declares the plain field.
func (m *Model) HasField(name string) bool {
	for _, f := range m.Fields {
		if f == name {
			return true
		}
	}
	return false
}

// HasDynamicField reports whether the field belongs to the model's
// dynamically-added field set.
func (m *Model) HasDynamicField(name string) bool {
	for _, f := range m.DynamicFields {
		if f == name {
			return true
		}
	}
	return false
}

// ForeignKeyColumns returns the foreign-key columns of every to-one
// association, in declaration order.
func (m *Model) ForeignKeyColumns() []string {
	var cols []string
	for _, a := range m.Associations {
		if a.ToOne() {
			cols = append(cols, a.ForeignKeyColumn())
		}
	}
	return cols
}

// ForeignKeyOf returns the foreign-key column joining one of the
// model's associations. For a to-one association the column lives on
// this model and derives from the association name; for a to-many
// association it lives on the target and derives from this model's
// name. A declared foreign key always wins.
func (m *Model) ForeignKeyOf(a Association) string {
	if a.ForeignKey != "" {
		return a.ForeignKey
	}
	if a.ToMany() {
		return DeriveForeignKey(m.Name)
	}
	return DeriveForeignKey(a.Name)
}

// AssociationForColumn returns the to-one association whose
// foreign-key column matches the given column name. It is used to map
// raw foreign-key reads to their labelled associated record.
func (m *Model) AssociationForColumn(col string) (Association, bool) {
	for _, a := range m.Associations {
		if a.ToOne() && a.ForeignKeyColumn() == col {
			return a, true
		}
	}
	return Association{}, false
}

// DisplayRefs returns the field paths referenced by the model's
// default display template.
func (m *Model) DisplayRefs() []string {
	if m.DisplayTemplate == "" {
		return nil
	}
	return tessera.TemplateRefs(m.DisplayTemplate)
}

// Registry provides model metadata by name. Lookups for unknown models
// return an error matching tessera.ErrNotFound, which the evaluator
// and planner treat as "deny / no dependency".
type Registry interface {
	Model(name string) (*Model, error)
}

// MapRegistry is a map-backed Registry.
type MapRegistry map[string]*Model

// NewRegistry builds a MapRegistry from the given models.
func NewRegistry(models ...*Model) MapRegistry {
	r := make(MapRegistry, len(models))
	for _, m := range models {
		r[m.Name] = m
	}
	return r
}

// Model returns the model with the given name.
func (r MapRegistry) Model(name string) (*Model, error) {
	m, ok := r[name]
	if !ok {
		return nil, tessera.NewNotFoundError(name)
	}
	return m, nil
}

var _ Registry = (MapRegistry)(nil)
