package plan

import (
	"github.com/tesseradmin/tessera"
)

// Context selects which presenter declarations the collector scans.
type Context int

// Presenter contexts.
const (
	Index Context = iota
	Show
	Form
)

// SectionKind classifies a show/form section.
type SectionKind int

// Section kinds.
const (
	// FieldsSection is an ordinary list of field paths.
	FieldsSection SectionKind = iota

	// AssociationListSection renders the records of a named to-many
	// association, labelled by the target model's display template.
	AssociationListSection

	// NestedFieldsSection edits the records of a named association
	// inline in a form.
	NestedFieldsSection
)

// Section is one section of a show or form presenter.
type Section struct {
	Kind        SectionKind
	Fields      []string
	Association string
}

// Declaration is a presenter's declared field surface for one context,
// plus the active sort and search configuration.
type Declaration struct {
	Context      Context
	Columns      []string
	Sections     []Section
	SortField    string
	SearchFields []string
	Overrides    *Overrides
}

// Overrides bypass heuristic dependency inference for cases the
// heuristics cannot express. Includes always contribute display
// dependencies; EagerLoad always contributes query dependencies,
// regardless of cardinality.
type Overrides struct {
	Includes  []*Path
	EagerLoad []*Path
}

// NewOverrides builds overrides from configuration literals. Each
// entry is a string (a leaf association), a mapping of association
// name to nested entries, or a list of either. Any other literal type
// is a configuration error, raised here at build time rather than
// per-request.
func NewOverrides(includes, eagerLoad []any) (*Overrides, error) {
	in, err := parseOverrideList(includes)
	if err != nil {
		return nil, err
	}
	el, err := parseOverrideList(eagerLoad)
	if err != nil {
		return nil, err
	}
	return &Overrides{Includes: in, EagerLoad: el}, nil
}

func parseOverrideList(entries []any) ([]*Path, error) {
	var out []*Path
	for _, entry := range entries {
		paths, err := parseOverrideEntry(entry)
		if err != nil {
			return nil, err
		}
		out = append(out, paths...)
	}
	return out, nil
}

func parseOverrideEntry(entry any) ([]*Path, error) {
	switch v := entry.(type) {
	case string:
		return []*Path{{Name: v}}, nil
	case []any:
		return parseOverrideList(v)
	case map[string]any:
		var out []*Path
		for name, nested := range v {
			children, err := parseOverrideEntry(nested)
			if err != nil {
				return nil, err
			}
			out = append(out, &Path{Name: name, Children: children})
		}
		return out, nil
	default:
		return nil, tessera.NewConfigError("unsupported eager-load override literal %T", entry)
	}
}
