package plan

import (
	"github.com/tesseradmin/tessera"
	"github.com/tesseradmin/tessera/schema"
)

// Collect scans the declaration and returns the merged association
// dependencies, in first-reference order. Paths referencing
// associations the model does not declare contribute no dependency;
// the collector never fails.
func Collect(model *schema.Model, registry schema.Registry, decl Declaration) []Dep {
	c := &collector{model: model, registry: registry, deps: make(map[string]*Dep)}
	switch decl.Context {
	case Index:
		for _, col := range decl.Columns {
			c.addFieldPath(col, Display)
		}
	case Show:
		for _, s := range decl.Sections {
			switch s.Kind {
			case AssociationListSection:
				c.addAssociationList(s.Association)
			case NestedFieldsSection:
				c.addAssociation(s.Association, Display)
			default:
				for _, f := range s.Fields {
					c.addFieldPath(f, Display)
				}
			}
		}
	case Form:
		for _, s := range decl.Sections {
			if s.Kind == NestedFieldsSection {
				c.addAssociation(s.Association, Display)
			}
		}
	}
	if tessera.IsDotPath(decl.SortField) {
		c.addAssociation(tessera.SplitPath(decl.SortField)[0], Query)
	}
	for _, f := range decl.SearchFields {
		if tessera.IsDotPath(f) {
			c.addAssociation(tessera.SplitPath(f)[0], Query)
		}
	}
	if decl.Overrides != nil {
		for _, p := range decl.Overrides.Includes {
			c.add(p.Clone(), Display)
		}
		for _, p := range decl.Overrides.EagerLoad {
			c.add(p.Clone(), Query)
		}
	}
	out := make([]Dep, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, *c.deps[name])
	}
	return out
}

type collector struct {
	model    *schema.Model
	registry schema.Registry
	deps     map[string]*Dep
	order    []string
}

// addFieldPath infers the dependency of one declared field path:
// templates contribute one dependency per reference, dot-paths depend
// on the association chain they traverse, and plain fields mapped to a
// foreign key depend on that association.
func (c *collector) addFieldPath(path string, reason Reason) {
	switch {
	case tessera.IsTemplate(path):
		for _, ref := range tessera.TemplateRefs(path) {
			c.addFieldPath(ref, reason)
		}
	case tessera.IsDotPath(path):
		c.addDotPath(path, reason)
	default:
		if assoc, ok := c.model.AssociationForColumn(path); ok {
			c.add(&Path{Name: assoc.Name}, reason)
		}
	}
}

// addDotPath depends on the leading association of a dot-path and, for
// one further level, on a nested association of its target. The
// terminal field itself is not a dependency.
func (c *collector) addDotPath(path string, reason Reason) {
	segs := tessera.SplitPath(path)
	assoc, ok := c.model.Association(segs[0])
	if !ok {
		return
	}
	p := &Path{Name: assoc.Name}
	if len(segs) > 2 {
		if target, err := c.registry.Model(assoc.Target); err == nil {
			if nested, ok := target.Association(segs[1]); ok {
				p.Children = []*Path{{Name: nested.Name}}
			}
		}
	}
	c.add(p, reason)
}

// addAssociationList depends on a named association and inspects the
// target model's display template for its own dot-path references,
// adding them as nested dependencies.
func (c *collector) addAssociationList(name string) {
	assoc, ok := c.model.Association(name)
	if !ok {
		return
	}
	p := &Path{Name: assoc.Name}
	if target, err := c.registry.Model(assoc.Target); err == nil {
		for _, ref := range target.DisplayRefs() {
			if !tessera.IsDotPath(ref) {
				continue
			}
			if nested, ok := target.Association(tessera.SplitPath(ref)[0]); ok {
				p.Merge(&Path{Name: p.Name, Children: []*Path{{Name: nested.Name}}})
			}
		}
	}
	c.add(p, Display)
}

func (c *collector) addAssociation(name string, reason Reason) {
	if _, ok := c.model.Association(name); !ok {
		return
	}
	c.add(&Path{Name: name}, reason)
}

// add merges the dependency into the collection: nested children union
// under the same top-level association, and query dominates display as
// the combined reason.
func (c *collector) add(p *Path, reason Reason) {
	if existing, ok := c.deps[p.Name]; ok {
		existing.Path.Merge(p)
		if reason == Query {
			existing.Reason = Query
		}
		return
	}
	c.deps[p.Name] = &Dep{Path: p, Reason: reason}
	c.order = append(c.order, p.Name)
}
