// Package plan implements the eager-load planner: it collects every
// association a presenter's declared field paths will traverse,
// classifies each as needed for display or for querying, and compiles
// a conflict-free loading plan.
//
// The central correctness concern is row duplication: joining a
// to-many association for eager materialization multiplies the rows of
// the primary query and silently corrupts pagination counts. The
// planner therefore keeps joins needed for filter/sort correctness
// separate from the preloads that populate in-memory associations.
//
// The planner is a pure function of the presenter declarations and the
// model metadata; it performs no I/O, never consults permissions, and
// its output is applied exactly once, before records are fetched.
package plan

// Path is a possibly-nested association reference. A Path without
// children is a leaf; children support a single level of "association
// of an association".
type Path struct {
	Name     string
	Children []*Path
}

// NewPath builds a path from a chain of association names.
func NewPath(names ...string) *Path {
	if len(names) == 0 {
		return nil
	}
	p := &Path{Name: names[0]}
	if rest := NewPath(names[1:]...); rest != nil {
		p.Children = []*Path{rest}
	}
	return p
}

// Child returns the child path with the given name.
func (p *Path) Child(name string) (*Path, bool) {
	for _, c := range p.Children {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Merge unions another path's children into p, recursively. Both paths
// must share the same top-level name; merging is how multiple nested
// specifications under one association combine into a single
// dependency.
func (p *Path) Merge(other *Path) {
	if other == nil || other.Name != p.Name {
		return
	}
	for _, oc := range other.Children {
		if pc, ok := p.Child(oc.Name); ok {
			pc.Merge(oc)
			continue
		}
		p.Children = append(p.Children, oc.Clone())
	}
}

// Clone returns a deep copy of the path.
func (p *Path) Clone() *Path {
	if p == nil {
		return nil
	}
	c := &Path{Name: p.Name}
	for _, child := range p.Children {
		c.Children = append(c.Children, child.Clone())
	}
	return c
}

// Chains flattens the path tree into its name chains, one per leaf.
// A leaf path yields a single one-element chain.
func (p *Path) Chains() [][]string {
	if len(p.Children) == 0 {
		return [][]string{{p.Name}}
	}
	var out [][]string
	for _, c := range p.Children {
		for _, chain := range c.Chains() {
			out = append(out, append([]string{p.Name}, chain...))
		}
	}
	return out
}

// Reason classifies why an association must be loaded.
type Reason int

// Dependency reasons. Query dominates: an association needed for both
// display and querying plans as a query dependency.
const (
	Display Reason = iota
	Query
)

// String returns the reason name.
func (r Reason) String() string {
	if r == Query {
		return "query"
	}
	return "display"
}

// Dep is a collected association dependency.
type Dep struct {
	Path   *Path
	Reason Reason
}
