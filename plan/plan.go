package plan

import (
	"github.com/tesseradmin/tessera"
	"github.com/tesseradmin/tessera/schema"
)

// Plan is the compiled loading strategy for one query execution. The
// three lists are disjoint per association name:
//
//   - Preload: fetched with separate statements; the primary row set
//     is untouched.
//   - FilterJoin: joined solely so filters and ordering can reference
//     the association's columns, plus a separate preload for display.
//     A direct join of a to-many association would multiply rows and
//     corrupt pagination counts.
//   - JoinPreload: a single join that also materializes the row; safe
//     only for to-one associations.
type Plan struct {
	Preload     []*Path
	FilterJoin  []*Path
	JoinPreload []*Path
}

// Build collects the declaration's dependencies and resolves them into
// a plan.
func Build(model *schema.Model, registry schema.Registry, decl Declaration) *Plan {
	return Resolve(model, Collect(model, registry, decl))
}

// Resolve classifies the collected dependencies by association
// cardinality and combined reason. Dependencies naming associations
// the model does not declare are skipped.
func Resolve(model *schema.Model, deps []Dep) *Plan {
	p := &Plan{}
	for _, dep := range deps {
		assoc, ok := model.Association(dep.Path.Name)
		if !ok {
			continue
		}
		switch {
		case assoc.ToMany() && dep.Reason == Query:
			p.FilterJoin = append(p.FilterJoin, dep.Path)
		case assoc.ToOne() && dep.Reason == Query:
			p.JoinPreload = append(p.JoinPreload, dep.Path)
		default:
			p.Preload = append(p.Preload, dep.Path)
		}
	}
	return p
}

// Empty reports whether the plan carries no loading instructions.
func (p *Plan) Empty() bool {
	return len(p.Preload) == 0 && len(p.FilterJoin) == 0 && len(p.JoinPreload) == 0
}

// Apply attaches the plan to a query. An empty plan returns the query
// unchanged. FilterJoin entries produce both a join and a preload: the
// join feeds the query's WHERE/ORDER machinery only, and the preload
// populates the in-memory association without duplicating rows
// returned to the caller.
func (p *Plan) Apply(q tessera.Query) tessera.Query {
	for _, path := range p.Preload {
		q = preloadChains(q, path)
	}
	for _, path := range p.FilterJoin {
		q = q.Join(path.Name)
		q = preloadChains(q, path)
	}
	for _, path := range p.JoinPreload {
		q = q.JoinPreload(path.Name)
		// Nested children under a join-preloaded association still
		// load with separate statements.
		for _, chain := range path.Chains() {
			if len(chain) > 1 {
				q = q.Preload(chain...)
			}
		}
	}
	return q
}

func preloadChains(q tessera.Query, path *Path) tessera.Query {
	for _, chain := range path.Chains() {
		q = q.Preload(chain...)
	}
	return q
}
