package policy

import (
	"github.com/tesseradmin/tessera"
)

// effective is the per-user union-merge of every matching role
// configuration. It is computed once per evaluator instantiation and
// never mutated afterwards.
type effective struct {
	// hasCRUD distinguishes "no role declared a CRUD entry" (deny
	// everything) from an empty merged set.
	hasCRUD bool
	crud    map[tessera.Action]struct{}

	readable FieldList
	writable FieldList

	actionsAll     bool
	actionsAllowed FieldList
	actionsDenied  map[string]struct{}

	presenters FieldList

	// unscoped is true if any matching role carries no visibility
	// restriction; the widest grant wins.
	unscoped bool
	scopes   []*ScopeSpec
}

// mergeRoles builds the effective policy for the resolved role set.
// CRUD, field, action, and presenter lists merge by union; a single
// "all" grant widens the merged result to "all".
func mergeRoles(p *Policy, roles []string) *effective {
	eff := &effective{
		crud:          make(map[tessera.Action]struct{}),
		actionsDenied: make(map[string]struct{}),
	}
	for _, name := range roles {
		rc := p.Roles[name]
		if rc == nil {
			continue
		}
		if rc.CRUD != nil {
			eff.hasCRUD = true
			for _, a := range rc.CRUD {
				eff.crud[a.Canonical()] = struct{}{}
			}
		}
		eff.readable = mergeFieldList(eff.readable, rc.Fields.Readable)
		eff.writable = mergeFieldList(eff.writable, rc.Fields.Writable)
		switch {
		case rc.Actions.All:
			eff.actionsAll = true
		default:
			eff.actionsAllowed = mergeFieldList(eff.actionsAllowed, rc.Actions.Allowed)
			for _, d := range rc.Actions.Denied {
				eff.actionsDenied[d] = struct{}{}
			}
		}
		eff.presenters = mergeFieldList(eff.presenters, rc.Presenters)
		switch {
		case rc.Scope == nil || rc.Scope.All:
			eff.unscoped = true
		default:
			eff.scopes = append(eff.scopes, rc.Scope)
		}
	}
	return eff
}

func mergeFieldList(a, b FieldList) FieldList {
	if a.All || b.All {
		return FieldList{All: true}
	}
	merged := FieldList{Names: a.Names}
	for _, n := range b.Names {
		if !merged.Contains(n) {
			merged.Names = append(merged.Names, n)
		}
	}
	return merged
}
