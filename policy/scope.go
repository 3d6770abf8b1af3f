package policy

import (
	"strings"

	"github.com/tesseradmin/tessera"
)

// currentUserPrefix marks scope values substituted from the current
// user, e.g. "current_user.id" or "current_user.company_id".
const currentUserPrefix = "current_user"

// ApplyScope narrows the query to the records the user's roles make
// visible. If any matching role is unscoped the query is returned
// unchanged; otherwise the scopes of the matching roles are applied in
// role-resolution order. Unknown scope types are identity transforms;
// a scope the evaluator cannot interpret returns an error matching
// tessera.ErrConfig.
func (e *Evaluator) ApplyScope(q tessera.Query) (tessera.Query, error) {
	if e.eff.unscoped {
		return q, nil
	}
	var err error
	for _, spec := range e.eff.scopes {
		q, err = e.applyOne(q, spec)
		if err != nil {
			return nil, err
		}
	}
	return q, nil
}

func (e *Evaluator) applyOne(q tessera.Query, spec *ScopeSpec) (tessera.Query, error) {
	switch spec.Type {
	case "field_match":
		if spec.Field == "" {
			return nil, tessera.NewConfigError("field_match scope for model %q: missing field", e.modelName)
		}
		return q.WhereEQ(spec.Field, e.scopeValue(spec.Value)), nil
	case "association":
		if spec.Association == "" {
			return nil, tessera.NewConfigError("association scope for model %q: missing association", e.modelName)
		}
		field := spec.Field
		if field == "" {
			field = "id"
		}
		var values []any
		if e.user != nil {
			var ok bool
			values, ok = e.user.Values(spec.Association)
			if !ok {
				return nil, tessera.NewConfigError("association scope for model %q: user does not provide %q", e.modelName, spec.Association)
			}
		}
		return q.WhereIn(field, values...), nil
	case "where":
		if spec.Where == nil {
			return nil, tessera.NewConfigError("where scope for model %q: missing condition", e.modelName)
		}
		return q.Where(spec.Where), nil
	case "custom":
		if spec.Name == "" {
			return nil, tessera.NewConfigError("custom scope for model %q: missing name", e.modelName)
		}
		ns, ok := q.(tessera.NamedScoper)
		if !ok {
			return nil, tessera.NewConfigError("custom scope %q for model %q: query does not support named scopes", spec.Name, e.modelName)
		}
		scoped, ok := ns.Scope(spec.Name, e.user)
		if !ok {
			return nil, tessera.NewConfigError("custom scope %q for model %q: unknown scope", spec.Name, e.modelName)
		}
		return scoped, nil
	default:
		return q, nil
	}
}

// scopeValue substitutes "current_user" references with the user's id
// or named attribute; any other value passes through as a literal.
func (e *Evaluator) scopeValue(v any) any {
	s, ok := v.(string)
	if !ok || !strings.HasPrefix(s, currentUserPrefix) {
		return v
	}
	if e.user == nil {
		return nil
	}
	switch {
	case s == currentUserPrefix, s == currentUserPrefix+".id":
		return e.user.ID()
	case strings.HasPrefix(s, currentUserPrefix+"."):
		attr, _ := e.user.Attribute(strings.TrimPrefix(s, currentUserPrefix+"."))
		return attr
	default:
		return v
	}
}
