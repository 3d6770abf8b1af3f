package policy

import (
	"go.uber.org/zap"

	"github.com/tesseradmin/tessera"
	"github.com/tesseradmin/tessera/schema"
)

// FallbackRole is the role the evaluator assumes when no policy is
// declared for the requested model.
const FallbackRole = "admin"

// RoleSource is an external source of role validity. Roles it does not
// know are dropped from the user's role set before policy matching.
type RoleSource interface {
	Known(role string) bool
}

// Evaluator answers permission checks for one (policy, user, model)
// triple. It is immutable after construction and safe to discard after
// the request it was built for.
type Evaluator struct {
	set       Set
	registry  schema.Registry
	user      tessera.User
	modelName string
	model     *schema.Model
	policy    *Policy
	roles     []string
	eff       *effective

	roleSource RoleSource
	log        *zap.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger used for dropped roles and policy
// fallbacks. The default is a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(e *Evaluator) { e.log = log }
}

// WithRoleSource filters the user's roles against an external validity
// source before policy matching.
func WithRoleSource(src RoleSource) Option {
	return func(e *Evaluator) { e.roleSource = src }
}

// New builds an evaluator for the given user and model. A model with
// no declared policy falls back to an all-access policy scoped to the
// conventional admin role; the fallback is logged, never raised.
func New(set Set, registry schema.Registry, user tessera.User, model string, opts ...Option) *Evaluator {
	e := &Evaluator{
		set:       set,
		registry:  registry,
		user:      user,
		modelName: model,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.policy = set[model]
	if e.policy == nil {
		e.log.Warn("no policy declared for model, falling back to all-access",
			zap.String("model", model),
			zap.String("role", FallbackRole))
		e.policy = fallbackPolicy()
	}
	if registry != nil {
		// A metadata miss is not an error here: field-list expansion
		// simply has nothing to expand.
		e.model, _ = registry.Model(model)
	}
	e.roles = e.resolveRoles()
	e.eff = mergeRoles(e.policy, e.roles)
	return e
}

// Roles returns the resolved role set the evaluator operates under.
func (e *Evaluator) Roles() []string { return e.roles }

// ModelName returns the model the evaluator is scoped to.
func (e *Evaluator) ModelName() string { return e.modelName }

// resolveRoles reads the user's roles, drops roles unknown to the
// external source, and intersects the remainder with the policy's
// declared roles. An empty intersection, including the absent-user
// case, falls back to the policy's default role.
func (e *Evaluator) resolveRoles() []string {
	var userRoles []string
	if e.user != nil {
		userRoles = e.user.Roles()
	}
	var matched []string
	for _, r := range userRoles {
		if e.roleSource != nil && !e.roleSource.Known(r) {
			e.log.Warn("dropping unknown role", zap.String("role", r), zap.String("model", e.modelName))
			continue
		}
		if _, ok := e.policy.Roles[r]; ok {
			matched = append(matched, r)
		}
	}
	if len(matched) == 0 {
		return []string{e.policy.DefaultRole}
	}
	return matched
}

// Can reports whether the user may perform the action. Aliases are
// normalized before the lookup; a merged policy with no CRUD entry at
// all denies everything.
func (e *Evaluator) Can(action tessera.Action) bool {
	if !e.eff.hasCRUD {
		return false
	}
	_, ok := e.eff.crud[action.Canonical()]
	return ok
}

// CanForRecord reports whether the user may perform the action on the
// given record. Record rules are evaluated in declaration order; the
// first rule that fires, denies the action, and is not excepted by one
// of the user's roles short-circuits to false.
func (e *Evaluator) CanForRecord(action tessera.Action, rec tessera.Record) bool {
	if !e.Can(action) {
		return false
	}
	a := action.Canonical()
	for _, rule := range e.policy.RecordRules {
		if !rule.Condition.Matches(rec) {
			continue
		}
		if !containsAction(rule.Effect.DenyCRUD, a) {
			continue
		}
		if intersects(e.roles, rule.Effect.ExceptRoles) {
			continue
		}
		return false
	}
	return true
}

// ReadableFields returns the fields the user may read. An "all" grant
// expands to every model field plus belongs-to foreign-key columns
// plus dynamically-added field names; explicit lists are narrowed by
// field overrides whose allow-list excludes all of the user's roles.
func (e *Evaluator) ReadableFields() []string {
	return e.expandFields(e.eff.readable, func(ov *FieldOverride) []string { return ov.ReadableBy })
}

// WritableFields returns the fields the user may write, following the
// same expansion and override rules as ReadableFields.
func (e *Evaluator) WritableFields() []string {
	return e.expandFields(e.eff.writable, func(ov *FieldOverride) []string { return ov.WritableBy })
}

func (e *Evaluator) expandFields(list FieldList, allowedBy func(*FieldOverride) []string) []string {
	var names []string
	if list.All {
		if e.model == nil {
			return nil
		}
		names = append(names, e.model.Fields...)
		names = append(names, e.model.ForeignKeyColumns()...)
		names = append(names, e.model.DynamicFields...)
	} else {
		names = list.Names
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if ov := e.policy.FieldOverrides[n]; ov != nil {
			if roles := allowedBy(ov); roles != nil && !intersects(e.roles, roles) {
				continue
			}
		}
		out = append(out, n)
	}
	return out
}

// FieldReadable reports whether the user may read the field. An
// override with a readable_by list bypasses the list-based check
// entirely; otherwise membership in the readable field set decides,
// with a final fallback granting dynamically-added fields whose
// umbrella field is itself readable.
func (e *Evaluator) FieldReadable(field string) bool {
	return e.fieldAllowed(field, e.eff.readable, func(ov *FieldOverride) []string { return ov.ReadableBy })
}

// FieldWritable reports whether the user may write the field,
// following the same override and fallback rules as FieldReadable.
func (e *Evaluator) FieldWritable(field string) bool {
	return e.fieldAllowed(field, e.eff.writable, func(ov *FieldOverride) []string { return ov.WritableBy })
}

func (e *Evaluator) fieldAllowed(field string, list FieldList, allowedBy func(*FieldOverride) []string) bool {
	if ov := e.policy.FieldOverrides[field]; ov != nil {
		if roles := allowedBy(ov); roles != nil {
			return intersects(e.roles, roles)
		}
	}
	if list.All {
		if e.model == nil {
			return true
		}
		if e.model.HasField(field) || e.model.HasDynamicField(field) {
			return true
		}
		if _, ok := e.model.AssociationForColumn(field); ok {
			return true
		}
		return false
	}
	if list.Contains(field) {
		return true
	}
	// Dynamically-added fields inherit access from their umbrella.
	if e.model != nil && e.model.HasDynamicField(field) {
		return list.Contains(e.model.DynamicFieldsUmbrella)
	}
	return false
}

// FieldMasked reports whether the field is masked for the user. A
// field is masked only when an override's masked_for list covers every
// one of the user's roles.
func (e *Evaluator) FieldMasked(field string) bool {
	ov := e.policy.FieldOverrides[field]
	if ov == nil || ov.MaskedFor == nil || len(e.roles) == 0 {
		return false
	}
	for _, r := range e.roles {
		if !containsString(ov.MaskedFor, r) {
			return false
		}
	}
	return true
}

// CanExecuteAction reports whether the user may execute the named
// custom action. Denied entries take precedence over allowed ones.
func (e *Evaluator) CanExecuteAction(name string) bool {
	if _, denied := e.eff.actionsDenied[name]; denied {
		return false
	}
	if e.eff.actionsAll {
		return true
	}
	return e.eff.actionsAllowed.Contains(name)
}

// CanAccessPresenter reports whether the user may access the named
// presenter.
func (e *Evaluator) CanAccessPresenter(name string) bool {
	return e.eff.presenters.Contains(name)
}

func fallbackPolicy() *Policy {
	return &Policy{
		DefaultRole: FallbackRole,
		Roles: map[string]*RoleConfig{
			FallbackRole: {
				CRUD: []tessera.Action{
					tessera.ActionIndex, tessera.ActionShow, tessera.ActionCreate,
					tessera.ActionUpdate, tessera.ActionDestroy,
				},
				Fields: FieldAccess{
					Readable: FieldList{All: true},
					Writable: FieldList{All: true},
				},
				Actions:    ActionAccess{All: true},
				Presenters: FieldList{All: true},
				Scope:      &ScopeSpec{All: true},
			},
		},
	}
}

func containsAction(list []tessera.Action, a tessera.Action) bool {
	for _, item := range list {
		if item.Canonical() == a {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func intersects(a, b []string) bool {
	for _, x := range a {
		if containsString(b, x) {
			return true
		}
	}
	return false
}
