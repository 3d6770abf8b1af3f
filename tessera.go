// Package tessera provides the authorization-aware field resolution and
// query-planning core of a metadata-driven admin platform.
//
// The package is split into three cooperating components:
//
//   - policy: resolves a user's roles against a declarative permission
//     policy and answers CRUD, action, field and record-level checks.
//   - resolve: resolves presenter field paths (plain fields, dot-paths
//     across associations, and templates) against a record, consulting a
//     scoped permission evaluator at every association boundary.
//   - plan: collects the associations a presenter's field paths will
//     touch and compiles a conflict-free eager-loading plan that avoids
//     both N+1 queries and row duplication under pagination.
//
// This root package holds the contracts the components share with their
// collaborators: the authenticated User, the Record being resolved, and
// the Query the loading plan and permission scopes are applied to.
package tessera

// Canonical actions. Presenter-level aliases ("edit", "new") are
// normalized before any policy lookup.
const (
	ActionIndex   Action = "index"
	ActionShow    Action = "show"
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDestroy Action = "destroy"
)

// Action is a CRUD action name used in permission policies.
type Action string

// Canonical returns the canonical form of the action, mapping the
// "edit" and "new" aliases to "update" and "create".
func (a Action) Canonical() Action {
	switch a {
	case "edit":
		return ActionUpdate
	case "new":
		return ActionCreate
	default:
		return a
	}
}

// Valid reports whether the action is one of the canonical actions.
func (a Action) Valid() bool {
	switch a.Canonical() {
	case ActionIndex, ActionShow, ActionCreate, ActionUpdate, ActionDestroy:
		return true
	}
	return false
}

// String implements fmt.Stringer.
func (a Action) String() string { return string(a) }

// User represents the authenticated subject a policy is evaluated for.
// It is implemented by application-specific user types.
type User interface {
	// ID returns the user's unique identifier.
	ID() any

	// Roles returns the user's role names, in order.
	Roles() []string

	// Attribute returns a named attribute of the user. It reports
	// false if the attribute does not exist.
	Attribute(name string) (any, bool)

	// Values returns the set of values produced by a named method on
	// the user, used by association-based permission scopes. It
	// reports false if the user does not provide the method.
	Values(name string) ([]any, bool)
}

// SimpleUser is a basic implementation of the User interface.
// Use this for testing or simple use cases.
type SimpleUser struct {
	UserID     any
	UserRoles  []string
	Attributes map[string]any
	ValueSets  map[string][]any
}

// ID returns the user ID.
func (u *SimpleUser) ID() any { return u.UserID }

// Roles returns the user's roles.
func (u *SimpleUser) Roles() []string { return u.UserRoles }

// Attribute returns a named attribute of the user.
func (u *SimpleUser) Attribute(name string) (any, bool) {
	v, ok := u.Attributes[name]
	return v, ok
}

// Values returns a named value set of the user.
func (u *SimpleUser) Values(name string) ([]any, bool) {
	v, ok := u.ValueSets[name]
	return v, ok
}

// Record exposes named-attribute and named-association read access on
// the object being resolved. Association reads for to-many relations
// return an ordered collection.
type Record interface {
	// Get returns the named attribute value. It reports false if the
	// record does not respond to the attribute.
	Get(name string) (any, bool)

	// Related returns the record related through a to-one
	// association, or false if the association is absent or empty.
	Related(name string) (Record, bool)

	// RelatedMany returns the records related through a to-many
	// association, in order. It reports false if the association is
	// absent.
	RelatedMany(name string) ([]Record, bool)
}

// MapRecord is a map-backed implementation of the Record interface.
// Use this for testing or for records materialized from generic rows.
type MapRecord struct {
	Attrs map[string]any
	One   map[string]Record
	Many  map[string][]Record
}

// Get returns the named attribute value.
func (r *MapRecord) Get(name string) (any, bool) {
	v, ok := r.Attrs[name]
	return v, ok
}

// Related returns the to-one related record.
func (r *MapRecord) Related(name string) (Record, bool) {
	v, ok := r.One[name]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// RelatedMany returns the to-many related records.
func (r *MapRecord) RelatedMany(name string) ([]Record, bool) {
	v, ok := r.Many[name]
	return v, ok
}

// Query is the query-object contract consumed by eager-loading plans
// and permission scopes. Every method returns the derived query,
// allowing implementations to be either mutable builders or immutable
// values.
type Query interface {
	// WhereEQ adds an equality filter on a column.
	WhereEQ(field string, value any) Query

	// WhereIn adds an inclusion filter on a column.
	WhereIn(field string, values ...any) Query

	// Where adds a raw condition.
	Where(condition map[string]any) Query

	// OrderBy adds an ordering term.
	OrderBy(field string, desc bool) Query

	// Preload instructs the query to fetch an association chain with
	// separate statements, leaving the primary row set untouched.
	Preload(path ...string) Query

	// Join forces a join on an association for filter and order
	// correctness only. The joined rows are not materialized.
	Join(assoc string) Query

	// JoinPreload forces a join on a to-one association and
	// materializes the joined row. Safe only where the join cannot
	// multiply the primary row set.
	JoinPreload(assoc string) Query
}

// NamedScoper is implemented by queries that expose named custom
// scopes. Permission scopes of type "custom" invoke it, passing the
// current user. It reports false if the scope name is unknown.
type NamedScoper interface {
	Scope(name string, user User) (Query, bool)
}

// FieldChecker answers field-level permission checks. It is the
// contract the field resolver consults at every association boundary;
// policy evaluators implement it.
type FieldChecker interface {
	FieldReadable(field string) bool
	FieldWritable(field string) bool
	FieldMasked(field string) bool
}

// CheckerFactory builds a FieldChecker scoped to a model, allowing
// per-hop permission checks as a resolution walks across associations.
// Implementations should be cheap to call; the resolver memoizes per
// resolution call, not globally.
type CheckerFactory interface {
	CheckerFor(model string) FieldChecker
}

// CheckerFactoryFunc is an adapter which allows the use of ordinary
// functions as checker factories.
type CheckerFactoryFunc func(model string) FieldChecker

// CheckerFor returns f(model).
func (f CheckerFactoryFunc) CheckerFor(model string) FieldChecker { return f(model) }
