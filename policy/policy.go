// Package policy implements the permission evaluator: given a
// declarative permission policy, a user, and a model name, it resolves
// the user's applicable roles, computes an effective merged policy, and
// answers CRUD, action, field, and record-level checks. It also
// transforms queries according to the roles' visibility scopes.
//
// Evaluators are constructed per (policy, user, model) triple and are
// immutable afterwards. They never fail for normal requests: unknown
// models, roles, and fields uniformly degrade to denial. Only malformed
// scope configuration produces an error.
package policy

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/tesseradmin/tessera"
)

// Set maps model names to their permission policies.
type Set map[string]*Policy

// Policy is the declarative permission policy of a single model.
type Policy struct {
	// Roles maps role names to their configurations.
	Roles map[string]*RoleConfig `yaml:"roles"`

	// DefaultRole is used when none of the user's roles appear in the
	// policy, including when the user is absent.
	DefaultRole string `yaml:"default_role"`

	// FieldOverrides override the base readable/writable decision per
	// field name.
	FieldOverrides map[string]*FieldOverride `yaml:"field_overrides"`

	// RecordRules are evaluated in declaration order against a
	// concrete record and may veto actions the role-level policy
	// would otherwise allow.
	RecordRules []*RecordRule `yaml:"record_rules"`
}

// RoleConfig is the configuration of a single role. All lists use
// canonical action names; the "edit" and "new" aliases are normalized
// at load time.
type RoleConfig struct {
	CRUD       []tessera.Action `yaml:"crud"`
	Fields     FieldAccess      `yaml:"fields"`
	Actions    ActionAccess     `yaml:"actions"`
	Presenters FieldList        `yaml:"presenters"`
	Scope      *ScopeSpec       `yaml:"scope"`
}

// FieldAccess holds the readable and writable field lists of a role.
type FieldAccess struct {
	Readable FieldList `yaml:"readable"`
	Writable FieldList `yaml:"writable"`
}

// FieldList is either the wildcard "all" or an explicit name list.
type FieldList struct {
	All   bool
	Names []string
}

// Contains reports whether the list grants the given name.
func (l FieldList) Contains(name string) bool {
	if l.All {
		return true
	}
	for _, n := range l.Names {
		if n == name {
			return true
		}
	}
	return false
}

// UnmarshalYAML decodes either the scalar "all" or a sequence of names.
func (l *FieldList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Value != "all" {
			return fmt.Errorf("policy: expected \"all\" or a list, got %q", value.Value)
		}
		l.All = true
		return nil
	case yaml.SequenceNode:
		return value.Decode(&l.Names)
	default:
		return fmt.Errorf("policy: expected \"all\" or a list")
	}
}

// ActionAccess is either the wildcard "all" or an allow/deny pair for
// custom action names. Denied entries take precedence over allowed.
type ActionAccess struct {
	All     bool
	Allowed FieldList
	Denied  []string
}

// UnmarshalYAML decodes either the scalar "all" or an
// {allowed, denied} mapping.
func (a *ActionAccess) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		if value.Value != "all" {
			return fmt.Errorf("policy: expected \"all\" or a mapping, got %q", value.Value)
		}
		a.All = true
		return nil
	}
	var raw struct {
		Allowed FieldList `yaml:"allowed"`
		Denied  []string  `yaml:"denied"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	a.Allowed = raw.Allowed
	a.Denied = raw.Denied
	return nil
}

// FieldOverride overrides the base field-list decision for one field.
// A nil slice means the override does not constrain that dimension.
type FieldOverride struct {
	// ReadableBy grants read access if any of the user's roles is
	// listed, bypassing the list-based check entirely.
	ReadableBy []string `yaml:"readable_by"`

	// WritableBy grants write access if any of the user's roles is
	// listed, bypassing the list-based check entirely.
	WritableBy []string `yaml:"writable_by"`

	// MaskedFor masks the field only if all of the user's roles are
	// listed.
	MaskedFor []string `yaml:"masked_for"`
}

// RecordRule denies actions on records matching its condition.
type RecordRule struct {
	Condition *Condition `yaml:"condition"`
	Effect    RuleEffect `yaml:"effect"`
}

// RuleEffect is the outcome of a fired record rule.
type RuleEffect struct {
	// DenyCRUD lists the actions the rule denies.
	DenyCRUD []tessera.Action `yaml:"deny_crud"`

	// ExceptRoles exempts users holding any of the listed roles.
	ExceptRoles []string `yaml:"except_roles"`
}

// Condition compares one record attribute against a value. An absent
// condition is trivially true.
type Condition struct {
	Field    string `yaml:"field"`
	Operator string `yaml:"operator"`
	Value    any    `yaml:"value"`
}

// Matches evaluates the condition against a record. Unknown operators
// default to equality.
func (c *Condition) Matches(rec tessera.Record) bool {
	if c == nil {
		return true
	}
	actual, _ := rec.Get(c.Field)
	switch c.Operator {
	case "not_eq", "neq":
		return !equalValues(actual, c.Value)
	case "in":
		return valueIn(actual, c.Value)
	case "not_in":
		return !valueIn(actual, c.Value)
	default: // "eq" and anything unrecognized.
		return equalValues(actual, c.Value)
	}
}

// equalValues compares loosely: direct equality first, then string
// forms, so YAML-decoded scalars match typed record attributes.
func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a == b {
		return true
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func valueIn(actual, list any) bool {
	items, ok := list.([]any)
	if !ok {
		return false
	}
	for _, item := range items {
		if equalValues(actual, item) {
			return true
		}
	}
	return false
}

// ScopeSpec narrows record visibility for a role. It is either the
// wildcard "all" (identity transform) or a typed filter specification.
type ScopeSpec struct {
	// All marks the scope as an identity transform.
	All bool

	// Type selects the transformer: "field_match", "association",
	// "where", or "custom". Unknown types are identity transforms.
	Type string `yaml:"type"`

	// Field is the filtered column for "field_match" and
	// "association" scopes. Defaults to "id" for associations.
	Field string `yaml:"field"`

	// Value is the comparison value for "field_match" scopes. The
	// string forms "current_user.id" and "current_user.<attribute>"
	// are substituted with the corresponding user value.
	Value any `yaml:"value"`

	// Association names the user method providing the inclusion set
	// for "association" scopes.
	Association string `yaml:"association"`

	// Where is the raw condition for "where" scopes.
	Where map[string]any `yaml:"where"`

	// Name is the query scope invoked by "custom" scopes.
	Name string `yaml:"name"`
}

// UnmarshalYAML decodes either the scalar "all" or a scope mapping.
func (s *ScopeSpec) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		if value.Value != "all" {
			return fmt.Errorf("policy: expected \"all\" or a scope mapping, got %q", value.Value)
		}
		s.All = true
		return nil
	}
	var raw struct {
		Type        string         `yaml:"type"`
		Field       string         `yaml:"field"`
		Value       any            `yaml:"value"`
		Association string         `yaml:"association"`
		Where       map[string]any `yaml:"where"`
		Name        string         `yaml:"name"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	s.Type = raw.Type
	s.Field = raw.Field
	s.Value = raw.Value
	s.Association = raw.Association
	s.Where = raw.Where
	s.Name = raw.Name
	return nil
}
