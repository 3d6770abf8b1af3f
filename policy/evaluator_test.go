package policy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tesseradmin/tessera"
	"github.com/tesseradmin/tessera/policy"
	"github.com/tesseradmin/tessera/schema"
)

func testRegistry() schema.Registry {
	return schema.NewRegistry(
		&schema.Model{
			Name:   "Person",
			Fields: []string{"first_name", "last_name", "email", "salary"},
			Associations: []schema.Association{
				{Name: "company", Target: "Company", Rel: schema.ToOne},
				{Name: "tasks", Target: "Task", Rel: schema.ToMany},
			},
			DynamicFields:         []string{"favorite_color"},
			DynamicFieldsUmbrella: "custom_fields",
		},
		&schema.Model{Name: "Company", Fields: []string{"name"}},
		&schema.Model{Name: "Task", Fields: []string{"title"}},
	)
}

func testSet() policy.Set {
	return policy.Set{
		"Person": {
			DefaultRole: "guest",
			Roles: map[string]*policy.RoleConfig{
				"admin": {
					CRUD: []tessera.Action{
						tessera.ActionIndex, tessera.ActionShow, tessera.ActionCreate,
						tessera.ActionUpdate, tessera.ActionDestroy,
					},
					Fields: policy.FieldAccess{
						Readable: policy.FieldList{All: true},
						Writable: policy.FieldList{All: true},
					},
					Actions:    policy.ActionAccess{All: true},
					Presenters: policy.FieldList{All: true},
				},
				"manager": {
					CRUD: []tessera.Action{tessera.ActionIndex, tessera.ActionShow, tessera.ActionUpdate},
					Fields: policy.FieldAccess{
						Readable: policy.FieldList{Names: []string{"first_name", "last_name", "email", "salary"}},
						Writable: policy.FieldList{Names: []string{"first_name", "last_name"}},
					},
					Actions:    policy.ActionAccess{Allowed: policy.FieldList{Names: []string{"export"}}, Denied: []string{"purge"}},
					Presenters: policy.FieldList{Names: []string{"people", "reports"}},
				},
				"viewer": {
					CRUD: []tessera.Action{tessera.ActionIndex, tessera.ActionShow},
					Fields: policy.FieldAccess{
						Readable: policy.FieldList{Names: []string{"first_name", "last_name", "custom_fields"}},
					},
					Presenters: policy.FieldList{Names: []string{"people"}},
				},
				"guest": {},
			},
			FieldOverrides: map[string]*policy.FieldOverride{
				"salary": {
					ReadableBy: []string{"admin", "manager"},
					WritableBy: []string{"admin"},
					MaskedFor:  []string{"manager"},
				},
			},
			RecordRules: []*policy.RecordRule{
				{
					Condition: &policy.Condition{Field: "locked", Value: true},
					Effect: policy.RuleEffect{
						DenyCRUD:    []tessera.Action{tessera.ActionUpdate, tessera.ActionDestroy},
						ExceptRoles: []string{"admin"},
					},
				},
			},
		},
	}
}

func user(roles ...string) tessera.User {
	return &tessera.SimpleUser{UserID: 1, UserRoles: roles}
}

func TestCan(t *testing.T) {
	t.Parallel()

	set, registry := testSet(), testRegistry()

	t.Run("Granted", func(t *testing.T) {
		e := policy.New(set, registry, user("manager"), "Person")
		assert.True(t, e.Can(tessera.ActionIndex))
		assert.True(t, e.Can(tessera.ActionUpdate))
		assert.False(t, e.Can(tessera.ActionCreate))
		assert.False(t, e.Can(tessera.ActionDestroy))
	})

	t.Run("AliasNormalized", func(t *testing.T) {
		e := policy.New(set, registry, user("manager"), "Person")
		assert.True(t, e.Can("edit"))
		assert.False(t, e.Can("new"))
	})

	t.Run("RoleUnion", func(t *testing.T) {
		viewer := policy.New(set, registry, user("viewer"), "Person")
		both := policy.New(set, registry, user("viewer", "manager"), "Person")

		// Adding a role can only widen the grant set.
		for _, a := range []tessera.Action{tessera.ActionIndex, tessera.ActionShow, tessera.ActionUpdate} {
			if viewer.Can(a) {
				assert.True(t, both.Can(a), "action %q", a)
			}
		}
		assert.True(t, both.Can(tessera.ActionUpdate))
	})

	t.Run("NoCRUDDeclared", func(t *testing.T) {
		e := policy.New(set, registry, user("guest"), "Person")
		for _, a := range []tessera.Action{tessera.ActionIndex, tessera.ActionShow, tessera.ActionCreate, tessera.ActionUpdate, tessera.ActionDestroy} {
			assert.False(t, e.Can(a), "action %q", a)
		}
	})

	t.Run("UnknownRolesFallBackToDefault", func(t *testing.T) {
		e := policy.New(set, registry, user("stranger"), "Person")
		assert.Equal(t, []string{"guest"}, e.Roles())
		assert.False(t, e.Can(tessera.ActionIndex))
	})

	t.Run("NilUser", func(t *testing.T) {
		e := policy.New(set, registry, nil, "Person")
		assert.Equal(t, []string{"guest"}, e.Roles())
		assert.False(t, e.Can(tessera.ActionShow))
	})
}

type roleSourceFunc func(string) bool

func (f roleSourceFunc) Known(role string) bool { return f(role) }

func TestRoleSource(t *testing.T) {
	t.Parallel()

	set, registry := testSet(), testRegistry()
	src := roleSourceFunc(func(role string) bool { return role != "manager" })

	e := policy.New(set, registry, user("manager", "viewer"), "Person", policy.WithRoleSource(src))
	assert.Equal(t, []string{"viewer"}, e.Roles())
	assert.False(t, e.Can(tessera.ActionUpdate))
}

func TestFallbackPolicy(t *testing.T) {
	t.Parallel()

	set, registry := testSet(), testRegistry()

	e := policy.New(set, registry, user("admin"), "Task")
	assert.Equal(t, []string{"admin"}, e.Roles())
	assert.True(t, e.Can(tessera.ActionDestroy))
	assert.True(t, e.CanExecuteAction("anything"))
	assert.True(t, e.CanAccessPresenter("anything"))
}

func TestCanForRecord(t *testing.T) {
	t.Parallel()

	set, registry := testSet(), testRegistry()
	locked := &tessera.MapRecord{Attrs: map[string]any{"locked": true}}
	open := &tessera.MapRecord{Attrs: map[string]any{"locked": false}}

	t.Run("RuleDenies", func(t *testing.T) {
		e := policy.New(set, registry, user("manager"), "Person")
		assert.False(t, e.CanForRecord(tessera.ActionUpdate, locked))
		assert.False(t, e.CanForRecord("edit", locked))
		assert.True(t, e.CanForRecord(tessera.ActionShow, locked))
	})

	t.Run("ConditionNotMatched", func(t *testing.T) {
		e := policy.New(set, registry, user("manager"), "Person")
		assert.True(t, e.CanForRecord(tessera.ActionUpdate, open))
	})

	t.Run("ExceptRoles", func(t *testing.T) {
		e := policy.New(set, registry, user("admin"), "Person")
		assert.True(t, e.CanForRecord(tessera.ActionUpdate, locked))
		assert.True(t, e.CanForRecord(tessera.ActionDestroy, locked))
	})

	t.Run("RoleCheckStillApplies", func(t *testing.T) {
		e := policy.New(set, registry, user("viewer"), "Person")
		assert.False(t, e.CanForRecord(tessera.ActionUpdate, open))
	})
}

func TestReadableFields(t *testing.T) {
	t.Parallel()

	set, registry := testSet(), testRegistry()

	t.Run("AllExpands", func(t *testing.T) {
		e := policy.New(set, registry, user("admin"), "Person")
		fields := e.ReadableFields()
		assert.Contains(t, fields, "first_name")
		assert.Contains(t, fields, "salary")
		// Foreign-key columns and dynamic fields expand too.
		assert.Contains(t, fields, "company_id")
		assert.Contains(t, fields, "favorite_color")
	})

	t.Run("ExplicitList", func(t *testing.T) {
		e := policy.New(set, registry, user("manager"), "Person")
		assert.Equal(t, []string{"first_name", "last_name", "email", "salary"}, e.ReadableFields())
		assert.Equal(t, []string{"first_name", "last_name"}, e.WritableFields())
	})

	t.Run("OverrideExcludes", func(t *testing.T) {
		// salary is listed but the writable_by override excludes
		// managers from writing it; readable_by keeps them reading it.
		set := testSet()
		set["Person"].Roles["manager"].Fields.Writable = policy.FieldList{Names: []string{"first_name", "salary"}}
		e := policy.New(set, registry, user("manager"), "Person")
		assert.Equal(t, []string{"first_name"}, e.WritableFields())
		assert.Contains(t, e.ReadableFields(), "salary")
	})

	t.Run("UnionAcrossRoles", func(t *testing.T) {
		e := policy.New(set, registry, user("viewer", "manager"), "Person")
		fields := e.ReadableFields()
		assert.Contains(t, fields, "custom_fields")
		assert.Contains(t, fields, "email")
	})
}

func TestFieldReadable(t *testing.T) {
	t.Parallel()

	set, registry := testSet(), testRegistry()

	t.Run("ListMembership", func(t *testing.T) {
		e := policy.New(set, registry, user("viewer"), "Person")
		assert.True(t, e.FieldReadable("first_name"))
		assert.False(t, e.FieldReadable("email"))
	})

	t.Run("OverrideBypass", func(t *testing.T) {
		// viewer's list does not include salary, but the override's
		// readable_by decides alone once present.
		e := policy.New(set, registry, user("viewer"), "Person")
		assert.False(t, e.FieldReadable("salary"))

		e = policy.New(set, registry, user("manager"), "Person")
		assert.True(t, e.FieldReadable("salary"))
		assert.False(t, e.FieldWritable("salary"))

		e = policy.New(set, registry, user("admin"), "Person")
		assert.True(t, e.FieldWritable("salary"))
	})

	t.Run("AllCheckedAgainstModel", func(t *testing.T) {
		e := policy.New(set, registry, user("admin"), "Person")
		assert.True(t, e.FieldReadable("email"))
		assert.True(t, e.FieldReadable("company_id"))
		assert.False(t, e.FieldReadable("no_such_field"))
	})

	t.Run("WideningRolesNeverRevokes", func(t *testing.T) {
		viewer := policy.New(set, registry, user("viewer"), "Person")
		both := policy.New(set, registry, user("viewer", "manager"), "Person")
		for _, f := range []string{"first_name", "last_name", "email", "salary", "custom_fields", "favorite_color"} {
			if viewer.FieldReadable(f) {
				assert.True(t, both.FieldReadable(f), "field %q", f)
			}
		}
	})

	t.Run("DynamicUmbrellaFallback", func(t *testing.T) {
		// favorite_color is not listed, but the umbrella custom_fields
		// is readable for viewers.
		e := policy.New(set, registry, user("viewer"), "Person")
		assert.True(t, e.FieldReadable("favorite_color"))
		assert.False(t, e.FieldWritable("favorite_color"))
	})
}

func TestFieldMasked(t *testing.T) {
	t.Parallel()

	set, registry := testSet(), testRegistry()

	t.Run("MaskedRole", func(t *testing.T) {
		e := policy.New(set, registry, user("manager"), "Person")
		assert.True(t, e.FieldMasked("salary"))
	})

	t.Run("UnmaskedRole", func(t *testing.T) {
		e := policy.New(set, registry, user("admin"), "Person")
		assert.False(t, e.FieldMasked("salary"))
	})

	t.Run("AnyUnmaskedRoleWins", func(t *testing.T) {
		e := policy.New(set, registry, user("manager", "admin"), "Person")
		assert.False(t, e.FieldMasked("salary"))
	})

	t.Run("NoOverride", func(t *testing.T) {
		e := policy.New(set, registry, user("manager"), "Person")
		assert.False(t, e.FieldMasked("email"))
	})
}

func TestCanExecuteAction(t *testing.T) {
	t.Parallel()

	set, registry := testSet(), testRegistry()

	t.Run("AllowedList", func(t *testing.T) {
		e := policy.New(set, registry, user("manager"), "Person")
		assert.True(t, e.CanExecuteAction("export"))
		assert.False(t, e.CanExecuteAction("import"))
	})

	t.Run("DeniedPrecedence", func(t *testing.T) {
		// A denied entry beats another role's "all" grant.
		e := policy.New(set, registry, user("manager", "admin"), "Person")
		assert.True(t, e.CanExecuteAction("import"))
		assert.False(t, e.CanExecuteAction("purge"))
	})
}

func TestCanAccessPresenter(t *testing.T) {
	t.Parallel()

	set, registry := testSet(), testRegistry()

	e := policy.New(set, registry, user("viewer"), "Person")
	assert.True(t, e.CanAccessPresenter("people"))
	assert.False(t, e.CanAccessPresenter("reports"))

	e = policy.New(set, registry, user("viewer", "manager"), "Person")
	assert.True(t, e.CanAccessPresenter("reports"))
}

func TestCondition(t *testing.T) {
	t.Parallel()

	rec := &tessera.MapRecord{Attrs: map[string]any{"status": "archived", "count": 3}}

	tests := []struct {
		name string
		cond *policy.Condition
		want bool
	}{
		{"NilCondition", nil, true},
		{"EqDefault", &policy.Condition{Field: "status", Value: "archived"}, true},
		{"EqMiss", &policy.Condition{Field: "status", Value: "active"}, false},
		{"EqLooseNumeric", &policy.Condition{Field: "count", Operator: "eq", Value: "3"}, true},
		{"NotEq", &policy.Condition{Field: "status", Operator: "not_eq", Value: "active"}, true},
		{"Neq", &policy.Condition{Field: "status", Operator: "neq", Value: "archived"}, false},
		{"In", &policy.Condition{Field: "status", Operator: "in", Value: []any{"active", "archived"}}, true},
		{"InMiss", &policy.Condition{Field: "status", Operator: "in", Value: []any{"active"}}, false},
		{"NotIn", &policy.Condition{Field: "status", Operator: "not_in", Value: []any{"active"}}, true},
		{"MissingField", &policy.Condition{Field: "ghost", Value: "x"}, false},
		{"UnknownOperatorDefaultsToEq", &policy.Condition{Field: "status", Operator: "matches", Value: "archived"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cond.Matches(rec))
		})
	}
}

func TestEvaluatorIdentity(t *testing.T) {
	t.Parallel()

	e := policy.New(testSet(), testRegistry(), user("manager"), "Person")
	require.NotNil(t, e)
	assert.Equal(t, "Person", e.ModelName())
	assert.Equal(t, []string{"manager"}, e.Roles())
}
