package tessera_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tesseradmin/tessera"
)

func TestIsTemplate(t *testing.T) {
	t.Parallel()

	assert.True(t, tessera.IsTemplate("{first_name} {last_name}"))
	assert.True(t, tessera.IsTemplate("{company.name}"))
	assert.False(t, tessera.IsTemplate("first_name"))
	assert.False(t, tessera.IsTemplate("company.name"))
	assert.False(t, tessera.IsTemplate(""))
}

func TestIsDotPath(t *testing.T) {
	t.Parallel()

	assert.True(t, tessera.IsDotPath("company.name"))
	assert.True(t, tessera.IsDotPath("company.country.code"))
	assert.False(t, tessera.IsDotPath("name"))
	assert.False(t, tessera.IsDotPath(""))
}

func TestTemplateRefs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		tmpl string
		want []string
	}{
		{
			name: "TwoFields",
			tmpl: "{first_name} {last_name}",
			want: []string{"first_name", "last_name"},
		},
		{
			name: "DotPathRef",
			tmpl: "{name} ({company.name})",
			want: []string{"name", "company.name"},
		},
		{
			name: "NoRefs",
			tmpl: "plain text",
			want: nil,
		},
		{
			name: "Empty",
			tmpl: "",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tessera.TemplateRefs(tt.tmpl))
		})
	}
}

func TestSplitPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"company", "name"}, tessera.SplitPath("company.name"))
	assert.Equal(t, []string{"a", "b", "c"}, tessera.SplitPath("a.b.c"))
	assert.Equal(t, []string{"name"}, tessera.SplitPath("name"))
}

func TestExpandTemplate(t *testing.T) {
	t.Parallel()

	t.Run("Substitution", func(t *testing.T) {
		got := tessera.ExpandTemplate("{first_name} {last_name}", strings.ToUpper)
		assert.Equal(t, "FIRST_NAME LAST_NAME", got)
	})

	t.Run("EmptySubstitution", func(t *testing.T) {
		got := tessera.ExpandTemplate("{first_name} {last_name}", func(ref string) string {
			if ref == "last_name" {
				return ""
			}
			return "John"
		})
		assert.Equal(t, "John ", got)
	})

	t.Run("LiteralText", func(t *testing.T) {
		got := tessera.ExpandTemplate("Hello, {name}!", func(string) string { return "Ann" })
		assert.Equal(t, "Hello, Ann!", got)
	})
}
