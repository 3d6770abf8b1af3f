package tessera

import (
	"regexp"
	"strings"
)

// templateRefRe matches a single {ref} placeholder inside a template.
var templateRefRe = regexp.MustCompile(`\{([^{}]+)\}`)

// IsTemplate reports whether the field path is a text template
// containing one or more {ref} placeholders. Template detection takes
// precedence over dot-path detection.
func IsTemplate(path string) bool {
	return strings.ContainsAny(path, "{}")
}

// IsDotPath reports whether the field path traverses associations.
func IsDotPath(path string) bool {
	return strings.Contains(path, ".")
}

// TemplateRefs returns every {ref} placeholder of a template, in
// order, with the braces stripped. Each ref is itself a simple field
// name or a dot-path.
func TemplateRefs(path string) []string {
	matches := templateRefRe.FindAllStringSubmatch(path, -1)
	if len(matches) == 0 {
		return nil
	}
	refs := make([]string, 0, len(matches))
	for _, m := range matches {
		refs = append(refs, m[1])
	}
	return refs
}

// SplitPath splits a dot-path into its segments.
func SplitPath(path string) []string {
	return strings.Split(path, ".")
}

// ExpandTemplate substitutes every {ref} placeholder of a template
// with the string returned by the resolve function.
func ExpandTemplate(tmpl string, resolve func(ref string) string) string {
	return templateRefRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		return resolve(m[1 : len(m)-1])
	})
}
