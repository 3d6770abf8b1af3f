package policy

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/tesseradmin/tessera"
)

type yamlDocument struct {
	Models map[string]*Policy `yaml:"models"`
}

// Load reads a YAML policy document and returns the policy set it
// defines. Malformed policies fail fast with an error matching
// tessera.ErrConfig; per-request evaluation never re-validates.
func Load(r io.Reader) (Set, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, tessera.WrapConfigError(err, "reading policy document")
	}
	return Parse(data)
}

// Parse parses a YAML policy document.
func Parse(data []byte) (Set, error) {
	var doc yamlDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, tessera.WrapConfigError(err, "parsing policy document")
	}
	set := make(Set, len(doc.Models))
	for model, p := range doc.Models {
		if p == nil {
			p = &Policy{}
		}
		if err := validatePolicy(model, p); err != nil {
			return nil, err
		}
		normalizePolicy(p)
		set[model] = p
	}
	return set, nil
}

func validatePolicy(model string, p *Policy) error {
	for role, rc := range p.Roles {
		if rc == nil {
			continue
		}
		for _, a := range rc.CRUD {
			if !a.Valid() {
				return tessera.NewConfigError("model %q, role %q: unknown crud action %q", model, role, a)
			}
		}
		if err := validateScope(model, role, rc.Scope); err != nil {
			return err
		}
	}
	for _, rule := range p.RecordRules {
		for _, a := range rule.Effect.DenyCRUD {
			if !a.Valid() {
				return tessera.NewConfigError("model %q: record rule denies unknown action %q", model, a)
			}
		}
	}
	return nil
}

// validateScope rejects scope specs with a known type but missing
// required keys. Unknown types are left alone; the evaluator treats
// them as identity transforms.
func validateScope(model, role string, s *ScopeSpec) error {
	if s == nil || s.All {
		return nil
	}
	switch s.Type {
	case "field_match":
		if s.Field == "" {
			return tessera.NewConfigError("model %q, role %q: field_match scope missing field", model, role)
		}
	case "association":
		if s.Association == "" {
			return tessera.NewConfigError("model %q, role %q: association scope missing association", model, role)
		}
	case "where":
		if s.Where == nil {
			return tessera.NewConfigError("model %q, role %q: where scope missing condition", model, role)
		}
	case "custom":
		if s.Name == "" {
			return tessera.NewConfigError("model %q, role %q: custom scope missing name", model, role)
		}
	}
	return nil
}

// normalizePolicy canonicalizes action aliases so lookups never see
// "edit" or "new".
func normalizePolicy(p *Policy) {
	for _, rc := range p.Roles {
		if rc == nil {
			continue
		}
		for i, a := range rc.CRUD {
			rc.CRUD[i] = a.Canonical()
		}
	}
	for _, rule := range p.RecordRules {
		for i, a := range rule.Effect.DenyCRUD {
			rule.Effect.DenyCRUD[i] = a.Canonical()
		}
	}
}
