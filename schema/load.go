package schema

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/tesseradmin/tessera"
)

type yamlDocument struct {
	Models []yamlModel `yaml:"models"`
}

type yamlModel struct {
	Name                  string            `yaml:"name"`
	Fields                []string          `yaml:"fields"`
	Associations          []yamlAssociation `yaml:"associations"`
	DisplayTemplate       string            `yaml:"display_template"`
	DynamicFields         []string          `yaml:"dynamic_fields"`
	DynamicFieldsUmbrella string            `yaml:"dynamic_fields_umbrella"`
}

type yamlAssociation struct {
	Name       string `yaml:"name"`
	Target     string `yaml:"target"`
	Rel        string `yaml:"rel"`
	ForeignKey string `yaml:"foreign_key"`
}

// Load reads a YAML metadata document and returns the registry it
// defines. Malformed metadata fails fast with an error matching
// tessera.ErrConfig; nothing is validated again at resolution time.
func Load(r io.Reader) (MapRegistry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("schema: reading metadata: %w", err)
	}
	return Parse(data)
}

// Parse parses a YAML metadata document.
func Parse(data []byte) (MapRegistry, error) {
	var doc yamlDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, tessera.WrapConfigError(err, "parsing model metadata")
	}
	registry := make(MapRegistry, len(doc.Models))
	for _, ym := range doc.Models {
		if ym.Name == "" {
			return nil, tessera.NewConfigError("model with empty name")
		}
		if _, ok := registry[ym.Name]; ok {
			return nil, tessera.NewConfigError("duplicate model %q", ym.Name)
		}
		m := &Model{
			Name:                  ym.Name,
			Fields:                ym.Fields,
			DisplayTemplate:       ym.DisplayTemplate,
			DynamicFields:         ym.DynamicFields,
			DynamicFieldsUmbrella: ym.DynamicFieldsUmbrella,
		}
		seen := make(map[string]struct{}, len(ym.Associations))
		for _, ya := range ym.Associations {
			if ya.Name == "" {
				return nil, tessera.NewConfigError("model %q: association with empty name", ym.Name)
			}
			if _, ok := seen[ya.Name]; ok {
				return nil, tessera.NewConfigError("model %q: duplicate association %q", ym.Name, ya.Name)
			}
			seen[ya.Name] = struct{}{}
			rel, err := parseRel(ya.Rel)
			if err != nil {
				return nil, tessera.NewConfigError("model %q, association %q: %v", ym.Name, ya.Name, err)
			}
			m.Associations = append(m.Associations, Association{
				Name:       ya.Name,
				Target:     ya.Target,
				Rel:        rel,
				ForeignKey: ya.ForeignKey,
			})
		}
		registry[ym.Name] = m
	}
	// Association targets must reference models defined in the same
	// document.
	for _, m := range registry {
		for _, a := range m.Associations {
			if a.Target == "" {
				return nil, tessera.NewConfigError("model %q, association %q: missing target", m.Name, a.Name)
			}
			if _, ok := registry[a.Target]; !ok {
				return nil, tessera.NewConfigError("model %q, association %q: unknown target %q", m.Name, a.Name, a.Target)
			}
		}
	}
	return registry, nil
}

func parseRel(s string) (Rel, error) {
	switch s {
	case "to_one", "belongs_to", "has_one":
		return ToOne, nil
	case "to_many", "has_many":
		return ToMany, nil
	default:
		return Unk, fmt.Errorf("unknown relation %q", s)
	}
}
