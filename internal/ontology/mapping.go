// Package ontology grounds raw patient field values into canonical concepts
// and derives higher-order facts from them. The mapping table is loaded once
// per process and is read-only afterwards; it may be shared freely across
// concurrent evaluations.
package ontology

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/trial-eligibility-engine/internal/domain"
)

// Mapping is the static ontology table: field name -> normalized raw value
// -> canonical concept. Scalar bucket sections (current_stage, ecog_ps,
// pd_l1_tps, histology, brain_metastasis_status) share the same shape.
type Mapping map[string]map[string]string

// Concept looks up the canonical concept for a normalized raw value.
func (m Mapping) Concept(field, key string) (string, bool) {
	entries, ok := m[field]
	if !ok {
		return "", false
	}
	concept, ok := entries[key]
	return concept, ok
}

// HasField reports whether the table carries any mappings for a field.
func (m Mapping) HasField(field string) bool {
	_, ok := m[field]
	return ok
}

// conceptEntry matches the document shape `raw_value: {concept: X}`.
type conceptEntry struct {
	Concept string `yaml:"concept"`
}

// LoadMapping reads the ontology mapping document from disk. Map keys are
// canonicalized to strings so that integer-keyed sections (ecog_ps) behave
// identically to string-keyed ones.
func LoadMapping(path string) (Mapping, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading ontology mapping %s: %w", path, err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("parsing ontology mapping %s: %w", path, err)
	}
	if len(root.Content) == 0 {
		return nil, fmt.Errorf("ontology mapping %s: empty document: %w", path, domain.ErrOntologyInvalid)
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("ontology mapping %s: root is not a mapping: %w", path, domain.ErrOntologyInvalid)
	}

	mapping := make(Mapping, len(doc.Content)/2)
	for i := 0; i+1 < len(doc.Content); i += 2 {
		field := doc.Content[i].Value
		section := doc.Content[i+1]
		if section.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("ontology mapping %s: section %q is not a mapping: %w", path, field, domain.ErrOntologyInvalid)
		}

		entries := make(map[string]string, len(section.Content)/2)
		for j := 0; j+1 < len(section.Content); j += 2 {
			key := section.Content[j].Value // scalar keys decode to their string form
			var entry conceptEntry
			if err := section.Content[j+1].Decode(&entry); err != nil {
				return nil, fmt.Errorf("ontology mapping %s: field %q key %q: %w", path, field, key, err)
			}
			if entry.Concept == "" {
				return nil, fmt.Errorf("ontology mapping %s: field %q key %q has no concept: %w", path, field, key, domain.ErrOntologyInvalid)
			}
			entries[key] = entry.Concept
		}
		mapping[field] = entries
	}

	return mapping, nil
}
