package ontology

import (
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/trial-eligibility-engine/internal/domain"
)

// Grounder turns raw patient facts into a deduplicated set of canonical
// concept facts. Unmapped or malformed values are silently excluded:
// grounding never fabricates facts and never fails.
type Grounder struct {
	mapping Mapping
	log     *logrus.Logger
}

// NewGrounder creates a grounder over an immutable ontology mapping.
func NewGrounder(mapping Mapping, logger *logrus.Logger) *Grounder {
	return &Grounder{mapping: mapping, log: logger}
}

// NormalizeValue applies the fixed per-field normalization table used for
// ontology lookups. ECOG values are coerced to their integer key form;
// biomarker tokens are canonicalized to upper-snake.
func NormalizeValue(field, v string) string {
	switch field {
	case "ecog_ps":
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return strconv.Itoa(n)
		}
		return v
	case "biomarkers":
		v = strings.ReplaceAll(v, " ", "_")
		v = strings.ReplaceAll(v, "-", "_")
		return strings.ToUpper(v)
	default:
		return v
	}
}

// Ground maps every mappable (field, value) pair to its canonical concept.
// Facts come back sorted and deduplicated; the trace preserves insertion
// order and keeps duplicates, since it is the audit record. Fields are
// visited in sorted name order, so the trace's audit order is sorted by
// field name rather than by the source document's field order; within a
// field, list elements keep their document order.
func (g *Grounder) Ground(patient domain.PatientFacts) *domain.GroundingResult {
	fields := make([]string, 0, len(patient))
	for field := range patient {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	seen := make(map[string]struct{})
	facts := make([]string, 0)
	trace := make([]domain.GroundingStep, 0)

	for _, field := range fields {
		if patient.Missing(field) {
			continue
		}
		if !g.mapping.HasField(field) {
			continue
		}

		for _, v := range patient.List(field) {
			if v == domain.NotMentioned {
				continue
			}
			key := NormalizeValue(field, v)
			concept, ok := g.mapping.Concept(field, key)
			if !ok {
				continue
			}
			if _, dup := seen[concept]; !dup {
				seen[concept] = struct{}{}
				facts = append(facts, concept)
			}
			trace = append(trace, domain.GroundingStep{
				Field:      field,
				Value:      v,
				Normalized: key,
				Concept:    concept,
			})
		}
	}

	sort.Strings(facts)

	g.log.WithFields(logrus.Fields{
		"fact_count":  len(facts),
		"trace_steps": len(trace),
	}).Debug("Grounded patient facts")

	return &domain.GroundingResult{Facts: facts, Trace: trace}
}
