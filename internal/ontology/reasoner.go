package ontology

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/trial-eligibility-engine/internal/domain"
)

// ActiveCNSDisease is the concept emitted by the legacy brain-metastasis
// fallback when only the boolean-shaped field is asserted.
const ActiveCNSDisease = "Active_CNS_disease"

// targetableDrivers is the fixed allow-list of driver concepts with an
// approved targeted therapy.
var targetableDrivers = map[string]struct{}{
	"DRIVER_EGFR_SENSITIZING": {},
	"DRIVER_ALK":              {},
	"DRIVER_KRAS_G12C":        {},
	"DRIVER_MET":              {},
	"DRIVER_HER2_ACTIVATING":  {},
}

// IsTargetableDriver reports whether a concept is on the approved
// targetable-driver allow-list.
func IsTargetableDriver(concept string) bool {
	_, ok := targetableDrivers[concept]
	return ok
}

// Reasoner derives higher-order facts from grounded concepts and raw scalar
// fields. Output is computed fresh per patient and never mutated afterwards.
type Reasoner struct {
	mapping Mapping
	log     *logrus.Logger
}

// NewReasoner creates a reasoner over an immutable ontology mapping.
func NewReasoner(mapping Mapping, logger *logrus.Logger) *Reasoner {
	return &Reasoner{mapping: mapping, log: logger}
}

// Derive computes the scalar is-a abstractions, the targetable-driver set,
// and the CNS abstraction for one patient.
func (r *Reasoner) Derive(patient domain.PatientFacts, grounded *domain.GroundingResult) *domain.DerivedFacts {
	derived := &domain.DerivedFacts{IsA: make(map[string]string)}

	if c, ok := r.bucketConcept("histology", scalarKey(patient["histology"])); ok {
		derived.IsA["histology_is_a"] = c
	}
	if c, ok := r.bucketConcept("current_stage", scalarKey(patient["current_stage"])); ok {
		derived.IsA["stage_is_a"] = c
	}
	// ECOG is coerced to its integer key form; a non-coercible value simply
	// fails the lookup and emits nothing.
	if c, ok := r.bucketConcept("ecog_ps", ecogKey(patient["ecog_ps"])); ok {
		derived.IsA["ecog_is_a"] = c
	}
	// PD-L1 buckets are string-keyed only.
	if s, ok := patient["pd_l1_tps"].(string); ok {
		if c, found := r.bucketConcept("pd_l1_tps", s); found {
			derived.IsA["pd_l1_is_a"] = c
		}
	}

	drivers := make([]string, 0)
	for _, fact := range grounded.Facts {
		if IsTargetableDriver(fact) {
			drivers = append(drivers, fact)
		}
	}
	sort.Strings(drivers)
	if len(drivers) > 0 {
		derived.TargetableDrivers = drivers
	}

	// The biomarker subset of the grounded concepts, kept separately for
	// rule conditions that match canonical concepts instead of raw values.
	seen := make(map[string]struct{})
	biomarkers := make([]string, 0)
	for _, step := range grounded.Trace {
		if step.Field != "biomarkers" {
			continue
		}
		if _, dup := seen[step.Concept]; dup {
			continue
		}
		seen[step.Concept] = struct{}{}
		biomarkers = append(biomarkers, step.Concept)
	}
	sort.Strings(biomarkers)
	derived.GroundedBiomarkers = biomarkers

	r.deriveCNS(patient, derived)

	r.log.WithFields(logrus.Fields{
		"is_a_count":         len(derived.IsA),
		"targetable_drivers": len(derived.TargetableDrivers),
	}).Debug("Derived ontology facts")

	return derived
}

// deriveCNS tolerates two upstream extraction schemas. The preferred path is
// the ontology-mapped brain_metastasis_status field; the legacy boolean-like
// brain_metastasis field is a compatibility shim to be removed once upstream
// stabilizes on one schema.
func (r *Reasoner) deriveCNS(patient domain.PatientFacts, derived *domain.DerivedFacts) {
	if status, ok := patient["brain_metastasis_status"].(string); ok && status != "" && status != domain.NotMentioned {
		if c, found := r.bucketConcept("brain_metastasis_status", status); found {
			derived.IsA["brain_cns_is_a"] = c
		}
		return
	}

	legacy := patient.List("brain_metastasis")
	if len(legacy) == 1 && legacy[0] == "true" {
		derived.IsA["brain_cns_is_a"] = ActiveCNSDisease
	}
}

func (r *Reasoner) bucketConcept(field, key string) (string, bool) {
	if key == "" {
		return "", false
	}
	return r.mapping.Concept(field, key)
}

// scalarKey renders a scalar patient value as a lookup key. Lists and nils
// never match a bucket table.
func scalarKey(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case float64:
		if s == float64(int64(s)) {
			return strconv.FormatInt(int64(s), 10)
		}
		return fmt.Sprintf("%v", s)
	default:
		return ""
	}
}

// ecogKey coerces an ECOG value to its canonical integer key, falling back
// to the raw string form when coercion fails.
func ecogKey(v any) string {
	key := scalarKey(v)
	if key == "" {
		return ""
	}
	return NormalizeValue("ecog_ps", key)
}
