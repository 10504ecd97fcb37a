// Package service implements the deterministic eligibility reasoning
// pipeline: rule evaluation, verdict decision, uncertainty scoring, and the
// per-patient orchestrator that ties them together.
package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/trial-eligibility-engine/internal/domain"
)

// driverConceptPrefix marks rule targets that name canonical driver
// concepts; such targets match against derived biomarker concepts instead
// of raw patient values.
const driverConceptPrefix = "DRIVER_"

// MissingPolicy controls how a leaf rule treats a missing patient value.
type MissingPolicy int

const (
	// OpenWorld: a missing value means the rule cannot be decided.
	OpenWorld MissingPolicy = iota
	// ClosedWorldNotMet: absence of a recorded value is definitive negative
	// evidence, so the rule is not met.
	ClosedWorldNotMet
)

// DefaultMissingPolicies returns the closed-world field table. By clinical
// convention, absence of a recorded therapy or comorbidity is treated as
// proof of absence for these two fields only.
func DefaultMissingPolicies() map[string]MissingPolicy {
	return map[string]MissingPolicy{
		"prior_systemic_therapies": ClosedWorldNotMet,
		"comorbidities":            ClosedWorldNotMet,
	}
}

// DefaultDerivedKeys returns the static field -> derived-key table used by
// ontology_is_a lookups. Fields not listed fall back to "<field>_is_a".
func DefaultDerivedKeys() map[string]string {
	return map[string]string{
		"current_stage":           "stage_is_a",
		"histology":               "histology_is_a",
		"ecog_ps":                 "ecog_is_a",
		"pd_l1_tps":               "pd_l1_is_a",
		"brain_metastasis_status": "brain_cns_is_a",
		"brain_metastasis":        "brain_cns_is_a",
	}
}

// RuleEvaluator evaluates one rule tree against a patient's facts and
// derived facts, returning a tri-state status. It never returns an error:
// malformed rules and type mismatches degrade to unknown.
type RuleEvaluator struct {
	missingPolicies map[string]MissingPolicy
	derivedKeys     map[string]string
	log             *logrus.Logger
}

// NewRuleEvaluator creates an evaluator with the injected closed-world
// policy and derived-key tables.
func NewRuleEvaluator(missing map[string]MissingPolicy, derivedKeys map[string]string, logger *logrus.Logger) *RuleEvaluator {
	if missing == nil {
		missing = DefaultMissingPolicies()
	}
	if derivedKeys == nil {
		derivedKeys = DefaultDerivedKeys()
	}
	return &RuleEvaluator{missingPolicies: missing, derivedKeys: derivedKeys, log: logger}
}

// Evaluate resolves one rule node recursively. Composite nodes combine
// child statuses with three-valued logic; arbitrary nesting depth is
// supported.
func (e *RuleEvaluator) Evaluate(rule *domain.Rule, patient domain.PatientFacts, derived *domain.DerivedFacts) domain.Status {
	switch rule.Kind() {
	case domain.KindAll:
		return e.evaluateAll(rule.All, patient, derived)
	case domain.KindAny:
		return e.evaluateAny(rule.Any, patient, derived)
	case domain.KindLeaf:
		return e.evaluateLeaf(rule, patient, derived)
	default:
		// Rule documents are externally authored; a malformed node must
		// never crash patient evaluation.
		return domain.StatusUnknown
	}
}

// EvaluateTopLevel evaluates one top-level rule and packages the immutable
// result record, including the raw patient value for the audit trace.
func (e *RuleEvaluator) EvaluateTopLevel(rule *domain.Rule, patient domain.PatientFacts, derived *domain.DerivedFacts) domain.RuleResult {
	status := e.Evaluate(rule, patient, derived)
	result := domain.RuleResult{
		ID:        rule.ID,
		Field:     rule.Field,
		Condition: rule.Condition,
		Value:     rule.Value,
		Status:    status,
		Text:      rule.Text,
	}
	if rule.Field != "" {
		result.PatientValue = patient[rule.Field]
	}
	return result
}

func (e *RuleEvaluator) evaluateAll(children []domain.Rule, patient domain.PatientFacts, derived *domain.DerivedFacts) domain.Status {
	sawUnknown := false
	for i := range children {
		switch e.Evaluate(&children[i], patient, derived) {
		case domain.StatusNotMet:
			return domain.StatusNotMet
		case domain.StatusUnknown:
			sawUnknown = true
		}
	}
	if sawUnknown {
		return domain.StatusUnknown
	}
	return domain.StatusMet
}

func (e *RuleEvaluator) evaluateAny(children []domain.Rule, patient domain.PatientFacts, derived *domain.DerivedFacts) domain.Status {
	sawUnknown := false
	for i := range children {
		switch e.Evaluate(&children[i], patient, derived) {
		case domain.StatusMet:
			return domain.StatusMet
		case domain.StatusUnknown:
			sawUnknown = true
		}
	}
	if sawUnknown {
		return domain.StatusUnknown
	}
	return domain.StatusNotMet
}

func (e *RuleEvaluator) evaluateLeaf(rule *domain.Rule, patient domain.PatientFacts, derived *domain.DerivedFacts) domain.Status {
	if patient.Missing(rule.Field) {
		if e.missingPolicies[rule.Field] == ClosedWorldNotMet {
			return domain.StatusNotMet
		}
		return domain.StatusUnknown
	}

	patientValue := patient[rule.Field]

	switch rule.Condition {
	case domain.CondGTE:
		return compareNumeric(patientValue, rule.Value, func(a, b float64) bool { return a >= b })
	case domain.CondLTE:
		return compareNumeric(patientValue, rule.Value, func(a, b float64) bool { return a <= b })
	case domain.CondEquals:
		return boolStatus(looseEqual(patientValue, rule.Value))
	case domain.CondNotEquals:
		return boolStatus(!looseEqual(patientValue, rule.Value))
	case domain.CondContains:
		return e.evalContains(rule, patient, derived)
	case domain.CondContainsAny:
		return e.evalContainsAny(rule, patient, derived)
	case domain.CondContainsOtherThan:
		return e.evalContainsOtherThan(rule, patient, derived)
	case domain.CondOntologyIsA:
		return e.evalOntologyIsA(rule, derived)
	default:
		return domain.StatusUnknown
	}
}

func (e *RuleEvaluator) evalContains(rule *domain.Rule, patient domain.PatientFacts, derived *domain.DerivedFacts) domain.Status {
	target := stringify(rule.Value)

	// Driver-concept targets on the biomarkers field are matched against
	// the grounded canonical concepts, not the raw extraction tokens.
	if rule.Field == "biomarkers" && strings.HasPrefix(target, driverConceptPrefix) {
		return boolStatus(containsString(derived.GroundedBiomarkers, target))
	}
	return boolStatus(containsString(patient.List(rule.Field), target))
}

func (e *RuleEvaluator) evalContainsAny(rule *domain.Rule, patient domain.PatientFacts, derived *domain.DerivedFacts) domain.Status {
	targets := stringifyList(rule.Value)

	if rule.Field == "biomarkers" && anyHasPrefix(targets, driverConceptPrefix) {
		for _, t := range targets {
			if containsString(derived.GroundedBiomarkers, t) {
				return domain.StatusMet
			}
		}
		return domain.StatusNotMet
	}

	values := patient.List(rule.Field)
	for _, t := range targets {
		if containsString(values, t) {
			return domain.StatusMet
		}
	}
	return domain.StatusNotMet
}

func (e *RuleEvaluator) evalContainsOtherThan(rule *domain.Rule, patient domain.PatientFacts, derived *domain.DerivedFacts) domain.Status {
	target := stringify(rule.Value)

	values := patient.List(rule.Field)
	if rule.Field == "biomarkers" {
		values = derived.TargetableDrivers
	}

	for _, v := range values {
		if v != domain.NotMentioned && v != target {
			return domain.StatusMet
		}
	}
	return domain.StatusNotMet
}

func (e *RuleEvaluator) evalOntologyIsA(rule *domain.Rule, derived *domain.DerivedFacts) domain.Status {
	key, ok := e.derivedKeys[rule.Field]
	if !ok {
		key = rule.Field + "_is_a"
	}

	val, ok := derived.IsA[key]
	if !ok {
		return domain.StatusUnknown
	}
	return boolStatus(val == stringify(rule.Value))
}

func boolStatus(ok bool) domain.Status {
	if ok {
		return domain.StatusMet
	}
	return domain.StatusNotMet
}

// compareNumeric coerces both sides to float64; a non-numeric value on
// either side makes the comparison undecidable.
func compareNumeric(patientValue, target any, cmp func(a, b float64) bool) domain.Status {
	a, okA := toFloat(patientValue)
	b, okB := toFloat(target)
	if !okA || !okB {
		return domain.StatusUnknown
	}
	return boolStatus(cmp(a, b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// looseEqual compares scalars across the numeric representations JSON and
// YAML decoding produce (1 vs 1.0); strings compare as strings and never
// equal a number.
func looseEqual(a, b any) bool {
	fa, okA := numericValue(a)
	fb, okB := numericValue(b)
	if okA && okB {
		return fa == fb
	}
	if okA != okB {
		return false
	}
	return stringify(a) == stringify(b)
}

func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func stringifyList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, e := range list {
			out = append(out, stringify(e))
		}
		return out
	case nil:
		return nil
	default:
		return []string{stringify(v)}
	}
}

func containsString(list []string, target string) bool {
	for _, v := range list {
		if v == target {
			return true
		}
	}
	return false
}

func anyHasPrefix(list []string, prefix string) bool {
	for _, v := range list {
		if strings.HasPrefix(v, prefix) {
			return true
		}
	}
	return false
}
