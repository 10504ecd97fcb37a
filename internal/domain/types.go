// Package domain contains the core business entities for clinical trial
// eligibility reasoning: tri-state rule statuses, eligibility verdicts,
// triage buckets, the recursive rule tree, and per-trial result records.
//
// The reasoning core is closed-world and deterministic: for a fixed patient
// fact map, ontology mapping, and set of trial rule documents, repeated
// evaluation yields identical results.
package domain

import "fmt"

// NotMentioned is the upstream extraction sentinel meaning "field not
// asserted". A field holding this value (or an empty/singleton list of it)
// is semantically equal to an absent field.
const NotMentioned = "not mentioned"

// Status is the tri-state outcome of evaluating a single rule node.
type Status string

const (
	StatusMet     Status = "met"
	StatusNotMet  Status = "not_met"
	StatusUnknown Status = "unknown"
)

// Verdict is the overall eligibility decision for one trial.
type Verdict string

const (
	Eligible    Verdict = "eligible"
	NotEligible Verdict = "not_eligible"
	Undecided   Verdict = "unknown"
)

// Triage is the routing bucket assigned to a decision based on its
// computed confidence.
type Triage string

const (
	TriageAuto          Triage = "auto"
	TriageReview        Triage = "review"
	TriageHumanRequired Triage = "human_required"
)

// IsValid reports whether the status is one of the three recognized states.
func (s Status) IsValid() bool {
	switch s {
	case StatusMet, StatusNotMet, StatusUnknown:
		return true
	default:
		return false
	}
}

// String returns the wire representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsValid reports whether the verdict is a recognized eligibility outcome.
func (v Verdict) IsValid() bool {
	switch v {
	case Eligible, NotEligible, Undecided:
		return true
	default:
		return false
	}
}

// String returns the wire representation of the verdict.
func (v Verdict) String() string {
	return string(v)
}

// LogFields returns structured logging fields for audit trails.
func (v Verdict) LogFields() map[string]any {
	return map[string]any{
		"verdict":          string(v),
		"is_valid":         v.IsValid(),
		"requires_review":  v == Undecided,
		"patient_excluded": v == NotEligible,
	}
}

// IsValid reports whether the triage bucket is recognized.
func (t Triage) IsValid() bool {
	switch t {
	case TriageAuto, TriageReview, TriageHumanRequired:
		return true
	default:
		return false
	}
}

// String returns the wire representation of the triage bucket.
func (t Triage) String() string {
	return string(t)
}

// RequiresHuman reports whether a human must confirm the decision before it
// is acted on.
func (t Triage) RequiresHuman() bool {
	return t == TriageReview || t == TriageHumanRequired
}

// PatientFacts is the flat map of structured clinical facts for one patient.
// Values are scalars (string or number) or lists of strings, exactly as
// produced by the upstream extraction layer.
type PatientFacts map[string]any

// Missing reports whether a field is absent or carries only the
// "not mentioned" sentinel.
func (p PatientFacts) Missing(field string) bool {
	v, ok := p[field]
	if !ok || v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == NotMentioned
	}
	if list, ok := asAnyList(v); ok {
		if len(list) == 0 {
			return true
		}
		if len(list) == 1 {
			if s, ok := list[0].(string); ok && s == NotMentioned {
				return true
			}
		}
	}
	return false
}

// List returns the field value coerced to a list of strings. Scalars become
// a singleton list; non-string list elements are dropped.
func (p PatientFacts) List(field string) []string {
	v, ok := p[field]
	if !ok || v == nil {
		return nil
	}
	if s, ok := v.(string); ok {
		return []string{s}
	}
	list, ok := asAnyList(v)
	if !ok {
		return []string{fmt.Sprintf("%v", v)}
	}
	out := make([]string, 0, len(list))
	for _, e := range list {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// asAnyList widens the two list shapes seen from JSON and YAML decoding.
func asAnyList(v any) ([]any, bool) {
	switch list := v.(type) {
	case []any:
		return list, true
	case []string:
		out := make([]any, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}
