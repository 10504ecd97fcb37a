package domain

import "time"

// GroundingStep records one applied (field, value) -> concept mapping.
// Steps are kept in insertion order: the sequence is the audit record of
// how each canonical fact entered the evaluation.
type GroundingStep struct {
	Field      string `json:"field"`
	Value      string `json:"value"`
	Normalized string `json:"normalized"`
	Concept    string `json:"concept"`
}

// GroundingResult is the outcome of grounding one patient's raw facts.
// Facts are sorted and deduplicated; ordering there carries no meaning.
type GroundingResult struct {
	Facts []string        `json:"facts"`
	Trace []GroundingStep `json:"grounding_trace"`
}

// DerivedFacts holds higher-order facts computed once per patient from the
// grounded concepts and raw scalar fields. Never mutated after creation.
type DerivedFacts struct {
	// IsA maps derived-fact keys (stage_is_a, ecog_is_a, ...) to concepts.
	IsA map[string]string `json:"is_a"`
	// TargetableDrivers is the sorted intersection of grounded facts with
	// the approved targetable-driver allow-list.
	TargetableDrivers []string `json:"targetable_drivers,omitempty"`
	// GroundedBiomarkers retains every grounded biomarker concept for rule
	// conditions that match against canonical concepts rather than raw values.
	GroundedBiomarkers []string `json:"grounded_biomarkers,omitempty"`
}

// RuleResult is the immutable record of evaluating one top-level rule.
type RuleResult struct {
	ID           string    `json:"id"`
	Field        string    `json:"field"`
	Condition    Condition `json:"condition"`
	Value        any       `json:"value"`
	Status       Status    `json:"status"`
	PatientValue any       `json:"patient_value"`
	Text         string    `json:"text"`
}

// TrialTrace is the replayable audit record for one trial evaluation.
type TrialTrace struct {
	RunID     string       `json:"run_id"`
	TrialID   string       `json:"trial_id"`
	Overall   Verdict      `json:"overall"`
	Inclusion []RuleResult `json:"inclusion"`
	Exclusion []RuleResult `json:"exclusion"`
	CreatedAt time.Time    `json:"created_at"`
}

// UncertaintyComponents breaks the uncertainty score into its inputs.
type UncertaintyComponents struct {
	UnknownInclusion int `json:"unknown_inclusion"`
	UnknownExclusion int `json:"unknown_exclusion"`
	HardFails        int `json:"hard_fails"`
	Support          int `json:"support"`
	Conflict         int `json:"conflict"`
}

// Uncertainty is the deterministic confidence assessment for one verdict.
type Uncertainty struct {
	UncertaintyScore int                   `json:"uncertainty_score"`
	Confidence       float64               `json:"confidence"`
	Triage           Triage                `json:"triage"`
	Components       UncertaintyComponents `json:"components"`
}

// TrialResult is the per-trial output record of the reasoning core.
type TrialResult struct {
	TrialID     string       `json:"trial_id"`
	Title       string       `json:"title"`
	Overall     Verdict      `json:"overall"`
	Uncertainty *Uncertainty `json:"uncertainty,omitempty"`
	Trace       *TrialTrace  `json:"trace,omitempty"`
	// Error carries a documented degradation marker such as
	// "trial_rules_empty"; it never aborts the evaluation run.
	Error string `json:"error,omitempty"`
}

// StageTiming summarizes elapsed time for one pipeline stage.
type StageTiming struct {
	TotalMs float64 `json:"total_ms"`
	Count   int     `json:"count"`
	MeanMs  float64 `json:"mean_ms"`
}

// EvaluationReport is the full output for one patient: every trial result
// plus the grounding snapshot and per-stage timing summary.
type EvaluationReport struct {
	RunID     string                 `json:"run_id"`
	Grounding *GroundingResult       `json:"grounding"`
	Derived   *DerivedFacts          `json:"derived_facts"`
	Results   []TrialResult          `json:"results"`
	Timings   map[string]StageTiming `json:"timings"`
	CreatedAt time.Time              `json:"created_at"`
}
