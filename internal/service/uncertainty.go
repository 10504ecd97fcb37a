package service

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/trial-eligibility-engine/internal/domain"
)

// Scoring constants. These are fixed design constants, reproduced exactly
// for behavioral compatibility with prior decisions; they are not tunable
// configuration.
const (
	weightUnknownInclusion = 2
	weightUnknownExclusion = 1
	weightConflict         = 3
	maxDiscount            = 2

	triageAutoThreshold   = 0.55
	triageReviewThreshold = 0.35
)

// UncertaintyScorer computes a deterministic integer uncertainty score, a
// derived confidence in [0,1], and a triage bucket from the same rule
// results the verdict was decided on. Not a statistical model.
type UncertaintyScorer struct {
	log *logrus.Logger
}

// NewUncertaintyScorer creates a scorer.
func NewUncertaintyScorer(logger *logrus.Logger) *UncertaintyScorer {
	return &UncertaintyScorer{log: logger}
}

// Score derives the uncertainty assessment for one trial verdict.
func (s *UncertaintyScorer) Score(inclusion, exclusion []domain.RuleResult, verdict domain.Verdict) *domain.Uncertainty {
	unknownInc := countStatus(inclusion, domain.StatusUnknown)
	unknownExc := countStatus(exclusion, domain.StatusUnknown)

	hardFails := countStatus(inclusion, domain.StatusNotMet) + countStatus(exclusion, domain.StatusMet)
	support := countStatus(inclusion, domain.StatusMet) + countStatus(exclusion, domain.StatusNotMet)

	conflict := 0
	if hardFails > 0 && unknownInc+unknownExc > 0 {
		conflict = 1
	}

	uncertainty := weightUnknownInclusion*unknownInc +
		weightUnknownExclusion*unknownExc +
		weightConflict*conflict

	// A robust verdict earns a bounded discount: broad support for an
	// eligible verdict, or stacked hard fails for a not-eligible one.
	switch verdict {
	case domain.Eligible:
		uncertainty -= minInt(maxDiscount, support/3)
	case domain.NotEligible:
		uncertainty -= minInt(maxDiscount, hardFails/2)
	}
	if uncertainty < 0 {
		uncertainty = 0
	}

	confidence := roundTo(1.0/(1.0+float64(uncertainty)), 3)

	var triage domain.Triage
	switch {
	case confidence >= triageAutoThreshold:
		triage = domain.TriageAuto
	case confidence >= triageReviewThreshold:
		triage = domain.TriageReview
	default:
		triage = domain.TriageHumanRequired
	}

	return &domain.Uncertainty{
		UncertaintyScore: uncertainty,
		Confidence:       confidence,
		Triage:           triage,
		Components: domain.UncertaintyComponents{
			UnknownInclusion: unknownInc,
			UnknownExclusion: unknownExc,
			HardFails:        hardFails,
			Support:          support,
			Conflict:         conflict,
		},
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func roundTo(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}
