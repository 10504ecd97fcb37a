package service

import (
	"github.com/sirupsen/logrus"

	"github.com/trial-eligibility-engine/internal/domain"
)

// DecisionEngine folds all rule results for one trial into a single verdict
// using a fixed precedence order. A confirmed unmet inclusion or a confirmed
// exclusion is a hard, certain fact and dominates any remaining uncertainty
// elsewhere in the same trial.
type DecisionEngine struct {
	log *logrus.Logger
}

// NewDecisionEngine creates a decision engine.
func NewDecisionEngine(logger *logrus.Logger) *DecisionEngine {
	return &DecisionEngine{log: logger}
}

// Decide applies the precedence order, first match wins:
//  1. no inclusion criteria -> not eligible (a trial with no inclusion
//     criteria cannot be satisfied; guards malformed documents)
//  2. any inclusion not met -> not eligible
//  3. any exclusion met -> not eligible
//  4. any inclusion unknown -> unknown
//  5. any exclusion unknown -> unknown
//  6. otherwise eligible
func (d *DecisionEngine) Decide(inclusion, exclusion []domain.RuleResult) domain.Verdict {
	if len(inclusion) == 0 {
		return domain.NotEligible
	}
	if hasStatus(inclusion, domain.StatusNotMet) {
		return domain.NotEligible
	}
	if hasStatus(exclusion, domain.StatusMet) {
		return domain.NotEligible
	}
	if hasStatus(inclusion, domain.StatusUnknown) {
		return domain.Undecided
	}
	if hasStatus(exclusion, domain.StatusUnknown) {
		return domain.Undecided
	}
	return domain.Eligible
}

func hasStatus(results []domain.RuleResult, status domain.Status) bool {
	for _, r := range results {
		if r.Status == status {
			return true
		}
	}
	return false
}

func countStatus(results []domain.RuleResult, status domain.Status) int {
	n := 0
	for _, r := range results {
		if r.Status == status {
			n++
		}
	}
	return n
}
