package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trial-eligibility-engine/internal/domain"
)

func TestScore(t *testing.T) {
	s := NewUncertaintyScorer(testLogger())

	tests := []struct {
		name           string
		inclusion      []domain.RuleResult
		exclusion      []domain.RuleResult
		verdict        domain.Verdict
		wantScore      int
		wantConfidence float64
		wantTriage     domain.Triage
	}{
		{
			name:           "fully certain eligible",
			inclusion:      results(domain.StatusMet, domain.StatusMet, domain.StatusMet),
			exclusion:      results(domain.StatusNotMet),
			verdict:        domain.Eligible,
			wantScore:      0,
			wantConfidence: 1.0,
			wantTriage:     domain.TriageAuto,
		},
		{
			name:           "one unknown inclusion",
			inclusion:      results(domain.StatusMet, domain.StatusUnknown),
			exclusion:      nil,
			verdict:        domain.Undecided,
			wantScore:      2,
			wantConfidence: 0.333,
			wantTriage:     domain.TriageHumanRequired,
		},
		{
			name:           "one unknown exclusion",
			inclusion:      results(domain.StatusMet),
			exclusion:      results(domain.StatusUnknown),
			verdict:        domain.Undecided,
			wantScore:      1,
			wantConfidence: 0.5,
			wantTriage:     domain.TriageReview,
		},
		{
			name:           "conflict: hard fail alongside unknowns",
			inclusion:      results(domain.StatusNotMet, domain.StatusUnknown),
			exclusion:      nil,
			verdict:        domain.NotEligible,
			wantScore:      5,
			wantConfidence: 0.167,
			wantTriage:     domain.TriageHumanRequired,
		},
		{
			name: "stacked hard fails earn the not-eligible discount",
			inclusion: results(
				domain.StatusNotMet, domain.StatusNotMet,
				domain.StatusNotMet, domain.StatusNotMet,
			),
			exclusion:      nil,
			verdict:        domain.NotEligible,
			wantScore:      0,
			wantConfidence: 1.0,
			wantTriage:     domain.TriageAuto,
		},
		{
			name:           "not eligible with residual unknown exclusion",
			inclusion:      results(domain.StatusNotMet, domain.StatusNotMet),
			exclusion:      results(domain.StatusUnknown),
			verdict:        domain.NotEligible,
			wantScore:      3,
			wantConfidence: 0.25,
			wantTriage:     domain.TriageHumanRequired,
		},
		{
			name:           "undecided verdict earns no support discount",
			inclusion:      results(domain.StatusMet, domain.StatusMet, domain.StatusMet, domain.StatusMet, domain.StatusMet, domain.StatusUnknown),
			exclusion:      nil,
			verdict:        domain.Undecided,
			wantScore:      2,
			wantConfidence: 0.333,
			wantTriage:     domain.TriageHumanRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Score(tt.inclusion, tt.exclusion, tt.verdict)
			assert.Equal(t, tt.wantScore, got.UncertaintyScore)
			assert.Equal(t, tt.wantConfidence, got.Confidence)
			assert.Equal(t, tt.wantTriage, got.Triage)
		})
	}
}

func TestScoreComponents(t *testing.T) {
	s := NewUncertaintyScorer(testLogger())

	got := s.Score(
		results(domain.StatusMet, domain.StatusNotMet, domain.StatusUnknown),
		results(domain.StatusNotMet, domain.StatusMet, domain.StatusUnknown),
		domain.NotEligible,
	)

	require.NotNil(t, got)
	assert.Equal(t, 1, got.Components.UnknownInclusion)
	assert.Equal(t, 1, got.Components.UnknownExclusion)
	assert.Equal(t, 2, got.Components.HardFails)
	assert.Equal(t, 2, got.Components.Support)
	assert.Equal(t, 1, got.Components.Conflict)
	// 2*1 + 1*1 + 3*1 - min(2, 2/2) = 5
	assert.Equal(t, 5, got.UncertaintyScore)
}

func TestScoreConfidenceBounds(t *testing.T) {
	s := NewUncertaintyScorer(testLogger())

	// Confidence stays in (0, 1] and decreases as unknowns accumulate.
	prev := 2.0
	for n := 0; n <= 8; n++ {
		inclusion := results(domain.StatusMet)
		for i := 0; i < n; i++ {
			inclusion = append(inclusion, domain.RuleResult{Status: domain.StatusUnknown})
		}
		verdict := domain.Eligible
		if n > 0 {
			verdict = domain.Undecided
		}

		got := s.Score(inclusion, nil, verdict)
		assert.Greater(t, got.Confidence, 0.0)
		assert.LessOrEqual(t, got.Confidence, 1.0)
		assert.LessOrEqual(t, got.Confidence, prev)
		prev = got.Confidence
	}
}

func TestScoreDiscountIsBounded(t *testing.T) {
	s := NewUncertaintyScorer(testLogger())

	// Massive support never pushes the score below zero.
	inclusion := results(
		domain.StatusMet, domain.StatusMet, domain.StatusMet,
		domain.StatusMet, domain.StatusMet, domain.StatusMet,
		domain.StatusMet, domain.StatusMet, domain.StatusMet,
	)
	got := s.Score(inclusion, nil, domain.Eligible)
	assert.Equal(t, 0, got.UncertaintyScore)
	assert.Equal(t, 1.0, got.Confidence)
}
