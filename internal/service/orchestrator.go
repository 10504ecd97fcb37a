package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/trial-eligibility-engine/internal/domain"
	"github.com/trial-eligibility-engine/internal/ontology"
)

// Orchestrator runs the full reasoning pipeline for one patient: grounding
// and derivation once, then evaluation, decision, uncertainty scoring, and
// trace emission per loaded trial. The per-trial loop shares only read-only
// state, so it can fan out across workers without affecting results.
type Orchestrator struct {
	grounder  *ontology.Grounder
	reasoner  *ontology.Reasoner
	evaluator *RuleEvaluator
	decision  *DecisionEngine
	scorer    *UncertaintyScorer
	rules     domain.RuleSource
	traces    domain.TraceWriter
	log       *logrus.Logger

	// parallelism bounds the per-trial fan-out; <=1 evaluates sequentially.
	parallelism int
}

// NewOrchestrator wires the pipeline components together.
func NewOrchestrator(
	grounder *ontology.Grounder,
	reasoner *ontology.Reasoner,
	evaluator *RuleEvaluator,
	decision *DecisionEngine,
	scorer *UncertaintyScorer,
	rules domain.RuleSource,
	traces domain.TraceWriter,
	parallelism int,
	logger *logrus.Logger,
) *Orchestrator {
	return &Orchestrator{
		grounder:    grounder,
		reasoner:    reasoner,
		evaluator:   evaluator,
		decision:    decision,
		scorer:      scorer,
		rules:       rules,
		traces:      traces,
		parallelism: parallelism,
		log:         logger,
	}
}

// EvaluatePatient evaluates one patient against every loaded trial and
// returns the full report. Results keep the registry's stable document
// order regardless of evaluation mode.
func (o *Orchestrator) EvaluatePatient(ctx context.Context, patient domain.PatientFacts) (*domain.EvaluationReport, error) {
	runID := uuid.NewString()
	rec := newTimingRecorder()

	o.log.WithFields(logrus.Fields{
		"run_id": runID,
		"fields": len(patient),
	}).Info("Starting patient evaluation")

	var grounding *domain.GroundingResult
	rec.track(StageGrounding, func() {
		grounding = o.grounder.Ground(patient)
	})

	var derived *domain.DerivedFacts
	rec.track(StageOntologyReasoning, func() {
		derived = o.reasoner.Derive(patient, grounding)
	})

	docs := o.rules.All()
	results := make([]domain.TrialResult, len(docs))

	if o.parallelism > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(o.parallelism)
		for i, doc := range docs {
			i, doc := i, doc
			g.Go(func() error {
				results[i] = o.evaluateTrial(gctx, runID, doc, patient, derived, rec)
				return nil
			})
		}
		// Workers never return errors; evaluation degrades, not fails.
		_ = g.Wait()
	} else {
		for i, doc := range docs {
			results[i] = o.evaluateTrial(ctx, runID, doc, patient, derived, rec)
		}
	}

	report := &domain.EvaluationReport{
		RunID:     runID,
		Grounding: grounding,
		Derived:   derived,
		Results:   results,
		Timings:   rec.summary(),
		CreatedAt: time.Now().UTC(),
	}

	o.log.WithFields(logrus.Fields{
		"run_id": runID,
		"trials": len(results),
	}).Info("Completed patient evaluation")

	return report, nil
}

// evaluateTrial runs evaluation, decision, scoring, and trace emission for
// one trial. It never fails: every degradation is recorded on the result.
func (o *Orchestrator) evaluateTrial(ctx context.Context, runID string, doc *domain.RuleDocument, patient domain.PatientFacts, derived *domain.DerivedFacts, rec *timingRecorder) domain.TrialResult {
	loopStart := time.Now()
	defer func() { rec.observe(StageTrialLoop, time.Since(loopStart)) }()

	result := domain.TrialResult{
		TrialID: doc.TrialID,
		Title:   doc.Title,
	}

	if doc.Empty() {
		result.Overall = domain.Undecided
		result.Error = domain.ErrTrialRulesEmpty.Error()
		o.log.WithFields(logrus.Fields{
			"run_id":   runID,
			"trial_id": doc.TrialID,
		}).Warn("Trial document carries no rules")
		o.writeTrace(ctx, &domain.TrialTrace{
			RunID:     runID,
			TrialID:   doc.TrialID,
			Overall:   result.Overall,
			Inclusion: []domain.RuleResult{},
			Exclusion: []domain.RuleResult{},
			CreatedAt: time.Now().UTC(),
		})
		return result
	}

	var inclusion, exclusion []domain.RuleResult
	rec.track(StageRuleEvalInclusion, func() {
		inclusion = o.evaluateRuleSet(doc.Inclusion, patient, derived)
	})
	rec.track(StageRuleEvalExclusion, func() {
		exclusion = o.evaluateRuleSet(doc.Exclusion, patient, derived)
	})

	rec.track(StageDecisionLogic, func() {
		result.Overall = o.decision.Decide(inclusion, exclusion)
	})
	rec.track(StageUncertainty, func() {
		result.Uncertainty = o.scorer.Score(inclusion, exclusion, result.Overall)
	})

	trace := &domain.TrialTrace{
		RunID:     runID,
		TrialID:   doc.TrialID,
		Overall:   result.Overall,
		Inclusion: inclusion,
		Exclusion: exclusion,
		CreatedAt: time.Now().UTC(),
	}
	result.Trace = trace
	o.writeTrace(ctx, trace)

	o.log.WithFields(logrus.Fields{
		"run_id":   runID,
		"trial_id": doc.TrialID,
		"overall":  result.Overall.String(),
		"triage":   result.Uncertainty.Triage.String(),
	}).Debug("Trial evaluated")

	return result
}

func (o *Orchestrator) evaluateRuleSet(ruleSet []domain.Rule, patient domain.PatientFacts, derived *domain.DerivedFacts) []domain.RuleResult {
	results := make([]domain.RuleResult, 0, len(ruleSet))
	for i := range ruleSet {
		results = append(results, o.evaluator.EvaluateTopLevel(&ruleSet[i], patient, derived))
	}
	return results
}

// writeTrace emits the audit record. A failing sink degrades to a logged
// warning; it must never abort the evaluation run.
func (o *Orchestrator) writeTrace(ctx context.Context, trace *domain.TrialTrace) {
	if o.traces == nil {
		return
	}
	if err := o.traces.Write(ctx, trace); err != nil {
		o.log.WithError(err).WithField("trial_id", trace.TrialID).Warn("Failed to write audit trace")
	}
}
