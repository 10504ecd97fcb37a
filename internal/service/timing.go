package service

import (
	"sync"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/trial-eligibility-engine/internal/domain"
)

// Pipeline stage names used as timing keys.
const (
	StageGrounding         = "grounding"
	StageOntologyReasoning = "ontology_reasoning"
	StageRuleEvalInclusion = "rule_eval_inclusion"
	StageRuleEvalExclusion = "rule_eval_exclusion"
	StageDecisionLogic     = "decision_logic"
	StageUncertainty       = "uncertainty"
	StageTrialLoop         = "trial_loop"
)

// timingRecorder collects per-stage elapsed-time samples for one evaluation
// run. Safe for concurrent use so the per-trial fan-out can record into it.
type timingRecorder struct {
	mu      sync.Mutex
	samples map[string][]float64
}

func newTimingRecorder() *timingRecorder {
	return &timingRecorder{samples: make(map[string][]float64)}
}

// observe records one elapsed duration under a stage key, in milliseconds.
func (t *timingRecorder) observe(stage string, elapsed time.Duration) {
	ms := float64(elapsed.Microseconds()) / 1000.0
	t.mu.Lock()
	t.samples[stage] = append(t.samples[stage], ms)
	t.mu.Unlock()
}

// track runs fn and records its elapsed time under the stage key.
func (t *timingRecorder) track(stage string, fn func()) {
	start := time.Now()
	fn()
	t.observe(stage, time.Since(start))
}

// summary reduces the samples to total/count/mean per stage.
func (t *timingRecorder) summary() map[string]domain.StageTiming {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]domain.StageTiming, len(t.samples))
	for stage, samples := range t.samples {
		total, err := stats.Sum(samples)
		if err != nil {
			continue
		}
		mean, err := stats.Mean(samples)
		if err != nil {
			continue
		}
		out[stage] = domain.StageTiming{
			TotalMs: roundTo(total, 2),
			Count:   len(samples),
			MeanMs:  roundTo(mean, 2),
		}
	}
	return out
}
