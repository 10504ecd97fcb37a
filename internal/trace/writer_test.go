package trace

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trial-eligibility-engine/internal/domain"
)

func sampleTrace(runID, trialID string) *domain.TrialTrace {
	return &domain.TrialTrace{
		RunID:   runID,
		TrialID: trialID,
		Overall: domain.Eligible,
		Inclusion: []domain.RuleResult{
			{ID: "inc_stage", Field: "current_stage", Condition: domain.CondOntologyIsA, Value: "Stage_IV", Status: domain.StatusMet},
		},
		Exclusion: []domain.RuleResult{},
		CreatedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestLogWriter(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	w := NewLogWriter(logger)

	require.NoError(t, w.Write(context.Background(), sampleTrace("run-1", "NCT-1")))
}

func TestJSONLWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "traces.jsonl")
	w, err := NewJSONLWriter(path)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Write(context.Background(), sampleTrace("run-1", "NCT-1")))
	require.NoError(t, w.Write(context.Background(), sampleTrace("run-1", "NCT-2")))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []domain.TrialTrace
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var trace domain.TrialTrace
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &trace))
		lines = append(lines, trace)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, lines, 2)
	assert.Equal(t, "NCT-1", lines[0].TrialID)
	assert.Equal(t, "NCT-2", lines[1].TrialID)
	assert.Equal(t, domain.Eligible, lines[0].Overall)
}

type countingWriter struct {
	calls int
	err   error
}

func (c *countingWriter) Write(context.Context, *domain.TrialTrace) error {
	c.calls++
	return c.err
}

func TestMultiWriter(t *testing.T) {
	first := &countingWriter{}
	second := &countingWriter{}
	w := NewMultiWriter(first, second)

	require.NoError(t, w.Write(context.Background(), sampleTrace("run-1", "NCT-1")))
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
}

func TestMultiWriterReportsFirstErrorAfterAllSinks(t *testing.T) {
	sinkErr := errors.New("sink down")
	first := &countingWriter{err: sinkErr}
	second := &countingWriter{}
	w := NewMultiWriter(first, second)

	err := w.Write(context.Background(), sampleTrace("run-1", "NCT-1"))
	require.ErrorIs(t, err, sinkErr)
	// The failing sink never blocks the healthy one.
	assert.Equal(t, 1, second.calls)
}
