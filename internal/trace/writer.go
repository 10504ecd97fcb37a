// Package trace provides the audit sink implementations behind the
// TraceWriter interface: a structured log stream, an append-only JSONL
// file, a SQLite store, and a fan-out writer combining them.
package trace

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/trial-eligibility-engine/internal/domain"
)

// LogWriter emits each trace as one structured log record.
type LogWriter struct {
	log *logrus.Logger
}

// NewLogWriter creates a log-stream trace writer.
func NewLogWriter(logger *logrus.Logger) *LogWriter {
	return &LogWriter{log: logger}
}

// Write logs the trace as a single structured record.
func (w *LogWriter) Write(_ context.Context, trace *domain.TrialTrace) error {
	payload, err := json.Marshal(trace)
	if err != nil {
		return fmt.Errorf("encoding trace for trial %s: %w", trace.TrialID, err)
	}
	w.log.WithFields(logrus.Fields{
		"run_id":   trace.RunID,
		"trial_id": trace.TrialID,
		"overall":  trace.Overall.String(),
		"trace":    json.RawMessage(payload),
	}).Info("eligibility_trace")
	return nil
}

// JSONLWriter appends each trace as one JSON line to a file. Writes are
// serialized; the file is the append-only audit record.
type JSONLWriter struct {
	mu   sync.Mutex
	file *os.File
}

// NewJSONLWriter opens (creating if needed) the audit file for appending.
func NewJSONLWriter(path string) (*JSONLWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating trace directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening trace file %s: %w", path, err)
	}
	return &JSONLWriter{file: f}, nil
}

// Write appends one trace record.
func (w *JSONLWriter) Write(_ context.Context, trace *domain.TrialTrace) error {
	payload, err := json.Marshal(trace)
	if err != nil {
		return fmt.Errorf("encoding trace for trial %s: %w", trace.TrialID, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.file.Write(append(payload, '\n')); err != nil {
		return fmt.Errorf("appending trace for trial %s: %w", trace.TrialID, err)
	}
	return nil
}

// Close closes the underlying file.
func (w *JSONLWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

// MultiWriter fans each trace out to several sinks. The first sink error is
// returned after all sinks have been attempted.
type MultiWriter struct {
	writers []domain.TraceWriter
}

// NewMultiWriter combines trace writers.
func NewMultiWriter(writers ...domain.TraceWriter) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write forwards the trace to every sink.
func (w *MultiWriter) Write(ctx context.Context, trace *domain.TrialTrace) error {
	var firstErr error
	for _, sink := range w.writers {
		if err := sink.Write(ctx, trace); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
