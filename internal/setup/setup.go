// Package setup builds the reasoning pipeline from configuration. It is
// shared by the HTTP server and the CLI so both wire the same components.
package setup

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/trial-eligibility-engine/internal/config"
	"github.com/trial-eligibility-engine/internal/domain"
	"github.com/trial-eligibility-engine/internal/ontology"
	"github.com/trial-eligibility-engine/internal/rules"
	"github.com/trial-eligibility-engine/internal/service"
	"github.com/trial-eligibility-engine/internal/trace"
)

// Engine bundles the wired pipeline and its supporting resources.
type Engine struct {
	Orchestrator *service.Orchestrator
	Registry     *rules.Registry
	Mapping      ontology.Mapping
	Logger       *logrus.Logger

	closers []func() error
}

// NewLogger builds the process logger from configuration.
func NewLogger(cfg *config.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

// BuildEngine loads the ontology mapping and rule documents and wires the
// full pipeline. Loading failures are configuration-time errors.
func BuildEngine(cfg *config.Config, logger *logrus.Logger) (*Engine, error) {
	mapping, err := ontology.LoadMapping(cfg.Engine.OntologyPath)
	if err != nil {
		return nil, fmt.Errorf("loading ontology: %w", err)
	}

	registry, err := rules.NewRegistry(cfg.Engine.RulesDir, logger)
	if err != nil {
		return nil, fmt.Errorf("loading trial rules: %w", err)
	}
	if registry.Len() == 0 {
		logger.WithField("rules_dir", cfg.Engine.RulesDir).Warn("No trial rule documents loaded")
	}

	engine := &Engine{
		Registry: registry,
		Mapping:  mapping,
		Logger:   logger,
	}

	traceWriter, err := engine.buildTraceWriter(cfg, logger)
	if err != nil {
		return nil, err
	}

	engine.Orchestrator = service.NewOrchestrator(
		ontology.NewGrounder(mapping, logger),
		ontology.NewReasoner(mapping, logger),
		service.NewRuleEvaluator(service.DefaultMissingPolicies(), service.DefaultDerivedKeys(), logger),
		service.NewDecisionEngine(logger),
		service.NewUncertaintyScorer(logger),
		registry,
		traceWriter,
		cfg.Engine.Parallelism,
		logger,
	)

	return engine, nil
}

func (e *Engine) buildTraceWriter(cfg *config.Config, logger *logrus.Logger) (domain.TraceWriter, error) {
	sinks := cfg.Trace.Sinks()
	writers := make([]domain.TraceWriter, 0, len(sinks))
	for _, sink := range sinks {
		switch sink {
		case "jsonl":
			w, err := trace.NewJSONLWriter(cfg.Trace.JSONLPath)
			if err != nil {
				return nil, fmt.Errorf("opening trace sink: %w", err)
			}
			e.closers = append(e.closers, w.Close)
			writers = append(writers, w)
		case "sqlite":
			store, err := trace.NewSQLiteStore(cfg.Trace.SQLitePath)
			if err != nil {
				return nil, fmt.Errorf("opening trace store: %w", err)
			}
			e.closers = append(e.closers, store.Close)
			writers = append(writers, store)
		default:
			writers = append(writers, trace.NewLogWriter(logger))
		}
	}
	if len(writers) == 1 {
		return writers[0], nil
	}
	return trace.NewMultiWriter(writers...), nil
}

// Close releases resources held by the trace sink.
func (e *Engine) Close() error {
	var firstErr error
	for _, closeFn := range e.closers {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
