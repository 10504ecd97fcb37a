package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/trial-eligibility-engine/internal/api"
	"github.com/trial-eligibility-engine/internal/config"
	"github.com/trial-eligibility-engine/internal/setup"
)

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := setup.NewLogger(&cfg.Logging)

	engine, err := setup.BuildEngine(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to build eligibility engine: %v", err)
	}
	defer engine.Close()

	logger.Infof("Starting trial eligibility server on %s:%d", cfg.Server.Host, cfg.Server.Port)

	server := api.NewServer(cfg, engine.Orchestrator, engine.Registry, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		log.Fatalf("Server failed: %v", err)
	}

	logger.Info("Server stopped")
}
