// Package api exposes the reasoning core over HTTP. The API layer
// serializes EvaluationReport records; it adds no reasoning of its own.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/trial-eligibility-engine/internal/config"
	"github.com/trial-eligibility-engine/internal/domain"
	"github.com/trial-eligibility-engine/internal/service"
)

// Server is the HTTP front-end over the orchestrator and rule registry.
type Server struct {
	cfg          *config.Config
	orchestrator *service.Orchestrator
	rules        domain.RuleSource
	log          *logrus.Logger
	router       *gin.Engine
	server       *http.Server
}

// NewServer creates the HTTP server and wires its routes.
func NewServer(cfg *config.Config, orchestrator *service.Orchestrator, rules domain.RuleSource, logger *logrus.Logger) *Server {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestIDMiddleware())
	router.Use(rateLimitMiddleware(cfg.Server.RateLimitRPS, cfg.Server.RateBurst))

	s := &Server{
		cfg:          cfg,
		orchestrator: orchestrator,
		rules:        rules,
		log:          logger,
		router:       router,
	}
	s.setupRoutes()
	return s
}

// Start serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/evaluate", s.handleEvaluate)
		v1.GET("/trials", s.handleListTrials)
		v1.GET("/trials/:id", s.handleGetTrial)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"trials":    len(s.rules.All()),
	})
}

// evaluateRequest is the evaluation request body.
type evaluateRequest struct {
	Patient domain.PatientFacts `json:"patient" binding:"required"`
}

func (s *Server) handleEvaluate(c *gin.Context) {
	var req evaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}
	if len(req.Patient) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "patient facts are required"})
		return
	}

	report, err := s.orchestrator.EvaluatePatient(c.Request.Context(), req.Patient)
	if err != nil {
		s.log.WithError(err).Error("Patient evaluation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "evaluation failed"})
		return
	}

	c.JSON(http.StatusOK, report)
}

// trialSummary is the list representation of a loaded rule document.
type trialSummary struct {
	TrialID        string `json:"trial_id"`
	Title          string `json:"title"`
	InclusionRules int    `json:"inclusion_rules"`
	ExclusionRules int    `json:"exclusion_rules"`
}

func (s *Server) handleListTrials(c *gin.Context) {
	docs := s.rules.All()
	summaries := make([]trialSummary, 0, len(docs))
	for _, doc := range docs {
		summaries = append(summaries, trialSummary{
			TrialID:        doc.TrialID,
			Title:          doc.Title,
			InclusionRules: len(doc.Inclusion),
			ExclusionRules: len(doc.Exclusion),
		})
	}
	c.JSON(http.StatusOK, gin.H{"trials": summaries})
}

func (s *Server) handleGetTrial(c *gin.Context) {
	doc, err := s.rules.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "trial not found"})
		return
	}
	c.JSON(http.StatusOK, doc)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}

// rateLimitMiddleware applies a process-wide token bucket to all routes.
func rateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
