// Package httpapi implements the synchronous out-of-core HTTP boundary:
// analyze-one, health, and agent metadata. It is a thin, unauthenticated
// surface — the streaming pipeline is the system of record.
package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/enterprise/fraud-pipeline/internal/coordinator"
	"github.com/enterprise/fraud-pipeline/internal/enrichment"
	"github.com/enterprise/fraud-pipeline/internal/models"
)

// busHealthChecker is satisfied by *bus.Producer; narrowed here so the
// package doesn't need to import bus just for this one check, and so tests
// can run without a live Kafka broker by leaving it nil.
type busHealthChecker interface {
	HealthCheck() error
}

// Server wraps a gin engine exposing the three boundary endpoints.
type Server struct {
	engine      *gin.Engine
	topology    *enrichment.Topology
	coordinator *coordinator.Coordinator
	bus         busHealthChecker
	startedAt   time.Time
}

// New builds the HTTP boundary server. bus may be nil, in which case the
// health endpoint reports store connectivity only.
func New(topology *enrichment.Topology, coord *coordinator.Coordinator, bus busHealthChecker, environment string) *Server {
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestIDMiddleware())
	engine.Use(loggingMiddleware())

	s := &Server{engine: engine, topology: topology, coordinator: coord, bus: bus, startedAt: time.Now()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.POST("/api/fraud-detection/analyze", s.handleAnalyzeOne)
	s.engine.GET("/api/fraud-detection/agents/info", s.handleAgentMetadata)
	s.engine.GET("/api/fraud-detection/health", s.handleHealth)
}

// Run starts the HTTP server on addr.
func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

type analyzeRequest struct {
	TransactionID    string            `json:"transactionId" binding:"required"`
	CustomerID       string            `json:"customerId" binding:"required"`
	Amount           float64           `json:"amount" binding:"required,gt=0"`
	Currency         string            `json:"currency" binding:"required"`
	MerchantID       string            `json:"merchantId" binding:"required"`
	MerchantCategory string            `json:"merchantCategory" binding:"required"`
	Location         string            `json:"location"`
	Timestamp        time.Time         `json:"timestamp" binding:"required"`
	Metadata         map[string]string `json:"metadata"`
}

// handleAnalyzeOne synchronously decides a single transaction with an empty
// streaming context (no profile, no velocity, no store access), returning
// the Decision without publishing to the bus — the test-data producer and
// the streaming path are the production entry points; this endpoint exists
// for on-demand single-transaction inspection.
func (s *Server) handleAnalyzeOne(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event := models.Event{
		TransactionID:    req.TransactionID,
		CustomerID:       req.CustomerID,
		Amount:           req.Amount,
		Currency:         req.Currency,
		MerchantID:       req.MerchantID,
		MerchantCategory: req.MerchantCategory,
		Location:         req.Location,
		Timestamp:        req.Timestamp,
		Metadata:         req.Metadata,
	}

	enriched := models.EnrichedEvent{Event: event}

	decision := s.coordinator.Decide(c.Request.Context(), enriched)
	status := http.StatusOK
	if len(decision.Opinions) == 0 {
		// Decide yields an opinion-less decision only from its technical-error
		// fallback (fraud=true, confidence=0.5).
		log.Error().Str("transactionId", event.TransactionID).Msg("coordinator failed for analyze-one request")
		status = http.StatusInternalServerError
	}
	c.JSON(status, decision)
}

func (s *Server) handleHealth(c *gin.Context) {
	components := gin.H{}
	status := http.StatusOK
	overall := "ok"

	if err := s.topology.HealthCheck(); err != nil {
		components["store"] = err.Error()
		status, overall = http.StatusServiceUnavailable, "degraded"
	} else {
		components["store"] = "ok"
	}

	if s.bus == nil {
		components["bus"] = "not configured"
	} else if err := s.bus.HealthCheck(); err != nil {
		components["bus"] = err.Error()
		status, overall = http.StatusServiceUnavailable, "degraded"
	} else {
		components["bus"] = "ok"
	}

	c.JSON(status, gin.H{
		"status":     overall,
		"uptime":     time.Since(s.startedAt).String(),
		"components": components,
	})
}

// agentMetadata describes the panel of specialist analyzers for external
// observability tooling.
type agentMetadata struct {
	ID             string  `json:"id"`
	Specialization string  `json:"specialization"`
	Weight         float64 `json:"weight"`
	Focus          string  `json:"focus"`
}

func (s *Server) handleAgentMetadata(c *gin.Context) {
	agents := []agentMetadata{
		{ID: "behavior", Specialization: "customer-behavior", Weight: 1.2, Focus: "velocity vs. baseline spending, timing anomalies"},
		{ID: "pattern", Specialization: "attack-patterns", Weight: 1.3, Focus: "card-testing, bot, credential-stuffing signatures"},
		{ID: "risk", Specialization: "financial-risk", Weight: 1.1, Focus: "amount deviation vs. profile, merchant risk tier"},
		{ID: "geographic", Specialization: "location-risk", Weight: 1.0, Focus: "baseline location vs. event, geographic impossibility under high velocity"},
		{ID: "temporal", Specialization: "timing-patterns", Weight: 1.0, Focus: "off-hours, sub-second intervals, regularity indicative of scripting"},
	}
	c.JSON(http.StatusOK, gin.H{"agents": agents, "consensusWeight": 0.8})
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = fmt.Sprintf("%d", time.Now().UnixNano())
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

func loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		log.Info().
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request handled")
	}
}
