// Package httpapi is the HTTP facade: POST /ingest, GET /snapshot,
// GET /stats, GET /status, POST /query, GET /health.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sentinelkg/sentinel/internal/jobs"
	"github.com/sentinelkg/sentinel/internal/orchestrator"
	"github.com/sentinelkg/sentinel/internal/query"
	"github.com/sentinelkg/sentinel/internal/store"
)

// ingestTimeout bounds the synchronous process_url path the /ingest
// handler drives when no durable job queue is configured.
const ingestTimeout = 300 * time.Second

// graphHealthChecker is the subset of *graph.Client the health handler
// needs, small enough to fake in tests without a real driver.
type graphHealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// AppContext holds every dependency a handler needs — passed explicitly,
// never read from a package-level global.
type AppContext struct {
	Store        *store.Store
	Orchestrator *orchestrator.Orchestrator
	Query        *query.Engine
	Status       *orchestrator.Status
	Jobs         *jobs.Queue
	Graph        graphHealthChecker
	Logger       *zap.Logger
}

// NewRouter builds the gin engine with every route wired to ac.
func NewRouter(ac *AppContext) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(cors.Default())
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	router.GET("/health", healthCheck(ac))
	router.POST("/ingest", ingest(ac))
	router.GET("/snapshot", snapshot(ac))
	router.GET("/stats", stats(ac))
	router.GET("/status", status(ac))
	router.POST("/query", askQuery(ac))

	return router
}

func healthCheck(ac *AppContext) gin.HandlerFunc {
	return func(c *gin.Context) {
		agentStatus := "stopped"
		if ac.Status != nil {
			agentStatus = ac.Status.AgentStatus()
		}

		if ac.Graph != nil {
			if err := ac.Graph.HealthCheck(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":       "unhealthy",
					"agent_status": agentStatus,
					"error":        err.Error(),
					"timestamp":    time.Now().UTC().Format(time.RFC3339),
				})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"status":       "healthy",
			"agent_status": agentStatus,
			"timestamp":    time.Now().UTC().Format(time.RFC3339),
		})
	}
}

type ingestRequest struct {
	URL string `json:"url" binding:"required"`
}

func ingest(ac *AppContext) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ingestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
			return
		}

		// When a durable job queue is configured, ingest is enqueued
		// rather than run inline.
		if ac.Jobs != nil {
			job, err := ac.Jobs.Enqueue(c.Request.Context(), jobs.KindIngest, req.URL)
			if err != nil {
				ac.Logger.Error("enqueue ingest failed", zap.String("url", req.URL), zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue job"})
				return
			}
			c.JSON(http.StatusAccepted, gin.H{"job_id": job.ID, "status": job.Status})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), ingestTimeout)
		defer cancel()

		result := ac.Orchestrator.ProcessURL(ctx, req.URL)
		if result.Err != nil {
			ac.Logger.Error("ingest failed", zap.String("url", req.URL), zap.Error(result.Err))
			c.JSON(http.StatusInternalServerError, gin.H{
				"url":     result.URL,
				"outcome": result.Outcome,
				"error":   result.Err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"url":     result.URL,
			"outcome": result.Outcome,
			"stats":   result.Stats,
		})
	}
}

func snapshot(ac *AppContext) gin.HandlerFunc {
	return func(c *gin.Context) {
		var at *time.Time
		if ts := c.Query("timestamp"); ts != "" {
			parsed, err := time.Parse(time.RFC3339, ts)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "timestamp must be RFC3339"})
				return
			}
			at = &parsed
		}

		snap, err := ac.Store.SnapshotAt(c.Request.Context(), at)
		if err != nil {
			ac.Logger.Error("snapshot failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build snapshot"})
			return
		}

		c.JSON(http.StatusOK, snap)
	}
}

func stats(ac *AppContext) gin.HandlerFunc {
	return func(c *gin.Context) {
		counts, err := ac.Store.Counts(c.Request.Context())
		if err != nil {
			ac.Logger.Error("stats failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute stats"})
			return
		}
		c.JSON(http.StatusOK, counts)
	}
}

func status(ac *AppContext) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, ac.Status.Snapshot())
	}
}

type queryRequest struct {
	Question  string  `json:"question" binding:"required"`
	Timestamp *string `json:"timestamp"`
}

func askQuery(ac *AppContext) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req queryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
			return
		}

		var at *time.Time
		if req.Timestamp != nil && *req.Timestamp != "" {
			parsed, err := time.Parse(time.RFC3339, *req.Timestamp)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "timestamp must be RFC3339"})
				return
			}
			at = &parsed
		}

		answer, err := ac.Query.Ask(c.Request.Context(), req.Question, at)
		if err != nil {
			ac.Logger.Error("query failed", zap.String("question", req.Question), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
			return
		}

		c.JSON(http.StatusOK, answer)
	}
}
