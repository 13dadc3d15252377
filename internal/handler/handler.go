// Package handler exposes the analysis, alert and insight services over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/emeeran/phrm-diag-sub000/pkg/model"
)

// AnalysisServiceInterface is the part of the analysis service the handler uses
type AnalysisServiceInterface interface {
	Analyze(ctx context.Context, userID string, t model.AnalysisType) (*model.AnalysisOutcome, error)
	Get(ctx context.Context, userID, analysisID string) (*model.AnalysisResult, error)
}

// AlertServiceInterface is the part of the alert service the handler uses
type AlertServiceInterface interface {
	DetectAnomalies(ctx context.Context, userID string) (*model.DetectionOutcome, error)
	CheckRefills(ctx context.Context, userID string) (*model.DetectionOutcome, error)
	GenerateMilestones(ctx context.Context, userID string) (*model.DetectionOutcome, error)
	GenerateWellnessGoals(ctx context.Context, userID string) (*model.DetectionOutcome, error)
	RunAll(ctx context.Context, userID string) ([]model.DetectionOutcome, error)
	ListActive(ctx context.Context, userID string) ([]model.HealthAlert, error)
	Dismiss(ctx context.Context, alertID, userID string) error
}

// InsightServiceInterface is the part of the insight service the handler uses
type InsightServiceInterface interface {
	Generate(ctx context.Context, userID string, t model.InsightType) (*model.InsightOutcome, error)
}

// Pinger reports storage reachability for the health check
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler implements the HTTP endpoints
type Handler struct {
	analyses AnalysisServiceInterface
	alerts   AlertServiceInterface
	insights InsightServiceInterface
	db       Pinger
	logger   *zap.Logger
}

// NewHandler creates a new Handler. db may be nil when running on the in-memory store.
func NewHandler(
	analyses AnalysisServiceInterface,
	alerts AlertServiceInterface,
	insights InsightServiceInterface,
	db Pinger,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		analyses: analyses,
		alerts:   alerts,
		insights: insights,
		db:       db,
		logger:   logger,
	}
}

// RegisterRoutes mounts every endpoint on r
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", h.GetHealth)

	users := r.Group("/api/v1/users/:userId")
	users.POST("/analyses", h.PostAnalysis)
	users.GET("/analyses/:analysisId", h.GetAnalysis)
	users.POST("/detections/:detector", h.PostDetection)
	users.GET("/alerts", h.GetAlerts)
	users.POST("/alerts/:alertId/dismiss", h.PostDismissAlert)
	users.POST("/insights/:insightType", h.PostInsight)
}

// GetHealth reports service and storage health
func (h *Handler) GetHealth(c *gin.Context) {
	if h.db == nil {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"storage": "memory",
		})
		return
	}

	if err := h.db.Ping(c.Request.Context()); err != nil {
		h.logger.Error("health check failed: database unreachable", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": "disconnected",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"database": "connected",
	})
}
