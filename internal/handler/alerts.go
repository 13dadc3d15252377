package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/emeeran/phrm-diag-sub000/internal/apperrors"
	"github.com/emeeran/phrm-diag-sub000/pkg/model"
)

// DetectorAll runs every detector in one request
const DetectorAll = "all"

// AlertListResponse is the body of the active alert listing
type AlertListResponse struct {
	Alerts []model.HealthAlert `json:"alerts"`
	Count  int                 `json:"count"`
}

// DetectionRunResponse is the body of a run over every detector
type DetectionRunResponse struct {
	Outcomes []model.DetectionOutcome `json:"outcomes"`
}

// PostDetection runs one detector, or all of them, for the user
func (h *Handler) PostDetection(c *gin.Context) {
	userID, err := userIDParam(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	ctx := c.Request.Context()
	detector := c.Param("detector")

	if detector == DetectorAll {
		outcomes, err := h.alerts.RunAll(ctx, userID)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, DetectionRunResponse{Outcomes: outcomes})
		return
	}

	var run func(context.Context, string) (*model.DetectionOutcome, error)
	switch model.AlertType(detector) {
	case model.AlertAnomaly:
		run = h.alerts.DetectAnomalies
	case model.AlertRefill:
		run = h.alerts.CheckRefills
	case model.AlertMilestone:
		run = h.alerts.GenerateMilestones
	case model.AlertWellness:
		run = h.alerts.GenerateWellnessGoals
	default:
		respondError(c, h.logger, apperrors.Validation("unknown detector", map[string]string{"detector": detector}))
		return
	}

	outcome, err := run(ctx, userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info("detection request handled",
		zap.String("user_id", userID),
		zap.String("detector", detector),
		zap.String("status", string(outcome.Status)),
		zap.Int("created", len(outcome.AlertIDs)),
	)

	c.JSON(http.StatusOK, outcome)
}

// GetAlerts lists the user's active alerts
func (h *Handler) GetAlerts(c *gin.Context) {
	userID, err := userIDParam(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	alerts, err := h.alerts.ListActive(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, AlertListResponse{Alerts: alerts, Count: len(alerts)})
}

// PostDismissAlert dismisses one of the user's alerts
func (h *Handler) PostDismissAlert(c *gin.Context) {
	userID, err := userIDParam(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	alertID, err := uuidParam(c, "alertId")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if err := h.alerts.Dismiss(c.Request.Context(), alertID, userID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"alert_id":  alertID,
		"dismissed": true,
	})
}
