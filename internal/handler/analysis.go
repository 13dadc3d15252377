package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/emeeran/phrm-diag-sub000/internal/apperrors"
	"github.com/emeeran/phrm-diag-sub000/pkg/model"
)

// AnalysisRequest is the body of an analysis request
type AnalysisRequest struct {
	AnalysisType model.AnalysisType `json:"analysis_type" binding:"required"`
}

// PostAnalysis runs (or reuses) an analysis for the user
func (h *Handler) PostAnalysis(c *gin.Context) {
	userID, err := userIDParam(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	var req AnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid request body", zap.Error(err))
		respondError(c, h.logger, apperrors.Validation("invalid request body", map[string]string{"body": err.Error()}))
		return
	}

	outcome, err := h.analyses.Analyze(c.Request.Context(), userID, req.AnalysisType)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info("analysis request handled",
		zap.String("user_id", userID),
		zap.String("analysis_type", string(req.AnalysisType)),
		zap.String("status", string(outcome.Status)),
	)

	c.JSON(http.StatusOK, outcome)
}

// GetAnalysis returns a stored analysis owned by the user
func (h *Handler) GetAnalysis(c *gin.Context) {
	userID, err := userIDParam(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	analysisID, err := uuidParam(c, "analysisId")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	result, err := h.analyses.Get(c.Request.Context(), userID, analysisID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
