package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/emeeran/phrm-diag-sub000/pkg/model"
)

// PostInsight returns a valid predictive insight, generating one when needed
func (h *Handler) PostInsight(c *gin.Context) {
	userID, err := userIDParam(c)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	insightType := model.InsightType(c.Param("insightType"))

	outcome, err := h.insights.Generate(c.Request.Context(), userID, insightType)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info("insight request handled",
		zap.String("user_id", userID),
		zap.String("insight_type", string(insightType)),
		zap.String("status", string(outcome.Status)),
	)

	c.JSON(http.StatusOK, outcome)
}
