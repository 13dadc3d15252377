package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/oapi-codegen/runtime"
	"github.com/oapi-codegen/runtime/types"
	"go.uber.org/zap"

	"github.com/emeeran/phrm-diag-sub000/internal/apperrors"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// respondError maps err to its HTTP status and writes an ErrorResponse.
// Internal errors never leak their cause to the caller.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	appErr := apperrors.From(err)
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.Error(err),
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString("request_id")),
		)
		_ = c.Error(err)
	}
	c.JSON(appErr.HTTPStatus, ErrorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
		Details: appErr.Details,
	})
}

func bindError(param string, err error) error {
	return apperrors.Validation("invalid path parameter", map[string]string{
		"parameter": param,
		"reason":    err.Error(),
	})
}

// userIDParam binds the userId path segment
func userIDParam(c *gin.Context) (string, error) {
	var userID string
	err := runtime.BindStyledParameterWithOptions("simple", "userId", c.Param("userId"), &userID,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return "", bindError("userId", err)
	}
	if userID == "" {
		return "", apperrors.Validation("invalid path parameter", map[string]string{"parameter": "userId", "reason": "empty"})
	}
	return userID, nil
}

// uuidParam binds a path segment holding a UUID
func uuidParam(c *gin.Context, name string) (string, error) {
	var id types.UUID
	err := runtime.BindStyledParameterWithOptions("simple", name, c.Param(name), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return "", bindError(name, err)
	}
	return id.String(), nil
}
