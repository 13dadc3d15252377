package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotFound(t *testing.T) {
	err := NotFound("alert", "a-1")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, http.StatusNotFound, err.HTTPStatus)
	assert.Equal(t, "NOT_FOUND", err.Code)
	assert.Equal(t, "alert not found: resource not found", err.Error())
	assert.Equal(t, "a-1", err.Details["id"])
}

func TestFrom(t *testing.T) {
	wrapped := fmt.Errorf("failed to dismiss alert: %w", NotFound("alert", "a-1"))
	assert.Equal(t, http.StatusNotFound, From(wrapped).HTTPStatus)

	plain := errors.New("connection refused")
	internal := From(plain)
	assert.Equal(t, http.StatusInternalServerError, internal.HTTPStatus)
	assert.Equal(t, "INTERNAL_ERROR", internal.Code)
	assert.ErrorIs(t, internal, ErrInternal)
	assert.ErrorIs(t, internal, plain)
}

func TestValidation(t *testing.T) {
	err := Validation("invalid analysis type", map[string]string{"type": "weather"})

	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatus)
	assert.Equal(t, "weather", err.Details["type"])
}

func TestConflict(t *testing.T) {
	err := Conflict("analysis already running")
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, http.StatusConflict, err.HTTPStatus)
}
