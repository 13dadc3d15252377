package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// Feature: health-insights, Property 9: Request Logging
func TestProperty_RequestLogging(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("all requests are logged with required fields", prop.ForAll(
		func(method string, userID string) bool {
			core, logs := observer.New(zapcore.InfoLevel)
			logger := zap.New(core)

			gin.SetMode(gin.TestMode)
			router := gin.New()
			router.Use(RequestIDMiddleware(), RequestLoggingMiddleware(logger))

			router.Handle(method, "/api/v1/users/:userId/alerts", func(c *gin.Context) {
				c.Status(http.StatusOK)
			})

			path := "/api/v1/users/" + userID + "/alerts"
			req := httptest.NewRequest(method, path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			var requestLog *observer.LoggedEntry
			for _, entry := range logs.All() {
				if entry.Message == "request completed" {
					requestLog = &entry
					break
				}
			}
			if requestLog == nil {
				t.Logf("Request log entry not found")
				return false
			}

			fields := requestLog.ContextMap()
			if fields["method"] != method {
				t.Logf("Method mismatch: expected %s, got %v", method, fields["method"])
				return false
			}
			if fields["path"] != path {
				t.Logf("Path mismatch: expected %s, got %v", path, fields["path"])
				return false
			}
			if fields["route"] != "/api/v1/users/:userId/alerts" {
				t.Logf("Route mismatch: got %v", fields["route"])
				return false
			}
			if fields["user_id"] != userID {
				t.Logf("user_id mismatch: expected %s, got %v", userID, fields["user_id"])
				return false
			}
			if fields["request_id"] != w.Header().Get(RequestIDHeader) {
				t.Logf("request_id does not match response header")
				return false
			}
			for _, key := range []string{"timestamp", "duration", "status"} {
				if _, ok := fields[key]; !ok {
					t.Logf("%s field missing", key)
					return false
				}
			}
			return true
		},
		gen.OneConstOf("GET", "POST"),
		gen.Identifier(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Feature: health-insights, Property 11: Error Logging Detail
func TestProperty_ErrorLoggingDetail(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("errors are logged with stack traces and context", prop.ForAll(
		func(errorMessage string, path string) bool {
			core, logs := observer.New(zapcore.ErrorLevel)
			logger := zap.New(core)

			gin.SetMode(gin.TestMode)
			router := gin.New()
			router.Use(ErrorLoggingMiddleware(logger))

			router.GET(path, func(c *gin.Context) {
				_ = c.Error(&testError{msg: errorMessage})
				c.Status(http.StatusInternalServerError)
			})

			req := httptest.NewRequest("GET", path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			var errorLog *observer.LoggedEntry
			for _, entry := range logs.All() {
				if entry.Message == "request error occurred" {
					errorLog = &entry
					break
				}
			}
			if errorLog == nil {
				t.Logf("Error log entry not found")
				return false
			}

			fields := errorLog.ContextMap()
			if fields["error"] != errorMessage {
				t.Logf("error field mismatch")
				return false
			}
			if fields["method"] != "GET" || fields["path"] != path {
				t.Logf("request context missing or incorrect")
				return false
			}
			if _, ok := fields["stack_trace"]; !ok {
				t.Logf("stack_trace field missing")
				return false
			}
			return true
		},
		gen.AlphaString(),
		gen.OneConstOf("/api/v1/test", "/api/v1/error", "/api/v1/fail"),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

type testError struct {
	msg string
}

func (e *testError) Error() string {
	return e.msg
}
