package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func loggedEngine(t *testing.T) (*gin.Engine, *observer.ObservedLogs) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)

	r := gin.New()
	r.Use(RequestID(), Logger(zap.New(core), "/healthz"))
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/v1/roles/:roleId", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	return r, logs
}

func TestLoggerUsesRouteTemplateAndStatusLevel(t *testing.T) {
	r, logs := loggedEngine(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/roles/role-7", nil)
	req.RemoteAddr = "203.0.113.42:5555"
	r.ServeHTTP(httptest.NewRecorder(), req)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected two access log lines, got %d", len(entries))
	}

	first := entries[0]
	if first.Level != zapcore.WarnLevel {
		t.Fatalf("expected warn for 404, got %s", first.Level)
	}
	fields := first.ContextMap()
	if fields["route"] != "/api/v1/roles/:roleId" || fields["path"] != "/api/v1/roles/role-7" {
		t.Fatalf("unexpected route fields: %v", fields)
	}
	if fields["client_ip"] == "203.0.113.42" {
		t.Fatalf("client ip should be masked")
	}
	if fields["request_id"] == "" {
		t.Fatalf("expected request id on access log")
	}

	if entries[1].Level != zapcore.ErrorLevel {
		t.Fatalf("expected error for 500, got %s", entries[1].Level)
	}
}

func TestLoggerSkipsQuietPaths(t *testing.T) {
	r, logs := loggedEngine(t)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if logs.Len() != 0 {
		t.Fatalf("expected health check to be silent, got %d entries", logs.Len())
	}
}
