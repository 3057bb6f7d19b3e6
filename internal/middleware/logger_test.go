package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/simp-lee/logger"
)

func setupLoggerRouter(log *slog.Logger, cfg LoggerConfig) *gin.Engine {
	r := gin.New()
	r.Use(RequestIDWithConfig(RequestIDConfig{TrustUpstream: true}))
	r.Use(LoggerWithConfig(log, cfg))

	r.GET("/ok", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/not-found", func(c *gin.Context) {
		c.String(http.StatusNotFound, "not found")
	})
	r.GET("/error", func(c *gin.Context) {
		c.String(http.StatusInternalServerError, "error")
	})
	return r
}

func serve(r *gin.Engine, target string) {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set(RequestIDHeader, "test-req-id-789")
	r.ServeHTTP(httptest.NewRecorder(), req)
}

func TestLogger_LevelFollowsStatus(t *testing.T) {
	tests := []struct {
		path      string
		wantLevel string
	}{
		{"/ok", "level=INFO"},
		{"/not-found", "level=WARN"},
		{"/error", "level=ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			var logBuf bytes.Buffer
			serve(setupLoggerRouter(newTestLogger(&logBuf), LoggerConfig{}), tt.path)

			if !strings.Contains(logBuf.String(), tt.wantLevel) {
				t.Errorf("expected %s, got:\n%s", tt.wantLevel, logBuf.String())
			}
		})
	}
}

func TestLogger_ContainsExpectedFields(t *testing.T) {
	var logBuf bytes.Buffer
	serve(setupLoggerRouter(newTestLogger(&logBuf), LoggerConfig{}), "/ok?_limit=10&_start=20")

	out := logBuf.String()
	for _, field := range []string{"method=GET", "path=/ok", "status=200", "size=2", "latency=", "client_ip=", "query="} {
		if !strings.Contains(out, field) {
			t.Errorf("expected log to contain %q, got:\n%s", field, out)
		}
	}
}

func TestLogger_SkipPaths(t *testing.T) {
	var logBuf bytes.Buffer
	r := setupLoggerRouter(newTestLogger(&logBuf), LoggerConfig{SkipPaths: []string{"/health", "/error"}})

	serve(r, "/health")
	if logBuf.Len() != 0 {
		t.Errorf("expected skipped path to produce no log, got:\n%s", logBuf.String())
	}

	serve(r, "/error")
	if !strings.Contains(logBuf.String(), "path=/error") {
		t.Errorf("errors on skipped paths must still be logged, got:\n%s", logBuf.String())
	}
}

func TestLogger_IncludesRequestIDFromContext(t *testing.T) {
	var logBuf bytes.Buffer
	log, err := logger.New(
		logger.WithConsoleWriter(&logBuf),
		logger.WithConsoleFormat(logger.FormatText),
		logger.WithConsoleColor(false),
		logger.WithLevel(slog.LevelDebug),
		logger.WithMiddleware(logger.ContextMiddleware()),
	)
	if err != nil {
		t.Fatalf("logger.New error: %v", err)
	}
	defer log.Close()

	serve(setupLoggerRouter(log.Logger, LoggerConfig{}), "/ok")

	if !strings.Contains(logBuf.String(), "test-req-id-789") {
		t.Errorf("expected log to contain request_id 'test-req-id-789', got:\n%s", logBuf.String())
	}
}
