package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"runtime/pprof"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/schoolerp/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// serveProfiled registers route behind the profiling middleware, issues
// a GET for path and returns the pprof labels the handler observed.
func serveProfiled(t *testing.T, cfg middleware.ProfilingConfig, route, path string) map[string]string {
	t.Helper()

	seen := make(map[string]string)
	handled := false

	r := gin.New()
	r.Use(middleware.ProfilingWithConfig(cfg))
	r.GET(route, func(c *gin.Context) {
		handled = true
		for _, key := range []string{"controller", "route", "method"} {
			if v, ok := pprof.Label(c.Request.Context(), key); ok {
				seen[key] = v
			}
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, handled, "handler must run for %s", path)
	return seen
}

func TestDefaultProfilingConfig(t *testing.T) {
	cfg := middleware.DefaultProfilingConfig()

	assert.True(t, cfg.Enabled)
	assert.ElementsMatch(t, []string{"/health", "/healthz", "/ready", "/metrics"}, cfg.SkipPaths)
	assert.Equal(t, []string{"/debug"}, cfg.SkipPathPrefixes)
}

func TestProfilingMiddleware(t *testing.T) {
	t.Run("labels the matched route", func(t *testing.T) {
		seen := serveProfiled(t, middleware.DefaultProfilingConfig(),
			"/api/v1/pupils/:pupil_id/balance", "/api/v1/pupils/p-204/balance")

		assert.Equal(t, map[string]string{
			"controller": "pupils",
			"route":      "/api/v1/pupils/:pupil_id/balance",
			"method":     "GET",
		}, seen)
	})

	t.Run("disabled leaves requests unlabeled", func(t *testing.T) {
		seen := serveProfiled(t, middleware.ProfilingConfig{Enabled: false},
			"/api/v1/tuition/payments", "/api/v1/tuition/payments")

		assert.Empty(t, seen)
	})

	t.Run("skip paths are exact matches", func(t *testing.T) {
		cfg := middleware.DefaultProfilingConfig()

		assert.Empty(t, serveProfiled(t, cfg, "/health", "/health"))
		assert.NotEmpty(t, serveProfiled(t, cfg, "/health/live", "/health/live"))
	})

	t.Run("skip prefixes cover subtrees", func(t *testing.T) {
		seen := serveProfiled(t, middleware.DefaultProfilingConfig(),
			"/debug/pprof/heap", "/debug/pprof/heap")

		assert.Empty(t, seen)
	})

	t.Run("custom skip paths", func(t *testing.T) {
		cfg := middleware.ProfilingConfig{
			Enabled:          true,
			SkipPaths:        []string{"/internal/status"},
			SkipPathPrefixes: []string{"/internal/admin"},
		}

		assert.Empty(t, serveProfiled(t, cfg, "/internal/status", "/internal/status"))
		assert.Empty(t, serveProfiled(t, cfg, "/internal/admin/jobs", "/internal/admin/jobs"))
		assert.NotEmpty(t, serveProfiled(t, cfg, "/internal/reports", "/internal/reports"))
	})
}

func TestProfilingMiddleware_ControllerExtraction(t *testing.T) {
	tests := []struct {
		route      string
		path       string
		controller string
	}{
		{"/api/v1/tuition/payments", "/api/v1/tuition/payments", "tuition"},
		{"/api/v1/enrollments/:id", "/api/v1/enrollments/e-17", "enrollments"},
		{"/api/v1/pupils/:pupil_id/summaries", "/api/v1/pupils/p-204/summaries", "pupils"},
		{"/api/v2/reports/daily", "/api/v2/reports/daily", "reports"},
		{"/api/fees", "/api/fees", "fees"},
		{"/v1/classes", "/v1/classes", "classes"},
	}

	for _, tt := range tests {
		t.Run(tt.route, func(t *testing.T) {
			seen := serveProfiled(t, middleware.DefaultProfilingConfig(), tt.route, tt.path)
			assert.Equal(t, tt.controller, seen["controller"])
			assert.Equal(t, tt.route, seen["route"])
		})
	}
}

func TestProfilingMiddleware_PreservesGinContext(t *testing.T) {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("recorded_by", "bursar.adeyemi")
		c.Next()
	})
	r.Use(middleware.ProfilingWithConfig(middleware.DefaultProfilingConfig()))
	r.GET("/api/v1/tuition/payments", func(c *gin.Context) {
		v, ok := c.Get("recorded_by")
		assert.True(t, ok)
		assert.Equal(t, "bursar.adeyemi", v)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/tuition/payments", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProfilingMiddleware_ChainOrder(t *testing.T) {
	var order []string

	r := gin.New()
	r.Use(func(c *gin.Context) {
		order = append(order, "before")
		c.Next()
		order = append(order, "after")
	})
	r.Use(middleware.ProfilingWithConfig(middleware.DefaultProfilingConfig()))
	r.GET("/api/v1/tuition/payments", func(c *gin.Context) {
		order = append(order, "handler")
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/tuition/payments", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"before", "handler", "after"}, order)
}
