package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/schoolerp/backend/internal/infrastructure/telemetry"
)

// ProfilingConfig configures the profiling label middleware.
type ProfilingConfig struct {
	Enabled bool
	// SkipPaths are exact paths left unlabeled (health checks etc.).
	SkipPaths []string
	// SkipPathPrefixes are path prefixes left unlabeled.
	SkipPathPrefixes []string
}

// DefaultProfilingConfig skips the operational endpoints.
func DefaultProfilingConfig() ProfilingConfig {
	return ProfilingConfig{
		Enabled:          true,
		SkipPaths:        []string{"/health", "/healthz", "/ready", "/metrics"},
		SkipPathPrefixes: []string{"/debug"},
	}
}

// ProfilingWithConfig tags each request's profile samples with
// controller, route and method so flame graphs in Pyroscope can be
// sliced per endpoint. All three labels are low cardinality: the route
// label is gin's matched pattern, never the raw request path.
func ProfilingWithConfig(cfg ProfilingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return passthrough
	}

	return func(c *gin.Context) {
		if skipProfiling(cfg, c.Request.URL.Path) {
			c.Next()
			return
		}

		route := c.FullPath()
		labels := telemetry.HTTPRequestLabels(controllerFromRoute(route), route, c.Request.Method)

		telemetry.WithProfilingLabels(c.Request.Context(), labels, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

func skipProfiling(cfg ProfilingConfig, path string) bool {
	for _, p := range cfg.SkipPaths {
		if path == p {
			return true
		}
	}
	for _, prefix := range cfg.SkipPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// controllerFromRoute derives the resource name from a route pattern:
// the first segment after /api/<version> that is not a path parameter,
// e.g. "/api/v1/pupils/:pupil_id/balance" yields "pupils".
func controllerFromRoute(route string) string {
	for _, part := range strings.Split(route, "/") {
		if part == "" || part == "api" || isVersionSegment(part) {
			continue
		}
		if strings.HasPrefix(part, ":") || strings.HasPrefix(part, "{") {
			continue
		}
		return part
	}
	return ""
}

// isVersionSegment reports whether a path segment looks like an API
// version marker such as "v1".
func isVersionSegment(segment string) bool {
	if len(segment) < 2 || (segment[0] != 'v' && segment[0] != 'V') {
		return false
	}
	for i := 1; i < len(segment); i++ {
		if segment[i] < '0' || segment[i] > '9' {
			return false
		}
	}
	return true
}
