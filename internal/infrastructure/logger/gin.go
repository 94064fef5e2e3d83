package logger

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Probe endpoints are polled constantly and would drown the request log;
// they are only logged when something went wrong.
var quietPaths = map[string]bool{
	"/health":             true,
	"/api/v1/system/ping": true,
}

// requestIDFrom reads the request ID placed in the gin context by the
// RequestID middleware. Empty when the middleware did not run.
func requestIDFrom(c *gin.Context) string {
	id, _ := c.Get("request_id")
	s, _ := id.(string)
	return s
}

// GinMiddleware returns a gin middleware that logs HTTP requests. It
// also stores a request-scoped logger in the gin context under
// "logger" for handlers to retrieve via GetGinLogger.
func GinMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		reqLogger := logger.With(
			zap.String("request_id", requestIDFrom(c)),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
		)
		c.Set("logger", reqLogger)

		c.Next()

		status := c.Writer.Status()
		if quietPaths[path] && status < 400 {
			return
		}

		fields := make([]zap.Field, 0, 7)
		fields = append(fields,
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
			zap.Int("body_size", c.Writer.Size()),
		)
		if query != "" {
			fields = append(fields, zap.String("query", query))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
		}

		level := zap.InfoLevel
		switch {
		case status >= 500:
			level = zap.ErrorLevel
		case status >= 400:
			level = zap.WarnLevel
		}
		reqLogger.Log(level, "HTTP Request", fields...)
	}
}

// Recovery returns a gin middleware that recovers from panics and logs them
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			logger.Error("Panic recovered",
				zap.String("request_id", requestIDFrom(c)),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Any("error", recovered),
				zap.Stack("stacktrace"),
			)
			c.AbortWithStatus(http.StatusInternalServerError)
		}()
		c.Next()
	}
}

// GetGinLogger retrieves the request-scoped logger from gin context,
// falling back to a no-op logger outside the middleware chain
func GetGinLogger(c *gin.Context) *zap.Logger {
	if logger, exists := c.Get("logger"); exists {
		if l, ok := logger.(*zap.Logger); ok {
			return l
		}
	}
	return zap.NewNop()
}
