package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"
)

func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	t.Cleanup(func() {
		_ = tp.Shutdown(t.Context())
	})

	return sr
}

// balanceRouter serves the pupil balance route with the given status and
// middleware chain, mirroring the production order.
func balanceRouter(status int, mws ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	for _, mw := range mws {
		router.Use(mw)
	}
	router.GET("/api/v1/pupils/:pupil_id/balance", func(c *gin.Context) {
		c.JSON(status, gin.H{"pupil_id": c.Param("pupil_id")})
	})
	return router
}

func getBalance(router *gin.Engine, header map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/pupils/p-204/balance", nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	router.ServeHTTP(w, req)
	return w
}

func findBalanceSpan(t *testing.T, sr *tracetest.SpanRecorder) sdktrace.ReadOnlySpan {
	t.Helper()
	for _, span := range sr.Ended() {
		if span.Name() == "GET /api/v1/pupils/:pupil_id/balance" {
			return span
		}
	}
	t.Fatal("balance span not recorded")
	return nil
}

func spanAttr(span sdktrace.ReadOnlySpan, key string) (string, bool) {
	for _, attr := range span.Attributes() {
		if string(attr.Key) == key {
			return attr.Value.AsString(), true
		}
	}
	return "", false
}

func TestTracingWithConfig_Disabled(t *testing.T) {
	tracing := TracingWithConfig(TracingConfig{Enabled: false, ServiceName: "tuition-ledger"})
	w := getBalance(balanceRouter(http.StatusOK, tracing), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTracingWithConfig_RecordsSpan(t *testing.T) {
	sr := setupTestTracer(t)
	tracing := TracingWithConfig(TracingConfig{Enabled: true, ServiceName: "tuition-ledger"})

	w := getBalance(balanceRouter(http.StatusOK, tracing), nil)
	require.Equal(t, http.StatusOK, w.Code)

	span := findBalanceSpan(t, sr)
	assert.NotNil(t, span)
}

func TestTracingWithConfig_RequestIDAttribute(t *testing.T) {
	sr := setupTestTracer(t)
	tracing := TracingWithConfig(TracingConfig{Enabled: true, ServiceName: "tuition-ledger"})

	router := balanceRouter(http.StatusOK, RequestID(), tracing, TracingAttributeInjector())
	w := getBalance(router, map[string]string{"X-Request-ID": "req-7781"})
	require.Equal(t, http.StatusOK, w.Code)

	got, ok := spanAttr(findBalanceSpan(t, sr), "request_id")
	require.True(t, ok, "request_id attribute missing")
	assert.Equal(t, "req-7781", got)
}

func TestTracingWithConfig_JWTClaimAttributes(t *testing.T) {
	sr := setupTestTracer(t)
	tracing := TracingWithConfig(TracingConfig{Enabled: true, ServiceName: "tuition-ledger"})
	claims := func(c *gin.Context) {
		c.Set(JWTUserIDKey, "user-123")
		c.Set(JWTUsernameKey, "bursar.ngozi")
		c.Next()
	}

	router := balanceRouter(http.StatusOK, tracing, claims, TracingAttributeInjector())
	w := getBalance(router, nil)
	require.Equal(t, http.StatusOK, w.Code)

	span := findBalanceSpan(t, sr)
	userID, ok := spanAttr(span, "user_id")
	require.True(t, ok, "user_id attribute missing")
	assert.Equal(t, "user-123", userID)

	username, ok := spanAttr(span, "username")
	require.True(t, ok, "username attribute missing")
	assert.Equal(t, "bursar.ngozi", username)
}

func TestSpanErrorMarker(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		description string
	}{
		{"not found", http.StatusNotFound, "Not Found"},
		{"unauthorized", http.StatusUnauthorized, "Unauthorized"},
		{"forbidden", http.StatusForbidden, "Forbidden"},
		{"bad request", http.StatusBadRequest, "Client Error"},
		{"overpayment rejection", http.StatusUnprocessableEntity, "Client Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sr := setupTestTracer(t)
			tracing := TracingWithConfig(TracingConfig{Enabled: true, ServiceName: "tuition-ledger"})

			w := getBalance(balanceRouter(tt.status, tracing, SpanErrorMarker()), nil)
			require.Equal(t, tt.status, w.Code)

			span := findBalanceSpan(t, sr)
			assert.Equal(t, codes.Error, span.Status().Code)
			assert.Equal(t, tt.description, span.Status().Description)
		})
	}

	t.Run("server error", func(t *testing.T) {
		sr := setupTestTracer(t)
		tracing := TracingWithConfig(TracingConfig{Enabled: true, ServiceName: "tuition-ledger"})

		w := getBalance(balanceRouter(http.StatusInternalServerError, tracing, SpanErrorMarker()), nil)
		require.Equal(t, http.StatusInternalServerError, w.Code)

		// otelgin may set the description first, so assert only the code
		span := findBalanceSpan(t, sr)
		assert.Equal(t, codes.Error, span.Status().Code)
	})

	t.Run("success leaves status unset", func(t *testing.T) {
		sr := setupTestTracer(t)
		tracing := TracingWithConfig(TracingConfig{Enabled: true, ServiceName: "tuition-ledger"})

		w := getBalance(balanceRouter(http.StatusOK, tracing, SpanErrorMarker()), nil)
		require.Equal(t, http.StatusOK, w.Code)

		span := findBalanceSpan(t, sr)
		assert.NotEqual(t, codes.Error, span.Status().Code)
	})

	t.Run("noop provider does not panic", func(t *testing.T) {
		otel.SetTracerProvider(noop.NewTracerProvider())

		w := getBalance(balanceRouter(http.StatusInternalServerError, SpanErrorMarker()), nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestGetTraceRequestID(t *testing.T) {
	newCtx := func() *gin.Context {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		return c
	}

	t.Run("prefers context value", func(t *testing.T) {
		c := newCtx()
		c.Set("request_id", "ctx-id")
		c.Request.Header.Set("X-Request-ID", "header-id")
		assert.Equal(t, "ctx-id", getTraceRequestID(c))
	})

	t.Run("falls back to header", func(t *testing.T) {
		c := newCtx()
		c.Request.Header.Set("X-Request-ID", "header-id")
		assert.Equal(t, "header-id", getTraceRequestID(c))
	})

	t.Run("truncates oversized header", func(t *testing.T) {
		c := newCtx()
		c.Request.Header.Set("X-Request-ID", strings.Repeat("x", 300))
		assert.Len(t, getTraceRequestID(c), MaxRequestIDLength)
	})

	t.Run("empty when absent", func(t *testing.T) {
		assert.Empty(t, getTraceRequestID(newCtx()))
	})
}

func TestTracingAttributeInjector_NoSpan(t *testing.T) {
	// no tracer provider set up, so there is no recording span
	w := getBalance(balanceRouter(http.StatusOK, TracingAttributeInjector()), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
