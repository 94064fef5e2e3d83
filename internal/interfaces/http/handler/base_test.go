package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/domain/tuition"
	"github.com/schoolerp/backend/internal/interfaces/http/dto"
	"github.com/schoolerp/backend/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

// setJWTContext simulates an authenticated request without a real token.
func setJWTContext(c *gin.Context, userID uuid.UUID, username string) {
	c.Set(middleware.JWTUserIDKey, userID.String())
	c.Set(middleware.JWTUsernameKey, username)
}

// invoke runs fn against a fresh test context and decodes the JSON body.
func invoke(t *testing.T, fn func(*BaseHandler, *gin.Context)) (int, dto.Response) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/", nil)

	fn(&BaseHandler{}, c)

	var resp dto.Response
	if len(w.Body.Bytes()) > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w.Code, resp
}

func TestGetRequestID(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*gin.Context)
		want  string
	}{
		{"from context string", func(c *gin.Context) {
			c.Set(RequestIDKey, "ctx-request-id")
		}, "ctx-request-id"},
		{"from header when context empty", func(c *gin.Context) {
			c.Request.Header.Set(RequestIDKey, "header-request-id")
		}, "header-request-id"},
		{"empty when not set", func(c *gin.Context) {}, ""},
		{"context takes precedence over header", func(c *gin.Context) {
			c.Set(RequestIDKey, "ctx-id")
			c.Request.Header.Set(RequestIDKey, "header-id")
		}, "ctx-id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest("GET", "/", nil)
			tt.setup(c)
			assert.Equal(t, tt.want, getRequestID(c))
		})
	}
}

func TestGetRecordedBy(t *testing.T) {
	t.Run("returns username from JWT context", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("POST", "/", nil)
		setJWTContext(c, uuid.New(), "bursar.adeyemi")

		username, err := getRecordedBy(c)
		require.NoError(t, err)
		assert.Equal(t, "bursar.adeyemi", username)
	})

	t.Run("fails when no authenticated identity", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("POST", "/", nil)

		_, err := getRecordedBy(c)
		assert.Error(t, err)
	})
}

func TestBaseHandlerSuccessResponses(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		code, resp := invoke(t, func(h *BaseHandler, c *gin.Context) {
			h.Success(c, map[string]string{"receipt_no": "RCP-20260115-0042-7F"})
		})
		assert.Equal(t, http.StatusOK, code)
		assert.True(t, resp.Success)
	})

	t.Run("SuccessWithMeta", func(t *testing.T) {
		code, resp := invoke(t, func(h *BaseHandler, c *gin.Context) {
			h.SuccessWithMeta(c, []string{"p-1", "p-2"}, 100, 1, 10)
		})
		assert.Equal(t, http.StatusOK, code)
		require.NotNil(t, resp.Meta)
		assert.Equal(t, int64(100), resp.Meta.Total)
		assert.Equal(t, 10, resp.Meta.TotalPages)
	})

	t.Run("Created", func(t *testing.T) {
		code, resp := invoke(t, func(h *BaseHandler, c *gin.Context) {
			h.Created(c, map[string]string{"id": "123"})
		})
		assert.Equal(t, http.StatusCreated, code)
		assert.True(t, resp.Success)
	})

	t.Run("NoContent", func(t *testing.T) {
		router := gin.New()
		router.DELETE("/fees/:id", func(c *gin.Context) {
			(&BaseHandler{}).NoContent(c)
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("DELETE", "/fees/42", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.Bytes())
	})
}

func TestBaseHandlerErrorMethods(t *testing.T) {
	tests := []struct {
		name     string
		method   func(*BaseHandler, *gin.Context)
		wantCode int
		wantErr  string
	}{
		{"BadRequest", func(h *BaseHandler, c *gin.Context) { h.BadRequest(c, "bad") }, http.StatusBadRequest, dto.ErrCodeBadRequest},
		{"NotFound", func(h *BaseHandler, c *gin.Context) { h.NotFound(c, "missing") }, http.StatusNotFound, dto.ErrCodeNotFound},
		{"Unauthorized", func(h *BaseHandler, c *gin.Context) { h.Unauthorized(c, "no token") }, http.StatusUnauthorized, dto.ErrCodeUnauthorized},
		{"Forbidden", func(h *BaseHandler, c *gin.Context) { h.Forbidden(c, "denied") }, http.StatusForbidden, dto.ErrCodeForbidden},
		{"Conflict", func(h *BaseHandler, c *gin.Context) { h.Conflict(c, "conflict") }, http.StatusConflict, dto.ErrCodeConflict},
		{"InternalError", func(h *BaseHandler, c *gin.Context) { h.InternalError(c, "boom") }, http.StatusInternalServerError, dto.ErrCodeInternal},
		{"TooManyRequests", func(h *BaseHandler, c *gin.Context) { h.TooManyRequests(c, "slow down") }, http.StatusTooManyRequests, dto.ErrCodeRateLimited},
		{"UnprocessableEntity", func(h *BaseHandler, c *gin.Context) {
			h.UnprocessableEntity(c, dto.ErrCodeBusinessRule, "rule violated")
		}, http.StatusUnprocessableEntity, dto.ErrCodeBusinessRule},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := invoke(t, tt.method)
			assert.Equal(t, tt.wantCode, code)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantErr, resp.Error.Code)
		})
	}
}

func TestBaseHandlerErrorCorrelation(t *testing.T) {
	t.Run("request id from context", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest("GET", "/", nil)
		c.Set(RequestIDKey, "test-request-123")

		(&BaseHandler{}).BadRequest(c, "Invalid request")

		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "test-request-123", resp.Error.RequestID)
		assert.Empty(t, resp.Error.TraceID, "no span active")
	})

	t.Run("trace id from active span", func(t *testing.T) {
		traceID, err := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
		require.NoError(t, err)
		spanID, err := trace.SpanIDFromHex("0102030405060708")
		require.NoError(t, err)
		sc := trace.NewSpanContext(trace.SpanContextConfig{
			TraceID:    traceID,
			SpanID:     spanID,
			TraceFlags: trace.FlagsSampled,
		})

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		req := httptest.NewRequest("GET", "/", nil)
		c.Request = req.WithContext(trace.ContextWithSpanContext(req.Context(), sc))

		(&BaseHandler{}).NotFound(c, "pupil not found")

		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, traceID.String(), resp.Error.TraceID)
	})
}

func TestBaseHandlerErrorWithCode(t *testing.T) {
	code, resp := invoke(t, func(h *BaseHandler, c *gin.Context) {
		h.ErrorWithCode(c, dto.ErrCodeNoFeeStructure, "No fee structure for class")
	})

	// business rule errors map to 422
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, dto.ErrCodeNoFeeStructure, resp.Error.Code)
}

func TestBaseHandlerValidationError(t *testing.T) {
	code, resp := invoke(t, func(h *BaseHandler, c *gin.Context) {
		c.Set(RequestIDKey, "val-req-456")
		h.ValidationError(c, []dto.ValidationDetail{
			{Field: "session", Message: "Invalid format"},
			{Field: "amount_paid", Message: "Required"},
		})
	})

	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, "val-req-456", resp.Error.RequestID)
	assert.Len(t, resp.Error.Details, 2)
}

func TestBaseHandlerHandleDomainError(t *testing.T) {
	tests := []struct {
		err      error
		wantCode int
		wantErr  string
	}{
		{shared.ErrNotFound, http.StatusNotFound, dto.ErrCodeNotFound},
		{shared.ErrAlreadyExists, http.StatusConflict, dto.ErrCodeAlreadyExists},
		{shared.ErrInvalidInput, http.StatusBadRequest, dto.ErrCodeInvalidInput},
		{shared.ErrUnauthorized, http.StatusUnauthorized, dto.ErrCodeUnauthorized},
		{shared.ErrForbidden, http.StatusForbidden, dto.ErrCodeForbidden},
		{shared.ErrInvalidState, http.StatusUnprocessableEntity, dto.ErrCodeInvalidState},
		{shared.ErrConcurrencyConflict, http.StatusConflict, dto.ErrCodeConcurrencyConflict},
		{shared.ErrNoFeeStructure, http.StatusUnprocessableEntity, dto.ErrCodeNoFeeStructure},
		{shared.ErrOverpayment, http.StatusUnprocessableEntity, dto.ErrCodeOverpayment},
	}

	for _, tt := range tests {
		t.Run(tt.wantErr, func(t *testing.T) {
			code, resp := invoke(t, func(h *BaseHandler, c *gin.Context) {
				h.HandleDomainError(c, tt.err)
			})
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantErr, resp.Error.Code)
		})
	}

	t.Run("non-domain error maps to 500", func(t *testing.T) {
		code, resp := invoke(t, func(h *BaseHandler, c *gin.Context) {
			h.HandleDomainError(c, assert.AnError)
		})
		assert.Equal(t, http.StatusInternalServerError, code)
		assert.Equal(t, dto.ErrCodeInternal, resp.Error.Code)
		assert.Equal(t, "An unexpected error occurred", resp.Error.Message)
	})
}

func TestBaseHandlerHandleError(t *testing.T) {
	t.Run("nil error writes nothing", func(t *testing.T) {
		code, resp := invoke(t, func(h *BaseHandler, c *gin.Context) {
			h.HandleError(c, nil)
		})
		assert.Equal(t, http.StatusOK, code)
		assert.Nil(t, resp.Error)
	})

	t.Run("domain error", func(t *testing.T) {
		code, _ := invoke(t, func(h *BaseHandler, c *gin.Context) {
			h.HandleError(c, shared.ErrNotFound)
		})
		assert.Equal(t, http.StatusNotFound, code)
	})

	t.Run("standard error", func(t *testing.T) {
		code, _ := invoke(t, func(h *BaseHandler, c *gin.Context) {
			h.HandleError(c, assert.AnError)
		})
		assert.Equal(t, http.StatusInternalServerError, code)
	})

	t.Run("wrapped domain error", func(t *testing.T) {
		code, resp := invoke(t, func(h *BaseHandler, c *gin.Context) {
			h.HandleError(c, fmt.Errorf("loading summary: %w", shared.ErrNotFound))
		})
		assert.Equal(t, http.StatusNotFound, code)
		assert.Equal(t, dto.ErrCodeNotFound, resp.Error.Code)
	})

	t.Run("overpayment rejection carries the maximum allowed", func(t *testing.T) {
		code, resp := invoke(t, func(h *BaseHandler, c *gin.Context) {
			h.HandleError(c, &tuition.OverpaymentError{
				Attempted:  decimal.NewFromInt(60000),
				MaxAllowed: decimal.NewFromInt(45500),
			})
		})

		assert.Equal(t, http.StatusUnprocessableEntity, code)
		assert.Equal(t, dto.ErrCodeOverpayment, resp.Error.Code)
		require.Len(t, resp.Error.Details, 1)
		assert.Equal(t, "amount_paid", resp.Error.Details[0].Field)
		assert.Contains(t, resp.Error.Details[0].Message, "45500.00")
	})
}
