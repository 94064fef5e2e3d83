package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/domain/tuition"
	"github.com/schoolerp/backend/internal/infrastructure/logger"
	"github.com/schoolerp/backend/internal/interfaces/http/dto"
	"github.com/schoolerp/backend/internal/interfaces/http/middleware"
)

// RequestIDKey is the context key for request ID
const RequestIDKey = "X-Request-ID"

// BaseHandler provides common handler utilities
type BaseHandler struct{}

func getRequestID(c *gin.Context) string {
	if id := c.GetString(RequestIDKey); id != "" {
		return id
	}
	return c.GetHeader(RequestIDKey)
}

// getRecordedBy extracts the authenticated operator's username. Payment
// records always carry the identity from the token, never client input
func getRecordedBy(c *gin.Context) (string, error) {
	username := middleware.GetJWTUsername(c)
	if username == "" {
		return "", errors.New("username not found in context")
	}
	return username, nil
}

// Success responders.

func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// respondError stamps correlation IDs on the response before writing it.
// The trace ID, when a sampled span is active, lets support match a
// bursar's error report to the trace.
func respondError(c *gin.Context, statusCode int, resp dto.Response) {
	if resp.Error != nil {
		resp.Error.TraceID = logger.GetTraceID(c.Request.Context())
	}
	c.JSON(statusCode, resp)
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	respondError(c, statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// ErrorWithCode sends an error response, deriving status code from error code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// Status shorthands. Each pairs a status with its catalog code.

func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

func (h *BaseHandler) Unauthorized(c *gin.Context, message string) {
	h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, message)
}

func (h *BaseHandler) Forbidden(c *gin.Context, message string) {
	h.Error(c, http.StatusForbidden, dto.ErrCodeForbidden, message)
}

func (h *BaseHandler) Conflict(c *gin.Context, message string) {
	h.Error(c, http.StatusConflict, dto.ErrCodeConflict, message)
}

// UnprocessableEntity takes the code from the caller: 422s span several
// business rules.
func (h *BaseHandler) UnprocessableEntity(c *gin.Context, code, message string) {
	h.Error(c, http.StatusUnprocessableEntity, code, message)
}

func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

func (h *BaseHandler) TooManyRequests(c *gin.Context, message string) {
	h.Error(c, http.StatusTooManyRequests, dto.ErrCodeRateLimited, message)
}

// ValidationError sends a 400 validation error response with details
func (h *BaseHandler) ValidationError(c *gin.Context, details []dto.ValidationDetail) {
	respondError(c, http.StatusBadRequest, dto.NewValidationErrorResponse(
		"Request validation failed",
		getRequestID(c),
		details,
	))
}

// respondDomainError writes a normalized domain error; it reports false
// when err is not a DomainError.
func respondDomainError(c *gin.Context, err error) bool {
	var domainErr *shared.DomainError
	if !errors.As(err, &domainErr) {
		return false
	}
	code := dto.NormalizeErrorCode(domainErr.Code)
	respondError(c, dto.GetHTTPStatus(code),
		dto.NewErrorResponseWithRequestID(code, domainErr.Message, getRequestID(c)))
	return true
}

// HandleDomainError converts domain errors to HTTP responses
func (h *BaseHandler) HandleDomainError(c *gin.Context, err error) {
	if !respondDomainError(c, err) {
		h.InternalError(c, "An unexpected error occurred")
	}
}

// HandleError converts both domain and standard errors to HTTP responses
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	// Overpayment rejections carry the exact maximum still payable
	var overpayErr *tuition.OverpaymentError
	if errors.As(err, &overpayErr) {
		maxAllowed := overpayErr.MaxAllowed.StringFixed(2)
		resp := dto.NewErrorResponseWithHelp(dto.ErrCodeOverpayment, overpayErr.Error(), getRequestID(c),
			"Retry with an amount no greater than "+maxAllowed)
		resp.Error.Details = []dto.ValidationDetail{{
			Field:   "amount_paid",
			Message: "Maximum allowed payment is " + maxAllowed,
		}}
		respondError(c, dto.GetHTTPStatus(dto.ErrCodeOverpayment), resp)
		return
	}

	h.HandleDomainError(c, err)
}
