package dto

import "time"

// Response is the envelope every API endpoint returns. Exactly one of
// Data and Error is set.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// ErrorInfo represents error details
type ErrorInfo struct {
	Code      string             `json:"code"`
	Message   string             `json:"message"`
	RequestID string             `json:"request_id,omitempty"`
	TraceID   string             `json:"trace_id,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
	Details   []ValidationDetail `json:"details,omitempty"`
	Help      string             `json:"help,omitempty"`
}

// ValidationDetail describes a single field-level validation failure
type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Meta represents pagination metadata
type Meta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// NewSuccessResponse creates a success response
func NewSuccessResponse(data interface{}) Response {
	return Response{Success: true, Data: data}
}

// NewSuccessResponseWithMeta creates a success response with pagination meta
func NewSuccessResponseWithMeta(data interface{}, total int64, page, pageSize int) Response {
	if pageSize <= 0 {
		pageSize = 20
	}
	if page < 1 {
		page = 1
	}

	totalPages := (int(total) + pageSize - 1) / pageSize
	resp := NewSuccessResponse(data)
	resp.Meta = &Meta{
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
	return resp
}

// errorResponse stamps the timestamp and wraps the info in a failure
// envelope. All error constructors funnel through it.
func errorResponse(info ErrorInfo) Response {
	info.Timestamp = time.Now().UTC()
	return Response{Success: false, Error: &info}
}

// NewErrorResponse creates an error response. Domain error codes are
// normalized to the standardized ERR_* catalog.
func NewErrorResponse(code, message string) Response {
	return errorResponse(ErrorInfo{
		Code:    NormalizeErrorCode(code),
		Message: message,
	})
}

// NewErrorResponseWithRequestID creates an error response carrying the
// request correlation ID
func NewErrorResponseWithRequestID(code, message, requestID string) Response {
	return errorResponse(ErrorInfo{
		Code:      NormalizeErrorCode(code),
		Message:   message,
		RequestID: requestID,
	})
}

// NewValidationErrorResponse creates an error response with per-field
// validation details
func NewValidationErrorResponse(message, requestID string, details []ValidationDetail) Response {
	return errorResponse(ErrorInfo{
		Code:      ErrCodeValidation,
		Message:   message,
		RequestID: requestID,
		Details:   details,
	})
}

// NewErrorResponseWithHelp creates an error response with a help hint for
// the caller
func NewErrorResponseWithHelp(code, message, requestID, help string) Response {
	return errorResponse(ErrorInfo{
		Code:      NormalizeErrorCode(code),
		Message:   message,
		RequestID: requestID,
		Help:      help,
	})
}
