package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	tuitionapp "github.com/schoolerp/backend/internal/application/tuition"
	"github.com/schoolerp/backend/internal/domain/shared/valueobject"
	"github.com/schoolerp/backend/internal/domain/tuition"
)

// IdempotencyKeyHeader carries the client's de-duplication key for
// retried payment submissions
const IdempotencyKeyHeader = "Idempotency-Key"

// PaymentHandler handles payment ledger API endpoints
type PaymentHandler struct {
	BaseHandler
	paymentService *tuitionapp.PaymentService
	reportService  *tuitionapp.ReportService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(paymentService *tuitionapp.PaymentService, reportService *tuitionapp.ReportService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		reportService:  reportService,
	}
}

// RecordPaymentRequest represents a request to record a tuition payment
type RecordPaymentRequest struct {
	PupilID string          `json:"pupil_id" binding:"required,uuid"`
	Session string          `json:"session" binding:"required,academic_session"`
	Term    int             `json:"term" binding:"required,min=1,max=3"`
	Amount  decimal.Decimal `json:"amount" binding:"required"`
	Method  string          `json:"method" binding:"required,oneof=cash bank_transfer pos cheque online"`
	Notes   string          `json:"notes" binding:"max=500"`
}

// Record records a payment against a pupil's term. The recording
// identity comes from the authenticated token, never the request body.
// An Idempotency-Key header de-duplicates retried submissions.
func (h *PaymentHandler) Record(c *gin.Context) {
	recordedBy, err := getRecordedBy(c)
	if err != nil {
		h.Unauthorized(c, "Authenticated operator identity is required to record payments")
		return
	}

	var req RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	pupilID, err := uuid.Parse(req.PupilID)
	if err != nil {
		h.BadRequest(c, "Invalid pupil ID format")
		return
	}
	session, err := valueobject.ParseSession(req.Session)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	term, err := valueobject.NewTerm(req.Term)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	result, err := h.paymentService.RecordPayment(c.Request.Context(), tuitionapp.RecordPaymentRequest{
		PupilID:        pupilID,
		Session:        session,
		Term:           term,
		Amount:         req.Amount,
		Method:         tuition.PaymentMethod(req.Method),
		Notes:          req.Notes,
		RecordedBy:     recordedBy,
		IdempotencyKey: c.GetHeader(IdempotencyKeyHeader),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, result)
}

// List pages through recorded payments with optional filters
func (h *PaymentHandler) List(c *gin.Context) {
	var filter tuitionapp.TransactionListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	txns, total, err := h.reportService.ListTransactions(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, txns, total, filter.Page, filter.PageSize)
}

// GetByReceipt finds a payment transaction by its receipt number, for
// reprints and payment disputes
func (h *PaymentHandler) GetByReceipt(c *gin.Context) {
	receiptNo := c.Param("receipt_no")
	if receiptNo == "" {
		h.BadRequest(c, "Receipt number is required")
		return
	}

	txn, err := h.reportService.GetTransactionByReceipt(c.Request.Context(), receiptNo)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, txn)
}
