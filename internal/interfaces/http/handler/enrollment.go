package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	enrollmentapp "github.com/schoolerp/backend/internal/application/enrollment"
	"github.com/schoolerp/backend/internal/domain/shared"
)

// EnrollmentHandler handles enrollment API endpoints
type EnrollmentHandler struct {
	BaseHandler
	enrollmentService *enrollmentapp.Service
}

// NewEnrollmentHandler creates a new EnrollmentHandler
func NewEnrollmentHandler(enrollmentService *enrollmentapp.Service) *EnrollmentHandler {
	return &EnrollmentHandler{
		enrollmentService: enrollmentService,
	}
}

// ListEnrollmentsRequest represents the list query parameters
type ListEnrollmentsRequest struct {
	Session  string `form:"session" binding:"required,academic_session"`
	ClassID  string `form:"class_id"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size" binding:"omitempty,max=100"`
}

// Enroll enrolls a pupil in a class for a session
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	var req enrollmentapp.EnrollPupilRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	record, err := h.enrollmentService.Enroll(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, record)
}

// GetByID gets an enrollment record by ID
func (h *EnrollmentHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid enrollment ID format")
		return
	}

	record, err := h.enrollmentService.GetEnrollment(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, record)
}

// GetForPupil gets a pupil's enrollment record for a session
func (h *EnrollmentHandler) GetForPupil(c *gin.Context) {
	pupilID, err := uuid.Parse(c.Param("pupil_id"))
	if err != nil {
		h.BadRequest(c, "Invalid pupil ID format")
		return
	}

	var q SessionQueryRequest
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	record, err := h.enrollmentService.GetPupilEnrollment(c.Request.Context(), pupilID, q.Session)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, record)
}

// List lists enrollments for a session, optionally narrowed to a class
func (h *EnrollmentHandler) List(c *gin.Context) {
	var req ListEnrollmentsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = 20
	}

	filter := shared.Filter{
		Page:     req.Page,
		PageSize: req.PageSize,
	}

	var (
		records []enrollmentapp.EnrollmentResponse
		total   int64
		err     error
	)
	if req.ClassID != "" {
		records, total, err = h.enrollmentService.ListByClass(c.Request.Context(), req.ClassID, req.Session, filter)
	} else {
		records, total, err = h.enrollmentService.ListBySession(c.Request.Context(), req.Session, filter)
	}
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, records, total, req.Page, req.PageSize)
}

// SetAdjustment grants or revises a pupil's fee discount or surcharge.
// Applies from the next balance computation; terms already frozen by a
// payment keep their priced totals.
func (h *EnrollmentHandler) SetAdjustment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid enrollment ID format")
		return
	}

	var req enrollmentapp.SetFeeAdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	record, err := h.enrollmentService.SetFeeAdjustment(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, record)
}

// MarkExited records the last term the pupil attends this session.
// Terms after the exit term price to zero.
func (h *EnrollmentHandler) MarkExited(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid enrollment ID format")
		return
	}

	var req enrollmentapp.MarkExitedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	record, err := h.enrollmentService.MarkExited(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, record)
}

// ReassignClass moves a pupil to another class within the session
func (h *EnrollmentHandler) ReassignClass(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid enrollment ID format")
		return
	}

	var req enrollmentapp.ReassignClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	record, err := h.enrollmentService.ReassignClass(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, record)
}
