package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	tuitionapp "github.com/schoolerp/backend/internal/application/tuition"
	"github.com/schoolerp/backend/internal/domain/shared"
)

// FeeStructureHandler handles fee structure API endpoints
type FeeStructureHandler struct {
	BaseHandler
	feeService *tuitionapp.FeeStructureService
}

// NewFeeStructureHandler creates a new FeeStructureHandler
func NewFeeStructureHandler(feeService *tuitionapp.FeeStructureService) *FeeStructureHandler {
	return &FeeStructureHandler{
		feeService: feeService,
	}
}

// ListFeeStructuresRequest represents the list query parameters
type ListFeeStructuresRequest struct {
	Session  string `form:"session" binding:"required,academic_session"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size" binding:"omitempty,max=100"`
}

// Create defines the fee structure for a class in a session. A class
// carries exactly one structure per session.
func (h *FeeStructureHandler) Create(c *gin.Context) {
	var req tuitionapp.DefineFeeStructureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	fs, err := h.feeService.DefineFeeStructure(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, fs)
}

// GetByID gets a fee structure by ID
func (h *FeeStructureHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid fee structure ID format")
		return
	}

	fs, err := h.feeService.GetFeeStructure(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, fs)
}

// GetForClass gets the fee structure for a class in a session
func (h *FeeStructureHandler) GetForClass(c *gin.Context) {
	classID := c.Param("class_id")
	if classID == "" {
		h.BadRequest(c, "Class ID is required")
		return
	}

	var q SessionQueryRequest
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	fs, err := h.feeService.GetFeeStructureForClass(c.Request.Context(), classID, q.Session)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, fs)
}

// List lists the fee structures defined for a session
func (h *FeeStructureHandler) List(c *gin.Context) {
	var req ListFeeStructuresRequest
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

	structures, total, err := h.feeService.ListFeeStructures(c.Request.Context(), req.Session, shared.Filter{
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, structures, total, req.Page, req.PageSize)
}

// Update replaces the fee lines of an existing structure. Terms already
// frozen into payment summaries keep the totals they were priced with.
func (h *FeeStructureHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid fee structure ID format")
		return
	}

	var req tuitionapp.UpdateFeeStructureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	fs, err := h.feeService.UpdateFeeStructure(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, fs)
}

// Delete removes a fee structure. Payment summaries already priced from
// it are unaffected.
func (h *FeeStructureHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid fee structure ID format")
		return
	}

	if err := h.feeService.DeleteFeeStructure(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}
