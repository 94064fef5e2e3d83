package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	tuitionapp "github.com/schoolerp/backend/internal/application/tuition"
)

// ReportHandler handles ledger reporting API endpoints
type ReportHandler struct {
	BaseHandler
	reportService *tuitionapp.ReportService
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(reportService *tuitionapp.ReportService) *ReportHandler {
	return &ReportHandler{
		reportService: reportService,
	}
}

// DailyCollections aggregates every payment recorded on one day.
// Accepts ?date=2006-01-02; defaults to today.
func (h *ReportHandler) DailyCollections(c *gin.Context) {
	day := time.Now()
	if dateStr := c.Query("date"); dateStr != "" {
		parsed, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			h.BadRequest(c, "Date must be in YYYY-MM-DD format")
			return
		}
		day = parsed
	}

	report, err := h.reportService.DailyCollections(c.Request.Context(), day)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, report)
}

// ClassStatus reports where every pupil in a class stands for a term
func (h *ReportHandler) ClassStatus(c *gin.Context) {
	var filter tuitionapp.ClassStatusFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	report, err := h.reportService.ClassTermStatus(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, report)
}

// OwingPupils lists every enrolled pupil still owing for a term,
// largest balance first
func (h *ReportHandler) OwingPupils(c *gin.Context) {
	var filter tuitionapp.OwingPupilsFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	pupils, err := h.reportService.OwingPupils(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, pupils)
}
