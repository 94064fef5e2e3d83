package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	settingsapp "github.com/schoolerp/backend/internal/application/settings"
	tuitionapp "github.com/schoolerp/backend/internal/application/tuition"
	"github.com/schoolerp/backend/internal/domain/shared/valueobject"
)

// BalanceHandler handles outstanding balance and statement API endpoints
type BalanceHandler struct {
	BaseHandler
	balanceService  *tuitionapp.BalanceService
	reportService   *tuitionapp.ReportService
	settingsService *settingsapp.Service
}

// NewBalanceHandler creates a new BalanceHandler
func NewBalanceHandler(
	balanceService *tuitionapp.BalanceService,
	reportService *tuitionapp.ReportService,
	settingsService *settingsapp.Service,
) *BalanceHandler {
	return &BalanceHandler{
		balanceService:  balanceService,
		reportService:   reportService,
		settingsService: settingsService,
	}
}

// BalanceQueryRequest identifies the term to price. Session and term
// default to the school's current period when omitted.
type BalanceQueryRequest struct {
	Session string `form:"session" binding:"omitempty,academic_session"`
	Term    int    `form:"term" binding:"omitempty,min=1,max=3"`
}

// SessionQueryRequest identifies a session
type SessionQueryRequest struct {
	Session string `form:"session" binding:"required,academic_session"`
}

// Outstanding recomputes what a pupil owes for one term. Pure read;
// a pupil whose class has no fee structure comes back with a zero
// amount and a reason rather than an error
func (h *BalanceHandler) Outstanding(c *gin.Context) {
	pupilID, err := uuid.Parse(c.Param("pupil_id"))
	if err != nil {
		h.BadRequest(c, "Invalid pupil ID format")
		return
	}

	var q BalanceQueryRequest
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	if q.Session == "" || q.Term == 0 {
		current, err := h.settingsService.Get(c.Request.Context())
		if err != nil {
			h.HandleError(c, err)
			return
		}
		if q.Session == "" {
			q.Session = current.CurrentSession
		}
		if q.Term == 0 {
			q.Term = current.CurrentTerm
		}
	}

	session, err := valueobject.ParseSession(q.Session)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	term, err := valueobject.NewTerm(q.Term)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	result, err := h.balanceService.OutstandingBalance(c.Request.Context(), tuitionapp.BalanceQuery{
		PupilID: pupilID,
		Session: session,
		Term:    term,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// SessionBalances recomputes a pupil's balance for every term of the
// session inside the enrollment window
func (h *BalanceHandler) SessionBalances(c *gin.Context) {
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

	session, err := valueobject.ParseSession(q.Session)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	results, err := h.balanceService.SessionBalances(c.Request.Context(), pupilID, session)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, results)
}

// Summaries returns a pupil's stored summary rows for a session: the
// account state as the ledger last wrote it, arrears frozen. Terms that
// have never taken a payment have no row.
func (h *BalanceHandler) Summaries(c *gin.Context) {
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

	session, err := valueobject.ParseSession(q.Session)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	summaries, err := h.balanceService.PupilSummaries(c.Request.Context(), pupilID, session)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, summaries)
}

// ListSummaries pages through the stored summaries of one term,
// optionally narrowed to a class or payment status
func (h *BalanceHandler) ListSummaries(c *gin.Context) {
	var filter tuitionapp.SummaryListFilter
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

	summaries, total, err := h.balanceService.ListSummaries(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, summaries, total, filter.Page, filter.PageSize)
}

// Statement builds a pupil's full session statement: per-term positions
// plus the payment history
func (h *BalanceHandler) Statement(c *gin.Context) {
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

	session, err := valueobject.ParseSession(q.Session)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	report, err := h.reportService.PupilStatement(c.Request.Context(), pupilID, session)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, report)
}
