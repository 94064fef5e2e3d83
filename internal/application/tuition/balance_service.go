package tuition

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/enrollment"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/domain/shared/valueobject"
	"github.com/schoolerp/backend/internal/domain/tuition"
	"github.com/schoolerp/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// BalanceService computes the authoritative outstanding balance for a
// pupil's term. Every balance display (pupil statement, admin reports,
// payment form) calls through here rather than reading stored summaries
// directly, because stored summaries can go stale relative to enrollment
// or discount edits. The one stored value it trusts is totalPaid, which
// legitimately only exists in the payment history.
type BalanceService struct {
	enrollmentRepo enrollment.Repository
	feeRepo        tuition.FeeStructureRepository
	summaryRepo    tuition.PaymentSummaryRepository
	arrears        *tuition.ArrearsResolver
	logger         *zap.Logger
	ledgerMetrics  *telemetry.LedgerMetrics
}

// NewBalanceService creates a new BalanceService
func NewBalanceService(
	enrollmentRepo enrollment.Repository,
	feeRepo tuition.FeeStructureRepository,
	summaryRepo tuition.PaymentSummaryRepository,
	logger *zap.Logger,
) *BalanceService {
	return &BalanceService{
		enrollmentRepo: enrollmentRepo,
		feeRepo:        feeRepo,
		summaryRepo:    summaryRepo,
		arrears:        tuition.NewArrearsResolver(summaryRepo),
		logger:         logger,
	}
}

// SetLedgerMetrics sets the ledger metrics collector
func (s *BalanceService) SetLedgerMetrics(lm *telemetry.LedgerMetrics) {
	s.ledgerMetrics = lm
}

// BalanceQuery identifies the pupil term to price
type BalanceQuery struct {
	PupilID uuid.UUID
	Session valueobject.Session
	Term    valueobject.Term
}

// BalanceResult is the outstanding balance for one pupil term. When no
// fee structure is configured for the pupil's class, Computable is false,
// Reason explains why and the amounts are zero; callers treat this as
// "skip", not as a failure.
type BalanceResult struct {
	PupilID       uuid.UUID             `json:"pupil_id"`
	PupilName     string                `json:"pupil_name"`
	ClassID       string                `json:"class_id"`
	Session       string                `json:"session"`
	Term          int                   `json:"term"`
	AmountDue     decimal.Decimal       `json:"amount_due"`
	Arrears       decimal.Decimal       `json:"arrears"`
	ArrearsSource tuition.ArrearsSource `json:"arrears_source,omitempty"`
	TotalDue      decimal.Decimal       `json:"total_due"`
	TotalPaid     decimal.Decimal       `json:"total_paid"`
	Balance       decimal.Decimal       `json:"balance"`
	Status        tuition.PaymentStatus `json:"status,omitempty"`
	Computable    bool                  `json:"computable"`
	Reason        string                `json:"reason,omitempty"`
}

// OutstandingBalance recomputes what a pupil owes for a term from source
// data: enrollment window and adjustments, the class fee structure, prior
// period arrears and the recorded payment total. Pure read, no writes.
// Calling it twice with no intervening writes yields identical results.
func (s *BalanceService) OutstandingBalance(ctx context.Context, query BalanceQuery) (*BalanceResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "balance", "outstanding",
		telemetry.WithAttribute(telemetry.SpanAttrPupilID, query.PupilID.String()))
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrSession, query.Session.String(),
		telemetry.SpanAttrTerm, query.Term.Ordinal(),
	)

	if query.PupilID == uuid.Nil {
		err := shared.NewDomainError("INVALID_PUPIL", "Pupil ID cannot be empty")
		telemetry.RecordError(span, err)
		return nil, err
	}
	if query.Session.IsZero() {
		err := shared.NewDomainError("INVALID_SESSION", "Session is required")
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !query.Term.IsValid() {
		err := shared.NewDomainError("INVALID_TERM", "Term must be 1, 2 or 3")
		telemetry.RecordError(span, err)
		return nil, err
	}

	var result *BalanceResult
	var operationErr error
	telemetry.NewProfilingScope(nil).
		WithOperation(telemetry.OperationOutstandingBalance).
		Run(ctx, func(c context.Context) {
			result, operationErr = s.outstandingBalance(c, span, query)
		})
	return result, operationErr
}

func (s *BalanceService) outstandingBalance(ctx context.Context, span trace.Span, query BalanceQuery) (*BalanceResult, error) {
	record, err := s.enrollmentRepo.FindByPupilAndSession(ctx, query.PupilID, query.Session)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			err := shared.NewDomainError("PUPIL_NOT_ENROLLED",
				fmt.Sprintf("Pupil is not enrolled for session %s", query.Session))
			telemetry.RecordError(span, err)
			return nil, err
		}
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to get enrollment record: %w", err)
	}

	result := &BalanceResult{
		PupilID:   record.PupilID,
		PupilName: record.PupilName,
		ClassID:   record.ClassID,
		Session:   query.Session.String(),
		Term:      query.Term.Ordinal(),
		AmountDue: decimal.Zero,
		Arrears:   decimal.Zero,
		TotalDue:  decimal.Zero,
		TotalPaid: decimal.Zero,
		Balance:   decimal.Zero,
	}

	fee, err := s.feeRepo.FindByClassAndSession(ctx, record.ClassID, query.Session)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// A class without a configured fee structure is a normal
			// condition, not a failure. The caller shows the reason and
			// excludes the pupil from totals.
			result.Reason = fmt.Sprintf("No fee structure configured for class %s in session %s",
				record.ClassID, query.Session)
			telemetry.AddEvent(span, "no_fee_structure",
				telemetry.SpanAttrClassID, record.ClassID,
			)
			return result, nil
		}
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to get fee structure: %w", err)
	}

	adjusted := tuition.ResolveAdjustedFee(fee.GetTotalMoney(), query.Term, feeAdjustmentFor(record))

	var arrears tuition.ArrearsResult
	telemetry.WithProfilingLabels(ctx, telemetry.RegionLabels("db_query", map[string]string{
		telemetry.ProfilingLabelOperation: telemetry.OperationResolveArrears,
	}), func(c context.Context) {
		arrears = s.arrears.Resolve(c, query.PupilID, query.Session, query.Term)
	})
	if arrears.Err != nil {
		// Fail open: a prior-period lookup failure degrades to zero
		// arrears so the current calculation stays available.
		s.logger.Warn("Prior-balance lookup failed, continuing with zero arrears",
			zap.String("pupil_id", query.PupilID.String()),
			zap.String("session", query.Session.String()),
			zap.Int("term", query.Term.Ordinal()),
			zap.Error(arrears.Err),
		)
		if s.ledgerMetrics != nil {
			s.ledgerMetrics.RecordArrearsDegradedLookup(ctx)
		}
	}

	totalPaid := decimal.Zero
	summary, err := s.summaryRepo.FindByPupilSessionTerm(ctx, query.PupilID, query.Session, query.Term)
	if err == nil {
		totalPaid = summary.TotalPaid
	} else if !errors.Is(err, shared.ErrNotFound) {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to get payment summary: %w", err)
	}

	totalDue := adjusted.Amount().Add(arrears.Amount.Amount())
	balance := totalDue.Sub(totalPaid)
	if balance.IsNegative() {
		balance = decimal.Zero
	}

	result.AmountDue = adjusted.Amount()
	result.Arrears = arrears.Amount.Amount()
	result.ArrearsSource = arrears.Source
	result.TotalDue = totalDue
	result.TotalPaid = totalPaid
	result.Balance = balance
	result.Status = tuition.DerivePaymentStatus(totalPaid, balance, arrears.Amount.Amount())
	result.Computable = true

	telemetry.SetAttributes(span,
		telemetry.SpanAttrPaymentStatus, result.Status.String(),
		telemetry.SpanAttrArrearsSource, arrears.Source.String(),
	)

	return result, nil
}

// SessionBalances computes the outstanding balance for each term of a
// session in term order. Terms the pupil is not enrolled for still
// appear, with a zero amount due.
func (s *BalanceService) SessionBalances(ctx context.Context, pupilID uuid.UUID, session valueobject.Session) ([]BalanceResult, error) {
	results := make([]BalanceResult, 0, valueobject.TermCount)
	for _, term := range valueobject.AllTerms() {
		result, err := s.OutstandingBalance(ctx, BalanceQuery{
			PupilID: pupilID,
			Session: session,
			Term:    term,
		})
		if err != nil {
			return nil, err
		}
		results = append(results, *result)
	}
	return results, nil
}

// SummaryResponse is a stored payment summary row: the account state as
// the ledger last wrote it, arrears frozen at creation. Stored rows lag
// behind enrollment or fee edits until the next payment touches them;
// OutstandingBalance is the authoritative figure.
type SummaryResponse struct {
	ID            uuid.UUID             `json:"id"`
	PupilID       uuid.UUID             `json:"pupil_id"`
	ClassID       string                `json:"class_id"`
	Session       string                `json:"session"`
	Term          int                   `json:"term"`
	AmountDue     decimal.Decimal       `json:"amount_due"`
	Arrears       decimal.Decimal       `json:"arrears"`
	ArrearsSource tuition.ArrearsSource `json:"arrears_source"`
	TotalDue      decimal.Decimal       `json:"total_due"`
	TotalPaid     decimal.Decimal       `json:"total_paid"`
	Balance       decimal.Decimal       `json:"balance"`
	Status        tuition.PaymentStatus `json:"status"`
	LastPaymentAt *time.Time            `json:"last_payment_at,omitempty"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

// PupilSummaries returns a pupil's stored summaries for a session in
// term order. Only terms that have taken a payment have a row.
func (s *BalanceService) PupilSummaries(ctx context.Context, pupilID uuid.UUID, session valueobject.Session) ([]SummaryResponse, error) {
	if pupilID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PUPIL", "Pupil ID cannot be empty")
	}

	summaries, err := s.summaryRepo.FindByPupilAndSession(ctx, pupilID, session)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment summaries: %w", err)
	}

	responses := make([]SummaryResponse, len(summaries))
	for i := range summaries {
		responses[i] = *toSummaryResponse(&summaries[i])
	}
	return responses, nil
}

// SummaryListFilter defines the request filter for the summaries list
type SummaryListFilter struct {
	Session  string `form:"session" binding:"required,academic_session"`
	Term     int    `form:"term" binding:"required,min=1,max=3"`
	ClassID  string `form:"class_id"`
	Status   string `form:"status" binding:"omitempty,oneof=paid partial owing owing_with_arrears"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// ListSummaries pages through the stored summaries of one term,
// optionally narrowed to a class or payment status
func (s *BalanceService) ListSummaries(ctx context.Context, filter SummaryListFilter) ([]SummaryResponse, int64, error) {
	session, err := valueobject.ParseSession(filter.Session)
	if err != nil {
		return nil, 0, err
	}
	term, err := valueobject.NewTerm(filter.Term)
	if err != nil {
		return nil, 0, err
	}

	f := shared.DefaultFilter()
	f.OrderBy = "class_id"
	f.OrderDir = "asc"
	if filter.Page > 0 {
		f.Page = filter.Page
	}
	if filter.PageSize > 0 {
		f.PageSize = filter.PageSize
	}
	if filter.ClassID != "" {
		f.Filters["class_id"] = filter.ClassID
	}
	if filter.Status != "" {
		f.Filters["status"] = filter.Status
	}

	summaries, err := s.summaryRepo.FindBySessionAndTerm(ctx, session, term, f)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load payment summaries: %w", err)
	}
	total, err := s.summaryRepo.CountBySessionAndTerm(ctx, session, term, f)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count payment summaries: %w", err)
	}

	responses := make([]SummaryResponse, len(summaries))
	for i := range summaries {
		responses[i] = *toSummaryResponse(&summaries[i])
	}
	return responses, total, nil
}

func toSummaryResponse(sum *tuition.PaymentSummary) *SummaryResponse {
	return &SummaryResponse{
		ID:            sum.ID,
		PupilID:       sum.PupilID,
		ClassID:       sum.ClassID,
		Session:       sum.Session.String(),
		Term:          sum.Term.Ordinal(),
		AmountDue:     sum.AmountDue,
		Arrears:       sum.Arrears,
		ArrearsSource: sum.ArrearsSource,
		TotalDue:      sum.TotalDue,
		TotalPaid:     sum.TotalPaid,
		Balance:       sum.Balance,
		Status:        sum.Status,
		LastPaymentAt: sum.LastPaymentAt,
		UpdatedAt:     sum.UpdatedAt,
	}
}
