package tuition

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/enrollment"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/domain/shared/valueobject"
	"github.com/schoolerp/backend/internal/domain/tuition"
	"github.com/schoolerp/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ReportService provides application-level reporting over the payment
// ledger. Collections reports read the immutable transaction trail;
// anything that shows a balance goes through BalanceService so the
// numbers reflect enrollment and discount edits immediately.
type ReportService struct {
	balances       *BalanceService
	enrollmentRepo enrollment.Repository
	txnRepo        tuition.PaymentTransactionRepository
	logger         *zap.Logger
}

// NewReportService creates a new ReportService
func NewReportService(
	balances *BalanceService,
	enrollmentRepo enrollment.Repository,
	txnRepo tuition.PaymentTransactionRepository,
	logger *zap.Logger,
) *ReportService {
	return &ReportService{
		balances:       balances,
		enrollmentRepo: enrollmentRepo,
		txnRepo:        txnRepo,
		logger:         logger,
	}
}

// ===================== Collections Reports =====================

// TransactionResponse represents a payment transaction in API responses
type TransactionResponse struct {
	ID                 uuid.UUID       `json:"id"`
	ReceiptNo          string          `json:"receipt_no"`
	PupilID            uuid.UUID       `json:"pupil_id"`
	PupilName          string          `json:"pupil_name"`
	ClassID            string          `json:"class_id"`
	Session            string          `json:"session"`
	Term               int             `json:"term"`
	AmountPaid         decimal.Decimal `json:"amount_paid"`
	ArrearsPayment     decimal.Decimal `json:"arrears_payment"`
	CurrentTermPayment decimal.Decimal `json:"current_term_payment"`
	BalanceAfter       decimal.Decimal `json:"balance_after"`
	StatusAfter        string          `json:"status_after"`
	Method             string          `json:"method"`
	Notes              string          `json:"notes,omitempty"`
	RecordedBy         string          `json:"recorded_by"`
	PaidAt             time.Time       `json:"paid_at"`
}

// MethodBreakdown is the per-method slice of a day's collections
type MethodBreakdown struct {
	Method string          `json:"method"`
	Count  int64           `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// DailyCollectionsReport summarizes every payment recorded on one day
type DailyCollectionsReport struct {
	Date                 string                `json:"date"`
	TransactionCount     int64                 `json:"transaction_count"`
	TotalCollected       decimal.Decimal       `json:"total_collected"`
	ArrearsCollected     decimal.Decimal       `json:"arrears_collected"`
	CurrentTermCollected decimal.Decimal       `json:"current_term_collected"`
	ByMethod             []MethodBreakdown     `json:"by_method"`
	Transactions         []TransactionResponse `json:"transactions"`
}

// DailyCollections aggregates all payments recorded on the given day,
// bursar's end-of-day sheet style: totals, the arrears/current-term
// split and a per-method breakdown
func (s *ReportService) DailyCollections(ctx context.Context, day time.Time) (*DailyCollectionsReport, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "report", "daily_collections")
	defer span.End()

	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	to := from.AddDate(0, 0, 1)

	var report *DailyCollectionsReport
	var operationErr error

	labels := telemetry.OperationLabels(telemetry.OperationDailyCollections, nil)
	telemetry.WithProfilingLabels(ctx, labels, func(c context.Context) {
		txns, err := s.txnRepo.FindByDateRange(c, from, to, shared.Filter{})
		if err != nil {
			operationErr = fmt.Errorf("failed to load transactions: %w", err)
			return
		}

		r := &DailyCollectionsReport{
			Date:                 from.Format("2006-01-02"),
			TransactionCount:     int64(len(txns)),
			TotalCollected:       decimal.Zero,
			ArrearsCollected:     decimal.Zero,
			CurrentTermCollected: decimal.Zero,
			Transactions:         make([]TransactionResponse, len(txns)),
		}

		counts := make(map[string]int64)
		amounts := make(map[string]decimal.Decimal)
		for i, t := range txns {
			r.TotalCollected = r.TotalCollected.Add(t.AmountPaid)
			r.ArrearsCollected = r.ArrearsCollected.Add(t.ArrearsPayment)
			r.CurrentTermCollected = r.CurrentTermCollected.Add(t.CurrentTermPayment)
			counts[t.Method.String()]++
			amounts[t.Method.String()] = amounts[t.Method.String()].Add(t.AmountPaid)
			r.Transactions[i] = *toTransactionResponse(&txns[i])
		}

		methods := make([]string, 0, len(counts))
		for m := range counts {
			methods = append(methods, m)
		}
		sort.Strings(methods)
		for _, m := range methods {
			r.ByMethod = append(r.ByMethod, MethodBreakdown{Method: m, Count: counts[m], Amount: amounts[m]})
		}

		report = r
	})

	if operationErr != nil {
		telemetry.RecordError(span, operationErr)
		return nil, operationErr
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrAmount, report.TotalCollected.String(),
	)
	return report, nil
}

// TransactionListFilter defines the request filter for the payments list
type TransactionListFilter struct {
	PupilID    string `form:"pupil_id" binding:"omitempty,uuid"`
	ClassID    string `form:"class_id"`
	Session    string `form:"session" binding:"omitempty,academic_session"`
	Term       int    `form:"term" binding:"omitempty,min=1,max=3"`
	Method     string `form:"method" binding:"omitempty,oneof=cash bank_transfer pos cheque online"`
	RecordedBy string `form:"recorded_by"`
	Search     string `form:"search"`
	Page       int    `form:"page" binding:"omitempty,min=1"`
	PageSize   int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// ListTransactions pages through the payment trail, most recent first.
// Search matches receipt number or pupil name.
func (s *ReportService) ListTransactions(ctx context.Context, filter TransactionListFilter) ([]TransactionResponse, int64, error) {
	f := shared.DefaultFilter()
	f.OrderBy = "paid_at"
	f.Search = filter.Search
	if filter.Page > 0 {
		f.Page = filter.Page
	}
	if filter.PageSize > 0 {
		f.PageSize = filter.PageSize
	}
	if filter.PupilID != "" {
		f.Filters["pupil_id"] = filter.PupilID
	}
	if filter.ClassID != "" {
		f.Filters["class_id"] = filter.ClassID
	}
	if filter.Session != "" {
		f.Filters["session"] = filter.Session
	}
	if filter.Term > 0 {
		f.Filters["term"] = filter.Term
	}
	if filter.Method != "" {
		f.Filters["method"] = filter.Method
	}
	if filter.RecordedBy != "" {
		f.Filters["recorded_by"] = filter.RecordedBy
	}

	txns, err := s.txnRepo.FindAll(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load transactions: %w", err)
	}
	total, err := s.txnRepo.Count(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	responses := make([]TransactionResponse, len(txns))
	for i := range txns {
		responses[i] = *toTransactionResponse(&txns[i])
	}
	return responses, total, nil
}

// GetTransactionByReceipt finds a payment transaction by its receipt
// number, for reprints and payment disputes
func (s *ReportService) GetTransactionByReceipt(ctx context.Context, receiptNo string) (*TransactionResponse, error) {
	if receiptNo == "" {
		return nil, shared.NewDomainError("INVALID_RECEIPT", "Receipt number cannot be empty")
	}

	txn, err := s.txnRepo.FindByReceiptNo(ctx, receiptNo)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("RECEIPT_NOT_FOUND",
				fmt.Sprintf("No payment found for receipt %s", receiptNo))
		}
		return nil, err
	}
	return toTransactionResponse(txn), nil
}

// ===================== Balance Reports =====================

// ClassStatusFilter defines the request filter for class status reports
type ClassStatusFilter struct {
	ClassID string `form:"class_id" binding:"required"`
	Session string `form:"session" binding:"required,academic_session"`
	Term    int    `form:"term" binding:"required,min=1,max=3"`
}

// ClassTermStatusReport is the payment position of every pupil in a
// class for one term. Pupils whose class has no fee structure are
// listed with a reason and counted under NotPriced
type ClassTermStatusReport struct {
	ClassID          string          `json:"class_id"`
	Session          string          `json:"session"`
	Term             int             `json:"term"`
	PupilCount       int64           `json:"pupil_count"`
	PaidCount        int64           `json:"paid_count"`
	PartialCount     int64           `json:"partial_count"`
	OwingCount       int64           `json:"owing_count"`
	WithArrearsCount int64           `json:"with_arrears_count"`
	NotPriced        int64           `json:"not_priced"`
	TotalDue         decimal.Decimal `json:"total_due"`
	TotalPaid        decimal.Decimal `json:"total_paid"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
	Pupils           []BalanceResult `json:"pupils"`
}

// ClassTermStatus reports where every pupil in a class stands for a
// term. Balances are recomputed per pupil, not read from stored
// summaries
func (s *ReportService) ClassTermStatus(ctx context.Context, filter ClassStatusFilter) (*ClassTermStatusReport, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "report", "class_term_status")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrClassID, filter.ClassID,
		telemetry.SpanAttrSession, filter.Session,
		telemetry.SpanAttrTerm, filter.Term,
	)

	session, err := valueobject.ParseSession(filter.Session)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	term, err := valueobject.NewTerm(filter.Term)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	records, err := s.enrollmentRepo.FindByClassAndSession(ctx, filter.ClassID, session, shared.Filter{})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load class enrollments: %w", err)
	}

	report := &ClassTermStatusReport{
		ClassID:          filter.ClassID,
		Session:          session.String(),
		Term:             term.Ordinal(),
		TotalDue:         decimal.Zero,
		TotalPaid:        decimal.Zero,
		TotalOutstanding: decimal.Zero,
		Pupils:           make([]BalanceResult, 0, len(records)),
	}

	for _, record := range records {
		result, err := s.balances.OutstandingBalance(ctx, BalanceQuery{
			PupilID: record.PupilID,
			Session: session,
			Term:    term,
		})
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("failed to compute balance for pupil %s: %w", record.PupilID, err)
		}
		report.Pupils = append(report.Pupils, *result)
		s.tally(report, result)
	}

	report.PupilCount = int64(len(report.Pupils))
	return report, nil
}

func (s *ReportService) tally(report *ClassTermStatusReport, result *BalanceResult) {
	if !result.Computable {
		report.NotPriced++
		return
	}

	report.TotalDue = report.TotalDue.Add(result.TotalDue)
	report.TotalPaid = report.TotalPaid.Add(result.TotalPaid)
	report.TotalOutstanding = report.TotalOutstanding.Add(result.Balance)

	switch result.Status {
	case tuition.StatusPaid:
		report.PaidCount++
	case tuition.StatusPartial:
		report.PartialCount++
	case tuition.StatusOwingWithArrears:
		report.OwingCount++
		report.WithArrearsCount++
	case tuition.StatusOwing:
		report.OwingCount++
	}
}

// OwingPupilsFilter defines the request filter for the arrears list
type OwingPupilsFilter struct {
	Session string `form:"session" binding:"required,academic_session"`
	Term    int    `form:"term" binding:"required,min=1,max=3"`
	ClassID string `form:"class_id"`
}

// OwingPupils lists every enrolled pupil who still owes for the term,
// largest balance first. Balances are recomputed per pupil
func (s *ReportService) OwingPupils(ctx context.Context, filter OwingPupilsFilter) ([]BalanceResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "report", "owing_pupils")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrSession, filter.Session,
		telemetry.SpanAttrTerm, filter.Term,
	)

	session, err := valueobject.ParseSession(filter.Session)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	term, err := valueobject.NewTerm(filter.Term)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var records []enrollment.Record
	if filter.ClassID != "" {
		records, err = s.enrollmentRepo.FindByClassAndSession(ctx, filter.ClassID, session, shared.Filter{})
	} else {
		records, err = s.enrollmentRepo.FindBySession(ctx, session, shared.Filter{})
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load enrollments: %w", err)
	}

	owing := make([]BalanceResult, 0)
	for _, record := range records {
		result, err := s.balances.OutstandingBalance(ctx, BalanceQuery{
			PupilID: record.PupilID,
			Session: session,
			Term:    term,
		})
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("failed to compute balance for pupil %s: %w", record.PupilID, err)
		}
		if result.Computable && result.Balance.IsPositive() {
			owing = append(owing, *result)
		}
	}

	sort.Slice(owing, func(i, j int) bool {
		return owing[i].Balance.GreaterThan(owing[j].Balance)
	})
	return owing, nil
}

// PupilStatementReport is a pupil's full position for a session: the
// recomputed balance of each term plus the payment history
type PupilStatementReport struct {
	PupilID            uuid.UUID             `json:"pupil_id"`
	PupilName          string                `json:"pupil_name"`
	ClassID            string                `json:"class_id"`
	Session            string                `json:"session"`
	Terms              []BalanceResult       `json:"terms"`
	TotalPaidInSession decimal.Decimal       `json:"total_paid_in_session"`
	Transactions       []TransactionResponse `json:"transactions"`
}

// PupilStatement builds a pupil's session statement. Each term row is
// recomputed; the arrears cascade already folds unpaid earlier terms
// into later ones, so term rows are positions, not addends
func (s *ReportService) PupilStatement(ctx context.Context, pupilID uuid.UUID, session valueobject.Session) (*PupilStatementReport, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "report", "pupil_statement")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrPupilID, pupilID.String(),
		telemetry.SpanAttrSession, session.String(),
	)

	terms, err := s.balances.SessionBalances(ctx, pupilID, session)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	txns, err := s.txnRepo.FindByPupilAndSession(ctx, pupilID, session)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load payment history: %w", err)
	}

	report := &PupilStatementReport{
		PupilID:            pupilID,
		Session:            session.String(),
		Terms:              terms,
		TotalPaidInSession: decimal.Zero,
		Transactions:       make([]TransactionResponse, len(txns)),
	}
	if len(terms) > 0 {
		report.PupilName = terms[0].PupilName
		report.ClassID = terms[0].ClassID
	}
	for i := range txns {
		report.TotalPaidInSession = report.TotalPaidInSession.Add(txns[i].AmountPaid)
		report.Transactions[i] = *toTransactionResponse(&txns[i])
	}

	return report, nil
}

func toTransactionResponse(t *tuition.PaymentTransaction) *TransactionResponse {
	return &TransactionResponse{
		ID:                 t.ID,
		ReceiptNo:          t.ReceiptNo,
		PupilID:            t.PupilID,
		PupilName:          t.PupilName,
		ClassID:            t.ClassID,
		Session:            t.Session.String(),
		Term:               t.Term.Ordinal(),
		AmountPaid:         t.AmountPaid,
		ArrearsPayment:     t.ArrearsPayment,
		CurrentTermPayment: t.CurrentTermPayment,
		BalanceAfter:       t.BalanceAfter,
		StatusAfter:        t.StatusAfter.String(),
		Method:             t.Method.String(),
		Notes:              t.Notes,
		RecordedBy:         t.RecordedBy,
		PaidAt:             t.PaidAt,
	}
}
