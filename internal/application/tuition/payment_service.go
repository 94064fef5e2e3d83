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
	"github.com/schoolerp/backend/internal/infrastructure/logger"
	"github.com/schoolerp/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// maxConflictRetries bounds how many times a payment is re-validated and
// re-attempted after losing a write race for the same pupil term.
const maxConflictRetries = 3

// paymentIdempotencyTTL is how long a payment idempotency key blocks
// replays of the same logical payment.
const paymentIdempotencyTTL = 24 * time.Hour

// PaymentService records tuition payments. It prices the term, splits the
// payment between carried arrears and the current term's fee, and writes
// the immutable transaction plus the merged summary in one atomic store
// transaction. Overpayments are rejected before any write, with the exact
// maximum still payable.
type PaymentService struct {
	enrollmentRepo enrollment.Repository
	feeRepo        tuition.FeeStructureRepository
	summaryRepo    tuition.PaymentSummaryRepository
	ledger         tuition.PaymentLedger
	receipts       tuition.ReceiptNumberGenerator
	arrears        *tuition.ArrearsResolver
	logger         *zap.Logger
	now            func() time.Time
	idempotency    shared.IdempotencyStore
	ledgerMetrics  *telemetry.LedgerMetrics
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	enrollmentRepo enrollment.Repository,
	feeRepo tuition.FeeStructureRepository,
	summaryRepo tuition.PaymentSummaryRepository,
	ledger tuition.PaymentLedger,
	receipts tuition.ReceiptNumberGenerator,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		enrollmentRepo: enrollmentRepo,
		feeRepo:        feeRepo,
		summaryRepo:    summaryRepo,
		ledger:         ledger,
		receipts:       receipts,
		arrears:        tuition.NewArrearsResolver(summaryRepo),
		logger:         logger,
		now:            time.Now,
	}
}

// logEvents writes an aggregate's pending domain events to the log and
// clears them. The ledger has no external event consumers; the log is
// the event stream.
func logEvents(log *zap.Logger, root shared.AggregateRoot) {
	for _, event := range root.GetDomainEvents() {
		log.Info("Domain event",
			zap.String("event_id", event.EventID().String()),
			zap.String("event_type", event.EventType()),
			zap.String("aggregate_type", event.AggregateType()),
			zap.String("aggregate_id", event.AggregateID().String()),
			zap.Time("occurred_at", event.OccurredAt()),
		)
	}
	root.ClearDomainEvents()
}

// SetLedgerMetrics sets the ledger metrics collector
func (s *PaymentService) SetLedgerMetrics(lm *telemetry.LedgerMetrics) {
	s.ledgerMetrics = lm
}

// SetIdempotencyStore enables de-duplication of retried payment
// submissions that carry an idempotency key
func (s *PaymentService) SetIdempotencyStore(store shared.IdempotencyStore) {
	s.idempotency = store
}

// SetClock overrides the wall clock, for deterministic tests
func (s *PaymentService) SetClock(now func() time.Time) {
	s.now = now
}

// RecordPaymentRequest represents a request to record a tuition payment
type RecordPaymentRequest struct {
	PupilID    uuid.UUID
	Session    valueobject.Session
	Term       valueobject.Term
	Amount     decimal.Decimal
	Method     tuition.PaymentMethod
	Notes      string
	RecordedBy string // Authenticated identity of the recording user
	// IdempotencyKey de-duplicates retried submissions of the same
	// logical payment. Optional; empty means no de-duplication.
	IdempotencyKey string
}

// RecordPaymentResult represents the outcome of a recorded payment
type RecordPaymentResult struct {
	TransactionID      uuid.UUID             `json:"transaction_id"`
	ReceiptNo          string                `json:"receipt_no"`
	PupilID            uuid.UUID             `json:"pupil_id"`
	PupilName          string                `json:"pupil_name"`
	ClassID            string                `json:"class_id"`
	Session            string                `json:"session"`
	Term               int                   `json:"term"`
	AmountPaid         decimal.Decimal       `json:"amount_paid"`
	ArrearsPayment     decimal.Decimal       `json:"arrears_payment"`
	CurrentTermPayment decimal.Decimal       `json:"current_term_payment"`
	TotalPaid          decimal.Decimal       `json:"total_paid"`
	BalanceBefore      decimal.Decimal       `json:"balance_before"`
	BalanceAfter       decimal.Decimal       `json:"balance_after"`
	Status             tuition.PaymentStatus `json:"status"`
	PaidAt             time.Time             `json:"paid_at"`
}

// RecordPayment records a payment against a pupil's term.
//
// An existing summary supplies the pre-payment baseline (its frozen
// arrears and recorded paid total); a first payment prices the term
// fresh. On a write conflict with a concurrent payment for the same
// pupil term, the whole sequence is re-run against freshly read state,
// so the overpayment check is always evaluated against the state the
// store actually serialized.
func (s *PaymentService) RecordPayment(ctx context.Context, req RecordPaymentRequest) (*RecordPaymentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "record")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrPupilID, req.PupilID.String(),
		telemetry.SpanAttrSession, req.Session.String(),
		telemetry.SpanAttrTerm, req.Term.Ordinal(),
		telemetry.SpanAttrAmount, req.Amount.String(),
		telemetry.SpanAttrPaymentMethod, req.Method.String(),
	)

	var result *RecordPaymentResult
	var operationErr error
	telemetry.WithProfilingLabels(ctx, telemetry.LedgerOperationLabels(telemetry.OperationRecordPayment, req.Method.String()), func(c context.Context) {
		result, operationErr = s.recordPayment(c, span, req)
	})

	return result, operationErr
}

func (s *PaymentService) recordPayment(ctx context.Context, span trace.Span, req RecordPaymentRequest) (*RecordPaymentResult, error) {
	if req.Amount.IsNegative() || req.Amount.IsZero() {
		err := shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be positive")
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !req.Method.IsValid() {
		err := shared.NewDomainError("INVALID_METHOD", "Payment method is not valid")
		telemetry.RecordError(span, err)
		return nil, err
	}
	if req.RecordedBy == "" {
		err := shared.NewDomainError("INVALID_RECORDER", "Recording user is required")
		telemetry.RecordError(span, err)
		return nil, err
	}
	if req.Session.IsZero() {
		err := shared.NewDomainError("INVALID_SESSION", "Session is required")
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !req.Term.IsValid() {
		err := shared.NewDomainError("INVALID_TERM", "Term must be 1, 2 or 3")
		telemetry.RecordError(span, err)
		return nil, err
	}

	// De-duplicate retried submissions before touching the ledger
	if err := s.claimIdempotencyKey(ctx, req.IdempotencyKey); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	record, err := s.enrollmentRepo.FindByPupilAndSession(ctx, req.PupilID, req.Session)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			err := shared.NewDomainError("PUPIL_NOT_ENROLLED",
				fmt.Sprintf("Pupil is not enrolled for session %s", req.Session))
			telemetry.RecordError(span, err)
			return nil, err
		}
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to get enrollment record: %w", err)
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrPupilName, record.PupilName)

	amount := valueobject.NewMoneyNGN(req.Amount)

	for attempt := 0; ; attempt++ {
		summary, summaryIsNew, err := s.loadOrBuildSummary(ctx, record, req.Session, req.Term)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}

		paidAt := s.now()

		split, err := summary.ApplyPayment(amount, paidAt)
		if err != nil {
			var overErr *tuition.OverpaymentError
			if errors.As(err, &overErr) {
				if s.ledgerMetrics != nil {
					s.ledgerMetrics.RecordOverpaymentRejected(ctx, req.Method.String())
				}
				telemetry.AddEvent(span, "overpayment_rejected",
					"max_allowed", overErr.MaxAllowed.String(),
				)
			}
			telemetry.RecordError(span, err)
			return nil, err
		}

		// The counter increment and the ledger write are each atomic but
		// not mutually atomic: if the write below fails, the receipt
		// number is burned. Acceptable, receipt numbers are cheap and
		// carry a uniqueness suffix.
		var receiptNo string
		telemetry.WithProfilingLabels(ctx, telemetry.OperationLabels(telemetry.OperationGenerateReceipt, nil), func(c context.Context) {
			receiptNo, err = s.receipts.Next(c, paidAt)
		})
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("failed to generate receipt number: %w", err)
		}
		telemetry.SetAttribute(span, telemetry.SpanAttrReceiptNo, receiptNo)

		txn, err := tuition.NewPaymentTransaction(
			receiptNo,
			summary,
			record.PupilName,
			split,
			req.Method,
			req.Notes,
			req.RecordedBy,
			paidAt,
		)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}

		if err := s.ledger.RecordPayment(ctx, summary, txn, summaryIsNew); err != nil {
			if errors.Is(err, shared.ErrConcurrencyConflict) && attempt < maxConflictRetries {
				// Lost a write race against a concurrent payment for the
				// same pupil term. Re-read and re-validate so the
				// overpayment check runs against the serialized state.
				s.logger.Warn("Concurrent payment detected, retrying",
					zap.String("ledger_key", summary.LedgerKey()),
					zap.Int("attempt", attempt+1),
				)
				continue
			}
			telemetry.RecordError(span, err)
			if s.ledgerMetrics != nil {
				s.ledgerMetrics.RecordPayment(ctx, req.Method.String(), telemetry.PaymentOutcomeFailed)
			}
			return nil, fmt.Errorf("failed to record payment: %w", err)
		}

		logEvents(s.logger, summary)

		if s.ledgerMetrics != nil {
			s.ledgerMetrics.RecordPaymentWithAmount(ctx, req.Method.String(), split.AmountPaid)
		}

		telemetry.AddEvent(span, "payment_recorded",
			telemetry.SpanAttrReceiptNo, receiptNo,
			"balance_after", split.BalanceAfter.String(),
		)
		telemetry.SetAttribute(span, telemetry.SpanAttrPaymentStatus, split.StatusAfter.String())
		telemetry.SetOK(span)

		logger.WithTraceContext(ctx, s.logger).Info("Payment recorded",
			zap.String("receipt_no", receiptNo),
			zap.String("pupil_id", req.PupilID.String()),
			zap.String("session", req.Session.String()),
			zap.Int("term", req.Term.Ordinal()),
			zap.String("amount", split.AmountPaid.String()),
			zap.String("status", split.StatusAfter.String()),
			zap.String("recorded_by", req.RecordedBy),
		)

		return &RecordPaymentResult{
			TransactionID:      txn.ID,
			ReceiptNo:          receiptNo,
			PupilID:            summary.PupilID,
			PupilName:          record.PupilName,
			ClassID:            summary.ClassID,
			Session:            summary.Session.String(),
			Term:               summary.Term.Ordinal(),
			AmountPaid:         split.AmountPaid,
			ArrearsPayment:     split.ArrearsPayment,
			CurrentTermPayment: split.CurrentTermPayment,
			TotalPaid:          split.TotalPaidAfter,
			BalanceBefore:      split.BalanceBefore,
			BalanceAfter:       split.BalanceAfter,
			Status:             split.StatusAfter,
			PaidAt:             paidAt,
		}, nil
	}
}

// loadOrBuildSummary returns the pre-payment account state for a pupil
// term. An existing summary is returned as stored: its arrears were
// frozen at creation and are deliberately not re-derived. A missing
// summary is priced fresh from the fee structure, enrollment adjustments
// and prior-period arrears.
func (s *PaymentService) loadOrBuildSummary(ctx context.Context, record *enrollment.Record, session valueobject.Session, term valueobject.Term) (*tuition.PaymentSummary, bool, error) {
	existing, err := s.summaryRepo.FindByPupilSessionTerm(ctx, record.PupilID, session, term)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to get payment summary: %w", err)
	}

	fee, err := s.feeRepo.FindByClassAndSession(ctx, record.ClassID, session)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, false, shared.NewDomainError("NO_FEE_STRUCTURE",
				fmt.Sprintf("No fee structure configured for class %s in session %s", record.ClassID, session))
		}
		return nil, false, fmt.Errorf("failed to get fee structure: %w", err)
	}

	adjusted := tuition.ResolveAdjustedFee(fee.GetTotalMoney(), term, feeAdjustmentFor(record))

	arrears := s.arrears.Resolve(ctx, record.PupilID, session, term)
	if arrears.Err != nil {
		// Fail open: freeze zero arrears rather than block the payment
		// on unreachable historical data
		s.logger.Warn("Prior-balance lookup failed, freezing zero arrears",
			zap.String("pupil_id", record.PupilID.String()),
			zap.String("session", session.String()),
			zap.Int("term", term.Ordinal()),
			zap.Error(arrears.Err),
		)
		if s.ledgerMetrics != nil {
			s.ledgerMetrics.RecordArrearsDegradedLookup(ctx)
		}
	}

	summary, err := tuition.NewPaymentSummary(record.PupilID, record.ClassID, session, term, adjusted, arrears)
	if err != nil {
		return nil, false, err
	}
	return summary, true, nil
}

func (s *PaymentService) claimIdempotencyKey(ctx context.Context, key string) error {
	if s.idempotency == nil || key == "" {
		return nil
	}

	isNew, err := s.idempotency.MarkProcessed(ctx, key, paymentIdempotencyTTL)
	if err != nil {
		// Better to risk a duplicate than block every payment while the
		// store is unreachable
		s.logger.Warn("Failed to check payment idempotency, processing anyway",
			zap.String("idempotency_key", key),
			zap.Error(err),
		)
		return nil
	}
	if !isNew {
		return shared.NewDomainError("DUPLICATE_PAYMENT",
			"A payment with this idempotency key has already been recorded")
	}
	return nil
}
