// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"go.opentelemetry.io/otel/metric"
)

// LedgerMetrics provides business metrics for the fee ledger.
// It tracks payment activity, overpayment rejections, degraded arrears
// lookups and the outstanding-balance health of the current period.
type LedgerMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	paymentRecordedTotal     *Counter
	paymentAmountTotal       *Counter
	overpaymentRejectedTotal *Counter
	arrearsDegradedTotal     *Counter
	receiptFallbackTotal     *Counter

	// Gauge metrics (point-in-time values)
	owingPupilsCount        *Gauge
	outstandingBalanceTotal *FloatGauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	// Data provider for periodic collection
	arrearsProvider ArrearsMetricsProvider
}

// ArrearsMetricsProvider provides aggregated ledger data for periodic
// metrics collection. This interface allows the telemetry layer to query
// payment summaries without depending on the tuition domain directly.
type ArrearsMetricsProvider interface {
	// GetOwingCountByClass returns the number of pupils with an open
	// balance per class for a session and term
	GetOwingCountByClass(ctx context.Context, session string, term int) (map[string]int64, error)

	// GetOutstandingTotal returns the summed open balance across all
	// pupils for a session and term
	GetOutstandingTotal(ctx context.Context, session string, term int) (float64, error)
}

// PeriodProvider provides the active session and term for periodic
// metrics collection.
type PeriodProvider interface {
	GetCurrentPeriod(ctx context.Context) (session string, term int, err error)
}

// LedgerMetricsConfig holds configuration for ledger metrics.
type LedgerMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	CollectInterval time.Duration // Default: 5 minutes
	ArrearsProvider ArrearsMetricsProvider
}

// NewLedgerMetrics creates a new LedgerMetrics instance.
func NewLedgerMetrics(cfg LedgerMetricsConfig) (*LedgerMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	lm := &LedgerMetrics{
		meter:           cfg.Meter,
		logger:          logger,
		stopChan:        make(chan struct{}),
		arrearsProvider: cfg.ArrearsProvider,
	}

	// Initialize counter metrics
	var err error

	// Payment metrics
	lm.paymentRecordedTotal, err = NewCounter(
		cfg.Meter,
		"schoolerp_payment_recorded_total",
		"Total number of payments recorded",
		"{payments}",
	)
	if err != nil {
		return nil, err
	}

	lm.paymentAmountTotal, err = NewCounter(
		cfg.Meter,
		"schoolerp_payment_amount_total",
		"Total payment amount in kobo",
		"{kobo}",
	)
	if err != nil {
		return nil, err
	}

	lm.overpaymentRejectedTotal, err = NewCounter(
		cfg.Meter,
		"schoolerp_overpayment_rejected_total",
		"Total number of payments rejected for exceeding the outstanding balance",
		"{rejections}",
	)
	if err != nil {
		return nil, err
	}

	// Degraded-mode metrics
	lm.arrearsDegradedTotal, err = NewCounter(
		cfg.Meter,
		"schoolerp_arrears_degraded_lookup_total",
		"Total number of prior-balance lookups that failed and fell back to zero arrears",
		"{lookups}",
	)
	if err != nil {
		return nil, err
	}

	lm.receiptFallbackTotal, err = NewCounter(
		cfg.Meter,
		"schoolerp_receipt_fallback_total",
		"Total number of receipt numbers generated via the time-derived fallback",
		"{receipts}",
	)
	if err != nil {
		return nil, err
	}

	// Outstanding balance gauge metrics
	lm.owingPupilsCount, err = NewGauge(
		cfg.Meter,
		"schoolerp_owing_pupils_count",
		"Number of pupils with an open balance in the current period",
		"{pupils}",
	)
	if err != nil {
		return nil, err
	}

	lm.outstandingBalanceTotal, err = NewFloatGauge(
		cfg.Meter,
		"schoolerp_outstanding_balance_total",
		"Summed open balance across all pupils in the current period, in naira",
		"{naira}",
	)
	if err != nil {
		return nil, err
	}

	return lm, nil
}

// =============================================================================
// Payment Metrics
// =============================================================================

// PaymentOutcome represents the outcome of a payment attempt for metrics labeling.
type PaymentOutcome string

const (
	PaymentOutcomeSuccess  PaymentOutcome = "success"
	PaymentOutcomeRejected PaymentOutcome = "rejected"
	PaymentOutcomeFailed   PaymentOutcome = "failed"
)

// RecordPayment records a payment attempt and its outcome.
// This should be called from the application layer when a payment completes.
func (lm *LedgerMetrics) RecordPayment(ctx context.Context, paymentMethod string, outcome PaymentOutcome) {
	lm.paymentRecordedTotal.Inc(ctx,
		AttrPaymentMethod.String(paymentMethod),
		AttrPaymentStatus.String(string(outcome)),
	)
}

// RecordPaymentAmount records the amount collected.
// Amount should be in the smallest currency unit (kobo).
func (lm *LedgerMetrics) RecordPaymentAmount(ctx context.Context, paymentMethod string, amountKobo int64) {
	lm.paymentAmountTotal.Add(ctx, amountKobo,
		AttrPaymentMethod.String(paymentMethod),
	)
}

// RecordPaymentWithAmount is a convenience method that records a successful
// payment along with the collected amount.
func (lm *LedgerMetrics) RecordPaymentWithAmount(ctx context.Context, paymentMethod string, amount decimal.Decimal) {
	lm.RecordPayment(ctx, paymentMethod, PaymentOutcomeSuccess)

	// Convert to kobo (multiply by 100)
	amountKobo := amount.Mul(decimal.NewFromInt(100)).IntPart()
	lm.RecordPaymentAmount(ctx, paymentMethod, amountKobo)
}

// RecordOverpaymentRejected records a payment rejected for exceeding the
// outstanding balance.
func (lm *LedgerMetrics) RecordOverpaymentRejected(ctx context.Context, paymentMethod string) {
	lm.overpaymentRejectedTotal.Inc(ctx,
		AttrPaymentMethod.String(paymentMethod),
	)
	lm.RecordPayment(ctx, paymentMethod, PaymentOutcomeRejected)
}

// =============================================================================
// Degraded-Mode Metrics
// =============================================================================

// RecordArrearsDegradedLookup records a prior-balance lookup that failed
// and was substituted with zero arrears.
func (lm *LedgerMetrics) RecordArrearsDegradedLookup(ctx context.Context) {
	lm.arrearsDegradedTotal.Inc(ctx)
}

// RecordReceiptFallback records a receipt number produced by the
// time-derived fallback instead of the atomic counter.
func (lm *LedgerMetrics) RecordReceiptFallback(ctx context.Context) {
	lm.receiptFallbackTotal.Inc(ctx)
}

// =============================================================================
// Outstanding Balance Metrics
// =============================================================================

// RecordOwingPupils records the current number of owing pupils for a class.
// This is a gauge metric that should be updated periodically.
func (lm *LedgerMetrics) RecordOwingPupils(ctx context.Context, classID string, count int64) {
	lm.owingPupilsCount.Record(ctx, count,
		AttrClassID.String(classID),
	)
}

// RecordOutstandingBalance records the summed open balance for a period.
// This is a gauge metric that should be updated periodically.
func (lm *LedgerMetrics) RecordOutstandingBalance(ctx context.Context, session string, term int, totalNaira float64) {
	lm.outstandingBalanceTotal.Record(ctx, totalNaira,
		AttrSession.String(session),
		AttrTerm.Int(term),
	)
}

// =============================================================================
// Periodic Collection
// =============================================================================

// StartPeriodicCollection starts periodic collection of gauge metrics.
// It collects outstanding-balance metrics every interval (default: 5 minutes).
// This is non-blocking - use Stop() to stop collection.
func (lm *LedgerMetrics) StartPeriodicCollection(ctx context.Context, periodProvider PeriodProvider, interval time.Duration) {
	lm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}

		go lm.runPeriodicCollection(ctx, periodProvider, interval)
	})
}

// runPeriodicCollection runs the periodic collection loop.
func (lm *LedgerMetrics) runPeriodicCollection(ctx context.Context, periodProvider PeriodProvider, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect immediately on start
	lm.collectOutstandingMetrics(ctx, periodProvider)

	for {
		select {
		case <-lm.stopChan:
			lm.logger.Info("Stopping periodic ledger metrics collection")
			return
		case <-ctx.Done():
			lm.logger.Info("Context cancelled, stopping periodic ledger metrics collection")
			return
		case <-ticker.C:
			lm.collectOutstandingMetrics(ctx, periodProvider)
		}
	}
}

// collectOutstandingMetrics collects outstanding-balance gauge metrics for
// the active period.
func (lm *LedgerMetrics) collectOutstandingMetrics(ctx context.Context, periodProvider PeriodProvider) {
	if lm.arrearsProvider == nil {
		lm.logger.Debug("No arrears provider configured, skipping outstanding metrics collection")
		return
	}

	session, term, err := periodProvider.GetCurrentPeriod(ctx)
	if err != nil {
		lm.logger.Error("Failed to get current period for metrics collection", zap.Error(err))
		return
	}

	// Collect owing pupils by class
	owingByClass, err := lm.arrearsProvider.GetOwingCountByClass(ctx, session, term)
	if err != nil {
		lm.logger.Warn("Failed to get owing pupil counts",
			zap.String("session", session),
			zap.Int("term", term),
			zap.Error(err),
		)
	} else {
		for classID, count := range owingByClass {
			lm.RecordOwingPupils(ctx, classID, count)
		}
	}

	// Collect summed outstanding balance
	total, err := lm.arrearsProvider.GetOutstandingTotal(ctx, session, term)
	if err != nil {
		lm.logger.Warn("Failed to get outstanding balance total",
			zap.String("session", session),
			zap.Int("term", term),
			zap.Error(err),
		)
	} else {
		lm.RecordOutstandingBalance(ctx, session, term, total)
	}
}

// Stop stops the periodic collection.
func (lm *LedgerMetrics) Stop() {
	lm.stopOnce.Do(func() {
		close(lm.stopChan)
	})
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewLedgerMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
