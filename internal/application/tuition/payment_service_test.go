package tuition

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/domain/shared/valueobject"
	"github.com/schoolerp/backend/internal/domain/tuition"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// Mock Ledger, Receipt Generator and Idempotency Store
// =============================================================================

// MockPaymentLedger is a mock implementation of tuition.PaymentLedger
type MockPaymentLedger struct {
	mock.Mock
}

func (m *MockPaymentLedger) RecordPayment(ctx context.Context, summary *tuition.PaymentSummary, txn *tuition.PaymentTransaction, summaryIsNew bool) error {
	args := m.Called(ctx, summary, txn, summaryIsNew)
	return args.Error(0)
}

// MockReceiptNumberGenerator is a mock implementation of tuition.ReceiptNumberGenerator
type MockReceiptNumberGenerator struct {
	mock.Mock
}

func (m *MockReceiptNumberGenerator) Next(ctx context.Context, day time.Time) (string, error) {
	args := m.Called(ctx, day)
	return args.Get(0).(string), args.Error(1)
}

// MockIdempotencyStore is a mock implementation of shared.IdempotencyStore
type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, eventID, ttl)
	return args.Get(0).(bool), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Get(0).(bool), args.Error(1)
}

func (m *MockIdempotencyStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// =============================================================================
// Test Helper Functions
// =============================================================================

type paymentServiceMocks struct {
	enrollmentRepo *MockEnrollmentRepository
	feeRepo        *MockFeeStructureRepository
	summaryRepo    *MockPaymentSummaryRepository
	ledger         *MockPaymentLedger
	receipts       *MockReceiptNumberGenerator
}

func newTestPaymentService() (*PaymentService, *paymentServiceMocks) {
	m := &paymentServiceMocks{
		enrollmentRepo: new(MockEnrollmentRepository),
		feeRepo:        new(MockFeeStructureRepository),
		summaryRepo:    new(MockPaymentSummaryRepository),
		ledger:         new(MockPaymentLedger),
		receipts:       new(MockReceiptNumberGenerator),
	}
	service := NewPaymentService(m.enrollmentRepo, m.feeRepo, m.summaryRepo, m.ledger, m.receipts, zap.NewNop())
	return service, m
}

// =============================================================================
// Test Cases for RecordPayment
// =============================================================================

func TestPaymentService_RecordPayment_FirstPaymentOnTerm(t *testing.T) {
	ctx := context.Background()
	pupilID := uuid.New()
	session := testSession("2023/2024")
	paidAt := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	service, m := newTestPaymentService()
	service.SetClock(func() time.Time { return paidAt })

	record := createTestEnrollment(pupilID, session)
	fee := createTestFeeStructure(session, 50000)

	m.enrollmentRepo.On("FindByPupilAndSession", mock.Anything, pupilID, session).Return(record, nil)
	m.summaryRepo.On("FindByPupilSessionTerm", mock.Anything, pupilID, session, valueobject.FirstTerm).
		Return(nil, shared.ErrNotFound)
	m.feeRepo.On("FindByClassAndSession", mock.Anything, "JSS1A", session).Return(fee, nil)
	m.summaryRepo.On("TermBalance", mock.Anything, pupilID, testSession("2022/2023"), valueobject.ThirdTerm).
		Return(valueobject.ZeroNGN(), false, nil)
	m.receipts.On("Next", mock.Anything, paidAt).Return("RCP-20240115-0042-K7QZ", nil)

	var savedSummary *tuition.PaymentSummary
	var savedTxn *tuition.PaymentTransaction
	m.ledger.On("RecordPayment", mock.Anything, mock.AnythingOfType("*tuition.PaymentSummary"), mock.AnythingOfType("*tuition.PaymentTransaction"), true).
		Run(func(args mock.Arguments) {
			savedSummary = args.Get(1).(*tuition.PaymentSummary)
			savedTxn = args.Get(2).(*tuition.PaymentTransaction)
		}).Return(nil)

	result, err := service.RecordPayment(ctx, RecordPaymentRequest{
		PupilID:    pupilID,
		Session:    session,
		Term:       valueobject.FirstTerm,
		Amount:     decimal.NewFromInt(30000),
		Method:     tuition.MethodCash,
		RecordedBy: "bursar@school",
	})

	require.NoError(t, err)
	assert.Equal(t, "RCP-20240115-0042-K7QZ", result.ReceiptNo)
	assert.Equal(t, "30000", result.AmountPaid.String())
	assert.Equal(t, "0", result.ArrearsPayment.String())
	assert.Equal(t, "30000", result.CurrentTermPayment.String())
	assert.Equal(t, "50000", result.BalanceBefore.String())
	assert.Equal(t, "20000", result.BalanceAfter.String())
	assert.Equal(t, tuition.StatusPartial, result.Status)
	assert.Equal(t, paidAt, result.PaidAt)

	// The merged summary and the frozen audit record went to the ledger
	// together
	require.NotNil(t, savedSummary)
	assert.Equal(t, "30000", savedSummary.TotalPaid.String())
	assert.Equal(t, "20000", savedSummary.Balance.String())
	require.NotNil(t, savedTxn)
	assert.Equal(t, "Adaeze Obi", savedTxn.PupilName)
	assert.Equal(t, "bursar@school", savedTxn.RecordedBy)
	assert.Equal(t, "0", savedTxn.TotalPaidBefore.String())
	assert.Equal(t, "30000", savedTxn.TotalPaidAfter.String())

	m.ledger.AssertExpectations(t)
	m.receipts.AssertExpectations(t)
}

func TestPaymentService_RecordPayment_ArrearsPaidFirst(t *testing.T) {
	ctx := context.Background()
	pupilID := uuid.New()
	session := testSession("2023/2024")

	service, m := newTestPaymentService()

	record := createTestEnrollment(pupilID, session)
	// Half scholarship: 50000 base becomes 25000
	_ = record.SetFeeAdjustment(decimal.NewFromInt(-50), decimal.Zero)
	fee := createTestFeeStructure(session, 50000)

	m.enrollmentRepo.On("FindByPupilAndSession", mock.Anything, pupilID, session).Return(record, nil)
	m.summaryRepo.On("FindByPupilSessionTerm", mock.Anything, pupilID, session, valueobject.SecondTerm).
		Return(nil, shared.ErrNotFound)
	m.feeRepo.On("FindByClassAndSession", mock.Anything, "JSS1A", session).Return(fee, nil)
	m.summaryRepo.On("TermBalance", mock.Anything, pupilID, session, valueobject.FirstTerm).
		Return(valueobject.NewMoneyNGN(decimal.NewFromInt(10000)), true, nil)
	m.receipts.On("Next", mock.Anything, mock.Anything).Return("RCP-20240115-0007-XK2M", nil)
	m.ledger.On("RecordPayment", mock.Anything, mock.Anything, mock.Anything, true).Return(nil)

	result, err := service.RecordPayment(ctx, RecordPaymentRequest{
		PupilID:    pupilID,
		Session:    session,
		Term:       valueobject.SecondTerm,
		Amount:     decimal.NewFromInt(15000),
		Method:     tuition.MethodBankTransfer,
		RecordedBy: "bursar@school",
	})

	require.NoError(t, err)
	// Carried arrears are settled in full before the current term's fee
	assert.Equal(t, "10000", result.ArrearsPayment.String())
	assert.Equal(t, "5000", result.CurrentTermPayment.String())
	assert.Equal(t, "20000", result.BalanceAfter.String())
	assert.Equal(t, tuition.StatusPartial, result.Status)
}

func TestPaymentService_RecordPayment_SecondPaymentReusesStoredSummary(t *testing.T) {
	ctx := context.Background()
	pupilID := uuid.New()
	session := testSession("2023/2024")

	service, m := newTestPaymentService()

	record := createTestEnrollment(pupilID, session)
	summary := createTestSummary(pupilID, session, valueobject.FirstTerm, 50000, 20000)

	m.enrollmentRepo.On("FindByPupilAndSession", mock.Anything, pupilID, session).Return(record, nil)
	m.summaryRepo.On("FindByPupilSessionTerm", mock.Anything, pupilID, session, valueobject.FirstTerm).
		Return(summary, nil)
	m.receipts.On("Next", mock.Anything, mock.Anything).Return("RCP-20240116-0003-QQ4N", nil)
	m.ledger.On("RecordPayment", mock.Anything, mock.Anything, mock.Anything, false).Return(nil)

	result, err := service.RecordPayment(ctx, RecordPaymentRequest{
		PupilID:    pupilID,
		Session:    session,
		Term:       valueobject.FirstTerm,
		Amount:     decimal.NewFromInt(30000),
		Method:     tuition.MethodPOS,
		RecordedBy: "bursar@school",
	})

	require.NoError(t, err)
	assert.Equal(t, "50000", result.TotalPaid.String())
	assert.Equal(t, "0", result.BalanceAfter.String())
	assert.Equal(t, tuition.StatusPaid, result.Status)

	// The stored summary is the baseline: no re-pricing, no fresh
	// arrears resolution
	m.feeRepo.AssertNotCalled(t, "FindByClassAndSession", mock.Anything, mock.Anything, mock.Anything)
	m.summaryRepo.AssertNotCalled(t, "TermBalance", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentService_RecordPayment_ExistingSummaryKeepsFrozenArrears(t *testing.T) {
	ctx := context.Background()
	pupilID := uuid.New()
	session := testSession("2023/2024")

	service, m := newTestPaymentService()

	record := createTestEnrollment(pupilID, session)
	summary, err := tuition.NewPaymentSummary(pupilID, "JSS1A", session, valueobject.SecondTerm,
		valueobject.NewMoneyNGN(decimal.NewFromInt(25000)),
		tuition.ArrearsResult{
			Amount: valueobject.NewMoneyNGN(decimal.NewFromInt(10000)),
			Source: tuition.ArrearsFromPriorTerm,
		},
	)
	require.NoError(t, err)

	m.enrollmentRepo.On("FindByPupilAndSession", mock.Anything, pupilID, session).Return(record, nil)
	m.summaryRepo.On("FindByPupilSessionTerm", mock.Anything, pupilID, session, valueobject.SecondTerm).
		Return(summary, nil)
	m.receipts.On("Next", mock.Anything, mock.Anything).Return("RCP-20240116-0010-B8RT", nil)
	m.ledger.On("RecordPayment", mock.Anything, mock.Anything, mock.Anything, false).Return(nil)

	result, err := service.RecordPayment(ctx, RecordPaymentRequest{
		PupilID:    pupilID,
		Session:    session,
		Term:       valueobject.SecondTerm,
		Amount:     decimal.NewFromInt(35000),
		Method:     tuition.MethodCash,
		RecordedBy: "bursar@school",
	})

	require.NoError(t, err)
	assert.Equal(t, "10000", result.ArrearsPayment.String())
	assert.Equal(t, "25000", result.CurrentTermPayment.String())
	assert.Equal(t, tuition.StatusPaid, result.Status)

	m.summaryRepo.AssertNotCalled(t, "TermBalance", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentService_RecordPayment_OverpaymentRejected(t *testing.T) {
	ctx := context.Background()
	pupilID := uuid.New()
	session := testSession("2023/2024")

	service, m := newTestPaymentService()

	record := createTestEnrollment(pupilID, session)
	// Already settled in full
	summary := createTestSummary(pupilID, session, valueobject.FirstTerm, 25000, 25000)

	m.enrollmentRepo.On("FindByPupilAndSession", mock.Anything, pupilID, session).Return(record, nil)
	m.summaryRepo.On("FindByPupilSessionTerm", mock.Anything, pupilID, session, valueobject.FirstTerm).
		Return(summary, nil)

	result, err := service.RecordPayment(ctx, RecordPaymentRequest{
		PupilID:    pupilID,
		Session:    session,
		Term:       valueobject.FirstTerm,
		Amount:     decimal.NewFromInt(1),
		Method:     tuition.MethodCash,
		RecordedBy: "bursar@school",
	})

	assert.Error(t, err)
	assert.Nil(t, result)

	var overErr *tuition.OverpaymentError
	require.True(t, errors.As(err, &overErr))
	assert.Equal(t, "0", overErr.MaxAllowed.String())
	assert.Contains(t, err.Error(), "maximum allowed is 0.00")

	// Rejected before any write
	m.ledger.AssertNotCalled(t, "RecordPayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	m.receipts.AssertNotCalled(t, "Next", mock.Anything, mock.Anything)
}

func TestPaymentService_RecordPayment_ExactRemainderAccepted(t *testing.T) {
	ctx := context.Background()
	pupilID := uuid.New()
	session := testSession("2023/2024")

	service, m := newTestPaymentService()

	record := createTestEnrollment(pupilID, session)
	summary := createTestSummary(pupilID, session, valueobject.FirstTerm, 50000, 30000)

	m.enrollmentRepo.On("FindByPupilAndSession", mock.Anything, pupilID, session).Return(record, nil)
	m.summaryRepo.On("FindByPupilSessionTerm", mock.Anything, pupilID, session, valueobject.FirstTerm).
		Return(summary, nil)
	m.receipts.On("Next", mock.Anything, mock.Anything).Return("RCP-20240117-0001-M3WD", nil)
	m.ledger.On("RecordPayment", mock.Anything, mock.Anything, mock.Anything, false).Return(nil)

	result, err := service.RecordPayment(ctx, RecordPaymentRequest{
		PupilID:    pupilID,
		Session:    session,
		Term:       valueobject.FirstTerm,
		Amount:     decimal.NewFromInt(20000),
		Method:     tuition.MethodCash,
		RecordedBy: "bursar@school",
	})

	require.NoError(t, err)
	assert.Equal(t, "0", result.BalanceAfter.String())
	assert.Equal(t, tuition.StatusPaid, result.Status)
}

func TestPaymentService_RecordPayment_InvalidRequest(t *testing.T) {
	ctx := context.Background()
	session := testSession("2023/2024")

	service, m := newTestPaymentService()

	valid := RecordPaymentRequest{
		PupilID:    uuid.New(),
		Session:    session,
		Term:       valueobject.FirstTerm,
		Amount:     decimal.NewFromInt(1000),
		Method:     tuition.MethodCash,
		RecordedBy: "bursar@school",
	}

	testCases := []struct {
		name    string
		mutate  func(r *RecordPaymentRequest)
		message string
	}{
		{"zero amount", func(r *RecordPaymentRequest) { r.Amount = decimal.Zero }, "Payment amount must be positive"},
		{"negative amount", func(r *RecordPaymentRequest) { r.Amount = decimal.NewFromInt(-500) }, "Payment amount must be positive"},
		{"invalid method", func(r *RecordPaymentRequest) { r.Method = "cowries" }, "Payment method is not valid"},
		{"missing recorder", func(r *RecordPaymentRequest) { r.RecordedBy = "" }, "Recording user is required"},
		{"missing session", func(r *RecordPaymentRequest) { r.Session = valueobject.Session{} }, "Session is required"},
		{"invalid term", func(r *RecordPaymentRequest) { r.Term = valueobject.Term(7) }, "Term must be 1, 2 or 3"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := valid
			tc.mutate(&req)

			result, err := service.RecordPayment(ctx, req)

			assert.Error(t, err)
			assert.Nil(t, result)
			assert.Contains(t, err.Error(), tc.message)
		})
	}

	m.enrollmentRepo.AssertNotCalled(t, "FindByPupilAndSession", mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentService_RecordPayment_PupilNotEnrolled(t *testing.T) {
	ctx := context.Background()
	pupilID := uuid.New()
	session := testSession("2023/2024")

	service, m := newTestPaymentService()

	m.enrollmentRepo.On("FindByPupilAndSession", mock.Anything, pupilID, session).
		Return(nil, shared.ErrNotFound)

	result, err := service.RecordPayment(ctx, RecordPaymentRequest{
		PupilID:    pupilID,
		Session:    session,
		Term:       valueobject.FirstTerm,
		Amount:     decimal.NewFromInt(1000),
		Method:     tuition.MethodCash,
		RecordedBy: "bursar@school",
	})

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "not enrolled")
}

func TestPaymentService_RecordPayment_NoFeeStructure(t *testing.T) {
	ctx := context.Background()
	pupilID := uuid.New()
	session := testSession("2023/2024")

	service, m := newTestPaymentService()

	record := createTestEnrollment(pupilID, session)

	m.enrollmentRepo.On("FindByPupilAndSession", mock.Anything, pupilID, session).Return(record, nil)
	m.summaryRepo.On("FindByPupilSessionTerm", mock.Anything, pupilID, session, valueobject.FirstTerm).
		Return(nil, shared.ErrNotFound)
	m.feeRepo.On("FindByClassAndSession", mock.Anything, "JSS1A", session).Return(nil, shared.ErrNotFound)

	result, err := service.RecordPayment(ctx, RecordPaymentRequest{
		PupilID:    pupilID,
		Session:    session,
		Term:       valueobject.FirstTerm,
		Amount:     decimal.NewFromInt(1000),
		Method:     tuition.MethodCash,
		RecordedBy: "bursar@school",
	})

	// A payment cannot be priced without a fee structure; unlike balance
	// queries this is a hard failure
	assert.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "No fee structure configured")

	m.ledger.AssertNotCalled(t, "RecordPayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentService_RecordPayment_RetriesOnWriteConflict(t *testing.T) {
	ctx := context.Background()
	pupilID := uuid.New()
	session := testSession("2023/2024")

	service, m := newTestPaymentService()

	record := createTestEnrollment(pupilID, session)
	fee := createTestFeeStructure(session, 50000)

	m.enrollmentRepo.On("FindByPupilAndSession", mock.Anything, pupilID, session).Return(record, nil)
	m.summaryRepo.On("FindByPupilSessionTerm", mock.Anything, pupilID, session, valueobject.FirstTerm).
		Return(nil, shared.ErrNotFound)
	m.feeRepo.On("FindByClassAndSession", mock.Anything, "JSS1A", session).Return(fee, nil)
	m.summaryRepo.On("TermBalance", mock.Anything, pupilID, testSession("2022/2023"), valueobject.ThirdTerm).
		Return(valueobject.ZeroNGN(), false, nil)
	m.receipts.On("Next", mock.Anything, mock.Anything).Return("RCP-20240118-0021-F6YH", nil).Once()
	m.receipts.On("Next", mock.Anything, mock.Anything).Return("RCP-20240118-0022-J9PL", nil).Once()

	// First write loses the race, the retry goes through against
	// freshly read state
	m.ledger.On("RecordPayment", mock.Anything, mock.Anything, mock.Anything, true).
		Return(shared.ErrConcurrencyConflict).Once()
	m.ledger.On("RecordPayment", mock.Anything, mock.Anything, mock.Anything, true).
		Return(nil).Once()

	result, err := service.RecordPayment(ctx, RecordPaymentRequest{
		PupilID:    pupilID,
		Session:    session,
		Term:       valueobject.FirstTerm,
		Amount:     decimal.NewFromInt(30000),
		Method:     tuition.MethodCash,
		RecordedBy: "bursar@school",
	})

	require.NoError(t, err)
	// The burned receipt number from the failed attempt is not reused
	assert.Equal(t, "RCP-20240118-0022-J9PL", result.ReceiptNo)
	assert.Equal(t, "20000", result.BalanceAfter.String())

	m.ledger.AssertNumberOfCalls(t, "RecordPayment", 2)
	m.receipts.AssertNumberOfCalls(t, "Next", 2)
}

func TestPaymentService_RecordPayment_ConflictRetriesExhausted(t *testing.T) {
	ctx := context.Background()
	pupilID := uuid.New()
	session := testSession("2023/2024")

	service, m := newTestPaymentService()

	record := createTestEnrollment(pupilID, session)
	fee := createTestFeeStructure(session, 50000)

	m.enrollmentRepo.On("FindByPupilAndSession", mock.Anything, pupilID, session).Return(record, nil)
	m.summaryRepo.On("FindByPupilSessionTerm", mock.Anything, pupilID, session, valueobject.FirstTerm).
		Return(nil, shared.ErrNotFound)
	m.feeRepo.On("FindByClassAndSession", mock.Anything, "JSS1A", session).Return(fee, nil)
	m.summaryRepo.On("TermBalance", mock.Anything, pupilID, testSession("2022/2023"), valueobject.ThirdTerm).
		Return(valueobject.ZeroNGN(), false, nil)
	m.receipts.On("Next", mock.Anything, mock.Anything).Return("RCP-20240118-0030-D2KC", nil)
	m.ledger.On("RecordPayment", mock.Anything, mock.Anything, mock.Anything, true).
		Return(shared.ErrConcurrencyConflict)

	result, err := service.RecordPayment(ctx, RecordPaymentRequest{
		PupilID:    pupilID,
		Session:    session,
		Term:       valueobject.FirstTerm,
		Amount:     decimal.NewFromInt(30000),
		Method:     tuition.MethodCash,
		RecordedBy: "bursar@school",
	})

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "failed to record payment")
	assert.True(t, errors.Is(err, shared.ErrConcurrencyConflict))

	m.ledger.AssertNumberOfCalls(t, "RecordPayment", maxConflictRetries+1)
}

func TestPaymentService_RecordPayment_DuplicateIdempotencyKey(t *testing.T) {
	ctx := context.Background()
	session := testSession("2023/2024")

	service, m := newTestPaymentService()
	store := new(MockIdempotencyStore)
	service.SetIdempotencyStore(store)

	store.On("MarkProcessed", mock.Anything, "pay-abc-123", paymentIdempotencyTTL).Return(false, nil)

	result, err := service.RecordPayment(ctx, RecordPaymentRequest{
		PupilID:        uuid.New(),
		Session:        session,
		Term:           valueobject.FirstTerm,
		Amount:         decimal.NewFromInt(1000),
		Method:         tuition.MethodCash,
		RecordedBy:     "bursar@school",
		IdempotencyKey: "pay-abc-123",
	})

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "already been recorded")

	m.enrollmentRepo.AssertNotCalled(t, "FindByPupilAndSession", mock.Anything, mock.Anything, mock.Anything)
	store.AssertExpectations(t)
}

func TestPaymentService_RecordPayment_IdempotencyStoreDownProcessesAnyway(t *testing.T) {
	ctx := context.Background()
	pupilID := uuid.New()
	session := testSession("2023/2024")

	service, m := newTestPaymentService()
	store := new(MockIdempotencyStore)
	service.SetIdempotencyStore(store)

	record := createTestEnrollment(pupilID, session)
	summary := createTestSummary(pupilID, session, valueobject.FirstTerm, 50000, 0)

	store.On("MarkProcessed", mock.Anything, "pay-abc-456", paymentIdempotencyTTL).
		Return(false, errors.New("connection refused"))
	m.enrollmentRepo.On("FindByPupilAndSession", mock.Anything, pupilID, session).Return(record, nil)
	m.summaryRepo.On("FindByPupilSessionTerm", mock.Anything, pupilID, session, valueobject.FirstTerm).
		Return(summary, nil)
	m.receipts.On("Next", mock.Anything, mock.Anything).Return("RCP-20240119-0002-T5VB", nil)
	m.ledger.On("RecordPayment", mock.Anything, mock.Anything, mock.Anything, false).Return(nil)

	result, err := service.RecordPayment(ctx, RecordPaymentRequest{
		PupilID:        pupilID,
		Session:        session,
		Term:           valueobject.FirstTerm,
		Amount:         decimal.NewFromInt(10000),
		Method:         tuition.MethodCash,
		RecordedBy:     "bursar@school",
		IdempotencyKey: "pay-abc-456",
	})

	// An unreachable idempotency store must not block payments
	require.NoError(t, err)
	assert.Equal(t, "10000", result.AmountPaid.String())
}

func TestPaymentService_RecordPayment_FreshSummaryDegradedArrears(t *testing.T) {
	ctx := context.Background()
	pupilID := uuid.New()
	session := testSession("2023/2024")

	service, m := newTestPaymentService()

	record := createTestEnrollment(pupilID, session)
	fee := createTestFeeStructure(session, 50000)

	m.enrollmentRepo.On("FindByPupilAndSession", mock.Anything, pupilID, session).Return(record, nil)
	m.summaryRepo.On("FindByPupilSessionTerm", mock.Anything, pupilID, session, valueobject.SecondTerm).
		Return(nil, shared.ErrNotFound)
	m.feeRepo.On("FindByClassAndSession", mock.Anything, "JSS1A", session).Return(fee, nil)
	m.summaryRepo.On("TermBalance", mock.Anything, pupilID, session, valueobject.FirstTerm).
		Return(valueobject.ZeroNGN(), false, errors.New("store timeout"))
	m.receipts.On("Next", mock.Anything, mock.Anything).Return("RCP-20240119-0015-R8ZA", nil)

	var savedSummary *tuition.PaymentSummary
	m.ledger.On("RecordPayment", mock.Anything, mock.Anything, mock.Anything, true).
		Run(func(args mock.Arguments) {
			savedSummary = args.Get(1).(*tuition.PaymentSummary)
		}).Return(nil)

	result, err := service.RecordPayment(ctx, RecordPaymentRequest{
		PupilID:    pupilID,
		Session:    session,
		Term:       valueobject.SecondTerm,
		Amount:     decimal.NewFromInt(10000),
		Method:     tuition.MethodCash,
		RecordedBy: "bursar@school",
	})

	// The payment proceeds with zero arrears frozen into the summary,
	// and the degraded source is recorded for later reconciliation
	require.NoError(t, err)
	assert.Equal(t, "0", result.ArrearsPayment.String())
	require.NotNil(t, savedSummary)
	assert.Equal(t, "0", savedSummary.Arrears.String())
	assert.Equal(t, tuition.ArrearsDegraded, savedSummary.ArrearsSource)
}
