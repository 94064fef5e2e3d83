package tuition

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// OverpaymentError rejects a payment that would push the paid total
// above the total due. It carries the exact maximum still payable
type OverpaymentError struct {
	Attempted  decimal.Decimal
	MaxAllowed decimal.Decimal
}

// Error implements the error interface
func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("Payment of %s exceeds the outstanding balance; maximum allowed is %s",
		e.Attempted.StringFixed(2), e.MaxAllowed.StringFixed(2))
}

// PaymentSplit is the frozen before/after snapshot of one payment,
// including how it divides between arrears and the current term
type PaymentSplit struct {
	AmountPaid         decimal.Decimal
	ArrearsPayment     decimal.Decimal
	CurrentTermPayment decimal.Decimal
	TotalPaidBefore    decimal.Decimal
	TotalPaidAfter     decimal.Decimal
	BalanceBefore      decimal.Decimal
	BalanceAfter       decimal.Decimal
	StatusAfter        PaymentStatus
}

// PaymentSummary is the mutable running state of one pupil's account
// for one (session, term): what is due, what has been paid and what
// remains. It is created lazily on first payment and merged on each
// later one. Arrears are frozen at creation and not re-derived on
// subsequent payments; live balance queries recompute them instead
type PaymentSummary struct {
	shared.BaseAggregateRoot
	PupilID       uuid.UUID           `json:"pupil_id"`
	ClassID       string              `json:"class_id"`
	Session       valueobject.Session `json:"session"`
	Term          valueobject.Term    `json:"term"`
	AmountDue     decimal.Decimal     `json:"amount_due"` // Adjusted fee for the term itself
	Arrears       decimal.Decimal     `json:"arrears"`    // Prior-period debt carried in, fixed at creation
	ArrearsSource ArrearsSource       `json:"arrears_source"`
	TotalDue      decimal.Decimal     `json:"total_due"`  // AmountDue + Arrears
	TotalPaid     decimal.Decimal     `json:"total_paid"` // Sum of all recorded payments
	Balance       decimal.Decimal     `json:"balance"`    // max(0, TotalDue - TotalPaid)
	Status        PaymentStatus       `json:"status"`
	LastPaymentAt *time.Time          `json:"last_payment_at"`
}

// NewPaymentSummary creates the initial account state for a pupil's
// term, with nothing paid yet
func NewPaymentSummary(
	pupilID uuid.UUID,
	classID string,
	session valueobject.Session,
	term valueobject.Term,
	amountDue valueobject.Money,
	arrears ArrearsResult,
) (*PaymentSummary, error) {
	if pupilID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PUPIL", "Pupil ID cannot be empty")
	}
	if classID == "" {
		return nil, shared.NewDomainError("INVALID_CLASS", "Class ID cannot be empty")
	}
	if session.IsZero() {
		return nil, shared.NewDomainError("INVALID_SESSION", "Session is required")
	}
	if !term.IsValid() {
		return nil, shared.NewDomainError("INVALID_TERM", "Term must be 1, 2 or 3")
	}
	if amountDue.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Amount due cannot be negative")
	}
	if arrears.Amount.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Arrears cannot be negative")
	}

	source := arrears.Source
	if !source.IsValid() {
		source = ArrearsNone
	}

	totalDue := amountDue.Amount().Add(arrears.Amount.Amount())
	balance := totalDue
	if balance.IsNegative() {
		balance = decimal.Zero
	}

	return &PaymentSummary{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		PupilID:           pupilID,
		ClassID:           classID,
		Session:           session,
		Term:              term,
		AmountDue:         amountDue.Amount(),
		Arrears:           arrears.Amount.Amount(),
		ArrearsSource:     source,
		TotalDue:          totalDue,
		TotalPaid:         decimal.Zero,
		Balance:           balance,
		Status:            DerivePaymentStatus(decimal.Zero, balance, arrears.Amount.Amount()),
	}, nil
}

// LedgerKey returns the unique slash-free key for this summary,
// e.g. "<pupil-uuid>_2023-2024_1"
func (s *PaymentSummary) LedgerKey() string {
	return LedgerKey(s.PupilID, s.Session, s.Term)
}

// LedgerKey builds the canonical summary key from its parts
func LedgerKey(pupilID uuid.UUID, session valueobject.Session, term valueobject.Term) string {
	return fmt.Sprintf("%s_%s_%d", pupilID, session.StorageKey(), term.Ordinal())
}

// ApplyPayment credits a payment against this account, paying down
// carried arrears in full before the current term's fee. A payment
// that would exceed the total due is rejected with the exact maximum
// still payable and no state change
func (s *PaymentSummary) ApplyPayment(amount valueobject.Money, at time.Time) (*PaymentSplit, error) {
	if !amount.IsPositive() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be positive")
	}

	maxAllowed := s.TotalDue.Sub(s.TotalPaid)
	if maxAllowed.IsNegative() {
		maxAllowed = decimal.Zero
	}
	if amount.Amount().GreaterThan(maxAllowed) {
		return nil, &OverpaymentError{Attempted: amount.Amount(), MaxAllowed: maxAllowed}
	}

	// Arrears still unpaid before this payment: everything paid so far
	// went to arrears first
	arrearsOutstanding := s.Arrears.Sub(decimal.Min(s.TotalPaid, s.Arrears))
	arrearsPayment := decimal.Min(amount.Amount(), arrearsOutstanding)
	currentTermPayment := amount.Amount().Sub(arrearsPayment)

	split := &PaymentSplit{
		AmountPaid:         amount.Amount(),
		ArrearsPayment:     arrearsPayment,
		CurrentTermPayment: currentTermPayment,
		TotalPaidBefore:    s.TotalPaid,
		BalanceBefore:      s.Balance,
	}

	s.TotalPaid = s.TotalPaid.Add(amount.Amount())
	balance := s.TotalDue.Sub(s.TotalPaid)
	if balance.IsNegative() {
		balance = decimal.Zero
	}
	s.Balance = balance
	s.Status = DerivePaymentStatus(s.TotalPaid, s.Balance, s.Arrears)
	s.LastPaymentAt = &at
	s.Touch()
	s.IncrementVersion()

	split.TotalPaidAfter = s.TotalPaid
	split.BalanceAfter = s.Balance
	split.StatusAfter = s.Status

	s.AddDomainEvent(NewPaymentRecordedEvent(s, split))

	return split, nil
}

// MaxPayable returns how much more can be paid before the account is settled
func (s *PaymentSummary) MaxPayable() decimal.Decimal {
	max := s.TotalDue.Sub(s.TotalPaid)
	if max.IsNegative() {
		return decimal.Zero
	}
	return max
}

// IsSettled returns true when nothing further is owed
func (s *PaymentSummary) IsSettled() bool {
	return s.Status == StatusPaid
}

// HasArrears returns true when prior-period debt was carried in
func (s *PaymentSummary) HasArrears() bool {
	return s.Arrears.GreaterThan(decimal.Zero)
}

// GetAmountDueMoney returns the term's adjusted fee as Money
func (s *PaymentSummary) GetAmountDueMoney() valueobject.Money {
	return valueobject.NewMoneyNGN(s.AmountDue)
}

// GetArrearsMoney returns the carried arrears as Money
func (s *PaymentSummary) GetArrearsMoney() valueobject.Money {
	return valueobject.NewMoneyNGN(s.Arrears)
}

// GetTotalDueMoney returns the total due as Money
func (s *PaymentSummary) GetTotalDueMoney() valueobject.Money {
	return valueobject.NewMoneyNGN(s.TotalDue)
}

// GetTotalPaidMoney returns the paid total as Money
func (s *PaymentSummary) GetTotalPaidMoney() valueobject.Money {
	return valueobject.NewMoneyNGN(s.TotalPaid)
}

// GetBalanceMoney returns the open balance as Money
func (s *PaymentSummary) GetBalanceMoney() valueobject.Money {
	return valueobject.NewMoneyNGN(s.Balance)
}
