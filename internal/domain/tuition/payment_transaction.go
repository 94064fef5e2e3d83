package tuition

import (
	"time"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// PaymentMethod is how a payment was made
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodPOS          PaymentMethod = "pos"
	MethodCheque       PaymentMethod = "cheque"
	MethodOnline       PaymentMethod = "online"
)

// IsValid checks if the method is a valid PaymentMethod
func (m PaymentMethod) IsValid() bool {
	switch m {
	case MethodCash, MethodBankTransfer, MethodPOS, MethodCheque, MethodOnline:
		return true
	}
	return false
}

// String returns the string representation of PaymentMethod
func (m PaymentMethod) String() string {
	return string(m)
}

// PaymentTransaction is the immutable audit record of one completed
// payment, keyed by its receipt number. It freezes the account state
// before and after the payment and the arrears/current-term split.
// Never updated after creation
type PaymentTransaction struct {
	shared.BaseEntity
	ReceiptNo          string              `json:"receipt_no"`
	PupilID            uuid.UUID           `json:"pupil_id"`
	PupilName          string              `json:"pupil_name"`
	ClassID            string              `json:"class_id"`
	Session            valueobject.Session `json:"session"`
	Term               valueobject.Term    `json:"term"`
	AmountDue          decimal.Decimal     `json:"amount_due"`
	Arrears            decimal.Decimal     `json:"arrears"`
	TotalDue           decimal.Decimal     `json:"total_due"`
	AmountPaid         decimal.Decimal     `json:"amount_paid"`
	ArrearsPayment     decimal.Decimal     `json:"arrears_payment"`
	CurrentTermPayment decimal.Decimal     `json:"current_term_payment"`
	TotalPaidBefore    decimal.Decimal     `json:"total_paid_before"`
	TotalPaidAfter     decimal.Decimal     `json:"total_paid_after"`
	BalanceBefore      decimal.Decimal     `json:"balance_before"`
	BalanceAfter       decimal.Decimal     `json:"balance_after"`
	StatusAfter        PaymentStatus       `json:"status_after"`
	Method             PaymentMethod       `json:"method"`
	Notes              string              `json:"notes,omitempty"`
	RecordedBy         string              `json:"recorded_by"`
	PaidAt             time.Time           `json:"paid_at"`
}

// NewPaymentTransaction builds the audit record for a payment just
// applied to a summary. The split must balance: arrears payment plus
// current-term payment equal to the amount paid, and the paid totals
// must advance by exactly that amount
func NewPaymentTransaction(
	receiptNo string,
	summary *PaymentSummary,
	pupilName string,
	split *PaymentSplit,
	method PaymentMethod,
	notes string,
	recordedBy string,
	paidAt time.Time,
) (*PaymentTransaction, error) {
	if receiptNo == "" {
		return nil, shared.NewDomainError("INVALID_RECEIPT", "Receipt number cannot be empty")
	}
	if len(receiptNo) > 50 {
		return nil, shared.NewDomainError("INVALID_RECEIPT", "Receipt number cannot exceed 50 characters")
	}
	if summary == nil {
		return nil, shared.NewDomainError("INVALID_SUMMARY", "Payment summary is required")
	}
	if split == nil {
		return nil, shared.NewDomainError("INVALID_SPLIT", "Payment split is required")
	}
	if !method.IsValid() {
		return nil, shared.NewDomainError("INVALID_METHOD", "Payment method is not valid")
	}
	if recordedBy == "" {
		return nil, shared.NewDomainError("INVALID_RECORDER", "Recording user is required")
	}
	if !split.ArrearsPayment.Add(split.CurrentTermPayment).Equal(split.AmountPaid) {
		return nil, shared.NewDomainError("INCONSISTENT_SPLIT", "Arrears and current term payments must sum to the amount paid")
	}
	if !split.TotalPaidBefore.Add(split.AmountPaid).Equal(split.TotalPaidAfter) {
		return nil, shared.NewDomainError("INCONSISTENT_SPLIT", "Paid totals must advance by exactly the amount paid")
	}

	return &PaymentTransaction{
		BaseEntity:         shared.NewBaseEntity(),
		ReceiptNo:          receiptNo,
		PupilID:            summary.PupilID,
		PupilName:          pupilName,
		ClassID:            summary.ClassID,
		Session:            summary.Session,
		Term:               summary.Term,
		AmountDue:          summary.AmountDue,
		Arrears:            summary.Arrears,
		TotalDue:           summary.TotalDue,
		AmountPaid:         split.AmountPaid,
		ArrearsPayment:     split.ArrearsPayment,
		CurrentTermPayment: split.CurrentTermPayment,
		TotalPaidBefore:    split.TotalPaidBefore,
		TotalPaidAfter:     split.TotalPaidAfter,
		BalanceBefore:      split.BalanceBefore,
		BalanceAfter:       split.BalanceAfter,
		StatusAfter:        split.StatusAfter,
		Method:             method,
		Notes:              notes,
		RecordedBy:         recordedBy,
		PaidAt:             paidAt,
	}, nil
}

// GetAmountPaidMoney returns the paid amount as Money
func (t *PaymentTransaction) GetAmountPaidMoney() valueobject.Money {
	return valueobject.NewMoneyNGN(t.AmountPaid)
}

// GetArrearsPaymentMoney returns the arrears portion as Money
func (t *PaymentTransaction) GetArrearsPaymentMoney() valueobject.Money {
	return valueobject.NewMoneyNGN(t.ArrearsPayment)
}

// GetCurrentTermPaymentMoney returns the current-term portion as Money
func (t *PaymentTransaction) GetCurrentTermPaymentMoney() valueobject.Money {
	return valueobject.NewMoneyNGN(t.CurrentTermPayment)
}

// GetBalanceAfterMoney returns the post-payment balance as Money
func (t *PaymentTransaction) GetBalanceAfterMoney() valueobject.Money {
	return valueobject.NewMoneyNGN(t.BalanceAfter)
}
