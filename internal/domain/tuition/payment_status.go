package tuition

import "github.com/shopspring/decimal"

// PaymentStatus classifies the state of a pupil's term account
type PaymentStatus string

const (
	StatusPaid             PaymentStatus = "paid"               // Fully settled, something was paid
	StatusPartial          PaymentStatus = "partial"            // Paid in part, balance remains
	StatusOwing            PaymentStatus = "owing"              // Nothing paid, no arrears carried
	StatusOwingWithArrears PaymentStatus = "owing_with_arrears" // Nothing paid, prior-period debt carried in
)

// IsValid checks if the status is a valid PaymentStatus
func (s PaymentStatus) IsValid() bool {
	switch s {
	case StatusPaid, StatusPartial, StatusOwing, StatusOwingWithArrears:
		return true
	}
	return false
}

// String returns the string representation of PaymentStatus
func (s PaymentStatus) String() string {
	return string(s)
}

// IsSettled returns true when nothing further is owed
func (s PaymentStatus) IsSettled() bool {
	return s == StatusPaid
}

// DerivePaymentStatus classifies an account from its paid total, open
// balance and carried arrears. Precedence: a cleared balance with any
// payment wins, then partial payment, then arrears, then plain owing
func DerivePaymentStatus(totalPaid, balance, arrears decimal.Decimal) PaymentStatus {
	switch {
	case balance.LessThanOrEqual(decimal.Zero) && totalPaid.GreaterThan(decimal.Zero):
		return StatusPaid
	case totalPaid.GreaterThan(decimal.Zero) && balance.GreaterThan(decimal.Zero):
		return StatusPartial
	case arrears.GreaterThan(decimal.Zero):
		return StatusOwingWithArrears
	default:
		return StatusOwing
	}
}
