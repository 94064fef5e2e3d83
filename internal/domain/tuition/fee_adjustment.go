package tuition

import (
	"github.com/schoolerp/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// FeeAdjustment carries the enrollment parameters that shape a pupil's
// fee for a term: the enrollment window and any discount or surcharge
type FeeAdjustment struct {
	// AdmissionTerm is the first term the pupil is enrolled for.
	// An unset (invalid) value is treated as the first term
	AdmissionTerm valueobject.Term
	// ExitTerm is the last term the pupil is enrolled for, nil while
	// the pupil remains enrolled through the final term
	ExitTerm *valueobject.Term
	// Percent is a signed percentage applied multiplicatively,
	// e.g. -50 halves the fee
	Percent decimal.Decimal
	// Amount is a signed flat adjustment applied after the percentage
	Amount decimal.Decimal
}

// NoAdjustment returns a FeeAdjustment covering the whole session with
// no discount or surcharge
func NoAdjustment() FeeAdjustment {
	return FeeAdjustment{AdmissionTerm: valueobject.FirstTerm}
}

// ResolveAdjustedFee computes the fee a pupil actually owes for a term.
// A term outside the enrollment window owes nothing. Otherwise the base
// fee is scaled by the percentage, shifted by the flat amount, and
// clamped to zero. Pure function of its inputs
func ResolveAdjustedFee(baseFee valueobject.Money, term valueobject.Term, adj FeeAdjustment) valueobject.Money {
	currency := baseFee.Currency()
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}

	admission := adj.AdmissionTerm
	if !admission.IsValid() {
		admission = valueobject.FirstTerm
	}

	if term.Ordinal() < admission.Ordinal() {
		return valueobject.Zero(currency)
	}
	if adj.ExitTerm != nil && adj.ExitTerm.IsValid() && term.Ordinal() > adj.ExitTerm.Ordinal() {
		return valueobject.Zero(currency)
	}

	base, _ := valueobject.NewMoney(baseFee.Amount(), currency)
	scaled := base.MustAdd(base.CalculatePercentage(adj.Percent))
	flat, _ := valueobject.NewMoney(adj.Amount, currency)
	return scaled.MustAdd(flat).ClampNonNegative()
}
