package tuition

import (
	"context"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/shared/valueobject"
)

// ArrearsSource identifies which prior period an arrears figure was
// carried from, or why none was
type ArrearsSource string

const (
	// ArrearsFromPriorTerm means the balance of the preceding term in
	// the same session was carried forward
	ArrearsFromPriorTerm ArrearsSource = "prior_term"
	// ArrearsFromPriorSession means the final term balance of the
	// previous session was carried forward
	ArrearsFromPriorSession ArrearsSource = "prior_session"
	// ArrearsNone means no prior record exists to carry from
	ArrearsNone ArrearsSource = "none"
	// ArrearsDegraded means the prior-period lookup failed and zero
	// was substituted so the calculation could proceed
	ArrearsDegraded ArrearsSource = "degraded"
)

// IsValid checks if the source is a valid ArrearsSource
func (s ArrearsSource) IsValid() bool {
	switch s {
	case ArrearsFromPriorTerm, ArrearsFromPriorSession, ArrearsNone, ArrearsDegraded:
		return true
	}
	return false
}

// String returns the string representation of ArrearsSource
func (s ArrearsSource) String() string {
	return string(s)
}

// ArrearsResult is the outcome of an arrears resolution. When Source is
// ArrearsDegraded the amount is zero and Err holds the lookup failure
// for the caller to log; resolution itself never fails
type ArrearsResult struct {
	Amount valueobject.Money
	Source ArrearsSource
	Err    error
}

// PriorBalanceReader reads a stored term balance for arrears resolution.
// The second return is false when no summary exists for the period
type PriorBalanceReader interface {
	TermBalance(ctx context.Context, pupilID uuid.UUID, session valueobject.Session, term valueobject.Term) (valueobject.Money, bool, error)
}

// ArrearsResolver determines how much unpaid balance from prior periods
// carries into a term's total due.
//
// Within a session each term carries only the immediately preceding
// term's balance; that balance already contains everything unpaid
// before it, so summing further periods would double count. The first
// term of a session carries the previous session's final term balance
// under the same reasoning
type ArrearsResolver struct {
	balances PriorBalanceReader
}

// NewArrearsResolver creates an arrears resolver over stored balances
func NewArrearsResolver(balances PriorBalanceReader) *ArrearsResolver {
	return &ArrearsResolver{balances: balances}
}

// Resolve returns the arrears carried into the given term. A missing
// prior record resolves to zero (the normal case for a pupil's first
// term); a failed lookup resolves to zero in degraded mode rather than
// failing the current calculation
func (r *ArrearsResolver) Resolve(ctx context.Context, pupilID uuid.UUID, session valueobject.Session, term valueobject.Term) ArrearsResult {
	priorSession := session
	priorTerm := term

	if term.IsFirst() {
		priorSession = session.Previous()
		priorTerm = valueobject.ThirdTerm
	} else {
		prev, ok := term.PreviousInSession()
		if !ok {
			return ArrearsResult{Amount: valueobject.ZeroNGN(), Source: ArrearsNone}
		}
		priorTerm = prev
	}

	balance, found, err := r.balances.TermBalance(ctx, pupilID, priorSession, priorTerm)
	if err != nil {
		return ArrearsResult{Amount: valueobject.ZeroNGN(), Source: ArrearsDegraded, Err: err}
	}
	if !found {
		return ArrearsResult{Amount: valueobject.ZeroNGN(), Source: ArrearsNone}
	}

	source := ArrearsFromPriorTerm
	if term.IsFirst() {
		source = ArrearsFromPriorSession
	}
	return ArrearsResult{Amount: balance.ClampNonNegative(), Source: source}
}
