package tuition

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/domain/shared/valueobject"
)

// FeeStructureRepository defines the interface for fee structure persistence
type FeeStructureRepository interface {
	// FindByID finds a fee structure by ID
	FindByID(ctx context.Context, id uuid.UUID) (*FeeStructure, error)

	// FindByClassAndSession finds the fee structure for a class in a session.
	// Returns shared.ErrNotFound when none is configured
	FindByClassAndSession(ctx context.Context, classID string, session valueobject.Session) (*FeeStructure, error)

	// FindBySession finds all fee structures for a session
	FindBySession(ctx context.Context, session valueobject.Session, filter shared.Filter) ([]FeeStructure, error)

	// FindAll finds all fee structures with filtering
	FindAll(ctx context.Context, filter shared.Filter) ([]FeeStructure, error)

	// Save creates or updates a fee structure
	Save(ctx context.Context, fs *FeeStructure) error

	// SaveWithLock saves with optimistic locking (version check)
	SaveWithLock(ctx context.Context, fs *FeeStructure) error

	// Delete deletes a fee structure
	Delete(ctx context.Context, id uuid.UUID) error

	// CountBySession counts the fee structures of one session, paired
	// with FindBySession for pagination totals
	CountBySession(ctx context.Context, session valueobject.Session, filter shared.Filter) (int64, error)
}

// PaymentSummaryRepository defines the interface for payment summary persistence
type PaymentSummaryRepository interface {
	PriorBalanceReader

	// FindByID finds a payment summary by ID
	FindByID(ctx context.Context, id uuid.UUID) (*PaymentSummary, error)

	// FindByPupilSessionTerm finds the summary for one pupil-session-term.
	// Returns shared.ErrNotFound when none exists yet
	FindByPupilSessionTerm(ctx context.Context, pupilID uuid.UUID, session valueobject.Session, term valueobject.Term) (*PaymentSummary, error)

	// FindByPupilAndSession finds a pupil's summaries across a session,
	// ordered by term
	FindByPupilAndSession(ctx context.Context, pupilID uuid.UUID, session valueobject.Session) ([]PaymentSummary, error)

	// FindBySessionAndTerm finds all summaries for a session and term
	FindBySessionAndTerm(ctx context.Context, session valueobject.Session, term valueobject.Term, filter shared.Filter) ([]PaymentSummary, error)

	// FindOwingBySessionAndTerm finds summaries with an open balance
	// for a session and term
	FindOwingBySessionAndTerm(ctx context.Context, session valueobject.Session, term valueobject.Term, filter shared.Filter) ([]PaymentSummary, error)

	// CountBySessionAndTerm counts summaries for a session and term
	CountBySessionAndTerm(ctx context.Context, session valueobject.Session, term valueobject.Term, filter shared.Filter) (int64, error)
}

// PaymentLedger persists a completed payment: the immutable transaction
// and the merged summary are written in one database transaction, so
// both succeed or neither does
type PaymentLedger interface {
	// RecordPayment writes the transaction and summary atomically.
	// A freshly created summary is inserted, with the unique ledger key
	// rejecting a concurrent first payment; an existing summary is
	// updated under an optimistic version check. Either conflict
	// surfaces as shared.ErrConcurrencyConflict so the caller can
	// re-read and re-validate
	RecordPayment(ctx context.Context, summary *PaymentSummary, txn *PaymentTransaction, summaryIsNew bool) error
}

// PaymentTransactionRepository defines read access to the audit trail
type PaymentTransactionRepository interface {
	// FindByID finds a payment transaction by ID
	FindByID(ctx context.Context, id uuid.UUID) (*PaymentTransaction, error)

	// FindByReceiptNo finds a payment transaction by its receipt number
	FindByReceiptNo(ctx context.Context, receiptNo string) (*PaymentTransaction, error)

	// FindByPupilAndSession finds a pupil's transactions in a session,
	// most recent first
	FindByPupilAndSession(ctx context.Context, pupilID uuid.UUID, session valueobject.Session) ([]PaymentTransaction, error)

	// FindByDateRange finds transactions recorded within [from, to)
	FindByDateRange(ctx context.Context, from, to time.Time, filter shared.Filter) ([]PaymentTransaction, error)

	// FindAll finds all transactions with filtering
	FindAll(ctx context.Context, filter shared.Filter) ([]PaymentTransaction, error)

	// Count counts transactions with optional filters
	Count(ctx context.Context, filter shared.Filter) (int64, error)
}

// ReceiptNumberGenerator produces unique, human-readable receipt
// numbers from an atomic per-day counter. Implementations must fall
// back to a time-derived pseudo-counter on counter failure rather
// than block a payment
type ReceiptNumberGenerator interface {
	// Next returns the next receipt number for the given day
	Next(ctx context.Context, day time.Time) (string, error)
}
