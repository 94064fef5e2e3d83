package enrollment

import (
	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Record captures one pupil's enrollment for one academic session:
// the assigned class, the window of terms the pupil attends, and any
// fee discount or surcharge granted by the administration.
// The fee ledger reads these records but never writes them
type Record struct {
	shared.BaseAggregateRoot
	PupilID   uuid.UUID           `json:"pupil_id"`
	PupilName string              `json:"pupil_name"`
	ClassID   string              `json:"class_id"`
	Session   valueobject.Session `json:"session"`
	// AdmissionTerm is the first term the pupil attends in this session
	AdmissionTerm valueobject.Term `json:"admission_term"`
	// ExitTerm is the last term attended, nil while the pupil remains
	// enrolled through the final term
	ExitTerm *valueobject.Term `json:"exit_term,omitempty"`
	// FeeAdjustmentPercent is a signed percentage applied to the base
	// fee, e.g. -50 for a half scholarship
	FeeAdjustmentPercent decimal.Decimal `json:"fee_adjustment_percent"`
	// FeeAdjustmentAmount is a signed flat adjustment applied after
	// the percentage
	FeeAdjustmentAmount decimal.Decimal `json:"fee_adjustment_amount"`
}

// NewRecord enrolls a pupil in a class for a session
func NewRecord(pupilID uuid.UUID, pupilName, classID string, session valueobject.Session, admissionTerm valueobject.Term) (*Record, error) {
	if pupilID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PUPIL", "Pupil ID cannot be empty")
	}
	if pupilName == "" {
		return nil, shared.NewDomainError("INVALID_PUPIL_NAME", "Pupil name cannot be empty")
	}
	if len(pupilName) > 120 {
		return nil, shared.NewDomainError("INVALID_PUPIL_NAME", "Pupil name cannot exceed 120 characters")
	}
	if classID == "" {
		return nil, shared.NewDomainError("INVALID_CLASS", "Class ID cannot be empty")
	}
	if session.IsZero() {
		return nil, shared.NewDomainError("INVALID_SESSION", "Session is required")
	}
	if !admissionTerm.IsValid() {
		return nil, shared.NewDomainError("INVALID_TERM", "Admission term must be 1, 2 or 3")
	}

	r := &Record{
		BaseAggregateRoot:    shared.NewBaseAggregateRoot(),
		PupilID:              pupilID,
		PupilName:            pupilName,
		ClassID:              classID,
		Session:              session,
		AdmissionTerm:        admissionTerm,
		FeeAdjustmentPercent: decimal.Zero,
		FeeAdjustmentAmount:  decimal.Zero,
	}

	r.AddDomainEvent(NewPupilEnrolledEvent(r))

	return r, nil
}

// SetFeeAdjustment grants or revises the pupil's fee discount or
// surcharge for this session
func (r *Record) SetFeeAdjustment(percent, amount decimal.Decimal) error {
	if percent.LessThan(decimal.NewFromInt(-100)) {
		return shared.NewDomainError("INVALID_ADJUSTMENT", "Adjustment percent cannot go below -100")
	}

	r.FeeAdjustmentPercent = percent
	r.FeeAdjustmentAmount = amount
	r.Touch()
	r.IncrementVersion()

	r.AddDomainEvent(NewFeeAdjustmentSetEvent(r))

	return nil
}

// ReassignClass moves the pupil to another class within the session
func (r *Record) ReassignClass(classID string) error {
	if classID == "" {
		return shared.NewDomainError("INVALID_CLASS", "Class ID cannot be empty")
	}

	r.ClassID = classID
	r.Touch()
	r.IncrementVersion()

	return nil
}

// MarkExited records the last term the pupil attends. The exit term
// cannot precede the admission term
func (r *Record) MarkExited(term valueobject.Term) error {
	if !term.IsValid() {
		return shared.NewDomainError("INVALID_TERM", "Exit term must be 1, 2 or 3")
	}
	if term.Ordinal() < r.AdmissionTerm.Ordinal() {
		return shared.NewDomainError("INVALID_TERM", "Exit term cannot precede admission term")
	}

	r.ExitTerm = &term
	r.Touch()
	r.IncrementVersion()

	r.AddDomainEvent(NewPupilExitedEvent(r))

	return nil
}

// IsEnrolledFor returns true when the pupil attends the given term
func (r *Record) IsEnrolledFor(term valueobject.Term) bool {
	if !term.IsValid() {
		return false
	}
	if term.Ordinal() < r.AdmissionTerm.Ordinal() {
		return false
	}
	if r.ExitTerm != nil && term.Ordinal() > r.ExitTerm.Ordinal() {
		return false
	}
	return true
}

// HasAdjustment returns true when any discount or surcharge is set
func (r *Record) HasAdjustment() bool {
	return !r.FeeAdjustmentPercent.IsZero() || !r.FeeAdjustmentAmount.IsZero()
}
