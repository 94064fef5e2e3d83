package enrollment

import (
	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// PupilEnrolledEvent is raised when a pupil is enrolled for a session
type PupilEnrolledEvent struct {
	shared.BaseDomainEvent
	RecordID      uuid.UUID           `json:"record_id"`
	PupilID       uuid.UUID           `json:"pupil_id"`
	PupilName     string              `json:"pupil_name"`
	ClassID       string              `json:"class_id"`
	Session       valueobject.Session `json:"session"`
	AdmissionTerm valueobject.Term    `json:"admission_term"`
}

// EventType returns the event type name
func (e *PupilEnrolledEvent) EventType() string {
	return "PupilEnrolled"
}

// NewPupilEnrolledEvent creates a new PupilEnrolledEvent
func NewPupilEnrolledEvent(r *Record) *PupilEnrolledEvent {
	return &PupilEnrolledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("PupilEnrolled", "EnrollmentRecord", r.ID),
		RecordID:        r.ID,
		PupilID:         r.PupilID,
		PupilName:       r.PupilName,
		ClassID:         r.ClassID,
		Session:         r.Session,
		AdmissionTerm:   r.AdmissionTerm,
	}
}

// FeeAdjustmentSetEvent is raised when a discount or surcharge changes
type FeeAdjustmentSetEvent struct {
	shared.BaseDomainEvent
	RecordID uuid.UUID           `json:"record_id"`
	PupilID  uuid.UUID           `json:"pupil_id"`
	Session  valueobject.Session `json:"session"`
	Percent  decimal.Decimal     `json:"percent"`
	Amount   decimal.Decimal     `json:"amount"`
}

// EventType returns the event type name
func (e *FeeAdjustmentSetEvent) EventType() string {
	return "FeeAdjustmentSet"
}

// NewFeeAdjustmentSetEvent creates a new FeeAdjustmentSetEvent
func NewFeeAdjustmentSetEvent(r *Record) *FeeAdjustmentSetEvent {
	return &FeeAdjustmentSetEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("FeeAdjustmentSet", "EnrollmentRecord", r.ID),
		RecordID:        r.ID,
		PupilID:         r.PupilID,
		Session:         r.Session,
		Percent:         r.FeeAdjustmentPercent,
		Amount:          r.FeeAdjustmentAmount,
	}
}

// PupilExitedEvent is raised when a pupil's last attended term is recorded
type PupilExitedEvent struct {
	shared.BaseDomainEvent
	RecordID uuid.UUID           `json:"record_id"`
	PupilID  uuid.UUID           `json:"pupil_id"`
	Session  valueobject.Session `json:"session"`
	ExitTerm valueobject.Term    `json:"exit_term"`
}

// EventType returns the event type name
func (e *PupilExitedEvent) EventType() string {
	return "PupilExited"
}

// NewPupilExitedEvent creates a new PupilExitedEvent
func NewPupilExitedEvent(r *Record) *PupilExitedEvent {
	exitTerm := valueobject.ThirdTerm
	if r.ExitTerm != nil {
		exitTerm = *r.ExitTerm
	}
	return &PupilExitedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("PupilExited", "EnrollmentRecord", r.ID),
		RecordID:        r.ID,
		PupilID:         r.PupilID,
		Session:         r.Session,
		ExitTerm:        exitTerm,
	}
}
