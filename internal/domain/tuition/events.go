package tuition

import (
	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// FeeStructureDefinedEvent is raised when a fee structure is created
type FeeStructureDefinedEvent struct {
	shared.BaseDomainEvent
	FeeStructureID uuid.UUID           `json:"fee_structure_id"`
	ClassID        string              `json:"class_id"`
	Session        valueobject.Session `json:"session"`
	Total          decimal.Decimal     `json:"total"`
}

// EventType returns the event type name
func (e *FeeStructureDefinedEvent) EventType() string {
	return "FeeStructureDefined"
}

// NewFeeStructureDefinedEvent creates a new FeeStructureDefinedEvent
func NewFeeStructureDefinedEvent(fs *FeeStructure) *FeeStructureDefinedEvent {
	return &FeeStructureDefinedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("FeeStructureDefined", "FeeStructure", fs.ID),
		FeeStructureID:  fs.ID,
		ClassID:         fs.ClassID,
		Session:         fs.Session,
		Total:           fs.Total,
	}
}

// FeeStructureUpdatedEvent is raised when an administrator edits a fee structure
type FeeStructureUpdatedEvent struct {
	shared.BaseDomainEvent
	FeeStructureID uuid.UUID           `json:"fee_structure_id"`
	ClassID        string              `json:"class_id"`
	Session        valueobject.Session `json:"session"`
	Total          decimal.Decimal     `json:"total"`
}

// EventType returns the event type name
func (e *FeeStructureUpdatedEvent) EventType() string {
	return "FeeStructureUpdated"
}

// NewFeeStructureUpdatedEvent creates a new FeeStructureUpdatedEvent
func NewFeeStructureUpdatedEvent(fs *FeeStructure) *FeeStructureUpdatedEvent {
	return &FeeStructureUpdatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("FeeStructureUpdated", "FeeStructure", fs.ID),
		FeeStructureID:  fs.ID,
		ClassID:         fs.ClassID,
		Session:         fs.Session,
		Total:           fs.Total,
	}
}

// PaymentRecordedEvent is raised when a payment is applied to a
// pupil's term account
type PaymentRecordedEvent struct {
	shared.BaseDomainEvent
	SummaryID          uuid.UUID           `json:"summary_id"`
	PupilID            uuid.UUID           `json:"pupil_id"`
	ClassID            string              `json:"class_id"`
	Session            valueobject.Session `json:"session"`
	Term               valueobject.Term    `json:"term"`
	AmountPaid         decimal.Decimal     `json:"amount_paid"`
	ArrearsPayment     decimal.Decimal     `json:"arrears_payment"`
	CurrentTermPayment decimal.Decimal     `json:"current_term_payment"`
	Balance            decimal.Decimal     `json:"balance"`
	Status             PaymentStatus       `json:"status"`
}

// EventType returns the event type name
func (e *PaymentRecordedEvent) EventType() string {
	return "PaymentRecorded"
}

// NewPaymentRecordedEvent creates a new PaymentRecordedEvent
func NewPaymentRecordedEvent(s *PaymentSummary, split *PaymentSplit) *PaymentRecordedEvent {
	return &PaymentRecordedEvent{
		BaseDomainEvent:    shared.NewBaseDomainEvent("PaymentRecorded", "PaymentSummary", s.ID),
		SummaryID:          s.ID,
		PupilID:            s.PupilID,
		ClassID:            s.ClassID,
		Session:            s.Session,
		Term:               s.Term,
		AmountPaid:         split.AmountPaid,
		ArrearsPayment:     split.ArrearsPayment,
		CurrentTermPayment: split.CurrentTermPayment,
		Balance:            split.BalanceAfter,
		Status:             split.StatusAfter,
	}
}
