package models

import (
	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/enrollment"
	"github.com/schoolerp/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// EnrollmentRecordModel is the persistence model for the enrollment Record
// aggregate root. A pupil has at most one record per session.
type EnrollmentRecordModel struct {
	AggregateModel
	PupilID              uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:idx_enrollment_records_pupil_session,priority:1"`
	PupilName            string              `gorm:"type:varchar(120);not null"`
	ClassID              string              `gorm:"type:varchar(50);not null;index:idx_enrollment_records_class_session,priority:1"`
	Session              valueobject.Session `gorm:"type:varchar(9);not null;uniqueIndex:idx_enrollment_records_pupil_session,priority:2;index:idx_enrollment_records_class_session,priority:2"`
	AdmissionTerm        valueobject.Term    `gorm:"type:smallint;not null"`
	ExitTerm             *valueobject.Term   `gorm:"type:smallint"`
	FeeAdjustmentPercent decimal.Decimal     `gorm:"type:decimal(7,2);not null;default:0"`
	FeeAdjustmentAmount  decimal.Decimal     `gorm:"type:decimal(14,2);not null;default:0"`
}

// TableName returns the table name for GORM
func (EnrollmentRecordModel) TableName() string {
	return "enrollment_records"
}

// ToDomain converts the persistence model to a domain Record entity.
func (m *EnrollmentRecordModel) ToDomain() *enrollment.Record {
	return &enrollment.Record{
		BaseAggregateRoot:    m.ToDomainAggregateRoot(),
		PupilID:              m.PupilID,
		PupilName:            m.PupilName,
		ClassID:              m.ClassID,
		Session:              m.Session,
		AdmissionTerm:        m.AdmissionTerm,
		ExitTerm:             m.ExitTerm,
		FeeAdjustmentPercent: m.FeeAdjustmentPercent,
		FeeAdjustmentAmount:  m.FeeAdjustmentAmount,
	}
}

// FromDomain populates the persistence model from a domain Record entity.
func (m *EnrollmentRecordModel) FromDomain(r *enrollment.Record) {
	m.FromDomainAggregateRoot(r.BaseAggregateRoot)
	m.PupilID = r.PupilID
	m.PupilName = r.PupilName
	m.ClassID = r.ClassID
	m.Session = r.Session
	m.AdmissionTerm = r.AdmissionTerm
	m.ExitTerm = r.ExitTerm
	m.FeeAdjustmentPercent = r.FeeAdjustmentPercent
	m.FeeAdjustmentAmount = r.FeeAdjustmentAmount
}

// EnrollmentRecordModelFromDomain creates a new persistence model from a domain Record.
func EnrollmentRecordModelFromDomain(r *enrollment.Record) *EnrollmentRecordModel {
	m := &EnrollmentRecordModel{}
	m.FromDomain(r)
	return m
}
