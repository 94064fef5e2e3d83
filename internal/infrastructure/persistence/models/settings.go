package models

import (
	"github.com/schoolerp/backend/internal/domain/settings"
	"github.com/schoolerp/backend/internal/domain/shared/valueobject"
)

// SchoolSettingsModel is the persistence model for the SchoolSettings
// aggregate root. The table holds a single row; the migration enforces
// that with a unique index on a constant expression.
type SchoolSettingsModel struct {
	AggregateModel
	SchoolName     string              `gorm:"type:varchar(200);not null"`
	CurrentSession valueobject.Session `gorm:"type:varchar(9);not null"`
	CurrentTerm    valueobject.Term    `gorm:"type:smallint;not null"`
}

// TableName returns the table name for GORM
func (SchoolSettingsModel) TableName() string {
	return "school_settings"
}

// ToDomain converts the persistence model to a domain SchoolSettings entity.
func (m *SchoolSettingsModel) ToDomain() *settings.SchoolSettings {
	return &settings.SchoolSettings{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		SchoolName:        m.SchoolName,
		CurrentSession:    m.CurrentSession,
		CurrentTerm:       m.CurrentTerm,
	}
}

// FromDomain populates the persistence model from a domain SchoolSettings entity.
func (m *SchoolSettingsModel) FromDomain(s *settings.SchoolSettings) {
	m.FromDomainAggregateRoot(s.BaseAggregateRoot)
	m.SchoolName = s.SchoolName
	m.CurrentSession = s.CurrentSession
	m.CurrentTerm = s.CurrentTerm
}

// SchoolSettingsModelFromDomain creates a new persistence model from a domain SchoolSettings.
func SchoolSettingsModelFromDomain(s *settings.SchoolSettings) *SchoolSettingsModel {
	m := &SchoolSettingsModel{}
	m.FromDomain(s)
	return m
}
