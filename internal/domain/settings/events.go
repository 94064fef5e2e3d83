package settings

import (
	"github.com/schoolerp/backend/internal/domain/shared"
)

type SchoolSettingsCreatedEvent struct {
	shared.BaseDomainEvent
	SchoolName     string `json:"school_name"`
	CurrentSession string `json:"current_session"`
	CurrentTerm    int    `json:"current_term"`
}

func (e SchoolSettingsCreatedEvent) EventType() string {
	return "SchoolSettingsCreated"
}

func NewSchoolSettingsCreatedEvent(s *SchoolSettings) *SchoolSettingsCreatedEvent {
	return &SchoolSettingsCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("SchoolSettingsCreated", "SchoolSettings", s.ID),
		SchoolName:      s.SchoolName,
		CurrentSession:  s.CurrentSession.String(),
		CurrentTerm:     s.CurrentTerm.Ordinal(),
	}
}

type CurrentPeriodChangedEvent struct {
	shared.BaseDomainEvent
	CurrentSession string `json:"current_session"`
	CurrentTerm    int    `json:"current_term"`
}

func (e CurrentPeriodChangedEvent) EventType() string {
	return "CurrentPeriodChanged"
}

func NewCurrentPeriodChangedEvent(s *SchoolSettings) *CurrentPeriodChangedEvent {
	return &CurrentPeriodChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("CurrentPeriodChanged", "SchoolSettings", s.ID),
		CurrentSession:  s.CurrentSession.String(),
		CurrentTerm:     s.CurrentTerm.Ordinal(),
	}
}
