package settings

import (
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/domain/shared/valueobject"
)

// SchoolSettings is the single-row aggregate holding school-wide state,
// most importantly the current academic session and term that payment
// recording defaults to.
type SchoolSettings struct {
	shared.BaseAggregateRoot
	SchoolName     string              `json:"school_name"`
	CurrentSession valueobject.Session `json:"current_session"`
	CurrentTerm    valueobject.Term    `json:"current_term"`
}

// NewSchoolSettings creates the settings row. There is exactly one per
// deployment; the repository enforces that.
func NewSchoolSettings(schoolName string, session valueobject.Session, term valueobject.Term) (*SchoolSettings, error) {
	if schoolName == "" {
		return nil, shared.NewDomainError("INVALID_SCHOOL_NAME", "School name cannot be empty")
	}
	if len(schoolName) > 200 {
		return nil, shared.NewDomainError("INVALID_SCHOOL_NAME", "School name cannot exceed 200 characters")
	}
	if session.IsZero() {
		return nil, shared.NewDomainError("INVALID_SESSION", "Current session is required")
	}
	if !term.IsValid() {
		return nil, shared.NewDomainError("INVALID_TERM", "Current term must be between 1 and 3")
	}

	s := &SchoolSettings{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		SchoolName:        schoolName,
		CurrentSession:    session,
		CurrentTerm:       term,
	}
	s.AddDomainEvent(NewSchoolSettingsCreatedEvent(s))
	return s, nil
}

// UpdateCurrentPeriod moves the school to a new session/term. Moving
// backwards is allowed; bursars correct mistakes this way.
func (s *SchoolSettings) UpdateCurrentPeriod(session valueobject.Session, term valueobject.Term) error {
	if session.IsZero() {
		return shared.NewDomainError("INVALID_SESSION", "Current session is required")
	}
	if !term.IsValid() {
		return shared.NewDomainError("INVALID_TERM", "Current term must be between 1 and 3")
	}

	s.CurrentSession = session
	s.CurrentTerm = term
	s.Touch()
	s.IncrementVersion()
	s.AddDomainEvent(NewCurrentPeriodChangedEvent(s))
	return nil
}

// Rename changes the displayed school name.
func (s *SchoolSettings) Rename(schoolName string) error {
	if schoolName == "" {
		return shared.NewDomainError("INVALID_SCHOOL_NAME", "School name cannot be empty")
	}
	if len(schoolName) > 200 {
		return shared.NewDomainError("INVALID_SCHOOL_NAME", "School name cannot exceed 200 characters")
	}
	s.SchoolName = schoolName
	s.Touch()
	s.IncrementVersion()
	return nil
}
