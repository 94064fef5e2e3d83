package settings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/schoolerp/backend/internal/domain/settings"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/domain/shared/valueobject"
	"go.uber.org/zap"
)

// Service provides application-level school settings operations. The
// settings row is a singleton holding the school name and the current
// session and term the front desk records payments against.
type Service struct {
	repo   settings.Repository
	logger *zap.Logger
}

// NewService creates a new settings Service
func NewService(repo settings.Repository, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// logEvents writes the settings' pending domain events to the log and
// clears them. The ledger has no external event consumers; the log is
// the event stream.
func (s *Service) logEvents(cfg *settings.SchoolSettings) {
	for _, event := range cfg.GetDomainEvents() {
		s.logger.Info("Domain event",
			zap.String("event_id", event.EventID().String()),
			zap.String("event_type", event.EventType()),
			zap.String("aggregate_type", event.AggregateType()),
			zap.String("aggregate_id", event.AggregateID().String()),
			zap.Time("occurred_at", event.OccurredAt()),
		)
	}
	cfg.ClearDomainEvents()
}

// InitializeRequest represents the first-run setup request
type InitializeRequest struct {
	SchoolName     string `json:"school_name" binding:"required,max=200"`
	CurrentSession string `json:"current_session" binding:"required,academic_session"`
	CurrentTerm    int    `json:"current_term" binding:"required,min=1,max=3"`
}

// UpdatePeriodRequest represents a request to move the school to a new
// session and term
type UpdatePeriodRequest struct {
	CurrentSession string `json:"current_session" binding:"required,academic_session"`
	CurrentTerm    int    `json:"current_term" binding:"required,min=1,max=3"`
}

// RenameRequest represents a request to change the school name
type RenameRequest struct {
	SchoolName string `json:"school_name" binding:"required,max=200"`
}

// SettingsResponse represents school settings in API responses
type SettingsResponse struct {
	SchoolName     string    `json:"school_name"`
	CurrentSession string    `json:"current_session"`
	CurrentTerm    int       `json:"current_term"`
	UpdatedAt      time.Time `json:"updated_at"`
	Version        int       `json:"version"`
}

// Get returns the school settings
func (s *Service) Get(ctx context.Context) (*SettingsResponse, error) {
	cfg, err := s.repo.Get(ctx)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("SETTINGS_NOT_INITIALIZED",
				"School settings have not been initialized yet")
		}
		return nil, err
	}
	return toSettingsResponse(cfg), nil
}

// Initialize creates the settings row on first run
func (s *Service) Initialize(ctx context.Context, req InitializeRequest) (*SettingsResponse, error) {
	if _, err := s.repo.Get(ctx); err == nil {
		return nil, shared.NewDomainError("SETTINGS_EXIST", "School settings are already initialized")
	} else if !errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing settings: %w", err)
	}

	session, err := valueobject.ParseSession(req.CurrentSession)
	if err != nil {
		return nil, err
	}
	term, err := valueobject.NewTerm(req.CurrentTerm)
	if err != nil {
		return nil, err
	}

	cfg, err := settings.NewSchoolSettings(req.SchoolName, session, term)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to save settings: %w", err)
	}
	s.logEvents(cfg)

	s.logger.Info("School settings initialized",
		zap.String("school_name", cfg.SchoolName),
		zap.String("current_session", cfg.CurrentSession.String()),
		zap.Int("current_term", cfg.CurrentTerm.Ordinal()),
	)

	return toSettingsResponse(cfg), nil
}

// UpdateCurrentPeriod moves the school to a new session and term.
// Payments recorded afterward default to the new period.
func (s *Service) UpdateCurrentPeriod(ctx context.Context, req UpdatePeriodRequest) (*SettingsResponse, error) {
	cfg, err := s.repo.Get(ctx)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("SETTINGS_NOT_INITIALIZED",
				"School settings have not been initialized yet")
		}
		return nil, err
	}

	session, err := valueobject.ParseSession(req.CurrentSession)
	if err != nil {
		return nil, err
	}
	term, err := valueobject.NewTerm(req.CurrentTerm)
	if err != nil {
		return nil, err
	}

	if err := cfg.UpdateCurrentPeriod(session, term); err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to save settings: %w", err)
	}
	s.logEvents(cfg)

	s.logger.Info("Current period updated",
		zap.String("current_session", cfg.CurrentSession.String()),
		zap.Int("current_term", cfg.CurrentTerm.Ordinal()),
	)

	return toSettingsResponse(cfg), nil
}

// Rename changes the school name
func (s *Service) Rename(ctx context.Context, req RenameRequest) (*SettingsResponse, error) {
	cfg, err := s.repo.Get(ctx)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("SETTINGS_NOT_INITIALIZED",
				"School settings have not been initialized yet")
		}
		return nil, err
	}

	if err := cfg.Rename(req.SchoolName); err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to save settings: %w", err)
	}
	s.logEvents(cfg)

	return toSettingsResponse(cfg), nil
}

func toSettingsResponse(cfg *settings.SchoolSettings) *SettingsResponse {
	return &SettingsResponse{
		SchoolName:     cfg.SchoolName,
		CurrentSession: cfg.CurrentSession.String(),
		CurrentTerm:    cfg.CurrentTerm.Ordinal(),
		UpdatedAt:      cfg.UpdatedAt,
		Version:        cfg.Version,
	}
}
