package enrollment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/enrollment"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Service provides application-level enrollment operations. Enrollment
// records feed the fee ledger: the enrollment window bounds which terms
// a pupil is charged for and the adjustment fields discount or surcharge
// the class fee.
type Service struct {
	repo   enrollment.Repository
	logger *zap.Logger
}

// NewService creates a new enrollment Service
func NewService(repo enrollment.Repository, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// logEvents writes the record's pending domain events to the log and
// clears them. The ledger has no external event consumers; the log is
// the event stream.
func (s *Service) logEvents(record *enrollment.Record) {
	for _, event := range record.GetDomainEvents() {
		s.logger.Info("Domain event",
			zap.String("event_id", event.EventID().String()),
			zap.String("event_type", event.EventType()),
			zap.String("aggregate_type", event.AggregateType()),
			zap.String("aggregate_id", event.AggregateID().String()),
			zap.Time("occurred_at", event.OccurredAt()),
		)
	}
	record.ClearDomainEvents()
}

// EnrollPupilRequest represents a request to enroll a pupil for a session
type EnrollPupilRequest struct {
	PupilID       uuid.UUID `json:"pupil_id" binding:"required"`
	PupilName     string    `json:"pupil_name" binding:"required,max=120"`
	ClassID       string    `json:"class_id" binding:"required,max=50"`
	Session       string    `json:"session" binding:"required,academic_session"`
	AdmissionTerm int       `json:"admission_term" binding:"required,min=1,max=3"`
}

// SetFeeAdjustmentRequest represents a request to grant or revise a
// pupil's fee discount or surcharge
type SetFeeAdjustmentRequest struct {
	Percent decimal.Decimal `json:"percent"`
	Amount  decimal.Decimal `json:"amount"`
}

// MarkExitedRequest represents a request to record a pupil's exit term
type MarkExitedRequest struct {
	ExitTerm int `json:"exit_term" binding:"required,min=1,max=3"`
}

// ReassignClassRequest represents a request to move a pupil to another class
type ReassignClassRequest struct {
	ClassID string `json:"class_id" binding:"required,max=50"`
}

// EnrollmentResponse represents an enrollment record in API responses
type EnrollmentResponse struct {
	ID                   uuid.UUID       `json:"id"`
	PupilID              uuid.UUID       `json:"pupil_id"`
	PupilName            string          `json:"pupil_name"`
	ClassID              string          `json:"class_id"`
	Session              string          `json:"session"`
	AdmissionTerm        int             `json:"admission_term"`
	ExitTerm             *int            `json:"exit_term,omitempty"`
	FeeAdjustmentPercent decimal.Decimal `json:"fee_adjustment_percent"`
	FeeAdjustmentAmount  decimal.Decimal `json:"fee_adjustment_amount"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
	Version              int             `json:"version"`
}

// Enroll enrolls a pupil in a class for a session. A pupil holds at most
// one enrollment record per session.
func (s *Service) Enroll(ctx context.Context, req EnrollPupilRequest) (*EnrollmentResponse, error) {
	session, err := valueobject.ParseSession(req.Session)
	if err != nil {
		return nil, err
	}
	term, err := valueobject.NewTerm(req.AdmissionTerm)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.FindByPupilAndSession(ctx, req.PupilID, session); err == nil {
		return nil, shared.NewDomainError("ALREADY_ENROLLED",
			fmt.Sprintf("Pupil is already enrolled for session %s", session))
	} else if !errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing enrollment: %w", err)
	}

	record, err := enrollment.NewRecord(req.PupilID, req.PupilName, req.ClassID, session, term)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save enrollment: %w", err)
	}
	s.logEvents(record)

	s.logger.Info("Pupil enrolled",
		zap.String("pupil_id", record.PupilID.String()),
		zap.String("class_id", record.ClassID),
		zap.String("session", record.Session.String()),
		zap.Int("admission_term", record.AdmissionTerm.Ordinal()),
	)

	return toEnrollmentResponse(record), nil
}

// SetFeeAdjustment grants or revises a pupil's fee discount or
// surcharge. Takes effect on the next balance computation; terms already
// frozen into payment summaries by a payment keep their priced totals.
func (s *Service) SetFeeAdjustment(ctx context.Context, id uuid.UUID, req SetFeeAdjustmentRequest) (*EnrollmentResponse, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := record.SetFeeAdjustment(req.Percent, req.Amount); err != nil {
		return nil, err
	}

	if err := s.repo.SaveWithLock(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save enrollment: %w", err)
	}
	s.logEvents(record)

	s.logger.Info("Fee adjustment set",
		zap.String("pupil_id", record.PupilID.String()),
		zap.String("session", record.Session.String()),
		zap.String("percent", record.FeeAdjustmentPercent.String()),
		zap.String("amount", record.FeeAdjustmentAmount.String()),
	)

	return toEnrollmentResponse(record), nil
}

// MarkExited records the last term the pupil attends this session
func (s *Service) MarkExited(ctx context.Context, id uuid.UUID, req MarkExitedRequest) (*EnrollmentResponse, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	term, err := valueobject.NewTerm(req.ExitTerm)
	if err != nil {
		return nil, err
	}

	if err := record.MarkExited(term); err != nil {
		return nil, err
	}

	if err := s.repo.SaveWithLock(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save enrollment: %w", err)
	}
	s.logEvents(record)

	s.logger.Info("Pupil exit recorded",
		zap.String("pupil_id", record.PupilID.String()),
		zap.String("session", record.Session.String()),
		zap.Int("exit_term", term.Ordinal()),
	)

	return toEnrollmentResponse(record), nil
}

// ReassignClass moves a pupil to another class within the session. From
// then on balances are priced from the new class's fee structure.
func (s *Service) ReassignClass(ctx context.Context, id uuid.UUID, req ReassignClassRequest) (*EnrollmentResponse, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	previousClass := record.ClassID
	if err := record.ReassignClass(req.ClassID); err != nil {
		return nil, err
	}

	if err := s.repo.SaveWithLock(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save enrollment: %w", err)
	}
	s.logEvents(record)

	s.logger.Info("Pupil reassigned",
		zap.String("pupil_id", record.PupilID.String()),
		zap.String("from_class", previousClass),
		zap.String("to_class", record.ClassID),
	)

	return toEnrollmentResponse(record), nil
}

// GetEnrollment gets an enrollment record by ID
func (s *Service) GetEnrollment(ctx context.Context, id uuid.UUID) (*EnrollmentResponse, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toEnrollmentResponse(record), nil
}

// GetPupilEnrollment gets a pupil's enrollment record for a session
func (s *Service) GetPupilEnrollment(ctx context.Context, pupilID uuid.UUID, sessionLabel string) (*EnrollmentResponse, error) {
	session, err := valueobject.ParseSession(sessionLabel)
	if err != nil {
		return nil, err
	}

	record, err := s.repo.FindByPupilAndSession(ctx, pupilID, session)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("PUPIL_NOT_ENROLLED",
				fmt.Sprintf("Pupil is not enrolled for session %s", session))
		}
		return nil, err
	}
	return toEnrollmentResponse(record), nil
}

// ListByClass lists enrollments in a class for a session
func (s *Service) ListByClass(ctx context.Context, classID, sessionLabel string, filter shared.Filter) ([]EnrollmentResponse, int64, error) {
	session, err := valueobject.ParseSession(sessionLabel)
	if err != nil {
		return nil, 0, err
	}

	records, err := s.repo.FindByClassAndSession(ctx, classID, session, filter)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.repo.CountByClassAndSession(ctx, classID, session)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]EnrollmentResponse, len(records))
	for i := range records {
		responses[i] = *toEnrollmentResponse(&records[i])
	}
	return responses, total, nil
}

// ListBySession lists all enrollments for a session
func (s *Service) ListBySession(ctx context.Context, sessionLabel string, filter shared.Filter) ([]EnrollmentResponse, int64, error) {
	session, err := valueobject.ParseSession(sessionLabel)
	if err != nil {
		return nil, 0, err
	}

	records, err := s.repo.FindBySession(ctx, session, filter)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.repo.CountBySession(ctx, session)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]EnrollmentResponse, len(records))
	for i := range records {
		responses[i] = *toEnrollmentResponse(&records[i])
	}
	return responses, total, nil
}

func toEnrollmentResponse(r *enrollment.Record) *EnrollmentResponse {
	resp := &EnrollmentResponse{
		ID:                   r.ID,
		PupilID:              r.PupilID,
		PupilName:            r.PupilName,
		ClassID:              r.ClassID,
		Session:              r.Session.String(),
		AdmissionTerm:        r.AdmissionTerm.Ordinal(),
		FeeAdjustmentPercent: r.FeeAdjustmentPercent,
		FeeAdjustmentAmount:  r.FeeAdjustmentAmount,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
		Version:              r.Version,
	}
	if r.ExitTerm != nil {
		ordinal := r.ExitTerm.Ordinal()
		resp.ExitTerm = &ordinal
	}
	return resp
}
