package tuition

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/domain/shared/valueobject"
	"github.com/schoolerp/backend/internal/domain/tuition"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// FeeStructureService provides application-level fee structure operations.
// Fee structures are keyed canonically by (class, session); a class
// carries exactly one structure per session.
type FeeStructureService struct {
	feeRepo tuition.FeeStructureRepository
	logger  *zap.Logger
}

// NewFeeStructureService creates a new FeeStructureService
func NewFeeStructureService(feeRepo tuition.FeeStructureRepository, logger *zap.Logger) *FeeStructureService {
	return &FeeStructureService{
		feeRepo: feeRepo,
		logger:  logger,
	}
}

// FeeLineInput is one named fee head in a define/update request
type FeeLineInput struct {
	Name   string          `json:"name" binding:"required"`
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// DefineFeeStructureRequest represents a request to define the fee
// structure for a class in a session
type DefineFeeStructureRequest struct {
	ClassID string         `json:"class_id" binding:"required,max=50"`
	Session string         `json:"session" binding:"required,academic_session"`
	Lines   []FeeLineInput `json:"lines" binding:"required,min=1,dive"`
}

// UpdateFeeStructureRequest represents a request to replace the fee
// lines of an existing structure
type UpdateFeeStructureRequest struct {
	Lines []FeeLineInput `json:"lines" binding:"required,min=1,dive"`
}

// FeeStructureResponse represents a fee structure in API responses
type FeeStructureResponse struct {
	ID        uuid.UUID        `json:"id"`
	ClassID   string           `json:"class_id"`
	Session   string           `json:"session"`
	Lines     tuition.FeeLines `json:"lines"`
	Total     decimal.Decimal  `json:"total"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	Version   int              `json:"version"`
}

// DefineFeeStructure creates the fee structure for a class in a session.
// A class can carry only one structure per session.
func (s *FeeStructureService) DefineFeeStructure(ctx context.Context, req DefineFeeStructureRequest) (*FeeStructureResponse, error) {
	session, err := valueobject.ParseSession(req.Session)
	if err != nil {
		return nil, err
	}

	if _, err := s.feeRepo.FindByClassAndSession(ctx, req.ClassID, session); err == nil {
		return nil, shared.NewDomainError("FEE_STRUCTURE_EXISTS",
			fmt.Sprintf("Class %s already has a fee structure for session %s", req.ClassID, session))
	} else if !errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing fee structure: %w", err)
	}

	fs, err := tuition.NewFeeStructure(req.ClassID, session, toFeeLines(req.Lines))
	if err != nil {
		return nil, err
	}

	if err := s.feeRepo.Save(ctx, fs); err != nil {
		return nil, fmt.Errorf("failed to save fee structure: %w", err)
	}
	logEvents(s.logger, fs)

	s.logger.Info("Fee structure defined",
		zap.String("class_id", fs.ClassID),
		zap.String("session", fs.Session.String()),
		zap.String("total", fs.Total.String()),
	)

	return toFeeStructureResponse(fs), nil
}

// UpdateFeeStructure replaces the fee lines of an existing structure.
// Already-created payment summaries keep the totals they were priced
// with; fresh balance queries pick up the new total immediately.
func (s *FeeStructureService) UpdateFeeStructure(ctx context.Context, id uuid.UUID, req UpdateFeeStructureRequest) (*FeeStructureResponse, error) {
	fs, err := s.feeRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := fs.UpdateLines(toFeeLines(req.Lines)); err != nil {
		return nil, err
	}

	if err := s.feeRepo.SaveWithLock(ctx, fs); err != nil {
		return nil, fmt.Errorf("failed to save fee structure: %w", err)
	}
	logEvents(s.logger, fs)

	s.logger.Info("Fee structure updated",
		zap.String("class_id", fs.ClassID),
		zap.String("session", fs.Session.String()),
		zap.String("total", fs.Total.String()),
	)

	return toFeeStructureResponse(fs), nil
}

// GetFeeStructure gets a fee structure by ID
func (s *FeeStructureService) GetFeeStructure(ctx context.Context, id uuid.UUID) (*FeeStructureResponse, error) {
	fs, err := s.feeRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toFeeStructureResponse(fs), nil
}

// GetFeeStructureForClass gets the fee structure for a class in a session
func (s *FeeStructureService) GetFeeStructureForClass(ctx context.Context, classID, sessionLabel string) (*FeeStructureResponse, error) {
	session, err := valueobject.ParseSession(sessionLabel)
	if err != nil {
		return nil, err
	}

	fs, err := s.feeRepo.FindByClassAndSession(ctx, classID, session)
	if err != nil {
		return nil, err
	}
	return toFeeStructureResponse(fs), nil
}

// ListFeeStructures lists fee structures for a session
func (s *FeeStructureService) ListFeeStructures(ctx context.Context, sessionLabel string, filter shared.Filter) ([]FeeStructureResponse, int64, error) {
	session, err := valueobject.ParseSession(sessionLabel)
	if err != nil {
		return nil, 0, err
	}

	structures, err := s.feeRepo.FindBySession(ctx, session, filter)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.feeRepo.CountBySession(ctx, session, filter)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]FeeStructureResponse, len(structures))
	for i, fs := range structures {
		responses[i] = *toFeeStructureResponse(&fs)
	}
	return responses, total, nil
}

// DeleteFeeStructure removes a fee structure. Existing payment summaries
// priced from it are unaffected.
func (s *FeeStructureService) DeleteFeeStructure(ctx context.Context, id uuid.UUID) error {
	fs, err := s.feeRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.feeRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete fee structure: %w", err)
	}

	s.logger.Info("Fee structure deleted",
		zap.String("class_id", fs.ClassID),
		zap.String("session", fs.Session.String()),
	)
	return nil
}

func toFeeLines(inputs []FeeLineInput) tuition.FeeLines {
	lines := make(tuition.FeeLines, len(inputs))
	for i, in := range inputs {
		lines[i] = tuition.FeeLine{Name: in.Name, Amount: in.Amount}
	}
	return lines
}

func toFeeStructureResponse(fs *tuition.FeeStructure) *FeeStructureResponse {
	return &FeeStructureResponse{
		ID:        fs.ID,
		ClassID:   fs.ClassID,
		Session:   fs.Session.String(),
		Lines:     fs.Lines,
		Total:     fs.Total,
		CreatedAt: fs.CreatedAt,
		UpdatedAt: fs.UpdatedAt,
		Version:   fs.Version,
	}
}
