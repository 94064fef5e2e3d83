package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/domain/shared/valueobject"
	"github.com/schoolerp/backend/internal/domain/tuition"
	"github.com/schoolerp/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormPaymentSummaryRepository implements PaymentSummaryRepository using GORM.
// It is read-only by design: summaries are written through the payment
// ledger so the transaction and the merged summary land atomically
type GormPaymentSummaryRepository struct {
	db *gorm.DB
}

// NewGormPaymentSummaryRepository creates a new GormPaymentSummaryRepository
func NewGormPaymentSummaryRepository(db *gorm.DB) *GormPaymentSummaryRepository {
	return &GormPaymentSummaryRepository{db: db}
}

// WithTx returns a new repository instance with the given transaction
func (r *GormPaymentSummaryRepository) WithTx(tx *gorm.DB) *GormPaymentSummaryRepository {
	return &GormPaymentSummaryRepository{db: tx}
}

// TermBalance reads the stored balance for one pupil-session-term.
// The second return is false when no summary exists for the period,
// which arrears resolution treats as a clean zero
func (r *GormPaymentSummaryRepository) TermBalance(ctx context.Context, pupilID uuid.UUID, session valueobject.Session, term valueobject.Term) (valueobject.Money, bool, error) {
	var model models.PaymentSummaryModel
	err := r.db.WithContext(ctx).
		Select("balance").
		Where("pupil_id = ? AND session = ? AND term = ?", pupilID, session, term).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return valueobject.ZeroNGN(), false, nil
		}
		return valueobject.ZeroNGN(), false, err
	}
	return valueobject.NewMoneyNGN(model.Balance), true, nil
}

// FindByID finds a payment summary by its ID
func (r *GormPaymentSummaryRepository) FindByID(ctx context.Context, id uuid.UUID) (*tuition.PaymentSummary, error) {
	var model models.PaymentSummaryModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByPupilSessionTerm finds the summary for one pupil-session-term
func (r *GormPaymentSummaryRepository) FindByPupilSessionTerm(ctx context.Context, pupilID uuid.UUID, session valueobject.Session, term valueobject.Term) (*tuition.PaymentSummary, error) {
	var model models.PaymentSummaryModel
	if err := r.db.WithContext(ctx).
		Where("pupil_id = ? AND session = ? AND term = ?", pupilID, session, term).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByPupilAndSession finds a pupil's summaries across a session,
// ordered by term
func (r *GormPaymentSummaryRepository) FindByPupilAndSession(ctx context.Context, pupilID uuid.UUID, session valueobject.Session) ([]tuition.PaymentSummary, error) {
	var summaryModels []models.PaymentSummaryModel
	if err := r.db.WithContext(ctx).
		Where("pupil_id = ? AND session = ?", pupilID, session).
		Order("term ASC").
		Find(&summaryModels).Error; err != nil {
		return nil, err
	}

	summaries := make([]tuition.PaymentSummary, len(summaryModels))
	for i, model := range summaryModels {
		summaries[i] = *model.ToDomain()
	}
	return summaries, nil
}

// FindBySessionAndTerm finds all summaries for a session and term
func (r *GormPaymentSummaryRepository) FindBySessionAndTerm(ctx context.Context, session valueobject.Session, term valueobject.Term, filter shared.Filter) ([]tuition.PaymentSummary, error) {
	var summaryModels []models.PaymentSummaryModel
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&models.PaymentSummaryModel{}).
			Where("session = ? AND term = ?", session, term),
		filter,
	)

	if err := query.Find(&summaryModels).Error; err != nil {
		return nil, err
	}

	summaries := make([]tuition.PaymentSummary, len(summaryModels))
	for i, model := range summaryModels {
		summaries[i] = *model.ToDomain()
	}
	return summaries, nil
}

// FindOwingBySessionAndTerm finds summaries with an open balance
// for a session and term
func (r *GormPaymentSummaryRepository) FindOwingBySessionAndTerm(ctx context.Context, session valueobject.Session, term valueobject.Term, filter shared.Filter) ([]tuition.PaymentSummary, error) {
	var summaryModels []models.PaymentSummaryModel
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&models.PaymentSummaryModel{}).
			Where("session = ? AND term = ? AND balance > 0", session, term),
		filter,
	)

	if err := query.Find(&summaryModels).Error; err != nil {
		return nil, err
	}

	summaries := make([]tuition.PaymentSummary, len(summaryModels))
	for i, model := range summaryModels {
		summaries[i] = *model.ToDomain()
	}
	return summaries, nil
}

// CountBySessionAndTerm counts summaries for a session and term
func (r *GormPaymentSummaryRepository) CountBySessionAndTerm(ctx context.Context, session valueobject.Session, term valueobject.Term, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilterWithoutPagination(
		r.db.WithContext(ctx).
			Model(&models.PaymentSummaryModel{}).
			Where("session = ? AND term = ?", session, term),
		filter,
	)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// applyFilter applies filter options to the query
func (r *GormPaymentSummaryRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	// Apply pagination
	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	// Apply ordering
	if filter.OrderBy != "" {
		sortField := ValidateSortField(filter.OrderBy, PaymentSummarySortFields, "")
		if sortField != "" {
			sortOrder := ValidateSortOrder(filter.OrderDir)
			query = query.Order(sortField + " " + sortOrder)
		} else {
			query = query.Order("class_id ASC, created_at ASC")
		}
	} else {
		query = query.Order("class_id ASC, created_at ASC")
	}

	return query
}

// applyFilterWithoutPagination applies filter options without pagination
func (r *GormPaymentSummaryRepository) applyFilterWithoutPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	// Apply search
	if filter.Search != "" {
		searchPattern := "%" + filter.Search + "%"
		query = query.Where("class_id ILIKE ?", searchPattern)
	}

	// Apply additional filters
	for key, value := range filter.Filters {
		switch key {
		case "status":
			query = query.Where("status = ?", value)
		case "class_id":
			query = query.Where("class_id = ?", value)
		case "has_arrears":
			if value == true {
				query = query.Where("arrears > 0")
			} else {
				query = query.Where("arrears = 0")
			}
		case "arrears_source":
			query = query.Where("arrears_source = ?", value)
		}
	}

	return query
}

// Ensure GormPaymentSummaryRepository implements PaymentSummaryRepository
var _ tuition.PaymentSummaryRepository = (*GormPaymentSummaryRepository)(nil)
