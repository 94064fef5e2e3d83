package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/enrollment"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/domain/shared/valueobject"
	"github.com/schoolerp/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormEnrollmentRepository implements enrollment.Repository using GORM
type GormEnrollmentRepository struct {
	db *gorm.DB
}

// NewGormEnrollmentRepository creates a new GormEnrollmentRepository
func NewGormEnrollmentRepository(db *gorm.DB) *GormEnrollmentRepository {
	return &GormEnrollmentRepository{db: db}
}

// WithTx returns a new repository instance with the given transaction
func (r *GormEnrollmentRepository) WithTx(tx *gorm.DB) *GormEnrollmentRepository {
	return &GormEnrollmentRepository{db: tx}
}

// FindByID finds an enrollment record by its ID
func (r *GormEnrollmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*enrollment.Record, error) {
	var model models.EnrollmentRecordModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByPupilAndSession finds a pupil's enrollment for a session.
// A pupil has at most one record per session
func (r *GormEnrollmentRepository) FindByPupilAndSession(ctx context.Context, pupilID uuid.UUID, session valueobject.Session) (*enrollment.Record, error) {
	var model models.EnrollmentRecordModel
	if err := r.db.WithContext(ctx).
		Where("pupil_id = ? AND session = ?", pupilID, session).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByClassAndSession finds all enrollments in a class for a session
func (r *GormEnrollmentRepository) FindByClassAndSession(ctx context.Context, classID string, session valueobject.Session, filter shared.Filter) ([]enrollment.Record, error) {
	var recordModels []models.EnrollmentRecordModel
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&models.EnrollmentRecordModel{}).
			Where("class_id = ? AND session = ?", classID, session),
		filter,
	)

	if err := query.Find(&recordModels).Error; err != nil {
		return nil, err
	}

	records := make([]enrollment.Record, len(recordModels))
	for i, model := range recordModels {
		records[i] = *model.ToDomain()
	}
	return records, nil
}

// FindBySession finds all enrollments for a session
func (r *GormEnrollmentRepository) FindBySession(ctx context.Context, session valueobject.Session, filter shared.Filter) ([]enrollment.Record, error) {
	var recordModels []models.EnrollmentRecordModel
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&models.EnrollmentRecordModel{}).
			Where("session = ?", session),
		filter,
	)

	if err := query.Find(&recordModels).Error; err != nil {
		return nil, err
	}

	records := make([]enrollment.Record, len(recordModels))
	for i, model := range recordModels {
		records[i] = *model.ToDomain()
	}
	return records, nil
}

// Save creates or updates an enrollment record
func (r *GormEnrollmentRepository) Save(ctx context.Context, record *enrollment.Record) error {
	model := models.EnrollmentRecordModelFromDomain(record)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock saves an enrollment record with optimistic locking (version check)
// Returns error if the version has changed (concurrent modification)
func (r *GormEnrollmentRepository) SaveWithLock(ctx context.Context, record *enrollment.Record) error {
	model := models.EnrollmentRecordModelFromDomain(record)
	result := r.db.WithContext(ctx).
		Model(&models.EnrollmentRecordModel{}).
		Where("id = ? AND version = ?", record.ID, record.Version-1).
		Updates(map[string]any{
			"class_id":               model.ClassID,
			"exit_term":              model.ExitTerm,
			"fee_adjustment_percent": model.FeeAdjustmentPercent,
			"fee_adjustment_amount":  model.FeeAdjustmentAmount,
			"version":                model.Version,
			"updated_at":             model.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError("OPTIMISTIC_LOCK_ERROR", "The enrollment record has been modified by another transaction")
	}
	return nil
}

// Delete deletes an enrollment record
func (r *GormEnrollmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.EnrollmentRecordModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CountBySession counts enrollments for a session
func (r *GormEnrollmentRepository) CountBySession(ctx context.Context, session valueobject.Session) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.EnrollmentRecordModel{}).
		Where("session = ?", session).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountByClassAndSession counts enrollments in a class for a session
func (r *GormEnrollmentRepository) CountByClassAndSession(ctx context.Context, classID string, session valueobject.Session) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.EnrollmentRecordModel{}).
		Where("class_id = ? AND session = ?", classID, session).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// applyFilter applies filter options to the query
func (r *GormEnrollmentRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	// Apply pagination
	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	// Apply ordering
	if filter.OrderBy != "" {
		sortField := ValidateSortField(filter.OrderBy, EnrollmentRecordSortFields, "")
		if sortField != "" {
			sortOrder := ValidateSortOrder(filter.OrderDir)
			query = query.Order(sortField + " " + sortOrder)
		} else {
			query = query.Order("pupil_name ASC")
		}
	} else {
		query = query.Order("pupil_name ASC")
	}

	return query
}

// applyFilterWithoutPagination applies filter options without pagination
func (r *GormEnrollmentRepository) applyFilterWithoutPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	// Apply search
	if filter.Search != "" {
		searchPattern := "%" + filter.Search + "%"
		query = query.Where("pupil_name ILIKE ? OR class_id ILIKE ?", searchPattern, searchPattern)
	}

	// Apply additional filters
	for key, value := range filter.Filters {
		switch key {
		case "class_id":
			query = query.Where("class_id = ?", value)
		case "admission_term":
			query = query.Where("admission_term = ?", value)
		case "exited":
			if value == true {
				query = query.Where("exit_term IS NOT NULL")
			} else {
				query = query.Where("exit_term IS NULL")
			}
		case "has_adjustment":
			if value == true {
				query = query.Where("fee_adjustment_percent <> 0 OR fee_adjustment_amount <> 0")
			}
		}
	}

	return query
}

// Ensure GormEnrollmentRepository implements enrollment.Repository
var _ enrollment.Repository = (*GormEnrollmentRepository)(nil)
