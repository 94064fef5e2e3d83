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

// GormFeeStructureRepository implements FeeStructureRepository using GORM
type GormFeeStructureRepository struct {
	db *gorm.DB
}

// NewGormFeeStructureRepository creates a new GormFeeStructureRepository
func NewGormFeeStructureRepository(db *gorm.DB) *GormFeeStructureRepository {
	return &GormFeeStructureRepository{db: db}
}

// WithTx returns a new repository instance with the given transaction
func (r *GormFeeStructureRepository) WithTx(tx *gorm.DB) *GormFeeStructureRepository {
	return &GormFeeStructureRepository{db: tx}
}

// FindByID finds a fee structure by its ID
func (r *GormFeeStructureRepository) FindByID(ctx context.Context, id uuid.UUID) (*tuition.FeeStructure, error) {
	var model models.FeeStructureModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByClassAndSession finds the fee structure for a class in a session.
// There is at most one per class per session
func (r *GormFeeStructureRepository) FindByClassAndSession(ctx context.Context, classID string, session valueobject.Session) (*tuition.FeeStructure, error) {
	var model models.FeeStructureModel
	if err := r.db.WithContext(ctx).
		Where("class_id = ? AND session = ?", classID, session).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindBySession finds all fee structures for a session
func (r *GormFeeStructureRepository) FindBySession(ctx context.Context, session valueobject.Session, filter shared.Filter) ([]tuition.FeeStructure, error) {
	var feeModels []models.FeeStructureModel
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&models.FeeStructureModel{}).
			Where("session = ?", session),
		filter,
	)

	if err := query.Find(&feeModels).Error; err != nil {
		return nil, err
	}

	structures := make([]tuition.FeeStructure, len(feeModels))
	for i, model := range feeModels {
		structures[i] = *model.ToDomain()
	}
	return structures, nil
}

// FindAll finds all fee structures matching the filter
func (r *GormFeeStructureRepository) FindAll(ctx context.Context, filter shared.Filter) ([]tuition.FeeStructure, error) {
	var feeModels []models.FeeStructureModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.FeeStructureModel{}), filter)

	if err := query.Find(&feeModels).Error; err != nil {
		return nil, err
	}

	structures := make([]tuition.FeeStructure, len(feeModels))
	for i, model := range feeModels {
		structures[i] = *model.ToDomain()
	}
	return structures, nil
}

// Save creates or updates a fee structure
func (r *GormFeeStructureRepository) Save(ctx context.Context, fs *tuition.FeeStructure) error {
	model := models.FeeStructureModelFromDomain(fs)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock saves a fee structure with optimistic locking (version check)
// Returns error if the version has changed (concurrent modification)
func (r *GormFeeStructureRepository) SaveWithLock(ctx context.Context, fs *tuition.FeeStructure) error {
	model := models.FeeStructureModelFromDomain(fs)
	result := r.db.WithContext(ctx).
		Model(&models.FeeStructureModel{}).
		Where("id = ? AND version = ?", fs.ID, fs.Version-1).
		Updates(map[string]any{
			"lines":      model.Lines,
			"total":      model.Total,
			"version":    model.Version,
			"updated_at": model.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError("OPTIMISTIC_LOCK_ERROR", "The fee structure has been modified by another transaction")
	}
	return nil
}

// Delete deletes a fee structure
func (r *GormFeeStructureRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.FeeStructureModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CountBySession counts the fee structures of one session so list
// pagination totals match the session-narrowed rows
func (r *GormFeeStructureRepository) CountBySession(ctx context.Context, session valueobject.Session, filter shared.Filter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.FeeStructureModel{}).
		Where("session = ?", session)
	query = r.applyFilterWithoutPagination(query, filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// applyFilter applies filter options to the query
func (r *GormFeeStructureRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	// Apply pagination
	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	// Apply ordering
	if filter.OrderBy != "" {
		sortField := ValidateSortField(filter.OrderBy, FeeStructureSortFields, "")
		if sortField != "" {
			sortOrder := ValidateSortOrder(filter.OrderDir)
			query = query.Order(sortField + " " + sortOrder)
		} else {
			query = query.Order("class_id ASC")
		}
	} else {
		query = query.Order("class_id ASC")
	}

	return query
}

// applyFilterWithoutPagination applies filter options without pagination
func (r *GormFeeStructureRepository) applyFilterWithoutPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	// Apply search
	if filter.Search != "" {
		searchPattern := "%" + filter.Search + "%"
		query = query.Where("class_id ILIKE ?", searchPattern)
	}

	// Apply additional filters
	for key, value := range filter.Filters {
		switch key {
		case "session":
			query = query.Where("session = ?", value)
		case "class_id":
			query = query.Where("class_id = ?", value)
		}
	}

	return query
}

// Ensure GormFeeStructureRepository implements FeeStructureRepository
var _ tuition.FeeStructureRepository = (*GormFeeStructureRepository)(nil)
