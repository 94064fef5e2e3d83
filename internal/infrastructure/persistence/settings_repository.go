package persistence

import (
	"context"
	"errors"

	"github.com/schoolerp/backend/internal/domain/settings"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormSettingsRepository implements settings.Repository using GORM.
// The table holds one row; the migration's unique index on a constant
// expression stops a second insert from ever landing
type GormSettingsRepository struct {
	db *gorm.DB
}

// NewGormSettingsRepository creates a new GormSettingsRepository
func NewGormSettingsRepository(db *gorm.DB) *GormSettingsRepository {
	return &GormSettingsRepository{db: db}
}

// Get returns the school settings row.
// Returns shared.ErrNotFound before first initialization
func (r *GormSettingsRepository) Get(ctx context.Context) (*settings.SchoolSettings, error) {
	var model models.SchoolSettingsModel
	if err := r.db.WithContext(ctx).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or updates the school settings row
func (r *GormSettingsRepository) Save(ctx context.Context, s *settings.SchoolSettings) error {
	model := models.SchoolSettingsModelFromDomain(s)
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Ensure GormSettingsRepository implements settings.Repository
var _ settings.Repository = (*GormSettingsRepository)(nil)
