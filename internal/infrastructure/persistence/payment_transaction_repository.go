package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/domain/shared/valueobject"
	"github.com/schoolerp/backend/internal/domain/tuition"
	"github.com/schoolerp/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormPaymentTransactionRepository implements PaymentTransactionRepository
// using GORM. Transactions are written only through the payment ledger;
// this repository serves the audit trail reads
type GormPaymentTransactionRepository struct {
	db *gorm.DB
}

// NewGormPaymentTransactionRepository creates a new GormPaymentTransactionRepository
func NewGormPaymentTransactionRepository(db *gorm.DB) *GormPaymentTransactionRepository {
	return &GormPaymentTransactionRepository{db: db}
}

// WithTx returns a new repository instance with the given transaction
func (r *GormPaymentTransactionRepository) WithTx(tx *gorm.DB) *GormPaymentTransactionRepository {
	return &GormPaymentTransactionRepository{db: tx}
}

// FindByID finds a payment transaction by its ID
func (r *GormPaymentTransactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*tuition.PaymentTransaction, error) {
	var model models.PaymentTransactionModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByReceiptNo finds a payment transaction by its receipt number
func (r *GormPaymentTransactionRepository) FindByReceiptNo(ctx context.Context, receiptNo string) (*tuition.PaymentTransaction, error) {
	if receiptNo == "" {
		return nil, shared.NewDomainError("INVALID_RECEIPT", "Receipt number cannot be empty")
	}
	var model models.PaymentTransactionModel
	if err := r.db.WithContext(ctx).
		Where("receipt_no = ?", receiptNo).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByPupilAndSession finds a pupil's transactions in a session,
// most recent first
func (r *GormPaymentTransactionRepository) FindByPupilAndSession(ctx context.Context, pupilID uuid.UUID, session valueobject.Session) ([]tuition.PaymentTransaction, error) {
	var txnModels []models.PaymentTransactionModel
	if err := r.db.WithContext(ctx).
		Where("pupil_id = ? AND session = ?", pupilID, session).
		Order("paid_at DESC").
		Find(&txnModels).Error; err != nil {
		return nil, err
	}

	txns := make([]tuition.PaymentTransaction, len(txnModels))
	for i, model := range txnModels {
		txns[i] = *model.ToDomain()
	}
	return txns, nil
}

// FindByDateRange finds transactions recorded within [from, to)
func (r *GormPaymentTransactionRepository) FindByDateRange(ctx context.Context, from, to time.Time, filter shared.Filter) ([]tuition.PaymentTransaction, error) {
	var txnModels []models.PaymentTransactionModel
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&models.PaymentTransactionModel{}).
			Where("paid_at >= ? AND paid_at < ?", from, to),
		filter,
	)

	if err := query.Find(&txnModels).Error; err != nil {
		return nil, err
	}

	txns := make([]tuition.PaymentTransaction, len(txnModels))
	for i, model := range txnModels {
		txns[i] = *model.ToDomain()
	}
	return txns, nil
}

// FindAll finds all transactions matching the filter
func (r *GormPaymentTransactionRepository) FindAll(ctx context.Context, filter shared.Filter) ([]tuition.PaymentTransaction, error) {
	var txnModels []models.PaymentTransactionModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.PaymentTransactionModel{}), filter)

	if err := query.Find(&txnModels).Error; err != nil {
		return nil, err
	}

	txns := make([]tuition.PaymentTransaction, len(txnModels))
	for i, model := range txnModels {
		txns[i] = *model.ToDomain()
	}
	return txns, nil
}

// Count counts transactions matching the filter
func (r *GormPaymentTransactionRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.PaymentTransactionModel{})
	query = r.applyFilterWithoutPagination(query, filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// applyFilter applies filter options to the query
func (r *GormPaymentTransactionRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	// Apply pagination
	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	// Apply ordering
	if filter.OrderBy != "" {
		sortField := ValidateSortField(filter.OrderBy, PaymentTransactionSortFields, "")
		if sortField != "" {
			sortOrder := ValidateSortOrder(filter.OrderDir)
			query = query.Order(sortField + " " + sortOrder)
		} else {
			query = query.Order("paid_at DESC")
		}
	} else {
		query = query.Order("paid_at DESC")
	}

	return query
}

// applyFilterWithoutPagination applies filter options without pagination
func (r *GormPaymentTransactionRepository) applyFilterWithoutPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	// Apply search
	if filter.Search != "" {
		searchPattern := "%" + filter.Search + "%"
		query = query.Where("receipt_no ILIKE ? OR pupil_name ILIKE ?", searchPattern, searchPattern)
	}

	// Apply additional filters
	for key, value := range filter.Filters {
		switch key {
		case "session":
			query = query.Where("session = ?", value)
		case "term":
			query = query.Where("term = ?", value)
		case "class_id":
			query = query.Where("class_id = ?", value)
		case "method":
			query = query.Where("method = ?", value)
		case "recorded_by":
			query = query.Where("recorded_by = ?", value)
		case "pupil_id":
			query = query.Where("pupil_id = ?", value)
		}
	}

	return query
}

// Ensure GormPaymentTransactionRepository implements PaymentTransactionRepository
var _ tuition.PaymentTransactionRepository = (*GormPaymentTransactionRepository)(nil)
