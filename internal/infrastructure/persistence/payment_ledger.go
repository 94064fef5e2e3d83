package persistence

import (
	"context"
	"errors"

	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/domain/tuition"
	"github.com/schoolerp/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormPaymentLedger implements tuition.PaymentLedger using GORM.
// The immutable transaction and the merged summary are written inside
// one database transaction, so a payment is either fully recorded or
// not recorded at all
type GormPaymentLedger struct {
	db *gorm.DB
}

// NewGormPaymentLedger creates a new GormPaymentLedger
func NewGormPaymentLedger(db *gorm.DB) *GormPaymentLedger {
	return &GormPaymentLedger{db: db}
}

// RecordPayment writes the summary and the transaction atomically.
//
// A fresh summary is inserted; the unique ledger key makes a concurrent
// first payment for the same pupil term fail here instead of creating a
// duplicate account. An existing summary is updated under the optimistic
// version check. Both conflict paths surface shared.ErrConcurrencyConflict
// so the caller can re-read, re-validate the overpayment guard and retry
func (l *GormPaymentLedger) RecordPayment(ctx context.Context, summary *tuition.PaymentSummary, txn *tuition.PaymentTransaction, summaryIsNew bool) error {
	summaryModel := models.PaymentSummaryModelFromDomain(summary)
	txnModel := models.PaymentTransactionModelFromDomain(txn)

	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if summaryIsNew {
			if err := tx.Create(summaryModel).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return shared.ErrConcurrencyConflict
				}
				return err
			}
		} else {
			result := tx.Model(&models.PaymentSummaryModel{}).
				Where("id = ? AND version = ?", summary.ID, summary.Version-1).
				Updates(map[string]any{
					"total_paid":      summaryModel.TotalPaid,
					"balance":         summaryModel.Balance,
					"status":          summaryModel.Status,
					"last_payment_at": summaryModel.LastPaymentAt,
					"version":         summaryModel.Version,
					"updated_at":      summaryModel.UpdatedAt,
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return shared.ErrConcurrencyConflict
			}
		}

		if err := tx.Create(txnModel).Error; err != nil {
			// A clashing receipt number rolls back the summary write too;
			// the retry regenerates the receipt with a fresh suffix
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return shared.ErrConcurrencyConflict
			}
			return err
		}
		return nil
	})
}

// Ensure GormPaymentLedger implements PaymentLedger
var _ tuition.PaymentLedger = (*GormPaymentLedger)(nil)
