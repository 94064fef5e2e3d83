package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/domain/shared/valueobject"
	"github.com/schoolerp/backend/internal/domain/tuition"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func ngn(amount float64) valueobject.Money {
	return valueobject.NewMoneyNGN(decimal.NewFromFloat(amount))
}

// newMockPaymentLedger creates a GormPaymentLedger with a mocked SQL connection
func newMockPaymentLedger(t *testing.T) (*GormPaymentLedger, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewGormPaymentLedger(gormDB), mock, mockDB
}

// ledgerFixture builds a summary with a payment already applied and the
// matching transaction record: term fee 25000, arrears 10000 carried from
// the prior term, 15000 paid, leaving a 20000 balance
func ledgerFixture(t *testing.T) (*tuition.PaymentSummary, *tuition.PaymentTransaction) {
	t.Helper()

	session := mustSession(t, "2023/2024")
	summary, err := tuition.NewPaymentSummary(
		uuid.New(),
		"JSS1A",
		session,
		valueobject.SecondTerm,
		ngn(25000),
		tuition.ArrearsResult{Amount: ngn(10000), Source: tuition.ArrearsFromPriorTerm},
	)
	require.NoError(t, err)

	paidAt := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	split, err := summary.ApplyPayment(ngn(15000), paidAt)
	require.NoError(t, err)

	txn, err := tuition.NewPaymentTransaction(
		"RCP-20240115-0007-K7QZ",
		summary,
		"Adaeze Obi",
		split,
		tuition.MethodCash,
		"",
		"bursar.ngozi",
		paidAt,
	)
	require.NoError(t, err)

	return summary, txn
}

func TestNewGormPaymentLedger(t *testing.T) {
	t.Run("creates ledger with valid DB", func(t *testing.T) {
		ledger, _, mockDB := newMockPaymentLedger(t)
		defer mockDB.Close()

		assert.NotNil(t, ledger)
		assert.NotNil(t, ledger.db)
	})
}

func TestGormPaymentLedger_RecordPayment_FreshSummary(t *testing.T) {
	t.Run("inserts summary and transaction atomically", func(t *testing.T) {
		ledger, mock, mockDB := newMockPaymentLedger(t)
		defer mockDB.Close()

		summary, txn := ledgerFixture(t)

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO "payment_summaries"`).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(`INSERT INTO "payment_transactions"`).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		err := ledger.RecordPayment(context.Background(), summary, txn, true)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maps a duplicate ledger key to a concurrency conflict", func(t *testing.T) {
		ledger, mock, mockDB := newMockPaymentLedger(t)
		defer mockDB.Close()

		summary, txn := ledgerFixture(t)

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO "payment_summaries"`).
			WillReturnError(gorm.ErrDuplicatedKey)
		mock.ExpectRollback()

		err := ledger.RecordPayment(context.Background(), summary, txn, true)

		assert.Error(t, err)
		assert.Equal(t, shared.ErrConcurrencyConflict, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormPaymentLedger_RecordPayment_ExistingSummary(t *testing.T) {
	t.Run("updates summary under the version guard", func(t *testing.T) {
		ledger, mock, mockDB := newMockPaymentLedger(t)
		defer mockDB.Close()

		summary, txn := ledgerFixture(t)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "payment_summaries" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO "payment_transactions"`).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		err := ledger.RecordPayment(context.Background(), summary, txn, false)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns conflict when the version guard misses", func(t *testing.T) {
		ledger, mock, mockDB := newMockPaymentLedger(t)
		defer mockDB.Close()

		summary, txn := ledgerFixture(t)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "payment_summaries" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := ledger.RecordPayment(context.Background(), summary, txn, false)

		assert.Error(t, err)
		assert.Equal(t, shared.ErrConcurrencyConflict, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back the summary write when the receipt number clashes", func(t *testing.T) {
		ledger, mock, mockDB := newMockPaymentLedger(t)
		defer mockDB.Close()

		summary, txn := ledgerFixture(t)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "payment_summaries" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO "payment_transactions"`).
			WillReturnError(gorm.ErrDuplicatedKey)
		mock.ExpectRollback()

		err := ledger.RecordPayment(context.Background(), summary, txn, false)

		assert.Error(t, err)
		assert.Equal(t, shared.ErrConcurrencyConflict, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormPaymentLedger_InterfaceCompliance(t *testing.T) {
	t.Run("implements PaymentLedger interface", func(t *testing.T) {
		ledger, _, mockDB := newMockPaymentLedger(t)
		defer mockDB.Close()

		var _ tuition.PaymentLedger = ledger
	})
}
