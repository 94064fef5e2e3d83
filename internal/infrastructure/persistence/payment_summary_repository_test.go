package persistence

import (
	"context"
	"database/sql"
	"errors"
	"testing"

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

// newMockPaymentSummaryRepository creates a GormPaymentSummaryRepository with a mocked SQL connection
func newMockPaymentSummaryRepository(t *testing.T) (*GormPaymentSummaryRepository, sqlmock.Sqlmock, *sql.DB) {
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

	return NewGormPaymentSummaryRepository(gormDB), mock, mockDB
}

func summaryColumns() []string {
	return []string{"id", "version", "ledger_key", "pupil_id", "class_id", "session", "term", "amount_due", "arrears", "arrears_source", "total_due", "total_paid", "balance", "status", "last_payment_at"}
}

func TestNewGormPaymentSummaryRepository(t *testing.T) {
	t.Run("creates repository with valid DB", func(t *testing.T) {
		repo, _, mockDB := newMockPaymentSummaryRepository(t)
		defer mockDB.Close()

		assert.NotNil(t, repo)
		assert.NotNil(t, repo.db)
	})
}

func TestGormPaymentSummaryRepository_TermBalance(t *testing.T) {
	t.Run("returns stored balance when summary exists", func(t *testing.T) {
		repo, mock, mockDB := newMockPaymentSummaryRepository(t)
		defer mockDB.Close()

		pupilID := uuid.New()
		session := mustSession(t, "2023/2024")

		rows := sqlmock.NewRows([]string{"balance"}).
			AddRow(decimal.NewFromInt(3000))

		mock.ExpectQuery(`SELECT "balance" FROM "payment_summaries" WHERE pupil_id = \$1 AND session = \$2 AND term = \$3 ORDER BY .* LIMIT .*`).
			WithArgs(pupilID, session, valueobject.FirstTerm, 1).
			WillReturnRows(rows)

		balance, found, err := repo.TermBalance(context.Background(), pupilID, session, valueobject.FirstTerm)

		assert.NoError(t, err)
		assert.True(t, found)
		assert.True(t, balance.Amount().Equal(decimal.NewFromInt(3000)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns zero and not found when no summary exists", func(t *testing.T) {
		repo, mock, mockDB := newMockPaymentSummaryRepository(t)
		defer mockDB.Close()

		pupilID := uuid.New()
		session := mustSession(t, "2023/2024")

		mock.ExpectQuery(`SELECT "balance" FROM "payment_summaries" WHERE pupil_id = \$1 AND session = \$2 AND term = \$3 ORDER BY .* LIMIT .*`).
			WithArgs(pupilID, session, valueobject.ThirdTerm, 1).
			WillReturnError(gorm.ErrRecordNotFound)

		balance, found, err := repo.TermBalance(context.Background(), pupilID, session, valueobject.ThirdTerm)

		assert.NoError(t, err)
		assert.False(t, found)
		assert.True(t, balance.IsZero())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("surfaces database errors for the caller to degrade on", func(t *testing.T) {
		repo, mock, mockDB := newMockPaymentSummaryRepository(t)
		defer mockDB.Close()

		pupilID := uuid.New()
		session := mustSession(t, "2023/2024")

		mock.ExpectQuery(`SELECT "balance" FROM "payment_summaries" WHERE pupil_id = \$1 AND session = \$2 AND term = \$3 ORDER BY .* LIMIT .*`).
			WithArgs(pupilID, session, valueobject.ThirdTerm, 1).
			WillReturnError(errors.New("connection refused"))

		balance, found, err := repo.TermBalance(context.Background(), pupilID, session, valueobject.ThirdTerm)

		assert.Error(t, err)
		assert.False(t, found)
		assert.True(t, balance.IsZero())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormPaymentSummaryRepository_FindByID(t *testing.T) {
	t.Run("finds existing summary", func(t *testing.T) {
		repo, mock, mockDB := newMockPaymentSummaryRepository(t)
		defer mockDB.Close()

		summaryID := uuid.New()
		pupilID := uuid.New()
		session := mustSession(t, "2023/2024")

		rows := sqlmock.NewRows(summaryColumns()).
			AddRow(summaryID, 2, pupilID.String()+"_2023-2024_1", pupilID, "JSS1A", session, valueobject.FirstTerm,
				decimal.NewFromInt(25000), decimal.NewFromInt(10000), "prior_session", decimal.NewFromInt(35000),
				decimal.NewFromInt(15000), decimal.NewFromInt(20000), "partial", nil)

		mock.ExpectQuery(`SELECT \* FROM "payment_summaries" WHERE id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(summaryID, 1).
			WillReturnRows(rows)

		summary, err := repo.FindByID(context.Background(), summaryID)

		assert.NoError(t, err)
		assert.NotNil(t, summary)
		assert.Equal(t, summaryID, summary.ID)
		assert.Equal(t, pupilID, summary.PupilID)
		assert.Equal(t, tuition.StatusPartial, summary.Status)
		assert.Equal(t, tuition.ArrearsFromPriorSession, summary.ArrearsSource)
		assert.True(t, summary.Balance.Equal(decimal.NewFromInt(20000)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns error for non-existent summary", func(t *testing.T) {
		repo, mock, mockDB := newMockPaymentSummaryRepository(t)
		defer mockDB.Close()

		summaryID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "payment_summaries" WHERE id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(summaryID, 1).
			WillReturnError(gorm.ErrRecordNotFound)

		summary, err := repo.FindByID(context.Background(), summaryID)

		assert.Error(t, err)
		assert.Nil(t, summary)
		assert.Equal(t, shared.ErrNotFound, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormPaymentSummaryRepository_FindByPupilSessionTerm(t *testing.T) {
	t.Run("finds the pupil's summary for one term", func(t *testing.T) {
		repo, mock, mockDB := newMockPaymentSummaryRepository(t)
		defer mockDB.Close()

		summaryID := uuid.New()
		pupilID := uuid.New()
		session := mustSession(t, "2023/2024")

		rows := sqlmock.NewRows(summaryColumns()).
			AddRow(summaryID, 1, pupilID.String()+"_2023-2024_2", pupilID, "JSS1A", session, valueobject.SecondTerm,
				decimal.NewFromInt(25000), decimal.NewFromInt(3000), "prior_term", decimal.NewFromInt(28000),
				decimal.Zero, decimal.NewFromInt(28000), "owing_with_arrears", nil)

		mock.ExpectQuery(`SELECT \* FROM "payment_summaries" WHERE pupil_id = \$1 AND session = \$2 AND term = \$3 ORDER BY .* LIMIT .*`).
			WithArgs(pupilID, session, valueobject.SecondTerm, 1).
			WillReturnRows(rows)

		summary, err := repo.FindByPupilSessionTerm(context.Background(), pupilID, session, valueobject.SecondTerm)

		assert.NoError(t, err)
		assert.NotNil(t, summary)
		assert.Equal(t, valueobject.SecondTerm, summary.Term)
		assert.Equal(t, tuition.StatusOwingWithArrears, summary.Status)
		assert.True(t, summary.HasArrears())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns error when no summary exists yet", func(t *testing.T) {
		repo, mock, mockDB := newMockPaymentSummaryRepository(t)
		defer mockDB.Close()

		pupilID := uuid.New()
		session := mustSession(t, "2023/2024")

		mock.ExpectQuery(`SELECT \* FROM "payment_summaries" WHERE pupil_id = \$1 AND session = \$2 AND term = \$3 ORDER BY .* LIMIT .*`).
			WithArgs(pupilID, session, valueobject.FirstTerm, 1).
			WillReturnError(gorm.ErrRecordNotFound)

		summary, err := repo.FindByPupilSessionTerm(context.Background(), pupilID, session, valueobject.FirstTerm)

		assert.Error(t, err)
		assert.Nil(t, summary)
		assert.Equal(t, shared.ErrNotFound, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormPaymentSummaryRepository_FindByPupilAndSession(t *testing.T) {
	t.Run("finds summaries ordered by term", func(t *testing.T) {
		repo, mock, mockDB := newMockPaymentSummaryRepository(t)
		defer mockDB.Close()

		pupilID := uuid.New()
		session := mustSession(t, "2023/2024")

		rows := sqlmock.NewRows(summaryColumns()).
			AddRow(uuid.New(), 3, pupilID.String()+"_2023-2024_1", pupilID, "JSS1A", session, valueobject.FirstTerm,
				decimal.NewFromInt(25000), decimal.Zero, "none", decimal.NewFromInt(25000),
				decimal.NewFromInt(25000), decimal.Zero, "paid", nil).
			AddRow(uuid.New(), 1, pupilID.String()+"_2023-2024_2", pupilID, "JSS1A", session, valueobject.SecondTerm,
				decimal.NewFromInt(25000), decimal.Zero, "none", decimal.NewFromInt(25000),
				decimal.Zero, decimal.NewFromInt(25000), "owing", nil)

		mock.ExpectQuery(`SELECT \* FROM "payment_summaries" WHERE pupil_id = \$1 AND session = \$2 ORDER BY term ASC`).
			WithArgs(pupilID, session).
			WillReturnRows(rows)

		summaries, err := repo.FindByPupilAndSession(context.Background(), pupilID, session)

		assert.NoError(t, err)
		assert.Len(t, summaries, 2)
		assert.Equal(t, valueobject.FirstTerm, summaries[0].Term)
		assert.Equal(t, valueobject.SecondTerm, summaries[1].Term)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormPaymentSummaryRepository_FindOwingBySessionAndTerm(t *testing.T) {
	t.Run("finds only summaries with an open balance", func(t *testing.T) {
		repo, mock, mockDB := newMockPaymentSummaryRepository(t)
		defer mockDB.Close()

		session := mustSession(t, "2023/2024")
		pupilID := uuid.New()

		rows := sqlmock.NewRows(summaryColumns()).
			AddRow(uuid.New(), 1, pupilID.String()+"_2023-2024_1", pupilID, "JSS1A", session, valueobject.FirstTerm,
				decimal.NewFromInt(25000), decimal.Zero, "none", decimal.NewFromInt(25000),
				decimal.NewFromInt(5000), decimal.NewFromInt(20000), "partial", nil)

		mock.ExpectQuery(`SELECT \* FROM "payment_summaries" WHERE session = \$1 AND term = \$2 AND balance > 0 ORDER BY class_id ASC, created_at ASC`).
			WithArgs(session, valueobject.FirstTerm).
			WillReturnRows(rows)

		summaries, err := repo.FindOwingBySessionAndTerm(context.Background(), session, valueobject.FirstTerm, shared.Filter{})

		assert.NoError(t, err)
		assert.Len(t, summaries, 1)
		assert.True(t, summaries[0].Balance.GreaterThan(decimal.Zero))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormPaymentSummaryRepository_CountBySessionAndTerm(t *testing.T) {
	t.Run("counts summaries for a session and term", func(t *testing.T) {
		repo, mock, mockDB := newMockPaymentSummaryRepository(t)
		defer mockDB.Close()

		session := mustSession(t, "2023/2024")

		mock.ExpectQuery(`SELECT count\(\*\) FROM "payment_summaries" WHERE session = \$1 AND term = \$2`).
			WithArgs(session, valueobject.FirstTerm).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(87))

		count, err := repo.CountBySessionAndTerm(context.Background(), session, valueobject.FirstTerm, shared.Filter{})

		assert.NoError(t, err)
		assert.Equal(t, int64(87), count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("narrows the count to a class", func(t *testing.T) {
		repo, mock, mockDB := newMockPaymentSummaryRepository(t)
		defer mockDB.Close()

		session := mustSession(t, "2023/2024")

		mock.ExpectQuery(`SELECT count\(\*\) FROM "payment_summaries" WHERE \(session = \$1 AND term = \$2\) AND class_id = \$3`).
			WithArgs(session, valueobject.FirstTerm, "JSS1A").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

		count, err := repo.CountBySessionAndTerm(context.Background(), session, valueobject.FirstTerm, shared.Filter{
			Filters: map[string]interface{}{"class_id": "JSS1A"},
		})

		assert.NoError(t, err)
		assert.Equal(t, int64(12), count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormPaymentSummaryRepository_InterfaceCompliance(t *testing.T) {
	t.Run("implements PaymentSummaryRepository interface", func(t *testing.T) {
		repo, _, mockDB := newMockPaymentSummaryRepository(t)
		defer mockDB.Close()

		var _ tuition.PaymentSummaryRepository = repo
	})

	t.Run("serves as the prior balance reader for arrears resolution", func(t *testing.T) {
		repo, _, mockDB := newMockPaymentSummaryRepository(t)
		defer mockDB.Close()

		var _ tuition.PriorBalanceReader = repo
	})
}
