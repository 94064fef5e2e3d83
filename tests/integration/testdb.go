// Package integration exercises the tuition ledger against a real
// PostgreSQL database started through testcontainers.
package integration

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	mpg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB is a migrated PostgreSQL database backed by a throwaway
// container. Each call to NewTestDB gets its own container so tests
// never observe each other's rows.
type TestDB struct {
	DB *gorm.DB

	sqlDB     *sql.DB
	container testcontainers.Container
	t         *testing.T
}

// NewTestDB starts a PostgreSQL container, connects through GORM and
// applies all migrations. The container and connection are torn down
// via t.Cleanup.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("ledger_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("admin123"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "container connection string")

	db, sqlDB := openGorm(t, dsn)
	applyMigrations(t, sqlDB)

	tdb := &TestDB{DB: db, sqlDB: sqlDB, container: container, t: t}
	t.Cleanup(tdb.teardown)
	return tdb
}

func (tdb *TestDB) teardown() {
	if tdb.sqlDB != nil {
		_ = tdb.sqlDB.Close()
	}
	if tdb.container != nil {
		if err := tdb.container.Terminate(context.Background()); err != nil {
			tdb.t.Logf("terminate container: %v", err)
		}
	}
}

// openGorm connects to dsn with the same TranslateError setting as the
// production connection, so unique violations surface as
// gorm.ErrDuplicatedKey in the ledger's conflict handling. Set
// TEST_DB_DEBUG to see the SQL the tests run.
func openGorm(t *testing.T, dsn string) (*gorm.DB, *sql.DB) {
	t.Helper()

	logMode := logger.Silent
	if os.Getenv("TEST_DB_DEBUG") != "" {
		logMode = logger.Info
	}

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logMode),
		TranslateError: true,
	})
	require.NoError(t, err, "open gorm connection")

	sqlDB, err := db.DB()
	require.NoError(t, err, "unwrap sql.DB")
	sqlDB.SetMaxOpenConns(5)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	return db, sqlDB
}

func applyMigrations(t *testing.T, sqlDB *sql.DB) {
	t.Helper()

	path := migrationsDir()
	require.NotEmpty(t, path, "locate migrations directory")

	driver, err := mpg.WithInstance(sqlDB, &mpg.Config{})
	require.NoError(t, err, "migration driver")

	m, err := migrate.NewWithDatabaseInstance("file://"+path, "postgres", driver)
	require.NoError(t, err, "migrate instance")

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		require.NoError(t, err, "run migrations")
	}
}

// migrationsDir walks up from this file looking for the repo-root
// migrations directory, falling back to the working directory for
// builds without source paths.
func migrationsDir() string {
	if _, filename, _, ok := runtime.Caller(0); ok {
		dir := filepath.Dir(filename)
		for i := 0; i < 5; i++ {
			candidate := filepath.Join(dir, "migrations")
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
			dir = filepath.Dir(dir)
		}
	}

	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for _, rel := range []string{"migrations", "../migrations", "../../migrations"} {
		candidate := filepath.Join(wd, rel)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}
