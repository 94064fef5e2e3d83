// Command migrate manages the fee ledger's database schema. The
// create and list subcommands only touch the migrations directory;
// everything else opens the configured Postgres database.
package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/schoolerp/backend/internal/infrastructure/config"
	"github.com/schoolerp/backend/internal/infrastructure/logger"
	"github.com/schoolerp/backend/internal/infrastructure/migration"
)

const defaultMigrationsPath = "migrations"

func main() {
	pathFlag := flag.String("path", "", "migrations directory (default ./migrations)")
	levelFlag := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	log := newCLILogger(*levelFlag)
	defer func() {
		_ = logger.Sync(log)
	}()

	if err := run(log, resolveMigrationsPath(log, *pathFlag), args[0], args[1:]); err != nil {
		log.Fatal("Migration command failed", zap.String("command", args[0]), zap.Error(err))
	}
}

// newCLILogger builds a console logger; the migrate tool is always run
// by a person, never scraped by a collector.
func newCLILogger(level string) *zap.Logger {
	log, err := logger.New(&logger.Config{
		Level:      level,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init:", err)
		os.Exit(1)
	}
	return log
}

func run(log *zap.Logger, migrationsPath, command string, args []string) error {
	log.Info("Running migration command",
		zap.String("command", command),
		zap.String("migrations_path", migrationsPath),
	)

	// create and list work on the filesystem alone
	switch command {
	case "create":
		return runCreate(log, migrationsPath, args)
	case "list":
		return runList(log, migrationsPath)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	db, err := openDatabase(cfg.Database.DSN())
	if err != nil {
		return err
	}
	defer db.Close()

	m, err := migration.New(db, migrationsPath, log)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()

	switch command {
	case "up":
		return m.Up()
	case "down":
		return m.Down()
	case "step":
		n, err := intArg(args, "step count")
		if err != nil {
			return err
		}
		return m.Steps(n)
	case "goto":
		if len(args) < 1 {
			return errors.New("version required, usage: migrate goto <version>")
		}
		version, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid version number %q", args[0])
		}
		return m.GoTo(uint(version))
	case "version":
		return runVersion(log, m)
	case "force":
		version, err := intArg(args, "version")
		if err != nil {
			return err
		}
		log.Warn("Forcing migration version - use with caution!")
		return m.Force(version)
	case "drop":
		return runDrop(m, args)
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func openDatabase(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func runCreate(log *zap.Logger, migrationsPath string, args []string) error {
	if len(args) < 1 {
		return errors.New("migration name required, usage: migrate create <name> [description]")
	}
	description := ""
	if len(args) > 1 {
		description = args[1]
	}

	mf, err := migration.CreateMigration(migrationsPath, args[0], description)
	if err != nil {
		return err
	}

	log.Info("Migration created successfully",
		zap.String("version", mf.Version),
		zap.String("up_file", mf.UpPath),
		zap.String("down_file", mf.DownPath),
	)
	return nil
}

func runList(log *zap.Logger, migrationsPath string) error {
	migrations, err := migration.ListMigrations(migrationsPath)
	if err != nil {
		return err
	}
	if len(migrations) == 0 {
		log.Info("No migrations found")
		return nil
	}

	log.Info("Available migrations", zap.Int("count", len(migrations)))
	for _, m := range migrations {
		fmt.Println("  -", m)
	}
	return nil
}

func runVersion(log *zap.Logger, m *migration.Migrator) error {
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	if version == 0 {
		log.Info("No migrations applied")
		return nil
	}
	log.Info("Current migration version",
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
	)
	return nil
}

func runDrop(m *migration.Migrator, args []string) error {
	confirmed := false
	for _, arg := range args {
		if arg == "-confirm" || arg == "--confirm" {
			confirmed = true
		}
	}
	if !confirmed {
		return errors.New("drop destroys all database objects, rerun as 'migrate drop -confirm' to proceed")
	}
	return m.Drop()
}

func intArg(args []string, what string) (int, error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("%s required", what)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", what, args[0])
	}
	return n, nil
}

// resolveMigrationsPath falls back to ./migrations, then to the
// directory layout of an installed binary (bin/migrate next to the
// repo root).
func resolveMigrationsPath(log *zap.Logger, explicit string) string {
	path := explicit
	if path == "" {
		path = defaultMigrationsPath
		if _, err := os.Stat(path); err != nil {
			if execPath, err := os.Executable(); err == nil {
				candidate := filepath.Join(filepath.Dir(execPath), "..", "..", defaultMigrationsPath)
				if _, err := os.Stat(candidate); err == nil {
					path = candidate
				}
			}
		}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		log.Fatal("Failed to resolve migrations path", zap.Error(err))
	}
	return abs
}

func printUsage() {
	fmt.Println(`School Fee Ledger schema migration tool.

Usage: migrate [flags] <command> [arguments]

Commands:
  up                    apply every pending migration
  down                  roll back all migrations
  step <n>              apply n migrations, negative n rolls back
  goto <version>        migrate to an exact version
  version               print the current version and dirty flag
  force <version>       overwrite the recorded version (use with caution)
  drop -confirm         drop every database object (DANGEROUS)
  create <name> [desc]  write a new up/down migration file pair
  list                  list the migration files on disk

Flags:
  -path string          migrations directory (default ./migrations)
  -log-level string     log level: debug, info, warn, error (default info)

Connection settings come from config.toml or SCHOOLERP_DATABASE_*
environment variables (HOST, PORT, USER, PASSWORD, DBNAME, SSLMODE).

Examples:
  migrate up
  migrate step -1
  migrate create add_fee_structures_table "Fee structures per class and session"
  migrate version`)
}
