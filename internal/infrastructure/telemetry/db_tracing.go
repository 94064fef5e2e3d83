package telemetry

import (
	"context"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig controls the otelgorm integration.
type DBTracingConfig struct {
	Enabled bool
	// LogFullSQL includes query variables in spans. Dev only, it leaks
	// payment data in prod.
	LogFullSQL      bool
	SlowQueryThresh time.Duration
	DBSystem        string
}

// DefaultDBTracingConfig returns the disabled baseline: variables
// redacted, 200ms slow-query threshold, postgresql system name.
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		SlowQueryThresh: 200 * time.Millisecond,
		DBSystem:        "postgresql",
	}
}

// DBTracingPlugin wraps the otelgorm plugin and layers slow-query
// detection on top of its spans. Every ledger write runs through GORM, so
// this is where payment transaction latency becomes visible.
type DBTracingPlugin struct {
	config DBTracingConfig
	logger *zap.Logger
}

// NewDBTracingPlugin builds the plugin; call RegisterOtelGorm to attach it.
func NewDBTracingPlugin(cfg DBTracingConfig, logger *zap.Logger) *DBTracingPlugin {
	return &DBTracingPlugin{config: cfg, logger: logger}
}

// RegisterOtelGorm registers the otelgorm plugin with the given GORM DB
// instance plus timing callbacks for slow query detection and error
// marking. No-op when tracing is disabled.
func (p *DBTracingPlugin) RegisterOtelGorm(db *gorm.DB) error {
	if !p.config.Enabled {
		p.logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}

	opts := []otelgorm.Option{
		otelgorm.WithDBName(p.config.DBSystem),
	}
	if !p.config.LogFullSQL {
		// Keep amounts and pupil identifiers out of span attributes
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}

	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}
	if err := p.registerTimingCallbacks(db); err != nil {
		return err
	}

	p.logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", p.config.LogFullSQL),
		zap.Duration("slow_query_threshold", p.config.SlowQueryThresh),
		zap.String("db_system", p.config.DBSystem),
	)

	return nil
}

// registerTimingCallbacks wraps every GORM operation with a start-time
// marker and a post-hook that annotates the active span.
func (p *DBTracingPlugin) registerTimingCallbacks(db *gorm.DB) error {
	before := func(db *gorm.DB) {
		if db.Statement.Context != nil {
			db.Statement.Context = context.WithValue(db.Statement.Context, queryStartTimeKey, time.Now())
		}
	}

	registrations := []func() error{
		func() error {
			return db.Callback().Create().Before("gorm:create").Register("otel_timing:before_create", before)
		},
		func() error {
			return db.Callback().Query().Before("gorm:query").Register("otel_timing:before_query", before)
		},
		func() error {
			return db.Callback().Update().Before("gorm:update").Register("otel_timing:before_update", before)
		},
		func() error {
			return db.Callback().Delete().Before("gorm:delete").Register("otel_timing:before_delete", before)
		},
		func() error { return db.Callback().Row().Before("gorm:row").Register("otel_timing:before_row", before) },
		func() error { return db.Callback().Raw().Before("gorm:raw").Register("otel_timing:before_raw", before) },
		func() error {
			return db.Callback().Create().After("gorm:create").Register("otel_slow_query:create", p.annotateSpan)
		},
		func() error {
			return db.Callback().Query().After("gorm:query").Register("otel_slow_query:query", p.annotateSpan)
		},
		func() error {
			return db.Callback().Update().After("gorm:update").Register("otel_slow_query:update", p.annotateSpan)
		},
		func() error {
			return db.Callback().Delete().After("gorm:delete").Register("otel_slow_query:delete", p.annotateSpan)
		},
		func() error {
			return db.Callback().Row().After("gorm:row").Register("otel_slow_query:row", p.annotateSpan)
		},
		func() error {
			return db.Callback().Raw().After("gorm:raw").Register("otel_slow_query:raw", p.annotateSpan)
		},
	}
	for _, register := range registrations {
		if err := register(); err != nil {
			return err
		}
	}

	return nil
}

// annotateSpan runs after each database operation: it attaches row and
// table attributes, marks errors, and flags queries slower than the
// configured threshold.
func (p *DBTracingPlugin) annotateSpan(db *gorm.DB) {
	ctx := statementContext(db)
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	if db.Statement.RowsAffected >= 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	}
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}

	// ErrRecordNotFound is an expected outcome, not a failure
	if db.Error != nil && db.Error != gorm.ErrRecordNotFound {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}

	startTime, ok := ctx.Value(queryStartTimeKey).(time.Time)
	if !ok {
		return
	}
	if elapsed := time.Since(startTime); elapsed > p.config.SlowQueryThresh {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
		span.AddEvent("slow_query_warning", trace.WithAttributes(
			attribute.Int64("duration_ms", elapsed.Milliseconds()),
			attribute.Int64("threshold_ms", p.config.SlowQueryThresh.Milliseconds()),
		))
	}
}

// queryStartTimeKey is the context key for storing query start time.
type contextKey string

const queryStartTimeKey contextKey = "otel_query_start_time"
