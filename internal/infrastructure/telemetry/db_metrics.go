package telemetry

import (
	"cmp"
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultSlowQueryThreshold = 200 * time.Millisecond
	defaultPoolStatsInterval  = 15 * time.Second
)

// DBMetricsConfig controls query and connection pool metrics collection.
type DBMetricsConfig struct {
	Enabled bool
	// SlowQueryThreshold marks queries slower than this in db_slow_query_total.
	// Ledger reads are point lookups and per-class scans, so the default 200ms
	// catches anything genuinely misbehaving.
	SlowQueryThreshold time.Duration
	// PoolStatsInterval is how often connection pool gauges are sampled.
	PoolStatsInterval time.Duration
}

// DefaultDBMetricsConfig returns the settings used by the server when the
// config file does not override them.
func DefaultDBMetricsConfig() DBMetricsConfig {
	return DBMetricsConfig{
		Enabled:            true,
		SlowQueryThreshold: defaultSlowQueryThreshold,
		PoolStatsInterval:  defaultPoolStatsInterval,
	}
}

// DBMetrics owns the database instruments and the pool stats sampler.
type DBMetrics struct {
	poolConnections    *Gauge
	poolConnectionsMax *Gauge

	queryTotal     *Counter
	queryDuration  *Histogram
	slowQueryTotal *Counter

	config   DBMetricsConfig
	logger   *zap.Logger
	sqlDB    *sql.DB
	done     chan struct{}
	wg       sync.WaitGroup
	mu       sync.RWMutex
	stopOnce sync.Once
}

// NewDBMetrics builds the instrument set on the given meter. Zero-valued
// config fields fall back to the defaults.
func NewDBMetrics(meter metric.Meter, cfg DBMetricsConfig, logger *zap.Logger) (*DBMetrics, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.SlowQueryThreshold = cmp.Or(cfg.SlowQueryThreshold, defaultSlowQueryThreshold)
	cfg.PoolStatsInterval = cmp.Or(cfg.PoolStatsInterval, defaultPoolStatsInterval)

	m := &DBMetrics{
		config: cfg,
		logger: logger,
		done:   make(chan struct{}),
	}

	var err error
	gauge := func(name, desc string) *Gauge {
		if err != nil {
			return nil
		}
		var g *Gauge
		g, err = NewGauge(meter, name, desc, "{connection}")
		return g
	}
	counter := func(name, desc string) *Counter {
		if err != nil {
			return nil
		}
		var c *Counter
		c, err = NewCounter(meter, name, desc, "{query}")
		return c
	}

	m.poolConnections = gauge("db_pool_connections", "Number of connections in the pool by state")
	m.poolConnectionsMax = gauge("db_pool_connections_max", "Maximum number of connections in the pool")
	m.queryTotal = counter("db_query_total", "Total number of database queries by operation type")
	m.slowQueryTotal = counter("db_slow_query_total", "Total number of queries exceeding the slow query threshold")
	if err == nil {
		m.queryDuration, err = NewHistogram(meter, HistogramOpts{
			Name:        "db_query_duration_seconds",
			Description: "Database query latency distribution in seconds",
			Unit:        "s",
			Boundaries:  DBDurationBuckets,
		})
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// SetSQLDB wires the underlying sql.DB for pool sampling. Must be called
// before StartPoolStatsCollection.
func (m *DBMetrics) SetSQLDB(sqlDB *sql.DB) {
	m.mu.Lock()
	m.sqlDB = sqlDB
	m.mu.Unlock()
}

func (m *DBMetrics) pool() *sql.DB {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sqlDB
}

// StartPoolStatsCollection samples connection pool gauges on a ticker until
// Stop is called or the context ends.
func (m *DBMetrics) StartPoolStatsCollection(ctx context.Context) {
	if m.pool() == nil {
		m.logger.Warn("Cannot start pool stats collection: sqlDB not set")
		return
	}

	m.wg.Add(1)
	go m.samplePoolStats(ctx)

	m.logger.Info("Started database connection pool stats collection",
		zap.Duration("interval", m.config.PoolStatsInterval),
	)
}

func (m *DBMetrics) samplePoolStats(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.PoolStatsInterval)
	defer ticker.Stop()

	m.collectPoolStats(ctx)
	for {
		select {
		case <-ticker.C:
			m.collectPoolStats(ctx)
		case <-m.done:
			m.logger.Debug("Stopping pool stats collection")
			return
		case <-ctx.Done():
			m.logger.Debug("Pool stats collection context cancelled")
			return
		}
	}
}

func (m *DBMetrics) collectPoolStats(ctx context.Context) {
	sqlDB := m.pool()
	if sqlDB == nil {
		return
	}

	stats := sqlDB.Stats()
	m.poolConnectionsMax.Record(ctx, int64(stats.MaxOpenConnections))

	// OpenConnections = Idle + InUse. WaitCount is cumulative, not a state,
	// so it is not sampled here.
	for _, s := range []struct {
		state string
		count int
	}{
		{"idle", stats.Idle},
		{"in_use", stats.InUse},
		{"open", stats.OpenConnections},
	} {
		m.poolConnections.Record(ctx, int64(s.count), AttrDBState.String(s.state))
	}
}

// Stop terminates the sampler goroutine. Safe to call more than once.
func (m *DBMetrics) Stop() {
	m.stopOnce.Do(func() {
		close(m.done)
		m.wg.Wait()
		m.logger.Debug("Database metrics stopped")
	})
}

// RecordQuery records count, latency and (if over threshold) slow-query
// metrics for one completed statement.
func (m *DBMetrics) RecordQuery(ctx context.Context, operation string, table string, duration time.Duration, err error) {
	op := AttrDBOperation.String(cmp.Or(strings.ToUpper(operation), "UNKNOWN"))
	m.queryTotal.Inc(ctx, op)
	m.queryDuration.RecordDuration(ctx, duration, op)

	if duration > m.config.SlowQueryThreshold {
		m.slowQueryTotal.Inc(ctx, AttrDBTable.String(cmp.Or(table, "unknown")))
	}
}

// DBMetricsPlugin hooks query metrics into GORM's callback chain so every
// summary update, transaction insert and balance read is measured.
type DBMetricsPlugin struct {
	metrics *DBMetrics
	logger  *zap.Logger
}

func NewDBMetricsPlugin(metrics *DBMetrics, logger *zap.Logger) *DBMetricsPlugin {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DBMetricsPlugin{metrics: metrics, logger: logger}
}

// Name implements gorm.Plugin.
func (p *DBMetricsPlugin) Name() string {
	return "db_metrics"
}

// Initialize registers before/after callbacks for every operation kind.
func (p *DBMetricsPlugin) Initialize(db *gorm.DB) error {
	stamp := func(db *gorm.DB) {
		db.Statement.Context = context.WithValue(
			statementContext(db), dbMetricsStartTimeKey, time.Now())
	}
	fixed := func(op string) func(*gorm.DB) {
		return func(db *gorm.DB) { p.record(db, op) }
	}
	// Row and Raw statements carry no operation kind, so it is sniffed
	// from the SQL text.
	sniffed := func(db *gorm.DB) {
		p.record(db, detectOperationType(db.Statement.SQL.String()))
	}

	cb := db.Callback()
	hooks := []struct {
		name   string
		attach func(string, func(*gorm.DB)) error
		fn     func(*gorm.DB)
	}{
		{"db_metrics:before_create", cb.Create().Before("gorm:create").Register, stamp},
		{"db_metrics:before_query", cb.Query().Before("gorm:query").Register, stamp},
		{"db_metrics:before_update", cb.Update().Before("gorm:update").Register, stamp},
		{"db_metrics:before_delete", cb.Delete().Before("gorm:delete").Register, stamp},
		{"db_metrics:before_row", cb.Row().Before("gorm:row").Register, stamp},
		{"db_metrics:before_raw", cb.Raw().Before("gorm:raw").Register, stamp},
		{"db_metrics:after_create", cb.Create().After("gorm:create").Register, fixed("INSERT")},
		{"db_metrics:after_query", cb.Query().After("gorm:query").Register, fixed("SELECT")},
		{"db_metrics:after_update", cb.Update().After("gorm:update").Register, fixed("UPDATE")},
		{"db_metrics:after_delete", cb.Delete().After("gorm:delete").Register, fixed("DELETE")},
		{"db_metrics:after_row", cb.Row().After("gorm:row").Register, sniffed},
		{"db_metrics:after_raw", cb.Raw().After("gorm:raw").Register, sniffed},
	}
	for _, h := range hooks {
		if err := h.attach(h.name, h.fn); err != nil {
			return err
		}
	}

	p.logger.Info("Database metrics plugin initialized")
	return nil
}

func (p *DBMetricsPlugin) record(db *gorm.DB, operation string) {
	ctx := statementContext(db)

	var duration time.Duration
	if startTime, ok := ctx.Value(dbMetricsStartTimeKey).(time.Time); ok {
		duration = time.Since(startTime)
	}

	p.metrics.RecordQuery(ctx, operation, db.Statement.Table, duration, db.Error)
}

func statementContext(db *gorm.DB) context.Context {
	if ctx := db.Statement.Context; ctx != nil {
		return ctx
	}
	return context.Background()
}

var sqlVerbs = []string{"SELECT", "INSERT", "UPDATE", "DELETE"}

func detectOperationType(sql string) string {
	sql = strings.ToUpper(strings.TrimSpace(sql))
	for _, verb := range sqlVerbs {
		if strings.HasPrefix(sql, verb) {
			return verb
		}
	}
	return "OTHER"
}

type dbMetricsContextKey string

const dbMetricsStartTimeKey dbMetricsContextKey = "db_metrics_start_time"

// RegisterDBMetrics creates the instruments, wires the pool sampler and
// installs the GORM plugin in one call. Returns nil (no error) when metrics
// are disabled or no meter provider is available; the returned DBMetrics
// needs Stop() on shutdown.
func RegisterDBMetrics(db *gorm.DB, meterProvider *MeterProvider, cfg DBMetricsConfig, logger *zap.Logger) (*DBMetrics, error) {
	switch {
	case !cfg.Enabled:
		logger.Debug("Database metrics disabled, skipping registration")
		return nil, nil
	case meterProvider == nil || !meterProvider.IsEnabled():
		logger.Debug("MeterProvider not available, skipping database metrics")
		return nil, nil
	}

	metrics, err := NewDBMetrics(meterProvider.Meter("db.client"), cfg, logger)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	metrics.SetSQLDB(sqlDB)

	if err := db.Use(NewDBMetricsPlugin(metrics, logger)); err != nil {
		return nil, err
	}

	logger.Info("Database metrics registered",
		zap.Duration("slow_query_threshold", cfg.SlowQueryThreshold),
		zap.Duration("pool_stats_interval", cfg.PoolStatsInterval),
	)

	return metrics, nil
}
