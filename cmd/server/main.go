package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	enrollmentapp "github.com/schoolerp/backend/internal/application/enrollment"
	settingsapp "github.com/schoolerp/backend/internal/application/settings"
	tuitionapp "github.com/schoolerp/backend/internal/application/tuition"
	"github.com/schoolerp/backend/internal/infrastructure/auth"
	"github.com/schoolerp/backend/internal/infrastructure/cache"
	"github.com/schoolerp/backend/internal/infrastructure/config"
	"github.com/schoolerp/backend/internal/infrastructure/logger"
	"github.com/schoolerp/backend/internal/infrastructure/persistence"
	"github.com/schoolerp/backend/internal/infrastructure/telemetry"
	"github.com/schoolerp/backend/internal/interfaces/http/handler"
	"github.com/schoolerp/backend/internal/interfaces/http/middleware"
	"github.com/schoolerp/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

const (
	logTimeFormat      = "2006-01-02T15:04:05.000Z07:00"
	obsShutdownWait    = 5 * time.Second
	serverShutdownWait = 30 * time.Second

	// Payment writes get a tighter budget than general API traffic.
	paymentWriteLimit  = 30
	paymentWriteWindow = time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: logTimeFormat,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting School Fee Ledger",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	ctx := context.Background()

	obs, err := startObservability(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to start observability exporters", zap.Error(err))
	}
	defer obs.close(log)

	// Tee application logs to the collector when log export is on.
	if obs.logs.IsEnabled() {
		log = bridgeLogs(cfg, obs.logs, log)
	}

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	stopDBMetrics := instrumentDatabase(ctx, db, obs, cfg, log)
	defer stopDBMetrics()

	svc, err := buildServices(db, cfg, log)
	if err != nil {
		log.Fatal("Failed to wire application services", zap.Error(err))
	}
	defer svc.close(log)

	stopLedgerMetrics := startLedgerMetrics(ctx, db, obs, svc, log)
	defer stopLedgerMetrics()

	engine, writeGuard := newEngine(cfg, obs, db, log)
	mountRoutes(engine, cfg, svc, writeGuard, log)

	serve(engine, cfg, log)
}

// observability bundles the exporters that ship traces, metrics, logs and
// profiles to the collector. Each member is a no-op when its config is off.
type observability struct {
	tracer   *telemetry.TracerProvider
	meter    *telemetry.MeterProvider
	logs     *telemetry.LoggerProvider
	profiler *telemetry.Profiler
}

func startObservability(ctx context.Context, cfg *config.Config, log *zap.Logger) (*observability, error) {
	tracer, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("tracer provider: %w", err)
	}

	meter, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("meter provider: %w", err)
	}

	logs, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("logger provider: %w", err)
	}

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:             cfg.Telemetry.ProfilingEnabled,
		ServerAddress:       cfg.Telemetry.PyroscopeAddress,
		ApplicationName:     cfg.Telemetry.ServiceName,
		ProfileCPU:          true,
		ProfileAllocObjects: true,
		ProfileAllocSpace:   true,
		ProfileInuseObjects: true,
		ProfileInuseSpace:   true,
		ProfileGoroutines:   true,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("profiler: %w", err)
	}

	// Link trace spans to profile samples when both are running.
	if profiler.IsEnabled() && tracer.IsEnabled() {
		if err := tracer.EnableSpanProfiles(); err != nil {
			log.Warn("Failed to enable span profiles", zap.Error(err))
		}
	}

	return &observability{tracer: tracer, meter: meter, logs: logs, profiler: profiler}, nil
}

func (o *observability) close(log *zap.Logger) {
	o.profiler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), obsShutdownWait)
	defer cancel()
	for name, shutdown := range map[string]func(context.Context) error{
		"tracer": o.tracer.Shutdown,
		"meter":  o.meter.Shutdown,
		"logs":   o.logs.Shutdown,
	} {
		if err := shutdown(ctx); err != nil {
			log.Error("Observability shutdown failed",
				zap.String("component", name), zap.Error(err))
		}
	}
}

func bridgeLogs(cfg *config.Config, lp *telemetry.LoggerProvider, log *zap.Logger) *zap.Logger {
	bridged, err := telemetry.CreateBridgedLoggerFromConfig(&telemetry.BaseLoggerConfig{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: logTimeFormat,
	}, lp, cfg.Telemetry.ServiceName)
	if err != nil {
		log.Fatal("Failed to bridge logger to collector", zap.Error(err))
	}
	return bridged
}

// instrumentDatabase attaches SQL span tracing plus query-duration and
// connection-pool metrics to the gorm handle. Both are best effort: a
// registration failure degrades observability, never the ledger.
func instrumentDatabase(ctx context.Context, db *persistence.Database, obs *observability, cfg *config.Config, log *zap.Logger) func() {
	if cfg.Telemetry.DBTraceEnabled {
		plugin := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:         true,
			LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
			SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
			DBSystem:        "postgresql",
		}, log)
		if err := plugin.RegisterOtelGorm(db.DB); err != nil {
			log.Warn("Failed to register database tracing", zap.Error(err))
		}
	}

	metrics, err := telemetry.RegisterDBMetrics(db.DB, obs.meter, telemetry.DefaultDBMetricsConfig(), log)
	if err != nil {
		log.Warn("Failed to register database metrics", zap.Error(err))
	}
	if metrics == nil {
		return func() {}
	}
	metrics.StartPoolStatsCollection(ctx)
	return metrics.Stop
}

// services is the application layer wired against the gorm repositories.
type services struct {
	payments   *tuitionapp.PaymentService
	balances   *tuitionapp.BalanceService
	fees       *tuitionapp.FeeStructureService
	reports    *tuitionapp.ReportService
	enrollment *enrollmentapp.Service
	settings   *settingsapp.Service
	receipts   *cache.RedisReceiptCounter
}

func buildServices(db *persistence.Database, cfg *config.Config, log *zap.Logger) (*services, error) {
	feeRepo := persistence.NewGormFeeStructureRepository(db.DB)
	enrollmentRepo := persistence.NewGormEnrollmentRepository(db.DB)
	summaryRepo := persistence.NewGormPaymentSummaryRepository(db.DB)
	txnRepo := persistence.NewGormPaymentTransactionRepository(db.DB)
	settingsRepo := persistence.NewGormSettingsRepository(db.DB)
	ledger := persistence.NewGormPaymentLedger(db.DB)

	// Receipt numbering degrades to time-derived sequences when Redis is
	// unreachable, so a counter outage never blocks payment recording.
	receipts := cache.NewReceiptCounterWithFallback(cache.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, cfg.Receipt.CounterTTL, log)

	idempotencyStore, err := cache.NewIdempotencyStoreFactory(cfg.Redis, cache.WithLogger(log)).CreateStore()
	if err != nil {
		return nil, fmt.Errorf("idempotency store: %w", err)
	}

	balances := tuitionapp.NewBalanceService(enrollmentRepo, feeRepo, summaryRepo, log)
	payments := tuitionapp.NewPaymentService(enrollmentRepo, feeRepo, summaryRepo, ledger, receipts, log)
	payments.SetIdempotencyStore(idempotencyStore)

	return &services{
		payments:   payments,
		balances:   balances,
		fees:       tuitionapp.NewFeeStructureService(feeRepo, log),
		reports:    tuitionapp.NewReportService(balances, enrollmentRepo, txnRepo, log),
		enrollment: enrollmentapp.NewService(enrollmentRepo, log),
		settings:   settingsapp.NewService(settingsRepo, log),
		receipts:   receipts,
	}, nil
}

func (s *services) close(log *zap.Logger) {
	if err := s.receipts.Close(); err != nil {
		log.Error("Error closing receipt counter", zap.Error(err))
	}
}

// startLedgerMetrics wires the business meters (payment volume, arrears
// gauges, receipt fallback counts) into the services that feed them.
func startLedgerMetrics(ctx context.Context, db *persistence.Database, obs *observability, svc *services, log *zap.Logger) func() {
	if !obs.meter.IsEnabled() {
		return func() {}
	}

	metrics, err := telemetry.NewLedgerMetrics(telemetry.LedgerMetricsConfig{
		Meter:           obs.meter.Meter("ledger"),
		Logger:          log,
		ArrearsProvider: telemetry.NewGormArrearsMetricsProvider(db.DB),
	})
	if err != nil {
		log.Warn("Failed to initialize ledger metrics", zap.Error(err))
		return func() {}
	}

	metrics.StartPeriodicCollection(ctx, telemetry.NewGormPeriodProvider(db.DB), 0)
	svc.payments.SetLedgerMetrics(metrics)
	svc.balances.SetLedgerMetrics(metrics)
	svc.receipts.SetMetrics(metrics)
	return metrics.Stop
}

// newEngine assembles the gin engine and its middleware chain. The returned
// handler slice is the extra guard for payment writes, empty when rate
// limiting is off.
func newEngine(cfg *config.Config, obs *observability, db *persistence.Database, log *zap.Logger) (*gin.Engine, []gin.HandlerFunc) {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Request ID first so recovery and access logging can tag their
	// entries, then the protective layers.
	engine.Use(
		middleware.RequestID(),
		logger.Recovery(log),
		logger.GinMiddleware(log),
		middleware.Secure(),
		middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
			AllowMethods:     cfg.HTTP.CORSAllowMethods,
			AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)

	var writeGuard []gin.HandlerFunc
	if cfg.HTTP.RateLimitEnabled {
		engine.Use(middleware.RateLimit(middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)))
		writeGuard = []gin.HandlerFunc{
			middleware.WriteRateLimit(middleware.NewRateLimiter(paymentWriteLimit, paymentWriteWindow)),
		}
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Per-request tracing, metrics and profiling labels last so they see
	// the request ID and survive panics caught above.
	engine.Use(
		middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		}),
		middleware.SpanErrorMarker(),
		middleware.TracingAttributeInjector(),
		middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
			MeterProvider: obs.meter,
			ServiceName:   cfg.Telemetry.ServiceName,
			Enabled:       cfg.Telemetry.Enabled,
		}),
	)
	profiling := middleware.DefaultProfilingConfig()
	profiling.Enabled = cfg.Telemetry.ProfilingEnabled
	engine.Use(middleware.ProfilingWithConfig(profiling))

	// Liveness probe stays outside API versioning and authentication.
	engine.GET("/health", healthHandler(db))

	return engine, writeGuard
}

func mountRoutes(engine *gin.Engine, cfg *config.Config, svc *services, writeGuard []gin.HandlerFunc, log *zap.Logger) {
	paymentHandler := handler.NewPaymentHandler(svc.payments, svc.reports)
	balanceHandler := handler.NewBalanceHandler(svc.balances, svc.reports, svc.settings)
	feeHandler := handler.NewFeeStructureHandler(svc.fees)
	enrollmentHandler := handler.NewEnrollmentHandler(svc.enrollment)
	settingsHandler := handler.NewSettingsHandler(svc.settings)
	reportHandler := handler.NewReportHandler(svc.reports)

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Use(middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{
		JWTService: auth.NewJWTService(cfg.JWT),
		SkipPaths: []string{
			"/api/v1/ping",
			"/api/v1/system/ping",
			"/api/v1/system/info",
		},
		Logger: log,
	}))

	// Tuition domain: payments, balances, fee structures.
	tuition := router.NewDomainGroup("tuition", "/tuition")
	tuition.GET("/ping", readyHandler("tuition"))
	tuition.POST("/payments", append(writeGuard, paymentHandler.Record)...)
	tuition.GET("/payments", paymentHandler.List)
	tuition.GET("/payments/:receipt_no", paymentHandler.GetByReceipt)
	tuition.GET("/pupils/:pupil_id/balance", balanceHandler.Outstanding)
	tuition.GET("/pupils/:pupil_id/balances", balanceHandler.SessionBalances)
	tuition.GET("/pupils/:pupil_id/summaries", balanceHandler.Summaries)
	tuition.GET("/pupils/:pupil_id/statement", balanceHandler.Statement)
	tuition.GET("/summaries", balanceHandler.ListSummaries)
	tuition.POST("/fee-structures", feeHandler.Create)
	tuition.GET("/fee-structures", feeHandler.List)
	tuition.GET("/fee-structures/class/:class_id", feeHandler.GetForClass)
	tuition.GET("/fee-structures/:id", feeHandler.GetByID)
	tuition.PUT("/fee-structures/:id", feeHandler.Update)
	tuition.DELETE("/fee-structures/:id", feeHandler.Delete)

	// Enrollment domain: pupil term records.
	enrollment := router.NewDomainGroup("enrollment", "/enrollment")
	enrollment.GET("/ping", readyHandler("enrollment"))
	enrollment.POST("/records", enrollmentHandler.Enroll)
	enrollment.GET("/records", enrollmentHandler.List)
	enrollment.GET("/records/:id", enrollmentHandler.GetByID)
	enrollment.GET("/pupils/:pupil_id", enrollmentHandler.GetForPupil)
	enrollment.PUT("/records/:id/adjustment", enrollmentHandler.SetAdjustment)
	enrollment.PUT("/records/:id/class", enrollmentHandler.ReassignClass)
	enrollment.POST("/records/:id/exit", enrollmentHandler.MarkExited)

	// Settings domain: school identity and the current period.
	settings := router.NewDomainGroup("settings", "/settings")
	settings.GET("/ping", readyHandler("settings"))
	settings.GET("/current", settingsHandler.Get)
	settings.POST("", settingsHandler.Initialize)
	settings.PUT("/period", settingsHandler.UpdatePeriod)
	settings.PUT("/name", settingsHandler.Rename)

	// Reports domain: collections and arrears.
	reports := router.NewDomainGroup("reports", "/reports")
	reports.GET("/ping", readyHandler("reports"))
	reports.GET("/collections/daily", reportHandler.DailyCollections)
	reports.GET("/collections/by-class", reportHandler.ClassStatus)
	reports.GET("/arrears", reportHandler.OwingPupils)

	systemHandler := handler.NewSystemHandler()
	system := router.NewDomainGroup("system", "/system")
	system.GET("/info", systemHandler.GetSystemInfo)
	system.GET("/ping", systemHandler.Ping)

	r.Register(tuition).
		Register(enrollment).
		Register(settings).
		Register(reports).
		Register(system)
	r.Setup()

	// Unauthenticated ping at the API root for basic reachability checks.
	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
}

func serve(engine *gin.Engine, cfg *config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), serverShutdownWait)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}
	log.Info("Server exited gracefully")
}

func readyHandler(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": name + " service ready"})
	}
}

// healthHandler reports liveness plus database reachability.
func healthHandler(db *persistence.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		state := gin.H{
			"status":   "healthy",
			"database": "ok",
			"time":     time.Now().Format(time.RFC3339),
		}
		if err := db.Ping(); err != nil {
			logger.GetGinLogger(c).Warn("Health check failed", zap.Error(err))
			state["status"] = "unhealthy"
			state["database"] = "error"
			c.JSON(http.StatusServiceUnavailable, state)
			return
		}
		c.JSON(http.StatusOK, state)
	}
}
