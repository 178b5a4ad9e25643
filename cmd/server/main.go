// Command server runs the GST billing and three-way matching API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/erp/gstbilling/internal/application/billing"
	"github.com/erp/gstbilling/internal/domain/matching"
	"github.com/erp/gstbilling/internal/domain/shared"
	"github.com/erp/gstbilling/internal/domain/tax"
	"github.com/erp/gstbilling/internal/infrastructure/cache"
	"github.com/erp/gstbilling/internal/infrastructure/config"
	"github.com/erp/gstbilling/internal/infrastructure/logger"
	"github.com/erp/gstbilling/internal/infrastructure/persistence"
	"github.com/erp/gstbilling/internal/infrastructure/telemetry"
	"github.com/erp/gstbilling/internal/interfaces/http/handler"
	"github.com/erp/gstbilling/internal/interfaces/http/middleware"
	"github.com/erp/gstbilling/internal/interfaces/http/router"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	baseLog, err := logger.New(logger.FromAppConfig(cfg))
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = baseLog.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	providers, err := telemetry.Setup(ctx, cfg.Telemetry, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	log := telemetry.BridgeLogger(baseLog, providers, zapcore.InfoLevel)

	log.Info("Starting GST billing service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", telemetry.ServiceVersion),
	)

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           cfg.Profiling.Enabled,
		ServerAddress:     cfg.Profiling.ServerAddress,
		ApplicationName:   cfg.Telemetry.ServiceName,
		BasicAuthUser:     cfg.Profiling.BasicAuthUser,
		BasicAuthPassword: cfg.Profiling.BasicAuthPassword,
		ProfileTypes:      cfg.Profiling.ProfileTypes,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if profiler.IsEnabled() {
		providers.EnableSpanProfiles()
	}

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Database.LogLevel),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
	)
	db, err := persistence.Open(ctx, &cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	dbMetrics, err := telemetry.InstrumentDatabase(ctx, db.DB, providers, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to instrument database", zap.Error(err))
	}
	if dbMetrics != nil {
		defer dbMetrics.Stop()
	}

	// Repositories
	orderRepo := persistence.NewGormPurchaseOrderRepository(db.DB)
	receiptRepo := persistence.NewGormReceiptRepository(db.DB)
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)

	// Domain engines
	calculator := tax.NewCalculator(
		tax.WithRatePolicy(cfg.Tax.RatePolicy),
		tax.WithStrictChecksum(cfg.Tax.StrictChecksum),
	)
	matcher := matching.NewMatcher(matching.WithTolerances(cfg.Matching))

	// Application services
	previewService := billing.NewPreviewService(calculator, matcher)
	procurementService := billing.NewProcurementService(orderRepo, receiptRepo, log)
	reconciliationService := billing.NewReconciliationService(orderRepo, receiptRepo, invoiceRepo, persistence.NewGormTransactor(db.DB), matcher, log)
	invoiceService := billing.NewInvoiceService(invoiceRepo, orderRepo, calculator, reconciliationService, log)

	checks := []handler.HealthCheck{{
		Name:  "database",
		Check: db.PingContext,
	}}

	if cfg.Idempotency.Enabled {
		factory := cache.NewIdempotencyStoreFactory(cfg.Redis,
			cache.WithLogger(log),
			cache.WithInMemoryFallback(cfg.Idempotency.AllowInMemoryFallback),
		)
		store, err := factory.CreateStore(cfg.Idempotency.Backend)
		if err != nil {
			log.Fatal("Failed to create idempotency store", zap.Error(err))
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Warn("Error closing idempotency store", zap.Error(err))
			}
		}()
		invoiceService.SetIdempotencyStore(store, shared.IdempotencyConfig{
			TTL:     cfg.Idempotency.TTL,
			Enabled: true,
		})
		if pinger, ok := store.(interface{ Ping(context.Context) error }); ok {
			checks = append(checks, handler.HealthCheck{Name: "redis", Check: pinger.Ping})
		}
	}

	if providers.Enabled() {
		billingMetrics, err := telemetry.NewBillingMetrics(telemetry.BillingMetricsConfig{
			Meter:                  providers.Meter("gstbilling.billing"),
			Logger:                 log,
			ReconciliationProvider: telemetry.NewGormReconciliationMetricsProvider(db.DB),
		})
		if err != nil {
			log.Fatal("Failed to create billing metrics", zap.Error(err))
		}
		previewService.SetBillingMetrics(billingMetrics)
		invoiceService.SetBillingMetrics(billingMetrics)
		reconciliationService.SetBillingMetrics(billingMetrics)
		billingMetrics.StartPeriodicCollection(ctx, telemetry.NewGormTenantProvider(db.DB), cfg.Telemetry.MetricsInterval)
		defer billingMetrics.Stop()
	}

	// HTTP
	middleware.SetupValidator()

	defaultTenant, err := router.ParseDefaultTenant(cfg.HTTP.DefaultTenantID)
	if err != nil {
		log.Fatal("Invalid HTTP configuration", zap.Error(err))
	}

	engineCfg := router.EngineConfig{
		Logger:           log,
		HTTP:             cfg.HTTP,
		ServiceName:      cfg.Telemetry.ServiceName,
		TracingEnabled:   providers.Enabled(),
		ProfilingEnabled: cfg.Profiling.Enabled,
		DefaultTenantID:  defaultTenant,
	}
	if providers.Enabled() {
		engineCfg.Meter = providers.Meter("gstbilling.http")
	}

	engineCfg.PublicPaths = []string{router.BasePath(router.DefaultAPIVersion) + router.HealthPath}

	engine, err := router.NewEngine(engineCfg)
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	r := router.NewRouter(engine, router.WithAPIVersion(router.DefaultAPIVersion))
	router.RegisterBillingRoutes(r, router.Handlers{
		Tax:            handler.NewTaxHandler(previewService),
		Invoice:        handler.NewInvoiceHandler(invoiceService),
		Procurement:    handler.NewProcurementHandler(procurementService),
		Reconciliation: handler.NewReconciliationHandler(previewService, reconciliationService),
		Health:         handler.NewHealthHandler(cfg.App.Name, telemetry.ServiceVersion, checks...),
	})
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down server...")
	case err := <-serverErr:
		log.Error("Server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Warn("Error stopping profiler", zap.Error(err))
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		baseLog.Warn("Error shutting down telemetry", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
