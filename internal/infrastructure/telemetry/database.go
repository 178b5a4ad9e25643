package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/erp/gstbilling/internal/infrastructure/config"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	dbPluginName             = "gstbilling:db_instrumentation"
	defaultPoolStatsInterval = 15 * time.Second
)

type queryStartKey struct{}

// DBMetrics records query counts, latencies, slow queries and connection
// pool state for the billing database.
type DBMetrics struct {
	queryTotal         *Counter
	queryDuration      *Histogram
	slowQueryTotal     *Counter
	poolConnections    *Gauge
	poolConnectionsMax *Gauge

	slowThreshold time.Duration
	logger        *zap.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewDBMetrics creates the database instruments on meter
func NewDBMetrics(meter metric.Meter, slowThreshold time.Duration, logger *zap.Logger) (*DBMetrics, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &DBMetrics{slowThreshold: slowThreshold, logger: logger, stopCh: make(chan struct{})}

	var err error
	if m.queryTotal, err = NewCounter(meter, "db_query_total",
		"Total number of database queries by operation", "{query}"); err != nil {
		return nil, err
	}
	if m.queryDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "db_query_duration_seconds",
		Description: "Database query latency in seconds",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.slowQueryTotal, err = NewCounter(meter, "db_slow_query_total",
		"Queries slower than the configured threshold", "{query}"); err != nil {
		return nil, err
	}
	if m.poolConnections, err = NewGauge(meter, "db_pool_connections",
		"Connections in the pool by state", "{connection}"); err != nil {
		return nil, err
	}
	if m.poolConnectionsMax, err = NewGauge(meter, "db_pool_connections_max",
		"Maximum open connections allowed", "{connection}"); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordQuery records one executed statement
func (m *DBMetrics) RecordQuery(ctx context.Context, operation, table string, elapsed time.Duration) {
	op := AttrDBOperation.String(operation)
	m.queryTotal.Inc(ctx, op)
	m.queryDuration.RecordDuration(ctx, elapsed, op)

	if m.slowThreshold > 0 && elapsed > m.slowThreshold {
		if table == "" {
			table = "unknown"
		}
		m.slowQueryTotal.Inc(ctx, AttrDBTable.String(table))
	}
}

// StartPoolStatsCollection samples sqlDB.Stats every interval until Stop
// is called or ctx is done.
func (m *DBMetrics) StartPoolStatsCollection(ctx context.Context, sqlDB *sql.DB, interval time.Duration) {
	if interval <= 0 {
		interval = defaultPoolStatsInterval
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		m.recordPoolStats(ctx, sqlDB.Stats())
		for {
			select {
			case <-ticker.C:
				m.recordPoolStats(ctx, sqlDB.Stats())
			case <-m.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (m *DBMetrics) recordPoolStats(ctx context.Context, stats sql.DBStats) {
	m.poolConnectionsMax.Record(ctx, int64(stats.MaxOpenConnections))
	m.poolConnections.Record(ctx, int64(stats.Idle), AttrDBState.String("idle"))
	m.poolConnections.Record(ctx, int64(stats.InUse), AttrDBState.String("in_use"))
	m.poolConnections.Record(ctx, int64(stats.OpenConnections), AttrDBState.String("open"))
}

// Stop ends pool stats collection. Safe to call more than once.
func (m *DBMetrics) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.wg.Wait()
	})
}

// dbInstrumentation is a gorm plugin timing every statement. It feeds
// DBMetrics when set and annotates the otelgorm span of the statement.
type dbInstrumentation struct {
	metrics       *DBMetrics
	slowThreshold time.Duration
}

func (p *dbInstrumentation) Name() string { return dbPluginName }

type registerFunc func(name string, fn func(*gorm.DB)) error

func (p *dbInstrumentation) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	hooks := []struct {
		name      string
		operation string // empty for row and raw, detected from the statement
		before    registerFunc
		after     registerFunc
	}{
		{"create", "INSERT", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"query", "SELECT", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"update", "UPDATE", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"delete", "DELETE", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"row", "", cb.Row().Before("gorm:row").Register, cb.Row().After("gorm:row").Register},
		{"raw", "", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
	}

	for _, h := range hooks {
		operation := h.operation
		if err := h.before(dbPluginName+":before_"+h.name, markQueryStart); err != nil {
			return err
		}
		if err := h.after(dbPluginName+":after_"+h.name, func(db *gorm.DB) {
			p.afterStatement(db, operation)
		}); err != nil {
			return err
		}
	}
	return nil
}

func markQueryStart(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	db.Statement.Context = context.WithValue(ctx, queryStartKey{}, time.Now())
}

func (p *dbInstrumentation) afterStatement(db *gorm.DB, operation string) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	start, ok := ctx.Value(queryStartKey{}).(time.Time)
	if !ok {
		return
	}
	elapsed := time.Since(start)
	if operation == "" {
		operation = DetectOperation(db.Statement.SQL.String())
	}

	if p.metrics != nil {
		p.metrics.RecordQuery(ctx, operation, db.Statement.Table, elapsed)
	}

	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}
	if p.slowThreshold > 0 && elapsed > p.slowThreshold {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
		span.AddEvent("slow_query_warning", trace.WithAttributes(
			attribute.Int64("threshold_ms", p.slowThreshold.Milliseconds()),
		))
	}
}

// DetectOperation classifies a raw statement by its leading keyword
func DetectOperation(statement string) string {
	s := strings.ToUpper(strings.TrimSpace(statement))
	for _, op := range []string{"SELECT", "INSERT", "UPDATE", "DELETE"} {
		if strings.HasPrefix(s, op) {
			return op
		}
	}
	return "OTHER"
}

// InstrumentDatabase registers otelgorm tracing when enabled and the
// statement timing plugin. The returned DBMetrics is nil when telemetry is
// disabled; callers own its Stop.
func InstrumentDatabase(ctx context.Context, db *gorm.DB, p *Providers, cfg config.TelemetryConfig, logger *zap.Logger) (*DBMetrics, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if cfg.DBTraceEnabled {
		opts := []otelgorm.Option{otelgorm.WithDBName("postgresql")}
		if !cfg.DBLogFullSQL {
			opts = append(opts, otelgorm.WithoutQueryVariables())
		}
		if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
			return nil, err
		}
	}

	var metrics *DBMetrics
	if p != nil && p.Enabled() {
		var err error
		metrics, err = NewDBMetrics(p.Meter("db.client"), cfg.DBSlowQueryThresh, logger)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		metrics.StartPoolStatsCollection(ctx, sqlDB, defaultPoolStatsInterval)
	}

	if err := db.Use(&dbInstrumentation{metrics: metrics, slowThreshold: cfg.DBSlowQueryThresh}); err != nil {
		if metrics != nil {
			metrics.Stop()
		}
		return nil, err
	}

	logger.Info("Database instrumentation registered",
		zap.Bool("tracing", cfg.DBTraceEnabled),
		zap.Bool("metrics", metrics != nil),
		zap.Duration("slow_query_threshold", cfg.DBSlowQueryThresh),
	)
	return metrics, nil
}
