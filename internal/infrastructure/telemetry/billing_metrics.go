package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// BillingMetrics tracks invoice creation, tax computation and three-way
// reconciliation outcomes.
type BillingMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	invoiceCreatedTotal    *Counter
	invoiceTaxTotal        *Counter
	taxComputationTotal    *Counter
	reconciliationTotal    *Counter
	reconciliationFailures *Counter
	discrepancyTotal       *Counter
	reconciliationDuration *Histogram

	// Gauge metrics (point-in-time values)
	pendingReceiptCount    *Gauge
	mismatchedReceiptCount *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	reconciliationProvider ReconciliationMetricsProvider
}

// ReconciliationMetricsProvider provides receipt state for periodic metrics
// collection without depending on the procurement domain.
type ReconciliationMetricsProvider interface {
	// GetPendingReceiptCount returns receipts not yet matched against an invoice
	GetPendingReceiptCount(ctx context.Context, tenantID uuid.UUID) (int64, error)

	// GetMismatchedReceiptCount returns receipts whose latest match was MISMATCHED
	GetMismatchedReceiptCount(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

// BillingMetricsConfig holds configuration for billing metrics.
type BillingMetricsConfig struct {
	Meter                  metric.Meter
	Logger                 *zap.Logger
	ReconciliationProvider ReconciliationMetricsProvider
}

// NewBillingMetrics creates a new BillingMetrics instance.
func NewBillingMetrics(cfg BillingMetricsConfig) (*BillingMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bm := &BillingMetrics{
		meter:                  cfg.Meter,
		logger:                 logger,
		stopChan:               make(chan struct{}),
		reconciliationProvider: cfg.ReconciliationProvider,
	}

	var err error

	bm.invoiceCreatedTotal, err = NewCounter(cfg.Meter,
		"gst_invoice_created_total",
		"Total number of invoices created",
		"{invoices}",
	)
	if err != nil {
		return nil, err
	}

	bm.invoiceTaxTotal, err = NewCounter(cfg.Meter,
		"gst_invoice_tax_total",
		"Total tax billed in paise",
		"{paise}",
	)
	if err != nil {
		return nil, err
	}

	bm.taxComputationTotal, err = NewCounter(cfg.Meter,
		"gst_tax_computation_total",
		"Total number of tax breakdown computations",
		"{computations}",
	)
	if err != nil {
		return nil, err
	}

	bm.reconciliationTotal, err = NewCounter(cfg.Meter,
		"gst_reconciliation_total",
		"Total number of three-way match runs by outcome",
		"{runs}",
	)
	if err != nil {
		return nil, err
	}

	bm.reconciliationFailures, err = NewCounter(cfg.Meter,
		"gst_reconciliation_failures_total",
		"Total number of reconciliation runs that could not complete",
		"{runs}",
	)
	if err != nil {
		return nil, err
	}

	bm.discrepancyTotal, err = NewCounter(cfg.Meter,
		"gst_discrepancy_total",
		"Total number of discrepancies reported by type and severity",
		"{discrepancies}",
	)
	if err != nil {
		return nil, err
	}

	bm.reconciliationDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "gst_reconciliation_duration_seconds",
		Description: "Duration of reconciliation runs including persistence",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	bm.pendingReceiptCount, err = NewGauge(cfg.Meter,
		"gst_receipt_pending_count",
		"Number of receipts awaiting reconciliation",
		"{receipts}",
	)
	if err != nil {
		return nil, err
	}

	bm.mismatchedReceiptCount, err = NewGauge(cfg.Meter,
		"gst_receipt_mismatched_count",
		"Number of receipts whose latest match was mismatched",
		"{receipts}",
	)
	if err != nil {
		return nil, err
	}

	return bm, nil
}

// =============================================================================
// Invoice and Tax Metrics
// =============================================================================

// ComputationResult labels the outcome of a tax computation.
type ComputationResult string

const (
	ComputationResultSuccess ComputationResult = "success"
	ComputationResultFailed  ComputationResult = "failed"
)

// RecordTaxComputation records one tax breakdown computation.
// transactionKind is empty when classification itself failed.
func (bm *BillingMetrics) RecordTaxComputation(ctx context.Context, transactionKind string, result ComputationResult) {
	bm.taxComputationTotal.Inc(ctx,
		AttrTransactionKind.String(transactionKind),
		AttrResult.String(string(result)),
	)
}

// RecordInvoiceCreated records an invoice creation with its total tax.
func (bm *BillingMetrics) RecordInvoiceCreated(ctx context.Context, tenantID uuid.UUID, transactionKind, split string, totalTax decimal.Decimal) {
	bm.invoiceCreatedTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrTransactionKind.String(transactionKind),
		AttrTaxSplit.String(split),
	)

	paise := totalTax.Mul(decimal.NewFromInt(100)).IntPart()
	bm.invoiceTaxTotal.Add(ctx, paise,
		AttrTenantID.String(tenantID.String()),
		AttrTaxSplit.String(split),
	)
}

// =============================================================================
// Reconciliation Metrics
// =============================================================================

// DiscrepancyCount is one (type, severity) bucket of a match result.
type DiscrepancyCount struct {
	Type     string
	Severity string
	Count    int64
}

// RecordReconciliation records a completed three-way match.
func (bm *BillingMetrics) RecordReconciliation(ctx context.Context, tenantID uuid.UUID, status string, discrepancies []DiscrepancyCount, duration time.Duration) {
	bm.reconciliationTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrMatchStatus.String(status),
	)
	for _, d := range discrepancies {
		if d.Count <= 0 {
			continue
		}
		bm.discrepancyTotal.Add(ctx, d.Count,
			AttrTenantID.String(tenantID.String()),
			AttrDiscrepancyType.String(d.Type),
			AttrSeverity.String(d.Severity),
		)
	}
	bm.reconciliationDuration.RecordDuration(ctx, duration,
		AttrMatchStatus.String(status),
	)
}

// RecordReconciliationFailure records a reconciliation run that returned an error.
func (bm *BillingMetrics) RecordReconciliationFailure(ctx context.Context, tenantID uuid.UUID, reason string) {
	bm.reconciliationFailures.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrResult.String(reason),
	)
}

// RecordPendingReceiptCount records the number of receipts awaiting reconciliation.
func (bm *BillingMetrics) RecordPendingReceiptCount(ctx context.Context, tenantID uuid.UUID, count int64) {
	bm.pendingReceiptCount.Record(ctx, count, AttrTenantID.String(tenantID.String()))
}

// RecordMismatchedReceiptCount records the number of mismatched receipts.
func (bm *BillingMetrics) RecordMismatchedReceiptCount(ctx context.Context, tenantID uuid.UUID, count int64) {
	bm.mismatchedReceiptCount.Record(ctx, count, AttrTenantID.String(tenantID.String()))
}

// =============================================================================
// Periodic Collection
// =============================================================================

// TenantProvider provides tenant IDs for periodic metrics collection.
type TenantProvider interface {
	GetActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error)
}

// StartPeriodicCollection starts periodic collection of gauge metrics.
// This is non-blocking - use Stop() to stop collection.
func (bm *BillingMetrics) StartPeriodicCollection(ctx context.Context, tenantProvider TenantProvider, interval time.Duration) {
	bm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}

		go bm.runPeriodicCollection(ctx, tenantProvider, interval)
	})
}

func (bm *BillingMetrics) runPeriodicCollection(ctx context.Context, tenantProvider TenantProvider, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	bm.collectReceiptMetrics(ctx, tenantProvider)

	for {
		select {
		case <-bm.stopChan:
			bm.logger.Info("Stopping periodic billing metrics collection")
			return
		case <-ctx.Done():
			bm.logger.Info("Context cancelled, stopping periodic billing metrics collection")
			return
		case <-ticker.C:
			bm.collectReceiptMetrics(ctx, tenantProvider)
		}
	}
}

func (bm *BillingMetrics) collectReceiptMetrics(ctx context.Context, tenantProvider TenantProvider) {
	if bm.reconciliationProvider == nil {
		bm.logger.Debug("No reconciliation provider configured, skipping receipt metrics collection")
		return
	}

	tenantIDs, err := tenantProvider.GetActiveTenantIDs(ctx)
	if err != nil {
		bm.logger.Error("Failed to get tenant IDs for metrics collection", zap.Error(err))
		return
	}

	for _, tenantID := range tenantIDs {
		bm.collectTenantReceiptMetrics(ctx, tenantID)
	}
}

func (bm *BillingMetrics) collectTenantReceiptMetrics(ctx context.Context, tenantID uuid.UUID) {
	pending, err := bm.reconciliationProvider.GetPendingReceiptCount(ctx, tenantID)
	if err != nil {
		bm.logger.Warn("Failed to get pending receipt count for tenant",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err),
		)
	} else {
		bm.RecordPendingReceiptCount(ctx, tenantID, pending)
	}

	mismatched, err := bm.reconciliationProvider.GetMismatchedReceiptCount(ctx, tenantID)
	if err != nil {
		bm.logger.Warn("Failed to get mismatched receipt count for tenant",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err),
		)
	} else {
		bm.RecordMismatchedReceiptCount(ctx, tenantID, mismatched)
	}
}

// Stop stops the periodic collection.
func (bm *BillingMetrics) Stop() {
	bm.stopOnce.Do(func() {
		close(bm.stopChan)
	})
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewBillingMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
