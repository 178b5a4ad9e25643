package telemetry

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormReconciliationMetricsProvider implements ReconciliationMetricsProvider using GORM.
// It queries the receipt_confirmations table directly for aggregated counts.
type GormReconciliationMetricsProvider struct {
	db *gorm.DB
}

// NewGormReconciliationMetricsProvider creates a new GormReconciliationMetricsProvider.
func NewGormReconciliationMetricsProvider(db *gorm.DB) *GormReconciliationMetricsProvider {
	return &GormReconciliationMetricsProvider{db: db}
}

// GetPendingReceiptCount returns receipts with no stored match result for a tenant.
func (p *GormReconciliationMetricsProvider) GetPendingReceiptCount(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return p.countByStatus(ctx, tenantID, "PENDING")
}

// GetMismatchedReceiptCount returns receipts whose latest match was MISMATCHED for a tenant.
func (p *GormReconciliationMetricsProvider) GetMismatchedReceiptCount(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return p.countByStatus(ctx, tenantID, "MISMATCHED")
}

func (p *GormReconciliationMetricsProvider) countByStatus(ctx context.Context, tenantID uuid.UUID, status string) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Table("receipt_confirmations").
		Where("tenant_id = ? AND match_status = ?", tenantID, status).
		Count(&count).Error

	return count, err
}

// GormTenantProvider implements TenantProvider using GORM.
// Tenants are those owning at least one purchase order.
type GormTenantProvider struct {
	db *gorm.DB
}

// NewGormTenantProvider creates a new GormTenantProvider.
func NewGormTenantProvider(db *gorm.DB) *GormTenantProvider {
	return &GormTenantProvider{db: db}
}

// GetActiveTenantIDs returns all tenant IDs with procurement activity.
func (p *GormTenantProvider) GetActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := p.db.WithContext(ctx).
		Table("purchase_orders").
		Distinct("tenant_id").
		Pluck("tenant_id", &ids).Error

	return ids, err
}
