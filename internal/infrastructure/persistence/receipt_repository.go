package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/gstbilling/internal/domain/procurement"
	"github.com/erp/gstbilling/internal/domain/shared"
	"github.com/erp/gstbilling/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormReceiptRepository implements procurement.ReceiptRepository using GORM
type GormReceiptRepository struct {
	db *gorm.DB
}

// NewGormReceiptRepository creates a new GormReceiptRepository
func NewGormReceiptRepository(db *gorm.DB) *GormReceiptRepository {
	return &GormReceiptRepository{db: db}
}

// FindByIDForTenant finds a receipt confirmation by ID within a tenant
func (r *GormReceiptRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*procurement.ReceiptConfirmation, error) {
	var model models.ReceiptConfirmationModel
	if err := conn(ctx, r.db).
		Preload("Items", orderByLineNo).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindLatestByPurchaseOrder returns the most recently recorded receipt for
// a purchase order, or shared.ErrNotFound when none exists
func (r *GormReceiptRepository) FindLatestByPurchaseOrder(ctx context.Context, tenantID, purchaseOrderID uuid.UUID) (*procurement.ReceiptConfirmation, error) {
	var model models.ReceiptConfirmationModel
	if err := conn(ctx, r.db).
		Preload("Items", orderByLineNo).
		Where("tenant_id = ? AND purchase_order_id = ?", tenantID, purchaseOrderID).
		Order("created_at DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// Save creates or updates a receipt confirmation and its items
func (r *GormReceiptRepository) Save(ctx context.Context, receipt *procurement.ReceiptConfirmation) error {
	model, err := models.ReceiptConfirmationModelFromDomain(receipt)
	if err != nil {
		return err
	}
	return translateWriteError(conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Items").Save(model).Error; err != nil {
			return err
		}
		return r.saveItems(tx, receipt)
	}), "receipt", receipt.ReceiptNumber)
}

// SaveWithLock saves with optimistic locking (version check). Concurrent
// reconciliations of the same receipt fail with CONCURRENCY_CONFLICT.
func (r *GormReceiptRepository) SaveWithLock(ctx context.Context, receipt *procurement.ReceiptConfirmation) error {
	discrepancies, err := models.EncodeDiscrepancies(receipt.Discrepancies)
	if err != nil {
		return err
	}
	return conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		if err := checkVersion(tx, &models.ReceiptConfirmationModel{}, receipt.TenantID, receipt.ID, receipt.Version, "receipt"); err != nil {
			return err
		}

		next := receipt.Version + 1
		now := time.Now()
		result := tx.Model(&models.ReceiptConfirmationModel{}).
			Where("id = ? AND version = ?", receipt.ID, receipt.Version).
			Updates(map[string]interface{}{
				"match_status":  receipt.MatchStatus,
				"matched_items": receipt.MatchedItems,
				"total_items":   receipt.TotalItems,
				"discrepancies": discrepancies,
				"match_summary": receipt.MatchSummary,
				"invoice_id":    receipt.InvoiceID,
				"reconciled_at": receipt.ReconciledAt,
				"version":       next,
				"updated_at":    now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return conflictError("receipt", receipt.ReceiptNumber)
		}

		if err := r.saveItems(tx, receipt); err != nil {
			return err
		}
		receipt.Version = next
		receipt.UpdatedAt = now
		return nil
	})
}

func (r *GormReceiptRepository) saveItems(tx *gorm.DB, receipt *procurement.ReceiptConfirmation) error {
	ids := make([]uuid.UUID, len(receipt.Items))
	for i, item := range receipt.Items {
		ids[i] = item.ID
	}
	if err := deleteMissingItems(tx, &models.ReceiptItemModel{}, "receipt_id", receipt.ID, ids); err != nil {
		return err
	}
	for i := range receipt.Items {
		receipt.Items[i].ReceiptID = receipt.ID
		if err := tx.Save(models.ReceiptItemModelFromDomain(&receipt.Items[i], i+1)).Error; err != nil {
			return err
		}
	}
	return nil
}
