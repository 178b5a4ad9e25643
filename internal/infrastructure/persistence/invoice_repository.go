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

// GormInvoiceRepository implements procurement.InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// FindByIDForTenant finds an invoice by ID within a tenant
func (r *GormInvoiceRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*procurement.Invoice, error) {
	var model models.InvoiceModel
	if err := conn(ctx, r.db).
		Preload("Items", orderByLineNo).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ExistsByInvoiceNumber checks if an invoice number is taken within a tenant
func (r *GormInvoiceRepository) ExistsByInvoiceNumber(ctx context.Context, tenantID uuid.UUID, invoiceNumber string) (bool, error) {
	var count int64
	if err := conn(ctx, r.db).
		Model(&models.InvoiceModel{}).
		Where("tenant_id = ? AND invoice_number = ?", tenantID, invoiceNumber).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save creates or updates an invoice and its items
func (r *GormInvoiceRepository) Save(ctx context.Context, invoice *procurement.Invoice) error {
	return translateWriteError(conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Items").Save(models.InvoiceModelFromDomain(invoice)).Error; err != nil {
			return err
		}
		return r.saveItems(tx, invoice)
	}), "invoice", invoice.InvoiceNumber)
}

// SaveWithLock saves with optimistic locking (version check)
func (r *GormInvoiceRepository) SaveWithLock(ctx context.Context, invoice *procurement.Invoice) error {
	return conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		if err := checkVersion(tx, &models.InvoiceModel{}, invoice.TenantID, invoice.ID, invoice.Version, "invoice"); err != nil {
			return err
		}

		next := invoice.Version + 1
		now := time.Now()
		result := tx.Model(&models.InvoiceModel{}).
			Where("id = ? AND version = ?", invoice.ID, invoice.Version).
			Updates(map[string]interface{}{
				"buyer_name":            invoice.BuyerName,
				"purchase_order_id":     invoice.PurchaseOrderID,
				"purchase_order_number": invoice.PurchaseOrderNumber,
				"transaction_kind":      invoice.TransactionKind,
				"split":                 invoice.Split,
				"seller_region":         invoice.SellerRegion,
				"buyer_region":          invoice.BuyerRegion,
				"subtotal":              invoice.Subtotal,
				"total_discount":        invoice.TotalDiscount,
				"taxable_amount":        invoice.TaxableAmount,
				"dual_amount1":          invoice.DualAmount1,
				"dual_amount2":          invoice.DualAmount2,
				"single_amount":         invoice.SingleAmount,
				"total_tax":             invoice.TotalTax,
				"grand_total":           invoice.GrandTotal,
				"match_status":          invoice.MatchStatus,
				"version":               next,
				"updated_at":            now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return conflictError("invoice", invoice.InvoiceNumber)
		}

		if err := r.saveItems(tx, invoice); err != nil {
			return err
		}
		invoice.Version = next
		invoice.UpdatedAt = now
		return nil
	})
}

func (r *GormInvoiceRepository) saveItems(tx *gorm.DB, invoice *procurement.Invoice) error {
	ids := make([]uuid.UUID, len(invoice.Items))
	for i, item := range invoice.Items {
		ids[i] = item.ID
	}
	if err := deleteMissingItems(tx, &models.InvoiceItemModel{}, "invoice_id", invoice.ID, ids); err != nil {
		return err
	}
	for i := range invoice.Items {
		invoice.Items[i].InvoiceID = invoice.ID
		if err := tx.Save(models.InvoiceItemModelFromDomain(&invoice.Items[i])).Error; err != nil {
			return err
		}
	}
	return nil
}
