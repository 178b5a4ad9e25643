package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/gstbilling/internal/domain/procurement"
	"github.com/erp/gstbilling/internal/domain/shared"
	"github.com/erp/gstbilling/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormPurchaseOrderRepository implements procurement.PurchaseOrderRepository using GORM
type GormPurchaseOrderRepository struct {
	db *gorm.DB
}

// NewGormPurchaseOrderRepository creates a new GormPurchaseOrderRepository
func NewGormPurchaseOrderRepository(db *gorm.DB) *GormPurchaseOrderRepository {
	return &GormPurchaseOrderRepository{db: db}
}

// FindByIDForTenant finds a purchase order by ID within a tenant
func (r *GormPurchaseOrderRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*procurement.PurchaseOrder, error) {
	var model models.PurchaseOrderModel
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

// FindByOrderNumber finds a purchase order by order number for a tenant
func (r *GormPurchaseOrderRepository) FindByOrderNumber(ctx context.Context, tenantID uuid.UUID, orderNumber string) (*procurement.PurchaseOrder, error) {
	var model models.PurchaseOrderModel
	if err := conn(ctx, r.db).
		Preload("Items", orderByLineNo).
		Where("tenant_id = ? AND order_number = ?", tenantID, orderNumber).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ExistsByOrderNumber checks if an order number is taken within a tenant
func (r *GormPurchaseOrderRepository) ExistsByOrderNumber(ctx context.Context, tenantID uuid.UUID, orderNumber string) (bool, error) {
	var count int64
	if err := conn(ctx, r.db).
		Model(&models.PurchaseOrderModel{}).
		Where("tenant_id = ? AND order_number = ?", tenantID, orderNumber).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save creates or updates a purchase order and its items
func (r *GormPurchaseOrderRepository) Save(ctx context.Context, order *procurement.PurchaseOrder) error {
	return translateWriteError(conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		model := models.PurchaseOrderModelFromDomain(order)
		if err := tx.Omit("Items").Save(model).Error; err != nil {
			return err
		}
		return r.saveItems(tx, order)
	}), "purchase order", order.OrderNumber)
}

// SaveWithLock saves with optimistic locking (version check)
func (r *GormPurchaseOrderRepository) SaveWithLock(ctx context.Context, order *procurement.PurchaseOrder) error {
	return conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		if err := checkVersion(tx, &models.PurchaseOrderModel{}, order.TenantID, order.ID, order.Version, "purchase order"); err != nil {
			return err
		}

		next := order.Version + 1
		now := time.Now()
		result := tx.Model(&models.PurchaseOrderModel{}).
			Where("id = ? AND version = ?", order.ID, order.Version).
			Updates(map[string]interface{}{
				"party_name":   order.PartyName,
				"party_tax_id": order.PartyTaxID,
				"total_amount": order.TotalAmount,
				"status":       order.Status,
				"invoice_id":   order.InvoiceID,
				"version":      next,
				"updated_at":   now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return conflictError("purchase order", order.OrderNumber)
		}

		if err := r.saveItems(tx, order); err != nil {
			return err
		}
		order.Version = next
		order.UpdatedAt = now
		return nil
	})
}

// saveItems deletes lines no longer on the order and upserts the rest
func (r *GormPurchaseOrderRepository) saveItems(tx *gorm.DB, order *procurement.PurchaseOrder) error {
	ids := make([]uuid.UUID, len(order.Items))
	for i, item := range order.Items {
		ids[i] = item.ID
	}
	if err := deleteMissingItems(tx, &models.PurchaseOrderItemModel{}, "order_id", order.ID, ids); err != nil {
		return err
	}
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
		if err := tx.Save(models.PurchaseOrderItemModelFromDomain(&order.Items[i], i+1)).Error; err != nil {
			return err
		}
	}
	return nil
}

func orderByLineNo(db *gorm.DB) *gorm.DB {
	return db.Order("line_no ASC")
}

// checkVersion compares the stored version with the expected one
func checkVersion(tx *gorm.DB, model interface{}, tenantID, id uuid.UUID, expected int, entity string) error {
	var currentVersion int
	result := tx.Model(model).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Select("version").
		Scan(&currentVersion)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	if currentVersion != expected {
		return shared.NewDomainError("CONCURRENCY_CONFLICT",
			fmt.Sprintf("The %s was modified by another process (version %d, expected %d)", entity, currentVersion, expected))
	}
	return nil
}

func conflictError(entity, number string) error {
	return shared.NewDomainError("CONCURRENCY_CONFLICT", fmt.Sprintf("The %s %s was modified by another process", entity, number))
}

// deleteMissingItems removes child rows of parentID whose IDs are not in keep
func deleteMissingItems(tx *gorm.DB, model interface{}, parentColumn string, parentID uuid.UUID, keep []uuid.UUID) error {
	query := tx.Where(parentColumn+" = ?", parentID)
	if len(keep) > 0 {
		query = query.Where("id NOT IN ?", keep)
	}
	return query.Delete(model).Error
}

// translateWriteError maps unique violations to ALREADY_EXISTS
func translateWriteError(err error, entity, number string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return shared.NewDomainError("ALREADY_EXISTS", fmt.Sprintf("The %s %s already exists", entity, number))
	}
	return err
}
