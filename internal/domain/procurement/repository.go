package procurement

import (
	"context"

	"github.com/google/uuid"
)

// PurchaseOrderRepository defines the interface for purchase order persistence
type PurchaseOrderRepository interface {
	// FindByIDForTenant finds a purchase order by ID for a specific tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*PurchaseOrder, error)

	// FindByOrderNumber finds a purchase order by order number for a tenant
	FindByOrderNumber(ctx context.Context, tenantID uuid.UUID, orderNumber string) (*PurchaseOrder, error)

	// ExistsByOrderNumber checks if an order number exists for a tenant
	ExistsByOrderNumber(ctx context.Context, tenantID uuid.UUID, orderNumber string) (bool, error)

	// Save creates a purchase order with its items
	Save(ctx context.Context, order *PurchaseOrder) error

	// SaveWithLock updates with optimistic locking (version check)
	SaveWithLock(ctx context.Context, order *PurchaseOrder) error
}

// ReceiptRepository defines the interface for receipt confirmation persistence
type ReceiptRepository interface {
	// FindByIDForTenant finds a receipt by ID for a specific tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*ReceiptConfirmation, error)

	// FindLatestByPurchaseOrder finds the most recent receipt recorded for a purchase order
	FindLatestByPurchaseOrder(ctx context.Context, tenantID, purchaseOrderID uuid.UUID) (*ReceiptConfirmation, error)

	// Save creates a receipt with its items
	Save(ctx context.Context, receipt *ReceiptConfirmation) error

	// SaveWithLock updates with optimistic locking (version check)
	SaveWithLock(ctx context.Context, receipt *ReceiptConfirmation) error
}

// InvoiceRepository defines the interface for invoice persistence
type InvoiceRepository interface {
	// FindByIDForTenant finds an invoice by ID for a specific tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Invoice, error)

	// ExistsByInvoiceNumber checks if an invoice number exists for a tenant
	ExistsByInvoiceNumber(ctx context.Context, tenantID uuid.UUID, invoiceNumber string) (bool, error)

	// Save creates an invoice with its items
	Save(ctx context.Context, invoice *Invoice) error

	// SaveWithLock updates with optimistic locking (version check), replacing items
	SaveWithLock(ctx context.Context, invoice *Invoice) error
}
