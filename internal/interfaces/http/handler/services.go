package handler

import (
	"context"

	"github.com/erp/gstbilling/internal/application/billing"
	"github.com/google/uuid"
)

// TaxPreviewer computes tax breakdowns and stateless matches
type TaxPreviewer interface {
	ComputeTax(ctx context.Context, req billing.ComputeTaxRequest) (*billing.TaxBreakdownResponse, error)
	Match(ctx context.Context, req billing.MatchRequest) (*billing.MatchResultResponse, error)
	Jurisdictions() []billing.JurisdictionResponse
}

// InvoiceService creates, recalculates and reads invoices
type InvoiceService interface {
	Create(ctx context.Context, tenantID uuid.UUID, req billing.CreateInvoiceRequest) (*billing.InvoiceResponse, error)
	Recalculate(ctx context.Context, tenantID, invoiceID uuid.UUID, req billing.RecalculateInvoiceRequest) (*billing.InvoiceResponse, error)
	Get(ctx context.Context, tenantID, invoiceID uuid.UUID) (*billing.InvoiceResponse, error)
}

// ProcurementService records purchase orders and goods receipts
type ProcurementService interface {
	CreatePurchaseOrder(ctx context.Context, tenantID uuid.UUID, req billing.CreatePurchaseOrderRequest) (*billing.PurchaseOrderResponse, error)
	GetPurchaseOrder(ctx context.Context, tenantID, orderID uuid.UUID) (*billing.PurchaseOrderResponse, error)
	RecordReceipt(ctx context.Context, tenantID uuid.UUID, req billing.RecordReceiptRequest) (*billing.ReceiptResponse, error)
	GetReceipt(ctx context.Context, tenantID, receiptID uuid.UUID) (*billing.ReceiptResponse, error)
}

// ReceiptReconciler reruns the three-way match for a stored receipt
type ReceiptReconciler interface {
	ReconcileReceipt(ctx context.Context, tenantID, receiptID uuid.UUID, req billing.ReconcileReceiptRequest) (*billing.ReconciliationResponse, error)
}

var (
	_ TaxPreviewer       = (*billing.PreviewService)(nil)
	_ InvoiceService     = (*billing.InvoiceService)(nil)
	_ ProcurementService = (*billing.ProcurementService)(nil)
	_ ReceiptReconciler  = (*billing.ReconciliationService)(nil)
)
