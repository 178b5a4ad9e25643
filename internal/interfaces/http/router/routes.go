package router

import (
	"github.com/erp/gstbilling/internal/interfaces/http/handler"
)

// HealthPath is served under the API base path without a tenant
const HealthPath = "/health"

// Handlers bundles the billing API handlers
type Handlers struct {
	Tax            *handler.TaxHandler
	Invoice        *handler.InvoiceHandler
	Procurement    *handler.ProcurementHandler
	Reconciliation *handler.ReconciliationHandler
	Health         *handler.HealthHandler
}

// RegisterBillingRoutes registers every billing route group on r
func RegisterBillingRoutes(r *Router, h Handlers) *Router {
	taxRoutes := NewDomainGroup("tax", "/tax").
		POST("/breakdown", h.Tax.Breakdown).
		GET("/jurisdictions", h.Tax.Jurisdictions)

	reconciliationRoutes := NewDomainGroup("reconciliation", "/reconciliation").
		POST("/match", h.Reconciliation.Match)

	invoiceRoutes := NewDomainGroup("invoices", "/invoices").
		POST("", h.Invoice.Create).
		GET("/:id", h.Invoice.GetByID).
		PUT("/:id/items", h.Invoice.Recalculate)

	orderRoutes := NewDomainGroup("purchase-orders", "/purchase-orders").
		POST("", h.Procurement.CreatePurchaseOrder).
		GET("/:id", h.Procurement.GetPurchaseOrder)

	receiptRoutes := NewDomainGroup("receipts", "/receipts").
		POST("", h.Procurement.RecordReceipt).
		GET("/:id", h.Procurement.GetReceipt).
		POST("/:id/reconcile", h.Reconciliation.ReconcileReceipt)

	systemRoutes := NewDomainGroup("system", "").
		GET(HealthPath, h.Health.Health)

	return r.Register(taxRoutes).
		Register(reconciliationRoutes).
		Register(invoiceRoutes).
		Register(orderRoutes).
		Register(receiptRoutes).
		Register(systemRoutes)
}
