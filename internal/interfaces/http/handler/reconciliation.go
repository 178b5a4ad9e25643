package handler

import (
	"github.com/erp/gstbilling/internal/application/billing"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ReconciliationHandler serves three-way matching
type ReconciliationHandler struct {
	BaseHandler
	previewer  TaxPreviewer
	reconciler ReceiptReconciler
}

// NewReconciliationHandler creates a new ReconciliationHandler
func NewReconciliationHandler(previewer TaxPreviewer, reconciler ReceiptReconciler) *ReconciliationHandler {
	return &ReconciliationHandler{
		previewer:  previewer,
		reconciler: reconciler,
	}
}

// ReconcileReceiptRequest names the invoice a receipt is matched against
type ReconcileReceiptRequest struct {
	InvoiceID string `json:"invoice_id" binding:"required,uuid"`
}

// Match runs a three-way match over documents supplied inline. Nothing is
// stored; a missing purchase order or invoice answers 422.
//
// POST /api/v1/reconciliation/match
func (h *ReconciliationHandler) Match(c *gin.Context) {
	var req billing.MatchRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.previewer.Match(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// ReconcileReceipt matches a stored receipt, its purchase order and an
// invoice, and stores the outcome on the receipt.
//
// POST /api/v1/receipts/:id/reconcile
func (h *ReconciliationHandler) ReconcileReceipt(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	receiptID, ok := h.parseIDParam(c)
	if !ok {
		return
	}

	var req ReconcileReceiptRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.reconciler.ReconcileReceipt(c.Request.Context(), tenantID, receiptID, billing.ReconcileReceiptRequest{
		InvoiceID: uuid.MustParse(req.InvoiceID),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}
