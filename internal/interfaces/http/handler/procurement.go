package handler

import (
	"github.com/erp/gstbilling/internal/application/billing"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProcurementHandler serves purchase order and goods receipt endpoints
type ProcurementHandler struct {
	BaseHandler
	procurementService ProcurementService
}

// NewProcurementHandler creates a new ProcurementHandler
func NewProcurementHandler(procurementService ProcurementService) *ProcurementHandler {
	return &ProcurementHandler{procurementService: procurementService}
}

// PurchaseOrderItemRequest is one ordered line
type PurchaseOrderItemRequest struct {
	Description        string          `json:"description" binding:"required,max=500"`
	ClassificationCode string          `json:"classification_code" binding:"max=20"`
	Unit               string          `json:"unit" binding:"max=20"`
	Quantity           decimal.Decimal `json:"quantity" binding:"gt=0"`
	Rate               decimal.Decimal `json:"rate" binding:"gte=0"`
}

// CreatePurchaseOrderRequest is the body of POST /purchase-orders
type CreatePurchaseOrderRequest struct {
	OrderNumber string                     `json:"order_number" binding:"required,max=50"`
	PartyName   string                     `json:"party_name" binding:"required,max=200"`
	PartyTaxID  string                     `json:"party_tax_id" binding:"omitempty,gstin"`
	Items       []PurchaseOrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

// ReceiptItemRequest is one received line. line_ref names the purchase
// order line; accepted_quantity defaults to received_quantity.
type ReceiptItemRequest struct {
	LineRef          string           `json:"line_ref" binding:"max=20"`
	Description      string           `json:"description" binding:"max=500"`
	ReceivedQuantity decimal.Decimal  `json:"received_quantity" binding:"gte=0"`
	AcceptedQuantity *decimal.Decimal `json:"accepted_quantity" binding:"omitempty,gte=0"`
	Rate             *decimal.Decimal `json:"rate" binding:"omitempty,gte=0"`
}

// RecordReceiptRequest is the body of POST /receipts
type RecordReceiptRequest struct {
	ReceiptNumber   string               `json:"receipt_number" binding:"required,max=50"`
	PurchaseOrderID string               `json:"purchase_order_id" binding:"required,uuid"`
	Items           []ReceiptItemRequest `json:"items" binding:"required,min=1,dive"`
}

// CreatePurchaseOrder stores a purchase order. Line references are assigned
// in order as "L1", "L2", ...
//
// POST /api/v1/purchase-orders
func (h *ProcurementHandler) CreatePurchaseOrder(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}

	var req CreatePurchaseOrderRequest
	if !h.bindJSON(c, &req) {
		return
	}

	appReq := billing.CreatePurchaseOrderRequest{
		OrderNumber: req.OrderNumber,
		PartyName:   req.PartyName,
		PartyTaxID:  req.PartyTaxID,
		Items:       make([]billing.PurchaseOrderItemInput, len(req.Items)),
	}
	for i, item := range req.Items {
		appReq.Items[i] = billing.PurchaseOrderItemInput{
			Description:        item.Description,
			ClassificationCode: item.ClassificationCode,
			Unit:               item.Unit,
			Quantity:           item.Quantity,
			Rate:               item.Rate,
		}
	}

	order, err := h.procurementService.CreatePurchaseOrder(c.Request.Context(), tenantID, appReq)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, order)
}

// GetPurchaseOrder returns a stored purchase order.
//
// GET /api/v1/purchase-orders/:id
func (h *ProcurementHandler) GetPurchaseOrder(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	orderID, ok := h.parseIDParam(c)
	if !ok {
		return
	}

	order, err := h.procurementService.GetPurchaseOrder(c.Request.Context(), tenantID, orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, order)
}

// RecordReceipt stores a goods receipt against a purchase order.
//
// POST /api/v1/receipts
func (h *ProcurementHandler) RecordReceipt(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}

	var req RecordReceiptRequest
	if !h.bindJSON(c, &req) {
		return
	}

	appReq := billing.RecordReceiptRequest{
		ReceiptNumber:   req.ReceiptNumber,
		PurchaseOrderID: uuid.MustParse(req.PurchaseOrderID),
		Items:           make([]billing.ReceiptItemInput, len(req.Items)),
	}
	for i, item := range req.Items {
		appReq.Items[i] = billing.ReceiptItemInput{
			LineRef:          item.LineRef,
			Description:      item.Description,
			ReceivedQuantity: item.ReceivedQuantity,
			AcceptedQuantity: item.AcceptedQuantity,
			Rate:             item.Rate,
		}
	}

	receipt, err := h.procurementService.RecordReceipt(c.Request.Context(), tenantID, appReq)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, receipt)
}

// GetReceipt returns a stored receipt with its latest match outcome.
//
// GET /api/v1/receipts/:id
func (h *ProcurementHandler) GetReceipt(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	receiptID, ok := h.parseIDParam(c)
	if !ok {
		return
	}

	receipt, err := h.procurementService.GetReceipt(c.Request.Context(), tenantID, receiptID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, receipt)
}
