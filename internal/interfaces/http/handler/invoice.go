package handler

import (
	"strings"

	"github.com/erp/gstbilling/internal/application/billing"
	"github.com/erp/gstbilling/internal/infrastructure/logger"
	"github.com/erp/gstbilling/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceHandler serves invoice endpoints
type InvoiceHandler struct {
	BaseHandler
	invoiceService InvoiceService
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(invoiceService InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoiceService: invoiceService}
}

// InvoiceLineRequest is one invoice line. Quantities, rates and discounts
// are checked by the tax engine.
type InvoiceLineRequest struct {
	LineRef            string          `json:"line_ref" binding:"max=20"`
	Description        string          `json:"description" binding:"max=500"`
	ClassificationCode string          `json:"classification_code" binding:"max=20"`
	Quantity           decimal.Decimal `json:"quantity"`
	Unit               string          `json:"unit" binding:"max=20"`
	UnitRate           decimal.Decimal `json:"unit_rate"`
	TaxRatePercent     decimal.Decimal `json:"tax_rate_percent"`
	DiscountType       string          `json:"discount_type"`
	DiscountValue      decimal.Decimal `json:"discount_value"`
}

// CreateInvoiceRequest is the body of POST /invoices
type CreateInvoiceRequest struct {
	InvoiceNumber   string               `json:"invoice_number" binding:"required,max=50"`
	SellerTaxID     string               `json:"seller_tax_id"`
	BuyerTaxID      *string              `json:"buyer_tax_id"`
	BuyerName       string               `json:"buyer_name" binding:"max=200"`
	PurchaseOrderID *string              `json:"purchase_order_id" binding:"omitempty,uuid"`
	Items           []InvoiceLineRequest `json:"items" binding:"required,min=1,dive"`
}

// RecalculateInvoiceRequest is the body of PUT /invoices/:id/items
type RecalculateInvoiceRequest struct {
	ExpectedVersion *int                 `json:"expected_version" binding:"omitempty,min=1"`
	Items           []InvoiceLineRequest `json:"items" binding:"required,min=1,dive"`
}

func toLineItemInputs(items []InvoiceLineRequest) []billing.LineItemInput {
	inputs := make([]billing.LineItemInput, len(items))
	for i, item := range items {
		inputs[i] = billing.LineItemInput{
			LineRef:            item.LineRef,
			Description:        item.Description,
			ClassificationCode: item.ClassificationCode,
			Quantity:           item.Quantity,
			Unit:               item.Unit,
			UnitRate:           item.UnitRate,
			TaxRatePercent:     item.TaxRatePercent,
			DiscountType:       item.DiscountType,
			DiscountValue:      item.DiscountValue,
		}
	}
	return inputs
}

// Create computes taxes and stores an invoice. When the invoice references a
// purchase order it is reconciled in the same call. A repeated
// Idempotency-Key answers 409 ERR_DUPLICATE_REQUEST.
//
// POST /api/v1/invoices
func (h *InvoiceHandler) Create(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}

	var req CreateInvoiceRequest
	if !h.bindJSON(c, &req) {
		return
	}

	appReq := billing.CreateInvoiceRequest{
		IdempotencyKey: strings.TrimSpace(c.GetHeader(middleware.IdempotencyKeyHeader)),
		InvoiceNumber:  req.InvoiceNumber,
		SellerTaxID:    req.SellerTaxID,
		BuyerTaxID:     req.BuyerTaxID,
		BuyerName:      req.BuyerName,
		Items:          toLineItemInputs(req.Items),
	}
	if req.PurchaseOrderID != nil {
		orderID := uuid.MustParse(*req.PurchaseOrderID)
		appReq.PurchaseOrderID = &orderID
	}

	ctx := c.Request.Context()
	if appReq.IdempotencyKey != "" {
		ctx = logger.WithIdempotencyKey(ctx, appReq.IdempotencyKey)
	}

	invoice, err := h.invoiceService.Create(ctx, tenantID, appReq)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, invoice)
}

// GetByID returns a stored invoice.
//
// GET /api/v1/invoices/:id
func (h *InvoiceHandler) GetByID(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	invoiceID, ok := h.parseIDParam(c)
	if !ok {
		return
	}

	invoice, err := h.invoiceService.Get(c.Request.Context(), tenantID, invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, invoice)
}

// Recalculate replaces the lines of an invoice and recomputes its taxes.
// A stale expected_version answers 409 ERR_CONCURRENCY_CONFLICT.
//
// PUT /api/v1/invoices/:id/items
func (h *InvoiceHandler) Recalculate(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	invoiceID, ok := h.parseIDParam(c)
	if !ok {
		return
	}

	var req RecalculateInvoiceRequest
	if !h.bindJSON(c, &req) {
		return
	}

	invoice, err := h.invoiceService.Recalculate(c.Request.Context(), tenantID, invoiceID, billing.RecalculateInvoiceRequest{
		ExpectedVersion: req.ExpectedVersion,
		Items:           toLineItemInputs(req.Items),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, invoice)
}
