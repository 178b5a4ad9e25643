package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/erp/gstbilling/internal/application/billing"
	"github.com/erp/gstbilling/internal/domain/shared"
	"github.com/erp/gstbilling/internal/infrastructure/logger"
	"github.com/erp/gstbilling/internal/interfaces/http/dto"
	"github.com/erp/gstbilling/internal/interfaces/http/middleware"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const createInvoiceBody = `{
	"invoice_number": "INV-2026-001",
	"seller_tax_id": "27AAPFU0939F1ZV",
	"buyer_tax_id": "27AAACR5055K1Z7",
	"buyer_name": "Acme Traders",
	"purchase_order_id": "22222222-2222-2222-2222-222222222222",
	"items": [
		{"line_ref": "L1", "description": "Steel rods", "quantity": "10", "unit": "kg", "unit_rate": "50", "tax_rate_percent": "18"}
	]
}`

func newInvoiceEngine(svc *MockInvoiceService) http.Handler {
	engine := newTestEngine()
	h := NewInvoiceHandler(svc)
	engine.POST("/api/v1/invoices", h.Create)
	engine.GET("/api/v1/invoices/:id", h.GetByID)
	engine.PUT("/api/v1/invoices/:id/items", h.Recalculate)
	return engine
}

func TestInvoiceHandler_Create(t *testing.T) {
	t.Run("creates with idempotency key and purchase order", func(t *testing.T) {
		orderID := uuid.MustParse("22222222-2222-2222-2222-222222222222")
		invoiceID := uuid.New()
		svc := new(MockInvoiceService)
		svc.On("Create",
			mock.MatchedBy(func(ctx context.Context) bool {
				return logger.GetIdempotencyKey(ctx) == "key-1"
			}),
			testTenantID,
			mock.MatchedBy(func(req billing.CreateInvoiceRequest) bool {
				return req.IdempotencyKey == "key-1" &&
					req.InvoiceNumber == "INV-2026-001" &&
					req.PurchaseOrderID != nil && *req.PurchaseOrderID == orderID &&
					len(req.Items) == 1 && req.Items[0].LineRef == "L1" &&
					req.Items[0].UnitRate.Equal(decimal.NewFromInt(50))
			}),
		).Return(&billing.InvoiceResponse{
			ID:            invoiceID,
			InvoiceNumber: "INV-2026-001",
			MatchStatus:   "MATCHED",
			Version:       1,
		}, nil)

		w := doJSON(t, newInvoiceEngine(svc), "POST", "/api/v1/invoices", createInvoiceBody,
			middleware.IdempotencyKeyHeader, " key-1 ")

		assert.Equal(t, http.StatusCreated, w.Code)
		var out billing.InvoiceResponse
		decodeResponse(t, w, &out)
		assert.Equal(t, invoiceID, out.ID)
		assert.Equal(t, "MATCHED", out.MatchStatus)
		svc.AssertExpectations(t)
	})

	t.Run("repeated idempotency key answers 409", func(t *testing.T) {
		svc := new(MockInvoiceService)
		svc.On("Create", mock.Anything, testTenantID, mock.Anything).Return(nil, shared.ErrDuplicateRequest)

		w := doJSON(t, newInvoiceEngine(svc), "POST", "/api/v1/invoices", createInvoiceBody,
			middleware.IdempotencyKeyHeader, "key-1")

		assert.Equal(t, http.StatusConflict, w.Code)
		resp := decodeResponse(t, w, nil)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeDuplicateRequest, resp.Error.Code)
	})

	t.Run("missing fields answer 400 with details", func(t *testing.T) {
		svc := new(MockInvoiceService)

		w := doJSON(t, newInvoiceEngine(svc), "POST", "/api/v1/invoices", `{
			"seller_tax_id": "27AAPFU0939F1ZV",
			"purchase_order_id": "not-a-uuid",
			"items": []
		}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeResponse(t, w, nil)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		fields := make([]string, 0, len(resp.Error.Details))
		for _, d := range resp.Error.Details {
			fields = append(fields, d.Field)
		}
		assert.ElementsMatch(t, []string{"invoice_number", "purchase_order_id", "items"}, fields)
		svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("invalid seller identifier answers 422", func(t *testing.T) {
		svc := new(MockInvoiceService)
		svc.On("Create", mock.Anything, testTenantID, mock.Anything).
			Return(nil, shared.NewDomainError("INVALID_SELLER_IDENTIFIER", "seller identifier is malformed"))

		w := doJSON(t, newInvoiceEngine(svc), "POST", "/api/v1/invoices", createInvoiceBody)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		resp := decodeResponse(t, w, nil)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeTaxInvalidSeller, resp.Error.Code)
	})
}

func TestInvoiceHandler_GetByID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		invoiceID := uuid.New()
		svc := new(MockInvoiceService)
		svc.On("Get", mock.Anything, testTenantID, invoiceID).
			Return(&billing.InvoiceResponse{ID: invoiceID, InvoiceNumber: "INV-1"}, nil)

		w := doJSON(t, newInvoiceEngine(svc), "GET", "/api/v1/invoices/"+invoiceID.String(), nil)

		assert.Equal(t, http.StatusOK, w.Code)
		var out billing.InvoiceResponse
		decodeResponse(t, w, &out)
		assert.Equal(t, "INV-1", out.InvoiceNumber)
	})

	t.Run("tenant header scopes the lookup", func(t *testing.T) {
		otherTenant := uuid.New()
		invoiceID := uuid.New()
		svc := new(MockInvoiceService)
		svc.On("Get", mock.Anything, otherTenant, invoiceID).Return(nil, shared.ErrNotFound)

		w := doJSON(t, newInvoiceEngine(svc), "GET", "/api/v1/invoices/"+invoiceID.String(), nil,
			middleware.TenantHeaderKey, otherTenant.String())

		assert.Equal(t, http.StatusNotFound, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("invalid id answers 400", func(t *testing.T) {
		svc := new(MockInvoiceService)

		w := doJSON(t, newInvoiceEngine(svc), "GET", "/api/v1/invoices/INV-1", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "Get", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestInvoiceHandler_Recalculate(t *testing.T) {
	invoiceID := uuid.New()

	t.Run("passes the expected version", func(t *testing.T) {
		svc := new(MockInvoiceService)
		svc.On("Recalculate", mock.Anything, testTenantID, invoiceID, mock.MatchedBy(func(req billing.RecalculateInvoiceRequest) bool {
			return req.ExpectedVersion != nil && *req.ExpectedVersion == 3 && len(req.Items) == 2
		})).Return(&billing.InvoiceResponse{ID: invoiceID, Version: 4}, nil)

		w := doJSON(t, newInvoiceEngine(svc), "PUT", "/api/v1/invoices/"+invoiceID.String()+"/items", `{
			"expected_version": 3,
			"items": [
				{"description": "A", "quantity": 1, "unit_rate": 10, "tax_rate_percent": 5},
				{"description": "B", "quantity": 2, "unit_rate": 20, "tax_rate_percent": 12}
			]
		}`)

		assert.Equal(t, http.StatusOK, w.Code)
		var out billing.InvoiceResponse
		decodeResponse(t, w, &out)
		assert.Equal(t, 4, out.Version)
	})

	t.Run("stale version answers 409", func(t *testing.T) {
		svc := new(MockInvoiceService)
		svc.On("Recalculate", mock.Anything, testTenantID, invoiceID, mock.Anything).Return(nil, shared.ErrConcurrencyConflict)

		w := doJSON(t, newInvoiceEngine(svc), "PUT", "/api/v1/invoices/"+invoiceID.String()+"/items", `{
			"expected_version": 1,
			"items": [{"description": "A", "quantity": 1, "unit_rate": 10, "tax_rate_percent": 5}]
		}`)

		assert.Equal(t, http.StatusConflict, w.Code)
		resp := decodeResponse(t, w, nil)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeConcurrencyConflict, resp.Error.Code)
	})
}
