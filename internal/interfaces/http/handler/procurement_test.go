package handler

import (
	"net/http"
	"testing"

	"github.com/erp/gstbilling/internal/application/billing"
	"github.com/erp/gstbilling/internal/domain/shared"
	"github.com/erp/gstbilling/internal/interfaces/http/dto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newProcurementEngine(svc *MockProcurementService) http.Handler {
	engine := newTestEngine()
	h := NewProcurementHandler(svc)
	engine.POST("/api/v1/purchase-orders", h.CreatePurchaseOrder)
	engine.GET("/api/v1/purchase-orders/:id", h.GetPurchaseOrder)
	engine.POST("/api/v1/receipts", h.RecordReceipt)
	engine.GET("/api/v1/receipts/:id", h.GetReceipt)
	return engine
}

func validationFields(t *testing.T, resp dto.Response) map[string]string {
	t.Helper()
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	fields := make(map[string]string, len(resp.Error.Details))
	for _, d := range resp.Error.Details {
		fields[d.Field] = d.Message
	}
	return fields
}

func TestProcurementHandler_CreatePurchaseOrder(t *testing.T) {
	t.Run("creates the order", func(t *testing.T) {
		svc := new(MockProcurementService)
		svc.On("CreatePurchaseOrder", mock.Anything, testTenantID, mock.MatchedBy(func(req billing.CreatePurchaseOrderRequest) bool {
			return req.OrderNumber == "PO-100" && req.PartyTaxID == "27AAPFU0939F1ZV" &&
				len(req.Items) == 2 && req.Items[1].Rate.Equal(decimal.RequireFromString("12.5"))
		})).Return(&billing.PurchaseOrderResponse{
			ID:          uuid.New(),
			OrderNumber: "PO-100",
			Status:      "OPEN",
			TotalAmount: decimal.RequireFromString("1125"),
		}, nil)

		w := doJSON(t, newProcurementEngine(svc), http.MethodPost, "/api/v1/purchase-orders", `{
			"order_number": "PO-100",
			"party_name": "Shree Metals",
			"party_tax_id": "27AAPFU0939F1ZV",
			"items": [
				{"description": "Steel rods", "unit": "kg", "quantity": "20", "rate": "50"},
				{"description": "Bolts", "unit": "pcs", "quantity": "10", "rate": "12.5"}
			]
		}`)

		assert.Equal(t, http.StatusCreated, w.Code)
		var out billing.PurchaseOrderResponse
		decodeResponse(t, w, &out)
		assert.Equal(t, "OPEN", out.Status)
		svc.AssertExpectations(t)
	})

	t.Run("line and identifier rules answer 400", func(t *testing.T) {
		svc := new(MockProcurementService)

		w := doJSON(t, newProcurementEngine(svc), http.MethodPost, "/api/v1/purchase-orders", `{
			"order_number": "PO-100",
			"party_name": "Shree Metals",
			"party_tax_id": "99AAPFU0939F1ZV",
			"items": [{"description": "Steel rods", "quantity": "0", "rate": "-5"}]
		}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		fields := validationFields(t, decodeResponse(t, w, nil))
		assert.Contains(t, fields, "party_tax_id")
		assert.Contains(t, fields, "items[0].quantity")
		assert.Contains(t, fields, "items[0].rate")
		svc.AssertNotCalled(t, "CreatePurchaseOrder", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("duplicate order number answers 409", func(t *testing.T) {
		svc := new(MockProcurementService)
		svc.On("CreatePurchaseOrder", mock.Anything, testTenantID, mock.Anything).Return(nil, shared.ErrAlreadyExists)

		w := doJSON(t, newProcurementEngine(svc), http.MethodPost, "/api/v1/purchase-orders", `{
			"order_number": "PO-100",
			"party_name": "Shree Metals",
			"items": [{"description": "Steel rods", "quantity": "1", "rate": "1"}]
		}`)

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestProcurementHandler_GetPurchaseOrder(t *testing.T) {
	orderID := uuid.New()
	svc := new(MockProcurementService)
	svc.On("GetPurchaseOrder", mock.Anything, testTenantID, orderID).Return(nil, shared.ErrNotFound)

	w := doJSON(t, newProcurementEngine(svc), http.MethodGet, "/api/v1/purchase-orders/"+orderID.String(), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	resp := decodeResponse(t, w, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeNotFound, resp.Error.Code)
}

func TestProcurementHandler_RecordReceipt(t *testing.T) {
	orderID := uuid.New()

	t.Run("records the receipt", func(t *testing.T) {
		svc := new(MockProcurementService)
		svc.On("RecordReceipt", mock.Anything, testTenantID, mock.MatchedBy(func(req billing.RecordReceiptRequest) bool {
			if req.PurchaseOrderID != orderID || len(req.Items) != 2 {
				return false
			}
			first, second := req.Items[0], req.Items[1]
			return first.AcceptedQuantity != nil && first.AcceptedQuantity.Equal(decimal.NewFromInt(18)) &&
				first.Rate == nil &&
				second.AcceptedQuantity == nil &&
				second.Rate != nil && second.Rate.Equal(decimal.RequireFromString("12.5"))
		})).Return(&billing.ReceiptResponse{
			ID:            uuid.New(),
			ReceiptNumber: "GRN-1",
			MatchStatus:   "PENDING",
		}, nil)

		w := doJSON(t, newProcurementEngine(svc), http.MethodPost, "/api/v1/receipts", `{
			"receipt_number": "GRN-1",
			"purchase_order_id": "`+orderID.String()+`",
			"items": [
				{"line_ref": "L1", "received_quantity": "20", "accepted_quantity": "18"},
				{"line_ref": "L2", "received_quantity": "10", "rate": "12.5"}
			]
		}`)

		assert.Equal(t, http.StatusCreated, w.Code)
		var out billing.ReceiptResponse
		decodeResponse(t, w, &out)
		assert.Equal(t, "GRN-1", out.ReceiptNumber)
		svc.AssertExpectations(t)
	})

	t.Run("purchase order reference is required", func(t *testing.T) {
		svc := new(MockProcurementService)

		w := doJSON(t, newProcurementEngine(svc), http.MethodPost, "/api/v1/receipts", `{
			"receipt_number": "GRN-1",
			"items": [{"line_ref": "L1", "received_quantity": "-1"}]
		}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		fields := validationFields(t, decodeResponse(t, w, nil))
		assert.Equal(t, "This field is required", fields["purchase_order_id"])
		assert.Contains(t, fields, "items[0].received_quantity")
	})
}

func TestProcurementHandler_GetReceipt(t *testing.T) {
	receiptID := uuid.New()
	invoiceID := uuid.New()
	svc := new(MockProcurementService)
	svc.On("GetReceipt", mock.Anything, testTenantID, receiptID).Return(&billing.ReceiptResponse{
		ID:          receiptID,
		MatchStatus: "PARTIAL_MATCH",
		InvoiceID:   &invoiceID,
		Discrepancies: []billing.DiscrepancyResponse{
			{Type: "QUANTITY_MISMATCH", Severity: "MEDIUM", ItemKey: "L1"},
		},
	}, nil)

	w := doJSON(t, newProcurementEngine(svc), http.MethodGet, "/api/v1/receipts/"+receiptID.String(), nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var out billing.ReceiptResponse
	decodeResponse(t, w, &out)
	assert.Equal(t, "PARTIAL_MATCH", out.MatchStatus)
	require.Len(t, out.Discrepancies, 1)
	assert.Equal(t, "L1", out.Discrepancies[0].ItemKey)
}
