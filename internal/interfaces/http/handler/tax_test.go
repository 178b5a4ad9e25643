package handler

import (
	"net/http"
	"testing"

	"github.com/erp/gstbilling/internal/application/billing"
	"github.com/erp/gstbilling/internal/domain/shared"
	"github.com/erp/gstbilling/internal/interfaces/http/dto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTaxEngine(previewer *MockTaxPreviewer) http.Handler {
	engine := newTestEngine()
	h := NewTaxHandler(previewer)
	engine.POST("/api/v1/tax/breakdown", h.Breakdown)
	engine.GET("/api/v1/tax/jurisdictions", h.Jurisdictions)
	return engine
}

func TestTaxHandler_Breakdown(t *testing.T) {
	t.Run("returns the computed breakdown", func(t *testing.T) {
		previewer := new(MockTaxPreviewer)
		previewer.On("ComputeTax", mock.Anything, mock.MatchedBy(func(req billing.ComputeTaxRequest) bool {
			return req.SellerTaxID == "27AAPFU0939F1ZV" &&
				req.BuyerTaxID != nil && *req.BuyerTaxID == "33AAPFU0939F1Z2" &&
				len(req.Items) == 1 && req.Items[0].Quantity.Equal(decimal.NewFromInt(2))
		})).Return(&billing.TaxBreakdownResponse{
			TransactionKind: "B2B_INTER",
			IsCrossRegion:   true,
			Split:           "SINGLE",
			Totals:          billing.TotalsResponse{TotalTax: decimal.RequireFromString("36.00")},
		}, nil)

		w := doJSON(t, newTaxEngine(previewer), http.MethodPost, "/api/v1/tax/breakdown", `{
			"seller_tax_id": "27AAPFU0939F1ZV",
			"buyer_tax_id": "33AAPFU0939F1Z2",
			"items": [{"description": "Widget", "quantity": "2", "unit_rate": "100", "tax_rate_percent": "18"}]
		}`)

		assert.Equal(t, http.StatusOK, w.Code)
		var out billing.TaxBreakdownResponse
		resp := decodeResponse(t, w, &out)
		assert.True(t, resp.Success)
		assert.Equal(t, "SINGLE", out.Split)
		assert.True(t, out.Totals.TotalTax.Equal(decimal.RequireFromString("36")))
		previewer.AssertExpectations(t)
	})

	t.Run("tax engine errors answer 422", func(t *testing.T) {
		previewer := new(MockTaxPreviewer)
		previewer.On("ComputeTax", mock.Anything, mock.Anything).
			Return(nil, shared.NewDomainError("UNKNOWN_JURISDICTION", "unknown jurisdiction code 99"))

		w := doJSON(t, newTaxEngine(previewer), http.MethodPost, "/api/v1/tax/breakdown", `{"seller_tax_id": "99AAPFU0939F1ZV", "items": []}`)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		resp := decodeResponse(t, w, nil)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeTaxUnknownJurisdiction, resp.Error.Code)
	})

	t.Run("malformed body answers 400", func(t *testing.T) {
		previewer := new(MockTaxPreviewer)

		w := doJSON(t, newTaxEngine(previewer), http.MethodPost, "/api/v1/tax/breakdown", `{"items": [`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeResponse(t, w, nil)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeInvalidJSON, resp.Error.Code)
		previewer.AssertNotCalled(t, "ComputeTax", mock.Anything, mock.Anything)
	})
}

func TestTaxHandler_Jurisdictions(t *testing.T) {
	previewer := new(MockTaxPreviewer)
	previewer.On("Jurisdictions").Return([]billing.JurisdictionResponse{
		{Code: "27", Name: "Maharashtra"},
		{Code: "29", Name: "Karnataka"},
	})

	w := doJSON(t, newTaxEngine(previewer), http.MethodGet, "/api/v1/tax/jurisdictions", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var out []billing.JurisdictionResponse
	decodeResponse(t, w, &out)
	require.Len(t, out, 2)
	assert.Equal(t, "Karnataka", out[1].Name)
}
