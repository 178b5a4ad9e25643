package handler

import (
	"github.com/erp/gstbilling/internal/application/billing"
	"github.com/gin-gonic/gin"
)

// TaxHandler serves stateless tax computations
type TaxHandler struct {
	BaseHandler
	previewer TaxPreviewer
}

// NewTaxHandler creates a new TaxHandler
func NewTaxHandler(previewer TaxPreviewer) *TaxHandler {
	return &TaxHandler{previewer: previewer}
}

// Breakdown computes the tax breakdown of a prospective invoice.
// Identifier and line item rules are enforced by the tax engine, so a
// malformed GSTIN or line answers 422 with the engine's code.
//
// POST /api/v1/tax/breakdown
func (h *TaxHandler) Breakdown(c *gin.Context) {
	var req billing.ComputeTaxRequest
	if !h.bindJSON(c, &req) {
		return
	}

	breakdown, err := h.previewer.ComputeTax(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, breakdown)
}

// Jurisdictions lists the jurisdiction codes accepted in identifiers.
//
// GET /api/v1/tax/jurisdictions
func (h *TaxHandler) Jurisdictions(c *gin.Context) {
	h.Success(c, h.previewer.Jurisdictions())
}
