package billing

import (
	"strings"
	"time"

	"github.com/erp/gstbilling/internal/domain/matching"
	"github.com/erp/gstbilling/internal/domain/procurement"
	"github.com/erp/gstbilling/internal/domain/tax"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ==================== Tax DTOs ====================

// LineItemInput is one invoice line as supplied by a caller
type LineItemInput struct {
	LineRef            string          `json:"line_ref"`
	Description        string          `json:"description"`
	ClassificationCode string          `json:"classification_code"`
	Quantity           decimal.Decimal `json:"quantity"`
	Unit               string          `json:"unit"`
	UnitRate           decimal.Decimal `json:"unit_rate"`
	TaxRatePercent     decimal.Decimal `json:"tax_rate_percent"`
	DiscountType       string          `json:"discount_type"`
	DiscountValue      decimal.Decimal `json:"discount_value"`
}

// ComputeTaxRequest asks for a tax breakdown without persisting anything
type ComputeTaxRequest struct {
	SellerTaxID string          `json:"seller_tax_id"`
	BuyerTaxID  *string         `json:"buyer_tax_id"`
	Items       []LineItemInput `json:"items"`
}

// ComputedLineResponse is one line of a tax breakdown, rounded for display
type ComputedLineResponse struct {
	LineRef            string          `json:"line_ref,omitempty"`
	Description        string          `json:"description"`
	ClassificationCode string          `json:"classification_code"`
	Quantity           decimal.Decimal `json:"quantity"`
	Unit               string          `json:"unit"`
	UnitRate           decimal.Decimal `json:"unit_rate"`
	TaxRatePercent     decimal.Decimal `json:"tax_rate_percent"`
	DiscountType       string          `json:"discount_type,omitempty"`
	DiscountValue      decimal.Decimal `json:"discount_value"`
	BaseAmount         decimal.Decimal `json:"base_amount"`
	DiscountAmount     decimal.Decimal `json:"discount_amount"`
	TaxableAmount      decimal.Decimal `json:"taxable_amount"`
	TaxAmount          decimal.Decimal `json:"tax_amount"`
	DualAmount1        decimal.Decimal `json:"dual_amount_1"`
	DualAmount2        decimal.Decimal `json:"dual_amount_2"`
	SingleAmount       decimal.Decimal `json:"single_amount"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
}

// TotalsResponse carries the document totals
type TotalsResponse struct {
	Subtotal      decimal.Decimal `json:"subtotal"`
	TotalDiscount decimal.Decimal `json:"total_discount"`
	TaxableAmount decimal.Decimal `json:"taxable_amount"`
	DualAmount1   decimal.Decimal `json:"dual_amount_1"`
	DualAmount2   decimal.Decimal `json:"dual_amount_2"`
	SingleAmount  decimal.Decimal `json:"single_amount"`
	TotalTax      decimal.Decimal `json:"total_tax"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
}

// TaxBreakdownResponse is the result of a tax computation
type TaxBreakdownResponse struct {
	TransactionKind string                 `json:"transaction_kind"`
	IsCrossRegion   bool                   `json:"is_cross_region"`
	Split           string                 `json:"split"`
	SellerRegion    string                 `json:"seller_region"`
	BuyerRegion     string                 `json:"buyer_region"`
	Items           []ComputedLineResponse `json:"items"`
	Totals          TotalsResponse         `json:"totals"`
}

// JurisdictionResponse is one known jurisdiction code
type JurisdictionResponse struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// ==================== Invoice DTOs ====================

// CreateInvoiceRequest creates an invoice and, with a purchase order
// reference, reconciles it
type CreateInvoiceRequest struct {
	IdempotencyKey  string          `json:"-"`
	InvoiceNumber   string          `json:"invoice_number"`
	SellerTaxID     string          `json:"seller_tax_id"`
	BuyerTaxID      *string         `json:"buyer_tax_id"`
	BuyerName       string          `json:"buyer_name"`
	PurchaseOrderID *uuid.UUID      `json:"purchase_order_id"`
	Items           []LineItemInput `json:"items"`
}

// RecalculateInvoiceRequest replaces the lines of an existing invoice
type RecalculateInvoiceRequest struct {
	ExpectedVersion *int            `json:"expected_version"`
	Items           []LineItemInput `json:"items"`
}

// InvoiceResponse represents a stored invoice
type InvoiceResponse struct {
	ID                  uuid.UUID              `json:"id"`
	TenantID            uuid.UUID              `json:"tenant_id"`
	InvoiceNumber       string                 `json:"invoice_number"`
	SellerTaxID         string                 `json:"seller_tax_id"`
	BuyerTaxID          *string                `json:"buyer_tax_id,omitempty"`
	BuyerName           string                 `json:"buyer_name"`
	PurchaseOrderID     *uuid.UUID             `json:"purchase_order_id,omitempty"`
	PurchaseOrderNumber string                 `json:"purchase_order_number,omitempty"`
	TransactionKind     string                 `json:"transaction_kind"`
	Split               string                 `json:"split"`
	SellerRegion        string                 `json:"seller_region"`
	BuyerRegion         string                 `json:"buyer_region"`
	Items               []ComputedLineResponse `json:"items"`
	Totals              TotalsResponse         `json:"totals"`
	MatchStatus         string                 `json:"match_status"`
	Version             int                    `json:"version"`
	CreatedAt           time.Time              `json:"created_at"`
	UpdatedAt           time.Time              `json:"updated_at"`

	// Set when the invoice was reconciled in the same call
	Reconciliation *ReconciliationResponse `json:"reconciliation,omitempty"`
	// Set when reconciliation was attempted and failed; the invoice is still stored
	ReconciliationError string `json:"reconciliation_error,omitempty"`
}

// ==================== Reconciliation DTOs ====================

// DiscrepancyResponse is one finding of a three-way match
type DiscrepancyResponse struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	ItemKey     string `json:"item_key,omitempty"`
}

// MatchResultResponse is the outcome of a three-way match
type MatchResultResponse struct {
	Status        string                `json:"status"`
	MatchedItems  int                   `json:"matched_items"`
	TotalItems    int                   `json:"total_items"`
	Discrepancies []DiscrepancyResponse `json:"discrepancies"`
	Summary       string                `json:"summary"`
}

// ReconciliationResponse is a persisted match result
type ReconciliationResponse struct {
	ReceiptID       uuid.UUID `json:"receipt_id"`
	InvoiceID       uuid.UUID `json:"invoice_id"`
	PurchaseOrderID uuid.UUID `json:"purchase_order_id"`
	MatchResultResponse
	ReconciledAt *time.Time `json:"reconciled_at,omitempty"`
}

// MatchItemInput is one line of an inline reconciliation document
type MatchItemInput struct {
	LineRef     string           `json:"line_ref"`
	Description string           `json:"description"`
	Quantity    decimal.Decimal  `json:"quantity"`
	Rate        decimal.Decimal  `json:"rate"`
	Amount      *decimal.Decimal `json:"amount"` // defaults to quantity x rate
}

// MatchDocumentInput is an inline reconciliation document
type MatchDocumentInput struct {
	ReferenceNumber string           `json:"reference_number"`
	PartyIdentity   string           `json:"party_identity"`
	Items           []MatchItemInput `json:"items"`
	TotalValue      *decimal.Decimal `json:"total_value"` // defaults to the sum of item amounts
}

// MatchRequest runs a stateless three-way match over inline documents
type MatchRequest struct {
	PurchaseOrder *MatchDocumentInput `json:"purchase_order"`
	Receipt       *MatchDocumentInput `json:"receipt"`
	Invoice       *MatchDocumentInput `json:"invoice"`
}

// ReconcileReceiptRequest reruns the match for a receipt against an invoice
type ReconcileReceiptRequest struct {
	InvoiceID uuid.UUID `json:"invoice_id"`
}

// ==================== Procurement DTOs ====================

// PurchaseOrderItemInput is one line of a new purchase order
type PurchaseOrderItemInput struct {
	Description        string          `json:"description"`
	ClassificationCode string          `json:"classification_code"`
	Unit               string          `json:"unit"`
	Quantity           decimal.Decimal `json:"quantity"`
	Rate               decimal.Decimal `json:"rate"`
}

// CreatePurchaseOrderRequest creates a purchase order
type CreatePurchaseOrderRequest struct {
	OrderNumber string                   `json:"order_number"`
	PartyName   string                   `json:"party_name"`
	PartyTaxID  string                   `json:"party_tax_id"`
	Items       []PurchaseOrderItemInput `json:"items"`
}

// PurchaseOrderItemResponse represents a purchase order line
type PurchaseOrderItemResponse struct {
	ID                 uuid.UUID       `json:"id"`
	LineRef            string          `json:"line_ref"`
	Description        string          `json:"description"`
	ClassificationCode string          `json:"classification_code"`
	Unit               string          `json:"unit"`
	Quantity           decimal.Decimal `json:"quantity"`
	Rate               decimal.Decimal `json:"rate"`
	Amount             decimal.Decimal `json:"amount"`
}

// PurchaseOrderResponse represents a purchase order
type PurchaseOrderResponse struct {
	ID          uuid.UUID                   `json:"id"`
	TenantID    uuid.UUID                   `json:"tenant_id"`
	OrderNumber string                      `json:"order_number"`
	PartyName   string                      `json:"party_name"`
	PartyTaxID  string                      `json:"party_tax_id,omitempty"`
	Items       []PurchaseOrderItemResponse `json:"items"`
	TotalAmount decimal.Decimal             `json:"total_amount"`
	Status      string                      `json:"status"`
	InvoiceID   *uuid.UUID                  `json:"invoice_id,omitempty"`
	Version     int                         `json:"version"`
	CreatedAt   time.Time                   `json:"created_at"`
	UpdatedAt   time.Time                   `json:"updated_at"`
}

// ReceiptItemInput is one received line. AcceptedQuantity defaults to
// ReceivedQuantity and Rate defaults to the purchase order line rate.
type ReceiptItemInput struct {
	LineRef          string           `json:"line_ref"`
	Description      string           `json:"description"`
	ReceivedQuantity decimal.Decimal  `json:"received_quantity"`
	AcceptedQuantity *decimal.Decimal `json:"accepted_quantity"`
	Rate             *decimal.Decimal `json:"rate"`
}

// RecordReceiptRequest records a goods receipt against a purchase order
type RecordReceiptRequest struct {
	ReceiptNumber   string             `json:"receipt_number"`
	PurchaseOrderID uuid.UUID          `json:"purchase_order_id"`
	Items           []ReceiptItemInput `json:"items"`
}

// ReceiptItemResponse represents a receipt line
type ReceiptItemResponse struct {
	ID               uuid.UUID       `json:"id"`
	LineRef          string          `json:"line_ref,omitempty"`
	Description      string          `json:"description"`
	ReceivedQuantity decimal.Decimal `json:"received_quantity"`
	AcceptedQuantity decimal.Decimal `json:"accepted_quantity"`
	RejectedQuantity decimal.Decimal `json:"rejected_quantity"`
	Rate             decimal.Decimal `json:"rate"`
}

// ReceiptResponse represents a receipt confirmation and its latest match
type ReceiptResponse struct {
	ID                  uuid.UUID             `json:"id"`
	TenantID            uuid.UUID             `json:"tenant_id"`
	ReceiptNumber       string                `json:"receipt_number"`
	PurchaseOrderID     uuid.UUID             `json:"purchase_order_id"`
	PurchaseOrderNumber string                `json:"purchase_order_number"`
	Items               []ReceiptItemResponse `json:"items"`
	MatchStatus         string                `json:"match_status"`
	MatchedItems        int                   `json:"matched_items"`
	TotalItems          int                   `json:"total_items"`
	Discrepancies       []DiscrepancyResponse `json:"discrepancies"`
	MatchSummary        string                `json:"match_summary,omitempty"`
	InvoiceID           *uuid.UUID            `json:"invoice_id,omitempty"`
	ReconciledAt        *time.Time            `json:"reconciled_at,omitempty"`
	Version             int                   `json:"version"`
	CreatedAt           time.Time             `json:"created_at"`
	UpdatedAt           time.Time             `json:"updated_at"`
}

// ==================== Converters ====================

// ToInvoiceLines converts caller input into invoice lines
func ToInvoiceLines(inputs []LineItemInput) []procurement.InvoiceLine {
	lines := make([]procurement.InvoiceLine, len(inputs))
	for i, in := range inputs {
		lines[i] = procurement.InvoiceLine{
			LineRef: strings.TrimSpace(in.LineRef),
			LineItem: tax.LineItem{
				Description:        in.Description,
				ClassificationCode: in.ClassificationCode,
				Quantity:           in.Quantity,
				Unit:               in.Unit,
				UnitRate:           in.UnitRate,
				TaxRatePercent:     in.TaxRatePercent,
				DiscountType:       tax.DiscountType(strings.ToUpper(strings.TrimSpace(in.DiscountType))),
				DiscountValue:      in.DiscountValue,
			},
		}
	}
	return lines
}

func toComputedLineResponse(item tax.ComputedLineItem, lineRef string) ComputedLineResponse {
	r := item.Rounded()
	return ComputedLineResponse{
		LineRef:            lineRef,
		Description:        r.Description,
		ClassificationCode: r.ClassificationCode,
		Quantity:           r.Quantity,
		Unit:               r.Unit,
		UnitRate:           r.UnitRate,
		TaxRatePercent:     r.TaxRatePercent,
		DiscountType:       string(r.DiscountType),
		DiscountValue:      r.DiscountValue,
		BaseAmount:         r.BaseAmount,
		DiscountAmount:     r.DiscountAmount,
		TaxableAmount:      r.TaxableAmount,
		TaxAmount:          r.TaxAmount,
		DualAmount1:        r.DualAmount1,
		DualAmount2:        r.DualAmount2,
		SingleAmount:       r.SingleAmount,
		TotalAmount:        r.TotalAmount,
	}
}

func toTotalsResponse(t tax.Totals) TotalsResponse {
	return TotalsResponse{
		Subtotal:      t.Subtotal,
		TotalDiscount: t.TotalDiscount,
		TaxableAmount: t.TaxableAmount,
		DualAmount1:   t.DualAmount1,
		DualAmount2:   t.DualAmount2,
		SingleAmount:  t.SingleAmount,
		TotalTax:      t.TotalTax,
		GrandTotal:    t.GrandTotal,
	}
}

// ToTaxBreakdownResponse converts a breakdown. lineRefs may be nil.
func ToTaxBreakdownResponse(b *tax.Breakdown, lineRefs []string) TaxBreakdownResponse {
	items := make([]ComputedLineResponse, len(b.Items))
	for i, item := range b.Items {
		ref := ""
		if i < len(lineRefs) {
			ref = lineRefs[i]
		}
		items[i] = toComputedLineResponse(item, ref)
	}
	return TaxBreakdownResponse{
		TransactionKind: string(b.Context.Kind),
		IsCrossRegion:   b.Context.IsCrossRegion,
		Split:           string(b.Context.Split),
		SellerRegion:    b.Context.SellerRegion,
		BuyerRegion:     b.Context.BuyerRegion,
		Items:           items,
		Totals:          toTotalsResponse(b.Totals),
	}
}

// ToJurisdictionResponses converts the jurisdiction table
func ToJurisdictionResponses(js []tax.Jurisdiction) []JurisdictionResponse {
	out := make([]JurisdictionResponse, len(js))
	for i, j := range js {
		out[i] = JurisdictionResponse{Code: j.Code, Name: j.Name}
	}
	return out
}

// ToInvoiceResponse converts a domain Invoice to InvoiceResponse
func ToInvoiceResponse(inv *procurement.Invoice) InvoiceResponse {
	items := make([]ComputedLineResponse, len(inv.Items))
	for i, item := range inv.Items {
		items[i] = ComputedLineResponse{
			LineRef:            item.LineRef,
			Description:        item.Description,
			ClassificationCode: item.ClassificationCode,
			Quantity:           item.Quantity,
			Unit:               item.Unit,
			UnitRate:           item.UnitRate,
			TaxRatePercent:     item.TaxRatePercent,
			DiscountType:       string(item.DiscountType),
			DiscountValue:      item.DiscountValue,
			BaseAmount:         item.BaseAmount,
			DiscountAmount:     item.DiscountAmount,
			TaxableAmount:      item.TaxableAmount,
			TaxAmount:          item.TaxAmount,
			DualAmount1:        item.DualAmount1,
			DualAmount2:        item.DualAmount2,
			SingleAmount:       item.SingleAmount,
			TotalAmount:        item.TotalAmount,
		}
	}

	return InvoiceResponse{
		ID:                  inv.ID,
		TenantID:            inv.TenantID,
		InvoiceNumber:       inv.InvoiceNumber,
		SellerTaxID:         inv.SellerTaxID,
		BuyerTaxID:          inv.BuyerTaxID,
		BuyerName:           inv.BuyerName,
		PurchaseOrderID:     inv.PurchaseOrderID,
		PurchaseOrderNumber: inv.PurchaseOrderNumber,
		TransactionKind:     string(inv.TransactionKind),
		Split:               string(inv.Split),
		SellerRegion:        inv.SellerRegion,
		BuyerRegion:         inv.BuyerRegion,
		Items:               items,
		Totals: TotalsResponse{
			Subtotal:      inv.Subtotal,
			TotalDiscount: inv.TotalDiscount,
			TaxableAmount: inv.TaxableAmount,
			DualAmount1:   inv.DualAmount1,
			DualAmount2:   inv.DualAmount2,
			SingleAmount:  inv.SingleAmount,
			TotalTax:      inv.TotalTax,
			GrandTotal:    inv.GrandTotal,
		},
		MatchStatus: string(inv.MatchStatus),
		Version:     inv.Version,
		CreatedAt:   inv.CreatedAt,
		UpdatedAt:   inv.UpdatedAt,
	}
}

func toDiscrepancyResponses(ds []matching.Discrepancy) []DiscrepancyResponse {
	out := make([]DiscrepancyResponse, len(ds))
	for i, d := range ds {
		out[i] = DiscrepancyResponse{
			Type:        string(d.Type),
			Severity:    string(d.Severity),
			Description: d.Description,
			ItemKey:     d.ItemKey,
		}
	}
	return out
}

// ToMatchResultResponse converts a match result
func ToMatchResultResponse(r *matching.MatchResult) MatchResultResponse {
	return MatchResultResponse{
		Status:        string(r.Status),
		MatchedItems:  r.MatchedItems,
		TotalItems:    r.TotalItems,
		Discrepancies: toDiscrepancyResponses(r.Discrepancies),
		Summary:       r.Summary,
	}
}

// ToPurchaseOrderResponse converts a domain PurchaseOrder to PurchaseOrderResponse
func ToPurchaseOrderResponse(o *procurement.PurchaseOrder) PurchaseOrderResponse {
	items := make([]PurchaseOrderItemResponse, len(o.Items))
	for i, item := range o.Items {
		items[i] = PurchaseOrderItemResponse{
			ID:                 item.ID,
			LineRef:            item.LineRef,
			Description:        item.Description,
			ClassificationCode: item.ClassificationCode,
			Unit:               item.Unit,
			Quantity:           item.Quantity,
			Rate:               item.Rate,
			Amount:             item.Amount,
		}
	}
	return PurchaseOrderResponse{
		ID:          o.ID,
		TenantID:    o.TenantID,
		OrderNumber: o.OrderNumber,
		PartyName:   o.PartyName,
		PartyTaxID:  o.PartyTaxID,
		Items:       items,
		TotalAmount: o.TotalAmount,
		Status:      string(o.Status),
		InvoiceID:   o.InvoiceID,
		Version:     o.Version,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
}

// ToReceiptResponse converts a domain ReceiptConfirmation to ReceiptResponse
func ToReceiptResponse(r *procurement.ReceiptConfirmation) ReceiptResponse {
	items := make([]ReceiptItemResponse, len(r.Items))
	for i, item := range r.Items {
		items[i] = ReceiptItemResponse{
			ID:               item.ID,
			LineRef:          item.LineRef,
			Description:      item.Description,
			ReceivedQuantity: item.ReceivedQuantity,
			AcceptedQuantity: item.AcceptedQuantity,
			RejectedQuantity: item.RejectedQuantity(),
			Rate:             item.Rate,
		}
	}
	return ReceiptResponse{
		ID:                  r.ID,
		TenantID:            r.TenantID,
		ReceiptNumber:       r.ReceiptNumber,
		PurchaseOrderID:     r.PurchaseOrderID,
		PurchaseOrderNumber: r.PurchaseOrderNumber,
		Items:               items,
		MatchStatus:         string(r.MatchStatus),
		MatchedItems:        r.MatchedItems,
		TotalItems:          r.TotalItems,
		Discrepancies:       toDiscrepancyResponses(r.Discrepancies),
		MatchSummary:        r.MatchSummary,
		InvoiceID:           r.InvoiceID,
		ReconciledAt:        r.ReconciledAt,
		Version:             r.Version,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}

func toReconciliationResponse(receipt *procurement.ReceiptConfirmation, invoiceID uuid.UUID, result *matching.MatchResult) *ReconciliationResponse {
	return &ReconciliationResponse{
		ReceiptID:           receipt.ID,
		InvoiceID:           invoiceID,
		PurchaseOrderID:     receipt.PurchaseOrderID,
		MatchResultResponse: ToMatchResultResponse(result),
		ReconciledAt:        receipt.ReconciledAt,
	}
}

// toMatchItems converts inline items, defaulting amounts to quantity x rate
func toMatchItems(inputs []MatchItemInput) []matching.ItemView {
	items := make([]matching.ItemView, len(inputs))
	for i, in := range inputs {
		amount := in.Quantity.Mul(in.Rate)
		if in.Amount != nil {
			amount = *in.Amount
		}
		items[i] = matching.ItemView{
			LineRef:     strings.TrimSpace(in.LineRef),
			Description: in.Description,
			Quantity:    in.Quantity,
			Rate:        in.Rate,
			Amount:      amount,
		}
	}
	return items
}

func documentTotal(doc *MatchDocumentInput, items []matching.ItemView) decimal.Decimal {
	if doc.TotalValue != nil {
		return *doc.TotalValue
	}
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Amount)
	}
	return total
}

// ToMatchViews converts inline documents; absent documents stay nil so the
// matcher can report them.
func (r MatchRequest) ToMatchViews() (*matching.PurchaseOrderView, *matching.ReceiptView, *matching.InvoiceView) {
	var (
		po      *matching.PurchaseOrderView
		receipt *matching.ReceiptView
		invoice *matching.InvoiceView
	)
	if r.PurchaseOrder != nil {
		items := toMatchItems(r.PurchaseOrder.Items)
		po = &matching.PurchaseOrderView{
			ReferenceNumber: r.PurchaseOrder.ReferenceNumber,
			PartyIdentity:   r.PurchaseOrder.PartyIdentity,
			Items:           items,
			TotalValue:      documentTotal(r.PurchaseOrder, items),
		}
	}
	if r.Receipt != nil {
		receipt = &matching.ReceiptView{
			PurchaseOrderReference: r.Receipt.ReferenceNumber,
			Items:                  toMatchItems(r.Receipt.Items),
		}
	}
	if r.Invoice != nil {
		items := toMatchItems(r.Invoice.Items)
		invoice = &matching.InvoiceView{
			PurchaseOrderReference: r.Invoice.ReferenceNumber,
			PartyIdentity:          r.Invoice.PartyIdentity,
			Items:                  items,
			TotalValue:             documentTotal(r.Invoice, items),
		}
	}
	return po, receipt, invoice
}
