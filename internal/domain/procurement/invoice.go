package procurement

import (
	"strings"

	"github.com/erp/gstbilling/internal/domain/matching"
	"github.com/erp/gstbilling/internal/domain/shared"
	"github.com/erp/gstbilling/internal/domain/tax"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceItem is a persisted invoice line with its stored tax figures
type InvoiceItem struct {
	ID                 uuid.UUID
	InvoiceID          uuid.UUID
	LineNo             int
	LineRef            string // purchase order line reference, optional
	Description        string
	ClassificationCode string
	Quantity           decimal.Decimal
	Unit               string
	UnitRate           decimal.Decimal
	TaxRatePercent     decimal.Decimal
	DiscountType       tax.DiscountType
	DiscountValue      decimal.Decimal
	BaseAmount         decimal.Decimal
	DiscountAmount     decimal.Decimal
	TaxableAmount      decimal.Decimal
	TaxAmount          decimal.Decimal
	DualAmount1        decimal.Decimal
	DualAmount2        decimal.Decimal
	SingleAmount       decimal.Decimal
	TotalAmount        decimal.Decimal
}

// InvoiceLine is the input for one invoice line
type InvoiceLine struct {
	tax.LineItem
	LineRef string
}

// Invoice is a tax invoice issued by the seller. Its tax fields are always
// produced by the tax calculator; they are never edited directly.
type Invoice struct {
	shared.TenantAggregateRoot
	InvoiceNumber       string
	SellerTaxID         string
	BuyerTaxID          *string
	BuyerName           string
	PurchaseOrderID     *uuid.UUID
	PurchaseOrderNumber string
	TransactionKind     tax.TransactionKind
	Split               tax.Split
	SellerRegion        string
	BuyerRegion         string
	Items               []InvoiceItem
	Subtotal            decimal.Decimal
	TotalDiscount       decimal.Decimal
	TaxableAmount       decimal.Decimal
	DualAmount1         decimal.Decimal
	DualAmount2         decimal.Decimal
	SingleAmount        decimal.Decimal
	TotalTax            decimal.Decimal
	GrandTotal          decimal.Decimal
	MatchStatus         MatchStatus
}

// NewInvoice creates an invoice header without lines
func NewInvoice(tenantID uuid.UUID, invoiceNumber, sellerTaxID string, buyerTaxID *string, buyerName string) (*Invoice, error) {
	invoiceNumber = strings.TrimSpace(invoiceNumber)
	if invoiceNumber == "" {
		return nil, shared.NewDomainError("INVALID_INVOICE_NUMBER", "Invoice number cannot be empty")
	}
	if len(invoiceNumber) > 50 {
		return nil, shared.NewDomainError("INVALID_INVOICE_NUMBER", "Invoice number cannot exceed 50 characters")
	}

	var buyer *string
	if buyerTaxID != nil && strings.TrimSpace(*buyerTaxID) != "" {
		normalized := strings.ToUpper(strings.TrimSpace(*buyerTaxID))
		buyer = &normalized
	}

	return &Invoice{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		InvoiceNumber:       invoiceNumber,
		SellerTaxID:         strings.ToUpper(strings.TrimSpace(sellerTaxID)),
		BuyerTaxID:          buyer,
		BuyerName:           strings.TrimSpace(buyerName),
		Items:               make([]InvoiceItem, 0),
		MatchStatus:         MatchStatusPending,
	}, nil
}

// ReferencePurchaseOrder links the invoice to the purchase order it bills
func (inv *Invoice) ReferencePurchaseOrder(order *PurchaseOrder) {
	if order == nil {
		inv.PurchaseOrderID = nil
		inv.PurchaseOrderNumber = ""
		return
	}
	id := order.ID
	inv.PurchaseOrderID = &id
	inv.PurchaseOrderNumber = order.OrderNumber
}

// HasPurchaseOrder returns true if the invoice references a purchase order
func (inv *Invoice) HasPurchaseOrder() bool {
	return inv.PurchaseOrderID != nil
}

// ApplyBreakdown replaces lines and totals with a fresh computation.
// lineRefs are matched to breakdown items by position.
func (inv *Invoice) ApplyBreakdown(b *tax.Breakdown, lineRefs []string) error {
	if b == nil {
		return shared.NewDomainError("INVALID_BREAKDOWN", "Tax breakdown is required")
	}

	items := make([]InvoiceItem, len(b.Items))
	for i, computed := range b.Items {
		rounded := computed.Rounded()
		ref := ""
		if i < len(lineRefs) {
			ref = lineRefs[i]
		}
		items[i] = InvoiceItem{
			ID:                 uuid.New(),
			InvoiceID:          inv.ID,
			LineNo:             i + 1,
			LineRef:            ref,
			Description:        computed.Description,
			ClassificationCode: computed.ClassificationCode,
			Quantity:           computed.Quantity,
			Unit:               computed.Unit,
			UnitRate:           computed.UnitRate,
			TaxRatePercent:     computed.TaxRatePercent,
			DiscountType:       computed.DiscountType,
			DiscountValue:      computed.DiscountValue,
			BaseAmount:         rounded.BaseAmount,
			DiscountAmount:     rounded.DiscountAmount,
			TaxableAmount:      rounded.TaxableAmount,
			TaxAmount:          rounded.TaxAmount,
			DualAmount1:        rounded.DualAmount1,
			DualAmount2:        rounded.DualAmount2,
			SingleAmount:       rounded.SingleAmount,
			TotalAmount:        rounded.TotalAmount,
		}
	}

	inv.Items = items
	inv.TransactionKind = b.Context.Kind
	inv.Split = b.Context.Split
	inv.SellerRegion = b.Context.SellerRegion
	inv.BuyerRegion = b.Context.BuyerRegion
	inv.Subtotal = b.Totals.Subtotal
	inv.TotalDiscount = b.Totals.TotalDiscount
	inv.TaxableAmount = b.Totals.TaxableAmount
	inv.DualAmount1 = b.Totals.DualAmount1
	inv.DualAmount2 = b.Totals.DualAmount2
	inv.SingleAmount = b.Totals.SingleAmount
	inv.TotalTax = b.Totals.TotalTax
	inv.GrandTotal = b.Totals.GrandTotal
	inv.Touch()
	return nil
}

// SetMatchStatus records the outcome of the latest reconciliation
func (inv *Invoice) SetMatchStatus(status MatchStatus) {
	inv.MatchStatus = status
	inv.Touch()
}

// BuyerIdentity returns the buyer tax identifier or an empty string
func (inv *Invoice) BuyerIdentity() string {
	if inv.BuyerTaxID == nil {
		return ""
	}
	return *inv.BuyerTaxID
}

// ToView returns the immutable snapshot used by the matcher. Line and
// document amounts are pre-tax taxable amounts so they compare against
// purchase order values.
func (inv *Invoice) ToView() *matching.InvoiceView {
	view := &matching.InvoiceView{
		PurchaseOrderReference: inv.PurchaseOrderNumber,
		PartyIdentity:          inv.BuyerIdentity(),
		Items:                  make([]matching.ItemView, len(inv.Items)),
		TotalValue:             inv.TaxableAmount,
	}
	for i, item := range inv.Items {
		view.Items[i] = matching.ItemView{
			LineRef:     item.LineRef,
			Description: item.Description,
			Quantity:    item.Quantity,
			Rate:        item.UnitRate,
			Amount:      item.TaxableAmount,
		}
	}
	return view
}

// SplitLines separates calculator input from line references
func SplitLines(lines []InvoiceLine) ([]tax.LineItem, []string) {
	items := make([]tax.LineItem, len(lines))
	refs := make([]string, len(lines))
	for i, l := range lines {
		items[i] = l.LineItem
		refs[i] = strings.TrimSpace(l.LineRef)
	}
	return items, refs
}
