package procurement

import (
	"fmt"
	"strings"

	"github.com/erp/gstbilling/internal/domain/matching"
	"github.com/erp/gstbilling/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PurchaseOrderStatus represents the lifecycle of a purchase order
type PurchaseOrderStatus string

const (
	PurchaseOrderStatusOpen     PurchaseOrderStatus = "OPEN"
	PurchaseOrderStatusReceived PurchaseOrderStatus = "RECEIVED"
	PurchaseOrderStatusInvoiced PurchaseOrderStatus = "INVOICED"
)

// IsValid checks if the status is a valid PurchaseOrderStatus
func (s PurchaseOrderStatus) IsValid() bool {
	switch s {
	case PurchaseOrderStatusOpen, PurchaseOrderStatusReceived, PurchaseOrderStatusInvoiced:
		return true
	}
	return false
}

// String returns the string representation of PurchaseOrderStatus
func (s PurchaseOrderStatus) String() string {
	return string(s)
}

// CanTransitionTo checks if the status can transition to the target status
func (s PurchaseOrderStatus) CanTransitionTo(target PurchaseOrderStatus) bool {
	switch s {
	case PurchaseOrderStatusOpen:
		return target == PurchaseOrderStatusReceived || target == PurchaseOrderStatusInvoiced
	case PurchaseOrderStatusReceived:
		return target == PurchaseOrderStatusReceived || target == PurchaseOrderStatusInvoiced
	case PurchaseOrderStatusInvoiced:
		return target == PurchaseOrderStatusInvoiced
	}
	return false
}

// PurchaseOrderItem represents a line item in a purchase order
type PurchaseOrderItem struct {
	ID                 uuid.UUID
	OrderID            uuid.UUID
	LineRef            string // stable reference propagated to receipt and invoice lines
	Description        string
	ClassificationCode string
	Quantity           decimal.Decimal
	Unit               string
	Rate               decimal.Decimal
	Amount             decimal.Decimal // Quantity * Rate
}

// PurchaseOrder is the buyer's commitment document listing ordered items
// and agreed rates.
type PurchaseOrder struct {
	shared.TenantAggregateRoot
	OrderNumber string
	PartyName   string
	PartyTaxID  string // counter-party tax identifier, optional
	Items       []PurchaseOrderItem
	TotalAmount decimal.Decimal
	Status      PurchaseOrderStatus
	InvoiceID   *uuid.UUID // invoice linked by reconciliation
}

// NewPurchaseOrder creates a new open purchase order
func NewPurchaseOrder(tenantID uuid.UUID, orderNumber, partyName, partyTaxID string) (*PurchaseOrder, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return nil, shared.NewDomainError("INVALID_ORDER_NUMBER", "Order number cannot be empty")
	}
	if len(orderNumber) > 50 {
		return nil, shared.NewDomainError("INVALID_ORDER_NUMBER", "Order number cannot exceed 50 characters")
	}
	if strings.TrimSpace(partyName) == "" {
		return nil, shared.NewDomainError("INVALID_PARTY", "Party name cannot be empty")
	}

	return &PurchaseOrder{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		OrderNumber:         orderNumber,
		PartyName:           strings.TrimSpace(partyName),
		PartyTaxID:          strings.ToUpper(strings.TrimSpace(partyTaxID)),
		Items:               make([]PurchaseOrderItem, 0),
		TotalAmount:         decimal.Zero,
		Status:              PurchaseOrderStatusOpen,
	}, nil
}

// AddItem appends a line and assigns it the next line reference
func (o *PurchaseOrder) AddItem(description, classificationCode, unit string, quantity, rate decimal.Decimal) (*PurchaseOrderItem, error) {
	if o.Status != PurchaseOrderStatusOpen {
		return nil, shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot add items to a purchase order in %s status", o.Status))
	}
	if strings.TrimSpace(description) == "" {
		return nil, shared.NewDomainError("INVALID_DESCRIPTION", "Item description cannot be empty")
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	}
	if rate.IsNegative() {
		return nil, shared.NewDomainError("INVALID_RATE", "Rate cannot be negative")
	}

	item := PurchaseOrderItem{
		ID:                 uuid.New(),
		OrderID:            o.ID,
		LineRef:            fmt.Sprintf("L%d", len(o.Items)+1),
		Description:        strings.TrimSpace(description),
		ClassificationCode: classificationCode,
		Quantity:           quantity,
		Unit:               unit,
		Rate:               rate,
		Amount:             quantity.Mul(rate),
	}
	o.Items = append(o.Items, item)
	o.recalculateTotal()
	o.Touch()
	return &o.Items[len(o.Items)-1], nil
}

// ItemByLineRef finds a line by its reference
func (o *PurchaseOrder) ItemByLineRef(lineRef string) *PurchaseOrderItem {
	for i := range o.Items {
		if o.Items[i].LineRef == lineRef {
			return &o.Items[i]
		}
	}
	return nil
}

// MarkReceived records that goods were received against this order
func (o *PurchaseOrder) MarkReceived() error {
	return o.transitionTo(PurchaseOrderStatusReceived)
}

// LinkInvoice links the invoice that was reconciled against this order
func (o *PurchaseOrder) LinkInvoice(invoiceID uuid.UUID) error {
	if invoiceID == uuid.Nil {
		return shared.NewDomainError("INVALID_INVOICE", "Invoice ID cannot be empty")
	}
	if err := o.transitionTo(PurchaseOrderStatusInvoiced); err != nil {
		return err
	}
	o.InvoiceID = &invoiceID
	return nil
}

func (o *PurchaseOrder) transitionTo(target PurchaseOrderStatus) error {
	if !o.Status.CanTransitionTo(target) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot move purchase order from %s to %s", o.Status, target))
	}
	o.Status = target
	o.Touch()
	return nil
}

func (o *PurchaseOrder) recalculateTotal() {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Amount)
	}
	o.TotalAmount = total
}

// ToView returns the immutable snapshot used by the matcher
func (o *PurchaseOrder) ToView() *matching.PurchaseOrderView {
	view := &matching.PurchaseOrderView{
		ReferenceNumber: o.OrderNumber,
		PartyIdentity:   o.PartyTaxID,
		Items:           make([]matching.ItemView, len(o.Items)),
		TotalValue:      o.TotalAmount,
	}
	for i, item := range o.Items {
		view.Items[i] = matching.ItemView{
			LineRef:     item.LineRef,
			Description: item.Description,
			Quantity:    item.Quantity,
			Rate:        item.Rate,
			Amount:      item.Amount,
		}
	}
	return view
}
