package procurement

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/gstbilling/internal/domain/matching"
	"github.com/erp/gstbilling/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MatchStatus is the reconciliation state stored on a receipt confirmation
type MatchStatus string

const (
	MatchStatusPending          MatchStatus = "PENDING"
	MatchStatusMatched          MatchStatus = "MATCHED"
	MatchStatusPartiallyMatched MatchStatus = "PARTIALLY_MATCHED"
	MatchStatusMismatched       MatchStatus = "MISMATCHED"
)

// IsValid checks if the match status is valid
func (s MatchStatus) IsValid() bool {
	switch s {
	case MatchStatusPending, MatchStatusMatched, MatchStatusPartiallyMatched, MatchStatusMismatched:
		return true
	}
	return false
}

// ReceiptItem records what was received for one purchase order line
type ReceiptItem struct {
	ID               uuid.UUID
	ReceiptID        uuid.UUID
	LineRef          string
	Description      string
	ReceivedQuantity decimal.Decimal
	AcceptedQuantity decimal.Decimal // ReceivedQuantity minus rejected goods
	Rate             decimal.Decimal
}

// RejectedQuantity returns the quantity received but not accepted
func (i ReceiptItem) RejectedQuantity() decimal.Decimal {
	return i.ReceivedQuantity.Sub(i.AcceptedQuantity)
}

// ReceiptConfirmation is the goods-receipt document for a purchase order.
// It also stores the latest three-way match outcome.
type ReceiptConfirmation struct {
	shared.TenantAggregateRoot
	ReceiptNumber       string
	PurchaseOrderID     uuid.UUID
	PurchaseOrderNumber string
	Items               []ReceiptItem
	MatchStatus         MatchStatus
	MatchedItems        int
	TotalItems          int
	Discrepancies       []matching.Discrepancy
	MatchSummary        string
	InvoiceID           *uuid.UUID
	ReconciledAt        *time.Time
}

// NewReceiptConfirmation creates a receipt for the given purchase order
func NewReceiptConfirmation(tenantID uuid.UUID, receiptNumber string, order *PurchaseOrder) (*ReceiptConfirmation, error) {
	receiptNumber = strings.TrimSpace(receiptNumber)
	if receiptNumber == "" {
		return nil, shared.NewDomainError("INVALID_RECEIPT_NUMBER", "Receipt number cannot be empty")
	}
	if order == nil {
		return nil, shared.NewDomainError("INVALID_PURCHASE_ORDER", "Purchase order is required")
	}
	if !order.OwnedBy(tenantID) {
		return nil, shared.NewDomainError("INVALID_PURCHASE_ORDER", "Purchase order belongs to another tenant")
	}

	return &ReceiptConfirmation{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		ReceiptNumber:       receiptNumber,
		PurchaseOrderID:     order.ID,
		PurchaseOrderNumber: order.OrderNumber,
		Items:               make([]ReceiptItem, 0),
		MatchStatus:         MatchStatusPending,
		Discrepancies:       make([]matching.Discrepancy, 0),
	}, nil
}

// AddItem records a received line. accepted may not exceed received.
func (r *ReceiptConfirmation) AddItem(lineRef, description string, received, accepted, rate decimal.Decimal) (*ReceiptItem, error) {
	if strings.TrimSpace(description) == "" && strings.TrimSpace(lineRef) == "" {
		return nil, shared.NewDomainError("INVALID_ITEM", "Receipt item needs a line reference or a description")
	}
	if received.IsNegative() || accepted.IsNegative() {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantities cannot be negative")
	}
	if accepted.GreaterThan(received) {
		return nil, shared.NewDomainError("INVALID_QUANTITY",
			fmt.Sprintf("Accepted quantity %s exceeds received quantity %s", accepted.String(), received.String()))
	}
	if rate.IsNegative() {
		return nil, shared.NewDomainError("INVALID_RATE", "Rate cannot be negative")
	}

	r.Items = append(r.Items, ReceiptItem{
		ID:               uuid.New(),
		ReceiptID:        r.ID,
		LineRef:          strings.TrimSpace(lineRef),
		Description:      strings.TrimSpace(description),
		ReceivedQuantity: received,
		AcceptedQuantity: accepted,
		Rate:             rate,
	})
	r.Touch()
	return &r.Items[len(r.Items)-1], nil
}

// ApplyMatchResult replaces the stored reconciliation outcome. Discrepancies
// are not cumulative: each run overwrites the previous list.
func (r *ReceiptConfirmation) ApplyMatchResult(invoiceID uuid.UUID, result *matching.MatchResult) error {
	if result == nil {
		return shared.NewDomainError("INVALID_MATCH_RESULT", "Match result is required")
	}
	status := MatchStatus(result.Status)
	if !status.IsValid() || status == MatchStatusPending {
		return shared.NewDomainError("INVALID_MATCH_RESULT", fmt.Sprintf("Unknown match status %s", result.Status))
	}

	now := time.Now()
	discrepancies := make([]matching.Discrepancy, len(result.Discrepancies))
	copy(discrepancies, result.Discrepancies)

	r.MatchStatus = status
	r.MatchedItems = result.MatchedItems
	r.TotalItems = result.TotalItems
	r.Discrepancies = discrepancies
	r.MatchSummary = result.Summary
	r.InvoiceID = &invoiceID
	r.ReconciledAt = &now
	r.Touch()
	return nil
}

// IsReconciled returns true once a match result has been stored
func (r *ReceiptConfirmation) IsReconciled() bool {
	return r.MatchStatus != MatchStatusPending
}

// ToView returns the immutable snapshot used by the matcher. Quantities
// are accepted quantities.
func (r *ReceiptConfirmation) ToView() *matching.ReceiptView {
	view := &matching.ReceiptView{
		PurchaseOrderReference: r.PurchaseOrderNumber,
		Items:                  make([]matching.ItemView, len(r.Items)),
	}
	for i, item := range r.Items {
		view.Items[i] = matching.ItemView{
			LineRef:     item.LineRef,
			Description: item.Description,
			Quantity:    item.AcceptedQuantity,
			Rate:        item.Rate,
			Amount:      item.AcceptedQuantity.Mul(item.Rate),
		}
	}
	return view
}
