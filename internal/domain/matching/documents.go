package matching

import "github.com/shopspring/decimal"

// ItemView is one line of a document as seen by the matcher
type ItemView struct {
	LineRef     string          // stable line reference assigned on the purchase order, optional
	Description string          // free text, used for the fallback key
	Quantity    decimal.Decimal // ordered, accepted or invoiced quantity depending on the document
	Rate        decimal.Decimal
	Amount      decimal.Decimal
}

// PurchaseOrderView is an immutable snapshot of a purchase order
type PurchaseOrderView struct {
	ReferenceNumber string
	PartyIdentity   string // counter-party tax identifier, optional
	Items           []ItemView
	TotalValue      decimal.Decimal
}

// ReceiptView is an immutable snapshot of a goods-receipt confirmation.
// Item quantities are accepted quantities.
type ReceiptView struct {
	PurchaseOrderReference string
	Items                  []ItemView
}

// InvoiceView is an immutable snapshot of a vendor invoice
type InvoiceView struct {
	PurchaseOrderReference string // optional
	PartyIdentity          string
	Items                  []ItemView
	TotalValue             decimal.Decimal
}
