package models

import (
	"encoding/json"
	"time"

	"github.com/erp/gstbilling/internal/domain/matching"
	"github.com/erp/gstbilling/internal/domain/procurement"
	"github.com/erp/gstbilling/internal/domain/tax"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ==================== Purchase order ====================

// PurchaseOrderModel is the persistence model for the PurchaseOrder aggregate root.
type PurchaseOrderModel struct {
	AggregateModel
	TenantID    uuid.UUID                       `gorm:"type:uuid;not null;uniqueIndex:idx_purchase_order_tenant_number,priority:1"`
	OrderNumber string                          `gorm:"type:varchar(50);not null;uniqueIndex:idx_purchase_order_tenant_number,priority:2"`
	PartyName   string                          `gorm:"type:varchar(200);not null"`
	PartyTaxID  string                          `gorm:"type:varchar(15)"`
	Items       []PurchaseOrderItemModel        `gorm:"foreignKey:OrderID;references:ID"`
	TotalAmount decimal.Decimal                 `gorm:"type:decimal(18,4);not null;default:0"`
	Status      procurement.PurchaseOrderStatus `gorm:"type:varchar(20);not null;default:'OPEN'"`
	InvoiceID   *uuid.UUID                      `gorm:"type:uuid;index"`
}

// TableName returns the table name for GORM
func (PurchaseOrderModel) TableName() string {
	return "purchase_orders"
}

// ToDomain converts the persistence model to a domain PurchaseOrder
func (m *PurchaseOrderModel) ToDomain() *procurement.PurchaseOrder {
	order := &procurement.PurchaseOrder{
		TenantAggregateRoot: m.root(m.TenantID),
		OrderNumber:         m.OrderNumber,
		PartyName:           m.PartyName,
		PartyTaxID:          m.PartyTaxID,
		TotalAmount:         m.TotalAmount,
		Status:              m.Status,
		InvoiceID:           m.InvoiceID,
		Items:               make([]procurement.PurchaseOrderItem, len(m.Items)),
	}
	for i, item := range m.Items {
		order.Items[i] = item.ToDomain()
	}
	return order
}

// PurchaseOrderModelFromDomain creates a persistence model from a domain PurchaseOrder.
// Items are not copied; repositories store them separately.
func PurchaseOrderModelFromDomain(o *procurement.PurchaseOrder) *PurchaseOrderModel {
	m := &PurchaseOrderModel{
		OrderNumber: o.OrderNumber,
		PartyName:   o.PartyName,
		PartyTaxID:  o.PartyTaxID,
		TotalAmount: o.TotalAmount,
		Status:      o.Status,
		InvoiceID:   o.InvoiceID,
	}
	m.AggregateModel = aggregateModel(o.TenantAggregateRoot)
	m.TenantID = o.TenantID
	return m
}

// PurchaseOrderItemModel is the persistence model for a purchase order line.
// Lines are ordered by line_no; line_ref is the stable reference quoted by
// receipts and invoices.
type PurchaseOrderItemModel struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primary_key"`
	OrderID            uuid.UUID       `gorm:"type:uuid;not null;index;uniqueIndex:idx_purchase_order_item_ref,priority:1"`
	LineNo             int             `gorm:"not null"`
	LineRef            string          `gorm:"type:varchar(20);not null;uniqueIndex:idx_purchase_order_item_ref,priority:2"`
	Description        string          `gorm:"type:varchar(500);not null"`
	ClassificationCode string          `gorm:"type:varchar(20)"`
	Unit               string          `gorm:"type:varchar(20)"`
	Quantity           decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Rate               decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Amount             decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (PurchaseOrderItemModel) TableName() string {
	return "purchase_order_items"
}

// ToDomain converts the persistence model to a domain PurchaseOrderItem
func (m *PurchaseOrderItemModel) ToDomain() procurement.PurchaseOrderItem {
	return procurement.PurchaseOrderItem{
		ID:                 m.ID,
		OrderID:            m.OrderID,
		LineRef:            m.LineRef,
		Description:        m.Description,
		ClassificationCode: m.ClassificationCode,
		Quantity:           m.Quantity,
		Unit:               m.Unit,
		Rate:               m.Rate,
		Amount:             m.Amount,
	}
}

// PurchaseOrderItemModelFromDomain creates a persistence model for the line at position lineNo
func PurchaseOrderItemModelFromDomain(i *procurement.PurchaseOrderItem, lineNo int) *PurchaseOrderItemModel {
	return &PurchaseOrderItemModel{
		ID:                 i.ID,
		OrderID:            i.OrderID,
		LineNo:             lineNo,
		LineRef:            i.LineRef,
		Description:        i.Description,
		ClassificationCode: i.ClassificationCode,
		Unit:               i.Unit,
		Quantity:           i.Quantity,
		Rate:               i.Rate,
		Amount:             i.Amount,
	}
}

// ==================== Receipt confirmation ====================

// ReceiptConfirmationModel is the persistence model for a goods receipt and
// its latest three-way match outcome.
type ReceiptConfirmationModel struct {
	AggregateModel
	TenantID            uuid.UUID               `gorm:"type:uuid;not null;uniqueIndex:idx_receipt_tenant_number,priority:1"`
	ReceiptNumber       string                  `gorm:"type:varchar(50);not null;uniqueIndex:idx_receipt_tenant_number,priority:2"`
	PurchaseOrderID     uuid.UUID               `gorm:"type:uuid;not null;index"`
	PurchaseOrderNumber string                  `gorm:"type:varchar(50);not null"`
	Items               []ReceiptItemModel      `gorm:"foreignKey:ReceiptID;references:ID"`
	MatchStatus         procurement.MatchStatus `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	MatchedItems        int                     `gorm:"not null;default:0"`
	TotalItems          int                     `gorm:"not null;default:0"`
	Discrepancies       datatypes.JSON          `gorm:"type:jsonb"`
	MatchSummary        string                  `gorm:"type:varchar(500)"`
	InvoiceID           *uuid.UUID              `gorm:"type:uuid;index"`
	ReconciledAt        *time.Time
}

// TableName returns the table name for GORM
func (ReceiptConfirmationModel) TableName() string {
	return "receipt_confirmations"
}

// ToDomain converts the persistence model to a domain ReceiptConfirmation
func (m *ReceiptConfirmationModel) ToDomain() (*procurement.ReceiptConfirmation, error) {
	discrepancies, err := DecodeDiscrepancies(m.Discrepancies)
	if err != nil {
		return nil, err
	}
	receipt := &procurement.ReceiptConfirmation{
		TenantAggregateRoot: m.root(m.TenantID),
		ReceiptNumber:       m.ReceiptNumber,
		PurchaseOrderID:     m.PurchaseOrderID,
		PurchaseOrderNumber: m.PurchaseOrderNumber,
		MatchStatus:         m.MatchStatus,
		MatchedItems:        m.MatchedItems,
		TotalItems:          m.TotalItems,
		Discrepancies:       discrepancies,
		MatchSummary:        m.MatchSummary,
		InvoiceID:           m.InvoiceID,
		ReconciledAt:        m.ReconciledAt,
		Items:               make([]procurement.ReceiptItem, len(m.Items)),
	}
	for i, item := range m.Items {
		receipt.Items[i] = item.ToDomain()
	}
	return receipt, nil
}

// ReceiptConfirmationModelFromDomain creates a persistence model from a domain ReceiptConfirmation
func ReceiptConfirmationModelFromDomain(r *procurement.ReceiptConfirmation) (*ReceiptConfirmationModel, error) {
	discrepancies, err := EncodeDiscrepancies(r.Discrepancies)
	if err != nil {
		return nil, err
	}
	m := &ReceiptConfirmationModel{
		ReceiptNumber:       r.ReceiptNumber,
		PurchaseOrderID:     r.PurchaseOrderID,
		PurchaseOrderNumber: r.PurchaseOrderNumber,
		MatchStatus:         r.MatchStatus,
		MatchedItems:        r.MatchedItems,
		TotalItems:          r.TotalItems,
		Discrepancies:       discrepancies,
		MatchSummary:        r.MatchSummary,
		InvoiceID:           r.InvoiceID,
		ReconciledAt:        r.ReconciledAt,
	}
	m.AggregateModel = aggregateModel(r.TenantAggregateRoot)
	m.TenantID = r.TenantID
	return m, nil
}

// ReceiptItemModel is the persistence model for a receipt line
type ReceiptItemModel struct {
	ID               uuid.UUID       `gorm:"type:uuid;primary_key"`
	ReceiptID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	LineNo           int             `gorm:"not null"`
	LineRef          string          `gorm:"type:varchar(20)"`
	Description      string          `gorm:"type:varchar(500)"`
	ReceivedQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	AcceptedQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Rate             decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (ReceiptItemModel) TableName() string {
	return "receipt_items"
}

// ToDomain converts the persistence model to a domain ReceiptItem
func (m *ReceiptItemModel) ToDomain() procurement.ReceiptItem {
	return procurement.ReceiptItem{
		ID:               m.ID,
		ReceiptID:        m.ReceiptID,
		LineRef:          m.LineRef,
		Description:      m.Description,
		ReceivedQuantity: m.ReceivedQuantity,
		AcceptedQuantity: m.AcceptedQuantity,
		Rate:             m.Rate,
	}
}

// ReceiptItemModelFromDomain creates a persistence model for the line at position lineNo
func ReceiptItemModelFromDomain(i *procurement.ReceiptItem, lineNo int) *ReceiptItemModel {
	return &ReceiptItemModel{
		ID:               i.ID,
		ReceiptID:        i.ReceiptID,
		LineNo:           lineNo,
		LineRef:          i.LineRef,
		Description:      i.Description,
		ReceivedQuantity: i.ReceivedQuantity,
		AcceptedQuantity: i.AcceptedQuantity,
		Rate:             i.Rate,
	}
}

// EncodeDiscrepancies serializes discrepancies for the JSON column
func EncodeDiscrepancies(ds []matching.Discrepancy) (datatypes.JSON, error) {
	if ds == nil {
		ds = []matching.Discrepancy{}
	}
	raw, err := json.Marshal(ds)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

// DecodeDiscrepancies reads discrepancies from the JSON column. An empty
// column decodes to an empty list.
func DecodeDiscrepancies(raw datatypes.JSON) ([]matching.Discrepancy, error) {
	ds := make([]matching.Discrepancy, 0)
	if len(raw) == 0 {
		return ds, nil
	}
	if err := json.Unmarshal(raw, &ds); err != nil {
		return nil, err
	}
	return ds, nil
}

// ==================== Invoice ====================

// InvoiceModel is the persistence model for the Invoice aggregate root
type InvoiceModel struct {
	AggregateModel
	TenantID            uuid.UUID               `gorm:"type:uuid;not null;uniqueIndex:idx_invoice_tenant_number,priority:1"`
	InvoiceNumber       string                  `gorm:"type:varchar(50);not null;uniqueIndex:idx_invoice_tenant_number,priority:2"`
	SellerTaxID         string                  `gorm:"type:varchar(15);not null"`
	BuyerTaxID          *string                 `gorm:"type:varchar(15)"`
	BuyerName           string                  `gorm:"type:varchar(200)"`
	PurchaseOrderID     *uuid.UUID              `gorm:"type:uuid;index"`
	PurchaseOrderNumber string                  `gorm:"type:varchar(50)"`
	TransactionKind     tax.TransactionKind     `gorm:"type:varchar(30);not null"`
	Split               tax.Split               `gorm:"type:varchar(10);not null"`
	SellerRegion        string                  `gorm:"type:varchar(100);not null"`
	BuyerRegion         string                  `gorm:"type:varchar(100);not null"`
	Items               []InvoiceItemModel      `gorm:"foreignKey:InvoiceID;references:ID"`
	Subtotal            decimal.Decimal         `gorm:"type:decimal(18,2);not null;default:0"`
	TotalDiscount       decimal.Decimal         `gorm:"type:decimal(18,2);not null;default:0"`
	TaxableAmount       decimal.Decimal         `gorm:"type:decimal(18,2);not null;default:0"`
	DualAmount1         decimal.Decimal         `gorm:"type:decimal(18,2);not null;default:0"`
	DualAmount2         decimal.Decimal         `gorm:"type:decimal(18,2);not null;default:0"`
	SingleAmount        decimal.Decimal         `gorm:"type:decimal(18,2);not null;default:0"`
	TotalTax            decimal.Decimal         `gorm:"type:decimal(18,2);not null;default:0"`
	GrandTotal          decimal.Decimal         `gorm:"type:decimal(18,2);not null;default:0"`
	MatchStatus         procurement.MatchStatus `gorm:"type:varchar(20);not null;default:'PENDING'"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice
func (m *InvoiceModel) ToDomain() *procurement.Invoice {
	inv := &procurement.Invoice{
		TenantAggregateRoot: m.root(m.TenantID),
		InvoiceNumber:       m.InvoiceNumber,
		SellerTaxID:         m.SellerTaxID,
		BuyerTaxID:          m.BuyerTaxID,
		BuyerName:           m.BuyerName,
		PurchaseOrderID:     m.PurchaseOrderID,
		PurchaseOrderNumber: m.PurchaseOrderNumber,
		TransactionKind:     m.TransactionKind,
		Split:               m.Split,
		SellerRegion:        m.SellerRegion,
		BuyerRegion:         m.BuyerRegion,
		Subtotal:            m.Subtotal,
		TotalDiscount:       m.TotalDiscount,
		TaxableAmount:       m.TaxableAmount,
		DualAmount1:         m.DualAmount1,
		DualAmount2:         m.DualAmount2,
		SingleAmount:        m.SingleAmount,
		TotalTax:            m.TotalTax,
		GrandTotal:          m.GrandTotal,
		MatchStatus:         m.MatchStatus,
		Items:               make([]procurement.InvoiceItem, len(m.Items)),
	}
	for i, item := range m.Items {
		inv.Items[i] = item.ToDomain()
	}
	return inv
}

// InvoiceModelFromDomain creates a persistence model from a domain Invoice
func InvoiceModelFromDomain(inv *procurement.Invoice) *InvoiceModel {
	m := &InvoiceModel{
		InvoiceNumber:       inv.InvoiceNumber,
		SellerTaxID:         inv.SellerTaxID,
		BuyerTaxID:          inv.BuyerTaxID,
		BuyerName:           inv.BuyerName,
		PurchaseOrderID:     inv.PurchaseOrderID,
		PurchaseOrderNumber: inv.PurchaseOrderNumber,
		TransactionKind:     inv.TransactionKind,
		Split:               inv.Split,
		SellerRegion:        inv.SellerRegion,
		BuyerRegion:         inv.BuyerRegion,
		Subtotal:            inv.Subtotal,
		TotalDiscount:       inv.TotalDiscount,
		TaxableAmount:       inv.TaxableAmount,
		DualAmount1:         inv.DualAmount1,
		DualAmount2:         inv.DualAmount2,
		SingleAmount:        inv.SingleAmount,
		TotalTax:            inv.TotalTax,
		GrandTotal:          inv.GrandTotal,
		MatchStatus:         inv.MatchStatus,
	}
	m.AggregateModel = aggregateModel(inv.TenantAggregateRoot)
	m.TenantID = inv.TenantID
	return m
}

// InvoiceItemModel is the persistence model for an invoice line with its
// computed tax figures
type InvoiceItemModel struct {
	ID                 uuid.UUID        `gorm:"type:uuid;primary_key"`
	InvoiceID          uuid.UUID        `gorm:"type:uuid;not null;index"`
	LineNo             int              `gorm:"not null"`
	LineRef            string           `gorm:"type:varchar(20)"`
	Description        string           `gorm:"type:varchar(500);not null"`
	ClassificationCode string           `gorm:"type:varchar(20)"`
	Quantity           decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	Unit               string           `gorm:"type:varchar(20)"`
	UnitRate           decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	TaxRatePercent     decimal.Decimal  `gorm:"type:decimal(5,2);not null"`
	DiscountType       tax.DiscountType `gorm:"type:varchar(20)"`
	DiscountValue      decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	BaseAmount         decimal.Decimal  `gorm:"type:decimal(18,2);not null"`
	DiscountAmount     decimal.Decimal  `gorm:"type:decimal(18,2);not null"`
	TaxableAmount      decimal.Decimal  `gorm:"type:decimal(18,2);not null"`
	TaxAmount          decimal.Decimal  `gorm:"type:decimal(18,2);not null"`
	DualAmount1        decimal.Decimal  `gorm:"type:decimal(18,2);not null"`
	DualAmount2        decimal.Decimal  `gorm:"type:decimal(18,2);not null"`
	SingleAmount       decimal.Decimal  `gorm:"type:decimal(18,2);not null"`
	TotalAmount        decimal.Decimal  `gorm:"type:decimal(18,2);not null"`
}

// TableName returns the table name for GORM
func (InvoiceItemModel) TableName() string {
	return "invoice_items"
}

// ToDomain converts the persistence model to a domain InvoiceItem
func (m *InvoiceItemModel) ToDomain() procurement.InvoiceItem {
	return procurement.InvoiceItem{
		ID:                 m.ID,
		InvoiceID:          m.InvoiceID,
		LineNo:             m.LineNo,
		LineRef:            m.LineRef,
		Description:        m.Description,
		ClassificationCode: m.ClassificationCode,
		Quantity:           m.Quantity,
		Unit:               m.Unit,
		UnitRate:           m.UnitRate,
		TaxRatePercent:     m.TaxRatePercent,
		DiscountType:       m.DiscountType,
		DiscountValue:      m.DiscountValue,
		BaseAmount:         m.BaseAmount,
		DiscountAmount:     m.DiscountAmount,
		TaxableAmount:      m.TaxableAmount,
		TaxAmount:          m.TaxAmount,
		DualAmount1:        m.DualAmount1,
		DualAmount2:        m.DualAmount2,
		SingleAmount:       m.SingleAmount,
		TotalAmount:        m.TotalAmount,
	}
}

// InvoiceItemModelFromDomain creates a persistence model from a domain InvoiceItem
func InvoiceItemModelFromDomain(i *procurement.InvoiceItem) *InvoiceItemModel {
	return &InvoiceItemModel{
		ID:                 i.ID,
		InvoiceID:          i.InvoiceID,
		LineNo:             i.LineNo,
		LineRef:            i.LineRef,
		Description:        i.Description,
		ClassificationCode: i.ClassificationCode,
		Quantity:           i.Quantity,
		Unit:               i.Unit,
		UnitRate:           i.UnitRate,
		TaxRatePercent:     i.TaxRatePercent,
		DiscountType:       i.DiscountType,
		DiscountValue:      i.DiscountValue,
		BaseAmount:         i.BaseAmount,
		DiscountAmount:     i.DiscountAmount,
		TaxableAmount:      i.TaxableAmount,
		TaxAmount:          i.TaxAmount,
		DualAmount1:        i.DualAmount1,
		DualAmount2:        i.DualAmount2,
		SingleAmount:       i.SingleAmount,
		TotalAmount:        i.TotalAmount,
	}
}
