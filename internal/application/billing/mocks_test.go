package billing

import (
	"context"
	"testing"
	"time"

	"github.com/erp/gstbilling/internal/domain/procurement"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	testSellerMH = "27AAPFU0939F1ZV"
	testBuyerMH  = "27AAACR5055K1Z7"
	testBuyerTN  = "33AAPFU0939F1Z2"
)

var testTenantID = uuid.MustParse("11111111-1111-1111-1111-111111111111")

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func strPtr(s string) *string {
	return &s
}

// MockPurchaseOrderRepository is a mock implementation of PurchaseOrderRepository
type MockPurchaseOrderRepository struct {
	mock.Mock
}

func (m *MockPurchaseOrderRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*procurement.PurchaseOrder, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*procurement.PurchaseOrder), args.Error(1)
}

func (m *MockPurchaseOrderRepository) FindByOrderNumber(ctx context.Context, tenantID uuid.UUID, orderNumber string) (*procurement.PurchaseOrder, error) {
	args := m.Called(ctx, tenantID, orderNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*procurement.PurchaseOrder), args.Error(1)
}

func (m *MockPurchaseOrderRepository) ExistsByOrderNumber(ctx context.Context, tenantID uuid.UUID, orderNumber string) (bool, error) {
	args := m.Called(ctx, tenantID, orderNumber)
	return args.Bool(0), args.Error(1)
}

func (m *MockPurchaseOrderRepository) Save(ctx context.Context, order *procurement.PurchaseOrder) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockPurchaseOrderRepository) SaveWithLock(ctx context.Context, order *procurement.PurchaseOrder) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

// MockReceiptRepository is a mock implementation of ReceiptRepository
type MockReceiptRepository struct {
	mock.Mock
}

func (m *MockReceiptRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*procurement.ReceiptConfirmation, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*procurement.ReceiptConfirmation), args.Error(1)
}

func (m *MockReceiptRepository) FindLatestByPurchaseOrder(ctx context.Context, tenantID, purchaseOrderID uuid.UUID) (*procurement.ReceiptConfirmation, error) {
	args := m.Called(ctx, tenantID, purchaseOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*procurement.ReceiptConfirmation), args.Error(1)
}

func (m *MockReceiptRepository) Save(ctx context.Context, receipt *procurement.ReceiptConfirmation) error {
	args := m.Called(ctx, receipt)
	return args.Error(0)
}

func (m *MockReceiptRepository) SaveWithLock(ctx context.Context, receipt *procurement.ReceiptConfirmation) error {
	args := m.Called(ctx, receipt)
	return args.Error(0)
}

// MockInvoiceRepository is a mock implementation of InvoiceRepository
type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*procurement.Invoice, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*procurement.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) ExistsByInvoiceNumber(ctx context.Context, tenantID uuid.UUID, invoiceNumber string) (bool, error) {
	args := m.Called(ctx, tenantID, invoiceNumber)
	return args.Bool(0), args.Error(1)
}

func (m *MockInvoiceRepository) Save(ctx context.Context, invoice *procurement.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *MockInvoiceRepository) SaveWithLock(ctx context.Context, invoice *procurement.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

// MockIdempotencyStore is a mock implementation of shared.IdempotencyStore
type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Release(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockIdempotencyStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// recordingTransactor runs the unit of work inline and keeps its outcome
type recordingTransactor struct {
	calls int
	err   error
}

func (r *recordingTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	r.calls++
	r.err = fn(ctx)
	return r.err
}

// newTestOrder returns an open order for buyerMH with one line L1: 10 x 100
func newTestOrder(t *testing.T) *procurement.PurchaseOrder {
	t.Helper()
	order, err := procurement.NewPurchaseOrder(testTenantID, "PO-001", "Acme Buyers", testBuyerMH)
	require.NoError(t, err)
	_, err = order.AddItem("Steel Rod 12mm", "7214", "KG", dec("10"), dec("100"))
	require.NoError(t, err)
	return order
}

// newTestReceipt records line L1 of order with the given accepted quantity
func newTestReceipt(t *testing.T, order *procurement.PurchaseOrder, accepted string) *procurement.ReceiptConfirmation {
	t.Helper()
	receipt, err := procurement.NewReceiptConfirmation(testTenantID, "GRN-001", order)
	require.NoError(t, err)
	_, err = receipt.AddItem("L1", "Steel Rod 12mm", dec("10"), dec(accepted), dec("100"))
	require.NoError(t, err)
	return receipt
}

func orderLineInput(quantity, rate string) LineItemInput {
	return LineItemInput{
		LineRef:            "L1",
		Description:        "Steel Rod 12mm",
		ClassificationCode: "7214",
		Quantity:           dec(quantity),
		Unit:               "KG",
		UnitRate:           dec(rate),
		TaxRatePercent:     dec("18"),
	}
}
