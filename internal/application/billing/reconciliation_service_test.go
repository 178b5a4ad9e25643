package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/gstbilling/internal/domain/matching"
	"github.com/erp/gstbilling/internal/domain/procurement"
	"github.com/erp/gstbilling/internal/domain/shared"
	"github.com/erp/gstbilling/internal/domain/tax"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// newTestInvoice bills line L1 of order at the given quantity and rate
func newTestInvoice(t *testing.T, order *procurement.PurchaseOrder, quantity, rate string) *procurement.Invoice {
	t.Helper()
	inv, err := procurement.NewInvoice(testTenantID, "INV-200", testSellerMH, strPtr(testBuyerMH), "Reliance Retail")
	require.NoError(t, err)
	inv.ReferencePurchaseOrder(order)
	items, refs := procurement.SplitLines(ToInvoiceLines([]LineItemInput{orderLineInput(quantity, rate)}))
	breakdown, err := tax.NewCalculator().Compute(inv.SellerTaxID, inv.BuyerTaxID, items)
	require.NoError(t, err)
	require.NoError(t, inv.ApplyBreakdown(breakdown, refs))
	return inv
}

func newReconciliationFixture() (*MockPurchaseOrderRepository, *MockReceiptRepository, *MockInvoiceRepository, *ReconciliationService) {
	orderRepo := new(MockPurchaseOrderRepository)
	receiptRepo := new(MockReceiptRepository)
	invoiceRepo := new(MockInvoiceRepository)
	service := NewReconciliationService(orderRepo, receiptRepo, invoiceRepo, nil, matching.NewMatcher(), nil)
	return orderRepo, receiptRepo, invoiceRepo, service
}

func TestReconciliationService_ReconcileReceipt(t *testing.T) {
	ctx := context.Background()

	t.Run("reports a short receipt as a high severity quantity mismatch", func(t *testing.T) {
		orderRepo, receiptRepo, invoiceRepo, service := newReconciliationFixture()
		order := newTestOrder(t)
		receipt := newTestReceipt(t, order, "8")
		invoice := newTestInvoice(t, order, "10", "100")

		receiptRepo.On("FindByIDForTenant", mock.Anything, testTenantID, receipt.ID).Return(receipt, nil)
		invoiceRepo.On("FindByIDForTenant", mock.Anything, testTenantID, invoice.ID).Return(invoice, nil)
		orderRepo.On("FindByIDForTenant", mock.Anything, testTenantID, order.ID).Return(order, nil)
		receiptRepo.On("SaveWithLock", mock.Anything, receipt).Return(nil)
		orderRepo.On("SaveWithLock", mock.Anything, order).Return(nil)
		invoiceRepo.On("SaveWithLock", mock.Anything, invoice).Return(nil)

		resp, err := service.ReconcileReceipt(ctx, testTenantID, receipt.ID, ReconcileReceiptRequest{InvoiceID: invoice.ID})

		require.NoError(t, err)
		assert.Equal(t, string(matching.StatusMismatched), resp.Status)
		assert.Equal(t, 0, resp.MatchedItems)
		assert.Equal(t, 1, resp.TotalItems)
		require.Len(t, resp.Discrepancies, 1)
		assert.Equal(t, string(matching.DiscrepancyQuantityMismatch), resp.Discrepancies[0].Type)
		assert.Equal(t, string(matching.SeverityHigh), resp.Discrepancies[0].Severity)
		assert.Equal(t, invoice.ID, resp.InvoiceID)
		assert.NotNil(t, resp.ReconciledAt)

		assert.Equal(t, procurement.MatchStatusMismatched, receipt.MatchStatus)
		assert.Len(t, receipt.Discrepancies, 1)
		assert.Equal(t, procurement.MatchStatusMismatched, invoice.MatchStatus)
		orderRepo.AssertExpectations(t)
		receiptRepo.AssertExpectations(t)
		invoiceRepo.AssertExpectations(t)
	})

	t.Run("replaces discrepancies on a rerun", func(t *testing.T) {
		orderRepo, receiptRepo, invoiceRepo, service := newReconciliationFixture()
		order := newTestOrder(t)
		receipt := newTestReceipt(t, order, "10")
		invoice := newTestInvoice(t, order, "10", "100")
		receipt.Discrepancies = []matching.Discrepancy{{Type: matching.DiscrepancyRateMismatch, Severity: matching.SeverityMedium}}
		require.NoError(t, order.LinkInvoice(invoice.ID))

		receiptRepo.On("FindByIDForTenant", mock.Anything, testTenantID, receipt.ID).Return(receipt, nil)
		invoiceRepo.On("FindByIDForTenant", mock.Anything, testTenantID, invoice.ID).Return(invoice, nil)
		orderRepo.On("FindByIDForTenant", mock.Anything, testTenantID, order.ID).Return(order, nil)
		receiptRepo.On("SaveWithLock", mock.Anything, receipt).Return(nil)
		invoiceRepo.On("SaveWithLock", mock.Anything, invoice).Return(nil)

		resp, err := service.ReconcileReceipt(ctx, testTenantID, receipt.ID, ReconcileReceiptRequest{InvoiceID: invoice.ID})

		require.NoError(t, err)
		assert.Equal(t, string(matching.StatusMatched), resp.Status)
		assert.Empty(t, receipt.Discrepancies)
		orderRepo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
		receiptRepo.AssertExpectations(t)
		invoiceRepo.AssertExpectations(t)
	})

	t.Run("rejects an invoice for another purchase order", func(t *testing.T) {
		_, receiptRepo, invoiceRepo, service := newReconciliationFixture()
		order := newTestOrder(t)
		receipt := newTestReceipt(t, order, "10")
		other, err := procurement.NewPurchaseOrder(testTenantID, "PO-999", "Other Party", "")
		require.NoError(t, err)
		invoice := newTestInvoice(t, other, "10", "100")

		receiptRepo.On("FindByIDForTenant", mock.Anything, testTenantID, receipt.ID).Return(receipt, nil)
		invoiceRepo.On("FindByIDForTenant", mock.Anything, testTenantID, invoice.ID).Return(invoice, nil)

		_, err = service.ReconcileReceipt(ctx, testTenantID, receipt.ID, ReconcileReceiptRequest{InvoiceID: invoice.ID})

		assert.True(t, errors.Is(err, shared.ErrInvalidState))
		receiptRepo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
	})

	t.Run("returns not found for an unknown receipt", func(t *testing.T) {
		_, receiptRepo, _, service := newReconciliationFixture()
		id := uuid.New()
		receiptRepo.On("FindByIDForTenant", mock.Anything, testTenantID, id).Return(nil, shared.ErrNotFound)

		_, err := service.ReconcileReceipt(ctx, testTenantID, id, ReconcileReceiptRequest{InvoiceID: uuid.New()})

		assert.True(t, errors.Is(err, shared.ErrNotFound))
	})

	t.Run("leaves the invoice status untouched when the receipt write conflicts", func(t *testing.T) {
		orderRepo, receiptRepo, invoiceRepo, service := newReconciliationFixture()
		order := newTestOrder(t)
		receipt := newTestReceipt(t, order, "10")
		invoice := newTestInvoice(t, order, "10", "100")

		receiptRepo.On("FindByIDForTenant", mock.Anything, testTenantID, receipt.ID).Return(receipt, nil)
		invoiceRepo.On("FindByIDForTenant", mock.Anything, testTenantID, invoice.ID).Return(invoice, nil)
		orderRepo.On("FindByIDForTenant", mock.Anything, testTenantID, order.ID).Return(order, nil)
		receiptRepo.On("SaveWithLock", mock.Anything, receipt).Return(shared.ErrConcurrencyConflict)

		_, err := service.ReconcileReceipt(ctx, testTenantID, receipt.ID, ReconcileReceiptRequest{InvoiceID: invoice.ID})

		assert.True(t, errors.Is(err, shared.ErrConcurrencyConflict))
		assert.Equal(t, procurement.MatchStatusPending, invoice.MatchStatus)
		invoiceRepo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
		orderRepo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
	})

	t.Run("restores the invoice status when its write conflicts", func(t *testing.T) {
		orderRepo, receiptRepo, invoiceRepo, service := newReconciliationFixture()
		order := newTestOrder(t)
		receipt := newTestReceipt(t, order, "10")
		invoice := newTestInvoice(t, order, "10", "100")

		receiptRepo.On("FindByIDForTenant", mock.Anything, testTenantID, receipt.ID).Return(receipt, nil)
		invoiceRepo.On("FindByIDForTenant", mock.Anything, testTenantID, invoice.ID).Return(invoice, nil)
		orderRepo.On("FindByIDForTenant", mock.Anything, testTenantID, order.ID).Return(order, nil)
		receiptRepo.On("SaveWithLock", mock.Anything, receipt).Return(nil)
		orderRepo.On("SaveWithLock", mock.Anything, order).Return(nil)
		invoiceRepo.On("SaveWithLock", mock.Anything, invoice).Return(shared.ErrConcurrencyConflict)

		_, err := service.ReconcileReceipt(ctx, testTenantID, receipt.ID, ReconcileReceiptRequest{InvoiceID: invoice.ID})

		assert.True(t, errors.Is(err, shared.ErrConcurrencyConflict))
		assert.Equal(t, procurement.MatchStatusPending, invoice.MatchStatus)
	})

	t.Run("logs the outcome of a rerun with its high severity count", func(t *testing.T) {
		orderRepo := new(MockPurchaseOrderRepository)
		receiptRepo := new(MockReceiptRepository)
		invoiceRepo := new(MockInvoiceRepository)
		core, logs := observer.New(zap.InfoLevel)
		service := NewReconciliationService(orderRepo, receiptRepo, invoiceRepo, nil, matching.NewMatcher(), zap.New(core))

		order := newTestOrder(t)
		receipt := newTestReceipt(t, order, "8")
		receipt.MatchStatus = procurement.MatchStatusMatched
		invoice := newTestInvoice(t, order, "10", "100")

		receiptRepo.On("FindByIDForTenant", mock.Anything, testTenantID, receipt.ID).Return(receipt, nil)
		invoiceRepo.On("FindByIDForTenant", mock.Anything, testTenantID, invoice.ID).Return(invoice, nil)
		orderRepo.On("FindByIDForTenant", mock.Anything, testTenantID, order.ID).Return(order, nil)
		receiptRepo.On("SaveWithLock", mock.Anything, receipt).Return(nil)
		orderRepo.On("SaveWithLock", mock.Anything, order).Return(nil)
		invoiceRepo.On("SaveWithLock", mock.Anything, invoice).Return(nil)

		_, err := service.ReconcileReceipt(ctx, testTenantID, receipt.ID, ReconcileReceiptRequest{InvoiceID: invoice.ID})
		require.NoError(t, err)

		entries := logs.FilterMessage("Three-way match completed").All()
		require.Len(t, entries, 1)
		fields := entries[0].ContextMap()
		assert.Equal(t, true, fields["rerun"])
		assert.Equal(t, int64(1), fields["high_severity"])
		assert.Equal(t, string(matching.StatusMismatched), fields["status"])
	})

	t.Run("rolls back every write when linking the purchase order fails", func(t *testing.T) {
		orderRepo := new(MockPurchaseOrderRepository)
		receiptRepo := new(MockReceiptRepository)
		invoiceRepo := new(MockInvoiceRepository)
		tx := &recordingTransactor{}
		service := NewReconciliationService(orderRepo, receiptRepo, invoiceRepo, tx, matching.NewMatcher(), nil)

		order := newTestOrder(t)
		receipt := newTestReceipt(t, order, "10")
		invoice := newTestInvoice(t, order, "10", "100")
		orderStatus := order.Status
		receiptVersion := receipt.Version

		receiptRepo.On("FindByIDForTenant", mock.Anything, testTenantID, receipt.ID).Return(receipt, nil)
		invoiceRepo.On("FindByIDForTenant", mock.Anything, testTenantID, invoice.ID).Return(invoice, nil)
		orderRepo.On("FindByIDForTenant", mock.Anything, testTenantID, order.ID).Return(order, nil)
		receiptRepo.On("SaveWithLock", mock.Anything, receipt).Run(func(args mock.Arguments) {
			args.Get(1).(*procurement.ReceiptConfirmation).Version++
		}).Return(nil)
		orderRepo.On("SaveWithLock", mock.Anything, order).Return(shared.ErrConcurrencyConflict)

		_, err := service.ReconcileReceipt(ctx, testTenantID, receipt.ID, ReconcileReceiptRequest{InvoiceID: invoice.ID})

		assert.True(t, errors.Is(err, shared.ErrConcurrencyConflict))
		assert.Equal(t, 1, tx.calls)
		assert.True(t, errors.Is(tx.err, shared.ErrConcurrencyConflict))
		invoiceRepo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)

		assert.Equal(t, procurement.MatchStatusPending, receipt.MatchStatus)
		assert.Nil(t, receipt.InvoiceID)
		assert.Nil(t, receipt.ReconciledAt)
		assert.Empty(t, receipt.Discrepancies)
		assert.Equal(t, receiptVersion, receipt.Version)
		assert.Nil(t, order.InvoiceID)
		assert.Equal(t, orderStatus, order.Status)
		assert.Equal(t, procurement.MatchStatusPending, invoice.MatchStatus)
	})
}

func TestReconciliationService_ReconcileInvoice(t *testing.T) {
	ctx := context.Background()

	t.Run("propagates receipt lookup failures", func(t *testing.T) {
		_, receiptRepo, _, service := newReconciliationFixture()
		order := newTestOrder(t)
		invoice := newTestInvoice(t, order, "10", "100")
		lookupErr := errors.New("connection reset")
		receiptRepo.On("FindLatestByPurchaseOrder", mock.Anything, testTenantID, order.ID).Return(nil, lookupErr)

		_, err := service.ReconcileInvoice(ctx, invoice, order)

		assert.ErrorIs(t, err, lookupErr)
	})

	t.Run("reports a missing receipt as a missing document", func(t *testing.T) {
		_, receiptRepo, _, service := newReconciliationFixture()
		order := newTestOrder(t)
		invoice := newTestInvoice(t, order, "10", "100")
		receiptRepo.On("FindLatestByPurchaseOrder", mock.Anything, testTenantID, order.ID).Return(nil, shared.ErrNotFound)

		_, err := service.ReconcileInvoice(ctx, invoice, order)

		assert.True(t, errors.Is(err, matching.ErrMissingDocument))
	})
}

func TestCountDiscrepancies(t *testing.T) {
	result := &matching.MatchResult{
		Discrepancies: []matching.Discrepancy{
			{Type: matching.DiscrepancyQuantityMismatch, Severity: matching.SeverityHigh},
			{Type: matching.DiscrepancyRateMismatch, Severity: matching.SeverityMedium},
			{Type: matching.DiscrepancyQuantityMismatch, Severity: matching.SeverityHigh},
		},
	}

	counts := countDiscrepancies(result)

	require.Len(t, counts, 2)
	assert.Equal(t, string(matching.DiscrepancyQuantityMismatch), counts[0].Type)
	assert.Equal(t, int64(2), counts[0].Count)
	assert.Equal(t, string(matching.DiscrepancyRateMismatch), counts[1].Type)
	assert.Equal(t, int64(1), counts[1].Count)
}
