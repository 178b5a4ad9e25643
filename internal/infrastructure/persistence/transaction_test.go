package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/gstbilling/internal/domain/matching"
	"github.com/erp/gstbilling/internal/domain/procurement"
	"github.com/erp/gstbilling/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormTransactor(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	matched := &matching.MatchResult{Status: matching.StatusMatched, MatchedItems: 1, TotalItems: 1, Summary: "1 of 1 items matched"}

	setup := func(t *testing.T) (*GormTransactor, *GormPurchaseOrderRepository, *GormReceiptRepository, *procurement.PurchaseOrder, *procurement.ReceiptConfirmation) {
		t.Helper()
		db := setupProcurementTestDB(t)
		orderRepo := NewGormPurchaseOrderRepository(db)
		receiptRepo := NewGormReceiptRepository(db)
		order := newStoredOrder(t, orderRepo, tenantID, "PO-100")
		receipt, err := procurement.NewReceiptConfirmation(tenantID, "GRN-100", order)
		require.NoError(t, err)
		_, err = receipt.AddItem("L1", "Steel Rod 12mm", d("10"), d("10"), d("100"))
		require.NoError(t, err)
		require.NoError(t, receiptRepo.Save(ctx, receipt))
		return NewGormTransactor(db), orderRepo, receiptRepo, order, receipt
	}

	t.Run("commits every write made with the transaction context", func(t *testing.T) {
		tx, orderRepo, receiptRepo, order, receipt := setup(t)
		invoiceID := uuid.New()

		err := tx.WithinTransaction(ctx, func(ctx context.Context) error {
			require.NoError(t, receipt.ApplyMatchResult(invoiceID, matched))
			if err := receiptRepo.SaveWithLock(ctx, receipt); err != nil {
				return err
			}
			require.NoError(t, order.LinkInvoice(invoiceID))
			return orderRepo.SaveWithLock(ctx, order)
		})
		require.NoError(t, err)

		storedReceipt, err := receiptRepo.FindByIDForTenant(ctx, tenantID, receipt.ID)
		require.NoError(t, err)
		assert.Equal(t, procurement.MatchStatusMatched, storedReceipt.MatchStatus)
		storedOrder, err := orderRepo.FindByIDForTenant(ctx, tenantID, order.ID)
		require.NoError(t, err)
		require.NotNil(t, storedOrder.InvoiceID)
		assert.Equal(t, invoiceID, *storedOrder.InvoiceID)
	})

	t.Run("rolls back earlier writes when a later one conflicts", func(t *testing.T) {
		tx, orderRepo, receiptRepo, order, receipt := setup(t)
		invoiceID := uuid.New()
		order.Version = 7

		err := tx.WithinTransaction(ctx, func(ctx context.Context) error {
			require.NoError(t, receipt.ApplyMatchResult(invoiceID, matched))
			if err := receiptRepo.SaveWithLock(ctx, receipt); err != nil {
				return err
			}
			require.NoError(t, order.LinkInvoice(invoiceID))
			return orderRepo.SaveWithLock(ctx, order)
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrConcurrencyConflict))

		storedReceipt, err := receiptRepo.FindByIDForTenant(ctx, tenantID, receipt.ID)
		require.NoError(t, err)
		assert.Equal(t, procurement.MatchStatusPending, storedReceipt.MatchStatus)
		assert.Nil(t, storedReceipt.InvoiceID)
		assert.Equal(t, 1, storedReceipt.Version)
		storedOrder, err := orderRepo.FindByIDForTenant(ctx, tenantID, order.ID)
		require.NoError(t, err)
		assert.Nil(t, storedOrder.InvoiceID)
	})
}
