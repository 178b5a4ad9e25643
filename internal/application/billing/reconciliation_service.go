package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/gstbilling/internal/domain/matching"
	"github.com/erp/gstbilling/internal/domain/procurement"
	"github.com/erp/gstbilling/internal/domain/shared"
	"github.com/erp/gstbilling/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReconciliationService runs the three-way match over stored documents and
// persists the outcome. The matcher only sees snapshots. The receipt, order
// and invoice are written back in one transaction, each with a version
// check, so a concurrent run fails with a concurrency conflict and leaves
// none of the three records changed.
type ReconciliationService struct {
	orderRepo      procurement.PurchaseOrderRepository
	receiptRepo    procurement.ReceiptRepository
	invoiceRepo    procurement.InvoiceRepository
	transactor     shared.Transactor
	matcher        *matching.Matcher
	logger         *zap.Logger
	billingMetrics *telemetry.BillingMetrics
}

// NewReconciliationService creates a new ReconciliationService
func NewReconciliationService(
	orderRepo procurement.PurchaseOrderRepository,
	receiptRepo procurement.ReceiptRepository,
	invoiceRepo procurement.InvoiceRepository,
	transactor shared.Transactor,
	matcher *matching.Matcher,
	logger *zap.Logger,
) *ReconciliationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if transactor == nil {
		transactor = shared.NoopTransactor{}
	}
	return &ReconciliationService{
		orderRepo:   orderRepo,
		receiptRepo: receiptRepo,
		invoiceRepo: invoiceRepo,
		transactor:  transactor,
		matcher:     matcher,
		logger:      logger,
	}
}

// SetBillingMetrics sets the billing metrics collector
func (s *ReconciliationService) SetBillingMetrics(bm *telemetry.BillingMetrics) {
	s.billingMetrics = bm
}

// ReconcileInvoice matches an invoice against its purchase order and the
// latest receipt recorded for that order. With no receipt on file the
// matcher reports MISSING_DOCUMENT.
func (s *ReconciliationService) ReconcileInvoice(ctx context.Context, invoice *procurement.Invoice, order *procurement.PurchaseOrder) (*ReconciliationResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconciliation", "reconcile_invoice")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrInvoiceID, invoice.ID.String(),
		telemetry.SpanAttrOrderID, order.ID.String(),
	)

	receipt, err := s.receiptRepo.FindLatestByPurchaseOrder(ctx, invoice.TenantID, order.ID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		telemetry.RecordError(span, err)
		s.recordFailure(ctx, invoice.TenantID, err)
		return nil, fmt.Errorf("failed to load receipt for purchase order %s: %w", order.OrderNumber, err)
	}

	resp, err := s.reconcile(ctx, order, receipt, invoice)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return resp, nil
}

// ReconcileReceipt reruns the match for a stored receipt against an invoice.
// Both must reference the same purchase order.
func (s *ReconciliationService) ReconcileReceipt(ctx context.Context, tenantID, receiptID uuid.UUID, req ReconcileReceiptRequest) (*ReconciliationResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconciliation", "reconcile_receipt")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrReceiptID, receiptID.String(),
		telemetry.SpanAttrInvoiceID, req.InvoiceID.String(),
	)

	receipt, err := s.receiptRepo.FindByIDForTenant(ctx, tenantID, receiptID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	invoice, err := s.invoiceRepo.FindByIDForTenant(ctx, tenantID, req.InvoiceID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if invoice.PurchaseOrderID == nil || *invoice.PurchaseOrderID != receipt.PurchaseOrderID {
		err := shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Invoice %s does not reference purchase order %s", invoice.InvoiceNumber, receipt.PurchaseOrderNumber))
		telemetry.RecordError(span, err)
		return nil, err
	}
	order, err := s.orderRepo.FindByIDForTenant(ctx, tenantID, receipt.PurchaseOrderID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	resp, err := s.reconcile(ctx, order, receipt, invoice)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return resp, nil
}

// reconcile matches the snapshots and writes the result onto the receipt,
// links the invoice to the order and records the status on the invoice.
func (s *ReconciliationService) reconcile(
	ctx context.Context,
	order *procurement.PurchaseOrder,
	receipt *procurement.ReceiptConfirmation,
	invoice *procurement.Invoice,
) (*ReconciliationResponse, error) {
	start := time.Now()

	var receiptView *matching.ReceiptView
	if receipt != nil {
		receiptView = receipt.ToView()
	}

	var (
		result   *matching.MatchResult
		matchErr error
	)
	labels := telemetry.BillingOperationLabels(telemetry.OperationReconcile, invoice.TenantID.String(), nil)
	telemetry.WithProfilingLabels(ctx, labels, func(context.Context) {
		result, matchErr = s.matcher.Match(order.ToView(), receiptView, invoice.ToView())
	})
	if matchErr != nil {
		s.recordFailure(ctx, invoice.TenantID, matchErr)
		return nil, matchErr
	}

	rerun := receipt.IsReconciled()
	if err := s.store(ctx, order, receipt, invoice, result); err != nil {
		s.recordFailure(ctx, invoice.TenantID, err)
		return nil, err
	}

	if s.billingMetrics != nil {
		s.billingMetrics.RecordReconciliation(ctx, invoice.TenantID, string(result.Status), countDiscrepancies(result), time.Since(start))
	}

	s.logger.Info("Three-way match completed",
		zap.String("tenant_id", invoice.TenantID.String()),
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("receipt_number", receipt.ReceiptNumber),
		zap.String("purchase_order", order.OrderNumber),
		zap.String("status", string(result.Status)),
		zap.Int("discrepancies", len(result.Discrepancies)),
		zap.Int("high_severity", result.HighSeverityCount()),
		zap.Bool("rerun", rerun),
	)

	return toReconciliationResponse(receipt, invoice.ID, result), nil
}

// store applies the match result to the three records and writes them in
// one transaction. On failure the in-memory records are restored so the
// caller never sees state that was rolled back.
func (s *ReconciliationService) store(
	ctx context.Context,
	order *procurement.PurchaseOrder,
	receipt *procurement.ReceiptConfirmation,
	invoice *procurement.Invoice,
	result *matching.MatchResult,
) error {
	receiptBefore := *receipt
	orderBefore := *order
	invoiceBefore := *invoice

	err := s.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := receipt.ApplyMatchResult(invoice.ID, result); err != nil {
			return err
		}
		if err := s.receiptRepo.SaveWithLock(ctx, receipt); err != nil {
			return fmt.Errorf("failed to store match result on receipt %s: %w", receipt.ReceiptNumber, err)
		}

		if order.InvoiceID == nil || *order.InvoiceID != invoice.ID {
			if err := order.LinkInvoice(invoice.ID); err != nil {
				return err
			}
			if err := s.orderRepo.SaveWithLock(ctx, order); err != nil {
				return fmt.Errorf("failed to link invoice to purchase order %s: %w", order.OrderNumber, err)
			}
		}

		invoice.SetMatchStatus(procurement.MatchStatus(result.Status))
		if err := s.invoiceRepo.SaveWithLock(ctx, invoice); err != nil {
			return fmt.Errorf("failed to store match status on invoice %s: %w", invoice.InvoiceNumber, err)
		}
		return nil
	})
	if err != nil {
		*receipt = receiptBefore
		*order = orderBefore
		*invoice = invoiceBefore
	}
	return err
}

func (s *ReconciliationService) recordFailure(ctx context.Context, tenantID uuid.UUID, err error) {
	if s.billingMetrics == nil {
		return
	}
	reason := "error"
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		reason = domainErr.Code
	}
	s.billingMetrics.RecordReconciliationFailure(ctx, tenantID, reason)
}

// countDiscrepancies buckets discrepancies by type and severity in first-seen order
func countDiscrepancies(result *matching.MatchResult) []telemetry.DiscrepancyCount {
	counts := make([]telemetry.DiscrepancyCount, 0)
	index := make(map[string]int)
	for _, d := range result.Discrepancies {
		key := string(d.Type) + "/" + string(d.Severity)
		i, ok := index[key]
		if !ok {
			i = len(counts)
			index[key] = i
			counts = append(counts, telemetry.DiscrepancyCount{Type: string(d.Type), Severity: string(d.Severity)})
		}
		counts[i].Count++
	}
	return counts
}
