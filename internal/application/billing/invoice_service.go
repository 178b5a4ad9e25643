package billing

import (
	"context"
	"fmt"

	"github.com/erp/gstbilling/internal/domain/procurement"
	"github.com/erp/gstbilling/internal/domain/shared"
	"github.com/erp/gstbilling/internal/domain/tax"
	"github.com/erp/gstbilling/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const invoiceIdempotencyPrefix = "invoice:create"

// InvoiceService creates and recalculates tax invoices. Tax computation
// failures block the operation; reconciliation failures are logged and
// reported on the response but never undo a stored invoice.
type InvoiceService struct {
	invoiceRepo       procurement.InvoiceRepository
	orderRepo         procurement.PurchaseOrderRepository
	calculator        *tax.Calculator
	reconciler        *ReconciliationService
	logger            *zap.Logger
	idempotencyStore  shared.IdempotencyStore
	idempotencyConfig shared.IdempotencyConfig
	billingMetrics    *telemetry.BillingMetrics
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(
	invoiceRepo procurement.InvoiceRepository,
	orderRepo procurement.PurchaseOrderRepository,
	calculator *tax.Calculator,
	reconciler *ReconciliationService,
	logger *zap.Logger,
) *InvoiceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoiceService{
		invoiceRepo:       invoiceRepo,
		orderRepo:         orderRepo,
		calculator:        calculator,
		reconciler:        reconciler,
		logger:            logger,
		idempotencyConfig: shared.DefaultIdempotencyConfig(),
	}
}

// SetIdempotencyStore enables duplicate detection for create requests
func (s *InvoiceService) SetIdempotencyStore(store shared.IdempotencyStore, cfg shared.IdempotencyConfig) {
	if cfg.TTL <= 0 {
		cfg.TTL = shared.DefaultIdempotencyConfig().TTL
	}
	s.idempotencyStore = store
	s.idempotencyConfig = cfg
}

// SetBillingMetrics sets the billing metrics collector
func (s *InvoiceService) SetBillingMetrics(bm *telemetry.BillingMetrics) {
	s.billingMetrics = bm
}

// Create computes taxes, stores the invoice and, when it references a
// purchase order, reconciles it against the order and its latest receipt.
func (s *InvoiceService) Create(ctx context.Context, tenantID uuid.UUID, req CreateInvoiceRequest) (*InvoiceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "create")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrInvoiceNumber, req.InvoiceNumber,
		telemetry.SpanAttrItemsCount, len(req.Items),
	)

	key, err := s.claimIdempotencyKey(ctx, tenantID, req.IdempotencyKey)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	invoice, order, err := s.buildInvoice(ctx, tenantID, req)
	if err != nil {
		s.releaseIdempotencyKey(ctx, key)
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := s.invoiceRepo.Save(ctx, invoice); err != nil {
		s.releaseIdempotencyKey(ctx, key)
		telemetry.RecordError(span, err)
		return nil, err
	}

	if s.billingMetrics != nil {
		s.billingMetrics.RecordInvoiceCreated(ctx, tenantID, string(invoice.TransactionKind), string(invoice.Split), invoice.TotalTax)
	}
	s.logger.Info("Invoice created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("transaction_kind", string(invoice.TransactionKind)),
		zap.String("total_tax", invoice.TotalTax.StringFixed(tax.MoneyScale)),
	)

	return s.respondWithReconciliation(ctx, invoice, order), nil
}

// buildInvoice validates the request and produces an invoice with computed taxes
func (s *InvoiceService) buildInvoice(ctx context.Context, tenantID uuid.UUID, req CreateInvoiceRequest) (*procurement.Invoice, *procurement.PurchaseOrder, error) {
	if len(req.Items) == 0 {
		return nil, nil, shared.NewDomainError("INVALID_ITEMS", "Invoice must have at least one item")
	}

	exists, err := s.invoiceRepo.ExistsByInvoiceNumber(ctx, tenantID, req.InvoiceNumber)
	if err != nil {
		return nil, nil, err
	}
	if exists {
		return nil, nil, shared.NewDomainError("ALREADY_EXISTS", fmt.Sprintf("Invoice %s already exists", req.InvoiceNumber))
	}

	var order *procurement.PurchaseOrder
	if req.PurchaseOrderID != nil {
		order, err = s.orderRepo.FindByIDForTenant(ctx, tenantID, *req.PurchaseOrderID)
		if err != nil {
			return nil, nil, err
		}
	}

	invoice, err := procurement.NewInvoice(tenantID, req.InvoiceNumber, req.SellerTaxID, req.BuyerTaxID, req.BuyerName)
	if err != nil {
		return nil, nil, err
	}
	invoice.ReferencePurchaseOrder(order)

	if err := s.computeInto(ctx, invoice, ToInvoiceLines(req.Items)); err != nil {
		return nil, nil, err
	}
	return invoice, order, nil
}

// Recalculate replaces the lines of an invoice and recomputes every tax
// figure. The stored match is rerun when the invoice references an order.
func (s *InvoiceService) Recalculate(ctx context.Context, tenantID, invoiceID uuid.UUID, req RecalculateInvoiceRequest) (*InvoiceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "recalculate")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrInvoiceID, invoiceID.String(),
		telemetry.SpanAttrItemsCount, len(req.Items),
	)

	if len(req.Items) == 0 {
		return nil, shared.NewDomainError("INVALID_ITEMS", "Invoice must have at least one item")
	}

	invoice, err := s.invoiceRepo.FindByIDForTenant(ctx, tenantID, invoiceID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if req.ExpectedVersion != nil && *req.ExpectedVersion != invoice.Version {
		err := shared.NewDomainError("CONCURRENCY_CONFLICT",
			fmt.Sprintf("Invoice %s is at version %d, expected %d", invoice.InvoiceNumber, invoice.Version, *req.ExpectedVersion))
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := s.computeInto(ctx, invoice, ToInvoiceLines(req.Items)); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.invoiceRepo.SaveWithLock(ctx, invoice); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("Invoice recalculated",
		zap.String("tenant_id", tenantID.String()),
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("total_tax", invoice.TotalTax.StringFixed(tax.MoneyScale)),
	)

	var order *procurement.PurchaseOrder
	var loadErr error
	if invoice.HasPurchaseOrder() {
		order, loadErr = s.orderRepo.FindByIDForTenant(ctx, tenantID, *invoice.PurchaseOrderID)
	}
	if loadErr != nil {
		s.logger.Warn("Purchase order for invoice could not be loaded, skipping reconciliation",
			zap.String("invoice_number", invoice.InvoiceNumber),
			zap.Error(loadErr),
		)
		response := ToInvoiceResponse(invoice)
		response.ReconciliationError = loadErr.Error()
		return &response, nil
	}
	return s.respondWithReconciliation(ctx, invoice, order), nil
}

// Get retrieves an invoice by ID
func (s *InvoiceService) Get(ctx context.Context, tenantID, invoiceID uuid.UUID) (*InvoiceResponse, error) {
	invoice, err := s.invoiceRepo.FindByIDForTenant(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	response := ToInvoiceResponse(invoice)
	return &response, nil
}

// computeInto runs the tax calculator and stores the breakdown on the invoice
func (s *InvoiceService) computeInto(ctx context.Context, invoice *procurement.Invoice, lines []procurement.InvoiceLine) error {
	items, refs := procurement.SplitLines(lines)

	var (
		breakdown *tax.Breakdown
		err       error
	)
	labels := telemetry.BillingOperationLabels(telemetry.OperationComputeTax, invoice.TenantID.String(), nil)
	telemetry.WithProfilingLabels(ctx, labels, func(context.Context) {
		breakdown, err = s.calculator.Compute(invoice.SellerTaxID, invoice.BuyerTaxID, items)
	})
	if err != nil {
		s.recordComputation(ctx, "", telemetry.ComputationResultFailed)
		return err
	}
	s.recordComputation(ctx, string(breakdown.Context.Kind), telemetry.ComputationResultSuccess)

	return invoice.ApplyBreakdown(breakdown, refs)
}

// respondWithReconciliation reconciles when an order is given. Failures
// are attached to the response instead of being returned.
func (s *InvoiceService) respondWithReconciliation(ctx context.Context, invoice *procurement.Invoice, order *procurement.PurchaseOrder) *InvoiceResponse {
	if order == nil || s.reconciler == nil {
		response := ToInvoiceResponse(invoice)
		return &response
	}

	result, err := s.reconciler.ReconcileInvoice(ctx, invoice, order)
	response := ToInvoiceResponse(invoice)
	if err != nil {
		s.logger.Warn("Invoice reconciliation failed",
			zap.String("tenant_id", invoice.TenantID.String()),
			zap.String("invoice_number", invoice.InvoiceNumber),
			zap.String("purchase_order", order.OrderNumber),
			zap.Error(err),
		)
		response.ReconciliationError = err.Error()
		return &response
	}
	response.Reconciliation = result
	return &response
}

func (s *InvoiceService) idempotencyKey(tenantID uuid.UUID, key string) string {
	return fmt.Sprintf("%s:%s:%s", invoiceIdempotencyPrefix, tenantID, key)
}

// claimIdempotencyKey returns the claimed store key, or "" when no key applies.
// A store outage does not block invoicing.
func (s *InvoiceService) claimIdempotencyKey(ctx context.Context, tenantID uuid.UUID, requestKey string) (string, error) {
	if requestKey == "" || s.idempotencyStore == nil || !s.idempotencyConfig.Enabled {
		return "", nil
	}

	key := s.idempotencyKey(tenantID, requestKey)
	claimed, err := s.idempotencyStore.MarkProcessed(ctx, key, s.idempotencyConfig.TTL)
	if err != nil {
		s.logger.Warn("Idempotency store unavailable, processing request without duplicate check",
			zap.String("idempotency_key", requestKey),
			zap.Error(err),
		)
		return "", nil
	}
	if !claimed {
		return "", shared.NewDomainError("DUPLICATE_REQUEST",
			fmt.Sprintf("Invoice request with idempotency key %s was already processed", requestKey))
	}
	return key, nil
}

func (s *InvoiceService) releaseIdempotencyKey(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.idempotencyStore.Release(ctx, key); err != nil {
		s.logger.Warn("Failed to release idempotency key", zap.String("key", key), zap.Error(err))
	}
}

func (s *InvoiceService) recordComputation(ctx context.Context, kind string, result telemetry.ComputationResult) {
	if s.billingMetrics != nil {
		s.billingMetrics.RecordTaxComputation(ctx, kind, result)
	}
}
