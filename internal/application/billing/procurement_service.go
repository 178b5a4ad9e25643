package billing

import (
	"context"
	"fmt"

	"github.com/erp/gstbilling/internal/domain/procurement"
	"github.com/erp/gstbilling/internal/domain/shared"
	"github.com/erp/gstbilling/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProcurementService records the purchase orders and goods receipts that
// invoices are reconciled against
type ProcurementService struct {
	orderRepo   procurement.PurchaseOrderRepository
	receiptRepo procurement.ReceiptRepository
	logger      *zap.Logger
}

// NewProcurementService creates a new ProcurementService
func NewProcurementService(
	orderRepo procurement.PurchaseOrderRepository,
	receiptRepo procurement.ReceiptRepository,
	logger *zap.Logger,
) *ProcurementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProcurementService{
		orderRepo:   orderRepo,
		receiptRepo: receiptRepo,
		logger:      logger,
	}
}

// CreatePurchaseOrder creates a purchase order. Lines get references L1..Ln
// which receipts and invoices quote back.
func (s *ProcurementService) CreatePurchaseOrder(ctx context.Context, tenantID uuid.UUID, req CreatePurchaseOrderRequest) (*PurchaseOrderResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "purchase_order", "create")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrOrderNumber, req.OrderNumber)

	exists, err := s.orderRepo.ExistsByOrderNumber(ctx, tenantID, req.OrderNumber)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if exists {
		err := shared.NewDomainError("ALREADY_EXISTS", fmt.Sprintf("Purchase order %s already exists", req.OrderNumber))
		telemetry.RecordError(span, err)
		return nil, err
	}

	order, err := procurement.NewPurchaseOrder(tenantID, req.OrderNumber, req.PartyName, req.PartyTaxID)
	if err != nil {
		return nil, err
	}
	if len(req.Items) == 0 {
		return nil, shared.NewDomainError("INVALID_ITEMS", "Purchase order must have at least one item")
	}
	for _, item := range req.Items {
		if _, err := order.AddItem(item.Description, item.ClassificationCode, item.Unit, item.Quantity, item.Rate); err != nil {
			return nil, err
		}
	}

	if err := s.orderRepo.Save(ctx, order); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("Purchase order created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("purchase_order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.Int("items", len(order.Items)),
	)

	response := ToPurchaseOrderResponse(order)
	return &response, nil
}

// GetPurchaseOrder retrieves a purchase order by ID
func (s *ProcurementService) GetPurchaseOrder(ctx context.Context, tenantID, orderID uuid.UUID) (*PurchaseOrderResponse, error) {
	order, err := s.orderRepo.FindByIDForTenant(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	response := ToPurchaseOrderResponse(order)
	return &response, nil
}

// RecordReceipt records goods received against a purchase order and marks
// the order received. Missing rates are taken from the order line with the
// same reference.
func (s *ProcurementService) RecordReceipt(ctx context.Context, tenantID uuid.UUID, req RecordReceiptRequest) (*ReceiptResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "receipt", "record")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrReceiptNumber, req.ReceiptNumber,
		telemetry.SpanAttrOrderID, req.PurchaseOrderID.String(),
	)

	order, err := s.orderRepo.FindByIDForTenant(ctx, tenantID, req.PurchaseOrderID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	receipt, err := procurement.NewReceiptConfirmation(tenantID, req.ReceiptNumber, order)
	if err != nil {
		return nil, err
	}
	if len(req.Items) == 0 {
		return nil, shared.NewDomainError("INVALID_ITEMS", "Receipt must have at least one item")
	}

	for _, in := range req.Items {
		accepted := in.ReceivedQuantity
		if in.AcceptedQuantity != nil {
			accepted = *in.AcceptedQuantity
		}

		description := in.Description
		var orderLine *procurement.PurchaseOrderItem
		if in.LineRef != "" {
			orderLine = order.ItemByLineRef(in.LineRef)
			if orderLine == nil {
				return nil, shared.NewDomainError("INVALID_LINE_REF",
					fmt.Sprintf("Purchase order %s has no line %s", order.OrderNumber, in.LineRef))
			}
			if description == "" {
				description = orderLine.Description
			}
		}

		if in.Rate == nil && orderLine == nil {
			return nil, shared.NewDomainError("INVALID_RATE",
				fmt.Sprintf("Receipt item %q needs a rate or a line reference", description))
		}
		rate := in.Rate
		if rate == nil {
			rate = &orderLine.Rate
		}

		if _, err := receipt.AddItem(in.LineRef, description, in.ReceivedQuantity, accepted, *rate); err != nil {
			return nil, err
		}
	}

	if err := s.receiptRepo.Save(ctx, receipt); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if order.Status == procurement.PurchaseOrderStatusOpen {
		if err := order.MarkReceived(); err != nil {
			return nil, err
		}
		if err := s.orderRepo.SaveWithLock(ctx, order); err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
	}

	s.logger.Info("Receipt recorded",
		zap.String("tenant_id", tenantID.String()),
		zap.String("receipt_id", receipt.ID.String()),
		zap.String("purchase_order", order.OrderNumber),
		zap.Int("items", len(receipt.Items)),
	)

	response := ToReceiptResponse(receipt)
	return &response, nil
}

// GetReceipt retrieves a receipt confirmation by ID
func (s *ProcurementService) GetReceipt(ctx context.Context, tenantID, receiptID uuid.UUID) (*ReceiptResponse, error) {
	receipt, err := s.receiptRepo.FindByIDForTenant(ctx, tenantID, receiptID)
	if err != nil {
		return nil, err
	}
	response := ToReceiptResponse(receipt)
	return &response, nil
}
