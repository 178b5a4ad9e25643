package billing

import (
	"context"

	"github.com/erp/gstbilling/internal/domain/matching"
	"github.com/erp/gstbilling/internal/domain/procurement"
	"github.com/erp/gstbilling/internal/domain/tax"
	"github.com/erp/gstbilling/internal/infrastructure/telemetry"
)

// PreviewService exposes the tax and matching engines without persistence
type PreviewService struct {
	calculator     *tax.Calculator
	matcher        *matching.Matcher
	billingMetrics *telemetry.BillingMetrics
}

// NewPreviewService creates a new PreviewService
func NewPreviewService(calculator *tax.Calculator, matcher *matching.Matcher) *PreviewService {
	return &PreviewService{
		calculator: calculator,
		matcher:    matcher,
	}
}

// SetBillingMetrics sets the billing metrics collector
func (s *PreviewService) SetBillingMetrics(bm *telemetry.BillingMetrics) {
	s.billingMetrics = bm
}

// ComputeTax classifies the transaction and computes the tax breakdown
func (s *PreviewService) ComputeTax(ctx context.Context, req ComputeTaxRequest) (*TaxBreakdownResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "tax", "compute")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrItemsCount, len(req.Items))

	items, refs := procurement.SplitLines(ToInvoiceLines(req.Items))

	var (
		breakdown *tax.Breakdown
		err       error
	)
	telemetry.WithProfilingLabels(ctx, telemetry.BillingOperationLabels(telemetry.OperationComputeTax, "", nil), func(context.Context) {
		breakdown, err = s.calculator.Compute(req.SellerTaxID, req.BuyerTaxID, items)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.recordComputation(ctx, "", telemetry.ComputationResultFailed)
		return nil, err
	}

	s.recordComputation(ctx, string(breakdown.Context.Kind), telemetry.ComputationResultSuccess)
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTransactionKind, string(breakdown.Context.Kind),
		telemetry.SpanAttrTaxSplit, string(breakdown.Context.Split),
		telemetry.SpanAttrTotalTax, breakdown.Totals.TotalTax.String(),
	)

	response := ToTaxBreakdownResponse(breakdown, refs)
	return &response, nil
}

// Match runs a three-way match over inline documents
func (s *PreviewService) Match(ctx context.Context, req MatchRequest) (*MatchResultResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconciliation", "preview")
	defer span.End()

	po, receipt, invoice := req.ToMatchViews()

	var (
		result *matching.MatchResult
		err    error
	)
	telemetry.WithProfilingLabels(ctx, telemetry.BillingOperationLabels(telemetry.OperationPreviewMatch, "", nil), func(context.Context) {
		result, err = s.matcher.Match(po, receipt, invoice)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrMatchStatus, string(result.Status),
		telemetry.SpanAttrDiscrepancyCount, len(result.Discrepancies),
	)

	response := ToMatchResultResponse(result)
	return &response, nil
}

// Jurisdictions lists the known jurisdiction codes
func (s *PreviewService) Jurisdictions() []JurisdictionResponse {
	return ToJurisdictionResponses(tax.Jurisdictions())
}

func (s *PreviewService) recordComputation(ctx context.Context, kind string, result telemetry.ComputationResult) {
	if s.billingMetrics != nil {
		s.billingMetrics.RecordTaxComputation(ctx, kind, result)
	}
}
