package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/gstbilling/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of application spans
const TracerName = "gstbilling"

// Span attribute keys used by the billing services
const (
	SpanAttrTenantID      = "tenant_id"
	SpanAttrInvoiceID     = "invoice_id"
	SpanAttrInvoiceNumber = "invoice_number"
	SpanAttrOrderID       = "purchase_order_id"
	SpanAttrOrderNumber   = "purchase_order_number"
	SpanAttrReceiptID     = "receipt_id"
	SpanAttrReceiptNumber = "receipt_number"
	SpanAttrItemsCount    = "items_count"

	SpanAttrTransactionKind = "transaction_kind"
	SpanAttrTaxSplit        = "tax_split"
	SpanAttrTotalTax        = "total_tax"

	SpanAttrMatchStatus      = "match_status"
	SpanAttrDiscrepancyCount = "discrepancy_count"
	SpanAttrIdempotencyKey   = "idempotency_key"

	spanAttrService   = "billing.service"
	spanAttrOperation = "billing.operation"
	spanAttrErrorCode = "error.code"
)

// SpanOption configures a span started by StartSpan
type SpanOption func(*spanConfig)

type spanConfig struct {
	kind  trace.SpanKind
	attrs []attribute.KeyValue
}

// WithAttribute sets an attribute when the span starts
func WithAttribute(key string, value any) SpanOption {
	return func(c *spanConfig) {
		c.attrs = append(c.attrs, toAttribute(key, value))
	}
}

// WithSpanKind overrides the default internal span kind
func WithSpanKind(kind trace.SpanKind) SpanOption {
	return func(c *spanConfig) {
		c.kind = kind
	}
}

// StartSpan starts a span on the global tracer provider. Callers end it.
func StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, trace.Span) {
	cfg := spanConfig{kind: trace.SpanKindInternal}
	for _, opt := range opts {
		opt(&cfg)
	}

	startOpts := []trace.SpanStartOption{trace.WithSpanKind(cfg.kind)}
	if len(cfg.attrs) > 0 {
		startOpts = append(startOpts, trace.WithAttributes(cfg.attrs...))
	}
	return otel.Tracer(TracerName).Start(ctx, name, startOpts...)
}

// StartServiceSpan starts a span named "<service>.<operation>", e.g.
// "invoice.create", tagged with both parts so dashboards can group by them.
func StartServiceSpan(ctx context.Context, service, operation string, opts ...SpanOption) (context.Context, trace.Span) {
	opts = append([]SpanOption{
		WithAttribute(spanAttrService, service),
		WithAttribute(spanAttrOperation, operation),
	}, opts...)
	return StartSpan(ctx, service+"."+operation, opts...)
}

// SetAttributes sets alternating key/value pairs on span. Pairs whose key
// is not a string are skipped, as is a trailing key without a value.
func SetAttributes(span trace.Span, keyValues ...any) {
	if span == nil {
		return
	}
	span.SetAttributes(pairsToAttributes(keyValues)...)
}

// SetAttribute sets one attribute on span
func SetAttribute(span trace.Span, key string, value any) {
	if span == nil {
		return
	}
	span.SetAttributes(toAttribute(key, value))
}

// RecordError marks span as failed. Domain errors also carry their code so
// validation failures can be told apart from infrastructure faults.
func RecordError(span trace.Span, err error, opts ...trace.EventOption) {
	if span == nil || err == nil {
		return
	}
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		span.SetAttributes(attribute.String(spanAttrErrorCode, domainErr.Code))
	}
	span.RecordError(err, opts...)
	span.SetStatus(codes.Error, err.Error())
}

func pairsToAttributes(keyValues []any) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(keyValues)/2)
	for i := 0; i+1 < len(keyValues); i += 2 {
		key, ok := keyValues[i].(string)
		if !ok {
			continue
		}
		attrs = append(attrs, toAttribute(key, keyValues[i+1]))
	}
	return attrs
}

// toAttribute converts value to an attribute. Decimals keep their exact
// text so amounts are not distorted by float conversion.
func toAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	case []string:
		return attribute.StringSlice(key, v)
	case decimal.Decimal:
		return attribute.String(key, v.String())
	case time.Duration:
		return attribute.Int64(key, v.Milliseconds())
	case fmt.Stringer:
		return attribute.String(key, v.String())
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}
