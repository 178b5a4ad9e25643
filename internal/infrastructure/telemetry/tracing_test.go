package telemetry_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/erp/gstbilling/internal/domain/shared"
	"github.com/erp/gstbilling/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// recordSpans installs an in-memory tracer provider for the duration of the test
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)

	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func onlySpan(t *testing.T, sr *tracetest.SpanRecorder) sdktrace.ReadOnlySpan {
	t.Helper()
	spans := sr.Ended()
	require.Len(t, spans, 1)
	return spans[0]
}

func attrMap(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		m[kv.Key] = kv.Value
	}
	return m
}

func TestStartSpan(t *testing.T) {
	t.Run("defaults to an internal span", func(t *testing.T) {
		sr := recordSpans(t)

		_, span := telemetry.StartSpan(context.Background(), "tax.compute")
		span.End()

		got := onlySpan(t, sr)
		assert.Equal(t, "tax.compute", got.Name())
		assert.Equal(t, trace.SpanKindInternal, got.SpanKind())
		assert.Equal(t, telemetry.TracerName, got.InstrumentationScope().Name)
	})

	t.Run("applies options", func(t *testing.T) {
		sr := recordSpans(t)

		_, span := telemetry.StartSpan(context.Background(), "redis.claim",
			telemetry.WithAttribute(telemetry.SpanAttrIdempotencyKey, "key-1"),
			telemetry.WithSpanKind(trace.SpanKindClient),
		)
		span.End()

		got := onlySpan(t, sr)
		assert.Equal(t, trace.SpanKindClient, got.SpanKind())
		assert.Equal(t, "key-1", attrMap(got)[telemetry.SpanAttrIdempotencyKey].AsString())
	})

	t.Run("nests under the parent span", func(t *testing.T) {
		sr := recordSpans(t)

		ctx, parent := telemetry.StartSpan(context.Background(), "invoice.create")
		_, child := telemetry.StartSpan(ctx, "reconciliation.run")
		child.End()
		parent.End()

		spans := sr.Ended()
		require.Len(t, spans, 2)
		assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())
		assert.Equal(t, spans[1].SpanContext().TraceID(), spans[0].SpanContext().TraceID())
	})
}

func TestStartServiceSpan(t *testing.T) {
	sr := recordSpans(t)

	_, span := telemetry.StartServiceSpan(context.Background(), "invoice", "create",
		telemetry.WithAttribute(telemetry.SpanAttrItemsCount, 3),
	)
	span.End()

	got := onlySpan(t, sr)
	attrs := attrMap(got)
	assert.Equal(t, "invoice.create", got.Name())
	assert.Equal(t, "invoice", attrs["billing.service"].AsString())
	assert.Equal(t, "create", attrs["billing.operation"].AsString())
	assert.Equal(t, int64(3), attrs[telemetry.SpanAttrItemsCount].AsInt64())
}

func TestSetAttributes(t *testing.T) {
	sr := recordSpans(t)
	invoiceID := uuid.New()

	_, span := telemetry.StartSpan(context.Background(), "invoice.create")
	telemetry.SetAttributes(span,
		telemetry.SpanAttrInvoiceID, invoiceID,
		telemetry.SpanAttrTotalTax, decimal.RequireFromString("180.00"),
		telemetry.SpanAttrDiscrepancyCount, 2,
		42, "non-string key is skipped",
		"dangling",
	)
	span.End()

	attrs := attrMap(onlySpan(t, sr))
	assert.Equal(t, invoiceID.String(), attrs[telemetry.SpanAttrInvoiceID].AsString())
	assert.Equal(t, "180", attrs[telemetry.SpanAttrTotalTax].AsString())
	assert.Equal(t, int64(2), attrs[telemetry.SpanAttrDiscrepancyCount].AsInt64())
	assert.NotContains(t, attrs, attribute.Key("dangling"))
	assert.Len(t, attrs, 3)
}

func TestSetAttribute_ValueTypes(t *testing.T) {
	sr := recordSpans(t)

	_, span := telemetry.StartSpan(context.Background(), "types")
	telemetry.SetAttribute(span, "string", "MATCHED")
	telemetry.SetAttribute(span, "int64", int64(7))
	telemetry.SetAttribute(span, "float", 0.5)
	telemetry.SetAttribute(span, "bool", true)
	telemetry.SetAttribute(span, "strings", []string{"L1", "L2"})
	telemetry.SetAttribute(span, "duration", 1500*time.Millisecond)
	telemetry.SetAttribute(span, "other", struct{ N int }{N: 1})
	span.End()

	attrs := attrMap(onlySpan(t, sr))
	assert.Equal(t, "MATCHED", attrs["string"].AsString())
	assert.Equal(t, int64(7), attrs["int64"].AsInt64())
	assert.Equal(t, 0.5, attrs["float"].AsFloat64())
	assert.True(t, attrs["bool"].AsBool())
	assert.Equal(t, []string{"L1", "L2"}, attrs["strings"].AsStringSlice())
	assert.Equal(t, int64(1500), attrs["duration"].AsInt64())
	assert.Equal(t, "{1}", attrs["other"].AsString())
}

func TestRecordError(t *testing.T) {
	t.Run("domain errors carry their code", func(t *testing.T) {
		sr := recordSpans(t)
		err := fmt.Errorf("create invoice: %w", shared.NewDomainError("UNSUPPORTED_TAX_RATE", "rate 7 is not permitted"))

		_, span := telemetry.StartSpan(context.Background(), "invoice.create")
		telemetry.RecordError(span, err)
		span.End()

		got := onlySpan(t, sr)
		assert.Equal(t, codes.Error, got.Status().Code)
		assert.Equal(t, "UNSUPPORTED_TAX_RATE", attrMap(got)["error.code"].AsString())
		require.Len(t, got.Events(), 1)
		assert.Equal(t, "exception", got.Events()[0].Name)
	})

	t.Run("other errors have no code", func(t *testing.T) {
		sr := recordSpans(t)

		_, span := telemetry.StartSpan(context.Background(), "invoice.create")
		telemetry.RecordError(span, errors.New("connection refused"))
		span.End()

		got := onlySpan(t, sr)
		assert.Equal(t, "connection refused", got.Status().Description)
		assert.NotContains(t, attrMap(got), attribute.Key("error.code"))
	})

	t.Run("nil error leaves the span unset", func(t *testing.T) {
		sr := recordSpans(t)

		_, span := telemetry.StartSpan(context.Background(), "invoice.get")
		telemetry.RecordError(span, nil)
		span.End()

		assert.Equal(t, codes.Unset, onlySpan(t, sr).Status().Code)
	})
}

func TestHelpers_NilSpan(t *testing.T) {
	assert.NotPanics(t, func() {
		telemetry.SetAttributes(nil, "k", "v")
		telemetry.SetAttribute(nil, "k", "v")
		telemetry.RecordError(nil, errors.New("boom"))
	})
}
