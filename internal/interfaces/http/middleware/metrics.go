package middleware

import (
	"context"
	"time"

	"github.com/erp/gstbilling/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

var (
	requestSizeBuckets  = []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000, 1000000}
	responseSizeBuckets = []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000, 1000000, 5000000}
)

// httpMetrics holds all HTTP-related metrics instruments.
type httpMetrics struct {
	requestTotal    *telemetry.Counter
	requestDuration *telemetry.Histogram
	requestSize     *telemetry.Histogram
	responseSize    *telemetry.Histogram
	activeRequests  metric.Int64UpDownCounter
}

func newHTTPMetrics(meter metric.Meter) (*httpMetrics, error) {
	requestTotal, err := telemetry.NewCounter(meter,
		"http_server_request_total",
		"Total number of HTTP requests",
		"{request}",
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "http_server_request_duration_seconds",
		Description: "HTTP request latency distribution in seconds",
		Unit:        "s",
		Boundaries:  telemetry.HTTPDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	requestSize, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "http_server_request_size_bytes",
		Description: "HTTP request body size distribution in bytes",
		Unit:        "By",
		Boundaries:  requestSizeBuckets,
	})
	if err != nil {
		return nil, err
	}

	responseSize, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "http_server_response_size_bytes",
		Description: "HTTP response body size distribution in bytes",
		Unit:        "By",
		Boundaries:  responseSizeBuckets,
	})
	if err != nil {
		return nil, err
	}

	activeRequests, err := meter.Int64UpDownCounter(
		"http_server_active_requests",
		metric.WithDescription("Number of currently active HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &httpMetrics{
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		requestSize:     requestSize,
		responseSize:    responseSize,
		activeRequests:  activeRequests,
	}, nil
}

// HTTPMetrics returns a middleware recording request count, latency, body
// sizes and in-flight requests. Routes are recorded by pattern, never by raw
// path. A nil meter or an instrument error yields a pass-through middleware.
func HTTPMetrics(meter metric.Meter, log *zap.Logger) gin.HandlerFunc {
	if meter == nil {
		return passThrough
	}
	metrics, err := newHTTPMetrics(meter)
	if err != nil {
		if log != nil {
			log.Warn("HTTP metrics disabled", zap.Error(err))
		}
		return passThrough
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()

		metrics.activeRequests.Add(ctx, 1)
		c.Next()
		metrics.activeRequests.Add(ctx, -1)

		tenant := ""
		if id, ok := GetTenantID(c); ok {
			tenant = id.String()
		}
		metrics.record(ctx, requestObservation{
			method:       c.Request.Method,
			route:        routePattern(c),
			status:       c.Writer.Status(),
			tenantID:     tenant,
			duration:     time.Since(start),
			requestSize:  c.Request.ContentLength,
			responseSize: c.Writer.Size(),
		})
	}
}

func passThrough(c *gin.Context) {
	c.Next()
}

type requestObservation struct {
	method       string
	route        string
	status       int
	tenantID     string
	duration     time.Duration
	requestSize  int64
	responseSize int
}

func (m *httpMetrics) record(ctx context.Context, o requestObservation) {
	requestAttrs := []attribute.KeyValue{
		telemetry.AttrHTTPMethod.String(o.method),
		telemetry.AttrHTTPRoute.String(o.route),
		telemetry.AttrHTTPStatusCode.Int(o.status),
	}
	if o.tenantID != "" {
		requestAttrs = append(requestAttrs, telemetry.AttrTenantID.String(o.tenantID))
	}
	m.requestTotal.Inc(ctx, requestAttrs...)

	// Latency and sizes only by method and route to keep cardinality low
	baseAttrs := []attribute.KeyValue{
		telemetry.AttrHTTPMethod.String(o.method),
		telemetry.AttrHTTPRoute.String(o.route),
	}
	m.requestDuration.RecordDuration(ctx, o.duration, baseAttrs...)
	if o.requestSize > 0 {
		m.requestSize.Record(ctx, float64(o.requestSize), baseAttrs...)
	}
	if o.responseSize > 0 {
		m.responseSize.Record(ctx, float64(o.responseSize), baseAttrs...)
	}
}

// routePattern returns the matched route, e.g. "/api/v1/invoices/:id"
func routePattern(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unknown"
}
