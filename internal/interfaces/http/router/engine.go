// Package router assembles the gin engine and the versioned route table.
package router

import (
	"fmt"
	"net/http"

	"github.com/erp/gstbilling/internal/infrastructure/config"
	"github.com/erp/gstbilling/internal/infrastructure/logger"
	"github.com/erp/gstbilling/internal/interfaces/http/dto"
	"github.com/erp/gstbilling/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// EngineConfig holds everything the middleware chain needs
type EngineConfig struct {
	Logger *zap.Logger
	HTTP   config.HTTPConfig

	ServiceName    string
	TracingEnabled bool
	TracingOptions []otelgin.Option
	// Meter records HTTP server metrics; nil disables them
	Meter            metric.Meter
	ProfilingEnabled bool

	DefaultTenantID uuid.UUID
	// PublicPaths are served without tenant resolution or profiling labels
	PublicPaths []string
}

// ParseDefaultTenant parses http.default_tenant_id; empty means no default
func ParseDefaultTenant(value string) (uuid.UUID, error) {
	if value == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid default tenant id %q: %w", value, err)
	}
	return id, nil
}

// NewEngine builds a gin engine with the billing middleware chain:
// request ID, recovery, access log, security headers, CORS, body limit,
// tracing, tenant, span enrichment, metrics and profiling labels.
func NewEngine(cfg EngineConfig) (*gin.Engine, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	engine.Use(
		middleware.RequestID(),
		logger.Recovery(log),
		logger.GinMiddleware(log),
		middleware.Secure(),
		middleware.CORS(middleware.CORSConfigFromHTTP(cfg.HTTP)),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
		middleware.Tracing(middleware.TracingConfig{
			ServiceName: cfg.ServiceName,
			Enabled:     cfg.TracingEnabled,
			Options:     cfg.TracingOptions,
		}),
		middleware.Tenant(middleware.TenantConfig{
			DefaultTenantID: cfg.DefaultTenantID,
			SkipPaths:       cfg.PublicPaths,
		}),
		middleware.SpanEnricher(),
		middleware.HTTPMetrics(cfg.Meter, log),
		middleware.Profiling(middleware.ProfilingConfig{
			Enabled:   cfg.ProfilingEnabled,
			SkipPaths: cfg.PublicPaths,
		}),
	)

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeNotFound, "Route not found", middleware.GetRequestID(c)))
	})

	return engine, nil
}
