package telemetry_test

import (
	"context"
	"testing"

	"github.com/erp/gstbilling/internal/infrastructure/config"
	"github.com/erp/gstbilling/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetup_Disabled(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	ctx := context.Background()

	p, err := telemetry.Setup(ctx, config.TelemetryConfig{Enabled: false, ServiceName: "gstbilling"}, zap.New(core))
	require.NoError(t, err)

	assert.False(t, p.Enabled())
	assert.NotNil(t, p.Tracer("billing"))
	assert.NotNil(t, p.Meter("billing"))

	p.EnableSpanProfiles()
	assert.False(t, p.SpanProfilesEnabled())

	assert.NoError(t, p.ForceFlush(ctx))
	assert.NoError(t, p.Shutdown(ctx))
	assert.Equal(t, 1, recorded.FilterMessage("Telemetry disabled, using no-op providers").Len())
}

func TestSetup_NilLogger(t *testing.T) {
	p, err := telemetry.Setup(context.Background(), config.TelemetryConfig{}, nil)

	require.NoError(t, err)
	assert.False(t, p.Enabled())
}

func TestSampler(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{1, "AlwaysOnSampler"},
		{2, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{-1, "AlwaysOffSampler"},
		{0.25, "TraceIDRatioBased{0.25}"},
	}

	for _, tt := range tests {
		desc := telemetry.Sampler(tt.ratio).Description()
		assert.Contains(t, desc, "ParentBased")
		assert.Contains(t, desc, "root:"+tt.want, "ratio %v", tt.ratio)
	}
}
