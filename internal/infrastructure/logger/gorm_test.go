package logger

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

const insertInvoiceSQL = `INSERT INTO "invoices" ("id","tenant_id","invoice_number") VALUES ('a','b','INV-1')`

func newObservedGormLogger(level gormlogger.LogLevel, opts ...GormLoggerOption) (*GormLogger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), level, opts...), recorded
}

func traceFunc(sql string, rows int64) func() (string, int64) {
	return func() (string, int64) { return sql, rows }
}

func TestNewGormLogger(t *testing.T) {
	gl, _ := newObservedGormLogger(gormlogger.Warn,
		WithSlowThreshold(time.Second),
		WithIgnoreRecordNotFoundError(false),
		WithMaxSQLLength(64),
	)

	assert.Equal(t, gormlogger.Warn, gl.logLevel)
	assert.Equal(t, time.Second, gl.slowThreshold)
	assert.False(t, gl.ignoreRecordNotFoundError)
	assert.Equal(t, 64, gl.maxSQLLength)

	var _ gormlogger.Interface = gl
}

func TestGormLogger_LogMode(t *testing.T) {
	gl, _ := newObservedGormLogger(gormlogger.Info)

	changed, ok := gl.LogMode(gormlogger.Error).(*GormLogger)

	require.True(t, ok)
	assert.Equal(t, gormlogger.Error, changed.logLevel)
	assert.Equal(t, gormlogger.Info, gl.logLevel)
}

func TestGormLogger_Messages(t *testing.T) {
	gl, recorded := newObservedGormLogger(gormlogger.Warn)
	ctx := WithTenantID(context.Background(), "tenant-1")

	gl.Info(ctx, "migrated %d tables", 6)
	gl.Warn(ctx, "slow dial %s", "db")
	gl.Error(ctx, "lost connection")

	entries := recorded.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "slow dial db", entries[0].Message)
	assert.Equal(t, "tenant-1", fieldMap(entries[0])["tenant_id"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
}

func TestGormLogger_Trace(t *testing.T) {
	t.Run("errors carry the request context", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Error)
		ctx := WithRequestID(context.Background(), "req-7")

		gl.Trace(ctx, time.Now(), traceFunc(insertInvoiceSQL, 0), errors.New("duplicate key"))

		entries := recorded.All()
		require.Len(t, entries, 1)
		assert.Equal(t, "SQL Error", entries[0].Message)
		assert.Equal(t, "req-7", fieldMap(entries[0])["request_id"])
	})

	t.Run("record not found is ignored by default", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Error)

		gl.Trace(context.Background(), time.Now(), traceFunc("SELECT 1", 0), gormlogger.ErrRecordNotFound)

		assert.Empty(t, recorded.All())
	})

	t.Run("record not found is logged when requested", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Error, WithIgnoreRecordNotFoundError(false))

		gl.Trace(context.Background(), time.Now(), traceFunc("SELECT 1", 0), gormlogger.ErrRecordNotFound)

		assert.Len(t, recorded.All(), 1)
	})

	t.Run("slow statements are warnings", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Warn, WithSlowThreshold(time.Millisecond))

		gl.Trace(context.Background(), time.Now().Add(-time.Second), traceFunc("SELECT 1", 3), nil)

		entries := recorded.All()
		require.Len(t, entries, 1)
		assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
		assert.Contains(t, entries[0].Message, "SLOW SQL")
	})

	t.Run("zero threshold disables slow warnings", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Warn, WithSlowThreshold(0))

		gl.Trace(context.Background(), time.Now().Add(-time.Minute), traceFunc("SELECT 1", 3), nil)

		assert.Empty(t, recorded.All())
	})

	t.Run("info level logs statements at debug", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Info)

		gl.Trace(context.Background(), time.Now(), traceFunc(insertInvoiceSQL, 1), nil)

		entries := recorded.All()
		require.Len(t, entries, 1)
		assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
		assert.Equal(t, insertInvoiceSQL, fieldMap(entries[0])["sql"])
	})

	t.Run("long statements are truncated", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Info, WithMaxSQLLength(20))

		gl.Trace(context.Background(), time.Now(), traceFunc(insertInvoiceSQL, 1), nil)

		sql := fieldMap(recorded.All()[0])["sql"]
		assert.Equal(t, insertInvoiceSQL[:20]+"...", sql)
		assert.True(t, strings.HasSuffix(sql, "..."))
	})

	t.Run("silent logs nothing", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Silent)

		gl.Trace(context.Background(), time.Now(), traceFunc("SELECT 1", 1), errors.New("boom"))

		assert.Empty(t, recorded.All())
	})
}

func TestMapGormLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected gormlogger.LogLevel
	}{
		{"silent", gormlogger.Silent},
		{"error", gormlogger.Error},
		{"warn", gormlogger.Warn},
		{"info", gormlogger.Info},
		{"debug", gormlogger.Info},
		{"unknown", gormlogger.Warn},
		{"", gormlogger.Warn},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, MapGormLogLevel(tt.level))
		})
	}
}
