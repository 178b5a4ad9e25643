package cache

import (
	"fmt"

	"github.com/erp/gstbilling/internal/domain/shared"
	"github.com/erp/gstbilling/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Idempotency store backends accepted by CreateStore
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// IdempotencyStoreFactory picks the idempotency store for the configured
// backend. Redis failures degrade to the in-memory store unless fallback
// has been switched off.
type IdempotencyStoreFactory struct {
	redis         config.RedisConfig
	log           *zap.Logger
	fallback      bool
	newRedisStore func(RedisConfig) (*RedisIdempotencyStore, error)
}

type IdempotencyStoreFactoryOption func(*IdempotencyStoreFactory)

func WithLogger(log *zap.Logger) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		if log != nil {
			f.log = log
		}
	}
}

// WithInMemoryFallback toggles the degrade-to-memory behaviour (on by default)
func WithInMemoryFallback(allow bool) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) { f.fallback = allow }
}

func NewIdempotencyStoreFactory(cfg config.RedisConfig, opts ...IdempotencyStoreFactoryOption) *IdempotencyStoreFactory {
	f := &IdempotencyStoreFactory{
		redis:         cfg,
		log:           zap.NewNop(),
		fallback:      true,
		newRedisStore: NewRedisIdempotencyStore,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateStore returns the store for backend; an empty backend means Redis
func (f *IdempotencyStoreFactory) CreateStore(backend string) (shared.IdempotencyStore, error) {
	if backend == "" {
		backend = BackendRedis
	}
	log := f.log.With(zap.String("backend", backend))

	switch backend {
	case BackendMemory:
		log.Info("Idempotency store ready")
		return NewInMemoryIdempotencyStore(0), nil
	case BackendRedis:
	default:
		return nil, fmt.Errorf("unknown idempotency backend %q", backend)
	}

	store, err := f.newRedisStore(RedisConfig{
		Host:     f.redis.Host,
		Port:     f.redis.Port,
		Password: f.redis.Password,
		DB:       f.redis.DB,
	})
	switch {
	case err == nil:
		log.Info("Idempotency store ready", zap.String("addr", fmt.Sprintf("%s:%d", f.redis.Host, f.redis.Port)))
		return store, nil
	case !f.fallback:
		return nil, fmt.Errorf("idempotency store: redis unavailable: %w", err)
	}

	log.Warn("Redis unavailable, idempotency keys are kept in process memory only",
		zap.Error(err),
	)
	return NewInMemoryIdempotencyStore(0), nil
}
