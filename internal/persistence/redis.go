package persistence

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/config"
)

// Redis owns the go-redis client backing the ticket cache.
type Redis struct {
	client *redis.Client
}

// NewRedis builds a client for cfg. Connections are made lazily; callers
// that need Redis up front should Ping.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) *Redis {
	if cfg.Addr == "" {
		logger.Warn("REDIS_ADDR not provided; ticket cache disabled")
		return &Redis{}
	}
	return &Redis{client: redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})}
}

// Client returns the go-redis client, or nil when Redis is not configured.
func (r *Redis) Client() *redis.Client {
	if r == nil {
		return nil
	}
	return r.client
}

// Ping reports whether Redis is reachable.
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client() == nil {
		return ErrNotConfigured
	}
	return r.client.Ping(ctx).Err()
}

// Close closes the client.
func (r *Redis) Close() {
	if c := r.Client(); c != nil {
		_ = c.Close()
	}
}
