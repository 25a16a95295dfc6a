// Package cache keeps recently read tickets in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

const keyPrefix = "ticket:"

// TicketCache stores full ticket aggregates (comments included) keyed by
// local id and by Jira key. A nil client turns every call into a miss.
type TicketCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewTicketCache builds a cache over client.
func NewTicketCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *TicketCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketCache{client: client, ttl: ttl, logger: logger}
}

// Key returns the Redis key for a ticket identifier.
func Key(id string) string {
	return keyPrefix + id
}

// Get returns the cached ticket for id. Misses and Redis failures both report
// ok=false; failures are logged, never returned.
func (c *TicketCache) Get(ctx context.Context, id string) (*domain.Ticket, bool) {
	if c == nil || c.client == nil || c.ttl <= 0 {
		return nil, false
	}
	raw, err := c.client.Get(ctx, Key(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("ticket cache read failed", zap.String("id", id), zap.Error(err))
		}
		return nil, false
	}
	var ticket domain.Ticket
	if err := json.Unmarshal(raw, &ticket); err != nil {
		c.logger.Warn("ticket cache entry corrupt", zap.String("id", id), zap.Error(err))
		return nil, false
	}
	return &ticket, true
}

// Set stores ticket under both its local id and Jira key.
func (c *TicketCache) Set(ctx context.Context, ticket *domain.Ticket) {
	if c == nil || c.client == nil || c.ttl <= 0 || ticket == nil {
		return
	}
	payload, err := json.Marshal(ticket)
	if err != nil {
		c.logger.Warn("ticket cache encode failed", zap.String("id", ticket.ID), zap.Error(err))
		return
	}
	pipe := c.client.TxPipeline()
	for _, key := range keysFor(ticket) {
		pipe.Set(ctx, key, payload, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("ticket cache write failed", zap.String("id", ticket.ID), zap.Error(err))
	}
}

// Invalidate drops every cached entry for ticket.
func (c *TicketCache) Invalidate(ctx context.Context, ticket *domain.Ticket) error {
	if c == nil || c.client == nil || ticket == nil {
		return nil
	}
	keys := keysFor(ticket)
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate ticket %s: %w", ticket.ID, err)
	}
	return nil
}

func keysFor(ticket *domain.Ticket) []string {
	keys := make([]string, 0, 2)
	if ticket.ID != "" {
		keys = append(keys, Key(ticket.ID))
	}
	if ticket.JiraID != "" && ticket.JiraID != ticket.ID {
		keys = append(keys, Key(ticket.JiraID))
	}
	return keys
}
