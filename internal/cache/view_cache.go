package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ViewCache is a JSON-backed Redis cache for read projections of type T.
// Failures never reach callers: reads degrade to a miss and writes are logged.
type ViewCache[T any] struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewViewCache creates a ViewCache. Keys are namespaced by prefix; a zero ttl
// stores keys without expiry.
func NewViewCache[T any](client *goredis.Client, prefix string, ttl time.Duration, logger *zap.Logger) *ViewCache[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ViewCache[T]{client: client, prefix: prefix, ttl: ttl, logger: logger}
}

func (c *ViewCache[T]) key(id string) string {
	return c.prefix + ":" + id
}

// Get retrieves and unmarshals a value.
func (c *ViewCache[T]) Get(ctx context.Context, id string) (*T, bool) {
	data, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.logger.Warn("cache read failed", zap.String("key", c.key(id)), zap.Error(err))
		}
		return nil, false
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		c.logger.Warn("cache decode failed", zap.String("key", c.key(id)), zap.Error(err))
		return nil, false
	}
	return &v, true
}

// Set stores value under id.
func (c *ViewCache[T]) Set(ctx context.Context, id string, value *T) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("cache encode failed", zap.String("key", c.key(id)), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, c.key(id), data, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", zap.String("key", c.key(id)), zap.Error(err))
	}
}

// Delete removes id from the cache.
func (c *ViewCache[T]) Delete(ctx context.Context, id string) {
	if err := c.client.Del(ctx, c.key(id)).Err(); err != nil {
		c.logger.Warn("cache delete failed", zap.String("key", c.key(id)), zap.Error(err))
	}
}
