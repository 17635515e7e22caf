// Package cache holds the optional Redis front for latest-rate reads.
// History lives in PostgreSQL; the cache only carries the current final
// per-gram rate per metal, so a plain key with TTL is enough.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"jewelry-rates/internal/config"
	"jewelry-rates/internal/rates"
)

// RateCache caches the latest final rate per metal in Redis.
type RateCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// New builds a RateCache from config.
func New(cfg config.RedisConfig, logger zerolog.Logger) *RateCache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	return &RateCache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "rate_cache").Logger(),
	}
}

// Ping checks the connection to the Redis server.
func (c *RateCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the Redis connection.
func (c *RateCache) Close() error {
	return c.client.Close()
}

func keyFor(metal rates.Metal) string {
	return fmt.Sprintf("rates:latest:%s", metal)
}

// SetLatest stores the latest final rate for a metal with the configured TTL.
func (c *RateCache) SetLatest(ctx context.Context, metal rates.Metal, final decimal.Decimal) error {
	if err := c.client.Set(ctx, keyFor(metal), final.String(), c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", metal, err)
	}
	return nil
}

// GetLatest reads the cached final rate for a metal. The second return
// value is false on a miss; an expired or absent key is not an error.
func (c *RateCache) GetLatest(ctx context.Context, metal rates.Metal) (decimal.Decimal, bool, error) {
	val, err := c.client.Get(ctx, keyFor(metal)).Result()
	if errors.Is(err, redis.Nil) {
		return decimal.Decimal{}, false, nil
	}
	if err != nil {
		return decimal.Decimal{}, false, fmt.Errorf("cache get %s: %w", metal, err)
	}

	rate, parseErr := decimal.NewFromString(val)
	if parseErr != nil {
		c.logger.Warn().Str("metal", metal.String()).Str("value", val).Msg("discarding unparseable cached rate")
		return decimal.Decimal{}, false, nil
	}
	return rate, true, nil
}
