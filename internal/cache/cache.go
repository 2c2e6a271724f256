// Package cache is the warm tier in front of the race fetcher: recent
// limit-only fetch results are kept in Redis with a TTL scaled to the bar
// interval, so repeated analytics reads do not re-race the venues.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Mesteriis/crypto-inspector-sub001/internal/exchange"
	"github.com/Mesteriis/crypto-inspector-sub001/internal/model"
)

const (
	minTTL = 10 * time.Second
	maxTTL = 5 * time.Minute
)

// ResultCache stores FetchResults in Redis. A nil *ResultCache is a valid
// no-op so callers need no branching when Redis is not configured.
type ResultCache struct {
	rdb *redis.Client
}

// New connects a result cache to Redis.
func New(addr, password string, db int) *ResultCache {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	return &ResultCache{rdb: rdb}
}

// NewFromClient wraps an existing client (used by tests).
func NewFromClient(rdb *redis.Client) *ResultCache {
	return &ResultCache{rdb: rdb}
}

// Close releases the Redis connection pool.
func (c *ResultCache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}

func key(req exchange.FetchRequest) string {
	return fmt.Sprintf("candles:%s:%s:%d", req.Symbol, req.Interval, req.Limit)
}

// ttlFor scales the cache lifetime to the bar interval: a 1m bar goes stale
// in seconds, a daily bar can sit for the full cap.
func ttlFor(iv model.Interval) time.Duration {
	ttl := iv.Duration() / 4
	if ttl < minTTL {
		return minTTL
	}
	if ttl > maxTTL {
		return maxTTL
	}
	return ttl
}

// Get returns a cached result, or false on miss or any Redis error.
func (c *ResultCache) Get(ctx context.Context, req exchange.FetchRequest) (*model.FetchResult, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, key(req)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Msg("warm cache read failed")
		}
		return nil, false
	}
	var res model.FetchResult
	if err := json.Unmarshal(raw, &res); err != nil {
		log.Warn().Err(err).Msg("warm cache entry corrupt, dropping")
		c.rdb.Del(ctx, key(req))
		return nil, false
	}
	return &res, true
}

// Set stores a result. Failures are logged, never surfaced; the cache is
// an optimization, not a dependency.
func (c *ResultCache) Set(ctx context.Context, req exchange.FetchRequest, res *model.FetchResult) {
	if c == nil || res == nil {
		return
	}
	raw, err := json.Marshal(res)
	if err != nil {
		log.Warn().Err(err).Msg("warm cache marshal failed")
		return
	}
	if err := c.rdb.Set(ctx, key(req), raw, ttlFor(req.Interval)).Err(); err != nil {
		log.Warn().Err(err).Msg("warm cache write failed")
	}
}
