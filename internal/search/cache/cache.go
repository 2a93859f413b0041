// Package cache provides a Redis-backed query result cache for the search
// service, with singleflight deduplication of concurrent identical queries
// and a circuit breaker around Redis so an unhealthy cache degrades to
// pass-through instead of failing searches.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/motomercado/search-platform/internal/engine"
	"github.com/motomercado/search-platform/pkg/config"
	"github.com/motomercado/search-platform/pkg/metrics"
	pkgredis "github.com/motomercado/search-platform/pkg/redis"
	"github.com/motomercado/search-platform/pkg/resilience"
)

const keyPrefix = "search:"

type QueryCache struct {
	client  *pkgredis.Client
	cfg     config.RedisConfig
	group   singleflight.Group
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func New(client *pkgredis.Client, cfg config.RedisConfig, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		client:  client,
		cfg:     cfg,
		breaker: resilience.NewCircuitBreaker("search-cache", resilience.CircuitBreakerConfig{}),
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// Get returns a cached response for the raw request body, if present. Redis
// failures count against the breaker and read as misses.
func (c *QueryCache) Get(ctx context.Context, index string, body []byte) (*engine.SearchResponse, bool) {
	key := c.buildKey(index, body)
	var data string
	err := c.breaker.Execute(func() error {
		var getErr error
		data, getErr = c.client.Get(ctx, key)
		if pkgredis.IsNilError(getErr) {
			data = ""
			return nil
		}
		return getErr
	})
	c.publishBreakerState()
	if err != nil {
		c.logger.Error("cache get failed", "key", key, "error", err)
		c.recordMiss()
		return nil, false
	}
	if data == "" {
		c.recordMiss()
		return nil, false
	}
	var resp engine.SearchResponse
	if err := json.Unmarshal([]byte(data), &resp); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.recordMiss()
		return nil, false
	}
	c.recordHit()
	c.logger.Debug("cache hit", "index", index, "key", key)
	return &resp, true
}

// Set stores a response under the request's cache key.
func (c *QueryCache) Set(ctx context.Context, index string, body []byte, resp *engine.SearchResponse) {
	key := c.buildKey(index, body)
	data, err := json.Marshal(resp)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.client.Set(ctx, key, data, c.cfg.CacheTTL)
	})
	c.publishBreakerState()
	if err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached response or computes it once per key even
// under concurrent identical requests. The bool reports a cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	index string,
	body []byte,
	computeFn func() *engine.SearchResponse,
) (*engine.SearchResponse, bool) {
	if resp, ok := c.Get(ctx, index, body); ok {
		return resp, true
	}
	key := c.buildKey(index, body)
	val, _, _ := c.group.Do(key, func() (any, error) {
		if resp, ok := c.Get(ctx, index, body); ok {
			return resp, nil
		}
		resp := computeFn()
		c.Set(ctx, index, body, resp)
		return resp, nil
	})
	return val.(*engine.SearchResponse), false
}

// Invalidate drops every cached response for the given index, or for every
// index when index is empty.
func (c *QueryCache) Invalidate(ctx context.Context, index string) error {
	pattern := keyPrefix + "*"
	if index != "" {
		pattern = keyPrefix + index + ":*"
	}
	deleted, err := c.client.FlushByPattern(ctx, pattern)
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "index", index, "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) buildKey(index string, body []byte) string {
	hash := sha256.Sum256(body)
	return fmt.Sprintf("%s%s:%x", keyPrefix, index, hash[:16])
}

func (c *QueryCache) recordHit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) recordMiss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func (c *QueryCache) publishBreakerState() {
	if c.metrics != nil {
		c.metrics.CircuitBreakerState.WithLabelValues("search-cache").Set(float64(c.breaker.GetState()))
	}
}
