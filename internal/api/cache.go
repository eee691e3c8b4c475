package api

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/shipops/docsearch/internal/query"
	"github.com/shipops/docsearch/pkg/config"
	pkgredis "github.com/shipops/docsearch/pkg/redis"
)

const cacheKeyPrefix = "search:"

// QueryCache caches shaped search responses in Redis, collapsing concurrent
// identical queries through singleflight. A nil Redis client disables
// caching and GetOrCompute degrades to calling compute directly.
type QueryCache struct {
	client *pkgredis.Client
	cfg    config.RedisConfig
	group  singleflight.Group
	logger *slog.Logger
}

func NewQueryCache(client *pkgredis.Client, cfg config.RedisConfig) *QueryCache {
	return &QueryCache{
		client: client,
		cfg:    cfg,
		logger: slog.Default().With("component", "query-cache"),
	}
}

func (c *QueryCache) get(ctx context.Context, key string) (*query.SearchResponse, bool) {
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		return nil, false
	}
	var resp query.SearchResponse
	if err := json.Unmarshal([]byte(data), &resp); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		return nil, false
	}
	return &resp, true
}

func (c *QueryCache) set(ctx context.Context, key string, resp *query.SearchResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.cfg.CacheTTL); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached response for the request, or computes,
// caches and returns it. The second return reports whether it was a hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	q string, limit, offset int, filters string,
	compute func() (*query.SearchResponse, error),
) (*query.SearchResponse, bool, error) {
	if c.client == nil {
		resp, err := compute()
		return resp, false, err
	}

	key := c.buildKey(q, limit, offset, filters)
	if resp, ok := c.get(ctx, key); ok {
		return resp, true, nil
	}

	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if resp, ok := c.get(ctx, key); ok {
			return resp, nil
		}
		resp, err := compute()
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, resp)
		return resp, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*query.SearchResponse), false, nil
}

// Invalidate drops every cached response. Called after indexing runs and
// clears so stale hit lists never outlive the index state that produced
// them.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	deleted, err := c.client.FlushByPattern(ctx, cacheKeyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating query cache: %w", err)
	}
	c.logger.Info("query cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) buildKey(q string, limit, offset int, filters string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(q)), " ")
	raw := fmt.Sprintf("%s|limit=%d|offset=%d|filters=%s", normalized, limit, offset, filters)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", cacheKeyPrefix, hash[:16])
}
