package data

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rustyeddy/gridtrader/market"
)

// DefaultCacheTTL applies when CachedProvider gets a zero TTL.
const DefaultCacheTTL = time.Hour

// CachedProvider is a read-through Redis cache in front of another provider.
// Redis failures are logged and the request goes to the wrapped provider.
type CachedProvider struct {
	next   Provider
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewCachedProvider(next Provider, rdb *redis.Client, ttl time.Duration, namespace string) *CachedProvider {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if namespace == "" {
		namespace = "default"
	}
	return &CachedProvider{
		next:   next,
		rdb:    rdb,
		ttl:    ttl,
		prefix: "gridtrader:series:" + namespace + ":",
	}
}

// Key returns the cache key of req.
func (c *CachedProvider) Key(req Request) string {
	return fmt.Sprintf("%s%s:%s:%d:%d",
		c.prefix, strings.ToUpper(req.Symbol), req.Interval, unix(req.From), unix(req.To))
}

func unix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func (c *CachedProvider) Load(ctx context.Context, req Request) (market.Series, error) {
	key := c.Key(req)

	if raw, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var s market.Series
		if err := json.Unmarshal(raw, &s); err == nil {
			return s, nil
		}
		slog.Warn("series cache entry unreadable", "key", key)
	} else if err != redis.Nil {
		slog.Warn("series cache get failed", "key", key, "err", err)
	}

	s, err := c.next.Load(ctx, req)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(s)
	if err != nil {
		return s, nil
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		slog.Warn("series cache set failed", "key", key, "err", err)
	}
	return s, nil
}

// Close closes the Redis client and the wrapped provider.
func (c *CachedProvider) Close() error {
	rerr := c.rdb.Close()
	if err := c.next.Close(); err != nil {
		return err
	}
	return rerr
}
