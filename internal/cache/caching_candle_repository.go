// Package cache decorates candle history storage with Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwtly10/tradedesk/internal/logging"
	"github.com/jwtly10/tradedesk/internal/types"
)

const (
	DefaultTTL       = 5 * time.Minute
	DefaultNamespace = "candles"
)

var cacheLog = logging.New("cache")

// CandleRepository is the storage the cache sits in front of.
type CandleRepository interface {
	UpsertBatch(ctx context.Context, symbol string, bars []types.Bar) error
	Find(ctx context.Context, symbol string, limit int) ([]types.Bar, error)
	Symbols(ctx context.Context) ([]string, error)
}

// CachingCandleRepository is a cache-aside decorator over a CandleRepository.
// A nil client disables caching entirely.
type CachingCandleRepository struct {
	inner     CandleRepository
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
}

// NewCachingCandleRepository wraps inner. A ttl <= 0 uses DefaultTTL and an
// empty namespace uses DefaultNamespace.
func NewCachingCandleRepository(rdb *redis.Client, ttl time.Duration, inner CandleRepository, namespace string) *CachingCandleRepository {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &CachingCandleRepository{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: namespace,
	}
}

// UpsertBatch writes through to the inner repository, then extends every
// cached window of the symbol with the new bars. A window the bars cannot
// extend (an older bar was rewritten) is dropped.
func (c *CachingCandleRepository) UpsertBatch(ctx context.Context, symbol string, bars []types.Bar) error {
	if err := c.inner.UpsertBatch(ctx, symbol, bars); err != nil {
		return err
	}
	if c.rdb == nil || len(bars) == 0 {
		return nil
	}

	if err := c.refreshWindows(ctx, symbol, bars); err != nil {
		slog.Warn("Cache refresh failed", "symbol", symbol, "error", err)
	}
	return nil
}

func (c *CachingCandleRepository) Find(ctx context.Context, symbol string, limit int) ([]types.Bar, error) {
	if c.rdb == nil {
		return c.inner.Find(ctx, symbol, limit)
	}

	key := c.key(symbol, limit)

	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var out []types.Bar
		if err := json.Unmarshal(b, &out); err == nil {
			cacheLog.Debug("Cache hit", "key", key, "bars", len(out))
			return out, nil
		}
		slog.Warn("Dropping corrupted cache entry", "key", key)
		_ = c.rdb.Del(ctx, key).Err()
	}

	out, err := c.inner.Find(ctx, symbol, limit)
	if err != nil {
		return nil, err
	}

	if b, err := json.Marshal(out); err == nil {
		if err := c.rdb.Set(ctx, key, b, c.ttl).Err(); err == nil {
			_ = c.rdb.SAdd(ctx, c.windowsKey(symbol), strconv.Itoa(limit)).Err()
		}
	}
	return out, nil
}

// refreshWindows rewrites the cached windows of symbol listed in its windows
// set. Members whose window expired are removed from the set.
func (c *CachingCandleRepository) refreshWindows(ctx context.Context, symbol string, bars []types.Bar) error {
	windows := c.windowsKey(symbol)
	members, err := c.rdb.SMembers(ctx, windows).Result()
	if err != nil {
		return err
	}

	for _, member := range members {
		limit, err := strconv.Atoi(member)
		if err != nil {
			_ = c.rdb.SRem(ctx, windows, member).Err()
			continue
		}
		key := c.key(symbol, limit)

		b, err := c.rdb.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			_ = c.rdb.SRem(ctx, windows, member).Err()
			continue
		}
		if err != nil {
			return err
		}

		var (
			cached, merged []types.Bar
			ok             bool
		)
		if json.Unmarshal(b, &cached) == nil {
			merged, ok = extendWindow(cached, bars, limit)
		}
		if !ok {
			cacheLog.Debug("Dropping cached window", "key", key)
			if err := c.rdb.Del(ctx, key).Err(); err != nil {
				return err
			}
			_ = c.rdb.SRem(ctx, windows, member).Err()
			continue
		}

		encoded, err := json.Marshal(merged)
		if err != nil {
			return err
		}
		if err := c.rdb.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
			return err
		}
	}
	return nil
}

// extendWindow applies bars to an ascending window the way the store does: a
// bar at the last timestamp replaces it and a later bar is appended. The
// result keeps the newest limit bars when limit > 0. ok is false when a bar
// lands before the end of the window.
func extendWindow(window, bars []types.Bar, limit int) ([]types.Bar, bool) {
	out := append([]types.Bar(nil), window...)
	for _, bar := range bars {
		n := len(out)
		switch {
		case n > 0 && bar.Timestamp == out[n-1].Timestamp:
			out[n-1] = bar
		case n == 0 || bar.Timestamp > out[n-1].Timestamp:
			out = append(out, bar)
		default:
			return nil, false
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, true
}

// Symbols is not cached.
func (c *CachingCandleRepository) Symbols(ctx context.Context) ([]string, error) {
	return c.inner.Symbols(ctx)
}

func (c *CachingCandleRepository) key(symbol string, limit int) string {
	return fmt.Sprintf("%s%d", c.keyPrefix(symbol), limit)
}

// windowsKey names the set of limits cached for symbol.
func (c *CachingCandleRepository) windowsKey(symbol string) string {
	return c.keyPrefix(symbol) + "windows"
}

func (c *CachingCandleRepository) keyPrefix(symbol string) string {
	return fmt.Sprintf("%s:%s:", c.namespace, safe(symbol))
}

func safe(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	return strings.ReplaceAll(s, ":", "_")
}
