package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/floodwatch/pipeline/internal/logging"
)

const cacheKeyPrefix = "geocode:"

// CachedGeocoder wraps a Geocoder with a Redis cache. Both hits and known
// misses are cached so repeated unknown places do not hammer the upstream
// service. Cache failures degrade to direct lookups.
type CachedGeocoder struct {
	inner  Geocoder
	rdb    *redis.Client
	ttl    time.Duration
	logger logging.Logger
}

type cacheEntry struct {
	Found  bool   `json:"found"`
	Result Result `json:"result"`
}

// NewCachedGeocoder wraps inner with a Redis cache.
func NewCachedGeocoder(inner Geocoder, rdb *redis.Client, ttl time.Duration, logger logging.Logger) *CachedGeocoder {
	return &CachedGeocoder{
		inner:  inner,
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
	}
}

// Geocode resolves a place name, consulting the cache first.
func (c *CachedGeocoder) Geocode(ctx context.Context, place string) (Result, bool, error) {
	key := cacheKeyPrefix + strings.ToLower(strings.TrimSpace(place))

	raw, err := c.rdb.Get(ctx, key).Result()
	if err == nil {
		var entry cacheEntry
		if unmarshalErr := json.Unmarshal([]byte(raw), &entry); unmarshalErr == nil {
			return entry.Result, entry.Found, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("geocode cache read failed",
			logging.String("place", place),
			logging.Error(err))
	}

	result, found, err := c.inner.Geocode(ctx, place)
	if err != nil {
		return Result{}, false, err
	}

	payload, err := json.Marshal(cacheEntry{Found: found, Result: result})
	if err == nil {
		if setErr := c.rdb.Set(ctx, key, payload, c.ttl).Err(); setErr != nil {
			c.logger.Warn("geocode cache write failed",
				logging.String("place", place),
				logging.Error(setErr))
		}
	}
	return result, found, nil
}
