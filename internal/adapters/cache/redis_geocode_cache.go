package cache

import (
	"context"
	"errors"
	"fmt"
	"load-tracking-service/internal/domain"
	"load-tracking-service/internal/platform/obs"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis backed geocode cache. Each address is its own key holding "lon,lat"
// so entries can expire independently.
type RedisGeocodeCache struct {
	Client *redis.Client
	Prefix string
	TTL    time.Duration
}

func NewRedisGeocodeCache(client *redis.Client, prefix string, ttl time.Duration) *RedisGeocodeCache {
	if prefix == "" {
		prefix = "geocode:"
	}
	return &RedisGeocodeCache{Client: client, Prefix: prefix, TTL: ttl}
}

// Fetch cached coordinates for the given addresses. Malformed entries are
// treated as misses.
func (c *RedisGeocodeCache) GetMany(ctx context.Context, addresses []string) (_ map[string]domain.Coordinates, err error) {
	defer obs.Time(ctx, "geocode.cache.GetMany")(&err)

	if c.Client == nil {
		return nil, errors.New("geocode cache: redis client is nil")
	}

	uniq := uniqueAddresses(addresses)
	if len(uniq) == 0 {
		return map[string]domain.Coordinates{}, nil
	}

	keys := make([]string, len(uniq))
	for i, a := range uniq {
		keys[i] = c.Prefix + a
	}

	vals, err := c.Client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("get geocode cache: mget %d keys: %w", len(keys), err)
	}

	out := make(map[string]domain.Coordinates, len(uniq))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		coords, ok := decodeCoordinates(raw)
		if !ok {
			continue
		}
		out[uniq[i]] = coords
	}

	return out, nil
}

// Store address -> coordinate mappings in one pipeline.
func (c *RedisGeocodeCache) PutMany(ctx context.Context, results map[string]domain.Coordinates) (err error) {
	defer obs.Time(ctx, "geocode.cache.PutMany")(&err)

	if c.Client == nil {
		return errors.New("geocode cache: redis client is nil")
	}

	if len(results) == 0 {
		return nil
	}

	pipe := c.Client.TxPipeline()
	for addr, coords := range results {
		if strings.TrimSpace(addr) == "" {
			return fmt.Errorf("insert geocode cache: empty address key")
		}
		pipe.Set(ctx, c.Prefix+addr, encodeCoordinates(coords), c.TTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("insert geocode cache: exec pipeline: %w", err)
	}

	return nil
}

func encodeCoordinates(c domain.Coordinates) string {
	return strconv.FormatFloat(c.Lon, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lat, 'f', -1, 64)
}

func decodeCoordinates(raw string) (domain.Coordinates, bool) {
	lonStr, latStr, ok := strings.Cut(raw, ",")
	if !ok {
		return domain.Coordinates{}, false
	}

	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return domain.Coordinates{}, false
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return domain.Coordinates{}, false
	}

	return domain.Coordinates{Lon: lon, Lat: lat}, true
}
