package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"realestate-lt/utils"
)

// Cache stores resolved geocoding results keyed by address.
type Cache interface {
	Get(ctx context.Context, address string) (Result, bool, error)
	Set(ctx context.Context, address string, res Result) error
}

// RedisCache keeps geocoding results in Redis with a fixed TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisCache wraps an existing client.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, prefix: "geocode:"}
}

// DialRedis connects and pings Redis.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

type cachedResult struct {
	Found bool    `json:"found"`
	Lat   float64 `json:"lat,omitempty"`
	Lng   float64 `json:"lng,omitempty"`
}

func (c *RedisCache) key(address string) string {
	return c.prefix + strings.ToLower(strings.Join(strings.Fields(address), " "))
}

func (c *RedisCache) Get(ctx context.Context, address string) (Result, bool, error) {
	raw, err := c.client.Get(ctx, c.key(address)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Result{}, false, nil
	}
	if err != nil {
		return Result{}, false, fmt.Errorf("redis get: %w", err)
	}

	var cr cachedResult
	if err := json.Unmarshal(raw, &cr); err != nil {
		return Result{}, false, fmt.Errorf("decode cached result: %w", err)
	}
	if !cr.Found {
		return NotFound(), true, nil
	}
	return Found(Point{Lat: cr.Lat, Lng: cr.Lng}), true, nil
}

// Set stores found and not-found results. Provider errors are never cached.
func (c *RedisCache) Set(ctx context.Context, address string, res Result) error {
	if res.Status == StatusProviderError {
		return nil
	}
	cr := cachedResult{Found: res.Status == StatusFound, Lat: res.Point.Lat, Lng: res.Point.Lng}
	raw, err := json.Marshal(cr)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.key(address), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// CachedGeocoder consults a Cache before the wrapped provider. Cache failures
// degrade to a direct lookup.
type CachedGeocoder struct {
	next   Geocoder
	cache  Cache
	logger *utils.Logger
}

// NewCachedGeocoder wraps next with cache.
func NewCachedGeocoder(next Geocoder, cache Cache, logger *utils.Logger) *CachedGeocoder {
	return &CachedGeocoder{next: next, cache: cache, logger: logger}
}

func (g *CachedGeocoder) Geocode(ctx context.Context, address string) Result {
	address = WithCountry(address)

	res, ok, err := g.cache.Get(ctx, address)
	if err != nil {
		g.logger.Warn("[geocode] cache read failed for %q: %v", address, err)
	} else if ok {
		return res
	}

	res = g.next.Geocode(ctx, address)
	if err := g.cache.Set(ctx, address, res); err != nil {
		g.logger.Warn("[geocode] cache write failed for %q: %v", address, err)
	}
	return res
}
