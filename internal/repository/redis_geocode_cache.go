package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/waypointhq/waypoint/internal/domain"
)

const (
	geocodeKeyPrefix = "geocode:addr:"
	geocodeCacheTTL  = 24 * time.Hour
)

// RedisGeocodeCache implements domain.GeocodeCache using Redis
type RedisGeocodeCache struct {
	client *redis.Client
}

// NewRedisGeocodeCache creates a new Redis geocode cache
func NewRedisGeocodeCache(client *redis.Client) *RedisGeocodeCache {
	return &RedisGeocodeCache{
		client: client,
	}
}

func geocodeKey(address string) string {
	return geocodeKeyPrefix + strings.ToLower(strings.Join(strings.Fields(address), " "))
}

// Get retrieves cached coordinates for an address. A cache miss returns
// (nil, nil).
func (r *RedisGeocodeCache) Get(ctx context.Context, address string) (*domain.Coordinates, error) {
	data, err := r.client.Get(ctx, geocodeKey(address)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cached geocode: %w", err)
	}

	var coords domain.Coordinates
	if err := json.Unmarshal(data, &coords); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached geocode: %w", err)
	}
	return &coords, nil
}

// Set caches coordinates for an address with TTL
func (r *RedisGeocodeCache) Set(ctx context.Context, address string, coords domain.Coordinates, ttl time.Duration) error {
	data, err := json.Marshal(coords)
	if err != nil {
		return fmt.Errorf("failed to marshal coordinates: %w", err)
	}

	if err := r.client.Set(ctx, geocodeKey(address), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache geocode: %w", err)
	}
	return nil
}

// CachedGeocoder wraps a domain.Geocoder with a GeocodeCache. Cache
// failures degrade to a direct lookup; only successful lookups are cached,
// so a transient not-found can be retried.
type CachedGeocoder struct {
	inner domain.Geocoder
	cache domain.GeocodeCache
}

// NewCachedGeocoder creates a cache decorator around a geocoder
func NewCachedGeocoder(inner domain.Geocoder, cache domain.GeocodeCache) *CachedGeocoder {
	return &CachedGeocoder{
		inner: inner,
		cache: cache,
	}
}

// Geocode resolves an address, consulting the cache first
func (c *CachedGeocoder) Geocode(ctx context.Context, address string) (domain.Coordinates, error) {
	if cached, err := c.cache.Get(ctx, address); err == nil && cached != nil {
		return *cached, nil
	}

	coords, err := c.inner.Geocode(ctx, address)
	if err != nil {
		return coords, err
	}

	// Store in cache (ignore cache errors)
	_ = c.cache.Set(ctx, address, coords, geocodeCacheTTL)

	return coords, nil
}
