package store

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/i474232898/weather-dashboard/internal/observability"
	"github.com/i474232898/weather-dashboard/internal/weather"
)

// DefaultCoordinatesTTL is how long a resolved location stays cached.
const DefaultCoordinatesTTL = time.Hour

// CoordinatesCache maps location names to coordinates with a fixed TTL.
//
// Expiry is lazy: an expired entry is treated as absent at read time and no
// janitor goroutine sweeps the map. There is no capacity bound.
type CoordinatesCache struct {
	items   *cache.Cache
	ttl     time.Duration
	metrics *observability.Metrics
}

// NewCoordinatesCache creates a cache whose entries live for ttl after being written.
// A non-positive ttl falls back to DefaultCoordinatesTTL.
func NewCoordinatesCache(ttl time.Duration, metrics *observability.Metrics) *CoordinatesCache {
	if ttl <= 0 {
		ttl = DefaultCoordinatesTTL
	}
	return &CoordinatesCache{
		// cleanup interval 0 disables the go-cache janitor
		items:   cache.New(ttl, 0),
		ttl:     ttl,
		metrics: metrics,
	}
}

// Get returns the cached coordinates for locationName. The key is matched exactly.
func (c *CoordinatesCache) Get(ctx context.Context, locationName string) (weather.Coordinates, bool, error) {
	if err := weather.ValidateLocationName(locationName); err != nil {
		return weather.Coordinates{}, false, err
	}
	if err := ctx.Err(); err != nil {
		return weather.Coordinates{}, false, err
	}

	v, ok := c.items.Get(locationName)
	if !ok {
		c.record("miss")
		return weather.Coordinates{}, false, nil
	}

	coords, ok := v.(weather.Coordinates)
	if !ok {
		return weather.Coordinates{}, false, fmt.Errorf("unexpected cache value type %T", v)
	}

	c.record("hit")
	return coords, true, nil
}

// Put stores coords under locationName, replacing any existing entry and resetting its TTL.
func (c *CoordinatesCache) Put(ctx context.Context, locationName string, coords weather.Coordinates) error {
	if err := weather.ValidateLocationName(locationName); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.items.Set(locationName, coords, cache.DefaultExpiration)
	return nil
}

// TTL reports the configured entry lifetime.
func (c *CoordinatesCache) TTL() time.Duration {
	return c.ttl
}

func (c *CoordinatesCache) record(result string) {
	if c.metrics == nil {
		return
	}
	c.metrics.CoordinatesCache.WithLabelValues(result).Inc()
}
