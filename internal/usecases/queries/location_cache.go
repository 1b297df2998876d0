package queries

import (
	"context"
	"time"

	"github.com/architeacher/gpstracker/internal/domain/model"
	"github.com/architeacher/gpstracker/internal/ports"
	"github.com/architeacher/gpstracker/pkg/decorator"
)

type (
	lastLocationCache struct {
		cache ports.LocationCache
	}

	locationPageCache struct {
		cache ports.LocationCache
	}

	locationRangeCache struct {
		cache ports.LocationCache
	}
)

// NewLastLocationCache returns nil for a nil cache so that the caching
// decorator bypasses it.
func NewLastLocationCache(cache ports.LocationCache) decorator.Cache[GetLastLocationQuery, *model.LocationSample] {
	if cache == nil {
		return nil
	}

	return lastLocationCache{cache: cache}
}

func NewLocationPageCache(cache ports.LocationCache) decorator.Cache[ListLocationsQuery, LocationPage] {
	if cache == nil {
		return nil
	}

	return locationPageCache{cache: cache}
}

func NewLocationRangeCache(cache ports.LocationCache) decorator.Cache[ListLocationsInRangeQuery, LocationPage] {
	if cache == nil {
		return nil
	}

	return locationRangeCache{cache: cache}
}

func (c lastLocationCache) Get(ctx context.Context, query GetLastLocationQuery) (decorator.CacheEntry[*model.LocationSample], error) {
	result, err := c.cache.GetLastLocation(ctx, query.DeviceID)
	if err != nil {
		return decorator.CacheEntry[*model.LocationSample]{}, err
	}

	return entryOf(result), nil
}

func (c lastLocationCache) Set(
	ctx context.Context,
	_ GetLastLocationQuery,
	result *model.LocationSample,
	generation int64,
	ttl time.Duration,
) error {
	return c.cache.SetLastLocation(ctx, result, generation, ttl)
}

func (c locationPageCache) Get(ctx context.Context, query ListLocationsQuery) (decorator.CacheEntry[LocationPage], error) {
	result, err := c.cache.GetLocationPage(ctx, query.DeviceID, query.Page)
	if err != nil {
		return decorator.CacheEntry[LocationPage]{}, err
	}

	return entryOf(result), nil
}

func (c locationPageCache) Set(
	ctx context.Context,
	query ListLocationsQuery,
	result LocationPage,
	generation int64,
	ttl time.Duration,
) error {
	return c.cache.SetLocationPage(ctx, query.DeviceID, query.Page, result, generation, ttl)
}

func (c locationRangeCache) Get(ctx context.Context, query ListLocationsInRangeQuery) (decorator.CacheEntry[LocationPage], error) {
	result, err := c.cache.GetLocationRange(ctx, query.DeviceID, query.TimeRange, query.Page)
	if err != nil {
		return decorator.CacheEntry[LocationPage]{}, err
	}

	return entryOf(result), nil
}

func (c locationRangeCache) Set(
	ctx context.Context,
	query ListLocationsInRangeQuery,
	result LocationPage,
	generation int64,
	ttl time.Duration,
) error {
	return c.cache.SetLocationRange(ctx, query.DeviceID, query.TimeRange, query.Page, result, generation, ttl)
}

func entryOf[R any](result *ports.CacheResult[R]) decorator.CacheEntry[R] {
	return decorator.CacheEntry[R]{
		Value:      result.Data,
		Hit:        result.Hit,
		Generation: result.Generation,
	}
}
