package repos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/architeacher/gpstracker/internal/domain/model"
	"github.com/architeacher/gpstracker/internal/infrastructure"
	"github.com/architeacher/gpstracker/internal/ports"
	"github.com/architeacher/gpstracker/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	locationCacheVersion = "v1"
	locationKeyPrefix    = "gpstracker:" + locationCacheVersion + ":location:"

	lastLocationSegment = "last:"
	pageSegment         = "page:"
	rangeSegment        = "range:"
	generationSegment   = "gen:"

	defaultScanBatchSize = 100
)

// LocationCacheRepository keeps read-through copies of location queries.
// Every device has a generation counter; entries are only written while the
// generation observed before the database read is still current.
type LocationCacheRepository struct {
	client        *infrastructure.KeydbClient
	logger        logger.Logger
	scanBatchSize int64
}

func NewLocationCacheRepository(client *infrastructure.KeydbClient, scanBatchSize int64, log logger.Logger) *LocationCacheRepository {
	if scanBatchSize <= 0 {
		scanBatchSize = defaultScanBatchSize
	}

	return &LocationCacheRepository{
		client:        client,
		logger:        log,
		scanBatchSize: scanBatchSize,
	}
}

func (r *LocationCacheRepository) GetLastLocation(
	ctx context.Context,
	deviceID model.DeviceID,
) (*ports.CacheResult[*model.LocationSample], error) {
	return getCached[*model.LocationSample](ctx, r.client, LastLocationKey(deviceID), generationKey(deviceID))
}

func (r *LocationCacheRepository) SetLastLocation(
	ctx context.Context,
	sample *model.LocationSample,
	generation int64,
	ttl time.Duration,
) error {
	return r.setCached(ctx, LastLocationKey(sample.DeviceID), sample.DeviceID, sample, generation, ttl)
}

func (r *LocationCacheRepository) GetLocationPage(
	ctx context.Context,
	deviceID model.DeviceID,
	page model.Page,
) (*ports.CacheResult[*model.PageResult[model.LocationSample]], error) {
	return getCached[*model.PageResult[model.LocationSample]](ctx, r.client, LocationPageKey(deviceID, page), generationKey(deviceID))
}

func (r *LocationCacheRepository) SetLocationPage(
	ctx context.Context,
	deviceID model.DeviceID,
	page model.Page,
	result *model.PageResult[model.LocationSample],
	generation int64,
	ttl time.Duration,
) error {
	return r.setCached(ctx, LocationPageKey(deviceID, page), deviceID, result, generation, ttl)
}

func (r *LocationCacheRepository) GetLocationRange(
	ctx context.Context,
	deviceID model.DeviceID,
	timeRange model.TimeRange,
	page model.Page,
) (*ports.CacheResult[*model.PageResult[model.LocationSample]], error) {
	return getCached[*model.PageResult[model.LocationSample]](
		ctx, r.client, LocationRangeKey(deviceID, timeRange, page), generationKey(deviceID),
	)
}

func (r *LocationCacheRepository) SetLocationRange(
	ctx context.Context,
	deviceID model.DeviceID,
	timeRange model.TimeRange,
	page model.Page,
	result *model.PageResult[model.LocationSample],
	generation int64,
	ttl time.Duration,
) error {
	return r.setCached(ctx, LocationRangeKey(deviceID, timeRange, page), deviceID, result, generation, ttl)
}

// InvalidateDevice bumps the generation before deleting, so a reader that
// fetched from the database before this call cannot repopulate the cache.
func (r *LocationCacheRepository) InvalidateDevice(ctx context.Context, deviceID model.DeviceID) error {
	if _, err := r.client.Incr(ctx, generationKey(deviceID)); err != nil {
		return fmt.Errorf("%w: bumping generation of device %s: %v", model.ErrCacheUnavailable, deviceID, err)
	}

	if err := r.client.Delete(ctx, LastLocationKey(deviceID)); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: deleting last location of device %s: %v", model.ErrCacheUnavailable, deviceID, err)
	}

	for _, prefix := range []string{pageSegment, rangeSegment} {
		pattern := fmt.Sprintf("%s%s%s:*", locationKeyPrefix, prefix, deviceID)
		if _, err := r.purgeByPattern(ctx, pattern); err != nil {
			return fmt.Errorf("%w: %v", model.ErrCacheUnavailable, err)
		}
	}

	return nil
}

// Invalidate drops a key or, for a pattern ending in "*", every matching key.
// Dropping a last-location key also advances the device's generation.
func (r *LocationCacheRepository) Invalidate(ctx context.Context, keyOrPrefix string) error {
	if strings.HasSuffix(keyOrPrefix, "*") {
		if _, err := r.PurgeByPattern(ctx, keyOrPrefix); err != nil {
			return fmt.Errorf("%w: %v", model.ErrCacheUnavailable, err)
		}

		return nil
	}

	key := r.namespaced(keyOrPrefix)

	if rest, ok := strings.CutPrefix(key, locationKeyPrefix+lastLocationSegment); ok {
		if deviceID, err := model.ParseDeviceID(rest); err == nil {
			if _, err := r.client.Incr(ctx, generationKey(deviceID)); err != nil {
				return fmt.Errorf("%w: bumping generation of device %s: %v", model.ErrCacheUnavailable, deviceID, err)
			}
		}
	}

	if err := r.client.Delete(ctx, key); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: invalidating %s: %v", model.ErrCacheUnavailable, keyOrPrefix, err)
	}

	return nil
}

// DeviceCacheKeys lists what a new sample of the device makes stale, last
// location first so the generation advances before pages are dropped.
func DeviceCacheKeys(deviceID model.DeviceID) []string {
	return []string{
		LastLocationKey(deviceID),
		fmt.Sprintf("%s%s%s:*", locationKeyPrefix, pageSegment, deviceID),
		fmt.Sprintf("%s%s%s:*", locationKeyPrefix, rangeSegment, deviceID),
	}
}

// PurgeAll drops every cached value. Generation counters survive so that
// in-flight writes are still checked against them.
func (r *LocationCacheRepository) PurgeAll(ctx context.Context) error {
	for _, segment := range []string{lastLocationSegment, pageSegment, rangeSegment} {
		pattern := locationKeyPrefix + segment + "*"
		if _, err := r.purgeByPattern(ctx, pattern); err != nil {
			return fmt.Errorf("purging pattern %s: %w", pattern, err)
		}
	}

	return nil
}

// PurgeByPattern is confined to the location namespace.
func (r *LocationCacheRepository) PurgeByPattern(ctx context.Context, pattern string) (int64, error) {
	return r.purgeByPattern(ctx, r.namespaced(pattern))
}

func (r *LocationCacheRepository) IsHealthy(ctx context.Context) bool {
	return r.client.IsHealthy(ctx)
}

func LastLocationKey(deviceID model.DeviceID) string {
	return locationKeyPrefix + lastLocationSegment + deviceID.String()
}

func LocationPageKey(deviceID model.DeviceID, page model.Page) string {
	return fmt.Sprintf("%s%s%s:%d:%d", locationKeyPrefix, pageSegment, deviceID, page.Number, page.Size)
}

func LocationRangeKey(deviceID model.DeviceID, timeRange model.TimeRange, page model.Page) string {
	return fmt.Sprintf(
		"%s%s%s:%d:%d:%d:%d",
		locationKeyPrefix, rangeSegment, deviceID,
		timeRange.From.UnixNano(), timeRange.To.UnixNano(),
		page.Number, page.Size,
	)
}

func generationKey(deviceID model.DeviceID) string {
	return locationKeyPrefix + generationSegment + deviceID.String()
}

func (r *LocationCacheRepository) namespaced(key string) string {
	if strings.HasPrefix(key, locationKeyPrefix) {
		return key
	}

	return locationKeyPrefix + key
}

func getCached[T any](
	ctx context.Context,
	client *infrastructure.KeydbClient,
	key, genKey string,
) (*ports.CacheResult[T], error) {
	data, generation, err := client.GetWithGeneration(ctx, key, genKey)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return &ports.CacheResult[T]{Hit: false, Key: key, Generation: generation}, nil
		}

		return nil, fmt.Errorf("%w: reading %s: %v", model.ErrCacheUnavailable, key, err)
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("unmarshalling cached %s: %w", key, err)
	}

	return &ports.CacheResult[T]{
		Data:       value,
		Hit:        true,
		Key:        key,
		Generation: generation,
	}, nil
}

func (r *LocationCacheRepository) setCached(
	ctx context.Context,
	key string,
	deviceID model.DeviceID,
	value any,
	generation int64,
	ttl time.Duration,
) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshalling %s: %w", key, err)
	}

	written, err := r.client.SetIfGeneration(ctx, key, generationKey(deviceID), generation, data, ttl)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrCacheUnavailable, err)
	}

	if !written {
		r.logger.Debug().
			Str("key", key).
			Int64("generation", generation).
			Msg("skipped cache write for a superseded generation")
	}

	return nil
}

func (r *LocationCacheRepository) purgeByPattern(ctx context.Context, pattern string) (int64, error) {
	var cursor uint64
	var totalDeleted int64

	for {
		keys, nextCursor, err := r.client.Scan(ctx, cursor, pattern, r.scanBatchSize)
		if err != nil {
			return totalDeleted, fmt.Errorf("scanning keys: %w", err)
		}

		for _, key := range keys {
			if err := r.client.Delete(ctx, key); err != nil && !errors.Is(err, redis.Nil) {
				r.logger.Warn().Str("key", key).Err(err).Msg("failed to delete key during purge")

				continue
			}

			totalDeleted++
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return totalDeleted, nil
}
