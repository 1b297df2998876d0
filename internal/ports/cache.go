package ports

import (
	"context"
	"time"

	"github.com/architeacher/gpstracker/internal/domain/model"
)

type (
	// CacheResult holds the result of a cache lookup. Generation is the
	// device's invalidation generation observed before the value was read.
	CacheResult[T any] struct {
		Data       T
		Hit        bool
		Key        string
		Generation int64
	}

	// LocationCache is the read cache for last-known locations and history
	// pages. Writers only ever invalidate it; values are filled by readers.
	LocationCache interface {
		GetLastLocation(ctx context.Context, deviceID model.DeviceID) (*CacheResult[*model.LocationSample], error)
		SetLastLocation(ctx context.Context, sample *model.LocationSample, generation int64, ttl time.Duration) error

		GetLocationPage(ctx context.Context, deviceID model.DeviceID, page model.Page) (*CacheResult[*model.PageResult[model.LocationSample]], error)
		SetLocationPage(ctx context.Context, deviceID model.DeviceID, page model.Page, result *model.PageResult[model.LocationSample], generation int64, ttl time.Duration) error

		GetLocationRange(ctx context.Context, deviceID model.DeviceID, timeRange model.TimeRange, page model.Page) (*CacheResult[*model.PageResult[model.LocationSample]], error)
		SetLocationRange(ctx context.Context, deviceID model.DeviceID, timeRange model.TimeRange, page model.Page, result *model.PageResult[model.LocationSample], generation int64, ttl time.Duration) error

		// InvalidateDevice drops every cached entry of the device. It is idempotent.
		InvalidateDevice(ctx context.Context, deviceID model.DeviceID) error

		// Invalidate drops a single key, or every key under a prefix ending in "*".
		Invalidate(ctx context.Context, keyOrPrefix string) error

		PurgeAll(ctx context.Context) error

		// PurgeByPattern returns the number of keys deleted.
		PurgeByPattern(ctx context.Context, pattern string) (int64, error)

		IsHealthy(ctx context.Context) bool
	}

	// CachedResponse represents a cached HTTP response.
	CachedResponse struct {
		StatusCode  int               `json:"status_code"`
		Headers     map[string]string `json:"headers"`
		Body        []byte            `json:"body"`
		Fingerprint string            `json:"fingerprint"`
		CreatedAt   time.Time         `json:"created_at"`
	}

	// IdempotencyCache defines the interface for idempotency caching operations.
	IdempotencyCache interface {
		// Get returns nil, nil if the key does not exist.
		Get(ctx context.Context, key string) (*CachedResponse, error)

		Set(ctx context.Context, key string, response *CachedResponse, ttl time.Duration) error

		// SetLock returns true if the lock was acquired, false if already locked.
		SetLock(ctx context.Context, key string, ttl time.Duration) (bool, error)

		ReleaseLock(ctx context.Context, key string) error

		IsHealthy(ctx context.Context) bool
	}
)
