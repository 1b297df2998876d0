package testutil

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/architeacher/gpstracker/internal/adapters/repos"
	"github.com/architeacher/gpstracker/internal/domain/model"
	"github.com/architeacher/gpstracker/internal/ports"
)

// LocationCache is an in-memory ports.LocationCache with the same
// generation rules as the keydb implementation.
type LocationCache struct {
	mu sync.Mutex

	last        map[model.DeviceID]*model.LocationSample
	pages       map[string]*model.PageResult[model.LocationSample]
	pageOwners  map[string]model.DeviceID
	generations map[model.DeviceID]int64
	purges      []string
	writes      int

	GetErr  error
	Healthy bool
}

func NewLocationCache() *LocationCache {
	return &LocationCache{
		last:        make(map[model.DeviceID]*model.LocationSample),
		pages:       make(map[string]*model.PageResult[model.LocationSample]),
		pageOwners:  make(map[string]model.DeviceID),
		generations: make(map[model.DeviceID]int64),
		Healthy:     true,
	}
}

func (c *LocationCache) GetLastLocation(_ context.Context, deviceID model.DeviceID) (*ports.CacheResult[*model.LocationSample], error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.GetErr != nil {
		return nil, c.GetErr
	}

	sample, ok := c.last[deviceID]

	return &ports.CacheResult[*model.LocationSample]{Data: sample, Hit: ok, Generation: c.generations[deviceID]}, nil
}

func (c *LocationCache) SetLastLocation(_ context.Context, sample *model.LocationSample, generation int64, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generations[sample.DeviceID] != generation {
		return nil
	}

	c.last[sample.DeviceID] = sample
	c.writes++

	return nil
}

func (c *LocationCache) GetLocationPage(
	ctx context.Context,
	deviceID model.DeviceID,
	page model.Page,
) (*ports.CacheResult[*model.PageResult[model.LocationSample]], error) {
	return c.getPage(deviceID, pageKey(deviceID, page))
}

func (c *LocationCache) SetLocationPage(
	_ context.Context,
	deviceID model.DeviceID,
	page model.Page,
	result *model.PageResult[model.LocationSample],
	generation int64,
	_ time.Duration,
) error {
	c.setPage(deviceID, pageKey(deviceID, page), result, generation)

	return nil
}

func (c *LocationCache) GetLocationRange(
	_ context.Context,
	deviceID model.DeviceID,
	timeRange model.TimeRange,
	page model.Page,
) (*ports.CacheResult[*model.PageResult[model.LocationSample]], error) {
	return c.getPage(deviceID, rangeKey(deviceID, timeRange, page))
}

func (c *LocationCache) SetLocationRange(
	_ context.Context,
	deviceID model.DeviceID,
	timeRange model.TimeRange,
	page model.Page,
	result *model.PageResult[model.LocationSample],
	generation int64,
	_ time.Duration,
) error {
	c.setPage(deviceID, rangeKey(deviceID, timeRange, page), result, generation)

	return nil
}

func (c *LocationCache) InvalidateDevice(_ context.Context, deviceID model.DeviceID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dropDevice(deviceID)
	c.purges = append(c.purges, "device:"+deviceID.String())

	return nil
}

func (c *LocationCache) dropDevice(deviceID model.DeviceID) {
	c.generations[deviceID]++
	delete(c.last, deviceID)

	for key, owner := range c.pageOwners {
		if owner == deviceID {
			delete(c.pages, key)
			delete(c.pageOwners, key)
		}
	}
}

// Invalidate understands the keys of repos.DeviceCacheKeys and drops the
// matching device's entries.
func (c *LocationCache) Invalidate(_ context.Context, keyOrPrefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.purges = append(c.purges, keyOrPrefix)

	for deviceID := range c.knownDevices() {
		if slices.Contains(repos.DeviceCacheKeys(deviceID), keyOrPrefix) {
			c.dropDevice(deviceID)
		}
	}

	return nil
}

func (c *LocationCache) knownDevices() map[model.DeviceID]struct{} {
	known := make(map[model.DeviceID]struct{}, len(c.last)+len(c.generations))
	for deviceID := range c.last {
		known[deviceID] = struct{}{}
	}

	for deviceID := range c.generations {
		known[deviceID] = struct{}{}
	}

	for _, owner := range c.pageOwners {
		known[owner] = struct{}{}
	}

	return known
}

func (c *LocationCache) PurgeAll(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	clear(c.last)
	clear(c.pages)
	clear(c.pageOwners)
	c.purges = append(c.purges, "all")

	return nil
}

func (c *LocationCache) PurgeByPattern(_ context.Context, pattern string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.purges = append(c.purges, pattern)

	return int64(len(c.pages)), nil
}

func (c *LocationCache) IsHealthy(_ context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.Healthy
}

// Writes counts accepted Set calls.
func (c *LocationCache) Writes() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.writes
}

func (c *LocationCache) Purges() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]string(nil), c.purges...)
}

func (c *LocationCache) getPage(
	deviceID model.DeviceID,
	key string,
) (*ports.CacheResult[*model.PageResult[model.LocationSample]], error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.GetErr != nil {
		return nil, c.GetErr
	}

	result, ok := c.pages[key]

	return &ports.CacheResult[*model.PageResult[model.LocationSample]]{
		Data:       result,
		Hit:        ok,
		Key:        key,
		Generation: c.generations[deviceID],
	}, nil
}

func (c *LocationCache) setPage(deviceID model.DeviceID, key string, result *model.PageResult[model.LocationSample], generation int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generations[deviceID] != generation {
		return
	}

	c.pages[key] = result
	c.pageOwners[key] = deviceID
	c.writes++
}

func pageKey(deviceID model.DeviceID, page model.Page) string {
	return fmt.Sprintf("%d:page:%d:%d", deviceID, page.Number, page.Size)
}

func rangeKey(deviceID model.DeviceID, timeRange model.TimeRange, page model.Page) string {
	return fmt.Sprintf("%d:range:%d:%d:%d:%d", deviceID, timeRange.From.UnixNano(), timeRange.To.UnixNano(), page.Number, page.Size)
}
