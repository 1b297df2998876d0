package decorator

import (
	"context"
	"time"
)

const defaultCacheSetTimeout = 2 * time.Second

type (
	// CacheStatus represents the status of a cache operation.
	CacheStatus string

	cacheStatusKey struct{}

	CacheConfig struct {
		Enabled bool
		TTL     time.Duration
		// SetTimeout bounds the background write after a miss.
		SetTimeout time.Duration
		// OnStatus observes the outcome of every lookup.
		OnStatus func(ctx context.Context, status CacheStatus)
	}

	// CacheEntry is the outcome of a lookup. Generation is the invalidation
	// generation observed at lookup time; a later Set must present it so that
	// results read before a concurrent invalidation are never stored.
	CacheEntry[R Result] struct {
		Value      R
		Hit        bool
		Generation int64
	}

	CacheGetter[Q Query, R Result] interface {
		Get(ctx context.Context, query Q) (CacheEntry[R], error)
	}

	CacheSetter[Q Query, R Result] interface {
		Set(ctx context.Context, query Q, result R, generation int64, ttl time.Duration) error
	}

	Cache[Q Query, R Result] interface {
		CacheGetter[Q, R]
		CacheSetter[Q, R]
	}

	queryCachingDecorator[Q Query, R Result] struct {
		base   QueryHandler[Q, R]
		cache  Cache[Q, R]
		config CacheConfig
	}
)

const (
	CacheStatusHit    CacheStatus = "HIT"
	CacheStatusMiss   CacheStatus = "MISS"
	CacheStatusBypass CacheStatus = "BYPASS"
	CacheStatusError  CacheStatus = "ERROR"
)

// WithCacheStatus adds cache status to context.
func WithCacheStatus(ctx context.Context, status CacheStatus) context.Context {
	return context.WithValue(ctx, cacheStatusKey{}, status)
}

// GetCacheStatus retrieves cache status from context.
func GetCacheStatus(ctx context.Context) CacheStatus {
	if status, ok := ctx.Value(cacheStatusKey{}).(CacheStatus); ok {
		return status
	}

	return CacheStatusBypass
}

// NewQueryCachingDecorator serves query results from cache and fills it on a miss.
// Lookup failures degrade to the base handler.
func NewQueryCachingDecorator[Q Query, R Result](
	base QueryHandler[Q, R],
	cache Cache[Q, R],
	config CacheConfig,
) QueryHandler[Q, R] {
	if config.SetTimeout <= 0 {
		config.SetTimeout = defaultCacheSetTimeout
	}

	return queryCachingDecorator[Q, R]{
		base:   base,
		cache:  cache,
		config: config,
	}
}

func (d queryCachingDecorator[Q, R]) Execute(ctx context.Context, query Q) (R, error) {
	if !d.config.Enabled || d.cache == nil {
		d.observe(ctx, CacheStatusBypass)

		return d.base.Execute(WithCacheStatus(ctx, CacheStatusBypass), query)
	}

	entry, lookupErr := d.cache.Get(ctx, query)
	if lookupErr == nil && entry.Hit {
		d.observe(ctx, CacheStatusHit)

		return entry.Value, nil
	}

	status := CacheStatusMiss
	if lookupErr != nil {
		status = CacheStatusError
	}

	d.observe(ctx, status)

	result, err := d.base.Execute(WithCacheStatus(ctx, status), query)
	if err != nil {
		var zero R

		return zero, err
	}

	// Without a generation there is no way to tell whether the result
	// predates an invalidation, so nothing is stored.
	if lookupErr != nil {
		return result, nil
	}

	go func(generation int64) {
		setCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.config.SetTimeout)
		defer cancel()

		_ = d.cache.Set(setCtx, query, result, generation, d.config.TTL)
	}(entry.Generation)

	return result, nil
}

func (d queryCachingDecorator[Q, R]) observe(ctx context.Context, status CacheStatus) {
	if d.config.OnStatus != nil {
		d.config.OnStatus(ctx, status)
	}
}
