package commands

import (
	"context"
	"fmt"

	"github.com/architeacher/gpstracker/internal/domain/model"
	"github.com/architeacher/gpstracker/internal/ports"
	"github.com/architeacher/gpstracker/pkg/decorator"
	"github.com/architeacher/gpstracker/pkg/logger"
	"github.com/architeacher/gpstracker/pkg/metrics"
	otelTrace "go.opentelemetry.io/otel/trace"
)

type PurgeScope string

const (
	PurgeScopeAll     PurgeScope = "all"
	PurgeScopeDevice  PurgeScope = "device"
	PurgeScopePattern PurgeScope = "pattern"
)

type (
	PurgeCacheCommand struct {
		Scope    PurgeScope
		DeviceID model.DeviceID
		Pattern  string
	}

	// PurgeCacheResult reports deleted keys; it is -1 when the store does not count them.
	PurgeCacheResult struct {
		Deleted int64
	}

	PurgeCacheCommandHandler = decorator.CommandHandler[PurgeCacheCommand, PurgeCacheResult]

	purgeCacheCommandHandler struct {
		cache ports.LocationCache
	}
)

func NewPurgeCacheCommandHandler(
	cache ports.LocationCache,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) PurgeCacheCommandHandler {
	return decorator.ApplyCommandDecorators[PurgeCacheCommand, PurgeCacheResult](
		purgeCacheCommandHandler{cache: cache},
		log,
		metricsClient,
		tracerProvider,
	)
}

func (h purgeCacheCommandHandler) Handle(ctx context.Context, cmd PurgeCacheCommand) (PurgeCacheResult, error) {
	if h.cache == nil {
		return PurgeCacheResult{}, model.ErrCacheUnavailable
	}

	switch cmd.Scope {
	case PurgeScopeAll:
		return PurgeCacheResult{Deleted: -1}, h.cache.PurgeAll(ctx)
	case PurgeScopeDevice:
		if cmd.DeviceID <= 0 {
			return PurgeCacheResult{}, fmt.Errorf("%w: %d", model.ErrInvalidDeviceID, cmd.DeviceID)
		}

		return PurgeCacheResult{Deleted: -1}, h.cache.InvalidateDevice(ctx, cmd.DeviceID)
	case PurgeScopePattern:
		if cmd.Pattern == "" {
			return PurgeCacheResult{}, fmt.Errorf("%w: pattern must not be empty", model.ErrValidation)
		}

		deleted, err := h.cache.PurgeByPattern(ctx, cmd.Pattern)

		return PurgeCacheResult{Deleted: deleted}, err
	default:
		return PurgeCacheResult{}, fmt.Errorf("%w: unknown purge scope %q", model.ErrValidation, cmd.Scope)
	}
}
