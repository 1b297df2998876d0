package commands

import (
	"context"

	"github.com/architeacher/gpstracker/internal/domain/model"
	"github.com/architeacher/gpstracker/internal/ports"
	"github.com/architeacher/gpstracker/pkg/decorator"
	"github.com/architeacher/gpstracker/pkg/logger"
	"github.com/architeacher/gpstracker/pkg/metrics"
	otelTrace "go.opentelemetry.io/otel/trace"
)

type (
	ResolveAlertCommand struct {
		AlertID model.AlertID
	}

	ResolveAlertCommandHandler = decorator.CommandHandler[ResolveAlertCommand, *model.Alert]

	resolveAlertCommandHandler struct {
		alerts ports.AlertManager
	}
)

func NewResolveAlertCommandHandler(
	alerts ports.AlertManager,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) ResolveAlertCommandHandler {
	return decorator.ApplyCommandDecorators[ResolveAlertCommand, *model.Alert](
		resolveAlertCommandHandler{alerts: alerts},
		log,
		metricsClient,
		tracerProvider,
	)
}

func (h resolveAlertCommandHandler) Handle(ctx context.Context, cmd ResolveAlertCommand) (*model.Alert, error) {
	return h.alerts.ResolveAlert(ctx, cmd.AlertID)
}
