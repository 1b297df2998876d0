package commands

import (
	"context"
	"time"

	"github.com/architeacher/gpstracker/internal/domain/model"
	"github.com/architeacher/gpstracker/internal/ports"
	"github.com/architeacher/gpstracker/pkg/decorator"
	"github.com/architeacher/gpstracker/pkg/logger"
	"github.com/architeacher/gpstracker/pkg/metrics"
	otelTrace "go.opentelemetry.io/otel/trace"
)

type (
	SubmitEventCommand struct {
		DeviceID   model.DeviceID
		Type       model.EventType
		ReportedAt *time.Time
	}

	SubmitEventCommandHandler = decorator.CommandHandler[SubmitEventCommand, model.Receipt]

	submitEventCommandHandler struct {
		gateway ports.TelemetryGateway
	}
)

func NewSubmitEventCommandHandler(
	gateway ports.TelemetryGateway,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) SubmitEventCommandHandler {
	return decorator.ApplyCommandDecorators[SubmitEventCommand, model.Receipt](
		submitEventCommandHandler{gateway: gateway},
		log,
		metricsClient,
		tracerProvider,
	)
}

func (h submitEventCommandHandler) Handle(ctx context.Context, cmd SubmitEventCommand) (model.Receipt, error) {
	return h.gateway.SubmitEvent(ctx, cmd.DeviceID, cmd.Type, cmd.ReportedAt)
}
