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
	SubmitLocationCommand struct {
		DeviceID   model.DeviceID
		Latitude   float64
		Longitude  float64
		ReportedAt *time.Time
	}

	SubmitLocationCommandHandler = decorator.CommandHandler[SubmitLocationCommand, model.Receipt]

	submitLocationCommandHandler struct {
		gateway ports.TelemetryGateway
	}
)

func NewSubmitLocationCommandHandler(
	gateway ports.TelemetryGateway,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) SubmitLocationCommandHandler {
	return decorator.ApplyCommandDecorators[SubmitLocationCommand, model.Receipt](
		submitLocationCommandHandler{gateway: gateway},
		log,
		metricsClient,
		tracerProvider,
	)
}

func (h submitLocationCommandHandler) Handle(ctx context.Context, cmd SubmitLocationCommand) (model.Receipt, error) {
	return h.gateway.SubmitLocation(ctx, cmd.DeviceID, cmd.Latitude, cmd.Longitude, cmd.ReportedAt)
}
