package commands

import (
	"context"

	"github.com/architeacher/gpstracker/internal/domain/model"
	"github.com/architeacher/gpstracker/internal/ports"
	"github.com/architeacher/gpstracker/pkg/decorator"
	"github.com/architeacher/gpstracker/pkg/idempotency"
	"github.com/architeacher/gpstracker/pkg/logger"
	"github.com/architeacher/gpstracker/pkg/metrics"
	"go.opentelemetry.io/otel/attribute"
	otelTrace "go.opentelemetry.io/otel/trace"
)

type (
	CreateAlertCommand struct {
		DeviceID model.DeviceID
		Type     model.AlertType
		Message  string
	}

	CreateAlertCommandHandler = decorator.CommandHandler[CreateAlertCommand, *model.Alert]

	createAlertCommandHandler struct {
		alerts ports.AlertManager
	}
)

func NewCreateAlertCommandHandler(
	alerts ports.AlertManager,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) CreateAlertCommandHandler {
	return decorator.ApplyCommandDecorators[CreateAlertCommand, *model.Alert](
		createAlertCommandHandler{alerts: alerts},
		log,
		metricsClient,
		tracerProvider,
	)
}

func (h createAlertCommandHandler) Handle(ctx context.Context, cmd CreateAlertCommand) (*model.Alert, error) {
	if key, ok := idempotency.FromContext(ctx); ok {
		otelTrace.SpanFromContext(ctx).SetAttributes(attribute.String("idempotency.key", key))
	}

	return h.alerts.CreateAlert(ctx, cmd.DeviceID, cmd.Type, cmd.Message)
}
