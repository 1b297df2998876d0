package decorator

import (
	"context"

	"go.opentelemetry.io/otel/codes"
	otelTrace "go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/architeacher/gpstracker/pkg/decorator"

type (
	commandTracingDecorator[C Command, R any] struct {
		base   CommandHandler[C, R]
		action string
		tracer otelTrace.Tracer
	}

	queryTracingDecorator[Q Query, R Result] struct {
		base   QueryHandler[Q, R]
		action string
		tracer otelTrace.Tracer
	}
)

func (d commandTracingDecorator[C, R]) Handle(ctx context.Context, cmd C) (R, error) {
	ctx, span := d.tracer.Start(ctx, "command."+d.action, otelTrace.WithSpanKind(otelTrace.SpanKindInternal))
	defer span.End()

	result, err := d.base.Handle(ctx, cmd)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	return result, err
}

func (d queryTracingDecorator[Q, R]) Execute(ctx context.Context, query Q) (R, error) {
	ctx, span := d.tracer.Start(ctx, "query."+d.action, otelTrace.WithSpanKind(otelTrace.SpanKindInternal))
	defer span.End()

	result, err := d.base.Execute(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	return result, err
}
