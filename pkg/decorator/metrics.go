package decorator

import (
	"context"
	"time"

	"github.com/architeacher/gpstracker/pkg/metrics"
	"go.opentelemetry.io/otel/attribute"
)

const (
	commandsTotal          = "commands_total"
	commandDurationSeconds = "command_duration_seconds"
	queriesTotal           = "queries_total"
	queryDurationSeconds   = "query_duration_seconds"

	statusSuccess = "success"
	statusFailure = "failure"
)

type (
	commandMetricsDecorator[C Command, R any] struct {
		base   CommandHandler[C, R]
		action string
		client metrics.Client
	}

	queryMetricsDecorator[Q Query, R Result] struct {
		base   QueryHandler[Q, R]
		action string
		client metrics.Client
	}
)

func (d commandMetricsDecorator[C, R]) Handle(ctx context.Context, cmd C) (R, error) {
	start := time.Now()

	result, err := d.base.Handle(ctx, cmd)

	record(ctx, d.client, commandsTotal, commandDurationSeconds, d.action, start, err)

	return result, err
}

func (d queryMetricsDecorator[Q, R]) Execute(ctx context.Context, query Q) (R, error) {
	start := time.Now()

	result, err := d.base.Execute(ctx, query)

	record(ctx, d.client, queriesTotal, queryDurationSeconds, d.action, start, err)

	return result, err
}

func record(ctx context.Context, client metrics.Client, counter, histogram, action string, start time.Time, err error) {
	status := statusSuccess
	if err != nil {
		status = statusFailure
	}

	attrs := []attribute.KeyValue{
		attribute.String("action", action),
		attribute.String("status", status),
	}

	client.Inc(ctx, counter, int64(1), attrs...)
	client.Inc(ctx, histogram, time.Since(start).Seconds(), attrs...)
}
