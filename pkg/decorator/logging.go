package decorator

import (
	"context"
	"time"

	"github.com/architeacher/gpstracker/pkg/logger"
)

type (
	commandLoggingDecorator[C Command, R any] struct {
		base   CommandHandler[C, R]
		action string
		logger logger.Logger
	}

	queryLoggingDecorator[Q Query, R Result] struct {
		base   QueryHandler[Q, R]
		action string
		logger logger.Logger
	}
)

func (d commandLoggingDecorator[C, R]) Handle(ctx context.Context, cmd C) (R, error) {
	log := d.logger.WithContext(ctx).With().
		Str("command", d.action).
		Logger()

	start := time.Now()
	log.Debug().Msg("executing command")

	result, err := d.base.Handle(ctx, cmd)
	if err != nil {
		log.Error().Err(err).Dur("duration", time.Since(start)).Msg("failed to execute command")

		return result, err
	}

	log.Debug().Dur("duration", time.Since(start)).Msg("command executed successfully")

	return result, nil
}

func (d queryLoggingDecorator[Q, R]) Execute(ctx context.Context, query Q) (R, error) {
	log := d.logger.WithContext(ctx).With().
		Str("query", d.action).
		Logger()

	start := time.Now()
	log.Debug().Msg("executing query")

	result, err := d.base.Execute(ctx, query)
	if err != nil {
		log.Warn().Err(err).Dur("duration", time.Since(start)).Msg("failed to execute query")

		return result, err
	}

	log.Debug().Dur("duration", time.Since(start)).Msg("query executed successfully")

	return result, nil
}
