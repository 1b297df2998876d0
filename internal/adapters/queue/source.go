package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/architeacher/gpstracker/internal/config"
	"github.com/architeacher/gpstracker/internal/domain/model"
	"github.com/architeacher/gpstracker/internal/infrastructure"
	"github.com/architeacher/gpstracker/internal/ports"
	"github.com/architeacher/gpstracker/pkg/logger"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

type (
	// ConsumerManager is the part of jetstream.JetStream that declares consumers.
	ConsumerManager interface {
		CreateOrUpdateConsumer(ctx context.Context, stream string, cfg jetstream.ConsumerConfig) (jetstream.Consumer, error)
	}

	// InboundMessage is the part of jetstream.Msg a delivery settles through.
	InboundMessage interface {
		Data() []byte
		Headers() nats.Header
		Metadata() (*jetstream.MsgMetadata, error)
		DoubleAck(ctx context.Context) error
		TermWithReason(reason string) error
	}

	// Fetcher pulls the next message of one partition, waiting at most its
	// configured fetch wait.
	Fetcher interface {
		Fetch() (InboundMessage, error)
	}
)

// SourceFactory declares one durable pull consumer per partition. Each
// consumer allows a single unacknowledged message, which keeps processing
// of a partition strictly sequential.
type SourceFactory struct {
	consumers   ConsumerManager
	deadLetters ports.DeadLetterStore
	config      config.Queue
	logger      logger.Logger
}

func NewSourceFactory(consumers ConsumerManager, deadLetters ports.DeadLetterStore, cfg config.Queue, log logger.Logger) *SourceFactory {
	return &SourceFactory{
		consumers:   consumers,
		deadLetters: deadLetters,
		config:      cfg,
		logger:      log,
	}
}

func ConsumerName(prefix string, partition int) string {
	return fmt.Sprintf("%s-p%d", prefix, partition)
}

func (f *SourceFactory) ConsumerConfig(partition int) jetstream.ConsumerConfig {
	return jetstream.ConsumerConfig{
		Durable:       ConsumerName(f.config.SubjectPrefix, partition),
		FilterSubject: infrastructure.PartitionSubject(f.config.SubjectPrefix, partition),
		DeliverPolicy: jetstream.DeliverAllPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       f.config.AckWait,
		MaxDeliver:    f.config.MaxDeliver,
		MaxAckPending: 1,
	}
}

func (f *SourceFactory) Source(ctx context.Context, partition int) (ports.TelemetrySource, error) {
	consumer, err := f.consumers.CreateOrUpdateConsumer(ctx, f.config.Stream, f.ConsumerConfig(partition))
	if err != nil {
		return nil, fmt.Errorf("%w: declaring consumer of partition %d: %w", model.ErrQueueUnavailable, partition, err)
	}

	return NewPartitionSource(
		consumerFetcher{consumer: consumer, wait: f.config.FetchWait},
		partition,
		f.deadLetters,
		f.logger,
	), nil
}

type consumerFetcher struct {
	consumer jetstream.Consumer
	wait     time.Duration
}

func (f consumerFetcher) Fetch() (InboundMessage, error) {
	return f.consumer.Next(jetstream.FetchMaxWait(f.wait))
}

type PartitionSource struct {
	fetcher     Fetcher
	partition   int
	deadLetters ports.DeadLetterStore
	logger      logger.Logger
}

func NewPartitionSource(fetcher Fetcher, partition int, deadLetters ports.DeadLetterStore, log logger.Logger) *PartitionSource {
	return &PartitionSource{
		fetcher:     fetcher,
		partition:   partition,
		deadLetters: deadLetters,
		logger:      log,
	}
}

// Next blocks until a decodable message arrives. Messages that cannot be
// decoded are moved to the dead-letter store and never reach the caller.
func (s *PartitionSource) Next(ctx context.Context) (ports.Delivery, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		raw, err := s.fetcher.Fetch()
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}

			return nil, fmt.Errorf("%w: fetching from partition %d: %w", model.ErrQueueUnavailable, s.partition, err)
		}

		meta, err := raw.Metadata()
		if err != nil {
			return nil, fmt.Errorf("%w: reading metadata on partition %d: %w", model.ErrQueueUnavailable, s.partition, err)
		}

		msg, err := decodeMessage(raw.Data())
		if err != nil {
			s.rejectUndecodable(ctx, raw, meta, err)

			continue
		}

		return &delivery{
			raw:       raw,
			msg:       msg,
			partition: s.partition,
			meta:      meta,
		}, nil
	}
}

// Close is a no-op; the durable consumer outlives the source.
func (s *PartitionSource) Close() error {
	return nil
}

func (s *PartitionSource) rejectUndecodable(ctx context.Context, raw InboundMessage, meta *jetstream.MsgMetadata, cause error) {
	log := s.logger.With().
		Int("partition", s.partition).
		Uint64("sequence", meta.Sequence.Stream).
		Logger()

	letter := ports.DeadLetter{
		Sequence:     meta.Sequence.Stream,
		Partition:    s.partition,
		Reason:       cause.Error(),
		Attempts:     meta.NumDelivered,
		DeadLetterAt: time.Now().UTC(),
		Payload:      raw.Data(),
	}

	if err := s.deadLetters.Add(ctx, letter); err != nil {
		// Left unsettled, the message is redelivered after the ack wait.
		log.Error().Err(err).Msg("failed to dead-letter undecodable message")

		return
	}

	if err := raw.TermWithReason(cause.Error()); err != nil {
		log.Warn().Err(err).Msg("failed to terminate undecodable message")
	}

	log.Warn().Err(cause).Msg("undecodable message dead-lettered")
}

type delivery struct {
	raw       InboundMessage
	msg       model.TelemetryMessage
	partition int
	meta      *jetstream.MsgMetadata
}

func (d *delivery) Message() model.TelemetryMessage {
	return d.msg
}

func (d *delivery) Partition() int {
	return d.partition
}

func (d *delivery) Sequence() uint64 {
	return d.meta.Sequence.Stream
}

func (d *delivery) NumDelivered() uint64 {
	return d.meta.NumDelivered
}

func (d *delivery) Context(ctx context.Context) context.Context {
	return extractTraceContext(ctx, d.raw.Headers())
}

// Ack waits for the server to confirm, so a confirmed message is never redelivered.
func (d *delivery) Ack(ctx context.Context) error {
	if err := d.raw.DoubleAck(ctx); err != nil {
		return fmt.Errorf("%w: acknowledging sequence %d: %w", model.ErrQueueUnavailable, d.Sequence(), err)
	}

	return nil
}

func (d *delivery) Term(_ context.Context, reason string) error {
	if err := d.raw.TermWithReason(reason); err != nil {
		return fmt.Errorf("%w: terminating sequence %d: %w", model.ErrQueueUnavailable, d.Sequence(), err)
	}

	return nil
}
