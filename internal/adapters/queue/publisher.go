package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/architeacher/gpstracker/internal/config"
	"github.com/architeacher/gpstracker/internal/domain/model"
	"github.com/architeacher/gpstracker/internal/infrastructure"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// StreamPublisher is the part of jetstream.JetStream the queue publishes through.
type StreamPublisher interface {
	PublishMsg(ctx context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

type JetStreamPublisher struct {
	js             StreamPublisher
	subjectPrefix  string
	partitions     int
	publishTimeout time.Duration
}

func NewJetStreamPublisher(js StreamPublisher, cfg config.Queue) *JetStreamPublisher {
	return &JetStreamPublisher{
		js:             js,
		subjectPrefix:  cfg.SubjectPrefix,
		partitions:     cfg.Partitions,
		publishTimeout: cfg.PublishTimeout,
	}
}

// Publish returns once the stream acknowledged the message. The message ID
// doubles as the JetStream de-duplication ID, so a retried publish is stored once.
func (p *JetStreamPublisher) Publish(ctx context.Context, msg model.TelemetryMessage) (int, error) {
	partition := PartitionFor(msg.DeviceID, p.partitions)

	if err := p.publish(ctx, partition, msg, msg.ID); err != nil {
		return partition, err
	}

	return partition, nil
}

func (p *JetStreamPublisher) Partitions() int {
	return p.partitions
}

func (p *JetStreamPublisher) publish(ctx context.Context, partition int, msg model.TelemetryMessage, dedupID string) error {
	natsMsg, err := encodeMessage(ctx, infrastructure.PartitionSubject(p.subjectPrefix, partition), msg)
	if err != nil {
		return err
	}

	if p.publishTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.publishTimeout)
		defer cancel()
	}

	if _, err := p.js.PublishMsg(ctx, natsMsg, jetstream.WithMsgID(dedupID)); err != nil {
		return mapPublishError(err)
	}

	return nil
}

func mapPublishError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, nats.ErrTimeout):
		return fmt.Errorf("%w: %w", model.ErrPublishTimeout, err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%w: %w", model.ErrQueueUnavailable, err)
	}
}
