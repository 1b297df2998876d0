package broadcast

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/architeacher/gpstracker/internal/domain/model"
	"github.com/architeacher/gpstracker/internal/infrastructure"
	"github.com/architeacher/gpstracker/internal/ports"
	"github.com/architeacher/gpstracker/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// RedisBroadcaster fans out over Redis Pub/Sub, so every replica's viewers
// see updates persisted by any replica's consumers.
type RedisBroadcaster struct {
	client     *infrastructure.KeydbClient
	prefix     string
	bufferSize int
	logger     logger.Logger
}

func NewRedisBroadcaster(client *infrastructure.KeydbClient, channelPrefix string, bufferSize int, log logger.Logger) *RedisBroadcaster {
	return &RedisBroadcaster{
		client:     client,
		prefix:     channelPrefix,
		bufferSize: bufferSize,
		logger:     log,
	}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := b.client.Publish(ctx, b.channel(topic), payload); err != nil {
		return fmt.Errorf("%w: publishing to %s: %w", model.ErrBroadcastFailed, topic, err)
	}

	return nil
}

func (b *RedisBroadcaster) Subscribe(ctx context.Context, topics ...string) (ports.Subscription, error) {
	channels := make([]string, 0, len(topics))
	for _, topic := range topics {
		channels = append(channels, b.channel(topic))
	}

	pubsub, err := b.client.Subscribe(ctx, channels...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrBroadcastFailed, err)
	}

	sub := &redisSubscription{
		pubsub: pubsub,
		out:    make(chan []byte, b.bufferSize),
		done:   make(chan struct{}),
		logger: b.logger,
	}

	go sub.relay()

	return sub, nil
}

func (b *RedisBroadcaster) channel(topic string) string {
	if b.prefix == "" {
		return topic
	}

	return b.prefix + ":" + strings.TrimPrefix(topic, "/")
}

type redisSubscription struct {
	pubsub    *redis.PubSub
	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
	logger    logger.Logger
}

func (s *redisSubscription) C() <-chan []byte {
	return s.out
}

// relay drops messages when the viewer falls behind rather than stalling
// the shared Redis connection.
func (s *redisSubscription) relay() {
	defer close(s.out)

	messages := s.pubsub.Channel()

	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}

			select {
			case s.out <- []byte(msg.Payload):
			default:
				s.logger.Debug().Str("channel", msg.Channel).Msg("slow live viewer, update dropped")
			}
		}
	}
}

func (s *redisSubscription) Close() error {
	var err error

	s.closeOnce.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
	})

	return err
}
