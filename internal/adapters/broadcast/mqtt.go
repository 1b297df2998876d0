package broadcast

import (
	"context"
	"fmt"
	"sync"

	"github.com/architeacher/gpstracker/internal/domain/model"
	"github.com/architeacher/gpstracker/internal/ports"
	"github.com/architeacher/gpstracker/pkg/logger"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTTransport is the broker connection the MQTT broadcaster needs.
type MQTTTransport interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string, handler mqtt.MessageHandler) error
	Unsubscribe(ctx context.Context, topics ...string) error
}

// MQTTBroadcaster publishes non-retained messages, so a late subscriber sees
// nothing from before it joined. The client routes one handler per topic, so
// local subscribers of a topic share a single broker subscription.
type MQTTBroadcaster struct {
	transport  MQTTTransport
	bufferSize int
	logger     logger.Logger

	mu     sync.Mutex
	topics map[string]map[*mqttSubscription]struct{}
}

func NewMQTTBroadcaster(transport MQTTTransport, bufferSize int, log logger.Logger) *MQTTBroadcaster {
	return &MQTTBroadcaster{
		transport:  transport,
		bufferSize: bufferSize,
		logger:     log,
		topics:     make(map[string]map[*mqttSubscription]struct{}),
	}
}

func (b *MQTTBroadcaster) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := b.transport.Publish(ctx, topic, payload); err != nil {
		return fmt.Errorf("%w: publishing to %s: %w", model.ErrBroadcastFailed, topic, err)
	}

	return nil
}

func (b *MQTTBroadcaster) Subscribe(ctx context.Context, topics ...string) (ports.Subscription, error) {
	sub := &mqttSubscription{
		broadcaster: b,
		topics:      topics,
		out:         make(chan []byte, b.bufferSize),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for i, topic := range topics {
		subscribers, ok := b.topics[topic]
		if !ok {
			if err := b.transport.Subscribe(ctx, topic, b.dispatch); err != nil {
				b.detachLocked(context.WithoutCancel(ctx), sub, topics[:i])

				return nil, fmt.Errorf("%w: subscribing to %s: %w", model.ErrBroadcastFailed, topic, err)
			}

			subscribers = make(map[*mqttSubscription]struct{})
			b.topics[topic] = subscribers
		}

		subscribers[sub] = struct{}{}
	}

	return sub, nil
}

func (b *MQTTBroadcaster) dispatch(_ mqtt.Client, msg mqtt.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.topics[msg.Topic()] {
		sub.deliver(msg.Payload(), b.logger)
	}
}

// detachLocked removes sub from topics and drops broker subscriptions nobody uses.
func (b *MQTTBroadcaster) detachLocked(ctx context.Context, sub *mqttSubscription, topics []string) {
	for _, topic := range topics {
		subscribers := b.topics[topic]
		delete(subscribers, sub)

		if len(subscribers) > 0 {
			continue
		}

		delete(b.topics, topic)

		if err := b.transport.Unsubscribe(ctx, topic); err != nil {
			b.logger.Warn().Err(err).Str("topic", topic).Msg("failed to unsubscribe from MQTT topic")
		}
	}
}

type mqttSubscription struct {
	broadcaster *MQTTBroadcaster
	topics      []string
	out         chan []byte
	closed      bool
}

func (s *mqttSubscription) C() <-chan []byte {
	return s.out
}

// deliver runs under the broadcaster lock.
func (s *mqttSubscription) deliver(payload []byte, log logger.Logger) {
	if s.closed {
		return
	}

	select {
	case s.out <- payload:
	default:
		log.Debug().Strs("topics", s.topics).Msg("slow live viewer, update dropped")
	}
}

func (s *mqttSubscription) Close() error {
	b := s.broadcaster

	b.mu.Lock()
	defer b.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	b.detachLocked(context.Background(), s, s.topics)
	close(s.out)

	return nil
}
