package testutil

import (
	"context"
	"slices"
	"sync"

	"github.com/architeacher/gpstracker/internal/ports"
)

// Published is one payload handed to the Broadcaster.
type Published struct {
	Topic   string
	Payload []byte
}

// Broadcaster delivers in process and records everything published.
type Broadcaster struct {
	mu          sync.Mutex
	published   []Published
	subscribers map[string][]*subscription
	PublishErr  error
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subscribers: make(map[string][]*subscription)}
}

func (b *Broadcaster) Publish(_ context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.PublishErr != nil {
		return b.PublishErr
	}

	b.published = append(b.published, Published{Topic: topic, Payload: payload})

	for _, sub := range b.subscribers[topic] {
		select {
		case sub.out <- payload:
		default:
		}
	}

	return nil
}

func (b *Broadcaster) Subscribe(_ context.Context, topics ...string) (ports.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscription{broadcaster: b, topics: topics, out: make(chan []byte, 16)}
	for _, topic := range topics {
		b.subscribers[topic] = append(b.subscribers[topic], sub)
	}

	return sub, nil
}

func (b *Broadcaster) Published() []Published {
	b.mu.Lock()
	defer b.mu.Unlock()

	return slices.Clone(b.published)
}

func (b *Broadcaster) PublishedTo(topic string) []Published {
	var matched []Published
	for _, p := range b.Published() {
		if p.Topic == topic {
			matched = append(matched, p)
		}
	}

	return matched
}

func (b *Broadcaster) Subscribers(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.subscribers[topic])
}

type subscription struct {
	broadcaster *Broadcaster
	topics      []string
	out         chan []byte
	closed      bool
}

func (s *subscription) C() <-chan []byte {
	return s.out
}

func (s *subscription) Close() error {
	b := s.broadcaster

	b.mu.Lock()
	defer b.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true

	for _, topic := range s.topics {
		b.subscribers[topic] = slices.DeleteFunc(b.subscribers[topic], func(other *subscription) bool {
			return other == s
		})
	}

	close(s.out)

	return nil
}
