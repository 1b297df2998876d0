package ports

import "context"

type (
	// Broadcaster fans payloads out to live subscribers of a topic. Delivery
	// is best-effort and nothing is replayed to late subscribers.
	Broadcaster interface {
		Publish(ctx context.Context, topic string, payload []byte) error
		Subscribe(ctx context.Context, topics ...string) (Subscription, error)
	}

	Subscription interface {
		// C is closed once the subscription ends.
		C() <-chan []byte
		Close() error
	}
)
