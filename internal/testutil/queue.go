package testutil

import (
	"context"
	"slices"
	"sync"

	"github.com/architeacher/gpstracker/internal/adapters/queue"
	"github.com/architeacher/gpstracker/internal/domain/model"
	"github.com/architeacher/gpstracker/internal/ports"
)

// Queue is an in-process partitioned queue. It implements the publisher,
// source factory and dead-letter ports and records how every delivery was
// settled.
type Queue struct {
	mu sync.Mutex

	partitions []chan *Delivery
	sequence   uint64
	acked      []model.TelemetryMessage
	termed     []model.TelemetryMessage
	letters    []ports.DeadLetter

	PublishErr    error
	DeadLetterErr error
}

func NewQueue(partitions int) *Queue {
	q := &Queue{partitions: make([]chan *Delivery, max(partitions, 1))}
	for i := range q.partitions {
		q.partitions[i] = make(chan *Delivery, 1024)
	}

	return q
}

func (q *Queue) Publish(_ context.Context, msg model.TelemetryMessage) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.PublishErr != nil {
		return 0, q.PublishErr
	}

	partition := queue.PartitionFor(msg.DeviceID, len(q.partitions))
	q.sequence++
	q.partitions[partition] <- &Delivery{queue: q, msg: msg, partition: partition, sequence: q.sequence}

	return partition, nil
}

func (q *Queue) Partitions() int {
	return len(q.partitions)
}

func (q *Queue) Source(_ context.Context, partition int) (ports.TelemetrySource, error) {
	return source{in: q.partitions[partition]}, nil
}

func (q *Queue) Add(_ context.Context, letter ports.DeadLetter) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.DeadLetterErr != nil {
		return q.DeadLetterErr
	}

	q.letters = append(q.letters, letter)

	return nil
}

func (q *Queue) List(_ context.Context, limit int) ([]ports.DeadLetter, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if limit <= 0 || limit > len(q.letters) {
		limit = len(q.letters)
	}

	return slices.Clone(q.letters[:limit]), nil
}

// Replay republishes parked messages that still have a decodable payload.
func (q *Queue) Replay(ctx context.Context, limit int) (int, error) {
	letters, err := q.List(ctx, limit)
	if err != nil {
		return 0, err
	}

	replayed := 0

	for _, letter := range letters {
		if letter.Payload != nil {
			continue
		}

		if _, err := q.Publish(ctx, letter.Message); err != nil {
			return replayed, err
		}

		q.mu.Lock()
		q.letters = slices.DeleteFunc(q.letters, func(l ports.DeadLetter) bool {
			return l.Message.ID == letter.Message.ID
		})
		q.mu.Unlock()

		replayed++
	}

	return replayed, nil
}

func (q *Queue) Acked() []model.TelemetryMessage {
	q.mu.Lock()
	defer q.mu.Unlock()

	return slices.Clone(q.acked)
}

func (q *Queue) Termed() []model.TelemetryMessage {
	q.mu.Lock()
	defer q.mu.Unlock()

	return slices.Clone(q.termed)
}

func (q *Queue) DeadLetters() []ports.DeadLetter {
	q.mu.Lock()
	defer q.mu.Unlock()

	return slices.Clone(q.letters)
}

// Pending counts published messages no worker has taken yet.
func (q *Queue) Pending() int {
	pending := 0
	for _, ch := range q.partitions {
		pending += len(ch)
	}

	return pending
}

type source struct {
	in chan *Delivery
}

func (s source) Next(ctx context.Context) (ports.Delivery, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case d := <-s.in:
		return d, nil
	}
}

func (s source) Close() error {
	return nil
}

// Delivery is a single hand-out of a queued message.
type Delivery struct {
	queue     *Queue
	msg       model.TelemetryMessage
	partition int
	sequence  uint64
}

// NewDelivery builds a delivery that settles against q without being published.
func NewDelivery(q *Queue, msg model.TelemetryMessage, sequence uint64) *Delivery {
	return &Delivery{queue: q, msg: msg, sequence: sequence}
}

func (d *Delivery) Message() model.TelemetryMessage { return d.msg }

func (d *Delivery) Partition() int { return d.partition }

func (d *Delivery) Sequence() uint64 { return d.sequence }

func (d *Delivery) NumDelivered() uint64 { return 1 }

func (d *Delivery) Context(ctx context.Context) context.Context { return ctx }

func (d *Delivery) Ack(context.Context) error {
	d.queue.mu.Lock()
	defer d.queue.mu.Unlock()

	d.queue.acked = append(d.queue.acked, d.msg)

	return nil
}

func (d *Delivery) Term(context.Context, string) error {
	d.queue.mu.Lock()
	defer d.queue.mu.Unlock()

	d.queue.termed = append(d.queue.termed, d.msg)

	return nil
}
