package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/architeacher/gpstracker/internal/config"
	"github.com/architeacher/gpstracker/internal/domain/model"
	"github.com/architeacher/gpstracker/internal/ports"
	"github.com/architeacher/gpstracker/pkg/logger"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const defaultListLimit = 100

// DeadLetterStream is the part of jetstream.Stream the dead-letter store reads through.
type DeadLetterStream interface {
	Info(ctx context.Context, opts ...jetstream.StreamInfoOpt) (*jetstream.StreamInfo, error)
	GetMsg(ctx context.Context, seq uint64, opts ...jetstream.GetMsgOpt) (*jetstream.RawStreamMsg, error)
	DeleteMsg(ctx context.Context, seq uint64) error
}

// DeadLetterStore keeps dead letters in their own stream, outside the
// partitions, so they never block a partition worker.
type DeadLetterStore struct {
	js        StreamPublisher
	stream    DeadLetterStream
	publisher *JetStreamPublisher
	subject   string
	logger    logger.Logger
}

func NewDeadLetterStore(js StreamPublisher, stream DeadLetterStream, cfg config.Queue, log logger.Logger) *DeadLetterStore {
	return &DeadLetterStore{
		js:        js,
		stream:    stream,
		publisher: NewJetStreamPublisher(js, cfg),
		subject:   cfg.DLQSubject,
		logger:    log,
	}
}

func (s *DeadLetterStore) Add(ctx context.Context, letter ports.DeadLetter) error {
	natsMsg, err := s.letterMessage(ctx, letter)
	if err != nil {
		return err
	}

	// A redelivered letter keeps its ID, so a retried Add is stored once.
	dedupID := fmt.Sprintf("%s.dlq.%d.%d", letter.Message.ID, letter.Partition, letter.Sequence)

	if _, err := s.js.PublishMsg(ctx, natsMsg, jetstream.WithMsgID(dedupID)); err != nil {
		return mapPublishError(err)
	}

	return nil
}

func (s *DeadLetterStore) List(ctx context.Context, limit int) ([]ports.DeadLetter, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	info, err := s.stream.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: reading dead-letter stream: %w", model.ErrQueueUnavailable, err)
	}

	letters := make([]ports.DeadLetter, 0, min(limit, int(info.State.Msgs)))
	if info.State.Msgs == 0 {
		return letters, nil
	}

	for seq := info.State.FirstSeq; seq <= info.State.LastSeq && len(letters) < limit; seq++ {
		raw, err := s.stream.GetMsg(ctx, seq)
		if err != nil {
			if errors.Is(err, jetstream.ErrMsgNotFound) {
				continue
			}

			return nil, fmt.Errorf("%w: reading dead letter %d: %w", model.ErrQueueUnavailable, seq, err)
		}

		letters = append(letters, letterFromRaw(raw))
	}

	return letters, nil
}

// Replay moves letters back onto their partitions, oldest first. Letters whose
// payload cannot be decoded stay in the store.
func (s *DeadLetterStore) Replay(ctx context.Context, limit int) (int, error) {
	letters, err := s.List(ctx, limit)
	if err != nil {
		return 0, err
	}

	replayed := 0

	for _, letter := range letters {
		if letter.Payload != nil {
			s.logger.Warn().
				Uint64("sequence", letter.Sequence).
				Msg("skipping replay of undecodable dead letter")

			continue
		}

		partition := PartitionFor(letter.Message.DeviceID, s.publisher.Partitions())
		dedupID := letter.Message.ID + ".replay." + strconv.FormatUint(letter.Sequence, 10)

		if err := s.publisher.publish(ctx, partition, letter.Message, dedupID); err != nil {
			return replayed, err
		}

		if err := s.stream.DeleteMsg(ctx, letter.Sequence); err != nil && !errors.Is(err, jetstream.ErrMsgNotFound) {
			return replayed, fmt.Errorf("%w: removing replayed dead letter %d: %w", model.ErrQueueUnavailable, letter.Sequence, err)
		}

		replayed++

		s.logger.Info().
			Str("message_id", letter.Message.ID).
			Int64("device_id", letter.Message.DeviceID.Int64()).
			Int("partition", partition).
			Msg("dead letter replayed")
	}

	return replayed, nil
}

func (s *DeadLetterStore) letterMessage(ctx context.Context, letter ports.DeadLetter) (*nats.Msg, error) {
	var (
		natsMsg *nats.Msg
		err     error
	)

	if letter.Payload != nil {
		natsMsg = nats.NewMsg(s.subject)
		natsMsg.Data = letter.Payload
	} else {
		natsMsg, err = encodeMessage(ctx, s.subject, letter.Message)
		if err != nil {
			return nil, err
		}
	}

	deadLetterAt := letter.DeadLetterAt
	if deadLetterAt.IsZero() {
		deadLetterAt = time.Now().UTC()
	}

	natsMsg.Header.Set(HeaderDeadLetterReason, letter.Reason)
	natsMsg.Header.Set(HeaderDeadLetterAttempts, strconv.FormatUint(letter.Attempts, 10))
	natsMsg.Header.Set(HeaderDeadLetterPartition, strconv.Itoa(letter.Partition))
	natsMsg.Header.Set(HeaderDeadLetterSequence, strconv.FormatUint(letter.Sequence, 10))
	natsMsg.Header.Set(HeaderDeadLetterAt, deadLetterAt.Format(time.RFC3339Nano))

	return natsMsg, nil
}

func letterFromRaw(raw *jetstream.RawStreamMsg) ports.DeadLetter {
	letter := ports.DeadLetter{
		Sequence:     raw.Sequence,
		Partition:    int(headerUint(raw.Header, HeaderDeadLetterPartition)),
		Reason:       raw.Header.Get(HeaderDeadLetterReason),
		Attempts:     headerUint(raw.Header, HeaderDeadLetterAttempts),
		DeadLetterAt: raw.Time.UTC(),
	}

	if at, err := time.Parse(time.RFC3339Nano, raw.Header.Get(HeaderDeadLetterAt)); err == nil {
		letter.DeadLetterAt = at
	}

	msg, err := decodeMessage(raw.Data)
	if err != nil {
		letter.Payload = raw.Data

		return letter
	}

	letter.Message = msg

	return letter
}
