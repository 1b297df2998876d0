package queue_test

import (
	"testing"
	"time"

	"github.com/architeacher/gpstracker/internal/adapters/queue"
	"github.com/architeacher/gpstracker/internal/domain/model"
	"github.com/architeacher/gpstracker/internal/infrastructure"
	"github.com/architeacher/gpstracker/internal/ports"
	"github.com/architeacher/gpstracker/pkg/logger"
	"github.com/stretchr/testify/require"
)

func TestDeadLetterStore_AddAndList(t *testing.T) {
	t.Parallel()

	cfg := newQueueConfig()
	js := newFakeJetStream(cfg.DLQSubject)
	store := queue.NewDeadLetterStore(js, js, cfg, logger.NewTestLogger())

	msg := model.NewLocationMessage(999, 1, 2, nil)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Add(t.Context(), ports.DeadLetter{
		Sequence:     42,
		Message:      msg,
		Partition:    3,
		Reason:       "device not found: 999",
		Attempts:     1,
		DeadLetterAt: at,
	}))
	require.NoError(t, store.Add(t.Context(), ports.DeadLetter{
		Sequence:  43,
		Partition: 3,
		Reason:    "invalid telemetry message",
		Payload:   []byte("garbage"),
	}))

	letters, err := store.List(t.Context(), 10)
	require.NoError(t, err)
	require.Len(t, letters, 2)

	require.Equal(t, uint64(1), letters[0].Sequence)
	require.Equal(t, msg.ID, letters[0].Message.ID)
	require.Equal(t, model.DeviceID(999), letters[0].Message.DeviceID)
	require.Equal(t, 3, letters[0].Partition)
	require.Equal(t, uint64(1), letters[0].Attempts)
	require.Equal(t, "device not found: 999", letters[0].Reason)
	require.True(t, at.Equal(letters[0].DeadLetterAt))
	require.Nil(t, letters[0].Payload)

	require.Equal(t, []byte("garbage"), letters[1].Payload)

	limited, err := store.List(t.Context(), 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func TestDeadLetterStore_ListEmpty(t *testing.T) {
	t.Parallel()

	cfg := newQueueConfig()
	js := newFakeJetStream(cfg.DLQSubject)

	letters, err := queue.NewDeadLetterStore(js, js, cfg, logger.NewTestLogger()).List(t.Context(), 10)
	require.NoError(t, err)
	require.Empty(t, letters)
}

func TestDeadLetterStore_Replay(t *testing.T) {
	t.Parallel()

	cfg := newQueueConfig()
	js := newFakeJetStream(cfg.DLQSubject)
	store := queue.NewDeadLetterStore(js, js, cfg, logger.NewTestLogger())

	first := model.NewLocationMessage(7, 1, 1, nil)
	second := model.NewEventMessage(8, model.EventTypePowerOff, nil)

	require.NoError(t, store.Add(t.Context(), ports.DeadLetter{Sequence: 1, Message: first, Reason: "db down"}))
	require.NoError(t, store.Add(t.Context(), ports.DeadLetter{Sequence: 2, Payload: []byte("garbage"), Reason: "undecodable"}))
	require.NoError(t, store.Add(t.Context(), ports.DeadLetter{Sequence: 3, Message: second, Reason: "db down"}))

	replayed, err := store.Replay(t.Context(), 10)
	require.NoError(t, err)
	require.Equal(t, 2, replayed)
	require.Equal(t, []uint64{1, 3}, js.deleted)

	firstSubject := infrastructure.PartitionSubject(cfg.SubjectPrefix, queue.PartitionFor(7, cfg.Partitions))
	require.NotEmpty(t, js.publishedTo(firstSubject))

	remaining, err := store.List(t.Context(), 10)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, []byte("garbage"), remaining[0].Payload)
}

func TestDeadLetterStore_ReplayStopsOnPublishFailure(t *testing.T) {
	t.Parallel()

	cfg := newQueueConfig()
	js := newFakeJetStream(cfg.DLQSubject)
	store := queue.NewDeadLetterStore(js, js, cfg, logger.NewTestLogger())

	require.NoError(t, store.Add(t.Context(), ports.DeadLetter{Sequence: 1, Message: model.NewLocationMessage(7, 1, 1, nil)}))

	js.publishErr = model.ErrQueueUnavailable

	replayed, err := store.Replay(t.Context(), 10)
	require.ErrorIs(t, err, model.ErrQueueUnavailable)
	require.Zero(t, replayed)
	require.Empty(t, js.deleted)
}
