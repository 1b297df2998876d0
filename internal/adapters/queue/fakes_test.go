package queue_test

import (
	"context"
	"sync"
	"time"

	"github.com/architeacher/gpstracker/internal/adapters/queue"
	"github.com/architeacher/gpstracker/internal/ports"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// fakeJetStream records publishes and stores those sent to the dead-letter
// subject as an in-memory stream.
type fakeJetStream struct {
	mu         sync.Mutex
	dlqSubject string
	published  []*nats.Msg
	publishErr error
	stored     map[uint64]*jetstream.RawStreamMsg
	lastSeq    uint64
	deleted    []uint64
}

func newFakeJetStream(dlqSubject string) *fakeJetStream {
	return &fakeJetStream{
		dlqSubject: dlqSubject,
		stored:     make(map[uint64]*jetstream.RawStreamMsg),
	}
}

func (f *fakeJetStream) PublishMsg(ctx context.Context, msg *nats.Msg, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.publishErr != nil {
		return nil, f.publishErr
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.published = append(f.published, msg)

	if msg.Subject == f.dlqSubject {
		f.lastSeq++
		f.stored[f.lastSeq] = &jetstream.RawStreamMsg{
			Subject:  msg.Subject,
			Sequence: f.lastSeq,
			Header:   msg.Header,
			Data:     msg.Data,
			Time:     time.Now(),
		}
	}

	return &jetstream.PubAck{Sequence: uint64(len(f.published))}, nil
}

func (f *fakeJetStream) Info(context.Context, ...jetstream.StreamInfoOpt) (*jetstream.StreamInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	state := jetstream.StreamState{Msgs: uint64(len(f.stored)), LastSeq: f.lastSeq}
	for seq := uint64(1); seq <= f.lastSeq; seq++ {
		if _, ok := f.stored[seq]; ok {
			state.FirstSeq = seq

			break
		}
	}

	return &jetstream.StreamInfo{State: state}, nil
}

func (f *fakeJetStream) GetMsg(_ context.Context, seq uint64, _ ...jetstream.GetMsgOpt) (*jetstream.RawStreamMsg, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	msg, ok := f.stored[seq]
	if !ok {
		return nil, jetstream.ErrMsgNotFound
	}

	return msg, nil
}

func (f *fakeJetStream) DeleteMsg(_ context.Context, seq uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.stored[seq]; !ok {
		return jetstream.ErrMsgNotFound
	}

	delete(f.stored, seq)
	f.deleted = append(f.deleted, seq)

	return nil
}

func (f *fakeJetStream) publishedTo(subject string) []*nats.Msg {
	f.mu.Lock()
	defer f.mu.Unlock()

	var msgs []*nats.Msg
	for _, msg := range f.published {
		if msg.Subject == subject {
			msgs = append(msgs, msg)
		}
	}

	return msgs
}

type fakeInboundMessage struct {
	data         []byte
	header       nats.Header
	streamSeq    uint64
	numDelivered uint64

	mu         sync.Mutex
	acked      bool
	termReason string
	ackErr     error
}

func (m *fakeInboundMessage) Data() []byte { return m.data }

func (m *fakeInboundMessage) Headers() nats.Header { return m.header }

func (m *fakeInboundMessage) Metadata() (*jetstream.MsgMetadata, error) {
	return &jetstream.MsgMetadata{
		Sequence:     jetstream.SequencePair{Stream: m.streamSeq, Consumer: m.streamSeq},
		NumDelivered: m.numDelivered,
	}, nil
}

func (m *fakeInboundMessage) DoubleAck(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ackErr != nil {
		return m.ackErr
	}

	m.acked = true

	return nil
}

func (m *fakeInboundMessage) TermWithReason(reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.termReason = reason

	return nil
}

type fetchResult struct {
	msg *fakeInboundMessage
	err error
}

// fakeFetcher replays results in order and cancels the test context once
// they run out.
type fakeFetcher struct {
	mu      sync.Mutex
	results []fetchResult
	cancel  context.CancelFunc
}

func (f *fakeFetcher) Fetch() (queue.InboundMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.results) == 0 {
		f.cancel()

		return nil, nats.ErrTimeout
	}

	next := f.results[0]
	f.results = f.results[1:]

	if next.err != nil {
		return nil, next.err
	}

	return next.msg, nil
}

type recordingDeadLetters struct {
	mu      sync.Mutex
	letters []ports.DeadLetter
	err     error
}

func (r *recordingDeadLetters) Add(_ context.Context, letter ports.DeadLetter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return r.err
	}

	r.letters = append(r.letters, letter)

	return nil
}

func (r *recordingDeadLetters) List(context.Context, int) ([]ports.DeadLetter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]ports.DeadLetter(nil), r.letters...), nil
}

func (r *recordingDeadLetters) Replay(context.Context, int) (int, error) {
	return 0, nil
}
