package infrastructure

import (
	"context"
	"fmt"
	"time"

	"github.com/architeacher/gpstracker/internal/config"
	appLogger "github.com/architeacher/gpstracker/pkg/logger"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const natsReconnectWait = 2 * time.Second

// NATSClient owns the connection to the telemetry queue.
type NATSClient struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	config config.Queue
	logger appLogger.Logger
}

func NewNATSClient(cfg config.Queue, serviceName string, logger appLogger.Logger) (*NATSClient, error) {
	opts := []nats.Option{
		nats.Name(serviceName),
		nats.Timeout(cfg.ConnectTimeout),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(natsReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("disconnected from telemetry queue")
		}),
		nats.ReconnectHandler(func(conn *nats.Conn) {
			logger.Info().Str("url", conn.ConnectedUrlRedacted()).Msg("reconnected to telemetry queue")
		}),
	}

	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", cfg.URL, err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()

		return nil, fmt.Errorf("creating JetStream context: %w", err)
	}

	return &NATSClient{
		conn:   conn,
		js:     js,
		config: cfg,
		logger: logger,
	}, nil
}

func (c *NATSClient) JetStream() jetstream.JetStream {
	return c.js
}

// EnsureStreams declares the partitioned telemetry stream and the dead-letter
// stream. Both calls are idempotent.
func (c *NATSClient) EnsureStreams(ctx context.Context) error {
	if _, err := c.js.CreateOrUpdateStream(ctx, TelemetryStreamConfig(c.config)); err != nil {
		return fmt.Errorf("declaring stream %s: %w", c.config.Stream, err)
	}

	if _, err := c.js.CreateOrUpdateStream(ctx, DeadLetterStreamConfig(c.config)); err != nil {
		return fmt.Errorf("declaring stream %s: %w", c.config.DLQStream, err)
	}

	c.logger.Info().
		Str("stream", c.config.Stream).
		Int("partitions", c.config.Partitions).
		Str("dlq_stream", c.config.DLQStream).
		Msg("telemetry streams ready")

	return nil
}

func TelemetryStreamConfig(cfg config.Queue) jetstream.StreamConfig {
	subjects := make([]string, 0, cfg.Partitions)
	for partition := range cfg.Partitions {
		subjects = append(subjects, PartitionSubject(cfg.SubjectPrefix, partition))
	}

	return jetstream.StreamConfig{
		Name:       cfg.Stream,
		Subjects:   subjects,
		Retention:  jetstream.LimitsPolicy,
		Storage:    jetstream.FileStorage,
		Replicas:   cfg.Replicas,
		MaxAge:     cfg.MaxAge,
		Duplicates: cfg.DedupWindow,
		Discard:    jetstream.DiscardOld,
	}
}

func DeadLetterStreamConfig(cfg config.Queue) jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:       cfg.DLQStream,
		Subjects:   []string{cfg.DLQSubject},
		Retention:  jetstream.LimitsPolicy,
		Storage:    jetstream.FileStorage,
		Replicas:   cfg.Replicas,
		Duplicates: cfg.DedupWindow,
	}
}

// PartitionSubject names the subject of one partition, e.g. telemetry.p3.
func PartitionSubject(prefix string, partition int) string {
	return fmt.Sprintf("%s.p%d", prefix, partition)
}

// Ping round-trips to the JetStream API, not just the TCP connection.
func (c *NATSClient) Ping(ctx context.Context) error {
	if !c.conn.IsConnected() {
		return fmt.Errorf("telemetry queue connection is %s", c.conn.Status())
	}

	if _, err := c.js.AccountInfo(ctx); err != nil {
		return fmt.Errorf("querying JetStream account: %w", err)
	}

	return nil
}

// Close drains pending publishes before closing.
func (c *NATSClient) Close() error {
	return c.conn.Drain()
}
