package infrastructure

import (
	"context"
	"fmt"

	"github.com/architeacher/gpstracker/internal/config"
	appLogger "github.com/architeacher/gpstracker/pkg/logger"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const mqttDisconnectQuiesceMs = 250

// MQTTClient is the broker connection behind the MQTT broadcaster.
type MQTTClient struct {
	client mqtt.Client
	config config.MQTT
	logger appLogger.Logger
}

func NewMQTTClient(cfg config.MQTT, logger appLogger.Logger) (*MQTTClient, error) {
	// Replicas share a configured prefix; the suffix keeps client ids unique.
	clientID := fmt.Sprintf("%s-%s", cfg.ClientID, uuid.NewString()[:8])

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetOrderMatters(false).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn().Err(err).Str("broker", cfg.Broker).Msg("lost connection to MQTT broker")
		}).
		SetOnConnectHandler(func(_ mqtt.Client) {
			logger.Info().Str("broker", cfg.Broker).Str("client_id", clientID).Msg("connected to MQTT broker")
		})

	client := mqtt.NewClient(opts)

	token := client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, fmt.Errorf("connecting to MQTT broker %s: timed out after %s", cfg.Broker, cfg.ConnectTimeout)
	}

	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connecting to MQTT broker %s: %w", cfg.Broker, err)
	}

	return &MQTTClient{
		client: client,
		config: cfg,
		logger: logger,
	}, nil
}

// Publish never retains, so late subscribers see nothing from before they joined.
func (c *MQTTClient) Publish(ctx context.Context, topic string, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.PublishTimeout)
	defer cancel()

	return waitToken(ctx, c.client.Publish(topic, c.config.QoS, false, payload))
}

func (c *MQTTClient) Subscribe(ctx context.Context, topic string, handler mqtt.MessageHandler) error {
	return waitToken(ctx, c.client.Subscribe(topic, c.config.QoS, handler))
}

func (c *MQTTClient) Unsubscribe(ctx context.Context, topics ...string) error {
	return waitToken(ctx, c.client.Unsubscribe(topics...))
}

func (c *MQTTClient) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

func (c *MQTTClient) Close() error {
	c.client.Disconnect(mqttDisconnectQuiesceMs)

	return nil
}

func waitToken(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
