package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/good-yellow-bee/cognifyx/internal/models"
)

// DefaultMQTTTopicPrefix prefixes the per-device topic.
const DefaultMQTTTopicPrefix = "cognifyx/alerts"

// MQTTConfig configures the MQTT mirror.
type MQTTConfig struct {
	Broker      string // host:port
	ClientID    string
	DeviceID    string
	TopicPrefix string
	QoS         byte
	Timeout     time.Duration
}

// mqttClient is the subset of mqtt.Client the notifier needs.
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnectionOpen() bool
	Disconnect(quiesce uint)
}

// MQTTNotifier publishes each alert event to cognifyx/alerts/<device>.
type MQTTNotifier struct {
	client  mqttClient
	topic   string
	qos     byte
	timeout time.Duration
	logger  *slog.Logger

	published atomic.Int64
	errors    atomic.Int64
}

// DialMQTT connects to the broker in cfg and returns a notifier. The client
// reconnects on its own after a lost connection.
func DialMQTT(cfg MQTTConfig, logger *slog.Logger) (*MQTTNotifier, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", cfg.Broker))
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		logger.Info("mqtt connection established", "broker", cfg.Broker, "client_id", cfg.ClientID)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost, will auto-reconnect", "broker", cfg.Broker, "error", err)
	}

	client := mqtt.NewClient(opts)
	if err := connectMQTT(client, 5*time.Second); err != nil {
		return nil, err
	}

	return newMQTTNotifier(client, cfg, logger), nil
}

type mqttConnector interface {
	Connect() mqtt.Token
	Disconnect(quiesce uint)
}

// connectMQTT waits up to timeout for the first connection. With connect
// retry enabled the client keeps dialing in the background, so it is
// disconnected on failure.
func connectMQTT(client mqttConnector, timeout time.Duration) error {
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		client.Disconnect(0)
		return fmt.Errorf("mqtt connection timeout after %s", timeout)
	}
	if err := token.Error(); err != nil {
		client.Disconnect(0)
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	return nil
}

func newMQTTNotifier(client mqttClient, cfg MQTTConfig, logger *slog.Logger) *MQTTNotifier {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = DefaultMQTTTopicPrefix
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MQTTNotifier{
		client:  client,
		topic:   Topic(cfg.TopicPrefix, cfg.DeviceID),
		qos:     cfg.QoS,
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

// Topic returns the per-device alert topic.
func Topic(prefix, deviceID string) string {
	if deviceID == "" {
		return prefix
	}
	return prefix + "/" + deviceID
}

// Name returns "mqtt".
func (m *MQTTNotifier) Name() string { return "mqtt" }

// Send publishes event and waits for the broker acknowledgement.
func (m *MQTTNotifier) Send(ctx context.Context, event *models.AlertEvent) error {
	if !m.client.IsConnectionOpen() {
		m.errors.Add(1)
		return fmt.Errorf("mqtt not connected")
	}

	payload, err := event.ToJSON()
	if err != nil {
		m.errors.Add(1)
		return fmt.Errorf("marshal alert event: %w", err)
	}

	token := m.client.Publish(m.topic, m.qos, false, payload)
	select {
	case <-token.Done():
	case <-time.After(m.timeout):
		m.errors.Add(1)
		return fmt.Errorf("publish timeout")
	case <-ctx.Done():
		m.errors.Add(1)
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		m.errors.Add(1)
		return fmt.Errorf("publish failed: %w", err)
	}

	m.published.Add(1)
	m.logger.Debug("alert mirrored", "notifier", "mqtt", "topic", m.topic, "qos", m.qos, "size", len(payload))
	return nil
}

// Stats returns published and failed counts.
func (m *MQTTNotifier) Stats() (published, errors int64) {
	return m.published.Load(), m.errors.Load()
}

// Close disconnects with a short grace period.
func (m *MQTTNotifier) Close() error {
	if m.client.IsConnectionOpen() {
		m.client.Disconnect(250)
	}
	return nil
}
