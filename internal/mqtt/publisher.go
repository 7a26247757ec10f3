// Package mqtt publishes playback events to an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/satindergrewal/loopdj/internal/playback"
)

// DefaultTimeout bounds connect and publish round trips.
const DefaultTimeout = 10 * time.Second

// client is the part of paho.Client the publisher uses.
type client interface {
	Connect() paho.Token
	Publish(topic string, qos byte, retained bool, payload any) paho.Token
	Disconnect(quiesce uint)
	IsConnected() bool
}

// Publisher sends playback events to <prefix>/<event type>.
type Publisher struct {
	client  client
	broker  string
	prefix  string
	timeout time.Duration
	logger  zerolog.Logger

	mu sync.Mutex
}

// NewPublisher creates a publisher but does not connect.
func NewPublisher(broker, clientID, prefix string, logger zerolog.Logger) *Publisher {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetKeepAlive(30 * time.Second)

	return newPublisher(paho.NewClient(opts), broker, prefix, logger)
}

func newPublisher(c client, broker, prefix string, logger zerolog.Logger) *Publisher {
	if prefix == "" {
		prefix = "loopdj"
	}
	return &Publisher{
		client:  c,
		broker:  broker,
		prefix:  prefix,
		timeout: DefaultTimeout,
		logger:  logger,
	}
}

// Connect attempts to connect to the broker without blocking indefinitely.
func (p *Publisher) Connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	token := p.client.Connect()
	if !token.WaitTimeout(p.timeout) {
		return &ConnectTimeoutError{Broker: p.broker}
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect %s: %w", p.broker, err)
	}
	p.logger.Info().Str("broker", p.broker).Msg("MQTT connected")
	return nil
}

// Topic returns the topic events of the given type are published to.
func (p *Publisher) Topic(eventType string) string {
	return p.prefix + "/" + eventType
}

// Notify publishes ev as JSON. Playthrough starts are retained so new
// subscribers see what is playing.
func (p *Publisher) Notify(ctx context.Context, ev playback.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	topic := p.Topic(ev.Type)
	retained := ev.Type == playback.EventPlaythroughStarted

	p.mu.Lock()
	token := p.client.Publish(topic, 1, retained, payload)
	p.mu.Unlock()

	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.timeout):
		return &PublishTimeoutError{Topic: topic}
	}
	return token.Error()
}

// Disconnect cleanly disconnects from the broker.
func (p *Publisher) Disconnect() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.client.Disconnect(1000)
}

// IsConnected returns true if the client is connected.
func (p *Publisher) IsConnected() bool {
	return p.client.IsConnected()
}

// ConnectTimeoutError indicates connection timed out.
type ConnectTimeoutError struct {
	Broker string
}

func (e *ConnectTimeoutError) Error() string {
	return "mqtt connect timeout: " + e.Broker
}

// PublishTimeoutError indicates a publish was not acknowledged in time.
type PublishTimeoutError struct {
	Topic string
}

func (e *PublishTimeoutError) Error() string {
	return "mqtt publish timeout: " + e.Topic
}
