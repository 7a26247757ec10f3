package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/satindergrewal/loopdj/internal/playback"
)

// mockToken completes when done is closed.
type mockToken struct {
	done chan struct{}
	err  error
}

func completed(err error) *mockToken {
	t := &mockToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func pending() *mockToken {
	return &mockToken{done: make(chan struct{})}
}

func (t *mockToken) Wait() bool {
	<-t.done
	return true
}

func (t *mockToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *mockToken) Done() <-chan struct{} { return t.done }
func (t *mockToken) Error() error          { return t.err }

type published struct {
	topic    string
	retained bool
	payload  []byte
}

// MockMQTTClient records publishes.
type MockMQTTClient struct {
	mu           sync.Mutex
	messages     []published
	connectToken paho.Token
	publishToken func() paho.Token
	connected    bool
}

func (m *MockMQTTClient) Connect() paho.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	if m.connectToken != nil {
		return m.connectToken
	}
	return completed(nil)
}

func (m *MockMQTTClient) Publish(topic string, _ byte, retained bool, payload any) paho.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, published{topic: topic, retained: retained, payload: payload.([]byte)})
	if m.publishToken != nil {
		return m.publishToken()
	}
	return completed(nil)
}

func (m *MockMQTTClient) Disconnect(uint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
}

func (m *MockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func TestNotifyPublishesJSON(t *testing.T) {
	mock := &MockMQTTClient{}
	p := newPublisher(mock, "tcp://test:1883", "", zerolog.Nop())

	ev := playback.Event{Type: playback.EventSegmentQueued, Playthrough: "p1", Song: "song_1", Segment: "loop", Repeats: 7}
	if err := p.Notify(context.Background(), ev); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if len(mock.messages) != 1 {
		t.Fatalf("published %d messages, want 1", len(mock.messages))
	}
	msg := mock.messages[0]
	if msg.topic != "loopdj/segment.queued" {
		t.Errorf("topic = %q, want loopdj/segment.queued", msg.topic)
	}
	if msg.retained {
		t.Error("segment events should not be retained")
	}

	var got playback.Event
	if err := json.Unmarshal(msg.payload, &got); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if got.Song != "song_1" || got.Segment != "loop" || got.Repeats != 7 {
		t.Errorf("payload = %+v", got)
	}
}

func TestNotifyRetainsPlaythroughStart(t *testing.T) {
	mock := &MockMQTTClient{}
	p := newPublisher(mock, "tcp://test:1883", "radio", zerolog.Nop())

	if err := p.Notify(context.Background(), playback.Event{Type: playback.EventPlaythroughStarted, Song: "a"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	msg := mock.messages[0]
	if msg.topic != "radio/playthrough.started" || !msg.retained {
		t.Errorf("published %s retained=%v, want radio/playthrough.started retained", msg.topic, msg.retained)
	}
}

func TestNotifyError(t *testing.T) {
	boom := errors.New("not authorized")
	mock := &MockMQTTClient{publishToken: func() paho.Token { return completed(boom) }}
	p := newPublisher(mock, "tcp://test:1883", "", zerolog.Nop())

	if err := p.Notify(context.Background(), playback.Event{Type: playback.EventPlaythroughFinished}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}

func TestNotifyTimeout(t *testing.T) {
	mock := &MockMQTTClient{publishToken: func() paho.Token { return pending() }}
	p := newPublisher(mock, "tcp://test:1883", "", zerolog.Nop())
	p.timeout = 20 * time.Millisecond

	err := p.Notify(context.Background(), playback.Event{Type: playback.EventSegmentQueued})
	var timeout *PublishTimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("err = %v, want *PublishTimeoutError", err)
	}
	if timeout.Topic != "loopdj/segment.queued" {
		t.Errorf("Topic = %q", timeout.Topic)
	}
}

func TestNotifyCancelled(t *testing.T) {
	mock := &MockMQTTClient{publishToken: func() paho.Token { return pending() }}
	p := newPublisher(mock, "tcp://test:1883", "", zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Notify(ctx, playback.Event{Type: playback.EventSegmentQueued}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestConnect(t *testing.T) {
	mock := &MockMQTTClient{}
	p := newPublisher(mock, "tcp://test:1883", "", zerolog.Nop())
	if err := p.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !p.IsConnected() {
		t.Error("IsConnected = false after Connect")
	}
	p.Disconnect()
	if p.IsConnected() {
		t.Error("IsConnected = true after Disconnect")
	}
}

func TestConnectTimeout(t *testing.T) {
	mock := &MockMQTTClient{connectToken: pending()}
	p := newPublisher(mock, "tcp://test:1883", "", zerolog.Nop())
	p.timeout = 20 * time.Millisecond

	var timeout *ConnectTimeoutError
	if err := p.Connect(); !errors.As(err, &timeout) {
		t.Errorf("err = %v, want *ConnectTimeoutError", err)
	}
}
