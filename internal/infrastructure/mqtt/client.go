package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/devicehealth/internal/infrastructure/config"
)

// Logger is the logging interface used by Client. *logging.Logger satisfies it.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MessageHandler processes one inbound message. paho runs handlers on its
// own goroutines. A returned error is logged; the message is not redelivered.
type MessageHandler func(topic string, payload []byte) error

// Presence states published on the retained system status topic.
const (
	presenceOnline  = "online"
	presenceOffline = "offline"

	reasonShutdown = "graceful_shutdown"
	reasonLost     = "unexpected_disconnect"
)

// Client is the broker session shared by report ingestion and alert
// publishing.
//
// Routes registered with Subscribe are replayed after every reconnect. The
// service's presence is kept on {prefix}/system/status: "online" on each
// connect, "offline" on Close, and an LWT covers crashes.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Client struct {
	conn   pahomqtt.Client
	cfg    config.MQTTConfig
	topics Topics

	online atomic.Bool

	mu     sync.RWMutex // guards routes and logger
	routes map[string]route
	logger Logger
}

type route struct {
	qos     byte
	handler MessageHandler
}

func newClient(cfg config.MQTTConfig) *Client {
	return &Client{
		cfg:    cfg,
		topics: NewTopics(cfg.TopicPrefix),
		routes: make(map[string]route),
		logger: noopLogger{},
	}
}

// Connect dials the broker described by cfg and waits up to connectTimeout
// for the first session. Later reconnects happen in the background.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := newClient(cfg)

	opts := clientOptions(cfg)
	opts.SetWill(c.topics.SystemStatus(),
		string(presencePayload(cfg.Broker.ClientID, presenceOffline, reasonLost)), willQoS, true)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.onConnect() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.onConnectionLost(err) })
	opts.SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		c.log().Warn("MQTT reconnecting", "broker", brokerURL(cfg.Broker))
	})

	c.conn = pahomqtt.NewClient(opts)
	if err := wait(c.conn.Connect(), connectTimeout); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// onConnect runs asynchronously; mark the session up before returning so
	// callers can subscribe immediately.
	c.online.Store(true)
	return c, nil
}

func (c *Client) onConnect() {
	c.online.Store(true)

	c.mu.RLock()
	replay := make(map[string]route, len(c.routes))
	for topic, r := range c.routes {
		replay[topic] = r
	}
	c.mu.RUnlock()

	for topic, r := range replay {
		c.conn.Subscribe(topic, r.qos, c.dispatch(r.handler))
	}
	c.conn.Publish(c.topics.SystemStatus(), c.QoS(), true,
		presencePayload(c.cfg.Broker.ClientID, presenceOnline, ""))

	c.log().Info("MQTT session established", "routes", len(replay))
}

func (c *Client) onConnectionLost(err error) {
	c.online.Store(false)
	c.log().Warn("MQTT connection lost", "error", err)
}

// Close announces a graceful shutdown on the status topic and disconnects.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}

	if c.IsConnected() {
		// Best effort: the broker would otherwise publish the LWT instead.
		tok := c.conn.Publish(c.topics.SystemStatus(), c.QoS(), true,
			presencePayload(c.cfg.Broker.ClientID, presenceOffline, reasonShutdown))
		_ = wait(tok, publishTimeout) //nolint:errcheck // shutting down
	}

	c.conn.Disconnect(disconnectQuiesceMs)
	c.online.Store(false)
	return nil
}

// HealthCheck reports ErrNotConnected while the session is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports the last known session state.
func (c *Client) IsConnected() bool {
	return c.online.Load() && c.conn != nil && c.conn.IsConnected()
}

// Topics returns the topic builders for the configured prefix.
func (c *Client) Topics() Topics {
	return c.topics
}

// QoS returns the configured default QoS level.
func (c *Client) QoS() byte {
	return byte(c.cfg.QoS)
}

// SetLogger sets the logger for connection events and handler failures.
// A nil logger disables logging.
func (c *Client) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

func (c *Client) log() Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.logger
}

// dispatch adapts h to paho, recovering panics so one bad message cannot
// take down paho's router goroutine.
func (c *Client) dispatch(h MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				c.log().Error("MQTT handler panicked", "topic", msg.Topic(), "panic", r)
			}
		}()

		if err := h(msg.Topic(), msg.Payload()); err != nil {
			c.log().Warn("MQTT message rejected", "topic", msg.Topic(), "error", err)
		}
	}
}

// presence is the retained payload on the system status topic.
type presence struct {
	Status    string    `json:"status"`
	ClientID  string    `json:"client_id"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func presencePayload(clientID, status, reason string) []byte {
	b, _ := json.Marshal(presence{ //nolint:errcheck // plain struct always marshals
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Truncate(time.Second),
	})
	return b
}

// wait blocks until tok completes or d elapses.
func wait(tok pahomqtt.Token, d time.Duration) error {
	if !tok.WaitTimeout(d) {
		return fmt.Errorf("timeout after %v", d)
	}
	return tok.Error()
}
