package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/sentinel-core/internal/infrastructure/config"
)

// Logger is the subset of logging.Logger the client reports through.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MessageHandler receives a message on one of the client's subscriptions.
// Handlers run on paho goroutines. A returned error is logged only.
type MessageHandler func(topic string, payload []byte) error

// Client is a paho connection that publishes Sentinel events and keeps its
// subscriptions across reconnects. Safe for concurrent use.
type Client struct {
	paho pahomqtt.Client
	cfg  config.MQTTConfig

	log      Logger
	onChange func(up bool, err error)

	online atomic.Bool

	mu     sync.RWMutex
	routes map[string]route // topic filter -> handler
}

type route struct {
	qos     byte
	handler MessageHandler
}

// Connect dials the broker and waits for the first CONNACK. After that paho
// reconnects on its own; each reconnect re-subscribes and republishes the
// retained online status.
func Connect(cfg config.MQTTConfig, opts ...Option) (*Client, error) {
	c := &Client{cfg: cfg, routes: make(map[string]route)}
	for _, opt := range opts {
		opt(c)
	}

	po := buildClientOptions(cfg)
	configureLWT(po, cfg.Broker.ClientID)
	po.SetOnConnectHandler(func(pahomqtt.Client) { c.connected() })
	po.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.lost(err) })
	po.SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		c.warn("MQTT reconnecting", "broker", cfg.Broker.Host)
	})

	c.paho = pahomqtt.NewClient(po)
	tok := c.paho.Connect()
	if !tok.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("%w: no CONNACK within %v", ErrConnectionFailed, connectTimeout)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The OnConnect handler is asynchronous.
	c.online.Store(true)
	return c, nil
}

func (c *Client) connected() {
	c.online.Store(true)

	c.mu.RLock()
	for topic, r := range c.routes {
		c.paho.Subscribe(topic, r.qos, c.deliver(r.handler))
	}
	c.mu.RUnlock()

	c.paho.Publish(Topics{}.SystemStatus(), c.qos(), true, buildOnlinePayload(c.cfg.Broker.ClientID))

	if c.onChange != nil {
		c.onChange(true, nil)
	}
}

func (c *Client) lost(err error) {
	c.online.Store(false)
	if c.onChange != nil {
		c.onChange(false, err)
	}
}

// Close announces a graceful offline status and disconnects. It is safe on
// a client that never connected.
func (c *Client) Close() error {
	if c.paho == nil {
		return nil
	}
	if c.IsConnected() {
		c.paho.Publish(Topics{}.SystemStatus(), c.qos(), true, buildOfflinePayload(c.cfg.Broker.ClientID)).
			WaitTimeout(publishTimeout)
	}
	c.paho.Disconnect(disconnectQuiesceMillis)
	c.online.Store(false)
	return nil
}

// HealthCheck reports ErrNotConnected while the broker link is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports whether the broker link is up.
func (c *Client) IsConnected() bool {
	return c.paho != nil && c.online.Load() && c.paho.IsConnected()
}

// deliver adapts a MessageHandler to paho and contains its panics.
func (c *Client) deliver(h MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if p := recover(); p != nil && c.log != nil {
				c.log.Error("MQTT handler panic recovered", "topic", msg.Topic(), "panic", p)
			}
		}()
		if err := h(msg.Topic(), msg.Payload()); err != nil {
			c.warn("MQTT handler returned error", "topic", msg.Topic(), "error", err)
		}
	}
}

func (c *Client) warn(msg string, args ...any) {
	if c.log != nil {
		c.log.Warn(msg, args...)
	}
}
