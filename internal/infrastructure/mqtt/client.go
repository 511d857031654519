package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/agent2mqtt/internal/infrastructure/config"
)

// Message is a single inbound MQTT message.
type Message struct {
	Topic   string
	Payload []byte
}

// Client wraps paho.mqtt.golang as a message stream.
//
// Unlike a callback-driven client, inbound messages for every subscription
// are delivered in arrival order on a single channel (Messages), and loss of
// the connection is signalled on a second channel (ConnectionLost). The
// client never reconnects on its own; callers decide when to Connect again.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	client  pahomqtt.Client
	options *pahomqtt.ClientOptions
	cfg     config.MQTTConfig

	messages chan Message
	lost     chan error

	// connected tracks the last known connection state.
	connected bool
	connMu    sync.RWMutex

	closeOnce sync.Once
	done      chan struct{}
}

// New creates a client for the configured broker without connecting.
//
// Returns:
//   - *Client: Client ready for Connect
//   - error: ErrInvalidConfig if the broker settings cannot be used
func New(cfg config.MQTTConfig) (*Client, error) {
	if cfg.Broker.Host == "" {
		return nil, fmt.Errorf("%w: broker host is empty", ErrInvalidConfig)
	}
	if cfg.Broker.Port < 1 || cfg.Broker.Port > 65535 {
		return nil, fmt.Errorf("%w: broker port %d out of range", ErrInvalidConfig, cfg.Broker.Port)
	}
	if cfg.Broker.ClientID == "" {
		return nil, fmt.Errorf("%w: client id is empty", ErrInvalidConfig)
	}

	c := &Client{
		cfg:      cfg,
		options:  buildClientOptions(cfg),
		messages: make(chan Message, messageBufferSize),
		lost:     make(chan error, 1),
		done:     make(chan struct{}),
	}

	c.options.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleConnectionLost(err)
	})

	c.client = pahomqtt.NewClient(c.options)
	return c, nil
}

// Connect performs a single connection attempt.
//
// Any previous paho session is torn down first and pending loss signals are
// discarded, so a signal read after Connect returns always belongs to the
// new connection or a later one. An attempt that fails or times out is
// aborted, leaving the client disconnected.
//
// Returns:
//   - error: ErrConnectionFailed (wrapping the cause) or the context error
func (c *Client) Connect(ctx context.Context) error {
	c.reset()

	token := c.client.Connect()
	if err := waitToken(ctx, token, defaultConnectTimeout); err != nil {
		// A timed out attempt may still complete inside paho.
		c.reset()
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c.setConnected(true)
	return nil
}

// reset forces paho back to the disconnected state and drains c.lost.
// paho ignores Disconnect when it is already disconnected, and waits for an
// in-flight attempt to finish before aborting it.
func (c *Client) reset() {
	c.setConnected(false)
	c.client.Disconnect(defaultDisconnectQuiesce)
	c.drainLost()
}

func (c *Client) drainLost() {
	for {
		select {
		case <-c.lost:
		default:
			return
		}
	}
}

// Disconnect closes the broker session. Pending work is given a short
// quiesce period. Safe to call when not connected.
func (c *Client) Disconnect() {
	c.setConnected(false)
	if c.client.IsConnectionOpen() {
		c.client.Disconnect(defaultDisconnectQuiesce)
	}
}

// Close disconnects and stops delivering inbound messages.
// Safe to call multiple times.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.Disconnect()
	})
	return nil
}

// Messages returns the inbound message stream shared by all subscriptions.
// The channel is never closed; it outlives individual connections.
func (c *Client) Messages() <-chan Message {
	return c.messages
}

// ConnectionLost returns a channel that receives the cause each time an
// established connection drops unexpectedly. Explicit Disconnect calls do
// not signal.
func (c *Client) ConnectionLost() <-chan error {
	return c.lost
}

// ServerURL returns the broker URL this client connects to.
func (c *Client) ServerURL() string {
	return c.cfg.BrokerURL()
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client.IsConnected()
}

func (c *Client) setConnected(v bool) {
	c.connMu.Lock()
	c.connected = v
	c.connMu.Unlock()
}

// handleConnectionLost is called by paho when the connection drops.
func (c *Client) handleConnectionLost(err error) {
	c.setConnected(false)

	// One pending signal is enough; the consumer reconnects once per signal.
	select {
	case c.lost <- err:
	default:
	}
}

// deliver pushes an inbound message onto the stream. paho invokes it
// sequentially (order matters), so blocking here applies backpressure to
// the network reader rather than reordering messages.
func (c *Client) deliver(_ pahomqtt.Client, msg pahomqtt.Message) {
	select {
	case c.messages <- Message{Topic: msg.Topic(), Payload: msg.Payload()}:
	case <-c.done:
	}
}

// waitToken waits for a paho token to complete, honouring ctx and timeout.
func waitToken(ctx context.Context, token pahomqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%w after %v", ErrTimeout, timeout)
	}
}
