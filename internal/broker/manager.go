package broker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/nerrad567/agent2mqtt/internal/correlation"
	"github.com/nerrad567/agent2mqtt/internal/infrastructure/mqtt"
	"github.com/nerrad567/agent2mqtt/internal/reconnect"
)

// ErrInvalidOptions is returned by NewManager when a required dependency is missing.
var ErrInvalidOptions = errors.New("broker: invalid options")

// Session is the broker connection used by the Manager.
// *mqtt.Client satisfies it.
type Session interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, topic string, qos byte) error
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Disconnect()
	Messages() <-chan mqtt.Message
	ConnectionLost() <-chan error
	ServerURL() string
}

var _ Session = (*mqtt.Client)(nil)

// Options configures a Manager.
type Options struct {
	// Session is the broker connection. Required.
	Session Session

	// Commands receives every payload published on the command topic.
	// Required. The Manager closes it when Run returns.
	Commands chan<- []byte

	// Slot records the correlation fields of each command. Required.
	Slot *correlation.Slot

	// Policy spaces connection attempts. Default: 500ms fixed.
	Policy reconnect.Policy

	// Logger is optional.
	Logger Logger
}

// Stats holds operational counters.
type Stats struct {
	CommandsReceived  uint64
	CommandsForwarded uint64
	CommandsDropped   uint64 // Command channel full
	DecodeErrors      uint64
	Reconnects        uint64
	Published         uint64
	PublishErrors     uint64
}

// Manager drives the broker session.
//
// Thread Safety:
//   - Run must be called once.
//   - Publish and Stats are safe for concurrent use.
type Manager struct {
	session  Session
	commands chan<- []byte
	slot     *correlation.Slot
	policy   reconnect.Policy
	logger   Logger
	state    reconnect.Tracker

	received      atomic.Uint64
	forwarded     atomic.Uint64
	dropped       atomic.Uint64
	decodeErrors  atomic.Uint64
	reconnects    atomic.Uint64
	published     atomic.Uint64
	publishErrors atomic.Uint64
}

// NewManager creates a Manager from opts.
func NewManager(opts Options) (*Manager, error) {
	if opts.Session == nil {
		return nil, fmt.Errorf("%w: session is nil", ErrInvalidOptions)
	}
	if opts.Commands == nil {
		return nil, fmt.Errorf("%w: command channel is nil", ErrInvalidOptions)
	}
	if opts.Slot == nil {
		return nil, fmt.Errorf("%w: correlation slot is nil", ErrInvalidOptions)
	}
	if opts.Policy == nil {
		opts.Policy = reconnect.Fixed{Delay: reconnect.DefaultDelay}
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}

	return &Manager{
		session:  opts.Session,
		commands: opts.Commands,
		slot:     opts.Slot,
		policy:   opts.Policy,
		logger:   opts.Logger,
	}, nil
}

// ConnectAndSubscribe performs one connection attempt followed by the
// command subscription. A failed subscription tears the session down again,
// so success means both steps succeeded.
func (m *Manager) ConnectAndSubscribe(ctx context.Context) error {
	if err := m.session.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	if err := m.session.Subscribe(ctx, mqtt.TopicCommand, mqtt.QoSAtMostOnce); err != nil {
		m.session.Disconnect()
		return fmt.Errorf("subscribe %s: %w", mqtt.TopicCommand, err)
	}

	return nil
}

// Run connects, then dispatches inbound commands until ctx is cancelled.
// A lost session is re-established in place; Run only returns ctx.Err().
// The command channel is closed on return.
func (m *Manager) Run(ctx context.Context) error {
	defer close(m.commands)
	defer m.state.Set(reconnect.StateDisconnected)

	if err := m.connectLoop(ctx); err != nil {
		return err
	}
	m.logger.Info("connected to broker", "topic", mqtt.TopicCommand)

	for {
		select {
		case <-ctx.Done():
			m.session.Disconnect()
			return ctx.Err()

		case msg := <-m.session.Messages():
			m.handleMessage(msg.Topic, msg.Payload)

		case err := <-m.session.ConnectionLost():
			m.logger.Warn("broker connection lost", "error", err)
			if err := m.reconnect(ctx); err != nil {
				return err
			}
		}
	}
}

// reconnect re-establishes the session after a loss.
func (m *Manager) reconnect(ctx context.Context) error {
	if err := m.connectLoop(ctx); err != nil {
		return err
	}
	m.reconnects.Add(1)
	m.logger.Warn("reconnected to broker", "total_reconnects", m.reconnects.Load())
	return nil
}

// connectLoop retries ConnectAndSubscribe until it succeeds or ctx is done.
func (m *Manager) connectLoop(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		m.state.Set(reconnect.StateConnecting)
		if attempt == 1 {
			m.logger.Info("connecting to broker", "url", m.session.ServerURL())
		} else {
			m.logger.Debug("connecting to broker", "url", m.session.ServerURL(), "attempt", attempt)
		}

		err := m.ConnectAndSubscribe(ctx)
		if err == nil {
			m.state.Set(reconnect.StateActive)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		m.state.Set(reconnect.StateDisconnected)
		delay := m.policy.Next(attempt)
		m.logger.Error("broker connection failed", "error", err, "attempt", attempt, "retry_in", delay.String())

		if err := reconnect.Wait(ctx, delay); err != nil {
			return err
		}
	}
}

// handleMessage forwards a command to the agent and records its correlation
// fields. The forward happens even when the payload does not decode.
func (m *Manager) handleMessage(topic string, payload []byte) {
	if topic != mqtt.TopicCommand {
		return
	}
	m.received.Add(1)

	select {
	case m.commands <- payload:
		m.forwarded.Add(1)
	default:
		m.dropped.Add(1)
		m.logger.Warn("command queue full, dropping command", "capacity", cap(m.commands))
	}

	fields, err := correlation.ParseFields(payload)
	if err != nil {
		m.decodeErrors.Add(1)
		m.logger.Error("failed to decode command", "error", err)
		return
	}

	rec := m.slot.Observe(fields)
	m.logger.Debug("command received",
		"id", rec.PendingID,
		"to", rec.Destination,
		"from", rec.Origin,
	)
}

// Publish sends payload to topic at QoS 0, not retained. Failures are
// logged and counted; they never stop the caller.
func (m *Manager) Publish(topic string, payload []byte) {
	if err := m.session.Publish(topic, payload, mqtt.QoSAtMostOnce, false); err != nil {
		m.publishErrors.Add(1)
		m.logger.Error("publish failed", "topic", topic, "error", err)
		return
	}

	m.published.Add(1)
	m.logger.Debug("published", "topic", topic, "bytes", len(payload))
}

// State returns the session lifecycle state.
func (m *Manager) State() reconnect.State {
	return m.state.Load()
}

// Stats returns a snapshot of the counters.
func (m *Manager) Stats() Stats {
	return Stats{
		CommandsReceived:  m.received.Load(),
		CommandsForwarded: m.forwarded.Load(),
		CommandsDropped:   m.dropped.Load(),
		DecodeErrors:      m.decodeErrors.Load(),
		Reconnects:        m.reconnects.Load(),
		Published:         m.published.Load(),
		PublishErrors:     m.publishErrors.Load(),
	}
}
