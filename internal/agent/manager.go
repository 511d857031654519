package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/agent2mqtt/internal/correlation"
	"github.com/nerrad567/agent2mqtt/internal/infrastructure/mqtt"
	"github.com/nerrad567/agent2mqtt/internal/reconnect"
)

const (
	// DefaultSocketPath is where the miio agent listens.
	DefaultSocketPath = "/tmp/miio_agent.socket"

	// network is the socket type the agent serves (SOCK_SEQPACKET).
	network = "unixpacket"

	// receiveBufferSize bounds a single agent datagram.
	receiveBufferSize = 4096
)

// Dialer opens connections to the agent. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Publisher sends agent output to the broker.
type Publisher interface {
	Publish(topic string, payload []byte)
}

// Options configures a Manager.
type Options struct {
	// SocketPath is the agent socket. Default: DefaultSocketPath.
	SocketPath string

	// BindID is the address announced in the bind message.
	BindID uint32

	// Commands delivers payloads to write to the agent. Required.
	Commands <-chan []byte

	// Slot identifies which responses acknowledge the last command. Required.
	Slot *correlation.Slot

	// Publisher receives acknowledgements and reports. Required.
	Publisher Publisher

	// Policy spaces connection attempts. Default: 500ms fixed.
	Policy reconnect.Policy

	// Dialer defaults to a zero net.Dialer.
	Dialer Dialer

	// Logger is optional.
	Logger Logger
}

// Stats holds operational counters.
type Stats struct {
	CommandsWritten uint64
	Acks            uint64
	Reports         uint64
	DecodeErrors    uint64
	Reconnects      uint64
}

// readResult is one receive from the agent socket.
type readResult struct {
	data []byte
	err  error
}

// Manager drives the agent connection.
//
// Thread Safety:
//   - Run must be called once.
//   - State and Stats are safe for concurrent use.
type Manager struct {
	socketPath string
	bindID     uint32
	commands   <-chan []byte
	slot       *correlation.Slot
	publisher  Publisher
	policy     reconnect.Policy
	dialer     Dialer
	logger     Logger
	state      reconnect.Tracker

	written      atomic.Uint64
	acks         atomic.Uint64
	reports      atomic.Uint64
	decodeErrors atomic.Uint64
	reconnects   atomic.Uint64
}

// NewManager creates a Manager from opts.
func NewManager(opts Options) (*Manager, error) {
	if opts.Commands == nil {
		return nil, fmt.Errorf("%w: command channel is nil", ErrInvalidOptions)
	}
	if opts.Slot == nil {
		return nil, fmt.Errorf("%w: correlation slot is nil", ErrInvalidOptions)
	}
	if opts.Publisher == nil {
		return nil, fmt.Errorf("%w: publisher is nil", ErrInvalidOptions)
	}
	if opts.SocketPath == "" {
		opts.SocketPath = DefaultSocketPath
	}
	if opts.Policy == nil {
		opts.Policy = reconnect.Fixed{Delay: reconnect.DefaultDelay}
	}
	if opts.Dialer == nil {
		opts.Dialer = &net.Dialer{}
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}

	return &Manager{
		socketPath: opts.SocketPath,
		bindID:     opts.BindID,
		commands:   opts.Commands,
		slot:       opts.Slot,
		publisher:  opts.Publisher,
		policy:     opts.Policy,
		dialer:     opts.Dialer,
		logger:     opts.Logger,
	}, nil
}

// Run connects, registers and multiplexes until ctx is cancelled or the
// command channel closes. Connection failures are retried forever.
//
// Returns:
//   - ErrCommandChannelClosed when the command sender has gone away
//   - ctx.Err() on cancellation
func (m *Manager) Run(ctx context.Context) error {
	defer m.state.Set(reconnect.StateDisconnected)

	for {
		conn, err := m.connect(ctx)
		if err != nil {
			return err
		}

		m.register(conn)

		err = m.multiplex(ctx, conn)
		m.state.Set(reconnect.StateDisconnected)

		if errors.Is(err, ErrCommandChannelClosed) {
			m.logger.Info("command channel closed, stopping agent link")
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		m.logger.Warn("agent connection lost, reconnecting", "error", err)
		m.reconnects.Add(1)

		if err := reconnect.Wait(ctx, m.policy.Next(1)); err != nil {
			return err
		}
	}
}

// connect dials the agent until it succeeds or ctx is done.
func (m *Manager) connect(ctx context.Context) (net.Conn, error) {
	for attempt := 1; ; attempt++ {
		m.state.Set(reconnect.StateConnecting)

		conn, err := m.dialer.DialContext(ctx, network, m.socketPath)
		if err == nil {
			m.state.Set(reconnect.StateConnected)
			m.logger.Info("connected to agent socket", "path", m.socketPath, "bind_id", m.bindID)
			return conn, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		m.state.Set(reconnect.StateDisconnected)
		delay := m.policy.Next(attempt)
		m.logger.Error("agent connection failed", "path", m.socketPath, "error", err, "retry_in", delay.String())

		if err := reconnect.Wait(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// register sends the bind and register messages. Write failures are logged
// only; a broken socket surfaces in multiplex.
func (m *Manager) register(conn net.Conn) {
	for _, msg := range handshake(m.bindID) {
		if _, err := conn.Write(msg); err != nil {
			m.logger.Error("agent handshake write failed", "message", string(msg), "error", err)
		}
	}
	m.state.Set(reconnect.StateRegistered)
}

// multiplex services commands and agent datagrams, whichever is ready,
// until one side fails. The connection is closed before returning.
func (m *Manager) multiplex(ctx context.Context, conn net.Conn) error {
	reads := make(chan readResult)
	done := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		readLoop(conn, reads, done)
	}()

	defer func() {
		close(done)
		_ = conn.Close()
		wg.Wait()
	}()

	m.state.Set(reconnect.StateActive)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case payload, ok := <-m.commands:
			if !ok {
				return ErrCommandChannelClosed
			}
			if _, err := conn.Write(payload); err != nil {
				return fmt.Errorf("write command: %w", err)
			}
			m.written.Add(1)

		case res := <-reads:
			if res.err != nil {
				if errors.Is(res.err, io.EOF) {
					return ErrConnectionClosed
				}
				return fmt.Errorf("read: %w", res.err)
			}
			if len(res.data) == 0 {
				return ErrConnectionClosed
			}
			m.handleResponse(res.data)
		}
	}
}

// readLoop feeds datagrams to out until a read fails or done is closed.
// A fresh buffer is used per read since the consumer keeps the slice.
func readLoop(conn net.Conn, out chan<- readResult, done <-chan struct{}) {
	for {
		buf := make([]byte, receiveBufferSize)
		n, err := conn.Read(buf)

		select {
		case out <- readResult{data: buf[:n], err: err}:
		case <-done:
			return
		}

		if err != nil || n == 0 {
			return
		}
	}
}

// handleResponse routes one agent datagram to the ack or report topic.
func (m *Manager) handleResponse(payload []byte) {
	id, ok, err := correlation.ParseID(payload)
	if err != nil {
		m.decodeErrors.Add(1)
		m.logger.Error("failed to decode agent message", "error", err)
		return
	}

	topic := mqtt.TopicReport
	if ok && m.slot.Matches(id) {
		topic = mqtt.TopicCommandAck
		m.acks.Add(1)
	} else {
		m.reports.Add(1)
	}

	m.logger.Debug("agent message", "topic", topic, "bytes", len(payload))
	m.publisher.Publish(topic, payload)
}

// State returns the link lifecycle state.
func (m *Manager) State() reconnect.State {
	return m.state.Load()
}

// Stats returns a snapshot of the counters.
func (m *Manager) Stats() Stats {
	return Stats{
		CommandsWritten: m.written.Load(),
		Acks:            m.acks.Load(),
		Reports:         m.reports.Load(),
		DecodeErrors:    m.decodeErrors.Load(),
		Reconnects:      m.reconnects.Load(),
	}
}
