package logrelay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync/atomic"
	"time"

	"github.com/nerrad567/agent2mqtt/internal/infrastructure/config"
	"github.com/nerrad567/agent2mqtt/internal/infrastructure/mqtt"
	"github.com/nerrad567/agent2mqtt/internal/process"
	"github.com/nerrad567/agent2mqtt/internal/reconnect"
)

// settleDelay is the pause between killing stale instances and launching.
const settleDelay = 500 * time.Millisecond

// Publisher sends relayed payloads to the broker.
type Publisher interface {
	Publish(topic string, payload []byte)
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Relay runs the companion daemon and publishes the reports found in its
// stdout.
type Relay struct {
	cfg       config.RelayConfig
	publisher Publisher
	logger    Logger

	// kill terminates running instances of a binary.
	kill        func(ctx context.Context, binary string) error
	settleDelay time.Duration

	proc    atomic.Pointer[process.Manager]
	relayed atomic.Uint64
}

// New creates a Relay. logger may be nil.
func New(cfg config.RelayConfig, publisher Publisher, logger Logger) *Relay {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Relay{
		cfg:         cfg,
		publisher:   publisher,
		logger:      logger,
		kill:        killall,
		settleDelay: settleDelay,
	}
}

// Consume publishes every payload found in r to the report topic.
// It returns when r is exhausted.
func (r *Relay) Consume(rd io.Reader) {
	src := &errReader{r: rd}
	for payload := range Payloads(src) {
		r.logger.Debug("relaying report", "payload", payload)
		r.publisher.Publish(mqtt.TopicReport, []byte(payload))
		r.relayed.Add(1)
	}

	if src.err != nil && !errors.Is(src.err, io.EOF) && !errors.Is(src.err, os.ErrClosed) {
		r.logger.Warn("companion output read failed", "binary", r.cfg.Binary, "error", src.err)
	}
}

// errReader remembers the last error returned by r.
type errReader struct {
	r   io.Reader
	err error
}

func (e *errReader) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if err != nil {
		e.err = err
	}
	return n, err
}

// Start optionally kills stale instances, then launches the daemon with its
// stdout wired to Consume.
func (r *Relay) Start(ctx context.Context) error {
	if r.cfg.KillExisting {
		if err := r.kill(ctx, r.cfg.Binary); err != nil {
			// killall exits non-zero when nothing matched.
			r.logger.Debug("no stale instance killed", "binary", r.cfg.Binary, "error", err)
		}
		if err := reconnect.Wait(ctx, r.settleDelay); err != nil {
			return err
		}
	}

	proc := process.NewManager(process.Config{
		Name:               r.cfg.Binary,
		Binary:             r.cfg.Binary,
		Args:               r.cfg.Args,
		StdoutHandler:      r.Consume,
		RestartOnFailure:   r.cfg.RestartOnFailure,
		RestartDelay:       r.cfg.RestartDelay,
		MaxRestartAttempts: r.cfg.MaxRestarts,
	})
	proc.SetLogger(r.logger)
	r.proc.Store(proc)

	if err := proc.Start(ctx); err != nil {
		return fmt.Errorf("launch %s: %w", r.cfg.Binary, err)
	}

	r.logger.Info("reading reports from companion", "binary", r.cfg.Binary, "pid", proc.PID())
	return nil
}

// Run starts the relay and keeps it up until ctx is cancelled. A launch
// failure is logged and Run returns nil so the rest of the bridge carries on.
func (r *Relay) Run(ctx context.Context) error {
	if err := r.Start(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		r.logger.Error("report relay disabled", "error", err)
		return nil
	}

	<-ctx.Done()
	err := r.Stop()
	if proc := r.proc.Load(); proc != nil && proc.LastError() != nil {
		r.logger.Info("report relay stopped",
			"restarts", proc.RestartCount(),
			"last_error", proc.LastError(),
		)
	}
	return err
}

// Stop terminates the daemon. Safe to call when not started.
func (r *Relay) Stop() error {
	proc := r.proc.Load()
	if proc == nil {
		return nil
	}
	return proc.Stop()
}

// Running reports whether the companion process is up.
func (r *Relay) Running() bool {
	proc := r.proc.Load()
	return proc != nil && proc.IsRunning()
}

// Restarts returns how many times the companion has been restarted.
func (r *Relay) Restarts() int {
	proc := r.proc.Load()
	if proc == nil {
		return 0
	}
	return proc.RestartCount()
}

// Relayed returns the number of payloads published.
func (r *Relay) Relayed() uint64 {
	return r.relayed.Load()
}

func killall(ctx context.Context, binary string) error {
	return exec.CommandContext(ctx, "killall", "-9", binary).Run() //nolint:gosec // binary comes from operator config
}
