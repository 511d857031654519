// Package telemetry periodically exports bridge counters as time-series points.
package telemetry

import (
	"context"
	"time"

	"github.com/nerrad567/agent2mqtt/internal/agent"
	"github.com/nerrad567/agent2mqtt/internal/broker"
)

// Measurement is the point name written for bridge counters.
const Measurement = "agent2mqtt"

const defaultInterval = 30 * time.Second

// Writer queues points. *influxdb.Client satisfies it.
type Writer interface {
	WritePoint(measurement string, tags map[string]string, fields map[string]any)
	Flush()
}

// BrokerStats exposes broker counters.
type BrokerStats interface {
	Stats() broker.Stats
}

// AgentStats exposes agent link counters.
type AgentStats interface {
	Stats() agent.Stats
}

// RelayStats exposes the log relay counters and companion state.
type RelayStats interface {
	Relayed() uint64
	Restarts() int
	Running() bool
}

// Options configures a Reporter. Any stats source may be nil.
type Options struct {
	Writer   Writer
	Interval time.Duration
	ClientID string

	Broker BrokerStats
	Agent  AgentStats
	Relay  RelayStats
}

// Reporter writes one point per interval until its context ends.
type Reporter struct {
	opts Options
}

// NewReporter creates a Reporter.
func NewReporter(opts Options) *Reporter {
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	return &Reporter{opts: opts}
}

// Run reports on every tick and once more on shutdown, flushing the final
// point before it returns. It always returns nil.
func (r *Reporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.Report()
			r.opts.Writer.Flush()
			return nil
		case <-ticker.C:
			r.Report()
		}
	}
}

// Report writes the current counters.
func (r *Reporter) Report() {
	fields := r.Fields()
	if len(fields) == 0 {
		return
	}
	r.opts.Writer.WritePoint(Measurement, map[string]string{"client_id": r.opts.ClientID}, fields)
}

// Fields collects the counters of every configured source.
func (r *Reporter) Fields() map[string]any {
	fields := make(map[string]any)

	if r.opts.Broker != nil {
		s := r.opts.Broker.Stats()
		fields["commands_received"] = s.CommandsReceived
		fields["commands_forwarded"] = s.CommandsForwarded
		fields["commands_dropped"] = s.CommandsDropped
		fields["command_decode_errors"] = s.DecodeErrors
		fields["broker_reconnects"] = s.Reconnects
		fields["published"] = s.Published
		fields["publish_errors"] = s.PublishErrors
	}

	if r.opts.Agent != nil {
		s := r.opts.Agent.Stats()
		fields["commands_written"] = s.CommandsWritten
		fields["acks"] = s.Acks
		fields["reports"] = s.Reports
		fields["agent_decode_errors"] = s.DecodeErrors
		fields["agent_reconnects"] = s.Reconnects
	}

	if r.opts.Relay != nil {
		fields["relayed_reports"] = r.opts.Relay.Relayed()
		fields["relay_restarts"] = r.opts.Relay.Restarts()
		fields["relay_running"] = r.opts.Relay.Running()
	}

	return fields
}
