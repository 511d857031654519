package main

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/agent2mqtt/internal/agent"
	"github.com/nerrad567/agent2mqtt/internal/broker"
	"github.com/nerrad567/agent2mqtt/internal/correlation"
	"github.com/nerrad567/agent2mqtt/internal/infrastructure/config"
	"github.com/nerrad567/agent2mqtt/internal/infrastructure/influxdb"
	"github.com/nerrad567/agent2mqtt/internal/infrastructure/logging"
	"github.com/nerrad567/agent2mqtt/internal/infrastructure/mqtt"
	"github.com/nerrad567/agent2mqtt/internal/logrelay"
	"github.com/nerrad567/agent2mqtt/internal/reconnect"
	"github.com/nerrad567/agent2mqtt/internal/telemetry"
)

// run wires the bridge and blocks until ctx is cancelled or a component
// fails for good.
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, cfg *config.Config, log *logging.Logger) error {
	log.Info("starting agent2mqtt",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	client, err := mqtt.New(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("creating mqtt client: %w", err)
	}
	defer client.Close()

	slot := correlation.NewSlot()
	commands := make(chan []byte, cfg.Agent.QueueSize)

	brokerMgr, err := broker.NewManager(broker.Options{
		Session:  client,
		Commands: commands,
		Slot:     slot,
		Policy:   reconnect.Fixed{Delay: cfg.MQTT.RetryDelay},
		Logger:   log.With("component", "broker"),
	})
	if err != nil {
		return err
	}

	agentMgr, err := agent.NewManager(agent.Options{
		SocketPath: cfg.Agent.SocketPath,
		BindID:     cfg.Agent.BindID,
		Commands:   commands,
		Slot:       slot,
		Publisher:  brokerMgr,
		Policy:     reconnect.Fixed{Delay: cfg.Agent.RetryDelay},
		Logger:     log.With("component", "agent"),
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return brokerMgr.Run(gctx) })
	g.Go(func() error { return agentMgr.Run(gctx) })

	var relayStats telemetry.RelayStats
	if cfg.Relay.Enabled {
		relay := logrelay.New(cfg.Relay, brokerMgr, log.With("component", "relay"))
		relayStats = relay
		g.Go(func() error { return relay.Run(gctx) })
	}

	if cfg.InfluxDB.Enabled {
		influx, err := influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			log.Warn("telemetry disabled", "error", err)
		} else {
			defer influx.Close()
			influx.SetOnError(func(err error) {
				log.Warn("telemetry write failed", "error", err)
			})

			reporter := telemetry.NewReporter(telemetry.Options{
				Writer:   influx,
				Interval: cfg.InfluxDB.Interval,
				ClientID: cfg.MQTT.Broker.ClientID,
				Broker:   brokerMgr,
				Agent:    agentMgr,
				Relay:    relayStats,
			})
			g.Go(func() error { return reporter.Run(gctx) })
			log.Info("telemetry enabled", "url", cfg.InfluxDB.URL, "interval", cfg.InfluxDB.Interval)
		}
	}

	err = g.Wait()
	if ctx.Err() != nil {
		log.Info("shutdown complete")
		return nil
	}
	if errors.Is(err, agent.ErrCommandChannelClosed) {
		return fmt.Errorf("broker manager stopped: %w", err)
	}
	return err
}
