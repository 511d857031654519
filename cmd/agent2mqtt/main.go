// agent2mqtt bridges the local miio agent socket to an MQTT broker.
//
// Commands published on miio/command are written to the agent; the agent's
// replies are published on miio/command_ack when they answer the last
// command and on openmiio/report otherwise. Reports scraped from the
// ha_driven log stream are published on openmiio/report as well.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nerrad567/agent2mqtt/internal/infrastructure/config"
	"github.com/nerrad567/agent2mqtt/internal/infrastructure/logging"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// flags holds command-line overrides. Only flags the user set are applied.
type flags struct {
	configPath string
	mqttHost   string
	socketPath string
	bindID     uint32
	logLevel   string
}

func newRootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:           "agent2mqtt",
		Short:         "Bridge the miio agent socket to MQTT",
		Long:          "agent2mqtt forwards MQTT commands to the local miio agent and publishes its responses and reports back to the broker.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return run(ctx, cfg, logging.New(cfg.Logging, version))
		},
	}

	cmd.Flags().StringVarP(&f.configPath, "config", "c", os.Getenv("AGENT2MQTT_CONFIG"), "path to YAML config file")
	cmd.Flags().StringVarP(&f.mqttHost, "mqtt-ip", "m", "", "MQTT broker host (default localhost)")
	cmd.Flags().StringVarP(&f.socketPath, "agent-socket-path", "a", "", "miio agent socket path (default /tmp/miio_agent.socket)")
	cmd.Flags().Uint32VarP(&f.bindID, "bind-id", "b", 0, "address announced to the agent")
	cmd.Flags().StringVarP(&f.logLevel, "log-level", "l", "", "log level: error, warn, info, debug, trace")

	cmd.AddCommand(newVersionCmd())
	return cmd
}

// loadConfig layers defaults, file, environment and flags, then validates.
func loadConfig(cmd *cobra.Command, f flags) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	applyFlags(cmd, f, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFlags(cmd *cobra.Command, f flags, cfg *config.Config) {
	fs := cmd.Flags()
	if fs.Changed("mqtt-ip") {
		cfg.MQTT.Broker.Host = f.mqttHost
	}
	if fs.Changed("agent-socket-path") {
		cfg.Agent.SocketPath = f.socketPath
	}
	if fs.Changed("bind-id") {
		cfg.Agent.BindID = f.bindID
	}
	if fs.Changed("log-level") {
		cfg.Logging.Level = f.logLevel
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "agent2mqtt %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
