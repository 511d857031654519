package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for agent2mqtt.
// Values are layered: defaults, then an optional YAML file, then environment
// variables, then command-line flags (applied by the caller).
type Config struct {
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Agent    AgentConfig    `yaml:"agent"`
	Relay    RelayConfig    `yaml:"relay"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker MQTTBrokerConfig `yaml:"broker"`
	Auth   MQTTAuthConfig   `yaml:"auth"`

	// KeepAlive is the MQTT keep-alive interval negotiated with the broker.
	KeepAlive time.Duration `yaml:"keep_alive"`

	// RetryDelay is the fixed pause between failed connect/subscribe attempts.
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// AgentConfig contains settings for the miio agent socket link.
type AgentConfig struct {
	// SocketPath is the filesystem path of the agent's SOCK_SEQPACKET socket.
	SocketPath string `yaml:"socket_path"`

	// BindID is the address announced in the bind message.
	BindID uint32 `yaml:"bind_id"`

	// QueueSize is the capacity of the command channel between the broker
	// and the agent link.
	QueueSize int `yaml:"queue_size"`

	// RetryDelay is the fixed pause between reconnection attempts.
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// RelayConfig contains settings for the companion log relay.
type RelayConfig struct {
	Enabled bool     `yaml:"enabled"`
	Binary  string   `yaml:"binary"`
	Args    []string `yaml:"args"`

	// KillExisting terminates stale instances of Binary before launching.
	KillExisting bool `yaml:"kill_existing"`

	RestartOnFailure bool          `yaml:"restart_on_failure"`
	RestartDelay     time.Duration `yaml:"restart_delay"`

	// MaxRestarts caps restarts after unexpected exits. 0 means unlimited.
	MaxRestarts int `yaml:"max_restarts"`
}

// InfluxDBConfig contains InfluxDB connection settings for bridge telemetry.
type InfluxDBConfig struct {
	Enabled  bool          `yaml:"enabled"`
	URL      string        `yaml:"url"`
	Token    string        `yaml:"token"`
	Org      string        `yaml:"org"`
	Bucket   string        `yaml:"bucket"`
	Interval time.Duration `yaml:"interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// BrokerURL returns the paho-style broker URL for the configured host.
func (c MQTTConfig) BrokerURL() string {
	scheme := "tcp"
	if c.Broker.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Broker.Host, c.Broker.Port)
}

// Load reads configuration from a YAML file and applies environment
// variable overrides. It does not validate: callers layer command-line flags
// on top and then call Validate.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values, if path is non-empty
//  3. Environment variables
//
// Environment variables follow the pattern: AGENT2MQTT_SECTION_KEY
// For example: AGENT2MQTT_MQTT_HOST, AGENT2MQTT_AGENT_SOCKET
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a Config populated with the bridge's built-in defaults.
func Default() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "agent2mqtt",
			},
			KeepAlive:  20 * time.Second,
			RetryDelay: 500 * time.Millisecond,
		},
		Agent: AgentConfig{
			SocketPath: "/tmp/miio_agent.socket",
			BindID:     0,
			QueueSize:  32,
			RetryDelay: 500 * time.Millisecond,
		},
		Relay: RelayConfig{
			Enabled:      true,
			Binary:       "ha_driven",
			KillExisting: true,
			RestartDelay: 5 * time.Second,
		},
		InfluxDB: InfluxDBConfig{
			URL:      "http://localhost:8086",
			Interval: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("AGENT2MQTT_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("AGENT2MQTT_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("AGENT2MQTT_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("AGENT2MQTT_AGENT_SOCKET"); v != "" {
		cfg.Agent.SocketPath = v
	}
	if v := os.Getenv("AGENT2MQTT_AGENT_BIND_ID"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("AGENT2MQTT_AGENT_BIND_ID: %w", err)
		}
		cfg.Agent.BindID = uint32(id)
	}

	if v := os.Getenv("AGENT2MQTT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("AGENT2MQTT_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.Broker.ClientID == "" {
		errs = append(errs, "mqtt.broker.client_id is required")
	}
	if c.MQTT.KeepAlive < time.Second {
		errs = append(errs, "mqtt.keep_alive must be at least 1s")
	}
	if c.MQTT.RetryDelay <= 0 {
		errs = append(errs, "mqtt.retry_delay must be positive")
	}

	if c.Agent.SocketPath == "" {
		errs = append(errs, "agent.socket_path is required")
	}
	if c.Agent.QueueSize < 1 {
		errs = append(errs, "agent.queue_size must be at least 1")
	}
	if c.Agent.RetryDelay <= 0 {
		errs = append(errs, "agent.retry_delay must be positive")
	}

	if c.Relay.Enabled && c.Relay.Binary == "" {
		errs = append(errs, "relay.binary is required when the relay is enabled")
	}
	if c.Relay.MaxRestarts < 0 {
		errs = append(errs, "relay.max_restarts must not be negative")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
		if c.InfluxDB.Interval <= 0 {
			errs = append(errs, "influxdb.interval must be positive")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
