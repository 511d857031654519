package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.MQTT.Broker.Host)
	assert.Equal(t, 1883, cfg.MQTT.Broker.Port)
	assert.Equal(t, "agent2mqtt", cfg.MQTT.Broker.ClientID)
	assert.Equal(t, 20*time.Second, cfg.MQTT.KeepAlive)
	assert.Equal(t, 500*time.Millisecond, cfg.MQTT.RetryDelay)
	assert.Equal(t, "/tmp/miio_agent.socket", cfg.Agent.SocketPath)
	assert.Equal(t, uint32(0), cfg.Agent.BindID)
	assert.Equal(t, 32, cfg.Agent.QueueSize)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.InfluxDB.Enabled)
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
mqtt:
  broker:
    host: "192.168.1.10"
    port: 1884
  retry_delay: 250ms
agent:
  socket_path: "/run/miio.sock"
  bind_id: 7
relay:
  enabled: false
  max_restarts: 3
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "192.168.1.10", cfg.MQTT.Broker.Host)
	assert.Equal(t, 1884, cfg.MQTT.Broker.Port)
	assert.Equal(t, "agent2mqtt", cfg.MQTT.Broker.ClientID, "unset keys keep defaults")
	assert.Equal(t, 250*time.Millisecond, cfg.MQTT.RetryDelay)
	assert.Equal(t, "/run/miio.sock", cfg.Agent.SocketPath)
	assert.Equal(t, uint32(7), cfg.Agent.BindID)
	assert.False(t, cfg.Relay.Enabled)
	assert.Equal(t, 3, cfg.Relay.MaxRestarts)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid: [yaml: content")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_ThenValidate(t *testing.T) {
	path := writeConfig(t, `
mqtt:
  broker:
    port: 0
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mqtt.broker.port")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "empty host", mutate: func(c *Config) { c.MQTT.Broker.Host = "" }, wantErr: true},
		{name: "port high", mutate: func(c *Config) { c.MQTT.Broker.Port = 70000 }, wantErr: true},
		{name: "empty client id", mutate: func(c *Config) { c.MQTT.Broker.ClientID = "" }, wantErr: true},
		{name: "keep alive too short", mutate: func(c *Config) { c.MQTT.KeepAlive = 0 }, wantErr: true},
		{name: "zero broker retry", mutate: func(c *Config) { c.MQTT.RetryDelay = 0 }, wantErr: true},
		{name: "empty socket path", mutate: func(c *Config) { c.Agent.SocketPath = "" }, wantErr: true},
		{name: "zero queue", mutate: func(c *Config) { c.Agent.QueueSize = 0 }, wantErr: true},
		{name: "zero agent retry", mutate: func(c *Config) { c.Agent.RetryDelay = 0 }, wantErr: true},
		{name: "relay without binary", mutate: func(c *Config) { c.Relay.Binary = "" }, wantErr: true},
		{name: "negative max restarts", mutate: func(c *Config) { c.Relay.MaxRestarts = -1 }, wantErr: true},
		{
			name: "relay disabled without binary",
			mutate: func(c *Config) {
				c.Relay.Enabled = false
				c.Relay.Binary = ""
			},
		},
		{
			name: "influxdb without bucket",
			mutate: func(c *Config) {
				c.InfluxDB.Enabled = true
			},
			wantErr: true,
		},
		{
			name: "influxdb complete",
			mutate: func(c *Config) {
				c.InfluxDB.Enabled = true
				c.InfluxDB.Bucket = "bridge"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := Default()

	t.Setenv("AGENT2MQTT_MQTT_HOST", "mqtt.example.com")
	t.Setenv("AGENT2MQTT_MQTT_USERNAME", "testuser")
	t.Setenv("AGENT2MQTT_MQTT_PASSWORD", "testpass")
	t.Setenv("AGENT2MQTT_AGENT_SOCKET", "/run/agent.sock")
	t.Setenv("AGENT2MQTT_AGENT_BIND_ID", "12")
	t.Setenv("AGENT2MQTT_LOG_LEVEL", "trace")
	t.Setenv("AGENT2MQTT_INFLUXDB_TOKEN", "secret-token")

	require.NoError(t, applyEnvOverrides(cfg))

	assert.Equal(t, "mqtt.example.com", cfg.MQTT.Broker.Host)
	assert.Equal(t, "testuser", cfg.MQTT.Auth.Username)
	assert.Equal(t, "testpass", cfg.MQTT.Auth.Password)
	assert.Equal(t, "/run/agent.sock", cfg.Agent.SocketPath)
	assert.Equal(t, uint32(12), cfg.Agent.BindID)
	assert.Equal(t, "trace", cfg.Logging.Level)
	assert.Equal(t, "secret-token", cfg.InfluxDB.Token)
}

func TestApplyEnvOverrides_InvalidBindID(t *testing.T) {
	t.Setenv("AGENT2MQTT_AGENT_BIND_ID", "-1")

	err := applyEnvOverrides(Default())
	assert.Error(t, err)
}

func TestMQTTConfig_BrokerURL(t *testing.T) {
	cfg := Default().MQTT
	assert.Equal(t, "tcp://localhost:1883", cfg.BrokerURL())

	cfg.Broker.TLS = true
	cfg.Broker.Host = "10.0.0.2"
	assert.Equal(t, "ssl://10.0.0.2:1883", cfg.BrokerURL())
}
