package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/agent2mqtt/internal/infrastructure/config"
	"github.com/nerrad567/agent2mqtt/internal/infrastructure/logging"
)

func TestVersionCmd(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("version command failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "agent2mqtt dev") {
		t.Errorf("expected output to contain 'agent2mqtt dev', got: %s", out)
	}
	if !strings.Contains(out, "commit: unknown") {
		t.Errorf("expected output to contain 'commit: unknown', got: %s", out)
	}
}

func TestVersionCmdWithCustomValues(t *testing.T) {
	origVersion, origCommit, origDate := version, commit, date
	version, commit, date = "1.2.0", "abc123", "2026-01-01"
	defer func() { version, commit, date = origVersion, origCommit, origDate }()

	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("version command failed: %v", err)
	}

	want := "agent2mqtt 1.2.0 (commit: abc123, built: 2026-01-01)"
	if !strings.Contains(buf.String(), want) {
		t.Errorf("expected output to contain %q, got: %s", want, buf.String())
	}
}

func TestRootCmdHelp(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("help command failed: %v", err)
	}

	out := buf.String()
	for _, flag := range []string{"--mqtt-ip", "--agent-socket-path", "--bind-id", "--log-level", "--config", "version"} {
		if !strings.Contains(out, flag) {
			t.Errorf("expected help output to contain %q, got: %s", flag, out)
		}
	}
}

func TestRootCmdShorthands(t *testing.T) {
	cmd := newRootCmd()
	for name, short := range map[string]string{
		"mqtt-ip":           "m",
		"agent-socket-path": "a",
		"bind-id":           "b",
		"log-level":         "l",
		"config":            "c",
	} {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			t.Errorf("flag --%s not defined", name)
			continue
		}
		if f.Shorthand != short {
			t.Errorf("flag --%s shorthand = %q, want %q", name, f.Shorthand, short)
		}
	}
}

func TestLoadConfig_FlagsOverrideFileAndDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("mqtt:\n  broker:\n    host: file-host\nagent:\n  bind_id: 3\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	cmd := newRootCmd()
	args := []string{"-c", path, "-m", "10.0.0.5", "-a", "/run/agent.sock", "-l", "trace"}
	if err := cmd.Flags().Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	f := flags{configPath: path, mqttHost: "10.0.0.5", socketPath: "/run/agent.sock", logLevel: "trace"}
	cfg, err := loadConfig(cmd, f)
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}

	if cfg.MQTT.Broker.Host != "10.0.0.5" {
		t.Errorf("host = %q, want flag value", cfg.MQTT.Broker.Host)
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("port = %d, want default 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.Agent.SocketPath != "/run/agent.sock" {
		t.Errorf("socket = %q, want flag value", cfg.Agent.SocketPath)
	}
	if cfg.Agent.BindID != 3 {
		t.Errorf("bind id = %d, want file value 3 (flag not set)", cfg.Agent.BindID)
	}
	if cfg.Logging.Level != "trace" {
		t.Errorf("log level = %q, want trace", cfg.Logging.Level)
	}
}

func TestExecute_InvalidConfig(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")})

	if code := execute(cmd); code != 1 {
		t.Errorf("execute() = %d, want 1", code)
	}
	if !strings.Contains(buf.String(), "loading config") {
		t.Errorf("expected error output, got: %s", buf.String())
	}
}

func TestExecute_RejectsArgs(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"unexpected"})

	if code := execute(cmd); code != 1 {
		t.Errorf("execute() = %d, want 1", code)
	}
}

func TestRun_CleanShutdown(t *testing.T) {
	cfg := config.Default()
	cfg.MQTT.Broker.Host = "127.0.0.1"
	cfg.MQTT.Broker.Port = 19999
	cfg.Agent.SocketPath = filepath.Join(os.TempDir(), "a2m-run-missing.sock")
	cfg.Relay.Enabled = false

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, logging.Default()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run() error = %v, want nil on cancellation", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after cancellation")
	}
}
