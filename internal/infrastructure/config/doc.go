// Package config handles loading and validating agent2mqtt configuration.
//
// This package manages:
//   - Built-in defaults matching the stock gateway layout
//   - Loading configuration from an optional YAML file
//   - Overriding with environment variables
//   - Validation of required fields
//
// Command-line flags are the final layer and are applied by cmd/agent2mqtt
// after Load returns, before Validate.
//
// Usage:
//
//	cfg, err := config.Load("/etc/agent2mqtt.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.MQTT.BrokerURL())
package config
