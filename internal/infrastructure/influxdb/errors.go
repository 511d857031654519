package influxdb

import "errors"

// Sentinel errors for InfluxDB operations.
var (
	// ErrConnectionFailed indicates the initial connection attempt failed.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrDisabled indicates telemetry export is disabled in config.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
