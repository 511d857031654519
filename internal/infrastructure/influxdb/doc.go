// Package influxdb exports bridge telemetry to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with connection
// checking and non-blocking, batched point writes.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WritePoint("agent2mqtt", tags, fields)
//
// # Error Handling
//
// Writes never block or return errors; batch failures are delivered to the
// SetOnError callback. Connection and health check errors are returned
// directly.
package influxdb
