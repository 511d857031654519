package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WritePoint queues one point stamped with the current time.
// The write is non-blocking; failures arrive through SetOnError.
//
// Example:
//
//	client.WritePoint("agent2mqtt",
//	    map[string]string{"client_id": "agent2mqtt"},
//	    map[string]any{"commands_received": 12})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}
