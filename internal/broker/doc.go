// Package broker manages the MQTT side of the bridge.
//
// The Manager owns the broker session lifecycle: it connects and subscribes
// to the command topic, dispatches inbound commands onto the command channel
// while recording their correlation fields, and reconnects forever when the
// session drops. It also serves as the shared publisher for agent responses
// and relayed reports.
//
// # Shutdown
//
// The Manager is the only sender on the command channel and closes it when
// Run returns. The agent side treats the closed channel as its signal to stop.
package broker
