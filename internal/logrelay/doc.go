// Package logrelay turns the companion daemon's log output into MQTT reports.
//
// The daemon (ha_driven) logs every report it receives. Lines of the form
//
//	... onReceiveMessage ... method ... res/report ... >> {"payload":...} trailing
//
// carry a JSON payload after the ">>" marker. The Relay runs the daemon,
// extracts that payload from each qualifying line and publishes it to the
// report topic.
package logrelay
