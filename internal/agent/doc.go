// Package agent manages the connection to the local miio agent socket.
//
// The agent speaks SOCK_SEQPACKET datagrams, one JSON document per packet.
// On every successful dial the Manager binds to its configured address and
// registers for the agent's event keys, then multiplexes two sources until
// the connection fails:
//
//   - commands from the broker, written to the socket verbatim
//   - datagrams from the agent, published as command acknowledgements when
//     their id matches the last command, or as reports otherwise
//
// A failed connection is torn down and redialled after a fixed delay. The
// Manager stops for good only when its context is cancelled or the command
// channel is closed.
package agent
