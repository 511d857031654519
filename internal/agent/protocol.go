package agent

import "fmt"

// registerKeys are the agent event keys subscribed to after binding, in the
// order they are sent.
var registerKeys = []string{
	"auto.report",
	"auto.forward",
	"lanbox.event",
	"auto.ifttt",
	"auto.cross.ifttt",
	"matter.control",
	"matter.event",
	"mtbr.control",
}

// bindMessage claims address on the agent.
func bindMessage(address uint32) []byte {
	return fmt.Appendf(nil, `{"address":%d,"method":"bind"}`, address)
}

// registerMessage subscribes to events published under key.
func registerMessage(key string) []byte {
	return fmt.Appendf(nil, `{"key":"%s","method":"register"}`, key)
}

// handshake returns the datagrams sent on every new connection.
func handshake(address uint32) [][]byte {
	msgs := make([][]byte, 0, len(registerKeys)+1)
	msgs = append(msgs, bindMessage(address))
	for _, key := range registerKeys {
		msgs = append(msgs, registerMessage(key))
	}
	return msgs
}
