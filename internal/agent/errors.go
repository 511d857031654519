package agent

import "errors"

var (
	// ErrCommandChannelClosed is returned by Run when the command channel
	// has been closed by its sender. It is terminal.
	ErrCommandChannelClosed = errors.New("agent: command channel closed")

	// ErrConnectionClosed indicates the agent closed the socket (EOF or an
	// empty read).
	ErrConnectionClosed = errors.New("agent: connection closed")

	// ErrInvalidOptions is returned by NewManager when a required dependency is missing.
	ErrInvalidOptions = errors.New("agent: invalid options")
)
