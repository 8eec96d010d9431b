package core

import "context"

const (
	Name      = "termbridge"
	UserAgent = "termbridge/0.1"
	Version   = "0.1.0"

	// DefaultSession is the well-known session key shared by the
	// stateless transports (HTTP and Telegram). WebSocket connections
	// get a session of their own.
	DefaultSession = "default"
)

// Reply is what a command handler produces. Plain is the canonical text
// that gets logged and shipped over the bridge; Rendered is the styled
// variant written to the console. Silent means the handler already
// managed its own output and the loop must print nothing.
type Reply struct {
	Plain    string
	Rendered string
	Silent   bool
}

func NewReply(text string) Reply {
	return Reply{Plain: text, Rendered: text}
}

// Handler executes one command. It receives the full input line,
// including the command token itself.
type Handler func(ctx context.Context, line string) (Reply, error)

// Command is a single registry entry.
type Command struct {
	Name        string
	Description string
	Handler     Handler
}

// Provider contributes a set of commands at startup. A provider that
// fails is logged and skipped; its commands are simply absent.
type Provider func() ([]Command, error)
