package contracts

import "context"

// Client represents the minimal interface the hub needs to talk to one
// websocket connection.
type Client interface {
	// ID is the transport session id.
	ID() string
	UserID() string
	Send(ctx context.Context, data []byte) error
	Close()
}

// Broadcaster is the channel fan-out surface the engine services emit
// through. Channels are named (user_<id>, chat_<room>_<user>) and a
// connection can be a member of any number of them. All emits are
// best-effort, at-least-once; receivers must apply them idempotently.
type Broadcaster interface {
	// Join adds a connection to a named channel.
	Join(channel, connID string)
	// Leave removes a connection from a named channel.
	Leave(channel, connID string)
	// Emit sends an event to every member of a channel except exceptConn.
	Emit(ctx context.Context, channel, event string, data any, exceptConn string)
	// EmitToConn sends an event directly to one connection.
	EmitToConn(ctx context.Context, connID, event string, data any)
	// Broadcast sends an event to every connected client except exceptConn.
	Broadcast(ctx context.Context, event string, data any, exceptConn string)
}
