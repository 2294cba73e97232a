package registry

import "context"

// Message is one unit written to a sink. Data holds the encoded event and is
// shared by every recipient of a broadcast; sinks must not modify it.
// A Message with no Data is a keepalive probe.
type Message struct {
	ID   string
	Data []byte
}

// KeepAlive reports whether the message is a liveness probe.
func (m Message) KeepAlive() bool {
	return len(m.Data) == 0
}

// Sink is the write side of one client stream. Send must honor ctx
// cancellation so a stalled peer cannot hold a broadcast. Close must be
// idempotent. The registry is the only caller of both methods once the sink
// has been handed to Connect.
type Sink interface {
	Send(ctx context.Context, msg Message) error
	Close() error
}
