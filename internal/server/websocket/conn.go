// Package websocket adapts a gorilla/websocket connection to the registry
// sink interface. Each event is one text message; keepalives are pings.
package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/agentstation/boardstream/internal/registry"
	pkgerrors "github.com/agentstation/boardstream/pkg/errors"
)

const (
	// Time allowed to write a message to the peer when ctx has no deadline.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Maximum message size allowed from peer. Clients never send data.
	maxMessageSize = 512
)

// Upgrader returns the upgrader used by the stream endpoint.
func Upgrader(checkOrigin func(r *http.Request) bool) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     checkOrigin,
	}
}

// Conn is a registry.Sink over a WebSocket connection.
type Conn struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
	logger *zerolog.Logger

	done      chan struct{}
	closeOnce sync.Once
}

var _ registry.Sink = (*Conn)(nil)

// NewConn wraps an upgraded connection and starts reading control frames.
// Done is closed when the peer goes away.
func NewConn(conn *websocket.Conn, logger *zerolog.Logger) *Conn {
	c := &Conn{
		conn:   conn,
		logger: logger,
		done:   make(chan struct{}),
	}
	go c.readPump()
	return c
}

// readPump drains inbound frames so pongs and close frames are processed.
func (c *Conn) readPump() {
	defer c.closeOnce.Do(func() { close(c.done) })

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug().Err(err).Msg("WebSocket read error")
			}
			return
		}
	}
}

// Send writes msg as a text message, or a ping for keepalives.
func (c *Conn) Send(ctx context.Context, msg registry.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(writeWait)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return pkgerrors.ErrClosed
	}

	if msg.KeepAlive() {
		return c.conn.WriteControl(websocket.PingMessage, nil, deadline)
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, msg.Data)
}

// Close sends a close frame and closes the connection. It is idempotent.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	err := c.conn.Close()
	c.closeOnce.Do(func() { close(c.done) })
	return err
}

// Done is closed when the peer disconnects or Close is called.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}
