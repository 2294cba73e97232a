// Package sse writes registry messages to an HTTP response as a
// Server-Sent Events stream.
package sse

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/agentstation/boardstream/internal/registry"
	pkgerrors "github.com/agentstation/boardstream/pkg/errors"
)

var (
	dataPrefix = []byte("data: ")
	idPrefix   = []byte("id: ")
	frameEnd   = []byte("\n\n")
	keepAlive  = []byte(": keepalive\n\n")
)

// Sink is a registry.Sink over an http.ResponseWriter. Headers are sent
// with the first frame so a rejected connect can still answer with JSON.
type Sink struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	rc      *http.ResponseController
	started bool
	closed  bool

	done      chan struct{}
	closeOnce sync.Once
}

var _ registry.Sink = (*Sink)(nil)

// NewSink wraps w.
func NewSink(w http.ResponseWriter) *Sink {
	return &Sink{
		w:    w,
		rc:   http.NewResponseController(w),
		done: make(chan struct{}),
	}
}

// Send writes msg as one event frame and flushes it. The write deadline
// follows ctx so a stalled peer fails the write instead of blocking.
func (s *Sink) Send(ctx context.Context, msg registry.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return pkgerrors.ErrClosed
	}

	if deadline, ok := ctx.Deadline(); ok {
		if err := s.rc.SetWriteDeadline(deadline); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return err
		}
		defer func() { _ = s.rc.SetWriteDeadline(time.Time{}) }()
	}

	if !s.started {
		h := s.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}

	if err := s.write(msg); err != nil {
		return err
	}
	return s.rc.Flush()
}

func (s *Sink) write(msg registry.Message) error {
	if msg.KeepAlive() {
		_, err := s.w.Write(keepAlive)
		return err
	}

	if msg.ID != "" {
		if _, err := s.w.Write(idPrefix); err != nil {
			return err
		}
		if _, err := s.w.Write([]byte(msg.ID + "\n")); err != nil {
			return err
		}
	}
	if _, err := s.w.Write(dataPrefix); err != nil {
		return err
	}
	if _, err := s.w.Write(msg.Data); err != nil {
		return err
	}
	_, err := s.w.Write(frameEnd)
	return err
}

// Close stops further writes. It waits for an in-flight Send, so once it
// returns the handler may safely finish the response.
func (s *Sink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

// Done is closed when the sink has been closed.
func (s *Sink) Done() <-chan struct{} {
	return s.done
}

// Started reports whether any frame has been written.
func (s *Sink) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}
