package client

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/boardstream/pkg/events"
)

// Handler receives one event. A returned error is logged and does not stop
// other handlers.
type Handler func(events.Event) error

type subscription struct {
	handler Handler
}

// Router fans received events out to subscribed handlers. Handlers for the
// exact type run first, then wildcard handlers, each group in registration
// order. Dispatch is synchronous.
type Router struct {
	mu       sync.RWMutex
	handlers map[events.Type][]*subscription
	logger   *zerolog.Logger
}

// NewRouter creates an empty router.
func NewRouter(logger *zerolog.Logger) *Router {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Router{
		handlers: make(map[events.Type][]*subscription),
		logger:   logger,
	}
}

// Subscribe registers h for events of type t, or for every event when t is
// events.Wildcard. The returned func removes exactly this registration and
// is safe to call more than once.
func (r *Router) Subscribe(t events.Type, h Handler) (unsubscribe func()) {
	sub := &subscription{handler: h}

	r.mu.Lock()
	r.handlers[t] = append(r.handlers[t], sub)
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(t, sub) })
	}
}

func (r *Router) remove(t events.Type, sub *subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs := r.handlers[t]
	for i, s := range subs {
		if s != sub {
			continue
		}
		// copy so an in-flight dispatch keeps its snapshot intact
		next := make([]*subscription, 0, len(subs)-1)
		next = append(next, subs[:i]...)
		next = append(next, subs[i+1:]...)
		if len(next) == 0 {
			delete(r.handlers, t)
		} else {
			r.handlers[t] = next
		}
		return
	}
}

// Dispatch calls every handler subscribed to ev.Type, then every wildcard
// handler. It returns the number of handlers that failed or panicked.
func (r *Router) Dispatch(ev events.Event) int {
	r.mu.RLock()
	exact := r.handlers[ev.Type]
	var wildcard []*subscription
	if ev.Type != events.Wildcard {
		wildcard = r.handlers[events.Wildcard]
	}
	r.mu.RUnlock()

	failed := 0
	for _, group := range [][]*subscription{exact, wildcard} {
		for _, sub := range group {
			if err := r.call(sub.handler, ev); err != nil {
				failed++
				r.logger.Error().
					Err(err).
					Str("event_type", ev.Type.String()).
					Msg("Event handler failed")
			}
		}
	}
	return failed
}

// Len returns the number of handlers registered for t.
func (r *Router) Len(t events.Type) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[t])
}

func (r *Router) call(h Handler, ev events.Event) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()
	return h(ev)
}
