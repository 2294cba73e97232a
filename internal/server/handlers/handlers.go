// Package handlers provides HTTP request handlers for the boardstream API.
package handlers

import (
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/agentstation/boardstream/internal/board"
	"github.com/agentstation/boardstream/internal/registry"
)

// Handlers provides access to all HTTP handlers.
type Handlers struct {
	registry *registry.Registry
	board    *board.Service
	upgrader websocket.Upgrader
	logger   *zerolog.Logger
	ready    func() error
}

// New creates a new Handlers instance. ready reports whether the server
// can accept streams; nil means always ready.
func New(
	reg *registry.Registry,
	svc *board.Service,
	upgrader websocket.Upgrader,
	logger *zerolog.Logger,
	ready func() error,
) *Handlers {
	if ready == nil {
		ready = func() error { return nil }
	}
	return &Handlers{
		registry: reg,
		board:    svc,
		upgrader: upgrader,
		logger:   logger,
		ready:    ready,
	}
}
