package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/agentstation/boardstream/internal/server/middleware"
	"github.com/agentstation/boardstream/internal/server/response"
	"github.com/agentstation/boardstream/internal/server/sse"
	ws "github.com/agentstation/boardstream/internal/server/websocket"
	pkgerrors "github.com/agentstation/boardstream/pkg/errors"
	"github.com/agentstation/boardstream/pkg/events"
)

// maxBroadcastBody bounds the internal broadcast request body.
const maxBroadcastBody = 1 << 20

// HandleStream handles Server-Sent Events at /api/v1/events/stream.
// @Summary Event stream
// @Description Server-Sent Events stream of board events. The first event is connection.established.
// @Tags events
// @Produce text/event-stream
// @Param token query string false "Signed access token"
// @Success 200 "Event stream"
// @Failure 401 {object} response.Response{error=response.Error}
// @Failure 503 {object} response.Response{error=response.Error}
// @Router /api/v1/events/stream [get].
func (h *Handlers) HandleStream(w http.ResponseWriter, r *http.Request) {
	sink := sse.NewSink(w)
	conn, err := h.registry.Connect(r.Context(), middleware.TokenFromRequest(r), sink)
	if err != nil {
		if pkgerrors.IsAuthentication(err) {
			h.logger.Warn().
				Err(err).
				Str("remote_addr", r.RemoteAddr).
				Msg("Stream rejected")
			response.AuthFailed(w, err)
			return
		}
		// The established frame could not be written; the peer is gone.
		h.logger.Debug().Err(err).Msg("Stream closed before first event")
		_ = sink.Close()
		return
	}

	if last := r.Header.Get("Last-Event-ID"); last != "" {
		h.logger.Debug().
			Str("connection_id", conn.ID).
			Str("last_event_id", last).
			Msg("Stream resumed without replay")
	}

	select {
	case <-r.Context().Done():
	case <-sink.Done():
	}
	h.registry.Disconnect(conn.ID)
	_ = sink.Close()
}

// HandleWebSocket handles WebSocket streams at /api/v1/events/ws. The route
// verifies the token before the upgrade so failures still answer with JSON.
// @Summary WebSocket event stream
// @Description WebSocket stream of board events, one JSON text message per event
// @Tags events
// @Param token query string false "Signed access token"
// @Success 101 "Switching Protocols"
// @Failure 401 {object} response.Response{error=response.Error}
// @Router /api/v1/events/ws [get].
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := middleware.TokenFromRequest(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	sink := ws.NewConn(conn, h.logger)
	c, err := h.registry.Connect(r.Context(), token, sink)
	if err != nil {
		h.logger.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("WebSocket stream rejected")
		_ = sink.Close()
		return
	}

	select {
	case <-r.Context().Done():
	case <-sink.Done():
	}
	h.registry.Disconnect(c.ID)
	_ = sink.Close()
}

// HandleBroadcast handles POST /api/v1/events/broadcast. Callers are
// authenticated by the internal key middleware.
// @Summary Broadcast an event
// @Description Fan an event out to every open stream, or only to the listed subjects
// @Tags events
// @Accept json
// @Produce json
// @Param X-Internal-Key header string true "Internal broadcast key"
// @Param request body events.BroadcastRequest true "Event to broadcast"
// @Success 200 {object} events.BroadcastResult
// @Failure 400 {object} response.Response{error=response.Error}
// @Failure 403 {object} response.Response{error=response.Error}
// @Router /api/v1/events/broadcast [post].
func (h *Handlers) HandleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req events.BroadcastRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBroadcastBody))
	if err := dec.Decode(&req); err != nil {
		response.BadRequest(w, "Invalid broadcast request", err.Error())
		return
	}
	if err := req.Event.Validate(); err != nil {
		response.BadRequest(w, "Invalid event", err.Error())
		return
	}

	delivered := h.registry.Broadcast(r.Context(), req.Event, req.TargetSubjects)
	response.Raw(w, http.StatusOK, events.BroadcastResult{
		Success:          true,
		BroadcastCount:   delivered,
		TotalConnections: h.registry.Count(),
	})
}

// HandleStats handles GET /api/v1/events/stats.
// @Summary Connection statistics
// @Description Snapshot of open streams
// @Tags events
// @Produce json
// @Security BearerAuth
// @Success 200 {object} registry.Stats
// @Failure 401 {object} response.Response{error=response.Error}
// @Router /api/v1/events/stats [get].
func (h *Handlers) HandleStats(w http.ResponseWriter, _ *http.Request) {
	response.Raw(w, http.StatusOK, h.registry.Stats())
}

// decode reads a JSON request body into v.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBroadcastBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			response.JSON(w, http.StatusRequestEntityTooLarge,
				response.Fail("PAYLOAD_TOO_LARGE", "Request body too large", ""))
			return false
		}
		response.BadRequest(w, "Invalid request body", err.Error())
		return false
	}
	return true
}
