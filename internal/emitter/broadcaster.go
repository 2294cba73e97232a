package emitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/agentstation/boardstream/internal/registry"
	pkgerrors "github.com/agentstation/boardstream/pkg/errors"
	"github.com/agentstation/boardstream/pkg/events"
)

// Local broadcasts through an in-process registry.
type Local struct {
	Registry *registry.Registry
}

// Broadcast implements Broadcaster.
func (l Local) Broadcast(ctx context.Context, ev events.Event, targets []string) (int, error) {
	return l.Registry.Broadcast(ctx, ev, targets), nil
}

// InternalKeyHeader names the header carrying the broadcast secret.
const InternalKeyHeader = "X-Internal-Key"

// HTTPBroadcaster posts events to a remote broadcast endpoint. It lets a
// separate mutation process feed the registry owned by the server.
type HTTPBroadcaster struct {
	endpoint string
	key      string
	client   *http.Client
}

// NewHTTPBroadcaster targets baseURL, e.g. http://localhost:8080/api/v1.
func NewHTTPBroadcaster(baseURL, internalKey string, timeout time.Duration) *HTTPBroadcaster {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPBroadcaster{
		endpoint: strings.TrimRight(baseURL, "/") + "/events/broadcast",
		key:      internalKey,
		client:   &http.Client{Timeout: timeout},
	}
}

// Broadcast implements Broadcaster.
func (b *HTTPBroadcaster) Broadcast(ctx context.Context, ev events.Event, targets []string) (int, error) {
	body, err := json.Marshal(events.BroadcastRequest{Event: ev, TargetSubjects: targets})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(InternalKeyHeader, b.key)

	resp, err := b.client.Do(req)
	if err != nil {
		return 0, pkgerrors.WrapTransport("broadcast", b.endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return 0, pkgerrors.ErrBroadcastUnauthorized
	case resp.StatusCode != http.StatusOK:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, pkgerrors.NewTransportError("broadcast", b.endpoint,
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(msg)))
	}

	var result events.BroadcastResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, pkgerrors.WrapTransport("decode", b.endpoint, err)
	}
	return result.BroadcastCount, nil
}
