// Package client consumes a boardstream event stream. A Controller keeps one
// Server-Sent Events connection open, reconnecting with exponential backoff
// and forcing a reconnect when the stream goes silent, and hands every
// received event to a Router.
//
// Example:
//
//	c := client.New("http://localhost:8080/api/v1/events/stream", token)
//	c.Subscribe(events.TaskCreated, func(ev events.Event) error {
//	    var task events.Task
//	    return ev.Decode(&task)
//	})
//	if err := c.Connect(ctx); err != nil {
//	    // the controller keeps retrying in the background
//	}
//	defer c.Disconnect()
package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/agentstation/boardstream/pkg/errors"
	"github.com/agentstation/boardstream/pkg/events"
)

// State is the connection status of a Controller.
type State string

// Controller states.
const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateError        State = "error"
)

// Status is a snapshot of a Controller.
type Status struct {
	State            State
	ReconnectAttempt int
	LastError        error
	LastEventTime    time.Time
	LastEventID      string
}

// stopper is the part of *time.Timer the controller uses.
type stopper interface {
	Stop() bool
}

// Controller owns one stream connection at a time. Every open transport
// carries a generation number; callbacks from a transport or timer whose
// generation is no longer current are ignored.
type Controller struct {
	mu            sync.Mutex
	state         State
	attempt       int
	lastErr       error
	lastEventTime time.Time
	lastEventID   string
	manual        bool
	gen           uint64
	cancel        context.CancelFunc
	reconnect     stopper
	watchdog      stopper
	changed       chan struct{}
	notify        []State

	url        string
	token      string
	httpClient *http.Client
	cfg        Config
	backoff    *backoff.ExponentialBackOff
	router     *Router
	logger     *zerolog.Logger

	onError       func(error)
	onStateChange func(State)

	now       func() time.Time
	afterFunc func(time.Duration, func()) stopper
}

// New creates a disconnected controller for the stream at streamURL.
func New(streamURL, token string, opts ...Option) *Controller {
	nop := zerolog.Nop()
	c := &Controller{
		state:      StateDisconnected,
		changed:    make(chan struct{}),
		url:        streamURL,
		token:      token,
		httpClient: &http.Client{},
		cfg:        DefaultConfig(),
		logger:     &nop,
		now:        time.Now,
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.cfg = c.cfg.withDefaults()
	c.backoff = newBackOff(c.cfg)
	if c.router == nil {
		c.router = NewRouter(c.logger)
	}
	return c
}

// Router returns the router events are dispatched to.
func (c *Controller) Router() *Router {
	return c.router
}

// Subscribe registers h on the controller's router.
func (c *Controller) Subscribe(t events.Type, h Handler) (unsubscribe func()) {
	return c.router.Subscribe(t, h)
}

// State returns the current connection state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		State:            c.state,
		ReconnectAttempt: c.attempt,
		LastError:        c.lastErr,
		LastEventTime:    c.lastEventTime,
		LastEventID:      c.lastEventID,
	}
}

// Connect opens the stream. It is a no-op while connecting or connected.
// ctx bounds only the opening request. If the open fails the error is
// returned and a reconnect is scheduled, except when the server rejects the
// token: that settles in the disconnected state.
func (c *Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateConnecting || c.state == StateConnected {
		c.mu.Unlock()
		return nil
	}
	c.manual = false
	c.gen++
	gen := c.gen
	c.stopTimers()
	if c.state == StateDisconnected {
		c.attempt = 0
		c.backoff.Reset()
	}
	c.transition(StateConnecting)
	c.unlockAndNotify()

	return c.open(ctx, gen)
}

// Disconnect closes the stream and cancels any pending reconnect.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	c.manual = true
	c.gen++
	c.stopTimers()
	c.closeTransport()
	c.attempt = 0
	c.backoff.Reset()
	if c.state != StateDisconnected {
		c.transition(StateDisconnected)
	}
	c.unlockAndNotify()
}

// WaitForConnection blocks until the controller is connected, ctx ends or
// timeout elapses. A timeout returns an *errors.TimeoutError.
func (c *Controller) WaitForConnection(ctx context.Context, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		c.mu.Lock()
		if c.state == StateConnected {
			c.mu.Unlock()
			return nil
		}
		changed := c.changed
		c.mu.Unlock()

		select {
		case <-changed:
		case <-timer.C:
			return errors.NewTimeoutError("wait for connection", timeout.String(), "stream not connected")
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Controller) open(ctx context.Context, gen uint64) error {
	connCtx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		cancel()
		return nil
	}
	c.cancel = cancel
	lastID := c.lastEventID
	c.mu.Unlock()

	req, err := http.NewRequestWithContext(connCtx, http.MethodGet, c.streamURL(), nil)
	if err != nil {
		c.fail(gen, errors.WrapTransport("connect", c.url, err))
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if lastID != "" {
		req.Header.Set("Last-Event-ID", lastID)
	}

	stop := context.AfterFunc(ctx, cancel)
	resp, err := c.httpClient.Do(req)
	stop()
	if err != nil {
		err = errors.WrapTransport("connect", c.url, err)
		c.fail(gen, err)
		return err
	}
	if resp.StatusCode != http.StatusOK {
		err := statusError(resp)
		_ = resp.Body.Close()
		c.fail(gen, err)
		return err
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		_ = resp.Body.Close()
		return nil
	}
	c.attempt = 0
	c.lastErr = nil
	c.lastEventTime = c.now()
	c.backoff.Reset()
	c.transition(StateConnected)
	c.scheduleWatchdog(gen)
	c.unlockAndNotify()

	c.logger.Info().Str("url", c.url).Msg("Stream connected")

	go c.read(gen, resp.Body)
	return nil
}

func (c *Controller) read(gen uint64, body io.ReadCloser) {
	defer body.Close()

	dec := newDecoder(body)
	for {
		f, err := dec.Next()
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			c.fail(gen, errors.WrapTransport("read", c.url, err))
			return
		}
		if !c.received(gen, f) {
			return
		}
	}
}

// received records liveness and dispatches the frame's event. It reports
// false once the transport is no longer current.
func (c *Controller) received(gen uint64, f frame) bool {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return false
	}
	c.lastEventTime = c.now()
	if f.ID != "" {
		c.lastEventID = f.ID
	}
	c.mu.Unlock()

	if f.Comment || len(f.Data) == 0 {
		return true
	}

	var ev events.Event
	if err := json.Unmarshal(f.Data, &ev); err != nil {
		c.logger.Warn().Err(err).Msg("Discarding undecodable event")
		return true
	}
	c.router.Dispatch(ev)
	return true
}

// fail moves the controller to the error state and, unless it was
// disconnected manually or the server rejected the token, schedules the
// next reconnect attempt.
func (c *Controller) fail(gen uint64, err error) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.gen++
	next := c.gen
	c.stopTimers()
	c.closeTransport()
	c.lastErr = err
	c.transition(StateError)

	var delay time.Duration
	switch {
	case c.manual:
	case errors.IsAuthentication(err):
		c.transition(StateDisconnected)
		c.logger.Warn().
			Err(err).
			Msg("Stream rejected; call Connect with a new token")
	default:
		c.attempt++
		if c.attempt > c.cfg.MaxReconnectAttempts {
			c.transition(StateDisconnected)
			c.logger.Warn().
				Err(err).
				Int("attempts", c.attempt-1).
				Msg("Giving up on stream; call Connect to retry")
		} else {
			delay = c.backoff.NextBackOff()
			c.transition(StateReconnecting)
			c.reconnect = c.afterFunc(delay, func() { c.retry(next) })
			c.logger.Info().
				Err(err).
				Int("attempt", c.attempt).
				Dur("delay", delay).
				Msg("Stream lost, reconnecting")
		}
	}
	onError := c.onError
	c.unlockAndNotify()

	if onError != nil {
		onError(err)
	}
}

func (c *Controller) retry(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.manual || c.state != StateReconnecting {
		c.mu.Unlock()
		return
	}
	c.reconnect = nil
	c.transition(StateConnecting)
	c.unlockAndNotify()

	_ = c.open(context.Background(), gen)
}

// scheduleWatchdog arms the staleness check. Must hold mu.
func (c *Controller) scheduleWatchdog(gen uint64) {
	c.watchdog = c.afterFunc(c.cfg.HeartbeatInterval, func() { c.checkLiveness(gen) })
}

func (c *Controller) checkLiveness(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.state != StateConnected {
		c.mu.Unlock()
		return
	}
	silent := c.now().Sub(c.lastEventTime)
	if silent <= 2*c.cfg.HeartbeatInterval {
		c.scheduleWatchdog(gen)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.logger.Warn().Dur("silent_for", silent).Msg("Stream stale, forcing reconnect")
	c.fail(gen, errors.WrapTransport("heartbeat", c.url, errors.ErrStaleConnection))
}

// stopTimers cancels the watchdog and any pending reconnect. Must hold mu.
func (c *Controller) stopTimers() {
	if c.watchdog != nil {
		c.watchdog.Stop()
		c.watchdog = nil
	}
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
}

// closeTransport cancels the open request, if any. Must hold mu.
func (c *Controller) closeTransport() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// transition sets the state and wakes waiters. Must hold mu.
func (c *Controller) transition(s State) {
	if c.state == s {
		return
	}
	c.state = s
	close(c.changed)
	c.changed = make(chan struct{})
	c.notify = append(c.notify, s)
}

// unlockAndNotify releases mu and reports the transitions made while it
// was held.
func (c *Controller) unlockAndNotify() {
	pending := c.notify
	c.notify = nil
	cb := c.onStateChange
	c.mu.Unlock()

	if cb == nil {
		return
	}
	for _, s := range pending {
		cb(s)
	}
}

func (c *Controller) streamURL() string {
	if c.token == "" {
		return c.url
	}
	u, err := url.Parse(c.url)
	if err != nil {
		return c.url
	}
	q := u.Query()
	q.Set("token", c.token)
	u.RawQuery = q.Encode()
	return u.String()
}

// statusError converts a refused stream into an error, mapping the
// server's authentication codes back onto their sentinels.
func statusError(resp *http.Response) error {
	var body struct {
		Error *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&body)

	if body.Error != nil {
		if reason, ok := authReasons[body.Error.Code]; ok {
			return errors.NewAuthenticationError(reason, body.Error.Message)
		}
	}
	return errors.NewTransportError("connect", resp.Request.URL.Host,
		errors.New("unexpected status "+resp.Status))
}

var authReasons = map[string]error{
	"MALFORMED_TOKEN":      errors.ErrMalformedToken,
	"EXPIRED":              errors.ErrExpired,
	"INVALID_SIGNATURE":    errors.ErrInvalidSignature,
	"MISCONFIGURED_SERVER": errors.ErrMisconfiguredServer,
	"UNAUTHORIZED":         errors.ErrMalformedToken,
}
