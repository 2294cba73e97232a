package emitter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/boardstream/internal/auth"
	"github.com/agentstation/boardstream/internal/registry"
	pkgerrors "github.com/agentstation/boardstream/pkg/errors"
	"github.com/agentstation/boardstream/pkg/events"
	"github.com/agentstation/boardstream/pkg/logging"
)

type recorder struct {
	mu      sync.Mutex
	got     []events.Event
	targets [][]string
	err     error
	block   chan struct{}
}

func (r *recorder) Broadcast(_ context.Context, ev events.Event, targets []string) (int, error) {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, ev)
	r.targets = append(r.targets, targets)
	return 1, r.err
}

func (r *recorder) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, len(r.got))
	for i, ev := range r.got {
		out[i] = ev.Type
	}
	return out
}

func start(t *testing.T, e *Emitter) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestEmitDelivers(t *testing.T) {
	rec := &recorder{}
	e := New(rec, nil, DefaultConfig(), nil)
	start(t, e)

	e.TaskCreated(events.Task{ID: "t-1"})
	e.Publish(events.ActivityCreated, events.Activity{ID: "a-1"}, []string{"alice"})

	require.Eventually(t, func() bool { return len(rec.types()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []events.Type{events.TaskCreated, events.ActivityCreated}, rec.types())
	assert.Nil(t, rec.targets[0])
	assert.Equal(t, []string{"alice"}, rec.targets[1])
}

func TestTaskStatusChangedEmitsBoth(t *testing.T) {
	rec := &recorder{}
	e := New(rec, nil, DefaultConfig(), nil)
	start(t, e)

	e.TaskStatusChanged("todo", events.Task{ID: "t-1", Status: "in_progress"})

	require.Eventually(t, func() bool { return len(rec.types()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []events.Type{events.TaskUpdated, events.TaskStatusChanged}, rec.types())

	var change events.StatusChange
	require.NoError(t, rec.got[1].Decode(&change))
	assert.Equal(t, "todo", change.PreviousStatus)
	assert.Equal(t, "in_progress", change.NewStatus)
	assert.Equal(t, "t-1", change.TaskID)
}

func TestCronJobHelpers(t *testing.T) {
	rec := &recorder{}
	e := New(rec, nil, DefaultConfig(), nil)
	start(t, e)

	started := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	run := events.CronJobRun{JobID: "j-1", RunID: "r-1", StartedAt: started}
	e.CronJobStarted(run)
	e.CronJobCompleted(run, started.Add(1500*time.Millisecond))
	e.CronJobFailed(run, started.Add(time.Second), errors.New("exit 1"))

	require.Eventually(t, func() bool { return len(rec.types()) == 3 }, time.Second, 5*time.Millisecond)

	var completed, failed events.CronJobRun
	require.NoError(t, rec.got[1].Decode(&completed))
	require.NoError(t, rec.got[2].Decode(&failed))
	assert.Equal(t, int64(1500), completed.DurationMs)
	assert.Equal(t, "exit 1", failed.Error)
	assert.NotNil(t, failed.FinishedAt)
}

func TestEmitNeverBlocks(t *testing.T) {
	rec := &recorder{block: make(chan struct{})}
	m := MustNewMetrics(prometheus.NewRegistry())
	tl := logging.NewTestLogger(t)
	e := New(rec, tl.Logger, Config{QueueSize: 2}, m)
	start(t, e)
	defer close(rec.block)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			e.TaskCreated(events.Task{ID: "t"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a stalled broadcaster")
	}

	assert.Greater(t, testutil.ToFloat64(m.events.WithLabelValues("task.created", "dropped")), 0.0)
	tl.AssertContains(t, "Event queue full")
}

func TestBroadcastFailureIsLogged(t *testing.T) {
	rec := &recorder{err: pkgerrors.ErrBroadcastUnauthorized}
	tl := logging.NewTestLogger(t)
	m := MustNewMetrics(prometheus.NewRegistry())
	e := New(rec, tl.Logger, DefaultConfig(), m)
	start(t, e)

	e.CommentCreated(events.Comment{ID: "c-1"})

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.events.WithLabelValues("comment.created", "failed")) == 1
	}, time.Second, 5*time.Millisecond)
	tl.AssertContains(t, "Event broadcast failed")
}

func TestRunDrainsOnShutdown(t *testing.T) {
	rec := &recorder{}
	e := New(rec, nil, DefaultConfig(), nil)

	e.TaskDeleted(events.Task{ID: "t-1"})
	e.TaskUpdated(events.Task{ID: "t-2"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e.Run(ctx)

	assert.Len(t, rec.types(), 2)
	assert.Equal(t, 0, e.Pending())
}

func TestPublishRejectsUnknownType(t *testing.T) {
	tl := logging.NewTestLogger(t)
	e := New(&recorder{}, tl.Logger, DefaultConfig(), nil)

	e.Publish("task.exploded", nil, nil)
	assert.Equal(t, 0, e.Pending())
	tl.AssertContains(t, "Failed to build event")
}

func TestHTTPBroadcaster(t *testing.T) {
	var got events.BroadcastRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/events/broadcast", r.URL.Path)
		if r.Header.Get(InternalKeyHeader) != "k" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(events.BroadcastResult{Success: true, BroadcastCount: 3, TotalConnections: 4})
	}))
	defer srv.Close()

	ev, err := events.New(events.TaskCreated, events.Task{ID: "t-1"})
	require.NoError(t, err)

	n, err := NewHTTPBroadcaster(srv.URL+"/api/v1/", "k", time.Second).Broadcast(context.Background(), ev, []string{"bob"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, events.TaskCreated, got.Event.Type)
	assert.Equal(t, []string{"bob"}, got.TargetSubjects)

	_, err = NewHTTPBroadcaster(srv.URL+"/api/v1", "wrong", time.Second).Broadcast(context.Background(), ev, nil)
	assert.ErrorIs(t, err, pkgerrors.ErrBroadcastUnauthorized)
}

func TestHTTPBroadcasterUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	ev, err := events.New(events.TaskCreated, nil)
	require.NoError(t, err)

	_, err = NewHTTPBroadcaster(url, "k", time.Second).Broadcast(context.Background(), ev, nil)
	assert.True(t, pkgerrors.IsTransport(err))
}

func TestLocalBroadcaster(t *testing.T) {
	logger := zerolog.Nop()
	reg := registry.New(auth.NewVerifier("s"), &logger)

	ev, err := events.New(events.TaskCreated, nil)
	require.NoError(t, err)

	n, err := Local{Registry: reg}.Broadcast(context.Background(), ev, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
