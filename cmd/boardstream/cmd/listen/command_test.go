package listen

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/boardstream/internal/cmd/application"
	"github.com/agentstation/boardstream/internal/cmd/cmdutil"
	"github.com/agentstation/boardstream/internal/server"
	"github.com/agentstation/boardstream/pkg/events"
)

const testSecret = "listen-secret"

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newApp() *application.Mock {
	return &application.Mock{
		JWTSecretFunc:   func() string { return testSecret },
		InternalKeyFunc: func() string { return "internal" },
	}
}

func startServer(t *testing.T) (*server.Server, string) {
	t.Helper()
	cfg := server.DefaultConfig()
	cfg.RateLimit = 0
	srv, err := server.New(newApp(), cfg)
	require.NoError(t, err)
	srv.Start()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		ts.Close()
	})
	return srv, ts.URL + cfg.PathPrefix
}

func TestListenPrintsEvents(t *testing.T) {
	srv, url := startServer(t)

	out := &syncBuffer{}
	cmd := NewCommand(newApp(), cmdutil.ConnectionDefaults{URL: url})
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs([]string{"--subject", "bot-1", "--type", "task.created"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool { return srv.Registry().Count() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "bot-1", srv.Registry().Stats().Connections[0].Subject)

	srv.Emitter().TaskDeleted(events.Task{ID: "t-0"})
	srv.Emitter().TaskCreated(events.Task{ID: "t-1", Title: "Ship it", Status: "todo"})

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "task.created")
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, out.String(), `"title":"Ship it"`)
	assert.NotContains(t, out.String(), "task.deleted")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("listen did not stop after cancel")
	}
	require.Eventually(t, func() bool { return srv.Registry().Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestListenRejectedToken(t *testing.T) {
	_, url := startServer(t)

	out := &syncBuffer{}
	cmd := NewCommand(newApp(), cmdutil.ConnectionDefaults{URL: url, Token: "not-a-token"})
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(nil)

	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, out.String(), "stream rejected")
}

func TestListenRequiresToken(t *testing.T) {
	cmd := NewCommand(&application.Mock{}, cmdutil.ConnectionDefaults{URL: "http://127.0.0.1:1"})
	cmd.SetOut(&syncBuffer{})
	cmd.SetErr(&syncBuffer{})
	cmd.SetArgs(nil)

	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no token")
}
