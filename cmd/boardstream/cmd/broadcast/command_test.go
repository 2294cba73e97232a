package broadcast

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/boardstream/internal/auth"
	"github.com/agentstation/boardstream/internal/cmd/application"
	"github.com/agentstation/boardstream/internal/server"
	"github.com/agentstation/boardstream/pkg/errors"
)

const (
	testSecret = "broadcast-secret"
	testKey    = "broadcast-key"
)

func newApp(key string) *application.Mock {
	return &application.Mock{
		JWTSecretFunc:   func() string { return testSecret },
		InternalKeyFunc: func() string { return key },
	}
}

func startServer(t *testing.T) (*server.Server, string) {
	t.Helper()
	cfg := server.DefaultConfig()
	cfg.RateLimit = 0
	srv, err := server.New(newApp(testKey), cfg)
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

func execute(t *testing.T, app *application.Mock, url string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewCommand(app, url)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestBroadcastDelivers(t *testing.T) {
	srv, url := startServer(t)

	token, err := auth.NewSigner(testSecret, time.Hour).Sign("ana")
	require.NoError(t, err)
	resp, err := http.Get(url + "/events/stream?token=" + token)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Eventually(t, func() bool { return srv.Registry().Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	out, err := execute(t, newApp(testKey), url, "task.deleted", `{"id":"t-1"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "delivered to 1 connection(s)")

	out, err = execute(t, newApp(testKey), url, "task.deleted", `{"id":"t-2"}`, "--target", "someone-else")
	require.NoError(t, err)
	assert.Contains(t, out, "delivered to 0 connection(s)")
}

func TestBroadcastWrongKey(t *testing.T) {
	_, url := startServer(t)

	_, err := execute(t, newApp("wrong"), url, "task.deleted")
	assert.ErrorIs(t, err, errors.ErrBroadcastUnauthorized)
}

func TestBroadcastValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "unknown type", args: []string{"task.exploded"}},
		{name: "bad json", args: []string{"task.deleted", "{"}},
		{name: "no args", args: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, newApp(testKey), "http://127.0.0.1:1/api/v1", tt.args...)
			assert.Error(t, err)
		})
	}
}
