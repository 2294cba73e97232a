package serve

import (
	"errors"
	"testing"
	"time"

	"github.com/agentstation/boardstream/internal/cmd/application"
	bserrors "github.com/agentstation/boardstream/pkg/errors"
)

func TestParseConfigDefaults(t *testing.T) {
	t.Setenv("HTTP_PORT", "")
	t.Setenv("HTTP_HOST", "")

	cmd := NewCommand(&application.Mock{})
	cfg := parseConfig(cmd)

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Host != "localhost" {
		t.Errorf("Host = %s, want localhost", cfg.Host)
	}
	if cfg.PathPrefix != "/api/v1" {
		t.Errorf("PathPrefix = %s, want /api/v1", cfg.PathPrefix)
	}
	if cfg.Registry.KeepAliveInterval != 25*time.Second {
		t.Errorf("KeepAliveInterval = %v, want 25s", cfg.Registry.KeepAliveInterval)
	}
	if cfg.Emitter.QueueSize != 256 {
		t.Errorf("QueueSize = %d, want 256", cfg.Emitter.QueueSize)
	}
}

func TestParseConfigFlagsAndEnv(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("HTTP_HOST", "0.0.0.0")

	cmd := NewCommand(&application.Mock{})
	if err := cmd.ParseFlags([]string{
		"--port", "7000",
		"--keepalive", "5s",
		"--rate-limit", "0",
		"--cors-origins", "https://a.example,https://b.example",
	}); err != nil {
		t.Fatalf("ParseFlags() failed: %v", err)
	}

	cfg := parseConfig(cmd)
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want HTTP_PORT override 9090", cfg.Port)
	}
	if cfg.Host != "0.0.0.0" {
		t.Errorf("Host = %s, want 0.0.0.0", cfg.Host)
	}
	if cfg.Registry.KeepAliveInterval != 5*time.Second {
		t.Errorf("KeepAliveInterval = %v, want 5s", cfg.Registry.KeepAliveInterval)
	}
	if cfg.RateLimit != 0 {
		t.Errorf("RateLimit = %d, want 0", cfg.RateLimit)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Errorf("CORSOrigins = %v, want 2 entries", cfg.CORSOrigins)
	}
}

func TestParseConfigIgnoresBadPort(t *testing.T) {
	t.Setenv("HTTP_PORT", "99999")
	t.Setenv("HTTP_HOST", "")

	cfg := parseConfig(NewCommand(&application.Mock{}))
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want flag default 8080", cfg.Port)
	}
}

func TestParsePort(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "80", want: 80},
		{in: "65535", want: 65535},
		{in: "0", wantErr: true},
		{in: "65536", wantErr: true},
		{in: "http", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parsePort(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parsePort(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parsePort(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestCheckSecrets(t *testing.T) {
	secret := func() string { return "s" }
	key := func() string { return "k" }

	tests := []struct {
		name    string
		app     *application.Mock
		wantErr bool
	}{
		{name: "both set", app: &application.Mock{JWTSecretFunc: secret, InternalKeyFunc: key}},
		{name: "missing secret", app: &application.Mock{InternalKeyFunc: key}, wantErr: true},
		{name: "missing key", app: &application.Mock{JWTSecretFunc: secret}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkSecrets(tt.app)
			if (err != nil) != tt.wantErr {
				t.Fatalf("checkSecrets() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, bserrors.ErrMisconfiguredServer) {
				t.Errorf("checkSecrets() = %v, want ErrMisconfiguredServer", err)
			}
		})
	}
}
