package app

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	nop := zerolog.Nop()
	app, err := New("1.0.0", "abc123", "2024-01-01", "test",
		WithConfig(&Config{ServerURL: DefaultServerURL, LogFormat: "json", LogOutput: "stderr"}),
		WithLogger(&nop),
	)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return app
}

// TestApp_New verifies app initialization.
func TestApp_New(t *testing.T) {
	app, err := New("1.0.0", "abc123", "2024-01-01", "test")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if app.Version() != "1.0.0" {
		t.Errorf("Version() = %s, want 1.0.0", app.Version())
	}
	if app.Commit() != "abc123" {
		t.Errorf("Commit() = %s, want abc123", app.Commit())
	}
	if app.Date() != "2024-01-01" {
		t.Errorf("Date() = %s, want 2024-01-01", app.Date())
	}
	if app.BuiltBy() != "test" {
		t.Errorf("BuiltBy() = %s, want test", app.BuiltBy())
	}
	if app.Logger() == nil {
		t.Error("Logger() returned nil")
	}
	if app.Config() == nil {
		t.Error("Config() returned nil")
	}
}

// TestApp_Secrets verifies the secrets reach the application interface.
func TestApp_Secrets(t *testing.T) {
	app := newTestApp(t)
	app.config.JWTSecret = "s3cret"
	app.config.InternalKey = "k3y"

	if app.JWTSecret() != "s3cret" {
		t.Errorf("JWTSecret() = %q, want s3cret", app.JWTSecret())
	}
	if app.InternalKey() != "k3y" {
		t.Errorf("InternalKey() = %q, want k3y", app.InternalKey())
	}
}

// TestApp_OutputFormat verifies an explicit format wins over detection.
func TestApp_OutputFormat(t *testing.T) {
	app := newTestApp(t)
	app.config.Format = "YAML"

	if got := app.OutputFormat(); got != "yaml" {
		t.Errorf("OutputFormat() = %q, want yaml", got)
	}
}

// TestApp_Execute_Version runs the version command through the root.
func TestApp_Execute_Version(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{name: "plain", args: []string{"version"}, want: []string{"boardstream 1.0.0"}},
		{name: "verbose", args: []string{"version", "-v"}, want: []string{"commit:   abc123", "built by: test"}},
		{name: "json", args: []string{"version", "-o", "json"}, want: []string{`"version": "1.0.0"`, `"built_by": "test"`}},
		{name: "yaml", args: []string{"version", "-o", "yaml"}, want: []string{"version: 1.0.0", "commit: abc123"}},
		{name: "table", args: []string{"version", "-o", "table"}, want: []string{"2024-01-01", "abc123"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t)
			root := app.createRootCommand()

			var out bytes.Buffer
			root.SetOut(&out)
			root.SetErr(&out)
			root.SetArgs(tt.args)

			if err := root.ExecuteContext(context.Background()); err != nil {
				t.Fatalf("Execute() failed: %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(out.String(), want) {
					t.Errorf("output missing %q:\n%s", want, out.String())
				}
			}
		})
	}
}

// TestApp_Execute_InvalidFormat verifies --format is validated up front.
func TestApp_Execute_InvalidFormat(t *testing.T) {
	app := newTestApp(t)
	root := app.createRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"version", "-o", "xml"})

	err := root.ExecuteContext(context.Background())
	if err == nil || !strings.Contains(err.Error(), "invalid format") {
		t.Fatalf("Execute() error = %v, want invalid format", err)
	}
}

// TestApp_RegistersCommands verifies every subcommand is wired.
func TestApp_RegistersCommands(t *testing.T) {
	root := newTestApp(t).createRootCommand()

	for _, name := range []string{"serve", "listen", "stats", "token", "broadcast", "version"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("command %q not registered", name)
		}
	}
}

// TestApp_Shutdown verifies shutdown is safe without running services.
func TestApp_Shutdown(t *testing.T) {
	if err := newTestApp(t).Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() = %v", err)
	}
}
