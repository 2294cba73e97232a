// Package cmdutil provides shared flags and helpers for boardstream commands.
package cmdutil

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentstation/boardstream/cmd/application"
	"github.com/agentstation/boardstream/internal/auth"
)

// ConnectionDefaults seeds the connection flags from loaded configuration.
type ConnectionDefaults struct {
	URL   string
	Token string
}

// ConnectionFlags holds the flags of commands that talk to a running server.
type ConnectionFlags struct {
	URL     string
	Token   string
	Subject string
	TTL     time.Duration
}

// AddConnectionFlags adds server connection flags to a command.
func AddConnectionFlags(cmd *cobra.Command, defaults ConnectionDefaults) *ConnectionFlags {
	flags := &ConnectionFlags{}

	cmd.Flags().StringVar(&flags.URL, "url", defaults.URL,
		"API base URL of the boardstream server")
	cmd.Flags().StringVar(&flags.Token, "token", defaults.Token,
		"Bearer token (default: sign one with the configured JWT secret)")
	cmd.Flags().StringVar(&flags.Subject, "subject", "cli",
		"Subject of the signed token when --token is empty")
	cmd.Flags().DurationVar(&flags.TTL, "token-ttl", time.Hour,
		"Lifetime of the signed token when --token is empty")

	return flags
}

// Endpoint joins the base URL and an API path.
func (f *ConnectionFlags) Endpoint(path string) string {
	return strings.TrimRight(f.URL, "/") + "/" + strings.TrimLeft(path, "/")
}

// ResolveToken returns --token, or signs one locally with the application's
// JWT secret.
func (f *ConnectionFlags) ResolveToken(app application.Application) (string, error) {
	if f.Token != "" {
		return f.Token, nil
	}
	if app.JWTSecret() == "" {
		return "", fmt.Errorf("no token: pass --token or set BOARDSTREAM_JWT_SECRET")
	}
	return auth.NewSigner(app.JWTSecret(), f.TTL).Sign(f.Subject)
}

// MustGetString retrieves a string flag value or panics if the flag doesn't exist.
// This should only be used for flags defined by the calling package.
func MustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		panic(fmt.Sprintf("programming error: failed to get flag %q: %v", name, err))
	}
	return val
}

// MustGetBool retrieves a boolean flag value or panics if the flag doesn't exist.
func MustGetBool(cmd *cobra.Command, name string) bool {
	val, err := cmd.Flags().GetBool(name)
	if err != nil {
		panic(fmt.Sprintf("programming error: failed to get flag %q: %v", name, err))
	}
	return val
}

// MustGetInt retrieves an integer flag value or panics if the flag doesn't exist.
func MustGetInt(cmd *cobra.Command, name string) int {
	val, err := cmd.Flags().GetInt(name)
	if err != nil {
		panic(fmt.Sprintf("programming error: failed to get flag %q: %v", name, err))
	}
	return val
}

// MustGetStringSlice retrieves a string slice flag value or panics if the flag doesn't exist.
func MustGetStringSlice(cmd *cobra.Command, name string) []string {
	val, err := cmd.Flags().GetStringSlice(name)
	if err != nil {
		panic(fmt.Sprintf("programming error: failed to get flag %q: %v", name, err))
	}
	return val
}

// MustGetDuration retrieves a duration flag value or panics if the flag doesn't exist.
func MustGetDuration(cmd *cobra.Command, name string) time.Duration {
	val, err := cmd.Flags().GetDuration(name)
	if err != nil {
		panic(fmt.Sprintf("programming error: failed to get flag %q: %v", name, err))
	}
	return val
}
