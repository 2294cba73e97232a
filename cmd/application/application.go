// Package application provides the application interface for boardstream commands.
//
// The Application interface defines the contract between the application layer and
// command implementations, enabling dependency injection and testability.
//
// Usage in Commands:
//
//	func NewCommand(app application.Application) *cobra.Command {
//	    return &cobra.Command{
//	        RunE: func(cmd *cobra.Command, args []string) error {
//	            app.Logger().Info().Msg("running")
//	            return nil
//	        },
//	    }
//	}
package application

import (
	"github.com/rs/zerolog"
)

// Application provides the application interface that commands need.
// The App struct from cmd/boardstream/app implements this interface.
//
// Thread Safety: All methods must be safe for concurrent access.
type Application interface {
	// Logger returns the configured logger instance.
	// Commands should use this for all logging operations.
	Logger() *zerolog.Logger

	// OutputFormat returns the configured output format (json, yaml, table).
	OutputFormat() string

	// JWTSecret returns the shared token signing secret. It may be empty;
	// the verifier then rejects every token as misconfigured.
	JWTSecret() string

	// InternalKey returns the secret that authorizes internal broadcasts.
	InternalKey() string

	// Version returns the application version string.
	Version() string

	// Commit returns the git commit hash.
	Commit() string

	// Date returns the build date.
	Date() string

	// BuiltBy returns the build system identifier.
	BuiltBy() string
}
