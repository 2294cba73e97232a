// Package emoji provides symbol constants for CLI output.
// These symbols create a consistent visual language across all command-line commands.
package emoji

const (
	// Success represents successful completion of an operation.
	// Used for: graceful shutdowns, established streams.
	Success = "✓"

	// Error represents failures.
	// Used for: rejected tokens, streams that gave up reconnecting.
	Error = "✗"

	// Stop represents shutdowns or stop signals.
	Stop = "✗"

	// Warning represents non-critical issues.
	// Used for: reconnect attempts, missing optional secrets.
	Warning = "!"

	// Rocket marks a server that started listening.
	Rocket = "🚀"
)
