package app

import (
	"testing"
)

// TestDetermineLogLevel tests the log level precedence logic.
func TestDetermineLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		config   *Config
		expected string
	}{
		{
			name:     "default level when no flags set",
			config:   &Config{},
			expected: "info",
		},
		{
			name:     "verbose flag sets debug",
			config:   &Config{Verbose: true},
			expected: "debug",
		},
		{
			name:     "quiet flag sets warn",
			config:   &Config{Quiet: true},
			expected: "warn",
		},
		{
			name:     "explicit log-level overrides verbose",
			config:   &Config{LogLevel: "error", Verbose: true},
			expected: "error",
		},
		{
			name:     "explicit log-level overrides quiet",
			config:   &Config{LogLevel: "trace", Quiet: true},
			expected: "trace",
		},
		{
			name:     "both verbose and quiet prefers quiet",
			config:   &Config{Verbose: true, Quiet: true},
			expected: "warn",
		},
		{
			name:     "invalid log level falls back to info",
			config:   &Config{LogLevel: "invalid"},
			expected: "info",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := determineLogLevel(tt.config)
			if result != tt.expected {
				t.Errorf("determineLogLevel() = %q, expected %q", result, tt.expected)
			}
		})
	}
}

// TestValidateLogLevel tests log level validation.
func TestValidateLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected string
	}{
		{level: "trace", expected: "trace"},
		{level: "debug", expected: "debug"},
		{level: "info", expected: "info"},
		{level: "warn", expected: "warn"},
		{level: "error", expected: "error"},
		{level: "invalid", expected: "info"},
		{level: "", expected: "info"},
		{level: "DEBUG", expected: "info"},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			result := validateLogLevel(tt.level)
			if result != tt.expected {
				t.Errorf("validateLogLevel(%q) = %q, expected %q", tt.level, result, tt.expected)
			}
		})
	}
}

// TestNewLogger tests that logger creation honours the resolved level.
func TestNewLogger(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
		level  string
	}{
		{name: "default", config: &Config{LogFormat: "json", LogOutput: "stderr"}, level: "info"},
		{name: "verbose", config: &Config{LogFormat: "json", LogOutput: "stderr", Verbose: true}, level: "debug"},
		{name: "quiet", config: &Config{LogFormat: "console", LogOutput: "stdout", Quiet: true, NoColor: true}, level: "warn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewLogger(tt.config)
			if got := logger.GetLevel().String(); got != tt.level {
				t.Errorf("logger level = %q, want %q", got, tt.level)
			}
		})
	}
}
