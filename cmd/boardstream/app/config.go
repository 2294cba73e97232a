package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultServerURL is the API base used by client commands when none is
// configured.
const DefaultServerURL = "http://localhost:8080/api/v1"

// Config holds the application configuration loaded from various sources
// including config files, environment variables, and .env files.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool
	Format  string

	// Config file
	ConfigFile string

	// Secrets shared with the dashboard
	JWTSecret   string
	InternalKey string

	// Client commands
	ServerURL string
	Token     string

	// Logging configuration
	LogLevel  string
	LogFormat string
	LogOutput string
}

// envPrefix scopes automatic environment lookups, so jwt_secret reads
// BOARDSTREAM_JWT_SECRET and never a bare JWT_SECRET ahead of it.
const envPrefix = "BOARDSTREAM"

// secretEnv maps config keys to the extra environment variables that feed
// them, consulted after the prefixed name, most specific first.
var secretEnv = map[string][]string{
	"jwt_secret":   {"BOARDSTREAM_JWT_SECRET", "JWT_SECRET"},
	"internal_key": {"BOARDSTREAM_INTERNAL_KEY", "INTERNAL_API_KEY"},
	"server_url":   {"BOARDSTREAM_SERVER_URL", "BOARDSTREAM_URL"},
	"token":        {"BOARDSTREAM_TOKEN"},
}

// LoadConfig loads configuration from all sources in order of precedence:
// 1. Command-line flags (handled by cobra)
// 2. Environment variables
// 3. .env files
// 4. Config file (~/.boardstream.yaml)
// 5. Defaults
func LoadConfig() (*Config, error) {
	// Load .env files first (before Viper env binding)
	loadEnvFiles()

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	bindSecrets()

	viper.SetDefault("server_url", DefaultServerURL)

	configFile := viper.GetString("config")
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.AddConfigPath(".")
			viper.SetConfigType("yaml")
			viper.SetConfigName(".boardstream")
		}
	}

	// Read config file (ignore error if not found)
	_ = viper.ReadInConfig()

	config := &Config{
		// Global flags (may be overridden by cobra flags later)
		Verbose: viper.GetBool("verbose"),
		Quiet:   viper.GetBool("quiet"),
		NoColor: viper.GetBool("no-color"),
		Format:  viper.GetString("format"),

		ConfigFile: viper.ConfigFileUsed(),

		JWTSecret:   viper.GetString("jwt_secret"),
		InternalKey: viper.GetString("internal_key"),

		ServerURL: strings.TrimRight(viper.GetString("server_url"), "/"),
		Token:     viper.GetString("token"),

		LogLevel:  getEnvOrDefault("LOG_LEVEL", ""),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "auto"),
		LogOutput: getEnvOrDefault("LOG_OUTPUT", "stderr"),
	}

	return config, nil
}

// UpdateFromFlags updates config values from parsed command flags.
// This should be called after cobra parses flags to ensure flag
// values take precedence over config file and env vars.
func (c *Config) UpdateFromFlags(verbose, quiet, noColor bool, format, logLevel string) {
	c.Verbose = verbose
	c.Quiet = quiet
	c.NoColor = noColor
	if format != "" {
		c.Format = format
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
}

// loadEnvFiles loads environment variables from .env files.
// .env.local overrides .env.
func loadEnvFiles() {
	for _, envFile := range []string{".env", ".env.local"} {
		_ = godotenv.Load(envFile)
	}
}

// bindSecrets binds each config key to its environment variables.
func bindSecrets() {
	for key, envs := range secretEnv {
		args := append([]string{key}, envs...)
		if err := viper.BindEnv(args...); err != nil {
			// Log warning but continue - this isn't critical
			fmt.Fprintf(os.Stderr, "Warning: failed to bind environment variable %s: %v\n", key, err)
		}
	}
}

// getEnvOrDefault returns the environment variable value or the default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
