// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values for the reference API server.
// Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// DatabaseURL is the Postgres connection string. Required.
	DatabaseURL string

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Defaults to ["http://localhost:3000"].
	// Set CORS_ORIGINS to a comma-separated list to override.
	CORSOrigins []string

	// SessionTTL is how long a carbon session stays usable after creation.
	// Defaults to 30 minutes.
	SessionTTL time.Duration

	// MaxBodyBytes caps request bodies. Defaults to 1 MiB.
	MaxBodyBytes int64
}

// ClientConfig holds the settings of the grumeter command-line client.
type ClientConfig struct {
	// APIURL is the base URL of the carbon API. Defaults to "http://localhost:8080".
	APIURL string

	// Token is a bearer token given directly. It wins over TokenFile.
	Token string

	// TokenFile is where a persisted bearer token is read from.
	// Defaults to ~/.grumeter/token.
	TokenFile string

	// HTTPTimeout bounds each request. Defaults to 10 seconds.
	HTTPTimeout time.Duration

	// LogLevel controls the minimum log level. Defaults to "info".
	LogLevel string
}

// Load reads configuration from environment variables and returns a Config.
// Returns an error listing any required variables that are not set.
func Load() (Config, error) {
	cfg := Config{
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSOrigins: splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3000")),
	}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}

	var err error
	if cfg.SessionTTL, err = getDuration("SESSION_TTL", 30*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.MaxBodyBytes, err = getInt64("MAX_BODY_BYTES", 1<<20); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadClient reads the client configuration. Nothing is required: an empty
// token means requests go out without an Authorization header.
func LoadClient() (ClientConfig, error) {
	cfg := ClientConfig{
		APIURL:    strings.TrimRight(getEnv("GRUMETER_API_URL", "http://localhost:8080"), "/"),
		Token:     os.Getenv("GRUMETER_TOKEN"),
		TokenFile: getEnv("GRUMETER_TOKEN_FILE", defaultTokenFile()),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.HTTPTimeout, err = getDuration("GRUMETER_HTTP_TIMEOUT", 10*time.Second); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getDuration parses key as a time.Duration ("30m", "10s").
func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}

// getInt64 parses key as a positive integer.
func getInt64(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s: invalid positive integer %q", key, v)
	}
	return n, nil
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func defaultTokenFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".grumeter", "token")
	}
	return filepath.Join(home, ".grumeter", "token")
}
