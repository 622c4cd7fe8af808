package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// MirrorPath is the SQLite file backing the local mirror. Empty means an
	// in-memory mirror that does not survive restarts.
	MirrorPath string

	// Remote document store. Empty base URL means local-only operation.
	RemoteBaseURL string
	RemoteTimeout time.Duration

	// RefreshInterval is how often a full remote pull runs while online.
	// Zero disables periodic refresh.
	RefreshInterval time.Duration

	// Geocoding. The relay is tried before the direct service when set.
	GeocodeRelayURL    string
	GeocodeDirectURL   string
	GeocodeUserAgent   string
	GeocodeTimeout     time.Duration
	GeocodeMinInterval time.Duration
	GeocodeAttempts    int
	GeocodeBaseDelay   time.Duration
	GeocodeMaxDelay    time.Duration

	// CountrySuffix is appended to queries that carry no country of their own.
	CountrySuffix string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPAddr:         envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:         envOrDefault("LOG_LEVEL", "info"),
		LogFormat:        envOrDefault("LOG_FORMAT", "json"),
		MirrorPath:       os.Getenv("MIRROR_PATH"),
		RemoteBaseURL:    os.Getenv("REMOTE_BASE_URL"),
		GeocodeRelayURL:  os.Getenv("GEOCODE_RELAY_URL"),
		GeocodeDirectURL: envOrDefault("GEOCODE_DIRECT_URL", "https://nominatim.openstreetmap.org"),
		GeocodeUserAgent: envOrDefault("GEOCODE_USER_AGENT", "provider-atlas/1.0"),
		CountrySuffix:    envOrDefault("GEOCODE_COUNTRY_SUFFIX", "france"),
	}

	var err error
	if cfg.ShutdownTimeout, err = durationOrDefault("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.RemoteTimeout, err = durationOrDefault("REMOTE_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.RefreshInterval, err = durationOrDefault("REFRESH_INTERVAL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.GeocodeTimeout, err = durationOrDefault("GEOCODE_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	// The public service asks for at most one request per second.
	if cfg.GeocodeMinInterval, err = durationOrDefault("GEOCODE_MIN_INTERVAL", 1100*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.GeocodeBaseDelay, err = durationOrDefault("GEOCODE_RETRY_BASE_DELAY", 500*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.GeocodeMaxDelay, err = durationOrDefault("GEOCODE_RETRY_MAX_DELAY", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.GeocodeAttempts, err = intOrDefault("GEOCODE_RETRY_ATTEMPTS", 3); err != nil {
		return nil, err
	}

	if cfg.GeocodeDirectURL == "" && cfg.GeocodeRelayURL == "" {
		return nil, errors.New("at least one of GEOCODE_DIRECT_URL or GEOCODE_RELAY_URL is required")
	}
	if cfg.GeocodeMinInterval <= 0 {
		return nil, errors.New("GEOCODE_MIN_INTERVAL must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationOrDefault(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func intOrDefault(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}
