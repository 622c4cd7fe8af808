package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Empty(t, cfg.RemoteBaseURL, "no remote store unless configured")
	assert.Empty(t, cfg.MirrorPath)
	assert.Equal(t, "https://nominatim.openstreetmap.org", cfg.GeocodeDirectURL)
	assert.Equal(t, 1100*time.Millisecond, cfg.GeocodeMinInterval)
	assert.Equal(t, 3, cfg.GeocodeAttempts)
	assert.Equal(t, "france", cfg.CountrySuffix)
	assert.Equal(t, 15*time.Minute, cfg.RefreshInterval)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("MIRROR_PATH", "/tmp/atlas.db")
	t.Setenv("REMOTE_BASE_URL", "https://api.example.com")
	t.Setenv("GEOCODE_RELAY_URL", "https://relay.example.com")
	t.Setenv("GEOCODE_MIN_INTERVAL", "2s")
	t.Setenv("GEOCODE_RETRY_ATTEMPTS", "5")
	t.Setenv("REFRESH_INTERVAL", "1m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, "/tmp/atlas.db", cfg.MirrorPath)
	assert.Equal(t, "https://api.example.com", cfg.RemoteBaseURL)
	assert.Equal(t, "https://relay.example.com", cfg.GeocodeRelayURL)
	assert.Equal(t, 2*time.Second, cfg.GeocodeMinInterval)
	assert.Equal(t, 5, cfg.GeocodeAttempts)
	assert.Equal(t, time.Minute, cfg.RefreshInterval)
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := map[string]string{
		"GEOCODE_MIN_INTERVAL":   "not-a-duration",
		"GEOCODE_RETRY_ATTEMPTS": "0",
		"SHUTDOWN_TIMEOUT":       "-5s",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
