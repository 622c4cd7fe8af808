package geocache

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lmarchau/provider-atlas/internal/domain"
	"github.com/lmarchau/provider-atlas/internal/kvstore"
	"github.com/lmarchau/provider-atlas/internal/observability"
)

func testCache(kv kvstore.Store) *Cache {
	return New(kv, slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())
}

func TestCache_PutThenGet(t *testing.T) {
	c := testCache(kvstore.NewMemory())

	_, ok := c.Get("10 rue de paris, 75001 paris, france")
	assert.False(t, ok)

	c.Put("10 rue de paris, 75001 paris, france", domain.Coordinates{Lat: 48.8606, Lon: 2.3376})

	coord, ok := c.Get("10 rue de paris, 75001 paris, france")
	assert.True(t, ok)
	assert.Equal(t, 48.8606, coord.Lat)
	assert.Equal(t, 2.3376, coord.Lon)
}

func TestCache_FirstWriteWins(t *testing.T) {
	c := testCache(kvstore.NewMemory())

	c.Put("paris, france", domain.Coordinates{Lat: 48.85, Lon: 2.35})
	c.Put("paris, france", domain.Coordinates{Lat: 0.1, Lon: 0.1})

	coord, ok := c.Get("paris, france")
	assert.True(t, ok)
	assert.Equal(t, 48.85, coord.Lat, "entries are immutable once written")
}

func TestCache_RejectsUnusablePairs(t *testing.T) {
	c := testCache(kvstore.NewMemory())

	c.Put("", domain.Coordinates{Lat: 1, Lon: 1})
	c.Put("somewhere, france", domain.Coordinates{})

	_, ok := c.Get("somewhere, france")
	assert.False(t, ok)
}

func TestCache_CorruptEntryIsAMiss(t *testing.T) {
	kv := kvstore.NewMemory()
	c := testCache(kv)

	_ = kv.Set("geocache:lyon, france", `{not json`)

	_, ok := c.Get("lyon, france")
	assert.False(t, ok)

	// A corrupt entry does not block a fresh write.
	c.Put("lyon, france", domain.Coordinates{Lat: 45.76, Lon: 4.84})
	coord, ok := c.Get("lyon, france")
	assert.True(t, ok)
	assert.Equal(t, 45.76, coord.Lat)
}

func TestCache_Evict(t *testing.T) {
	c := testCache(kvstore.NewMemory())

	c.Put("nice, france", domain.Coordinates{Lat: 43.7, Lon: 7.26})
	c.Evict("nice, france")

	_, ok := c.Get("nice, france")
	assert.False(t, ok)

	// Eviction reopens the key for a new resolution.
	c.Put("nice, france", domain.Coordinates{Lat: 43.71, Lon: 7.27})
	coord, ok := c.Get("nice, france")
	assert.True(t, ok)
	assert.Equal(t, 43.71, coord.Lat)
}
