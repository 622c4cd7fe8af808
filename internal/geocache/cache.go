// Package geocache persists resolved coordinates keyed by normalized address.
// It is the single source of truth for "has this query already been
// resolved": every resolution path consults it before touching the network
// and writes through it on success.
package geocache

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/lmarchau/provider-atlas/internal/domain"
	"github.com/lmarchau/provider-atlas/internal/kvstore"
	"github.com/lmarchau/provider-atlas/internal/observability"
)

const keyPrefix = "geocache:"

// Entry is one cached resolution. Entries are immutable once written;
// re-resolving the same key is a hit, never an update.
type Entry struct {
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	ResolvedAt time.Time `json:"resolvedAt"`
}

// Cache stores entries in the local key-value mirror so they survive
// process restart.
type Cache struct {
	kv      kvstore.Store
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a cache over the given store.
func New(kv kvstore.Store, logger *slog.Logger, metrics *observability.Metrics) *Cache {
	return &Cache{kv: kv, logger: logger, metrics: metrics}
}

// Get returns the cached coordinates for a normalized key. Corrupt persisted
// entries count as misses rather than errors.
func (c *Cache) Get(normalizedKey string) (*domain.Coordinates, bool) {
	coord, ok := c.lookup(normalizedKey)
	if ok {
		c.metrics.GeocodeCache.WithLabelValues("hit").Inc()
	} else {
		c.metrics.GeocodeCache.WithLabelValues("miss").Inc()
	}
	return coord, ok
}

// Put records a successful resolution. The first write for a key wins;
// later writes for the same key are ignored.
func (c *Cache) Put(normalizedKey string, coord domain.Coordinates) {
	if normalizedKey == "" || !coord.Valid() {
		return
	}
	if _, exists := c.lookup(normalizedKey); exists {
		return
	}

	raw, err := json.Marshal(Entry{
		Lat:        coord.Lat,
		Lon:        coord.Lon,
		ResolvedAt: domain.Clock().Now().UTC(),
	})
	if err != nil {
		return
	}
	if err := c.kv.Set(keyPrefix+normalizedKey, string(raw)); err != nil {
		c.logger.Warn("geocode cache write failed", "key", normalizedKey, "error", err)
	}
}

// Evict removes an entry so the next resolution re-fetches it. Permitted for
// callers that no longer trust a cached result.
func (c *Cache) Evict(normalizedKey string) {
	if err := c.kv.Delete(keyPrefix + normalizedKey); err != nil {
		c.logger.Warn("geocode cache evict failed", "key", normalizedKey, "error", err)
	}
}

func (c *Cache) lookup(normalizedKey string) (*domain.Coordinates, bool) {
	if normalizedKey == "" {
		return nil, false
	}
	raw, ok, err := c.kv.Get(keyPrefix + normalizedKey)
	if err != nil {
		c.logger.Warn("geocode cache read failed", "key", normalizedKey, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var e Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		c.logger.Warn("discarding corrupt geocode cache entry", "key", normalizedKey, "error", err)
		return nil, false
	}

	coord := domain.Coordinates{Lat: e.Lat, Lon: e.Lon}
	if !coord.Valid() {
		return nil, false
	}
	return &coord, true
}
