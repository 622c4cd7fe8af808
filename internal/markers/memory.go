// Package markers provides an in-memory marker projection. Real deployments
// hand the core a map-widget adapter; this one backs headless sessions, the
// CLI, and tests, and records enough to assert the projection guarantees.
package markers

import (
	"sort"
	"sync"

	"github.com/lmarchau/provider-atlas/internal/domain"
)

// Memory holds the current marker set keyed the same way the store keys
// records.
type Memory struct {
	mu   sync.Mutex
	pins map[string]domain.Marker
	fits int
}

// NewMemory creates an empty projection.
func NewMemory() *Memory {
	return &Memory{pins: make(map[string]domain.Marker)}
}

func (m *Memory) UpsertMarker(marker domain.Marker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pins[marker.Key] = marker
}

func (m *Memory) RemoveMarker(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pins, key)
}

func (m *Memory) FitBounds() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fits++
}

// Len returns the number of markers currently projected.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pins)
}

// Get returns the marker for a key.
func (m *Memory) Get(key string) (domain.Marker, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	marker, ok := m.pins[key]
	return marker, ok
}

// Snapshot returns the markers sorted by key.
func (m *Memory) Snapshot() []domain.Marker {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Marker, 0, len(m.pins))
	for _, marker := range m.pins {
		out = append(out, marker)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// FitCount returns how many times the viewport was re-fit. Modifications and
// removals must never bump it.
func (m *Memory) FitCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fits
}
