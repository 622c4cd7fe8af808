// Package kvstore provides the synchronous string key-value store backing
// the local mirror and the geocode cache. The interface mirrors the
// browser-storage semantics the directory was built against: writes are
// immediately durable and reads return exactly what was last written.
package kvstore

import "sync"

// Store is a synchronous string key-value store. Implementations must be
// safe for concurrent use and must survive process restart reading back
// exactly what was written (the in-memory implementation is for tests).
type Store interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// Memory is a map-backed Store used in tests and ephemeral sessions.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
