// Package store owns the canonical provider collection. All mutation flows
// through it: records are merged, geocoded, persisted to the local mirror,
// written best-effort to the remote store, and projected as markers. The
// local mirror write always succeeds even when the remote side does not.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/lmarchau/provider-atlas/internal/domain"
	"github.com/lmarchau/provider-atlas/internal/kvstore"
	"github.com/lmarchau/provider-atlas/internal/observability"
	"github.com/lmarchau/provider-atlas/internal/remote"
)

// mirrorKey is where the serialized provider list lives in the local mirror.
const mirrorKey = "providers"

// localIDPrefix marks identifiers assigned locally, before any successful
// remote write. The first successful remote Add replaces them.
const localIDPrefix = "local-"

// ErrRemoteUnavailable reports that a mutation was persisted locally but the
// remote store write did not complete. The record in the local mirror is
// authoritative; the caller should warn the user, not retry blindly.
var ErrRemoteUnavailable = errors.New("remote store unreachable, change saved locally only")

// Store is the persisted provider collection.
type Store struct {
	mu         sync.Mutex
	kv         kvstore.Store
	resolver   domain.Resolver
	remote     remote.Store
	markers    domain.MarkerProjection
	normalizer *domain.Normalizer
	logger     *slog.Logger
	metrics    *observability.Metrics
	offline    atomic.Bool
	newID      func() string
}

// Options carries the optional collaborators. Any field may be nil: without
// a resolver records stay unresolved, without a remote store all writes are
// local, without a projection nothing renders.
type Options struct {
	Resolver domain.Resolver
	Remote   remote.Store
	Markers  domain.MarkerProjection
}

// New creates a store over the given local mirror.
func New(kv kvstore.Store, opts Options, normalizer *domain.Normalizer, logger *slog.Logger, metrics *observability.Metrics) *Store {
	if normalizer == nil {
		normalizer = domain.Default
	}
	return &Store{
		kv:         kv,
		resolver:   opts.Resolver,
		remote:     opts.Remote,
		markers:    opts.Markers,
		normalizer: normalizer,
		logger:     logger,
		metrics:    metrics,
		newID:      func() string { return localIDPrefix + uuid.NewString() },
	}
}

// SetOffline switches remote writes off (or back on at boot). The sync
// controller owns this flag.
func (s *Store) SetOffline(offline bool) {
	s.offline.Store(offline)
}

// Offline reports whether remote writes are currently suppressed.
func (s *Store) Offline() bool {
	return s.offline.Load()
}

// Upsert merges patch over the record matched by ID (if present) else by
// natural key, resolves coordinates when the address needs it, persists to
// the local mirror, and writes to the remote store when reachable. The
// returned record is the merged, persisted one. A non-nil error wrapping
// ErrRemoteUnavailable means the local write succeeded but the remote one
// did not.
func (s *Store) Upsert(ctx context.Context, patch domain.ProviderRecord) (domain.ProviderRecord, error) {
	return s.apply(ctx, patch, true)
}

// UpsertLocal is Upsert without the remote write, used when reconciling
// changes that originate from the remote store itself. It reports whether
// the record was genuinely added (as opposed to modified).
func (s *Store) UpsertLocal(ctx context.Context, rec domain.ProviderRecord) (domain.ProviderRecord, bool, error) {
	merged, added, _ := s.applyFull(ctx, rec, false)
	return merged, added, nil
}

func (s *Store) apply(ctx context.Context, patch domain.ProviderRecord, withRemote bool) (domain.ProviderRecord, error) {
	merged, _, remoteErr := s.applyFull(ctx, patch, withRemote)
	return merged, remoteErr
}

func (s *Store) applyFull(ctx context.Context, patch domain.ProviderRecord, withRemote bool) (domain.ProviderRecord, bool, error) {
	s.mu.Lock()
	records := s.load()
	idx := findIndex(records, patch)

	var merged domain.ProviderRecord
	var oldKey string
	if idx >= 0 {
		existing := records[idx]
		oldKey = existing.Key()
		merged = domain.Merge(existing, patch)
		// Coordinates survive edits that leave the address text unchanged.
		// A changed address invalidates them so resolution runs again.
		if !patch.Resolved() &&
			s.normalizer.Normalize(existing.Address) != s.normalizer.Normalize(merged.Address) {
			merged.Lat, merged.Lon = 0, 0
		}
	} else {
		merged = patch
	}
	s.mu.Unlock()

	if !merged.Resolved() && merged.Address != "" && s.resolver != nil {
		coord, err := s.resolver.Resolve(ctx, merged.Address)
		if err != nil {
			s.logger.Warn("address resolution failed", "address", merged.Address, "error", err)
		}
		if coord != nil {
			merged.Lat, merged.Lon = coord.Lat, coord.Lon
		}
	}

	var remoteErr error
	if withRemote && s.remote != nil && !s.offline.Load() {
		remoteErr = s.writeRemote(ctx, &merged)
	}
	if merged.ID == "" {
		merged.ID = s.newID()
	}

	s.mu.Lock()
	records = s.load()
	idx = findIndex(records, merged)
	added := idx < 0
	if added {
		records = append(records, merged)
	} else {
		records[idx] = merged
	}
	s.save(records)
	s.mu.Unlock()

	s.project(merged, added, oldKey)
	return merged, added, remoteErr
}

// writeRemote creates or updates the record remotely. The first successful
// Add replaces any locally assigned identifier with the authoritative one.
func (s *Store) writeRemote(ctx context.Context, rec *domain.ProviderRecord) error {
	if rec.ID == "" || strings.HasPrefix(rec.ID, localIDPrefix) {
		id, err := s.remote.Add(ctx, *rec)
		if err != nil {
			s.metrics.RemoteErrors.Inc()
			s.logger.Error("remote add failed", "key", rec.NaturalKey(), "error", err)
			return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
		}
		rec.ID = id
		return nil
	}

	if err := s.remote.Update(ctx, rec.ID, *rec); err != nil {
		s.metrics.RemoteErrors.Inc()
		s.logger.Error("remote update failed", "id", rec.ID, "error", err)
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	return nil
}

// Remove deletes the record matched by ID else natural key from the local
// mirror and, best-effort, from the remote store. Removing an absent record
// is a no-op.
func (s *Store) Remove(ctx context.Context, rec domain.ProviderRecord) error {
	s.mu.Lock()
	records := s.load()
	idx := findIndex(records, rec)
	if idx < 0 {
		s.mu.Unlock()
		return nil
	}
	removed := records[idx]
	records = slices.Delete(records, idx, idx+1)
	s.save(records)
	s.mu.Unlock()

	if s.markers != nil {
		s.markers.RemoveMarker(removed.Key())
	}

	if removed.ID != "" && !strings.HasPrefix(removed.ID, localIDPrefix) &&
		s.remote != nil && !s.offline.Load() {
		if err := s.remote.Delete(ctx, removed.ID); err != nil {
			s.metrics.RemoteErrors.Inc()
			s.logger.Error("remote delete failed", "id", removed.ID, "error", err)
			return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
		}
	}
	return nil
}

// RemoveByID deletes a record the remote store reports as removed. No
// remote call is made.
func (s *Store) RemoveByID(id string) {
	s.mu.Lock()
	records := s.load()
	idx := -1
	for i, r := range records {
		if r.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	removed := records[idx]
	records = slices.Delete(records, idx, idx+1)
	s.save(records)
	s.mu.Unlock()

	if s.markers != nil {
		s.markers.RemoveMarker(removed.Key())
	}
}

// List returns a copy of the current local mirror. Order carries no meaning;
// display sorting is a presentation concern.
func (s *Store) List() []domain.ProviderRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.load())
}

// ReplaceAll swaps the entire local mirror for the given records and
// re-renders every marker. Records that already carry valid coordinates are
// projected as-is, never re-geocoded.
func (s *Store) ReplaceAll(records []domain.ProviderRecord) {
	s.mu.Lock()
	old := s.load()
	s.save(slices.Clone(records))
	s.mu.Unlock()

	if s.markers == nil {
		return
	}
	for _, rec := range old {
		s.markers.RemoveMarker(rec.Key())
	}
	for _, rec := range records {
		if coord, ok := rec.Coordinates(); ok {
			s.markers.UpsertMarker(domain.Marker{Key: rec.Key(), Record: rec, Coord: coord})
		}
	}
	s.markers.FitBounds()
}

// ResolveMissing geocodes every record that has an address but no
// coordinates, persisting and projecting each success. It returns how many
// records were resolved.
func (s *Store) ResolveMissing(ctx context.Context) int {
	if s.resolver == nil {
		return 0
	}

	resolved := 0
	for _, rec := range s.List() {
		if rec.Resolved() || rec.Address == "" {
			continue
		}
		coord, err := s.resolver.Resolve(ctx, rec.Address)
		if err != nil {
			s.logger.Warn("address resolution failed", "address", rec.Address, "error", err)
			continue
		}
		if coord == nil {
			continue
		}

		rec.Lat, rec.Lon = coord.Lat, coord.Lon

		s.mu.Lock()
		records := s.load()
		if idx := findIndex(records, rec); idx >= 0 {
			records[idx] = rec
			s.save(records)
		}
		s.mu.Unlock()

		if s.markers != nil {
			s.markers.UpsertMarker(domain.Marker{Key: rec.Key(), Record: rec, Coord: *coord})
		}
		resolved++
	}
	return resolved
}

// HasNaturalKey reports whether any record in the mirror shares the given
// record's natural key.
func (s *Store) HasNaturalKey(rec domain.ProviderRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := rec.NaturalKey()
	for _, r := range s.load() {
		if r.NaturalKey() == key {
			return true
		}
	}
	return false
}

// load reads the mirror. Corrupt persisted data is treated as an empty
// collection rather than an error; the directory must keep working.
func (s *Store) load() []domain.ProviderRecord {
	raw, ok, err := s.kv.Get(mirrorKey)
	if err != nil {
		s.logger.Warn("local mirror read failed", "error", err)
		return nil
	}
	if !ok {
		return nil
	}

	var records []domain.ProviderRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		s.logger.Warn("local mirror corrupt, starting empty", "error", err)
		return nil
	}
	return records
}

func (s *Store) save(records []domain.ProviderRecord) {
	raw, err := json.Marshal(records)
	if err != nil {
		s.logger.Error("encode local mirror failed", "error", err)
		return
	}
	if err := s.kv.Set(mirrorKey, string(raw)); err != nil {
		s.logger.Error("local mirror write failed", "error", err)
		return
	}
	s.metrics.MirrorRecords.Set(float64(len(records)))
}

func (s *Store) project(rec domain.ProviderRecord, added bool, oldKey string) {
	if s.markers == nil {
		return
	}
	if oldKey != "" && oldKey != rec.Key() {
		// The record gained its remote id; drop the marker filed under the
		// natural key so the projection never holds duplicates.
		s.markers.RemoveMarker(oldKey)
	}
	coord, ok := rec.Coordinates()
	if !ok {
		return
	}
	s.markers.UpsertMarker(domain.Marker{Key: rec.Key(), Record: rec, Coord: coord})
	if added {
		s.markers.FitBounds()
	}
}

// findIndex matches by ID when the probe carries one, else by natural key.
func findIndex(records []domain.ProviderRecord, probe domain.ProviderRecord) int {
	if probe.ID != "" {
		for i, r := range records {
			if r.ID == probe.ID {
				return i
			}
		}
	}
	key := probe.NaturalKey()
	for i, r := range records {
		if r.NaturalKey() == key {
			return i
		}
	}
	return -1
}
