// Package spatial answers nearest-provider queries over resolved records.
// Records are bucketed into H3 cells; a query walks outward ring by ring and
// settles ties with the haversine distance.
package spatial

import (
	"fmt"
	"math"
	"sort"

	"github.com/uber/h3-go/v4"

	"github.com/lmarchau/provider-atlas/internal/domain"
)

const earthRadiusMeters = 6371e3

// defaultResolution trades cell size against ring fan-out. Resolution 7 cells
// are roughly 5 km across, a sensible granularity for a field-service area.
const defaultResolution = 7

// Haversine returns the great-circle distance between two points in meters.
func Haversine(a, b domain.Coordinates) float64 {
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := latB - latA
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}

// Match is one nearest-provider answer.
type Match struct {
	Record   domain.ProviderRecord
	Distance float64
}

// Index buckets resolved provider records by H3 cell.
type Index struct {
	resolution int
	cells      map[h3.Cell][]domain.ProviderRecord
	size       int
}

// NewIndex builds an index over the resolved records in the given list.
// Unresolved records are skipped. A failed cell computation skips the record
// as well; the index stays usable.
func NewIndex(records []domain.ProviderRecord) (*Index, error) {
	idx := &Index{
		resolution: defaultResolution,
		cells:      make(map[h3.Cell][]domain.ProviderRecord),
	}
	for _, rec := range records {
		coord, ok := rec.Coordinates()
		if !ok {
			continue
		}
		cell, err := h3.LatLngToCell(h3.LatLng{Lat: coord.Lat, Lng: coord.Lon}, idx.resolution)
		if err != nil {
			return nil, fmt.Errorf("index record %s: %w", rec.Key(), err)
		}
		idx.cells[cell] = append(idx.cells[cell], rec)
		idx.size++
	}
	return idx, nil
}

// Len returns the number of indexed records.
func (idx *Index) Len() int {
	return idx.size
}

// Nearest returns up to limit providers closest to origin, ordered by
// distance. It expands the search ring by ring; once enough candidates are
// found it scans one extra ring, since a nearer record can still sit in a
// neighbouring cell.
func (idx *Index) Nearest(origin domain.Coordinates, limit int) ([]Match, error) {
	if limit <= 0 || idx.size == 0 {
		return nil, nil
	}

	center, err := h3.LatLngToCell(h3.LatLng{Lat: origin.Lat, Lng: origin.Lon}, idx.resolution)
	if err != nil {
		return nil, fmt.Errorf("locate origin: %w", err)
	}

	var matches []Match
	visited := 0
	settled := -1 // ring at which limit was first reached

	// maxRing bounds the walk for origins far from every indexed record; past
	// that the remaining cells are swept directly.
	const maxRing = 64

	for k := 0; k <= maxRing; k++ {
		ring, err := h3.GridDiskDistances(center, k)
		if err != nil {
			return nil, fmt.Errorf("expand search ring %d: %w", k, err)
		}
		for _, cell := range ring[k] {
			if recs, ok := idx.cells[cell]; ok {
				visited++
				for _, rec := range recs {
					coord, _ := rec.Coordinates()
					matches = append(matches, Match{Record: rec, Distance: Haversine(origin, coord)})
				}
			}
		}
		if visited == len(idx.cells) {
			break
		}
		if len(matches) >= limit {
			if settled < 0 {
				settled = k
			} else if k > settled {
				// One ring past the fill: a nearer record cannot sit further out.
				break
			}
		}
	}

	if visited < len(idx.cells) && len(matches) < limit {
		for cell, recs := range idx.cells {
			if dist, err := h3.GridDistance(center, cell); err == nil && dist <= maxRing {
				continue
			}
			for _, rec := range recs {
				coord, _ := rec.Coordinates()
				matches = append(matches, Match{Record: rec, Distance: Haversine(origin, coord)})
			}
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}
