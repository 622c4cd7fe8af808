package spatial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmarchau/provider-atlas/internal/domain"
)

var (
	paris     = domain.Coordinates{Lat: 48.8566, Lon: 2.3522}
	versaille = domain.Coordinates{Lat: 48.8049, Lon: 2.1204}
	lyon      = domain.Coordinates{Lat: 45.7640, Lon: 4.8357}
	marseille = domain.Coordinates{Lat: 43.2965, Lon: 5.3698}
)

func rec(id string, c domain.Coordinates) domain.ProviderRecord {
	return domain.ProviderRecord{ID: id, CompanyName: id, Lat: c.Lat, Lon: c.Lon}
}

func TestHaversine_KnownDistance(t *testing.T) {
	d := Haversine(paris, lyon)
	// Paris to Lyon is about 392 km as the crow flies.
	assert.InDelta(t, 392_000, d, 5_000)

	assert.Zero(t, Haversine(paris, paris))
}

func TestIndex_SkipsUnresolvedRecords(t *testing.T) {
	idx, err := NewIndex([]domain.ProviderRecord{
		rec("a", paris),
		{ID: "unresolved", CompanyName: "No coords"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Len())
}

func TestNearest_OrdersByDistance(t *testing.T) {
	idx, err := NewIndex([]domain.ProviderRecord{
		rec("marseille", marseille),
		rec("lyon", lyon),
		rec("versailles", versaille),
		rec("paris", paris),
	})
	require.NoError(t, err)

	got, err := idx.Nearest(domain.Coordinates{Lat: 48.86, Lon: 2.34}, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "paris", got[0].Record.ID)
	assert.Equal(t, "versailles", got[1].Record.ID)
	assert.Equal(t, "lyon", got[2].Record.ID)
	assert.Less(t, got[0].Distance, got[1].Distance)
	assert.Less(t, got[1].Distance, got[2].Distance)
}

func TestNearest_LimitBounds(t *testing.T) {
	idx, err := NewIndex([]domain.ProviderRecord{rec("paris", paris), rec("lyon", lyon)})
	require.NoError(t, err)

	got, err := idx.Nearest(marseille, 10)
	require.NoError(t, err)
	assert.Len(t, got, 2, "limit larger than the index returns everything")

	got, err = idx.Nearest(marseille, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNearest_EmptyIndex(t *testing.T) {
	idx, err := NewIndex(nil)
	require.NoError(t, err)

	got, err := idx.Nearest(paris, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNearest_FarOriginStillFindsRecords(t *testing.T) {
	idx, err := NewIndex([]domain.ProviderRecord{rec("paris", paris)})
	require.NoError(t, err)

	// New York is far outside any walkable ring radius around the index.
	got, err := idx.Nearest(domain.Coordinates{Lat: 40.71, Lon: -74.0}, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "paris", got[0].Record.ID)
}
