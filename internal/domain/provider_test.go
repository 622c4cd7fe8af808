package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNaturalKey(t *testing.T) {
	r := ProviderRecord{Email: " Jean.Dupont@Example.COM ", Phone: "0601020304"}
	assert.Equal(t, "jean.dupont@example.com|0601020304", r.NaturalKey())
}

func TestKey_PrefersID(t *testing.T) {
	r := ProviderRecord{ID: "abc123", Email: "a@b.fr", Phone: "06"}
	assert.Equal(t, "abc123", r.Key())

	r.ID = ""
	assert.Equal(t, "a@b.fr|06", r.Key())
}

func TestCoordinates_Valid(t *testing.T) {
	assert.True(t, Coordinates{Lat: 48.85, Lon: 2.35}.Valid())
	assert.False(t, Coordinates{}.Valid(), "zero pair means unresolved")
	assert.False(t, Coordinates{Lat: math.NaN(), Lon: 2.35}.Valid())
	assert.False(t, Coordinates{Lat: 48.85, Lon: math.Inf(1)}.Valid())
}

func TestMerge_PatchFieldsWin(t *testing.T) {
	existing := ProviderRecord{
		ID:          "id-1",
		CompanyName: "Ancien Nom",
		ContactName: "Durand",
		Address:     "10 rue de paris, 75001 paris",
		Email:       "contact@ancien.fr",
		Phone:       "0101010101",
		Rate:        "45",
		Lat:         48.86,
		Lon:         2.34,
	}
	patch := ProviderRecord{
		CompanyName: "Nouveau Nom",
		TravelFees:  "20",
	}

	merged := Merge(existing, patch)

	// Fields present in the patch take the patch value.
	assert.Equal(t, "Nouveau Nom", merged.CompanyName)
	assert.Equal(t, "20", merged.TravelFees)

	// Fields absent in the patch keep the prior value.
	assert.Equal(t, "id-1", merged.ID)
	assert.Equal(t, "Durand", merged.ContactName)
	assert.Equal(t, "contact@ancien.fr", merged.Email)
	assert.Equal(t, "45", merged.Rate)
	assert.Equal(t, 48.86, merged.Lat)
	assert.Equal(t, 2.34, merged.Lon)
}

func TestMerge_UnresolvedPatchKeepsCoordinates(t *testing.T) {
	existing := ProviderRecord{Lat: 43.6, Lon: 1.44}
	merged := Merge(existing, ProviderRecord{CompanyName: "X"})
	assert.Equal(t, 43.6, merged.Lat)
	assert.Equal(t, 1.44, merged.Lon)

	merged = Merge(existing, ProviderRecord{Lat: 45.76, Lon: 4.84})
	assert.Equal(t, 45.76, merged.Lat)
	assert.Equal(t, 4.84, merged.Lon)
}
