package domain

import (
	"math"
	"strings"
)

// Coordinates is a resolved latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether both components are finite numbers. A pair that
// fails to parse upstream arrives here as NaN and counts as "no result".
func (c Coordinates) Valid() bool {
	return !math.IsNaN(c.Lat) && !math.IsInf(c.Lat, 0) &&
		!math.IsNaN(c.Lon) && !math.IsInf(c.Lon, 0) &&
		(c.Lat != 0 || c.Lon != 0)
}

// ProviderRecord is one service provider in the directory. ID is assigned by
// the remote store on first creation and is empty for purely local records.
// Lat/Lon are zero until the address has been resolved.
type ProviderRecord struct {
	ID          string  `json:"id,omitempty"`
	CompanyName string  `json:"companyName,omitempty"`
	ContactName string  `json:"contactName,omitempty"`
	FirstName   string  `json:"firstName,omitempty"`
	Address     string  `json:"address,omitempty"`
	Email       string  `json:"email,omitempty"`
	Phone       string  `json:"phone,omitempty"`
	Rate        string  `json:"rate,omitempty"`
	TravelFees  string  `json:"travelFees,omitempty"`
	TotalCost   string  `json:"totalCost,omitempty"`
	Lat         float64 `json:"lat,omitempty"`
	Lon         float64 `json:"lon,omitempty"`
}

// NaturalKey derives the identity used to match records that have no
// remote-assigned ID: lowercased email joined with the phone number.
func (r ProviderRecord) NaturalKey() string {
	return strings.ToLower(strings.TrimSpace(r.Email)) + "|" + strings.TrimSpace(r.Phone)
}

// Key returns the ID when one exists, else the natural key. Marker
// projections and mirrors index records by this value.
func (r ProviderRecord) Key() string {
	if r.ID != "" {
		return r.ID
	}
	return r.NaturalKey()
}

// Resolved reports whether the record carries usable coordinates.
func (r ProviderRecord) Resolved() bool {
	return Coordinates{Lat: r.Lat, Lon: r.Lon}.Valid()
}

// Coordinates returns the record's coordinate pair when resolved.
func (r ProviderRecord) Coordinates() (Coordinates, bool) {
	c := Coordinates{Lat: r.Lat, Lon: r.Lon}
	return c, c.Valid()
}

// Merge lays patch over existing: every field present (non-zero) in patch
// wins, every field absent in patch keeps the existing value. Coordinates
// follow the same rule; callers that need address-change detection must
// decide before merging whether to discard the existing pair.
func Merge(existing, patch ProviderRecord) ProviderRecord {
	out := existing
	if patch.ID != "" {
		out.ID = patch.ID
	}
	if patch.CompanyName != "" {
		out.CompanyName = patch.CompanyName
	}
	if patch.ContactName != "" {
		out.ContactName = patch.ContactName
	}
	if patch.FirstName != "" {
		out.FirstName = patch.FirstName
	}
	if patch.Address != "" {
		out.Address = patch.Address
	}
	if patch.Email != "" {
		out.Email = patch.Email
	}
	if patch.Phone != "" {
		out.Phone = patch.Phone
	}
	if patch.Rate != "" {
		out.Rate = patch.Rate
	}
	if patch.TravelFees != "" {
		out.TravelFees = patch.TravelFees
	}
	if patch.TotalCost != "" {
		out.TotalCost = patch.TotalCost
	}
	if patch.Resolved() {
		out.Lat = patch.Lat
		out.Lon = patch.Lon
	}
	return out
}
