// Package domain models the provider directory's records and the pure text
// rules that prepare their addresses for geocoding.
//
// # Record identity
//
// A record carries two identities. The remote store assigns an opaque ID on
// first creation; until then the record is matched by its natural key,
// lowercased email joined with the phone number:
//
//	lower(email) + "|" + phone
//
// Within a mirror, natural keys are unique among records lacking an ID, and
// IDs are unique among records that have one. Two distinct companies sharing
// an email and phone merge under the same natural key; that is inherited
// behavior, not an accident of this implementation.
//
// # Address normalization
//
// Addresses are free text typed by French-speaking users. Before any lookup
// they are trimmed, whitespace-collapsed, diacritic-folded, lowercased, run
// through an ordered substitution table ("bd" → "boulevard", "londres" →
// "london", ...), and suffixed with an implicit country when none is named.
// The normalized form is the cache key, so two spellings of the same address
// share one cached coordinate pair.
//
// When the primary query yields nothing, QueryVariants supplies fallbacks in
// decreasing precision: postal-code/city order swapped ("75001 paris" vs
// "paris 75001"), leading street number stripped, and finally city and
// country alone.
//
// # Coordinates
//
// Lat/Lon are zero until resolved. A pair is usable only when both
// components are finite and not both zero; anything else is treated exactly
// like an empty geocoder response. Once set from a successful geocode,
// coordinates are recomputed only when the address text changes.
package domain
