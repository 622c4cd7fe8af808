package domain

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Substitution rewrites one locale spelling into a form the geocoding
// service recognizes. Patterns are applied in order, case-insensitively.
type Substitution struct {
	Pattern     string
	Replacement string
}

// DefaultSubstitutions covers what users of the directory actually type:
// French street abbreviations plus French names of foreign places.
var DefaultSubstitutions = []Substitution{
	{`\bbld\.?\s`, "boulevard "},
	{`\bbd\.?\s`, "boulevard "},
	{`\bav\.?\s`, "avenue "},
	{`\bfbg\.?\s`, "faubourg "},
	{`\bst\.?\s`, "saint "},
	{`\bste\.?\s`, "sainte "},
	{`\blondres\b`, "london"},
	{`\bangleterre\b`, "england"},
	{`\ballemagne\b`, "germany"},
	{`\bespagne\b`, "spain"},
	{`\bitalie\b`, "italy"},
	{`\bbelgique\b`, "belgium"},
	{`\bsuisse\b`, "switzerland"},
}

var defaultCountryTokens = []string{
	"france", "belgium", "switzerland", "germany", "spain", "italy",
	"england", "luxembourg", "monaco",
}

var (
	postalCityRe   = regexp.MustCompile(`\b(\d{4,5})\s+([\p{L}][\p{L}' -]*)`)
	streetNumberRe = regexp.MustCompile(`^\d+\s*(?:bis|ter)?[,\s]+`)
)

// Normalizer canonicalizes free-text addresses before cache lookup and
// network dispatch. It is pure: the same input always yields the same
// output, and Normalize is idempotent.
type Normalizer struct {
	subs          []compiledSub
	countrySuffix string
	countryRe     *regexp.Regexp
}

type compiledSub struct {
	re          *regexp.Regexp
	replacement string
}

// NewNormalizer compiles a substitution table. The suffix is appended when
// no recognized country token appears in the address.
func NewNormalizer(subs []Substitution, countrySuffix string) *Normalizer {
	compiled := make([]compiledSub, 0, len(subs))
	for _, s := range subs {
		compiled = append(compiled, compiledSub{
			re:          regexp.MustCompile(`(?i)` + s.Pattern),
			replacement: s.Replacement,
		})
	}
	tokens := defaultCountryTokens
	if !containsToken(tokens, countrySuffix) {
		tokens = append(append([]string{}, tokens...), countrySuffix)
	}
	return &Normalizer{
		subs:          compiled,
		countrySuffix: strings.ToLower(countrySuffix),
		countryRe:     regexp.MustCompile(`\b(` + strings.Join(tokens, "|") + `)\b`),
	}
}

// Default is the normalizer used when nothing overrides the table.
var Default = NewNormalizer(DefaultSubstitutions, "france")

// Normalize trims, collapses whitespace, strips diacritics, lowercases,
// applies the substitution table, and appends the implicit country suffix
// when none is present. Empty input normalizes to the empty string and must
// never reach the network.
func (n *Normalizer) Normalize(raw string) string {
	s := collapseWhitespace(raw)
	if s == "" {
		return ""
	}
	s = foldDiacritics(s)
	s = strings.ToLower(s)
	for _, sub := range n.subs {
		s = sub.re.ReplaceAllString(s, sub.replacement)
	}
	s = collapseWhitespace(s)
	if !n.countryRe.MatchString(s) {
		s += ", " + n.countrySuffix
	}
	return s
}

// QueryVariants returns the ordered candidate queries to try when the
// primary form yields nothing: most precise first, coarsest last. Variants
// are de-duplicated and empty ones discarded.
func (n *Normalizer) QueryVariants(raw string) []string {
	primary := n.Normalize(raw)
	if primary == "" {
		return nil
	}
	candidates := []string{
		primary,
		postalCityRe.ReplaceAllString(primary, "$2 $1"),
		collapseWhitespace(streetNumberRe.ReplaceAllString(primary, "")),
		n.cityCountryOnly(primary),
	}
	seen := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// cityCountryOnly extracts the coarse "city, country" fallback from a
// normalized address, using the postal-code/city pair as the anchor.
func (n *Normalizer) cityCountryOnly(normalized string) string {
	m := postalCityRe.FindStringSubmatch(normalized)
	if m == nil {
		return ""
	}
	city := strings.Trim(m[2], " '-")
	if city == "" {
		return ""
	}
	country := n.countrySuffix
	if i := strings.LastIndex(normalized, ","); i >= 0 {
		if tail := strings.TrimSpace(normalized[i+1:]); n.countryRe.MatchString(tail) {
			country = tail
		}
	}
	return city + ", " + country
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func containsToken(tokens []string, t string) bool {
	t = strings.ToLower(t)
	for _, tok := range tokens {
		if tok == t {
			return true
		}
	}
	return false
}
