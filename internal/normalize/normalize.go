// Package normalize provides canonicalization of sneaker metadata coming
// from heterogeneous sources. Every match key used for deduplication goes
// through this package so that "Nike  Air Max 90" and "NIKE Air Max 90"
// resolve to the same catalog entity.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	// Matches any run of whitespace.
	whitespace = regexp.MustCompile(`\s+`)
	// Matches characters that never carry identity in a product name.
	nameNoise = regexp.MustCompile("[\"'`’®™©]+")
	// Matches any non-alphanumeric character, for SKU and filename folding.
	nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)
	// Matches multiple hyphens.
	multipleHyphens = regexp.MustCompile(`-+`)
	// Matches the leading digits of a price string, e.g. "$1,299.99 USD".
	priceDigits = regexp.MustCompile(`[0-9][0-9.,]*`)
)

// fold lowercases, strips diacritics and drops non-ASCII runes. Noise
// characters go first: NFKD expands U+2122 into the letters "tm", which
// would otherwise survive the fold and leak into match keys.
func fold(s string) string {
	s = nameNoise.ReplaceAllString(s, "")
	s = norm.NFKD.String(s)
	s = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII || unicode.Is(unicode.Mn, r) {
			return -1
		}
		return r
	}, s)
	return strings.ToLower(s)
}

// Name normalizes a product name for matching: noise characters removed,
// unicode folding, whitespace collapsed.
// "Nike  Air Max 90 “Infrared”" -> "nike air max 90 infrared".
func Name(s string) string {
	s = fold(s)
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Brand normalizes a brand for matching. Same folding as Name.
func Brand(s string) string {
	return Name(s)
}

// SKU normalizes a style code: folded and stripped to alphanumerics.
// "DD1391-100" and "dd1391 100" normalize identically.
func SKU(s string) string {
	s = fold(s)
	return nonAlphanumeric.ReplaceAllString(s, "")
}

// ItemKey builds the unique (brand, name) match key for an item.
// Returns empty when either part is empty; callers must not index on an
// empty key.
func ItemKey(brand, name string) string {
	b := Brand(brand)
	n := Name(name)
	if b == "" || n == "" {
		return ""
	}
	return b + "|" + n
}

// ContainsName reports whether one normalized name contains the other.
// This is the documented fuzzy-match rule: token containment only, no
// heavier similarity scoring - source data does not warrant it.
func ContainsName(a, b string) bool {
	na, nb := Name(a), Name(b)
	if na == "" || nb == "" {
		return false
	}
	return strings.Contains(na, nb) || strings.Contains(nb, na)
}

// Filename converts a product name into a safe object/file name.
// "Air Jordan 1 Retro High OG" -> "air-jordan-1-retro-high-og".
// Truncated to 60 characters to keep sink names manageable.
func Filename(s string) string {
	s = fold(s)
	s = nonAlphanumeric.ReplaceAllString(s, "-")
	s = multipleHyphens.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > 60 {
		s = strings.Trim(s[:60], "-")
	}
	return s
}

// ParsePrice extracts a price from free-form source text.
// Handles "$129.99", "129,99 €", "1,299" and returns 0 for garbage.
func ParsePrice(s string) float64 {
	m := priceDigits.FindString(s)
	if m == "" {
		return 0
	}
	// Treat a comma as a decimal separator only when it is followed by
	// exactly two digits at the end; otherwise it is a thousands separator.
	if i := strings.LastIndex(m, ","); i >= 0 && len(m)-i == 3 {
		m = strings.ReplaceAll(m[:i], ",", "") + "." + m[i+1:]
	} else {
		m = strings.ReplaceAll(m, ",", "")
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	return v
}

// releaseDateFormats lists the date layouts seen across sources.
var releaseDateFormats = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	time.RFC3339,
}

// ParseReleaseDate parses a release date in any of the known source
// formats. Returns the zero time when the value is empty or unparseable;
// missing dates are left empty, never guessed.
func ParseReleaseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range releaseDateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
