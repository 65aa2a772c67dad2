// Package normalize canonicalizes store addresses into stable cache keys.
package normalize

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/storesync/internal/model"
)

const (
	// DefaultLocaleToken is stripped from addresses before keying. Catalogs
	// disagree on whether "Tel Aviv-Yafo" carries the "יפו" suffix.
	DefaultLocaleToken = "יפו"

	// DefaultCountry is appended to provider queries.
	DefaultCountry = "ישראל"
)

// brandAliases maps catalog brand codes to the display names the geocoding
// provider recognizes.
var brandAliases = map[string]string{
	"TivTaam":     "טיב טעם",
	"RamiLevi":    "רמי לוי",
	"HaziHinam":   "חצי חינם",
	"osherad":     "אושר עד",
	"Stop_Market": "סטופ מרקט",
}

var brandReplacer = newBrandReplacer()

func newBrandReplacer() *strings.Replacer {
	pairs := make([]string, 0, len(brandAliases)*2)
	for code, name := range brandAliases {
		pairs = append(pairs, code, name)
	}
	return strings.NewReplacer(pairs...)
}

// AddressKey is the normalized cache key for a store address.
type AddressKey string

// BrandAlias returns the canonical display name for a known brand code.
// Unknown codes are returned unchanged.
func BrandAlias(code string) string {
	if name, ok := brandAliases[code]; ok {
		return name
	}
	return code
}

// ReplaceBrands rewrites every known brand code found inside text.
func ReplaceBrands(text string) string {
	return brandReplacer.Replace(text)
}

// Normalizer builds provider queries and cache keys.
type Normalizer struct {
	LocaleToken string
	Country     string
}

// New returns a Normalizer stripping localeToken and suffixing queries with country.
// An empty country omits the suffix.
func New(localeToken, country string) Normalizer {
	return Normalizer{LocaleToken: localeToken, Country: country}
}

// Default returns the Normalizer used for Israeli supermarket catalogs.
func Default() Normalizer {
	return New(DefaultLocaleToken, DefaultCountry)
}

// Normalize canonicalizes text with the default locale token.
func Normalize(text string) string {
	return Default().Normalize(text)
}

// Normalize trims text, drops hyphens and whitespace, and strips the locale
// token. The result is a fixed point: Normalize(Normalize(x)) == Normalize(x).
func (n Normalizer) Normalize(text string) string {
	for {
		next := n.pass(text)
		if next == text {
			return next
		}
		text = next
	}
}

func (n Normalizer) pass(text string) string {
	text = norm.NFC.String(strings.TrimSpace(text))
	text = strings.Map(func(r rune) rune {
		if r == '-' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)
	if n.LocaleToken != "" {
		text = strings.ReplaceAll(text, n.LocaleToken, "")
	}
	return text
}

// Query returns the free-text provider query for a store, with the brand
// code replaced by its display name.
func (n Normalizer) Query(s model.Store) string {
	q := fmt.Sprintf("%s, %s, %s", BrandAlias(s.Brand), s.Address, s.City)
	if n.Country != "" {
		q += ", " + n.Country
	}
	return q
}

// Key returns the cache key for a store.
func (n Normalizer) Key(s model.Store) AddressKey {
	return n.KeyFromAddress(n.Query(s))
}

// KeyFromAddress keys a stored query address. Rows written with raw brand
// codes key the same as rows written with display names.
func (n Normalizer) KeyFromAddress(address string) AddressKey {
	return AddressKey(n.Normalize(ReplaceBrands(address)))
}
