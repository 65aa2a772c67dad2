package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/storesync/internal/model"
)

func TestNormalize_Empty(t *testing.T) {
	assert.Equal(t, "", Normalize(""))
	assert.Equal(t, "", Normalize("   "))
}

func TestNormalize_StripsSpacesAndHyphens(t *testing.T) {
	assert.Equal(t, "brandx,1main,city", Normalize("  brandx, 1 main, city "))
	assert.Equal(t, "TelAviv", Normalize("Tel-Aviv"))
	assert.Equal(t, "abc", Normalize("a\tb c"))
}

func TestNormalize_StripsLocaleToken(t *testing.T) {
	assert.Equal(t, "תלאביב", Normalize("תל אביב-יפו"))
	assert.Equal(t, "תלאביב", Normalize("תל אביב"))
}

func TestNormalize_CustomToken(t *testing.T) {
	n := New("Yafo", "")
	assert.Equal(t, "TelAviv", n.Normalize("Tel Aviv-Yafo"))
	// The default Hebrew token is not stripped by a custom normalizer.
	assert.Equal(t, "תלאביביפו", n.Normalize("תל אביב-יפו"))
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"  רמי לוי, הרצל 1, תל אביב-יפו, ישראל ",
		"יייפופו",
		"Tel - Aviv - - Yafo",
		"e\u0301cole",
		"brandx, 1 main, city",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestNormalize_TokenRemovalReachesFixedPoint(t *testing.T) {
	// Removing the inner token exposes a new one; both must go.
	assert.Equal(t, "", Normalize("י"+"יפו"+"פו"))
}

func TestNormalize_UnicodeComposition(t *testing.T) {
	assert.Equal(t, Normalize("\u00e9cole"), Normalize("e\u0301cole"))
}

func TestBrandAlias(t *testing.T) {
	assert.Equal(t, "רמי לוי", BrandAlias("RamiLevi"))
	assert.Equal(t, "טיב טעם", BrandAlias("TivTaam"))
	assert.Equal(t, "סטופ מרקט", BrandAlias("Stop_Market"))
	assert.Equal(t, "Shufersal", BrandAlias("Shufersal"))
}

func TestReplaceBrands(t *testing.T) {
	assert.Equal(t, "חצי חינם, הרצל 1, חיפה", ReplaceBrands("HaziHinam, הרצל 1, חיפה"))
	assert.Equal(t, "no brand here", ReplaceBrands("no brand here"))
}

func TestNormalizer_Query(t *testing.T) {
	s := model.Store{Brand: "osherad", Address: "הרצל 1", City: "חיפה"}
	assert.Equal(t, "אושר עד, הרצל 1, חיפה, ישראל", Default().Query(s))
	assert.Equal(t, "אושר עד, הרצל 1, חיפה", New(DefaultLocaleToken, "").Query(s))
}

func TestNormalizer_KeyStableAcrossBrandNaming(t *testing.T) {
	n := Default()
	byCode := n.Key(model.Store{Brand: "RamiLevi", Address: "הרצל 1", City: "חיפה"})
	byName := n.Key(model.Store{Brand: "רמי לוי", Address: "הרצל 1", City: "חיפה"})
	assert.Equal(t, byCode, byName)

	// A cache row written with the raw code keys the same way.
	assert.Equal(t, byCode, n.KeyFromAddress("RamiLevi, הרצל 1, חיפה, ישראל"))
}

func TestNormalizer_KeyDistinguishesAddresses(t *testing.T) {
	n := Default()
	a := n.Key(model.Store{Brand: "RamiLevi", Address: "הרצל 1", City: "חיפה"})
	b := n.Key(model.Store{Brand: "RamiLevi", Address: "הרצל 2", City: "חיפה"})
	assert.NotEqual(t, a, b)
}

func TestNormalizer_KeyScenario(t *testing.T) {
	n := New(DefaultLocaleToken, "")
	key := n.Key(model.Store{Brand: "brandx", Address: "1 main", City: "city"})
	assert.Equal(t, AddressKey("brandx,1main,city"), key)
}
