package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	return cfg
}

func findEntity(entities []Entity, typ EntityType, text string) (Entity, bool) {
	for _, e := range entities {
		if e.Type == typ && e.Text == text {
			return e, true
		}
	}
	return Entity{}, false
}

func TestExtractEmptyInput(t *testing.T) {
	ext := NewDeterministicExtractor(newTestConfig(t))

	got := ext.Extract("")
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestExtractNoSignalYieldsEmptyList(t *testing.T) {
	ext := NewDeterministicExtractor(newTestConfig(t))

	got := ext.Extract("manual cleanup procedure notes")
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestExtractGazetteer(t *testing.T) {
	ext := NewDeterministicExtractor(newTestConfig(t))

	got := ext.Extract("fuel filter MTU")

	eq, ok := findEntity(got, TypeEquipment, "fuel filter")
	require.True(t, ok, "expected equipment entity, got %v", got)
	assert.Equal(t, Span{Start: 0, End: 11}, eq.Span)
	assert.Equal(t, SourceGazetteer, eq.Source)
	assert.InDelta(t, 0.95, eq.Confidence, 1e-9)

	brand, ok := findEntity(got, TypeBrand, "MTU")
	require.True(t, ok, "expected brand entity, got %v", got)
	assert.Equal(t, Span{Start: 12, End: 15}, brand.Span)
	assert.Equal(t, SourceGazetteer, brand.Source)
}

func TestExtractLongestPhraseWins(t *testing.T) {
	ext := NewDeterministicExtractor(newTestConfig(t))

	got := ext.Extract("impeller critically low inventory")

	stock, ok := findEntity(got, TypeStockStatus, "critically low inventory")
	require.True(t, ok, "expected full stock-status phrase, got %v", got)
	assert.Equal(t, Span{Start: 9, End: 33}, stock.Span)

	// The shorter variants and the urgency word inside the phrase must not
	// surface as separate entities.
	_, ok = findEntity(got, TypeStockStatus, "critically low")
	assert.False(t, ok)
	_, ok = findEntity(got, TypeUrgency, "critical")
	assert.False(t, ok)
}

func TestExtractWordBoundaries(t *testing.T) {
	ext := NewDeterministicExtractor(newTestConfig(t))

	// "man" (brand) must not match inside "manifold"; "mtu" not inside
	// "premtux"-style tokens.
	got := ext.Extract("exhaust manifold bolts")
	_, ok := findEntity(got, TypeBrand, "man")
	assert.False(t, ok, "brand must not match inside a longer word: %v", got)
}

func TestExtractPatterns(t *testing.T) {
	ext := NewDeterministicExtractor(newTestConfig(t))

	got := ext.Extract("SPN 3362 E-047 24 v 16V2000 0180943002")

	tests := []struct {
		typ  EntityType
		text string
		conf float64
	}{
		{TypeFaultCode, "SPN 3362", 0.95},
		{TypeFaultCode, "E-047", 0.90},
		{TypeMeasurement, "24 v", 0.92},
		{TypeModelCode, "16V2000", 0.88},
		{TypePartNumber, "0180943002", 0.90},
	}
	for _, tt := range tests {
		e, ok := findEntity(got, tt.typ, tt.text)
		require.True(t, ok, "missing %s %q in %v", tt.typ, tt.text, got)
		assert.Equal(t, SourcePattern, e.Source)
		assert.InDelta(t, tt.conf, e.Confidence, 1e-9)
	}
}

func TestExtractSpansIndexNormalizedText(t *testing.T) {
	ext := NewDeterministicExtractor(newTestConfig(t))
	text := "bilge pump SPN 3362"

	for _, e := range ext.Extract(text) {
		require.GreaterOrEqual(t, e.Span.Start, 0)
		require.LessOrEqual(t, e.Span.End, len(text))
		assert.Equal(t, text[e.Span.Start:e.Span.End], e.Text)
	}
}

func TestExtractProperNouns(t *testing.T) {
	ext := NewDeterministicExtractor(newTestConfig(t))

	got := ext.Extract("Seakeeper stabilizer leak")

	pn, ok := findEntity(got, TypeEquipment, "Seakeeper")
	require.True(t, ok, "expected proper-noun fallback, got %v", got)
	assert.Equal(t, SourceProperNoun, pn.Source)
	assert.InDelta(t, 0.80*0.85, pn.Confidence, 1e-9)

	// Known equipment still comes from the gazetteer, not the fallback.
	eq, ok := findEntity(got, TypeEquipment, "stabilizer")
	require.True(t, ok)
	assert.Equal(t, SourceGazetteer, eq.Source)
}

func TestExtractProperNounRunClippedByClaimedSpan(t *testing.T) {
	ext := NewDeterministicExtractor(newTestConfig(t))

	// "MTU" belongs to the gazetteer; the capitalized run continuing past it
	// must still surface its unclaimed remainder.
	got := ext.Extract("MTU Seakeeper stabilizer")

	brand, ok := findEntity(got, TypeBrand, "MTU")
	require.True(t, ok, "expected gazetteer brand, got %v", got)
	assert.Equal(t, SourceGazetteer, brand.Source)

	pn, ok := findEntity(got, TypeEquipment, "Seakeeper")
	require.True(t, ok, "expected the clipped run remainder, got %v", got)
	assert.Equal(t, SourceProperNoun, pn.Source)
	assert.Equal(t, Span{Start: 4, End: 13}, pn.Span)
}

func TestExtractAllCapsTokenReadsAsBrand(t *testing.T) {
	ext := NewDeterministicExtractor(newTestConfig(t))

	got := ext.Extract("ZF gearbox oil change")

	brand, ok := findEntity(got, TypeBrand, "ZF")
	require.True(t, ok, "expected all-caps brand, got %v", got)
	assert.Equal(t, SourceProperNoun, brand.Source)
}

func TestExtractLengthChangingLowercaseRune(t *testing.T) {
	ext := NewDeterministicExtractor(newTestConfig(t))

	// U+023A lowercases to U+2C65, which is one byte wider in UTF-8. Offsets
	// computed on a naively lowered copy would no longer index this text.
	text := "Ⱥ impeller"

	got := ext.Extract(text)

	eq, ok := findEntity(got, TypeEquipment, "impeller")
	require.True(t, ok, "expected gazetteer match after width-changing rune, got %v", got)
	assert.Equal(t, Span{Start: 3, End: 11}, eq.Span)
	for _, e := range got {
		require.GreaterOrEqual(t, e.Span.Start, 0)
		require.LessOrEqual(t, e.Span.End, len(text))
		assert.Equal(t, text[e.Span.Start:e.Span.End], e.Text)
	}
}

func TestLowerAlignedPreservesLength(t *testing.T) {
	tests := []string{
		"Fuel Filter MTU",
		"Ⱥ impeller",          // lowercase form is wider
		"STRAẞe",              // U+1E9E lowercases to 2-byte sharp s
		"café Überdruck", // multibyte but width-stable
	}
	for _, in := range tests {
		out := lowerAligned(in)
		assert.Equal(t, len(in), len(out), "byte length must not change for %q", in)
	}
	assert.Equal(t, "fuel filter mtu", lowerAligned("Fuel Filter MTU"))
}

func TestExtractStopwordsBreakProperNounRuns(t *testing.T) {
	ext := NewDeterministicExtractor(newTestConfig(t))

	// "Where" is capitalized but a stopword, so it must not become an entity.
	got := ext.Extract("Where is the impeller")
	_, ok := findEntity(got, TypeEquipment, "Where")
	assert.False(t, ok)
	_, ok = findEntity(got, TypeBrand, "Where")
	assert.False(t, ok)
}
