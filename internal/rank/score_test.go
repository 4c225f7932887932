package rank

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shortalex12333/Cloud-PMS-sub001/internal/query"
)

func testRankConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	return cfg
}

func ent(text string, typ query.EntityType, conf float64) query.Entity {
	return query.Entity{Text: text, Type: typ, Confidence: conf}
}

func TestMatchEntitiesIdentifierExact(t *testing.T) {
	cfg := testRankConfig(t)
	c := &Candidate{
		ID:          "p1",
		Table:       "parts",
		Identifiers: []string{"0180943002", "12-34-5678"},
	}

	got := matchEntities(cfg, c, []query.Entity{
		ent("0180943002", query.TypePartNumber, 0.90),
	})
	require.Len(t, got, 1)
	assert.Equal(t, TierIdentifierExact, got[0].tier)
	assert.Equal(t, -1, got[0].tokenPos)
}

func TestMatchEntitiesIdentifierTierRequiresIdentifierType(t *testing.T) {
	cfg := testRankConfig(t)
	c := &Candidate{
		ID:          "p1",
		Identifiers: []string{"impeller"},
	}

	// A non-identifier type never earns identifier-exact, even on a verbatim
	// identifier hit.
	got := matchEntities(cfg, c, []query.Entity{
		ent("impeller", query.TypeEquipment, 0.95),
	})
	assert.Empty(t, got)
}

func TestMatchEntitiesTextExactWordBounded(t *testing.T) {
	cfg := testRankConfig(t)

	c := &Candidate{ID: "d1", SearchText: "Bilge pump overhaul procedure"}
	got := matchEntities(cfg, c, []query.Entity{ent("bilge pump", query.TypeEquipment, 0.95)})
	require.Len(t, got, 1)
	assert.Equal(t, TierTextExact, got[0].tier)
	assert.Equal(t, 0, got[0].tokenPos)

	// "pump" must not match inside "pumps".
	c2 := &Candidate{ID: "d2", SearchText: "centrifugal pumps catalogue"}
	got = matchEntities(cfg, c2, []query.Entity{ent("pump", query.TypeEquipment, 0.95)})
	assert.Empty(t, got)
}

func TestMatchEntitiesTitleOnlyMatch(t *testing.T) {
	cfg := testRankConfig(t)
	c := &Candidate{
		ID:         "d1",
		Title:      "Impeller replacement",
		SearchText: "remove the six cover screws and withdraw the rotor",
	}

	got := matchEntities(cfg, c, []query.Entity{ent("impeller", query.TypeEquipment, 0.95)})
	require.Len(t, got, 1)
	assert.Equal(t, TierTextExact, got[0].tier)
	assert.Equal(t, -1, got[0].tokenPos)
}

func TestMatchEntitiesFuzzy(t *testing.T) {
	cfg := testRankConfig(t)
	c := &Candidate{ID: "d1", SearchText: "water pump service kit"}

	// Two of three tokens present meets the 0.5 overlap floor.
	got := matchEntities(cfg, c, []query.Entity{ent("sea water pump", query.TypeEquipment, 0.95)})
	require.Len(t, got, 1)
	assert.Equal(t, TierFuzzy, got[0].tier)
	assert.Equal(t, 0, got[0].tokenPos)

	// One of three does not.
	c2 := &Candidate{ID: "d2", SearchText: "fresh water tank gauge"}
	got = matchEntities(cfg, c2, []query.Entity{ent("sea pump impeller", query.TypeEquipment, 0.95)})
	assert.Empty(t, got)
}

func TestScoreCandidateBestTierWins(t *testing.T) {
	cfg := testRankConfig(t)
	c := &Candidate{
		ID:          "p1",
		Table:       "parts",
		Identifiers: []string{"0180943002"},
		SearchText:  "fuel filter element 0180943002",
	}
	entities := []query.Entity{
		ent("0180943002", query.TypePartNumber, 0.90),
		ent("fuel filter", query.TypeEquipment, 0.95),
	}

	matches := matchEntities(cfg, c, entities)
	scoreCandidate(cfg, c, matches, nil, time.Now())

	require.NotNil(t, c.Breakdown)
	assert.Equal(t, TierIdentifierExact, c.Breakdown.Tier)
	assert.InDelta(t, cfg.TierIdentifierExact, c.Breakdown.TierPoints, 1e-9)
	assert.ElementsMatch(t, []string{"0180943002", "fuel filter"}, c.Breakdown.MatchedEntities)
}

func TestConjunctionBonusAndCap(t *testing.T) {
	cfg := testRankConfig(t)

	two := make([]entityMatch, 2)
	var b Breakdown
	c := &Candidate{}
	scoreCandidate(cfg, c, two, nil, time.Now())
	b = *c.Breakdown
	assert.InDelta(t, cfg.ConjunctionPerEntity, b.Conjunction, 1e-9)

	five := make([]entityMatch, 5)
	scoreCandidate(cfg, c, five, nil, time.Now())
	assert.InDelta(t, cfg.ConjunctionCap, c.Breakdown.Conjunction, 1e-9,
		"four extra entities at 12 points would exceed the 36-point cap")
}

func TestProximityBonus(t *testing.T) {
	cfg := testRankConfig(t)

	adjacent := []entityMatch{{tokenPos: 3}, {tokenPos: 4}}
	assert.InDelta(t, 20.0, proximityBonus(cfg, adjacent), 1e-9)

	gapped := []entityMatch{{tokenPos: 0}, {tokenPos: 3}}
	assert.InDelta(t, 20.0/3.0, proximityBonus(cfg, gapped), 1e-9)

	// Positions from identifier or title matches carry no token position and
	// contribute nothing.
	single := []entityMatch{{tokenPos: 2}, {tokenPos: -1}}
	assert.Zero(t, proximityBonus(cfg, single))
}

func TestConfidenceContribution(t *testing.T) {
	cfg := testRankConfig(t)

	matches := []entityMatch{
		{entity: ent("fuel filter", query.TypeEquipment, 0.95)},
		{entity: ent("grinding noise", query.TypeEquipment, 0.665)},
	}
	want := cfg.EntityConfidenceWeight * (0.95 + 0.665) / 2
	assert.InDelta(t, want, confidenceContribution(cfg, matches), 1e-9)
	assert.Zero(t, confidenceContribution(cfg, nil))
}

func TestIntentPrior(t *testing.T) {
	cfg := testRankConfig(t)

	intents := DetectIntents(cfg, "manual for fuel filter")
	require.Equal(t, []string{"manual"}, intents)

	assert.InDelta(t, 12, intentPrior(cfg, intents, "documents"), 1e-9)
	assert.InDelta(t, -2, intentPrior(cfg, intents, "parts"), 1e-9)
	assert.Zero(t, intentPrior(cfg, intents, "inventory"))
	assert.Zero(t, intentPrior(cfg, intents, ""))
}

func TestDetectIntentsDedupesInQueryOrder(t *testing.T) {
	cfg := testRankConfig(t)

	got := DetectIntents(cfg, "stock manual stock reorder")
	assert.Equal(t, []string{"stock", "manual", "reorder"}, got)

	assert.Empty(t, DetectIntents(cfg, "fuel filter MTU"))
}

func TestRecencyBonus(t *testing.T) {
	cfg := testRankConfig(t)
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	assert.Zero(t, recencyBonus(cfg, time.Time{}, now))

	fresh := recencyBonus(cfg, now, now)
	assert.InDelta(t, cfg.RecencyCap, fresh, 1e-9)

	halfLife := recencyBonus(cfg, now.Add(-cfg.RecencyHalfLife), now)
	assert.InDelta(t, cfg.RecencyCap/2, halfLife, 1e-9)

	old := recencyBonus(cfg, now.Add(-4*cfg.RecencyHalfLife), now)
	assert.InDelta(t, cfg.RecencyCap/16, old, 1e-9)

	// Clock skew: future timestamps clamp to "fresh", never exceed the cap.
	future := recencyBonus(cfg, now.Add(24*time.Hour), now)
	assert.InDelta(t, cfg.RecencyCap, future, 1e-9)
}

func TestNoiseHeuristics(t *testing.T) {
	cfg := testRankConfig(t)

	tests := []struct {
		name  string
		c     Candidate
		noise bool
	}{
		{
			name:  "marker phrase in title",
			c:     Candidate{Title: "Table of Contents", SearchText: "1 Introduction"},
			noise: true,
		},
		{
			name:  "dotted leaders",
			c:     Candidate{SearchText: "Cooling ..... 12\nLube ..... 14\nFuel ..... 17"},
			noise: true,
		},
		{
			name: "numbered section lines",
			c: Candidate{SearchText: strings.Join([]string{
				"3.1 Cooling system 41",
				"3.2 Lube system 44",
				"3.3 Fuel system 48",
				"3.4 Air intake 52",
				"3.5 Exhaust 55",
			}, "\n")},
			noise: true,
		},
		{
			name:  "ordinary prose",
			c:     Candidate{SearchText: "Replace the impeller every 500 hours of operation."},
			noise: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.noise, isNoise(cfg, &tt.c))
		})
	}
}

func TestBreakdownTotalAndJSON(t *testing.T) {
	b := &Breakdown{
		Tier:             TierTextExact,
		TierPoints:       60,
		Conjunction:      12,
		Proximity:        20,
		EntityConfidence: 9.5,
		NoisePenalty:     -25,
	}
	assert.InDelta(t, 76.5, b.Total(), 1e-9)

	raw, err := b.MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"total":76.5`)

	var nilB *Breakdown
	assert.Zero(t, nilB.Total())
}
