package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shortalex12333/Cloud-PMS-sub001/pkg/errors"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.NotEmpty(t, cfg.Version())
}

func TestConfigValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"default threshold out of range", func(c *Config) { c.DefaultThreshold = 1.5 }},
		{"threshold out of range", func(c *Config) { c.Thresholds[TypeEquipment] = -0.1 }},
		{"unknown threshold type", func(c *Config) { c.Thresholds["widget"] = 0.5 }},
		{"unknown gazetteer type", func(c *Config) { c.Gazetteer["widget"] = []string{"x"} }},
		{"unknown source multiplier", func(c *Config) { c.SourceMultipliers["psychic"] = 0.5 }},
		{"zero source multiplier", func(c *Config) { c.SourceMultipliers[SourcePattern] = 0 }},
		{"non-positive overlap weights", func(c *Config) { c.Overlap = OverlapWeights{} }},
		{"coverage threshold out of range", func(c *Config) { c.CoverageSkipThreshold = 1.2 }},
		{"non-positive timeout", func(c *Config) { c.ProbabilisticTimeout = 0 }},
		{"non-positive max length", func(c *Config) { c.MaxQueryLength = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeConfigInvalid, errors.GetCode(err))
		})
	}
}

func TestConfigVersionTracksContent(t *testing.T) {
	a := DefaultConfig()
	require.NoError(t, a.Validate())

	b := DefaultConfig()
	require.NoError(t, b.Validate())
	assert.Equal(t, a.Version(), b.Version(), "identical snapshots share a version")

	c := DefaultConfig()
	c.Thresholds[TypeEquipment] = 0.55
	require.NoError(t, c.Validate())
	assert.NotEqual(t, a.Version(), c.Version(), "content changes must change the version")
}

func TestConfigBatchConcurrencyFloor(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BatchConcurrency = 0
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.BatchConcurrency)
}

func TestMultiplierForUnconfiguredSource(t *testing.T) {
	cfg := newTestConfig(t)
	delete(cfg.SourceMultipliers, SourceProperNoun)
	assert.InDelta(t, 1.0, cfg.MultiplierFor(SourceProperNoun), 1e-9)
}

func TestPrecedenceOverride(t *testing.T) {
	cfg := newTestConfig(t)
	assert.Equal(t, TypePartNumber.Precedence(), cfg.PrecedenceFor(TypePartNumber))

	cfg.TypePrecedence = map[EntityType]int{TypeLocation: 95}
	assert.Equal(t, 95, cfg.PrecedenceFor(TypeLocation))
}

func TestSupportedTypeDescriptions(t *testing.T) {
	descs := SupportedTypeDescriptions()
	require.Len(t, descs, len(AllEntityTypes))
	for _, d := range descs {
		assert.True(t, d.Type.IsValid())
		assert.NotEmpty(t, d.Description)
	}
}
