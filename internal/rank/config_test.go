package rank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shortalex12333/Cloud-PMS-sub001/pkg/errors"
)

func TestDefaultConfigValidates(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestConfigValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"tier inversion", func(c *Config) { c.TierTextExact = c.TierIdentifierExact + 1 }},
		{"non-positive fuzzy tier", func(c *Config) { c.TierFuzzy = 0 }},
		{"negative bonus", func(c *Config) { c.ProximityCap = -1 }},
		{"negative noise penalty", func(c *Config) { c.NoisePenalty = -5 }},
		{"zero table cap", func(c *Config) { c.PerTableCap = 0 }},
		{"zero document cap", func(c *Config) { c.PerDocumentCap = 0 }},
		{"zero default limit", func(c *Config) { c.DefaultLimit = 0 }},
		{"overlap above one", func(c *Config) { c.FuzzyTokenOverlap = 1.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeRankConfig, errors.GetCode(err))
		})
	}
}
