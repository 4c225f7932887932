package rank

import (
	"time"

	"github.com/shortalex12333/Cloud-PMS-sub001/pkg/errors"
)

// Config is the immutable ranking configuration, loaded once at startup and
// shared across concurrent requests.
type Config struct {
	// Tier points: the discrete base score of each match tier. The spread
	// between tiers is deliberately larger than any single bonus cap so tier
	// dominance holds unless bonuses accumulate.
	TierIdentifierExact float64 `json:"tier_identifier_exact" yaml:"tier_identifier_exact" mapstructure:"tier_identifier_exact"`
	TierTextExact       float64 `json:"tier_text_exact" yaml:"tier_text_exact" mapstructure:"tier_text_exact"`
	TierFuzzy           float64 `json:"tier_fuzzy" yaml:"tier_fuzzy" mapstructure:"tier_fuzzy"`

	// ConjunctionPerEntity is the bonus per distinct matched entity beyond
	// the first, capped at ConjunctionCap.
	ConjunctionPerEntity float64 `json:"conjunction_per_entity" yaml:"conjunction_per_entity" mapstructure:"conjunction_per_entity"`
	ConjunctionCap       float64 `json:"conjunction_cap" yaml:"conjunction_cap" mapstructure:"conjunction_cap"`

	// ProximityCap bounds the co-occurrence bonus; the bonus decays with the
	// average token gap between matched entities in the candidate text.
	ProximityCap float64 `json:"proximity_cap" yaml:"proximity_cap" mapstructure:"proximity_cap"`

	// EntityConfidenceWeight scales the aggregated confidence of matched
	// entities.
	EntityConfidenceWeight float64 `json:"entity_confidence_weight" yaml:"entity_confidence_weight" mapstructure:"entity_confidence_weight"`

	// IntentPriors maps a lowercase intent keyword to per-table score deltas.
	IntentPriors map[string]map[string]float64 `json:"intent_priors" yaml:"intent_priors" mapstructure:"intent_priors"`

	// RecencyCap bounds the freshness bonus; RecencyHalfLife is the age at
	// which the bonus halves.
	RecencyCap      float64       `json:"recency_cap" yaml:"recency_cap" mapstructure:"recency_cap"`
	RecencyHalfLife time.Duration `json:"recency_half_life" yaml:"recency_half_life" mapstructure:"recency_half_life"`

	// NoisePenalty is subtracted when a candidate looks like catalog/TOC
	// boilerplate; NoiseMarkers are the lowercase phrases that trigger it.
	NoisePenalty float64  `json:"noise_penalty" yaml:"noise_penalty" mapstructure:"noise_penalty"`
	NoiseMarkers []string `json:"noise_markers" yaml:"noise_markers" mapstructure:"noise_markers"`

	// Diversification: hard caps applied before truncation.
	PerTableCap    int `json:"per_table_cap" yaml:"per_table_cap" mapstructure:"per_table_cap"`
	PerDocumentCap int `json:"per_document_cap" yaml:"per_document_cap" mapstructure:"per_document_cap"`

	// DefaultLimit is the result count when the caller does not specify one.
	DefaultLimit int `json:"default_limit" yaml:"default_limit" mapstructure:"default_limit"`

	// FuzzyTokenOverlap is the fraction of an entity's tokens that must
	// appear in the candidate text for a fuzzy match.
	FuzzyTokenOverlap float64 `json:"fuzzy_token_overlap" yaml:"fuzzy_token_overlap" mapstructure:"fuzzy_token_overlap"`
}

// DefaultConfig returns the production ranking defaults.
func DefaultConfig() *Config {
	return &Config{
		TierIdentifierExact:    100,
		TierTextExact:          60,
		TierFuzzy:              30,
		ConjunctionPerEntity:   12,
		ConjunctionCap:         36,
		ProximityCap:           20,
		EntityConfidenceWeight: 10,
		IntentPriors: map[string]map[string]float64{
			"manual":       {"documents": 12, "parts": -2},
			"guide":        {"documents": 10},
			"procedure":    {"documents": 10, "work_orders": 6},
			"schematic":    {"documents": 12},
			"drawing":      {"documents": 10},
			"inventory":    {"inventory": 12, "parts": 6},
			"stock":        {"inventory": 12, "parts": 6},
			"spare":        {"inventory": 8, "parts": 8},
			"reorder":      {"inventory": 12},
			"fault":        {"faults": 12, "work_orders": 6, "documents": 4},
			"alarm":        {"faults": 12, "work_orders": 4},
			"troubleshoot": {"faults": 10, "documents": 8},
			"maintenance":  {"work_orders": 10},
			"service":      {"work_orders": 8},
			"overhaul":     {"work_orders": 8},
		},
		RecencyCap:      8,
		RecencyHalfLife: 180 * 24 * time.Hour,
		NoisePenalty:    25,
		NoiseMarkers: []string{
			"table of contents",
			"intentionally left blank",
			"list of figures",
			"list of tables",
			"revision history",
			"index of sections",
		},
		PerTableCap:       4,
		PerDocumentCap:    2,
		DefaultLimit:      20,
		FuzzyTokenOverlap: 0.5,
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.TierIdentifierExact <= c.TierTextExact || c.TierTextExact <= c.TierFuzzy || c.TierFuzzy <= 0 {
		return errors.New(errors.ErrCodeRankConfig, "tier points must be strictly decreasing and positive")
	}
	if c.ConjunctionPerEntity < 0 || c.ConjunctionCap < 0 || c.ProximityCap < 0 || c.RecencyCap < 0 {
		return errors.New(errors.ErrCodeRankConfig, "bonus values must be non-negative")
	}
	if c.NoisePenalty < 0 {
		return errors.New(errors.ErrCodeRankConfig, "noise_penalty must be non-negative (it is subtracted)")
	}
	if c.PerTableCap <= 0 || c.PerDocumentCap <= 0 {
		return errors.New(errors.ErrCodeRankConfig, "diversification caps must be positive")
	}
	if c.DefaultLimit <= 0 {
		return errors.New(errors.ErrCodeRankConfig, "default_limit must be positive")
	}
	if c.FuzzyTokenOverlap <= 0 || c.FuzzyTokenOverlap > 1 {
		return errors.New(errors.ErrCodeRankConfig, "fuzzy_token_overlap must be in (0, 1]")
	}
	return nil
}
