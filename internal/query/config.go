package query

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"github.com/shortalex12333/Cloud-PMS-sub001/pkg/errors"
)

// ---------------------------------------------------------------------------
// Configuration snapshot
// ---------------------------------------------------------------------------

// OverlapWeights are the weights of the overlap-resolution score
// 0.5×confidence + 0.3×normalized_span_length + 0.2×type_priority.
type OverlapWeights struct {
	Confidence float64 `json:"confidence" yaml:"confidence" mapstructure:"confidence"`
	SpanLength float64 `json:"span_length" yaml:"span_length" mapstructure:"span_length"`
	TypeRank   float64 `json:"type_rank" yaml:"type_rank" mapstructure:"type_rank"`
}

// Config is the immutable, process-lifetime snapshot consumed by every
// pipeline invocation. It is constructed once at startup (see
// internal/config), validated, and shared freely across concurrent requests
// without locking; nothing in this package mutates it after Validate.
type Config struct {
	// Gazetteer maps each entity type to its curated term list. Multi-word
	// phrases are matched before their constituent words.
	Gazetteer map[EntityType][]string `json:"gazetteer" yaml:"gazetteer" mapstructure:"gazetteer"`

	// Expansions maps lowercase abbreviations and brand short-forms to their
	// expanded text, applied token-wise by the normalizer.
	Expansions map[string]string `json:"expansions" yaml:"expansions" mapstructure:"expansions"`

	// Stopwords are excluded from proper-noun runs and from coverage gaps.
	Stopwords []string `json:"stopwords" yaml:"stopwords" mapstructure:"stopwords"`

	// Thresholds is the minimum confidence to retain an entity, per type.
	// Types absent from the map use DefaultThreshold.
	Thresholds       map[EntityType]float64 `json:"thresholds" yaml:"thresholds" mapstructure:"thresholds"`
	DefaultThreshold float64                `json:"default_threshold" yaml:"default_threshold" mapstructure:"default_threshold"`

	// ProbabilisticThresholds optionally tightens the per-type threshold for
	// probabilistic-sourced entities of the same type.
	ProbabilisticThresholds map[EntityType]float64 `json:"probabilistic_thresholds" yaml:"probabilistic_thresholds" mapstructure:"probabilistic_thresholds"`

	// SourceMultipliers discount each source's base confidence.
	SourceMultipliers map[Source]float64 `json:"source_multipliers" yaml:"source_multipliers" mapstructure:"source_multipliers"`

	// TypePrecedence overrides the built-in precedence table; types absent
	// from the map keep their built-in value.
	TypePrecedence map[EntityType]int `json:"type_precedence" yaml:"type_precedence" mapstructure:"type_precedence"`

	// Overlap are the overlap-resolution score weights.
	Overlap OverlapWeights `json:"overlap" yaml:"overlap" mapstructure:"overlap"`

	// AllowNestedSpans permits a span fully contained in another to survive
	// the merge. Default false: output is strictly non-overlapping.
	AllowNestedSpans bool `json:"allow_nested_spans" yaml:"allow_nested_spans" mapstructure:"allow_nested_spans"`

	// NearDuplicateSimilarity is the minimum textual similarity at which two
	// entities collapse to one.
	NearDuplicateSimilarity float64 `json:"near_duplicate_similarity" yaml:"near_duplicate_similarity" mapstructure:"near_duplicate_similarity"`

	// CoverageSkipThreshold: when deterministic coverage meets or exceeds this
	// fraction the probabilistic stage is skipped.
	CoverageSkipThreshold float64 `json:"coverage_skip_threshold" yaml:"coverage_skip_threshold" mapstructure:"coverage_skip_threshold"`

	// HighValueGapLimit: when a high-value entity was found and the uncovered
	// remainder is at most this many characters, the probabilistic stage is
	// skipped.
	HighValueGapLimit int `json:"high_value_gap_limit" yaml:"high_value_gap_limit" mapstructure:"high_value_gap_limit"`

	// ProbabilisticTimeout bounds the external extraction call.
	ProbabilisticTimeout time.Duration `json:"probabilistic_timeout" yaml:"probabilistic_timeout" mapstructure:"probabilistic_timeout"`

	// MaxQueryLength bounds the raw input; longer queries are rejected at the
	// interface layer before the pipeline runs.
	MaxQueryLength int `json:"max_query_length" yaml:"max_query_length" mapstructure:"max_query_length"`

	// BatchConcurrency bounds RunBatch parallelism.
	BatchConcurrency int `json:"batch_concurrency" yaml:"batch_concurrency" mapstructure:"batch_concurrency"`

	version string
}

// DefaultConfig returns the production defaults, including the built-in
// gazetteer, expansion map, and stopword list. Deployments extend or replace
// the term lists through the configuration file (internal/config).
func DefaultConfig() *Config {
	return &Config{
		Gazetteer:  defaultGazetteer(),
		Expansions: defaultExpansions(),
		Stopwords:  defaultStopwords(),
		Thresholds: map[EntityType]float64{
			TypePartNumber:  0.80,
			TypeFaultCode:   0.75,
			TypeModelCode:   0.75,
			TypeMeasurement: 0.70,
			TypeBrand:       0.65,
			TypeEquipment:   0.60,
			TypeStockStatus: 0.60,
			TypeLocation:    0.55,
			TypeUrgency:     0.55,
		},
		DefaultThreshold: 0.60,
		ProbabilisticThresholds: map[EntityType]float64{
			TypePartNumber: 0.90,
			TypeFaultCode:  0.85,
			TypeEquipment:  0.65,
		},
		SourceMultipliers: map[Source]float64{
			SourcePattern:       1.00,
			SourceGazetteer:     0.95,
			SourceProperNoun:    0.85,
			SourceProbabilistic: 0.70,
		},
		Overlap: OverlapWeights{
			Confidence: 0.5,
			SpanLength: 0.3,
			TypeRank:   0.2,
		},
		AllowNestedSpans:        false,
		NearDuplicateSimilarity: 0.90,
		CoverageSkipThreshold:   0.90,
		HighValueGapLimit:       12,
		ProbabilisticTimeout:    1500 * time.Millisecond,
		MaxQueryLength:          512,
		BatchConcurrency:        4,
	}
}

// Validate checks the snapshot for consistency and freezes its version hash.
// It must be called once before the snapshot is shared.
func (c *Config) Validate() error {
	if c.DefaultThreshold < 0 || c.DefaultThreshold > 1 {
		return errors.New(errors.ErrCodeConfigInvalid, "default_threshold must be in [0, 1]")
	}
	for t, v := range c.Thresholds {
		if !t.IsValid() {
			return errors.New(errors.ErrCodeConfigInvalid, "thresholds: unknown entity type "+string(t))
		}
		if v < 0 || v > 1 {
			return errors.New(errors.ErrCodeConfigInvalid, "thresholds["+string(t)+"] must be in [0, 1]")
		}
	}
	for t := range c.Gazetteer {
		if !t.IsValid() {
			return errors.New(errors.ErrCodeConfigInvalid, "gazetteer: unknown entity type "+string(t))
		}
	}
	for s, v := range c.SourceMultipliers {
		if s.Priority() == 0 {
			return errors.New(errors.ErrCodeConfigInvalid, "source_multipliers: unknown source "+string(s))
		}
		if v <= 0 || v > 1 {
			return errors.New(errors.ErrCodeConfigInvalid, "source_multipliers["+string(s)+"] must be in (0, 1]")
		}
	}
	sum := c.Overlap.Confidence + c.Overlap.SpanLength + c.Overlap.TypeRank
	if sum <= 0 {
		return errors.New(errors.ErrCodeConfigInvalid, "overlap weights must sum to a positive value")
	}
	if c.CoverageSkipThreshold <= 0 || c.CoverageSkipThreshold > 1 {
		return errors.New(errors.ErrCodeConfigInvalid, "coverage_skip_threshold must be in (0, 1]")
	}
	if c.ProbabilisticTimeout <= 0 {
		return errors.New(errors.ErrCodeConfigInvalid, "probabilistic_timeout must be positive")
	}
	if c.MaxQueryLength <= 0 {
		return errors.New(errors.ErrCodeConfigInvalid, "max_query_length must be positive")
	}
	if c.BatchConcurrency <= 0 {
		c.BatchConcurrency = 1
	}
	c.version = c.computeVersion()
	return nil
}

// Version returns the content hash of the snapshot, computed by Validate.
// It participates in cache keys so a configuration change invalidates every
// cached extraction.
func (c *Config) Version() string {
	return c.version
}

// computeVersion hashes a canonical JSON rendering of the snapshot. Map
// iteration order is irrelevant because encoding/json sorts map keys.
func (c *Config) computeVersion() string {
	b, err := json.Marshal(c)
	if err != nil {
		return "unversioned"
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:8])
}

// ThresholdFor returns the retention threshold for an entity of type t
// produced by source s.
func (c *Config) ThresholdFor(t EntityType, s Source) float64 {
	th, ok := c.Thresholds[t]
	if !ok {
		th = c.DefaultThreshold
	}
	if s == SourceProbabilistic {
		if pt, ok := c.ProbabilisticThresholds[t]; ok && pt > th {
			th = pt
		}
	}
	return th
}

// MultiplierFor returns the confidence multiplier for source s (1.0 when
// unconfigured).
func (c *Config) MultiplierFor(s Source) float64 {
	if m, ok := c.SourceMultipliers[s]; ok {
		return m
	}
	return 1.0
}

// PrecedenceFor returns the effective precedence of t, honouring overrides.
func (c *Config) PrecedenceFor(t EntityType) int {
	if p, ok := c.TypePrecedence[t]; ok {
		return p
	}
	return t.Precedence()
}

// StopwordSet returns the stopword list as a lookup set.
func (c *Config) StopwordSet() map[string]bool {
	set := make(map[string]bool, len(c.Stopwords))
	for _, w := range c.Stopwords {
		set[w] = true
	}
	return set
}

// SupportedTypeDescriptions renders the closed enum as {type, description}
// pairs for the probabilistic extraction service, in precedence order.
func SupportedTypeDescriptions() []TypeDescription {
	out := make([]TypeDescription, 0, len(AllEntityTypes))
	for _, t := range AllEntityTypes {
		out = append(out, TypeDescription{Type: t, Description: t.Description()})
	}
	return out
}

// TypeDescription pairs an entity type with its service-facing description.
type TypeDescription struct {
	Type        EntityType `json:"type"`
	Description string     `json:"description"`
}

// sortedGazetteerTerms returns the term list for t sorted by descending
// phrase length (then lexicographically), so multi-word phrases are attempted
// before their constituent words.
func (c *Config) sortedGazetteerTerms(t EntityType) []string {
	terms := append([]string(nil), c.Gazetteer[t]...)
	sort.Slice(terms, func(i, j int) bool {
		if len(terms[i]) != len(terms[j]) {
			return len(terms[i]) > len(terms[j])
		}
		return terms[i] < terms[j]
	})
	return terms
}
