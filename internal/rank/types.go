// Package rank scores and orders externally supplied candidate records
// against the final entity set produced by the query pipeline. Ranking is a
// pure function of (entities, candidate pool, configuration): no I/O, no
// shared mutable state, byte-identical output for identical input.
package rank

import (
	"encoding/json"
	"time"
)

// Candidate is one externally supplied record, already scoped to the caller's
// tenant/permission boundary by the retrieval layer. The core only annotates
// it with a score breakdown; it never persists or mutates stored data.
//
// Every metadata field is optional. A candidate missing the data needed for a
// score component simply scores zero on that component; it is never dropped
// for missing metadata.
type Candidate struct {
	// ID uniquely identifies the record within its source table.
	ID string `json:"id"`

	// Table is the source-table tag, e.g. "parts", "inventory", "documents",
	// "work_orders", "faults", "equipment".
	Table string `json:"table"`

	// ParentDocID groups candidates that belong to one parent document
	// (e.g. chunks of the same manual); used by the per-document
	// diversification cap.
	ParentDocID string `json:"parent_doc_id,omitempty"`

	// Title is the display title.
	Title string `json:"title,omitempty"`

	// Identifiers are exact-match keys: part numbers, fault codes, model
	// designations.
	Identifiers []string `json:"identifiers,omitempty"`

	// SearchText is the record's searchable body text.
	SearchText string `json:"search_text,omitempty"`

	// UpdatedAt is the last modification time; zero means unknown.
	UpdatedAt time.Time `json:"updated_at,omitempty"`

	// Breakdown is populated by the Ranker; nil until ranked.
	Breakdown *Breakdown `json:"breakdown,omitempty"`
}

// MatchTier is the discrete strength of a candidate's best match.
type MatchTier int

const (
	TierNone            MatchTier = 0
	TierFuzzy           MatchTier = 1
	TierTextExact       MatchTier = 2
	TierIdentifierExact MatchTier = 3
)

func (t MatchTier) String() string {
	switch t {
	case TierIdentifierExact:
		return "identifier_exact"
	case TierTextExact:
		return "text_exact"
	case TierFuzzy:
		return "fuzzy"
	default:
		return "none"
	}
}

// Breakdown is the fixed, named set of score components. Total is always
// exactly the sum of the declared components; there are no hidden
// adjustments.
type Breakdown struct {
	Tier             MatchTier `json:"tier"`
	TierPoints       float64   `json:"tier_points"`
	Conjunction      float64   `json:"conjunction"`
	Proximity        float64   `json:"proximity"`
	EntityConfidence float64   `json:"entity_confidence"`
	IntentPrior      float64   `json:"intent_prior"`
	Recency          float64   `json:"recency"`
	NoisePenalty     float64   `json:"noise_penalty"` // zero or negative

	// MatchedEntities lists the distinct entity texts the candidate matched,
	// in query order, for explainability.
	MatchedEntities []string `json:"matched_entities,omitempty"`
}

// Total sums the declared components.
func (b *Breakdown) Total() float64 {
	if b == nil {
		return 0
	}
	return b.TierPoints + b.Conjunction + b.Proximity + b.EntityConfidence +
		b.IntentPrior + b.Recency + b.NoisePenalty
}

// MarshalJSON includes the component sum as "total" so API consumers never
// re-derive it.
func (b *Breakdown) MarshalJSON() ([]byte, error) {
	type alias Breakdown
	return json.Marshal(struct {
		*alias
		Total float64 `json:"total"`
	}{(*alias)(b), b.Total()})
}
