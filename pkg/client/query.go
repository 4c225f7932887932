package client

import (
	"context"
	"net/http"
	"time"
)

// ---------------------------------------------------------------------------
// Wire types
// ---------------------------------------------------------------------------

// Span locates an entity in the normalized query, as byte offsets.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Entity is one recognized reference in a query.
type Entity struct {
	Text       string  `json:"text"`
	Type       string  `json:"type"`
	Span       Span    `json:"span"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// GateOutcome explains whether the probabilistic stage ran.
type GateOutcome struct {
	Coverage float64 `json:"coverage"`
	Invoked  bool    `json:"invoked"`
	Reason   string  `json:"reason"`
	GapText  string  `json:"gap_text,omitempty"`
}

// StageTiming records the wall time of one pipeline stage.
type StageTiming struct {
	Stage    string        `json:"stage"`
	Duration time.Duration `json:"duration"`
}

// Trace holds the pre-merge candidates per extraction stage.
type Trace struct {
	Deterministic []Entity `json:"deterministic"`
	Probabilistic []Entity `json:"probabilistic"`
	Unanchored    []Entity `json:"unanchored,omitempty"`
}

// Result is the output of one understand call.
type Result struct {
	NormalizedQuery string        `json:"normalized_query"`
	Entities        []Entity      `json:"entities"`
	Gate            GateOutcome   `json:"gate"`
	Timings         []StageTiming `json:"timings"`
	Trace           *Trace        `json:"trace,omitempty"`
	ConfigVersion   string        `json:"config_version"`
}

// Candidate is one retrieval result submitted for ranking.
type Candidate struct {
	ID          string     `json:"id"`
	Table       string     `json:"table"`
	ParentDocID string     `json:"parent_doc_id,omitempty"`
	Title       string     `json:"title"`
	Identifiers []string   `json:"identifiers,omitempty"`
	SearchText  string     `json:"search_text"`
	UpdatedAt   time.Time  `json:"updated_at,omitempty"`
	Breakdown   *Breakdown `json:"breakdown,omitempty"`
}

// Breakdown itemizes a ranked candidate's score.
type Breakdown struct {
	Tier             int      `json:"tier"`
	TierPoints       float64  `json:"tier_points"`
	Conjunction      float64  `json:"conjunction"`
	Proximity        float64  `json:"proximity"`
	EntityConfidence float64  `json:"entity_confidence"`
	IntentPrior      float64  `json:"intent_prior"`
	Recency          float64  `json:"recency"`
	NoisePenalty     float64  `json:"noise_penalty"`
	MatchedEntities  []string `json:"matched_entities,omitempty"`
	Total            float64  `json:"total"`
}

// TypeDescription pairs an entity type with its description.
type TypeDescription struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// ---------------------------------------------------------------------------
// Requests and responses
// ---------------------------------------------------------------------------

// UnderstandRequest is the body of Understand.
type UnderstandRequest struct {
	Query        string `json:"query"`
	IncludeTrace bool   `json:"include_trace"`
	SkipCache    bool   `json:"skip_cache"`
}

// BatchItem is one entry of a batch response.
type BatchItem struct {
	Result *Result `json:"result,omitempty"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type batchResponse struct {
	Items []BatchItem `json:"items"`
}

// RankRequest is the body of Rank.
type RankRequest struct {
	Query      string      `json:"query"`
	Entities   []Entity    `json:"entities,omitempty"`
	Candidates []Candidate `json:"candidates"`
	Limit      int         `json:"limit,omitempty"`
}

// RankResponse carries the ordered candidates.
type RankResponse struct {
	NormalizedQuery string      `json:"normalized_query"`
	Results         []Candidate `json:"results"`
	ConfigVersion   string      `json:"config_version"`
}

// TypesResponse lists the entity types the service recognizes.
type TypesResponse struct {
	Types         []TypeDescription `json:"types"`
	ConfigVersion string            `json:"config_version"`
}

// ---------------------------------------------------------------------------
// Operations
// ---------------------------------------------------------------------------

// Understand extracts entities from one query. A query the service cannot
// interpret returns an *APIError with IsNoSignal() true.
func (c *Client) Understand(ctx context.Context, req UnderstandRequest) (*Result, error) {
	var res Result
	if err := c.do(ctx, http.MethodPost, "/api/v1/query/understand", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// UnderstandBatch extracts entities from several queries in one call.
func (c *Client) UnderstandBatch(ctx context.Context, queries []string) ([]BatchItem, error) {
	body := map[string]interface{}{"queries": queries}
	var res batchResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/query/understand/batch", body, &res); err != nil {
		return nil, err
	}
	return res.Items, nil
}

// Rank orders a candidate pool against a query.
func (c *Client) Rank(ctx context.Context, req RankRequest) (*RankResponse, error) {
	var res RankResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/query/rank", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Types lists the closed entity-type enum.
func (c *Client) Types(ctx context.Context) (*TypesResponse, error) {
	var res TypesResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/query/types", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
