package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shortalex12333/Cloud-PMS-sub001/internal/query"
	"github.com/shortalex12333/Cloud-PMS-sub001/internal/rank"
)

type recordingPublisher struct {
	mu        sync.Mutex
	published []*query.Result
}

func (p *recordingPublisher) PublishUnderstoodAsync(res *query.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, res)
}

func newTestRouter(t *testing.T, publisher *recordingPublisher) *gin.Engine {
	t.Helper()

	qcfg := query.DefaultConfig()
	require.NoError(t, qcfg.Validate())
	pipeline, err := query.NewPipeline(qcfg, nil, nil, nil, nil)
	require.NoError(t, err)

	ranker, err := rank.NewRanker(rank.DefaultConfig(), nil, nil)
	require.NoError(t, err)

	deps := RouterDeps{
		Pipeline: pipeline,
		Ranker:   ranker,
		Mode:     gin.TestMode,
		Version:  "test",
	}
	if publisher != nil {
		deps.Publisher = publisher
	}
	return NewRouter(deps)
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUnderstandEndpoint(t *testing.T) {
	pub := &recordingPublisher{}
	router := newTestRouter(t, pub)

	w := doJSON(t, router, http.MethodPost, "/api/v1/query/understand",
		map[string]any{"query": "fuel filter MTU"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var res query.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "fuel filter MTU", res.NormalizedQuery)
	require.Len(t, res.Entities, 2)
	assert.Equal(t, "fuel filter", res.Entities[0].Text)
	assert.Equal(t, "MTU", res.Entities[1].Text)
	assert.NotEmpty(t, res.ConfigVersion)

	require.Len(t, pub.published, 1)
	assert.Equal(t, "fuel filter MTU", pub.published[0].NormalizedQuery)
}

func TestUnderstandRequestIDEcho(t *testing.T) {
	router := newTestRouter(t, nil)

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(map[string]any{"query": "impeller"}))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query/understand", &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
}

func TestUnderstandMissingQuery(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doJSON(t, router, http.MethodPost, "/api/v1/query/understand", map[string]any{})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "COMMON_002", body["code"])
}

func TestUnderstandBlankQuery(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doJSON(t, router, http.MethodPost, "/api/v1/query/understand",
		map[string]any{"query": "   "})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "QRY_001", body["code"])
}

func TestUnderstandNoSignal(t *testing.T) {
	pub := &recordingPublisher{}
	router := newTestRouter(t, pub)

	w := doJSON(t, router, http.MethodPost, "/api/v1/query/understand",
		map[string]any{"query": "hello there everyone"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var body struct {
		Code   string `json:"code"`
		Detail struct {
			NormalizedQuery string `json:"normalized_query"`
			SupportedTypes  []struct {
				Type string `json:"type"`
			} `json:"supported_types"`
		} `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "QRY_003", body.Code)
	assert.Equal(t, "hello there everyone", body.Detail.NormalizedQuery)
	assert.Len(t, body.Detail.SupportedTypes, len(query.AllEntityTypes))

	assert.Empty(t, pub.published, "no-signal queries must not emit events")
}

// ctxCheckedGap fails when invoked with an already-dead context, mimicking a
// remote extractor that honors cancellation.
type ctxCheckedGap struct {
	entities []query.GapEntity
}

func (g *ctxCheckedGap) ExtractGap(ctx context.Context, _ string, _ []query.TypeDescription) ([]query.GapEntity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return g.entities, nil
}

func TestUnderstandSurvivesCallerDisconnect(t *testing.T) {
	qcfg := query.DefaultConfig()
	require.NoError(t, qcfg.Validate())
	gap := &ctxCheckedGap{
		entities: []query.GapEntity{{Text: "grinding noise", Type: query.TypeEquipment, Confidence: 0.95}},
	}
	pipeline, err := query.NewPipeline(qcfg, gap, nil, nil, nil)
	require.NoError(t, err)
	ranker, err := rank.NewRanker(rank.DefaultConfig(), nil, nil)
	require.NoError(t, err)
	router := NewRouter(RouterDeps{Pipeline: pipeline, Ranker: ranker, Mode: gin.TestMode, Version: "test"})

	// A canceled request context stands in for a client that disconnected
	// before the probabilistic stage ran. The collapsed run is shared (and
	// cacheable), so it must complete undegraded anyway.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(map[string]any{"query": "impeller making strange grinding noise"}))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query/understand", &buf).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var res query.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))

	var sawProbabilistic bool
	for _, e := range res.Entities {
		if e.Source == query.SourceProbabilistic {
			sawProbabilistic = true
		}
	}
	assert.True(t, sawProbabilistic, "probabilistic stage must not be starved of its context: %v", res.Entities)
}

func TestUnderstandBatch(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doJSON(t, router, http.MethodPost, "/api/v1/query/understand/batch",
		map[string]any{"queries": []string{"fuel filter MTU", "impeller"}})
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Items []struct {
			Result *query.Result `json:"result"`
			Error  *struct {
				Code string `json:"code"`
			} `json:"error"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Items, 2)
	require.NotNil(t, body.Items[0].Result)
	assert.Len(t, body.Items[0].Result.Entities, 2)
	require.NotNil(t, body.Items[1].Result)
	assert.Len(t, body.Items[1].Result.Entities, 1)
}

func TestUnderstandBatchRejectsEmpty(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doJSON(t, router, http.MethodPost, "/api/v1/query/understand/batch",
		map[string]any{"queries": []string{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRankEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doJSON(t, router, http.MethodPost, "/api/v1/query/rank", map[string]any{
		"query": "fuel filter MTU",
		"candidates": []map[string]any{
			{"id": "doc-1", "table": "documents", "search_text": "annual survey checklist"},
			{"id": "part-1", "table": "parts", "search_text": "MTU fuel filter replacement element"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		NormalizedQuery string `json:"normalized_query"`
		Results         []struct {
			ID        string `json:"id"`
			Breakdown struct {
				Tier  int     `json:"tier"`
				Total float64 `json:"total"`
			} `json:"breakdown"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "fuel filter MTU", body.NormalizedQuery)
	require.Len(t, body.Results, 2)
	assert.Equal(t, "part-1", body.Results[0].ID)
	assert.Greater(t, body.Results[0].Breakdown.Total, body.Results[1].Breakdown.Total)
}

func TestRankRejectsCandidateWithoutID(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doJSON(t, router, http.MethodPost, "/api/v1/query/rank", map[string]any{
		"query": "impeller",
		"candidates": []map[string]any{
			{"table": "parts", "search_text": "impeller kit"},
		},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "RANK_001", body["code"])
}

func TestRankNoSignalWithEmptyPool(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doJSON(t, router, http.MethodPost, "/api/v1/query/rank", map[string]any{
		"query":      "hello there everyone",
		"candidates": []map[string]any{},
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var body struct {
		Code   string `json:"code"`
		Detail struct {
			NormalizedQuery string `json:"normalized_query"`
		} `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "QRY_003", body.Code)
	assert.Equal(t, "hello there everyone", body.Detail.NormalizedQuery)
}

func TestRankZeroEntitiesOverRealPoolStillRanks(t *testing.T) {
	router := newTestRouter(t, nil)

	// Same unrecognized query, but a real pool: this is an ordinary ranking
	// over priors and recency, not the no-signal outcome.
	w := doJSON(t, router, http.MethodPost, "/api/v1/query/rank", map[string]any{
		"query": "hello there everyone",
		"candidates": []map[string]any{
			{"id": "doc-1", "table": "documents", "search_text": "annual survey checklist"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Results []struct {
			ID string `json:"id"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Results, 1)
	assert.Equal(t, "doc-1", body.Results[0].ID)
}

func TestTypesEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doJSON(t, router, http.MethodGet, "/api/v1/query/types", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Types         []query.TypeDescription `json:"types"`
		ConfigVersion string                  `json:"config_version"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Types, len(query.AllEntityTypes))
	assert.NotEmpty(t, body.ConfigVersion)
}

func TestHealthEndpoints(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doJSON(t, router, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])

	w = doJSON(t, router, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
