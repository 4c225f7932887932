package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL,
		WithHTTPClient(srv.Client()),
		WithRetryWait(time.Millisecond, 5*time.Millisecond),
	)
	require.NoError(t, err)
	return c
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient("")
	assert.Error(t, err)

	_, err = NewClient("ftp://example.com")
	assert.Error(t, err)

	c, err := NewClient("http://localhost:8080/")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", c.baseURL)
}

func TestUnderstand(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/query/understand", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		assert.Contains(t, r.Header.Get("User-Agent"), "cpms-go-sdk/")

		var req UnderstandRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "fuel filter MTU", req.Query)

		json.NewEncoder(w).Encode(Result{
			NormalizedQuery: "fuel filter MTU",
			Entities: []Entity{
				{Text: "fuel filter", Type: "equipment", Confidence: 0.95, Source: "gazetteer"},
			},
			ConfigVersion: "abc12345",
		})
	})

	res, err := c.Understand(context.Background(), UnderstandRequest{Query: "fuel filter MTU"})
	require.NoError(t, err)
	assert.Equal(t, "fuel filter MTU", res.NormalizedQuery)
	require.Len(t, res.Entities, 1)
	assert.Equal(t, "fuel filter", res.Entities[0].Text)
}

func TestUnderstandNoSignal(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{
			"code":       "QRY_003",
			"message":    "no recognizable entities in query",
			"request_id": "req-1",
		})
	})

	_, err := c.Understand(context.Background(), UnderstandRequest{Query: "hello"})
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok, "expected *APIError, got %T", err)
	assert.True(t, apiErr.IsNoSignal())
	assert.False(t, apiErr.IsServerError())
	assert.Equal(t, "QRY_003", apiErr.Code)
	assert.Equal(t, "req-1", apiErr.RequestID)
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"code": "COMMON_002", "message": "bad body"})
	})

	_, err := c.Understand(context.Background(), UnderstandRequest{Query: "x"})
	require.Error(t, err)
	assert.EqualValues(t, 1, hits.Load())
}

func TestClientRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(Result{NormalizedQuery: "impeller"})
	})

	res, err := c.Understand(context.Background(), UnderstandRequest{Query: "impeller"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, hits.Load())
	assert.Equal(t, "impeller", res.NormalizedQuery)
}

func TestClientExhaustsRetries(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.Understand(context.Background(), UnderstandRequest{Query: "x"})
	require.Error(t, err)
	assert.EqualValues(t, 3, hits.Load(), "initial attempt plus two retries")
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestRank(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/query/rank", r.URL.Path)
		json.NewEncoder(w).Encode(RankResponse{
			NormalizedQuery: "fuel filter",
			Results: []Candidate{
				{ID: "p1", Table: "parts", Breakdown: &Breakdown{TierPoints: 60, Total: 69.5}},
			},
		})
	})

	res, err := c.Rank(context.Background(), RankRequest{
		Query:      "fuel filter",
		Candidates: []Candidate{{ID: "p1", Table: "parts"}},
	})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	require.NotNil(t, res.Results[0].Breakdown)
	assert.InDelta(t, 69.5, res.Results[0].Breakdown.Total, 1e-9)
}

func TestTypes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/query/types", r.URL.Path)
		json.NewEncoder(w).Encode(TypesResponse{
			Types:         []TypeDescription{{Type: "part_number", Description: "manufacturer part number"}},
			ConfigVersion: "abc12345",
		})
	})

	res, err := c.Types(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Types, 1)
	assert.Equal(t, "part_number", res.Types[0].Type)
}
