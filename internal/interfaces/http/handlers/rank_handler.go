package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shortalex12333/Cloud-PMS-sub001/internal/infrastructure/monitoring/logging"
	"github.com/shortalex12333/Cloud-PMS-sub001/internal/query"
	"github.com/shortalex12333/Cloud-PMS-sub001/internal/rank"
	"github.com/shortalex12333/Cloud-PMS-sub001/pkg/errors"
)

// RankHandler serves candidate ranking.
type RankHandler struct {
	pipeline *query.Pipeline
	ranker   *rank.Ranker
	logger   logging.Logger
}

// NewRankHandler builds a RankHandler.
func NewRankHandler(pipeline *query.Pipeline, ranker *rank.Ranker, logger logging.Logger) *RankHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &RankHandler{pipeline: pipeline, ranker: ranker, logger: logger}
}

// RankRequest is the body of POST /api/v1/query/rank. Entities may be
// supplied directly (e.g. from a prior understand call); when omitted, the
// pipeline derives them from Query first.
type RankRequest struct {
	Query      string           `json:"query" binding:"required"`
	Entities   []query.Entity   `json:"entities"`
	Candidates []rank.Candidate `json:"candidates" binding:"required"`
	Limit      int              `json:"limit"`
}

// RankResponse carries the ordered candidates with their score breakdowns.
type RankResponse struct {
	NormalizedQuery string           `json:"normalized_query"`
	Results         []rank.Candidate `json:"results"`
	ConfigVersion   string           `json:"config_version"`
}

// maxRankPool bounds one ranking request.
const maxRankPool = 500

// Rank orders the supplied candidate pool against the query. A pool that
// matches nothing still ranks (on priors and recency alone); ranking never
// fails for missing candidate metadata.
func (h *RankHandler) Rank(c *gin.Context) {
	var req RankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.Wrap(err, errors.ErrCodeBadRequest, "invalid request body"))
		return
	}
	if len(req.Candidates) > maxRankPool {
		respondError(c, errors.New(errors.ErrCodeValidation,
			fmt.Sprintf("candidate pool exceeds %d items", maxRankPool)))
		return
	}
	for i := range req.Candidates {
		if req.Candidates[i].ID == "" {
			respondError(c, errors.New(errors.ErrCodeCandidateInvalid,
				fmt.Sprintf("candidate %d has no id", i)))
			return
		}
	}

	normalized := req.Query
	entities := req.Entities
	var gate query.GateOutcome
	if entities == nil {
		res, err := h.pipeline.Run(c.Request.Context(), req.Query, query.Options{})
		if err != nil {
			respondError(c, err)
			return
		}
		normalized = res.NormalizedQuery
		entities = res.Entities
		gate = res.Gate
	}

	// Nothing recognized and nothing to rank is a distinct outcome from an
	// empty result over a real pool; the client should rephrase, not page.
	if len(entities) == 0 && len(req.Candidates) == 0 {
		respondErrorWithDetail(c,
			errors.New(errors.ErrCodeNoSignal, "no recognizable entities and no candidates to rank"),
			noSignalDetail{
				NormalizedQuery: normalized,
				Gate:            gate,
				SupportedTypes:  query.SupportedTypeDescriptions(),
			},
		)
		return
	}

	ranked := h.ranker.Rank(normalized, entities, req.Candidates, req.Limit)
	c.JSON(http.StatusOK, RankResponse{
		NormalizedQuery: normalized,
		Results:         ranked,
		ConfigVersion:   h.pipeline.ConfigVersion(),
	})
}
