package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/singleflight"

	"github.com/shortalex12333/Cloud-PMS-sub001/internal/infrastructure/monitoring/logging"
	"github.com/shortalex12333/Cloud-PMS-sub001/internal/infrastructure/monitoring/prometheus"
	"github.com/shortalex12333/Cloud-PMS-sub001/internal/interfaces/http/middleware"
	"github.com/shortalex12333/Cloud-PMS-sub001/internal/query"
	"github.com/shortalex12333/Cloud-PMS-sub001/pkg/errors"
)

// EventPublisher is the optional fire-and-forget event sink; nil disables
// event emission.
type EventPublisher interface {
	PublishUnderstoodAsync(res *query.Result)
}

// QueryHandler serves the understanding endpoints.
type QueryHandler struct {
	pipeline  *query.Pipeline
	publisher EventPublisher
	logger    logging.Logger
	metrics   *prometheus.Metrics

	// group collapses concurrent identical requests onto one pipeline run.
	group singleflight.Group
}

// NewQueryHandler builds a QueryHandler. publisher and metrics may be nil.
func NewQueryHandler(pipeline *query.Pipeline, publisher EventPublisher, logger logging.Logger, metrics *prometheus.Metrics) *QueryHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &QueryHandler{pipeline: pipeline, publisher: publisher, logger: logger, metrics: metrics}
}

// UnderstandRequest is the body of POST /api/v1/query/understand.
type UnderstandRequest struct {
	Query        string `json:"query" binding:"required"`
	IncludeTrace bool   `json:"include_trace"`
	SkipCache    bool   `json:"skip_cache"`
}

// noSignalDetail tells the client what the analyzer can recognize when a
// query produced nothing.
type noSignalDetail struct {
	NormalizedQuery string                  `json:"normalized_query"`
	Gate            query.GateOutcome       `json:"gate"`
	SupportedTypes  []query.TypeDescription `json:"supported_types"`
}

// Understand runs the extraction pipeline on one query.
//
// Outcomes: 200 with the result; 400 when the query is empty or too long;
// 422 when a non-empty query yields no entity the system recognizes.
func (h *QueryHandler) Understand(c *gin.Context) {
	var req UnderstandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.Wrap(err, errors.ErrCodeBadRequest, "invalid request body"))
		return
	}

	res, err := h.runShared(c, req)
	if err != nil {
		respondError(c, err)
		return
	}

	if res.NormalizedQuery == "" {
		respondError(c, errors.New(errors.ErrCodeQueryEmpty, "query is empty after normalization"))
		return
	}
	if len(res.Entities) == 0 {
		if h.metrics != nil {
			h.metrics.NoSignalTotal.Inc()
		}
		respondErrorWithDetail(c,
			errors.New(errors.ErrCodeNoSignal, "no recognizable entities in query"),
			noSignalDetail{
				NormalizedQuery: res.NormalizedQuery,
				Gate:            res.Gate,
				SupportedTypes:  query.SupportedTypeDescriptions(),
			},
		)
		return
	}

	if h.publisher != nil {
		h.publisher.PublishUnderstoodAsync(res)
	}
	c.JSON(http.StatusOK, res)
}

// BatchUnderstandRequest is the body of POST /api/v1/query/understand/batch.
type BatchUnderstandRequest struct {
	Queries      []string `json:"queries" binding:"required"`
	IncludeTrace bool     `json:"include_trace"`
	SkipCache    bool     `json:"skip_cache"`
}

// BatchItem is one entry of the batch response; exactly one of Result and
// Error is set.
type BatchItem struct {
	Result *query.Result  `json:"result,omitempty"`
	Error  *ErrorResponse `json:"error,omitempty"`
}

// maxBatchSize bounds one batch request.
const maxBatchSize = 50

// sharedRunTimeout bounds a collapsed pipeline run that outlives its first
// caller.
const sharedRunTimeout = 10 * time.Second

// UnderstandBatch runs the pipeline over up to maxBatchSize queries with the
// pipeline's bounded concurrency. Per-item failures do not fail the batch.
func (h *QueryHandler) UnderstandBatch(c *gin.Context) {
	var req BatchUnderstandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.Wrap(err, errors.ErrCodeBadRequest, "invalid request body"))
		return
	}
	if len(req.Queries) == 0 || len(req.Queries) > maxBatchSize {
		respondError(c, errors.New(errors.ErrCodeValidation,
			fmt.Sprintf("queries must contain between 1 and %d items", maxBatchSize)))
		return
	}

	opts := query.Options{IncludeTrace: req.IncludeTrace, SkipCache: req.SkipCache}
	results, errs := h.pipeline.RunBatch(c.Request.Context(), req.Queries, opts)

	items := make([]BatchItem, len(results))
	for i := range results {
		if errs[i] != nil {
			code := errors.GetCode(errs[i])
			items[i] = BatchItem{Error: &ErrorResponse{Code: code.String(), Message: errs[i].Error()}}
			continue
		}
		items[i] = BatchItem{Result: results[i]}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// Types lists the closed entity-type enum.
func (h *QueryHandler) Types(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"types":          query.SupportedTypeDescriptions(),
		"config_version": h.pipeline.ConfigVersion(),
	})
}

// runShared executes the pipeline, collapsing concurrent identical requests.
// Trace requests bypass sharing since their results differ in shape.
func (h *QueryHandler) runShared(c *gin.Context, req UnderstandRequest) (*query.Result, error) {
	opts := query.Options{IncludeTrace: req.IncludeTrace, SkipCache: req.SkipCache}
	if req.IncludeTrace || req.SkipCache {
		return h.pipeline.Run(c.Request.Context(), req.Query, opts)
	}

	key := h.pipeline.ConfigVersion() + "\x00" + req.Query
	v, err, shared := h.group.Do(key, func() (interface{}, error) {
		// The leader's result is handed to every follower and may be cached,
		// so it must not degrade when the first caller disconnects mid-flight.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), sharedRunTimeout)
		defer cancel()
		return h.pipeline.Run(ctx, req.Query, opts)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		h.logger.Debug("collapsed duplicate in-flight query",
			logging.String("request_id", middleware.GetRequestID(c)))
	}
	return v.(*query.Result), nil
}
