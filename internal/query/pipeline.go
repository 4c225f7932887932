package query

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/shortalex12333/Cloud-PMS-sub001/internal/infrastructure/monitoring/logging"
	"github.com/shortalex12333/Cloud-PMS-sub001/internal/infrastructure/monitoring/prometheus"
	"github.com/shortalex12333/Cloud-PMS-sub001/pkg/errors"
)

// ---------------------------------------------------------------------------
// External collaborator boundaries
// ---------------------------------------------------------------------------

// GapEntity is one {text, type, confidence} triple returned by the
// probabilistic extraction service. The service reports no offsets; the
// pipeline re-anchors the text against the normalized query.
type GapEntity struct {
	Text       string     `json:"text"`
	Type       EntityType `json:"type"`
	Confidence float64    `json:"confidence"`
}

// GapExtractor is the boundary to the external language-understanding
// service. Implementations should return a typed *errors.AppError on
// failure; the pipeline downgrades every error to "zero entities from this
// stage" and never lets it fail the run.
type GapExtractor interface {
	ExtractGap(ctx context.Context, gapText string, supported []TypeDescription) ([]GapEntity, error)
}

// ResultCache stores extraction results keyed by (normalized query, config
// version). Implementations must treat failures as misses; the pipeline
// always recomputes on a miss.
type ResultCache interface {
	Get(ctx context.Context, key string) (*Result, bool)
	Set(ctx context.Context, key string, res *Result)
}

// ---------------------------------------------------------------------------
// Pipeline
// ---------------------------------------------------------------------------

// Options tunes a single pipeline run.
type Options struct {
	// IncludeTrace retains pre-merge candidates on the result. Traced runs
	// bypass the cache so the trace always reflects a real execution.
	IncludeTrace bool

	// SkipCache forces recomputation.
	SkipCache bool
}

// Pipeline executes the fixed stage order: normalize → deterministic extract
// → coverage gate → (probabilistic extract) → merge. One Pipeline serves all
// concurrent requests; it holds no per-request state and its configuration
// snapshot is immutable.
type Pipeline struct {
	cfg     *Config
	det     *DeterministicExtractor
	gap     GapExtractor
	cache   ResultCache
	logger  logging.Logger
	metrics *prometheus.Metrics
}

// NewPipeline wires a pipeline. gap, cache, and metrics may be nil: the
// probabilistic stage is then skipped, caching disabled, and metrics dropped.
func NewPipeline(cfg *Config, gap GapExtractor, cache ResultCache, logger logging.Logger, metrics *prometheus.Metrics) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.InvalidParam("config snapshot is required")
	}
	if cfg.Version() == "" {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "config snapshot must be validated before use")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Pipeline{
		cfg:     cfg,
		det:     NewDeterministicExtractor(cfg),
		gap:     gap,
		cache:   cache,
		logger:  logger.Named("pipeline"),
		metrics: metrics,
	}, nil
}

// ConfigVersion returns the version hash of the active snapshot.
func (p *Pipeline) ConfigVersion() string { return p.cfg.Version() }

// MaxQueryLength returns the configured raw-input bound for interface-layer
// validation.
func (p *Pipeline) MaxQueryLength() int { return p.cfg.MaxQueryLength }

// Run executes the pipeline for one raw query. All spans in the result index
// into Result.NormalizedQuery. Run fails only on over-length input; every
// probabilistic-stage failure degrades to a deterministic-only result.
//
// Caller-initiated cancellation aborts only the pending external call; the
// deterministic stages complete regardless.
func (p *Pipeline) Run(ctx context.Context, rawQuery string, opts Options) (*Result, error) {
	if len(rawQuery) > p.cfg.MaxQueryLength {
		return nil, errors.New(errors.ErrCodeQueryTooLong, "query exceeds maximum length").
			WithDetail("limit=" + strconv.Itoa(p.cfg.MaxQueryLength))
	}

	res := &Result{ConfigVersion: p.cfg.Version()}

	// Stage 1: normalize.
	t0 := time.Now()
	normalized := Normalize(rawQuery, p.cfg.Expansions)
	p.recordStage(res, "normalize", time.Since(t0))
	res.NormalizedQuery = normalized

	if normalized == "" {
		res.Entities = []Entity{}
		res.Gate = GateOutcome{Reason: GateSkippedEmptyGap}
		return res, nil
	}

	cacheKey := resultCacheKey(normalized, p.cfg.Version())
	if p.cache != nil && !opts.SkipCache && !opts.IncludeTrace {
		if cached, ok := p.cache.Get(ctx, cacheKey); ok {
			if p.metrics != nil {
				p.metrics.CacheHits.Inc()
			}
			return cached, nil
		}
		if p.metrics != nil {
			p.metrics.CacheMisses.Inc()
		}
	}

	// Stage 2: deterministic extraction. No I/O; never fails.
	t0 = time.Now()
	deterministic := p.det.Extract(normalized)
	p.recordStage(res, "deterministic", time.Since(t0))

	// Stage 3: coverage gate.
	t0 = time.Now()
	gate := AnalyzeGate(p.cfg, normalized, deterministic)
	if p.gap == nil && gate.Invoked {
		gate.Invoked = false
		gate.Reason = GateSkippedEmptyGap
		gate.GapText = ""
	}
	res.Gate = gate
	p.recordStage(res, "coverage", time.Since(t0))
	p.metrics.RecordGate(gate.Reason)

	// Stage 4: probabilistic extraction (optional, bounded, degradable).
	var probabilistic []Entity
	var unanchored []Entity
	if gate.Invoked {
		t0 = time.Now()
		probabilistic, unanchored = p.runProbabilistic(ctx, normalized, gate.GapText, deterministic)
		p.recordStage(res, "probabilistic", time.Since(t0))
	}

	// Stage 5: merge & resolve.
	t0 = time.Now()
	merged := Merge(p.cfg, append(append([]Entity{}, deterministic...), probabilistic...))
	p.recordStage(res, "merge", time.Since(t0))

	res.Entities = merged
	if opts.IncludeTrace {
		res.Trace = &Trace{
			Deterministic: deterministic,
			Probabilistic: probabilistic,
			Unanchored:    unanchored,
		}
	}

	p.observeEntities(merged)

	if p.cache != nil && !opts.SkipCache && !opts.IncludeTrace {
		p.cache.Set(ctx, cacheKey, res)
	}
	return res, nil
}

// RunBatch executes Run for each query with bounded concurrency. Individual
// failures surface in the parallel errs slice; one bad query never aborts
// the batch.
func (p *Pipeline) RunBatch(ctx context.Context, queries []string, opts Options) ([]*Result, []error) {
	results := make([]*Result, len(queries))
	errs := make([]error, len(queries))
	if len(queries) == 0 {
		return results, errs
	}

	sem := semaphore.NewWeighted(int64(p.cfg.BatchConcurrency))
	var wg sync.WaitGroup
	for i, q := range queries {
		if err := sem.Acquire(ctx, 1); err != nil {
			errs[i] = errors.Wrap(err, errors.ErrCodeTimeout, "batch canceled")
			continue
		}
		wg.Add(1)
		go func(idx int, raw string) {
			defer wg.Done()
			defer sem.Release(1)
			results[idx], errs[idx] = p.Run(ctx, raw, opts)
		}(i, q)
	}
	wg.Wait()
	return results, errs
}

// runProbabilistic calls the external service with a bounded timeout and
// re-anchors its span-less results into the normalized query. Every failure
// mode degrades to an empty contribution.
func (p *Pipeline) runProbabilistic(ctx context.Context, normalized, gapText string, claimed []Entity) (anchored, unanchored []Entity) {
	callCtx, cancel := context.WithTimeout(ctx, p.cfg.ProbabilisticTimeout)
	defer cancel()

	raw, err := p.gap.ExtractGap(callCtx, gapText, SupportedTypeDescriptions())
	if err != nil {
		reason := errors.GetCode(err)
		p.logger.Warn("probabilistic extraction degraded to empty result",
			logging.String("reason", reason.String()),
			logging.Err(err),
		)
		p.metrics.RecordExtractorFailure(reason.String())
		return nil, nil
	}

	mult := p.cfg.MultiplierFor(SourceProbabilistic)
	taken := &spanSet{}
	for _, e := range claimed {
		taken.claim(e.Span)
	}

	for _, g := range raw {
		if g.Text == "" || !g.Type.IsValid() {
			continue
		}
		conf := g.Confidence * mult
		sp, ok := anchorText(normalized, g.Text, taken)
		if !ok {
			unanchored = append(unanchored, Entity{
				Text:       g.Text,
				Type:       g.Type,
				Confidence: conf,
				Source:     SourceProbabilistic,
			})
			continue
		}
		taken.claim(sp)
		anchored = append(anchored, Entity{
			Text:       normalized[sp.Start:sp.End],
			Type:       g.Type,
			Span:       sp,
			Confidence: conf,
			Source:     SourceProbabilistic,
		})
	}
	return anchored, unanchored
}

// anchorText locates the first case-insensitive occurrence of text in the
// normalized query that does not collide with an already-claimed span.
func anchorText(normalized, text string, taken *spanSet) (Span, bool) {
	lowerQuery := lowerAligned(normalized)
	lowerText := lowerAligned(strings.TrimSpace(text))
	if lowerText == "" {
		return Span{}, false
	}
	from := 0
	for {
		idx := strings.Index(lowerQuery[from:], lowerText)
		if idx < 0 {
			return Span{}, false
		}
		sp := Span{Start: from + idx, End: from + idx + len(lowerText)}
		if !taken.overlaps(sp) && isWordBoundary(lowerQuery, sp.Start, sp.End) {
			return sp, true
		}
		from = sp.Start + 1
	}
}

func (p *Pipeline) recordStage(res *Result, stage string, d time.Duration) {
	res.Timings = append(res.Timings, StageTiming{Stage: stage, Duration: d})
	p.metrics.ObserveStage(stage, d)
}

func (p *Pipeline) observeEntities(entities []Entity) {
	if p.metrics == nil {
		return
	}
	counts := map[Source]int{}
	for _, e := range entities {
		counts[e.Source]++
	}
	for _, s := range []Source{SourcePattern, SourceGazetteer, SourceProperNoun, SourceProbabilistic} {
		p.metrics.EntitiesFound.WithLabelValues(string(s)).Observe(float64(counts[s]))
	}
}

// resultCacheKey hashes (normalized query, config version) into a stable key.
func resultCacheKey(normalized, version string) string {
	sum := sha256.Sum256([]byte(version + "\x00" + normalized))
	return "cpms:query:extract:" + hex.EncodeToString(sum[:16])
}

