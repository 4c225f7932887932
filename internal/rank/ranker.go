package rank

import (
	"sort"
	"time"

	"github.com/shortalex12333/Cloud-PMS-sub001/internal/infrastructure/monitoring/logging"
	"github.com/shortalex12333/Cloud-PMS-sub001/internal/infrastructure/monitoring/prometheus"
	"github.com/shortalex12333/Cloud-PMS-sub001/internal/query"
	"github.com/shortalex12333/Cloud-PMS-sub001/pkg/errors"
)

// ---------------------------------------------------------------------------
// Ranker
// ---------------------------------------------------------------------------

// Ranker orders retrieval candidates by a multi-factor explainable score. It
// is a pure function of its inputs plus the injected clock: the same query,
// entities, and pool always produce the same order.
type Ranker struct {
	cfg     *Config
	logger  logging.Logger
	metrics *prometheus.Metrics

	// now is swappable for deterministic recency tests.
	now func() time.Time
}

// NewRanker builds a Ranker from a validated configuration. Logger and
// metrics may be nil.
func NewRanker(cfg *Config, logger logging.Logger, metrics *prometheus.Metrics) (*Ranker, error) {
	if cfg == nil {
		return nil, errors.InvalidParam("rank config is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Ranker{cfg: cfg, logger: logger, metrics: metrics, now: time.Now}, nil
}

// Rank scores, orders, diversifies, and truncates the candidate pool. The
// input slice is not modified; every returned candidate carries a populated
// Breakdown. limit <= 0 falls back to the configured default.
func (r *Ranker) Rank(normalizedQuery string, entities []query.Entity, pool []Candidate, limit int) []Candidate {
	start := r.now()
	if limit <= 0 {
		limit = r.cfg.DefaultLimit
	}
	if r.metrics != nil {
		r.metrics.RankPoolSize.Observe(float64(len(pool)))
	}
	if len(pool) == 0 {
		return []Candidate{}
	}

	intents := DetectIntents(r.cfg, normalizedQuery)
	now := r.now()

	scored := make([]Candidate, len(pool))
	copy(scored, pool)
	for i := range scored {
		matches := matchEntities(r.cfg, &scored[i], entities)
		scoreCandidate(r.cfg, &scored[i], matches, intents, now)
	}

	sortCandidates(scored)
	out := diversify(r.cfg, scored, limit, r.metrics)

	if r.metrics != nil {
		r.metrics.RankDuration.Observe(r.now().Sub(start).Seconds())
	}
	r.logger.Debug("ranked candidate pool",
		logging.Int("pool", len(pool)),
		logging.Int("returned", len(out)),
		logging.Int("intents", len(intents)),
	)
	return out
}

// sortCandidates orders by total score descending with fully deterministic
// tie-breaks: higher match tier, newer UpdatedAt, then ID ascending.
func sortCandidates(cs []Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		si, sj := cs[i].Breakdown.Total(), cs[j].Breakdown.Total()
		if si != sj {
			return si > sj
		}
		if cs[i].Breakdown.Tier != cs[j].Breakdown.Tier {
			return cs[i].Breakdown.Tier > cs[j].Breakdown.Tier
		}
		if !cs[i].UpdatedAt.Equal(cs[j].UpdatedAt) {
			return cs[i].UpdatedAt.After(cs[j].UpdatedAt)
		}
		return cs[i].ID < cs[j].ID
	})
}
