package rank

import (
	"github.com/shortalex12333/Cloud-PMS-sub001/internal/infrastructure/monitoring/prometheus"
)

// diversify walks the scored, ordered candidates and drops any that would
// exceed the per-table or per-parent-document caps, then truncates to limit.
// Dropped candidates never re-enter; the relative order of survivors is the
// score order.
func diversify(cfg *Config, ordered []Candidate, limit int, metrics *prometheus.Metrics) []Candidate {
	perTable := map[string]int{}
	perDoc := map[string]int{}

	out := make([]Candidate, 0, limit)
	for _, c := range ordered {
		if len(out) >= limit {
			break
		}
		if cfg.PerTableCap > 0 && c.Table != "" && perTable[c.Table] >= cfg.PerTableCap {
			if metrics != nil {
				metrics.RankDiversityDrops.WithLabelValues("table").Inc()
			}
			continue
		}
		if cfg.PerDocumentCap > 0 && c.ParentDocID != "" && perDoc[c.ParentDocID] >= cfg.PerDocumentCap {
			if metrics != nil {
				metrics.RankDiversityDrops.WithLabelValues("document").Inc()
			}
			continue
		}
		perTable[c.Table]++
		if c.ParentDocID != "" {
			perDoc[c.ParentDocID]++
		}
		out = append(out, c)
	}
	return out
}
