package query

import (
	"sort"
	"strings"
)

// ---------------------------------------------------------------------------
// Entity merge & overlap resolution
// ---------------------------------------------------------------------------

// Merge deduplicates and resolves the union of deterministic and
// probabilistic entities into the final, guaranteed non-overlapping entity
// set (nested spans excepted when cfg.AllowNestedSpans).
//
// Processing order is deterministic: candidates are sorted by span start,
// then source priority, then type precedence, then text, so identical input
// and configuration always produce byte-identical output.
func Merge(cfg *Config, entities []Entity) []Entity {
	if len(entities) == 0 {
		return []Entity{}
	}

	sorted := make([]Entity, len(entities))
	copy(sorted, entities)
	sortEntities(cfg, sorted)

	collapsed := collapseNearDuplicates(cfg, sorted)
	resolved := resolveOverlapClusters(cfg, collapsed)

	filtered := resolved[:0]
	for _, e := range resolved {
		if e.Confidence >= cfg.ThresholdFor(e.Type, e.Source) {
			filtered = append(filtered, e)
		}
	}

	out := make([]Entity, len(filtered))
	copy(out, filtered)
	sort.Slice(out, func(i, j int) bool { return out[i].Span.Start < out[j].Span.Start })
	return out
}

func sortEntities(cfg *Config, entities []Entity) {
	sort.SliceStable(entities, func(i, j int) bool {
		a, b := entities[i], entities[j]
		if a.Span.Start != b.Span.Start {
			return a.Span.Start < b.Span.Start
		}
		if a.Source.Priority() != b.Source.Priority() {
			return a.Source.Priority() > b.Source.Priority()
		}
		if cfg.PrecedenceFor(a.Type) != cfg.PrecedenceFor(b.Type) {
			return cfg.PrecedenceFor(a.Type) > cfg.PrecedenceFor(b.Type)
		}
		return a.Text < b.Text
	})
}

// collapseNearDuplicates removes case/whitespace variants: when two entities
// overlap and their folded texts are sufficiently similar, the one with the
// higher confidence survives; ties break toward the longer span.
func collapseNearDuplicates(cfg *Config, entities []Entity) []Entity {
	dropped := make([]bool, len(entities))
	for i := 0; i < len(entities); i++ {
		if dropped[i] {
			continue
		}
		for j := i + 1; j < len(entities); j++ {
			if dropped[j] {
				continue
			}
			if !entities[i].Span.Overlaps(entities[j].Span) {
				// Sorted by start: nothing further overlaps i either.
				if entities[j].Span.Start >= entities[i].Span.End {
					break
				}
				continue
			}
			if textSimilarity(entities[i].Text, entities[j].Text) < cfg.NearDuplicateSimilarity {
				continue
			}
			if loser(entities[i], entities[j]) == i {
				dropped[i] = true
				break
			}
			dropped[j] = true
		}
	}

	out := entities[:0]
	for i, e := range entities {
		if !dropped[i] {
			out = append(out, e)
		}
	}
	return out
}

// loser returns the index (i=0, j=1 mapped onto the caller's indices) of the
// entity to drop: lower confidence first, shorter span second.
func loser(a, b Entity) int {
	if a.Confidence != b.Confidence {
		if a.Confidence < b.Confidence {
			return 0
		}
		return 1
	}
	if a.Span.Len() < b.Span.Len() {
		return 0
	}
	return 1
}

// textSimilarity is a normalized similarity in [0, 1] over the folded texts:
// 1 − levenshtein/maxLen. Case and whitespace differences fold away first.
func textSimilarity(a, b string) float64 {
	fa := foldText(a)
	fb := foldText(b)
	if fa == fb {
		return 1.0
	}
	maxLen := len(fa)
	if len(fb) > maxLen {
		maxLen = len(fb)
	}
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(fa, fb))/float64(maxLen)
}

func foldText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// resolveOverlapClusters groups mutually overlapping spans into clusters and
// keeps only the top scorer per cluster, scored by the configured weighted
// combination of confidence, normalized span length, and type precedence.
// When nested spans are permitted, cluster members fully contained in the
// winner also survive.
func resolveOverlapClusters(cfg *Config, entities []Entity) []Entity {
	if len(entities) <= 1 {
		return entities
	}

	var out []Entity
	i := 0
	for i < len(entities) {
		// Grow the cluster: entities sorted by start, the cluster extends as
		// long as the next span starts before the cluster's max end.
		clusterEnd := entities[i].Span.End
		j := i + 1
		for j < len(entities) && entities[j].Span.Start < clusterEnd {
			if entities[j].Span.End > clusterEnd {
				clusterEnd = entities[j].Span.End
			}
			j++
		}
		cluster := entities[i:j]

		if len(cluster) == 1 {
			out = append(out, cluster[0])
			i = j
			continue
		}

		winner := pickClusterWinner(cfg, cluster)
		out = append(out, winner)

		if cfg.AllowNestedSpans {
			for _, e := range cluster {
				if e != winner && winner.Span.Contains(e.Span) {
					out = append(out, e)
				}
			}
		}
		i = j
	}
	return out
}

// pickClusterWinner computes the weighted overlap score for every cluster
// member and returns the top scorer. Score ties fall to the type-precedence
// table, then source priority, then earlier span start.
func pickClusterWinner(cfg *Config, cluster []Entity) Entity {
	maxLen := 0
	for _, e := range cluster {
		if e.Span.Len() > maxLen {
			maxLen = e.Span.Len()
		}
	}
	maxPrec := 1
	for _, t := range AllEntityTypes {
		if p := cfg.PrecedenceFor(t); p > maxPrec {
			maxPrec = p
		}
	}

	best := cluster[0]
	bestScore := overlapScore(cfg, cluster[0], maxLen, maxPrec)
	for _, e := range cluster[1:] {
		s := overlapScore(cfg, e, maxLen, maxPrec)
		switch {
		case s > bestScore:
			best, bestScore = e, s
		case s == bestScore:
			if betterOnTie(cfg, e, best) {
				best = e
			}
		}
	}
	return best
}

func overlapScore(cfg *Config, e Entity, maxLen, maxPrec int) float64 {
	lengthNorm := 0.0
	if maxLen > 0 {
		lengthNorm = float64(e.Span.Len()) / float64(maxLen)
	}
	precNorm := float64(cfg.PrecedenceFor(e.Type)) / float64(maxPrec)
	return cfg.Overlap.Confidence*e.Confidence +
		cfg.Overlap.SpanLength*lengthNorm +
		cfg.Overlap.TypeRank*precNorm
}

func betterOnTie(cfg *Config, a, b Entity) bool {
	if cfg.PrecedenceFor(a.Type) != cfg.PrecedenceFor(b.Type) {
		return cfg.PrecedenceFor(a.Type) > cfg.PrecedenceFor(b.Type)
	}
	if a.Source.Priority() != b.Source.Priority() {
		return a.Source.Priority() > b.Source.Priority()
	}
	return a.Span.Start < b.Span.Start
}
