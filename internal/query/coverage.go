package query

import (
	"sort"
	"strings"
)

// ---------------------------------------------------------------------------
// Coverage analysis
// ---------------------------------------------------------------------------

// Gate decision reasons, exported for metrics labels and tests.
const (
	GateInvoked          = "invoked"
	GateSkippedCoverage  = "skipped_coverage"
	GateSkippedHighValue = "skipped_high_value"
	GateSkippedStopwords = "skipped_stopwords"
	GateSkippedEmptyGap  = "skipped_empty_gap"
)

// Coverage returns the fraction of non-space bytes of text covered by the
// entity spans. Overlapping spans are merged first so nothing is counted
// twice. Empty text yields 0.
func Coverage(text string, entities []Entity) float64 {
	total := 0
	for i := 0; i < len(text); i++ {
		if text[i] != ' ' {
			total++
		}
	}
	if total == 0 {
		return 0
	}

	covered := 0
	for _, iv := range mergedIntervals(entities) {
		for i := iv.Start; i < iv.End && i < len(text); i++ {
			if text[i] != ' ' {
				covered++
			}
		}
	}
	return float64(covered) / float64(total)
}

// mergedIntervals returns the union of all entity spans as sorted,
// non-overlapping intervals.
func mergedIntervals(entities []Entity) []Span {
	if len(entities) == 0 {
		return nil
	}
	spans := make([]Span, 0, len(entities))
	for _, e := range entities {
		spans = append(spans, e.Span)
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })

	merged := []Span{spans[0]}
	for _, sp := range spans[1:] {
		last := &merged[len(merged)-1]
		if sp.Start <= last.End {
			if sp.End > last.End {
				last.End = sp.End
			}
			continue
		}
		merged = append(merged, sp)
	}
	return merged
}

// AnalyzeGate decides whether the probabilistic stage is worth invoking and,
// if so, produces the uncovered gap text to hand it. The gate only bounds
// cost and latency; it never affects what the deterministic stage already
// found.
func AnalyzeGate(cfg *Config, text string, entities []Entity) GateOutcome {
	cov := Coverage(text, entities)
	out := GateOutcome{Coverage: cov}

	if cov >= cfg.CoverageSkipThreshold {
		out.Reason = GateSkippedCoverage
		return out
	}

	gapTokens := uncoveredTokens(text, entities)
	if len(gapTokens) == 0 {
		out.Reason = GateSkippedEmptyGap
		return out
	}

	// Remaining gap judged low-value when a structured identifier was already
	// found and the gap is short.
	if hasHighValueEntity(entities) && gapLength(gapTokens) <= cfg.HighValueGapLimit {
		out.Reason = GateSkippedHighValue
		return out
	}

	stopwords := cfg.StopwordSet()
	allStop := true
	for _, t := range gapTokens {
		if !stopwords[strings.ToLower(t)] {
			allStop = false
			break
		}
	}
	if allStop {
		out.Reason = GateSkippedStopwords
		return out
	}

	out.Invoked = true
	out.Reason = GateInvoked
	out.GapText = strings.Join(gapTokens, " ")
	return out
}

// uncoveredTokens returns the tokens of text not overlapped by any entity
// span, punctuation-trimmed, in query order.
func uncoveredTokens(text string, entities []Entity) []string {
	intervals := mergedIntervals(entities)
	var out []string
	for _, tok := range tokenize(text) {
		trimmed := trimTokenPunct(tok)
		if trimmed.text == "" {
			continue
		}
		sp := Span{Start: trimmed.start, End: trimmed.end}
		covered := false
		for _, iv := range intervals {
			if iv.Overlaps(sp) {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, trimmed.text)
		}
	}
	return out
}

func hasHighValueEntity(entities []Entity) bool {
	for _, e := range entities {
		if e.Type.HighValue() {
			return true
		}
	}
	return false
}

func gapLength(tokens []string) int {
	n := 0
	for _, t := range tokens {
		n += len(t)
	}
	if len(tokens) > 1 {
		n += len(tokens) - 1
	}
	return n
}
