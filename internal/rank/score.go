package rank

import (
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/shortalex12333/Cloud-PMS-sub001/internal/query"
)

// ---------------------------------------------------------------------------
// Candidate-side matching
// ---------------------------------------------------------------------------

// identifierTypes are the entity types eligible for the identifier-exact tier.
var identifierTypes = map[query.EntityType]bool{
	query.TypePartNumber: true,
	query.TypeFaultCode:  true,
	query.TypeModelCode:  true,
}

// entityMatch records how one entity matched one candidate.
type entityMatch struct {
	entity query.Entity
	tier   MatchTier

	// tokenPos is the token index of the entity's first occurrence in the
	// candidate's search text; -1 when the match came from identifiers or the
	// title only.
	tokenPos int
}

// matchEntities evaluates every entity against the candidate. Only the single
// best tier achieved counts toward tier points; every matched entity counts
// toward conjunction, proximity, and confidence.
func matchEntities(cfg *Config, c *Candidate, entities []query.Entity) []entityMatch {
	lowerTitle := strings.ToLower(c.Title)
	lowerBody := strings.ToLower(c.SearchText)
	bodyTokens := fieldsLower(c.SearchText)
	tokenSet := make(map[string]int, len(bodyTokens)) // token → first index
	for i, t := range bodyTokens {
		if _, seen := tokenSet[t]; !seen {
			tokenSet[t] = i
		}
	}

	var out []entityMatch
	for _, e := range entities {
		folded := foldKey(e.Text)
		if folded == "" {
			continue
		}

		m := entityMatch{entity: e, tier: TierNone, tokenPos: -1}

		// Identifier-exact: entity text equals one of the candidate's
		// identifier keys.
		if identifierTypes[e.Type] {
			for _, id := range c.Identifiers {
				if foldKey(id) == folded {
					m.tier = TierIdentifierExact
					break
				}
			}
		}

		// Literal-text-exact: word-bounded occurrence in title or body.
		if m.tier == TierNone {
			if idx := wordIndex(lowerBody, folded); idx >= 0 {
				m.tier = TierTextExact
				m.tokenPos = tokenIndexAt(bodyTokens, folded)
			} else if wordIndex(lowerTitle, folded) >= 0 {
				m.tier = TierTextExact
			}
		}

		// Fuzzy: enough of the entity's tokens appear somewhere in the body.
		if m.tier == TierNone {
			parts := strings.Fields(folded)
			if len(parts) > 0 {
				hit := 0
				first := -1
				for _, p := range parts {
					if idx, ok := tokenSet[p]; ok {
						hit++
						if first < 0 || idx < first {
							first = idx
						}
					}
				}
				if float64(hit)/float64(len(parts)) >= cfg.FuzzyTokenOverlap {
					m.tier = TierFuzzy
					m.tokenPos = first
				}
			}
		}

		if m.tier != TierNone {
			out = append(out, m)
		}
	}
	return out
}

// tokenIndexAt returns the token index of the first token of phrase within
// tokens, or -1.
func tokenIndexAt(tokens []string, phrase string) int {
	first := strings.Fields(phrase)
	if len(first) == 0 {
		return -1
	}
	for i, t := range tokens {
		if t == first[0] {
			return i
		}
	}
	return -1
}

// wordIndex returns the byte index of the first word-bounded occurrence of
// needle in haystack, or -1.
func wordIndex(haystack, needle string) int {
	if needle == "" {
		return -1
	}
	from := 0
	for {
		idx := strings.Index(haystack[from:], needle)
		if idx < 0 {
			return -1
		}
		start := from + idx
		end := start + len(needle)
		beforeOK := start == 0 || !isWordByte(haystack[start-1])
		afterOK := end == len(haystack) || !isWordByte(haystack[end])
		if beforeOK && afterOK {
			return start
		}
		from = start + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// foldKey lowercases and collapses internal whitespace for comparison.
func foldKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func fieldsLower(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	for i, f := range fields {
		fields[i] = strings.Trim(f, ".,;:!?()[]{}\"'")
	}
	return fields
}

// ---------------------------------------------------------------------------
// Score components
// ---------------------------------------------------------------------------

// scoreCandidate fills the candidate's breakdown from its matches, the
// detected intent keywords, and the configuration. A candidate missing the
// metadata a component needs scores zero on that component.
func scoreCandidate(cfg *Config, c *Candidate, matches []entityMatch, intents []string, now time.Time) {
	b := &Breakdown{}

	best := TierNone
	for _, m := range matches {
		if m.tier > best {
			best = m.tier
		}
		b.MatchedEntities = append(b.MatchedEntities, m.entity.Text)
	}
	b.Tier = best
	switch best {
	case TierIdentifierExact:
		b.TierPoints = cfg.TierIdentifierExact
	case TierTextExact:
		b.TierPoints = cfg.TierTextExact
	case TierFuzzy:
		b.TierPoints = cfg.TierFuzzy
	}

	if n := len(matches); n > 1 {
		bonus := float64(n-1) * cfg.ConjunctionPerEntity
		if bonus > cfg.ConjunctionCap {
			bonus = cfg.ConjunctionCap
		}
		b.Conjunction = bonus
	}

	b.Proximity = proximityBonus(cfg, matches)
	b.EntityConfidence = confidenceContribution(cfg, matches)
	b.IntentPrior = intentPrior(cfg, intents, c.Table)
	b.Recency = recencyBonus(cfg, c.UpdatedAt, now)
	if isNoise(cfg, c) {
		b.NoisePenalty = -cfg.NoisePenalty
	}

	c.Breakdown = b
}

// proximityBonus decays with the average token gap between the matched
// entities' first occurrences in the candidate's search text. Adjacent
// occurrences (gap 0) earn the full cap.
func proximityBonus(cfg *Config, matches []entityMatch) float64 {
	var positions []int
	for _, m := range matches {
		if m.tokenPos >= 0 {
			positions = append(positions, m.tokenPos)
		}
	}
	if len(positions) < 2 {
		return 0
	}
	sortInts(positions)

	totalGap := 0
	for i := 1; i < len(positions); i++ {
		gap := positions[i] - positions[i-1] - 1
		if gap < 0 {
			gap = 0
		}
		totalGap += gap
	}
	avgGap := float64(totalGap) / float64(len(positions)-1)
	return cfg.ProximityCap / (1.0 + avgGap)
}

// confidenceContribution scales the mean confidence of matched entities so
// high-certainty extractions lift the candidates that actually match them.
func confidenceContribution(cfg *Config, matches []entityMatch) float64 {
	if len(matches) == 0 {
		return 0
	}
	sum := 0.0
	for _, m := range matches {
		sum += m.entity.Confidence
	}
	return cfg.EntityConfidenceWeight * (sum / float64(len(matches)))
}

// intentPrior sums the per-table deltas of every detected intent keyword.
func intentPrior(cfg *Config, intents []string, table string) float64 {
	if table == "" {
		return 0
	}
	total := 0.0
	for _, kw := range intents {
		if deltas, ok := cfg.IntentPriors[kw]; ok {
			total += deltas[table]
		}
	}
	return total
}

// recencyBonus halves for every RecencyHalfLife of age. A zero UpdatedAt
// scores zero.
func recencyBonus(cfg *Config, updatedAt, now time.Time) float64 {
	if updatedAt.IsZero() || cfg.RecencyHalfLife <= 0 {
		return 0
	}
	age := now.Sub(updatedAt)
	if age < 0 {
		age = 0
	}
	return cfg.RecencyCap * math.Exp2(-float64(age)/float64(cfg.RecencyHalfLife))
}

// tocLineRe matches numbered-section lines ("3.1.2 Cooling system ... 47")
// characteristic of a table of contents.
var tocLineRe = regexp.MustCompile(`(?m)^\s*\d+(\.\d+)+\s+\S`)

// isNoise applies the deterministic boilerplate heuristics: a configured
// marker phrase, a run of dotted leaders, or several numbered-section lines.
func isNoise(cfg *Config, c *Candidate) bool {
	lower := strings.ToLower(c.Title + "\n" + c.SearchText)
	for _, marker := range cfg.NoiseMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	if strings.Count(c.SearchText, ".....") >= 3 {
		return true
	}
	return len(tocLineRe.FindAllStringIndex(c.SearchText, 6)) >= 5
}

// DetectIntents returns the intent keywords present in the normalized query,
// in query order, deduplicated.
func DetectIntents(cfg *Config, normalizedQuery string) []string {
	var out []string
	seen := map[string]bool{}
	for _, tok := range fieldsLower(normalizedQuery) {
		if seen[tok] {
			continue
		}
		if _, ok := cfg.IntentPriors[tok]; ok {
			out = append(out, tok)
			seen[tok] = true
		}
	}
	return out
}

func sortInts(s []int) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}
