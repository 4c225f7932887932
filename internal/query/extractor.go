package query

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Claimed-span bookkeeping
// ---------------------------------------------------------------------------

// spanSet tracks byte ranges already claimed by a higher-priority match.
// Earlier matcher families claim spans; later passes must skip anything that
// overlaps a claimed span.
type spanSet struct {
	spans []Span
}

func (s *spanSet) claim(sp Span) {
	s.spans = append(s.spans, sp)
}

func (s *spanSet) overlaps(sp Span) bool {
	for _, c := range s.spans {
		if c.Overlaps(sp) {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Tokenization with offsets
// ---------------------------------------------------------------------------

// tokenSpan is a whitespace-delimited token with its byte offsets in the
// normalized text.
type tokenSpan struct {
	text  string
	start int
	end   int
}

// tokenize splits normalized text on spaces, preserving byte offsets.
// Normalized text contains only single-space separators, so a linear scan
// suffices.
func tokenize(text string) []tokenSpan {
	var spans []tokenSpan
	start := -1
	for i := 0; i < len(text); i++ {
		if text[i] == ' ' {
			if start >= 0 {
				spans = append(spans, tokenSpan{text: text[start:i], start: start, end: i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		spans = append(spans, tokenSpan{text: text[start:], start: start, end: len(text)})
	}
	return spans
}

// trimTokenPunct strips leading/trailing punctuation from a token span,
// returning the adjusted span and text.
func trimTokenPunct(t tokenSpan) tokenSpan {
	s, e := t.start, t.end
	for s < e && isPunct(t.text[s-t.start]) {
		s++
	}
	for e > s && isPunct(t.text[e-1-t.start]) {
		e--
	}
	return tokenSpan{text: t.text[s-t.start : e-t.start], start: s, end: e}
}

func isPunct(b byte) bool {
	switch b {
	case ',', '.', ';', ':', '!', '?', '(', ')', '[', ']', '{', '}', '"', '\'':
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// Deterministic extractor
// ---------------------------------------------------------------------------

// DeterministicExtractor runs the gazetteer, pattern-rule, and proper-noun
// matcher families against normalized query text. It performs no I/O and
// never fails: malformed or empty input yields an empty entity list.
type DeterministicExtractor struct {
	cfg   *Config
	rules []patternRule

	// gazetteerTerms holds (term, type) pairs sorted by descending term
	// length so multi-word phrases are attempted before their constituent
	// words, across all types.
	gazetteerTerms []gazetteerTerm

	stopwords map[string]bool
}

type gazetteerTerm struct {
	term       string // lowercase
	entityType EntityType
}

// NewDeterministicExtractor compiles the pattern library and flattens the
// gazetteer for cfg. The extractor is immutable and safe for concurrent use.
func NewDeterministicExtractor(cfg *Config) *DeterministicExtractor {
	var terms []gazetteerTerm
	for _, t := range AllEntityTypes {
		for _, term := range cfg.sortedGazetteerTerms(t) {
			terms = append(terms, gazetteerTerm{term: strings.ToLower(term), entityType: t})
		}
	}
	// Global longest-first order; precedence then term text as deterministic
	// tie-breaks.
	sort.SliceStable(terms, func(i, j int) bool {
		if len(terms[i].term) != len(terms[j].term) {
			return len(terms[i].term) > len(terms[j].term)
		}
		pi, pj := cfg.PrecedenceFor(terms[i].entityType), cfg.PrecedenceFor(terms[j].entityType)
		if pi != pj {
			return pi > pj
		}
		return terms[i].term < terms[j].term
	})

	return &DeterministicExtractor{
		cfg:            cfg,
		rules:          patternRules(),
		gazetteerTerms: terms,
		stopwords:      cfg.StopwordSet(),
	}
}

// Extract runs the three matcher families in order against normalized text.
// Returned entities carry multiplier-adjusted confidences and spans into the
// normalized text; they are unsorted and unmerged.
func (e *DeterministicExtractor) Extract(normalized string) []Entity {
	if normalized == "" {
		return []Entity{}
	}

	claimed := &spanSet{}

	entities := e.matchGazetteer(normalized, claimed)
	entities = append(entities, matchPatterns(normalized, e.rules, claimed, e.cfg.MultiplierFor(SourcePattern))...)
	entities = append(entities, e.matchProperNouns(normalized, claimed)...)

	if entities == nil {
		entities = []Entity{}
	}
	return entities
}

// ---------------------------------------------------------------------------
// Gazetteer matching
// ---------------------------------------------------------------------------

// matchGazetteer scans the flattened, longest-first term list. Each accepted
// match claims its span, protecting it from shorter or later matches.
func (e *DeterministicExtractor) matchGazetteer(text string, claimed *spanSet) []Entity {
	lower := lowerAligned(text)
	mult := e.cfg.MultiplierFor(SourceGazetteer)

	var out []Entity
	for _, gt := range e.gazetteerTerms {
		from := 0
		for {
			idx := strings.Index(lower[from:], gt.term)
			if idx < 0 {
				break
			}
			start := from + idx
			end := start + len(gt.term)
			from = start + 1

			if !isWordBoundary(lower, start, end) {
				continue
			}
			sp := Span{Start: start, End: end}
			if claimed.overlaps(sp) {
				continue
			}
			claimed.claim(sp)
			out = append(out, Entity{
				Text:       text[start:end],
				Type:       gt.entityType,
				Span:       sp,
				Confidence: 1.0 * mult,
				Source:     SourceGazetteer,
			})
		}
	}
	return out
}

// lowerAligned lowercases text for case-insensitive matching while keeping
// byte offsets aligned with the input. Runes whose lowercase form has a
// different UTF-8 width are left as-is, so any index into the result is a
// valid index into the original.
func lowerAligned(text string) string {
	lower := strings.ToLower(text)
	if len(lower) == len(text) {
		return lower
	}
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if l := unicode.ToLower(r); r != utf8.RuneError && utf8.RuneLen(l) == size {
			b.WriteRune(l)
		} else {
			b.WriteString(text[i : i+size])
		}
		i += size
	}
	return b.String()
}

// isWordBoundary reports whether [start, end) is delimited by non-alphanumeric
// bytes (or the text edges), so "cat" does not match inside "catalog".
func isWordBoundary(text string, start, end int) bool {
	if start > 0 && isWordByte(text[start-1]) {
		return false
	}
	if end < len(text) && isWordByte(text[end]) {
		return false
	}
	return true
}

func isWordByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// ---------------------------------------------------------------------------
// Proper-noun sequence detection
// ---------------------------------------------------------------------------

// matchProperNouns finds runs of capitalized tokens not in the stopword list,
// a low-confidence fallback for names the gazetteer does not know. All-caps
// single tokens read as brand/manufacturer abbreviations; longer runs as
// equipment names.
func (e *DeterministicExtractor) matchProperNouns(text string, claimed *spanSet) []Entity {
	const base = 0.80

	tokens := tokenize(text)
	mult := e.cfg.MultiplierFor(SourceProperNoun)

	var out []Entity
	i := 0
	for i < len(tokens) {
		tok := trimTokenPunct(tokens[i])
		if !e.isProperToken(tok.text) {
			i++
			continue
		}

		// Extend the run.
		runStart := i
		runEnd := i
		for runEnd+1 < len(tokens) {
			next := trimTokenPunct(tokens[runEnd+1])
			if !e.isProperToken(next.text) {
				break
			}
			runEnd++
		}
		i = runEnd + 1

		// Emit each contiguous stretch of the run whose tokens are still
		// unclaimed; a run clipped by a gazetteer or pattern match keeps
		// contributing its remainder.
		s := runStart
		for s <= runEnd {
			st := trimTokenPunct(tokens[s])
			if claimed.overlaps(Span{Start: st.start, End: st.end}) {
				s++
				continue
			}
			e2 := s
			for e2+1 <= runEnd {
				next := trimTokenPunct(tokens[e2+1])
				if claimed.overlaps(Span{Start: next.start, End: next.end}) {
					break
				}
				e2++
			}

			last := trimTokenPunct(tokens[e2])
			sp := Span{Start: st.start, End: last.end}
			entityType := TypeEquipment
			if s == e2 && isAllCaps(st.text) {
				entityType = TypeBrand
			}

			claimed.claim(sp)
			out = append(out, Entity{
				Text:       text[sp.Start:sp.End],
				Type:       entityType,
				Span:       sp,
				Confidence: base * mult,
				Source:     SourceProperNoun,
			})
			s = e2 + 1
		}
	}
	return out
}

// isProperToken reports whether tok starts with an uppercase letter and is
// not a stopword.
func (e *DeterministicExtractor) isProperToken(tok string) bool {
	if tok == "" {
		return false
	}
	r := []rune(tok)[0]
	if !unicode.IsUpper(r) {
		return false
	}
	return !e.stopwords[strings.ToLower(tok)]
}

func isAllCaps(tok string) bool {
	hasLetter := false
	for _, r := range tok {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter && len(tok) >= 2
}
