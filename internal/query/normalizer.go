package query

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// ---------------------------------------------------------------------------
// Text normalization
// ---------------------------------------------------------------------------

// quoteReplacer maps typographic quote characters to their ASCII forms.
var quoteReplacer = strings.NewReplacer(
	"‘", "'", // left single
	"’", "'", // right single
	"“", `"`, // left double
	"”", `"`, // right double
	"«", `"`,
	"»", `"`,
	"–", "-", // en dash
	"—", "-", // em dash
)

// Normalize cleans a raw query string: Unicode NFC, typographic-quote
// replacement, whitespace collapse, and token-wise expansion of known
// abbreviations and brand short-forms from the configuration map. Character
// case is preserved so the proper-noun matcher still sees capitalization;
// matchers that need case-insensitivity fold internally.
//
// The returned string is the text every downstream Span indexes into.
// Normalize never fails; malformed input simply yields an empty string.
func Normalize(raw string, expansions map[string]string) string {
	text := norm.NFC.String(raw)
	text = quoteReplacer.Replace(text)

	// Collapse whitespace runs to single spaces.
	var b strings.Builder
	b.Grow(len(text))
	prevSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if !prevSpace {
				b.WriteRune(' ')
				prevSpace = true
			}
			continue
		}
		b.WriteRune(r)
		prevSpace = false
	}
	text = strings.TrimSpace(b.String())
	if text == "" {
		return ""
	}

	// Token-wise abbreviation expansion, case-insensitive on the token but
	// preserving trailing punctuation so "CAT," expands to "caterpillar,".
	if len(expansions) == 0 {
		return text
	}
	tokens := strings.Split(text, " ")
	for i, tok := range tokens {
		core := strings.TrimRight(tok, ".,;:!?")
		if exp, ok := expansions[strings.ToLower(core)]; ok {
			tokens[i] = exp + tok[len(core):]
		}
	}
	return strings.Join(tokens, " ")
}
