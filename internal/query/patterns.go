package query

import "regexp"

// ---------------------------------------------------------------------------
// Pattern rule library
// ---------------------------------------------------------------------------

// patternRule is a single regex-backed matching rule. Each rule carries its
// own base confidence, later discounted by the pattern source multiplier.
type patternRule struct {
	name       string
	entityType EntityType
	re         *regexp.Regexp
	base       float64

	// group selects the submatch used as the entity span; 0 means the whole
	// match.
	group int
}

// patternRules returns the rule library in evaluation order. Order matters:
// earlier rules claim spans that later rules must skip, so the more specific
// formats (fault codes, measurements) run before the generic identifier
// shapes they could collide with.
func patternRules() []patternRule {
	return []patternRule{
		{
			name:       "fault_code_j1939",
			entityType: TypeFaultCode,
			re:         regexp.MustCompile(`(?i)\b(?:spn|fmi|mid|pid|sid)[ -]?\d{1,5}\b`),
			base:       0.95,
		},
		{
			name:       "fault_code_alpha",
			entityType: TypeFaultCode,
			re:         regexp.MustCompile(`\b[EFP]-\d{2,4}\b`),
			base:       0.90,
		},
		{
			name:       "measurement_unit",
			entityType: TypeMeasurement,
			re:         regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?\s?(?:kv|mv|v|ma|kw|kva|hp|mbar|bar|kpa|psi|rpm|ltr|l|ml|gph|gpm|mm|cm|nm|hz|ohm|°c|°f|amps?|volts?)\b`),
			base:       0.92,
		},
		{
			name:       "model_code_vee",
			entityType: TypeModelCode,
			re:         regexp.MustCompile(`(?i)\b\d{1,2}v[- ]?\d{3,4}[a-z]{0,2}\d{0,2}\b`),
			base:       0.88,
		},
		{
			name:       "model_code_series",
			entityType: TypeModelCode,
			re:         regexp.MustCompile(`\b(?:C|D|QSB|QSM|KTA)\d{1,2}(?:\.\d{1,2})?\b`),
			base:       0.72,
		},
		{
			name:       "part_number_digits",
			entityType: TypePartNumber,
			re:         regexp.MustCompile(`\b\d{7,10}\b`),
			base:       0.90,
		},
		{
			name:       "part_number_dashed",
			entityType: TypePartNumber,
			re:         regexp.MustCompile(`\b[0-9A-Za-z]{2,6}(?:-[0-9A-Za-z]{2,6}){1,3}\b`),
			base:       0.82,
		},
	}
}

// matchPatterns runs every rule against the normalized text, skipping spans
// already claimed by earlier matcher families or earlier rules. Returned
// confidences already include the source multiplier.
func matchPatterns(text string, rules []patternRule, claimed *spanSet, multiplier float64) []Entity {
	var out []Entity
	for _, rule := range rules {
		locs := rule.re.FindAllStringSubmatchIndex(text, -1)
		for _, loc := range locs {
			start, end := loc[2*rule.group], loc[2*rule.group+1]
			if start < 0 {
				continue
			}
			sp := Span{Start: start, End: end}
			if claimed.overlaps(sp) {
				continue
			}
			claimed.claim(sp)
			out = append(out, Entity{
				Text:       text[start:end],
				Type:       rule.entityType,
				Span:       sp,
				Confidence: rule.base * multiplier,
				Source:     SourcePattern,
			})
		}
	}
	return out
}
