// Package query implements the query-understanding pipeline: normalization,
// deterministic entity extraction, coverage analysis, optional probabilistic
// extraction, and entity merging.
//
// Offset convention: every Span produced by this package is a pair of byte
// offsets into the NORMALIZED query text returned alongside the entities,
// never into the caller's raw input. Every matcher and every consumer of
// extraction results must follow this convention.
package query

import (
	"time"
)

// ---------------------------------------------------------------------------
// EntityType enumeration
// ---------------------------------------------------------------------------

// EntityType classifies the kind of entity recognised in a maintenance query.
// The set is closed; behaviour per type (threshold, precedence, high-value
// flag) lives in the type table below rather than in string-keyed dispatch.
type EntityType string

const (
	TypeEquipment   EntityType = "equipment"
	TypeBrand       EntityType = "brand"
	TypePartNumber  EntityType = "part_number"
	TypeModelCode   EntityType = "model_code"
	TypeFaultCode   EntityType = "fault_code"
	TypeMeasurement EntityType = "measurement"
	TypeStockStatus EntityType = "stock_status"
	TypeUrgency     EntityType = "urgency"
	TypeLocation    EntityType = "location"
)

// AllEntityTypes lists every member of the closed enum in precedence order
// (highest first).
var AllEntityTypes = []EntityType{
	TypePartNumber,
	TypeFaultCode,
	TypeModelCode,
	TypeMeasurement,
	TypeBrand,
	TypeEquipment,
	TypeStockStatus,
	TypeLocation,
	TypeUrgency,
}

// typeTraits is the static behaviour table for the closed enum.
type typeTraits struct {
	// Precedence breaks ties between overlapping spans; higher wins.
	Precedence int

	// HighValue marks structured identifier-like types whose presence lets the
	// coverage gate skip the probabilistic stage.
	HighValue bool

	// Description is handed to the probabilistic extraction service so it
	// knows which types it may return.
	Description string
}

var entityTypeTable = map[EntityType]typeTraits{
	TypePartNumber:  {Precedence: 90, HighValue: true, Description: "manufacturer part or stock number, e.g. 0180943002 or A-4715-8"},
	TypeFaultCode:   {Precedence: 85, HighValue: true, Description: "fault or alarm code, e.g. SPN 3251, E-047"},
	TypeModelCode:   {Precedence: 80, HighValue: true, Description: "equipment model designation, e.g. 16V2000M96, C32"},
	TypeMeasurement: {Precedence: 70, HighValue: true, Description: "physical quantity with unit, e.g. 24 V, 350 kPa, 12 bar"},
	TypeBrand:       {Precedence: 60, HighValue: false, Description: "equipment manufacturer or brand, e.g. MTU, Caterpillar"},
	TypeEquipment:   {Precedence: 50, HighValue: false, Description: "piece of shipboard equipment or component, e.g. fuel filter, sea water pump"},
	TypeStockStatus: {Precedence: 40, HighValue: false, Description: "inventory condition phrase, e.g. critically low inventory, out of stock"},
	TypeLocation:    {Precedence: 30, HighValue: false, Description: "location aboard, e.g. engine room, lazarette"},
	TypeUrgency:     {Precedence: 20, HighValue: false, Description: "urgency marker, e.g. critical, asap"},
}

// IsValid reports whether t is a member of the closed enum.
func (t EntityType) IsValid() bool {
	_, ok := entityTypeTable[t]
	return ok
}

// Precedence returns the tie-break precedence for t (0 for unknown types).
func (t EntityType) Precedence() int {
	return entityTypeTable[t].Precedence
}

// HighValue reports whether t is a structured identifier-like type.
func (t EntityType) HighValue() bool {
	return entityTypeTable[t].HighValue
}

// Description returns the human-readable description handed to the
// probabilistic extraction service.
func (t EntityType) Description() string {
	return entityTypeTable[t].Description
}

// ---------------------------------------------------------------------------
// Source enumeration
// ---------------------------------------------------------------------------

// Source identifies which matcher family produced an entity.
type Source string

const (
	SourcePattern       Source = "pattern"
	SourceGazetteer     Source = "gazetteer"
	SourceProperNoun    Source = "proper_noun"
	SourceProbabilistic Source = "probabilistic"
)

// sourcePriority orders sources for deterministic tie-breaking; higher wins.
var sourcePriority = map[Source]int{
	SourcePattern:       4,
	SourceGazetteer:     3,
	SourceProperNoun:    2,
	SourceProbabilistic: 1,
}

// Priority returns the tie-break priority of s (0 for unknown sources).
func (s Source) Priority() int {
	return sourcePriority[s]
}

// ---------------------------------------------------------------------------
// Entity
// ---------------------------------------------------------------------------

// Span is a half-open [Start, End) byte range into the normalized query text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the span length in bytes.
func (s Span) Len() int { return s.End - s.Start }

// Overlaps reports whether s and o share at least one byte.
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// Contains reports whether s fully contains o.
func (s Span) Contains(o Span) bool {
	return s.Start <= o.Start && o.End <= s.End
}

// Entity is a typed, confidence-scored span extracted from a query.
type Entity struct {
	Text       string     `json:"text"`
	Type       EntityType `json:"type"`
	Span       Span       `json:"span"`
	Confidence float64    `json:"confidence"`
	Source     Source     `json:"source"`
}

// ---------------------------------------------------------------------------
// Extraction result
// ---------------------------------------------------------------------------

// StageTiming records the wall time of one pipeline stage.
type StageTiming struct {
	Stage    string        `json:"stage"`
	Duration time.Duration `json:"duration"`
}

// GateOutcome explains the coverage analyzer's decision about the
// probabilistic stage.
type GateOutcome struct {
	Coverage float64 `json:"coverage"`
	Invoked  bool    `json:"invoked"`
	Reason   string  `json:"reason"`
	GapText  string  `json:"gap_text,omitempty"`
}

// Trace holds the intermediate, pre-merge candidates per stage. It is
// populated only when requested and never altered after construction.
type Trace struct {
	Deterministic []Entity `json:"deterministic"`
	Probabilistic []Entity `json:"probabilistic"`

	// Unanchored lists probabilistic results whose text could not be located
	// in the normalized query; they carry no span and are excluded from the
	// final entity set.
	Unanchored []Entity `json:"unanchored,omitempty"`
}

// Result is the final output of one pipeline run.
type Result struct {
	// NormalizedQuery is the text every entity span indexes into.
	NormalizedQuery string `json:"normalized_query"`

	// Entities is the merged, non-overlapping, threshold-filtered entity set,
	// sorted by span start.
	Entities []Entity `json:"entities"`

	Gate    GateOutcome   `json:"gate"`
	Timings []StageTiming `json:"timings"`
	Trace   *Trace        `json:"trace,omitempty"`

	// ConfigVersion identifies the configuration snapshot that produced this
	// result; combined with NormalizedQuery it forms the cache key.
	ConfigVersion string `json:"config_version"`
}
