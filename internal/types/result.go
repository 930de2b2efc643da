package types

import (
	"encoding/json"
	"strings"
)

// Item is a single extracted knowledge unit. The pipeline treats its
// content as opaque; only Text participates in dedup comparisons.
type Item struct {
	Text string `json:"text"`

	// Extra holds schema fields the pipeline does not interpret
	// (source attribution, confidence, tags).
	Extra map[string]json.RawMessage `json:"extra,omitempty"`
}

// NormalizedText returns the comparison key for dedup: trimmed, lowercased,
// inner whitespace collapsed to single spaces.
func (i Item) NormalizedText() string {
	return NormalizeText(i.Text)
}

// NormalizeText collapses whitespace and case so that items restated across
// chunk boundaries compare equal.
func NormalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// ExtractionResult is the validated structured output for one chunk.
type ExtractionResult struct {
	Domains    []string `json:"domains"` // 1..3 entries
	Principles []Item   `json:"principles"`
	Rules      []Item   `json:"rules"`
	Claims     []Item   `json:"claims"`
	Warnings   []Item   `json:"warnings"`

	// VerbatimWarning is set when the result failed the verbatim-overlap
	// check but was accepted anyway (soft-fail).
	VerbatimWarning string `json:"verbatim_warning,omitempty"`

	// Extra preserves unknown top-level keys from the model response.
	Extra map[string]json.RawMessage `json:"extra,omitempty"`
}

// ItemCount returns the total number of items across all four lists.
func (r *ExtractionResult) ItemCount() int {
	return len(r.Principles) + len(r.Rules) + len(r.Claims) + len(r.Warnings)
}

// ChapterStatus describes the terminal state of a chapter's extraction.
type ChapterStatus string

const (
	// StatusOK means at least one item was extracted.
	StatusOK ChapterStatus = "ok"
	// StatusValidEmpty means every chunk completed but none yielded items.
	// Narrative chapters commonly land here; it is not an error.
	StatusValidEmpty ChapterStatus = "valid_empty"
	// StatusPartial means some chunks terminally failed while others completed.
	StatusPartial ChapterStatus = "partial"
	// StatusFailed means every chunk for the chapter terminally failed.
	StatusFailed ChapterStatus = "failed"
)

// ChapterResult aggregates all completed chunks of one chapter.
type ChapterResult struct {
	ChapterIndex int           `json:"chapter_index"`
	ChapterID    string        `json:"chapter_id"`
	Title        string        `json:"title,omitempty"`
	Status       ChapterStatus `json:"status"`

	Domains    []string `json:"domains"`
	Principles []Item   `json:"principles"`
	Rules      []Item   `json:"rules"`
	Claims     []Item   `json:"claims"`
	Warnings   []Item   `json:"warnings"`

	// VerbatimWarnings carries soft-fail notes from individual chunks.
	VerbatimWarnings []string `json:"verbatim_warnings,omitempty"`

	TotalChunks  int   `json:"total_chunks"`
	FailedChunks []int `json:"failed_chunks,omitempty"`
}

// ItemCount returns the total number of aggregated items.
func (r *ChapterResult) ItemCount() int {
	return len(r.Principles) + len(r.Rules) + len(r.Claims) + len(r.Warnings)
}
