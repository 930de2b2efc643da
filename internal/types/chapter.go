// Package types provides shared types used across multiple packages.
// This package has no dependencies on other glean packages to avoid import cycles.
package types

import (
	"crypto/sha256"
	"encoding/hex"
)

// Chapter is one extraction unit of a source document. Chapters are produced
// by the ingest splitter and consumed read-only by the pipeline.
type Chapter struct {
	Index   int    `json:"index"`
	ID      string `json:"id"` // stable content hash, see ChapterID
	Title   string `json:"title,omitempty"`
	RawText string `json:"raw_text"`
}

// ChapterID returns the stable identifier for a chapter's content.
// The same text always hashes to the same ID, which is what makes
// checkpoint files reusable across runs.
func ChapterID(rawText string) string {
	sum := sha256.Sum256([]byte(rawText))
	return hex.EncodeToString(sum[:16])
}

// Document is an ordered sequence of raw text pages, immutable once loaded.
type Document struct {
	Name  string   `json:"name"`
	Pages []string `json:"pages"`
}
