// Package checkpoint provides durable per-chapter completion records so
// chunk work is never redone after a crash.
package checkpoint

import (
	"github.com/cortexlib/glean/internal/types"
)

// Record tracks completed chunk results for one chapter.
type Record struct {
	TotalChunks int                            `json:"total_chunks"`
	Completed   map[int]types.ExtractionResult `json:"completed"`
}

// NewRecord creates an empty record for a chapter with the given chunk count.
func NewRecord(totalChunks int) *Record {
	return &Record{
		TotalChunks: totalChunks,
		Completed:   make(map[int]types.ExtractionResult),
	}
}

// IsComplete reports whether every chunk has a completed result.
func (r *Record) IsComplete() bool {
	return r.TotalChunks > 0 && len(r.Completed) == r.TotalChunks
}

// Store abstracts checkpoint persistence. The default implementation
// (FileStore) keeps one JSON file per chapter; a MemoryStore is provided
// for unit tests.
type Store interface {
	// Load returns the record for a chapter key, or an empty record if
	// none exists. Corrupt or unreadable checkpoints degrade to empty
	// rather than failing the run.
	Load(chapterKey string) (*Record, error)

	// MarkCompleted records one chunk's result and persists immediately.
	MarkCompleted(chapterKey string, chunkIndex int, totalChunks int, result types.ExtractionResult) error

	// IsCompleted reports whether every chunk of the chapter is recorded.
	IsCompleted(chapterKey string) (bool, error)
}
