package checkpoint

import (
	"sync"

	"github.com/cortexlib/glean/internal/types"
)

// MemoryStore is an in-memory Store for unit tests.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

func (s *MemoryStore) Load(chapterKey string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[chapterKey]
	if !ok {
		return NewRecord(0), nil
	}

	// Copy so callers can't mutate stored state.
	out := NewRecord(rec.TotalChunks)
	for k, v := range rec.Completed {
		out.Completed[k] = v
	}
	return out, nil
}

func (s *MemoryStore) MarkCompleted(chapterKey string, chunkIndex int, totalChunks int, result types.ExtractionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[chapterKey]
	if !ok {
		rec = NewRecord(totalChunks)
		s.records[chapterKey] = rec
	}
	rec.TotalChunks = totalChunks
	rec.Completed[chunkIndex] = result
	return nil
}

func (s *MemoryStore) IsCompleted(chapterKey string) (bool, error) {
	rec, err := s.Load(chapterKey)
	if err != nil {
		return false, err
	}
	return rec.IsComplete(), nil
}
