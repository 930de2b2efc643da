package checkpoint

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/cortexlib/glean/internal/types"
)

// FileStore persists one JSON checkpoint file per chapter under a root
// directory. Writes go to a temp file followed by an atomic rename, so a
// crash mid-write always leaves the previous valid version intact.
type FileStore struct {
	mu     sync.Mutex
	dir    string
	logger *slog.Logger
}

// NewFileStore creates a file store rooted at dir, creating it if needed.
func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

// Path returns the checkpoint file path for a chapter key.
func (s *FileStore) Path(chapterKey string) string {
	return filepath.Join(s.dir, chapterKey+".json")
}

// Load returns the chapter's record, degrading to an empty record when the
// file is missing, unreadable, or corrupt.
func (s *FileStore) Load(chapterKey string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(chapterKey), nil
}

func (s *FileStore) loadLocked(chapterKey string) *Record {
	data, err := os.ReadFile(s.Path(chapterKey))
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("checkpoint unreadable, reprocessing chapter",
				"chapter", chapterKey, "error", err)
		}
		return NewRecord(0)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		s.logger.Warn("checkpoint corrupt, reprocessing chapter",
			"chapter", chapterKey, "error", err)
		return NewRecord(0)
	}
	if rec.Completed == nil {
		rec.Completed = make(map[int]types.ExtractionResult)
	}
	return &rec
}

// MarkCompleted records one chunk result and persists the whole record
// atomically before returning.
func (s *FileStore) MarkCompleted(chapterKey string, chunkIndex int, totalChunks int, result types.ExtractionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.loadLocked(chapterKey)
	rec.TotalChunks = totalChunks
	rec.Completed[chunkIndex] = result

	return s.writeLocked(chapterKey, rec)
}

// IsCompleted reports whether every chunk of the chapter is recorded.
func (s *FileStore) IsCompleted(chapterKey string) (bool, error) {
	rec, err := s.Load(chapterKey)
	if err != nil {
		return false, err
	}
	return rec.IsComplete(), nil
}

func (s *FileStore) writeLocked(chapterKey string, rec *Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	path := s.Path(chapterKey)
	tmp, err := os.CreateTemp(s.dir, chapterKey+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp checkpoint: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close checkpoint: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace checkpoint: %w", err)
	}
	return nil
}
