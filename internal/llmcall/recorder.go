package llmcall

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// Recorder appends calls to a JSONL file. Safe for concurrent use;
// recording failures are logged, never fatal.
type Recorder struct {
	mu     sync.Mutex
	file   *os.File
	logger *slog.Logger
}

// NewRecorder opens (or creates) the JSONL log at path.
func NewRecorder(path string, logger *slog.Logger) (*Recorder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open call log: %w", err)
	}
	return &Recorder{file: f, logger: logger}, nil
}

// Record appends one call to the log.
func (r *Recorder) Record(call *Call) {
	if r == nil || call == nil {
		return
	}

	data, err := json.Marshal(call)
	if err != nil {
		r.logger.Warn("failed to serialize call record", "error", err)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.file.Write(append(data, '\n')); err != nil {
		r.logger.Warn("failed to write call record", "error", err)
	}
}

// Close flushes and closes the underlying file.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Close()
}
