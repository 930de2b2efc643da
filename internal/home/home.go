package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the glean home directory.
	DefaultDirName = ".glean"

	// DataDirName is the subdirectory for run outputs and call logs.
	DataDirName = "data"

	// CheckpointsDirName is the subdirectory for chunk-level checkpoints.
	CheckpointsDirName = "checkpoints"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Dir represents the glean home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.glean).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// DataPath returns the path to the data directory.
func (d *Dir) DataPath() string {
	return filepath.Join(d.path, DataDirName)
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// CheckpointsPath returns the root checkpoint directory.
func (d *Dir) CheckpointsPath() string {
	return filepath.Join(d.path, CheckpointsDirName)
}

// BookCheckpointsDir returns the checkpoint directory for one book.
// Each chapter gets its own file inside it.
func (d *Dir) BookCheckpointsDir(bookID string) string {
	return filepath.Join(d.CheckpointsPath(), bookID)
}

// ResultsPath returns the path for a book's aggregated run output.
func (d *Dir) ResultsPath(bookID string) string {
	return filepath.Join(d.DataPath(), fmt.Sprintf("%s_results.json", bookID))
}

// CallLogPath returns the path for a book's generation-call log.
func (d *Dir) CallLogPath(bookID string) string {
	return filepath.Join(d.DataPath(), fmt.Sprintf("%s_calls.jsonl", bookID))
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	if err := os.MkdirAll(d.DataPath(), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.MkdirAll(d.CheckpointsPath(), 0o755); err != nil {
		return fmt.Errorf("failed to create checkpoints directory: %w", err)
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}

// EnsureBookCheckpointsDir creates the checkpoint directory for a book.
func (d *Dir) EnsureBookCheckpointsDir(bookID string) error {
	return os.MkdirAll(d.BookCheckpointsDir(bookID), 0o755)
}
