// Package llmcall records every generation API call for traceability.
// Calls are appended to a JSONL file under the home data directory.
package llmcall

import (
	"time"

	"github.com/google/uuid"

	"github.com/cortexlib/glean/internal/providers"
)

// Call represents a recorded generation API call.
type Call struct {
	// Unique identifier
	ID string `json:"id"`

	// Timing
	Timestamp time.Time `json:"timestamp"`
	LatencyMs int       `json:"latency_ms"`

	// Context references
	BookID     string `json:"book_id,omitempty"`
	ChapterID  string `json:"chapter_id,omitempty"`
	ChunkIndex int    `json:"chunk_index"`
	Attempt    int    `json:"attempt"`

	// Prompt traceability
	PromptKey string `json:"prompt_key"`

	// Model info
	Provider string `json:"provider"`
	Model    string `json:"model"`

	// Token usage
	InputTokens  int `json:"input_tokens,omitempty"`
	OutputTokens int `json:"output_tokens,omitempty"`

	// Status
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// RecordOptions provides context for recording a generation call.
type RecordOptions struct {
	BookID     string
	ChapterID  string
	ChunkIndex int
	Attempt    int
	PromptKey  string
	Provider   string
	Model      string
}

// FromResult creates a Call from a generation result or error.
func FromResult(result *providers.GenerateResult, callErr error, opts RecordOptions) *Call {
	call := &Call{
		ID:         uuid.New().String(),
		Timestamp:  time.Now(),
		BookID:     opts.BookID,
		ChapterID:  opts.ChapterID,
		ChunkIndex: opts.ChunkIndex,
		Attempt:    opts.Attempt,
		PromptKey:  opts.PromptKey,
		Provider:   opts.Provider,
		Model:      opts.Model,
		Success:    callErr == nil,
	}

	if result != nil {
		call.LatencyMs = int(result.Latency.Milliseconds())
		call.InputTokens = result.PromptTokens
		call.OutputTokens = result.CompletionTokens
		if result.Model != "" {
			call.Model = result.Model
		}
	}
	if callErr != nil {
		call.Error = callErr.Error()
	}

	return call
}
