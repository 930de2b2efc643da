// Package providers defines the external text-generation capability the
// pipeline depends on, plus concrete clients. The pipeline never retries
// through a provider: transport failures and rate-limit signals surface to
// the caller, which owns retry and backoff policy.
package providers

import (
	"context"
	"errors"
	"time"
)

// ErrRateLimited is wrapped by providers when the upstream service imposes
// a rate limit. Callers detect it with errors.Is and feed the adaptive gate.
var ErrRateLimited = errors.New("rate limited")

// GenerateRequest is a single prompt sent to the generation capability.
type GenerateRequest struct {
	// System is the system/instruction message (optional).
	System string

	// Prompt is the user message.
	Prompt string

	// Model selects the model (uses the client default if empty).
	Model string

	// Timeout bounds the call. Zero means the client default.
	Timeout time.Duration

	// RequestID is an optional caller-supplied tracking ID.
	RequestID string
}

// GenerateResult is the response from a generation call.
type GenerateResult struct {
	Text  string
	Model string

	PromptTokens     int
	CompletionTokens int

	Latency time.Duration
}

// Generator is the text-generation capability. Implementations must be
// safe for concurrent use.
type Generator interface {
	// Generate sends one prompt and returns the raw response text.
	// May fail, time out, or return malformed text; validation and
	// retries are the caller's responsibility.
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error)

	// Name returns the client identifier (e.g., "openai", "mock").
	Name() string
}

// Embedder produces vector embeddings for text. Kept separate from
// Generator because not every backend offers it.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}
