// Package extract performs the generate-call-with-retry-and-validate
// sequence for a single chunk of chapter text.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cortexlib/glean/internal/checkpoint"
	"github.com/cortexlib/glean/internal/gate"
	"github.com/cortexlib/glean/internal/llmcall"
	"github.com/cortexlib/glean/internal/metrics"
	"github.com/cortexlib/glean/internal/providers"
	"github.com/cortexlib/glean/internal/types"
)

const (
	// maxAttempts bounds the retry loop. Attempt 2 switches prompt strategy.
	maxAttempts = 2

	// defaultCallTimeout bounds a single generation call.
	defaultCallTimeout = 180 * time.Second

	promptKey = "chunk_extraction_v1"
)

// Config configures an Extractor.
type Config struct {
	Generator   providers.Generator
	Gate        *gate.Controller
	Checkpoints checkpoint.Store
	Metrics     *metrics.Collector

	// Recorder logs every generation call (optional).
	Recorder *llmcall.Recorder

	// BookID attributes checkpoint and call records.
	BookID string

	Model   string
	Timeout time.Duration

	Logger *slog.Logger
}

// Extractor runs the per-chunk extraction protocol: acquire a permit,
// generate, validate, checkpoint. Safe for concurrent use.
type Extractor struct {
	gen         providers.Generator
	gate        *gate.Controller
	checkpoints checkpoint.Store
	metrics     *metrics.Collector
	recorder    *llmcall.Recorder

	bookID  string
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// New creates an Extractor.
func New(cfg Config) (*Extractor, error) {
	if cfg.Generator == nil {
		return nil, fmt.Errorf("extractor requires a Generator")
	}
	if cfg.Gate == nil {
		return nil, fmt.Errorf("extractor requires a rate controller")
	}
	if cfg.Checkpoints == nil {
		return nil, fmt.Errorf("extractor requires a checkpoint store")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewCollector()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultCallTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Extractor{
		gen:         cfg.Generator,
		gate:        cfg.Gate,
		checkpoints: cfg.Checkpoints,
		metrics:     cfg.Metrics,
		recorder:    cfg.Recorder,
		bookID:      cfg.BookID,
		model:       cfg.Model,
		timeout:     cfg.Timeout,
		logger:      cfg.Logger,
	}, nil
}

// Extract runs the full protocol for one chunk and returns its validated
// result. On success the result is checkpointed before returning. Fails
// only after exhausting all attempts.
func (e *Extractor) Extract(ctx context.Context, chapterKey string, chapterIndex, chunkIndex, totalChunks int, chunkText string) (types.ExtractionResult, error) {
	var lastErr error

	for n := 1; n <= maxAttempts; n++ {
		attempt := Attempt{N: n, Strategy: strategyFor(n)}
		if n > 1 {
			e.metrics.RecordRetry()
		}

		result, err := e.attempt(ctx, attempt, chapterKey, chunkIndex, chunkText)
		if err != nil {
			lastErr = err

			// Cancellation is not retryable.
			if errors.Is(err, context.Canceled) {
				break
			}

			e.logger.Warn("chunk attempt failed",
				"chapter", chapterIndex, "chunk", chunkIndex,
				"attempt", n, "strategy", attempt.Strategy.Name, "error", err)
			continue
		}

		// Verbatim overlap is a soft failure: flag and accept rather
		// than discard, the content may still be usable.
		if overlap := CheckVerbatim(result, chunkText); overlap != "" {
			result.VerbatimWarning = overlap
			e.metrics.RecordSoftFailure()
			e.logger.Warn("verbatim overlap accepted with warning",
				"chapter", chapterIndex, "chunk", chunkIndex, "overlap", overlap)
		}

		if err := e.checkpoints.MarkCompleted(chapterKey, chunkIndex, totalChunks, *result); err != nil {
			return types.ExtractionResult{}, fmt.Errorf("chunk %d/%d extracted but checkpoint write failed: %w", chapterIndex, chunkIndex, err)
		}

		e.metrics.RecordChunkSuccess()
		return *result, nil
	}

	e.metrics.RecordChunkFailure()
	return types.ExtractionResult{}, fmt.Errorf("chunk extraction failed terminally (chapter %d, chunk %d): %w", chapterIndex, chunkIndex, lastErr)
}

// attempt performs one acquire-generate-validate cycle.
func (e *Extractor) attempt(ctx context.Context, attempt Attempt, chapterKey string, chunkIndex int, chunkText string) (*types.ExtractionResult, error) {
	if err := e.gate.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("permit acquire: %w", err)
	}
	defer e.gate.Release()

	req := &providers.GenerateRequest{
		System:  systemPrompt + attempt.Strategy.SystemSuffix,
		Prompt:  buildPrompt(chunkText),
		Model:   e.model,
		Timeout: e.timeout,
	}

	result, err := e.gen.Generate(ctx, req)

	if e.recorder != nil {
		e.recorder.Record(llmcall.FromResult(result, err, llmcall.RecordOptions{
			BookID:     e.bookID,
			ChapterID:  chapterKey,
			ChunkIndex: chunkIndex,
			Attempt:    attempt.N,
			PromptKey:  promptKey,
			Provider:   e.gen.Name(),
			Model:      e.model,
		}))
	}

	if err != nil {
		if errors.Is(err, providers.ErrRateLimited) {
			e.gate.RecordRateLimit()
			e.metrics.RecordRateLimitHit()
			return nil, err
		}
		e.metrics.RecordGenerationError()
		return nil, fmt.Errorf("generation call: %w", err)
	}

	e.gate.RecordSuccess(result.Latency)
	e.metrics.RecordLatency(result.Latency)

	parsed, err := ParseResult(result.Text)
	if err != nil {
		e.metrics.RecordValidationError()
		return nil, err
	}

	return parsed, nil
}
