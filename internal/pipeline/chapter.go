// Package pipeline orchestrates chapter and document level extraction:
// chapter-level parallelism across a worker pool, sequential chunk
// extraction within a chapter, and checkpoint-driven resumption.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/cortexlib/glean/internal/checkpoint"
	"github.com/cortexlib/glean/internal/chunker"
	"github.com/cortexlib/glean/internal/metrics"
	"github.com/cortexlib/glean/internal/types"
)

// ChunkExtractor is the per-chunk extraction protocol. Implemented by
// extract.Extractor; faked in tests.
type ChunkExtractor interface {
	Extract(ctx context.Context, chapterKey string, chapterIndex, chunkIndex, totalChunks int, chunkText string) (types.ExtractionResult, error)
}

// ChapterConfig configures a ChapterProcessor.
type ChapterConfig struct {
	Extractor   ChunkExtractor
	Checkpoints checkpoint.Store
	Metrics     *metrics.Collector

	// MaxChunkSize bounds chunk length (default chunker.DefaultMaxChunkSize).
	MaxChunkSize int

	Logger *slog.Logger
}

// ChapterProcessor drives extraction for single chapters. A chapter is
// owned by exactly one worker at a time, so chunk checkpoint writes are
// strictly sequential.
type ChapterProcessor struct {
	extractor   ChunkExtractor
	checkpoints checkpoint.Store
	metrics     *metrics.Collector
	chunkSize   int
	logger      *slog.Logger
}

// NewChapterProcessor creates a ChapterProcessor.
func NewChapterProcessor(cfg ChapterConfig) *ChapterProcessor {
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewCollector()
	}
	if cfg.MaxChunkSize <= 0 {
		cfg.MaxChunkSize = chunker.DefaultMaxChunkSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &ChapterProcessor{
		extractor:   cfg.Extractor,
		checkpoints: cfg.Checkpoints,
		metrics:     cfg.Metrics,
		chunkSize:   cfg.MaxChunkSize,
		logger:      cfg.Logger,
	}
}

// Process extracts one chapter, resuming from its checkpoint. A fully
// checkpointed chapter costs zero generation calls.
func (p *ChapterProcessor) Process(ctx context.Context, ch types.Chapter) types.ChapterResult {
	chunks := chunker.Split(ch.RawText, p.chunkSize)
	if len(chunks) == 0 {
		return types.ChapterResult{
			ChapterIndex: ch.Index,
			ChapterID:    ch.ID,
			Title:        ch.Title,
			Status:       types.StatusValidEmpty,
		}
	}

	rec, err := p.checkpoints.Load(ch.ID)
	if err != nil {
		p.logger.Warn("checkpoint load failed, reprocessing chapter",
			"chapter", ch.Index, "error", err)
		rec = checkpoint.NewRecord(0)
	}

	// A checkpoint written against different chunk boundaries is useless;
	// discard rather than mix indexes from two splitting runs.
	if rec.TotalChunks != 0 && rec.TotalChunks != len(chunks) {
		p.logger.Warn("checkpoint chunk count mismatch, reprocessing chapter",
			"chapter", ch.Index, "checkpointed", rec.TotalChunks, "current", len(chunks))
		rec = checkpoint.NewRecord(0)
	}

	completed := make(map[int]types.ExtractionResult, len(chunks))
	var failed []int

	for i, chunkText := range chunks {
		if result, ok := rec.Completed[i]; ok {
			completed[i] = result
			p.metrics.RecordChunkSkipped()
			continue
		}

		// Stop starting new chunks once cancelled; in-flight work has
		// already finished or timed out inside the extractor.
		if ctx.Err() != nil {
			failed = append(failed, i)
			continue
		}

		result, err := p.extractor.Extract(ctx, ch.ID, ch.Index, i, len(chunks), chunkText)
		if err != nil {
			p.logger.Error("chunk terminally failed",
				"chapter", ch.Index, "chunk", i, "error", err)
			failed = append(failed, i)
			continue
		}
		completed[i] = result
	}

	result := aggregate(ch, len(chunks), completed, failed)
	p.metrics.RecordChapterStatus(string(result.Status))
	return result
}
