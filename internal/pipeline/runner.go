package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cortexlib/glean/internal/metrics"
	"github.com/cortexlib/glean/internal/types"
)

// ErrAllChaptersFailed signals a systemic outage: every chapter in the run
// terminally failed, so the output contains nothing usable.
var ErrAllChaptersFailed = errors.New("all chapters failed")

// defaultCollectTimeout bounds how long Run waits for worker results after
// all chapters are queued. It exists so a wedged worker cannot block the
// run forever; missing chapters get synthetic failed results instead.
const defaultCollectTimeout = 2 * time.Hour

// ChapterProcessorIface processes one chapter to completion.
type ChapterProcessorIface interface {
	Process(ctx context.Context, ch types.Chapter) types.ChapterResult
}

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	Processor ChapterProcessorIface
	Metrics   *metrics.Collector

	// NumWorkers is the chapter-level worker count. Chunk-level call
	// concurrency is bounded separately by the shared rate controller.
	NumWorkers int

	// CollectTimeout bounds result collection (default 2h).
	CollectTimeout time.Duration

	Logger *slog.Logger
}

// Runner fans chapters out over a worker pool and reassembles results in
// input order.
type Runner struct {
	processor      ChapterProcessorIface
	metrics        *metrics.Collector
	numWorkers     int
	collectTimeout time.Duration
	logger         *slog.Logger
}

// NewRunner creates a Runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Processor == nil {
		return nil, fmt.Errorf("runner requires a chapter processor")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewCollector()
	}
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 3
	}
	if cfg.CollectTimeout <= 0 {
		cfg.CollectTimeout = defaultCollectTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Runner{
		processor:      cfg.Processor,
		metrics:        cfg.Metrics,
		numWorkers:     cfg.NumWorkers,
		collectTimeout: cfg.CollectTimeout,
		logger:         cfg.Logger,
	}, nil
}

// Run processes all chapters and returns results in input chapter order.
// Cancelling ctx stops workers from pulling new chapters; chapters never
// handed to a worker come back as synthetic failed results. The error is
// ErrAllChaptersFailed only when every chapter terminally failed.
func (r *Runner) Run(ctx context.Context, chapters []types.Chapter) ([]types.ChapterResult, error) {
	if len(chapters) == 0 {
		return nil, nil
	}

	queue := make(chan types.Chapter, len(chapters))
	for _, ch := range chapters {
		queue <- ch
	}
	close(queue)

	resultCh := make(chan types.ChapterResult, len(chapters))

	var wg sync.WaitGroup
	for w := 0; w < r.numWorkers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r.workerLoop(ctx, worker, queue, resultCh)
		}(w)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	// Collect results keyed by chapter index; re-emit in input order at
	// the end. A wedged worker is bounded by the collection timeout.
	byIndex := make(map[int]types.ChapterResult, len(chapters))

	timeout := time.NewTimer(r.collectTimeout)
	defer timeout.Stop()

collect:
	for len(byIndex) < len(chapters) {
		select {
		case res := <-resultCh:
			byIndex[res.ChapterIndex] = res
		case <-done:
			// Workers are gone; drain whatever they delivered.
			for {
				select {
				case res := <-resultCh:
					byIndex[res.ChapterIndex] = res
				default:
					break collect
				}
			}
		case <-timeout.C:
			r.logger.Error("result collection timed out",
				"collected", len(byIndex), "total", len(chapters))
			break collect
		}
	}

	results := make([]types.ChapterResult, len(chapters))
	failedCount := 0
	for i, ch := range chapters {
		res, ok := byIndex[ch.Index]
		if !ok {
			// A chapter whose result never arrived is reported as
			// failed rather than blocking the run.
			r.logger.Error("chapter result missing, marking failed",
				"chapter", ch.Index)
			res = types.ChapterResult{
				ChapterIndex: ch.Index,
				ChapterID:    ch.ID,
				Title:        ch.Title,
				Status:       types.StatusFailed,
			}
			r.metrics.RecordChapterStatus(string(types.StatusFailed))
		}
		if res.Status == types.StatusFailed {
			failedCount++
		}
		results[i] = res
	}

	if failedCount == len(chapters) {
		return results, fmt.Errorf("%w: %d of %d", ErrAllChaptersFailed, failedCount, len(chapters))
	}
	if failedCount > 0 {
		r.logger.Warn("run completed with failed chapters",
			"failed", failedCount, "total", len(chapters))
	}
	return results, nil
}

// workerLoop pulls chapters until the queue drains or ctx is cancelled.
// Each chapter is processed fully before the next is taken.
func (r *Runner) workerLoop(ctx context.Context, worker int, queue <-chan types.Chapter, resultCh chan<- types.ChapterResult) {
	for {
		select {
		case <-ctx.Done():
			return
		case ch, ok := <-queue:
			if !ok {
				return
			}
			r.logger.Debug("worker picked up chapter",
				"worker", worker, "chapter", ch.Index)
			resultCh <- r.processor.Process(ctx, ch)
		}
	}
}
