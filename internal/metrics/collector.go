// Package metrics provides latency and outcome tracking for extraction runs.
package metrics

import (
	"sync"
	"time"
)

// latencyWindowSize bounds the retained latency samples. Counters grow
// monotonically; only the latency buffer is windowed.
const latencyWindowSize = 1000

// Collector records latency samples and outcome counters for a run.
// All methods are safe for concurrent use.
type Collector struct {
	mu sync.Mutex

	startedAt time.Time

	// Chunk-level outcomes
	chunksProcessed  int64
	chunksSucceeded  int64
	chunksFailed     int64
	chunksSkipped    int64 // resumed from checkpoint, no generate call
	retries          int64
	rateLimitHits    int64
	softFailures     int64 // verbatim-overlap soft accepts
	validationErrors int64
	generationErrors int64

	// Chapter-level outcomes
	chaptersByStatus map[string]int64

	// Bounded latency buffer (ring)
	latencies    []time.Duration
	latencyNext  int
	latencyCount int64 // total samples ever recorded
	latencySum   time.Duration
}

// NewCollector creates a collector with the run clock started.
func NewCollector() *Collector {
	return &Collector{
		startedAt:        time.Now(),
		chaptersByStatus: make(map[string]int64),
		latencies:        make([]time.Duration, 0, latencyWindowSize),
	}
}

// RecordLatency adds one generation-call latency sample.
func (c *Collector) RecordLatency(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.latencyCount++
	c.latencySum += d
	if len(c.latencies) < latencyWindowSize {
		c.latencies = append(c.latencies, d)
		return
	}
	c.latencies[c.latencyNext] = d
	c.latencyNext = (c.latencyNext + 1) % latencyWindowSize
}

// RecordChunkSuccess counts a completed chunk extraction.
func (c *Collector) RecordChunkSuccess() { c.add(&c.chunksProcessed, &c.chunksSucceeded) }

// RecordChunkFailure counts a terminally failed chunk.
func (c *Collector) RecordChunkFailure() { c.add(&c.chunksProcessed, &c.chunksFailed) }

// RecordChunkSkipped counts a chunk served from checkpoint with no generate call.
func (c *Collector) RecordChunkSkipped() { c.add(&c.chunksProcessed, &c.chunksSkipped) }

// RecordRetry counts a retried extraction attempt.
func (c *Collector) RecordRetry() { c.add(&c.retries) }

// RecordRateLimitHit counts an externally imposed rate-limit signal.
func (c *Collector) RecordRateLimitHit() { c.add(&c.rateLimitHits) }

// RecordSoftFailure counts a verbatim-overlap soft accept.
func (c *Collector) RecordSoftFailure() { c.add(&c.softFailures) }

// RecordValidationError counts a structural validation rejection.
func (c *Collector) RecordValidationError() { c.add(&c.validationErrors) }

// RecordGenerationError counts a transport-level generation failure.
func (c *Collector) RecordGenerationError() { c.add(&c.generationErrors) }

// RecordChapterStatus counts a finished chapter by its terminal status.
func (c *Collector) RecordChapterStatus(status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chaptersByStatus[status]++
}

func (c *Collector) add(counters ...*int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ctr := range counters {
		*ctr++
	}
}

// Snapshot is a point-in-time copy of the collector's state.
type Snapshot struct {
	Elapsed time.Duration `json:"elapsed"`

	ChunksProcessed  int64 `json:"chunks_processed"`
	ChunksSucceeded  int64 `json:"chunks_succeeded"`
	ChunksFailed     int64 `json:"chunks_failed"`
	ChunksSkipped    int64 `json:"chunks_skipped"`
	Retries          int64 `json:"retries"`
	RateLimitHits    int64 `json:"rate_limit_hits"`
	SoftFailures     int64 `json:"soft_failures"`
	ValidationErrors int64 `json:"validation_errors"`
	GenerationErrors int64 `json:"generation_errors"`

	ChaptersByStatus map[string]int64 `json:"chapters_by_status"`

	// Latency over the bounded window and over the whole run.
	LatencySamples   int64         `json:"latency_samples"`
	WindowAvgLatency time.Duration `json:"window_avg_latency"`
	RunAvgLatency    time.Duration `json:"run_avg_latency"`

	// Completed chunks per second since the run started.
	Throughput float64 `json:"throughput"`
}

// Snapshot returns a point-in-time copy of all counters and derived stats.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := time.Since(c.startedAt)

	s := Snapshot{
		Elapsed:          elapsed,
		ChunksProcessed:  c.chunksProcessed,
		ChunksSucceeded:  c.chunksSucceeded,
		ChunksFailed:     c.chunksFailed,
		ChunksSkipped:    c.chunksSkipped,
		Retries:          c.retries,
		RateLimitHits:    c.rateLimitHits,
		SoftFailures:     c.softFailures,
		ValidationErrors: c.validationErrors,
		GenerationErrors: c.generationErrors,
		ChaptersByStatus: make(map[string]int64, len(c.chaptersByStatus)),
		LatencySamples:   c.latencyCount,
	}
	for k, v := range c.chaptersByStatus {
		s.ChaptersByStatus[k] = v
	}

	if len(c.latencies) > 0 {
		var sum time.Duration
		for _, d := range c.latencies {
			sum += d
		}
		s.WindowAvgLatency = sum / time.Duration(len(c.latencies))
	}
	if c.latencyCount > 0 {
		s.RunAvgLatency = c.latencySum / time.Duration(c.latencyCount)
	}
	if elapsed > 0 {
		s.Throughput = float64(c.chunksProcessed) / elapsed.Seconds()
	}

	return s
}
