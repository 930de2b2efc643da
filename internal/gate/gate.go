// Package gate provides the adaptive concurrency gate that bounds in-flight
// generation calls. Capacity reacts to explicit rate-limit signals first and
// latency heuristics second.
package gate

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// pollInterval is how often a blocked Acquire rechecks for a free permit.
const pollInterval = 25 * time.Millisecond

// Config sets the controller's bounds and tuning knobs.
// Zero values fall back to the defaults below.
type Config struct {
	// Concurrency bounds.
	Initial int
	Min     int
	Max     int

	// AdjustEvery is how many completed calls trigger an adjustment pass.
	AdjustEvery int

	// RateLimitThreshold is the number of rate-limit hits since the last
	// adjustment that forces a multiplicative backoff.
	RateLimitThreshold int

	// LatencyWindowMin is the minimum number of samples required before
	// latency-based adjustment runs.
	LatencyWindowMin int

	// Latency bounds steering scale-up/scale-down.
	LatencyLower time.Duration
	LatencyUpper time.Duration

	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Initial <= 0 {
		c.Initial = 5
	}
	if c.Min <= 0 {
		c.Min = 1
	}
	if c.Max <= 0 {
		c.Max = 20
	}
	if c.Initial < c.Min {
		c.Initial = c.Min
	}
	if c.Initial > c.Max {
		c.Initial = c.Max
	}
	if c.AdjustEvery <= 0 {
		c.AdjustEvery = 5
	}
	if c.RateLimitThreshold <= 0 {
		c.RateLimitThreshold = 2
	}
	if c.LatencyWindowMin <= 0 {
		c.LatencyWindowMin = 10
	}
	if c.LatencyLower <= 0 {
		c.LatencyLower = 5 * time.Second
	}
	if c.LatencyUpper <= 0 {
		c.LatencyUpper = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Controller is the shared permit gate. All methods are safe for
// concurrent use by any number of workers.
type Controller struct {
	mu sync.Mutex

	cfg    Config
	logger *slog.Logger

	// Current capacity and holders. inFlight may briefly exceed
	// concurrency after a downward adjustment: in-flight holders of old
	// permits are unaffected, only new grants see the new limit.
	concurrency int
	inFlight    int

	// Signals accumulated since the last adjustment.
	latencies     []time.Duration
	rateLimitHits int
	completions   int

	// Lifetime statistics.
	totalAcquired   int64
	totalSuccesses  int64
	totalRateLimits int64
	adjustments     int64
}

// New creates a controller with the given config.
func New(cfg Config) *Controller {
	cfg = cfg.withDefaults()
	return &Controller{
		cfg:         cfg,
		logger:      cfg.Logger,
		concurrency: cfg.Initial,
	}
}

// Acquire blocks until a permit is free or ctx is cancelled.
// Every successful Acquire must be paired with a Release.
func (c *Controller) Acquire(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		c.mu.Lock()
		if c.inFlight < c.concurrency {
			c.inFlight++
			c.totalAcquired++
			c.mu.Unlock()
			return nil
		}
		c.mu.Unlock()

		// Wait outside the lock
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// Release returns a permit.
func (c *Controller) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight > 0 {
		c.inFlight--
	}
}

// RecordSuccess feeds one completed call's latency into the adjustment window.
func (c *Controller) RecordSuccess(latency time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.latencies = append(c.latencies, latency)
	c.totalSuccesses++
	c.completions++
	if c.completions >= c.cfg.AdjustEvery {
		c.adjustLocked()
	}
}

// RecordRateLimit feeds an externally imposed rate-limit signal.
func (c *Controller) RecordRateLimit() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rateLimitHits++
	c.totalRateLimits++
	c.completions++
	if c.completions >= c.cfg.AdjustEvery {
		c.adjustLocked()
	}
}

// adjustLocked re-evaluates capacity. Rate-limit pressure dominates;
// latency heuristics apply only when no backoff fired. Must be called
// with the lock held.
func (c *Controller) adjustLocked() {
	c.completions = 0
	hits := c.rateLimitHits
	c.rateLimitHits = 0

	if hits >= c.cfg.RateLimitThreshold {
		old := c.concurrency
		c.concurrency = maxInt(c.cfg.Min, c.concurrency*7/10)
		c.latencies = c.latencies[:0]
		c.adjustments++
		if c.concurrency != old {
			c.logger.Info("rate-limit backoff",
				"concurrency", c.concurrency, "was", old)
		}
		return
	}

	if len(c.latencies) < c.cfg.LatencyWindowMin {
		return
	}

	var sum time.Duration
	for _, d := range c.latencies {
		sum += d
	}
	avg := sum / time.Duration(len(c.latencies))
	old := c.concurrency

	switch {
	case avg < c.cfg.LatencyLower:
		c.concurrency = minInt(c.cfg.Max, c.concurrency+2)
	case avg > c.cfg.LatencyUpper:
		c.concurrency = maxInt(c.cfg.Min, c.concurrency*9/10)
	}
	c.latencies = c.latencies[:0]

	if c.concurrency != old {
		c.adjustments++
		c.logger.Info("latency adjustment",
			"concurrency", c.concurrency, "was", old,
			"avg_latency", avg.Round(time.Millisecond))
	}
}

// Status reports current gate state.
type Status struct {
	Concurrency     int   `json:"concurrency"`
	Min             int   `json:"min"`
	Max             int   `json:"max"`
	InFlight        int   `json:"in_flight"`
	PendingSamples  int   `json:"pending_samples"`
	TotalAcquired   int64 `json:"total_acquired"`
	TotalSuccesses  int64 `json:"total_successes"`
	TotalRateLimits int64 `json:"total_rate_limits"`
	Adjustments     int64 `json:"adjustments"`
}

// Status returns current controller state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Status{
		Concurrency:     c.concurrency,
		Min:             c.cfg.Min,
		Max:             c.cfg.Max,
		InFlight:        c.inFlight,
		PendingSamples:  len(c.latencies),
		TotalAcquired:   c.totalAcquired,
		TotalSuccesses:  c.totalSuccesses,
		TotalRateLimits: c.totalRateLimits,
		Adjustments:     c.adjustments,
	}
}

// Concurrency returns the current permit capacity.
func (c *Controller) Concurrency() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.concurrency
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
