package providers

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

const MockName = "mock"

// MockGenerator is a Generator for testing.
type MockGenerator struct {
	// Configurable behavior
	Latency      time.Duration
	ResponseText string

	// ResponseFunc, when set, computes the response per request and takes
	// precedence over ResponseText.
	ResponseFunc func(req *GenerateRequest, callNum int64) (string, error)

	// ShouldFail makes every call fail.
	ShouldFail bool
	// FailFirst makes the first N calls fail (then succeed).
	FailFirst int64
	// RateLimitEvery makes every Nth call return ErrRateLimited (0 = never).
	RateLimitEvery int64

	// State
	requestCount atomic.Int64
	inFlight     atomic.Int64
	peakInFlight atomic.Int64
}

// NewMockGenerator creates a mock with sensible defaults.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{
		Latency:      5 * time.Millisecond,
		ResponseText: `{"domains":["general"],"principles":[{"text":"A generic mock principle."}],"rules":[],"claims":[],"warnings":[]}`,
	}
}

// Name returns the client identifier.
func (m *MockGenerator) Name() string {
	return MockName
}

// RequestCount returns the total number of Generate calls made.
func (m *MockGenerator) RequestCount() int64 {
	return m.requestCount.Load()
}

// PeakInFlight returns the maximum number of concurrent Generate calls
// observed, for asserting concurrency bounds in tests.
func (m *MockGenerator) PeakInFlight() int64 {
	return m.peakInFlight.Load()
}

// Generate returns the configured response after the configured latency.
func (m *MockGenerator) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error) {
	start := time.Now()
	count := m.requestCount.Add(1)

	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		p := m.peakInFlight.Load()
		if n <= p || m.peakInFlight.CompareAndSwap(p, n) {
			break
		}
	}

	// Simulate latency
	if m.Latency > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.Latency):
		}
	}

	if m.RateLimitEvery > 0 && count%m.RateLimitEvery == 0 {
		return nil, fmt.Errorf("%w: mock 429", ErrRateLimited)
	}
	if m.ShouldFail {
		return nil, fmt.Errorf("mock generator configured to fail")
	}
	if m.FailFirst > 0 && count <= m.FailFirst {
		return nil, fmt.Errorf("mock generator failing call %d of first %d", count, m.FailFirst)
	}

	text := m.ResponseText
	if m.ResponseFunc != nil {
		var err error
		text, err = m.ResponseFunc(req, count)
		if err != nil {
			return nil, err
		}
	}

	return &GenerateResult{
		Text:    text,
		Model:   req.Model,
		Latency: time.Since(start),
	}, nil
}
