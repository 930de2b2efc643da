package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cortexlib/glean/internal/checkpoint"
	"github.com/cortexlib/glean/internal/extract"
	"github.com/cortexlib/glean/internal/gate"
	"github.com/cortexlib/glean/internal/metrics"
	"github.com/cortexlib/glean/internal/providers"
	"github.com/cortexlib/glean/internal/types"
)

func makeChapters(n, chunksEach int) []types.Chapter {
	chapters := make([]types.Chapter, n)
	for i := 0; i < n; i++ {
		chapters[i] = chapterWithChunks(i, chunksEach)
	}
	return chapters
}

// buildRunner wires a full stack: mock generator -> extractor -> chapter
// processor -> runner, sharing one gate and checkpoint store.
func buildRunner(t *testing.T, mock *providers.MockGenerator, store checkpoint.Store, g *gate.Controller, workers int) (*Runner, *metrics.Collector) {
	t.Helper()

	coll := metrics.NewCollector()
	ex, err := extract.New(extract.Config{
		Generator:   mock,
		Gate:        g,
		Checkpoints: store,
		Metrics:     coll,
	})
	if err != nil {
		t.Fatalf("extract.New() error = %v", err)
	}

	proc := NewChapterProcessor(ChapterConfig{
		Extractor:    ex,
		Checkpoints:  store,
		Metrics:      coll,
		MaxChunkSize: 100,
	})

	runner, err := NewRunner(RunnerConfig{
		Processor:  proc,
		Metrics:    coll,
		NumWorkers: workers,
	})
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}
	return runner, coll
}

func TestRunner_OrderPreservation(t *testing.T) {
	mock := providers.NewMockGenerator()
	// Random-ish latency so completion order scrambles.
	mock.ResponseFunc = func(req *providers.GenerateRequest, callNum int64) (string, error) {
		time.Sleep(time.Duration(callNum%5) * time.Millisecond)
		return mock.ResponseText, nil
	}

	runner, _ := buildRunner(t, mock, checkpoint.NewMemoryStore(), gate.New(gate.Config{Initial: 8, Max: 8}), 4)
	chapters := makeChapters(10, 2)

	results, err := runner.Run(context.Background(), chapters)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(results) != 10 {
		t.Fatalf("got %d results, want 10", len(results))
	}
	for i, res := range results {
		if res.ChapterIndex != i {
			t.Errorf("results[%d].ChapterIndex = %d, want %d", i, res.ChapterIndex, i)
		}
	}
}

func TestRunner_ConcurrencyBound(t *testing.T) {
	mock := providers.NewMockGenerator()
	mock.Latency = 20 * time.Millisecond

	// Many workers, tight gate: in-flight generate calls must respect the
	// gate, not the worker count.
	g := gate.New(gate.Config{Initial: 3, Min: 3, Max: 3})
	runner, _ := buildRunner(t, mock, checkpoint.NewMemoryStore(), g, 8)

	_, err := runner.Run(context.Background(), makeChapters(8, 2))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if peak := mock.PeakInFlight(); peak > 3 {
		t.Errorf("peak in-flight generate calls = %d, want <= 3", peak)
	}
}

func TestRunner_IdempotentResume(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	g := gate.New(gate.Config{Initial: 4, Max: 8})
	chapters := makeChapters(5, 3)

	mock := providers.NewMockGenerator()
	runner, _ := buildRunner(t, mock, store, g, 3)
	first, err := runner.Run(context.Background(), chapters)
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if mock.RequestCount() == 0 {
		t.Fatal("first run made no generate calls")
	}

	// Second run over the same checkpoint store must be a pure replay.
	mock2 := providers.NewMockGenerator()
	runner2, coll := buildRunner(t, mock2, store, gate.New(gate.Config{Initial: 4, Max: 8}), 3)
	second, err := runner2.Run(context.Background(), chapters)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	if mock2.RequestCount() != 0 {
		t.Errorf("resumed run made %d generate calls, want 0", mock2.RequestCount())
	}
	if s := coll.Snapshot(); s.ChunksSkipped != 15 {
		t.Errorf("ChunksSkipped = %d, want 15", s.ChunksSkipped)
	}

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Error("resumed output differs from uninterrupted run")
	}
}

func TestRunner_ResumeAfterInterruption(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	chapters := makeChapters(4, 2)

	// First run: generator dies partway through, some chapters fail.
	mock := providers.NewMockGenerator()
	var succeeded atomic.Int64
	mock.ResponseFunc = func(req *providers.GenerateRequest, callNum int64) (string, error) {
		if succeeded.Load() >= 3 {
			return "", fmt.Errorf("connection refused")
		}
		succeeded.Add(1)
		return mock.ResponseText, nil
	}
	runner, _ := buildRunner(t, mock, store, gate.New(gate.Config{Initial: 2, Max: 4}), 1)
	if _, err := runner.Run(context.Background(), chapters); err != nil {
		t.Fatalf("interrupted Run() error = %v", err)
	}

	// Second run with a healthy generator finishes the rest without
	// recomputing the three checkpointed chunks.
	mock2 := providers.NewMockGenerator()
	runner2, _ := buildRunner(t, mock2, store, gate.New(gate.Config{Initial: 2, Max: 4}), 1)
	results, err := runner2.Run(context.Background(), chapters)
	if err != nil {
		t.Fatalf("resumed Run() error = %v", err)
	}

	wantCalls := int64(4*2 - 3)
	if mock2.RequestCount() != wantCalls {
		t.Errorf("resumed run made %d generate calls, want %d", mock2.RequestCount(), wantCalls)
	}
	for i, res := range results {
		if res.Status != types.StatusOK {
			t.Errorf("chapter %d status = %s, want ok after resume", i, res.Status)
		}
	}
}

func TestRunner_TotalFailureEscalation(t *testing.T) {
	mock := providers.NewMockGenerator()
	mock.ShouldFail = true

	runner, _ := buildRunner(t, mock, checkpoint.NewMemoryStore(), gate.New(gate.Config{Initial: 4, Max: 8}), 2)
	results, err := runner.Run(context.Background(), makeChapters(3, 2))

	if !errors.Is(err, ErrAllChaptersFailed) {
		t.Fatalf("Run() error = %v, want ErrAllChaptersFailed", err)
	}
	// Results are still returned for reporting.
	if len(results) != 3 {
		t.Errorf("got %d results, want 3", len(results))
	}
	for _, res := range results {
		if res.Status != types.StatusFailed {
			t.Errorf("chapter %d status = %s, want failed", res.ChapterIndex, res.Status)
		}
	}
}

func TestRunner_PartialFailureDoesNotAbort(t *testing.T) {
	// Chapter 1's chunks always fail; others succeed.
	mock := providers.NewMockGenerator()
	mock.ResponseFunc = func(req *providers.GenerateRequest, callNum int64) (string, error) {
		if len(req.Prompt) > 0 && containsChapterMarker(req.Prompt, 1) {
			return "", fmt.Errorf("permanent generator error")
		}
		return mock.ResponseText, nil
	}

	runner, _ := buildRunner(t, mock, checkpoint.NewMemoryStore(), gate.New(gate.Config{Initial: 4, Max: 8}), 2)
	results, err := runner.Run(context.Background(), makeChapters(3, 2))
	if err != nil {
		t.Fatalf("Run() error = %v, partial failure must not abort", err)
	}

	if results[1].Status != types.StatusFailed {
		t.Errorf("chapter 1 status = %s, want failed", results[1].Status)
	}
	for _, i := range []int{0, 2} {
		if results[i].Status != types.StatusOK {
			t.Errorf("chapter %d status = %s, want ok", i, results[i].Status)
		}
	}
}

func TestRunner_EmptyInput(t *testing.T) {
	runner, _ := buildRunner(t, providers.NewMockGenerator(), checkpoint.NewMemoryStore(), gate.New(gate.Config{}), 2)
	results, err := runner.Run(context.Background(), nil)
	if err != nil || results != nil {
		t.Errorf("Run(nil) = (%v, %v), want (nil, nil)", results, err)
	}
}

func TestRunner_Cancellation(t *testing.T) {
	mock := providers.NewMockGenerator()
	mock.Latency = 50 * time.Millisecond

	store := checkpoint.NewMemoryStore()
	runner, _ := buildRunner(t, mock, store, gate.New(gate.Config{Initial: 2, Max: 2}), 2)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(75 * time.Millisecond)
		cancel()
	}()

	results, _ := runner.Run(ctx, makeChapters(20, 2))

	// The run terminates promptly and every chapter is accounted for.
	if len(results) != 20 {
		t.Fatalf("got %d results, want 20 (synthetic failures included)", len(results))
	}
	var failed int
	for _, res := range results {
		if res.Status == types.StatusFailed {
			failed++
		}
	}
	if failed == 0 {
		t.Error("expected some chapters to fail after cancellation")
	}
}

// containsChapterMarker reports whether the prompt's passage came from the
// given chapter (chapterWithChunks embeds "Chapter <n> paragraph").
func containsChapterMarker(prompt string, chapter int) bool {
	return strings.Contains(prompt, fmt.Sprintf("Chapter %d paragraph", chapter))
}
