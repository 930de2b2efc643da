package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/cortexlib/glean/internal/checkpoint"
	"github.com/cortexlib/glean/internal/metrics"
	"github.com/cortexlib/glean/internal/types"
)

// fakeExtractor scripts per-chunk outcomes without touching a generator.
type fakeExtractor struct {
	store checkpoint.Store

	// failChunks marks chunk indexes that terminally fail.
	failChunks map[int]bool

	// resultFor computes the result for a chunk (optional).
	resultFor func(chunkIndex int) types.ExtractionResult

	calls atomic.Int64
}

func (f *fakeExtractor) Extract(ctx context.Context, chapterKey string, chapterIndex, chunkIndex, totalChunks int, chunkText string) (types.ExtractionResult, error) {
	f.calls.Add(1)
	if f.failChunks[chunkIndex] {
		return types.ExtractionResult{}, fmt.Errorf("scripted failure for chunk %d", chunkIndex)
	}

	var result types.ExtractionResult
	if f.resultFor != nil {
		result = f.resultFor(chunkIndex)
	} else {
		result = types.ExtractionResult{
			Domains:    []string{"general"},
			Principles: []types.Item{{Text: fmt.Sprintf("principle from chunk %d", chunkIndex)}},
		}
	}

	if f.store != nil {
		if err := f.store.MarkCompleted(chapterKey, chunkIndex, totalChunks, result); err != nil {
			return types.ExtractionResult{}, err
		}
	}
	return result, nil
}

func chapterWithChunks(index, numChunks int) types.Chapter {
	text := ""
	for i := 0; i < numChunks; i++ {
		// Each paragraph is sized so one paragraph = one chunk at size 100.
		text += fmt.Sprintf("Chapter %d paragraph %d filler text to push this paragraph close to the boundary.\n\n", index, i)
	}
	ch := types.Chapter{Index: index, Title: fmt.Sprintf("Chapter %d", index), RawText: text}
	ch.ID = types.ChapterID(ch.RawText)
	return ch
}

func TestChapterProcessor_Process(t *testing.T) {
	t.Run("all chunks succeed", func(t *testing.T) {
		store := checkpoint.NewMemoryStore()
		fake := &fakeExtractor{store: store}
		p := NewChapterProcessor(ChapterConfig{
			Extractor:    fake,
			Checkpoints:  store,
			MaxChunkSize: 100,
		})

		ch := chapterWithChunks(0, 3)
		res := p.Process(context.Background(), ch)

		if res.Status != types.StatusOK {
			t.Errorf("Status = %s, want ok", res.Status)
		}
		if res.TotalChunks != 3 {
			t.Errorf("TotalChunks = %d, want 3", res.TotalChunks)
		}
		if len(res.Principles) != 3 {
			t.Errorf("Principles = %d, want 3", len(res.Principles))
		}
		done, _ := store.IsCompleted(ch.ID)
		if !done {
			t.Error("chapter should be fully checkpointed")
		}
	})

	t.Run("empty chapter is valid_empty", func(t *testing.T) {
		p := NewChapterProcessor(ChapterConfig{
			Extractor:   &fakeExtractor{},
			Checkpoints: checkpoint.NewMemoryStore(),
		})
		res := p.Process(context.Background(), types.Chapter{Index: 1, RawText: "   "})
		if res.Status != types.StatusValidEmpty {
			t.Errorf("Status = %s, want valid_empty", res.Status)
		}
	})

	t.Run("no items is valid_empty", func(t *testing.T) {
		store := checkpoint.NewMemoryStore()
		fake := &fakeExtractor{
			store: store,
			resultFor: func(int) types.ExtractionResult {
				return types.ExtractionResult{Domains: []string{"narrative"}}
			},
		}
		p := NewChapterProcessor(ChapterConfig{
			Extractor: fake, Checkpoints: store, MaxChunkSize: 100,
		})
		res := p.Process(context.Background(), chapterWithChunks(2, 2))
		if res.Status != types.StatusValidEmpty {
			t.Errorf("Status = %s, want valid_empty", res.Status)
		}
	})

	t.Run("partial failure isolation", func(t *testing.T) {
		store := checkpoint.NewMemoryStore()
		fake := &fakeExtractor{store: store, failChunks: map[int]bool{1: true}}
		p := NewChapterProcessor(ChapterConfig{
			Extractor: fake, Checkpoints: store, MaxChunkSize: 100,
		})

		res := p.Process(context.Background(), chapterWithChunks(3, 3))

		if res.Status != types.StatusPartial {
			t.Errorf("Status = %s, want partial", res.Status)
		}
		if len(res.FailedChunks) != 1 || res.FailedChunks[0] != 1 {
			t.Errorf("FailedChunks = %v, want [1]", res.FailedChunks)
		}
		// Other chunks still contributed.
		if len(res.Principles) != 2 {
			t.Errorf("Principles = %d, want 2", len(res.Principles))
		}
	})

	t.Run("all chunks fail", func(t *testing.T) {
		fake := &fakeExtractor{failChunks: map[int]bool{0: true, 1: true, 2: true}}
		p := NewChapterProcessor(ChapterConfig{
			Extractor: fake, Checkpoints: checkpoint.NewMemoryStore(), MaxChunkSize: 100,
		})
		res := p.Process(context.Background(), chapterWithChunks(4, 3))
		if res.Status != types.StatusFailed {
			t.Errorf("Status = %s, want failed", res.Status)
		}
	})
}

func TestChapterProcessor_Resume(t *testing.T) {
	t.Run("completed chapter makes zero extract calls", func(t *testing.T) {
		store := checkpoint.NewMemoryStore()
		ch := chapterWithChunks(0, 3)

		// First pass populates the checkpoint.
		first := &fakeExtractor{store: store}
		p := NewChapterProcessor(ChapterConfig{
			Extractor: first, Checkpoints: store, MaxChunkSize: 100,
		})
		firstRes := p.Process(context.Background(), ch)

		// Second pass with a fresh extractor must reconstruct purely
		// from checkpoint data.
		second := &fakeExtractor{store: store}
		coll := metrics.NewCollector()
		p2 := NewChapterProcessor(ChapterConfig{
			Extractor: second, Checkpoints: store, Metrics: coll, MaxChunkSize: 100,
		})
		res := p2.Process(context.Background(), ch)

		if second.calls.Load() != 0 {
			t.Errorf("resume made %d extract calls, want 0", second.calls.Load())
		}
		if res.Status != firstRes.Status || len(res.Principles) != len(firstRes.Principles) {
			t.Errorf("resumed result differs: %+v vs %+v", res, firstRes)
		}
		if s := coll.Snapshot(); s.ChunksSkipped != 3 {
			t.Errorf("ChunksSkipped = %d, want 3", s.ChunksSkipped)
		}
	})

	t.Run("partially checkpointed chapter extracts only the rest", func(t *testing.T) {
		store := checkpoint.NewMemoryStore()
		ch := chapterWithChunks(0, 3)

		// Pre-checkpoint chunk 1 only.
		pre := types.ExtractionResult{
			Domains:    []string{"general"},
			Principles: []types.Item{{Text: "already done"}},
		}
		if err := store.MarkCompleted(ch.ID, 1, 3, pre); err != nil {
			t.Fatalf("MarkCompleted() error = %v", err)
		}

		fake := &fakeExtractor{store: store}
		p := NewChapterProcessor(ChapterConfig{
			Extractor: fake, Checkpoints: store, MaxChunkSize: 100,
		})
		res := p.Process(context.Background(), ch)

		if fake.calls.Load() != 2 {
			t.Errorf("extract calls = %d, want 2 (chunk 1 resumed)", fake.calls.Load())
		}
		if res.Status != types.StatusOK {
			t.Errorf("Status = %s, want ok", res.Status)
		}
		found := false
		for _, item := range res.Principles {
			if item.Text == "already done" {
				found = true
			}
		}
		if !found {
			t.Error("checkpointed chunk result missing from aggregate")
		}
	})

	t.Run("chunk count mismatch discards checkpoint", func(t *testing.T) {
		store := checkpoint.NewMemoryStore()
		ch := chapterWithChunks(0, 3)

		// Checkpoint claims a different chunking.
		if err := store.MarkCompleted(ch.ID, 0, 7, types.ExtractionResult{Domains: []string{"x"}}); err != nil {
			t.Fatalf("MarkCompleted() error = %v", err)
		}

		fake := &fakeExtractor{store: store}
		p := NewChapterProcessor(ChapterConfig{
			Extractor: fake, Checkpoints: store, MaxChunkSize: 100,
		})
		p.Process(context.Background(), ch)

		if fake.calls.Load() != 3 {
			t.Errorf("extract calls = %d, want 3 (stale checkpoint discarded)", fake.calls.Load())
		}
	})
}

func TestAggregate_Dedup(t *testing.T) {
	ch := types.Chapter{Index: 0, ID: "ch"}
	completed := map[int]types.ExtractionResult{
		0: {
			Domains:    []string{"Leadership"},
			Principles: []types.Item{{Text: "Prioritize clear objectives"}},
		},
		1: {
			Domains:    []string{"leadership"},
			Principles: []types.Item{{Text: "  prioritize   CLEAR objectives "}},
		},
	}

	res := aggregate(ch, 2, completed, nil)

	// Same text restated across chunks with different case/whitespace
	// collapses to one item.
	if len(res.Principles) != 1 {
		t.Errorf("Principles = %v, want exactly 1 after dedup", res.Principles)
	}
	if len(res.Domains) != 1 {
		t.Errorf("Domains = %v, want exactly 1 after union", res.Domains)
	}
	// First occurrence wins.
	if res.Principles[0].Text != "Prioritize clear objectives" {
		t.Errorf("kept %q, want first occurrence", res.Principles[0].Text)
	}
}

func TestAggregate_VerbatimWarningsCollected(t *testing.T) {
	ch := types.Chapter{Index: 0, ID: "ch"}
	completed := map[int]types.ExtractionResult{
		0: {Domains: []string{"x"}, Claims: []types.Item{{Text: "a"}}, VerbatimWarning: "overlap in chunk 0"},
		1: {Domains: []string{"x"}, Claims: []types.Item{{Text: "b"}}},
	}
	res := aggregate(ch, 2, completed, nil)
	if len(res.VerbatimWarnings) != 1 {
		t.Errorf("VerbatimWarnings = %v, want 1 entry", res.VerbatimWarnings)
	}
}
