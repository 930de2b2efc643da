package metrics

import (
	"fmt"
	"strings"
	"time"
)

// Report renders a final human-readable summary of a run.
func (s Snapshot) Report() string {
	var b strings.Builder

	fmt.Fprintf(&b, "elapsed: %s\n", s.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(&b, "chunks: %d processed (%d succeeded, %d failed, %d from checkpoint)\n",
		s.ChunksProcessed, s.ChunksSucceeded, s.ChunksFailed, s.ChunksSkipped)
	fmt.Fprintf(&b, "retries: %d  rate-limit hits: %d  soft failures: %d\n",
		s.Retries, s.RateLimitHits, s.SoftFailures)
	fmt.Fprintf(&b, "errors: %d validation, %d generation\n",
		s.ValidationErrors, s.GenerationErrors)

	if len(s.ChaptersByStatus) > 0 {
		b.WriteString("chapters:")
		for _, status := range []string{"ok", "valid_empty", "partial", "failed"} {
			if n, ok := s.ChaptersByStatus[status]; ok {
				fmt.Fprintf(&b, " %s=%d", status, n)
			}
		}
		b.WriteString("\n")
	}

	if s.LatencySamples > 0 {
		fmt.Fprintf(&b, "latency: %s avg (run), %s avg (window of %d)\n",
			s.RunAvgLatency.Round(time.Millisecond),
			s.WindowAvgLatency.Round(time.Millisecond),
			min64(s.LatencySamples, latencyWindowSize))
	}
	fmt.Fprintf(&b, "throughput: %.2f chunks/s\n", s.Throughput)

	return b.String()
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
