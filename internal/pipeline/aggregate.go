package pipeline

import (
	"sort"

	"github.com/cortexlib/glean/internal/types"
)

// aggregate folds completed chunk results into a chapter result: domains
// are unioned, item lists concatenated in chunk order then deduplicated by
// normalized text.
func aggregate(ch types.Chapter, totalChunks int, completed map[int]types.ExtractionResult, failed []int) types.ChapterResult {
	out := types.ChapterResult{
		ChapterIndex: ch.Index,
		ChapterID:    ch.ID,
		Title:        ch.Title,
		TotalChunks:  totalChunks,
		FailedChunks: failed,
	}

	indexes := make([]int, 0, len(completed))
	for i := range completed {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	domainSeen := make(map[string]bool)
	for _, i := range indexes {
		r := completed[i]

		for _, d := range r.Domains {
			key := types.NormalizeText(d)
			if key == "" || domainSeen[key] {
				continue
			}
			domainSeen[key] = true
			out.Domains = append(out.Domains, d)
		}

		out.Principles = append(out.Principles, r.Principles...)
		out.Rules = append(out.Rules, r.Rules...)
		out.Claims = append(out.Claims, r.Claims...)
		out.Warnings = append(out.Warnings, r.Warnings...)

		if r.VerbatimWarning != "" {
			out.VerbatimWarnings = append(out.VerbatimWarnings, r.VerbatimWarning)
		}
	}

	out.Principles = dedupItems(out.Principles)
	out.Rules = dedupItems(out.Rules)
	out.Claims = dedupItems(out.Claims)
	out.Warnings = dedupItems(out.Warnings)

	out.Status = chapterStatus(totalChunks, len(completed), len(failed), out.ItemCount())
	return out
}

// dedupItems collapses items whose normalized text matches, keeping the
// first occurrence. Items restated across chunk boundaries collapse here.
func dedupItems(items []types.Item) []types.Item {
	if len(items) < 2 {
		return items
	}
	seen := make(map[string]bool, len(items))
	out := items[:0]
	for _, item := range items {
		key := item.NormalizedText()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
	}
	return out
}

// chapterStatus assigns the terminal status per the failure taxonomy:
// every chunk failed => failed; a mix => partial; clean completion with
// items => ok; clean completion without items => valid_empty.
func chapterStatus(total, completed, failed, itemCount int) types.ChapterStatus {
	switch {
	case failed >= total:
		return types.StatusFailed
	case failed > 0:
		return types.StatusPartial
	case itemCount > 0:
		return types.StatusOK
	default:
		return types.StatusValidEmpty
	}
}
