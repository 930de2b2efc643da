package extract

import (
	"fmt"
	"strings"

	"github.com/cortexlib/glean/internal/types"
)

// verbatimSpan is the minimum contiguous word run that counts as copied
// source text. Any overlap of at least this length is flagged: a longer
// match necessarily contains a match of exactly this length.
const verbatimSpan = 12

// CheckVerbatim reports whether any text field of the result copies a
// contiguous span of verbatimSpan or more words from the source chunk,
// compared case- and whitespace-normalized. Returns a description of the
// first overlap found, or "" if the result is clean.
func CheckVerbatim(result *types.ExtractionResult, source string) string {
	sourceWords := normalizeWords(source)
	if len(sourceWords) < verbatimSpan {
		return ""
	}

	grams := make(map[string]struct{}, len(sourceWords))
	for i := 0; i+verbatimSpan <= len(sourceWords); i++ {
		grams[strings.Join(sourceWords[i:i+verbatimSpan], " ")] = struct{}{}
	}

	for _, list := range [][]types.Item{
		result.Principles, result.Rules, result.Claims, result.Warnings,
	} {
		for _, item := range list {
			if span := findOverlap(item.Text, grams); span != "" {
				return fmt.Sprintf("verbatim overlap (%d+ words): %q", verbatimSpan, truncate(span, 120))
			}
		}
	}
	return ""
}

// findOverlap returns the first window of text matching a source n-gram.
func findOverlap(text string, grams map[string]struct{}) string {
	words := normalizeWords(text)
	for i := 0; i+verbatimSpan <= len(words); i++ {
		window := strings.Join(words[i:i+verbatimSpan], " ")
		if _, ok := grams[window]; ok {
			return window
		}
	}
	return ""
}

func normalizeWords(s string) []string {
	return strings.Fields(strings.ToLower(s))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
