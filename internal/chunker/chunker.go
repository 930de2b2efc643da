// Package chunker splits chapter text into bounded-size chunks.
//
// Chunk boundaries are a pure function of the input text, so the same
// chapter always yields the same chunks across runs. Checkpointing depends
// on this: a checkpoint records results by chunk index and is only valid
// if those indexes mean the same text on resume.
package chunker

import "strings"

// DefaultMaxChunkSize is the default upper bound on chunk length in bytes.
const DefaultMaxChunkSize = 8000

// Split divides text into chunks of at most maxSize bytes, preferring
// paragraph boundaries, then sentence boundaries, then a hard cut.
func Split(text string, maxSize int) []string {
	if maxSize <= 0 {
		maxSize = DefaultMaxChunkSize
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= maxSize {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		// Paragraph fits into the current chunk.
		need := len(para)
		if current.Len() > 0 {
			need += 2 // separator
		}
		if current.Len()+need <= maxSize {
			if current.Len() > 0 {
				current.WriteString("\n\n")
			}
			current.WriteString(para)
			continue
		}

		flush()

		if len(para) <= maxSize {
			current.WriteString(para)
			continue
		}

		// Oversized paragraph: split on sentences, hard cut as last resort.
		for _, piece := range splitOversized(para, maxSize) {
			if current.Len() > 0 && current.Len()+len(piece)+1 <= maxSize {
				current.WriteString(" ")
				current.WriteString(piece)
				continue
			}
			flush()
			current.WriteString(piece)
		}
	}
	flush()

	return chunks
}

// splitOversized breaks a paragraph longer than maxSize into pieces no
// longer than maxSize, cutting at sentence ends where possible.
func splitOversized(para string, maxSize int) []string {
	sentences := splitSentences(para)

	var pieces []string
	for _, s := range sentences {
		for len(s) > maxSize {
			pieces = append(pieces, s[:maxSize])
			s = s[maxSize:]
		}
		if s != "" {
			pieces = append(pieces, s)
		}
	}
	return pieces
}

// splitSentences cuts text after sentence-ending punctuation followed by a
// space. Deliberately simple: the goal is stable boundaries, not perfect
// sentence detection.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text)-1; i++ {
		c := text[i]
		if (c == '.' || c == '!' || c == '?') && text[i+1] == ' ' {
			out = append(out, strings.TrimSpace(text[start:i+1]))
			start = i + 2
		}
	}
	if start < len(text) {
		if s := strings.TrimSpace(text[start:]); s != "" {
			out = append(out, s)
		}
	}
	return out
}
