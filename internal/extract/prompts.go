package extract

import "fmt"

// systemPrompt frames the extraction task for every attempt.
const systemPrompt = `You are a knowledge extraction engine. Given a passage from a book,
extract its actionable knowledge as JSON with exactly these keys:

  "domains":    1 to 3 short topic labels for the passage
  "principles": general guidance the author asserts
  "rules":      concrete do/don't instructions
  "claims":     factual assertions the author makes
  "warnings":   risks, caveats, and failure modes

Each list entry is an object {"text": "..."} written in your own words.
Never copy sentences from the passage verbatim; always paraphrase.
A passage with no actionable content yields empty lists, which is a valid
answer. Respond with the JSON object only, no commentary.`

// paraphraseHarder is appended on the second attempt, after the first
// response failed validation.
const paraphraseHarder = `

IMPORTANT: your previous answer was rejected. Paraphrase much more
aggressively this time: use short sentences, restructure every statement,
and never reuse the passage's phrasing. Emit strictly valid JSON.`

// Attempt identifies one try of the extraction protocol and the prompt
// strategy it uses.
type Attempt struct {
	N        int
	Strategy Strategy
}

// Strategy is a prompt variant.
type Strategy struct {
	Name         string
	SystemSuffix string
}

// strategyFor maps an attempt number to its prompt variant. Attempt 1 uses
// the base prompt; later attempts push harder on paraphrasing.
func strategyFor(n int) Strategy {
	if n <= 1 {
		return Strategy{Name: "base"}
	}
	return Strategy{Name: "paraphrase_harder", SystemSuffix: paraphraseHarder}
}

// buildPrompt renders the user message for a chunk.
func buildPrompt(chunkText string) string {
	return fmt.Sprintf("Passage:\n\n%s", chunkText)
}
