package chunker

import "strings"

// EstimateTokens gives a rough token count for a chunk, ignoring math
// markers. Exact tokenization depends on the embedding model and is not
// needed for sizing reports.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	text = strings.NewReplacer(MathOpen, " ", MathClose, " ").Replace(text)
	words := len(strings.Fields(text))
	// Roughly 1.33 tokens per English word; formulas skew higher but are rare.
	tokens := int(float64(words) * 1.33)
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}
