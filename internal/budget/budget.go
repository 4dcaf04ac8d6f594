// Package budget provides token budget estimation for retrieved context and
// generation prompts. Because the generator supports multiple LLM backends with
// different tokenizers, this package uses a character-based heuristic:
// 1 token ≈ 4 characters (English prose and code). Retrieval budgeting and
// prompt warnings both depend on this exact ratio, so replacing it with a real
// tokenizer changes which context chunks are selected.
package budget

import (
	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default budget, in estimated tokens, for
	// retrieved context passed to the generation step. Override with
	// MAX_CONTEXT_TOKENS.
	DefaultMaxContextTokens = 8000

	// messageOverhead is the per-message framing cost most chat APIs add.
	messageOverhead = 4
)

// Estimate returns len(s)/4, truncated. Inputs shorter than four characters
// estimate to zero tokens.
func Estimate(s string) int {
	return len(s) / charsPerToken
}

// EstimateAll returns the summed estimate of every string in texts.
func EstimateAll(texts []string) int {
	total := 0
	for _, t := range texts {
		total += Estimate(t)
	}
	return total
}

// EstimateMessages returns the estimated total token count for a slice of
// schema.Message values, summing role + content for each message.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		total += messageOverhead
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// Fits reports whether adding next to a running total of used tokens stays
// within max.
func Fits(used int, next string, max int) bool {
	return used+Estimate(next) <= max
}
