package chatcontext

import "unicode"

// Estimator maps text to an approximate token count.
type Estimator interface {
	Estimate(text string) int
}

// EstimatorFunc adapts a plain function to the Estimator interface.
type EstimatorFunc func(text string) int

// Estimate implements Estimator.
func (f EstimatorFunc) Estimate(text string) int {
	return f(text)
}

// HeuristicEstimator approximates token counts from character composition
// without a tokenizer. Its zero value is ready to use.
type HeuristicEstimator struct{}

// Estimate implements Estimator.
func (HeuristicEstimator) Estimate(text string) int {
	return EstimateTokens(text)
}

// EstimateTokens estimates the token count for text.
// The base is ~4 characters per token. Structural punctuation common in code
// ({}[]();) adds half a token each; any rune outside the word and whitespace
// classes subtracts a fifth. Non-empty text is never below 1.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}

	chars, structural, special := 0, 0, 0
	for _, r := range text {
		chars++
		if isStructural(r) {
			structural++
		}
		if !isWord(r) && !unicode.IsSpace(r) {
			special++
		}
	}

	tokens := ceilDiv(chars, 4) + ceilDiv(structural, 2) - ceilDiv(special, 5)
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}

// EstimateMessages sums the estimated tokens of every message's content.
func EstimateMessages(est Estimator, messages []Message) int {
	total := 0
	for _, msg := range messages {
		total += est.Estimate(msg.Content)
	}
	return total
}

func isStructural(r rune) bool {
	switch r {
	case '{', '}', '[', ']', '(', ')', ';':
		return true
	}
	return false
}

// isWord matches the ASCII word class [A-Za-z0-9_].
func isWord(r rune) bool {
	return r == '_' ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}

func ceilDiv(n, d int) int {
	return (n + d - 1) / d
}
