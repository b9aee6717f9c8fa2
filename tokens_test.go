package chatcontext

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"single char", "a", 1},
		{"prose", "hello world", 3},
		{"exact multiple", "abcdefgh", 2},
		{"code adds structural weight", "f(x);", 3},
		{"punctuation only clamps to one", "!!!!", 1},
		{"marker", TruncationMarker, 1},
		{"whitespace is not special", "a b c d", 2},
		{"non-ascii letters count as special", "日本語", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EstimateTokens(tt.text))
		})
	}
}

func TestEstimateTokens_NonEmptyIsAtLeastOne(t *testing.T) {
	inputs := []string{" ", "\n", ".", ";", "{}", "x", "....................", "🙂"}
	for _, in := range inputs {
		assert.GreaterOrEqual(t, EstimateTokens(in), 1, "input %q", in)
	}
}

func TestEstimateTokens_MonotonicForPlainText(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog ", 20)
	prev := 0
	for i := 1; i <= len(text); i++ {
		got := EstimateTokens(text[:i])
		require.GreaterOrEqual(t, got, prev, "prefix length %d", i)
		prev = got
	}
}

// The punctuation discount can lower the estimate when a prefix grows, so
// truncation must not rely on monotonicity.
func TestEstimateTokens_PunctuationCanLowerEstimate(t *testing.T) {
	assert.Equal(t, 2, EstimateTokens("abcde"))
	assert.Equal(t, 1, EstimateTokens("abcde,"))
}

func TestEstimateMessages(t *testing.T) {
	messages := []Message{
		NewMessage(RoleSystem, "rules"),
		NewMessage(RoleUser, "hello world"),
		NewMessage(RoleAssistant, ""),
	}
	assert.Equal(t, 5, EstimateMessages(HeuristicEstimator{}, messages))

	words := EstimatorFunc(func(text string) int { return len(strings.Fields(text)) })
	assert.Equal(t, 3, EstimateMessages(words, messages))
}
