package chatcontext

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncate_FitsUnchanged(t *testing.T) {
	assert.Equal(t, "hello world", Truncate("hello world", 100))
	assert.Equal(t, "", Truncate("", 1))
}

func TestTruncate_NonPositiveBudget(t *testing.T) {
	assert.Equal(t, TruncationMarker, Truncate("hello world", 0))
	assert.Equal(t, TruncationMarker, Truncate("hello world", -3))
}

func TestTruncate_NeverGrowsText(t *testing.T) {
	assert.Equal(t, "", Truncate("", 0))
	assert.Equal(t, "", Truncate("", -1))
	// "hi" costs 1 like the marker, so cutting it buys nothing
	assert.Equal(t, "hi", Truncate("hi", 0))

	wide := EstimatorFunc(func(text string) int { return len(text) })
	assert.Equal(t, "abc", TruncateWith(wide, "abc", 1, "[cut]"))
}

func TestTruncate_LongestPrefix(t *testing.T) {
	text := strings.Repeat("a", 100)
	got := Truncate(text, 5)

	// ceil((21+3)/4) - ceil(3/5) = 5
	assert.Equal(t, strings.Repeat("a", 21)+TruncationMarker, got)
	assert.LessOrEqual(t, EstimateTokens(got), 5)
}

func TestTruncate_RespectsBudget(t *testing.T) {
	text := strings.Repeat("func main() { fmt.Println(\"hi\"); } // comment, more text. ", 40)
	for _, limit := range []int{1, 2, 3, 7, 16, 50, 120} {
		got := Truncate(text, limit)
		require.True(t, strings.HasSuffix(got, TruncationMarker), "limit %d", limit)
		require.True(t, strings.HasPrefix(text, strings.TrimSuffix(got, TruncationMarker)), "limit %d", limit)
		require.LessOrEqual(t, EstimateTokens(got), limit, "limit %d", limit)
	}
}

func TestTruncate_Idempotent(t *testing.T) {
	text := strings.Repeat("tell me more about budgets ", 30)
	once := Truncate(text, 12)
	assert.Equal(t, once, Truncate(once, 12))
}

func TestTruncate_KeepsRunesWhole(t *testing.T) {
	text := strings.Repeat("héllo wörld ünïcode ", 20)
	got := Truncate(text, 9)
	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, EstimateTokens(got), 9)
}

func TestTruncateWith_NonMonotonicEstimator(t *testing.T) {
	// Odd prefixes are cheap, even ones are expensive.
	erratic := EstimatorFunc(func(text string) int {
		n := utf8.RuneCountInString(text)
		if n%2 == 0 {
			return n
		}
		return n / 3
	})

	text := strings.Repeat("x", 64)
	got := TruncateWith(erratic, text, 10, "~")
	assert.True(t, strings.HasSuffix(got, "~"))
	assert.LessOrEqual(t, erratic.Estimate(got), 10)
}

func TestTruncateWith_MarkerAloneTooLarge(t *testing.T) {
	got := TruncateWith(EstimatorFunc(func(text string) int { return len(text) }), "abcdefgh", 2, "[cut]")
	assert.Equal(t, "[cut]", got)
}
