package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creastat/chatcontext"
)

// The BPE ranks are fetched on first use; skip when they are unavailable.
func newTiktoken(t *testing.T) *Tiktoken {
	t.Helper()
	tk, err := New("")
	if err != nil {
		t.Skipf("tiktoken encoding unavailable: %v", err)
	}
	return tk
}

func TestTiktokenEstimate(t *testing.T) {
	tk := newTiktoken(t)
	assert.Equal(t, 0, tk.Estimate(""))
	assert.Equal(t, 2, tk.Estimate("hello world"))
}

func TestTiktokenDrivesBudgeter(t *testing.T) {
	tk := newTiktoken(t)
	b := chatcontext.NewBudgeter(chatcontext.WithEstimator(tk))

	long := strings.Repeat("the context window is finite ", 200)
	res := b.Apply([]chatcontext.Message{
		chatcontext.NewMessage(chatcontext.RoleSystem, "be brief"),
		chatcontext.NewMessage(chatcontext.RoleUser, long),
	}, 50)

	require.Len(t, res.Messages, 2)
	assert.True(t, res.Truncated)
	assert.LessOrEqual(t, res.Tokens, 50)
	assert.True(t, strings.HasSuffix(res.Messages[1].Content, chatcontext.TruncationMarker))
}

func TestSelect(t *testing.T) {
	est, err := Select("heuristic")
	require.NoError(t, err)
	assert.IsType(t, chatcontext.HeuristicEstimator{}, est)

	est, err = Select("")
	require.NoError(t, err)
	assert.IsType(t, chatcontext.HeuristicEstimator{}, est)

	_, err = Select("sentencepiece")
	assert.Error(t, err)
}
