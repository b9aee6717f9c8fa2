// Package tokenizer provides a chatcontext.Estimator backed by tiktoken-go,
// for callers that prefer exact BPE counts over the heuristic.
package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/creastat/chatcontext"
)

// DefaultEncoding is the BPE encoding used by GPT-3.5/4 class models.
const DefaultEncoding = "cl100k_base"

// Tiktoken counts tokens with a tiktoken encoding.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// New loads the named encoding. An empty name selects DefaultEncoding.
func New(encoding string) (*Tiktoken, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding %s: %w", encoding, err)
	}
	return &Tiktoken{enc: enc}, nil
}

// Estimate implements chatcontext.Estimator.
func (t *Tiktoken) Estimate(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.Encode(text, nil, nil))
}

// Select returns the estimator named by kind: "tiktoken" loads the default
// encoding, "heuristic" or an empty kind yields the heuristic estimator, and
// any other kind is an error.
func Select(kind string) (chatcontext.Estimator, error) {
	switch kind {
	case "tiktoken":
		return New(DefaultEncoding)
	case "", "heuristic":
		return chatcontext.HeuristicEstimator{}, nil
	default:
		return nil, fmt.Errorf("unknown tokenizer %q", kind)
	}
}

var _ chatcontext.Estimator = (*Tiktoken)(nil)
