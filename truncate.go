package chatcontext

import "unicode/utf8"

// TruncationMarker is appended to text that was cut to fit a budget.
const TruncationMarker = "..."

// Truncate shrinks text so that its estimate, marker included, fits maxTokens.
// Text that already fits is returned unchanged, and so is text the marker
// alone would not make any cheaper.
func Truncate(text string, maxTokens int) string {
	return TruncateWith(HeuristicEstimator{}, text, maxTokens, TruncationMarker)
}

// TruncateWith is Truncate with an explicit estimator and marker.
//
// The longest fitting prefix is found by binary search over rune prefix
// lengths. Only prefixes that were measured to fit are ever returned, so the
// result respects maxTokens even for estimators that are not monotonic in
// prefix length; in that case the prefix may be shorter than the longest one
// that would fit.
//
// The result never estimates higher than text. When even the bare marker
// costs as much as text, text is returned as is, over budget.
func TruncateWith(est Estimator, text string, maxTokens int, marker string) string {
	size := est.Estimate(text)
	if size <= maxTokens {
		return text
	}
	if maxTokens <= 0 {
		return cheaper(est, text, size, marker)
	}

	// offsets[i] is the byte offset of the end of the i-rune prefix.
	offsets := make([]int, 0, utf8.RuneCountInString(text)+1)
	for i := range text {
		offsets = append(offsets, i)
	}
	offsets = append(offsets, len(text))

	fits := func(runes int) bool {
		return est.Estimate(text[:offsets[runes]]+marker) <= maxTokens
	}

	lo, hi := 0, len(offsets)-1
	for lo < hi {
		mid := lo + (hi-lo+1)/2
		if fits(mid) {
			lo = mid
		} else {
			hi = mid - 1
		}
	}

	if !fits(lo) {
		return cheaper(est, text, size, marker)
	}
	return text[:offsets[lo]] + marker
}

// cheaper returns candidate only when it estimates below size.
func cheaper(est Estimator, text string, size int, candidate string) string {
	if est.Estimate(candidate) < size {
		return candidate
	}
	return text
}
