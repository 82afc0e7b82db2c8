package chunker

import (
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

const defaultEncoding = "cl100k_base"

// Estimator converts text to an estimated token count. The same estimator
// instance must be used for chunk sizing and for any token figures reported
// alongside a run, so the advertised context window is never exceeded.
type Estimator interface {
	EstimateTokens(s string) int
}

// HeuristicEstimator approximates one token per four runes. This is the
// fallback when no BPE encoding is available and is exact enough for window
// sizing.
type HeuristicEstimator struct{}

func (HeuristicEstimator) EstimateTokens(s string) int {
	n := utf8.RuneCountInString(s)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}

// TiktokenEstimator counts real BPE tokens via tiktoken.
type TiktokenEstimator struct {
	tke *tiktoken.Tiktoken
}

func NewTiktokenEstimator(encoding string) (*TiktokenEstimator, error) {
	if encoding == "" {
		encoding = defaultEncoding
	}
	tke, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, err
	}
	return &TiktokenEstimator{tke: tke}, nil
}

func (e *TiktokenEstimator) EstimateTokens(s string) int {
	if s == "" {
		return 0
	}
	return len(e.tke.Encode(s, nil, nil))
}

// NewEstimator returns a tiktoken-backed estimator when the encoding can be
// loaded, otherwise the rune heuristic. Loading can fail on a machine without
// the cached BPE files, which must not stop a local-only install.
func NewEstimator(encoding string) Estimator {
	if est, err := NewTiktokenEstimator(encoding); err == nil {
		return est
	}
	return HeuristicEstimator{}
}
