package chunker

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// Chunk is one token-bounded slice of a document. Start/End are byte offsets
// into the source text; NewStart is the offset where content not shared with
// the previous chunk begins, so concatenating text[NewStart:End] across all
// chunks reproduces the source exactly.
type Chunk struct {
	Index         int
	Text          string
	Start         int
	End           int
	NewStart      int
	TokenCount    int
	OverlapTokens int
}

// Chunker splits raw text into overlapping windows bounded by an estimated
// token budget. It is a pure function of its inputs: the same text and
// parameters always produce the same chunk sequence.
type Chunker struct {
	est Estimator
}

func New(est Estimator) *Chunker {
	return &Chunker{est: est}
}

func (c *Chunker) Estimator() Estimator {
	return c.est
}

// wordSpan marks one maximal non-space run in the source text.
type wordSpan struct {
	start, end int
}

// Split walks the text in windows of maxTokens estimated tokens, each window
// starting maxTokens-overlapTokens after the previous one. Empty text yields
// an empty sequence; text that fits the budget yields a single chunk equal to
// the whole input.
func (c *Chunker) Split(text string, maxTokens, overlapTokens int) ([]Chunk, error) {
	if maxTokens <= 0 {
		return nil, fmt.Errorf("chunker: max tokens must be positive, got %d", maxTokens)
	}
	if overlapTokens < 0 || overlapTokens >= maxTokens {
		return nil, fmt.Errorf("chunker: overlap %d must be in [0, %d)", overlapTokens, maxTokens)
	}

	spans := scanWords(text)
	if len(spans) == 0 {
		return nil, nil
	}

	// cum[i] is the estimated token sum of the first i words.
	cum := make([]int, len(spans)+1)
	for i, sp := range spans {
		cost := c.est.EstimateTokens(text[sp.start:sp.end])
		if cost < 1 {
			cost = 1
		}
		cum[i+1] = cum[i] + cost
	}
	total := cum[len(spans)]

	if total <= maxTokens {
		return []Chunk{{
			Index:      0,
			Text:       text,
			Start:      0,
			End:        len(text),
			NewStart:   0,
			TokenCount: total,
		}}, nil
	}

	advance := maxTokens - overlapTokens

	var chunks []Chunk
	s := 0       // word index of the current window start
	prevEnd := 0 // byte offset where the previous chunk ended
	prevEndTok := 0
	for {
		// Grow the window while it stays within budget.
		e := s
		for e < len(spans) && cum[e+1]-cum[s] <= maxTokens {
			e++
		}
		if e == s {
			// A single word exceeding the budget still has to advance.
			e = s + 1
		}
		last := e == len(spans)

		start := spans[s].start
		end := spans[e-1].end
		if len(chunks) == 0 {
			start = 0
		}
		if last {
			end = len(text)
		}

		ch := Chunk{
			Index:      len(chunks),
			Text:       text[start:end],
			Start:      start,
			End:        end,
			NewStart:   start,
			TokenCount: cum[e] - cum[s],
		}
		if len(chunks) > 0 {
			ch.NewStart = prevEnd
			ch.OverlapTokens = prevEndTok - cum[s]
		}
		chunks = append(chunks, ch)

		if last {
			return chunks, nil
		}
		prevEnd = end
		prevEndTok = cum[e]

		// Move the window start forward by the configured stride.
		next := s
		for next < len(spans) && cum[next]-cum[s] < advance {
			next++
		}
		// The next window must not start past this one's end, or the word
		// that closed it early would land in no chunk.
		if next > e {
			next = e
		}
		if next <= s {
			next = s + 1
		}
		s = next
	}
}

func scanWords(text string) []wordSpan {
	var spans []wordSpan
	inWord := false
	start := 0
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if unicode.IsSpace(r) {
			if inWord {
				spans = append(spans, wordSpan{start: start, end: i})
				inWord = false
			}
		} else if !inWord {
			start = i
			inWord = true
		}
		i += size
	}
	if inWord {
		spans = append(spans, wordSpan{start: start, end: len(text)})
	}
	return spans
}
