package engine

import (
	"errors"
)

var (
	// ErrEmptyDocument means extraction produced no usable text. Fatal to the
	// run, no inference calls are made.
	ErrEmptyDocument = errors.New("document contains no extractable text")

	// ErrSummarizationFailed means every chunk failed even after retries.
	ErrSummarizationFailed = errors.New("summarization failed for every chunk")

	// ErrContextWindowExceeded means no chunk budget fits the model's context
	// window after subtracting the response reservation and prompt overhead.
	// A configuration problem, never silently truncated.
	ErrContextWindowExceeded = errors.New("chunk budget does not fit model context window")
)

// RunError wraps a fatal run failure together with the statistics accumulated
// up to that point, so callers can still log and display diagnostics.
type RunError struct {
	Err   error
	Stats Stats
}

func (e *RunError) Error() string { return e.Err.Error() }

func (e *RunError) Unwrap() error { return e.Err }
