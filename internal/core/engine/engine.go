package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sethvargo/go-retry"

	"github.com/privadoc/privadoc/internal/core/chunker"
	"github.com/privadoc/privadoc/internal/core/llm"
	"github.com/privadoc/privadoc/internal/core/prompt"
)

// State names one phase of a summarization run.
type State string

const (
	StateIdle        State = "idle"
	StateChunking    State = "chunking"
	StateMapPhase    State = "map"
	StateReducePhase State = "reduce"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// FailedChunkPlaceholder replaces the partial summary of a chunk whose
// inference calls failed even after the retry. Processing continues; a partial
// summary is still useful to the user.
const FailedChunkPlaceholder = "[Summary unavailable for this section of the document.]"

// InferenceClient is the handle the engine drives the local model through.
// Passed in by reference so tests can substitute a deterministic fake.
type InferenceClient interface {
	Generate(ctx context.Context, prompt string, opts llm.Options) (*llm.Generation, error)
}

// Config is the validated model/run configuration the engine operates under.
type Config struct {
	Model             string
	ContextWindow     int
	OverlapTokens     int
	MaxResponseTokens int
	Temperature       float64
	// Retries is the number of additional attempts per inference call.
	Retries    int
	RetryDelay time.Duration
}

// Request is one document to summarize.
type Request struct {
	Text         string
	TemplateKey  string
	CustomPrompt string
}

// Stats aggregates what a run cost, kept even when the run fails.
type Stats struct {
	ChunkCount     int
	DegradedChunks int
	Calls          int
	TotalTokens    int
	TotalDuration  time.Duration
}

// Result is the final summary of one run.
type Result struct {
	Summary  string
	Insights []string
	Model    string
	Template string
	Stats    Stats
	Trace    []State
}

// Engine orchestrates chunker, prompt builder and inference client across all
// chunks of one document: map each chunk to a partial summary, then reduce the
// partials into one bounded summary. Safe for concurrent use; all run state
// lives on the per-call run value.
type Engine struct {
	client  InferenceClient
	chunks  *chunker.Chunker
	prompts *prompt.Registry
	cfg     Config
	log     *log.Logger
}

func New(client InferenceClient, ck *chunker.Chunker, reg *prompt.Registry, cfg Config, logger *log.Logger) (*Engine, error) {
	if cfg.ContextWindow <= 0 {
		return nil, fmt.Errorf("engine: context window must be positive, got %d", cfg.ContextWindow)
	}
	if cfg.MaxResponseTokens <= 0 || cfg.MaxResponseTokens >= cfg.ContextWindow {
		return nil, fmt.Errorf("engine: max response tokens %d must be in (0, %d)", cfg.MaxResponseTokens, cfg.ContextWindow)
	}
	if cfg.OverlapTokens < 0 || cfg.OverlapTokens >= cfg.ContextWindow {
		return nil, fmt.Errorf("engine: overlap %d must be in [0, %d)", cfg.OverlapTokens, cfg.ContextWindow)
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("engine: retries must not be negative, got %d", cfg.Retries)
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	return &Engine{client: client, chunks: ck, prompts: reg, cfg: cfg, log: logger.WithPrefix("engine")}, nil
}

// run carries the state of one document-processing run.
type run struct {
	state State
	trace []State
	stats Stats
}

func (r *run) transition(to State) {
	r.state = to
	r.trace = append(r.trace, to)
}

// Summarize executes one full run: Chunking, MapPhase, ReducePhase. Partial
// summaries are always merged in chunk order. Per-chunk failures degrade to a
// placeholder; the run only fails when every chunk fails, when the document is
// empty, or when the configuration cannot fit the context window.
func (e *Engine) Summarize(ctx context.Context, req Request) (*Result, error) {
	tpl, err := e.prompts.Resolve(req.TemplateKey, req.CustomPrompt)
	if err != nil {
		return nil, err
	}

	r := &run{state: StateIdle, trace: []State{StateIdle}}

	// Reserve the response budget and prompt overhead up front; the remainder
	// is the chunk budget. Checked once, not per call.
	overhead := e.chunks.Estimator().EstimateTokens(tpl.Render(""))
	chunkBudget := e.cfg.ContextWindow - e.cfg.MaxResponseTokens - overhead
	if chunkBudget <= e.cfg.OverlapTokens {
		return nil, e.fail(r, ErrContextWindowExceeded)
	}

	r.transition(StateChunking)
	chunks, err := e.chunks.Split(req.Text, chunkBudget, e.cfg.OverlapTokens)
	if err != nil {
		return nil, e.fail(r, err)
	}
	if len(chunks) == 0 {
		return nil, e.fail(r, ErrEmptyDocument)
	}
	r.stats.ChunkCount = len(chunks)
	e.log.Info("document chunked", "chunks", len(chunks), "budget", chunkBudget,
		"overlap", e.cfg.OverlapTokens)

	partials, err := e.mapPhase(ctx, r, tpl, chunks)
	if err != nil {
		return nil, err
	}

	summary, err := e.reducePhase(ctx, r, tpl, partials)
	if err != nil {
		return nil, err
	}

	var insights []string
	if tpl.ExtractInsights {
		insights = ExtractInsights(summary)
	}

	r.transition(StateDone)
	e.log.Info("run complete", "chunks", r.stats.ChunkCount, "degraded", r.stats.DegradedChunks,
		"calls", r.stats.Calls, "tokens", r.stats.TotalTokens, "duration", r.stats.TotalDuration)
	return &Result{
		Summary:  summary,
		Insights: insights,
		Model:    e.cfg.Model,
		Template: tpl.Key,
		Stats:    r.stats,
		Trace:    r.trace,
	}, nil
}

// mapPhase summarizes every chunk in order, one call at a time. Cancellation
// is honored between chunks; a call already in flight runs to its own timeout.
func (e *Engine) mapPhase(ctx context.Context, r *run, tpl prompt.Template, chunks []chunker.Chunk) ([]string, error) {
	r.transition(StateMapPhase)

	partials := make([]string, len(chunks))
	for i, ch := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, e.fail(r, err)
		}

		gen, err := e.callWithRetry(ctx, r, tpl.Render(ch.Text))
		if err != nil {
			e.log.Warn("chunk degraded to placeholder", "chunk", ch.Index, "err", err)
			partials[i] = FailedChunkPlaceholder
			r.stats.DegradedChunks++
			continue
		}
		if gen.Truncated {
			e.log.Warn("chunk summary truncated by response budget", "chunk", ch.Index)
		}
		partials[i] = strings.TrimSpace(gen.Text)
	}

	if r.stats.DegradedChunks == len(chunks) {
		return nil, e.fail(r, ErrSummarizationFailed)
	}
	return partials, nil
}

// reducePhase merges the partial summaries. A single partial is the final
// summary as-is: re-summarizing already-short text is a lossy no-op. When the
// reduce call fails after its retry, the run falls back to a purely textual
// truncation of the concatenated partials rather than failing outright.
func (e *Engine) reducePhase(ctx context.Context, r *run, tpl prompt.Template, partials []string) (string, error) {
	r.transition(StateReducePhase)

	if len(partials) == 1 {
		return partials[0], nil
	}

	if err := ctx.Err(); err != nil {
		return "", e.fail(r, err)
	}

	gen, err := e.callWithRetry(ctx, r, prompt.RenderReduce(tpl, partials))
	if err != nil {
		e.log.Warn("reduce call failed, falling back to textual truncation", "err", err)
		return TruncateWords(strings.Join(partials, "\n\n"), tpl.TargetWords), nil
	}
	return strings.TrimSpace(gen.Text), nil
}

// callWithRetry issues one inference call, retrying the configured number of
// times (once, by default) on timeout or endpoint unavailability. Other
// failures are not worth another round trip.
func (e *Engine) callWithRetry(ctx context.Context, r *run, promptText string) (*llm.Generation, error) {
	backoff := retry.WithMaxRetries(uint64(e.cfg.Retries), retry.NewConstant(e.cfg.RetryDelay))

	var gen *llm.Generation
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		r.stats.Calls++
		start := time.Now()
		g, callErr := e.client.Generate(ctx, promptText, llm.Options{
			Model:       e.cfg.Model,
			MaxTokens:   e.cfg.MaxResponseTokens,
			Temperature: e.cfg.Temperature,
		})
		if callErr != nil {
			// Failed attempts still cost wall-clock time, often a full
			// timeout; count it.
			r.stats.TotalDuration += time.Since(start)
			if errors.Is(callErr, llm.ErrTimeout) || errors.Is(callErr, llm.ErrUnavailable) {
				return retry.RetryableError(callErr)
			}
			return callErr
		}
		gen = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.stats.TotalTokens += gen.TokenCount
	r.stats.TotalDuration += gen.Duration
	return gen, nil
}

func (e *Engine) fail(r *run, err error) error {
	r.transition(StateFailed)
	e.log.Error("run failed", "err", err, "chunks", r.stats.ChunkCount,
		"degraded", r.stats.DegradedChunks, "calls", r.stats.Calls)
	return &RunError{Err: err, Stats: r.stats}
}

// TruncateWords bounds text to at most n words without a model call.
func TruncateWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) <= n {
		return text
	}
	return strings.Join(words[:n], " ") + "..."
}
