package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-resty/resty/v2"

	"github.com/privadoc/privadoc/internal/models"
)

var (
	// ErrTimeout means the endpoint did not answer within the per-call window.
	ErrTimeout = errors.New("inference request timed out")
	// ErrUnavailable means the endpoint could not be reached at all.
	ErrUnavailable = errors.New("inference endpoint unavailable")
)

// Options are the generation parameters for one call.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// Generation is the outcome of one inference call. Truncated is set when the
// model stopped because it hit its own response-token limit; the caller
// decides what to do with that, it is never hidden here.
type Generation struct {
	Text       string
	TokenCount int
	Duration   time.Duration
	Truncated  bool
	Model      string
}

// Config tunes the client. The effective per-call timeout is the larger of
// TimeoutFloor and PerToken times the requested response budget.
type Config struct {
	Host         string
	TimeoutFloor time.Duration
	PerToken     time.Duration
}

// Client talks to a local Ollama endpoint. One synchronous request per call,
// no retries: retry policy belongs to the engine, which knows whether another
// attempt is worth the cost.
type Client struct {
	http *resty.Client
	cfg  Config
	log  *log.Logger
}

func NewClient(cfg Config, logger *log.Logger) *Client {
	if cfg.Host == "" {
		cfg.Host = "http://localhost:11434"
	}
	if cfg.TimeoutFloor <= 0 {
		cfg.TimeoutFloor = 120 * time.Second
	}
	if cfg.PerToken <= 0 {
		cfg.PerToken = 250 * time.Millisecond
	}
	rc := resty.New().
		SetBaseURL(cfg.Host).
		SetHeader("Content-Type", "application/json")
	return &Client{http: rc, cfg: cfg, log: logger.WithPrefix("ollama")}
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64  `json:"temperature"`
	NumPredict  int      `json:"num_predict"`
	Stop        []string `json:"stop,omitempty"`
}

type generateResponse struct {
	Response      string `json:"response"`
	Done          bool   `json:"done"`
	DoneReason    string `json:"done_reason"`
	EvalCount     int    `json:"eval_count"`
	TotalDuration int64  `json:"total_duration"`
}

// Generate issues one blocking request to /api/generate and maps transport
// failures to the engine-level error kinds.
func (c *Client) Generate(ctx context.Context, prompt string, opts Options) (*Generation, error) {
	timeout := c.callTimeout(opts.MaxTokens)
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := generateRequest{
		Model:  opts.Model,
		Prompt: prompt,
		Stream: false,
		Options: generateOptions{
			Temperature: opts.Temperature,
			NumPredict:  opts.MaxTokens,
			Stop:        []string{"\n\n\n", "END_SUMMARY"},
		},
	}

	started := time.Now()
	var out generateResponse
	resp, err := c.http.R().
		SetContext(callCtx).
		SetBody(req).
		SetResult(&out).
		Post("/api/generate")
	if err != nil {
		return nil, c.mapTransportError(err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("ollama generate returned %d: %s", resp.StatusCode(), resp.String())
	}
	if out.Response == "" {
		return nil, fmt.Errorf("ollama returned an empty response for model %s", opts.Model)
	}

	duration := time.Since(started)
	if out.TotalDuration > 0 {
		duration = time.Duration(out.TotalDuration)
	}
	gen := &Generation{
		Text:       out.Response,
		TokenCount: out.EvalCount,
		Duration:   duration,
		Truncated:  out.DoneReason == "length",
		Model:      opts.Model,
	}
	c.log.Debug("generate done", "model", opts.Model, "tokens", gen.TokenCount,
		"duration", gen.Duration, "truncated", gen.Truncated)
	return gen, nil
}

func (c *Client) callTimeout(maxTokens int) time.Duration {
	perToken := c.cfg.PerToken * time.Duration(maxTokens)
	if perToken > c.cfg.TimeoutFloor {
		return perToken
	}
	return c.cfg.TimeoutFloor
}

func (c *Client) mapTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Health checks that the Ollama server answers at all.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/api/tags")
	if err != nil {
		return c.mapTransportError(err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("ollama health returned %d", resp.StatusCode())
	}
	return nil
}

// EnsureModel verifies the configured model is present locally and pulls it
// when missing. Called once at startup, before the server accepts uploads.
func (c *Client) EnsureModel(ctx context.Context, model string) error {
	var tags tagsResponse
	resp, err := c.http.R().SetContext(ctx).SetResult(&tags).Get("/api/tags")
	if err != nil {
		return c.mapTransportError(err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("ollama list models returned %d", resp.StatusCode())
	}
	for _, m := range tags.Models {
		if m.Name == model || m.Name == model+":latest" {
			return nil
		}
	}

	c.log.Info("model not found locally, pulling", "model", model)
	resp, err = c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"name": model, "stream": false}).
		Post("/api/pull")
	if err != nil {
		return c.mapTransportError(err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("ollama pull %q returned %d", model, resp.StatusCode())
	}
	c.log.Info("model pulled", "model", model)
	return nil
}

type showResponse struct {
	Details struct {
		ParameterSize     string `json:"parameter_size"`
		QuantizationLevel string `json:"quantization_level"`
	} `json:"details"`
}

// ModelInfo reports what the endpoint knows about the model. The context
// window is taken from configuration, not from the endpoint: it is the value
// the chunker actually budgets against.
func (c *Client) ModelInfo(ctx context.Context, model string, contextWindow int) (*models.ModelInfo, error) {
	var out showResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"name": model}).
		SetResult(&out).
		Post("/api/show")
	if err != nil {
		return nil, c.mapTransportError(err)
	}
	info := &models.ModelInfo{
		Name:          model,
		ContextWindow: contextWindow,
		Status:        "active",
	}
	if resp.StatusCode() != http.StatusOK {
		info.Status = "unknown"
		return info, nil
	}
	info.ParameterSize = out.Details.ParameterSize
	info.Quantization = out.Details.QuantizationLevel
	return info, nil
}
