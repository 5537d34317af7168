package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"coursesync/internal/domain"
	"coursesync/internal/domain/ports/adapter"
	"coursesync/internal/infra/metrics"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.Completer = (*OpenAIAdapter)(nil)

// OpenAIConfig configures an OpenAI-compatible Chat Completions endpoint (Groq by default).
type OpenAIConfig struct {
	Provider        string // label used in logs and metrics, e.g. "groq"
	APIKey          string
	BaseURL         string // e.g. https://api.groq.com/openai/v1
	Model           string
	MaxOutputTokens int
	Timeout         time.Duration // per attempt
	Retry           RetryPolicy
}

// OpenAIAdapter implements adapter.Completer against /chat/completions with
// bounded retries on throttling, server errors and transport failures.
type OpenAIAdapter struct {
	cfg    OpenAIConfig
	client *http.Client
	retry  retrier
}

// Option customises an HTTP-backed adapter; mostly used by tests.
type Option func(*options)

type options struct {
	httpClient *http.Client
	sleep      Sleeper
	jitter     func(limit time.Duration) time.Duration
}

func (o options) applyTo(r *retrier) {
	if o.sleep != nil {
		r.sleep = o.sleep
	}
	if o.jitter != nil {
		r.jitter = o.jitter
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

func WithSleeper(s Sleeper) Option {
	return func(o *options) { o.sleep = s }
}

func WithJitter(f func(limit time.Duration) time.Duration) Option {
	return func(o *options) { o.jitter = f }
}

// NewOpenAIAdapter builds the adapter. An empty API key is accepted here;
// Complete then fails with domain.ErrNotConfigured without touching the network.
func NewOpenAIAdapter(cfg OpenAIConfig, logger *zerolog.Logger, opts ...Option) *OpenAIAdapter {
	if cfg.Provider == "" {
		cfg.Provider = "groq"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "llama-3.3-70b-versatile"
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 2000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	o := &OpenAIAdapter{
		cfg:    cfg,
		client: &http.Client{},
		retry:  newRetrier(cfg.Provider, cfg.Retry, logger),
	}
	o.cfg.BaseURL = strings.TrimRight(o.cfg.BaseURL, "/")
	var opt options
	for _, fn := range opts {
		fn(&opt)
	}
	if opt.httpClient != nil {
		o.client = opt.httpClient
	}
	opt.applyTo(&o.retry)
	return o
}

func (o *OpenAIAdapter) Model() string { return o.cfg.Model }

type chatRequest struct {
	Model       string            `json:"model"`
	Messages    []adapter.Message `json:"messages"`
	Temperature float64           `json:"temperature"`
	MaxTokens   int               `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message adapter.Message `json:"message"`
	} `json:"choices"`
}

func (o *OpenAIAdapter) Complete(ctx context.Context, req adapter.CompletionRequest) (string, error) {
	if strings.TrimSpace(o.cfg.APIKey) == "" {
		return "", fmt.Errorf("%s: %w", o.cfg.Provider, domain.ErrNotConfigured)
	}

	maxTokens := req.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = o.cfg.MaxOutputTokens
	}
	b, err := json.Marshal(chatRequest{
		Model:       o.cfg.Model,
		Messages:    req.Messages(),
		Temperature: clampTemperature(req.Temperature),
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	start := time.Now()
	text, err := o.retry.do(ctx, func(ctx context.Context, attempt int) attemptResult {
		return o.attempt(ctx, attempt, b)
	})
	metrics.ObserveLLMCall(o.cfg.Provider, o.cfg.Model, string(req.Task), time.Since(start), err == nil)
	return text, err
}

// attempt performs one POST bounded by the per-attempt timeout.
func (o *OpenAIAdapter) attempt(ctx context.Context, attempt int, body []byte) attemptResult {
	actx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(actx, http.MethodPost, o.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return attemptResult{err: fmt.Errorf("build request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return attemptResult{err: &adapter.NetworkError{Provider: o.cfg.Provider, Attempt: attempt, Err: err}}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		res := attemptResult{err: &adapter.StatusError{
			Provider: o.cfg.Provider,
			Code:     resp.StatusCode,
			Body:     strings.TrimSpace(string(snippet)),
		}}
		if resp.StatusCode == http.StatusTooManyRequests {
			res.retryAfter, res.hasAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		}
		return res
	}

	var payload chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return attemptResult{err: &adapter.NetworkError{Provider: o.cfg.Provider, Attempt: attempt, Err: err}}
		}
		return attemptResult{err: fmt.Errorf("%s: decode completion: %w", o.cfg.Provider, err)}
	}
	if len(payload.Choices) == 0 {
		return attemptResult{err: fmt.Errorf("%s: no choice content", o.cfg.Provider)}
	}
	return attemptResult{text: payload.Choices[0].Message.Content}
}

func clampTemperature(t float64) float64 {
	switch {
	case t < 0:
		return 0
	case t > 1:
		return 1
	}
	return t
}
