// File: internal/infra/adapters/ai/anthropic_adapter.go
package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"

	"coursesync/internal/domain"
	"coursesync/internal/domain/ports/adapter"
	"coursesync/internal/infra/metrics"
)

var _ adapter.Completer = (*AnthropicAdapter)(nil)

// AnthropicConfig configures the Anthropic Messages provider.
type AnthropicConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	MaxOutputTokens int
	Timeout         time.Duration
	Retry           RetryPolicy
}

// AnthropicAdapter implements adapter.Completer with the official SDK. The
// SDK's own retries are disabled so the shared policy decides.
type AnthropicAdapter struct {
	cfg    AnthropicConfig
	client anthropic.Client
	retry  retrier
}

func NewAnthropicAdapter(cfg AnthropicConfig, logger *zerolog.Logger, opts ...Option) *AnthropicAdapter {
	if cfg.Model == "" {
		cfg.Model = "claude-3-5-haiku-latest"
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 2000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	a := &AnthropicAdapter{cfg: cfg, retry: newRetrier("anthropic", cfg.Retry, logger)}

	var o options
	for _, fn := range opts {
		fn(&o)
	}
	o.applyTo(&a.retry)

	reqOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	if o.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(o.httpClient))
	}
	a.client = anthropic.NewClient(reqOpts...)
	return a
}

func (a *AnthropicAdapter) Model() string { return a.cfg.Model }

func (a *AnthropicAdapter) Complete(ctx context.Context, req adapter.CompletionRequest) (string, error) {
	if strings.TrimSpace(a.cfg.APIKey) == "" {
		return "", fmt.Errorf("anthropic: %w", domain.ErrNotConfigured)
	}
	maxOut := req.MaxOutputTokens
	if maxOut <= 0 {
		maxOut = a.cfg.MaxOutputTokens
	}
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(a.cfg.Model),
		MaxTokens:   int64(maxOut),
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(req.UserContent))},
		Temperature: anthropic.Float(clampTemperature(req.Temperature)),
	}
	if sys := strings.TrimSpace(req.SystemInstruction); sys != "" {
		params.System = []anthropic.TextBlockParam{{Text: sys}}
	}

	start := time.Now()
	text, err := a.retry.do(ctx, func(ctx context.Context, attempt int) attemptResult {
		actx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
		msg, err := a.client.Messages.New(actx, params)
		if err != nil {
			return classifyAnthropicErr(attempt, err)
		}
		return attemptResult{text: messageText(msg)}
	})
	metrics.ObserveLLMCall("anthropic", a.cfg.Model, string(req.Task), time.Since(start), err == nil)
	return text, err
}

func messageText(msg *anthropic.Message) string {
	if msg == nil {
		return ""
	}
	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type != "text" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(block.Text)
	}
	return sb.String()
}

// classifyAnthropicErr maps SDK errors onto the port's error types, keeping
// the Retry-After hint of a throttled answer.
func classifyAnthropicErr(attempt int, err error) attemptResult {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		res := attemptResult{err: &adapter.StatusError{Provider: "anthropic", Code: apiErr.StatusCode, Body: apiErr.Error()}}
		if apiErr.Response != nil {
			res.retryAfter, res.hasAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
		}
		return res
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return attemptResult{err: &adapter.NetworkError{Provider: "anthropic", Attempt: attempt, Err: err}}
	}
	return attemptResult{err: err}
}
