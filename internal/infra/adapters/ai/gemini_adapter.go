// File: internal/infra/adapters/ai/gemini_adapter.go
package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"coursesync/internal/domain"
	"coursesync/internal/domain/ports/adapter"
	"coursesync/internal/infra/metrics"
)

var _ adapter.Completer = (*GeminiAdapter)(nil)

// GeminiConfig configures the Gemini provider.
type GeminiConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	MaxOutputTokens int
	Timeout         time.Duration
	Retry           RetryPolicy
}

// GeminiAdapter implements adapter.Completer with the official SDK. The SDK
// client is created on first successful use; a failed init is retried by the
// next call.
type GeminiAdapter struct {
	cfg   GeminiConfig
	retry retrier

	mu     sync.Mutex
	client *genai.Client
}

func NewGeminiAdapter(cfg GeminiConfig, logger *zerolog.Logger) *GeminiAdapter {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 2000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &GeminiAdapter{cfg: cfg, retry: newRetrier("gemini", cfg.Retry, logger)}
}

func (g *GeminiAdapter) Model() string { return g.cfg.Model }

func (g *GeminiAdapter) sdk(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client, nil
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  g.cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: g.cfg.BaseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	g.client = c
	return c, nil
}

func (g *GeminiAdapter) Complete(ctx context.Context, req adapter.CompletionRequest) (string, error) {
	if strings.TrimSpace(g.cfg.APIKey) == "" {
		return "", fmt.Errorf("gemini: %w", domain.ErrNotConfigured)
	}
	client, err := g.sdk(ctx)
	if err != nil {
		return "", fmt.Errorf("gemini: init client: %w", err)
	}

	maxOut := req.MaxOutputTokens
	if maxOut <= 0 {
		maxOut = g.cfg.MaxOutputTokens
	}
	conf := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.SystemInstruction, genai.RoleUser),
		Temperature:       genai.Ptr(float32(clampTemperature(req.Temperature))),
		MaxOutputTokens:   int32(maxOut),
	}

	start := time.Now()
	text, err := g.retry.do(ctx, func(ctx context.Context, attempt int) attemptResult {
		actx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
		resp, err := client.Models.GenerateContent(actx, g.cfg.Model, genai.Text(req.UserContent), conf)
		if err != nil {
			return attemptResult{err: classifyGeminiErr(attempt, err)}
		}
		return attemptResult{text: resp.Text()}
	})
	metrics.ObserveLLMCall("gemini", g.cfg.Model, string(req.Task), time.Since(start), err == nil)
	return text, err
}

// classifyGeminiErr maps SDK errors onto the port's error types so the retry
// policy treats both providers alike.
func classifyGeminiErr(attempt int, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &adapter.StatusError{Provider: "gemini", Code: apiErr.Code, Body: apiErr.Message}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return &adapter.StatusError{Provider: "gemini", Code: apiErrPtr.Code, Body: apiErrPtr.Message}
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return &adapter.NetworkError{Provider: "gemini", Attempt: attempt, Err: err}
	}
	return err
}
