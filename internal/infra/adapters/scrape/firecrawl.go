// File: internal/infra/adapters/scrape/firecrawl.go
package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"coursesync/internal/domain/ports/adapter"
)

var _ adapter.Scraper = (*FirecrawlScraper)(nil)

// FirecrawlScraper asks the Firecrawl API for a markdown rendering of a page.
type FirecrawlScraper struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

func NewFirecrawlScraper(apiKey, endpoint string, timeout time.Duration) *FirecrawlScraper {
	if endpoint == "" {
		endpoint = "https://api.firecrawl.dev/v0/scrape"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &FirecrawlScraper{apiKey: apiKey, endpoint: endpoint, client: &http.Client{Timeout: timeout}}
}

type firecrawlRequest struct {
	URL     string   `json:"url"`
	Formats []string `json:"formats"`
}

type firecrawlResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    struct {
		Markdown string `json:"markdown"`
	} `json:"data"`
}

func (f *FirecrawlScraper) Scrape(ctx context.Context, url string) (string, error) {
	body, err := json.Marshal(firecrawlRequest{URL: url, Formats: []string{"markdown"}})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("firecrawl: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.apiKey)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("firecrawl: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return "", fmt.Errorf("firecrawl: http %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	var out firecrawlResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("firecrawl: decode: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("firecrawl: %s", out.Error)
	}
	return strings.TrimSpace(out.Data.Markdown), nil
}
