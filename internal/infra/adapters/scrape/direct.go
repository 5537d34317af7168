// File: internal/infra/adapters/scrape/direct.go
package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"coursesync/internal/domain/ports/adapter"
	"coursesync/internal/infra/htmlconv"
)

var _ adapter.Scraper = (*DirectScraper)(nil)

const maxPageBytes = 5 << 20

// DirectScraper fetches the page itself and converts the main content to markdown.
type DirectScraper struct {
	client    *http.Client
	userAgent string
}

func NewDirectScraper(timeout time.Duration) *DirectScraper {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &DirectScraper{client: &http.Client{Timeout: timeout}, userAgent: "coursesync/1.0"}
}

func (d *DirectScraper) Scrape(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("fetch: build request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept", "text/html,text/plain;q=0.9,*/*;q=0.5")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch: http %d", resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("fetch: read body: %w", err)
	}

	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	if strings.HasPrefix(ct, "text/plain") || strings.HasPrefix(ct, "text/markdown") {
		return strings.TrimSpace(string(b)), nil
	}
	return htmlconv.ToMarkdown(string(b))
}

// New picks Firecrawl when a key is configured and a direct fetch otherwise.
func New(firecrawlKey, firecrawlURL string, timeout time.Duration) adapter.Scraper {
	if strings.TrimSpace(firecrawlKey) != "" {
		return NewFirecrawlScraper(firecrawlKey, firecrawlURL, timeout)
	}
	return NewDirectScraper(timeout)
}
