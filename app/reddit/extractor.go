package reddit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"
)

const maxPageBytes = 2 << 20

// ContentExtractor turns a linked page into readable plain text
type ContentExtractor struct {
	client    *http.Client
	userAgent string
	maxChars  int
}

func NewContentExtractor(client *http.Client, userAgent string, maxChars int) *ContentExtractor {
	return &ContentExtractor{
		client:    client,
		userAgent: userAgent,
		maxChars:  maxChars,
	}
}

func (e *ContentExtractor) Extract(ctx context.Context, pageURL string) (string, error) {
	parsedURL, err := url.Parse(pageURL)
	if err != nil || (parsedURL.Scheme != "http" && parsedURL.Scheme != "https") {
		return "", fmt.Errorf("unsupported URL: %s", pageURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("page returned status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return "", fmt.Errorf("page is not HTML: %s", ct)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read page: %w", err)
	}

	return e.Run(data, parsedURL)
}

// Run extracts the main text from an HTML document
func (e *ContentExtractor) Run(data []byte, pageURL *url.URL) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("HTML data is empty")
	}

	article, err := readability.FromReader(strings.NewReader(string(data)), pageURL)
	if err != nil {
		return "", fmt.Errorf("failed to extract content: %w", err)
	}

	text := strings.Join(strings.Fields(article.TextContent), " ")
	if text == "" {
		return "", fmt.Errorf("no content extracted from HTML data")
	}

	if e.maxChars > 0 && len([]rune(text)) > e.maxChars {
		text = string([]rune(text)[:e.maxChars])
	}

	slog.Debug("Content extracted successfully",
		"title", article.Title,
		"content_length", len(text))

	return text, nil
}
