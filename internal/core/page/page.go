// Package page fetches post pages as HTML and reads media hints out of them.
package page

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/guiyumin/mediadrop/internal/core/downloader"
)

// Fetcher returns the rendered HTML of a page.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, url string) (string, error)
}

// maxPageSize caps how much of a page body is read
const maxPageSize = 8 << 20

// HTTPFetcher fetches the raw HTML with a plain GET.
type HTTPFetcher struct {
	Client *http.Client
}

func (f *HTTPFetcher) Name() string { return "http" }

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", downloader.DefaultUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("page request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("page request returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return "", fmt.Errorf("failed to read page: %w", err)
	}
	return string(body), nil
}

// OGVideoURL returns the og:video (or og:video:secure_url) meta content of
// the document, or "" when the page carries neither.
func OGVideoURL(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}

	for _, prop := range []string{"og:video", "og:video:secure_url", "og:video:url"} {
		var found string
		doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			key := s.AttrOr("property", s.AttrOr("name", ""))
			if !strings.EqualFold(key, prop) {
				return true
			}
			if content := strings.TrimSpace(s.AttrOr("content", "")); content != "" {
				found = content
				return false
			}
			return true
		})
		if found != "" {
			return found, nil
		}
	}
	return "", nil
}
