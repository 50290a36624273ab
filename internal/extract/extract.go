package extract

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/archlens/archlens/internal/feed"
)

// maxFetchBytes bounds how much of an article page is read.
const maxFetchBytes = 2 << 20

// Extractor turns a normalized feed entry into clean article text.
type Extractor struct {
	client *http.Client
	log    *slog.Logger
}

// New creates an extractor. fetchTimeout bounds the fallback URL fetch.
func New(fetchTimeout time.Duration, log *slog.Logger) *Extractor {
	if fetchTimeout <= 0 {
		fetchTimeout = 10 * time.Second
	}
	return &Extractor{
		client: &http.Client{Timeout: fetchTimeout},
		log:    log,
	}
}

// Extract returns plain article text for an entry, or "" when no usable
// text could be produced. The markup source is picked by ordered fallback:
// inline content, then summary, then fetching the entry URL. Fetch and
// parse failures are logged and never fatal.
func (e *Extractor) Extract(ctx context.Context, entry feed.Entry) string {
	raw := entry.InlineContent
	if strings.TrimSpace(raw) == "" {
		raw = entry.Summary
	}
	if strings.TrimSpace(raw) == "" {
		fetched, err := e.fetch(ctx, entry.Link)
		if err != nil {
			e.log.Warn("fetch article failed", "url", entry.Link, "error", err)
			return ""
		}
		raw = fetched
	}
	return articleText(raw)
}

func (e *Extractor) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create article request %s: %w", url, err)
	}
	req.Header.Set("User-Agent", "archlens/1.0")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch article %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("article %s status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return "", fmt.Errorf("read article %s: %w", url, err)
	}
	return string(body), nil
}

// articleText strips boilerplate markup from an HTML blob and returns
// readable plain text. Comment sections and tabular data carry no article
// prose and are dropped.
func articleText(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	// Already plain text.
	if !strings.Contains(trimmed, "<") {
		return normalizeWhitespace(trimmed)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(trimmed))
	if err != nil {
		return stripTags(trimmed)
	}

	doc.Find("head, script, style, noscript, nav, header, footer, aside, iframe, form, table").Remove()
	doc.Find("[class*='comment'], [id*='comment']").Remove()

	var paragraphs []string
	doc.Find("h1, h2, h3, h4, h5, h6, p, pre, blockquote, li").Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})

	if len(paragraphs) == 0 {
		cleaned, err := doc.Html()
		if err != nil {
			cleaned = trimmed
		}
		return stripTags(cleaned)
	}
	return strings.Join(paragraphs, "\n\n")
}

// stripTags removes all HTML tags and returns plain text.
func stripTags(raw string) string {
	p := bluemonday.StrictPolicy()
	return normalizeWhitespace(p.Sanitize(raw))
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
