package feed

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
)

// Entry is the normalized form of one feed item. Feeds expose wildly
// different shapes; everything downstream operates on this record only.
type Entry struct {
	Title         string
	Link          string
	Author        string
	PublishedAt   *time.Time
	InlineContent string
	Summary       string
}

// Fetcher downloads and parses RSS/Atom feeds.
type Fetcher struct {
	client *http.Client
	parser *gofeed.Parser
}

// NewFetcher creates a feed fetcher with the given request timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		parser: gofeed.NewParser(),
	}
}

// Fetch downloads a feed URL and returns its entries, newest first in
// whatever order the feed declares them.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create feed request %s: %w", url, err)
	}
	req.Header.Set("User-Agent", "archlens/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed %s status %d", url, resp.StatusCode)
	}

	parsed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", url, err)
	}

	entries := make([]Entry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		entries = append(entries, normalize(item))
	}
	return entries, nil
}

func normalize(item *gofeed.Item) Entry {
	link := item.Link
	if link == "" && len(item.Links) > 0 {
		link = item.Links[0]
	}

	author := ""
	if item.Author != nil {
		author = item.Author.Name
	}

	var published *time.Time
	if item.PublishedParsed != nil {
		t := item.PublishedParsed.UTC()
		published = &t
	} else if item.UpdatedParsed != nil {
		t := item.UpdatedParsed.UTC()
		published = &t
	}

	return Entry{
		Title:         item.Title,
		Link:          link,
		Author:        author,
		PublishedAt:   published,
		InlineContent: item.Content,
		Summary:       item.Description,
	}
}
