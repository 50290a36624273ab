package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/archlens/archlens/internal/classify"
	"github.com/archlens/archlens/internal/config"
	"github.com/archlens/archlens/internal/extract"
	"github.com/archlens/archlens/internal/feed"
	"github.com/archlens/archlens/internal/store"
)

// summaryChars bounds the stored content preview.
const summaryChars = 500

// defaultMaxEntries is the per-feed window considered on each run.
const defaultMaxEntries = 3

// Classifier labels extracted article text. Implementations must always
// return a usable result, degraded or not.
type Classifier interface {
	Classify(ctx context.Context, title, content string) classify.Result
}

// SourceResult aggregates counts for one processed source.
type SourceResult struct {
	SourceID string `json:"source_id"`
	Added    int    `json:"added"`
	Skipped  int    `json:"skipped"`
	Err      string `json:"error,omitempty"`
}

// Summary aggregates counts across all sources of one run.
type Summary struct {
	Added   int            `json:"added"`
	Skipped int            `json:"skipped"`
	Sources []SourceResult `json:"sources"`
}

// Pipeline drives one ingestion pass: per source, per entry, dedup check,
// extraction, classification, persistence.
type Pipeline struct {
	store      store.Store
	fetcher    *feed.Fetcher
	extractor  *extract.Extractor
	classifier Classifier
	sources    []config.SourceConfig
	maxEntries int
	log        *slog.Logger
}

// New creates a pipeline over the configured sources.
func New(
	s store.Store,
	fetcher *feed.Fetcher,
	extractor *extract.Extractor,
	classifier Classifier,
	sources []config.SourceConfig,
	maxEntries int,
	log *slog.Logger,
) *Pipeline {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &Pipeline{
		store:      s,
		fetcher:    fetcher,
		extractor:  extractor,
		classifier: classifier,
		sources:    sources,
		maxEntries: maxEntries,
		log:        log,
	}
}

// Run executes one full pass over all configured sources. Failures while
// processing one source are logged and recorded on its result; remaining
// sources still run. Only store-level faults before any source is
// processed abort the run.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	if err := p.store.UpsertSources(ctx, p.sources); err != nil {
		return Summary{}, fmt.Errorf("upsert sources: %w", err)
	}

	sources, err := p.store.ListSources(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list sources: %w", err)
	}

	var summary Summary
	for _, src := range sources {
		result := p.processSource(ctx, src)
		if result.Err != "" {
			p.log.Error("source failed", "source", src.ID, "error", result.Err)
		}
		summary.Added += result.Added
		summary.Skipped += result.Skipped
		summary.Sources = append(summary.Sources, result)
	}

	p.log.Info("ingestion complete",
		"added", summary.Added, "skipped", summary.Skipped, "sources", len(summary.Sources))
	return summary, nil
}

func (p *Pipeline) processSource(ctx context.Context, src store.Source) SourceResult {
	result := SourceResult{SourceID: src.ID}
	p.log.Info("processing source", "source", src.ID, "url", src.URL)

	entries, err := p.fetcher.Fetch(ctx, src.URL)
	if err != nil {
		result.Err = err.Error()
		return result
	}

	// Only the newest entries per feed are considered per run.
	if len(entries) > p.maxEntries {
		entries = entries[:p.maxEntries]
	}

	for _, entry := range entries {
		if entry.Link == "" {
			continue
		}

		exists, err := p.store.PostExists(ctx, entry.Link)
		if err != nil {
			result.Err = err.Error()
			return result
		}
		if exists {
			result.Skipped++
			continue
		}

		text := p.extractor.Extract(ctx, entry)
		if text == "" {
			p.log.Debug("no usable content", "source", src.ID, "url", entry.Link)
			continue
		}

		classification := p.classifier.Classify(ctx, entry.Title, text)

		post := &store.Post{
			SourceID:       src.ID,
			Title:          entry.Title,
			URL:            entry.Link,
			Author:         entry.Author,
			PublishedAt:    entry.PublishedAt,
			ContentSummary: truncate(text, summaryChars),
			Category:       classification.Category,
			Confidence:     classification.Confidence,
			Tags:           classification.Tags,
		}

		inserted, err := p.store.InsertPost(ctx, post)
		if err != nil {
			p.log.Warn("insert post failed", "url", entry.Link, "error", err)
			continue
		}
		if !inserted {
			// Lost the check-then-insert race to a concurrent run.
			result.Skipped++
			continue
		}

		result.Added++
		p.log.Info("post added",
			"source", src.ID, "category", classification.Category, "title", entry.Title)
	}

	p.log.Info("source done", "source", src.ID, "added", result.Added, "skipped", result.Skipped)
	return result
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
