package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/archlens/archlens/internal/classify"
	"github.com/archlens/archlens/internal/config"
	"github.com/archlens/archlens/internal/extract"
	"github.com/archlens/archlens/internal/feed"
	"github.com/archlens/archlens/internal/store"
)

// stubClassifier returns canned results per title, or a valid default.
type stubClassifier struct {
	byTitle map[string]classify.Result
	calls   int
}

func (s *stubClassifier) Classify(ctx context.Context, title, content string) classify.Result {
	s.calls++
	if r, ok := s.byTitle[title]; ok {
		return r
	}
	return classify.Result{Category: classify.CategoryWhat, Confidence: classify.ConfidenceMedium, Tags: []string{}}
}

func feedXML(entryCount int) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Test Feed</title><link>https://blog.example.com</link>`)
	for i := 1; i <= entryCount; i++ {
		fmt.Fprintf(&b, `
	<item>
		<title>Post %d</title>
		<link>https://blog.example.com/post-%d</link>
		<pubDate>Mon, 0%d Aug 2026 10:00:00 GMT</pubDate>
		<description>&lt;p&gt;Body of post %d with enough prose.&lt;/p&gt;</description>
	</item>`, i, i, i, i)
	}
	b.WriteString("\n</channel></rss>")
	return b.String()
}

func serveFeed(t *testing.T, xml string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		io.WriteString(w, xml)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestPipeline(t *testing.T, sources []config.SourceConfig, cls Classifier, maxEntries int) (*Pipeline, *store.SQLiteStore) {
	t.Helper()

	db, err := store.New(filepath.Join(t.TempDir(), "archlens.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := New(db, feed.NewFetcher(5*time.Second), extract.New(5*time.Second, log), cls, sources, maxEntries, log)
	return p, db
}

func TestRunIngestsAndClassifies(t *testing.T) {
	t.Parallel()

	srv := serveFeed(t, feedXML(3))
	cls := &stubClassifier{byTitle: map[string]classify.Result{
		"Post 1": {Category: "HOW", Confidence: "High", Tags: []string{"Rust", "Cargo"}},
		"Post 2": classify.Fallback(), // backend returned malformed JSON
		"Post 3": {Category: "WHY", Confidence: "Medium", Tags: []string{"Postgres"}},
	}}

	sources := []config.SourceConfig{{ID: "blog", Name: "Test Blog", URL: srv.URL}}
	p, db := newTestPipeline(t, sources, cls, 3)

	summary, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, summary.Added)
	require.Equal(t, 0, summary.Skipped)
	require.Len(t, summary.Sources, 1)
	require.Equal(t, "blog", summary.Sources[0].SourceID)
	require.Empty(t, summary.Sources[0].Err)

	posts, err := db.QueryPosts(context.Background(), store.PostFilter{})
	require.NoError(t, err)
	require.Len(t, posts, 3)

	byURL := make(map[string]store.Post)
	for _, post := range posts {
		byURL[post.URL] = post
	}

	degraded := byURL["https://blog.example.com/post-2"]
	require.Equal(t, classify.CategoryWhat, degraded.Category)
	require.Equal(t, classify.ConfidenceLow, degraded.Confidence)
	require.Empty(t, degraded.Tags)

	classified := byURL["https://blog.example.com/post-1"]
	require.Equal(t, "HOW", classified.Category)
	require.Equal(t, []string{"Rust", "Cargo"}, classified.Tags)
	require.Equal(t, "blog", classified.SourceID)
	require.Contains(t, classified.ContentSummary, "Body of post 1")
}

func TestRunIsIdempotent(t *testing.T) {
	t.Parallel()

	srv := serveFeed(t, feedXML(3))
	sources := []config.SourceConfig{{ID: "blog", Name: "Test Blog", URL: srv.URL}}
	p, db := newTestPipeline(t, sources, &stubClassifier{}, 3)

	first, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, first.Added)

	second, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, second.Added)
	require.Equal(t, 3, second.Skipped)

	posts, err := db.QueryPosts(context.Background(), store.PostFilter{})
	require.NoError(t, err)
	require.Len(t, posts, 3)
}

func TestRunCapsEntriesPerFeed(t *testing.T) {
	t.Parallel()

	srv := serveFeed(t, feedXML(7))
	sources := []config.SourceConfig{{ID: "blog", Name: "Test Blog", URL: srv.URL}}
	cls := &stubClassifier{}
	p, db := newTestPipeline(t, sources, cls, 3)

	summary, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, summary.Added)
	require.Equal(t, 3, cls.calls)

	posts, err := db.QueryPosts(context.Background(), store.PostFilter{})
	require.NoError(t, err)
	require.Len(t, posts, 3)
}

func TestRunIsolatesSourceFailures(t *testing.T) {
	t.Parallel()

	srv := serveFeed(t, feedXML(2))
	sources := []config.SourceConfig{
		{ID: "dead", Name: "Dead Blog", URL: "http://127.0.0.1:1/feed"},
		{ID: "live", Name: "Live Blog", URL: srv.URL},
	}
	p, db := newTestPipeline(t, sources, &stubClassifier{}, 3)

	summary, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, summary.Added)
	require.Len(t, summary.Sources, 2)

	byID := make(map[string]SourceResult)
	for _, src := range summary.Sources {
		byID[src.SourceID] = src
	}
	require.NotEmpty(t, byID["dead"].Err)
	require.Zero(t, byID["dead"].Added)
	require.Empty(t, byID["live"].Err)
	require.Equal(t, 2, byID["live"].Added)

	posts, err := db.QueryPosts(context.Background(), store.PostFilter{})
	require.NoError(t, err)
	require.Len(t, posts, 2)
}

func TestRunRefreshesSources(t *testing.T) {
	t.Parallel()

	srv := serveFeed(t, feedXML(1))
	p, db := newTestPipeline(t, []config.SourceConfig{
		{ID: "blog", Name: "Old Name", URL: srv.URL},
	}, &stubClassifier{}, 3)

	_, err := p.Run(context.Background())
	require.NoError(t, err)

	// Edited config name propagates on the next run.
	p2 := New(db, feed.NewFetcher(5*time.Second),
		extract.New(5*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil))),
		&stubClassifier{},
		[]config.SourceConfig{{ID: "blog", Name: "New Name", URL: srv.URL}}, 3,
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err = p2.Run(context.Background())
	require.NoError(t, err)

	listed, err := db.ListSources(context.Background())
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, "New Name", listed[0].Name)
}
