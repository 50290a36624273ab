package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/archlens/archlens/internal/config"
)

// pageSize caps every post listing.
const pageSize = 100

// Source is a configured feed origin persisted for reference by posts.
type Source struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	URL       string    `db:"url" json:"url"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Post is one ingested, classified article. Posts are append-only: the
// pipeline creates them exactly once and never updates them.
type Post struct {
	ID             int64      `db:"id" json:"id"`
	SourceID       string     `db:"source_id" json:"source_id"`
	Title          string     `db:"title" json:"title"`
	URL            string     `db:"url" json:"url"`
	Author         string     `db:"author" json:"author,omitempty"`
	PublishedAt    *time.Time `db:"published_at" json:"published_at,omitempty"`
	ContentSummary string     `db:"content_summary" json:"content_summary,omitempty"`
	Category       string     `db:"ai_category" json:"ai_category"`
	Confidence     string     `db:"ai_confidence" json:"ai_confidence"`
	Tags           []string   `json:"ai_tags" db:"-"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	TagsJSON       string     `json:"-" db:"ai_tags"`
}

// PostFilter controls post listing. All fields are optional and combine
// with logical AND.
type PostFilter struct {
	Category string
	SourceID string
	Keywords string
}

// Store is the persistence interface.
type Store interface {
	UpsertSources(ctx context.Context, sources []config.SourceConfig) error
	ListSources(ctx context.Context) ([]Source, error)
	PostExists(ctx context.Context, url string) (bool, error)
	InsertPost(ctx context.Context, post *Post) (bool, error)
	QueryPosts(ctx context.Context, filter PostFilter) ([]Post, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertSources replaces each source row by id. Sources absent from the
// given list are left untouched.
func (s *SQLiteStore) UpsertSources(ctx context.Context, sources []config.SourceConfig) error {
	for _, src := range sources {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO sources (id, name, url, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				url = excluded.url
		`, src.ID, src.Name, src.URL, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("upsert source %s: %w", src.ID, err)
		}
	}
	return nil
}

func (s *SQLiteStore) ListSources(ctx context.Context) ([]Source, error) {
	var sources []Source
	if err := s.db.SelectContext(ctx, &sources, "SELECT * FROM sources ORDER BY name"); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	return sources, nil
}

func (s *SQLiteStore) PostExists(ctx context.Context, url string) (bool, error) {
	var one int
	err := s.db.GetContext(ctx, &one, "SELECT 1 FROM posts WHERE url = ?", url)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("post exists %s: %w", url, err)
	}
	return true, nil
}

// InsertPost inserts a post keyed on its URL. It returns false when a post
// with the same URL already exists, which is the authoritative guard
// against the PostExists check-then-insert race.
func (s *SQLiteStore) InsertPost(ctx context.Context, post *Post) (bool, error) {
	tags := post.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, _ := json.Marshal(tags)

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO posts (source_id, title, url, author, published_at, content_summary, ai_category, ai_confidence, ai_tags, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO NOTHING
	`, post.SourceID, post.Title, post.URL, post.Author, post.PublishedAt,
		post.ContentSummary, post.Category, post.Confidence, string(tagsJSON), time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("insert post %s: %w", post.URL, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert post %s: %w", post.URL, err)
	}
	return affected > 0, nil
}

// QueryPosts lists posts matching the filter, newest published first,
// capped at pageSize rows. Keyword matching is a substring match against
// the title or the serialized tags.
func (s *SQLiteStore) QueryPosts(ctx context.Context, filter PostFilter) ([]Post, error) {
	query := "SELECT * FROM posts WHERE 1=1"
	var args []any

	if filter.Category != "" {
		query += " AND ai_category = ?"
		args = append(args, filter.Category)
	}
	if filter.SourceID != "" {
		query += " AND source_id = ?"
		args = append(args, filter.SourceID)
	}
	if filter.Keywords != "" {
		query += " AND (title LIKE ? OR ai_tags LIKE ?)"
		keyword := "%" + filter.Keywords + "%"
		args = append(args, keyword, keyword)
	}

	query += " ORDER BY published_at DESC LIMIT ?"
	args = append(args, pageSize)

	var posts []Post
	if err := s.db.SelectContext(ctx, &posts, query, args...); err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}

	for i := range posts {
		json.Unmarshal([]byte(posts[i].TagsJSON), &posts[i].Tags)
	}
	return posts, nil
}
