package store

const schema = `
CREATE TABLE IF NOT EXISTS sources (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    url        TEXT NOT NULL,
    created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS posts (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    source_id       TEXT NOT NULL REFERENCES sources(id),
    title           TEXT NOT NULL,
    url             TEXT NOT NULL UNIQUE,
    author          TEXT NOT NULL DEFAULT '',
    published_at    DATETIME,
    content_summary TEXT NOT NULL DEFAULT '',
    ai_category     TEXT NOT NULL,
    ai_confidence   TEXT NOT NULL,
    ai_tags         TEXT NOT NULL DEFAULT '[]',
    created_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_posts_published ON posts(published_at DESC);
CREATE INDEX IF NOT EXISTS idx_posts_category ON posts(ai_category);
`
