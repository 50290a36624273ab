package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Ingest   IngestConfig   `yaml:"ingest"`
	LLM      LLMConfig      `yaml:"llm"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Sources  []SourceConfig `yaml:"sources"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// IngestConfig bounds a single ingestion pass.
type IngestConfig struct {
	MaxEntries   int    `yaml:"max_entries"`
	FetchTimeout string `yaml:"fetch_timeout"`
}

// ParseFetchTimeout returns the article fetch timeout as time.Duration.
func (c IngestConfig) ParseFetchTimeout() time.Duration {
	d, err := time.ParseDuration(c.FetchTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// LLMConfig configures the classification backend.
type LLMConfig struct {
	Model        string `yaml:"model"`
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"` // custom endpoint (optional)
	SystemPrompt string `yaml:"system_prompt"`
}

// ScheduleConfig configures the daemon ingestion interval.
type ScheduleConfig struct {
	IngestInterval string `yaml:"ingest_interval"`
}

// ParseIngestInterval returns the ingest interval as time.Duration.
func (s ScheduleConfig) ParseIngestInterval() time.Duration {
	d, err := time.ParseDuration(s.IngestInterval)
	if err != nil {
		return time.Hour
	}
	return d
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// SourceConfig is one configured feed origin.
type SourceConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./archlens.db"},
		Ingest: IngestConfig{
			MaxEntries:   3,
			FetchTimeout: "10s",
		},
		LLM: LLMConfig{
			Model: "gpt-4o-mini",
		},
		Schedule: ScheduleConfig{IngestInterval: "1h"},
		Server:   ServerConfig{Port: 8080},
		Log:      LogConfig{Level: "info"},
		Sources: []SourceConfig{
			{ID: "netflix", Name: "Netflix TechBlog", URL: "https://netflixtechblog.com/feed"},
			{ID: "cloudflare", Name: "Cloudflare Blog", URL: "https://blog.cloudflare.com/rss/"},
			{ID: "uber", Name: "Uber Engineering", URL: "https://www.uber.com/blog/engineering/rss/"},
			{ID: "github", Name: "GitHub Engineering", URL: "https://github.blog/engineering.atom"},
		},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides overrides config values with environment variables.
// Provider aliases are both recognized; the first non-empty value wins.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ARCHLENS_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := firstNonEmpty(os.Getenv("OPENAI_API_KEY"), os.Getenv("MOONSHOT_API_KEY")); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := firstNonEmpty(os.Getenv("OPENAI_BASE_URL"), os.Getenv("MOONSHOT_BASE_URL")); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("ARCHLENS_SYSTEM_PROMPT"); v != "" {
		cfg.LLM.SystemPrompt = v
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
