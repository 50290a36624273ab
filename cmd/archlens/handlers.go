package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"github.com/archlens/archlens/internal/classify"
	"github.com/archlens/archlens/internal/config"
	"github.com/archlens/archlens/internal/extract"
	"github.com/archlens/archlens/internal/feed"
	"github.com/archlens/archlens/internal/logging"
	"github.com/archlens/archlens/internal/pipeline"
	"github.com/archlens/archlens/internal/scheduler"
	"github.com/archlens/archlens/internal/store"
	"github.com/archlens/archlens/pkg/server"
)

func loadConfig() (*config.Config, error) {
	// Deployment secrets may live in a local .env file.
	_ = godotenv.Load()

	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func buildPipeline(cfg *config.Config, db store.Store, log *slog.Logger) (*pipeline.Pipeline, error) {
	classifier, err := classify.New(cfg.LLM, log)
	if err != nil {
		return nil, err
	}

	fetcher := feed.NewFetcher(30 * time.Second)
	extractor := extract.New(cfg.Ingest.ParseFetchTimeout(), log)

	return pipeline.New(db, fetcher, extractor, classifier, cfg.Sources, cfg.Ingest.MaxEntries, log), nil
}

func runIngest() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logging.New(cfg.Log.Level)

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	p, err := buildPipeline(cfg, db, log)
	if err != nil {
		return err
	}

	summary, err := p.Run(context.Background())
	if err != nil {
		return fmt.Errorf("run ingestion: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SOURCE\tADDED\tSKIPPED\tERROR")
	for _, src := range summary.Sources {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", src.SourceID, src.Added, src.Skipped, src.Err)
	}
	fmt.Fprintf(w, "total\t%d\t%d\t\n", summary.Added, summary.Skipped)
	return w.Flush()
}

func runPosts(category, sourceID, keywords string, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	posts, err := db.QueryPosts(context.Background(), store.PostFilter{
		Category: category,
		SourceID: sourceID,
		Keywords: keywords,
	})
	if err != nil {
		return fmt.Errorf("query posts: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(posts)
	}

	if len(posts) == 0 {
		fmt.Println("no posts found (try running ingestion first: archlens ingest)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tCONF\tSOURCE\tPUBLISHED\tTITLE\tTAGS")
	for _, p := range posts {
		published := ""
		if p.PublishedAt != nil {
			published = p.PublishedAt.Format("2006-01-02")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			p.Category, p.Confidence, p.SourceID, published, p.Title,
			strings.Join(p.Tags, ","))
	}
	return w.Flush()
}

func runSources() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.UpsertSources(ctx, cfg.Sources); err != nil {
		return fmt.Errorf("upsert sources: %w", err)
	}

	sources, err := db.ListSources(ctx)
	if err != nil {
		return fmt.Errorf("list sources: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tURL")
	for _, src := range sources {
		fmt.Fprintf(w, "%s\t%s\t%s\n", src.ID, src.Name, src.URL)
	}
	return w.Flush()
}

func runServe(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logging.New(cfg.Log.Level)

	if port == 0 {
		port = cfg.Server.Port
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	p, err := buildPipeline(cfg, db, log)
	if err != nil {
		return err
	}

	srv := server.New(db, p, port, log)
	return srv.ListenAndServe()
}

func runDaemon(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logging.New(cfg.Log.Level)

	if port == 0 {
		port = cfg.Server.Port
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	p, err := buildPipeline(cfg, db, log)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched := scheduler.New(p, cfg.Schedule.ParseIngestInterval(), log)
	go func() {
		if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("scheduler error", "error", err)
		}
	}()

	srv := server.New(db, p, port, log)
	go func() {
		<-ctx.Done()
		log.Info("shutting down")
	}()

	return srv.ListenAndServe()
}
