package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/archlens/archlens/internal/pipeline"
	"github.com/archlens/archlens/internal/store"
)

// Server exposes the read surface consumed by the dashboard plus an
// ingestion trigger. It performs no writes of its own.
type Server struct {
	store    store.Store
	pipeline *pipeline.Pipeline
	port     int
	log      *slog.Logger
}

// New creates a new HTTP server.
func New(s store.Store, p *pipeline.Pipeline, port int, log *slog.Logger) *Server {
	if port == 0 {
		port = 8080
	}
	return &Server{
		store:    s,
		pipeline: p,
		port:     port,
		log:      log,
	}
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/v1/posts", s.handlePosts)
	mux.HandleFunc("/api/v1/sources", s.handleSources)
	mux.HandleFunc("/api/v1/ingest", s.handleIngest)

	addr := fmt.Sprintf(":%d", s.port)
	s.log.Info("server listening", "addr", addr)
	return http.ListenAndServe(addr, mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePosts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	q := r.URL.Query()
	filter := store.PostFilter{
		Category: q.Get("category"),
		SourceID: q.Get("source"),
		Keywords: q.Get("q"),
	}

	posts, err := s.store.QueryPosts(r.Context(), filter)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  posts,
		"count": len(posts),
	})
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	sources, err := s.store.ListSources(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  sources,
		"count": len(sources),
	})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	summary, err := s.pipeline.Run(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
