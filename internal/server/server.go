// Package server exposes the scrape pipeline over HTTP. Degraded scrapes
// still return 200 with the error and strategy details inside the
// document; only malformed requests get a 4xx.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/pagesift/pagesift/internal/logger"
	"github.com/pagesift/pagesift/pkg/document"
)

// Scraper is the pipeline behind the HTTP surface.
type Scraper interface {
	Scrape(ctx context.Context, targetURL string) *document.Document
}

// ScrapeRequest is the POST /scrape payload.
type ScrapeRequest struct {
	URL string `json:"url" validate:"required,http_url"`
}

// ScrapeResponse wraps the document so the envelope can grow without
// breaking clients.
type ScrapeResponse struct {
	Result *document.Document `json:"result"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// Server is the HTTP front end.
type Server struct {
	scraper  Scraper
	validate *validator.Validate
	router   chi.Router
}

// New builds the router with logging and panic recovery middleware.
func New(scraper Scraper) *Server {
	s := &Server{
		scraper:  scraper,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Post("/scrape", s.handleScrape)
	s.router = r
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe runs the server until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "invalid JSON body"})
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "url must be a valid http(s) URL"})
		return
	}

	doc := s.scraper.Scrape(r.Context(), req.URL)
	writeJSON(w, http.StatusOK, ScrapeResponse{Result: doc})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}
