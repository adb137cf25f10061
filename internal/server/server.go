// Package server hosts the bot's HTTP surface: the Strava webhook
// endpoints and the OAuth authorize/callback pair, plus health and
// metrics endpoints.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/osse101/KudosBot_Go/internal/linktoken"
	"github.com/osse101/KudosBot_Go/internal/logger"
	"github.com/osse101/KudosBot_Go/internal/metrics"
	"github.com/osse101/KudosBot_Go/internal/store"
)

// ActivityProcessor runs the enrichment pipeline for one webhook event.
type ActivityProcessor interface {
	Process(ctx context.Context, athleteID string, activityID int64) error
}

// OAuth builds authorization URLs and exchanges authorization codes.
// Implemented by *strava.Client.
type OAuth interface {
	AuthorizeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (string, error)
}

// LinkAnnouncer posts a channel message after a successful link. Optional.
type LinkAnnouncer interface {
	AnnounceLink(ctx context.Context, discordID, athleteID string) error
}

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	VerifyToken string
	HTTPSCert   string
	HTTPSKey    string
}

// Deps are the collaborators the HTTP handlers need.
type Deps struct {
	Broker    *linktoken.Broker
	Store     store.Store
	OAuth     OAuth
	Processor ActivityProcessor
	Announcer LinkAnnouncer
}

// Server is the webhook/OAuth HTTP server.
type Server struct {
	httpServer *http.Server
	router     chi.Router
	cfg        Config
	deps       Deps
	validate   *validator.Validate
}

// New creates a Server with its routes mounted.
func New(cfg Config, deps Deps) *Server {
	s := &Server{
		cfg:      cfg,
		deps:     deps,
		validate: validator.New(),
	}

	r := chi.NewRouter()
	r.Use(requestLoggingMiddleware)
	r.Use(metrics.Middleware)

	r.Get("/healthz", handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/webhook", s.handleWebhookVerify)
	r.Post("/webhook", s.handleWebhookEvent)
	r.Get("/authorize", s.handleAuthorize)
	r.Get("/callback", s.handleCallback)

	s.router = r
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks serving HTTP, or HTTPS when cert and key are configured.
func (s *Server) Start() error {
	if s.cfg.HTTPSCert != "" && s.cfg.HTTPSKey != "" {
		return s.httpServer.ListenAndServeTLS(s.cfg.HTTPSCert, s.cfg.HTTPSKey)
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// handleHealthz provides a basic liveness check.
func handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respondJSON sends a JSON response with the given status code and payload
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

// statusWriter captures the response status for the request log.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// requestLoggingMiddleware tags each request with an id and logs its outcome.
func requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := logger.GenerateRequestID()
		ctx := logger.WithRequestID(r.Context(), requestID)

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r.WithContext(ctx))

		logger.FromContext(ctx).Info("Request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
