// Package web provides the JSON HTTP API over the import service.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/cors"

	"github.com/JonMunkholm/sheetvault/internal/config"
	"github.com/JonMunkholm/sheetvault/internal/core"
	"github.com/JonMunkholm/sheetvault/internal/web/middleware"
)

// ImportService is the part of core.Service the handlers use.
type ImportService interface {
	ImportSheets(ctx context.Context, req core.ImportRequest) (*core.ImportResult, error)
	ListSessions(ctx context.Context, page, pageSize int) (core.Page[core.SessionSummary], error)
	GetSession(ctx context.Context, id uuid.UUID) (*core.SessionDetail, error)
	DeleteSession(ctx context.Context, id uuid.UUID) (bool, error)
	ListProcessingErrors(ctx context.Context, sessionID uuid.UUID) ([]core.ProcessingErrorInfo, error)
	GetSheet(ctx context.Context, id uuid.UUID) (*core.SheetDetail, error)
	Search(ctx context.Context, params core.SearchParams) (core.Page[core.SearchResult], error)
	Ping(ctx context.Context) error
	ImportLimiterStatus() core.ImportLimiterStatus
}

var _ ImportService = (*core.Service)(nil)

// Server is the HTTP server for the import API.
type Server struct {
	service ImportService
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a new Server instance.
func NewServer(service ImportService, cfg *config.Config) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(securityHeaders)

	s.router.Use(cors.New(cors.Options{
		AllowedOrigins: s.cfg.Security.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-API-Key", "X-Request-Id"},
		ExposedHeaders: []string{"Retry-After", "X-Request-Id"},
		MaxAge:         300,
	}).Handler)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(&s.cfg.Security))

		// Imports get their own, tighter rate limit and no request timeout:
		// a started import always runs to commit or rollback.
		r.Group(func(r chi.Router) {
			if s.cfg.Rate.Enabled {
				r.Use(middleware.NewRateLimiter(s.cfg.Rate.ImportLimit).Handler)
			}
			r.Post("/imports", s.handleImport)
		})

		r.Group(func(r chi.Router) {
			if s.cfg.Rate.Enabled {
				r.Use(middleware.NewRateLimiter(s.cfg.Rate.RequestsPerMinute).Handler)
			}
			if s.cfg.Server.RequestTimeout > 0 {
				r.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
			}

			r.Get("/sessions", s.handleListSessions)
			r.Get("/sessions/{sessionID}", s.handleGetSession)
			r.Delete("/sessions/{sessionID}", s.handleDeleteSession)
			r.Get("/sessions/{sessionID}/errors", s.handleListProcessingErrors)
			r.Get("/sheets/{sheetID}", s.handleGetSheet)
			r.Get("/search", s.handleSearch)
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Prevent MIME type sniffing
		w.Header().Set("X-Content-Type-Options", "nosniff")

		// Prevent clickjacking
		w.Header().Set("X-Frame-Options", "DENY")

		// JSON only; nothing may be loaded from a response
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		// Control referrer information
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		if id := chimw.GetReqID(r.Context()); id != "" {
			w.Header().Set("X-Request-Id", id)
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON with the given status.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
