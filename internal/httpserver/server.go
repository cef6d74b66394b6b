// internal/httpserver/server.go
//
// HTTP server wiring for the hidden picture backend.
// Responsibilities:
//   - Router + middleware (request IDs, real IP, panic recovery, timeouts,
//     request logging, JSON content type, credentialed CORS).
//   - Public endpoints: "/", "/health".
//   - Game endpoints (optional auth): mounted under /game.
//   - Auth + stats endpoints: /auth/*, /stats/me.
//
// Notes:
//   - Every request is resolved to a player key before reaching game handlers:
//     "user:<id>" with a valid token, otherwise "anon:<cookie id>".
//   - The WebSocket status stream (/game/events) is the only route without a handler timeout.

package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/hiddenpicture/internal/config"
	"github.com/robalobadob/hiddenpicture/internal/notify"
	"github.com/robalobadob/hiddenpicture/internal/session"
	"github.com/robalobadob/hiddenpicture/internal/users"
)

// Deps are the collaborators a Server needs.
type Deps struct {
	Config   *config.Config
	Registry *session.Registry
	Users    *users.Store
	Hub      *notify.Hub
}

// Server bundles router and game dependencies.
type Server struct {
	r     *chi.Mux
	cfg   *config.Config
	reg   *session.Registry
	users *users.Store
	hub   *notify.Hub

	mu  sync.Mutex
	srv *http.Server
}

// New constructs a Server, installs middleware, and registers routes.
func New(d Deps) *Server {
	s := &Server{
		r:     chi.NewRouter(),
		cfg:   d.Config,
		reg:   d.Registry,
		users: d.Users,
		hub:   d.Hub,
	}
	if s.hub == nil {
		s.hub = notify.NewHub()
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID) // add X-Request-ID
	s.r.Use(chimw.RealIP)    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(requestLogger)
	s.r.Use(chimw.Recoverer)
	s.r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{s.cfg.Server.ClientOrigin},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	s.r.Use(jsonContentType)

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"service":"hiddenpicture","endpoints":["/health","/game","/auth/*","/stats/me"]}`))
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "liveSessions": s.reg.Live()})
	})

	s.r.Group(func(r chi.Router) {
		r.Use(s.withPlayer)
		s.mountGame(r)
		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(s.cfg.Server.HandlerTimeout))
			s.mountAuth(r)
		})
	})

	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "path": r.URL.Path})
	})

	return s
}

// Start begins serving HTTP on addr. It returns http.ErrServerClosed after Shutdown.
func (s *Server) Start(addr string) error {
	s.mu.Lock()
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.srv
	s.mu.Unlock()
	return srv.ListenAndServe()
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs one line per request once the handler has returned.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("query", r.URL.RawQuery).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Str("ip", r.RemoteAddr).
			Str("request_id", chimw.GetReqID(r.Context())).
			Dur("cost", time.Since(start)).
			Msg("request")
	})
}

// ------------------------------- small util --------------------------------

// writeJSON encodes v with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("encode response")
	}
}
