// Package router wires services, handlers and middleware into the HTTP surface.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/jamroom/backend/internal/broker"
	"github.com/jamroom/backend/internal/catalog"
	"github.com/jamroom/backend/internal/config"
	"github.com/jamroom/backend/internal/db"
	"github.com/jamroom/backend/internal/handlers"
	"github.com/jamroom/backend/internal/middleware"
	"github.com/jamroom/backend/internal/registry"
	"github.com/jamroom/backend/internal/services"
)

// New builds the application's HTTP handler. Session state lives in memory for
// the life of the returned handler.
func New(cfg *config.Config, queries *db.Queries, songs *catalog.Catalog) http.Handler {
	r := chi.NewRouter()

	realIP := middleware.NewRealIPMiddleware(cfg.TrustedProxies)

	// Global middleware
	r.Use(realIP.Handler)
	r.Use(middleware.RequestContextMiddleware)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORSMiddleware(cfg.CORSAllowedOrigins))

	// Real-time fan-out and session state
	hub := broker.New()
	sessions := registry.New()

	// Services
	authService := services.NewAuthService(cfg.JWTSecret, cfg.TokenDuration)
	accountService := services.NewAccountService(queries)
	rehearsalService := services.NewRehearsalService(sessions, songs, hub)

	// Handlers
	authHandler := handlers.NewAuthHandler(accountService, authService, cfg.AdminSignupCode)
	rehearsalHandler := handlers.NewRehearsalHandler(rehearsalService)
	songHandler := handlers.NewSongHandler(songs)
	socketHandler := handlers.NewSocketHandler(hub, authService, cfg.CORSAllowedOrigins)

	// Rate limiter for credential endpoints
	authRateLimiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute)

	requireAuth := chi.Chain(middleware.AuthMiddleware(authService), middleware.UpdateRequestContextMiddleware)

	r.Route("/api", func(r chi.Router) {
		// Health check
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}`))
		})

		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(authRateLimiter.Middleware)
				r.Post("/register", authHandler.Register)
				r.Post("/register-admin", authHandler.RegisterAdmin)
				r.Post("/login", authHandler.Login)
			})

			r.With(requireAuth...).Get("/profile", authHandler.Profile)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Use(requireAuth...)

			r.With(middleware.AdminOnlyMiddleware).Post("/", rehearsalHandler.Create)
			r.Get("/", rehearsalHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Post("/join", rehearsalHandler.Join)
				// admin-of-session is checked by the coordinator
				r.Post("/songs", rehearsalHandler.SelectSong)
				r.Delete("/", rehearsalHandler.End)
			})
		})

		r.With(requireAuth...).Get("/songs/search", songHandler.Search)
	})

	// Token is verified inside the handler so it can come from the query string.
	r.Get("/ws", socketHandler.Serve)

	return r
}
