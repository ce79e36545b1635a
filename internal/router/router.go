package router

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lettrly/internal/inbox"
	"lettrly/internal/letter"
	myMiddleware "lettrly/internal/middleware"
	"lettrly/internal/respond"
	"lettrly/internal/user"
)

type Handlers struct {
	User   *user.Handler
	Letter *letter.Handler
	Inbox  *inbox.Handler
	Auth   *myMiddleware.AuthMiddleware
	// Health reports whether the store is reachable. Nil means always healthy.
	Health func(ctx context.Context) error
}

func New(h Handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Public Routes
	r.Post("/register", h.User.Register)
	r.Post("/login", h.User.Login)
	r.Get("/healthz", health(h.Health))
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/api/u/{username}", h.User.Profile)
	r.With(h.Auth.Optional).Post("/api/u/{username}/letters", h.Letter.Send)

	// Protected Routes (Require JWT)
	r.Group(func(r chi.Router) {
		r.Use(h.Auth.Handle)

		// Account
		r.Get("/api/me", h.User.Me)
		r.Patch("/api/me", h.User.UpdateMe)
		r.Delete("/api/me", h.User.DeleteMe)
		r.Get("/api/me/stats", h.User.Stats)
		r.Get("/api/me/username/{username}", h.User.CheckUsername)

		// Live inbox
		r.Get("/api/letters/stream", h.Inbox.ServeSSE)
		r.Get("/api/letters/ws", h.Inbox.ServeWS)

		r.Get("/api/letters", h.Letter.List)
		r.Get("/api/letters/{id}", h.Letter.Get)
		r.Post("/api/letters/{id}/read", h.Letter.MarkRead)
		r.Post("/api/letters/{id}/favorite", h.Letter.Favorite)
		r.Delete("/api/letters/{id}", h.Letter.Delete)
	})

	return r
}

func health(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r.Context()); err != nil {
				respond.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		respond.OK(w, map[string]string{"status": "ok"})
	}
}
