// Package router sets up all HTTP routes and middleware chains for the ad
// manager. Everything except the login page and the health check sits
// behind the session requirement.
package router

import (
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"

	"admanager/internal/handlers"
	"admanager/internal/middleware"
	"admanager/internal/session"
	"admanager/web"
)

// Handlers bundles the handler groups the router wires up.
type Handlers struct {
	Auth          *handlers.Auth
	Ads           *handlers.Ads
	Post          *handlers.Post
	Conversations *handlers.Conversations
	JSON          *handlers.JSON
}

// New creates and returns the configured Chi router with all middleware
// and route groups wired up. loginLimiter guards the login endpoint
// against credential stuffing; it may be nil in tests.
func New(sessionStore *session.Store, h Handlers, loginLimiter *middleware.RateLimiter) chi.Router {
	r := chi.NewRouter()

	// Global middleware — applied to every request.
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.SecureHeaders)
	r.Use(middleware.LoadSession(sessionStore))

	// Health check — no auth, no CSRF.
	r.Get("/health", healthHandler)

	// Static assets.
	staticFS, err := fs.Sub(web.StaticFS, "static")
	if err == nil {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	}

	// Login — accessible without a session, rate limited.
	r.Group(func(r chi.Router) {
		r.Use(middleware.CSRF)
		if loginLimiter != nil {
			r.Use(loginLimiter.Middleware)
		}
		r.Get("/login", h.Auth.LoginPage)
		r.Post("/login", h.Auth.LoginSubmit)
	})

	// Authenticated area.
	r.Group(func(r chi.Router) {
		r.Use(middleware.CSRF)
		r.Use(middleware.RequireAuth)

		r.Post("/logout", h.Auth.Logout)
		r.Get("/profile", h.Auth.ProfilePage)

		// Ads
		r.Get("/", h.Ads.Home)
		r.Get("/ad/{id}", h.Ads.Show)
		r.Post("/delete/{id}", h.Ads.Delete)
		r.Post("/repost/{id}", h.Ads.Repost)
		r.Post("/repost-all", h.Ads.RepostAll)

		// Posting flow
		r.Get("/post", h.Post.PostPage)
		r.Post("/post", h.Post.PostSubmit)
		r.Get("/post/manual", h.Ads.ManualPostPage)
		r.Post("/post/manual", h.Ads.ManualPostSubmit)

		// Conversations
		r.Get("/conversations", h.Conversations.List)
		r.Get("/conversations/{page}", h.Conversations.List)
		r.Get("/conversation/{id}", h.Conversations.Show)
		r.Post("/conversation/{id}", h.Conversations.ReplySubmit)

		// Cascading select data
		r.Route("/json", func(r chi.Router) {
			r.Get("/categories", h.JSON.Categories)
			r.Get("/locations", h.JSON.Locations)
			r.Get("/attributes", h.JSON.Attributes)
		})
	})

	return r
}

// healthHandler returns a simple JSON health check response.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
