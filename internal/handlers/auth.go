package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"admanager/internal/kijiji"
	"admanager/internal/middleware"
	"admanager/internal/render"
	"admanager/internal/session"
)

// Auth groups the login, logout and profile handlers.
type Auth struct {
	renderer *render.Renderer
	sessions *session.Store
	api      *kijiji.Client
}

// NewAuth creates a new Auth handler group.
func NewAuth(renderer *render.Renderer, sessions *session.Store, api *kijiji.Client) *Auth {
	return &Auth{
		renderer: renderer,
		sessions: sessions,
		api:      api,
	}
}

// LoginPage renders the login form.
func (a *Auth) LoginPage(w http.ResponseWriter, r *http.Request) {
	// Already signed in, nothing to do here.
	if sess := middleware.SessionFromCtx(r.Context()); sess != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	a.renderer.Page(w, r, "login", &render.PageData{
		Title: "Sign In",
	})
}

// LoginSubmit exchanges the submitted credentials for an upstream token and
// opens a session.
func (a *Auth) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	password := r.FormValue("password")

	userID, token, err := a.api.Login(r.Context(), email, password)
	if err != nil {
		var upstream *kijiji.UpstreamError
		if errors.As(err, &upstream) {
			a.renderer.Page(w, r, "login", &render.PageData{
				Title: "Sign In",
				Data:  map[string]any{"Error": upstream.Message},
			})
			return
		}
		slog.Error("login failed", "error", err)
		a.renderer.Page(w, r, "login", &render.PageData{
			Title: "Sign In",
			Data:  map[string]any{"Error": "Could not reach the ad service. Please try again."},
		})
		return
	}

	// The display name is cosmetic; a profile fetch failure should not block
	// the login.
	displayName := email
	if profile, err := a.api.GetProfile(r.Context(), userID, token); err != nil {
		slog.Warn("profile fetch failed", "error", err)
	} else if name := kijiji.DisplayName(profile); name != "" {
		displayName = name
	}

	_, err = a.sessions.Create(r.Context(), w, &session.Data{
		UserID:      userID,
		Token:       token,
		Email:       email,
		DisplayName: displayName,
	})
	if err != nil {
		slog.Error("session create failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// ProfilePage shows the signed-in user's upstream profile.
func (a *Auth) ProfilePage(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())

	profile, err := a.api.GetProfile(r.Context(), sess.UserID, sess.Token)
	if err != nil {
		slog.Error("profile fetch failed", "error", err)
		a.renderer.Page(w, r, "profile", &render.PageData{
			Title:   "Profile",
			Section: "profile",
			Data:    map[string]any{"Error": "Could not load your profile."},
		})
		return
	}

	a.renderer.Page(w, r, "profile", &render.PageData{
		Title:   "Profile",
		Section: "profile",
		Data: map[string]any{
			"UserID":      sess.UserID,
			"Email":       sess.Email,
			"DisplayName": kijiji.DisplayName(profile),
		},
	})
}

// Logout destroys the session and returns to the login page.
func (a *Auth) Logout(w http.ResponseWriter, r *http.Request) {
	a.sessions.Destroy(r.Context(), w, r)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
