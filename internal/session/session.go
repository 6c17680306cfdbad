// Package session provides Valkey-backed HTTP session management.
// Sessions are identified by a secure cookie and stored as JSON in Valkey
// with automatic TTL expiry. The session is the only place the upstream
// credentials live; they are never written to durable storage.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"admanager/internal/form"
)

const (
	// CookieName is the name of the session cookie sent to the browser.
	CookieName = "am_session"

	// DefaultTTL is how long a session lives in Valkey before automatic expiry.
	DefaultTTL = 24 * time.Hour

	// keyPrefix namespaces session keys in Valkey to avoid collisions.
	keyPrefix = "session:"

	// idLength is the byte length of the random session ID (32 bytes = 64 hex chars).
	idLength = 32
)

// Flash is a one-time notification message displayed on the next page render.
type Flash struct {
	Type    string `json:"type"` // "success", "error", "warning", "info"
	Message string `json:"message"`
}

// PostDraft carries the in-progress state of the multi-step posting flow
// between requests: the chosen category and the field set built from its
// attribute metadata.
type PostDraft struct {
	CategoryID string        `json:"category_id"`
	AdTypes    []form.Choice `json:"ad_types"`
	Fields     form.FieldSet `json:"fields"`
	Degraded   bool          `json:"degraded"`
}

// Data holds the session payload stored in Valkey: the upstream
// credentials, display identity, pending flashes, and any posting draft.
type Data struct {
	UserID      string     `json:"user_id"`
	Token       string     `json:"token"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	Flashes     []Flash    `json:"flashes,omitempty"`
	Draft       *PostDraft `json:"draft,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Store manages session lifecycle in Valkey.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore creates a session store backed by the given Valkey client.
func NewStore(client *redis.Client) *Store {
	return &Store{
		client: client,
		ttl:    DefaultTTL,
	}
}

// Create generates a new session, stores it in Valkey, and sets the
// session cookie on the response. Returns the session ID.
func (s *Store) Create(ctx context.Context, w http.ResponseWriter, data *Data) (string, error) {
	id, err := generateID()
	if err != nil {
		return "", fmt.Errorf("session create: %w", err)
	}

	data.CreatedAt = time.Now()

	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("session marshal: %w", err)
	}

	if err := s.client.Set(ctx, keyPrefix+id, payload, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("session store: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   false, // Set to true behind TLS in production
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.ttl.Seconds()),
	})

	return id, nil
}

// Get retrieves session data from Valkey using the session ID from the
// request cookie. Returns nil if no valid session exists.
func (s *Store) Get(ctx context.Context, r *http.Request) (*Data, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return nil, nil // No cookie = no session (not an error)
	}

	payload, err := s.client.Get(ctx, keyPrefix+cookie.Value).Bytes()
	if err == redis.Nil {
		return nil, nil // Session expired or doesn't exist
	}
	if err != nil {
		return nil, fmt.Errorf("session get: %w", err)
	}

	var data Data
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("session unmarshal: %w", err)
	}

	return &data, nil
}

// Update replaces the session data in Valkey without changing the session
// ID or cookie. Resets the TTL.
func (s *Store) Update(ctx context.Context, r *http.Request, data *Data) error {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return fmt.Errorf("session update: no cookie")
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("session marshal: %w", err)
	}

	if err := s.client.Set(ctx, keyPrefix+cookie.Value, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("session update: %w", err)
	}

	return nil
}

// Destroy removes the session from Valkey and clears the cookie.
func (s *Store) Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return nil // No cookie, nothing to destroy
	}

	s.client.Del(ctx, keyPrefix+cookie.Value)

	// Expire the cookie immediately.
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})

	return nil
}

// Flash appends a one-time message to the session. Best-effort: a session
// that cannot be loaded or written drops the message.
func (s *Store) Flash(ctx context.Context, r *http.Request, kind, message string) {
	data, err := s.Get(ctx, r)
	if err != nil || data == nil {
		return
	}
	data.Flashes = append(data.Flashes, Flash{Type: kind, Message: message})
	s.Update(ctx, r, data)
}

// PopFlashes returns the session's pending flashes and clears them, so
// each message renders exactly once.
func (s *Store) PopFlashes(ctx context.Context, r *http.Request) []Flash {
	data, err := s.Get(ctx, r)
	if err != nil || data == nil || len(data.Flashes) == 0 {
		return nil
	}
	flashes := data.Flashes
	data.Flashes = nil
	s.Update(ctx, r, data)
	return flashes
}

// SaveDraft stashes the posting flow's in-progress state in the session.
func (s *Store) SaveDraft(ctx context.Context, r *http.Request, draft *PostDraft) error {
	data, err := s.Get(ctx, r)
	if err != nil {
		return err
	}
	if data == nil {
		return fmt.Errorf("session draft: no session")
	}
	data.Draft = draft
	return s.Update(ctx, r, data)
}

// generateID creates a cryptographically random session identifier.
func generateID() (string, error) {
	b := make([]byte, idLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
