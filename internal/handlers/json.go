package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"admanager/internal/catalog"
	"admanager/internal/form"
	"admanager/internal/kijiji"
	"admanager/internal/middleware"
	"admanager/internal/session"
)

// JSON serves the data behind the posting form's cascading selects.
type JSON struct {
	sessions *session.Store
	api      *kijiji.Client
	catalog  *catalog.Service
}

// NewJSON creates a new JSON handler group.
func NewJSON(sessions *session.Store, api *kijiji.Client, catalogService *catalog.Service) *JSON {
	return &JSON{
		sessions: sessions,
		api:      api,
		catalog:  catalogService,
	}
}

// Categories returns the subcategories under a chain of category ids.
// With no ids it returns the top-level categories.
func (h *JSON) Categories(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())

	root, err := h.catalog.Categories(r.Context(), sess.UserID, sess.Token)
	if err != nil {
		slog.Error("category fetch failed", "error", err)
		writeJSONError(w, http.StatusBadGateway, "could not load categories")
		return
	}

	children := catalog.Subcategories(root, idChain(r)...)
	writeJSON(w, map[string]any{"categories": children})
}

// Locations returns the sublocations under a chain of location ids.
func (h *JSON) Locations(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())

	root, err := h.catalog.Locations(r.Context(), sess.UserID, sess.Token)
	if err != nil {
		slog.Error("location fetch failed", "error", err)
		writeJSONError(w, http.StatusBadGateway, "could not load locations")
		return
	}

	children := catalog.Sublocations(root, idChain(r)...)
	writeJSON(w, map[string]any{"locations": children})
}

// Attributes returns the choices of a dependent attribute given its parent
// attribute's selected value.
func (h *JSON) Attributes(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())

	categoryID := r.URL.Query().Get("category")
	parentValue := r.URL.Query().Get("value")
	if categoryID == "" || parentValue == "" {
		writeJSONError(w, http.StatusBadRequest, "category and value are required")
		return
	}

	doc, err := h.api.GetAttributes(r.Context(), sess.UserID, sess.Token, categoryID)
	if err != nil {
		slog.Error("attribute fetch failed", "category_id", categoryID, "error", err)
		writeJSONError(w, http.StatusBadGateway, "could not load attributes")
		return
	}

	choices := form.ResolveDependentChoices(doc, parentValue)
	writeJSON(w, map[string]any{"choices": choices})
}

// idChain reads the id query parameters of a cascading select request.
func idChain(r *http.Request) []string {
	var ids []string
	for _, id := range r.URL.Query()["id"] {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
