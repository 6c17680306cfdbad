// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"admanager/internal/catalog"
	"admanager/internal/form"
	"admanager/internal/geo"
	"admanager/internal/kijiji"
	"admanager/internal/middleware"
	"admanager/internal/payload"
	"admanager/internal/render"
	"admanager/internal/session"
	"admanager/internal/store"
)

// Posting form step names, carried in a hidden field.
const (
	stepChooseCategory = "choose_category"
	stepFillAttributes = "fill_attributes"
	stepSubmit         = "submit"
)

// maxUploadMemory bounds the in-memory portion of multipart parsing.
const maxUploadMemory = 32 << 20

// maxPictures is the number of picture slots on the posting form.
const maxPictures = 10

// Post groups the multi-step ad posting handlers.
type Post struct {
	renderer *render.Renderer
	sessions *session.Store
	api      *kijiji.Client
	catalog  *catalog.Service
	records  *store.AdStore
	geo      *geo.Index
}

// NewPost creates a new Post handler group.
func NewPost(renderer *render.Renderer, sessions *session.Store, api *kijiji.Client, catalogService *catalog.Service, records *store.AdStore, geoIndex *geo.Index) *Post {
	return &Post{
		renderer: renderer,
		sessions: sessions,
		api:      api,
		catalog:  catalogService,
		records:  records,
		geo:      geoIndex,
	}
}

// PostPage renders step 1 of the posting flow: the category cascade.
func (h *Post) PostPage(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())

	root, err := h.catalog.Categories(r.Context(), sess.UserID, sess.Token)
	if err != nil {
		slog.Error("category fetch failed", "error", err)
		h.sessions.Flash(r.Context(), r, "error", "Could not load categories.")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	h.renderer.Page(w, r, "post", &render.PageData{
		Title:   "Post Ad",
		Section: "post",
		Data: map[string]any{
			"Step":       stepChooseCategory,
			"NextStep":   stepFillAttributes,
			"Categories": root.Children,
		},
	})
}

// PostSubmit advances the posting flow: step 2 builds the attribute form for
// the chosen category, step 3 assembles and posts the ad.
func (h *Post) PostSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		h.sessions.Flash(r.Context(), r, "error", "Could not read the form.")
		http.Redirect(w, r, "/post", http.StatusSeeOther)
		return
	}

	switch r.FormValue("step") {
	case stepFillAttributes:
		h.fillAttributes(w, r)
	case stepSubmit:
		h.submit(w, r)
	default:
		http.Redirect(w, r, "/post", http.StatusSeeOther)
	}
}

// fillAttributes handles step 2: fetch the category's attribute schema and
// render the full posting form.
func (h *Post) fillAttributes(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())

	categoryID := lastNonEmpty(r.FormValue("cat1"), r.FormValue("cat2"), r.FormValue("cat3"))
	if categoryID == "" {
		h.sessions.Flash(r.Context(), r, "error", "Choose a category first.")
		http.Redirect(w, r, "/post", http.StatusSeeOther)
		return
	}

	doc, err := h.api.GetAttributes(r.Context(), sess.UserID, sess.Token, categoryID)
	if err != nil {
		slog.Error("attribute fetch failed", "category_id", categoryID, "error", err)
		h.sessions.Flash(r.Context(), r, "error", "Could not load the attributes for that category.")
		http.Redirect(w, r, "/post", http.StatusSeeOther)
		return
	}

	descriptors, degraded := form.ParseAttributes(doc)
	draft := &session.PostDraft{
		CategoryID: categoryID,
		AdTypes:    form.AdTypes(doc),
		Fields:     form.Build(descriptors),
		Degraded:   degraded,
	}
	if err := h.sessions.SaveDraft(r.Context(), r, draft); err != nil {
		slog.Error("draft save failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if degraded {
		h.sessions.Flash(r.Context(), r, "error", "No standard attributes found, attempting defaults.")
	}

	h.renderAdForm(w, r, draft, "")
}

// submit handles step 3: validate, upload pictures, assemble the payload and
// post the ad.
func (h *Post) submit(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())

	draft := sess.Draft
	if draft == nil {
		h.sessions.Flash(r.Context(), r, "error", "Your posting session expired. Start again.")
		http.Redirect(w, r, "/post", http.StatusSeeOther)
		return
	}

	title := r.FormValue("adtitle")
	description := r.FormValue("description")
	postalCode := strings.ToUpper(strings.TrimSpace(r.FormValue("postalcode")))
	priceType := r.FormValue("pricetype")
	price := strings.TrimSpace(r.FormValue("price"))
	phone := strings.TrimSpace(r.FormValue("phone"))

	if msg := firstError(
		validatePostCore(title, description, postalCode),
		validatePrice(priceType, price),
		validatePhone(phone),
	); msg != "" {
		h.renderAdForm(w, r, draft, msg)
		return
	}

	if err := draft.Fields.Validate(r.PostForm); err != nil {
		h.renderAdForm(w, r, draft, err.Error())
		return
	}

	pictureURLs, msg := h.uploadPictures(r, sess)
	if msg != "" {
		h.renderAdForm(w, r, draft, msg)
		return
	}

	// A geocoding miss degrades the payload, it does not block the post.
	var coords *geo.Coordinates
	if c, err := h.geo.Lookup(postalCode); err != nil {
		slog.Warn("postal code lookup failed", "postal_code", postalCode, "error", err)
	} else {
		coords = &c
	}

	in := payload.Input{
		AdType:      r.FormValue("adtype"),
		Title:       title,
		Description: description,
		PriceType:   priceType,
		PriceAmount: price,
		PostalCode:  postalCode,
		Phone:       phone,
		CategoryID:  draft.CategoryID,
		LocationID:  lastNonEmpty(r.FormValue("loc1"), r.FormValue("loc2"), r.FormValue("loc3")),
		Coordinates: coords,
		Attributes:  draft.Fields.CollectValues(r.PostForm),
		PictureURLs: pictureURLs,
		Account: payload.Account{
			ID:    sess.UserID,
			Email: sess.Email,
			Name:  sess.DisplayName,
		},
	}

	body, err := payload.Assemble(in).Marshal()
	if err != nil {
		slog.Error("payload marshal failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	adID, err := h.api.PostAd(r.Context(), sess.UserID, sess.Token, body)
	if err != nil {
		slog.Error("ad post failed", "error", err)
		h.renderAdForm(w, r, draft, upstreamMessage(err, "Could not post the ad."))
		return
	}

	if _, err := h.records.Save(sess.UserID, adID, string(body)); err != nil {
		slog.Error("ad record save failed", "ad_id", adID, "error", err)
	}

	if err := h.sessions.SaveDraft(r.Context(), r, nil); err != nil {
		slog.Warn("draft clear failed", "error", err)
	}

	h.sessions.Flash(r.Context(), r, "success", fmt.Sprintf("Ad %s posted.", adID))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// renderAdForm renders step 2/3 of the posting form from the session draft.
func (h *Post) renderAdForm(w http.ResponseWriter, r *http.Request, draft *session.PostDraft, errMsg string) {
	sess := middleware.SessionFromCtx(r.Context())

	// Location choices are cosmetic here; a fetch failure leaves the
	// cascade empty and the payload falls back to the country-wide id.
	var locations []catalog.Location
	if root, err := h.catalog.Locations(r.Context(), sess.UserID, sess.Token); err != nil {
		slog.Error("location fetch failed", "error", err)
	} else {
		locations = root.Children
	}

	pictureFields := make([]string, 0, maxPictures)
	for i := 1; i <= maxPictures; i++ {
		pictureFields = append(pictureFields, fmt.Sprintf("file%d", i))
	}

	data := map[string]any{
		"Step":          stepSubmit,
		"CategoryID":    draft.CategoryID,
		"AdTypes":       draft.AdTypes,
		"Fields":        draft.Fields.Fields,
		"PriceTypes":    form.PriceTypes(),
		"Locations":     locations,
		"PictureFields": pictureFields,
	}
	if errMsg != "" {
		data["Error"] = errMsg
	}

	h.renderer.Page(w, r, "post", &render.PageData{
		Title:   "Post Ad",
		Section: "post",
		Data:    data,
	})
}

// uploadPictures sends each attached picture to the upstream upload endpoint
// and returns the stored links.
func (h *Post) uploadPictures(r *http.Request, sess *session.Data) ([]string, string) {
	if r.MultipartForm == nil {
		return nil, ""
	}

	var urls []string
	for i := 1; i <= maxPictures; i++ {
		headers := r.MultipartForm.File[fmt.Sprintf("file%d", i)]
		if len(headers) == 0 {
			continue
		}
		header := headers[0]
		if header.Filename == "" {
			continue
		}
		if msg := validateImageName(header.Filename); msg != "" {
			return nil, msg
		}

		link, err := h.uploadPicture(r, sess, header)
		if err != nil {
			slog.Error("image upload failed", "filename", header.Filename, "error", err)
			return nil, fmt.Sprintf("Could not upload %s.", header.Filename)
		}
		urls = append(urls, link)
	}
	return urls, ""
}

func (h *Post) uploadPicture(r *http.Request, sess *session.Data, header *multipart.FileHeader) (string, error) {
	file, err := header.Open()
	if err != nil {
		return "", err
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	return h.api.UploadImage(r.Context(), sess.UserID, sess.Token, header.Filename, contentType, file)
}

// lastNonEmpty returns the most significant choice of a cascading select.
func lastNonEmpty(values ...string) string {
	for i := len(values) - 1; i >= 0; i-- {
		if values[i] != "" {
			return values[i]
		}
	}
	return ""
}

// firstError returns the first non-empty message.
func firstError(msgs ...string) string {
	for _, msg := range msgs {
		if msg != "" {
			return msg
		}
	}
	return ""
}
