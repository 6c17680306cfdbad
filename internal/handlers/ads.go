// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"admanager/internal/kijiji"
	"admanager/internal/middleware"
	"admanager/internal/render"
	"admanager/internal/repost"
	"admanager/internal/session"
	"admanager/internal/store"
	"admanager/internal/wire"
)

// maxManualPayloadSize caps raw XML uploads on the manual post form.
const maxManualPayloadSize = 1 << 20

// Ads groups the ad listing, detail, delete and repost handlers.
type Ads struct {
	renderer    *render.Renderer
	sessions    *session.Store
	api         *kijiji.Client
	records     *store.AdStore
	scheduler   *repost.Scheduler
	repostDelay time.Duration
}

// NewAds creates a new Ads handler group.
func NewAds(renderer *render.Renderer, sessions *session.Store, api *kijiji.Client, records *store.AdStore, scheduler *repost.Scheduler, repostDelay time.Duration) *Ads {
	return &Ads{
		renderer:    renderer,
		sessions:    sessions,
		api:         api,
		records:     records,
		scheduler:   scheduler,
		repostDelay: repostDelay,
	}
}

// adSummary is one row of the home page listing.
type adSummary struct {
	ID        string
	Title     string
	Status    string
	Price     string
	Views     string
	Rank      string
	StartDate string
	Thumbnail string
	PublicURL string
	Stored    bool
}

// Home lists all of the user's ads.
func (h *Ads) Home(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())

	doc, err := h.api.GetAds(r.Context(), sess.UserID, sess.Token)
	if err != nil {
		slog.Error("ad listing failed", "error", err)
		h.renderer.Page(w, r, "home", &render.PageData{
			Title:   "My Ads",
			Section: "home",
			Data:    map[string]any{"Error": "Could not load your ads."},
		})
		return
	}

	stored := map[string]bool{}
	if records, err := h.records.ListByUser(sess.UserID); err != nil {
		slog.Error("ad record listing failed", "error", err)
	} else {
		for _, rec := range records {
			stored[rec.AdID] = true
		}
	}

	var summaries []adSummary
	for _, ad := range doc.List("ad:ads", "ad:ad") {
		id := ad.GetString("@id")
		summaries = append(summaries, adSummary{
			ID:        id,
			Title:     ad.GetString("ad:title"),
			Status:    ad.GetString("ad:ad-status", "ad:value"),
			Price:     ad.GetString("ad:price", "types:amount"),
			Views:     ad.GetString("ad:view-ad-count"),
			Rank:      ad.GetString("ad:rank"),
			StartDate: ad.GetString("ad:start-date-time"),
			Thumbnail: thumbnailURL(ad),
			PublicURL: publicURL(ad),
			Stored:    stored[id],
		})
	}

	h.renderer.Page(w, r, "home", &render.PageData{
		Title:   "My Ads",
		Section: "home",
		Data: map[string]any{
			"Ads":   summaries,
			"Total": len(summaries),
		},
	})
}

// Show renders a single ad.
func (h *Ads) Show(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())
	adID := chi.URLParam(r, "id")

	doc, err := h.api.GetAd(r.Context(), sess.UserID, sess.Token, adID)
	if err != nil {
		slog.Error("ad fetch failed", "ad_id", adID, "error", err)
		h.sessions.Flash(r.Context(), r, "error", fmt.Sprintf("Could not load ad %s.", adID))
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	ad, _ := doc.GetMap("ad:ad")

	var attrs [][2]string
	for _, attr := range ad.List("attr:attributes", "attr:attribute") {
		label := attr.GetString("@localized-label")
		if label == "" {
			label = attr.GetString("@name")
		}
		attrs = append(attrs, [2]string{label, wire.Text(attr["attr:value"])})
	}

	var pictures []string
	for _, pic := range ad.List("pic:pictures", "pic:picture") {
		for _, link := range pic.List("pic:link") {
			if link.GetString("@rel") == "normal" {
				pictures = append(pictures, link.GetString("@href"))
			}
		}
	}

	record, err := h.records.Find(sess.UserID, adID)
	if err != nil {
		slog.Error("ad record lookup failed", "ad_id", adID, "error", err)
	}

	h.renderer.Page(w, r, "ad", &render.PageData{
		Title:   ad.GetString("ad:title"),
		Section: "home",
		Data: map[string]any{
			"ID":          adID,
			"Title":       ad.GetString("ad:title"),
			"Description": ad.GetString("ad:description"),
			"Status":      ad.GetString("ad:ad-status", "ad:value"),
			"Price":       ad.GetString("ad:price", "types:amount"),
			"PriceType":   ad.GetString("ad:price", "types:price-type", "types:value"),
			"Views":       ad.GetString("ad:view-ad-count"),
			"StartDate":   ad.GetString("ad:start-date-time"),
			"PublicURL":   publicURL(ad),
			"Attributes":  attrs,
			"Pictures":    pictures,
			"Stored":      record != nil,
		},
	})
}

// Delete removes an ad upstream and drops its stored record.
func (h *Ads) Delete(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())
	adID := chi.URLParam(r, "id")

	if err := h.api.DeleteAd(r.Context(), sess.UserID, sess.Token, adID); err != nil {
		slog.Error("ad delete failed", "ad_id", adID, "error", err)
		h.sessions.Flash(r.Context(), r, "error", fmt.Sprintf("Could not delete ad %s.", adID))
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if err := h.records.Delete(sess.UserID, adID); err != nil {
		slog.Error("ad record delete failed", "ad_id", adID, "error", err)
	}

	h.sessions.Flash(r.Context(), r, "success", fmt.Sprintf("Deleted ad %s.", adID))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Repost queues a delete-wait-post cycle for one ad.
func (h *Ads) Repost(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())
	adID := chi.URLParam(r, "id")

	record, err := h.records.Find(sess.UserID, adID)
	if err != nil {
		slog.Error("ad record lookup failed", "ad_id", adID, "error", err)
		h.sessions.Flash(r.Context(), r, "error", "Could not look up the stored ad payload.")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if record == nil {
		h.sessions.Flash(r.Context(), r, "error", fmt.Sprintf("Cannot repost: no stored payload for ad %s. Only ads posted through this app can be reposted.", adID))
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	err = h.scheduler.Schedule(repost.Job{
		UserID: sess.UserID,
		Token:  sess.Token,
		AdID:   adID,
		Delay:  h.repostDelay,
	})
	if err != nil {
		slog.Error("repost schedule failed", "ad_id", adID, "error", err)
		h.sessions.Flash(r.Context(), r, "error", "Repost queue is full. Try again later.")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	h.sessions.Flash(r.Context(), r, "success", fmt.Sprintf("Reposting ad %s in the background after a %s delay. Keep the app running.", adID, h.repostDelay))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// RepostAll queues a repost for every ad that has a stored payload.
func (h *Ads) RepostAll(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())

	records, err := h.records.ListByUser(sess.UserID)
	if err != nil {
		slog.Error("ad record listing failed", "error", err)
		h.sessions.Flash(r.Context(), r, "error", "Could not look up stored ad payloads.")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if len(records) == 0 {
		h.sessions.Flash(r.Context(), r, "error", "No stored ad payloads to repost.")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	adIDs := make([]string, 0, len(records))
	for _, rec := range records {
		adIDs = append(adIDs, rec.AdID)
	}

	queued := h.scheduler.ScheduleAll(sess.UserID, sess.Token, adIDs, h.repostDelay)
	h.sessions.Flash(r.Context(), r, "success", fmt.Sprintf("Queued %d of %d ads for repost.", queued, len(adIDs)))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// ManualPostPage renders the raw payload upload form.
func (h *Ads) ManualPostPage(w http.ResponseWriter, r *http.Request) {
	h.renderer.Page(w, r, "post_manual", &render.PageData{
		Title:   "Manual Post",
		Section: "post",
	})
}

// ManualPostSubmit posts an ad from an uploaded XML payload file.
func (h *Ads) ManualPostSubmit(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())

	file, header, err := r.FormFile("payload")
	if err != nil {
		h.sessions.Flash(r.Context(), r, "error", "A payload file is required.")
		http.Redirect(w, r, "/post/manual", http.StatusSeeOther)
		return
	}
	defer file.Close()

	if msg := validatePayloadName(header.Filename); msg != "" {
		h.sessions.Flash(r.Context(), r, "error", msg)
		http.Redirect(w, r, "/post/manual", http.StatusSeeOther)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(file, maxManualPayloadSize))
	if err != nil {
		slog.Error("payload read failed", "error", err)
		h.sessions.Flash(r.Context(), r, "error", "Could not read the payload file.")
		http.Redirect(w, r, "/post/manual", http.StatusSeeOther)
		return
	}

	// Reject bodies the upstream would bounce anyway.
	if _, err := wire.Parse(payload); err != nil {
		h.sessions.Flash(r.Context(), r, "error", "Payload file is not well-formed XML.")
		http.Redirect(w, r, "/post/manual", http.StatusSeeOther)
		return
	}

	adID, err := h.api.PostAd(r.Context(), sess.UserID, sess.Token, payload)
	if err != nil {
		slog.Error("manual post failed", "error", err)
		h.sessions.Flash(r.Context(), r, "error", upstreamMessage(err, "Could not post the ad."))
		http.Redirect(w, r, "/post/manual", http.StatusSeeOther)
		return
	}

	if _, err := h.records.Save(sess.UserID, adID, string(payload)); err != nil {
		slog.Error("ad record save failed", "ad_id", adID, "error", err)
	}

	h.sessions.Flash(r.Context(), r, "success", fmt.Sprintf("Ad %s posted.", adID))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// thumbnailURL returns the first thumbnail link of an ad, or "".
func thumbnailURL(ad wire.Document) string {
	for _, pic := range ad.List("pic:pictures", "pic:picture") {
		for _, link := range pic.List("pic:link") {
			if link.GetString("@rel") == "thumbnail" {
				return link.GetString("@href")
			}
		}
	}
	return ""
}

// publicURL returns the ad's public website link, or "".
func publicURL(ad wire.Document) string {
	for _, link := range ad.List("ad:link") {
		if link.GetString("@rel") == "self-public-website" {
			return link.GetString("@href")
		}
	}
	return ""
}
