// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"admanager/internal/kijiji"
	"admanager/internal/middleware"
	"admanager/internal/render"
	"admanager/internal/session"
	"admanager/internal/wire"
)

// deletedOwnerID marks a conversation whose ad no longer exists. Replies
// to such conversations are rejected upstream.
const deletedOwnerID = "null"

// Conversations groups the buyer/seller messaging handlers.
type Conversations struct {
	renderer *render.Renderer
	sessions *session.Store
	api      *kijiji.Client
}

// NewConversations creates a new Conversations handler group.
func NewConversations(renderer *render.Renderer, sessions *session.Store, api *kijiji.Client) *Conversations {
	return &Conversations{
		renderer: renderer,
		sessions: sessions,
		api:      api,
	}
}

// conversationSummary is one row of the conversation listing.
type conversationSummary struct {
	ID          string
	AdID        string
	Subject     string
	OtherParty  string
	LastMessage string
}

// List shows one page of the user's conversations.
func (h *Conversations) List(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())

	page := 1
	if p := chi.URLParam(r, "page"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 {
			http.NotFound(w, r)
			return
		}
		page = n
	}

	doc, err := h.api.GetConversationPage(r.Context(), sess.UserID, sess.Token, page)
	if err != nil {
		slog.Error("conversation listing failed", "page", page, "error", err)
		h.renderer.Page(w, r, "conversations", &render.PageData{
			Title:   "Conversations",
			Section: "conversations",
			Data:    map[string]any{"Error": "Could not load your conversations.", "Page": page},
		})
		return
	}

	var summaries []conversationSummary
	for _, conv := range doc.List("user:user-conversations", "user:user-conversation") {
		summaries = append(summaries, conversationSummary{
			ID:          conv.GetString("user:id"),
			AdID:        conv.GetString("user:ad-id"),
			Subject:     conv.GetString("user:ad-subject"),
			OtherParty:  otherParty(conv, sess.UserID),
			LastMessage: conv.GetString("user:last-message-post-time-stamp"),
		})
	}

	h.renderer.Page(w, r, "conversations", &render.PageData{
		Title:   "Conversations",
		Section: "conversations",
		Data: map[string]any{
			"Conversations": summaries,
			"Page":          page,
			"NextPage":      page + 1,
			"PrevPage":      page - 1,
		},
	})
}

// conversationMessage is one message of a conversation thread.
type conversationMessage struct {
	Content  string
	Time     string
	FromUser bool
}

// Show renders a conversation thread with its reply form.
func (h *Conversations) Show(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())
	conversationID := chi.URLParam(r, "id")

	doc, err := h.api.GetConversation(r.Context(), sess.UserID, sess.Token, conversationID)
	if err != nil {
		slog.Error("conversation fetch failed", "conversation_id", conversationID, "error", err)
		h.sessions.Flash(r.Context(), r, "error", "Could not load that conversation.")
		http.Redirect(w, r, "/conversations", http.StatusSeeOther)
		return
	}

	conv, _ := doc.GetMap("user:user-conversation")
	ownsAd := conv.GetString("user:ad-owner-id") == sess.UserID

	var messages []conversationMessage
	for _, msg := range conv.List("user:user-message") {
		direction := msg.GetString("user:msg-direction", "types:value")
		// The sender is inferred from the message direction relative to
		// the viewer's role in the conversation.
		fromUser := (direction == "TO_OWNER") != ownsAd
		messages = append(messages, conversationMessage{
			Content:  wire.Text(msg["user:msg-content"]),
			Time:     msg.GetString("user:post-time-stamp"),
			FromUser: fromUser,
		})
	}

	h.renderer.Page(w, r, "conversation", &render.PageData{
		Title:   conv.GetString("user:ad-subject"),
		Section: "conversations",
		Data: map[string]any{
			"ID":         conversationID,
			"AdID":       conv.GetString("user:ad-id"),
			"Subject":    conv.GetString("user:ad-subject"),
			"OtherParty": otherParty(conv, sess.UserID),
			"Deleted":    conv.GetString("user:ad-owner-id") == deletedOwnerID,
			"Messages":   messages,
		},
	})
}

// ReplySubmit sends a reply within a conversation. The reply direction
// depends on which side of the conversation the session user is.
func (h *Conversations) ReplySubmit(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())
	conversationID := chi.URLParam(r, "id")

	message := strings.TrimSpace(r.FormValue("reply"))
	if message == "" {
		h.sessions.Flash(r.Context(), r, "error", "Reply message is required.")
		http.Redirect(w, r, "/conversation/"+conversationID, http.StatusSeeOther)
		return
	}

	doc, err := h.api.GetConversation(r.Context(), sess.UserID, sess.Token, conversationID)
	if err != nil {
		slog.Error("conversation fetch failed", "conversation_id", conversationID, "error", err)
		h.sessions.Flash(r.Context(), r, "error", "Could not load that conversation.")
		http.Redirect(w, r, "/conversations", http.StatusSeeOther)
		return
	}
	conv, _ := doc.GetMap("user:user-conversation")

	if conv.GetString("user:ad-owner-id") == deletedOwnerID {
		h.sessions.Flash(r.Context(), r, "error", "Ad has been deleted, cannot send reply.")
		http.Redirect(w, r, "/conversation/"+conversationID, http.StatusSeeOther)
		return
	}

	reply := kijiji.Reply{
		ConversationID: conversationID,
		AdID:           conv.GetString("user:ad-id"),
		Message:        message,
	}
	switch sess.UserID {
	case conv.GetString("user:ad-owner-id"):
		// Replying on our own ad, message goes to the buyer.
		reply.Username = conv.GetString("user:ad-owner-name")
		reply.Email = conv.GetString("user:ad-owner-email")
		reply.Direction = "buyer"
	case conv.GetString("user:ad-replier-id"):
		reply.Username = conv.GetString("user:ad-replier-name")
		reply.Email = conv.GetString("user:ad-replier-email")
		reply.Direction = "owner"
	default:
		h.sessions.Flash(r.Context(), r, "error", "You are not part of this conversation.")
		http.Redirect(w, r, "/conversations", http.StatusSeeOther)
		return
	}

	if _, err := h.api.PostConversationReply(r.Context(), sess.UserID, sess.Token, reply); err != nil {
		slog.Error("reply failed", "conversation_id", conversationID, "error", err)
		h.sessions.Flash(r.Context(), r, "error", upstreamMessage(err, "Could not send the reply."))
		http.Redirect(w, r, "/conversation/"+conversationID, http.StatusSeeOther)
		return
	}

	h.sessions.Flash(r.Context(), r, "success", "Reply sent.")
	http.Redirect(w, r, "/conversation/"+conversationID, http.StatusSeeOther)
}

// otherParty names the counterpart of the session user in a conversation.
func otherParty(conv wire.Document, userID string) string {
	if conv.GetString("user:ad-owner-id") == userID {
		return conv.GetString("user:ad-replier-name")
	}
	return conv.GetString("user:ad-owner-name")
}
