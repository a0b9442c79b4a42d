package handler

import (
	"errors"
	"fmt"
	"net/http"

	"warbler/internal/model"
	"warbler/internal/service"
	"warbler/internal/transport/http/middleware"
	"warbler/internal/view"
)

type MessageHandler struct {
	web      *Web
	messages *service.MessageService
	likes    *service.LikeService
}

func NewMessageHandler(web *Web, messages *service.MessageService, likes *service.LikeService) *MessageHandler {
	return &MessageHandler{
		web:      web,
		messages: messages,
		likes:    likes,
	}
}

// NewForm renders the compose form.
// GET /messages/new
func (h *MessageHandler) NewForm(w http.ResponseWriter, r *http.Request) {
	h.web.render(w, r, http.StatusOK, "message_new", "New message", view.FormData{})
}

// Create posts a message and shows the author's profile.
// POST /messages/new
func (h *MessageHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor := middleware.UserFromContext(r.Context())
	if err := r.ParseForm(); err != nil {
		h.web.render(w, r, http.StatusBadRequest, "message_new", "New message", view.FormData{Error: "Invalid form data."})
		return
	}

	_, err := h.messages.Create(r.Context(), actor.ID, r.FormValue("text"))
	if err != nil {
		if errors.Is(err, model.ErrValidation) {
			h.web.render(w, r, http.StatusUnprocessableEntity, "message_new", "New message", view.FormData{
				Error:  validationMessage(err),
				Values: formValues(r, "text"),
			})
			return
		}
		h.web.serverError(w, r, "MessageHandler", err)
		return
	}

	h.web.metrics.MessagesCreated.Inc()
	redirect(w, r, fmt.Sprintf("/users/%d", actor.ID))
}

// Show renders a single message.
// GET /messages/{id}
func (h *MessageHandler) Show(w http.ResponseWriter, r *http.Request) {
	messageID, ok := idParam(r, "id")
	if !ok {
		h.web.badRequest(w, r, "Invalid message id.")
		return
	}

	msg, err := h.messages.Get(r.Context(), messageID)
	if err != nil {
		if errors.Is(err, model.ErrMessageNotFound) {
			h.web.notFound(w, r, "Message not found.")
			return
		}
		h.web.serverError(w, r, "MessageHandler", err)
		return
	}

	count, err := h.likes.CountForMessage(r.Context(), msg.ID)
	if err != nil {
		h.web.serverError(w, r, "MessageHandler", err)
		return
	}

	data := view.MessageData{Message: msg, Likes: count}
	if viewer := middleware.UserFromContext(r.Context()); viewer != nil {
		data.IsOwner = msg.OwnedBy(viewer.ID)
		data.Liked, err = h.likes.HasLiked(r.Context(), viewer.ID, msg.ID)
		if err != nil {
			h.web.serverError(w, r, "MessageHandler", err)
			return
		}
	}

	h.web.render(w, r, http.StatusOK, "message_show", "Message", data)
}

// Delete removes the current user's own message.
// POST /messages/{id}/delete
func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor := middleware.UserFromContext(r.Context())
	messageID, ok := idParam(r, "id")
	if !ok {
		h.web.badRequest(w, r, "Invalid message id.")
		return
	}

	err := h.messages.Delete(r.Context(), actor, messageID)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrMessageNotFound):
			h.web.notFound(w, r, "Message not found.")
		case errors.Is(err, model.ErrAccessUnauthorized):
			h.web.deny(w, r)
		default:
			h.web.serverError(w, r, "MessageHandler", err)
		}
		return
	}

	h.web.metrics.MessagesDeleted.Inc()
	redirect(w, r, fmt.Sprintf("/users/%d", actor.ID))
}
