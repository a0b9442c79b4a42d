package handler

import (
	"net/http"

	"warbler/internal/service"
	"warbler/internal/transport/http/middleware"
	"warbler/internal/view"
)

type HomeHandler struct {
	web      *Web
	timeline *service.TimelineService
	users    *service.UserService
	likes    *service.LikeService
}

func NewHomeHandler(web *Web, timeline *service.TimelineService, users *service.UserService, likes *service.LikeService) *HomeHandler {
	return &HomeHandler{
		web:      web,
		timeline: timeline,
		users:    users,
		likes:    likes,
	}
}

// Home shows the landing page to visitors and the timeline to logged-in users.
// GET /
func (h *HomeHandler) Home(w http.ResponseWriter, r *http.Request) {
	actor := middleware.UserFromContext(r.Context())
	if actor == nil {
		h.web.render(w, r, http.StatusOK, "home", "", nil)
		return
	}

	messages, err := h.timeline.Home(r.Context(), actor.ID)
	if err != nil {
		h.web.serverError(w, r, "HomeHandler", err)
		return
	}

	_, stats, err := h.users.GetProfile(r.Context(), actor.ID)
	if err != nil {
		h.web.serverError(w, r, "HomeHandler", err)
		return
	}

	list, err := likedMessageList(r, h.likes, messages)
	if err != nil {
		h.web.serverError(w, r, "HomeHandler", err)
		return
	}

	h.web.render(w, r, http.StatusOK, "home", "Home", view.HomeData{Stats: stats, List: *list})
}
