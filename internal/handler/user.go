package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"

	"warbler/internal/authz"
	"warbler/internal/model"
	"warbler/internal/service"
	"warbler/internal/session"
	"warbler/internal/transport/http/middleware"
	"warbler/internal/view"
)

type UserHandler struct {
	web      *Web
	users    *service.UserService
	follows  *service.FollowService
	likes    *service.LikeService
	messages *service.MessageService
	images   ImageStore
}

func NewUserHandler(
	web *Web,
	users *service.UserService,
	follows *service.FollowService,
	likes *service.LikeService,
	messages *service.MessageService,
	images ImageStore,
) *UserHandler {
	return &UserHandler{
		web:      web,
		users:    users,
		follows:  follows,
		likes:    likes,
		messages: messages,
		images:   images,
	}
}

// Index lists users, filtered by ?q= when present.
// GET /users
func (h *UserHandler) Index(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	users, err := h.users.Search(r.Context(), query)
	if err != nil {
		h.web.serverError(w, r, "UserHandler", err)
		return
	}

	list, err := h.userList(r, users)
	if err != nil {
		h.web.serverError(w, r, "UserHandler", err)
		return
	}

	h.web.render(w, r, http.StatusOK, "users", "Users", view.UsersData{Query: query, List: *list})
}

// Show renders a profile with the user's messages.
// GET /users/{id}
func (h *UserHandler) Show(w http.ResponseWriter, r *http.Request) {
	data, ok := h.profile(w, r)
	if !ok {
		return
	}

	messages, err := h.messages.ListByUser(r.Context(), data.User.ID)
	if err != nil {
		h.web.serverError(w, r, "UserHandler", err)
		return
	}

	data.Messages, err = h.messageList(r, messages)
	if err != nil {
		h.web.serverError(w, r, "UserHandler", err)
		return
	}

	h.web.render(w, r, http.StatusOK, "profile", "@"+data.User.Username, data)
}

// Following lists who the user follows.
// GET /users/{id}/following
func (h *UserHandler) Following(w http.ResponseWriter, r *http.Request) {
	h.showUsers(w, r, h.follows.GetFollowing)
}

// Followers lists who follows the user.
// GET /users/{id}/followers
func (h *UserHandler) Followers(w http.ResponseWriter, r *http.Request) {
	h.showUsers(w, r, h.follows.GetFollowers)
}

func (h *UserHandler) showUsers(w http.ResponseWriter, r *http.Request, load func(ctx context.Context, userID int64) ([]model.UserSummary, error)) {
	if err := authz.CanViewFollowList(middleware.UserFromContext(r.Context())); err != nil {
		h.web.deny(w, r)
		return
	}

	data, ok := h.profile(w, r)
	if !ok {
		return
	}

	users, err := load(r.Context(), data.User.ID)
	if err != nil {
		h.web.serverError(w, r, "UserHandler", err)
		return
	}

	data.Users, err = h.userList(r, users)
	if err != nil {
		h.web.serverError(w, r, "UserHandler", err)
		return
	}

	h.web.render(w, r, http.StatusOK, "profile", "@"+data.User.Username, data)
}

// Likes lists the messages the user liked.
// GET /users/{id}/likes
func (h *UserHandler) Likes(w http.ResponseWriter, r *http.Request) {
	if err := authz.CanViewFollowList(middleware.UserFromContext(r.Context())); err != nil {
		h.web.deny(w, r)
		return
	}

	data, ok := h.profile(w, r)
	if !ok {
		return
	}

	messages, err := h.likes.LikedMessages(r.Context(), data.User.ID)
	if err != nil {
		h.web.serverError(w, r, "UserHandler", err)
		return
	}

	data.Messages, err = h.messageList(r, messages)
	if err != nil {
		h.web.serverError(w, r, "UserHandler", err)
		return
	}

	h.web.render(w, r, http.StatusOK, "profile", "@"+data.User.Username, data)
}

// Follow adds a follow for the current user.
// POST /users/follow/{id}
func (h *UserHandler) Follow(w http.ResponseWriter, r *http.Request) {
	actor := middleware.UserFromContext(r.Context())
	targetID, ok := idParam(r, "id")
	if !ok {
		h.web.badRequest(w, r, "Invalid user id.")
		return
	}

	err := h.follows.Follow(r.Context(), actor.ID, targetID)
	switch {
	case err == nil:
		h.web.metrics.Follows.Inc()
	case errors.Is(err, model.ErrAlreadyFollowing):
	case errors.Is(err, model.ErrUserNotFound):
		h.web.notFound(w, r, "User not found.")
		return
	default:
		h.web.serverError(w, r, "UserHandler", err)
		return
	}

	redirect(w, r, fmt.Sprintf("/users/%d/following", actor.ID))
}

// StopFollowing removes a follow for the current user.
// POST /users/stop-following/{id}
func (h *UserHandler) StopFollowing(w http.ResponseWriter, r *http.Request) {
	actor := middleware.UserFromContext(r.Context())
	targetID, ok := idParam(r, "id")
	if !ok {
		h.web.badRequest(w, r, "Invalid user id.")
		return
	}

	err := h.follows.Unfollow(r.Context(), actor.ID, targetID)
	switch {
	case err == nil:
		h.web.metrics.Unfollows.Inc()
	case errors.Is(err, model.ErrNotFollowing):
	case errors.Is(err, model.ErrUserNotFound):
		h.web.notFound(w, r, "User not found.")
		return
	default:
		h.web.serverError(w, r, "UserHandler", err)
		return
	}

	redirect(w, r, fmt.Sprintf("/users/%d/following", actor.ID))
}

// AddLike toggles the current user's like on a message.
// POST /users/add_like/{id}
func (h *UserHandler) AddLike(w http.ResponseWriter, r *http.Request) {
	actor := middleware.UserFromContext(r.Context())
	if err := authz.CanToggleLike(actor); err != nil {
		h.web.deny(w, r)
		return
	}

	messageID, ok := idParam(r, "id")
	if !ok {
		h.web.badRequest(w, r, "Invalid message id.")
		return
	}

	action, err := h.likes.ToggleLike(r.Context(), actor.ID, messageID)
	if err != nil {
		if errors.Is(err, model.ErrMessageNotFound) {
			h.web.notFound(w, r, "Message not found.")
			return
		}
		h.web.serverError(w, r, "UserHandler", err)
		return
	}

	h.web.metrics.LikeToggles.WithLabelValues(string(action)).Inc()
	redirect(w, r, "/")
}

// EditForm renders the profile form prefilled with the current values.
// GET /users/profile
func (h *UserHandler) EditForm(w http.ResponseWriter, r *http.Request) {
	actor := middleware.UserFromContext(r.Context())
	values := map[string]string{
		"username":         actor.Username,
		"email":            actor.Email,
		"image_url":        actor.ImageURL,
		"header_image_url": actor.HeaderImageURL,
		"bio":              deref(actor.Bio),
		"location":         deref(actor.Location),
	}
	h.web.render(w, r, http.StatusOK, "profile_edit", "Edit profile", view.FormData{Values: values})
}

// Edit updates the profile after checking the current password.
// POST /users/profile
func (h *UserHandler) Edit(w http.ResponseWriter, r *http.Request) {
	actor := middleware.UserFromContext(r.Context())
	if err := parseForm(w, r); err != nil {
		h.web.render(w, r, http.StatusBadRequest, "profile_edit", "Edit profile", view.FormData{Error: "Invalid form data."})
		return
	}

	values := formValues(r, "username", "email", "image_url", "header_image_url", "bio", "location")
	fail := func(status int, message string) {
		h.web.render(w, r, status, "profile_edit", "Edit profile", view.FormData{Error: message, Values: values})
	}

	req := model.UpdateProfileRequest{
		Username:       values["username"],
		Email:          values["email"],
		ImageURL:       values["image_url"],
		HeaderImageURL: values["header_image_url"],
		Bio:            values["bio"],
		Location:       values["location"],
		Password:       r.FormValue("password"),
	}

	var uploaded []string
	if h.images != nil {
		if file, header, ok := formImage(r, "image"); ok {
			defer file.Close()
			res, err := h.images.UploadAvatar(r.Context(), file, header)
			if err != nil {
				h.uploadFailed(w, r, err, fail)
				return
			}
			req.ImageURL = res.URL
			uploaded = append(uploaded, res.URL)
		}
		if file, header, ok := formImage(r, "header_image"); ok {
			defer file.Close()
			res, err := h.images.UploadHeader(r.Context(), file, header)
			if err != nil {
				h.discard(r, uploaded...)
				h.uploadFailed(w, r, err, fail)
				return
			}
			req.HeaderImageURL = res.URL
			uploaded = append(uploaded, res.URL)
		}
	}

	user, err := h.users.UpdateProfile(r.Context(), actor.ID, &req)
	if err != nil {
		h.discard(r, uploaded...)
		switch {
		case errors.Is(err, model.ErrInvalidCredentials):
			fail(http.StatusUnauthorized, "Wrong password, please try again.")
		case errors.Is(err, model.ErrValidation):
			fail(http.StatusUnprocessableEntity, validationMessage(err))
		case errors.Is(err, model.ErrIntegrityViolation):
			fail(http.StatusConflict, integrityMessage(err))
		default:
			h.web.serverError(w, r, "UserHandler", err)
		}
		return
	}

	// Replaced uploads are no longer referenced.
	if user.ImageURL != actor.ImageURL {
		h.discard(r, actor.ImageURL)
	}
	if user.HeaderImageURL != actor.HeaderImageURL {
		h.discard(r, actor.HeaderImageURL)
	}

	h.web.flash(w, r, session.FlashSuccess, "Profile updated.")
	redirect(w, r, fmt.Sprintf("/users/%d", user.ID))
}

// Delete removes the current user and everything they own.
// POST /users/delete
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor := middleware.UserFromContext(r.Context())

	if err := h.users.Delete(r.Context(), actor.ID); err != nil {
		h.web.serverError(w, r, "UserHandler", err)
		return
	}
	h.discard(r, actor.ImageURL, actor.HeaderImageURL)

	if err := h.web.sessions.Logout(w, r); err != nil {
		log.Printf("[UserHandler] Failed to clear session: %v", err)
	}
	redirect(w, r, "/signup")
}

// profile loads the user named by {id} with their stats. It writes the error response itself.
func (h *UserHandler) profile(w http.ResponseWriter, r *http.Request) (*view.ProfileData, bool) {
	userID, ok := idParam(r, "id")
	if !ok {
		h.web.badRequest(w, r, "Invalid user id.")
		return nil, false
	}

	user, stats, err := h.users.GetProfile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			h.web.notFound(w, r, "User not found.")
			return nil, false
		}
		h.web.serverError(w, r, "UserHandler", err)
		return nil, false
	}

	data := &view.ProfileData{User: user, Stats: stats}
	if viewer := middleware.UserFromContext(r.Context()); viewer != nil {
		data.IsSelf = viewer.ID == user.ID
		if !data.IsSelf {
			data.IsFollowing, err = h.follows.IsFollowing(r.Context(), viewer.ID, user.ID)
			if err != nil {
				h.web.serverError(w, r, "UserHandler", err)
				return nil, false
			}
		}
	}
	return data, true
}

func (h *UserHandler) userList(r *http.Request, users []model.UserSummary) (*view.UserList, error) {
	list := &view.UserList{Users: users}
	viewer := middleware.UserFromContext(r.Context())
	if viewer == nil || len(users) == 0 {
		return list, nil
	}

	following, err := h.follows.FollowingSet(r.Context(), viewer.ID, users)
	if err != nil {
		return nil, err
	}
	list.Following = following
	list.ViewerID = viewer.ID
	return list, nil
}

func (h *UserHandler) messageList(r *http.Request, messages []model.Message) (*view.MessageList, error) {
	return likedMessageList(r, h.likes, messages)
}

func (h *UserHandler) uploadFailed(w http.ResponseWriter, r *http.Request, err error, fail func(int, string)) {
	if msg, ok := uploadError(err); ok {
		fail(http.StatusBadRequest, msg)
		return
	}
	h.web.serverError(w, r, "UserHandler", fmt.Errorf("upload image: %w", err))
}

func (h *UserHandler) discard(r *http.Request, urls ...string) {
	discardImages(r, h.images, "UserHandler", urls...)
}

// likedMessageList marks which messages the viewer likes.
func likedMessageList(r *http.Request, likes *service.LikeService, messages []model.Message) (*view.MessageList, error) {
	list := &view.MessageList{Messages: messages}
	viewer := middleware.UserFromContext(r.Context())
	if viewer == nil {
		return list, nil
	}

	liked, err := likes.LikedSet(r.Context(), viewer.ID)
	if err != nil {
		return nil, err
	}
	list.Liked = liked
	list.ShowLikes = true
	return list, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
