package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"

	"warbler/internal/httputil"
	"warbler/internal/model"
	"warbler/internal/service"
	"warbler/internal/session"
	"warbler/internal/view"
)

// AuthHandler serves signup, login, logout and API token issuance.
type AuthHandler struct {
	web    *Web
	users  *service.UserService
	tokens *service.TokenService
	images ImageStore
}

// NewAuthHandler wires dependencies for authentication endpoints. images may be nil.
func NewAuthHandler(web *Web, users *service.UserService, tokens *service.TokenService, images ImageStore) *AuthHandler {
	return &AuthHandler{
		web:    web,
		users:  users,
		tokens: tokens,
		images: images,
	}
}

// SignupForm renders the signup page.
// GET /signup
func (h *AuthHandler) SignupForm(w http.ResponseWriter, r *http.Request) {
	h.web.render(w, r, http.StatusOK, "signup", "Sign up", view.FormData{})
}

// Signup creates the account, logs it in and sends it home.
// POST /signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r); err != nil {
		h.web.render(w, r, http.StatusBadRequest, "signup", "Sign up", view.FormData{Error: "Invalid form data."})
		return
	}

	values := formValues(r, "username", "email", "image_url")
	fail := func(status int, message string) {
		h.web.render(w, r, status, "signup", "Sign up", view.FormData{Error: message, Values: values})
	}

	req := model.SignupRequest{
		Username: r.FormValue("username"),
		Email:    r.FormValue("email"),
		Password: r.FormValue("password"),
		ImageURL: r.FormValue("image_url"),
	}

	var uploaded string
	if h.images != nil {
		if file, header, ok := formImage(r, "image"); ok {
			defer file.Close()
			upload, err := h.images.UploadAvatar(r.Context(), file, header)
			if err != nil {
				if msg, ok := uploadError(err); ok {
					fail(http.StatusBadRequest, msg)
					return
				}
				h.web.serverError(w, r, "AuthHandler", fmt.Errorf("upload avatar: %w", err))
				return
			}
			req.ImageURL = upload.URL
			uploaded = upload.URL
		}
	}

	user, err := h.users.Signup(r.Context(), &req)
	if err != nil {
		// No account references the avatar.
		if uploaded != "" {
			discardImages(r, h.images, "AuthHandler", uploaded)
		}
		switch {
		case errors.Is(err, model.ErrValidation):
			fail(http.StatusUnprocessableEntity, validationMessage(err))
		case errors.Is(err, model.ErrIntegrityViolation):
			fail(http.StatusConflict, integrityMessage(err))
		default:
			h.web.serverError(w, r, "AuthHandler", err)
		}
		return
	}

	h.web.metrics.Signups.Inc()
	if err := h.web.sessions.Login(w, r, user.ID); err != nil {
		h.web.serverError(w, r, "AuthHandler", fmt.Errorf("save session: %w", err))
		return
	}
	redirect(w, r, "/")
}

// LoginForm renders the login page.
// GET /login
func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	h.web.render(w, r, http.StatusOK, "login", "Log in", view.FormData{})
}

// Login checks the credentials and stores the user in the session.
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.web.render(w, r, http.StatusBadRequest, "login", "Log in", view.FormData{Error: "Invalid form data."})
		return
	}

	user, err := h.users.Authenticate(r.Context(), r.FormValue("username"), r.FormValue("password"))
	if err != nil {
		if errors.Is(err, model.ErrInvalidCredentials) {
			h.web.render(w, r, http.StatusUnauthorized, "login", "Log in", view.FormData{
				Error:  "Invalid credentials.",
				Values: formValues(r, "username"),
			})
			return
		}
		h.web.serverError(w, r, "AuthHandler", err)
		return
	}

	if err := h.web.sessions.Login(w, r, user.ID); err != nil {
		h.web.serverError(w, r, "AuthHandler", fmt.Errorf("save session: %w", err))
		return
	}
	h.web.flash(w, r, session.FlashSuccess, fmt.Sprintf("Hello, %s!", user.Username))
	redirect(w, r, "/")
}

// Logout forgets the session user.
// GET /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.web.flash(w, r, session.FlashSuccess, "You have successfully logged out.")
	if err := h.web.sessions.Logout(w, r); err != nil {
		log.Printf("[AuthHandler] Failed to clear session: %v", err)
	}
	redirect(w, r, "/login")
}

// Token exchanges credentials for a bearer token.
// POST /api/token
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	if req.Username == "" {
		httputil.WriteBadRequest(w, "Username is required")
		return
	}
	if req.Password == "" {
		httputil.WriteBadRequest(w, "Password is required")
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, model.ErrInvalidCredentials) {
			httputil.WriteUnauthorized(w, "Invalid username or password")
			return
		}
		log.Printf("[AuthHandler] Token: %v", err)
		httputil.WriteInternalError(w, "Failed to login")
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		log.Printf("[AuthHandler] Issue token: %v", err)
		httputil.WriteInternalError(w, "Failed to generate token")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, token)
}

// validationMessage renders a field error as a sentence for the form.
func validationMessage(err error) string {
	switch {
	case errors.Is(err, model.ErrUsernameRequired):
		return "Username is required."
	case errors.Is(err, model.ErrEmailRequired):
		return "E-mail is required."
	case errors.Is(err, model.ErrPasswordRequired):
		return "Password is required."
	case errors.Is(err, model.ErrTextRequired):
		return "Message text is required."
	case errors.Is(err, model.ErrMessageTooLong):
		return fmt.Sprintf("Messages are limited to %d characters.", model.MaxMessageLength)
	}
	return "Please check the form and try again."
}
