package handler

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"warbler/internal/metrics"
	"warbler/internal/model"
	"warbler/internal/session"
	"warbler/internal/transport/http/middleware"
	"warbler/internal/view"
)

// maxFormSize bounds form bodies, leaving room for one image upload.
const maxFormSize = int64(model.MaxAvatarSizeBytes) + 1024*1024

// ImageStore uploads profile images. It is nil when object storage is not configured.
type ImageStore interface {
	UploadAvatar(ctx context.Context, file multipart.File, header *multipart.FileHeader) (*model.UploadResult, error)
	UploadHeader(ctx context.Context, file multipart.File, header *multipart.FileHeader) (*model.UploadResult, error)
	Delete(ctx context.Context, url string) error
}

// Web bundles what every HTML handler needs to answer a request.
type Web struct {
	sessions *session.Manager
	view     *view.Renderer
	metrics  *metrics.Metrics
}

func NewWeb(sessions *session.Manager, renderer *view.Renderer, m *metrics.Metrics) *Web {
	return &Web{
		sessions: sessions,
		view:     renderer,
		metrics:  m,
	}
}

func (web *Web) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	web.view.Render(w, status, name, view.Page{
		Title:       title,
		CurrentUser: middleware.UserFromContext(r.Context()),
		Flashes:     web.sessions.Flashes(w, r),
		Data:        data,
	})
}

func (web *Web) flash(w http.ResponseWriter, r *http.Request, category, message string) {
	if err := web.sessions.AddFlash(w, r, category, message); err != nil {
		log.Printf("[Web] Failed to save flash: %v", err)
	}
}

func (web *Web) deny(w http.ResponseWriter, r *http.Request) {
	middleware.Deny(w, r, web.sessions, web.metrics)
}

func (web *Web) notFound(w http.ResponseWriter, r *http.Request, message string) {
	web.render(w, r, http.StatusNotFound, "error", "Not found", view.ErrorData{Status: http.StatusNotFound, Message: message})
}

func (web *Web) badRequest(w http.ResponseWriter, r *http.Request, message string) {
	web.render(w, r, http.StatusBadRequest, "error", "Bad request", view.ErrorData{Status: http.StatusBadRequest, Message: message})
}

func (web *Web) serverError(w http.ResponseWriter, r *http.Request, component string, err error) {
	log.WithFields(log.Fields{"path": r.URL.Path, "method": r.Method}).Errorf("[%s] %v", component, err)
	web.render(w, r, http.StatusInternalServerError, "error", "Error",
		view.ErrorData{Status: http.StatusInternalServerError, Message: "Something went wrong."})
}

// redirect answers a mutation with 302 Found, the status browsers follow with a GET.
func redirect(w http.ResponseWriter, r *http.Request, url string) {
	http.Redirect(w, r, url, http.StatusFound)
}

func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// parseForm accepts both urlencoded and multipart bodies.
func parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)
	err := r.ParseMultipartForm(maxFormSize)
	if errors.Is(err, http.ErrNotMultipart) {
		return r.ParseForm()
	}
	return err
}

// formImage returns the uploaded file for field, if the form carried one.
func formImage(r *http.Request, field string) (multipart.File, *multipart.FileHeader, bool) {
	if r.MultipartForm == nil {
		return nil, nil, false
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, nil, false
	}
	return file, header, true
}

// uploadError turns a media failure into a form message. ok is false for unexpected errors.
func uploadError(err error) (string, bool) {
	switch {
	case errors.Is(err, model.ErrFileTooLarge):
		return "Image exceeds the 5MB limit.", true
	case errors.Is(err, model.ErrInvalidImageType):
		return "Unsupported image type. Allowed: jpeg, png, gif, webp.", true
	}
	return "", false
}

// discardImages deletes uploads that are no longer referenced. Failures are only logged.
func discardImages(r *http.Request, images ImageStore, component string, urls ...string) {
	if images == nil {
		return
	}
	for _, url := range urls {
		if err := images.Delete(r.Context(), url); err != nil {
			log.Printf("[%s] Failed to delete image %s: %v", component, url, err)
		}
	}
}

// integrityMessage names the field a signup or profile edit collided on.
func integrityMessage(err error) string {
	if errors.Is(err, model.ErrEmailTaken) {
		return "Email already taken"
	}
	return "Username already taken"
}

func formValues(r *http.Request, fields ...string) map[string]string {
	values := make(map[string]string, len(fields))
	for _, f := range fields {
		values[f] = r.FormValue(f)
	}
	return values
}
