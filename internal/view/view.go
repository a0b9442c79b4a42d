// Package view renders the Warbler HTML pages from embedded templates.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"warbler/internal/model"
	"warbler/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// shared templates parsed into every page.
var shared = []string{"templates/layout.html", "templates/partials.html"}

// Page is what every template receives.
type Page struct {
	Title       string
	CurrentUser *model.User
	Flashes     []session.Flash
	Data        any
}

// MessageList renders a list of messages with optional like buttons.
type MessageList struct {
	Messages  []model.Message
	Liked     map[int64]bool
	ShowLikes bool
}

// UserList renders user cards with follow buttons for the viewer.
type UserList struct {
	Users     []model.UserSummary
	Following map[int64]bool
	ViewerID  int64
}

type HomeData struct {
	Stats *model.UserStats
	List  MessageList
}

type UsersData struct {
	Query string
	List  UserList
}

// ProfileData backs the profile page and the following, followers and likes tabs.
type ProfileData struct {
	User        *model.User
	Stats       *model.UserStats
	IsSelf      bool
	IsFollowing bool
	Messages    *MessageList
	Users       *UserList
}

type MessageData struct {
	Message *model.Message
	Likes   int
	Liked   bool
	IsOwner bool
}

// FormData re-renders a form with the submitted values and an error.
type FormData struct {
	Error  string
	Values map[string]string
}

type ErrorData struct {
	Status  int
	Message string
}

// Renderer holds one parsed template set per page.
type Renderer struct {
	pages map[string]*template.Template
}

var funcs = template.FuncMap{
	"date": func(t time.Time) string { return t.Format("02 January 2006") },
	"liked": func(set map[int64]bool, id int64) bool {
		return set[id]
	},
}

func New() (*Renderer, error) {
	names, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	pages := make(map[string]*template.Template)
	for _, name := range names {
		if isShared(name) {
			continue
		}
		files := append(append([]string{}, shared...), name)
		t, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, files...)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		pages[strings.TrimSuffix(path.Base(name), ".html")] = t
	}

	return &Renderer{pages: pages}, nil
}

func isShared(name string) bool {
	for _, s := range shared {
		if s == name {
			return true
		}
	}
	return false
}

// Render executes page into a buffer first so a template error never leaves a half-written body.
func (v *Renderer) Render(w http.ResponseWriter, status int, name string, page Page) {
	t, ok := v.pages[name]
	if !ok {
		log.Printf("[View] Unknown page %q", name)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout.html", page); err != nil {
		log.Printf("[View] Render %s failed: %v", name, err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// Static serves stylesheets and default images under /static/.
func Static() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}
