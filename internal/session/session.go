// Package session keeps the logged-in user id and flash messages in a signed cookie.
package session

import (
	"net/http"

	"github.com/gorilla/sessions"
	log "github.com/sirupsen/logrus"
)

const (
	// CurrUserKey holds the logged-in user's id.
	CurrUserKey = "curr_user"

	cookieName = "warbler"
	maxAge     = 3600 * 16 // 16 hours
)

// Flash categories, matching the alert styles of the layout.
const (
	FlashSuccess = "success"
	FlashDanger  = "danger"
	FlashInfo    = "info"
)

var categories = []string{FlashSuccess, FlashDanger, FlashInfo}

// Flash is a one-shot notice shown on the next rendered page.
type Flash struct {
	Category string
	Message  string
}

type Manager struct {
	store sessions.Store
}

// NewManager creates a cookie-backed session manager signed with secret.
func NewManager(secret string, secure bool) *Manager {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Manager{store: store}
}

// NewManagerWithStore wraps an existing store.
func NewManagerWithStore(store sessions.Store) *Manager {
	return &Manager{store: store}
}

// get never fails: a cookie that cannot be decoded yields a fresh session.
func (m *Manager) get(r *http.Request) *sessions.Session {
	s, _ := m.store.Get(r, cookieName)
	return s
}

// UserID returns the id stored at login, if any.
func (m *Manager) UserID(r *http.Request) (int64, bool) {
	id, ok := m.get(r).Values[CurrUserKey].(int64)
	return id, ok
}

// Login stores userID as the acting identity.
func (m *Manager) Login(w http.ResponseWriter, r *http.Request, userID int64) error {
	s := m.get(r)
	s.Values[CurrUserKey] = userID
	return s.Save(r, w)
}

// Logout forgets the acting identity. Pending flashes survive so the next page can show them.
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) error {
	s := m.get(r)
	delete(s.Values, CurrUserKey)
	return s.Save(r, w)
}

// AddFlash queues a message for the next rendered page.
func (m *Manager) AddFlash(w http.ResponseWriter, r *http.Request, category, message string) error {
	s := m.get(r)
	s.AddFlash(message, category)
	return s.Save(r, w)
}

// Flashes drains the queued messages. It must run before the response body is written.
func (m *Manager) Flashes(w http.ResponseWriter, r *http.Request) []Flash {
	s := m.get(r)

	var out []Flash
	for _, category := range categories {
		for _, f := range s.Flashes(category) {
			if msg, ok := f.(string); ok {
				out = append(out, Flash{Category: category, Message: msg})
			}
		}
	}
	if len(out) > 0 {
		// The page still renders; the flashes may show again on the next one.
		if err := s.Save(r, w); err != nil {
			log.Printf("[Session] Failed to save session after reading flashes: %v", err)
		}
	}
	return out
}
