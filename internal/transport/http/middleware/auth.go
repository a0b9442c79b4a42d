package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"warbler/internal/authz"
	"warbler/internal/httputil"
	"warbler/internal/metrics"
	"warbler/internal/model"
	"warbler/internal/session"
)

type contextKey string

const (
	// UserKey is the context key for the resolved acting user
	UserKey contextKey = "user"
)

// AccessUnauthorized is the notice flashed on every denial.
const AccessUnauthorized = "Access unauthorized."

// TokenVerifier checks an API bearer token and returns the user id it carries.
type TokenVerifier interface {
	Verify(token string) (int64, error)
}

// CurrentUser resolves the acting identity of every request.
// A bearer token in the Authorization header wins over the session cookie. An identity
// that does not resolve to a user leaves the request anonymous; a store failure is a 500.
func CurrentUser(users authz.UserLookup, sessions *session.Manager, tokens TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := identity(r, sessions, tokens)

			user, err := authz.ResolveActor(r.Context(), users, userID, ok)
			if err != nil {
				if errors.Is(err, model.ErrAccessUnauthorized) {
					next.ServeHTTP(w, r)
					return
				}
				log.Printf("[Auth] Failed to resolve user=%d: %v", userID, err)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}

			ctx := context.WithValue(r.Context(), UserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func identity(r *http.Request, sessions *session.Manager, tokens TokenVerifier) (int64, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" && tokens != nil {
		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			userID, err := tokens.Verify(parts[1])
			if err != nil {
				log.Debugf("[Auth] Rejected bearer token: %v", err)
				return 0, false
			}
			return userID, true
		}
	}

	return sessions.UserID(r)
}

// RequireUser denies anonymous requests with the shared notice and a redirect home.
func RequireUser(sessions *session.Manager, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if UserFromContext(r.Context()) == nil {
				Deny(w, r, sessions, m)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAPIUser is RequireUser for JSON clients: anonymous requests get a 401 envelope.
func RequireAPIUser(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if UserFromContext(r.Context()) == nil {
				m.AccessDenied.WithLabelValues(routePattern(r)).Inc()
				httputil.WriteUnauthorized(w, "Missing or invalid authentication token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Deny flashes the access notice and redirects to the home page.
func Deny(w http.ResponseWriter, r *http.Request, sessions *session.Manager, m *metrics.Metrics) {
	m.AccessDenied.WithLabelValues(routePattern(r)).Inc()
	if err := sessions.AddFlash(w, r, session.FlashDanger, AccessUnauthorized); err != nil {
		log.Printf("[Auth] Failed to save flash: %v", err)
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// UserFromContext returns the acting user, or nil for anonymous requests.
func UserFromContext(ctx context.Context) *model.User {
	user, _ := ctx.Value(UserKey).(*model.User)
	return user
}

// unmatchedRoute labels requests no route claimed, keeping raw paths out of metric labels.
const unmatchedRoute = "unmatched"

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return unmatchedRoute
}
