package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warbler/internal/metrics"
	"warbler/internal/model"
	"warbler/internal/session"
)

type mockUserLookup struct {
	GetByIDFunc func(ctx context.Context, id int64) (*model.User, error)
}

func (m *mockUserLookup) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return m.GetByIDFunc(ctx, id)
}

type stubVerifier map[string]int64

func (s stubVerifier) Verify(token string) (int64, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return 0, model.ErrTokenInvalid
}

func knownUsers(ids ...int64) *mockUserLookup {
	return &mockUserLookup{GetByIDFunc: func(ctx context.Context, id int64) (*model.User, error) {
		for _, known := range ids {
			if known == id {
				return &model.User{ID: id}, nil
			}
		}
		return nil, model.ErrUserNotFound
	}}
}

// sessionCookies returns the cookies of a session logged in as userID.
func sessionCookies(t *testing.T, sessions *session.Manager, userID int64) []*http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	require.NoError(t, sessions.Login(rec, httptest.NewRequest(http.MethodGet, "/", nil), userID))
	return rec.Result().Cookies()
}

// actingUser runs CurrentUser over req and reports the user the next handler saw.
func actingUser(t *testing.T, users *mockUserLookup, sessions *session.Manager, req *http.Request) (*model.User, int) {
	t.Helper()
	var seen *model.User
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserFromContext(r.Context())
	})

	rec := httptest.NewRecorder()
	CurrentUser(users, sessions, stubVerifier{"good": 23388})(next).ServeHTTP(rec, req)
	return seen, rec.Code
}

func TestCurrentUser(t *testing.T) {
	sessions := session.NewManager("test-secret", false)
	users := knownUsers(7111, 23388)

	tests := []struct {
		name      string
		sessionID int64
		bearer    string
		wantID    int64
	}{
		{name: "anonymous"},
		{name: "session user", sessionID: 7111, wantID: 7111},
		{name: "bearer token", bearer: "good", wantID: 23388},
		{name: "bearer wins over session", sessionID: 7111, bearer: "good", wantID: 23388},
		{name: "bad bearer is anonymous", sessionID: 7111, bearer: "bad"},
		{name: "deleted user is anonymous", sessionID: 74623732},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// ARRANGE
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.sessionID != 0 {
				for _, c := range sessionCookies(t, sessions, tt.sessionID) {
					req.AddCookie(c)
				}
			}
			if tt.bearer != "" {
				req.Header.Set("Authorization", "Bearer "+tt.bearer)
			}

			// ACT
			user, status := actingUser(t, users, sessions, req)

			// ASSERT
			assert.Equal(t, http.StatusOK, status)
			if tt.wantID == 0 {
				assert.Nil(t, user)
				return
			}
			require.NotNil(t, user)
			assert.Equal(t, tt.wantID, user.ID)
		})
	}
}

func TestCurrentUser_StoreFailure(t *testing.T) {
	sessions := session.NewManager("test-secret", false)
	users := &mockUserLookup{GetByIDFunc: func(ctx context.Context, id int64) (*model.User, error) {
		return nil, errors.New("connection refused")
	}}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range sessionCookies(t, sessions, 7111) {
		req.AddCookie(c)
	}

	user, status := actingUser(t, users, sessions, req)

	assert.Nil(t, user)
	assert.Equal(t, http.StatusInternalServerError, status)
}

func TestRequireUser(t *testing.T) {
	sessions := session.NewManager("test-secret", false)
	m := metrics.New()
	called := false
	handler := RequireUser(sessions, m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	t.Run("anonymous is redirected home with a notice", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/messages/new", nil))

		assert.False(t, called)
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/", rec.Header().Get("Location"))

		// The flash travels in the session cookie to the next request.
		next := httptest.NewRequest(http.MethodGet, "/", nil)
		for _, c := range rec.Result().Cookies() {
			next.AddCookie(c)
		}
		flashes := sessions.Flashes(httptest.NewRecorder(), next)
		require.Len(t, flashes, 1)
		assert.Equal(t, session.Flash{Category: session.FlashDanger, Message: AccessUnauthorized}, flashes[0])
	})

	t.Run("user passes through", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/messages/new", nil)
		req = req.WithContext(context.WithValue(req.Context(), UserKey, &model.User{ID: 7111}))
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.True(t, called)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRequireAPIUser(t *testing.T) {
	handler := RequireAPIUser(metrics.New())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run for anonymous requests")
	}))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/timeline", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"UNAUTHORIZED"`)
}

func TestRequestLogger_PassesStatusThrough(t *testing.T) {
	handler := RequestLogger(metrics.New())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/brew", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestRequestLogger_LabelsUnknownPathsAsUnmatched(t *testing.T) {
	m := metrics.New()
	r := chi.NewRouter()
	r.Use(RequestLogger(m))
	r.Get("/users/{id}", func(w http.ResponseWriter, r *http.Request) {})

	for _, path := range []string{"/users/1", "/users/2", "/wp-admin/a", "/wp-admin/b", "/x?y=1"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	body := scrape(m)
	assert.Equal(t, 2, strings.Count(body, "warbler_http_request_duration_seconds_count{"), "one series per route pattern")
	assert.Contains(t, body, `warbler_http_request_duration_seconds_count{route="/users/{id}"} 2`)
	assert.Contains(t, body, `warbler_http_request_duration_seconds_count{route="unmatched"} 3`)
	assert.NotContains(t, body, `route="/wp-admin/a"`)
}

func TestDeny_WithoutRouteContextUsesUnmatchedLabel(t *testing.T) {
	m := metrics.New()
	sessions := session.NewManager("test-secret", false)

	Deny(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/random/123", nil), sessions, m)

	body := scrape(m)
	assert.Contains(t, body, `warbler_access_denied_total{route="unmatched"} 1`)
	assert.NotContains(t, body, `route="/random/123"`)
}

func scrape(m *metrics.Metrics) string {
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Body.String()
}
