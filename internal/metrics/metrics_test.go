package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestNew_IsolatedRegistries(t *testing.T) {
	a := New()
	b := New()

	a.Follows.Inc()
	a.LikeToggles.WithLabelValues("liked").Inc()

	assert.Contains(t, scrape(t, a), "warbler_follows_total 1")
	assert.Contains(t, scrape(t, a), `warbler_like_toggles_total{action="liked"} 1`)
	assert.Contains(t, scrape(t, b), "warbler_follows_total 0")
}

func TestHandler_ExposesWarblerMetrics(t *testing.T) {
	m := New()
	m.AccessDenied.WithLabelValues("/messages/{id}/delete").Inc()

	body := scrape(t, m)
	assert.Contains(t, body, `warbler_access_denied_total{route="/messages/{id}/delete"} 1`)
	assert.Contains(t, body, "warbler_signups_total 0")
	assert.Contains(t, body, "go_goroutines")
}
