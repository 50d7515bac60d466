package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestCollector_Counters(t *testing.T) {
	c := NewCollector("guruchat")

	c.ChatStream(OutcomeOK)
	c.ChatStream(OutcomeOK)
	c.Persisted(OutcomeDropped)
	c.CacheHit("gurus")
	c.CacheMiss("gurus")

	body := scrape(t, c)
	assert.Contains(t, body, `guruchat_chat_streams_total{outcome="ok"} 2`)
	assert.Contains(t, body, `guruchat_chat_persist_total{outcome="dropped"} 1`)
	assert.Contains(t, body, `guruchat_cache_lookups_total{cache="gurus",result="hit"} 1`)
	assert.Contains(t, body, `guruchat_cache_lookups_total{cache="gurus",result="miss"} 1`)
}

func TestCollector_MiddlewareUsesRoutePattern(t *testing.T) {
	c := NewCollector("guruchat")

	r := chi.NewRouter()
	r.Use(c.Middleware)
	r.Get("/api/gurus/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/gurus/abc", nil))

	assert.Contains(t, scrape(t, c), `guruchat_http_requests_total{method="GET",route="/api/gurus/{id}",status="404"} 1`)
}

func TestCollectors_AreIndependent(t *testing.T) {
	a := NewCollector("guruchat")
	b := NewCollector("guruchat")
	a.ChatStream(OutcomeError)

	assert.NotContains(t, scrape(t, b), `guruchat_chat_streams_total{outcome="error"}`)
}
