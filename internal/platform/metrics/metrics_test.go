package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_counters(t *testing.T) {
	m := New()

	m.IncEvent("ExerciseUpdate")
	m.IncEvent("ExerciseUpdate")
	m.IncEvent("SessionStart")
	m.IncIgnored()
	m.IncPlaybackStarted("audio")
	m.IncPlaybackSuppressed("video")
	m.IncPlaybackFailed("audio")
	m.SetSessionState(2)
	m.IncStatusFailure("journal_read")
	m.IncJournalDropped()
	m.IncJournalDropped()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.eventsTotal.WithLabelValues("ExerciseUpdate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsTotal.WithLabelValues("SessionStart")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsIgnored))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.playbackStarted.WithLabelValues("audio")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.playbackSuppressed.WithLabelValues("video")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.playbackFailed.WithLabelValues("audio")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.sessionState))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.statusFailures.WithLabelValues("journal_read")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.journalDropped))
}

func TestMetrics_nilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncEvent("x")
		m.IncIgnored()
		m.IncPlaybackStarted("audio")
		m.IncRenderIterations()
		m.SetSessionState(1)
		m.IncReconnects()
		m.IncStatusFailure("frame_encode")
		m.IncJournalDropped()
	})
}

func TestRequestMiddleware(t *testing.T) {
	m := New()
	h := RequestMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/status", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues(unmatchedRoute)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errorsTotal))
}

func TestHandler_exposition(t *testing.T) {
	m := New()
	m.IncRenderIterations()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "coach_render_iterations_total 1")
}

func TestRequestMiddleware_routePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(RequestMiddleware(m))
	r.Get("/runs/{run_id}", func(w http.ResponseWriter, r *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/runs/a", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/runs/b", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("/runs/{run_id}")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errorsTotal), "the 404 counts as an error")
}
