package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/focusflow/internal/engine"
	"github.com/verte-zerg/focusflow/internal/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	eng, err := engine.New(st, engine.DefaultConfig(), zerolog.Nop())
	require.NoError(t, err)

	srv := httptest.NewServer(NewRouter(eng, st, zerolog.Nop()))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, user string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func intp(v int) *int { return &v }

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	resp := do(t, srv, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decodeBody[map[string]string](t, resp)["status"])
}

func TestMissingUserHeader(t *testing.T) {
	srv := newTestServer(t)
	resp := do(t, srv, http.MethodPost, "/sessions/start", "", startSessionRequest{DocumentName: "doc"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSessionLifecycle(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, srv, http.MethodPost, "/sessions/start", "alice", startSessionRequest{DocumentName: "essay.pdf", ReadingMode: "bionic"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sess := decodeBody[sessionDTO](t, resp)
	assert.Equal(t, "BIONIC", sess.ReadingMode)
	assert.Equal(t, "alice", sess.UserID)
	assert.Nil(t, sess.FocusScore)

	samples := []gazeSampleDTO{
		{Timestamp: 0, X: 10, Y: 10, WordIndex: intp(0), LineNumber: intp(0)},
		{Timestamp: 250, X: 20, Y: 10, WordIndex: intp(1), LineNumber: intp(0)},
		{Timestamp: 500, X: 30, Y: 10},
	}
	resp = do(t, srv, http.MethodPost, "/sessions/"+sess.ID+"/gaze-data", "alice", samples)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ingest := decodeBody[ingestResponse](t, resp)
	assert.Equal(t, 3, ingest.Accepted)
	assert.Equal(t, 0, ingest.Dropped)
	assert.Equal(t, "BIONIC", ingest.ReadingMode)

	resp = do(t, srv, http.MethodGet, "/sessions/"+sess.ID, "bob", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, srv, http.MethodPut, "/sessions/"+sess.ID+"/end?focusScore=72.5", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ended := decodeBody[sessionDTO](t, resp)
	require.NotNil(t, ended.FocusScore)
	assert.InDelta(t, 72.5, *ended.FocusScore, 1e-9)
	assert.NotNil(t, ended.EndTime)
	assert.Equal(t, 2, ended.WordsRead)

	resp = do(t, srv, http.MethodPut, "/sessions/"+sess.ID+"/end", "alice", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "INVALID_STATE", decodeBody[errorResponse](t, resp).Kind)

	resp = do(t, srv, http.MethodPost, "/sessions/"+sess.ID+"/gaze-data", "alice", samples)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/sessions/analytics", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary := decodeBody[analyticsResponse](t, resp)
	assert.Equal(t, 1, summary.TotalSessions)
	assert.InDelta(t, 72.5, summary.AverageFocusScore, 1e-9)
	require.Len(t, summary.Sessions, 1)
}

func TestEndSessionRejectsBadScore(t *testing.T) {
	srv := newTestServer(t)
	sess := decodeBody[sessionDTO](t, do(t, srv, http.MethodPost, "/sessions/start", "alice", startSessionRequest{DocumentName: "a"}))

	resp := do(t, srv, http.MethodPut, "/sessions/"+sess.ID+"/end?focusScore=abc", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, srv, http.MethodPut, "/sessions/"+sess.ID+"/end?focusScore=101", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_VALUE", decodeBody[errorResponse](t, resp).Kind)
}

func TestPauseResume(t *testing.T) {
	srv := newTestServer(t)
	sess := decodeBody[sessionDTO](t, do(t, srv, http.MethodPost, "/sessions/start", "alice", startSessionRequest{DocumentName: "a"}))

	resp := do(t, srv, http.MethodPost, "/sessions/"+sess.ID+"/pause", "alice", triggerRequest{Timestamp: 1000})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ev := decodeBody[focusEventDTO](t, resp)
	assert.Equal(t, "PAUSED", ev.EventType)
	assert.Equal(t, int64(1000), ev.Timestamp)

	resp = do(t, srv, http.MethodPost, "/sessions/"+sess.ID+"/pause", "alice", triggerRequest{Timestamp: 1100})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, srv, http.MethodPost, "/sessions/"+sess.ID+"/resume", "alice", triggerRequest{Timestamp: 2000})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "RESUMED", decodeBody[focusEventDTO](t, resp).EventType)

	resp = do(t, srv, http.MethodGet, "/sessions/"+sess.ID+"/events", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	events := decodeBody[[]focusEventDTO](t, resp)
	require.Len(t, events, 2)
	assert.Equal(t, "PAUSED", events[0].EventType)
	assert.Equal(t, "RESUMED", events[1].EventType)
}

func TestSwitchMode(t *testing.T) {
	srv := newTestServer(t)
	sess := decodeBody[sessionDTO](t, do(t, srv, http.MethodPost, "/sessions/start", "alice", startSessionRequest{DocumentName: "a"}))
	assert.Equal(t, "NORMAL", sess.ReadingMode)

	resp := do(t, srv, http.MethodPut, "/sessions/"+sess.ID+"/mode", "alice", switchModeRequest{ReadingMode: "rsvp"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "RSVP", decodeBody[sessionDTO](t, resp).ReadingMode)

	resp = do(t, srv, http.MethodPut, "/sessions/"+sess.ID+"/mode", "alice", switchModeRequest{ReadingMode: "sideways"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestInvalidBodies(t *testing.T) {
	srv := newTestServer(t)
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/sessions/start", strings.NewReader("{not json"))
	require.NoError(t, err)
	req.Header.Set(UserHeader, "alice")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp2 := do(t, srv, http.MethodGet, "/sessions/analytics?since=yesterday", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)

	resp3 := do(t, srv, http.MethodGet, "/sessions/analytics?limit=-1", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, resp3.StatusCode)
}

func TestPreferences(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, srv, http.MethodGet, "/preferences", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	prefs := decodeBody[preferencesDTO](t, resp)
	assert.Equal(t, "NORMAL", prefs.DefaultReadingMode)
	assert.True(t, prefs.AutoModeSwitch)

	resp = do(t, srv, http.MethodPut, "/preferences", "alice", map[string]any{"defaultReadingMode": "HYBRID", "fontSize": 20})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	saved := decodeBody[preferencesDTO](t, resp)
	assert.Equal(t, "HYBRID", saved.DefaultReadingMode)
	assert.Equal(t, 20, saved.FontSize)
	assert.Equal(t, 250, saved.RSVPSpeed)

	resp = do(t, srv, http.MethodPut, "/preferences", "alice", map[string]any{"fontSize": 99})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	sess := decodeBody[sessionDTO](t, do(t, srv, http.MethodPost, "/sessions/start", "alice", startSessionRequest{DocumentName: "a"}))
	assert.Equal(t, "HYBRID", sess.ReadingMode)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	do(t, srv, http.MethodGet, "/health", "", nil)

	resp := do(t, srv, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "focusflow_http_requests_total")
}
