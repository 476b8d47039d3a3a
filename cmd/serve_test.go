package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mandela-labs/report-cli/internal/assistant"
	"github.com/mandela-labs/report-cli/internal/config"
	"github.com/mandela-labs/report-cli/internal/model"
	"github.com/mandela-labs/report-cli/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
	cfg = &config.Config{}
}

func newTestEnv(t *testing.T) *appEnv {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.sqlite3"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return &appEnv{
		Store:       st,
		Interpreter: assistant.NewHeuristic(),
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(newRouter(env))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestSecurityHeaders(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(newRouter(env))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Contains(t, resp.Header.Get("Content-Security-Policy"), "default-src 'none'")
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "same-origin", resp.Header.Get("Referrer-Policy"))
}

func TestSnapshotViewer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.Store.CreateReport(ctx, "rep-1", "https://example.com/")
	require.NoError(t, err)
	id, err := env.Store.SaveSnapshot(ctx, "rep-1", model.Snapshot{
		Source: model.SourceArchive,
		When:   time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		URL:    "https://example.com/",
		HTML:   "<html><body><script>alert(1)</script></body></html>",
	})
	require.NoError(t, err)

	srv := httptest.NewServer(newRouter(env))
	t.Cleanup(srv.Close)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/snapshot/"+strconv.FormatInt(id, 10), nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := string(raw)

	// The capture is embedded as base64, never inlined, inside a fully
	// sandboxed iframe.
	assert.Contains(t, body, `sandbox=""`)
	assert.Contains(t, body, "data:text/html;base64,")
	assert.NotContains(t, body, "alert(1)")
}

func TestSnapshotViewer_NotFound(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(newRouter(env))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/snapshot/999")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSnapshotViewer_BadID(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(newRouter(env))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/snapshot/abc")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAssistantEndpoint(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(newRouter(env))
	t.Cleanup(srv.Close)

	resp, err := http.Post(srv.URL+"/assistant", "application/json",
		strings.NewReader(`{"message":"compare https://example.com/ over the past 2 years"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out assistant.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.Ready)
	assert.Equal(t, "https://example.com/", out.Slots.URL)
	assert.NotEmpty(t, out.Slots.Since)
}

func TestAssistantEndpoint_EmptyMessage(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(newRouter(env))
	t.Cleanup(srv.Close)

	// A blank message gets the opening prompt back unchanged, even when the
	// slots already carry a URL from an earlier turn.
	resp, err := http.Post(srv.URL+"/assistant", "application/json",
		strings.NewReader(`{"message":"","slots":{"url":"https://example.com/"}}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out assistant.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.False(t, out.Ready)
	assert.Equal(t, "Tell me the page URL to begin.", out.Reply)
	assert.Equal(t, "https://example.com/", out.Slots.URL)
}

func TestAssistantEndpoint_BadBody(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(newRouter(env))
	t.Cleanup(srv.Close)

	resp, err := http.Post(srv.URL+"/assistant", "application/json", strings.NewReader("{nope"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDiffEndpoint_Validation(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(newRouter(env))
	t.Cleanup(srv.Close)

	tests := []struct {
		name string
		body string
	}{
		{"missing url", `{}`},
		{"bad since", `{"url":"https://example.com/","since":"01/02/2020"}`},
		{"bad until", `{"url":"https://example.com/","until":"whenever"}`},
		{"bad json", `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/diff", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestParseDate(t *testing.T) {
	got, err := parseDate("2021-06-15")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2021, 6, 15, 0, 0, 0, 0, time.UTC), *got)

	got, err = parseDate("")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = parseDate("June 15 2021")
	assert.Error(t, err)
}

