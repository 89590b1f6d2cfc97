package http_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/humanbrowse/internal/artifacts"
	"github.com/aretw0/humanbrowse/pkg/config"
	"github.com/aretw0/humanbrowse/internal/engine"
	"github.com/aretw0/humanbrowse/internal/session"
	"github.com/aretw0/humanbrowse/internal/testutils"
	httpadapter "github.com/aretw0/humanbrowse/pkg/adapters/http"
	"github.com/aretw0/humanbrowse/pkg/adapters/memory"
	"github.com/aretw0/humanbrowse/pkg/domain"
)

func newTestServer(t *testing.T) (*httptest.Server, *testutils.FakeBrowser) {
	t.Helper()
	browser := testutils.NewFakeBrowser()
	store := artifacts.NewStore(t.TempDir())
	settings := config.Default()
	settings.MinDelayMSBetweenActions = 0
	orch := engine.NewOrchestrator(session.NewManager(browser, memory.NewStore()), store, settings)

	registry := prometheus.NewRegistry()
	handler := httpadapter.NewHandler(orch, store,
		httpadapter.WithMetricsRegistry(registry))
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, browser
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func runOnce(t *testing.T, srv *httptest.Server, steps []map[string]any) engine.RunResult {
	t.Helper()
	resp := postJSON(t, srv.URL+"/v1/run_steps", map[string]any{
		"new_session": true,
		"steps":       steps,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decode[engine.RunResult](t, resp)
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.Equal(t, "ok", body["status"])
}

func TestRunSteps(t *testing.T) {
	srv, _ := newTestServer(t)
	result := runOnce(t, srv, []map[string]any{
		{"type": "goto", "url": "https://example.com"},
		{"type": "screenshot", "label": "home"},
	})
	assert.Equal(t, domain.RunCompleted, result.Status)
	assert.NotEmpty(t, result.RunID)
	assert.NotEmpty(t, result.SessionID)
}

func TestRunSteps_ValidationError(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := postJSON(t, srv.URL+"/v1/run_steps", map[string]any{
		"new_session": true,
		"steps":       []map[string]any{{"type": "goto"}},
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRunSteps_UnknownSession(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := postJSON(t, srv.URL+"/v1/run_steps", map[string]any{
		"session_id": "nope",
		"steps":      []map[string]any{{"type": "goto", "url": "https://example.com"}},
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSessionStatus(t *testing.T) {
	srv, _ := newTestServer(t)
	result := runOnce(t, srv, []map[string]any{{"type": "goto", "url": "https://example.com"}})

	resp, err := http.Get(srv.URL + "/v1/session_status?session_id=" + result.SessionID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	info := decode[domain.SessionInfo](t, resp)
	assert.Equal(t, domain.SessionReady, info.State)
	assert.Equal(t, result.RunID, info.LastRunID)
}

func TestResume_Conflict(t *testing.T) {
	srv, _ := newTestServer(t)
	result := runOnce(t, srv, []map[string]any{{"type": "goto", "url": "https://example.com"}})

	resp := postJSON(t, srv.URL+"/v1/resume", map[string]string{"session_id": result.SessionID})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestPauseAndResume(t *testing.T) {
	srv, _ := newTestServer(t)
	result := runOnce(t, srv, []map[string]any{
		{"type": "pause_for_user", "reason": "login required"},
	})
	require.Equal(t, domain.RunNeedsManualAssist, result.Status)

	resp := postJSON(t, srv.URL+"/v1/resume", map[string]string{"session_id": result.SessionID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.Equal(t, "resumed", body["status"])
}

func TestRunsListingAndDetail(t *testing.T) {
	srv, _ := newTestServer(t)
	result := runOnce(t, srv, []map[string]any{{"type": "goto", "url": "https://example.com"}})

	resp, err := http.Get(srv.URL + "/v1/runs")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	listing := decode[struct {
		Runs []domain.Run `json:"runs"`
	}](t, resp)
	require.Len(t, listing.Runs, 1)
	assert.Equal(t, result.RunID, listing.Runs[0].RunID)

	resp, err = http.Get(srv.URL + "/v1/runs/" + result.RunID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	detail := decode[domain.RunDetail](t, resp)
	assert.Equal(t, domain.RunCompleted, detail.Metadata.Status)
	require.Len(t, detail.Steps, 1)

	resp, err = http.Get(srv.URL + "/v1/runs/does-not-exist")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestArtifactServing(t *testing.T) {
	srv, _ := newTestServer(t)
	result := runOnce(t, srv, []map[string]any{
		{"type": "goto", "url": "https://example.com"},
		{"type": "screenshot", "label": "home"},
	})

	resp, err := http.Get(fmt.Sprintf("%s/v1/runs/%s", srv.URL, result.RunID))
	require.NoError(t, err)
	detail := decode[domain.RunDetail](t, resp)
	ref, ok := detail.Steps[1].Result["screenshot"].(string)
	require.True(t, ok)

	resp, err = http.Get(fmt.Sprintf("%s/v1/runs/%s/artifacts/%s", srv.URL, result.RunID, ref))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestArtifactServing_RejectsTraversal(t *testing.T) {
	srv, _ := newTestServer(t)
	result := runOnce(t, srv, []map[string]any{{"type": "goto", "url": "https://example.com"}})

	req, err := http.NewRequest(http.MethodGet,
		fmt.Sprintf("%s/v1/runs/%s/artifacts/%s", srv.URL, result.RunID, "%2e%2e/%2e%2e/secret"), nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
