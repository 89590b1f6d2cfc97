package cdp

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func devtoolsVersionHandler(wsURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/json/version" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, `{"Browser": "Chrome/120.0", "webSocketDebuggerUrl": %q}`, wsURL)
	}
}

func serverPort(t *testing.T, srv *httptest.Server) int {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return port
}

func TestDiscoverEndpoint(t *testing.T) {
	srv := httptest.NewServer(devtoolsVersionHandler("ws://127.0.0.1/devtools/browser/abc"))
	defer srv.Close()
	port := serverPort(t, srv)

	wsURL, err := discoverEndpoint(context.Background(), srv.Client(), port, false, time.Second)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("ws://127.0.0.1:%d/devtools/browser/abc", port), wsURL)
}

func TestDiscoverEndpoint_NoBrowser(t *testing.T) {
	// Grab a port and close it so nothing answers.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	_, err = discoverEndpoint(context.Background(), &http.Client{}, port, false, 200*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no devtools endpoint")
}

func TestDiscoverEndpoint_RejectsMissingURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Browser": "Chrome/120.0"}`)
	}))
	defer srv.Close()

	_, err := discoverEndpoint(context.Background(), srv.Client(), serverPort(t, srv), false, time.Second)
	require.Error(t, err)
}

func TestRewriteHost(t *testing.T) {
	assert.Equal(t,
		"ws://10.0.0.7:9222/devtools/browser/abc",
		rewriteHost("ws://127.0.0.1:9222/devtools/browser/abc", "10.0.0.7", 9222))
	assert.Equal(t,
		"wss://example.com/devtools",
		rewriteHost("wss://example.com/devtools", "10.0.0.7", 9222),
		"non-ws schemes pass through untouched")
}

func TestCandidateHosts(t *testing.T) {
	hosts := candidateHosts(false)
	assert.Equal(t, []string{"127.0.0.1", "localhost"}, hosts)

	withNAT := candidateHosts(true)
	assert.GreaterOrEqual(t, len(withNAT), 2)
	assert.Equal(t, hosts, withNAT[:2])
}
