package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

type versionInfo struct {
	Browser              string `json:"Browser"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// candidateHosts returns the hosts a debugger endpoint might answer on, in
// probe order. Chromium binds the DevTools listener to loopback; with NAT
// fallback enabled (container setups) the default-route address is tried
// too.
func candidateHosts(allowNAT bool) []string {
	hosts := []string{"127.0.0.1", "localhost"}
	if allowNAT {
		if ip := outboundIP(); ip != "" {
			hosts = append(hosts, ip)
		}
	}
	return hosts
}

// outboundIP resolves the local address the default route would use. No
// packet is sent.
func outboundIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return ""
	}
	defer conn.Close()
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return ""
	}
	return addr.IP.String()
}

// probeEndpoint asks one host's /json/version for the browser websocket URL.
func probeEndpoint(ctx context.Context, httpClient *http.Client, host string, port int) (versionInfo, error) {
	url := fmt.Sprintf("http://%s/json/version", net.JoinHostPort(host, fmt.Sprintf("%d", port)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return versionInfo{}, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return versionInfo{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return versionInfo{}, fmt.Errorf("probe %s: status %d", url, resp.StatusCode)
	}
	var info versionInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return versionInfo{}, fmt.Errorf("probe %s: %w", url, err)
	}
	if info.WebSocketDebuggerURL == "" {
		return versionInfo{}, fmt.Errorf("probe %s: no webSocketDebuggerUrl", url)
	}
	return info, nil
}

// discoverEndpoint probes the candidate hosts and returns the first
// answering websocket URL. The returned URL is rewritten to the host that
// answered; Chromium reports ws://127.0.0.1/... regardless of the interface
// it was reached on.
func discoverEndpoint(ctx context.Context, httpClient *http.Client, port int, allowNAT bool, timeout time.Duration) (string, error) {
	var lastErr error
	for _, host := range candidateHosts(allowNAT) {
		probeCtx, cancel := context.WithTimeout(ctx, timeout)
		info, err := probeEndpoint(probeCtx, httpClient, host, port)
		cancel()
		if err != nil {
			lastErr = err
			continue
		}
		return rewriteHost(info.WebSocketDebuggerURL, host, port), nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no candidate hosts")
	}
	return "", fmt.Errorf("no devtools endpoint on port %d: %w", port, lastErr)
}

func rewriteHost(wsURL, host string, port int) string {
	const scheme = "ws://"
	if !strings.HasPrefix(wsURL, scheme) {
		return wsURL
	}
	rest := wsURL[len(scheme):]
	slash := strings.IndexByte(rest, '/')
	if slash < 0 {
		return wsURL
	}
	return scheme + net.JoinHostPort(host, fmt.Sprintf("%d", port)) + rest[slash:]
}
