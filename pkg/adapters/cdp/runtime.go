package cdp

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aretw0/humanbrowse/pkg/ports"
)

// Config tunes the DevTools connection.
type Config struct {
	// Port is the remote debugging port of the running Chromium.
	Port int
	// AllowNAT also probes the default-route address, for containerized
	// browsers that are not reachable on loopback.
	AllowNAT bool
	// ConnectTimeout bounds endpoint probing and the websocket dial.
	ConnectTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = 9222
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	return c
}

// Browser implements ports.Browser on top of one browser-level DevTools
// connection. Pages are attached targets sharing the websocket.
type Browser struct {
	client *client
	cfg    Config
}

// Connect probes for a running Chromium, dials its browser websocket and
// returns the adapter. The browser process is never spawned here; attaching
// to an existing profile is the point.
func Connect(ctx context.Context, cfg Config) (*Browser, error) {
	cfg = cfg.withDefaults()
	httpClient := &http.Client{Timeout: cfg.ConnectTimeout}
	wsURL, err := discoverEndpoint(ctx, httpClient, cfg.Port, cfg.AllowNAT, cfg.ConnectTimeout)
	if err != nil {
		return nil, err
	}
	dialCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	cl, err := dial(dialCtx, wsURL)
	if err != nil {
		return nil, err
	}
	return &Browser{client: cl, cfg: cfg}, nil
}

// NewPage creates a fresh tab and attaches to it in flat session mode.
func (b *Browser) NewPage(ctx context.Context) (ports.Page, error) {
	var created struct {
		TargetID string `json:"targetId"`
	}
	err := b.client.call(ctx, "", "Target.createTarget", map[string]any{
		"url": "about:blank",
	}, &created)
	if err != nil {
		return nil, fmt.Errorf("create target: %w", err)
	}

	var attached struct {
		SessionID string `json:"sessionId"`
	}
	err = b.client.call(ctx, "", "Target.attachToTarget", map[string]any{
		"targetId": created.TargetID,
		"flatten":  true,
	}, &attached)
	if err != nil {
		return nil, fmt.Errorf("attach to target: %w", err)
	}

	page := &Page{client: b.client, sessionID: attached.SessionID, targetID: created.TargetID}
	if err := b.client.call(ctx, page.sessionID, "Page.enable", nil, nil); err != nil {
		return nil, fmt.Errorf("enable page domain: %w", err)
	}
	if err := b.client.call(ctx, page.sessionID, "Runtime.enable", nil, nil); err != nil {
		return nil, fmt.Errorf("enable runtime domain: %w", err)
	}
	return page, nil
}

// Close drops the DevTools connection. The browser itself keeps running.
func (b *Browser) Close() error {
	return b.client.close()
}
