package ports

import "context"

// ClickTarget identifies the element a click step should hit. Exactly one
// field is set (enforced by step validation before execution).
type ClickTarget struct {
	Selector string
	Text     string
	Role     string
}

// WaitTarget identifies what a wait_for step is waiting on. Exactly one
// field is set.
type WaitTarget struct {
	Selector  string
	Text      string
	LoadState string
}

// Link is one enumerated anchor from the current page.
type Link struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

// Page is one open page inside a browser session. Every method blocks until
// the browser answers or ctx expires; suspension is explicit, never an event
// loop. Implementations only need to be safe for sequential use; the
// single-flight guarantee lives in the session state machine, not here.
type Page interface {
	// Navigate loads url. waitUntil selects the readiness signal ("load",
	// "domcontentloaded" or empty for the driver default).
	Navigate(ctx context.Context, url, waitUntil string) error

	// Click dispatches a click on the resolved target.
	Click(ctx context.Context, target ClickTarget) error

	// Fill replaces the value of the element matching selector with text.
	Fill(ctx context.Context, selector, text string) error

	// Press dispatches a key press to the focused element.
	Press(ctx context.Context, key string) error

	// WaitFor blocks until the target condition holds or ctx expires.
	WaitFor(ctx context.Context, target WaitTarget) error

	// Scroll moves the viewport by pixels, or brings toSelector into view
	// when it is non-empty.
	Scroll(ctx context.Context, pixels int, toSelector string) error

	// HTML returns the serialized DOM of the current page.
	HTML(ctx context.Context) (string, error)

	// Screenshot captures the viewport as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)

	// URL and Title report the current location without side effects.
	URL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)

	// Close releases the page. Idempotent.
	Close() error
}

// Browser is the connect primitive over the external browser driver. The
// engine only requires it to be fallible and timeout-aware, not any deeper
// protocol detail.
type Browser interface {
	// NewPage opens a fresh page for a new session.
	NewPage(ctx context.Context) (Page, error)

	// Close tears down the driver connection. Idempotent.
	Close() error
}
