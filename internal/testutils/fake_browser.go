// Package testutils provides shared test doubles, most importantly a
// scripted in-memory browser implementing the ports.Browser/ports.Page
// capability interface.
package testutils

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/humanbrowse/pkg/ports"
)

// AlwaysBlocked is a detector that flags every page with the given reason.
func AlwaysBlocked(reason string) ports.BlockDetector {
	return ports.BlockDetectorFunc(func(ports.PageView) (string, bool) {
		return reason, true
	})
}

// FakeBrowser hands out FakePages and records how many were opened.
type FakeBrowser struct {
	mu     sync.Mutex
	pages  []*FakePage
	Closed bool

	// NewPageErr, when set, fails the next NewPage call.
	NewPageErr error
}

// NewFakeBrowser creates an empty fake browser.
func NewFakeBrowser() *FakeBrowser {
	return &FakeBrowser{}
}

// NewPage implements ports.Browser.
func (b *FakeBrowser) NewPage(ctx context.Context) (ports.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.NewPageErr != nil {
		err := b.NewPageErr
		b.NewPageErr = nil
		return nil, err
	}
	page := NewFakePage()
	b.pages = append(b.pages, page)
	return page, nil
}

// Close implements ports.Browser.
func (b *FakeBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Closed = true
	return nil
}

// Pages returns every page opened so far.
func (b *FakeBrowser) Pages() []*FakePage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*FakePage(nil), b.pages...)
}

// LastPage returns the most recently opened page, or nil.
func (b *FakeBrowser) LastPage() *FakePage {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pages) == 0 {
		return nil
	}
	return b.pages[len(b.pages)-1]
}

// FakePage is a scripted ports.Page. Every call is appended to Calls;
// failures are injected per method via Errs. Blocking hooks allow tests to
// hold a step in flight.
type FakePage struct {
	mu    sync.Mutex
	calls []string

	CurrentURL string
	PageTitle  string
	Content    string
	PNG        []byte

	// Errs maps a method name ("navigate", "click", ...) to the error the
	// next call of that method should return.
	Errs map[string]error

	// Gate, when non-nil, is received from inside Navigate so a test can
	// keep a step executing until it chooses to release it.
	Gate chan struct{}

	CloseCount int
}

// NewFakePage creates a page with a plausible default document.
func NewFakePage() *FakePage {
	return &FakePage{
		CurrentURL: "about:blank",
		PageTitle:  "",
		Content:    "<html><body></body></html>",
		PNG:        []byte{0x89, 'P', 'N', 'G'},
		Errs:       make(map[string]error),
	}
}

func (p *FakePage) record(call string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)
	if err, ok := p.Errs[callName(call)]; ok && err != nil {
		delete(p.Errs, callName(call))
		return err
	}
	return nil
}

func callName(call string) string {
	for i, ch := range call {
		if ch == '(' {
			return call[:i]
		}
	}
	return call
}

// Calls returns the ordered call trace.
func (p *FakePage) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// SetDocument swaps the scripted page state in one call.
func (p *FakePage) SetDocument(url, title, html string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CurrentURL = url
	p.PageTitle = title
	p.Content = html
}

// Navigate implements ports.Page.
func (p *FakePage) Navigate(ctx context.Context, url, waitUntil string) error {
	if err := p.record(fmt.Sprintf("navigate(%s)", url)); err != nil {
		return err
	}
	if p.Gate != nil {
		select {
		case <-p.Gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	p.mu.Lock()
	p.CurrentURL = url
	p.mu.Unlock()
	return ctx.Err()
}

// Click implements ports.Page.
func (p *FakePage) Click(ctx context.Context, target ports.ClickTarget) error {
	return p.record(fmt.Sprintf("click(%s%s%s)", target.Selector, target.Text, target.Role))
}

// Fill implements ports.Page.
func (p *FakePage) Fill(ctx context.Context, selector, text string) error {
	return p.record(fmt.Sprintf("fill(%s)", selector))
}

// Press implements ports.Page.
func (p *FakePage) Press(ctx context.Context, key string) error {
	return p.record(fmt.Sprintf("press(%s)", key))
}

// WaitFor implements ports.Page.
func (p *FakePage) WaitFor(ctx context.Context, target ports.WaitTarget) error {
	return p.record(fmt.Sprintf("wait_for(%s%s%s)", target.Selector, target.Text, target.LoadState))
}

// Scroll implements ports.Page.
func (p *FakePage) Scroll(ctx context.Context, pixels int, toSelector string) error {
	return p.record(fmt.Sprintf("scroll(%d,%s)", pixels, toSelector))
}

// HTML implements ports.Page.
func (p *FakePage) HTML(ctx context.Context) (string, error) {
	if err := p.record("html"); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Content, nil
}

// Screenshot implements ports.Page.
func (p *FakePage) Screenshot(ctx context.Context) ([]byte, error) {
	if err := p.record("screenshot"); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.PNG...), nil
}

// URL implements ports.Page.
func (p *FakePage) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.CurrentURL, nil
}

// Title implements ports.Page.
func (p *FakePage) Title(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.PageTitle, nil
}

// Close implements ports.Page.
func (p *FakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CloseCount++
	return nil
}
