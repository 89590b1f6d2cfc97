package cdp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/humanbrowse/pkg/domain"
	"github.com/aretw0/humanbrowse/pkg/ports"
)

// pollInterval paces readiness and wait_for polling.
const pollInterval = 100 * time.Millisecond

// Page is one attached DevTools target. All methods route through the
// shared browser connection with this target's session id.
type Page struct {
	client    *client
	sessionID string
	targetID  string
}

var _ ports.Page = (*Page)(nil)

// Navigate loads url and blocks until the document reaches the requested
// readiness ("load" by default, "domcontentloaded" accepts an interactive
// document). The caller's context bounds the whole wait.
func (p *Page) Navigate(ctx context.Context, url, waitUntil string) error {
	var nav struct {
		ErrorText string `json:"errorText"`
	}
	err := p.client.call(ctx, p.sessionID, "Page.navigate", map[string]any{
		"url": url,
	}, &nav)
	if err != nil {
		return err
	}
	if nav.ErrorText != "" {
		return &domain.StepError{
			Kind:    domain.KindNavigation,
			Message: fmt.Sprintf("navigation to %s failed: %s", url, nav.ErrorText),
		}
	}
	return p.waitReady(ctx, waitUntil)
}

func (p *Page) waitReady(ctx context.Context, waitUntil string) error {
	accept := func(state string) bool { return state == "complete" }
	if waitUntil == "domcontentloaded" {
		accept = func(state string) bool { return state == "interactive" || state == "complete" }
	}
	return p.poll(ctx, func(ctx context.Context) (bool, error) {
		var state string
		if err := p.evaluate(ctx, "document.readyState", &state); err != nil {
			return false, err
		}
		return accept(state), nil
	})
}

// Click resolves the target element in the page and clicks it. Selector,
// visible text and ARIA role targeting share one resolver expression.
func (p *Page) Click(ctx context.Context, target ports.ClickTarget) error {
	expr := fmt.Sprintf(`(() => {
		const el = %s;
		if (!el) return false;
		el.scrollIntoView({block: "center"});
		el.click();
		return true;
	})()`, resolveElementJS(target))
	var clicked bool
	if err := p.evaluate(ctx, expr, &clicked); err != nil {
		return err
	}
	if !clicked {
		return &domain.StepError{
			Kind:    domain.KindElementNotFound,
			Message: "no element matched " + describeClickTarget(target),
		}
	}
	return nil
}

// Fill focuses the input matched by selector and replaces its value,
// firing the input and change events frameworks listen for.
func (p *Page) Fill(ctx context.Context, selector, text string) error {
	expr := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return false;
		el.focus();
		el.value = %s;
		el.dispatchEvent(new Event("input", {bubbles: true}));
		el.dispatchEvent(new Event("change", {bubbles: true}));
		return true;
	})()`, jsString(selector), jsString(text))
	var filled bool
	if err := p.evaluate(ctx, expr, &filled); err != nil {
		return err
	}
	if !filled {
		return &domain.StepError{
			Kind:    domain.KindElementNotFound,
			Message: "no element matched selector " + strconv.Quote(selector),
		}
	}
	return nil
}

// keyDefs maps the accepted key names to DevTools key event fields.
var keyDefs = map[string]struct {
	key  string
	code string
	text string
	vk   int
}{
	"Enter":      {key: "Enter", code: "Enter", text: "\r", vk: 13},
	"Tab":        {key: "Tab", code: "Tab", vk: 9},
	"Escape":     {key: "Escape", code: "Escape", vk: 27},
	"Backspace":  {key: "Backspace", code: "Backspace", vk: 8},
	"Delete":     {key: "Delete", code: "Delete", vk: 46},
	"Space":      {key: " ", code: "Space", text: " ", vk: 32},
	"ArrowUp":    {key: "ArrowUp", code: "ArrowUp", vk: 38},
	"ArrowDown":  {key: "ArrowDown", code: "ArrowDown", vk: 40},
	"ArrowLeft":  {key: "ArrowLeft", code: "ArrowLeft", vk: 37},
	"ArrowRight": {key: "ArrowRight", code: "ArrowRight", vk: 39},
	"PageUp":     {key: "PageUp", code: "PageUp", vk: 33},
	"PageDown":   {key: "PageDown", code: "PageDown", vk: 34},
	"Home":       {key: "Home", code: "Home", vk: 36},
	"End":        {key: "End", code: "End", vk: 35},
}

// Press dispatches a key down/up pair for a named key, or a plain character
// event for a single printable rune.
func (p *Page) Press(ctx context.Context, key string) error {
	def, ok := keyDefs[key]
	if !ok {
		if len([]rune(key)) == 1 {
			return p.client.call(ctx, p.sessionID, "Input.insertText", map[string]any{
				"text": key,
			}, nil)
		}
		return &domain.StepError{
			Kind:    domain.KindInvalidKey,
			Message: "unknown key " + strconv.Quote(key),
		}
	}

	down := map[string]any{
		"type":                  "rawKeyDown",
		"key":                   def.key,
		"code":                  def.code,
		"windowsVirtualKeyCode": def.vk,
		"nativeVirtualKeyCode":  def.vk,
	}
	if def.text != "" {
		down["type"] = "keyDown"
		down["text"] = def.text
	}
	if err := p.client.call(ctx, p.sessionID, "Input.dispatchKeyEvent", down, nil); err != nil {
		return err
	}
	return p.client.call(ctx, p.sessionID, "Input.dispatchKeyEvent", map[string]any{
		"type":                  "keyUp",
		"key":                   def.key,
		"code":                  def.code,
		"windowsVirtualKeyCode": def.vk,
		"nativeVirtualKeyCode":  def.vk,
	}, nil)
}

// WaitFor polls until the condition holds. The caller's context supplies
// the deadline; expiry surfaces as a timeout.
func (p *Page) WaitFor(ctx context.Context, target ports.WaitTarget) error {
	var expr string
	switch {
	case target.Selector != "":
		expr = fmt.Sprintf("!!document.querySelector(%s)", jsString(target.Selector))
	case target.Text != "":
		expr = fmt.Sprintf("!!document.body && document.body.innerText.includes(%s)", jsString(target.Text))
	case target.LoadState != "":
		return p.waitReady(ctx, target.LoadState)
	default:
		return &domain.StepError{Kind: domain.KindValidation, Message: "wait_for needs a selector, text or load state"}
	}
	return p.poll(ctx, func(ctx context.Context) (bool, error) {
		var ok bool
		err := p.evaluate(ctx, expr, &ok)
		return ok, err
	})
}

// Scroll moves the viewport by pixels, or brings the selector into view.
func (p *Page) Scroll(ctx context.Context, pixels int, toSelector string) error {
	if toSelector != "" {
		expr := fmt.Sprintf(`(() => {
			const el = document.querySelector(%s);
			if (!el) return false;
			el.scrollIntoView({block: "center"});
			return true;
		})()`, jsString(toSelector))
		var found bool
		if err := p.evaluate(ctx, expr, &found); err != nil {
			return err
		}
		if !found {
			return &domain.StepError{
				Kind:    domain.KindElementNotFound,
				Message: "no element matched selector " + strconv.Quote(toSelector),
			}
		}
		return nil
	}
	return p.evaluate(ctx, fmt.Sprintf("window.scrollBy(0, %d); true", pixels), nil)
}

// HTML returns the serialized document.
func (p *Page) HTML(ctx context.Context) (string, error) {
	var html string
	err := p.evaluate(ctx, "document.documentElement ? document.documentElement.outerHTML : \"\"", &html)
	return html, err
}

// Screenshot captures the viewport as PNG bytes.
func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	var shot struct {
		Data string `json:"data"`
	}
	err := p.client.call(ctx, p.sessionID, "Page.captureScreenshot", map[string]any{
		"format": "png",
	}, &shot)
	if err != nil {
		return nil, err
	}
	data, err := base64.StdEncoding.DecodeString(shot.Data)
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	return data, nil
}

// URL returns the current document location.
func (p *Page) URL(ctx context.Context) (string, error) {
	var url string
	err := p.evaluate(ctx, "location.href", &url)
	return url, err
}

// Title returns the current document title.
func (p *Page) Title(ctx context.Context) (string, error) {
	var title string
	err := p.evaluate(ctx, "document.title", &title)
	return title, err
}

// Close detaches and closes the tab.
func (p *Page) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return p.client.call(ctx, "", "Target.closeTarget", map[string]any{
		"targetId": p.targetID,
	}, nil)
}

// evaluate runs expression in the page and decodes its by-value result
// into out (when non-nil).
func (p *Page) evaluate(ctx context.Context, expression string, out any) error {
	var result struct {
		Result struct {
			Value json.RawMessage `json:"value"`
		} `json:"result"`
		ExceptionDetails *struct {
			Text string `json:"text"`
		} `json:"exceptionDetails"`
	}
	err := p.client.call(ctx, p.sessionID, "Runtime.evaluate", map[string]any{
		"expression":    expression,
		"returnByValue": true,
		"awaitPromise":  true,
	}, &result)
	if err != nil {
		return err
	}
	if result.ExceptionDetails != nil {
		return fmt.Errorf("script exception: %s", result.ExceptionDetails.Text)
	}
	if out != nil && len(result.Result.Value) > 0 {
		if err := json.Unmarshal(result.Result.Value, out); err != nil {
			return fmt.Errorf("decode evaluate result: %w", err)
		}
	}
	return nil
}

// poll runs check every pollInterval until it reports true or the context
// expires.
func (p *Page) poll(ctx context.Context, check func(context.Context) (bool, error)) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		ok, err := check(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// resolveElementJS builds the element lookup expression for a click target.
func resolveElementJS(target ports.ClickTarget) string {
	switch {
	case target.Selector != "":
		return fmt.Sprintf("document.querySelector(%s)", jsString(target.Selector))
	case target.Text != "":
		return fmt.Sprintf(`Array.from(document.querySelectorAll(
			'a, button, [role="button"], [role="link"], input[type="submit"], input[type="button"], summary'
		)).find(el => el.innerText && el.innerText.trim().toLowerCase().includes(%s.toLowerCase()))`,
			jsString(strings.TrimSpace(target.Text)))
	case target.Role != "":
		return fmt.Sprintf("document.querySelector(%s)", jsString("[role="+strconv.Quote(target.Role)+"]"))
	default:
		return "null"
	}
}

func describeClickTarget(target ports.ClickTarget) string {
	switch {
	case target.Selector != "":
		return "selector " + strconv.Quote(target.Selector)
	case target.Text != "":
		return "text " + strconv.Quote(target.Text)
	case target.Role != "":
		return "role " + strconv.Quote(target.Role)
	}
	return "empty target"
}

// jsString embeds s into a script as a string literal.
func jsString(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}
