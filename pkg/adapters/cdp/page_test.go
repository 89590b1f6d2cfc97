package cdp

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/humanbrowse/pkg/domain"
	"github.com/aretw0/humanbrowse/pkg/ports"
)

// fakeDevtools is a scripted DevTools endpoint: every command gets an
// answer from the handler, matched by id.
type fakeDevtools struct {
	srv     *httptest.Server
	mu      sync.Mutex
	methods []string
	conns   []*websocket.Conn

	// handle returns the result payload for one command.
	handle func(method string, params map[string]any) (any, *rpcError)
}

func newFakeDevtools(t *testing.T, handle func(method string, params map[string]any) (any, *rpcError)) *fakeDevtools {
	t.Helper()
	f := &fakeDevtools{handle: handle}
	upgrader := websocket.Upgrader{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		f.mu.Lock()
		f.conns = append(f.conns, conn)
		f.mu.Unlock()
		for {
			var req rpcRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			f.mu.Lock()
			f.methods = append(f.methods, req.Method)
			f.mu.Unlock()

			params, _ := req.Params.(map[string]any)
			result, rpcErr := f.handle(req.Method, params)
			resp := map[string]any{"id": req.ID}
			if req.SessionID != "" {
				resp["sessionId"] = req.SessionID
			}
			if rpcErr != nil {
				resp["error"] = rpcErr
			} else {
				resp["result"] = result
			}
			if err := conn.WriteJSON(resp); err != nil {
				return
			}
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeDevtools) wsURL() string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http")
}

// closeConns severs every accepted websocket connection. The httptest
// server stops tracking hijacked connections, so CloseClientConnections
// does not reach them.
func (f *fakeDevtools) closeConns() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.conns {
		_ = c.Close()
	}
}

func (f *fakeDevtools) calledMethods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.methods...)
}

// evalValue wraps v the way Runtime.evaluate reports a by-value result.
func evalValue(v any) map[string]any {
	return map[string]any{"result": map[string]any{"value": v}}
}

func scriptedBrowser(t *testing.T, handle func(method string, params map[string]any) (any, *rpcError)) (*Browser, *fakeDevtools) {
	t.Helper()
	fake := newFakeDevtools(t, func(method string, params map[string]any) (any, *rpcError) {
		switch method {
		case "Target.createTarget":
			return map[string]any{"targetId": "tgt-1"}, nil
		case "Target.attachToTarget":
			return map[string]any{"sessionId": "sess-1"}, nil
		case "Page.enable", "Runtime.enable":
			return map[string]any{}, nil
		}
		return handle(method, params)
	})
	cl, err := dial(context.Background(), fake.wsURL())
	require.NoError(t, err)
	browser := &Browser{client: cl, cfg: Config{}.withDefaults()}
	t.Cleanup(func() { _ = browser.Close() })
	return browser, fake
}

func expressionOf(params map[string]any) string {
	expr, _ := params["expression"].(string)
	return expr
}

func TestPage_NavigateWaitsForLoad(t *testing.T) {
	var mu sync.Mutex
	readyCalls := 0
	browser, fake := scriptedBrowser(t, func(method string, params map[string]any) (any, *rpcError) {
		switch method {
		case "Page.navigate":
			return map[string]any{"frameId": "frame-1"}, nil
		case "Runtime.evaluate":
			if strings.Contains(expressionOf(params), "readyState") {
				mu.Lock()
				readyCalls++
				calls := readyCalls
				mu.Unlock()
				if calls < 2 {
					return evalValue("loading"), nil
				}
				return evalValue("complete"), nil
			}
		}
		return evalValue(nil), nil
	})

	page, err := browser.NewPage(context.Background())
	require.NoError(t, err)

	require.NoError(t, page.Navigate(context.Background(), "https://example.com", ""))
	mu.Lock()
	polled := readyCalls
	mu.Unlock()
	assert.GreaterOrEqual(t, polled, 2, "navigation polls readiness until complete")
	assert.Contains(t, fake.calledMethods(), "Page.navigate")
}

func TestPage_NavigateReportsErrorText(t *testing.T) {
	browser, _ := scriptedBrowser(t, func(method string, params map[string]any) (any, *rpcError) {
		if method == "Page.navigate" {
			return map[string]any{"errorText": "net::ERR_NAME_NOT_RESOLVED"}, nil
		}
		return evalValue(nil), nil
	})

	page, err := browser.NewPage(context.Background())
	require.NoError(t, err)

	err = page.Navigate(context.Background(), "https://nope.invalid", "")
	require.Error(t, err)
	var stepErr *domain.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, domain.KindNavigation, stepErr.Kind)
	assert.Contains(t, stepErr.Message, "ERR_NAME_NOT_RESOLVED")
}

func TestPage_ClickMissingElement(t *testing.T) {
	browser, _ := scriptedBrowser(t, func(method string, params map[string]any) (any, *rpcError) {
		return evalValue(false), nil
	})
	page, err := browser.NewPage(context.Background())
	require.NoError(t, err)

	err = page.Click(context.Background(), ports.ClickTarget{Selector: "#missing"})
	var stepErr *domain.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, domain.KindElementNotFound, stepErr.Kind)
}

func TestPage_PressUnknownKey(t *testing.T) {
	browser, _ := scriptedBrowser(t, func(method string, params map[string]any) (any, *rpcError) {
		return evalValue(nil), nil
	})
	page, err := browser.NewPage(context.Background())
	require.NoError(t, err)

	err = page.Press(context.Background(), "Hyperspace")
	var stepErr *domain.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, domain.KindInvalidKey, stepErr.Kind)
}

func TestPage_PressNamedKey(t *testing.T) {
	var mu sync.Mutex
	var events []string
	browser, _ := scriptedBrowser(t, func(method string, params map[string]any) (any, *rpcError) {
		if method == "Input.dispatchKeyEvent" {
			kind, _ := params["type"].(string)
			mu.Lock()
			events = append(events, kind)
			mu.Unlock()
		}
		return map[string]any{}, nil
	})
	page, err := browser.NewPage(context.Background())
	require.NoError(t, err)

	require.NoError(t, page.Press(context.Background(), "Enter"))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"keyDown", "keyUp"}, events)
}

func TestPage_Screenshot(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	browser, _ := scriptedBrowser(t, func(method string, params map[string]any) (any, *rpcError) {
		if method == "Page.captureScreenshot" {
			return map[string]any{"data": base64.StdEncoding.EncodeToString(png)}, nil
		}
		return evalValue(nil), nil
	})
	page, err := browser.NewPage(context.Background())
	require.NoError(t, err)

	data, err := page.Screenshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, png, data)
}

func TestPage_WaitForTimesOut(t *testing.T) {
	browser, _ := scriptedBrowser(t, func(method string, params map[string]any) (any, *rpcError) {
		return evalValue(false), nil
	})
	page, err := browser.NewPage(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	err = page.WaitFor(ctx, ports.WaitTarget{Selector: "#never"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_CommandError(t *testing.T) {
	browser, _ := scriptedBrowser(t, func(method string, params map[string]any) (any, *rpcError) {
		if method == "Runtime.evaluate" {
			return nil, &rpcError{Code: -32000, Message: "Execution context destroyed"}
		}
		return evalValue(nil), nil
	})
	page, err := browser.NewPage(context.Background())
	require.NoError(t, err)

	_, err = page.Title(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Execution context destroyed")
}

func TestClient_ConnectionLoss(t *testing.T) {
	fake := newFakeDevtools(t, func(method string, params map[string]any) (any, *rpcError) {
		return evalValue(nil), nil
	})
	cl, err := dial(context.Background(), fake.wsURL())
	require.NoError(t, err)

	fake.closeConns()

	require.Eventually(t, func() bool {
		err := cl.call(context.Background(), "", "Browser.getVersion", nil, nil)
		return errors.Is(err, domain.ErrConnectionLost)
	}, time.Second, 10*time.Millisecond)
}

func TestJSString(t *testing.T) {
	assert.Equal(t, `"plain"`, jsString("plain"))
	assert.Equal(t, fmt.Sprintf("%q", `with "quotes"`), jsString(`with "quotes"`))
}
