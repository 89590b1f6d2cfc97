// Package cdp connects to an already-running Chromium over the DevTools
// protocol and adapts it to the ports.Browser/ports.Page capability
// interface. It attaches to targets in flat session mode, so one websocket
// carries every page.
package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/aretw0/humanbrowse/pkg/domain"
)

type rpcRequest struct {
	ID        int64  `json:"id"`
	SessionID string `json:"sessionId,omitempty"`
	Method    string `json:"method"`
	Params    any    `json:"params,omitempty"`
}

type rpcEnvelope struct {
	ID        int64           `json:"id"`
	SessionID string          `json:"sessionId,omitempty"`
	Method    string          `json:"method,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("cdp: %s (code %d)", e.Message, e.Code)
}

// client multiplexes DevTools commands over one websocket. Writes are
// serialized; responses are matched to callers by command id, events are
// dropped. Once the read loop dies every caller fails with the connection
// error.
type client struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[int64]chan rpcEnvelope
	nextID  int64
	err     error

	done chan struct{}
}

func dial(ctx context.Context, wsURL string) (*client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial devtools endpoint %s: %w", wsURL, err)
	}
	c := &client{
		conn:    conn,
		pending: make(map[int64]chan rpcEnvelope),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *client) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.fail(fmt.Errorf("%w: %v", domain.ErrConnectionLost, err))
			return
		}
		var env rpcEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		if env.ID == 0 {
			// Event. Nothing here consumes events; state is polled instead.
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[env.ID]
		delete(c.pending, env.ID)
		c.mu.Unlock()
		if ok {
			ch <- env
		}
	}
}

func (c *client) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return
	}
	c.err = err
	close(c.done)
	for id, ch := range c.pending {
		delete(c.pending, id)
		close(ch)
	}
}

// call issues one command and decodes its result into out (when non-nil).
// sessionID routes the command to an attached target; empty targets the
// browser itself.
func (c *client) call(ctx context.Context, sessionID, method string, params, out any) error {
	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return err
	}
	c.nextID++
	id := c.nextID
	ch := make(chan rpcEnvelope, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	req := rpcRequest{ID: id, SessionID: sessionID, Method: method, Params: params}

	c.writeMu.Lock()
	err := c.conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return fmt.Errorf("%w: %v", domain.ErrConnectionLost, err)
	}

	select {
	case env, ok := <-ch:
		if !ok {
			c.mu.Lock()
			err := c.err
			c.mu.Unlock()
			return err
		}
		if env.Error != nil {
			return env.Error
		}
		if out != nil && len(env.Result) > 0 {
			if err := json.Unmarshal(env.Result, out); err != nil {
				return fmt.Errorf("decode %s result: %w", method, err)
			}
		}
		return nil

	case <-c.done:
		c.mu.Lock()
		err := c.err
		c.mu.Unlock()
		return err

	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return ctx.Err()
	}
}

func (c *client) close() error {
	c.fail(domain.ErrConnectionLost)
	return c.conn.Close()
}
