// Package browser drives a running browser over the Chrome DevTools
// Protocol: JSON-RPC commands on a WebSocket debugger connection.
package browser

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Client holds one DevTools debugger connection. Commands are issued
// sequentially: one request, then reads until the matching response arrives
// (event frames in between are skipped).
type Client struct {
	conn   *websocket.Conn
	logger *slog.Logger
	nextID int64
}

// Connect discovers a page target via the DevTools HTTP endpoint (the
// /json/list registry) and opens its WebSocket debugger connection.
func Connect(ctx context.Context, devtoolsURL string, logger *slog.Logger) (*Client, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, devtoolsURL+"/json/list", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read target list: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var targets []struct {
		Type                 string `json:"type"`
		WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	}
	if err := json.Unmarshal(body, &targets); err != nil {
		return nil, fmt.Errorf("unmarshal target list: %w", err)
	}

	for _, target := range targets {
		if target.Type == "page" && target.WebSocketDebuggerURL != "" {
			return ConnectWS(ctx, target.WebSocketDebuggerURL, logger)
		}
	}
	return nil, fmt.Errorf("no page target at %s", devtoolsURL)
}

// ConnectWS dials a DevTools WebSocket debugger endpoint directly.
func ConnectWS(ctx context.Context, wsURL string, logger *slog.Logger) (*Client, error) {
	logger.Debug("connecting to devtools", "url", wsURL)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial devtools: %w", err)
	}

	return &Client{conn: conn, logger: logger}, nil
}

// Close closes the debugger connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

type rpcRequest struct {
	ID     int64  `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcFrame struct {
	ID     int64           `json:"id"`
	Method string          `json:"method,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *rpcError       `json:"error,omitempty"`
}

// Call sends one protocol command and blocks until its response arrives,
// skipping interleaved event frames. The context deadline bounds the wait.
func (c *Client) Call(ctx context.Context, method string, params, result any) error {
	c.nextID++
	id := c.nextID

	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetWriteDeadline(deadline)
		c.conn.SetReadDeadline(deadline)
	} else {
		c.conn.SetWriteDeadline(time.Time{})
		c.conn.SetReadDeadline(time.Time{})
	}

	if err := c.conn.WriteJSON(rpcRequest{ID: id, Method: method, Params: params}); err != nil {
		return fmt.Errorf("send %s: %w", method, err)
	}

	for {
		var frame rpcFrame
		if err := c.conn.ReadJSON(&frame); err != nil {
			return fmt.Errorf("read response for %s: %w", method, err)
		}

		if frame.ID == 0 {
			// unsolicited event
			c.logger.Debug("devtools event", "method", frame.Method)
			continue
		}
		if frame.ID != id {
			c.logger.Debug("skipping stale response", "id", frame.ID)
			continue
		}

		if frame.Error != nil {
			return fmt.Errorf("devtools %s: %s (code %d)", method, frame.Error.Message, frame.Error.Code)
		}
		if result != nil && len(frame.Result) > 0 {
			if err := json.Unmarshal(frame.Result, result); err != nil {
				return fmt.Errorf("unmarshal %s result: %w", method, err)
			}
		}
		return nil
	}
}

// Navigate loads url in the connected page.
func (c *Client) Navigate(ctx context.Context, url string) error {
	return c.Call(ctx, "Page.navigate", map[string]string{"url": url}, nil)
}

// Screenshot captures the page as PNG bytes.
func (c *Client) Screenshot(ctx context.Context) ([]byte, error) {
	var resp struct {
		Data string `json:"data"`
	}
	if err := c.Call(ctx, "Page.captureScreenshot", nil, &resp); err != nil {
		return nil, err
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	return data, nil
}

// Evaluate runs a JavaScript expression in the page and returns its value
// rendered as a string.
func (c *Client) Evaluate(ctx context.Context, expression string) (string, error) {
	params := map[string]any{
		"expression":    expression,
		"returnByValue": true,
	}

	var resp struct {
		Result struct {
			Value json.RawMessage `json:"value"`
		} `json:"result"`
		ExceptionDetails *struct {
			Text string `json:"text"`
		} `json:"exceptionDetails"`
	}
	if err := c.Call(ctx, "Runtime.evaluate", params, &resp); err != nil {
		return "", err
	}
	if resp.ExceptionDetails != nil {
		return "", fmt.Errorf("evaluate %q: %s", expression, resp.ExceptionDetails.Text)
	}

	var str string
	if json.Unmarshal(resp.Result.Value, &str) == nil {
		return str, nil
	}
	return string(resp.Result.Value), nil
}
