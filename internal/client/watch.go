package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dom/product-console/internal/domain"
	"github.com/gorilla/websocket"
)

const watchPongWait = 70 * time.Second

type feedMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// WatchAudit streams new audit entries to fn until ctx is done or the server
// closes the feed. Only administrators may subscribe.
func (c *Client) WatchAudit(ctx context.Context, fn func(*domain.AuditEntry)) error {
	token, err := c.token()
	if err != nil {
		return err
	}

	wsURL, err := c.streamURL(token)
	if err != nil {
		return err
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			apiErr := decodeError(resp)
			c.sessions.HandleRejected(resp.StatusCode)
			return apiErr
		}
		return fmt.Errorf("connect audit stream: %w", err)
	}
	defer conn.Close()

	// The server pings periodically; each ping pushes the deadline out.
	conn.SetReadDeadline(time.Now().Add(watchPongWait))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(watchPongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(10*time.Second))
	})

	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
		case <-stopped:
			return
		}
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("read audit stream: %w", err)
		}

		var msg feedMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.lg.Warnw("audit stream: bad message", "error", err)
			continue
		}
		if msg.Type != "audit.created" {
			continue
		}
		var entry domain.AuditEntry
		if err := json.Unmarshal(msg.Payload, &entry); err != nil {
			c.lg.Warnw("audit stream: bad payload", "error", err)
			continue
		}
		fn(&entry)
	}
}

func (c *Client) streamURL(token string) (string, error) {
	u, err := url.Parse(c.baseURL + "/audit/stream")
	if err != nil {
		return "", err
	}
	switch strings.ToLower(u.Scheme) {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported API scheme %q", u.Scheme)
	}
	u.RawQuery = url.Values{"token": {token}}.Encode()
	return u.String(), nil
}
