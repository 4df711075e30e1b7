package testutil

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/dom/product-console/internal/domain"
	"github.com/dom/product-console/internal/websocket"
	gorillaWS "github.com/gorilla/websocket"
)

// WSClient is a test subscriber on the audit stream
type WSClient struct {
	t        *testing.T
	conn     *gorillaWS.Conn
	messages chan *websocket.Message
	errors   chan error
	done     chan struct{}
	mu       sync.Mutex
}

// NewWSClient connects to the audit stream and starts reading
func NewWSClient(t *testing.T, url string) *WSClient {
	t.Helper()

	dialer := *gorillaWS.DefaultDialer
	dialer.HandshakeTimeout = 5 * time.Second

	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to connect to websocket: %v", err)
	}

	client := &WSClient{
		t:        t,
		conn:     conn,
		messages: make(chan *websocket.Message, 100),
		errors:   make(chan error, 10),
		done:     make(chan struct{}),
	}

	go client.readPump()

	t.Cleanup(func() {
		client.Close()
	})

	return client
}

func (c *WSClient) readPump() {
	defer close(c.messages)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			case c.errors <- err:
			}
			return
		}

		var msg websocket.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			select {
			case c.errors <- err:
			default:
			}
			continue
		}

		select {
		case c.messages <- &msg:
		case <-c.done:
			return
		}
	}
}

// Close closes the WebSocket connection gracefully
func (c *WSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return
	default:
		close(c.done)
		c.conn.WriteMessage(gorillaWS.CloseMessage, gorillaWS.FormatCloseMessage(gorillaWS.CloseNormalClosure, ""))
		c.conn.Close()
	}
}

// ExpectMessage waits for the next message and fails the test on timeout
func (c *WSClient) ExpectMessage(timeout time.Duration) *websocket.Message {
	c.t.Helper()

	select {
	case msg, ok := <-c.messages:
		if !ok {
			c.t.Fatal("websocket closed while waiting for message")
		}
		return msg
	case err := <-c.errors:
		c.t.Fatalf("websocket error: %v", err)
	case <-time.After(timeout):
		c.t.Fatal("timeout waiting for websocket message")
	}
	return nil
}

// ExpectAuditEntry skips messages until an entry with the given action
// arrives. Entries from earlier requests may still be in flight.
func (c *WSClient) ExpectAuditEntry(action domain.AuditAction, timeout time.Duration) *domain.AuditEntry {
	c.t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			c.t.Fatalf("timeout waiting for %s audit entry", action)
		}
		msg := c.ExpectMessage(remaining)
		if msg.Type != websocket.MessageTypeAuditCreated {
			c.t.Fatalf("unexpected message type %q", msg.Type)
		}

		var entry domain.AuditEntry
		if err := json.Unmarshal(msg.Payload, &entry); err != nil {
			c.t.Fatalf("failed to unmarshal audit entry: %v", err)
		}
		if entry.Action == action {
			return &entry
		}
	}
}

// ExpectNoMessage fails if anything arrives within timeout
func (c *WSClient) ExpectNoMessage(timeout time.Duration) {
	c.t.Helper()

	select {
	case msg, ok := <-c.messages:
		if ok {
			c.t.Fatalf("expected no message, got %q", msg.Type)
		}
	case <-time.After(timeout):
	}
}

// DrainMessages discards anything already queued
func (c *WSClient) DrainMessages() {
	for {
		select {
		case <-c.messages:
		default:
			return
		}
	}
}
