package websocket_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dom/product-console/internal/domain"
	"github.com/dom/product-console/internal/websocket"
	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newFeedServer(t *testing.T, hub *websocket.Hub) *httptest.Server {
	t.Helper()
	upgrader := ws.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := websocket.NewClient(hub, conn, uuid.New())
		hub.Register(client)
		go client.WritePump()
		go client.ReadPump()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *ws.Conn {
	t.Helper()
	conn, _, err := ws.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_PublishReachesSubscribers(t *testing.T) {
	hub := websocket.NewHub(zap.NewNop().Sugar())
	go hub.Run()
	t.Cleanup(hub.Stop)

	srv := newFeedServer(t, hub)
	first := dial(t, srv)
	second := dial(t, srv)

	require.Eventually(t, func() bool { return hub.Subscribers() == 2 }, 2*time.Second, 10*time.Millisecond)

	productID := uuid.New()
	entry := &domain.AuditEntry{
		ID:         uuid.New(),
		ActorID:    uuid.New(),
		ActorEmail: "admin@example.com",
		Action:     domain.ActionCreate,
		EntityType: domain.EntityProduct,
		EntityID:   &productID,
		Timestamp:  time.Now().UTC(),
	}
	hub.Publish(entry)

	for _, conn := range []*ws.Conn{first, second} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var msg websocket.Message
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, websocket.MessageTypeAuditCreated, msg.Type)

		var got domain.AuditEntry
		require.NoError(t, json.Unmarshal(msg.Payload, &got))
		assert.Equal(t, entry.ID, got.ID)
		assert.Equal(t, domain.ActionCreate, got.Action)
	}
}

func TestHub_UnregisterOnDisconnect(t *testing.T) {
	hub := websocket.NewHub(zap.NewNop().Sugar())
	go hub.Run()
	t.Cleanup(hub.Stop)

	srv := newFeedServer(t, hub)
	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_StopClosesSubscribers(t *testing.T) {
	hub := websocket.NewHub(zap.NewNop().Sugar())
	go hub.Run()

	srv := newFeedServer(t, hub)
	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Stop()
	hub.Stop()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, hub.Subscribers())
}

func TestHub_PublishWithoutSubscribersDoesNotBlock(t *testing.T) {
	hub := websocket.NewHub(zap.NewNop().Sugar())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.Publish(&domain.AuditEntry{ID: uuid.New()})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked with no running hub")
	}
}
