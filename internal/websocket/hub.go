package websocket

import (
	"sync"
	"time"

	"github.com/dom/product-console/internal/domain"
	"go.uber.org/zap"
)

const broadcastBuffer = 256

// Hub fans audit entries out to connected subscribers. The Run goroutine owns
// the subscriber set.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	stop       chan struct{}
	done       chan struct{} // closed when Run() exits
	stopOnce   sync.Once
	lg         *zap.SugaredLogger

	mu    sync.RWMutex
	count int
}

func NewHub(lg *zap.SugaredLogger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, broadcastBuffer),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		lg:         lg,
	}
}

func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.stop:
			for client := range h.clients {
				client.Close()
			}
			h.clients = make(map[*Client]bool)
			h.setCount(0)
			return

		case client := <-h.register:
			h.clients[client] = true
			h.setCount(len(h.clients))
			h.lg.Debugw("audit feed: subscriber joined", "userId", client.userID, "subscribers", len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
				h.setCount(len(h.clients))
				h.lg.Debugw("audit feed: subscriber left", "userId", client.userID, "subscribers", len(h.clients))
			}

		case data := <-h.broadcast:
			for client := range h.clients {
				if !client.trySend(data) {
					// Slow subscriber: drop it rather than stall the feed.
					delete(h.clients, client)
					client.Close()
					h.lg.Warnw("audit feed: dropped slow subscriber", "userId", client.userID)
				}
			}
			h.setCount(len(h.clients))
		}
	}
}

// Stop shuts the hub down and closes every subscriber. It blocks until Run has
// exited; calling it more than once is safe.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)
	})
	<-h.done
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish queues entry for every subscriber. It never blocks the caller; when
// the queue is full the entry is dropped from the live feed (it is still stored).
func (h *Hub) Publish(entry *domain.AuditEntry) {
	data, err := encodeAuditCreated(entry, time.Now())
	if err != nil {
		h.lg.Errorw("audit feed: failed to encode entry", "auditId", entry.ID, "error", err)
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.lg.Warnw("audit feed: broadcast queue full, entry not streamed", "auditId", entry.ID)
	}
}

// Subscribers reports how many clients are connected.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

func (h *Hub) setCount(n int) {
	h.mu.Lock()
	h.count = n
	h.mu.Unlock()
}
