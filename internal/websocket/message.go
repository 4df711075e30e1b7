package websocket

import (
	"encoding/json"
	"time"

	"github.com/dom/product-console/internal/domain"
)

type MessageType string

// MessageTypeAuditCreated carries one freshly committed audit entry.
const MessageTypeAuditCreated MessageType = "audit.created"

// Message is the feed envelope. Timestamp is the send time in Unix ms, which
// can lag the entry's own timestamp.
type Message struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
}

// encodeAuditCreated renders entry as a ready-to-send feed frame.
func encodeAuditCreated(entry *domain.AuditEntry, now time.Time) ([]byte, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{
		Type:      MessageTypeAuditCreated,
		Payload:   payload,
		Timestamp: now.UnixMilli(),
	})
}
