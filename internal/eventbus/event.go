package eventbus

import (
	"fmt"
	"time"

	"github.com/satriadwik/dealroom-be/internal/domain"
)

type EventType string

const (
	EventTypeStatusChanged EventType = "transaction.status_changed"
)

type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
	Retries   int         `json:"retries"`
}

// StatusChangedEvent is the notification payload emitted on every
// successful transition.
type StatusChangedEvent struct {
	TransactionID string                   `json:"transaction_id"`
	From          domain.TransactionStatus `json:"from"`
	To            domain.TransactionStatus `json:"to"`
	Actor         domain.Role              `json:"actor"`
	At            time.Time                `json:"at"`
}

// StatusChangeEventID is deterministic per transition so replayed
// deliveries dedupe against the processed-event record.
func StatusChangeEventID(change domain.StatusChange) string {
	return fmt.Sprintf("%s:%s->%s", change.TransactionID, change.From, change.To)
}
