package eventbus

import (
	"context"
	"time"

	"github.com/satriadwik/dealroom-be/internal/domain"
	"github.com/satriadwik/dealroom-be/pkg/logger"
)

// StatusChangePublisher adapts the bus to the store's publisher
// contract. Publish is non-blocking, so it is safe to call from inside
// the store's critical section.
type StatusChangePublisher struct {
	bus    EventBus
	logger *logger.Logger
}

func NewStatusChangePublisher(bus EventBus, log *logger.Logger) *StatusChangePublisher {
	return &StatusChangePublisher{bus: bus, logger: log}
}

func (p *StatusChangePublisher) PublishStatusChange(ctx context.Context, change domain.StatusChange) {
	event := Event{
		ID:   StatusChangeEventID(change),
		Type: EventTypeStatusChanged,
		Payload: StatusChangedEvent{
			TransactionID: change.TransactionID,
			From:          change.From,
			To:            change.To,
			Actor:         change.Actor,
			At:            change.At,
		},
		Timestamp: time.Now().UTC(),
	}

	if err := p.bus.Publish(ctx, event); err != nil {
		p.logger.Warn(ctx, "Failed to publish status change",
			"event_id", event.ID,
			"error", err,
		)
	}
}
