package eventbus

import (
	"context"
	"fmt"

	"github.com/satriadwik/dealroom-be/internal/domain"
	"github.com/satriadwik/dealroom-be/pkg/logger"
)

// NotificationConsumer fans a status change out to the affected parties
// through the notification collaborator. Event IDs are deterministic per
// transition, so the processed-event record makes redelivery a no-op.
type NotificationConsumer struct {
	repo        domain.TransactionRepository
	sender      domain.NotificationSender
	logger      *logger.Logger
	workerCount int
}

func NewNotificationConsumer(repo domain.TransactionRepository, sender domain.NotificationSender, log *logger.Logger, workerCount int) *NotificationConsumer {
	return &NotificationConsumer{
		repo:        repo,
		sender:      sender,
		logger:      log,
		workerCount: workerCount,
	}
}

func (nc *NotificationConsumer) Consume(ctx context.Context, event Event) error {
	processed, err := nc.repo.IsEventProcessed(ctx, event.ID)
	if err != nil {
		return err
	}
	if processed {
		nc.logger.Debug(ctx, "Event already processed, skipping",
			"event_id", event.ID,
		)
		return nil
	}

	payload, ok := event.Payload.(StatusChangedEvent)
	if !ok {
		return fmt.Errorf("invalid payload type for %s", event.Type)
	}

	ctx = logger.WithTransactionID(ctx, payload.TransactionID)

	subject := fmt.Sprintf("Transaction moved to %s", payload.To)
	body := fmt.Sprintf("Status changed from %s to %s by %s.", payload.From, payload.To, payload.Actor)

	for _, recipient := range recipientsFor(payload.To) {
		err := nc.sender.Send(ctx, domain.Notification{
			TransactionID: payload.TransactionID,
			Recipient:     recipient,
			Subject:       subject,
			Body:          body,
		})
		if err != nil {
			return err
		}
	}

	if err := nc.repo.MarkEventProcessed(ctx, event.ID); err != nil {
		return err
	}

	nc.logger.Debug(ctx, "Status change notified",
		"event_id", event.ID,
		"to", payload.To,
	)

	return nil
}

func (nc *NotificationConsumer) GetWorkerCount() int {
	return nc.workerCount
}

// recipientsFor picks who cares about entering a status. The admin is
// told about statuses that queue up work for them.
func recipientsFor(to domain.TransactionStatus) []domain.Role {
	switch to {
	case domain.StatusDepositReceived, domain.StatusBothApproved, domain.StatusPaymentReceived:
		return []domain.Role{domain.RoleBuyer, domain.RoleSeller, domain.RoleAdmin}
	}
	return []domain.Role{domain.RoleBuyer, domain.RoleSeller}
}
