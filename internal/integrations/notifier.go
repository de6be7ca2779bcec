package integrations

import (
	"context"
	"sync"

	"github.com/satriadwik/dealroom-be/internal/domain"
	"github.com/satriadwik/dealroom-be/pkg/logger"
)

// LoggingNotifier stands in for the notification service: it logs each
// notification and keeps them queryable for tests. Delivery retries are
// the real service's concern, not this core's.
type LoggingNotifier struct {
	logger *logger.Logger
	sent   []domain.Notification
	mu     sync.Mutex
}

func NewLoggingNotifier(log *logger.Logger) *LoggingNotifier {
	return &LoggingNotifier{logger: log}
}

func (n *LoggingNotifier) Send(ctx context.Context, notification domain.Notification) error {
	n.mu.Lock()
	n.sent = append(n.sent, notification)
	n.mu.Unlock()

	n.logger.Info(ctx, "Notification dispatched",
		"recipient", notification.Recipient,
		"subject", notification.Subject,
	)
	return nil
}

// Sent returns a snapshot of everything dispatched so far.
func (n *LoggingNotifier) Sent() []domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]domain.Notification, len(n.sent))
	copy(out, n.sent)
	return out
}
