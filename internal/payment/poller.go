package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/satriadwik/dealroom-be/internal/domain"
	"github.com/satriadwik/dealroom-be/pkg/logger"
)

// Poller covers the narrow window between checkout completion and
// webhook delivery: after the redirect lands back on the application it
// re-reads the transaction at a fixed interval until the paid flag
// appears or the attempt cap is hit. Cancelling the context (the user
// navigating away) stops the poll.
type Poller struct {
	repo        domain.TransactionRepository
	logger      *logger.Logger
	interval    time.Duration
	maxAttempts int
}

func NewPoller(repo domain.TransactionRepository, log *logger.Logger, interval time.Duration, maxAttempts int) *Poller {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Poller{
		repo:        repo,
		logger:      log,
		interval:    interval,
		maxAttempts: maxAttempts,
	}
}

// WaitForPayment returns the transaction once the phase is credited, or
// ErrConfirmationTimeout after the attempt cap.
func (p *Poller) WaitForPayment(ctx context.Context, transactionID string, phase domain.PaymentPhase) (*domain.Transaction, error) {
	ctx = logger.WithTransactionID(ctx, transactionID)

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		tx, err := p.repo.Get(ctx, transactionID)
		if err != nil {
			return nil, err
		}
		if tx.Payment(phase).Paid {
			return tx, nil
		}

		p.logger.Debug(ctx, "Payment not yet confirmed",
			"phase", phase,
			"attempt", attempt,
		)

		if attempt == p.maxAttempts {
			break
		}

		select {
		case <-time.After(p.interval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("%w: %s payment after %d attempts", domain.ErrConfirmationTimeout, phase, p.maxAttempts)
}
