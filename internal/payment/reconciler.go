package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/satriadwik/dealroom-be/internal/domain"
	"github.com/satriadwik/dealroom-be/internal/workflow"
	"github.com/satriadwik/dealroom-be/pkg/logger"
)

// Signal tags which of the three independent confirmation channels
// delivered a payment signal.
type Signal string

const (
	SignalSyncVerify Signal = "sync_verify"
	SignalWebhook    Signal = "webhook"
	SignalAdminClaim Signal = "admin_claim"
)

const (
	WebhookPaymentCaptured = "payment.captured"
	WebhookPaymentFailed   = "payment.failed"
)

// WebhookEvent is the gateway's asynchronous push notification.
type WebhookEvent struct {
	ID            string              `json:"id"`
	Type          string              `json:"type"`
	TransactionID string              `json:"transaction_id"`
	Phase         domain.PaymentPhase `json:"phase"`
}

// Reconciler resolves deposit and final-payment confirmation from three
// independent signals into one at-most-once state transition. All three
// entry points converge on credit, which delegates the apply-if-not-
// already-applied decision to the store's conditional update; the
// reconciler itself holds no state.
type Reconciler struct {
	repo       domain.TransactionRepository
	gateway    Gateway
	sessions   SessionStore
	documents  domain.DocumentStore
	notifier   domain.NotificationSender
	logger     *logger.Logger
	sessionTTL time.Duration
}

func NewReconciler(
	repo domain.TransactionRepository,
	gateway Gateway,
	sessions SessionStore,
	documents domain.DocumentStore,
	notifier domain.NotificationSender,
	log *logger.Logger,
	sessionTTL time.Duration,
) *Reconciler {
	if sessionTTL <= 0 {
		sessionTTL = 30 * time.Minute
	}
	return &Reconciler{
		repo:       repo,
		gateway:    gateway,
		sessions:   sessions,
		documents:  documents,
		notifier:   notifier,
		logger:     log,
		sessionTTL: sessionTTL,
	}
}

// InitiateCheckout creates a gateway checkout session for the phase.
// Idempotent per phase: while a session is still open the existing one
// is returned instead of creating a duplicate.
func (r *Reconciler) InitiateCheckout(ctx context.Context, transactionID string, phase domain.PaymentPhase) (*CheckoutSession, error) {
	ctx = logger.WithTransactionID(ctx, transactionID)

	tx, err := r.repo.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if err := r.validatePayable(tx, phase); err != nil {
		return nil, err
	}

	existing, err := r.sessions.Get(ctx, transactionID, phase)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		r.logger.Debug(ctx, "Reusing open checkout session",
			"session_id", existing.ID,
			"phase", phase,
		)
		return existing, nil
	}

	session, err := r.gateway.CreateCheckoutSession(ctx, transactionID, phase, tx.Payment(phase).Amount)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	if err := r.sessions.Put(ctx, session, r.sessionTTL); err != nil {
		return nil, err
	}

	r.logger.Info(ctx, "Checkout session created",
		"session_id", session.ID,
		"phase", phase,
		"amount", session.Amount,
	)

	return session, nil
}

// ConfirmCardPayment synchronously asks the gateway for the
// authoritative charge status and credits the payment if captured.
// This is the primary confirmation mechanism; the webhook is defense in
// depth for deployments where it can be delivered.
func (r *Reconciler) ConfirmCardPayment(ctx context.Context, transactionID string, phase domain.PaymentPhase) (*domain.Transaction, error) {
	ctx = logger.WithTransactionID(ctx, transactionID)

	state, err := r.gateway.ChargeStatus(ctx, transactionID, phase)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPaymentVerificationFailed, err)
	}
	if state != ChargeCaptured {
		return nil, fmt.Errorf("%w: charge state %s", domain.ErrPaymentVerificationFailed, state)
	}

	return r.credit(ctx, transactionID, phase, domain.MethodCard, SignalSyncVerify)
}

// HandleWebhook applies the gateway's asynchronous signal through the
// same idempotent transition rule as the synchronous path.
func (r *Reconciler) HandleWebhook(ctx context.Context, event WebhookEvent) (*domain.Transaction, error) {
	ctx = logger.WithTransactionID(ctx, event.TransactionID)

	switch event.Type {
	case WebhookPaymentCaptured:
		return r.credit(ctx, event.TransactionID, event.Phase, domain.MethodCard, SignalWebhook)
	case WebhookPaymentFailed:
		r.logger.Warn(ctx, "Gateway reported failed payment",
			"event_id", event.ID,
			"phase", event.Phase,
		)
		return r.repo.Get(ctx, event.TransactionID)
	}
	return nil, fmt.Errorf("unknown webhook event type %q", event.Type)
}

// ClaimBankTransfer records the payer's declaration of a sent transfer.
// It never advances the status; a human verifies the claim first.
func (r *Reconciler) ClaimBankTransfer(ctx context.Context, transactionID string, phase domain.PaymentPhase, referenceCode, proofFilename string, proof []byte) (*domain.Transaction, error) {
	ctx = logger.WithTransactionID(ctx, transactionID)

	proofID := ""
	if len(proof) > 0 {
		var err error
		proofID, err = r.documents.AttachProof(ctx, transactionID, phase, proofFilename, proof)
		if err != nil {
			return nil, fmt.Errorf("attach payment proof: %w", err)
		}
	}

	tx, err := r.repo.OpenBankClaim(ctx, transactionID, phase, referenceCode, proofID)
	if err != nil {
		return nil, err
	}

	r.logger.Info(ctx, "Bank transfer claim recorded",
		"phase", phase,
		"reference_code", referenceCode,
	)

	return tx, nil
}

// ConfirmBankTransfer is the admin decision on a pending claim. Accept
// reuses the exact credit path of the card channel so the two channels
// are symmetric from the state machine's perspective; reject clears the
// pending sub-state, leaves the status untouched and notifies the
// claimant, who may resubmit.
func (r *Reconciler) ConfirmBankTransfer(ctx context.Context, transactionID string, phase domain.PaymentPhase, accept bool) (*domain.Transaction, error) {
	ctx = logger.WithTransactionID(ctx, transactionID)

	tx, err := r.repo.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if !tx.Payment(phase).Claim.Pending {
		return nil, domain.ErrNoPendingClaim
	}

	if accept {
		return r.credit(ctx, transactionID, phase, domain.MethodBankTransfer, SignalAdminClaim)
	}

	tx, err = r.repo.RejectBankClaim(ctx, transactionID, phase)
	if err != nil {
		return nil, err
	}

	r.logger.Info(ctx, "Bank transfer claim rejected", "phase", phase)

	if r.notifier != nil {
		_ = r.notifier.Send(ctx, domain.Notification{
			TransactionID: transactionID,
			Recipient:     domain.RoleBuyer,
			Subject:       "Bank transfer claim rejected",
			Body:          fmt.Sprintf("Your %s payment claim could not be verified. You may submit it again.", phase),
		})
	}

	return tx, nil
}

// credit applies the forward transition at most once. When a concurrent
// signal already credited the phase the store reports an idempotent
// no-op and the already-applied state is returned as success.
func (r *Reconciler) credit(ctx context.Context, transactionID string, phase domain.PaymentPhase, method domain.PaymentMethod, signal Signal) (*domain.Transaction, error) {
	actor := domain.RoleSystem
	if signal == SignalAdminClaim {
		actor = domain.RoleAdmin
	}

	tx, applied, err := r.repo.MarkPaid(ctx, transactionID, phase, method, actor)
	if err != nil {
		return nil, err
	}

	if !applied {
		r.logger.Debug(ctx, "Payment already credited, signal ignored",
			"phase", phase,
			"signal", signal,
		)
		return tx, nil
	}

	r.logger.Info(ctx, "Payment credited",
		"phase", phase,
		"method", method,
		"signal", signal,
		"status", tx.Status,
	)

	if err := r.sessions.Delete(ctx, transactionID, phase); err != nil {
		r.logger.Warn(ctx, "Failed to drop checkout session",
			"phase", phase,
			"error", err,
		)
	}

	// The final payment settles the deal.
	if phase == domain.PhaseFinal && tx.Status == domain.StatusPaymentReceived {
		tx, err = r.repo.ApplyTransition(ctx, transactionID, domain.StatusCompleted, domain.RoleSystem, "all payments settled")
		if err != nil {
			return nil, err
		}
	}

	return tx, nil
}

func (r *Reconciler) validatePayable(tx *domain.Transaction, phase domain.PaymentPhase) error {
	record := tx.Payment(phase)
	if record.Paid {
		return fmt.Errorf("%w: %s already paid", domain.ErrInvalidTransition, phase)
	}
	if record.Claim.Pending {
		return domain.ErrDuplicateClaim
	}

	from, _ := workflow.PaymentTransition(phase)
	if tx.Status != from {
		return fmt.Errorf("%w: %s payment not expected in %s", domain.ErrInvalidTransition, phase, tx.Status)
	}
	return nil
}
