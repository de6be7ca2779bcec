package payment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satriadwik/dealroom-be/internal/domain"
	"github.com/satriadwik/dealroom-be/internal/integrations"
	"github.com/satriadwik/dealroom-be/internal/storage"
	"github.com/satriadwik/dealroom-be/pkg/logger"
)

type reconcilerFixture struct {
	store      *storage.MemoryStore
	gateway    *SimulatedGateway
	sessions   *MemorySessionStore
	notifier   *integrations.LoggingNotifier
	reconciler *Reconciler
}

func newReconcilerFixture(t *testing.T) *reconcilerFixture {
	t.Helper()

	log := logger.NewNop()
	store := storage.NewMemoryStore(nil)
	gateway := NewSimulatedGateway("http://localhost:4000")
	sessions := NewMemorySessionStore()
	notifier := integrations.NewLoggingNotifier(log)

	return &reconcilerFixture{
		store:      store,
		gateway:    gateway,
		sessions:   sessions,
		notifier:   notifier,
		reconciler: NewReconciler(store, gateway, sessions, integrations.NewMemoryDocumentStore(), notifier, log, time.Minute),
	}
}

func (f *reconcilerFixture) seed(t *testing.T) *domain.Transaction {
	t.Helper()

	tx, err := domain.NewTransaction("tx-1", "listing-1",
		domain.Party{ID: "b-1", Name: "Budi", Email: "budi@example.com"},
		domain.Party{ID: "s-1", Name: "Sari", Email: "sari@example.com"},
		20000, 1000,
	)
	require.NoError(t, err)
	require.NoError(t, f.store.Create(context.Background(), tx))
	return tx
}

// seedAtPaymentPending walks the aggregate to PAYMENT_PENDING so the
// final phase is payable.
func (f *reconcilerFixture) seedAtPaymentPending(t *testing.T) *domain.Transaction {
	t.Helper()

	tx := f.seed(t)
	ctx := context.Background()

	_, _, err := f.store.MarkPaid(ctx, tx.ID, domain.PhaseDeposit, domain.MethodCard, domain.RoleSystem)
	require.NoError(t, err)
	_, err = f.store.ApplyTransition(ctx, tx.ID, domain.StatusInReview, domain.RoleAdmin, "")
	require.NoError(t, err)
	_, err = f.store.SetAgreementDocument(ctx, tx.ID, "doc-1")
	require.NoError(t, err)
	_, _, err = f.store.Approve(ctx, tx.ID, domain.RoleBuyer)
	require.NoError(t, err)
	_, _, err = f.store.Approve(ctx, tx.ID, domain.RoleSeller)
	require.NoError(t, err)
	_, _, err = f.store.Approve(ctx, tx.ID, domain.RoleAdmin)
	require.NoError(t, err)

	current, err := f.store.Get(ctx, tx.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusPaymentPending, current.Status)
	return current
}

func TestInitiateCheckout_CreatesAndReusesSession(t *testing.T) {
	f := newReconcilerFixture(t)
	f.seed(t)
	ctx := context.Background()

	first, err := f.reconciler.InitiateCheckout(ctx, "tx-1", domain.PhaseDeposit)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), first.Amount)
	assert.Contains(t, first.RedirectURL, first.ID)

	// A second initiate while the session is open returns the same one.
	second, err := f.reconciler.InitiateCheckout(ctx, "tx-1", domain.PhaseDeposit)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestInitiateCheckout_RejectsPaidPhase(t *testing.T) {
	f := newReconcilerFixture(t)
	f.seed(t)
	ctx := context.Background()

	_, _, err := f.store.MarkPaid(ctx, "tx-1", domain.PhaseDeposit, domain.MethodCard, domain.RoleSystem)
	require.NoError(t, err)

	_, err = f.reconciler.InitiateCheckout(ctx, "tx-1", domain.PhaseDeposit)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestInitiateCheckout_RejectsWhilePendingClaim(t *testing.T) {
	f := newReconcilerFixture(t)
	f.seed(t)
	ctx := context.Background()

	_, err := f.reconciler.ClaimBankTransfer(ctx, "tx-1", domain.PhaseDeposit, "REF-1", "", nil)
	require.NoError(t, err)

	_, err = f.reconciler.InitiateCheckout(ctx, "tx-1", domain.PhaseDeposit)
	assert.ErrorIs(t, err, domain.ErrDuplicateClaim)
}

func TestConfirmCardPayment_CreditsDeposit(t *testing.T) {
	f := newReconcilerFixture(t)
	f.seed(t)
	ctx := context.Background()

	_, err := f.reconciler.InitiateCheckout(ctx, "tx-1", domain.PhaseDeposit)
	require.NoError(t, err)
	f.gateway.Settle("tx-1", domain.PhaseDeposit, ChargeCaptured)

	tx, err := f.reconciler.ConfirmCardPayment(ctx, "tx-1", domain.PhaseDeposit)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDepositReceived, tx.Status)
	assert.True(t, tx.Deposit.Paid)
	assert.Equal(t, domain.MethodCard, tx.Deposit.Method)

	// The open session is dropped after crediting.
	session, err := f.sessions.Get(ctx, "tx-1", domain.PhaseDeposit)
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestConfirmCardPayment_PendingChargeFailsVerification(t *testing.T) {
	f := newReconcilerFixture(t)
	f.seed(t)
	ctx := context.Background()

	_, err := f.reconciler.InitiateCheckout(ctx, "tx-1", domain.PhaseDeposit)
	require.NoError(t, err)

	_, err = f.reconciler.ConfirmCardPayment(ctx, "tx-1", domain.PhaseDeposit)
	assert.ErrorIs(t, err, domain.ErrPaymentVerificationFailed)

	tx, err := f.store.Get(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAwaitingDeposit, tx.Status)
}

func TestSignalOrderings_CreditExactlyOnce(t *testing.T) {
	orderings := [][]string{
		{"sync", "webhook"},
		{"webhook", "sync"},
		{"sync", "webhook", "sync"},
		{"webhook", "webhook"},
	}

	for _, ordering := range orderings {
		f := newReconcilerFixture(t)
		f.seed(t)
		ctx := context.Background()

		_, err := f.reconciler.InitiateCheckout(ctx, "tx-1", domain.PhaseDeposit)
		require.NoError(t, err)
		f.gateway.Settle("tx-1", domain.PhaseDeposit, ChargeCaptured)

		for _, signal := range ordering {
			var tx *domain.Transaction
			switch signal {
			case "sync":
				tx, err = f.reconciler.ConfirmCardPayment(ctx, "tx-1", domain.PhaseDeposit)
			case "webhook":
				tx, err = f.reconciler.HandleWebhook(ctx, WebhookEvent{
					ID:            "evt-1",
					Type:          WebhookPaymentCaptured,
					TransactionID: "tx-1",
					Phase:         domain.PhaseDeposit,
				})
			}
			require.NoError(t, err, "ordering %v", ordering)
			assert.Equal(t, domain.StatusDepositReceived, tx.Status)
		}

		tx, err := f.store.Get(ctx, "tx-1")
		require.NoError(t, err)
		assert.Len(t, tx.Audit, 1, "ordering %v credited more than once", ordering)
	}
}

func TestHandleWebhook_FailedEventIsNoOp(t *testing.T) {
	f := newReconcilerFixture(t)
	f.seed(t)
	ctx := context.Background()

	tx, err := f.reconciler.HandleWebhook(ctx, WebhookEvent{
		ID:            "evt-2",
		Type:          WebhookPaymentFailed,
		TransactionID: "tx-1",
		Phase:         domain.PhaseDeposit,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAwaitingDeposit, tx.Status)
	assert.False(t, tx.Deposit.Paid)
}

func TestHandleWebhook_UnknownType(t *testing.T) {
	f := newReconcilerFixture(t)
	f.seed(t)

	_, err := f.reconciler.HandleWebhook(context.Background(), WebhookEvent{
		Type:          "payment.refunded",
		TransactionID: "tx-1",
		Phase:         domain.PhaseDeposit,
	})
	assert.Error(t, err)
}

func TestBankClaimLifecycle(t *testing.T) {
	f := newReconcilerFixture(t)
	f.seed(t)
	ctx := context.Background()

	tx, err := f.reconciler.ClaimBankTransfer(ctx, "tx-1", domain.PhaseDeposit, "REF-1", "receipt.png", []byte("proof-bytes"))
	require.NoError(t, err)
	assert.True(t, tx.Deposit.Claim.Pending)
	assert.Equal(t, "REF-1", tx.Deposit.Claim.ReferenceCode)
	assert.NotEmpty(t, tx.Deposit.Claim.ProofDocumentID)
	assert.Equal(t, domain.StatusAwaitingDeposit, tx.Status)

	// Only one claim may be open per phase.
	_, err = f.reconciler.ClaimBankTransfer(ctx, "tx-1", domain.PhaseDeposit, "REF-2", "", nil)
	assert.ErrorIs(t, err, domain.ErrDuplicateClaim)

	// Reject clears the claim and notifies the buyer.
	tx, err = f.reconciler.ConfirmBankTransfer(ctx, "tx-1", domain.PhaseDeposit, false)
	require.NoError(t, err)
	assert.False(t, tx.Deposit.Claim.Pending)
	assert.Equal(t, domain.StatusAwaitingDeposit, tx.Status)

	sent := f.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, domain.RoleBuyer, sent[0].Recipient)

	// Resubmit and accept.
	_, err = f.reconciler.ClaimBankTransfer(ctx, "tx-1", domain.PhaseDeposit, "REF-3", "", nil)
	require.NoError(t, err)

	tx, err = f.reconciler.ConfirmBankTransfer(ctx, "tx-1", domain.PhaseDeposit, true)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDepositReceived, tx.Status)
	assert.True(t, tx.Deposit.Paid)
	assert.Equal(t, domain.MethodBankTransfer, tx.Deposit.Method)
	assert.False(t, tx.Deposit.Claim.Pending)

	require.NotEmpty(t, tx.Audit)
	assert.Equal(t, domain.RoleAdmin, tx.Audit[len(tx.Audit)-1].Actor)
}

func TestConfirmBankTransfer_NoPendingClaim(t *testing.T) {
	f := newReconcilerFixture(t)
	f.seed(t)

	_, err := f.reconciler.ConfirmBankTransfer(context.Background(), "tx-1", domain.PhaseDeposit, true)
	assert.ErrorIs(t, err, domain.ErrNoPendingClaim)
}

func TestFinalPayment_SettlesToCompleted(t *testing.T) {
	f := newReconcilerFixture(t)
	f.seedAtPaymentPending(t)
	ctx := context.Background()

	session, err := f.reconciler.InitiateCheckout(ctx, "tx-1", domain.PhaseFinal)
	require.NoError(t, err)
	assert.Equal(t, int64(19000), session.Amount)

	f.gateway.Settle("tx-1", domain.PhaseFinal, ChargeCaptured)

	tx, err := f.reconciler.ConfirmCardPayment(ctx, "tx-1", domain.PhaseFinal)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, tx.Status)
	assert.True(t, tx.FinalPayment.Paid)

	// The settle transition is attributed to the system.
	last := tx.Audit[len(tx.Audit)-1]
	assert.Equal(t, domain.RoleSystem, last.Actor)
	assert.Equal(t, domain.StatusPaymentReceived, last.From)
	assert.Equal(t, domain.StatusCompleted, last.To)
}

func TestFinalPayment_ReplayAfterCompletedIsNoOp(t *testing.T) {
	f := newReconcilerFixture(t)
	f.seedAtPaymentPending(t)
	ctx := context.Background()

	_, err := f.reconciler.InitiateCheckout(ctx, "tx-1", domain.PhaseFinal)
	require.NoError(t, err)
	f.gateway.Settle("tx-1", domain.PhaseFinal, ChargeCaptured)

	_, err = f.reconciler.ConfirmCardPayment(ctx, "tx-1", domain.PhaseFinal)
	require.NoError(t, err)

	// Late webhook after settlement reports the applied state.
	tx, err := f.reconciler.HandleWebhook(ctx, WebhookEvent{
		ID:            "evt-3",
		Type:          WebhookPaymentCaptured,
		TransactionID: "tx-1",
		Phase:         domain.PhaseFinal,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, tx.Status)
}
