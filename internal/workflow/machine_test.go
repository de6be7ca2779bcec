package workflow

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satriadwik/dealroom-be/internal/domain"
)

func newTestTx(t *testing.T) *domain.Transaction {
	t.Helper()

	tx, err := domain.NewTransaction("tx-1", "listing-1",
		domain.Party{ID: "b-1", Name: "Budi"},
		domain.Party{ID: "s-1", Name: "Sari"},
		20000, 1000,
	)
	require.NoError(t, err)
	return tx
}

func TestCanTransition_ForwardPath(t *testing.T) {
	path := []domain.TransactionStatus{
		domain.StatusAwaitingDeposit,
		domain.StatusDepositReceived,
		domain.StatusInReview,
		domain.StatusBuyerApproved,
		domain.StatusBothApproved,
		domain.StatusPaymentPending,
		domain.StatusPaymentReceived,
		domain.StatusCompleted,
	}

	for i := 0; i < len(path)-1; i++ {
		assert.True(t, CanTransition(path[i], path[i+1]),
			"%s -> %s should be reachable", path[i], path[i+1])
	}
}

func TestCanTransition_NoSkipping(t *testing.T) {
	assert.False(t, CanTransition(domain.StatusAwaitingDeposit, domain.StatusInReview))
	assert.False(t, CanTransition(domain.StatusAwaitingDeposit, domain.StatusPaymentPending))
	assert.False(t, CanTransition(domain.StatusDepositReceived, domain.StatusBothApproved))
	assert.False(t, CanTransition(domain.StatusInReview, domain.StatusPaymentPending))
	assert.False(t, CanTransition(domain.StatusPaymentPending, domain.StatusCompleted))
}

func TestCanTransition_NoGoingBack(t *testing.T) {
	assert.False(t, CanTransition(domain.StatusDepositReceived, domain.StatusAwaitingDeposit))
	assert.False(t, CanTransition(domain.StatusPaymentPending, domain.StatusInReview))
	assert.False(t, CanTransition(domain.StatusBothApproved, domain.StatusBuyerApproved))
}

func TestCanTransition_CancelAndDisputeFromAnyNonTerminal(t *testing.T) {
	nonTerminal := []domain.TransactionStatus{
		domain.StatusAwaitingDeposit,
		domain.StatusDepositReceived,
		domain.StatusInReview,
		domain.StatusBuyerApproved,
		domain.StatusSellerApproved,
		domain.StatusBothApproved,
		domain.StatusAdminFinalReview,
		domain.StatusPaymentPending,
		domain.StatusPaymentReceived,
	}

	for _, from := range nonTerminal {
		assert.True(t, CanTransition(from, domain.StatusCancelled), "cancel from %s", from)
		assert.True(t, CanTransition(from, domain.StatusDisputed), "dispute from %s", from)
	}
}

func TestCanTransition_TerminalStatesAreFinal(t *testing.T) {
	terminal := []domain.TransactionStatus{
		domain.StatusCompleted,
		domain.StatusCancelled,
		domain.StatusDisputed,
	}
	targets := []domain.TransactionStatus{
		domain.StatusAwaitingDeposit,
		domain.StatusInReview,
		domain.StatusCancelled,
		domain.StatusDisputed,
		domain.StatusCompleted,
	}

	for _, from := range terminal {
		for _, to := range targets {
			assert.False(t, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestValidateTransition_ReturnsInvalidTransition(t *testing.T) {
	err := ValidateTransition(domain.StatusAwaitingDeposit, domain.StatusCompleted)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	assert.NoError(t, ValidateTransition(domain.StatusAwaitingDeposit, domain.StatusDepositReceived))
}

func TestPaymentTransition(t *testing.T) {
	from, to := PaymentTransition(domain.PhaseDeposit)
	assert.Equal(t, domain.StatusAwaitingDeposit, from)
	assert.Equal(t, domain.StatusDepositReceived, to)

	from, to = PaymentTransition(domain.PhaseFinal)
	assert.Equal(t, domain.StatusPaymentPending, from)
	assert.Equal(t, domain.StatusPaymentReceived, to)
}

func TestApprovalOutcome_BuyerThenSeller(t *testing.T) {
	tx := newTestTx(t)
	tx.Status = domain.StatusInReview
	tx.AgreementDocumentID = "doc-1"

	target, err := ApprovalOutcome(tx, domain.RoleBuyer)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusBuyerApproved, target)

	now := time.Now()
	tx.Status = domain.StatusBuyerApproved
	tx.BuyerApproval = domain.Approval{Approved: true, ApprovedAt: &now}

	target, err = ApprovalOutcome(tx, domain.RoleSeller)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusBothApproved, target)
}

func TestApprovalOutcome_SellerThenBuyer(t *testing.T) {
	tx := newTestTx(t)
	tx.Status = domain.StatusInReview
	tx.AgreementDocumentID = "doc-1"

	target, err := ApprovalOutcome(tx, domain.RoleSeller)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSellerApproved, target)

	now := time.Now()
	tx.Status = domain.StatusSellerApproved
	tx.SellerApproval = domain.Approval{Approved: true, ApprovedAt: &now}

	target, err = ApprovalOutcome(tx, domain.RoleBuyer)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusBothApproved, target)
}

func TestApprovalOutcome_ReApprovalIsNoOp(t *testing.T) {
	tx := newTestTx(t)
	tx.Status = domain.StatusBuyerApproved
	tx.AgreementDocumentID = "doc-1"
	now := time.Now()
	tx.BuyerApproval = domain.Approval{Approved: true, ApprovedAt: &now}

	target, err := ApprovalOutcome(tx, domain.RoleBuyer)
	require.NoError(t, err)
	assert.Empty(t, target)
}

func TestApprovalOutcome_RequiresAgreementDocument(t *testing.T) {
	tx := newTestTx(t)
	tx.Status = domain.StatusInReview

	_, err := ApprovalOutcome(tx, domain.RoleBuyer)
	assert.ErrorIs(t, err, domain.ErrPreconditionFailed)
}

func TestApprovalOutcome_AdminGate(t *testing.T) {
	now := time.Now()

	// Admin approval is rejected in every ordering where the two
	// parties have not both approved yet.
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		roles := []domain.Role{domain.RoleBuyer, domain.RoleSeller, domain.RoleAdmin}
		rng.Shuffle(len(roles), func(a, b int) { roles[a], roles[b] = roles[b], roles[a] })

		tx := newTestTx(t)
		tx.Status = domain.StatusInReview
		tx.AgreementDocumentID = "doc-1"

		for _, role := range roles {
			target, err := ApprovalOutcome(tx, role)
			if role == domain.RoleAdmin && (!tx.BuyerApproval.Approved || !tx.SellerApproval.Approved) {
				assert.ErrorIs(t, err, domain.ErrPreconditionFailed)
				continue
			}

			require.NoError(t, err, "role %s from %s", role, tx.Status)
			tx.Status = target
			approval := tx.ApprovalFor(role)
			approval.Approved = true
			approval.ApprovedAt = &now
		}
	}
}

func TestApprovalOutcome_AdminFromBothApprovedAndFinalReview(t *testing.T) {
	now := time.Now()

	for _, status := range []domain.TransactionStatus{domain.StatusBothApproved, domain.StatusAdminFinalReview} {
		tx := newTestTx(t)
		tx.Status = status
		tx.AgreementDocumentID = "doc-1"
		tx.BuyerApproval = domain.Approval{Approved: true, ApprovedAt: &now}
		tx.SellerApproval = domain.Approval{Approved: true, ApprovedAt: &now}

		target, err := ApprovalOutcome(tx, domain.RoleAdmin)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPaymentPending, target)
	}
}

func TestApprovalOutcome_SystemCannotApprove(t *testing.T) {
	tx := newTestTx(t)
	_, err := ApprovalOutcome(tx, domain.RoleSystem)
	assert.ErrorIs(t, err, domain.ErrInvalidRole)
}

func TestApprovalOutcome_WrongStatus(t *testing.T) {
	tx := newTestTx(t)
	tx.AgreementDocumentID = "doc-1"
	tx.Status = domain.StatusAwaitingDeposit

	_, err := ApprovalOutcome(tx, domain.RoleBuyer)
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
}
