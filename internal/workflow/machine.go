package workflow

import (
	"fmt"

	"github.com/satriadwik/dealroom-be/internal/domain"
)

// transitions is the authoritative forward-only reachability table.
// CANCELLED and DISPUTED are reachable from every non-terminal status and
// are therefore not listed per row.
var transitions = map[domain.TransactionStatus][]domain.TransactionStatus{
	domain.StatusAwaitingDeposit:  {domain.StatusDepositReceived},
	domain.StatusDepositReceived:  {domain.StatusInReview},
	domain.StatusInReview:         {domain.StatusBuyerApproved, domain.StatusSellerApproved},
	domain.StatusBuyerApproved:    {domain.StatusBothApproved},
	domain.StatusSellerApproved:   {domain.StatusBothApproved},
	domain.StatusBothApproved:     {domain.StatusAdminFinalReview, domain.StatusPaymentPending},
	domain.StatusAdminFinalReview: {domain.StatusPaymentPending},
	domain.StatusPaymentPending:   {domain.StatusPaymentReceived},
	domain.StatusPaymentReceived:  {domain.StatusCompleted},
}

// CanTransition reports whether to is reachable from from in one step.
func CanTransition(from, to domain.TransactionStatus) bool {
	if from.Terminal() {
		return false
	}
	if to == domain.StatusCancelled || to == domain.StatusDisputed {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns ErrInvalidTransition when to is not
// reachable from from.
func ValidateTransition(from, to domain.TransactionStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, from, to)
	}
	return nil
}

// PaymentTransition returns the forward transition a credited payment of
// the given phase applies.
func PaymentTransition(phase domain.PaymentPhase) (from, to domain.TransactionStatus) {
	if phase == domain.PhaseFinal {
		return domain.StatusPaymentPending, domain.StatusPaymentReceived
	}
	return domain.StatusAwaitingDeposit, domain.StatusDepositReceived
}

// ApprovalOutcome is the approval gate. Given the current aggregate and
// the approving role it returns the status the approval moves the
// transaction to. A zero target with nil error means the flag is already
// set and the call is an idempotent no-op.
//
// Buyer and seller approvals commute; either may land first. Admin
// approval is the only administrator-gated step and is rejected with
// ErrPreconditionFailed until both parties have approved.
func ApprovalOutcome(tx *domain.Transaction, role domain.Role) (domain.TransactionStatus, error) {
	switch role {
	case domain.RoleBuyer, domain.RoleSeller:
		return partyApprovalOutcome(tx, role)
	case domain.RoleAdmin:
		return adminApprovalOutcome(tx)
	}
	return "", fmt.Errorf("%w: %s cannot approve", domain.ErrInvalidRole, role)
}

func partyApprovalOutcome(tx *domain.Transaction, role domain.Role) (domain.TransactionStatus, error) {
	if tx.ApprovalFor(role).Approved {
		return "", nil
	}
	if tx.AgreementDocumentID == "" {
		return "", fmt.Errorf("%w: agreement document not yet generated", domain.ErrPreconditionFailed)
	}

	var own, counterpart domain.TransactionStatus
	if role == domain.RoleBuyer {
		own, counterpart = domain.StatusBuyerApproved, domain.StatusSellerApproved
	} else {
		own, counterpart = domain.StatusSellerApproved, domain.StatusBuyerApproved
	}

	switch tx.Status {
	case domain.StatusInReview:
		return own, nil
	case counterpart:
		return domain.StatusBothApproved, nil
	}
	return "", fmt.Errorf("%w: cannot approve from %s", domain.ErrInvalidTransition, tx.Status)
}

func adminApprovalOutcome(tx *domain.Transaction) (domain.TransactionStatus, error) {
	if !tx.BuyerApproval.Approved || !tx.SellerApproval.Approved {
		return "", fmt.Errorf("%w: buyer and seller must approve before admin", domain.ErrPreconditionFailed)
	}
	if tx.AdminApproval.Approved {
		return "", nil
	}

	switch tx.Status {
	case domain.StatusBothApproved, domain.StatusAdminFinalReview:
		return domain.StatusPaymentPending, nil
	}
	return "", fmt.Errorf("%w: cannot approve from %s", domain.ErrInvalidTransition, tx.Status)
}
