package workflow

import "github.com/satriadwik/dealroom-be/internal/domain"

// Step is the user-facing lifecycle position. It is always derived from
// the canonical status and never persisted, so the two representations
// cannot drift.
type Step string

const (
	StepConfirmIntent     Step = "confirm_intent"
	StepTermsAgreement    Step = "terms_agreement"
	StepDepositPayment    Step = "deposit_payment"
	StepAdminReview       Step = "admin_review"
	StepAgreementApproval Step = "agreement_approval"
	StepFinalPayment      Step = "final_payment"
	StepCompleted         Step = "completed"
	StepClosed            Step = "closed"
)

// ClientProgress carries the client-local pre-deposit gating flags. The
// store keeps the status at AWAITING_DEPOSIT for all three pre-deposit
// sub-steps; the caller tells us how far the buyer got locally.
type ClientProgress struct {
	IntentConfirmed bool `json:"intent_confirmed"`
	TermsAccepted   bool `json:"terms_accepted"`
}

// StepFor maps canonical status plus approval/document state to the
// active step.
func StepFor(tx *domain.Transaction, progress ClientProgress) Step {
	switch tx.Status {
	case domain.StatusAwaitingDeposit:
		if !progress.IntentConfirmed {
			return StepConfirmIntent
		}
		if !progress.TermsAccepted {
			return StepTermsAgreement
		}
		return StepDepositPayment
	case domain.StatusDepositReceived:
		return StepAdminReview
	case domain.StatusInReview:
		// IN_REVIEW spans two steps: the admin is still reviewing until
		// the agreement document exists, then the parties approve it.
		if tx.AgreementDocumentID == "" {
			return StepAdminReview
		}
		return StepAgreementApproval
	case domain.StatusBuyerApproved, domain.StatusSellerApproved,
		domain.StatusBothApproved, domain.StatusAdminFinalReview:
		return StepAgreementApproval
	case domain.StatusPaymentPending:
		return StepFinalPayment
	case domain.StatusPaymentReceived, domain.StatusCompleted:
		return StepCompleted
	}
	return StepClosed
}
