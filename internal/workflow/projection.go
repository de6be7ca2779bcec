package workflow

import (
	"time"

	"github.com/satriadwik/dealroom-be/internal/domain"
)

// Action is one operation a role may perform at the current step.
type Action string

const (
	ActionConfirmIntent    Action = "confirm_intent"
	ActionAcceptTerms      Action = "accept_terms"
	ActionPayDeposit       Action = "pay_deposit"
	ActionPayFinal         Action = "pay_final"
	ActionClaimBank        Action = "claim_bank_transfer"
	ActionApproveAgreement Action = "approve_agreement"
	ActionApproveDeposit   Action = "approve_deposit"
	ActionEnterFinalReview Action = "enter_final_review"
	ActionConfirmBankClaim Action = "confirm_bank_claim"
	ActionCancel           Action = "cancel"
	ActionDispute          Action = "dispute"
)

// actionTable maps (role, step) to candidate actions. Candidates are
// filtered against the live aggregate afterwards; the table keeps the
// role branching in one place instead of scattered conditionals.
var actionTable = map[domain.Role]map[Step][]Action{
	domain.RoleBuyer: {
		StepConfirmIntent:     {ActionConfirmIntent},
		StepTermsAgreement:    {ActionAcceptTerms},
		StepDepositPayment:    {ActionPayDeposit, ActionClaimBank},
		StepAgreementApproval: {ActionApproveAgreement},
		StepFinalPayment:      {ActionPayFinal, ActionClaimBank},
	},
	domain.RoleSeller: {
		StepAgreementApproval: {ActionApproveAgreement},
	},
	domain.RoleAdmin: {
		StepAdminReview:       {ActionApproveDeposit, ActionConfirmBankClaim, ActionCancel, ActionDispute},
		StepDepositPayment:    {ActionConfirmBankClaim, ActionCancel, ActionDispute},
		StepAgreementApproval: {ActionApproveAgreement, ActionEnterFinalReview, ActionCancel, ActionDispute},
		StepFinalPayment:      {ActionConfirmBankClaim, ActionCancel, ActionDispute},
	},
}

// PartyView is a possibly redacted rendering of the counterpart.
type PartyView struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type PaymentView struct {
	Phase        domain.PaymentPhase  `json:"phase"`
	Amount       int64                `json:"amount"`
	Method       domain.PaymentMethod `json:"method,omitempty"`
	Paid         bool                 `json:"paid"`
	PaidAt       *time.Time           `json:"paid_at,omitempty"`
	ClaimPending bool                 `json:"claim_pending"`
}

// View is the role-scoped projection of a transaction. A role with no
// defined action for the current step gets Waiting=true and an empty
// action list rather than an error.
type View struct {
	TransactionID      string                   `json:"transaction_id"`
	ListingID          string                   `json:"listing_id"`
	Role               domain.Role              `json:"role"`
	Status             domain.TransactionStatus `json:"status"`
	Step               Step                     `json:"step"`
	Actions            []Action                 `json:"actions"`
	Waiting            bool                     `json:"waiting"`
	AgreedPrice        int64                    `json:"agreed_price"`
	DepositAmount      int64                    `json:"deposit_amount"`
	FinalPaymentAmount *int64                   `json:"final_payment_amount,omitempty"`
	Deposit            PaymentView              `json:"deposit"`
	FinalPayment       PaymentView              `json:"final_payment"`
	Counterpart        PartyView                `json:"counterpart"`
	AgreementReady     bool                     `json:"agreement_ready"`
	Messages           []domain.Message         `json:"messages,omitempty"`
}

// Project computes the role-scoped view of tx.
func Project(tx *domain.Transaction, role domain.Role, progress ClientProgress) *View {
	step := StepFor(tx, progress)

	// The intent/terms sub-steps are buyer-local; every other role sees
	// the deposit step as a whole, so admin actions (confirming a
	// pending bank claim, closing the deal) never depend on how far the
	// buyer's client got.
	if role != domain.RoleBuyer && tx.Status == domain.StatusAwaitingDeposit {
		step = StepDepositPayment
	}

	v := &View{
		TransactionID:  tx.ID,
		ListingID:      tx.ListingID,
		Role:           role,
		Status:         tx.Status,
		Step:           step,
		Actions:        availableActions(tx, role, step),
		AgreedPrice:    tx.AgreedPrice,
		DepositAmount:  tx.DepositAmount,
		Deposit:        paymentView(tx.Deposit),
		FinalPayment:   paymentView(tx.FinalPayment),
		Counterpart:    counterpartView(tx, role),
		AgreementReady: tx.AgreementDocumentID != "",
	}
	v.Waiting = len(v.Actions) == 0 && !tx.Status.Terminal()

	// The remaining balance is disclosed to the buyer only once all
	// three approvals have unlocked the final payment.
	if role != domain.RoleBuyer || finalAmountDisclosed(tx.Status) {
		amount := tx.FinalPaymentAmount
		v.FinalPaymentAmount = &amount
	}

	return v
}

func finalAmountDisclosed(s domain.TransactionStatus) bool {
	switch s {
	case domain.StatusPaymentPending, domain.StatusPaymentReceived, domain.StatusCompleted:
		return true
	}
	return false
}

// counterpartView redacts the other party's contact details until the
// transaction completes. This is a confidentiality invariant: buyer and
// seller never see each other's contact information before COMPLETED.
// The admin always sees both sides.
func counterpartView(tx *domain.Transaction, role domain.Role) PartyView {
	var p domain.Party
	switch role {
	case domain.RoleBuyer:
		p = tx.Seller
	case domain.RoleSeller:
		p = tx.Buyer
	default:
		return PartyView{Name: tx.Buyer.Name + " / " + tx.Seller.Name}
	}

	if tx.Status != domain.StatusCompleted {
		return PartyView{Name: p.Name}
	}
	return PartyView{Name: p.Name, Email: p.Email, Phone: p.Phone}
}

func paymentView(p domain.PaymentRecord) PaymentView {
	return PaymentView{
		Phase:        p.Phase,
		Amount:       p.Amount,
		Method:       p.Method,
		Paid:         p.Paid,
		PaidAt:       p.PaidAt,
		ClaimPending: p.Claim.Pending,
	}
}

func availableActions(tx *domain.Transaction, role domain.Role, step Step) []Action {
	candidates := actionTable[role][step]
	actions := make([]Action, 0, len(candidates))
	for _, a := range candidates {
		if actionApplies(tx, role, a) {
			actions = append(actions, a)
		}
	}
	return actions
}

func actionApplies(tx *domain.Transaction, role domain.Role, a Action) bool {
	switch a {
	case ActionPayDeposit, ActionClaimBank, ActionPayFinal:
		phase := domain.PhaseDeposit
		if a == ActionPayFinal || tx.Status == domain.StatusPaymentPending {
			phase = domain.PhaseFinal
		}
		rec := tx.Payment(phase)
		return !rec.Paid && !rec.Claim.Pending
	case ActionApproveAgreement:
		if role == domain.RoleAdmin {
			return tx.BuyerApproval.Approved && tx.SellerApproval.Approved && !tx.AdminApproval.Approved
		}
		approval := tx.ApprovalFor(role)
		return approval != nil && !approval.Approved && tx.AgreementDocumentID != ""
	case ActionApproveDeposit:
		return tx.Status == domain.StatusDepositReceived
	case ActionEnterFinalReview:
		return tx.Status == domain.StatusBothApproved
	case ActionConfirmBankClaim:
		return tx.Deposit.Claim.Pending || tx.FinalPayment.Claim.Pending
	case ActionCancel, ActionDispute:
		return !tx.Status.Terminal()
	}
	return true
}
