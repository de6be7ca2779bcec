package domain

import (
	"fmt"
	"time"
)

type TransactionStatus string

const (
	StatusAwaitingDeposit  TransactionStatus = "AWAITING_DEPOSIT"
	StatusDepositReceived  TransactionStatus = "DEPOSIT_RECEIVED"
	StatusInReview         TransactionStatus = "IN_REVIEW"
	StatusBuyerApproved    TransactionStatus = "BUYER_APPROVED"
	StatusSellerApproved   TransactionStatus = "SELLER_APPROVED"
	StatusBothApproved     TransactionStatus = "BOTH_APPROVED"
	StatusAdminFinalReview TransactionStatus = "ADMIN_FINAL_REVIEW"
	StatusPaymentPending   TransactionStatus = "PAYMENT_PENDING"
	StatusPaymentReceived  TransactionStatus = "PAYMENT_RECEIVED"
	StatusCompleted        TransactionStatus = "COMPLETED"
	StatusCancelled        TransactionStatus = "CANCELLED"
	StatusDisputed         TransactionStatus = "DISPUTED"
)

// Terminal reports whether no further transitions are permitted from s.
func (s TransactionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusDisputed
}

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
	RoleSystem Role = "system"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleBuyer, RoleSeller, RoleAdmin, RoleSystem:
		return Role(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
}

type PaymentPhase string

const (
	PhaseDeposit PaymentPhase = "deposit"
	PhaseFinal   PaymentPhase = "final"
)

func ParsePhase(s string) (PaymentPhase, error) {
	switch PaymentPhase(s) {
	case PhaseDeposit, PhaseFinal:
		return PaymentPhase(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPhase, s)
}

type PaymentMethod string

const (
	MethodCard         PaymentMethod = "CARD"
	MethodBankTransfer PaymentMethod = "BANK_TRANSFER"
)

// Party identifies one side of the deal. Contact fields are subject to
// redaction in role-scoped views until the transaction completes.
type Party struct {
	ID    string `json:"id" bson:"id"`
	Name  string `json:"name" bson:"name"`
	Email string `json:"email,omitempty" bson:"email,omitempty"`
	Phone string `json:"phone,omitempty" bson:"phone,omitempty"`
}

// Approval is a monotonic flag: ApprovedAt is set exactly when Approved
// flips to true and is never cleared afterwards.
type Approval struct {
	Approved   bool       `json:"approved" bson:"approved"`
	ApprovedAt *time.Time `json:"approved_at,omitempty" bson:"approved_at,omitempty"`
}

// BankClaim is a payer's self-reported declaration of a manual transfer.
// It never credits a payment by itself; an admin decision does.
type BankClaim struct {
	Pending         bool       `json:"pending" bson:"pending"`
	ReferenceCode   string     `json:"reference_code,omitempty" bson:"reference_code,omitempty"`
	ProofDocumentID string     `json:"proof_document_id,omitempty" bson:"proof_document_id,omitempty"`
	ClaimedAt       *time.Time `json:"claimed_at,omitempty" bson:"claimed_at,omitempty"`
	ConfirmedAt     *time.Time `json:"confirmed_at,omitempty" bson:"confirmed_at,omitempty"`
}

type PaymentRecord struct {
	Phase  PaymentPhase  `json:"phase" bson:"phase"`
	Amount int64         `json:"amount" bson:"amount"`
	Method PaymentMethod `json:"method,omitempty" bson:"method,omitempty"`
	Paid   bool          `json:"paid" bson:"paid"`
	PaidAt *time.Time    `json:"paid_at,omitempty" bson:"paid_at,omitempty"`
	Claim  BankClaim     `json:"claim" bson:"claim"`
}

// AuditEntry records one applied transition.
type AuditEntry struct {
	Actor Role              `json:"actor" bson:"actor"`
	From  TransactionStatus `json:"from" bson:"from"`
	To    TransactionStatus `json:"to" bson:"to"`
	Note  string            `json:"note,omitempty" bson:"note,omitempty"`
	At    time.Time         `json:"at" bson:"at"`
}

// Transaction is the aggregate root of one brokered deal. Amounts are in
// minor currency units. The user-facing workflow step is never stored
// here; it is derived from Status and the approval flags on read.
type Transaction struct {
	ID                  string            `json:"id" bson:"_id"`
	ListingID           string            `json:"listing_id" bson:"listing_id"`
	Buyer               Party             `json:"buyer" bson:"buyer"`
	Seller              Party             `json:"seller" bson:"seller"`
	AgreedPrice         int64             `json:"agreed_price" bson:"agreed_price"`
	DepositAmount       int64             `json:"deposit_amount" bson:"deposit_amount"`
	FinalPaymentAmount  int64             `json:"final_payment_amount" bson:"final_payment_amount"`
	Status              TransactionStatus `json:"status" bson:"status"`
	BuyerApproval       Approval          `json:"buyer_approval" bson:"buyer_approval"`
	SellerApproval      Approval          `json:"seller_approval" bson:"seller_approval"`
	AdminApproval       Approval          `json:"admin_approval" bson:"admin_approval"`
	Deposit             PaymentRecord     `json:"deposit" bson:"deposit"`
	FinalPayment        PaymentRecord     `json:"final_payment" bson:"final_payment"`
	AgreementDocumentID string            `json:"agreement_document_id,omitempty" bson:"agreement_document_id,omitempty"`
	Audit               []AuditEntry      `json:"audit" bson:"audit"`
	CreatedAt           time.Time         `json:"created_at" bson:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at" bson:"updated_at"`
}

// NewTransaction builds an AWAITING_DEPOSIT aggregate from accepted deal
// terms. The final payment amount is derived, never supplied.
func NewTransaction(id, listingID string, buyer, seller Party, agreedPrice, depositAmount int64) (*Transaction, error) {
	if agreedPrice <= 0 || depositAmount <= 0 || depositAmount > agreedPrice {
		return nil, fmt.Errorf("%w: agreed_price=%d deposit_amount=%d", ErrInvalidAmounts, agreedPrice, depositAmount)
	}

	now := time.Now().UTC()

	return &Transaction{
		ID:                 id,
		ListingID:          listingID,
		Buyer:              buyer,
		Seller:             seller,
		AgreedPrice:        agreedPrice,
		DepositAmount:      depositAmount,
		FinalPaymentAmount: agreedPrice - depositAmount,
		Status:             StatusAwaitingDeposit,
		Deposit:            PaymentRecord{Phase: PhaseDeposit, Amount: depositAmount},
		FinalPayment:       PaymentRecord{Phase: PhaseFinal, Amount: agreedPrice - depositAmount},
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// Payment returns the record for the given phase.
func (t *Transaction) Payment(phase PaymentPhase) *PaymentRecord {
	if phase == PhaseFinal {
		return &t.FinalPayment
	}
	return &t.Deposit
}

// ApprovalFor returns the approval flag owned by the given role, or nil
// for roles that do not hold one.
func (t *Transaction) ApprovalFor(role Role) *Approval {
	switch role {
	case RoleBuyer:
		return &t.BuyerApproval
	case RoleSeller:
		return &t.SellerApproval
	case RoleAdmin:
		return &t.AdminApproval
	}
	return nil
}

// Clone returns a deep copy so store internals never leak mutable state.
func (t *Transaction) Clone() *Transaction {
	cp := *t
	cp.Audit = make([]AuditEntry, len(t.Audit))
	copy(cp.Audit, t.Audit)
	cp.BuyerApproval = cloneApproval(t.BuyerApproval)
	cp.SellerApproval = cloneApproval(t.SellerApproval)
	cp.AdminApproval = cloneApproval(t.AdminApproval)
	cp.Deposit = clonePayment(t.Deposit)
	cp.FinalPayment = clonePayment(t.FinalPayment)
	return &cp
}

func cloneApproval(a Approval) Approval {
	if a.ApprovedAt != nil {
		at := *a.ApprovedAt
		a.ApprovedAt = &at
	}
	return a
}

func clonePayment(p PaymentRecord) PaymentRecord {
	if p.PaidAt != nil {
		at := *p.PaidAt
		p.PaidAt = &at
	}
	if p.Claim.ClaimedAt != nil {
		at := *p.Claim.ClaimedAt
		p.Claim.ClaimedAt = &at
	}
	if p.Claim.ConfirmedAt != nil {
		at := *p.Claim.ConfirmedAt
		p.Claim.ConfirmedAt = &at
	}
	return p
}
