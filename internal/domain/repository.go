package domain

import (
	"context"
	"time"
)

// StatusChange is the domain event emitted on every successful transition.
type StatusChange struct {
	TransactionID string            `json:"transaction_id"`
	From          TransactionStatus `json:"from"`
	To            TransactionStatus `json:"to"`
	Actor         Role              `json:"actor"`
	At            time.Time         `json:"at"`
}

// StatusChangePublisher receives the TransactionStatusChanged side effect
// of a successful write. Implementations must tolerate being called from
// inside the store's critical section and must not block.
type StatusChangePublisher interface {
	PublishStatusChange(ctx context.Context, change StatusChange)
}

// TransactionRepository is the canonical status store. All mutating
// operations serialize per transaction id and apply their guard
// (current status, paid flag, approval flag) atomically with the write,
// so concurrent confirmers cannot double-apply a transition.
type TransactionRepository interface {
	Create(ctx context.Context, tx *Transaction) error
	Get(ctx context.Context, id string) (*Transaction, error)

	// ApplyTransition moves the transaction to newStatus if that is
	// reachable from the current status. ErrInvalidTransition otherwise.
	ApplyTransition(ctx context.Context, id string, newStatus TransactionStatus, actor Role, note string) (*Transaction, error)

	// Approve sets the role's approval flag and advances the status per
	// the approval gate. The bool reports whether the flag was newly set;
	// an already-true flag is a no-op that re-timestamps nothing and
	// fires no event.
	Approve(ctx context.Context, id string, role Role) (*Transaction, bool, error)

	// MarkPaid credits the phase at most once: it sets the paid flag,
	// timestamp and method, resolves any pending bank claim, and applies
	// the forward transition. The bool reports whether this call was the
	// one that applied it; an already-paid phase returns the current
	// state with false and no error.
	MarkPaid(ctx context.Context, id string, phase PaymentPhase, method PaymentMethod, actor Role) (*Transaction, bool, error)

	// OpenBankClaim records a pending claim. ErrDuplicateClaim if one is
	// already awaiting verification for the phase.
	OpenBankClaim(ctx context.Context, id string, phase PaymentPhase, referenceCode, proofDocumentID string) (*Transaction, error)

	// RejectBankClaim clears the pending claim without touching status.
	RejectBankClaim(ctx context.Context, id string, phase PaymentPhase) (*Transaction, error)

	SetAgreementDocument(ctx context.Context, id, documentID string) (*Transaction, error)

	// Idempotency tracking for event consumers.
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID string) error
}
