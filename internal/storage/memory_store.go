package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/satriadwik/dealroom-be/internal/domain"
	"github.com/satriadwik/dealroom-be/internal/workflow"
)

// MemoryStore is the in-memory canonical status store. One mutex guards
// the whole map; every guard check (current status, paid flag, approval
// flag) happens inside the critical section together with its write, so
// concurrent confirmation signals serialize per transaction and exactly
// one of them applies a given transition.
type MemoryStore struct {
	transactions    map[string]*domain.Transaction
	processedEvents map[string]bool
	publisher       domain.StatusChangePublisher
	mu              sync.RWMutex
}

func NewMemoryStore(publisher domain.StatusChangePublisher) *MemoryStore {
	return &MemoryStore{
		transactions:    make(map[string]*domain.Transaction),
		processedEvents: make(map[string]bool),
		publisher:       publisher,
	}
}

func (s *MemoryStore) Create(ctx context.Context, tx *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transactions[tx.ID] = tx.Clone()

	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, exists := s.transactions[id]
	if !exists {
		return nil, domain.ErrNotFound
	}

	return tx.Clone(), nil
}

func (s *MemoryStore) ApplyTransition(ctx context.Context, id string, newStatus domain.TransactionStatus, actor domain.Role, note string) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, exists := s.transactions[id]
	if !exists {
		return nil, domain.ErrNotFound
	}

	if err := workflow.ValidateTransition(tx.Status, newStatus); err != nil {
		return nil, err
	}

	s.transition(ctx, tx, newStatus, actor, note)

	return tx.Clone(), nil
}

func (s *MemoryStore) Approve(ctx context.Context, id string, role domain.Role) (*domain.Transaction, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, exists := s.transactions[id]
	if !exists {
		return nil, false, domain.ErrNotFound
	}

	target, err := workflow.ApprovalOutcome(tx, role)
	if err != nil {
		return nil, false, err
	}
	if target == "" {
		// Flag already set: idempotent no-op, no re-timestamp, no event.
		return tx.Clone(), false, nil
	}

	now := time.Now().UTC()
	approval := tx.ApprovalFor(role)
	approval.Approved = true
	approval.ApprovedAt = &now

	s.transition(ctx, tx, target, role, "agreement approved")

	return tx.Clone(), true, nil
}

func (s *MemoryStore) MarkPaid(ctx context.Context, id string, phase domain.PaymentPhase, method domain.PaymentMethod, actor domain.Role) (*domain.Transaction, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, exists := s.transactions[id]
	if !exists {
		return nil, false, domain.ErrNotFound
	}

	record := tx.Payment(phase)
	if record.Paid {
		// A concurrent signal won the race; report the applied state.
		return tx.Clone(), false, nil
	}

	from, to := workflow.PaymentTransition(phase)
	if tx.Status != from {
		return nil, false, fmt.Errorf("%w: %s payment not expected in %s", domain.ErrInvalidTransition, phase, tx.Status)
	}

	now := time.Now().UTC()
	record.Paid = true
	record.PaidAt = &now
	record.Method = method
	if record.Claim.Pending {
		record.Claim.Pending = false
		record.Claim.ConfirmedAt = &now
	}

	s.transition(ctx, tx, to, actor, fmt.Sprintf("%s payment credited via %s", phase, method))

	return tx.Clone(), true, nil
}

func (s *MemoryStore) OpenBankClaim(ctx context.Context, id string, phase domain.PaymentPhase, referenceCode, proofDocumentID string) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, exists := s.transactions[id]
	if !exists {
		return nil, domain.ErrNotFound
	}

	record := tx.Payment(phase)
	if record.Paid {
		return nil, fmt.Errorf("%w: %s already paid", domain.ErrInvalidTransition, phase)
	}
	if record.Claim.Pending {
		return nil, domain.ErrDuplicateClaim
	}

	from, _ := workflow.PaymentTransition(phase)
	if tx.Status != from {
		return nil, fmt.Errorf("%w: %s payment not expected in %s", domain.ErrInvalidTransition, phase, tx.Status)
	}

	now := time.Now().UTC()
	record.Claim = domain.BankClaim{
		Pending:         true,
		ReferenceCode:   referenceCode,
		ProofDocumentID: proofDocumentID,
		ClaimedAt:       &now,
	}
	tx.UpdatedAt = now

	return tx.Clone(), nil
}

func (s *MemoryStore) RejectBankClaim(ctx context.Context, id string, phase domain.PaymentPhase) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, exists := s.transactions[id]
	if !exists {
		return nil, domain.ErrNotFound
	}

	record := tx.Payment(phase)
	if !record.Claim.Pending {
		return nil, domain.ErrNoPendingClaim
	}

	// Status is untouched; the claimant may resubmit.
	record.Claim = domain.BankClaim{}
	tx.UpdatedAt = time.Now().UTC()

	return tx.Clone(), nil
}

func (s *MemoryStore) SetAgreementDocument(ctx context.Context, id, documentID string) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, exists := s.transactions[id]
	if !exists {
		return nil, domain.ErrNotFound
	}

	tx.AgreementDocumentID = documentID
	tx.UpdatedAt = time.Now().UTC()

	return tx.Clone(), nil
}

func (s *MemoryStore) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.processedEvents[eventID], nil
}

func (s *MemoryStore) MarkEventProcessed(ctx context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.processedEvents[eventID] = true

	return nil
}

// transition mutates status, appends the audit entry and emits the
// domain event. Callers hold the write lock and have already validated
// reachability.
func (s *MemoryStore) transition(ctx context.Context, tx *domain.Transaction, to domain.TransactionStatus, actor domain.Role, note string) {
	from := tx.Status
	now := time.Now().UTC()

	tx.Status = to
	tx.UpdatedAt = now
	tx.Audit = append(tx.Audit, domain.AuditEntry{
		Actor: actor,
		From:  from,
		To:    to,
		Note:  note,
		At:    now,
	})

	if s.publisher != nil {
		s.publisher.PublishStatusChange(ctx, domain.StatusChange{
			TransactionID: tx.ID,
			From:          from,
			To:            to,
			Actor:         actor,
			At:            now,
		})
	}
}
