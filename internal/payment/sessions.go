package payment

import (
	"context"
	"sync"
	"time"

	"github.com/satriadwik/dealroom-be/internal/domain"
)

// SessionStore keeps the open checkout session per (transaction, phase)
// so that a second initiate call returns the existing session instead of
// creating a duplicate. Entries expire after a TTL.
type SessionStore interface {
	Get(ctx context.Context, transactionID string, phase domain.PaymentPhase) (*CheckoutSession, error)
	Put(ctx context.Context, session *CheckoutSession, ttl time.Duration) error
	Delete(ctx context.Context, transactionID string, phase domain.PaymentPhase) error
}

type sessionEntry struct {
	session   CheckoutSession
	expiresAt time.Time
}

// MemorySessionStore is the single-process session registry used in
// tests and local runs.
type MemorySessionStore struct {
	sessions map[string]sessionEntry
	mu       sync.Mutex
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]sessionEntry)}
}

func (s *MemorySessionStore) Get(ctx context.Context, transactionID string, phase domain.PaymentPhase) (*CheckoutSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := chargeKey(transactionID, phase)
	entry, exists := s.sessions[key]
	if !exists {
		return nil, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(s.sessions, key)
		return nil, nil
	}

	session := entry.session
	return &session, nil
}

func (s *MemorySessionStore) Put(ctx context.Context, session *CheckoutSession, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[chargeKey(session.TransactionID, session.Phase)] = sessionEntry{
		session:   *session,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

func (s *MemorySessionStore) Delete(ctx context.Context, transactionID string, phase domain.PaymentPhase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, chargeKey(transactionID, phase))
	return nil
}
