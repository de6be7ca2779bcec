package integrations

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/satriadwik/dealroom-be/internal/domain"
)

// Document is a stored file reference. Content stays opaque to the core.
type Document struct {
	ID            string
	TransactionID string
	Kind          string
	Filename      string
	Data          []byte
	CreatedAt     time.Time
}

// MemoryDocumentStore implements the document collaborator in process.
type MemoryDocumentStore struct {
	documents map[string]Document
	mu        sync.RWMutex
}

func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{documents: make(map[string]Document)}
}

func (s *MemoryDocumentStore) GenerateAgreement(ctx context.Context, transactionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	s.documents[id] = Document{
		ID:            id,
		TransactionID: transactionID,
		Kind:          "agreement",
		Filename:      fmt.Sprintf("agreement-%s.pdf", transactionID),
		CreatedAt:     time.Now().UTC(),
	}
	return id, nil
}

func (s *MemoryDocumentStore) AttachProof(ctx context.Context, transactionID string, phase domain.PaymentPhase, filename string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	s.documents[id] = Document{
		ID:            id,
		TransactionID: transactionID,
		Kind:          fmt.Sprintf("payment-proof-%s", phase),
		Filename:      filename,
		Data:          data,
		CreatedAt:     time.Now().UTC(),
	}
	return id, nil
}

func (s *MemoryDocumentStore) Get(id string) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, exists := s.documents[id]
	return doc, exists
}
