package integrations

import (
	"context"
	"sync"

	"github.com/satriadwik/dealroom-be/internal/domain"
)

// MemoryMessageLog is an append-only per-transaction chat log.
type MemoryMessageLog struct {
	messages map[string][]domain.Message
	mu       sync.RWMutex
}

func NewMemoryMessageLog() *MemoryMessageLog {
	return &MemoryMessageLog{messages: make(map[string][]domain.Message)}
}

func (l *MemoryMessageLog) Append(ctx context.Context, msg domain.Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.messages[msg.TransactionID] = append(l.messages[msg.TransactionID], msg)
	return nil
}

func (l *MemoryMessageLog) List(ctx context.Context, transactionID string) ([]domain.Message, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	msgs := l.messages[transactionID]
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}
