package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/satriadwik/dealroom-be/internal/domain"
)

type ChargeState string

const (
	ChargeCaptured ChargeState = "captured"
	ChargePending  ChargeState = "pending"
	ChargeFailed   ChargeState = "failed"
)

// CheckoutSession is an open gateway checkout for one (transaction,
// phase). The payer is redirected to RedirectURL to complete payment.
type CheckoutSession struct {
	ID            string              `json:"id"`
	TransactionID string              `json:"transaction_id"`
	Phase         domain.PaymentPhase `json:"phase"`
	Amount        int64               `json:"amount"`
	RedirectURL   string              `json:"redirect_url"`
	CreatedAt     time.Time           `json:"created_at"`
}

// Gateway is the payment service provider contract: checkout-session
// creation plus the synchronous authoritative charge-status query.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, transactionID string, phase domain.PaymentPhase, amount int64) (*CheckoutSession, error)
	ChargeStatus(ctx context.Context, transactionID string, phase domain.PaymentPhase) (ChargeState, error)
}

// SimulatedGateway stands in for the real provider in local deployments
// and tests. Charges start pending and are settled by test hooks or the
// simulator endpoint.
type SimulatedGateway struct {
	baseURL string
	charges map[string]ChargeState
	mu      sync.Mutex
}

func NewSimulatedGateway(baseURL string) *SimulatedGateway {
	return &SimulatedGateway{
		baseURL: baseURL,
		charges: make(map[string]ChargeState),
	}
}

func (g *SimulatedGateway) CreateCheckoutSession(ctx context.Context, transactionID string, phase domain.PaymentPhase, amount int64) (*CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := chargeKey(transactionID, phase)
	if _, exists := g.charges[key]; !exists {
		g.charges[key] = ChargePending
	}

	id := uuid.New().String()
	return &CheckoutSession{
		ID:            id,
		TransactionID: transactionID,
		Phase:         phase,
		Amount:        amount,
		RedirectURL:   fmt.Sprintf("%s/checkout/%s", g.baseURL, id),
		CreatedAt:     time.Now().UTC(),
	}, nil
}

func (g *SimulatedGateway) ChargeStatus(ctx context.Context, transactionID string, phase domain.PaymentPhase) (ChargeState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	state, exists := g.charges[chargeKey(transactionID, phase)]
	if !exists {
		return ChargeFailed, fmt.Errorf("%w: no charge for %s/%s", domain.ErrPaymentVerificationFailed, transactionID, phase)
	}
	return state, nil
}

// Settle marks a simulated charge as captured or failed.
func (g *SimulatedGateway) Settle(transactionID string, phase domain.PaymentPhase, state ChargeState) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.charges[chargeKey(transactionID, phase)] = state
}

func chargeKey(transactionID string, phase domain.PaymentPhase) string {
	return fmt.Sprintf("%s:%s", transactionID, phase)
}
