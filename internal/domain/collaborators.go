package domain

import (
	"context"
	"time"
)

// Listing carries the immutable deal terms agreed before the transaction
// was opened. Supplied by the catalog service, read-only to this core.
type Listing struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	SellerID      string `json:"seller_id"`
	Price         int64  `json:"price"`
	DepositAmount int64  `json:"deposit_amount"`
}

type ListingCatalog interface {
	GetListing(ctx context.Context, id string) (*Listing, error)
}

// DocumentStore generates the agreement document when the admin approves
// the deposit, and stores payment-proof uploads for bank transfer claims.
type DocumentStore interface {
	GenerateAgreement(ctx context.Context, transactionID string) (documentID string, err error)
	AttachProof(ctx context.Context, transactionID string, phase PaymentPhase, filename string, data []byte) (documentID string, err error)
}

// Message is one entry of the per-transaction chat log. The log is not
// part of the state machine; the projection layer reads it for display.
type Message struct {
	ID            string    `json:"id"`
	TransactionID string    `json:"transaction_id"`
	Author        Role      `json:"author"`
	Body          string    `json:"body"`
	SentAt        time.Time `json:"sent_at"`
}

type MessageLog interface {
	Append(ctx context.Context, msg Message) error
	List(ctx context.Context, transactionID string) ([]Message, error)
}

// Notification is a user-facing message handed to the notification
// service; delivery and retry are that service's responsibility.
type Notification struct {
	TransactionID string `json:"transaction_id"`
	Recipient     Role   `json:"recipient"`
	Subject       string `json:"subject"`
	Body          string `json:"body"`
}

type NotificationSender interface {
	Send(ctx context.Context, n Notification) error
}
