package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/satriadwik/dealroom-be/internal/domain"
	"github.com/satriadwik/dealroom-be/internal/workflow"
	"github.com/satriadwik/dealroom-be/pkg/logger"
)

// DealService orchestrates the lifecycle operations that are not payment
// signals: creation from accepted deal terms, the approval protocol, the
// admin review actions and the role-scoped projection.
type DealService interface {
	Create(ctx context.Context, listingID string, buyer, seller domain.Party) (*domain.Transaction, error)
	Get(ctx context.Context, id string) (*domain.Transaction, error)
	View(ctx context.Context, id string, role domain.Role, progress workflow.ClientProgress) (*workflow.View, error)
	Approve(ctx context.Context, id string, role domain.Role) (*domain.Transaction, error)
	ApproveDeposit(ctx context.Context, id string) (*domain.Transaction, error)
	EnterFinalReview(ctx context.Context, id string) (*domain.Transaction, error)
	Cancel(ctx context.Context, id, note string) (*domain.Transaction, error)
	Dispute(ctx context.Context, id, note string) (*domain.Transaction, error)
	PostMessage(ctx context.Context, id string, author domain.Role, body string) (*domain.Message, error)
	ListMessages(ctx context.Context, id string) ([]domain.Message, error)
}

type dealService struct {
	repo      domain.TransactionRepository
	catalog   domain.ListingCatalog
	documents domain.DocumentStore
	messages  domain.MessageLog
	logger    *logger.Logger
}

func NewDealService(
	repo domain.TransactionRepository,
	catalog domain.ListingCatalog,
	documents domain.DocumentStore,
	messages domain.MessageLog,
	log *logger.Logger,
) DealService {
	return &dealService{
		repo:      repo,
		catalog:   catalog,
		documents: documents,
		messages:  messages,
		logger:    log,
	}
}

// Create opens a transaction from an accepted offer. The financial terms
// come from the listing, never from the request.
func (s *dealService) Create(ctx context.Context, listingID string, buyer, seller domain.Party) (*domain.Transaction, error) {
	listing, err := s.catalog.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if seller.ID != listing.SellerID {
		return nil, fmt.Errorf("%w: seller %s does not own listing %s", domain.ErrPreconditionFailed, seller.ID, listingID)
	}

	id := uuid.New().String()
	ctx = logger.WithTransactionID(ctx, id)

	tx, err := domain.NewTransaction(id, listingID, buyer, seller, listing.Price, listing.DepositAmount)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, tx); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "Transaction created",
		"listing_id", listingID,
		"agreed_price", tx.AgreedPrice,
		"deposit_amount", tx.DepositAmount,
	)

	return tx, nil
}

func (s *dealService) Get(ctx context.Context, id string) (*domain.Transaction, error) {
	return s.repo.Get(ctx, id)
}

// View computes the role-scoped projection, merging in the chat log.
func (s *dealService) View(ctx context.Context, id string, role domain.Role, progress workflow.ClientProgress) (*workflow.View, error) {
	tx, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	view := workflow.Project(tx, role, progress)

	msgs, err := s.messages.List(ctx, id)
	if err != nil {
		s.logger.Warn(ctx, "Failed to load message log", "error", err)
	} else {
		view.Messages = msgs
	}

	return view, nil
}

// Approve records one party's agreement approval, or the admin's final
// approval once both parties have approved. Re-approving is a no-op.
func (s *dealService) Approve(ctx context.Context, id string, role domain.Role) (*domain.Transaction, error) {
	ctx = logger.WithTransactionID(ctx, id)

	tx, applied, err := s.repo.Approve(ctx, id, role)
	if err != nil {
		return nil, err
	}

	if !applied {
		s.logger.Debug(ctx, "Approval already recorded", "role", role)
		return tx, nil
	}

	s.logger.Info(ctx, "Agreement approved",
		"role", role,
		"status", tx.Status,
	)

	return tx, nil
}

// ApproveDeposit is the admin's deposit review: it moves the transaction
// into IN_REVIEW and generates the agreement document the parties will
// approve. The document is generated before the status moves, so a
// failing document collaborator leaves the transaction retryable; a
// retry after a partial earlier attempt attaches the missing document
// instead of re-transitioning.
func (s *dealService) ApproveDeposit(ctx context.Context, id string) (*domain.Transaction, error) {
	ctx = logger.WithTransactionID(ctx, id)

	tx, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	inReview := tx.Status == domain.StatusInReview
	if inReview && tx.AgreementDocumentID != "" {
		return tx, nil
	}
	if !inReview {
		if err := workflow.ValidateTransition(tx.Status, domain.StatusInReview); err != nil {
			return nil, err
		}
	}

	documentID, err := s.documents.GenerateAgreement(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("generate agreement document: %w", err)
	}

	if !inReview {
		if _, err := s.repo.ApplyTransition(ctx, id, domain.StatusInReview, domain.RoleAdmin, "deposit approved"); err != nil {
			return nil, err
		}
	}

	tx, err = s.repo.SetAgreementDocument(ctx, id, documentID)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "Deposit approved, agreement generated",
		"document_id", documentID,
	)

	return tx, nil
}

func (s *dealService) EnterFinalReview(ctx context.Context, id string) (*domain.Transaction, error) {
	return s.repo.ApplyTransition(ctx, id, domain.StatusAdminFinalReview, domain.RoleAdmin, "final review opened")
}

func (s *dealService) Cancel(ctx context.Context, id, note string) (*domain.Transaction, error) {
	return s.repo.ApplyTransition(ctx, id, domain.StatusCancelled, domain.RoleAdmin, note)
}

func (s *dealService) Dispute(ctx context.Context, id, note string) (*domain.Transaction, error) {
	return s.repo.ApplyTransition(ctx, id, domain.StatusDisputed, domain.RoleAdmin, note)
}

func (s *dealService) PostMessage(ctx context.Context, id string, author domain.Role, body string) (*domain.Message, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}

	msg := domain.Message{
		ID:            uuid.New().String(),
		TransactionID: id,
		Author:        author,
		Body:          body,
		SentAt:        time.Now().UTC(),
	}

	if err := s.messages.Append(ctx, msg); err != nil {
		return nil, err
	}

	return &msg, nil
}

func (s *dealService) ListMessages(ctx context.Context, id string) ([]domain.Message, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.messages.List(ctx, id)
}
