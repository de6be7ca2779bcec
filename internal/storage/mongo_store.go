package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/satriadwik/dealroom-be/internal/domain"
	"github.com/satriadwik/dealroom-be/internal/workflow"
)

const casAttempts = 3

// Connect connects to the mongodb server and returns the client.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	timeout := time.Second * 5
	opts := &options.ClientOptions{ServerSelectionTimeout: &timeout}

	client, err := mongo.Connect(ctx, opts.ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	return client, nil
}

// MongoStore is the durable canonical status store. Per-transaction
// serialization relies on conditional updates: every write filters on
// the guard it depends on (current status, paid flag, approval flag), so
// of two racing confirmers exactly one matches the document and the
// other observes the already-applied state.
type MongoStore struct {
	client    *mongo.Client
	database  string
	publisher domain.StatusChangePublisher
}

func NewMongoStore(client *mongo.Client, database string, publisher domain.StatusChangePublisher) *MongoStore {
	return &MongoStore{client: client, database: database, publisher: publisher}
}

func (s *MongoStore) transactions() *mongo.Collection {
	return s.client.Database(s.database).Collection("transactions")
}

func (s *MongoStore) processedEvents() *mongo.Collection {
	return s.client.Database(s.database).Collection("processed_events")
}

func (s *MongoStore) Create(ctx context.Context, tx *domain.Transaction) error {
	_, err := s.transactions().InsertOne(ctx, tx)
	return err
}

func (s *MongoStore) Get(ctx context.Context, id string) (*domain.Transaction, error) {
	var tx domain.Transaction
	err := s.transactions().FindOne(ctx, bson.M{"_id": id}).Decode(&tx)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (s *MongoStore) ApplyTransition(ctx context.Context, id string, newStatus domain.TransactionStatus, actor domain.Role, note string) (*domain.Transaction, error) {
	for attempt := 0; attempt < casAttempts; attempt++ {
		tx, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		if err := workflow.ValidateTransition(tx.Status, newStatus); err != nil {
			return nil, err
		}

		updated, err := s.casTransition(ctx, id, tx.Status, newStatus, actor, note, nil)
		if err != nil {
			return nil, err
		}
		if updated != nil {
			return updated, nil
		}
		// Lost the race; re-read and re-validate.
	}
	return nil, fmt.Errorf("%w: concurrent updates on %s", domain.ErrInvalidTransition, id)
}

func (s *MongoStore) Approve(ctx context.Context, id string, role domain.Role) (*domain.Transaction, bool, error) {
	field := approvalField(role)

	for attempt := 0; attempt < casAttempts; attempt++ {
		tx, err := s.Get(ctx, id)
		if err != nil {
			return nil, false, err
		}

		target, err := workflow.ApprovalOutcome(tx, role)
		if err != nil {
			return nil, false, err
		}
		if target == "" {
			return tx, false, nil
		}

		now := time.Now().UTC()
		extra := bson.M{
			field + ".approved":    true,
			field + ".approved_at": now,
		}
		guard := bson.M{field + ".approved": false}

		updated, err := s.casTransitionGuarded(ctx, id, tx.Status, target, role, "agreement approved", extra, guard)
		if err != nil {
			return nil, false, err
		}
		if updated != nil {
			return updated, true, nil
		}
	}
	return nil, false, fmt.Errorf("%w: concurrent updates on %s", domain.ErrInvalidTransition, id)
}

func (s *MongoStore) MarkPaid(ctx context.Context, id string, phase domain.PaymentPhase, method domain.PaymentMethod, actor domain.Role) (*domain.Transaction, bool, error) {
	field := paymentField(phase)
	from, to := workflow.PaymentTransition(phase)

	tx, err := s.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if tx.Payment(phase).Paid {
		return tx, false, nil
	}
	if tx.Status != from {
		return nil, false, fmt.Errorf("%w: %s payment not expected in %s", domain.ErrInvalidTransition, phase, tx.Status)
	}

	now := time.Now().UTC()
	extra := bson.M{
		field + ".paid":    true,
		field + ".paid_at": now,
		field + ".method":  method,
	}
	if tx.Payment(phase).Claim.Pending {
		extra[field+".claim.pending"] = false
		extra[field+".claim.confirmed_at"] = now
	}
	guard := bson.M{field + ".paid": false}

	note := fmt.Sprintf("%s payment credited via %s", phase, method)
	updated, err := s.casTransitionGuarded(ctx, id, from, to, actor, note, extra, guard)
	if err != nil {
		return nil, false, err
	}
	if updated != nil {
		return updated, true, nil
	}

	// The conditional update missed: a concurrent signal credited the
	// phase first. Surface the applied state as success.
	tx, err = s.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if tx.Payment(phase).Paid {
		return tx, false, nil
	}
	return nil, false, fmt.Errorf("%w: %s payment not expected in %s", domain.ErrInvalidTransition, phase, tx.Status)
}

func (s *MongoStore) OpenBankClaim(ctx context.Context, id string, phase domain.PaymentPhase, referenceCode, proofDocumentID string) (*domain.Transaction, error) {
	field := paymentField(phase)
	from, _ := workflow.PaymentTransition(phase)
	now := time.Now().UTC()

	filter := bson.M{
		"_id":                    id,
		"status":                 from,
		field + ".paid":          false,
		field + ".claim.pending": false,
	}
	update := bson.M{"$set": bson.M{
		field + ".claim": domain.BankClaim{
			Pending:         true,
			ReferenceCode:   referenceCode,
			ProofDocumentID: proofDocumentID,
			ClaimedAt:       &now,
		},
		"updated_at": now,
	}}

	updated, err := s.findOneAndUpdate(ctx, filter, update)
	if err != nil {
		return nil, err
	}
	if updated != nil {
		return updated, nil
	}

	// Classify the miss.
	tx, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx.Payment(phase).Claim.Pending {
		return nil, domain.ErrDuplicateClaim
	}
	return nil, fmt.Errorf("%w: %s payment not expected in %s", domain.ErrInvalidTransition, phase, tx.Status)
}

func (s *MongoStore) RejectBankClaim(ctx context.Context, id string, phase domain.PaymentPhase) (*domain.Transaction, error) {
	field := paymentField(phase)

	filter := bson.M{
		"_id":                    id,
		field + ".claim.pending": true,
	}
	update := bson.M{"$set": bson.M{
		field + ".claim": domain.BankClaim{},
		"updated_at":     time.Now().UTC(),
	}}

	updated, err := s.findOneAndUpdate(ctx, filter, update)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		if _, err := s.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, domain.ErrNoPendingClaim
	}
	return updated, nil
}

func (s *MongoStore) SetAgreementDocument(ctx context.Context, id, documentID string) (*domain.Transaction, error) {
	filter := bson.M{"_id": id}
	update := bson.M{"$set": bson.M{
		"agreement_document_id": documentID,
		"updated_at":            time.Now().UTC(),
	}}

	updated, err := s.findOneAndUpdate(ctx, filter, update)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, domain.ErrNotFound
	}
	return updated, nil
}

func (s *MongoStore) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	count, err := s.processedEvents().CountDocuments(ctx, bson.M{"_id": eventID})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *MongoStore) MarkEventProcessed(ctx context.Context, eventID string) error {
	_, err := s.processedEvents().UpdateOne(ctx,
		bson.M{"_id": eventID},
		bson.M{"$set": bson.M{"processed_at": time.Now().UTC()}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *MongoStore) casTransition(ctx context.Context, id string, from, to domain.TransactionStatus, actor domain.Role, note string, extra bson.M) (*domain.Transaction, error) {
	return s.casTransitionGuarded(ctx, id, from, to, actor, note, extra, nil)
}

// casTransitionGuarded performs the conditional status update: the
// filter matches only when the document still has the expected status
// and satisfies the extra guard; nil, nil means the condition no longer
// held.
func (s *MongoStore) casTransitionGuarded(ctx context.Context, id string, from, to domain.TransactionStatus, actor domain.Role, note string, extra, guard bson.M) (*domain.Transaction, error) {
	now := time.Now().UTC()

	filter := bson.M{"_id": id, "status": from}
	for k, v := range guard {
		filter[k] = v
	}

	set := bson.M{"status": to, "updated_at": now}
	for k, v := range extra {
		set[k] = v
	}

	update := bson.M{
		"$set": set,
		"$push": bson.M{"audit": domain.AuditEntry{
			Actor: actor,
			From:  from,
			To:    to,
			Note:  note,
			At:    now,
		}},
	}

	updated, err := s.findOneAndUpdate(ctx, filter, update)
	if err != nil {
		return nil, err
	}
	if updated != nil && s.publisher != nil {
		s.publisher.PublishStatusChange(ctx, domain.StatusChange{
			TransactionID: id,
			From:          from,
			To:            to,
			Actor:         actor,
			At:            now,
		})
	}
	return updated, nil
}

func (s *MongoStore) findOneAndUpdate(ctx context.Context, filter, update bson.M) (*domain.Transaction, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var tx domain.Transaction
	err := s.transactions().FindOneAndUpdate(ctx, filter, update, opts).Decode(&tx)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func approvalField(role domain.Role) string {
	switch role {
	case domain.RoleSeller:
		return "seller_approval"
	case domain.RoleAdmin:
		return "admin_approval"
	}
	return "buyer_approval"
}

func paymentField(phase domain.PaymentPhase) string {
	if phase == domain.PhaseFinal {
		return "final_payment"
	}
	return "deposit"
}
