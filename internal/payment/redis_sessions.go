package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/satriadwik/dealroom-be/internal/domain"
)

// ConnectRedis connects to the redis server and returns the client.
func ConnectRedis(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, err
	}
	return rdb, nil
}

// RedisSessionStore keeps open checkout sessions in Redis with a TTL so
// initiate-checkout stays idempotent across processes.
type RedisSessionStore struct {
	client *redis.Client
}

func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func sessionKey(transactionID string, phase domain.PaymentPhase) string {
	return fmt.Sprintf("checkout:%s:%s", transactionID, phase)
}

func (s *RedisSessionStore) Get(ctx context.Context, transactionID string, phase domain.PaymentPhase) (*CheckoutSession, error) {
	data, err := s.client.Get(ctx, sessionKey(transactionID, phase)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var session CheckoutSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *RedisSessionStore) Put(ctx context.Context, session *CheckoutSession, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, sessionKey(session.TransactionID, session.Phase), data, ttl).Err()
}

func (s *RedisSessionStore) Delete(ctx context.Context, transactionID string, phase domain.PaymentPhase) error {
	return s.client.Del(ctx, sessionKey(transactionID, phase)).Err()
}
