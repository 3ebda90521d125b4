package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"cardbank/internal/payments/domain"
)

const (
	keyPrefix = "cardbank:payments:idempotency:"

	// pendingMarker is stored while the owning request is still running.
	pendingMarker = "pending"

	// reserveAttempts bounds the SETNX/GET race when a key expires between the two calls.
	reserveAttempts = 3
)

// IdempotencyStore shares idempotency reservations between instances through Redis.
type IdempotencyStore struct {
	client *redis.Client
}

// NewIdempotencyStore creates a Redis-backed store.
func NewIdempotencyStore(client *redis.Client) *IdempotencyStore {
	return &IdempotencyStore{client: client}
}

var _ domain.IdempotencyStore = (*IdempotencyStore)(nil)

// Reserve claims the scope with SET NX.
func (s *IdempotencyStore) Reserve(ctx context.Context, scope string, ttl time.Duration) (domain.IdempotencyRecord, bool, error) {
	key := keyPrefix + scope

	for range reserveAttempts {
		ok, err := s.client.SetNX(ctx, key, pendingMarker, ttl).Result()
		if err != nil {
			return domain.IdempotencyRecord{}, false, err
		}
		if ok {
			return domain.IdempotencyRecord{}, true, nil
		}

		value, err := s.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return domain.IdempotencyRecord{}, false, err
		}
		if value == pendingMarker {
			return domain.IdempotencyRecord{}, false, nil
		}

		id, err := domain.ParsePaymentID(value)
		if err != nil {
			return domain.IdempotencyRecord{}, false, err
		}
		return domain.IdempotencyRecord{PaymentID: id}, false, nil
	}
	return domain.IdempotencyRecord{}, false, domain.ErrIdempotencyInProgress
}

// Complete overwrites the pending marker with the payment id.
func (s *IdempotencyStore) Complete(ctx context.Context, scope string, paymentID domain.PaymentID, ttl time.Duration) error {
	return s.client.Set(ctx, keyPrefix+scope, paymentID.String(), ttl).Err()
}

func (s *IdempotencyStore) Release(ctx context.Context, scope string) error {
	return s.client.Del(ctx, keyPrefix+scope).Err()
}
