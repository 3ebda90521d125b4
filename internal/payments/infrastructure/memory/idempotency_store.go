package memory

import (
	"context"
	"sync"
	"time"

	"cardbank/internal/payments/domain"
)

type reservation struct {
	paymentID domain.PaymentID
	expiresAt time.Time
}

// IdempotencyStore is the in-process fallback used when Redis is not configured.
// Reservations are only visible to this process.
type IdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]reservation
	now     func() time.Time
}

// NewIdempotencyStore creates an empty store.
func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{
		entries: make(map[string]reservation),
		now:     time.Now,
	}
}

var _ domain.IdempotencyStore = (*IdempotencyStore)(nil)

func (s *IdempotencyStore) Reserve(ctx context.Context, scope string, ttl time.Duration) (domain.IdempotencyRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.IdempotencyRecord{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if entry, ok := s.entries[scope]; ok && now.Before(entry.expiresAt) {
		return domain.IdempotencyRecord{PaymentID: entry.paymentID}, false, nil
	}
	s.entries[scope] = reservation{expiresAt: now.Add(ttl)}
	return domain.IdempotencyRecord{}, true, nil
}

func (s *IdempotencyStore) Complete(ctx context.Context, scope string, paymentID domain.PaymentID, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[scope] = reservation{paymentID: paymentID, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *IdempotencyStore) Release(ctx context.Context, scope string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, scope)
	return nil
}
