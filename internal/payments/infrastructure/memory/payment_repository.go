package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	vo "cardbank/internal/common/value_objects"
	"cardbank/internal/payments/domain"
)

// PaymentRepository keeps payments in process memory.
// Concurrency: safe for concurrent use.
type PaymentRepository struct {
	mu       sync.RWMutex
	payments map[domain.PaymentID]*domain.Payment
}

// NewPaymentRepository creates an empty repository.
func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{payments: make(map[domain.PaymentID]*domain.Payment)}
}

var _ domain.PaymentRepository = (*PaymentRepository)(nil)

func (r *PaymentRepository) Insert(ctx context.Context, payment *domain.Payment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if key := payment.IdempotencyKey(); key != "" {
		for _, p := range r.payments {
			if p.UserID() == payment.UserID() && p.IdempotencyKey() == key {
				return domain.ErrDuplicatePayment
			}
		}
	}
	r.payments[payment.ID()] = clonePayment(payment)
	return nil
}

func (r *PaymentRepository) FindByID(ctx context.Context, id domain.PaymentID) (*domain.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.payments[id]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	return clonePayment(p), nil
}

func (r *PaymentRepository) FindByUser(ctx context.Context, userID vo.UserID) ([]*domain.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.Payment
	for _, p := range r.payments {
		if p.UserID() == userID {
			result = append(result, clonePayment(p))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt().Equal(result[j].CreatedAt()) {
			return result[i].CreatedAt().After(result[j].CreatedAt())
		}
		return strings.Compare(result[i].ID().String(), result[j].ID().String()) > 0
	})
	return result, nil
}

func (r *PaymentRepository) FindByIdempotencyKey(ctx context.Context, userID vo.UserID, key string) (*domain.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.payments {
		if p.UserID() == userID && p.IdempotencyKey() == key {
			return clonePayment(p), nil
		}
	}
	return nil, domain.ErrPaymentNotFound
}

func clonePayment(p *domain.Payment) *domain.Payment {
	clone := *p
	return &clone
}
