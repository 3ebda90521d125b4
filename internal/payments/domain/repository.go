package domain

import (
	"context"
	"time"

	vo "cardbank/internal/common/value_objects"
)

// PaymentRepository persists payments.
type PaymentRepository interface {
	// Insert stores a payment.
	// Returns ErrDuplicatePayment if the user already has a payment with the same idempotency key.
	Insert(ctx context.Context, payment *Payment) error
	// FindByID returns ErrPaymentNotFound when no record exists.
	FindByID(ctx context.Context, id PaymentID) (*Payment, error)
	// FindByUser returns the user's payments, newest first.
	FindByUser(ctx context.Context, userID vo.UserID) ([]*Payment, error)
	// FindByIdempotencyKey returns ErrPaymentNotFound when the key was never used.
	FindByIdempotencyKey(ctx context.Context, userID vo.UserID, key string) (*Payment, error)
}

// IdempotencyRecord is what a reserved key currently points at.
// An empty PaymentID means the first request is still being processed.
type IdempotencyRecord struct {
	PaymentID PaymentID
}

// InProgress reports whether the owning request has not finished yet.
func (r IdempotencyRecord) InProgress() bool {
	return r.PaymentID.IsEmpty()
}

// IdempotencyStore claims idempotency keys across concurrent requests.
type IdempotencyStore interface {
	// Reserve claims scope for ttl. When the scope is already claimed it
	// returns the existing record and reserved=false.
	Reserve(ctx context.Context, scope string, ttl time.Duration) (record IdempotencyRecord, reserved bool, err error)
	// Complete points a reserved scope at the payment it produced.
	Complete(ctx context.Context, scope string, paymentID PaymentID, ttl time.Duration) error
	// Release drops a reservation so the request can be retried.
	Release(ctx context.Context, scope string) error
}
