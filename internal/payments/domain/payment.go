package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	cards "cardbank/internal/cards/domain"
	vo "cardbank/internal/common/value_objects"
)

// MaxDescriptionLength bounds Payment.Description in runes.
const MaxDescriptionLength = 200

// PaymentStatus is the lifecycle state of a payment.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// ParsePaymentStatus maps a stored value back to a PaymentStatus.
func ParsePaymentStatus(s string) (PaymentStatus, bool) {
	switch PaymentStatus(s) {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed:
		return PaymentStatus(s), true
	}
	return "", false
}

// Payment is a purchase funded by one of the user's cards.
// It starts Pending and ends either Completed or Failed.
type Payment struct {
	id             PaymentID
	userID         vo.UserID
	cardID         cards.CardID
	amount         vo.Money
	description    string
	status         PaymentStatus
	failureReason  string
	idempotencyKey string
	createdAt      time.Time
	updatedAt      time.Time
}

// NewPayment creates a pending payment.
func NewPayment(
	userID vo.UserID,
	cardID cards.CardID,
	amount vo.Money,
	description string,
	idempotencyKey string,
	now time.Time,
) (*Payment, error) {
	if amount.IsZero() {
		return nil, ErrInvalidPaymentAmount
	}
	desc, err := NormalizeDescription(description)
	if err != nil {
		return nil, err
	}

	return &Payment{
		id:             NewPaymentID(),
		userID:         userID,
		cardID:         cardID,
		amount:         amount,
		description:    desc,
		status:         PaymentStatusPending,
		idempotencyKey: idempotencyKey,
		createdAt:      now,
		updatedAt:      now,
	}, nil
}

// ReconstructPayment rebuilds a Payment from persistence without validation.
func ReconstructPayment(
	id PaymentID,
	userID vo.UserID,
	cardID cards.CardID,
	amount vo.Money,
	description string,
	status PaymentStatus,
	failureReason string,
	idempotencyKey string,
	createdAt, updatedAt time.Time,
) *Payment {
	return &Payment{
		id:             id,
		userID:         userID,
		cardID:         cardID,
		amount:         amount,
		description:    description,
		status:         status,
		failureReason:  failureReason,
		idempotencyKey: idempotencyKey,
		createdAt:      createdAt,
		updatedAt:      updatedAt,
	}
}

// NormalizeDescription trims the description and checks its length.
func NormalizeDescription(description string) (string, error) {
	desc := strings.TrimSpace(description)
	if desc == "" || utf8.RuneCountInString(desc) > MaxDescriptionLength {
		return "", ErrInvalidDescription
	}
	return desc, nil
}

// MarkCompleted records a successful card debit.
func (p *Payment) MarkCompleted(now time.Time) error {
	if p.status != PaymentStatusPending {
		return ErrInvalidTransition
	}
	p.status = PaymentStatusCompleted
	p.updatedAt = now
	return nil
}

// MarkFailed records why the card could not be debited.
func (p *Payment) MarkFailed(reason string, now time.Time) error {
	if p.status != PaymentStatusPending {
		return ErrInvalidTransition
	}
	p.status = PaymentStatusFailed
	p.failureReason = reason
	p.updatedAt = now
	return nil
}

func (p *Payment) ID() PaymentID          { return p.id }
func (p *Payment) UserID() vo.UserID      { return p.userID }
func (p *Payment) CardID() cards.CardID   { return p.cardID }
func (p *Payment) Amount() vo.Money       { return p.amount }
func (p *Payment) Description() string    { return p.description }
func (p *Payment) Status() PaymentStatus  { return p.status }
func (p *Payment) FailureReason() string  { return p.failureReason }
func (p *Payment) IdempotencyKey() string { return p.idempotencyKey }
func (p *Payment) CreatedAt() time.Time   { return p.createdAt }
func (p *Payment) UpdatedAt() time.Time   { return p.updatedAt }
