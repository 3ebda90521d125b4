package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrEmptyPaymentID is returned when parsing an empty payment ID.
var ErrEmptyPaymentID = errors.New("payment_id cannot be empty")

// ErrInvalidPaymentID is returned when parsing an invalid UUID format.
var ErrInvalidPaymentID = errors.New("payment_id: invalid uuid format")

// PaymentID uniquely identifies a payment.
type PaymentID struct {
	value string
}

// ParsePaymentID creates a PaymentID from a string, validating UUID format.
func ParsePaymentID(s string) (PaymentID, error) {
	if s == "" {
		return PaymentID{}, ErrEmptyPaymentID
	}
	if _, err := uuid.Parse(s); err != nil {
		return PaymentID{}, fmt.Errorf("%w: %s", ErrInvalidPaymentID, s)
	}
	return PaymentID{value: s}, nil
}

// NewPaymentID generates a new unique PaymentID.
func NewPaymentID() PaymentID {
	return PaymentID{value: uuid.NewString()}
}

func (p PaymentID) String() string {
	return p.value
}

func (p PaymentID) IsEmpty() bool {
	return p.value == ""
}
