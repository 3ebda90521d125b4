package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrEmptyCardID is returned when parsing an empty card ID.
var ErrEmptyCardID = errors.New("card_id cannot be empty")

// ErrInvalidCardID is returned when parsing an invalid UUID format.
var ErrInvalidCardID = errors.New("card_id: invalid uuid format")

// CardID uniquely identifies a card.
type CardID struct {
	value string
}

// ParseCardID creates a CardID from a string, validating UUID format.
func ParseCardID(s string) (CardID, error) {
	if s == "" {
		return CardID{}, ErrEmptyCardID
	}
	if _, err := uuid.Parse(s); err != nil {
		return CardID{}, fmt.Errorf("%w: %s", ErrInvalidCardID, s)
	}
	return CardID{value: s}, nil
}

// NewCardID generates a new unique CardID.
func NewCardID() CardID {
	return CardID{value: uuid.NewString()}
}

// String returns the string representation of CardID.
func (c CardID) String() string {
	return c.value
}

// IsEmpty checks if the CardID is empty.
func (c CardID) IsEmpty() bool {
	return c.value == ""
}
