package valueobjects

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrEmptyID is returned when parsing an empty string as an ID.
var ErrEmptyID = errors.New("id cannot be empty")

// ErrInvalidUUID is returned when parsing an invalid UUID format.
var ErrInvalidUUID = errors.New("invalid uuid format")

// UserID identifies a card holder. Users are managed outside this service;
// the id arrives as the subject of the caller's bearer token.
type UserID struct {
	value string
}

// ParseUserID creates a UserID from a string, validating UUID format.
func ParseUserID(s string) (UserID, error) {
	if s == "" {
		return UserID{}, fmt.Errorf("user_id: %w", ErrEmptyID)
	}
	if _, err := uuid.Parse(s); err != nil {
		return UserID{}, fmt.Errorf("user_id: %w", ErrInvalidUUID)
	}
	return UserID{value: s}, nil
}

// MustParseUserID creates a UserID from a string, panicking on invalid input.
// Use only in tests or initialization code where panicking is acceptable.
func MustParseUserID(s string) UserID {
	u, err := ParseUserID(s)
	if err != nil {
		panic(err)
	}
	return u
}

// NewUserID generates a new random UserID.
func NewUserID() UserID {
	return UserID{value: uuid.NewString()}
}

// String returns the string representation of UserID.
func (u UserID) String() string {
	return u.value
}

// IsEmpty checks if the UserID is empty.
func (u UserID) IsEmpty() bool {
	return u.value == ""
}

// CorrelationID tracks a request across service boundaries.
type CorrelationID struct {
	value string
}

// ParseCorrelationID creates a CorrelationID from a string, validating it is non-empty.
func ParseCorrelationID(s string) (CorrelationID, error) {
	if s == "" {
		return CorrelationID{}, fmt.Errorf("correlation_id: %w", ErrEmptyID)
	}
	return CorrelationID{value: s}, nil
}

// NewCorrelationID generates a new unique CorrelationID.
func NewCorrelationID() CorrelationID {
	return CorrelationID{value: uuid.NewString()}
}

// String returns the string representation of CorrelationID.
func (c CorrelationID) String() string {
	return c.value
}

// IsEmpty checks if the CorrelationID is empty.
func (c CorrelationID) IsEmpty() bool {
	return c.value == ""
}
