package domain

import (
	"strings"
	"time"

	vo "cardbank/internal/common/value_objects"
)

// Card is a credit card issued to a user (aggregate root).
// Invariants:
//   - 0 <= balance <= creditLimit, both in the same currency
//   - creditLimit is positive
//   - status only moves Inactive -> Active and Active <-> Blocked
//   - the card number never changes after creation
type Card struct {
	id          CardID
	userID      vo.UserID
	number      CardNumber
	holderName  string
	expiresAt   time.Time
	balance     vo.Money
	creditLimit vo.Money
	status      CardStatus
	version     int
	createdAt   time.Time
	updatedAt   time.Time
}

// NewCard creates an inactive card whose balance equals its credit limit.
// The now parameter makes the function pure and testable.
func NewCard(
	userID vo.UserID,
	number CardNumber,
	holderName string,
	expiresAt time.Time,
	creditLimit vo.Money,
	now time.Time,
) (*Card, error) {
	if userID.IsEmpty() {
		return nil, ErrEmptyUserID
	}
	if number.IsEmpty() {
		return nil, ErrEmptyCardNumber
	}
	name := strings.TrimSpace(holderName)
	if name == "" {
		return nil, ErrEmptyName
	}
	if creditLimit.IsZero() {
		return nil, ErrNonPositiveLimit
	}

	return &Card{
		id:          NewCardID(),
		userID:      userID,
		number:      number,
		holderName:  name,
		expiresAt:   expiresAt,
		balance:     creditLimit,
		creditLimit: creditLimit,
		status:      CardStatusInactive,
		version:     1,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// ReconstructCard reconstructs a Card from persistence.
// This bypasses validation - only use for loading from database.
func ReconstructCard(
	id CardID,
	userID vo.UserID,
	number CardNumber,
	holderName string,
	expiresAt time.Time,
	balance vo.Money,
	creditLimit vo.Money,
	status CardStatus,
	version int,
	createdAt time.Time,
	updatedAt time.Time,
) *Card {
	return &Card{
		id:          id,
		userID:      userID,
		number:      number,
		holderName:  holderName,
		expiresAt:   expiresAt,
		balance:     balance,
		creditLimit: creditLimit,
		status:      status,
		version:     version,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

// Activate moves an inactive or blocked card to Active.
// Expiry is checked before the current status.
func (c *Card) Activate(now time.Time) error {
	if now.After(c.expiresAt) {
		return ErrExpiredCard
	}
	if c.status == CardStatusActive {
		return ErrAlreadyActive
	}
	c.status = CardStatusActive
	c.updatedAt = now
	return nil
}

// Block stops the card from transacting.
func (c *Card) Block(now time.Time) error {
	if c.status == CardStatusBlocked {
		return ErrAlreadyBlocked
	}
	c.status = CardStatusBlocked
	c.updatedAt = now
	return nil
}

// CanProcessTransaction reports whether the card is active and not past its expiration.
func (c *Card) CanProcessTransaction(now time.Time) bool {
	return c.status == CardStatusActive && !now.After(c.expiresAt)
}

// Debit consumes available credit.
func (c *Card) Debit(amount vo.Money, now time.Time) error {
	if !c.CanProcessTransaction(now) {
		return ErrNotEligible
	}
	exceeds, err := amount.GreaterThan(c.balance)
	if err != nil {
		return err
	}
	if exceeds {
		return ErrInsufficientBalance
	}

	balance, err := c.balance.Subtract(amount)
	if err != nil {
		return err
	}
	c.balance = balance
	c.updatedAt = now
	return nil
}

// Credit restores available credit. The balance is clamped at the credit limit.
func (c *Card) Credit(amount vo.Money, now time.Time) error {
	balance, err := c.balance.Add(amount)
	if err != nil {
		return err
	}
	over, err := balance.GreaterThan(c.creditLimit)
	if err != nil {
		return err
	}
	if over {
		balance = c.creditLimit
	}
	c.balance = balance
	c.updatedAt = now
	return nil
}

// UpdateHolderName replaces the embossed name.
func (c *Card) UpdateHolderName(name string, now time.Time) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	c.holderName = name
	c.updatedAt = now
	return nil
}

// UpdateExpirationDate moves the expiration date. Dates before now are rejected.
func (c *Card) UpdateExpirationDate(expiresAt time.Time, now time.Time) error {
	if expiresAt.Before(now) {
		return ErrPastDate
	}
	c.expiresAt = expiresAt
	c.updatedAt = now
	return nil
}

// UpdateCreditLimit replaces the credit limit while preserving the credit already used,
// so the new balance is newLimit - (oldLimit - oldBalance).
// A limit below the used credit is rejected because the balance cannot go negative.
func (c *Card) UpdateCreditLimit(newLimit vo.Money, ceiling vo.Money, now time.Time) error {
	if newLimit.IsZero() {
		return ErrNonPositiveLimit
	}
	tooHigh, err := newLimit.GreaterThan(ceiling)
	if err != nil {
		return err
	}
	if tooHigh {
		return ErrLimitTooHigh
	}

	used, err := c.creditLimit.Subtract(c.balance)
	if err != nil {
		return err
	}
	below, err := newLimit.LessThan(used)
	if err != nil {
		return err
	}
	if below {
		return ErrLimitBelowUsedCredit
	}

	balance, err := newLimit.Subtract(used)
	if err != nil {
		return err
	}
	c.creditLimit = newLimit
	c.balance = balance
	c.updatedAt = now
	return nil
}

// UsedCredit returns creditLimit - balance.
func (c *Card) UsedCredit() vo.Money {
	used, _ := c.creditLimit.Subtract(c.balance)
	return used
}

// AdvanceVersion records that the current state has been persisted.
// Repositories call it after a successful optimistic update.
func (c *Card) AdvanceVersion() {
	c.version++
}

// IsActive reports whether the card status is Active.
func (c *Card) IsActive() bool {
	return c.status == CardStatusActive
}

// Getters

func (c *Card) ID() CardID            { return c.id }
func (c *Card) UserID() vo.UserID     { return c.userID }
func (c *Card) Number() CardNumber    { return c.number }
func (c *Card) HolderName() string    { return c.holderName }
func (c *Card) ExpiresAt() time.Time  { return c.expiresAt }
func (c *Card) Balance() vo.Money     { return c.balance }
func (c *Card) CreditLimit() vo.Money { return c.creditLimit }
func (c *Card) Status() CardStatus    { return c.status }
func (c *Card) Version() int          { return c.version }
func (c *Card) CreatedAt() time.Time  { return c.createdAt }
func (c *Card) UpdatedAt() time.Time  { return c.updatedAt }
