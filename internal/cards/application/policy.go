package application

import (
	"time"

	"github.com/shopspring/decimal"

	vo "cardbank/internal/common/value_objects"
)

// IssuancePolicy holds the business constants for issuing and maintaining cards.
type IssuancePolicy struct {
	IssuerPrefix          string
	MaxActiveCardsPerUser int
	MaxNumberAttempts     int
	MaxCreditLimit        decimal.Decimal
	MaxCreditAmount       decimal.Decimal
	Currency              vo.Currency
	ValidityYears         int
}

// DefaultIssuancePolicy returns the production defaults.
func DefaultIssuancePolicy() IssuancePolicy {
	return IssuancePolicy{
		IssuerPrefix:          "4532",
		MaxActiveCardsPerUser: 3,
		MaxNumberAttempts:     100,
		MaxCreditLimit:        decimal.NewFromInt(300000),
		MaxCreditAmount:       decimal.NewFromInt(50000),
		Currency:              vo.CurrencyCOP,
		ValidityYears:         5,
	}
}

// ExpirationFrom returns the last second of the month ValidityYears after now, in UTC.
// A card issued on 2025-03-14 expires at 2030-03-31T23:59:59Z.
func (p IssuancePolicy) ExpirationFrom(now time.Time) time.Time {
	now = now.UTC()
	firstOfNextMonth := time.Date(now.Year()+p.ValidityYears, now.Month()+1, 1, 0, 0, 0, 0, time.UTC)
	return firstOfNextMonth.Add(-time.Second)
}

// CreditLimitCeiling returns the configured maximum credit limit as Money.
func (p IssuancePolicy) CreditLimitCeiling() vo.Money {
	ceiling, err := vo.New(p.MaxCreditLimit, p.Currency.String())
	if err != nil {
		return vo.Zero(p.Currency)
	}
	return ceiling
}
