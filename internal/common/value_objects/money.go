package valueobjects

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency is a validated ISO-4217 style code: three uppercase ASCII letters.
type Currency string

// CurrencyCOP is the currency cards are issued in unless configured otherwise.
const CurrencyCOP Currency = "COP"

var (
	// ErrInvalidAmount is returned when a monetary amount is negative.
	ErrInvalidAmount = errors.New("amount cannot be negative")

	// ErrInvalidCurrency is returned when a currency code is not three letters.
	ErrInvalidCurrency = errors.New("currency must be a 3-letter code")

	// ErrCurrencyMismatch is returned when combining or comparing different currencies.
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// ErrNegativeResult is returned when a subtraction would go below zero.
	ErrNegativeResult = errors.New("result cannot be negative")

	// ErrInvalidMultiplier is returned when multiplying by a negative factor.
	ErrInvalidMultiplier = errors.New("multiplier cannot be negative")
)

// ParseCurrency validates a currency code and normalizes it to upper case.
func ParseCurrency(s string) (Currency, error) {
	if len(s) != 3 {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, s)
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z') {
			return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, s)
		}
	}
	return Currency(strings.ToUpper(s)), nil
}

// String returns the string representation of Currency.
func (c Currency) String() string {
	return string(c)
}

// Money is a non-negative amount in a single currency.
// Values are immutable; every operation returns a new Money.
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// New creates Money after validating the amount is non-negative and the currency code.
func New(amount decimal.Decimal, currency string) (Money, error) {
	if amount.IsNegative() {
		return Money{}, fmt.Errorf("%w: %s", ErrInvalidAmount, amount.String())
	}
	c, err := ParseCurrency(currency)
	if err != nil {
		return Money{}, err
	}
	return Money{amount: amount, currency: c}, nil
}

// NewFromString creates Money from a decimal string and currency code.
func NewFromString(amount string, currency string) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q is not a decimal", ErrInvalidAmount, amount)
	}
	return New(d, currency)
}

// NewFromInt creates Money from whole units.
func NewFromInt(amount int64, currency string) (Money, error) {
	return New(decimal.NewFromInt(amount), currency)
}

// MustNewFromInt creates Money from whole units, panicking on invalid input.
// Use only in tests or initialization code where panicking is acceptable.
func MustNewFromInt(amount int64, currency string) Money {
	m, err := NewFromInt(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns a zero Money in the given currency.
func Zero(currency Currency) Money {
	return Money{amount: decimal.Zero, currency: currency}
}

// Amount returns the decimal amount.
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// Currency returns the currency code.
func (m Money) Currency() Currency {
	return m.currency
}

// Add returns m + other.
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("add %s to %s: %w", other.currency, m.currency, ErrCurrencyMismatch)
	}
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}, nil
}

// Subtract returns m - other. The result must stay non-negative.
func (m Money) Subtract(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("subtract %s from %s: %w", other.currency, m.currency, ErrCurrencyMismatch)
	}
	result := m.amount.Sub(other.amount)
	if result.IsNegative() {
		return Money{}, fmt.Errorf("%w: %s - %s", ErrNegativeResult, m.amount.StringFixed(2), other.amount.StringFixed(2))
	}
	return Money{amount: result, currency: m.currency}, nil
}

// Multiply scales the amount by a non-negative factor.
func (m Money) Multiply(factor decimal.Decimal) (Money, error) {
	if factor.IsNegative() {
		return Money{}, fmt.Errorf("%w: %s", ErrInvalidMultiplier, factor.String())
	}
	return Money{amount: m.amount.Mul(factor), currency: m.currency}, nil
}

// GreaterThan reports whether m > other.
func (m Money) GreaterThan(other Money) (bool, error) {
	if m.currency != other.currency {
		return false, ErrCurrencyMismatch
	}
	return m.amount.GreaterThan(other.amount), nil
}

// GreaterThanOrEqual reports whether m >= other.
func (m Money) GreaterThanOrEqual(other Money) (bool, error) {
	if m.currency != other.currency {
		return false, ErrCurrencyMismatch
	}
	return m.amount.GreaterThanOrEqual(other.amount), nil
}

// LessThan reports whether m < other.
func (m Money) LessThan(other Money) (bool, error) {
	if m.currency != other.currency {
		return false, ErrCurrencyMismatch
	}
	return m.amount.LessThan(other.amount), nil
}

// IsZero returns true if amount == 0.
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// Equal returns true if both amount and currency match.
func (m Money) Equal(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

// String renders the amount with two decimals followed by the currency, e.g. "1234.50 COP".
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.amount.StringFixed(2), m.currency)
}
