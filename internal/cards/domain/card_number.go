package domain

import (
	"fmt"
	"strings"
)

// CardNumberLength is the number of digits in every card number.
const CardNumberLength = 16

// CardNumber is a validated 16-digit primary account number.
// String renders the masked form so a number never leaks into logs by accident;
// use Value for the plaintext digits.
type CardNumber struct {
	value string
}

// ParseCardNumber normalizes and validates raw input.
// Spaces and dashes are stripped before validation, so "4532 0151-1283 0366" is accepted.
func ParseCardNumber(raw string) (CardNumber, error) {
	if strings.TrimSpace(raw) == "" {
		return CardNumber{}, ErrEmptyCardNumber
	}

	digits := NormalizeCardNumber(raw)
	if len(digits) != CardNumberLength {
		return CardNumber{}, fmt.Errorf("%w: got %d", ErrCardNumberLength, len(digits))
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return CardNumber{}, ErrCardNumberNonNumeric
		}
	}
	if !LuhnValid(digits) {
		return CardNumber{}, ErrLuhnCheckFailed
	}

	return CardNumber{value: digits}, nil
}

// NormalizeCardNumber removes spaces and dashes.
func NormalizeCardNumber(raw string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(raw)
}

// LuhnValid reports whether a digit string passes the Luhn checksum.
// Starting from the rightmost digit, every second digit is doubled and
// reduced by 9 when above 9; the total must be a multiple of 10.
func LuhnValid(digits string) bool {
	if digits == "" {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if d < 0 || d > 9 {
			return false
		}
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// LuhnCheckDigit computes the digit that makes body+digit pass LuhnValid.
// body must contain only digits.
func LuhnCheckDigit(body string) byte {
	sum := 0
	double := true
	for i := len(body) - 1; i >= 0; i-- {
		d := int(body[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return byte('0' + (10-sum%10)%10)
}

// Value returns the plaintext 16 digits.
func (n CardNumber) Value() string {
	return n.value
}

// LastFour returns the last four digits.
func (n CardNumber) LastFour() string {
	if len(n.value) < 4 {
		return n.value
	}
	return n.value[len(n.value)-4:]
}

// Masked renders "****-****-****-dddd".
func (n CardNumber) Masked() string {
	return MaskLastFour(n.LastFour())
}

// Formatted renders the number in four space-separated groups.
func (n CardNumber) Formatted() string {
	if len(n.value) != CardNumberLength {
		return n.value
	}
	return n.value[0:4] + " " + n.value[4:8] + " " + n.value[8:12] + " " + n.value[12:16]
}

// IsEmpty reports whether the number is the zero value.
func (n CardNumber) IsEmpty() bool {
	return n.value == ""
}

// String returns the masked form.
func (n CardNumber) String() string {
	return n.Masked()
}

// MaskLastFour renders a masked number from its last four digits.
func MaskLastFour(lastFour string) string {
	return "****-****-****-" + lastFour
}
