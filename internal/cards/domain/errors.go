package domain

import "errors"

// Card number errors.
var (
	// ErrEmptyCardNumber is returned when the input is empty or blank.
	ErrEmptyCardNumber = errors.New("card number cannot be empty")

	// ErrCardNumberLength is returned when the normalized number is not 16 characters.
	ErrCardNumberLength = errors.New("card number must have 16 digits")

	// ErrCardNumberNonNumeric is returned when the normalized number contains a non-digit.
	ErrCardNumberNonNumeric = errors.New("card number must contain only digits")

	// ErrLuhnCheckFailed is returned when the check digit does not match.
	ErrLuhnCheckFailed = errors.New("card number failed luhn check")
)

// Card lifecycle errors.
var (
	// ErrExpiredCard is returned when activating a card past its expiration date.
	ErrExpiredCard = errors.New("card is expired")

	// ErrAlreadyActive is returned when activating an active card.
	ErrAlreadyActive = errors.New("card is already active")

	// ErrAlreadyBlocked is returned when blocking a blocked card.
	ErrAlreadyBlocked = errors.New("card is already blocked")

	// ErrNotEligible is returned when a debit is attempted on a card that cannot transact.
	ErrNotEligible = errors.New("card cannot process transactions")

	// ErrInsufficientBalance is returned when a debit exceeds the available balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrEmptyName is returned when the holder name is blank.
	ErrEmptyName = errors.New("holder name cannot be empty")

	// ErrPastDate is returned when setting an expiration date in the past.
	ErrPastDate = errors.New("expiration date cannot be in the past")

	// ErrNonPositiveLimit is returned when a credit limit is zero.
	ErrNonPositiveLimit = errors.New("credit limit must be positive")

	// ErrLimitTooHigh is returned when a credit limit exceeds the configured ceiling.
	ErrLimitTooHigh = errors.New("credit limit exceeds maximum")

	// ErrLimitBelowUsedCredit is returned when a new limit is lower than the credit already used.
	ErrLimitBelowUsedCredit = errors.New("credit limit is below used credit")

	// ErrEmptyUserID is returned when a card is created without an owner.
	ErrEmptyUserID = errors.New("user_id is required")
)

// Issuance and maintenance errors.
var (
	// ErrCardNotFound is returned when a card cannot be found.
	ErrCardNotFound = errors.New("card not found")

	// ErrActiveCardLimitReached is returned when a user already holds the maximum number of active cards.
	ErrActiveCardLimitReached = errors.New("maximum number of active cards reached")

	// ErrCardNumberGenerationExhausted is returned when no unused card number was found within the attempt budget.
	ErrCardNumberGenerationExhausted = errors.New("could not generate a unique card number")

	// ErrActivationFailed wraps the error raised while activating a newly issued card.
	ErrActivationFailed = errors.New("card activation failed")

	// ErrInvalidHolderName is returned when a holder name is outside 3-100 characters.
	ErrInvalidHolderName = errors.New("holder name must be between 3 and 100 characters")

	// ErrCreditAmountTooHigh is returned when a single credit exceeds the per-operation ceiling.
	ErrCreditAmountTooHigh = errors.New("credit amount exceeds maximum")

	// ErrNonPositiveAmount is returned when a credit or debit amount is zero.
	ErrNonPositiveAmount = errors.New("amount must be positive")
)

// Persistence errors.
var (
	// ErrOptimisticLock is returned when an optimistic lock conflict occurs.
	ErrOptimisticLock = errors.New("optimistic lock conflict")

	// ErrDuplicateCardNumber is returned when inserting a number that is already stored.
	ErrDuplicateCardNumber = errors.New("card number already exists")

	// ErrCorruptData is returned when data loaded from persistence is invalid.
	ErrCorruptData = errors.New("corrupt data in database")
)
