package domain

import "errors"

var (
	// ErrPaymentNotFound is returned when a payment cannot be found or is not owned by the caller.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrInvalidDescription is returned when the description is blank or too long.
	ErrInvalidDescription = errors.New("description must be between 1 and 200 characters")

	// ErrInvalidPaymentAmount is returned when the amount is zero or negative.
	ErrInvalidPaymentAmount = errors.New("payment amount must be positive")

	// ErrPaymentAmountTooHigh is returned when the amount exceeds the per-payment ceiling.
	ErrPaymentAmountTooHigh = errors.New("payment amount exceeds maximum")

	// ErrInvalidTransition is returned when completing or failing a payment that is no longer pending.
	ErrInvalidTransition = errors.New("payment is not pending")

	// ErrMissingIdempotencyKey is returned when a payment request carries no idempotency key.
	ErrMissingIdempotencyKey = errors.New("idempotency key is required")

	// ErrIdempotencyInProgress is returned when another request with the same key is still running.
	ErrIdempotencyInProgress = errors.New("a request with this idempotency key is in progress")

	// ErrDuplicatePayment is returned when storing a second payment under the same idempotency key.
	ErrDuplicatePayment = errors.New("payment with this idempotency key already exists")

	// ErrPaymentFailed wraps the card error that made a payment fail.
	ErrPaymentFailed = errors.New("payment failed")

	// ErrPaymentNotRecorded is returned when the card was debited but the payment row could not be stored.
	// The idempotency key stays bound to the payment, so retries never debit again.
	ErrPaymentNotRecorded = errors.New("card debited but payment not recorded")
)
