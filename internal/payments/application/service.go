package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	cards "cardbank/internal/cards/domain"
	"cardbank/internal/common/logging"
	"cardbank/internal/common/metrics"
	vo "cardbank/internal/common/value_objects"
	"cardbank/internal/payments/domain"
)

var tracer = otel.Tracer("cardbank/internal/payments/application")

// CardGateway is the part of the card service payments depend on.
// *cards/application.CardService satisfies it.
type CardGateway interface {
	CardBelongsToUser(ctx context.Context, cardID cards.CardID, userID vo.UserID) (bool, error)
	HasSufficientBalance(ctx context.Context, cardID cards.CardID, amount decimal.Decimal) (bool, error)
	DebitCard(ctx context.Context, cardID cards.CardID, amount decimal.Decimal) error
}

// Policy holds the payment limits.
type Policy struct {
	Currency       vo.Currency
	MaxAmount      decimal.Decimal
	IdempotencyTTL time.Duration
}

// DefaultPolicy returns the production defaults.
func DefaultPolicy() Policy {
	return Policy{
		Currency:       vo.CurrencyCOP,
		MaxAmount:      decimal.NewFromInt(10000),
		IdempotencyTTL: 24 * time.Hour,
	}
}

// PaymentService charges cards on behalf of their owners.
//
// Each request carries an idempotency key scoped to the user. The key is
// reserved before the card is touched, so a retried request either replays
// the stored payment or is told the first attempt is still running.
type PaymentService struct {
	payments    domain.PaymentRepository
	idempotency domain.IdempotencyStore
	cards       CardGateway
	policy      Policy
	now         func() time.Time
}

// Option configures a PaymentService.
type Option func(*PaymentService)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *PaymentService) { s.now = now }
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(
	payments domain.PaymentRepository,
	idempotency domain.IdempotencyStore,
	cards CardGateway,
	policy Policy,
	opts ...Option,
) *PaymentService {
	s := &PaymentService{
		payments:    payments,
		idempotency: idempotency,
		cards:       cards,
		policy:      policy,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessPaymentRequest represents a request to pay with a card.
type ProcessPaymentRequest struct {
	UserID         vo.UserID
	CardID         cards.CardID
	Amount         decimal.Decimal
	Description    string
	IdempotencyKey string
}

// ProcessPaymentResult is the stored payment and whether it was replayed.
type ProcessPaymentResult struct {
	Payment  PaymentView
	Replayed bool
}

// ProcessPayment charges a card.
// This operation:
//   - Reserves the idempotency key, replaying the earlier payment if the key was used
//   - Checks that the card belongs to the user and has enough balance
//   - Debits the card and stores the payment as completed
//   - Stores a failed payment when the debit is rejected
func (s *PaymentService) ProcessPayment(ctx context.Context, req ProcessPaymentRequest) (result *ProcessPaymentResult, err error) {
	ctx, span := tracer.Start(ctx, "PaymentService.ProcessPayment",
		trace.WithAttributes(
			attribute.String("user.id", req.UserID.String()),
			attribute.String("card.id", req.CardID.String()),
		))
	defer func() { endSpan(span, err) }()

	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		return nil, domain.ErrMissingIdempotencyKey
	}
	amount, err := s.validateAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	description, err := domain.NormalizeDescription(req.Description)
	if err != nil {
		return nil, err
	}

	scope := idempotencyScope(req.UserID, key)
	record, reserved, err := s.idempotency.Reserve(ctx, scope, s.policy.IdempotencyTTL)
	if err != nil {
		return nil, fmt.Errorf("reserving idempotency key: %w", err)
	}
	if !reserved {
		if record.InProgress() {
			return nil, domain.ErrIdempotencyInProgress
		}
		return s.replay(ctx, req.UserID, record.PaymentID)
	}

	// The reservation may have expired while the payment row survived.
	existing, err := s.payments.FindByIdempotencyKey(ctx, req.UserID, key)
	switch {
	case err == nil:
		s.complete(ctx, scope, existing.ID())
		metrics.RecordIdempotencyCacheHit()
		return &ProcessPaymentResult{Payment: toPaymentView(existing), Replayed: true}, nil
	case !errors.Is(err, domain.ErrPaymentNotFound):
		s.release(ctx, scope)
		return nil, err
	}

	payment, err := s.charge(ctx, req.UserID, req.CardID, amount, description, key)
	if payment == nil {
		s.release(ctx, scope)
		return nil, err
	}
	s.complete(ctx, scope, payment.ID())
	if err != nil {
		return nil, err
	}

	logging.InfoContext(ctx, "Payment processed",
		"payment_id", payment.ID().String(),
		"card_id", req.CardID.String(),
		"amount", amount.String(),
	)
	return &ProcessPaymentResult{Payment: toPaymentView(payment)}, nil
}

// charge returns a nil payment when the card was not debited.
func (s *PaymentService) charge(
	ctx context.Context,
	userID vo.UserID,
	cardID cards.CardID,
	amount vo.Money,
	description string,
	key string,
) (*domain.Payment, error) {
	owned, err := s.cards.CardBelongsToUser(ctx, cardID, userID)
	if err != nil {
		return nil, err
	}
	if !owned {
		return nil, cards.ErrCardNotFound
	}

	sufficient, err := s.cards.HasSufficientBalance(ctx, cardID, amount.Amount())
	if err != nil {
		return nil, err
	}
	if !sufficient {
		metrics.RecordPaymentProcessed("rejected")
		return nil, cards.ErrInsufficientBalance
	}

	payment, err := domain.NewPayment(userID, cardID, amount, description, key, s.now().UTC())
	if err != nil {
		return nil, err
	}

	if debitErr := s.cards.DebitCard(ctx, cardID, amount.Amount()); debitErr != nil {
		if err := payment.MarkFailed(debitErr.Error(), s.now().UTC()); err != nil {
			return nil, err
		}
		if err := s.payments.Insert(ctx, payment); err != nil {
			return nil, err
		}
		metrics.RecordPaymentProcessed(string(domain.PaymentStatusFailed))
		logging.WarnContext(ctx, "Payment failed",
			"payment_id", payment.ID().String(),
			"card_id", cardID.String(),
			"error", debitErr,
		)
		return payment, fmt.Errorf("%w: %w", domain.ErrPaymentFailed, debitErr)
	}

	if err := payment.MarkCompleted(s.now().UTC()); err != nil {
		return nil, err
	}
	if err := s.payments.Insert(ctx, payment); err != nil {
		logging.ErrorContext(ctx, "Card debited but payment not stored",
			"payment_id", payment.ID().String(),
			"card_id", cardID.String(),
			"amount", amount.String(),
			"error", err,
		)
		// The debit stands, so the key must stay bound to this payment.
		return payment, fmt.Errorf("%w: %w", domain.ErrPaymentNotRecorded, err)
	}
	metrics.RecordPaymentProcessed(string(domain.PaymentStatusCompleted))
	return payment, nil
}

func (s *PaymentService) replay(ctx context.Context, userID vo.UserID, id domain.PaymentID) (*ProcessPaymentResult, error) {
	payment, err := s.payments.FindByID(ctx, id)
	if errors.Is(err, domain.ErrPaymentNotFound) {
		return nil, domain.ErrPaymentNotRecorded
	}
	if err != nil {
		return nil, err
	}
	if payment.UserID() != userID {
		return nil, domain.ErrPaymentNotFound
	}
	metrics.RecordIdempotencyCacheHit()
	logging.InfoContext(ctx, "Payment replayed", "payment_id", id.String())
	return &ProcessPaymentResult{Payment: toPaymentView(payment), Replayed: true}, nil
}

// GetPayment returns a payment owned by the user.
func (s *PaymentService) GetPayment(ctx context.Context, userID vo.UserID, id domain.PaymentID) (*PaymentView, error) {
	payment, err := s.payments.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment.UserID() != userID {
		return nil, domain.ErrPaymentNotFound
	}
	view := toPaymentView(payment)
	return &view, nil
}

// ListPayments returns the user's payments, newest first, with the sum of the completed ones.
func (s *PaymentService) ListPayments(ctx context.Context, userID vo.UserID) (*PaymentList, error) {
	payments, err := s.payments.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	list := &PaymentList{
		Payments:       make([]PaymentView, 0, len(payments)),
		TotalCompleted: vo.Zero(s.policy.Currency),
	}
	for _, p := range payments {
		list.Payments = append(list.Payments, toPaymentView(p))
		if p.Status() != domain.PaymentStatusCompleted {
			continue
		}
		total, err := list.TotalCompleted.Add(p.Amount())
		if err != nil {
			return nil, err
		}
		list.TotalCompleted = total
	}
	return list, nil
}

func (s *PaymentService) validateAmount(amount decimal.Decimal) (vo.Money, error) {
	if !amount.IsPositive() {
		return vo.Money{}, domain.ErrInvalidPaymentAmount
	}
	if amount.GreaterThan(s.policy.MaxAmount) {
		return vo.Money{}, domain.ErrPaymentAmountTooHigh
	}
	return vo.New(amount, s.policy.Currency.String())
}

func (s *PaymentService) complete(ctx context.Context, scope string, id domain.PaymentID) {
	if err := s.idempotency.Complete(context.WithoutCancel(ctx), scope, id, s.policy.IdempotencyTTL); err != nil {
		logging.WarnContext(ctx, "Could not record idempotency key", "payment_id", id.String(), "error", err)
	}
}

func (s *PaymentService) release(ctx context.Context, scope string) {
	if err := s.idempotency.Release(context.WithoutCancel(ctx), scope); err != nil {
		logging.WarnContext(ctx, "Could not release idempotency key", "error", err)
	}
}

func idempotencyScope(userID vo.UserID, key string) string {
	return userID.String() + ":" + key
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
