package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"cardbank/internal/cards/domain"
	"cardbank/internal/common/logging"
	"cardbank/internal/common/metrics"
	vo "cardbank/internal/common/value_objects"
)

var tracer = otel.Tracer("cardbank/internal/cards/application")

const (
	minHolderNameLength = 3
	maxHolderNameLength = 100
)

// CardService issues and maintains cards and answers balance questions for payments.
//
// All state-changing operations use the Atomic callback pattern and write
// a domain event to the outbox in the same transaction.
type CardService struct {
	dataStore domain.AtomicExecutor
	repos     domain.Repositories
	policy    IssuancePolicy
	numbers   *NumberGenerator
	now       func() time.Time
}

// Option configures a CardService.
type Option func(*cardServiceOptions)

type cardServiceOptions struct {
	now    func() time.Time
	random RandomSource
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(o *cardServiceOptions) { o.now = now }
}

// WithRandomSource replaces the random source used for card numbers.
func WithRandomSource(src RandomSource) Option {
	return func(o *cardServiceOptions) { o.random = src }
}

// NewCardService creates a new CardService.
// The dataStore must implement both AtomicExecutor and Repositories interfaces.
func NewCardService(dataStore interface {
	domain.AtomicExecutor
	domain.Repositories
}, policy IssuancePolicy, opts ...Option) *CardService {
	o := cardServiceOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.random == nil {
		o.random = NewSecureRandomSource()
	}

	return &CardService{
		dataStore: dataStore,
		repos:     dataStore,
		policy:    policy,
		numbers:   NewNumberGenerator(policy.IssuerPrefix, policy.MaxNumberAttempts, o.random),
		now:       func() time.Time { return o.now().UTC() },
	}
}

// Policy returns the issuance policy the service was built with.
func (s *CardService) Policy() IssuancePolicy {
	return s.policy
}

// CreateCardRequest represents a request to issue a card.
type CreateCardRequest struct {
	UserID      vo.UserID
	HolderName  string
	CreditLimit decimal.Decimal
}

// CreateCardResponse represents the response from issuing a card.
type CreateCardResponse struct {
	CardID domain.CardID
}

// CreateCard issues a new active card.
// This operation:
//   - Rejects the request when the user already holds MaxActiveCardsPerUser active cards
//   - Draws card numbers until an unused one is found
//   - Sets the expiration to the end of the month ValidityYears from now
//   - Activates the card and stores it with a card.issued event
func (s *CardService) CreateCard(ctx context.Context, req CreateCardRequest) (resp *CreateCardResponse, err error) {
	ctx, span := tracer.Start(ctx, "CardService.CreateCard",
		trace.WithAttributes(attribute.String("user.id", req.UserID.String())))
	defer func() { endSpan(span, err) }()

	holderName, err := validateHolderName(req.HolderName)
	if err != nil {
		return nil, err
	}
	creditLimit, err := vo.New(req.CreditLimit, s.policy.Currency.String())
	if err != nil {
		return nil, err
	}
	if err := s.validateCreditLimit(creditLimit); err != nil {
		return nil, err
	}

	now := s.now()
	err = s.dataStore.Atomic(ctx, func(repos domain.Repositories) error {
		cards, err := repos.Cards().FindByUser(ctx, req.UserID)
		if err != nil {
			return err
		}
		active := 0
		for _, c := range cards {
			if c.IsActive() {
				active++
			}
		}
		if active >= s.policy.MaxActiveCardsPerUser {
			return domain.ErrActiveCardLimitReached
		}

		number, attempts, err := s.numbers.Generate(ctx, repos.Cards().ExistsByNumber)
		metrics.RecordNumberGenerationAttempts(attempts)
		if err != nil {
			return err
		}

		card, err := domain.NewCard(req.UserID, number, holderName, s.policy.ExpirationFrom(now), creditLimit, now)
		if err != nil {
			return err
		}
		if err := card.Activate(now); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrActivationFailed, err)
		}

		if err := repos.Cards().Insert(ctx, card); err != nil {
			return err
		}
		if err := s.appendSnapshot(ctx, repos, domain.EventTypeCardIssued, card, now); err != nil {
			return err
		}

		resp = &CreateCardResponse{CardID: card.ID()}

		logging.InfoContext(ctx, "Card issued",
			"card_id", card.ID().String(),
			"card_number", card.Number().Masked(),
			"credit_limit", creditLimit.String(),
		)
		return nil
	})
	if err != nil {
		metrics.RecordCardOperation("create", outcome(err))
		return nil, err
	}

	metrics.RecordCardOperation("create", "success")
	return resp, nil
}

// UpdateCardRequest represents a request to change the holder name and credit limit.
type UpdateCardRequest struct {
	CardID      domain.CardID
	HolderName  string
	CreditLimit decimal.Decimal
}

// UpdateCard applies the new holder name, then the new credit limit, and stores the card.
func (s *CardService) UpdateCard(ctx context.Context, req UpdateCardRequest) (detail *CardDetail, err error) {
	ctx, span := tracer.Start(ctx, "CardService.UpdateCard",
		trace.WithAttributes(attribute.String("card.id", req.CardID.String())))
	defer func() { endSpan(span, err) }()

	holderName, err := validateHolderName(req.HolderName)
	if err != nil {
		return nil, err
	}

	now := s.now()
	err = s.mutate(ctx, req.CardID, func(card *domain.Card) (*domain.OutboxEntry, error) {
		newLimit, err := vo.New(req.CreditLimit, card.CreditLimit().Currency().String())
		if err != nil {
			return nil, err
		}
		if err := card.UpdateHolderName(holderName, now); err != nil {
			return nil, err
		}
		if err := card.UpdateCreditLimit(newLimit, s.policy.CreditLimitCeiling(), now); err != nil {
			return nil, err
		}
		detail = toCardDetail(card)
		return domain.NewCardSnapshotOutboxEntry(domain.EventTypeCardUpdated, card, logging.CorrelationIDFromContext(ctx), now)
	})
	metrics.RecordCardOperation("update", outcome(err))
	if err != nil {
		return nil, err
	}

	logging.InfoContext(ctx, "Card updated",
		"card_id", req.CardID.String(),
		"credit_limit", detail.CreditLimit.String(),
	)
	return detail, nil
}

// UpdateExpiration moves a card's expiration date.
func (s *CardService) UpdateExpiration(ctx context.Context, cardID domain.CardID, expiresAt time.Time) (detail *CardDetail, err error) {
	ctx, span := tracer.Start(ctx, "CardService.UpdateExpiration",
		trace.WithAttributes(attribute.String("card.id", cardID.String())))
	defer func() { endSpan(span, err) }()

	now := s.now()
	err = s.mutate(ctx, cardID, func(card *domain.Card) (*domain.OutboxEntry, error) {
		if err := card.UpdateExpirationDate(expiresAt.UTC(), now); err != nil {
			return nil, err
		}
		detail = toCardDetail(card)
		return domain.NewCardSnapshotOutboxEntry(domain.EventTypeCardUpdated, card, logging.CorrelationIDFromContext(ctx), now)
	})
	metrics.RecordCardOperation("update_expiration", outcome(err))
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// ActivateCard activates an inactive or blocked card.
func (s *CardService) ActivateCard(ctx context.Context, cardID domain.CardID) (*CardDetail, error) {
	return s.changeStatus(ctx, "ActivateCard", "activate", cardID, (*domain.Card).Activate)
}

// BlockCard blocks a card so it can no longer transact.
func (s *CardService) BlockCard(ctx context.Context, cardID domain.CardID) (*CardDetail, error) {
	return s.changeStatus(ctx, "BlockCard", "block", cardID, (*domain.Card).Block)
}

func (s *CardService) changeStatus(
	ctx context.Context,
	spanName string,
	operation string,
	cardID domain.CardID,
	transition func(*domain.Card, time.Time) error,
) (detail *CardDetail, err error) {
	ctx, span := tracer.Start(ctx, "CardService."+spanName,
		trace.WithAttributes(attribute.String("card.id", cardID.String())))
	defer func() { endSpan(span, err) }()

	now := s.now()
	err = s.mutate(ctx, cardID, func(card *domain.Card) (*domain.OutboxEntry, error) {
		if err := transition(card, now); err != nil {
			return nil, err
		}
		detail = toCardDetail(card)
		return domain.NewCardSnapshotOutboxEntry(domain.EventTypeCardStatusChanged, card, logging.CorrelationIDFromContext(ctx), now)
	})
	metrics.RecordCardOperation(operation, outcome(err))
	if err != nil {
		return nil, err
	}

	logging.InfoContext(ctx, "Card status changed",
		"card_id", cardID.String(),
		"status", string(detail.Status),
	)
	return detail, nil
}

// HasSufficientBalance reports whether the card can currently be debited by amount.
// A missing card yields false rather than an error.
func (s *CardService) HasSufficientBalance(ctx context.Context, cardID domain.CardID, amount decimal.Decimal) (ok bool, err error) {
	ctx, span := tracer.Start(ctx, "CardService.HasSufficientBalance",
		trace.WithAttributes(attribute.String("card.id", cardID.String())))
	defer func() { endSpan(span, err) }()

	card, err := s.repos.Cards().FindByID(ctx, cardID)
	if errors.Is(err, domain.ErrCardNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	requested, err := vo.New(amount, card.Balance().Currency().String())
	if err != nil {
		return false, err
	}
	if !card.CanProcessTransaction(s.now()) {
		return false, nil
	}
	return card.Balance().GreaterThanOrEqual(requested)
}

// DebitCard consumes amount of the card's available credit.
func (s *CardService) DebitCard(ctx context.Context, cardID domain.CardID, amount decimal.Decimal) (err error) {
	ctx, span := tracer.Start(ctx, "CardService.DebitCard",
		trace.WithAttributes(
			attribute.String("card.id", cardID.String()),
			attribute.String("amount", amount.String()),
		))
	defer func() { endSpan(span, err) }()

	now := s.now()
	var balance vo.Money
	err = s.mutate(ctx, cardID, func(card *domain.Card) (*domain.OutboxEntry, error) {
		debit, err := vo.New(amount, card.Balance().Currency().String())
		if err != nil {
			return nil, err
		}
		if err := card.Debit(debit, now); err != nil {
			return nil, err
		}
		balance = card.Balance()
		return domain.NewCardMovementOutboxEntry(domain.EventTypeCardDebited, card, debit, logging.CorrelationIDFromContext(ctx), now)
	})
	metrics.RecordCardOperation("debit", outcome(err))
	if err != nil {
		return err
	}

	logging.InfoContext(ctx, "Card debited",
		"card_id", cardID.String(),
		"amount", amount.StringFixed(2),
		"balance", balance.String(),
	)
	return nil
}

// CreditCard restores available credit, capped at the card limit.
// A single credit may not exceed the policy's MaxCreditAmount.
func (s *CardService) CreditCard(ctx context.Context, cardID domain.CardID, amount decimal.Decimal) (detail *CardDetail, err error) {
	ctx, span := tracer.Start(ctx, "CardService.CreditCard",
		trace.WithAttributes(
			attribute.String("card.id", cardID.String()),
			attribute.String("amount", amount.String()),
		))
	defer func() { endSpan(span, err) }()

	if !amount.IsPositive() {
		return nil, domain.ErrNonPositiveAmount
	}
	if amount.GreaterThan(s.policy.MaxCreditAmount) {
		return nil, domain.ErrCreditAmountTooHigh
	}

	now := s.now()
	err = s.mutate(ctx, cardID, func(card *domain.Card) (*domain.OutboxEntry, error) {
		credit, err := vo.New(amount, card.Balance().Currency().String())
		if err != nil {
			return nil, err
		}
		if err := card.Credit(credit, now); err != nil {
			return nil, err
		}
		detail = toCardDetail(card)
		return domain.NewCardMovementOutboxEntry(domain.EventTypeCardCredited, card, credit, logging.CorrelationIDFromContext(ctx), now)
	})
	metrics.RecordCardOperation("credit", outcome(err))
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// CardBelongsToUser reports whether the card exists and is owned by userID.
func (s *CardService) CardBelongsToUser(ctx context.Context, cardID domain.CardID, userID vo.UserID) (bool, error) {
	card, err := s.repos.Cards().FindByID(ctx, cardID)
	if errors.Is(err, domain.ErrCardNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return card.UserID() == userID, nil
}

// CardExists reports whether a card with the id exists.
func (s *CardService) CardExists(ctx context.Context, cardID domain.CardID) (bool, error) {
	_, err := s.repos.Cards().FindByID(ctx, cardID)
	if errors.Is(err, domain.ErrCardNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetCard returns the detail view of a card.
func (s *CardService) GetCard(ctx context.Context, cardID domain.CardID) (*CardDetail, error) {
	card, err := s.repos.Cards().FindByID(ctx, cardID)
	if err != nil {
		return nil, err
	}
	return toCardDetail(card), nil
}

// GetCardSummary returns the list view of a single card.
func (s *CardService) GetCardSummary(ctx context.Context, cardID domain.CardID) (*CardSummary, error) {
	card, err := s.repos.Cards().FindByID(ctx, cardID)
	if err != nil {
		return nil, err
	}
	summary := toCardSummary(card)
	return &summary, nil
}

// ListUserCards returns every card owned by the user, oldest first.
func (s *CardService) ListUserCards(ctx context.Context, userID vo.UserID) ([]CardSummary, error) {
	cards, err := s.repos.Cards().FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	summaries := make([]CardSummary, 0, len(cards))
	for _, card := range cards {
		summaries = append(summaries, toCardSummary(card))
	}
	return summaries, nil
}

// mutate loads a card, applies fn, and stores the card together with the event fn returns.
func (s *CardService) mutate(
	ctx context.Context,
	cardID domain.CardID,
	fn func(card *domain.Card) (*domain.OutboxEntry, error),
) error {
	return s.dataStore.Atomic(ctx, func(repos domain.Repositories) error {
		card, err := repos.Cards().FindByID(ctx, cardID)
		if err != nil {
			return err
		}
		entry, err := fn(card)
		if err != nil {
			return err
		}
		if err := repos.Cards().Update(ctx, card); err != nil {
			return err
		}
		return repos.Outbox().Append(ctx, entry)
	})
}

func (s *CardService) appendSnapshot(ctx context.Context, repos domain.Repositories, eventType string, card *domain.Card, now time.Time) error {
	entry, err := domain.NewCardSnapshotOutboxEntry(eventType, card, logging.CorrelationIDFromContext(ctx), now)
	if err != nil {
		return err
	}
	return repos.Outbox().Append(ctx, entry)
}

func (s *CardService) validateCreditLimit(limit vo.Money) error {
	if limit.IsZero() {
		return domain.ErrNonPositiveLimit
	}
	if limit.Amount().GreaterThan(s.policy.MaxCreditLimit) {
		return domain.ErrLimitTooHigh
	}
	return nil
}

func validateHolderName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", domain.ErrEmptyName
	}
	if n := utf8.RuneCountInString(name); n < minHolderNameLength || n > maxHolderNameLength {
		return "", domain.ErrInvalidHolderName
	}
	return name, nil
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
