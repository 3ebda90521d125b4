package cards

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/cucumber/godog"
	"github.com/shopspring/decimal"

	"cardbank/internal/cards/application"
	"cardbank/internal/cards/domain"
	"cardbank/internal/cards/infrastructure/memory"
	vo "cardbank/internal/common/value_objects"
)

type cardsState struct {
	ctx       context.Context
	now       time.Time
	store     *memory.DataStore
	service   *application.CardService
	userID    vo.UserID
	cardID    domain.CardID
	cards     []domain.CardID
	lastError error
}

func InitializeCardsScenario(ctx *godog.ScenarioContext) {
	state := &cardsState{
		ctx:    context.Background(),
		userID: vo.NewUserID(),
		store:  memory.NewDataStore(),
	}
	state.service = application.NewCardService(state.store, application.DefaultIssuancePolicy(),
		application.WithClock(func() time.Time { return state.now }),
		application.WithRandomSource(rand.New(rand.NewPCG(42, 7))),
	)

	// Background steps
	ctx.Step(`^today is "([^"]*)"$`, state.todayIs)

	// Issuance steps
	ctx.Step(`^the user requests a card for "([^"]*)" with a credit limit of ([0-9.]+)$`, state.theUserRequestsACard)
	ctx.Step(`^the user holds (\d+) active cards$`, state.theUserHoldsActiveCards)
	ctx.Step(`^the user has a card with a credit limit of (\d+)$`, state.theUserHasACard)
	ctx.Step(`^the user blocks one of their cards$`, state.theUserBlocksOneOfTheirCards)
	ctx.Step(`^the card should be issued$`, state.theCardShouldBeIssued)
	ctx.Step(`^the card should be "([^"]*)"$`, state.theCardShouldBe)
	ctx.Step(`^the card should expire on "([^"]*)"$`, state.theCardShouldExpireOn)
	ctx.Step(`^the card number should start with "([^"]*)" and pass the Luhn check$`, state.theCardNumberShouldStartWith)

	// Maintenance steps
	ctx.Step(`^the user changes the credit limit to (\d+)$`, state.theUserChangesTheCreditLimit)
	ctx.Step(`^the card is debited (\d+)$`, state.theCardIsDebited)
	ctx.Step(`^the card is credited (\d+)$`, state.theCardIsCredited)
	ctx.Step(`^the card balance should be ([0-9.]+)$`, state.theCardBalanceShouldBe)
	ctx.Step(`^the request should fail with "([^"]*)"$`, state.theRequestShouldFailWith)
}

func (s *cardsState) todayIs(date string) error {
	day, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return err
	}
	s.now = day.Add(10 * time.Hour)
	return nil
}

func (s *cardsState) issue(holder string, limit decimal.Decimal) (domain.CardID, error) {
	resp, err := s.service.CreateCard(s.ctx, application.CreateCardRequest{
		UserID:      s.userID,
		HolderName:  holder,
		CreditLimit: limit,
	})
	if err != nil {
		return domain.CardID{}, err
	}
	s.cards = append(s.cards, resp.CardID)
	return resp.CardID, nil
}

func (s *cardsState) theUserRequestsACard(holder, limit string) error {
	amount, err := decimal.NewFromString(limit)
	if err != nil {
		return err
	}
	s.cardID, s.lastError = s.issue(holder, amount)
	return nil
}

func (s *cardsState) theUserHoldsActiveCards(n int) error {
	for range n {
		if _, err := s.issue("Ana Gomez", decimal.NewFromInt(1000)); err != nil {
			return fmt.Errorf("failed to issue card: %w", err)
		}
	}
	return nil
}

func (s *cardsState) theUserHasACard(limit int) error {
	id, err := s.issue("Ana Gomez", decimal.NewFromInt(int64(limit)))
	if err != nil {
		return fmt.Errorf("failed to issue card: %w", err)
	}
	s.cardID = id
	return nil
}

func (s *cardsState) theUserBlocksOneOfTheirCards() error {
	if len(s.cards) == 0 {
		return fmt.Errorf("the user has no cards")
	}
	_, err := s.service.BlockCard(s.ctx, s.cards[0])
	return err
}

func (s *cardsState) theCardShouldBeIssued() error {
	if s.lastError != nil {
		return fmt.Errorf("expected card to be issued, got error: %v", s.lastError)
	}
	if s.cardID.IsEmpty() {
		return fmt.Errorf("no card id returned")
	}
	return nil
}

func (s *cardsState) card() (*domain.Card, error) {
	return s.store.Cards().FindByID(s.ctx, s.cardID)
}

func (s *cardsState) theCardShouldBe(status string) error {
	card, err := s.card()
	if err != nil {
		return err
	}
	if string(card.Status()) != status {
		return fmt.Errorf("expected status %q, got %q", status, card.Status())
	}
	return nil
}

func (s *cardsState) theCardShouldExpireOn(date string) error {
	card, err := s.card()
	if err != nil {
		return err
	}
	if got := card.ExpiresAt().Format(time.DateOnly); got != date {
		return fmt.Errorf("expected expiry %s, got %s", date, got)
	}
	return nil
}

func (s *cardsState) theCardNumberShouldStartWith(prefix string) error {
	card, err := s.card()
	if err != nil {
		return err
	}
	number := card.Number().Value()
	if !strings.HasPrefix(number, prefix) {
		return fmt.Errorf("expected prefix %s, got %s", prefix, card.Number().Masked())
	}
	if !domain.LuhnValid(number) {
		return fmt.Errorf("card number failed the Luhn check")
	}
	return nil
}

func (s *cardsState) theUserChangesTheCreditLimit(limit int) error {
	card, err := s.card()
	if err != nil {
		return err
	}
	_, s.lastError = s.service.UpdateCard(s.ctx, application.UpdateCardRequest{
		CardID:      s.cardID,
		HolderName:  card.HolderName(),
		CreditLimit: decimal.NewFromInt(int64(limit)),
	})
	return nil
}

func (s *cardsState) theCardIsDebited(amount int) error {
	s.lastError = s.service.DebitCard(s.ctx, s.cardID, decimal.NewFromInt(int64(amount)))
	return nil
}

func (s *cardsState) theCardIsCredited(amount int) error {
	_, s.lastError = s.service.CreditCard(s.ctx, s.cardID, decimal.NewFromInt(int64(amount)))
	return nil
}

func (s *cardsState) theCardBalanceShouldBe(expected string) error {
	card, err := s.card()
	if err != nil {
		return err
	}
	if got := card.Balance().Amount().StringFixed(2); got != expected {
		return fmt.Errorf("expected balance %s, got %s", expected, got)
	}
	return nil
}

func (s *cardsState) theRequestShouldFailWith(message string) error {
	if s.lastError == nil {
		return fmt.Errorf("expected error %q, got success", message)
	}
	if !strings.Contains(s.lastError.Error(), message) {
		return fmt.Errorf("expected error containing %q, got: %v", message, s.lastError)
	}
	return nil
}
