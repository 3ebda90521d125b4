package payments

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/cucumber/godog"
	"github.com/shopspring/decimal"

	cardsapp "cardbank/internal/cards/application"
	cards "cardbank/internal/cards/domain"
	cardsmemory "cardbank/internal/cards/infrastructure/memory"
	vo "cardbank/internal/common/value_objects"
	"cardbank/internal/payments/application"
	"cardbank/internal/payments/infrastructure/memory"
)

type paymentsState struct {
	ctx        context.Context
	cards      *cardsapp.CardService
	payments   *application.PaymentService
	userID     vo.UserID
	cardID     cards.CardID
	lastResult *application.ProcessPaymentResult
	lastError  error
}

func InitializePaymentsScenario(ctx *godog.ScenarioContext) {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	cardService := cardsapp.NewCardService(cardsmemory.NewDataStore(), cardsapp.DefaultIssuancePolicy(),
		cardsapp.WithClock(clock),
		cardsapp.WithRandomSource(rand.New(rand.NewPCG(42, 7))),
	)
	state := &paymentsState{
		ctx:    context.Background(),
		cards:  cardService,
		userID: vo.NewUserID(),
		payments: application.NewPaymentService(
			memory.NewPaymentRepository(),
			memory.NewIdempotencyStore(),
			cardService,
			application.DefaultPolicy(),
			application.WithClock(clock),
		),
	}

	// Background steps
	ctx.Step(`^the user has a card with a credit limit of (\d+)$`, state.theUserHasACard)

	// Payment steps
	ctx.Step(`^the user pays (\d+) for "([^"]*)" with idempotency key "([^"]*)"$`, state.theUserPays)
	ctx.Step(`^another user pays (\d+) with the card using idempotency key "([^"]*)"$`, state.anotherUserPays)
	ctx.Step(`^the payment should be "([^"]*)"$`, state.thePaymentShouldBe)
	ctx.Step(`^the last payment should be a replay$`, state.theLastPaymentShouldBeAReplay)
	ctx.Step(`^the payment should fail with "([^"]*)"$`, state.thePaymentShouldFailWith)

	// Balance and history steps
	ctx.Step(`^the card balance should be ([0-9.]+)$`, state.theCardBalanceShouldBe)
	ctx.Step(`^the user should have (\d+) payments?$`, state.theUserShouldHavePayments)
	ctx.Step(`^the completed total should be ([0-9.]+)$`, state.theCompletedTotalShouldBe)
}

func (s *paymentsState) theUserHasACard(limit int) error {
	resp, err := s.cards.CreateCard(s.ctx, cardsapp.CreateCardRequest{
		UserID:      s.userID,
		HolderName:  "Ana Gomez",
		CreditLimit: decimal.NewFromInt(int64(limit)),
	})
	if err != nil {
		return fmt.Errorf("failed to issue card: %w", err)
	}
	s.cardID = resp.CardID
	return nil
}

func (s *paymentsState) pay(userID vo.UserID, amount int, description, key string) {
	s.lastResult, s.lastError = s.payments.ProcessPayment(s.ctx, application.ProcessPaymentRequest{
		UserID:         userID,
		CardID:         s.cardID,
		Amount:         decimal.NewFromInt(int64(amount)),
		Description:    description,
		IdempotencyKey: key,
	})
}

func (s *paymentsState) theUserPays(amount int, description, key string) error {
	s.pay(s.userID, amount, description, key)
	return nil
}

func (s *paymentsState) anotherUserPays(amount int, key string) error {
	s.pay(vo.NewUserID(), amount, "Stolen goods", key)
	return nil
}

func (s *paymentsState) thePaymentShouldBe(status string) error {
	if s.lastError != nil {
		return fmt.Errorf("expected payment to succeed, got error: %v", s.lastError)
	}
	if string(s.lastResult.Payment.Status) != status {
		return fmt.Errorf("expected status %q, got %q", status, s.lastResult.Payment.Status)
	}
	return nil
}

func (s *paymentsState) theLastPaymentShouldBeAReplay() error {
	if s.lastError != nil {
		return fmt.Errorf("expected replay, got error: %v", s.lastError)
	}
	if !s.lastResult.Replayed {
		return fmt.Errorf("expected the payment to be replayed")
	}
	return nil
}

func (s *paymentsState) thePaymentShouldFailWith(message string) error {
	if s.lastError == nil {
		return fmt.Errorf("expected error %q, got success", message)
	}
	if !strings.Contains(s.lastError.Error(), message) {
		return fmt.Errorf("expected error containing %q, got: %v", message, s.lastError)
	}
	return nil
}

func (s *paymentsState) theCardBalanceShouldBe(expected string) error {
	summary, err := s.cards.GetCardSummary(s.ctx, s.cardID)
	if err != nil {
		return err
	}
	if got := summary.Balance.Amount().StringFixed(2); got != expected {
		return fmt.Errorf("expected balance %s, got %s", expected, got)
	}
	return nil
}

func (s *paymentsState) theUserShouldHavePayments(n int) error {
	list, err := s.payments.ListPayments(s.ctx, s.userID)
	if err != nil {
		return err
	}
	if len(list.Payments) != n {
		return fmt.Errorf("expected %d payments, got %d", n, len(list.Payments))
	}
	return nil
}

func (s *paymentsState) theCompletedTotalShouldBe(expected string) error {
	list, err := s.payments.ListPayments(s.ctx, s.userID)
	if err != nil {
		return err
	}
	if got := list.TotalCompleted.Amount().StringFixed(2); got != expected {
		return fmt.Errorf("expected total %s, got %s", expected, got)
	}
	return nil
}
