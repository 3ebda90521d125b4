package postgres_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	cards "cardbank/internal/cards/domain"
	cardspg "cardbank/internal/cards/infrastructure/postgres"
	vo "cardbank/internal/common/value_objects"
	"cardbank/internal/payments/domain"
	"cardbank/internal/payments/infrastructure/postgres"
)

var testNow = time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

// PaymentRepositorySuite tests PaymentRepository against a real Postgres instance.
//
// Justification: the card foreign key and the partial unique index on
// idempotency keys only exist in the database schema.
type PaymentRepositorySuite struct {
	suite.Suite
	ctx    context.Context
	repo   *postgres.PaymentRepository
	userID vo.UserID
	cardID cards.CardID
}

func TestPaymentRepositorySuite(t *testing.T) {
	suite.Run(t, new(PaymentRepositorySuite))
}

func (s *PaymentRepositorySuite) SetupTest() {
	s.ctx = context.Background()
	s.Require().NoError(truncateTables(s.ctx, getTestPool()))
	s.repo = postgres.NewPaymentRepository(getTestPool())

	cipher, err := cardspg.NewNumberCipher([]byte(strings.Repeat("k", 32)))
	s.Require().NoError(err)
	number, err := cards.ParseCardNumber("4532015112830366")
	s.Require().NoError(err)

	s.userID = vo.NewUserID()
	card, err := cards.NewCard(s.userID, number, "Ana Gomez", testNow.AddDate(5, 0, 0), vo.MustNewFromInt(1000, "COP"), testNow)
	s.Require().NoError(err)
	s.Require().NoError(cardspg.NewCardRepository(getTestPool(), cipher).Insert(s.ctx, card))
	s.cardID = card.ID()
}

func (s *PaymentRepositorySuite) newPayment(key string, at time.Time) *domain.Payment {
	p, err := domain.NewPayment(s.userID, s.cardID, vo.MustNewFromInt(125, "COP"), "Book store", key, at)
	s.Require().NoError(err)
	return p
}

func (s *PaymentRepositorySuite) TestInsertAndFind() {
	p := s.newPayment("key-1", testNow)
	s.Require().NoError(p.MarkFailed("insufficient balance", testNow))
	s.Require().NoError(s.repo.Insert(s.ctx, p))

	found, err := s.repo.FindByID(s.ctx, p.ID())
	s.Require().NoError(err)
	s.Equal(p.UserID(), found.UserID())
	s.Equal(p.CardID(), found.CardID())
	s.True(p.Amount().Equal(found.Amount()))
	s.Equal("Book store", found.Description())
	s.Equal(domain.PaymentStatusFailed, found.Status())
	s.Equal("insufficient balance", found.FailureReason())
	s.Equal("key-1", found.IdempotencyKey())
	s.True(testNow.Equal(found.CreatedAt()))

	byKey, err := s.repo.FindByIdempotencyKey(s.ctx, s.userID, "key-1")
	s.Require().NoError(err)
	s.Equal(p.ID(), byKey.ID())
}

func (s *PaymentRepositorySuite) TestNotFound() {
	_, err := s.repo.FindByID(s.ctx, domain.NewPaymentID())
	s.ErrorIs(err, domain.ErrPaymentNotFound)

	_, err = s.repo.FindByIdempotencyKey(s.ctx, s.userID, "missing")
	s.ErrorIs(err, domain.ErrPaymentNotFound)
}

func (s *PaymentRepositorySuite) TestDuplicateIdempotencyKey() {
	s.Require().NoError(s.repo.Insert(s.ctx, s.newPayment("key-1", testNow)))
	err := s.repo.Insert(s.ctx, s.newPayment("key-1", testNow))
	s.ErrorIs(err, domain.ErrDuplicatePayment)
}

func (s *PaymentRepositorySuite) TestFindByUserNewestFirst() {
	older := s.newPayment("a", testNow)
	newer := s.newPayment("b", testNow.Add(time.Minute))
	s.Require().NoError(s.repo.Insert(s.ctx, older))
	s.Require().NoError(s.repo.Insert(s.ctx, newer))

	payments, err := s.repo.FindByUser(s.ctx, s.userID)
	s.Require().NoError(err)
	s.Require().Len(payments, 2)
	s.Equal(newer.ID(), payments[0].ID())
	s.Equal(older.ID(), payments[1].ID())

	none, err := s.repo.FindByUser(s.ctx, vo.NewUserID())
	s.Require().NoError(err)
	s.Empty(none)
}
