package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	cardsapp "cardbank/internal/cards/application"
	cardsmemory "cardbank/internal/cards/infrastructure/memory"
	"cardbank/internal/common/auth"
	vo "cardbank/internal/common/value_objects"
	"cardbank/internal/payments/api"
	"cardbank/internal/payments/application"
	"cardbank/internal/payments/domain"
	"cardbank/internal/payments/infrastructure/memory"
)

// HandlerSuite tests the Payments HTTP surface.
//
// Justification: the Idempotency-Key header, replay status codes and error
// mapping only exist at the HTTP boundary.
type HandlerSuite struct {
	suite.Suite
	router chi.Router
	owner  vo.UserID
	cardID string
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	cardService := cardsapp.NewCardService(cardsmemory.NewDataStore(), cardsapp.DefaultIssuancePolicy(),
		cardsapp.WithClock(clock),
		cardsapp.WithRandomSource(rand.New(rand.NewPCG(1, 2))),
	)
	payments := application.NewPaymentService(memory.NewPaymentRepository(), memory.NewIdempotencyStore(),
		cardService, application.DefaultPolicy(), application.WithClock(clock))

	s.owner = vo.NewUserID()
	resp, err := cardService.CreateCard(context.Background(), cardsapp.CreateCardRequest{
		UserID:      s.owner,
		HolderName:  "Ana Gomez",
		CreditLimit: decimal.NewFromInt(1000),
	})
	s.Require().NoError(err)
	s.cardID = resp.CardID.String()

	s.router = chi.NewRouter()
	api.NewHandler(payments).Register(s.router)
}

func (s *HandlerSuite) doRequest(method, path string, userID vo.UserID, key string, body any) *httptest.ResponseRecorder {
	reqBody := bytes.NewBuffer(nil)
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(api.IdempotencyKeyHeader, key)
	}
	if !userID.IsEmpty() {
		req = req.WithContext(auth.WithUserID(req.Context(), userID))
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) pay(key string, amount string) *httptest.ResponseRecorder {
	return s.doRequest(http.MethodPost, "/payments", s.owner, key, map[string]any{
		"card_id":     s.cardID,
		"amount":      amount,
		"description": "Groceries",
	})
}

func (s *HandlerSuite) TestProcessAndReplay() {
	rec := s.pay("order-1", "120.50")
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	var created api.PaymentResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &created))
	s.Equal("completed", created.Status)
	s.Equal("120.50", created.Amount)
	s.Equal("COP", created.Currency)
	s.Equal("/payments/"+created.ID, rec.Header().Get("Location"))

	replay := s.pay("order-1", "120.50")
	s.Require().Equal(http.StatusOK, replay.Code, replay.Body.String())
	s.Equal("true", replay.Header().Get("Idempotent-Replayed"))

	var replayed api.PaymentResponse
	s.Require().NoError(json.Unmarshal(replay.Body.Bytes(), &replayed))
	s.Equal(created.ID, replayed.ID)

	get := s.doRequest(http.MethodGet, "/payments/"+created.ID, s.owner, "", nil)
	s.Equal(http.StatusOK, get.Code)

	list := s.doRequest(http.MethodGet, "/payments", s.owner, "", nil)
	s.Require().Equal(http.StatusOK, list.Code)
	var listed api.ListPaymentsResponse
	s.Require().NoError(json.Unmarshal(list.Body.Bytes(), &listed))
	s.Len(listed.Payments, 1)
	s.Equal("120.50", listed.TotalCompleted)
}

func (s *HandlerSuite) TestErrorMapping() {
	tests := []struct {
		name       string
		userID     vo.UserID
		key        string
		body       any
		wantStatus int
	}{
		{"missing user", vo.UserID{}, "k", map[string]any{"card_id": s.cardID, "amount": "1", "description": "x"}, http.StatusUnauthorized},
		{"missing key", s.owner, "", map[string]any{"card_id": s.cardID, "amount": "1", "description": "x"}, http.StatusBadRequest},
		{"malformed card id", s.owner, "k", map[string]any{"card_id": "nope", "amount": "1", "description": "x"}, http.StatusBadRequest},
		{"malformed body", s.owner, "k", "not an object", http.StatusBadRequest},
		{"zero amount", s.owner, "k", map[string]any{"card_id": s.cardID, "amount": "0", "description": "x"}, http.StatusBadRequest},
		{"amount above maximum", s.owner, "k", map[string]any{"card_id": s.cardID, "amount": "10000.01", "description": "x"}, http.StatusUnprocessableEntity},
		{"blank description", s.owner, "k", map[string]any{"card_id": s.cardID, "amount": "1", "description": " "}, http.StatusUnprocessableEntity},
		{"card of another user", vo.NewUserID(), "k", map[string]any{"card_id": s.cardID, "amount": "1", "description": "x"}, http.StatusNotFound},
		{"insufficient balance", s.owner, "k", map[string]any{"card_id": s.cardID, "amount": "1000.01", "description": "x"}, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			rec := s.doRequest(http.MethodPost, "/payments", tt.userID, tt.key, tt.body)
			s.Equal(tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
}

func (s *HandlerSuite) TestGetPaymentOwnership() {
	rec := s.pay("order-1", "10")
	s.Require().Equal(http.StatusCreated, rec.Code)
	var created api.PaymentResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &created))

	s.Equal(http.StatusNotFound, s.doRequest(http.MethodGet, "/payments/"+created.ID, vo.NewUserID(), "", nil).Code)
	s.Equal(http.StatusNotFound, s.doRequest(http.MethodGet, "/payments/"+domain.NewPaymentID().String(), s.owner, "", nil).Code)
	s.Equal(http.StatusBadRequest, s.doRequest(http.MethodGet, "/payments/not-a-uuid", s.owner, "", nil).Code)
}
