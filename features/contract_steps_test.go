package features

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/cucumber/godog"
	"github.com/go-chi/chi/v5"

	cardsapi "cardbank/internal/cards/api"
	"cardbank/internal/cards/application"
	"cardbank/internal/cards/infrastructure/memory"
	"cardbank/internal/common/auth"
	vo "cardbank/internal/common/value_objects"
)

type contractState struct {
	server   *httptest.Server
	tokens   *auth.TokenService
	token    string
	response *http.Response
	body     []byte
}

func InitializeScenario(sc *godog.ScenarioContext) {
	state := &contractState{}

	sc.Step(`^the service is running$`, state.theServiceIsRunning)
	sc.Step(`^I am signed in$`, state.iAmSignedIn)
	sc.Step(`^I request the health endpoint$`, state.iRequestTheHealthEndpoint)
	sc.Step(`^I list my cards without a token$`, state.iListMyCardsWithoutAToken)
	sc.Step(`^I list my cards$`, state.iListMyCards)
	sc.Step(`^I issue a card with a credit limit of (\d+)$`, state.iIssueACard)
	sc.Step(`^the response status should be (\d+)$`, state.theResponseStatusShouldBe)
	sc.Step(`^the response should contain (\d+) cards?$`, state.theResponseShouldContainCards)

	sc.After(func(ctx context.Context, scenario *godog.Scenario, err error) (context.Context, error) {
		if state.server != nil {
			state.server.Close()
		}
		return ctx, nil
	})
}

func (s *contractState) theServiceIsRunning() error {
	s.tokens = auth.NewTokenService("contract-signing-key", "cardbank")
	service := application.NewCardService(memory.NewDataStore(), application.DefaultIssuancePolicy())

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(s.tokens))
		cardsapi.NewHandler(service).Register(r)
	})
	s.server = httptest.NewServer(r)
	return nil
}

func (s *contractState) iAmSignedIn() error {
	token, err := s.tokens.Issue(vo.NewUserID(), time.Hour)
	if err != nil {
		return err
	}
	s.token = token
	return nil
}

func (s *contractState) do(method, path, token string, body any) error {
	if s.server == nil {
		return fmt.Errorf("server not running")
	}
	var reader bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&reader).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequest(method, s.server.URL+path, &reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to request %s: %w", path, err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return err
	}
	s.response = resp
	s.body = buf.Bytes()
	return nil
}

func (s *contractState) iRequestTheHealthEndpoint() error {
	return s.do(http.MethodGet, "/health", "", nil)
}

func (s *contractState) iListMyCardsWithoutAToken() error {
	return s.do(http.MethodGet, "/cards", "", nil)
}

func (s *contractState) iListMyCards() error {
	return s.do(http.MethodGet, "/cards", s.token, nil)
}

func (s *contractState) iIssueACard(limit int) error {
	return s.do(http.MethodPost, "/cards", s.token, map[string]any{
		"holder_name":  "Ana Gomez",
		"credit_limit": fmt.Sprint(limit),
	})
}

func (s *contractState) theResponseStatusShouldBe(expected int) error {
	if s.response == nil {
		return fmt.Errorf("no response received")
	}
	if s.response.StatusCode != expected {
		return fmt.Errorf("expected status %d, got %d: %s", expected, s.response.StatusCode, s.body)
	}
	return nil
}

func (s *contractState) theResponseShouldContainCards(n int) error {
	var resp cardsapi.ListCardsResponse
	if err := json.Unmarshal(s.body, &resp); err != nil {
		return err
	}
	if len(resp.Cards) != n {
		return fmt.Errorf("expected %d cards, got %d", n, len(resp.Cards))
	}
	return nil
}
