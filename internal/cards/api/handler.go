package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"cardbank/internal/cards/application"
	"cardbank/internal/cards/domain"
	"cardbank/internal/common/auth"
	"cardbank/internal/common/logging"
	vo "cardbank/internal/common/value_objects"
)

// Handler implements the HTTP handlers for the Cards API.
// Every route expects auth.Middleware to have put the caller's user id in the context.
type Handler struct {
	service *application.CardService
}

// NewHandler creates a new Handler.
func NewHandler(service *application.CardService) *Handler {
	return &Handler{service: service}
}

// Register registers the Cards API routes on the given router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/cards", func(r chi.Router) {
		r.Post("/", h.CreateCard)
		r.Get("/", h.ListCards)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetCard)
			r.Put("/", h.UpdateCard)
			r.Get("/summary", h.GetCardSummary)
			r.Put("/expiration", h.UpdateExpiration)
			r.Post("/activate", h.ActivateCard)
			r.Post("/block", h.BlockCard)
			r.Post("/credit", h.CreditCard)
		})
	})
}

// CreateCardRequest is the JSON request body for issuing a card.
type CreateCardRequest struct {
	HolderName  string          `json:"holder_name"`
	CreditLimit decimal.Decimal `json:"credit_limit"`
}

// CreateCardResponse is the JSON response for an issued card.
type CreateCardResponse struct {
	CardID string `json:"card_id"`
}

// CreateCard handles POST /cards.
func (h *Handler) CreateCard(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req CreateCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	resp, err := h.service.CreateCard(r.Context(), application.CreateCardRequest{
		UserID:      userID,
		HolderName:  req.HolderName,
		CreditLimit: req.CreditLimit,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	w.Header().Set("Location", "/cards/"+resp.CardID.String())
	writeJSON(w, http.StatusCreated, CreateCardResponse{CardID: resp.CardID.String()})
}

// ListCards handles GET /cards.
func (h *Handler) ListCards(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	summaries, err := h.service.ListUserCards(r.Context(), userID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	resp := ListCardsResponse{Cards: make([]CardSummaryResponse, 0, len(summaries))}
	for _, s := range summaries {
		resp.Cards = append(resp.Cards, toSummaryResponse(s))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetCard handles GET /cards/{id}.
func (h *Handler) GetCard(w http.ResponseWriter, r *http.Request) {
	cardID, ok := h.ownedCard(w, r)
	if !ok {
		return
	}

	detail, err := h.service.GetCard(r.Context(), cardID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDetailResponse(detail))
}

// GetCardSummary handles GET /cards/{id}/summary.
func (h *Handler) GetCardSummary(w http.ResponseWriter, r *http.Request) {
	cardID, ok := h.ownedCard(w, r)
	if !ok {
		return
	}

	summary, err := h.service.GetCardSummary(r.Context(), cardID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryResponse(*summary))
}

// UpdateCardRequest is the JSON request body for changing holder name and credit limit.
type UpdateCardRequest struct {
	HolderName  string          `json:"holder_name"`
	CreditLimit decimal.Decimal `json:"credit_limit"`
}

// UpdateCard handles PUT /cards/{id}.
func (h *Handler) UpdateCard(w http.ResponseWriter, r *http.Request) {
	cardID, ok := h.ownedCard(w, r)
	if !ok {
		return
	}

	var req UpdateCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	detail, err := h.service.UpdateCard(r.Context(), application.UpdateCardRequest{
		CardID:      cardID,
		HolderName:  req.HolderName,
		CreditLimit: req.CreditLimit,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDetailResponse(detail))
}

// UpdateExpirationRequest is the JSON request body for moving the expiration date.
type UpdateExpirationRequest struct {
	ExpirationDate time.Time `json:"expiration_date"`
}

// UpdateExpiration handles PUT /cards/{id}/expiration.
func (h *Handler) UpdateExpiration(w http.ResponseWriter, r *http.Request) {
	cardID, ok := h.ownedCard(w, r)
	if !ok {
		return
	}

	var req UpdateExpirationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.ExpirationDate.IsZero() {
		writeError(w, http.StatusBadRequest, "expiration_date is required", nil)
		return
	}

	detail, err := h.service.UpdateExpiration(r.Context(), cardID, req.ExpirationDate)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDetailResponse(detail))
}

// ActivateCard handles POST /cards/{id}/activate.
func (h *Handler) ActivateCard(w http.ResponseWriter, r *http.Request) {
	cardID, ok := h.ownedCard(w, r)
	if !ok {
		return
	}

	detail, err := h.service.ActivateCard(r.Context(), cardID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDetailResponse(detail))
}

// BlockCard handles POST /cards/{id}/block.
func (h *Handler) BlockCard(w http.ResponseWriter, r *http.Request) {
	cardID, ok := h.ownedCard(w, r)
	if !ok {
		return
	}

	detail, err := h.service.BlockCard(r.Context(), cardID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDetailResponse(detail))
}

// CreditCardRequest is the JSON request body for restoring credit.
type CreditCardRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// CreditCard handles POST /cards/{id}/credit.
func (h *Handler) CreditCard(w http.ResponseWriter, r *http.Request) {
	cardID, ok := h.ownedCard(w, r)
	if !ok {
		return
	}

	var req CreditCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	detail, err := h.service.CreditCard(r.Context(), cardID, req.Amount)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDetailResponse(detail))
}

func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (vo.UserID, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", nil)
		return vo.UserID{}, false
	}
	return userID, true
}

// ownedCard parses the {id} path parameter and checks the caller owns the card.
// Cards of other users are reported as not found.
func (h *Handler) ownedCard(w http.ResponseWriter, r *http.Request) (domain.CardID, bool) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return domain.CardID{}, false
	}

	cardID, err := domain.ParseCardID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid card_id", err)
		return domain.CardID{}, false
	}

	owned, err := h.service.CardBelongsToUser(r.Context(), cardID, userID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return domain.CardID{}, false
	}
	if !owned {
		writeError(w, http.StatusNotFound, "card not found", nil)
		return domain.CardID{}, false
	}
	return cardID, true
}

// handleServiceError maps service errors to HTTP responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := StatusFor(err)
	if status == http.StatusInternalServerError {
		logging.ErrorContext(r.Context(), "Unhandled error", "error", err)
		writeError(w, status, message, nil)
		return
	}
	writeError(w, status, message, err)
}

// StatusFor maps card and money errors to an HTTP status and message.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrCardNotFound):
		return http.StatusNotFound, "card not found"

	case errors.Is(err, domain.ErrActivationFailed):
		return http.StatusInternalServerError, "internal server error"
	case errors.Is(err, domain.ErrAlreadyActive):
		return http.StatusConflict, "card is already active"
	case errors.Is(err, domain.ErrAlreadyBlocked):
		return http.StatusConflict, "card is already blocked"
	case errors.Is(err, domain.ErrActiveCardLimitReached):
		return http.StatusConflict, "active card limit reached"
	case errors.Is(err, domain.ErrOptimisticLock):
		return http.StatusConflict, "concurrent modification detected, please retry"

	case errors.Is(err, domain.ErrExpiredCard):
		return http.StatusUnprocessableEntity, "card is expired"
	case errors.Is(err, domain.ErrNotEligible):
		return http.StatusUnprocessableEntity, "card cannot process transactions"
	case errors.Is(err, domain.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity, "insufficient balance"
	case errors.Is(err, domain.ErrEmptyName),
		errors.Is(err, domain.ErrInvalidHolderName):
		return http.StatusUnprocessableEntity, "holder name must be 3 to 100 characters"
	case errors.Is(err, domain.ErrPastDate):
		return http.StatusUnprocessableEntity, "expiration date must be in the future"
	case errors.Is(err, domain.ErrNonPositiveLimit):
		return http.StatusUnprocessableEntity, "credit limit must be positive"
	case errors.Is(err, domain.ErrLimitTooHigh):
		return http.StatusUnprocessableEntity, "credit limit exceeds the maximum"
	case errors.Is(err, domain.ErrLimitBelowUsedCredit):
		return http.StatusUnprocessableEntity, "credit limit is below the credit already used"
	case errors.Is(err, domain.ErrCreditAmountTooHigh):
		return http.StatusUnprocessableEntity, "credit amount exceeds the maximum"

	case errors.Is(err, domain.ErrNonPositiveAmount),
		errors.Is(err, vo.ErrInvalidAmount):
		return http.StatusBadRequest, "amount must be positive"
	case errors.Is(err, vo.ErrCurrencyMismatch):
		return http.StatusBadRequest, "currency mismatch"

	case errors.Is(err, domain.ErrCardNumberGenerationExhausted):
		return http.StatusServiceUnavailable, "could not allocate a card number, please retry"
	}
	return http.StatusInternalServerError, "internal server error"
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Message = err.Error()
	}
	writeJSON(w, status, resp)
}
