package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	cardsapi "cardbank/internal/cards/api"
	cards "cardbank/internal/cards/domain"
	"cardbank/internal/common/auth"
	"cardbank/internal/common/logging"
	vo "cardbank/internal/common/value_objects"
	"cardbank/internal/payments/application"
	"cardbank/internal/payments/domain"
)

// IdempotencyKeyHeader carries the client-chosen key for POST /payments.
const IdempotencyKeyHeader = "Idempotency-Key"

// Handler implements the HTTP handlers for the Payments API.
type Handler struct {
	service *application.PaymentService
}

// NewHandler creates a new Handler.
func NewHandler(service *application.PaymentService) *Handler {
	return &Handler{service: service}
}

// Register registers the Payments API routes on the given router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/payments", func(r chi.Router) {
		r.Post("/", h.ProcessPayment)
		r.Get("/", h.ListPayments)
		r.Get("/{id}", h.GetPayment)
	})
}

// ProcessPaymentRequest is the JSON request body for a payment.
type ProcessPaymentRequest struct {
	CardID      string          `json:"card_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// PaymentResponse is the JSON representation of a payment.
type PaymentResponse struct {
	ID            string    `json:"id"`
	CardID        string    `json:"card_id"`
	Amount        string    `json:"amount"`
	Currency      string    `json:"currency"`
	Description   string    `json:"description"`
	Status        string    `json:"status"`
	FailureReason string    `json:"failure_reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ListPaymentsResponse is the JSON response for GET /payments.
type ListPaymentsResponse struct {
	Payments       []PaymentResponse `json:"payments"`
	TotalCompleted string            `json:"total_completed"`
}

// ProcessPayment handles POST /payments.
// A replayed key answers 200 with the stored payment instead of 201.
func (h *Handler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req ProcessPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	cardID, err := cards.ParseCardID(req.CardID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid card_id", err)
		return
	}

	result, err := h.service.ProcessPayment(r.Context(), application.ProcessPaymentRequest{
		UserID:         userID,
		CardID:         cardID,
		Amount:         req.Amount,
		Description:    req.Description,
		IdempotencyKey: r.Header.Get(IdempotencyKeyHeader),
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
		w.Header().Set("Idempotent-Replayed", "true")
	}
	w.Header().Set("Location", "/payments/"+result.Payment.ID.String())
	writeJSON(w, status, toPaymentResponse(result.Payment))
}

// ListPayments handles GET /payments.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	list, err := h.service.ListPayments(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := ListPaymentsResponse{
		Payments:       make([]PaymentResponse, 0, len(list.Payments)),
		TotalCompleted: list.TotalCompleted.Amount().StringFixed(2),
	}
	for _, p := range list.Payments {
		resp.Payments = append(resp.Payments, toPaymentResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetPayment handles GET /payments/{id}.
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	paymentID, err := domain.ParsePaymentID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid payment_id", err)
		return
	}

	view, err := h.service.GetPayment(r.Context(), userID, paymentID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponse(*view))
}

func requireUser(w http.ResponseWriter, r *http.Request) (vo.UserID, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", nil)
		return vo.UserID{}, false
	}
	return userID, true
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := statusFor(err)
	if status == http.StatusInternalServerError {
		logging.ErrorContext(r.Context(), "Unhandled error", "error", err)
		writeError(w, status, message, nil)
		return
	}
	writeError(w, status, message, err)
}

// statusFor maps payment errors first and defers to the card mapping for
// errors raised by the card service, including the cause of a failed payment.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrPaymentNotRecorded):
		return http.StatusInternalServerError, "payment could not be recorded"
	case errors.Is(err, domain.ErrPaymentNotFound):
		return http.StatusNotFound, "payment not found"
	case errors.Is(err, domain.ErrMissingIdempotencyKey):
		return http.StatusBadRequest, "Idempotency-Key header is required"
	case errors.Is(err, domain.ErrInvalidPaymentAmount):
		return http.StatusBadRequest, "amount must be positive"
	case errors.Is(err, domain.ErrPaymentAmountTooHigh):
		return http.StatusUnprocessableEntity, "amount exceeds the maximum"
	case errors.Is(err, domain.ErrInvalidDescription):
		return http.StatusUnprocessableEntity, "description must be 1 to 200 characters"
	case errors.Is(err, domain.ErrIdempotencyInProgress):
		return http.StatusConflict, "a request with this idempotency key is in progress"
	case errors.Is(err, domain.ErrDuplicatePayment):
		return http.StatusConflict, "payment already exists"
	}
	return cardsapi.StatusFor(err)
}

func toPaymentResponse(p application.PaymentView) PaymentResponse {
	return PaymentResponse{
		ID:            p.ID.String(),
		CardID:        p.CardID.String(),
		Amount:        p.Amount.Amount().StringFixed(2),
		Currency:      p.Amount.Currency().String(),
		Description:   p.Description,
		Status:        string(p.Status),
		FailureReason: p.FailureReason,
		CreatedAt:     p.CreatedAt,
	}
}

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

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Message = err.Error()
	}
	writeJSON(w, status, resp)
}
