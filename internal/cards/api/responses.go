package api

import (
	"time"

	"cardbank/internal/cards/application"
)

// CardSummaryResponse is the list view of a card.
type CardSummaryResponse struct {
	ID           string `json:"id"`
	MaskedNumber string `json:"masked_number"`
	Balance      string `json:"balance"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
}

// ListCardsResponse wraps the caller's cards.
type ListCardsResponse struct {
	Cards []CardSummaryResponse `json:"cards"`
}

// CardDetailResponse is the full view of a card.
type CardDetailResponse struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	MaskedNumber   string    `json:"masked_number"`
	HolderName     string    `json:"holder_name"`
	ExpirationDate time.Time `json:"expiration_date"`
	Balance        string    `json:"balance"`
	CreditLimit    string    `json:"credit_limit"`
	Currency       string    `json:"currency"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toSummaryResponse(s application.CardSummary) CardSummaryResponse {
	return CardSummaryResponse{
		ID:           s.ID.String(),
		MaskedNumber: s.MaskedNumber,
		Balance:      s.Balance.Amount().StringFixed(2),
		Currency:     s.Balance.Currency().String(),
		Status:       string(s.Status),
	}
}

func toDetailResponse(d *application.CardDetail) CardDetailResponse {
	return CardDetailResponse{
		ID:             d.ID.String(),
		UserID:         d.UserID.String(),
		MaskedNumber:   d.MaskedNumber,
		HolderName:     d.HolderName,
		ExpirationDate: d.ExpirationDate,
		Balance:        d.Balance.Amount().StringFixed(2),
		CreditLimit:    d.CreditLimit.Amount().StringFixed(2),
		Currency:       d.CreditLimit.Currency().String(),
		Status:         string(d.Status),
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}
