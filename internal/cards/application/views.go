package application

import (
	"time"

	"cardbank/internal/cards/domain"
	vo "cardbank/internal/common/value_objects"
)

// CardSummary is the list view of a card.
type CardSummary struct {
	ID           domain.CardID
	MaskedNumber string
	Balance      vo.Money
	Status       domain.CardStatus
}

// CardDetail is the full view of a card. The number is always masked.
type CardDetail struct {
	ID             domain.CardID
	UserID         vo.UserID
	MaskedNumber   string
	HolderName     string
	ExpirationDate time.Time
	Balance        vo.Money
	CreditLimit    vo.Money
	Status         domain.CardStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func toCardSummary(card *domain.Card) CardSummary {
	return CardSummary{
		ID:           card.ID(),
		MaskedNumber: card.Number().Masked(),
		Balance:      card.Balance(),
		Status:       card.Status(),
	}
}

func toCardDetail(card *domain.Card) *CardDetail {
	return &CardDetail{
		ID:             card.ID(),
		UserID:         card.UserID(),
		MaskedNumber:   card.Number().Masked(),
		HolderName:     card.HolderName(),
		ExpirationDate: card.ExpiresAt(),
		Balance:        card.Balance(),
		CreditLimit:    card.CreditLimit(),
		Status:         card.Status(),
		CreatedAt:      card.CreatedAt(),
		UpdatedAt:      card.UpdatedAt(),
	}
}
