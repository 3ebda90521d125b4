package domain

import (
	"encoding/json"
	"time"

	"cardbank/internal/common/events"
	vo "cardbank/internal/common/value_objects"
)

// Event types for the Cards context.
const (
	EventTypeCardIssued        = "card.issued"
	EventTypeCardUpdated       = "card.updated"
	EventTypeCardStatusChanged = "card.status_changed"
	EventTypeCardDebited       = "card.debited"
	EventTypeCardCredited      = "card.credited"
)

// CardSnapshotEvent carries the card state after an issuance, update or status change.
// Only the masked number is ever published.
type CardSnapshotEvent struct {
	CardID       string    `json:"card_id"`
	UserID       string    `json:"user_id"`
	MaskedNumber string    `json:"masked_number"`
	HolderName   string    `json:"holder_name"`
	Status       string    `json:"status"`
	Balance      string    `json:"balance"`
	CreditLimit  string    `json:"credit_limit"`
	Currency     string    `json:"currency"`
	ExpiresAt    time.Time `json:"expires_at"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// CardMovementEvent carries a debit or credit against the card balance.
type CardMovementEvent struct {
	CardID       string    `json:"card_id"`
	UserID       string    `json:"user_id"`
	Amount       string    `json:"amount"`
	BalanceAfter string    `json:"balance_after"`
	Currency     string    `json:"currency"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// NewCardSnapshotOutboxEntry creates an outbox entry describing the card's current state.
func NewCardSnapshotOutboxEntry(
	eventType string,
	card *Card,
	correlationID vo.CorrelationID,
	now time.Time,
) (*OutboxEntry, error) {
	event := CardSnapshotEvent{
		CardID:       card.ID().String(),
		UserID:       card.UserID().String(),
		MaskedNumber: card.Number().Masked(),
		HolderName:   card.HolderName(),
		Status:       string(card.Status()),
		Balance:      card.Balance().Amount().StringFixed(2),
		CreditLimit:  card.CreditLimit().Amount().StringFixed(2),
		Currency:     card.CreditLimit().Currency().String(),
		ExpiresAt:    card.ExpiresAt(),
		OccurredAt:   now,
	}
	return newOutboxEntry(eventType, card, correlationID, event, now)
}

// NewCardMovementOutboxEntry creates an outbox entry for a debit or credit.
func NewCardMovementOutboxEntry(
	eventType string,
	card *Card,
	amount vo.Money,
	correlationID vo.CorrelationID,
	now time.Time,
) (*OutboxEntry, error) {
	event := CardMovementEvent{
		CardID:       card.ID().String(),
		UserID:       card.UserID().String(),
		Amount:       amount.Amount().StringFixed(2),
		BalanceAfter: card.Balance().Amount().StringFixed(2),
		Currency:     amount.Currency().String(),
		OccurredAt:   now,
	}
	return newOutboxEntry(eventType, card, correlationID, event, now)
}

func newOutboxEntry(eventType string, card *Card, correlationID vo.CorrelationID, event any, now time.Time) (*OutboxEntry, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return &OutboxEntry{
		ID:            events.NewEventID(),
		EventType:     eventType,
		UserID:        card.UserID(),
		AggregateID:   card.ID().String(),
		CorrelationID: correlationID,
		Payload:       payload,
		OccurredAt:    now,
	}, nil
}
