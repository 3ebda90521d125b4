package application

import (
	"time"

	cards "cardbank/internal/cards/domain"
	vo "cardbank/internal/common/value_objects"
	"cardbank/internal/payments/domain"
)

// PaymentView is the read model of a payment.
type PaymentView struct {
	ID            domain.PaymentID
	CardID        cards.CardID
	Amount        vo.Money
	Description   string
	Status        domain.PaymentStatus
	FailureReason string
	CreatedAt     time.Time
}

// PaymentList is a user's payment history.
type PaymentList struct {
	Payments       []PaymentView
	TotalCompleted vo.Money
}

func toPaymentView(p *domain.Payment) PaymentView {
	return PaymentView{
		ID:            p.ID(),
		CardID:        p.CardID(),
		Amount:        p.Amount(),
		Description:   p.Description(),
		Status:        p.Status(),
		FailureReason: p.FailureReason(),
		CreatedAt:     p.CreatedAt(),
	}
}
