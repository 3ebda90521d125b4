package domain

// CardStatus is the lifecycle state of a card.
type CardStatus string

const (
	CardStatusInactive CardStatus = "inactive"
	CardStatusActive   CardStatus = "active"
	CardStatusBlocked  CardStatus = "blocked"
)

// ParseCardStatus converts a stored status back into a CardStatus.
func ParseCardStatus(s string) (CardStatus, bool) {
	switch CardStatus(s) {
	case CardStatusInactive, CardStatusActive, CardStatusBlocked:
		return CardStatus(s), true
	default:
		return "", false
	}
}
