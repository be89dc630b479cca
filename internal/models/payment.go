package models

import (
	"time"

	"eventcircle/internal/money"
)

type PaymentSessionStatus string

const (
	PaymentSessionInitiated PaymentSessionStatus = "initiated"
	PaymentSessionSettled   PaymentSessionStatus = "settled"
)

// PaymentSession ties a gateway reference to the booking it was opened for.
// It lives in Redis only and expires with the checkout.
type PaymentSession struct {
	Reference string               `json:"reference"`
	EventID   string               `json:"event_id"`
	UserID    string               `json:"user_id"`
	Amount    money.Amount         `json:"amount"`
	Currency  string               `json:"currency"`
	Status    PaymentSessionStatus `json:"status"`
	CreatedAt time.Time            `json:"created_at"`
}

// Matches reports whether the session was opened for this event and user.
func (p *PaymentSession) Matches(eventID, userID string) bool {
	return p.EventID == eventID && p.UserID == userID
}
