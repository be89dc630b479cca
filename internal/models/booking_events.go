package models

import (
	"time"

	"eventcircle/internal/money"
)

// BookingConfirmed is published after a booking settles.
type BookingConfirmed struct {
	BookingID       string       `json:"booking_id"`
	EventID         string       `json:"event_id"`
	UserID          string       `json:"user_id"`
	CreatorID       string       `json:"creator_id"`
	Reference       string       `json:"reference,omitempty"`
	Free            bool         `json:"free"`
	Price           money.Amount `json:"price"`
	Commission      money.Amount `json:"commission"`
	CreatorEarnings money.Amount `json:"creator_earnings"`
	ConfirmedAt     time.Time    `json:"confirmed_at"`
}

// WithdrawalPaid is published after a payout succeeds.
type WithdrawalPaid struct {
	WithdrawalID      string       `json:"withdrawal_id"`
	UserID            string       `json:"user_id"`
	Amount            money.Amount `json:"amount"`
	TransferReference string       `json:"transfer_reference"`
	CompletedAt       time.Time    `json:"completed_at"`
}
