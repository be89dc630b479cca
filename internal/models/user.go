package models

import (
	"time"

	"eventcircle/internal/money"

	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users"`

	ID              string       `bun:"id,pk" json:"id"`
	Email           string       `bun:"email,unique,notnull" json:"email"`
	FullName        string       `bun:"full_name,notnull" json:"full_name"`
	DateOfBirth     *time.Time   `bun:"date_of_birth" json:"date_of_birth,omitempty"`
	Gender          string       `bun:"gender" json:"gender,omitempty"`
	TotalEarnings   money.Amount `bun:"total_earnings_cents,notnull" json:"total_earnings"`
	PayoutRecipient string       `bun:"payout_recipient" json:"-"`
	CreatedAt       time.Time    `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`

	// MyTickets holds the event ids from user_tickets, newest first.
	MyTickets []string `bun:"-" json:"my_tickets"`
}
