package models

import (
	"time"

	"eventcircle/internal/money"

	"github.com/uptrace/bun"
)

// EventBooking is one row of an event's booked_tickets.
type EventBooking struct {
	bun.BaseModel `bun:"table:event_bookings"`

	ID               string       `bun:"id,pk" json:"id"`
	EventID          string       `bun:"event_id,notnull,unique:event_user" json:"event_id"`
	UserID           string       `bun:"user_id,notnull,unique:event_user" json:"user_id"`
	AmountPaid       money.Amount `bun:"amount_paid_cents,notnull" json:"amount_paid"`
	PaymentReference string       `bun:"payment_reference,nullzero" json:"payment_reference,omitempty"`
	BookedAt         time.Time    `bun:"booked_at,notnull" json:"booked_at"`
}

// UserTicket is one entry of a user's my_tickets.
type UserTicket struct {
	bun.BaseModel `bun:"table:user_tickets"`

	UserID   string    `bun:"user_id,pk" json:"user_id"`
	EventID  string    `bun:"event_id,pk" json:"event_id"`
	BookedAt time.Time `bun:"booked_at,notnull" json:"booked_at"`
}

// TicketSummary is a row of the "my tickets" listing.
type TicketSummary struct {
	EventID     string       `bun:"event_id" json:"event_id"`
	Title       string       `bun:"title" json:"event_title"`
	EventDate   time.Time    `bun:"event_date" json:"event_date,omitempty"`
	TicketPrice money.Amount `bun:"ticket_price_cents" json:"ticket_price"`
	BookedAt    time.Time    `bun:"booked_at" json:"booked_at"`
}
