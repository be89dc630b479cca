package models

import (
	"time"

	"eventcircle/internal/money"

	"github.com/uptrace/bun"
)

// Age restriction labels. Each one names the ages that may NOT attend.
const (
	AgeUnder18   = "<18"
	Age18To29    = "18-29"
	Age30To39    = "30-39"
	AgeUnder40   = "40<"
	GenderMale   = "male"
	GenderFemale = "female"
)

type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID                string       `bun:"id,pk" json:"id"`
	Title             string       `bun:"title,notnull" json:"event_title"`
	CreatedBy         string       `bun:"created_by,notnull" json:"created_by"`
	TicketPrice       money.Amount `bun:"ticket_price_cents,notnull" json:"ticket_price"`
	MaxCapacity       int          `bun:"event_max_capacity,notnull" json:"event_max_capacity"`
	TicketsSold       int          `bun:"tickets_sold,notnull" json:"ticketsSold"`
	AgeRestriction    LabelSet     `bun:"age_restriction,type:text" json:"age_restriction"`
	GenderRestriction LabelSet     `bun:"gender_restriction,type:text" json:"gender_restriction"`
	EventDate         time.Time    `bun:"event_date,nullzero" json:"event_date,omitempty"`
	CreatedAt         time.Time    `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`

	// BookedTickets is the ordered list of booker ids, loaded from event_bookings.
	BookedTickets []string `bun:"-" json:"booked_tickets"`
}

func (e *Event) IsFree() bool {
	return e.TicketPrice.IsZero()
}

func (e *Event) HasBooked(userID string) bool {
	for _, id := range e.BookedTickets {
		if id == userID {
			return true
		}
	}
	return false
}
