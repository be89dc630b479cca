package models

import (
	"github.com/uptrace/bun"
)

// TicketCount is the number of tickets sold for an event on one calendar day (UTC).
type TicketCount struct {
	bun.BaseModel `bun:"table:ticket_counts"`

	ID      int64  `bun:"id,pk,autoincrement" json:"-"`
	EventID string `bun:"event_id,notnull,unique:event_day" json:"event_id"`
	Day     string `bun:"day,notnull,unique:event_day" json:"day"`
	Count   int    `bun:"count,notnull" json:"count"`
}
