package db

import (
	"context"
	"fmt"
	"time"

	"eventcircle/internal/database"
	"eventcircle/internal/models"

	"github.com/uptrace/bun"
)

// DayLayout is the calendar-day key of a counter, always in UTC.
const DayLayout = "2006-01-02"

type DB struct {
	Bun *bun.DB
}

// IncrementTicketCount adds one sale to the event's counter for the UTC day of at.
func (d *DB) IncrementTicketCount(ctx context.Context, eventID string, at time.Time) error {
	day := at.UTC().Format(DayLayout)

	return database.WithTx(ctx, d.Bun, func(ctx context.Context) error {
		conn := database.Conn(ctx, d.Bun)

		bumped, err := d.bump(ctx, conn, eventID, day)
		if err != nil || bumped {
			return err
		}

		res, err := conn.NewInsert().
			Model(&models.TicketCount{EventID: eventID, Day: day, Count: 1}).
			On("CONFLICT (event_id, day) DO NOTHING").
			Returning("NULL").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("increment ticket count %s/%s: %w", eventID, day, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			// another worker inserted the row first
			if _, err := d.bump(ctx, conn, eventID, day); err != nil {
				return fmt.Errorf("increment ticket count %s/%s: %w", eventID, day, err)
			}
		}
		return nil
	})
}

func (d *DB) bump(ctx context.Context, conn bun.IDB, eventID, day string) (bool, error) {
	res, err := conn.NewUpdate().
		Model((*models.TicketCount)(nil)).
		Set("count = count + 1").
		Where("event_id = ?", eventID).
		Where("day = ?", day).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// GetTicketCountsForEvent returns the event's daily counters, oldest day first.
func (d *DB) GetTicketCountsForEvent(ctx context.Context, eventID string) ([]models.TicketCount, error) {
	counts := []models.TicketCount{}
	err := d.Bun.NewSelect().
		Model(&counts).
		Where("event_id = ?", eventID).
		Order("day ASC").
		Scan(ctx)
	return counts, err
}
