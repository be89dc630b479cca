package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"eventcircle/internal/booking"
	"eventcircle/internal/database"
	"eventcircle/internal/models"
	"eventcircle/internal/money"

	"github.com/uptrace/bun"
)

// DB is the bun-backed LedgerStore.
type DB struct {
	Bun *bun.DB
}

func (d *DB) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return database.WithTx(ctx, d.Bun, fn)
}

func (d *DB) conn(ctx context.Context) bun.IDB {
	return database.Conn(ctx, d.Bun)
}

func (d *DB) GetUser(ctx context.Context, id string) (*models.User, error) {
	user := new(models.User)
	err := d.conn(ctx).NewSelect().
		Model(user).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, booking.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}

	err = d.conn(ctx).NewSelect().
		Model((*models.UserTicket)(nil)).
		Column("event_id").
		Where("user_id = ?", id).
		Order("booked_at DESC").
		Scan(ctx, &user.MyTickets)
	if err != nil {
		return nil, fmt.Errorf("get tickets of user %s: %w", id, err)
	}
	return user, nil
}

func (d *DB) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	event := new(models.Event)
	err := d.conn(ctx).NewSelect().
		Model(event).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, booking.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", id, err)
	}

	err = d.conn(ctx).NewSelect().
		Model((*models.EventBooking)(nil)).
		Column("user_id").
		Where("event_id = ?", id).
		Order("booked_at ASC").
		Scan(ctx, &event.BookedTickets)
	if err != nil {
		return nil, fmt.Errorf("get bookings of event %s: %w", id, err)
	}
	return event, nil
}

func (d *DB) IsBooked(ctx context.Context, eventID, userID string) (bool, error) {
	return d.conn(ctx).NewSelect().
		Model((*models.EventBooking)(nil)).
		Where("event_id = ?", eventID).
		Where("user_id = ?", userID).
		Exists(ctx)
}

func (d *DB) GetBooking(ctx context.Context, eventID, userID string) (*models.EventBooking, error) {
	b := new(models.EventBooking)
	err := d.conn(ctx).NewSelect().
		Model(b).
		Where("event_id = ?", eventID).
		Where("user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, booking.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking %s/%s: %w", eventID, userID, err)
	}
	return b, nil
}

// ReserveSeat decrements the remaining capacity only while it is positive,
// so concurrent callers can never push it below zero.
func (d *DB) ReserveSeat(ctx context.Context, eventID string) error {
	res, err := d.conn(ctx).NewUpdate().
		Model((*models.Event)(nil)).
		Set("event_max_capacity = event_max_capacity - 1").
		Set("tickets_sold = tickets_sold + 1").
		Where("id = ?", eventID).
		Where("event_max_capacity > 0").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("reserve seat on %s: %w", eventID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	exists, err := d.conn(ctx).NewSelect().Model((*models.Event)(nil)).Where("id = ?", eventID).Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return booking.ErrEventNotFound
	}
	return booking.ErrSoldOut
}

func (d *DB) AddBooking(ctx context.Context, b *models.EventBooking) error {
	_, err := d.conn(ctx).NewInsert().Model(b).Exec(ctx)
	if database.IsUniqueViolation(err) {
		return booking.ErrAlreadyBooked
	}
	return err
}

func (d *DB) AddUserTicket(ctx context.Context, ticket *models.UserTicket) error {
	_, err := d.conn(ctx).NewInsert().Model(ticket).Exec(ctx)
	if database.IsUniqueViolation(err) {
		return booking.ErrAlreadyBooked
	}
	return err
}

func (d *DB) CreditEarnings(ctx context.Context, userID string, amount money.Amount) error {
	res, err := d.conn(ctx).NewUpdate().
		Model((*models.User)(nil)).
		Set("total_earnings_cents = total_earnings_cents + ?", amount.Minor()).
		Where("id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("credit earnings of %s: %w", userID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: creator %s", booking.ErrUserNotFound, userID)
	}
	return nil
}

func (d *DB) CreatePlatformEarning(ctx context.Context, earning *models.PlatformEarning) error {
	_, err := d.conn(ctx).NewInsert().Model(earning).Exec(ctx)
	if database.IsUniqueViolation(err) {
		return fmt.Errorf("%w: reference already settled", booking.ErrPaymentVerificationFailed)
	}
	return err
}

func (d *DB) ListUserTickets(ctx context.Context, userID string) ([]models.TicketSummary, error) {
	tickets := []models.TicketSummary{}
	err := d.conn(ctx).NewSelect().
		TableExpr("user_tickets AS ut").
		ColumnExpr("ut.event_id, ut.booked_at, e.title, e.event_date, e.ticket_price_cents").
		Join("JOIN events AS e ON e.id = ut.event_id").
		Where("ut.user_id = ?", userID).
		OrderExpr("ut.booked_at DESC").
		Scan(ctx, &tickets)
	if err != nil {
		return nil, fmt.Errorf("list tickets of %s: %w", userID, err)
	}
	return tickets, nil
}
