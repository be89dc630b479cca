package booking

import (
	"context"

	"eventcircle/internal/models"
	"eventcircle/internal/money"
)

// LedgerStore is the durable side of a booking. Every method joins the
// transaction carried by ctx when called inside WithTx.
type LedgerStore interface {
	// WithTx runs fn in one transaction. Returning an error rolls everything back.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	GetUser(ctx context.Context, id string) (*models.User, error)
	// GetEvent loads the event together with its ordered booked_tickets.
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	IsBooked(ctx context.Context, eventID, userID string) (bool, error)
	GetBooking(ctx context.Context, eventID, userID string) (*models.EventBooking, error)

	// ReserveSeat takes one seat if any is left, otherwise ErrSoldOut.
	ReserveSeat(ctx context.Context, eventID string) error
	// AddBooking returns ErrAlreadyBooked when the user already holds a seat.
	AddBooking(ctx context.Context, booking *models.EventBooking) error
	AddUserTicket(ctx context.Context, ticket *models.UserTicket) error
	CreditEarnings(ctx context.Context, userID string, amount money.Amount) error
	CreatePlatformEarning(ctx context.Context, earning *models.PlatformEarning) error

	ListUserTickets(ctx context.Context, userID string) ([]models.TicketSummary, error)
}

// SessionStore keeps short-lived payment sessions keyed by gateway reference.
type SessionStore interface {
	Save(ctx context.Context, session *models.PaymentSession) error
	// Get returns nil, nil when no session exists.
	Get(ctx context.Context, reference string) (*models.PaymentSession, error)
	MarkSettled(ctx context.Context, reference string) error
}

type EventPublisher interface {
	PublishBookingConfirmed(ctx context.Context, msg models.BookingConfirmed) error
}

type noopSessions struct{}

func (noopSessions) Save(context.Context, *models.PaymentSession) error { return nil }
func (noopSessions) Get(context.Context, string) (*models.PaymentSession, error) {
	return nil, nil
}
func (noopSessions) MarkSettled(context.Context, string) error { return nil }

type noopPublisher struct{}

func (noopPublisher) PublishBookingConfirmed(context.Context, models.BookingConfirmed) error {
	return nil
}
