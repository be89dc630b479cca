// Package tickets keeps per-day sales counters fed from booking events and
// checks ticket passes at the door.
package tickets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"eventcircle/internal/logger"
	"eventcircle/internal/models"
	"eventcircle/internal/tickets/qr"

	"github.com/segmentio/kafka-go"
)

var (
	ErrNotEventOwner = errors.New("only the event creator can check passes")
	ErrPassMismatch  = errors.New("pass does not belong to this event")
	ErrNoBooking     = errors.New("pass has no matching booking")
)

// CountStore is implemented by tickets/db.DB.
type CountStore interface {
	IncrementTicketCount(ctx context.Context, eventID string, at time.Time) error
	GetTicketCountsForEvent(ctx context.Context, eventID string) ([]models.TicketCount, error)
}

// BookingLookup is the slice of the ledger a door check needs.
type BookingLookup interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	GetBooking(ctx context.Context, eventID, userID string) (*models.EventBooking, error)
}

type SalesReport struct {
	EventID string               `json:"event_id"`
	Total   int                  `json:"total"`
	Daily   []models.TicketCount `json:"daily"`
}

type Service struct {
	Counts   CountStore
	Bookings BookingLookup
	Passes   *qr.QRGenerator
	Logger   *logger.Logger
}

// RecordBooking counts one confirmed booking on the day it was confirmed.
func (s *Service) RecordBooking(ctx context.Context, msg models.BookingConfirmed) error {
	if msg.EventID == "" {
		return errors.New("booking event without event id")
	}
	at := msg.ConfirmedAt
	if at.IsZero() {
		at = time.Now()
	}
	return s.Counts.IncrementTicketCount(ctx, msg.EventID, at)
}

// HandleMessage decodes a booking.confirmed message for the worker's consumer.
func (s *Service) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var confirmed models.BookingConfirmed
	if err := json.Unmarshal(msg.Value, &confirmed); err != nil {
		// a payload that never decodes would block the partition, so drop it
		s.Logger.Error("KAFKA", fmt.Sprintf("Dropping undecodable message at offset %d: %v", msg.Offset, err))
		return nil
	}
	if err := s.RecordBooking(ctx, confirmed); err != nil {
		return err
	}
	s.Logger.LogKafka("CONSUMED", msg.Topic, fmt.Sprintf("booking %s counted for event %s", confirmed.BookingID, confirmed.EventID))
	return nil
}

func (s *Service) Sales(ctx context.Context, eventID string) (*SalesReport, error) {
	counts, err := s.Counts.GetTicketCountsForEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	report := &SalesReport{EventID: eventID, Daily: counts}
	for _, c := range counts {
		report.Total += c.Count
	}
	return report, nil
}

// CheckPass opens a scanned pass and confirms it matches a booking on
// eventID. Only the event's creator may check passes.
func (s *Service) CheckPass(ctx context.Context, scannerID, eventID, token string) (*qr.Pass, error) {
	event, err := s.Bookings.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.CreatedBy != scannerID {
		return nil, ErrNotEventOwner
	}

	pass, err := s.Passes.Open(token)
	if err != nil {
		return nil, err
	}
	if pass.EventID != eventID {
		return nil, ErrPassMismatch
	}

	b, err := s.Bookings.GetBooking(ctx, eventID, pass.UserID)
	if err != nil || b.ID != pass.BookingID {
		s.Logger.LogSecurity("PASS_REJECTED", fmt.Sprintf("pass %s for event %s has no booking", pass.BookingID, eventID))
		return nil, ErrNoBooking
	}
	return pass, nil
}
