// Package testutil builds throwaway databases for package tests.
package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"eventcircle/internal/models"
	"eventcircle/internal/money"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"
)

// NewSQLiteDB returns an in-memory database with every ledger table created.
// It is limited to one connection so that concurrent tests serialize on it
// the way row locks would serialize them on Postgres.
func NewSQLiteDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	sqldb.SetMaxOpenConns(1)
	sqldb.SetConnMaxLifetime(0)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { bunDB.Close() })

	tables := []any{
		(*models.User)(nil),
		(*models.Event)(nil),
		(*models.EventBooking)(nil),
		(*models.UserTicket)(nil),
		(*models.PlatformEarning)(nil),
		(*models.Withdrawal)(nil),
		(*models.TicketCount)(nil),
	}
	for _, m := range tables {
		if _, err := bunDB.NewCreateTable().Model(m).Exec(context.Background()); err != nil {
			t.Fatalf("Failed to create table for %T: %v", m, err)
		}
	}
	return bunDB
}

type UserOption func(*models.User)

func WithBirthDate(dob time.Time) UserOption {
	return func(u *models.User) { u.DateOfBirth = &dob }
}

func WithGender(g string) UserOption {
	return func(u *models.User) { u.Gender = g }
}

func WithEarnings(a money.Amount) UserOption {
	return func(u *models.User) { u.TotalEarnings = a }
}

func WithPayoutRecipient(r string) UserOption {
	return func(u *models.User) { u.PayoutRecipient = r }
}

func SeedUser(t *testing.T, db bun.IDB, opts ...UserOption) *models.User {
	t.Helper()
	id := uuid.NewString()
	u := &models.User{
		ID:        id,
		Email:     id[:8] + "@example.com",
		FullName:  "Test User",
		CreatedAt: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(u)
	}
	if _, err := db.NewInsert().Model(u).Exec(context.Background()); err != nil {
		t.Fatalf("Failed to seed user: %v", err)
	}
	return u
}

type EventOption func(*models.Event)

func WithPrice(p money.Amount) EventOption {
	return func(e *models.Event) { e.TicketPrice = p }
}

func WithCapacity(n int) EventOption {
	return func(e *models.Event) { e.MaxCapacity = n }
}

func WithAgeRestriction(labels ...string) EventOption {
	return func(e *models.Event) { e.AgeRestriction = labels }
}

func WithGenderRestriction(labels ...string) EventOption {
	return func(e *models.Event) { e.GenderRestriction = labels }
}

func SeedEvent(t *testing.T, db bun.IDB, creatorID string, opts ...EventOption) *models.Event {
	t.Helper()
	e := &models.Event{
		ID:                uuid.NewString(),
		Title:             "Launch Party",
		CreatedBy:         creatorID,
		MaxCapacity:       5,
		AgeRestriction:    models.LabelSet{},
		GenderRestriction: models.LabelSet{},
		CreatedAt:         time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if _, err := db.NewInsert().Model(e).Exec(context.Background()); err != nil {
		t.Fatalf("Failed to seed event: %v", err)
	}
	return e
}
