package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"eventcircle/internal/booking"
	"eventcircle/internal/database"
	"eventcircle/internal/earnings"
	"eventcircle/internal/models"
	"eventcircle/internal/money"

	"github.com/uptrace/bun"
)

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
	err := d.conn(ctx).NewSelect().Model(user).Where("id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, booking.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return user, nil
}

func (d *DB) HasPendingWithdrawal(ctx context.Context, userID string) (bool, error) {
	return d.conn(ctx).NewSelect().
		Model((*models.Withdrawal)(nil)).
		Where("user_id = ?", userID).
		Where("status = ?", models.WithdrawalPending).
		Exists(ctx)
}

// CreateWithdrawal relies on the one-pending-per-user index on Postgres.
func (d *DB) CreateWithdrawal(ctx context.Context, w *models.Withdrawal) error {
	_, err := d.conn(ctx).NewInsert().Model(w).Exec(ctx)
	if database.IsUniqueViolation(err) {
		return earnings.ErrWithdrawalInProgress
	}
	return err
}

func (d *DB) CompleteWithdrawal(ctx context.Context, id, transferReference string, at time.Time) error {
	return d.finish(ctx, id, at, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("status = ?", models.WithdrawalCompleted).Set("transfer_reference = ?", transferReference)
	})
}

func (d *DB) FailWithdrawal(ctx context.Context, id, reason string, at time.Time) error {
	return d.finish(ctx, id, at, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("status = ?", models.WithdrawalFailed).Set("failure_reason = ?", reason)
	})
}

// finish moves a pending withdrawal to its final status exactly once.
func (d *DB) finish(ctx context.Context, id string, at time.Time, set func(*bun.UpdateQuery) *bun.UpdateQuery) error {
	q := d.conn(ctx).NewUpdate().
		Model((*models.Withdrawal)(nil)).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Where("status = ?", models.WithdrawalPending)
	res, err := set(q).Exec(ctx)
	if err != nil {
		return fmt.Errorf("finish withdrawal %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("withdrawal %s is not pending", id)
	}
	return nil
}

// DebitEarnings never lets total_earnings go below zero.
func (d *DB) DebitEarnings(ctx context.Context, userID string, amount money.Amount) error {
	res, err := d.conn(ctx).NewUpdate().
		Model((*models.User)(nil)).
		Set("total_earnings_cents = total_earnings_cents - ?", amount.Minor()).
		Where("id = ?", userID).
		Where("total_earnings_cents >= ?", amount.Minor()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("debit earnings of %s: %w", userID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return earnings.ErrInsufficientEarnings
	}
	return nil
}

func (d *DB) ListWithdrawals(ctx context.Context, userID string) ([]models.Withdrawal, error) {
	list := []models.Withdrawal{}
	err := d.conn(ctx).NewSelect().
		Model(&list).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Scan(ctx)
	return list, err
}

func (d *DB) ListPlatformEarnings(ctx context.Context) ([]models.PlatformEarning, error) {
	list := []models.PlatformEarning{}
	err := d.conn(ctx).NewSelect().
		Model(&list).
		Order("transaction_date ASC").
		Scan(ctx)
	return list, err
}
