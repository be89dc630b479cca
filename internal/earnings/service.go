// Package earnings pays creators out of their accumulated ticket earnings and
// reports the platform's commission income.
package earnings

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"eventcircle/internal/clock"
	"eventcircle/internal/gateway"
	"eventcircle/internal/logger"
	"eventcircle/internal/models"
	"eventcircle/internal/money"

	"github.com/google/uuid"
)

type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	HasPendingWithdrawal(ctx context.Context, userID string) (bool, error)
	CreateWithdrawal(ctx context.Context, w *models.Withdrawal) error
	CompleteWithdrawal(ctx context.Context, id, transferReference string, at time.Time) error
	FailWithdrawal(ctx context.Context, id, reason string, at time.Time) error
	DebitEarnings(ctx context.Context, userID string, amount money.Amount) error
	ListWithdrawals(ctx context.Context, userID string) ([]models.Withdrawal, error)
	ListPlatformEarnings(ctx context.Context) ([]models.PlatformEarning, error)
}

// settleTimeout bounds the ledger writes that follow a transfer.
const settleTimeout = 10 * time.Second

type Publisher interface {
	PublishWithdrawalCompleted(ctx context.Context, msg models.WithdrawalPaid) error
}

type Service struct {
	store     Store
	payouts   gateway.Payouts
	publisher Publisher
	clock     clock.Clock
	logger    *logger.Logger
	minimum   money.Amount
	currency  string
}

func NewService(store Store, payouts gateway.Payouts, publisher Publisher, clk clock.Clock, log *logger.Logger, minimum money.Amount, currency string) *Service {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Service{
		store:     store,
		payouts:   payouts,
		publisher: publisher,
		clock:     clk,
		logger:    log,
		minimum:   minimum,
		currency:  currency,
	}
}

func (s *Service) Balance(ctx context.Context, userID string) (money.Amount, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return user.TotalEarnings, nil
}

// RequestWithdrawal pays out the user's whole balance. The balance is only
// debited once the transfer has gone through.
func (s *Service) RequestWithdrawal(ctx context.Context, userID string) (*models.Withdrawal, error) {
	var (
		withdrawal *models.Withdrawal
		recipient  string
	)
	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		user, err := s.store.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if user.TotalEarnings <= s.minimum {
			return fmt.Errorf("%w: balance %s, minimum %s", ErrBelowMinimum, user.TotalEarnings, s.minimum)
		}
		if user.PayoutRecipient == "" {
			return ErrNoPayoutRecipient
		}
		pending, err := s.store.HasPendingWithdrawal(ctx, userID)
		if err != nil {
			return err
		}
		if pending {
			return ErrWithdrawalInProgress
		}

		now := s.clock.Now()
		withdrawal = &models.Withdrawal{
			ID:        uuid.NewString(),
			UserID:    userID,
			Amount:    user.TotalEarnings,
			Status:    models.WithdrawalPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		recipient = user.PayoutRecipient
		return s.store.CreateWithdrawal(ctx, withdrawal)
	})
	if err != nil {
		return nil, err
	}
	s.logger.LogPayment("WITHDRAWAL_PENDING", withdrawal.ID, fmt.Sprintf("user %s, amount %s", userID, withdrawal.Amount))

	transfer, err := s.payouts.Transfer(ctx, gateway.TransferRequest{
		Amount:    withdrawal.Amount,
		Currency:  s.currency,
		Recipient: recipient,
		Reference: withdrawal.ID,
		Reason:    "EventCircle earnings withdrawal",
	})
	// Once the provider has been asked, the outcome must reach the ledger even
	// if the caller has gone away.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	if err != nil {
		return s.fail(ctx, withdrawal, err)
	}

	now := s.clock.Now()
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		if err := s.store.CompleteWithdrawal(ctx, withdrawal.ID, transfer.TransferCode, now); err != nil {
			return err
		}
		return s.store.DebitEarnings(ctx, userID, withdrawal.Amount)
	})
	if err != nil {
		// Money has left the platform but the ledger did not follow.
		s.logger.Error("WITHDRAWAL", fmt.Sprintf("transfer %s for withdrawal %s succeeded but ledger update failed: %v", transfer.TransferCode, withdrawal.ID, err))
		return nil, err
	}
	withdrawal.Status = models.WithdrawalCompleted
	withdrawal.TransferReference = transfer.TransferCode
	withdrawal.UpdatedAt = now
	s.logger.LogPayment("WITHDRAWAL_COMPLETED", withdrawal.ID, "transfer "+transfer.TransferCode)

	if s.publisher != nil {
		msg := models.WithdrawalPaid{
			WithdrawalID:      withdrawal.ID,
			UserID:            userID,
			Amount:            withdrawal.Amount,
			TransferReference: transfer.TransferCode,
			CompletedAt:       now,
		}
		if err := s.publisher.PublishWithdrawalCompleted(ctx, msg); err != nil {
			s.logger.Error("KAFKA", fmt.Sprintf("withdrawal %s completed but event not published: %v", withdrawal.ID, err))
		}
	}
	return withdrawal, nil
}

func (s *Service) fail(ctx context.Context, withdrawal *models.Withdrawal, cause error) (*models.Withdrawal, error) {
	reason := cause.Error()
	if errors.Is(cause, gateway.ErrTransferRejected) {
		reason = "transfer rejected by provider"
	}
	now := s.clock.Now()
	if err := s.store.FailWithdrawal(ctx, withdrawal.ID, reason, now); err != nil {
		s.logger.Error("WITHDRAWAL", fmt.Sprintf("could not mark withdrawal %s failed: %v", withdrawal.ID, err))
	}
	withdrawal.Status = models.WithdrawalFailed
	withdrawal.FailureReason = reason
	withdrawal.UpdatedAt = now
	s.logger.LogPayment("WITHDRAWAL_FAILED", withdrawal.ID, reason)
	return withdrawal, fmt.Errorf("%w: %v", ErrTransferFailed, cause)
}

func (s *Service) ListWithdrawals(ctx context.Context, userID string) ([]models.Withdrawal, error) {
	return s.store.ListWithdrawals(ctx, userID)
}

// PlatformReport sums commission per calendar month (UTC), oldest first.
func (s *Service) PlatformReport(ctx context.Context) (*models.PlatformEarningsReport, error) {
	rows, err := s.store.ListPlatformEarnings(ctx)
	if err != nil {
		return nil, err
	}

	type key struct{ year, month int }
	buckets := map[key]*models.MonthlyEarning{}
	report := &models.PlatformEarningsReport{Monthly: []models.MonthlyEarning{}}
	for _, row := range rows {
		t := row.TransactionDate.UTC()
		k := key{t.Year(), int(t.Month())}
		b, ok := buckets[k]
		if !ok {
			b = &models.MonthlyEarning{Year: k.year, Month: k.month}
			buckets[k] = b
		}
		b.Amount += row.Amount
		b.Bookings++
		report.Total += row.Amount
		report.Bookings++
	}

	for _, b := range buckets {
		report.Monthly = append(report.Monthly, *b)
	}
	sort.Slice(report.Monthly, func(i, j int) bool {
		a, b := report.Monthly[i], report.Monthly[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.Month < b.Month
	})
	return report, nil
}
