package models

import (
	"time"

	"eventcircle/internal/money"

	"github.com/uptrace/bun"
)

type PlatformEarning struct {
	bun.BaseModel `bun:"table:platform_earnings"`

	ID               string       `bun:"id,pk" json:"id"`
	EventID          string       `bun:"event_id,notnull" json:"event_id"`
	UserID           string       `bun:"user_id,notnull" json:"user_id"`
	Amount           money.Amount `bun:"amount_cents,notnull" json:"amount"`
	PaymentReference *string      `bun:"payment_reference,unique" json:"payment_reference,omitempty"`
	TransactionDate  time.Time    `bun:"transaction_date,notnull" json:"transaction_date"`
}

type WithdrawalStatus string

const (
	WithdrawalPending   WithdrawalStatus = "pending"
	WithdrawalCompleted WithdrawalStatus = "completed"
	WithdrawalFailed    WithdrawalStatus = "failed"
)

type Withdrawal struct {
	bun.BaseModel `bun:"table:withdrawals"`

	ID                string           `bun:"id,pk" json:"id"`
	UserID            string           `bun:"user_id,notnull" json:"user_id"`
	Amount            money.Amount     `bun:"amount_cents,notnull" json:"amount"`
	Status            WithdrawalStatus `bun:"status,notnull" json:"status"`
	TransferReference string           `bun:"transfer_reference,nullzero" json:"transfer_reference,omitempty"`
	FailureReason     string           `bun:"failure_reason,nullzero" json:"failure_reason,omitempty"`
	CreatedAt         time.Time        `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt         time.Time        `bun:"updated_at,notnull" json:"updated_at"`
}

// MonthlyEarning is one bucket of the platform earnings report.
type MonthlyEarning struct {
	Year     int          `json:"year"`
	Month    int          `json:"month"`
	Amount   money.Amount `json:"amount"`
	Bookings int          `json:"bookings"`
}

type PlatformEarningsReport struct {
	Total    money.Amount     `json:"total_earnings"`
	Bookings int              `json:"total_bookings"`
	Monthly  []MonthlyEarning `json:"monthly_breakdown"`
}
