// Package gateway talks to the external payment provider: checkout
// initialization, verification by reference and creator payouts.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"eventcircle/internal/money"
)

// StatusSuccess is the only verification status that settles a booking.
const StatusSuccess = "success"

type InitRequest struct {
	Amount      money.Amount
	Currency    string
	Email       string
	CallbackURL string
	Metadata    map[string]string
}

type InitResult struct {
	AuthorizationURL string `json:"authorization_url"`
	Reference        string `json:"reference"`
}

type Verification struct {
	Reference string
	Status    string
	Amount    money.Amount
	Currency  string
	Metadata  map[string]string
}

func (v *Verification) Succeeded() bool {
	return v.Status == StatusSuccess
}

// Client is the checkout side of the provider.
type Client interface {
	InitializeTransaction(ctx context.Context, req InitRequest) (*InitResult, error)
	VerifyTransaction(ctx context.Context, reference string) (*Verification, error)
}

type TransferRequest struct {
	Amount    money.Amount
	Currency  string
	Recipient string
	Reference string
	Reason    string
}

type TransferResult struct {
	TransferCode string
	Status       string
}

// Payouts moves creator earnings out of the platform balance.
type Payouts interface {
	Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error)
}

var ErrTransferRejected = errors.New("gateway: transfer rejected")

// Error describes a failed provider call.
type Error struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.StatusCode != 0:
		return fmt.Sprintf("gateway %s: status %d: %s: %v", e.Op, e.StatusCode, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("gateway %s: status %d: %s", e.Op, e.StatusCode, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Temporary reports whether retrying the same call may succeed.
// Transport failures, 429 and 5xx qualify.
func (e *Error) Temporary() bool {
	if e.StatusCode == 0 {
		return e.Err != nil && !errors.Is(e.Err, context.Canceled) && !errors.Is(e.Err, context.DeadlineExceeded)
	}
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsTemporary unwraps err looking for a retryable *Error.
func IsTemporary(err error) bool {
	var gwErr *Error
	return errors.As(err, &gwErr) && gwErr.Temporary()
}
