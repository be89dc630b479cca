package gateway

import (
	"context"
	"fmt"
	"time"

	"eventcircle/internal/logger"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds the exponential backoff used for idempotent calls.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultRetryPolicy(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, InitialInterval: 200 * time.Millisecond, MaxInterval: 2 * time.Second}
}

// Retrying wraps a provider and retries verification and transfers on
// temporary errors. Initialization is never retried since every attempt
// opens a new checkout.
type Retrying struct {
	client  Client
	payouts Payouts
	policy  RetryPolicy
	logger  *logger.Logger
}

func WithRetry(client Client, payouts Payouts, policy RetryPolicy, log *logger.Logger) *Retrying {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Retrying{client: client, payouts: payouts, policy: policy, logger: log}
}

func (r *Retrying) InitializeTransaction(ctx context.Context, req InitRequest) (*InitResult, error) {
	return r.client.InitializeTransaction(ctx, req)
}

func (r *Retrying) VerifyTransaction(ctx context.Context, reference string) (*Verification, error) {
	var out *Verification
	err := r.retry(ctx, "verify", reference, func() error {
		v, err := r.client.VerifyTransaction(ctx, reference)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func (r *Retrying) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if r.payouts == nil {
		return nil, &Error{Op: "transfer", Message: "payouts not configured"}
	}
	var out *TransferResult
	err := r.retry(ctx, "transfer", req.Reference, func() error {
		res, err := r.payouts.Transfer(ctx, req)
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	return out, err
}

func (r *Retrying) retry(ctx context.Context, op, reference string, fn func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = r.policy.InitialInterval
	eb.MaxInterval = r.policy.MaxInterval
	eb.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(r.policy.MaxAttempts-1)), ctx)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if !IsTemporary(err) {
			return backoff.Permanent(err)
		}
		r.logger.Warn("PAYMENT", fmt.Sprintf("%s %s attempt %d/%d failed: %v", op, reference, attempt, r.policy.MaxAttempts, err))
		return err
	}, b)
}
