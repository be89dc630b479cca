package earnings

import "errors"

var (
	ErrBelowMinimum         = errors.New("earnings are below the minimum withdrawal amount")
	ErrNoPayoutRecipient    = errors.New("no payout account on file")
	ErrWithdrawalInProgress = errors.New("a withdrawal is already in progress")
	ErrInsufficientEarnings = errors.New("earnings changed while the withdrawal was in flight")
	ErrTransferFailed       = errors.New("payout transfer failed")
)
