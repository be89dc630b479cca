package booking

import (
	"errors"
)

var (
	ErrInvalidID                 = errors.New("invalid id")
	ErrMissingParams             = errors.New("missing required parameters")
	ErrUserNotFound              = errors.New("user not found")
	ErrEventNotFound             = errors.New("event not found")
	ErrBookingNotFound           = errors.New("booking not found")
	ErrSoldOut                   = errors.New("event is sold out")
	ErrAgeRestricted             = errors.New("age restricted for this event")
	ErrGenderRestricted          = errors.New("gender restricted for this event")
	ErrAlreadyBooked             = errors.New("already booked this event")
	ErrPaymentInitFailed         = errors.New("payment initialization failed")
	ErrPaymentVerificationFailed = errors.New("payment verification failed")
	ErrAmountMismatch            = errors.New("payment amount mismatch")
)

// Kind groups errors by how a caller should react.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindDenied
	KindGateway
)

func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrInvalidID), errors.Is(err, ErrMissingParams):
		return KindValidation
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrEventNotFound), errors.Is(err, ErrBookingNotFound):
		return KindNotFound
	case errors.Is(err, ErrSoldOut), errors.Is(err, ErrAgeRestricted),
		errors.Is(err, ErrGenderRestricted), errors.Is(err, ErrAlreadyBooked):
		return KindDenied
	case errors.Is(err, ErrPaymentInitFailed), errors.Is(err, ErrPaymentVerificationFailed), errors.Is(err, ErrAmountMismatch):
		return KindGateway
	default:
		return KindInternal
	}
}
